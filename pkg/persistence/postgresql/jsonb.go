package postgresql

import (
	"encoding/json"
	"fmt"
)

// marshalJSONB encodes a value for a JSONB column, mapping nil to SQL NULL.
func marshalJSONB(value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal jsonb value: %w", err)
	}

	return data, nil
}

// unmarshalJSONB decodes a JSONB column into out, leaving out untouched for
// SQL NULL.
func unmarshalJSONB(raw []byte, out any) error {
	if len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal jsonb value: %w", err)
	}

	return nil
}
