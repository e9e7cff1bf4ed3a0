package registry

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/weftflow/weft/pkg/protocol"
)

// ValidateConfig checks a resolved node config against the handler's config
// schema. A nil schema accepts anything.
func ValidateConfig(node protocol.Node, config map[string]any) error {
	return validateAgainstSchema(node.ConfigSchema(), config, "config")
}

// ValidateOutput checks a run's output against the handler's output schema.
func ValidateOutput(node protocol.Node, output map[string]any) error {
	return validateAgainstSchema(node.OutputSchema(), output, "output")
}

func validateAgainstSchema(schema map[string]any, data map[string]any, what string) error {
	if schema == nil {
		return nil
	}

	if data == nil {
		data = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("%s schema validation failed: %w", what, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("%s does not match schema: %s", what, strings.Join(details, "; "))
	}

	return nil
}
