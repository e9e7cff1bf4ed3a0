// Package httppoll provides a poll source that fetches new items from a JSON
// HTTP endpoint.
package httppoll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/weftflow/weft/pkg/protocol"
)

const defaultTimeout = 30 * time.Second

// Source polls an HTTP endpoint for records newer than the stored cursor.
// The endpoint receives the cursor as a query parameter and responds with
//
//	{"items": [{"id": "...", "cursor": "...", "data": {...}}]}
//
// ordered oldest first. Item ids feed idempotent admission, so an endpoint
// that re-serves old items never causes duplicate executions.
type Source struct {
	client *http.Client
}

func NewSource() *Source {
	return &Source{
		client: &http.Client{Timeout: defaultTimeout},
	}
}

func (s *Source) Name() string {
	return "http"
}

type pollResponse struct {
	Items []pollResponseItem `json:"items"`
}

type pollResponseItem struct {
	ID     string         `json:"id"`
	Cursor string         `json:"cursor"`
	Data   map[string]any `json:"data"`
}

func (s *Source) Poll(ctx context.Context, config map[string]any, cursor string) ([]protocol.PollItem, error) {
	endpoint, _ := config["url"].(string)
	if endpoint == "" {
		return nil, errors.New("missing required field 'url'")
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid poll url: %w", err)
	}

	if cursor != "" {
		query := parsed.Query()
		query.Set("cursor", cursor)
		parsed.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read poll response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll endpoint returned HTTP %d", resp.StatusCode)
	}

	var decoded pollResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode poll response: %w", err)
	}

	items := make([]protocol.PollItem, 0, len(decoded.Items))

	for _, item := range decoded.Items {
		if item.ID == "" {
			continue
		}

		itemCursor := item.Cursor
		if itemCursor == "" {
			itemCursor = item.ID
		}

		items = append(items, protocol.PollItem{
			EventID: item.ID,
			Cursor:  itemCursor,
			Payload: item.Data,
		})
	}

	return items, nil
}
