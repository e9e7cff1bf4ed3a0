// Package httprequest provides the HTTP request action node.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/weftflow/weft/pkg/models"
	"github.com/weftflow/weft/pkg/protocol"
)

const (
	defaultMethod  = http.MethodGet
	defaultTimeout = 30 * time.Second
	maxTimeout     = 300
)

// Node performs one HTTP request per run. Retries happen only on network
// errors and 5xx responses; 4xx responses fail immediately.
type Node struct {
	client *http.Client
}

func NewNode() *Node {
	// No client-level Timeout: the per-request context in perform carries the
	// configured deadline, which may exceed the 30s default.
	return &Node{
		client: &http.Client{},
	}
}

func (n *Node) Type() string {
	return "httprequest"
}

func (n *Node) Category() models.CategoryType {
	return models.CategoryTypeAction
}

func (n *Node) ConfigSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"url"},
		"properties": map[string]any{
			"url": map[string]any{"type": "string"},
			"method": map[string]any{
				"type": "string",
				"enum": []any{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
			},
			"headers": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"body": map[string]any{"type": "string"},
			"timeout": map[string]any{
				"type":    "number",
				"minimum": 1,
				"maximum": maxTimeout,
			},
			"retries": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"attempts": map[string]any{"type": "number", "minimum": 1, "maximum": 10},
					"delay":    map[string]any{"type": "number", "minimum": 0, "maximum": 30000},
				},
			},
		},
	}
}

func (n *Node) OutputSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"status_code", "body"},
		"properties": map[string]any{
			"status_code": map[string]any{"type": "number"},
			"headers":     map[string]any{"type": "object"},
			"body":        map[string]any{"type": "string"},
			"json":        map[string]any{},
		},
	}
}

func (n *Node) Run(ctx context.Context, nc protocol.NodeContext) (*protocol.Result, error) {
	url, _ := nc.Config["url"].(string)
	if url == "" {
		return nil, errors.New("missing required field 'url'")
	}

	method := defaultMethod
	if m, ok := nc.Config["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}

	body, _ := nc.Config["body"].(string)
	headers := stringMap(nc.Config["headers"])

	timeout := defaultTimeout
	if seconds, ok := toFloat(nc.Config["timeout"]); ok {
		timeout = time.Duration(seconds) * time.Second
	}

	attempts, delay := retryPolicy(nc.Config["retries"])

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		output, err := n.perform(ctx, method, url, body, headers, timeout)
		if err == nil {
			return &protocol.Result{Output: output}, nil
		}

		lastErr = err

		statusErr := &StatusError{}
		if errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError {
			break
		}
	}

	return nil, fmt.Errorf("http request failed after %d attempt(s): %w", attempts, lastErr)
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func (n *Node) perform(ctx context.Context, method, url, body string, headers map[string]string, timeout time.Duration) (map[string]any, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	respHeaders := make(map[string]any, len(resp.Header))
	for key := range resp.Header {
		respHeaders[key] = resp.Header.Get(key)
	}

	output := map[string]any{
		"status_code": resp.StatusCode,
		"headers":     respHeaders,
		"body":        string(respBody),
	}

	var jsonBody any
	if err := json.Unmarshal(respBody, &jsonBody); err == nil {
		output["json"] = jsonBody
	}

	return output, nil
}

func stringMap(value any) map[string]string {
	out := make(map[string]string)

	raw, ok := value.(map[string]any)
	if !ok {
		return out
	}

	for key, v := range raw {
		if s, ok := v.(string); ok {
			out[key] = s
		}
	}

	return out
}

func retryPolicy(value any) (int, time.Duration) {
	attempts := 1
	delay := time.Duration(0)

	raw, ok := value.(map[string]any)
	if !ok {
		return attempts, delay
	}

	if a, ok := toFloat(raw["attempts"]); ok && a >= 1 {
		attempts = int(a)
	}

	if d, ok := toFloat(raw["delay"]); ok && d >= 0 {
		delay = time.Duration(d) * time.Millisecond
	}

	return attempts, delay
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
