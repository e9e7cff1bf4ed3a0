package httprequest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftflow/weft/pkg/nodes/httprequest"
	"github.com/weftflow/weft/pkg/protocol"
)

func TestHTTPRequestNode_GetJSON(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"name":"ada"}}`))
	}))
	defer server.Close()

	result, err := httprequest.NewNode().Run(context.Background(), protocol.NodeContext{
		Config: map[string]any{"url": server.URL},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, result.Output["status_code"])
	assert.Equal(t, `{"user":{"name":"ada"}}`, result.Output["body"])

	parsed, ok := result.Output["json"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, parsed, "user")
}

func TestHTTPRequestNode_PostWithHeadersAndBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	result, err := httprequest.NewNode().Run(context.Background(), protocol.NodeContext{
		Config: map[string]any{
			"url":     server.URL,
			"method":  "POST",
			"body":    `{"order":"ord-1"}`,
			"headers": map[string]any{"X-Api-Key": "secret"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, result.Output["status_code"])
}

func TestHTTPRequestNode_ClientErrorDoesNotRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := httprequest.NewNode().Run(context.Background(), protocol.NodeContext{
		Config: map[string]any{
			"url":     server.URL,
			"retries": map[string]any{"attempts": float64(3), "delay": float64(0)},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPRequestNode_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	result, err := httprequest.NewNode().Run(context.Background(), protocol.NodeContext{
		Config: map[string]any{
			"url":     server.URL,
			"retries": map[string]any{"attempts": float64(3), "delay": float64(0)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.Output["status_code"])
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPRequestNode_ConfiguredTimeoutGovernsRequest(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()

	_, err := httprequest.NewNode().Run(context.Background(), protocol.NodeContext{
		Config: map[string]any{
			"url":     server.URL,
			"timeout": float64(1),
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestHTTPRequestNode_MissingURL(t *testing.T) {
	t.Parallel()

	_, err := httprequest.NewNode().Run(context.Background(), protocol.NodeContext{
		Config: map[string]any{"method": "GET"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url")
}
