package httprequest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The shared client must not carry its own deadline: a Client.Timeout shorter
// than the configured per-request timeout would silently cap it.
func TestNewNode_ClientTimeoutUnset(t *testing.T) {
	t.Parallel()

	assert.Zero(t, NewNode().client.Timeout)
}
