package protocol

import "context"

// PollItem is one external record discovered by a poll tick. EventID feeds the
// idempotent admission entry point so re-delivered items deduplicate; Cursor
// is the value to persist once the item has been admitted.
type PollItem struct {
	EventID string
	Cursor  string
	Payload map[string]any
}

// PollSource fetches external records newer than the given cursor. Sources are
// registered with the poll runner by name; their internals (third-party API
// calls, pagination) are their own concern. Items must be returned oldest
// first so cursor advancement is monotonic.
type PollSource interface {
	Name() string
	Poll(ctx context.Context, config map[string]any, cursor string) ([]PollItem, error)
}
