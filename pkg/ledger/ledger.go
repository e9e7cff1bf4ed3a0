// Package ledger provides the durable idempotency store that deduplicates
// retried trigger deliveries. Records map a (workflow, event, node) key to the
// execution admitted for it and are never mutated or deleted, so replays of
// arbitrarily old events are still recognized.
package ledger

import (
	"context"
	"fmt"
)

// Key identifies one external event delivery.
type Key struct {
	WorkflowID string
	EventID    string
	NodeID     string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.WorkflowID, k.EventID, k.NodeID)
}

// Admission is the outcome of an admission attempt. When IsNew is false the
// key was already admitted and ExecutionID names the earlier execution.
type Admission struct {
	ExecutionID string
	IsNew       bool
}

// Ledger is the admission contract. Admit must be atomic under concurrent
// attempts for the same key: exactly one caller wins and proceeds to run,
// every other caller observes IsNew=false with the winner's execution id.
type Ledger interface {
	Admit(ctx context.Context, key Key, executionID string) (Admission, error)
	Close(ctx context.Context) error
}
