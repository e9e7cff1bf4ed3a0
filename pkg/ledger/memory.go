package ledger

import (
	"context"
	"sync"
)

// MemoryLedger is the in-process ledger used by tests and single-node
// development setups.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[Key]string
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[Key]string)}
}

func (l *MemoryLedger) Admit(ctx context.Context, key Key, executionID string) (Admission, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.records[key]; ok {
		return Admission{ExecutionID: existing, IsNew: false}, nil
	}

	l.records[key] = executionID

	return Admission{ExecutionID: executionID, IsNew: true}, nil
}

func (l *MemoryLedger) Close(_ context.Context) error {
	return nil
}
