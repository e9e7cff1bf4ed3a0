package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/weftflow/weft/pkg/ledger"
)

// MockLedger is a mock implementation of ledger.Ledger.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Admit(ctx context.Context, key ledger.Key, executionID string) (ledger.Admission, error) {
	args := m.Called(ctx, key, executionID)

	admission, _ := args.Get(0).(ledger.Admission)

	return admission, args.Error(1)
}

func (m *MockLedger) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
