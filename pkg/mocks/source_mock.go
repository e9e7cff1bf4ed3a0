package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/weftflow/weft/pkg/protocol"
)

// MockPollSource is a mock implementation of protocol.PollSource.
type MockPollSource struct {
	mock.Mock
}

func (m *MockPollSource) Name() string {
	args := m.Called()

	return args.String(0)
}

func (m *MockPollSource) Poll(ctx context.Context, config map[string]any, cursor string) ([]protocol.PollItem, error) {
	args := m.Called(ctx, config, cursor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]protocol.PollItem), args.Error(1)
}
