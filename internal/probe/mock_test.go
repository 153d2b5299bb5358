package probe

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockNetwork is a mock implementation of Network
type MockNetwork struct {
	mock.Mock
}

func (m *MockNetwork) Resolve(ctx context.Context, handle string) (int64, error) {
	args := m.Called(handle)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNetwork) Send(ctx context.Context, agentID int64, text string) error {
	args := m.Called(agentID, text)
	return args.Error(0)
}

// MockRecorder is a mock implementation of Recorder
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, result Result) error {
	args := m.Called(result)
	return args.Error(0)
}
