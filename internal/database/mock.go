package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMessageRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}

func (m *MockMessageRepository) ListMessages(ctx context.Context, room string) ([]Message, error) {
	args := m.Called(room)
	messages, _ := args.Get(0).([]Message)
	return messages, args.Error(1)
}
