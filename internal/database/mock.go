package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) AppendGroup(ctx context.Context, msg NewGroupMessage) (GroupMessage, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(GroupMessage), args.Error(1)
}
func (m *MockStore) AppendPrivate(ctx context.Context, msg NewPrivateMessage) (PrivateMessage, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(PrivateMessage), args.Error(1)
}
func (m *MockStore) QueryGroup(ctx context.Context, room string, limit int) ([]GroupMessage, error) {
	args := m.Called(ctx, room, limit)
	if msgs, ok := args.Get(0).([]GroupMessage); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockStore) QueryPrivate(ctx context.Context, userA, userB string, limit int) ([]PrivateMessage, error) {
	args := m.Called(ctx, userA, userB, limit)
	if msgs, ok := args.Get(0).([]PrivateMessage); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockStore) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockStore) GetAccount(ctx context.Context, username string) (Account, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
