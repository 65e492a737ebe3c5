package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockBackend is a mock implementation of the Backend interface for testing.
type MockBackend struct {
	mock.Mock
}

// Open is the mock implementation of the Open method.
func (m *MockBackend) Open(ctx context.Context) error {
	return m.Called(ctx).Error(0) //nolint:wrapcheck
}

// Save is the mock implementation of the Save method.
func (m *MockBackend) Save(ctx context.Context, values []any) error {
	return m.Called(ctx, values).Error(0) //nolint:wrapcheck
}

// Close is the mock implementation of the Close method.
func (m *MockBackend) Close() error {
	return m.Called().Error(0) //nolint:wrapcheck
}
