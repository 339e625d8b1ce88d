package mocks

import (
	"context"

	"github.com/sleepstars/chatgate/internal/models"
)

// MockBackend implements clients.Backend for testing
type MockBackend struct {
	InvokeFunc       func(ctx context.Context, req *models.BackendChatRequest) (*models.BackendResult, error)
	InvokeStreamFunc func(ctx context.Context, req *models.BackendChatRequest) (<-chan *models.BackendEvent, error)
}

func (m *MockBackend) Invoke(ctx context.Context, req *models.BackendChatRequest) (*models.BackendResult, error) {
	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, req)
	}
	return &models.BackendResult{}, nil
}

func (m *MockBackend) InvokeStream(ctx context.Context, req *models.BackendChatRequest) (<-chan *models.BackendEvent, error) {
	if m.InvokeStreamFunc != nil {
		return m.InvokeStreamFunc(ctx, req)
	}
	ch := make(chan *models.BackendEvent)
	close(ch)
	return ch, nil
}

// Events returns a closed, buffered channel holding events.
func Events(events ...*models.BackendEvent) <-chan *models.BackendEvent {
	ch := make(chan *models.BackendEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}
