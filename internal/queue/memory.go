package queue

import (
	"context"

	"github.com/google/uuid"
)

// Memory is an in-process Queue used by tests, backed by a buffered channel.
type Memory struct {
	ch chan uuid.UUID
}

// NewMemory returns an empty Memory queue with the given buffer size.
func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Memory{ch: make(chan uuid.UUID, buffer)}
}

func (m *Memory) Push(ctx context.Context, runID uuid.UUID) error {
	select {
	case m.ch <- runID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Pop(ctx context.Context) (uuid.UUID, error) {
	select {
	case id := <-m.ch:
		return id, nil
	case <-ctx.Done():
		return uuid.UUID{}, ctx.Err()
	}
}
