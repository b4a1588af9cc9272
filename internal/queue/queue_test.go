package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryQueuePushThenPopFIFO(t *testing.T) {
	q := NewMemory(4)
	ctx := context.Background()

	a := uuid.New()
	b := uuid.New()
	if err := q.Push(ctx, a); err != nil {
		t.Fatalf("push a: %v", err)
	}
	if err := q.Push(ctx, b); err != nil {
		t.Fatalf("push b: %v", err)
	}

	got, err := q.Pop(ctx)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if got != a {
		t.Fatalf("expected FIFO order, got %v want %v", got, a)
	}
}

func TestMemoryQueuePopRespectsContextCancellation(t *testing.T) {
	q := NewMemory(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	if err == nil {
		t.Fatalf("expected an error from an empty queue with a cancelled context")
	}
}
