// Package queue implements the durable FIFO the admission layer pushes run
// IDs onto and the worker pops them from.
package queue

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/atlas-desktop/trading-backend/internal/runs"
)

// Queue is the durable FIFO boundary.
type Queue interface {
	// Push enqueues runID at the head, matching LPUSH semantics.
	Push(ctx context.Context, runID uuid.UUID) error
	// Pop blocks until a run ID is available, matching BRPOP with no
	// timeout — callers cancel via ctx to stop waiting.
	Pop(ctx context.Context) (uuid.UUID, error)
}

// Redis is a Queue backed by a single list key, BRPOP/LPUSH.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Open connects to redisURL and returns a ready Redis queue.
func Open(redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

func (r *Redis) Push(ctx context.Context, runID uuid.UUID) error {
	return r.client.LPush(ctx, runs.QueueKey, runID.String()).Err()
}

// Pop uses a 0-second (infinite) BRPOP timeout, matching the original
// worker's blocking pop. Cancelling ctx ends the wait; a connection error
// is returned to the caller without a retry.
func (r *Redis) Pop(ctx context.Context) (uuid.UUID, error) {
	res, err := r.client.BRPop(ctx, 0, runs.QueueKey).Result()
	if err != nil {
		return uuid.UUID{}, err
	}
	// BRPop returns [key, value].
	return uuid.Parse(res[1])
}

func (r *Redis) Close() error { return r.client.Close() }
