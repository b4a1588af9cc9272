// Package store persists run orchestrator state: the run lifecycle record,
// its immutable CLI params, append-only events, upsert-replace metrics, and
// replaced-per-pass artifacts.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/atlas-desktop/trading-backend/internal/runs"
)

// Store is the persistence boundary the admission layer and worker depend
// on. Implementations must make CreateRun atomic: a run is visible to
// ListRuns only once its params row has also committed.
type Store interface {
	CreateRun(ctx context.Context, req runs.CreateRequest) (runs.Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (runs.Run, error)
	ListRuns(ctx context.Context, limit int) ([]runs.Run, error)
	GetParams(ctx context.Context, runID uuid.UUID) (runs.Params, error)

	MarkRunning(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, exitCode int) error
	MarkFailed(ctx context.Context, id uuid.UUID, exitCode *int, errMsg string) error

	AppendEvent(ctx context.Context, runID uuid.UUID, level runs.EventLevel, message string) error
	ListEvents(ctx context.Context, runID uuid.UUID, limit int) ([]runs.Event, error)

	UpsertMetrics(ctx context.Context, runID uuid.UUID, payload map[string]interface{}) error
	GetMetrics(ctx context.Context, runID uuid.UUID) (runs.Metrics, error)

	ReplaceArtifacts(ctx context.Context, runID uuid.UUID, artifacts []runs.Artifact) error
	ListArtifacts(ctx context.Context, runID uuid.UUID) ([]runs.Artifact, error)
}

// ErrNotFound is returned when a run, its params, or its metrics don't exist.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }
