package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-desktop/trading-backend/internal/runs"
)

// Memory is an in-process Store used by tests and the worker's own unit
// tests. It preserves the same atomicity and replace-semantics contracts
// as Postgres without needing a database.
type Memory struct {
	mu        sync.Mutex
	runsByID  map[uuid.UUID]runs.Run
	params    map[uuid.UUID]runs.Params
	events    map[uuid.UUID][]runs.Event
	nextEvent int64
	metrics   map[uuid.UUID]runs.Metrics
	artifacts map[uuid.UUID][]runs.Artifact
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		runsByID:  make(map[uuid.UUID]runs.Run),
		params:    make(map[uuid.UUID]runs.Params),
		events:    make(map[uuid.UUID][]runs.Event),
		metrics:   make(map[uuid.UUID]runs.Metrics),
		artifacts: make(map[uuid.UUID][]runs.Artifact),
	}
}

func (m *Memory) CreateRun(ctx context.Context, req runs.CreateRequest) (runs.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New()
	now := time.Now().UTC()
	run := runs.Run{ID: id, Name: req.Name, Kind: req.Kind, Status: runs.StatusQueued, CreatedAt: now}
	m.runsByID[id] = run
	m.params[id] = runs.Params{RunID: id, CliArgs: req.CliArgs, CreatedAt: now}
	m.appendEventLocked(id, runs.LevelInfo, "queued run "+req.Name)
	return run, nil
}

func (m *Memory) GetRun(ctx context.Context, id uuid.UUID) (runs.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runsByID[id]
	if !ok {
		return runs.Run{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListRuns(ctx context.Context, limit int) ([]runs.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit, 50, 500)
	out := make([]runs.Run, 0, len(m.runsByID))
	for _, r := range m.runsByID {
		out = append(out, r)
	}
	sortRunsByCreatedAtDesc(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) GetParams(ctx context.Context, runID uuid.UUID) (runs.Params, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.params[runID]
	if !ok {
		return runs.Params{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) MarkRunning(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runsByID[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	r.Status = runs.StatusRunning
	r.StartedAt = &now
	r.Error = nil
	r.ExitCode = nil
	m.runsByID[id] = r
	return nil
}

func (m *Memory) MarkCompleted(ctx context.Context, id uuid.UUID, exitCode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runsByID[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	r.Status = runs.StatusCompleted
	r.EndedAt = &now
	code := exitCode
	r.ExitCode = &code
	m.runsByID[id] = r
	return nil
}

func (m *Memory) MarkFailed(ctx context.Context, id uuid.UUID, exitCode *int, errMsg string) error {
	m.mu.Lock()
	r, ok := m.runsByID[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	now := time.Now().UTC()
	r.Status = runs.StatusFailed
	r.EndedAt = &now
	code := -1
	if exitCode != nil {
		code = *exitCode
	}
	r.ExitCode = &code
	r.Error = &errMsg
	m.runsByID[id] = r
	m.appendEventLocked(id, runs.LevelError, errMsg)
	m.mu.Unlock()
	return nil
}

func (m *Memory) AppendEvent(ctx context.Context, runID uuid.UUID, level runs.EventLevel, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendEventLocked(runID, level, message)
	return nil
}

func (m *Memory) appendEventLocked(runID uuid.UUID, level runs.EventLevel, message string) {
	m.nextEvent++
	m.events[runID] = append(m.events[runID], runs.Event{
		ID: m.nextEvent, RunID: runID, TS: time.Now().UTC(), Level: level, Message: message,
	})
}

func (m *Memory) ListEvents(ctx context.Context, runID uuid.UUID, limit int) ([]runs.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit, 200, 2000)
	all := m.events[runID]
	out := make([]runs.Event, 0, len(all))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *Memory) UpsertMetrics(ctx context.Context, runID uuid.UUID, payload map[string]interface{}) error {
	if len(payload) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics[runID] = runs.Metrics{RunID: runID, Payload: payload, UpdatedAt: time.Now().UTC()}
	return nil
}

func (m *Memory) GetMetrics(ctx context.Context, runID uuid.UUID) (runs.Metrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.metrics[runID]
	if !ok {
		return runs.Metrics{}, ErrNotFound
	}
	return v, nil
}

func (m *Memory) ReplaceArtifacts(ctx context.Context, runID uuid.UUID, artifacts []runs.Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[runID] = append([]runs.Artifact(nil), artifacts...)
	return nil
}

func (m *Memory) ListArtifacts(ctx context.Context, runID uuid.UUID) ([]runs.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]runs.Artifact(nil), m.artifacts[runID]...), nil
}

func sortRunsByCreatedAtDesc(rs []runs.Run) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j].CreatedAt.After(rs[j-1].CreatedAt); j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
}
