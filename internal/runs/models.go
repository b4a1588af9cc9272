// Package runs defines the run orchestrator's lifecycle DTOs: the Run
// record, its immutable params, append-only events, upserted metrics, and
// replaced-per-pass artifacts.
package runs

import (
	"time"

	"github.com/google/uuid"
)

// QueueKey is the durable FIFO key runs are pushed/popped under.
const QueueKey = "mmbot:run_queue"

// Kind is one of the five backtest engine kinds.
type Kind string

const (
	KindTrend        Kind = "backtest_trend"
	KindTrendSweep   Kind = "backtest_trend_sweep"
	KindMM           Kind = "backtest_mm"
	KindMMMTF        Kind = "backtest_mm_mtf"
	KindMMMTFSweep   Kind = "backtest_mm_mtf_sweep"
)

// EngineBin returns the engine binary name for this run kind.
func (k Kind) EngineBin() (string, bool) {
	switch k {
	case KindTrend:
		return "backtest-trend", true
	case KindTrendSweep:
		return "backtest-trend-sweep", true
	case KindMM:
		return "backtest-mm", true
	case KindMMMTF:
		return "backtest-mm-mtf", true
	case KindMMMTFSweep:
		return "backtest-mm-mtf-sweep", true
	default:
		return "", false
	}
}

// ValidKind reports whether s is one of the five known kind strings.
func ValidKind(s string) (Kind, bool) {
	k := Kind(s)
	if _, ok := k.EngineBin(); ok {
		return k, true
	}
	return "", false
}

// Status is the run's lifecycle status. Terminal statuses (Completed,
// Failed) are sticky.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is the top-level lifecycle record.
type Run struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Kind      Kind       `json:"kind"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	ExitCode  *int       `json:"exit_code,omitempty"`
	Error     *string    `json:"error,omitempty"`
}

// Params are a run's immutable CLI arguments.
type Params struct {
	RunID     uuid.UUID `json:"run_id"`
	CliArgs   []string  `json:"cli_args"`
	CreatedAt time.Time `json:"created_at"`
}

// EventLevel is the severity of a run event.
type EventLevel string

const (
	LevelInfo  EventLevel = "info"
	LevelError EventLevel = "error"
)

// Event is one append-only line in a run's log.
type Event struct {
	ID      int64      `json:"id"`
	RunID   uuid.UUID  `json:"run_id"`
	TS      time.Time  `json:"ts"`
	Level   EventLevel `json:"level"`
	Message string     `json:"message"`
}

// Metrics is the upsert-replace, free-form key/value metrics payload for a
// run.
type Metrics struct {
	RunID     uuid.UUID              `json:"run_id"`
	Payload   map[string]interface{} `json:"payload"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Artifact is one file produced by a run, replaced as a set per persistence
// pass.
type Artifact struct {
	ID        int64     `json:"id"`
	RunID     uuid.UUID `json:"run_id"`
	Kind      string    `json:"kind"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateRequest is the admission layer's input.
type CreateRequest struct {
	Name    string   `json:"name"`
	Kind    Kind     `json:"kind"`
	CliArgs []string `json:"cli_args"`
}
