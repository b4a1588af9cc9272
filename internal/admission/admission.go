// Package admission validates and enqueues new runs: the HTTP-facing half
// of the run orchestrator. A run is durably recorded before it is ever
// pushed onto the queue, giving at-least-once delivery semantics should the
// process die between the two steps.
package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atlas-desktop/trading-backend/internal/queue"
	"github.com/atlas-desktop/trading-backend/internal/runs"
	"github.com/atlas-desktop/trading-backend/internal/store"
)

// ValidationError is a 400-class input problem, distinct from a queue or
// store failure.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// QueueError wraps a queue failure after the run was already durably
// recorded — the caller should report this as a gateway error (502), not a
// validation failure, since the run itself exists and a replay can
// re-enqueue it.
type QueueError struct {
	RunID string
	Err   error
}

func (e *QueueError) Error() string {
	return fmt.Sprintf("run %s recorded but not enqueued: %v", e.RunID, e.Err)
}
func (e *QueueError) Unwrap() error { return e.Err }

// Admitter validates, records, and enqueues runs.
type Admitter struct {
	store store.Store
	queue queue.Queue
}

// New returns an Admitter over the given store and queue.
func New(s store.Store, q queue.Queue) *Admitter {
	return &Admitter{store: s, queue: q}
}

// Submit validates req, inserts the run (and its params and first event)
// into the store, then enqueues it. The run row is always committed before
// enqueue is attempted.
func (a *Admitter) Submit(ctx context.Context, req runs.CreateRequest) (runs.Run, error) {
	if err := validate(req); err != nil {
		return runs.Run{}, err
	}

	run, err := a.store.CreateRun(ctx, req)
	if err != nil {
		return runs.Run{}, fmt.Errorf("record run: %w", err)
	}

	if err := a.queue.Push(ctx, run.ID); err != nil {
		return run, &QueueError{RunID: run.ID.String(), Err: err}
	}
	return run, nil
}

func validate(req runs.CreateRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return &ValidationError{Msg: "name cannot be empty"}
	}
	if _, ok := runs.ValidKind(string(req.Kind)); !ok {
		return &ValidationError{Msg: "unknown run kind: " + string(req.Kind)}
	}
	if len(req.CliArgs) == 0 {
		return &ValidationError{Msg: "cli_args cannot be empty"}
	}
	return nil
}

// MMMTFSweepPreset is the fixed CLI argv used by the mm_mtf_sweep preset
// endpoint. It is configuration, not a hardcoded contract: operators can
// override any of these by posting to /runs directly with explicit args.
var MMMTFSweepPreset = []string{
	"--htf-window", "200",
	"--ltf-window", "1500",
	"--levels", "1,2,3",
	"--step-bps", "10,20,40",
	"--max-size-mult", "1.5,2.0",
	"--top-n", "20",
}

// SubmitMMMTFSweepPreset records and enqueues a run using the built-in
// mm_mtf_sweep preset argv, under the given display name.
func (a *Admitter) SubmitMMMTFSweepPreset(ctx context.Context, name string) (runs.Run, error) {
	return a.Submit(ctx, runs.CreateRequest{
		Name:    name,
		Kind:    runs.KindMMMTFSweep,
		CliArgs: append([]string(nil), MMMTFSweepPreset...),
	})
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsQueueFailure reports whether err is (or wraps) a QueueError.
func IsQueueFailure(err error) bool {
	var q *QueueError
	return errors.As(err, &q)
}
