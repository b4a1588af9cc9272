package admission

import (
	"context"
	"testing"

	"github.com/atlas-desktop/trading-backend/internal/queue"
	"github.com/atlas-desktop/trading-backend/internal/runs"
	"github.com/atlas-desktop/trading-backend/internal/store"
)

func newTestAdmitter() (*Admitter, *store.Memory, *queue.Memory) {
	s := store.NewMemory()
	q := queue.NewMemory(16)
	return New(s, q), s, q
}

func TestSubmitRejectsEmptyName(t *testing.T) {
	a, _, _ := newTestAdmitter()
	_, err := a.Submit(context.Background(), runs.CreateRequest{
		Name: "  ", Kind: runs.KindMM, CliArgs: []string{"--window", "200"},
	})
	if !IsValidation(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestSubmitRejectsUnknownKind(t *testing.T) {
	a, _, _ := newTestAdmitter()
	_, err := a.Submit(context.Background(), runs.CreateRequest{
		Name: "run-1", Kind: "backtest_unknown", CliArgs: []string{"--window", "200"},
	})
	if !IsValidation(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestSubmitRejectsEmptyArgs(t *testing.T) {
	a, _, _ := newTestAdmitter()
	_, err := a.Submit(context.Background(), runs.CreateRequest{
		Name: "run-1", Kind: runs.KindMM, CliArgs: nil,
	})
	if !IsValidation(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestSubmitRecordsThenEnqueues(t *testing.T) {
	a, s, q := newTestAdmitter()
	ctx := context.Background()

	run, err := a.Submit(ctx, runs.CreateRequest{
		Name: "run-1", Kind: runs.KindMM, CliArgs: []string{"--window", "200"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if run.Status != runs.StatusQueued {
		t.Fatalf("expected queued status, got %v", run.Status)
	}

	if _, err := s.GetRun(ctx, run.ID); err != nil {
		t.Fatalf("run not recorded: %v", err)
	}
	if _, err := s.GetParams(ctx, run.ID); err != nil {
		t.Fatalf("params not recorded: %v", err)
	}

	popped, err := q.Pop(ctx)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if popped != run.ID {
		t.Fatalf("expected %v enqueued, got %v", run.ID, popped)
	}
}

func TestSubmitMMMTFSweepPresetUsesFixedArgv(t *testing.T) {
	a, s, _ := newTestAdmitter()
	ctx := context.Background()

	run, err := a.SubmitMMMTFSweepPreset(ctx, "nightly-sweep")
	if err != nil {
		t.Fatalf("submit preset: %v", err)
	}
	if run.Kind != runs.KindMMMTFSweep {
		t.Fatalf("expected mm_mtf_sweep kind, got %v", run.Kind)
	}

	params, err := s.GetParams(ctx, run.ID)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if len(params.CliArgs) != len(MMMTFSweepPreset) {
		t.Fatalf("expected preset argv to be recorded verbatim, got %v", params.CliArgs)
	}
}
