// Package worker implements the queue-driven engine runner: pop a run id,
// spawn the matching backtest engine binary, stream its output into run
// events and metrics/artifacts, and record its terminal status.
package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/atlas-desktop/trading-backend/internal/queue"
	"github.com/atlas-desktop/trading-backend/internal/runs"
	"github.com/atlas-desktop/trading-backend/internal/store"
)

// liveVersionInterval is how often accumulated metrics/artifacts are
// flushed to the store while the engine is still running.
const liveVersionInterval = 2 * time.Second

// streamLine is one line read from either the engine's stdout or stderr,
// tagged with the event level it should be recorded at.
type streamLine struct {
	level runs.EventLevel
	line  string
	err   error
}

// Config configures a Worker.
type Config struct {
	WorkspaceRoot string
	EngineBinDir  string
}

// Worker pops runs off a queue, executes them, and persists their results.
type Worker struct {
	store  store.Store
	queue  queue.Queue
	cfg    Config
	log    *zap.Logger
	// limiter bounds how often a single run's live-persistence tick is
	// allowed to actually hit the store, guarding against a pathological
	// engine whose output makes every tick's flush expensive.
	limiterEvery time.Duration
}

// New returns a Worker over the given store/queue.
func New(s store.Store, q queue.Queue, cfg Config, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{store: s, queue: q, cfg: cfg, log: log, limiterEvery: 500 * time.Millisecond}
}

// Run blocks forever, popping and processing runs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started")
	for {
		runID, err := w.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error("queue pop failed", zap.Error(err))
			continue
		}
		if err := w.processRun(ctx, runID); err != nil {
			w.log.Error("run failed", zap.String("run_id", runID.String()), zap.Error(err))
			_ = w.store.MarkFailed(ctx, runID, nil, err.Error())
		}
	}
}

func (w *Worker) processRun(ctx context.Context, runID uuid.UUID) error {
	run, err := w.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("run %s not found: %w", runID, err)
	}
	params, err := w.store.GetParams(ctx, runID)
	if err != nil {
		return fmt.Errorf("params for run %s not found: %w", runID, err)
	}

	engineBin, ok := run.Kind.EngineBin()
	if !ok {
		return fmt.Errorf("unknown run kind: %s", run.Kind)
	}

	if err := w.store.MarkRunning(ctx, runID); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	_ = w.store.AppendEvent(ctx, runID, runs.LevelInfo, "started worker execution")

	enginePath := filepath.Join(w.cfg.EngineBinDir, engineBin)
	cmd := exec.CommandContext(ctx, enginePath, params.CliArgs...)
	cmd.Dir = w.cfg.WorkspaceRoot

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to spawn backtest process %s: %w", enginePath, err)
	}

	metrics := make(map[string]interface{})
	var artifacts []artifactEntry

	lines := make(chan streamLine)
	var streamWg sync.WaitGroup
	streamWg.Add(2)
	readStream := func(r io.Reader, level runs.EventLevel) {
		defer streamWg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- streamLine{level: level, line: scanner.Text()}
		}
		if err := scanner.Err(); err != nil {
			lines <- streamLine{level: runs.LevelError, err: err}
		}
	}
	go readStream(stdout, runs.LevelInfo)
	go readStream(stderr, runs.LevelError)
	go func() {
		streamWg.Wait()
		close(lines)
	}()

	done := make(chan error, 1)
	go func() {
		// cmd.Wait closes the pipes, so it runs only once both readers
		// have reached EOF.
		streamWg.Wait()
		done <- cmd.Wait()
	}()

	limiter := rate.NewLimiter(rate.Every(w.limiterEvery), 1)
	ticker := time.NewTicker(liveVersionInterval)
	defer ticker.Stop()

	var waitErr error
	linesOpen := true
	childDone := false

	for linesOpen || !childDone {
		select {
		case sl, ok := <-lines:
			if !ok {
				lines = nil
				linesOpen = false
				continue
			}
			if sl.err != nil {
				_ = w.store.AppendEvent(ctx, runID, runs.LevelError, fmt.Sprintf("stream read error: %v", sl.err))
				continue
			}
			collectResultsFromLine(sl.line, metrics, &artifacts)
			_ = w.store.AppendEvent(ctx, runID, sl.level, sl.line)
		case <-ticker.C:
			if limiter.Allow() {
				w.persist(ctx, runID, metrics, artifacts)
			}
		case waitErr = <-done:
			childDone = true
		}
	}

	w.persist(ctx, runID, metrics, artifacts)

	if waitErr == nil {
		if err := w.store.MarkCompleted(ctx, runID, 0); err != nil {
			return fmt.Errorf("mark completed: %w", err)
		}
		_ = w.store.AppendEvent(ctx, runID, runs.LevelInfo, "run completed")
		return nil
	}

	code := -1
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	}
	return w.store.MarkFailed(ctx, runID, &code, "engine process exited with failure")
}

// persist flushes accumulated metrics/artifacts, expanding any equity/fills
// artifact into a sampled chart snapshot merged into the metrics payload.
func (w *Worker) persist(ctx context.Context, runID uuid.UUID, metrics map[string]interface{}, artifacts []artifactEntry) {
	for _, a := range artifacts {
		if key, rows, ok := chartSnapshot(a.kind, a.path); ok {
			metrics[key] = rows
		}
	}
	if len(metrics) > 0 {
		if err := w.store.UpsertMetrics(ctx, runID, metrics); err != nil {
			w.log.Error("upsert metrics failed", zap.String("run_id", runID.String()), zap.Error(err))
		}
	}
	if len(artifacts) > 0 {
		if err := w.store.ReplaceArtifacts(ctx, runID, toRunsArtifacts(runID, artifacts)); err != nil {
			w.log.Error("replace artifacts failed", zap.String("run_id", runID.String()), zap.Error(err))
		}
	}
}

