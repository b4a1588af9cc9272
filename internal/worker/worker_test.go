package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/queue"
	"github.com/atlas-desktop/trading-backend/internal/runs"
	"github.com/atlas-desktop/trading-backend/internal/store"
)

func TestCollectResultsFromLineParsesArtifactsAndMetrics(t *testing.T) {
	metrics := make(map[string]interface{})
	var artifacts []artifactEntry

	collectResultsFromLine(`artifacts: equity=./out/equity.csv, fills=./out/fills.csv`, metrics, &artifacts)
	collectResultsFromLine(`roi_pct=12.5% win_rate="61.2" label=defensive`, metrics, &artifacts)

	if len(artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %v", artifacts)
	}
	if artifacts[0].kind != "equity" || artifacts[0].path != "./out/equity.csv" {
		t.Fatalf("unexpected first artifact: %+v", artifacts[0])
	}
	if metrics["roi_pct"] != 12.5 {
		t.Fatalf("expected roi_pct parsed as float 12.5, got %v", metrics["roi_pct"])
	}
	if metrics["win_rate"] != 61.2 {
		t.Fatalf("expected win_rate parsed as float after quote stripping, got %v", metrics["win_rate"])
	}
	if metrics["label"] != "defensive" {
		t.Fatalf("expected label stored as string, got %v", metrics["label"])
	}
}

func TestCollectResultsFromLineIgnoresMalformedTokens(t *testing.T) {
	metrics := make(map[string]interface{})
	var artifacts []artifactEntry
	collectResultsFromLine(`just some text without equals signs`, metrics, &artifacts)
	if len(metrics) != 0 || len(artifacts) != 0 {
		t.Fatalf("expected no tokens extracted, got metrics=%v artifacts=%v", metrics, artifacts)
	}
}

func TestChartSnapshotSamplesEquityCSVByHeaderAlias(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "equity.csv")
	rows := "timestamp,final_equity,price\n"
	for i := 0; i < 2000; i++ {
		rows += fmt.Sprintf("%d,%f,%f\n", i, 1000.0+float64(i), 100.0)
	}
	if err := os.WriteFile(path, []byte(rows), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	key, sampled, ok := chartSnapshot("equity", path)
	if !ok {
		t.Fatalf("expected chartSnapshot to succeed")
	}
	if key != "chart_equity" {
		t.Fatalf("expected chart_equity key, got %s", key)
	}
	if len(sampled) != chartEquityMaxRows {
		t.Fatalf("expected %d sampled rows, got %d", chartEquityMaxRows, len(sampled))
	}
	if sampled[0]["equity"] == nil {
		t.Fatalf("expected final_equity alias to resolve to equity field, got %v", sampled[0])
	}
}

func TestChartSnapshotRejectsUnknownKind(t *testing.T) {
	_, _, ok := chartSnapshot("logs", "/does/not/matter")
	if ok {
		t.Fatalf("expected unknown artifact kind to be rejected")
	}
}

func writeFakeEngine(t *testing.T, dir, name, script string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write fake engine: %v", err)
	}
}

func TestProcessRunCompletesAndPersistsMetricsAndCharts(t *testing.T) {
	binDir := t.TempDir()
	workspace := t.TempDir()
	writeFakeEngine(t, binDir, "backtest-mm", `
cat > equity.csv <<'EOF'
ts,equity
1,1000
2,1010
3,1020
EOF
echo "pnl=30.0 roi_pct=3.0%"
echo "artifacts: equity=$(pwd)/equity.csv"
exit 0
`)

	s := store.NewMemory()
	q := queue.NewMemory(4)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, runs.CreateRequest{Name: "r1", Kind: runs.KindMM, CliArgs: []string{}})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}

	w := New(s, q, Config{WorkspaceRoot: workspace, EngineBinDir: binDir}, nil)
	w.limiterEvery = time.Millisecond

	if err := w.processRun(ctx, run.ID); err != nil {
		t.Fatalf("process run: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != runs.StatusCompleted {
		t.Fatalf("expected completed status, got %v", got.Status)
	}
	if got.ExitCode == nil || *got.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %v", got.ExitCode)
	}

	metrics, err := s.GetMetrics(ctx, run.ID)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	if metrics.Payload["pnl"] != 30.0 {
		t.Fatalf("expected pnl metric 30.0, got %v", metrics.Payload["pnl"])
	}
	if _, ok := metrics.Payload["chart_equity"]; !ok {
		t.Fatalf("expected chart_equity snapshot to be merged into metrics")
	}

	artifacts, err := s.ListArtifacts(ctx, run.ID)
	if err != nil {
		t.Fatalf("list artifacts: %v", err)
	}
	if len(artifacts) != 1 || artifacts[0].Kind != "equity" {
		t.Fatalf("expected one equity artifact, got %v", artifacts)
	}
}

func TestProcessRunMarksFailedOnNonZeroExit(t *testing.T) {
	binDir := t.TempDir()
	workspace := t.TempDir()
	writeFakeEngine(t, binDir, "backtest-mm", `
echo "validation error" 1>&2
exit 7
`)

	s := store.NewMemory()
	q := queue.NewMemory(4)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, runs.CreateRequest{Name: "r2", Kind: runs.KindMM, CliArgs: []string{}})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}

	w := New(s, q, Config{WorkspaceRoot: workspace, EngineBinDir: binDir}, nil)
	if err := w.processRun(ctx, run.ID); err != nil {
		t.Fatalf("process run returned an error instead of marking failed: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Status != runs.StatusFailed {
		t.Fatalf("expected failed status, got %v", got.Status)
	}
	if got.ExitCode == nil || *got.ExitCode != 7 {
		t.Fatalf("expected exit code 7, got %v", got.ExitCode)
	}
}
