// Command enginectl is an operator tool for inspecting and replaying runs
// directly against the store and queue, bypassing the admission HTTP API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/atlas-desktop/trading-backend/internal/config"
	"github.com/atlas-desktop/trading-backend/internal/queue"
	"github.com/atlas-desktop/trading-backend/internal/store"
)

func parseRunID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("invalid run id %q: %w", s, err)
	}
	return id, nil
}

var rootCmd = &cobra.Command{
	Use:   "enginectl",
	Short: "Inspect and replay runs in the mmbot run orchestrator",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (*store.Postgres, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.DatabaseURL)
}

func openQueue() (*queue.Redis, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return queue.Open(cfg.RedisURL)
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a run's record, recent events, metrics, and artifacts",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent runs",
	RunE:  runList,
}

var requeueCmd = &cobra.Command{
	Use:   "requeue <run-id>",
	Short: "Re-push a run's id onto the durable queue without re-validating or re-recording it",
	Long: `requeue is the operator-side recovery path for a QueueUnavailable admission
failure: the run row was already durably inserted but the enqueue step
failed, so the run exists but no worker will ever pick it up on its own.
This pushes the existing run id back onto the queue directly.`,
	Args: cobra.ExactArgs(1),
	RunE: runRequeue,
}

var listLimit int

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "max runs to list")
	rootCmd.AddCommand(showCmd, listCmd, requeueCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseRunID(args[0])
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	run, err := st.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	fmt.Printf("id=%s name=%q kind=%s status=%s exit_code=%v error=%v\n",
		run.ID, run.Name, run.Kind, run.Status, run.ExitCode, run.Error)

	events, err := st.ListEvents(ctx, id, 20)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	fmt.Printf("\nlast %d events (newest first):\n", len(events))
	for _, e := range events {
		fmt.Printf("  [%s] %s: %s\n", e.TS.Format("15:04:05"), e.Level, e.Message)
	}

	metrics, err := st.GetMetrics(ctx, id)
	if err == nil {
		fmt.Printf("\nmetrics (%d keys)\n", len(metrics.Payload))
	}

	artifacts, err := st.ListArtifacts(ctx, id)
	if err == nil {
		fmt.Printf("\nartifacts:\n")
		for _, a := range artifacts {
			fmt.Printf("  %s -> %s\n", a.Kind, a.Path)
		}
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	runsList, err := st.ListRuns(context.Background(), listLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	for _, r := range runsList {
		fmt.Printf("%s  %-10s  %-22s  %s\n", r.ID, r.Status, r.Kind, r.Name)
	}
	return nil
}

func runRequeue(cmd *cobra.Command, args []string) error {
	id, err := parseRunID(args[0])
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	run, err := st.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}

	q, err := openQueue()
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer q.Close()

	if err := q.Push(ctx, run.ID); err != nil {
		return fmt.Errorf("requeue: %w", err)
	}
	fmt.Printf("requeued run %s (was %s)\n", run.ID, run.Status)
	return nil
}
