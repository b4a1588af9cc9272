package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"

	"github.com/atlas-desktop/trading-backend/internal/runs"
)

// Postgres is a Store backed by a connection pool. It scans through sqlx
// (driven by pgx's database/sql adapter) so struct-tagged row scanning stays
// in one place instead of hand-rolled Scan calls per query.
type Postgres struct {
	db *sqlx.DB
}

// Open connects to databaseURL and returns a ready Postgres store. Callers
// are responsible for running migrations before traffic is admitted.
func Open(databaseURL string) (*Postgres, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

type dbRun struct {
	ID        uuid.UUID      `db:"id"`
	Name      string         `db:"name"`
	Kind      string         `db:"kind"`
	Status    string         `db:"status"`
	CreatedAt time.Time      `db:"created_at"`
	StartedAt sql.NullTime   `db:"started_at"`
	EndedAt   sql.NullTime   `db:"ended_at"`
	ExitCode  sql.NullInt32  `db:"exit_code"`
	Error     sql.NullString `db:"error"`
}

func (r dbRun) toRun() runs.Run {
	out := runs.Run{
		ID: r.ID, Name: r.Name, Kind: runs.Kind(r.Kind), Status: runs.Status(r.Status),
		CreatedAt: r.CreatedAt,
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		out.StartedAt = &t
	}
	if r.EndedAt.Valid {
		t := r.EndedAt.Time
		out.EndedAt = &t
	}
	if r.ExitCode.Valid {
		v := int(r.ExitCode.Int32)
		out.ExitCode = &v
	}
	if r.Error.Valid {
		v := r.Error.String
		out.Error = &v
	}
	return out
}

// CreateRun inserts the run, its params, and its first event inside a
// single transaction, matching the ordering of the original admission
// handler: runs row, then run_params, then run_events.
func (p *Postgres) CreateRun(ctx context.Context, req runs.CreateRequest) (runs.Run, error) {
	id := uuid.New()
	now := time.Now().UTC()

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return runs.Run{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, name, kind, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, req.Name, string(req.Kind), string(runs.StatusQueued), now,
	)
	if err != nil {
		return runs.Run{}, err
	}

	argsJSON, err := json.Marshal(req.CliArgs)
	if err != nil {
		return runs.Run{}, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO run_params (run_id, cli_args, created_at) VALUES ($1, $2, $3)`,
		id, argsJSON, now,
	)
	if err != nil {
		return runs.Run{}, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO run_events (run_id, ts, level, message) VALUES ($1, $2, 'info', $3)`,
		id, now, "queued run "+req.Name,
	)
	if err != nil {
		return runs.Run{}, err
	}

	if err := tx.Commit(); err != nil {
		return runs.Run{}, err
	}

	return runs.Run{ID: id, Name: req.Name, Kind: req.Kind, Status: runs.StatusQueued, CreatedAt: now}, nil
}

func (p *Postgres) GetRun(ctx context.Context, id uuid.UUID) (runs.Run, error) {
	var row dbRun
	err := p.db.GetContext(ctx, &row,
		`SELECT id, name, kind, status, created_at, started_at, ended_at, exit_code, error
		 FROM runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return runs.Run{}, ErrNotFound
	}
	if err != nil {
		return runs.Run{}, err
	}
	return row.toRun(), nil
}

func (p *Postgres) ListRuns(ctx context.Context, limit int) ([]runs.Run, error) {
	limit = clampLimit(limit, 50, 500)
	var rows []dbRun
	err := p.db.SelectContext(ctx, &rows,
		`SELECT id, name, kind, status, created_at, started_at, ended_at, exit_code, error
		 FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	out := make([]runs.Run, len(rows))
	for i, r := range rows {
		out[i] = r.toRun()
	}
	return out, nil
}

func (p *Postgres) GetParams(ctx context.Context, runID uuid.UUID) (runs.Params, error) {
	var row struct {
		RunID     uuid.UUID `db:"run_id"`
		CliArgs   []byte    `db:"cli_args"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := p.db.GetContext(ctx, &row,
		`SELECT run_id, cli_args, created_at FROM run_params WHERE run_id = $1`, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return runs.Params{}, ErrNotFound
	}
	if err != nil {
		return runs.Params{}, err
	}
	var args []string
	if err := json.Unmarshal(row.CliArgs, &args); err != nil {
		return runs.Params{}, err
	}
	return runs.Params{RunID: row.RunID, CliArgs: args, CreatedAt: row.CreatedAt}, nil
}

func (p *Postgres) MarkRunning(ctx context.Context, id uuid.UUID) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE runs SET status = 'running', started_at = NOW(), error = NULL, exit_code = NULL WHERE id = $1`, id)
	return err
}

func (p *Postgres) MarkCompleted(ctx context.Context, id uuid.UUID, exitCode int) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE runs SET status = 'completed', ended_at = NOW(), exit_code = $2 WHERE id = $1`, id, exitCode)
	return err
}

func (p *Postgres) MarkFailed(ctx context.Context, id uuid.UUID, exitCode *int, errMsg string) error {
	code := -1
	if exitCode != nil {
		code = *exitCode
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE runs SET status = 'failed', ended_at = NOW(), exit_code = $2, error = $3 WHERE id = $1`,
		id, code, errMsg)
	if err != nil {
		return err
	}
	return p.AppendEvent(ctx, id, runs.LevelError, errMsg)
}

func (p *Postgres) AppendEvent(ctx context.Context, runID uuid.UUID, level runs.EventLevel, message string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO run_events (run_id, ts, level, message) VALUES ($1, NOW(), $2, $3)`,
		runID, string(level), message)
	return err
}

func (p *Postgres) ListEvents(ctx context.Context, runID uuid.UUID, limit int) ([]runs.Event, error) {
	limit = clampLimit(limit, 200, 2000)
	var rows []struct {
		ID      int64     `db:"id"`
		RunID   uuid.UUID `db:"run_id"`
		TS      time.Time `db:"ts"`
		Level   string    `db:"level"`
		Message string    `db:"message"`
	}
	err := p.db.SelectContext(ctx, &rows,
		`SELECT id, run_id, ts, level, message FROM run_events WHERE run_id = $1 ORDER BY id DESC LIMIT $2`,
		runID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]runs.Event, len(rows))
	for i, r := range rows {
		out[i] = runs.Event{ID: r.ID, RunID: r.RunID, TS: r.TS, Level: runs.EventLevel(r.Level), Message: r.Message}
	}
	return out, nil
}

// UpsertMetrics implements the upsert-replace persistence pattern: one row
// per run, overwritten wholesale on every pass.
func (p *Postgres) UpsertMetrics(ctx context.Context, runID uuid.UUID, payload map[string]interface{}) error {
	if len(payload) == 0 {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO run_metrics (run_id, payload, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (run_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`,
		runID, body)
	return err
}

func (p *Postgres) GetMetrics(ctx context.Context, runID uuid.UUID) (runs.Metrics, error) {
	var row struct {
		RunID     uuid.UUID `db:"run_id"`
		Payload   []byte    `db:"payload"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	err := p.db.GetContext(ctx, &row,
		`SELECT run_id, payload, updated_at FROM run_metrics WHERE run_id = $1`, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return runs.Metrics{}, ErrNotFound
	}
	if err != nil {
		return runs.Metrics{}, err
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(row.Payload, &payload); err != nil {
		return runs.Metrics{}, err
	}
	return runs.Metrics{RunID: row.RunID, Payload: payload, UpdatedAt: row.UpdatedAt}, nil
}

// ReplaceArtifacts implements the delete-all-then-insert persistence
// pattern used for a run's produced files.
func (p *Postgres) ReplaceArtifacts(ctx context.Context, runID uuid.UUID, artifacts []runs.Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_artifacts WHERE run_id = $1`, runID); err != nil {
		return err
	}
	for _, a := range artifacts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_artifacts (run_id, kind, path, created_at) VALUES ($1, $2, $3, NOW())`,
			runID, a.Kind, a.Path); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) ListArtifacts(ctx context.Context, runID uuid.UUID) ([]runs.Artifact, error) {
	var rows []struct {
		ID        int64     `db:"id"`
		RunID     uuid.UUID `db:"run_id"`
		Kind      string    `db:"kind"`
		Path      string    `db:"path"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := p.db.SelectContext(ctx, &rows,
		`SELECT id, run_id, kind, path, created_at FROM run_artifacts WHERE run_id = $1 ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	out := make([]runs.Artifact, len(rows))
	for i, r := range rows {
		out[i] = runs.Artifact{ID: r.ID, RunID: r.RunID, Kind: r.Kind, Path: r.Path, CreatedAt: r.CreatedAt}
	}
	return out, nil
}

func clampLimit(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
