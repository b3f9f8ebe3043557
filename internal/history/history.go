// Package history persists finished run summaries in a SQLite
// database so past executions can be queried without trawling output
// directories.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/stagewright/internal/scenario"
)

// ErrNotFound reports a run id absent from the store.
var ErrNotFound = errors.New("run not found")

// Execution modes recorded with each run.
const (
	ModeBatch       = "batch"
	ModeStep        = "step"
	ModeInteractive = "interactive"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scenario_id TEXT NOT NULL,
	title TEXT NOT NULL,
	status TEXT NOT NULL,
	mode TEXT NOT NULL,
	total_steps INTEGER NOT NULL,
	passed INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	output_dir TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	completed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_scenario ON runs(scenario_id);
`

// Run is one recorded execution.
type Run struct {
	ID          int64     `json:"id"`
	ScenarioID  string    `json:"scenario_id"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	Mode        string    `json:"mode"`
	TotalSteps  int       `json:"total_steps"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	DurationMS  int64     `json:"duration_ms"`
	OutputDir   string    `json:"output_dir"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database and ensures its schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history directory: %w", err)
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts a summary row for a finished run and returns its id.
func (s *Store) Record(ctx context.Context, result *scenario.RunResult, mode, outputDir string) (int64, error) {
	sum := result.Summary()
	var completed int64
	if !result.CompletedAt.IsZero() {
		completed = result.CompletedAt.UTC().UnixMilli()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (scenario_id, title, status, mode, total_steps,
			passed, failed, skipped, duration_ms, output_dir, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ScenarioID, result.Title, string(result.Status), mode,
		sum.TotalSteps, sum.Passed, sum.Failed, sum.Skipped, sum.DurationMS,
		outputDir, result.StartedAt.UTC().UnixMilli(), completed)
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record run id: %w", err)
	}
	return id, nil
}

// List returns the most recent runs, newest first, optionally filtered
// by scenario id. limit <= 0 falls back to 20.
func (s *Store) List(ctx context.Context, limit int, scenarioID string) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, scenario_id, title, status, mode, total_steps,
		passed, failed, skipped, duration_ms, output_dir, started_at, completed_at
		FROM runs`
	args := []any{}
	if scenarioID != "" {
		query += " WHERE scenario_id = ?"
		args = append(args, scenarioID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Get returns one run by id.
func (s *Store) Get(ctx context.Context, id int64) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, scenario_id, title, status, mode, total_steps,
		passed, failed, skipped, duration_ms, output_dir, started_at, completed_at
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, err
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var started, completed int64
	err := row.Scan(&run.ID, &run.ScenarioID, &run.Title, &run.Status, &run.Mode,
		&run.TotalSteps, &run.Passed, &run.Failed, &run.Skipped, &run.DurationMS,
		&run.OutputDir, &started, &completed)
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = time.UnixMilli(started).UTC()
	if completed != 0 {
		run.CompletedAt = time.UnixMilli(completed).UTC()
	}
	return run, nil
}
