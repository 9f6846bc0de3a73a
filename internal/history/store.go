package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zjrosen/amd/internal/supervisor"
)

// Run is one recorded execution.
type Run struct {
	ExecutionID string
	Trigger     string
	Path        string
	Command     string
	Status      string
	ExitCode    int
	OutputBytes int
	SpawnError  string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FromExecution summarizes a finished execution.
func FromExecution(ex *supervisor.Execution) Run {
	_, code := ex.TryWait()
	r := Run{
		ExecutionID: ex.ID(),
		Command:     ex.Command(),
		Status:      ex.Status().String(),
		ExitCode:    code,
		OutputBytes: ex.Buffer().Len(),
		StartedAt:   ex.StartedAt(),
		FinishedAt:  ex.FinishedAt(),
	}
	if t := ex.Trigger(); t != nil {
		r.Trigger = t.Kind()
		r.Path = t.Path()
	}
	if err := ex.SpawnErr(); err != nil {
		r.SpawnError = err.Error()
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}
	return r
}

// Store is the SQLite-backed run history.
type Store struct {
	db    *sql.DB
	limit int
}

// Open opens the history at path. limit caps the number of kept runs;
// zero or less keeps everything.
func Open(path string, limit int) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, limit: limit}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a finished execution and prunes beyond the limit.
func (s *Store) Record(ctx context.Context, ex *supervisor.Execution) error {
	return s.Insert(ctx, FromExecution(ex))
}

// Insert stores r. Re-inserting the same execution id replaces the row.
func (s *Store) Insert(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (
			execution_id, trigger_kind, trigger_path, command, status, exit_code, output_bytes, spawn_error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ExecutionID, r.Trigger, r.Path, r.Command, r.Status, r.ExitCode, r.OutputBytes, r.SpawnError,
		r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if s.limit > 0 {
		if err := s.prune(ctx, s.limit); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) prune(ctx context.Context, keep int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return fmt.Errorf("failed to prune runs: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT execution_id, trigger_kind, trigger_path, command, status, exit_code, output_bytes, spawn_error, started_at, finished_at
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ExecutionID, &r.Trigger, &r.Path, &r.Command, &r.Status,
			&r.ExitCode, &r.OutputBytes, &r.SpawnError, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.FinishedAt = time.UnixMilli(finished)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// Count returns the number of stored runs.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}
