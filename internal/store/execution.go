package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Execution is one journaled pipeline run.
type Execution struct {
	Seq         int64
	ID          string
	Registry    string
	Collection  string
	Fingerprint string
	// Pipeline is the canonical JSON of the stages sent to the collection.
	Pipeline    string
	StartedAt   time.Time
	FinishedAt  time.Time
	ResultCount int64
	Error       string
}

// Done reports whether the execution's cursor has been closed.
func (e Execution) Done() bool { return !e.FinishedAt.IsZero() }

// Duration is FinishedAt - StartedAt, or zero while the execution is open.
func (e Execution) Duration() time.Duration {
	if !e.Done() {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// ExecutionFilter narrows ReadExecutions. Zero fields match everything.
type ExecutionFilter struct {
	Registry    string
	Fingerprint string
	// Limit keeps the most recent N matches, still returned oldest first.
	Limit int
}

const timeLayout = time.RFC3339Nano

// WriteExecution inserts an execution record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteExecution(ctx context.Context, e Execution) error {
	if e.ID == "" {
		return fmt.Errorf("write execution: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions
		(id, registry, collection, fingerprint, pipeline, started_at, finished_at, result_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID,
		e.Registry,
		e.Collection,
		e.Fingerprint,
		e.Pipeline,
		formatTime(e.StartedAt),
		formatTime(e.FinishedAt),
		e.ResultCount,
		e.Error,
	)
	if err != nil {
		return fmt.Errorf("write execution: %w", err)
	}
	return nil
}

// FinishExecution records the outcome of an open execution. An execution
// that is already finished keeps its first outcome.
func (s *Store) FinishExecution(ctx context.Context, id string, finishedAt time.Time, resultCount int64, errText string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE executions
		SET finished_at = ?, result_count = ?, error = ?
		WHERE id = ? AND finished_at = ''
	`,
		formatTime(finishedAt),
		resultCount,
		errText,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish execution %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish execution %s: rows affected: %w", id, err)
	}
	if n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM executions WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("finish execution %s: %w", id, sql.ErrNoRows)
		}
		if err != nil {
			return fmt.Errorf("finish execution %s: %w", id, err)
		}
	}
	return nil
}

// ReadExecution retrieves a single execution by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadExecution(ctx context.Context, id string) (Execution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, registry, collection, fingerprint, pipeline, started_at, finished_at, result_count, error
		FROM executions
		WHERE id = ?
	`, id)
	return scanExecution(row)
}

// ReadExecutions returns matching executions ordered by seq ASC, id ASC
// COLLATE BINARY. Returns an empty slice (not nil) when nothing matches.
func (s *Store) ReadExecutions(ctx context.Context, f ExecutionFilter) ([]Execution, error) {
	query := `
		SELECT seq, id, registry, collection, fingerprint, pipeline, started_at, finished_at, result_count, error
		FROM executions
		WHERE (? = '' OR registry = ?)
		  AND (? = '' OR fingerprint = ?)
	`
	args := []any{f.Registry, f.Registry, f.Fingerprint, f.Fingerprint}
	if f.Limit > 0 {
		query = `SELECT * FROM (` + query + ` ORDER BY seq DESC LIMIT ?)`
		args = append(args, f.Limit)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	executions := []Execution{}
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return executions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (Execution, error) {
	var (
		e                 Execution
		started, finished string
	)
	err := row.Scan(
		&e.Seq,
		&e.ID,
		&e.Registry,
		&e.Collection,
		&e.Fingerprint,
		&e.Pipeline,
		&started,
		&finished,
		&e.ResultCount,
		&e.Error,
	)
	if err == sql.ErrNoRows {
		return Execution{}, err
	}
	if err != nil {
		return Execution{}, fmt.Errorf("scan execution: %w", err)
	}
	if e.StartedAt, err = parseTime(started); err != nil {
		return Execution{}, fmt.Errorf("scan execution %s: started_at: %w", e.ID, err)
	}
	if e.FinishedAt, err = parseTime(finished); err != nil {
		return Execution{}, fmt.Errorf("scan execution %s: finished_at: %w", e.ID, err)
	}
	return e, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}
