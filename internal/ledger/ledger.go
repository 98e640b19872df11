// Package ledger records render attempts and published objects that never
// reached the catalog, so operators can audit and reconcile them.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ErrOrphanNotFound is returned by MarkReconciled for an unknown id.
var ErrOrphanNotFound = errors.New("orphan not found")

// Run is one playlist render attempt.
type Run struct {
	ID         string     `json:"id"`
	RequestID  string     `json:"request_id,omitempty"`
	UserID     string     `json:"user_id"`
	ProjectID  string     `json:"project_id"`
	State      string     `json:"state"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	FileID     string     `json:"file_id,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Orphan is a published object with no catalog record pointing at it.
type Orphan struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	ProjectID    string     `json:"project_id"`
	ObjectKey    string     `json:"object_key"`
	FileID       string     `json:"file_id"`
	Error        string     `json:"error"`
	CreatedAt    time.Time  `json:"created_at"`
	Reconciled   bool       `json:"reconciled"`
	ReconciledAt *time.Time `json:"reconciled_at,omitempty"`
}

type Ledger interface {
	RecordRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	RecordOrphan(ctx context.Context, o *Orphan) error
	ListOrphans(ctx context.Context, includeReconciled bool) ([]*Orphan, error)
	MarkReconciled(ctx context.Context, id string) error
}

type SQLiteLedger struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteLedger(db *sql.DB) *SQLiteLedger {
	return &SQLiteLedger{db: db, now: time.Now}
}

// RecordRun inserts or replaces the run, assigning an id when empty.
func (l *SQLiteLedger) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = l.now()
	}
	var finished sql.NullString
	if run.FinishedAt != nil {
		finished = sql.NullString{String: run.FinishedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO render_runs (id, request_id, user_id, project_id, state, status, error, file_id, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.RequestID, run.UserID, run.ProjectID, run.State, run.Status,
		nullString(run.Error), nullString(run.FileID), run.StartedAt.UTC().Format(time.RFC3339Nano), finished)
	return err
}

// ListRuns returns the most recent runs first.
func (l *SQLiteLedger) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, request_id, user_id, project_id, state, status, error, file_id, started_at, finished_at
		FROM render_runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var errMsg, fileID, finishedAt sql.NullString
		var startedAt string

		if err := rows.Scan(&r.ID, &r.RequestID, &r.UserID, &r.ProjectID, &r.State, &r.Status, &errMsg, &fileID, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		r.Error = errMsg.String
		r.FileID = fileID.String
		started, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("render run %s: bad started_at %q: %w", r.ID, startedAt, err)
		}
		r.StartedAt = started
		r.FinishedAt = parseTime(finishedAt)
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

func (l *SQLiteLedger) RecordOrphan(ctx context.Context, o *Orphan) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = l.now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO orphaned_objects (id, user_id, project_id, object_key, file_id, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.UserID, o.ProjectID, o.ObjectKey, o.FileID, o.Error, o.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// ListOrphans returns orphans oldest first; reconciled ones only on request.
func (l *SQLiteLedger) ListOrphans(ctx context.Context, includeReconciled bool) ([]*Orphan, error) {
	query := `
		SELECT id, user_id, project_id, object_key, file_id, error, created_at, reconciled, reconciled_at
		FROM orphaned_objects`
	if !includeReconciled {
		query += ` WHERE reconciled = 0`
	}
	query += ` ORDER BY created_at ASC, rowid ASC`

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orphans []*Orphan
	for rows.Next() {
		var o Orphan
		var createdAt string
		var reconciled int
		var reconciledAt sql.NullString

		if err := rows.Scan(&o.ID, &o.UserID, &o.ProjectID, &o.ObjectKey, &o.FileID, &o.Error, &createdAt, &reconciled, &reconciledAt); err != nil {
			return nil, err
		}
		created, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("orphan %s: bad created_at %q: %w", o.ID, createdAt, err)
		}
		o.CreatedAt = created
		o.Reconciled = reconciled == 1
		o.ReconciledAt = parseTime(reconciledAt)
		orphans = append(orphans, &o)
	}
	return orphans, rows.Err()
}

func (l *SQLiteLedger) MarkReconciled(ctx context.Context, id string) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE orphaned_objects SET reconciled = 1, reconciled_at = ? WHERE id = ?
	`, l.now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrphanNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}
