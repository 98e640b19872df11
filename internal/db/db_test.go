package db

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNew_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	tables := []string{"users", "projects", "clips", "rendered_outputs", "render_runs", "orphaned_objects", "_migrations"}
	for _, table := range tables {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestNew_WALEnabled(t *testing.T) {
	database, err := New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	var journalMode string
	if err := database.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestNew_MigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	var count int
	if err := db2.Conn().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("applied migrations = %d, want 2", count)
	}
}

func TestNew_ClosesInterruptedRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = db1.Conn().Exec(`INSERT INTO render_runs (id, user_id, project_id, state, status, started_at, finished_at) VALUES
		('r1', 'u1', 'p1', 'Concatenating', 'running', '2026-10-19T10:00:00Z', NULL),
		('r2', 'u1', 'p2', 'Fetching', 'running', '2026-10-19T10:00:01Z', NULL),
		('r3', 'u1', 'p3', 'Done', 'succeeded', '2026-10-19T09:00:00Z', '2026-10-19T09:01:00Z')`)
	if err != nil {
		t.Fatalf("insert runs: %v", err)
	}
	_, err = db1.Conn().Exec(`INSERT INTO orphaned_objects (id, user_id, project_id, object_key, file_id, error, created_at)
		VALUES ('o1', 'u1', 'p1', 'users/u1/rendered_videos/x.mp4', 'f1', 'write failed', '2026-10-19T10:00:00Z')`)
	if err != nil {
		t.Fatalf("insert orphan: %v", err)
	}
	db1.Close()

	var logs bytes.Buffer
	db2, err := New(dbPath, slog.New(slog.NewJSONHandler(&logs, nil)))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()

	for _, id := range []string{"r1", "r2"} {
		var status, msg, finished string
		err := db2.Conn().QueryRow("SELECT status, error, finished_at FROM render_runs WHERE id = ?", id).Scan(&status, &msg, &finished)
		if err != nil {
			t.Fatalf("query run %s: %v", id, err)
		}
		if status != "failed" || msg != InterruptedRunError {
			t.Errorf("run %s = (%s, %s), want (failed, %s)", id, status, msg, InterruptedRunError)
		}
		if _, err := time.Parse(time.RFC3339Nano, finished); err != nil {
			t.Errorf("run %s finished_at %q is not RFC3339: %v", id, finished, err)
		}
	}

	var status string
	if err := db2.Conn().QueryRow("SELECT status FROM render_runs WHERE id = 'r3'").Scan(&status); err != nil {
		t.Fatal(err)
	}
	if status != "succeeded" {
		t.Errorf("finished run status = %s, want succeeded", status)
	}

	out := logs.String()
	if !strings.Contains(out, `"msg":"closed render runs interrupted by restart","count":2`) {
		t.Errorf("sweep not logged with count:\n%s", out)
	}
	if !strings.Contains(out, `"msg":"rendered outputs awaiting reconciliation","count":1`) {
		t.Errorf("pending orphans not logged:\n%s", out)
	}
}
