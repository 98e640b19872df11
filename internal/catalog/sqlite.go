package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStore keeps user catalogs in relational tables. Rendered outputs are
// one row each, so appending never rewrites the rest of the catalog.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) FindUser(ctx context.Context, userID string) (*UserCatalog, error) {
	found, err := s.userExists(ctx, userID)
	if err != nil || !found {
		return nil, err
	}

	projects, err := s.listProjects(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserCatalog{UserID: userID, Projects: projects}, nil
}

// ListRenderedOutputs returns every output of the user, grouped by project in
// catalog order and oldest first within a project.
func (s *SQLiteStore) ListRenderedOutputs(ctx context.Context, userID string) ([]RenderedFile, error) {
	found, err := s.userExists(ctx, userID)
	if err != nil || !found {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT o.file_id, o.project_id, o.object_key, o.file_name, o.url, o.created_at,
		       o.duration, o.frame_rate, o.resolution, p.title
		FROM rendered_outputs o
		JOIN projects p ON p.user_id = o.user_id AND p.project_id = o.project_id
		WHERE o.user_id = ?
		ORDER BY p.position, o.rowid
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := make([]RenderedFile, 0)
	for rows.Next() {
		var f RenderedFile
		if err := scanOutput(rows, &f.RenderedOutput, &f.ProjectTitle); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) userExists(ctx context.Context, userID string) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, "SELECT user_id FROM users WHERE user_id = ?", userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) listProjects(ctx context.Context, userID string) ([]PlaylistProject, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, title FROM projects WHERE user_id = ? ORDER BY position
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]PlaylistProject, 0)
	for rows.Next() {
		var p PlaylistProject
		if err := rows.Scan(&p.ProjectID, &p.ProjectTitle); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range projects {
		clips, err := s.listClips(ctx, userID, projects[i].ProjectID)
		if err != nil {
			return nil, err
		}
		outputs, err := s.listOutputs(ctx, userID, projects[i].ProjectID)
		if err != nil {
			return nil, err
		}
		projects[i].Clips = clips
		projects[i].RenderedOutputs = outputs
	}
	return projects, nil
}

func (s *SQLiteStore) listClips(ctx context.Context, userID, projectID string) ([]Clip, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT object_key, file_name, seq_pos FROM clips
		WHERE user_id = ? AND project_id = ? ORDER BY position
	`, userID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []Clip
	for rows.Next() {
		var c Clip
		if err := rows.Scan(&c.Key, &c.FileName, &c.SeqPos); err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

func (s *SQLiteStore) listOutputs(ctx context.Context, userID, projectID string) ([]RenderedOutput, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_id, project_id, object_key, file_name, url, created_at, duration, frame_rate, resolution
		FROM rendered_outputs WHERE user_id = ? AND project_id = ? ORDER BY rowid
	`, userID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outputs []RenderedOutput
	for rows.Next() {
		var o RenderedOutput
		if err := scanOutput(rows, &o); err != nil {
			return nil, err
		}
		outputs = append(outputs, o)
	}
	return outputs, rows.Err()
}

// scanOutput reads the rendered_outputs columns in their select order,
// followed by any extra columns.
func scanOutput(rows *sql.Rows, o *RenderedOutput, extra ...any) error {
	var createdAt string
	var duration sql.NullFloat64
	var frameRate, resolution sql.NullString

	dest := append([]any{&o.FileID, &o.ProjectID, &o.Key, &o.FileName, &o.URL, &createdAt, &duration, &frameRate, &resolution}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return fmt.Errorf("rendered output %s: bad created_at %q: %w", o.FileID, createdAt, err)
	}
	o.CreatedAt = t
	if duration.Valid {
		d := duration.Float64
		o.Duration = &d
	}
	o.FrameRate = stringPtr(frameRate)
	o.Resolution = stringPtr(resolution)
	return nil
}

func (s *SQLiteStore) AppendRenderedOutput(ctx context.Context, userID, projectID string, out RenderedOutput) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO rendered_outputs (file_id, user_id, project_id, object_key, file_name, url, created_at, duration, frame_rate, resolution)
		SELECT ?, user_id, project_id, ?, ?, ?, ?, ?, ?, ?
		FROM projects WHERE user_id = ? AND project_id = ?
	`, out.FileID, out.Key, out.FileName, out.URL, out.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullFloat(out.Duration), nullString(out.FrameRate), nullString(out.Resolution),
		userID, projectID)
	if err != nil {
		return fmt.Errorf("insert rendered output: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// SaveUser replaces the whole catalog for u.UserID.
func (s *SQLiteStore) SaveUser(ctx context.Context, u *UserCatalog) error {
	if u.UserID == "" {
		return fmt.Errorf("userId is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE user_id = ?", u.UserID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO users (user_id, created_at) VALUES (?, ?)",
		u.UserID, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	for i, p := range u.Projects {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projects (user_id, project_id, title, position) VALUES (?, ?, ?, ?)
		`, u.UserID, p.ProjectID, p.ProjectTitle, i); err != nil {
			return fmt.Errorf("insert project %s: %w", p.ProjectID, err)
		}
		for j, c := range p.Clips {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO clips (user_id, project_id, position, object_key, file_name, seq_pos)
				VALUES (?, ?, ?, ?, ?, ?)
			`, u.UserID, p.ProjectID, j, c.Key, c.FileName, c.SeqPos); err != nil {
				return fmt.Errorf("insert clip %s: %w", c.Key, err)
			}
		}
		for _, o := range p.RenderedOutputs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO rendered_outputs (file_id, user_id, project_id, object_key, file_name, url, created_at, duration, frame_rate, resolution)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, o.FileID, u.UserID, p.ProjectID, o.Key, o.FileName, o.URL, o.CreatedAt.UTC().Format(time.RFC3339Nano),
				nullFloat(o.Duration), nullString(o.FrameRate), nullString(o.Resolution)); err != nil {
				return fmt.Errorf("insert rendered output %s: %w", o.FileID, err)
			}
		}
	}

	return tx.Commit()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
