// Package render turns a user's playlists into published, catalogued videos.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/clipreel/clipreel/internal/catalog"
	"github.com/clipreel/clipreel/internal/ledger"
	"github.com/clipreel/clipreel/internal/logging"
)

// Request asks for the given playlists of one user to be rendered.
type Request struct {
	UserID      string   `json:"userId"`
	PlaylistIDs []string `json:"playlistIds"`
	RequestID   string   `json:"-"`
}

// Validate rejects requests with an absent user or playlist list. An empty
// list is allowed and renders nothing.
func (r Request) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}
	if r.PlaylistIDs == nil {
		return fmt.Errorf("%w: playlistIds is required", ErrInvalidRequest)
	}
	return nil
}

// Outcome holds one Result per rendered playlist, in request order.
// Playlists missing from the catalog have no entry.
type Outcome struct {
	Results []Result
}

// Outputs returns the successful renders in request order, never nil.
func (o *Outcome) Outputs() []catalog.RenderedOutput {
	outs := make([]catalog.RenderedOutput, 0, len(o.Results))
	for _, r := range o.Results {
		if r.Ok() {
			outs = append(outs, *r.Output)
		}
	}
	return outs
}

// RunRecorder stores the outcome of each playlist attempt.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *ledger.Run) error
}

type ServiceConfig struct {
	Catalog      catalog.Store
	Renderer     *PlaylistRenderer
	Runs         RunRecorder // optional
	WorkspaceDir string      // parent of per-request workspaces, empty for os temp dir
	Concurrency  int         // playlists rendered at once, <=1 means sequential
	Logger       *slog.Logger
}

// Service handles render requests.
type Service struct {
	catalog      catalog.Store
	renderer     *PlaylistRenderer
	runs         RunRecorder
	workspaceDir string
	concurrency  int
	logger       *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Service{
		catalog:      cfg.Catalog,
		renderer:     cfg.Renderer,
		runs:         cfg.Runs,
		workspaceDir: cfg.WorkspaceDir,
		concurrency:  cfg.Concurrency,
		logger:       logging.WithComponent(logger, "render"),
	}
}

// Render validates req, loads the catalog once and renders each requested
// playlist inside a single workspace that is removed before returning.
// Per-playlist failures are reported in the Outcome, not as an error.
func (s *Service) Render(ctx context.Context, req Request) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	logger := logging.WithUserID(s.logger, req.UserID)
	if req.RequestID != "" {
		logger = logging.WithRequestID(logger, req.RequestID)
	}

	user, err := s.catalog.FindUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if user == nil || len(user.Projects) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.UserID)
	}

	ws, err := NewWorkspace(s.workspaceDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ws.Close(); err != nil {
			logger.Error("failed to remove workspace", "dir", logging.SanitizePath(ws.Dir()), "error", err)
		}
	}()

	type job struct {
		index   int
		project *catalog.PlaylistProject
	}
	var jobs []job
	for i, id := range req.PlaylistIDs {
		p := user.Project(id)
		if p == nil {
			logger.Warn("playlist not in catalog, skipping", "playlist_id", id)
			continue
		}
		jobs = append(jobs, job{index: i, project: p})
	}

	results := make([]Result, len(jobs))
	run := func(n int) error {
		j := jobs[n]
		res, err := s.renderOne(ctx, req, j.project, ws.PlaylistDir(j.index, j.project.ProjectID))
		if err != nil {
			return err
		}
		results[n] = res
		return nil
	}

	if s.concurrency == 1 || len(jobs) < 2 {
		for n := range jobs {
			if err := run(n); err != nil {
				return nil, err
			}
		}
	} else {
		var g errgroup.Group
		g.SetLimit(s.concurrency)
		for n := range jobs {
			n := n // per-iteration copy; go directive is 1.21 (pre-1.22 loop semantics)
			g.Go(func() error { return run(n) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	outcome := &Outcome{Results: results}
	logger.Info("render request complete",
		"requested", len(req.PlaylistIDs),
		"rendered", len(outcome.Outputs()),
		"attempted", len(jobs),
	)
	return outcome, nil
}

// panickedState is the ledger state of a run cut short by a panic.
const panickedState = "Panicked"

// renderOne converts a panic inside one playlist into a request-level error.
// The run is in the ledger as running before any work starts, so a crash
// leaves a row for the startup sweep to close.
func (s *Service) renderOne(ctx context.Context, req Request, p *catalog.PlaylistProject, dir string) (res Result, err error) {
	run := &ledger.Run{
		ID:        uuid.New().String(),
		RequestID: req.RequestID,
		UserID:    req.UserID,
		ProjectID: p.ProjectID,
		State:     string(StageFetching),
		Status:    ledger.StatusRunning,
		StartedAt: time.Now(),
	}
	s.recordRun(ctx, run)

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic while rendering playlist",
				"playlist_id", p.ProjectID,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("unexpected failure rendering playlist %s: %v", p.ProjectID, rec)

			ended := time.Now()
			run.State = panickedState
			run.Status = ledger.StatusFailed
			run.Error = err.Error()
			run.FinishedAt = &ended
			s.recordRun(ctx, run)
		}
	}()

	res = s.renderer.Render(ctx, req.UserID, p, dir)

	run.State = string(res.Stage)
	run.StartedAt = res.StartedAt
	if !res.EndedAt.IsZero() {
		ended := res.EndedAt
		run.FinishedAt = &ended
	}
	if res.Ok() {
		run.Status = ledger.StatusSucceeded
		run.FileID = res.Output.FileID
	} else {
		run.Status = ledger.StatusFailed
		if res.Err != nil {
			run.Error = res.Err.Error()
		}
	}
	s.recordRun(ctx, run)
	return res, nil
}

func (s *Service) recordRun(ctx context.Context, run *ledger.Run) {
	if s.runs == nil {
		return
	}
	if err := s.runs.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("failed to record render run", "playlist_id", run.ProjectID, "status", run.Status, "error", err)
	}
}
