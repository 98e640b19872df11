package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/clipreel/clipreel/internal/catalog"
	"github.com/clipreel/clipreel/internal/ledger"
	"github.com/clipreel/clipreel/internal/logging"
	"github.com/clipreel/clipreel/internal/media"
)

const (
	manifestName = "manifest.txt"
	outputName   = "output.mp4"

	// persistTimeout bounds the catalog write that follows a successful
	// publish. It runs detached from the request context.
	persistTimeout = 30 * time.Second
)

type Fetcher interface {
	Fetch(ctx context.Context, key, dest string) error
}

type Concatenator interface {
	Concat(ctx context.Context, inputs []string, manifestPath, outputPath string) error
}

type Prober interface {
	Probe(ctx context.Context, path string) *media.Metadata
}

type Publisher interface {
	Publish(ctx context.Context, localPath, key string) (string, error)
}

// OrphanRecorder keeps published objects that have no catalog record.
type OrphanRecorder interface {
	RecordOrphan(ctx context.Context, o *ledger.Orphan) error
}

// Result is the outcome of one playlist: an output on success, otherwise the
// stage reached and the error.
type Result struct {
	ProjectID string
	Output    *catalog.RenderedOutput
	Stage     Stage
	Err       error
	StartedAt time.Time
	EndedAt   time.Time
}

func (r Result) Ok() bool {
	return r.Err == nil && r.Output != nil
}

// RendererConfig wires the collaborators of a PlaylistRenderer. Orphans is
// optional.
type RendererConfig struct {
	Fetcher      Fetcher
	Concatenator Concatenator
	Prober       Prober
	Publisher    Publisher
	Catalog      catalog.Store
	Orphans      OrphanRecorder
	Logger       *slog.Logger
}

// PlaylistRenderer runs fetch, concat, probe, publish and persist for one
// playlist.
type PlaylistRenderer struct {
	fetcher   Fetcher
	concat    Concatenator
	prober    Prober
	publisher Publisher
	catalog   catalog.Store
	orphans   OrphanRecorder
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

func NewPlaylistRenderer(cfg RendererConfig) *PlaylistRenderer {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &PlaylistRenderer{
		fetcher:   cfg.Fetcher,
		concat:    cfg.Concatenator,
		prober:    cfg.Prober,
		publisher: cfg.Publisher,
		catalog:   cfg.Catalog,
		orphans:   cfg.Orphans,
		logger:    logging.WithComponent(logger, "renderer"),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Render never returns an error: failures are reported in the Result so the
// caller can move on to the next playlist. dir is created if missing and
// must be private to this playlist.
func (r *PlaylistRenderer) Render(ctx context.Context, userID string, project *catalog.PlaylistProject, dir string) Result {
	res := Result{ProjectID: project.ProjectID, StartedAt: r.now()}
	logger := logging.WithPlaylistID(logging.WithUserID(r.logger, userID), project.ProjectID)

	fail := func(stage Stage, kind, err error) Result {
		res.Stage = stage
		res.Err = &StageError{Stage: stage, Kind: kind, Err: err}
		res.EndedAt = r.now()
		logger.Warn("playlist render failed", "state", string(stage), "error", res.Err)
		return res
	}

	// Fetching
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fail(StageFetching, ErrFetch, fmt.Errorf("create playlist dir: %w", err))
	}
	clips := project.SortedClips()
	inputs := make([]string, 0, len(clips))
	for i, c := range clips {
		dest := filepath.Join(dir, localClipName(i+1, c.FileName))
		if err := r.fetcher.Fetch(ctx, c.Key, dest); err != nil {
			return fail(StageFetching, ErrFetch, fmt.Errorf("clip %s: %w", c.Key, err))
		}
		inputs = append(inputs, dest)
	}

	// Concatenating
	output := filepath.Join(dir, outputName)
	if err := r.concat.Concat(ctx, inputs, filepath.Join(dir, manifestName), output); err != nil {
		return fail(StageConcatenating, ErrConcatenation, err)
	}

	// Probing
	md := r.prober.Probe(ctx, output)
	if !md.Complete() {
		return fail(StageProbing, ErrProbeUnavailable, fmt.Errorf("incomplete metadata for %s", outputName))
	}

	// Publishing
	now := r.now().UTC()
	fileID := r.newID()
	key := OutputKey(userID, now, fileID)
	url, err := r.publisher.Publish(ctx, output, key)
	if err != nil {
		return fail(StagePublishing, ErrPublish, err)
	}

	// Persisting. The object is already stored, so a caller that goes away
	// now must not turn the render into an orphan.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	out := catalog.RenderedOutput{
		Key:        key,
		FileName:   DisplayName(project.ProjectTitle, now),
		URL:        url,
		ProjectID:  project.ProjectID,
		FileID:     fileID,
		CreatedAt:  now,
		Duration:   md.Duration,
		FrameRate:  md.FrameRate,
		Resolution: md.Resolution(),
	}
	if err := r.catalog.AppendRenderedOutput(persistCtx, userID, project.ProjectID, out); err != nil {
		r.recordOrphan(ctx, logger, userID, out, err)
		return fail(StagePersisting, ErrPersist, err)
	}

	res.Stage = StageDone
	res.Output = &out
	res.EndedAt = r.now()
	logger.Info("playlist rendered",
		"file_id", fileID,
		"clips", len(clips),
		"duration_s", *md.Duration,
		"resolution", *out.Resolution,
	)
	return res
}

func (r *PlaylistRenderer) recordOrphan(ctx context.Context, logger *slog.Logger, userID string, out catalog.RenderedOutput, cause error) {
	logger.Error("rendered output orphaned",
		"reconcile", true,
		"key", out.Key,
		"file_id", out.FileID,
		"error", cause,
	)
	if r.orphans == nil {
		return
	}
	err := r.orphans.RecordOrphan(context.WithoutCancel(ctx), &ledger.Orphan{
		UserID:    userID,
		ProjectID: out.ProjectID,
		ObjectKey: out.Key,
		FileID:    out.FileID,
		Error:     cause.Error(),
	})
	if err != nil {
		logger.Error("failed to record orphan", "key", out.Key, "error", err)
	}
}
