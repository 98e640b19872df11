package media

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// ToolStatus describes one executable as seen by the doctor.
type ToolStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Capabilities is a snapshot of ffmpeg and ffprobe availability.
type Capabilities struct {
	FFmpeg   ToolStatus `json:"ffmpeg"`
	FFprobe  ToolStatus `json:"ffprobe"`
	ProbedAt time.Time  `json:"probed_at"`
}

func (c *Capabilities) Ready() bool {
	return c != nil && c.FFmpeg.Available && c.FFprobe.Available
}

// Doctor caches tool availability with a TTL so health checks don't spawn
// processes on every request.
type Doctor struct {
	ffmpeg  string
	ffprobe string
	ttl     time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

func NewDoctor(ffmpeg, ffprobe string, logger *slog.Logger) *Doctor {
	return &Doctor{
		ffmpeg:  ffmpeg,
		ffprobe: ffprobe,
		ttl:     defaultCacheTTL,
		logger:  logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (d *Doctor) Get(ctx context.Context) *Capabilities {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

// Refresh forces a new probe regardless of cache freshness.
func (d *Doctor) Refresh(ctx context.Context) *Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()

	caps := &Capabilities{
		FFmpeg:   d.check(ctx, d.ffmpeg),
		FFprobe:  d.check(ctx, d.ffprobe),
		ProbedAt: time.Now(),
	}
	if !caps.Ready() && d.logger != nil {
		d.logger.Warn("media tools unavailable",
			"ffmpeg", caps.FFmpeg.Available,
			"ffprobe", caps.FFprobe.Available,
		)
	}
	d.cached = caps
	return caps
}

// Invalidate clears the cached capabilities.
func (d *Doctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}

func (d *Doctor) check(ctx context.Context, bin string) ToolStatus {
	res := Run(ctx, Command{
		Bin:     bin,
		Args:    []string{"-version"},
		Timeout: 10 * time.Second,
		Stdout:  true,
	}, d.logger)
	if !res.IsSuccess() {
		return ToolStatus{Error: truncate(strings.TrimSpace(res.StderrTail), 200)}
	}
	line, _, _ := strings.Cut(string(res.Stdout), "\n")
	return ToolStatus{Available: true, Version: strings.TrimSpace(line)}
}
