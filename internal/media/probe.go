package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Metadata is what the probe extracts from a rendered file. Any field may be
// nil when ffprobe did not report it.
type Metadata struct {
	Duration  *float64
	Width     *int
	Height    *int
	FrameRate *string // rational form as reported, e.g. "30000/1001"
}

// Complete reports whether every field needed for the catalog record is set.
func (m *Metadata) Complete() bool {
	return m != nil && m.Duration != nil && m.Width != nil && m.Height != nil && m.FrameRate != nil
}

// Resolution formats width and height as "WxH".
func (m *Metadata) Resolution() *string {
	if m == nil || m.Width == nil || m.Height == nil {
		return nil
	}
	s := fmt.Sprintf("%dx%d", *m.Width, *m.Height)
	return &s
}

// Prober runs ffprobe against a local file.
type Prober struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
}

func NewProber(bin string, timeout time.Duration, logger *slog.Logger) *Prober {
	return &Prober{bin: bin, timeout: timeout, logger: logger}
}

// Probe returns nil, never an error, when the tool fails or its output cannot
// be interpreted. Callers treat nil as "metadata unavailable".
func (p *Prober) Probe(ctx context.Context, path string) *Metadata {
	res := Run(ctx, Command{
		Bin: p.bin,
		Args: []string{
			"-v", "error",
			"-show_entries", "format=duration",
			"-show_entries", "stream=width,height,r_frame_rate",
			"-of", "json",
			path,
		},
		Timeout: p.timeout,
		Stdout:  true,
	}, p.logger)
	if !res.IsSuccess() {
		return nil
	}

	md, err := ParseProbeJSON(res.Stdout)
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("unparsable ffprobe output", "error", err)
		}
		return nil
	}
	return md
}

type probeOutput struct {
	Streams []struct {
		Width      *int   `json:"width"`
		Height     *int   `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ParseProbeJSON reads ffprobe's JSON. Geometry and frame rate come from the
// first stream reporting both width and height; without one the result is an
// error.
func ParseProbeJSON(data []byte) (*Metadata, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode ffprobe json: %w", err)
	}

	md := &Metadata{}
	for _, s := range out.Streams {
		if s.Width == nil || s.Height == nil {
			continue
		}
		w, h := *s.Width, *s.Height
		md.Width, md.Height = &w, &h
		if s.RFrameRate != "" && s.RFrameRate != "0/0" {
			fr := s.RFrameRate
			md.FrameRate = &fr
		}
		break
	}
	if md.Width == nil {
		return nil, fmt.Errorf("no video stream in ffprobe output")
	}

	if out.Format.Duration != "" {
		d, err := strconv.ParseFloat(out.Format.Duration, 64)
		if err == nil {
			md.Duration = &d
		}
	}
	return md, nil
}
