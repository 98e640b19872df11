package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoInputs is returned when Concat is called with an empty input list.
var ErrNoInputs = errors.New("no inputs to concatenate")

// Concatenator joins local clips with ffmpeg's concat demuxer, stream copy
// only. Inputs must share codec parameters.
type Concatenator struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
}

func NewConcatenator(bin string, timeout time.Duration, logger *slog.Logger) *Concatenator {
	return &Concatenator{bin: bin, timeout: timeout, logger: logger}
}

// Concat writes a manifest listing inputs in order and produces outputPath.
func (c *Concatenator) Concat(ctx context.Context, inputs []string, manifestPath, outputPath string) error {
	if len(inputs) == 0 {
		return ErrNoInputs
	}
	if err := WriteManifest(manifestPath, inputs); err != nil {
		return err
	}

	res := Run(ctx, Command{
		Bin: c.bin,
		Args: []string{
			"-nostdin",
			"-loglevel", "error",
			"-y",
			"-f", "concat",
			"-safe", "0",
			"-i", manifestPath,
			"-c", "copy",
			outputPath,
		},
		Timeout: c.timeout,
	}, c.logger)
	if !res.IsSuccess() {
		return &ToolError{Tool: "ffmpeg", ExitCode: res.ExitCode, Stderr: res.StderrTail}
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("ffmpeg produced an empty output")
	}
	return nil
}

// WriteManifest writes one `file '<path>'` line per input. Paths are made
// absolute so the manifest location does not matter.
func WriteManifest(manifestPath string, inputs []string) error {
	f, err := os.Create(manifestPath)
	if err != nil {
		return fmt.Errorf("create concat manifest: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", in, err)
		}
		fmt.Fprintf(w, "file %s\n", quoteManifestPath(abs))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write concat manifest: %w", err)
	}
	return f.Close()
}

// quoteManifestPath single-quotes p for the concat demuxer.
func quoteManifestPath(p string) string {
	return "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
}
