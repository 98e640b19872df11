// Package media wraps the ffmpeg and ffprobe executables: lossless concat,
// metadata probing and tool availability checks.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// Command describes one tool invocation.
type Command struct {
	Bin     string
	Args    []string
	Timeout time.Duration // zero means no extra deadline
	Stdout  bool          // capture stdout instead of discarding it
}

// Result holds the outcome of a tool invocation.
type Result struct {
	ExitCode   int
	Stdout     []byte
	StderrTail string
	Duration   time.Duration
}

func (r Result) IsSuccess() bool {
	return r.ExitCode == 0
}

// ToolError reports a non-zero exit from ffmpeg or ffprobe.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited %d", e.Tool, e.ExitCode)
	}
	return fmt.Sprintf("%s exited %d: %s", e.Tool, e.ExitCode, truncate(e.Stderr, 512))
}

// Run executes cmd and never returns an error: failures to start are
// reported as ExitCode -1 with the cause in StderrTail.
func Run(ctx context.Context, cmd Command, logger *slog.Logger) Result {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	start := time.Now()
	c := exec.CommandContext(ctx, cmd.Bin, cmd.Args...)

	var stderrBuf, stdoutBuf bytes.Buffer
	c.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	if cmd.Stdout {
		c.Stdout = &stdoutBuf
	} else {
		c.Stdout = io.Discard
	}

	logger.Debug("executing media tool", "bin", cmd.Bin, "args", cmd.Args)

	err := c.Run()
	elapsed := time.Since(start)

	exitCode := 0
	stderrTail := stderrBuf.String()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			if ctx.Err() != nil {
				stderrTail += ctx.Err().Error()
			} else {
				stderrTail += err.Error()
			}
		}
	}

	if exitCode != 0 {
		logger.Warn("media tool failed",
			"bin", cmd.Bin,
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
	} else {
		logger.Debug("media tool succeeded",
			"bin", cmd.Bin,
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	return Result{
		ExitCode:   exitCode,
		Stdout:     stdoutBuf.Bytes(),
		StderrTail: stderrTail,
		Duration:   elapsed,
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := make([]byte, lw.limit)
		copy(tail, b[len(b)-lw.limit:])
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
