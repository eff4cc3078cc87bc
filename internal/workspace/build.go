package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// maxBuildOutput caps how much build output is kept, from the tail.
const maxBuildOutput = 16 * 1024

// BuildResult is the outcome of one build run.
type BuildResult struct {
	Passed   bool
	ExitCode int
	Output   string
	Duration time.Duration
	TimedOut bool
}

// Builder runs the configured build command inside a clone.
type Builder struct {
	Command string
	Timeout time.Duration
}

// Enabled reports whether a build command is configured.
func (b *Builder) Enabled() bool {
	return b != nil && b.Command != ""
}

// Run executes the build command with sh -c in dir. A failing build is a
// result, not an error; errors mean the command could not be run at all.
func (b *Builder) Run(ctx context.Context, dir string) (*BuildResult, error) {
	if !b.Enabled() {
		return &BuildResult{Passed: true}, nil
	}
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", b.Command)
	cmd.Dir = dir
	cmd.WaitDelay = 2 * time.Second
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	res := &BuildResult{
		Duration: time.Since(start),
		Output:   tail(out.String(), maxBuildOutput),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.Passed = true
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.ExitCode = -1
		res.Output += fmt.Sprintf("\nbuild timed out after %s", b.Timeout)
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("running build command: %w", err)
	}

	slog.Info("build finished", "passed", res.Passed, "exit", res.ExitCode, "duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "...\n" + s[len(s)-n:]
}
