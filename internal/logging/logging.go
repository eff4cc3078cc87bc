package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/term"
)

// Options controls logger setup.
type Options struct {
	Verbose bool
	// File, when set, receives a JSON copy of every log line.
	File string
}

// Setup initializes the global slog logger using charmbracelet/log as the backend.
// If stderr is a terminal, uses colored text format. Otherwise, uses JSON format.
// The returned closer releases the log file, if any.
func Setup(opts Options) (io.Closer, error) {
	level := charmlog.InfoLevel
	if opts.Verbose {
		level = charmlog.DebugLevel
	}

	console := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		Level:           level,
	})
	if !isTerminal() {
		console.SetFormatter(charmlog.JSONFormatter)
	}

	if opts.File == "" {
		slog.SetDefault(slog.New(console))
		return nopCloser{}, nil
	}

	f, err := openLogFile(opts.File)
	if err != nil {
		slog.SetDefault(slog.New(console))
		return nopCloser{}, err
	}
	file := charmlog.NewWithOptions(f, charmlog.Options{
		ReportTimestamp: true,
		Level:           level,
		Formatter:       charmlog.JSONFormatter,
	})

	slog.SetDefault(slog.New(&teeHandler{handlers: []slog.Handler{console, file}}))
	return f, nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
