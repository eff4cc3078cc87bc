package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alanmeadows/thorfix/internal/config"
	"github.com/alanmeadows/thorfix/internal/provider"
	"github.com/alanmeadows/thorfix/internal/state"
)

// Monitor polls the tracker for labelled issues and hands them to a Resolver
// one at a time.
type Monitor struct {
	cfg      *config.Config
	tracker  provider.IssueTracker
	resolver *Resolver

	sleep func(context.Context, time.Duration) error
}

// NewMonitor returns a Monitor that resolves issues with resolver.
func NewMonitor(cfg *config.Config, tracker provider.IssueTracker, resolver *Resolver) *Monitor {
	return &Monitor{cfg: cfg, tracker: tracker, resolver: resolver, sleep: sleepCtx}
}

// Run polls until ctx is cancelled, or once when once is set. It holds the
// run lock on the state directory for its whole lifetime.
func (m *Monitor) Run(ctx context.Context, once bool) error {
	lock, err := state.AcquireRunLock(m.cfg.State.Dir)
	if err != nil {
		return err
	}
	defer lock.Release()

	interval := m.cfg.Monitor.ParsePollInterval()
	backoff := m.cfg.Monitor.ParseErrorBackoff()
	slog.Info("starting issue monitor",
		"repo", m.cfg.GitHub.Owner+"/"+m.cfg.GitHub.Repo,
		"label", m.cfg.GitHub.TriggerLabel,
		"interval", interval)

	for {
		handled, err := m.Poll(ctx)
		if once {
			return err
		}

		wait := interval
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			slog.Error("error monitoring issues", "error", err)
			wait = backoff
		} else {
			slog.Info("poll cycle complete", "handled", handled, "next", wait)
		}

		if err := m.sleep(ctx, wait); err != nil {
			break
		}
	}
	slog.Info("issue monitor stopped")
	return nil
}

// Poll processes every eligible issue once and reports how many it handled.
// A failure on one issue is logged and does not stop the others.
func (m *Monitor) Poll(ctx context.Context) (int, error) {
	issues, err := m.tracker.ListLabeledIssues(ctx, m.cfg.GitHub.TriggerLabel)
	if err != nil {
		return 0, fmt.Errorf("listing issues: %w", err)
	}

	handled := 0
	for i := range issues {
		if ctx.Err() != nil {
			return handled, ctx.Err()
		}
		issue := &issues[i]
		ok, err := m.eligible(ctx, issue)
		if err != nil {
			slog.Warn("skipping issue", "issue", issue.Number, "error", err)
			continue
		}
		if !ok {
			continue
		}

		handled++
		slog.Info("processing issue", "issue", issue.Number)
		m.clearWorkDir()
		if err := m.resolver.Handle(ctx, issue); err != nil {
			slog.Error("failed to handle issue", "issue", issue.Number, "error", err)
		}
		m.clearWorkDir()
		slog.Info("done with issue", "issue", issue.Number)
	}
	return handled, nil
}

// eligible skips finished issues and those waiting on a human reply.
func (m *Monitor) eligible(ctx context.Context, issue *provider.Issue) (bool, error) {
	if issue.HasLabel(m.cfg.GitHub.DoneLabel) {
		slog.Debug("issue already done", "issue", issue.Number)
		return false, nil
	}
	comments, err := m.tracker.ListComments(ctx, issue.Number)
	if err != nil {
		return false, fmt.Errorf("listing comments: %w", err)
	}
	if n := len(comments); n > 0 && m.cfg.GitHub.Marker != "" &&
		strings.Contains(comments[n-1].Body, m.cfg.GitHub.Marker) {
		slog.Debug("waiting for a reply", "issue", issue.Number)
		return false, nil
	}
	return true, nil
}

func (m *Monitor) clearWorkDir() {
	if err := os.RemoveAll(m.resolver.WorkDir()); err != nil {
		slog.Warn("failed to clear workspace", "dir", m.resolver.WorkDir(), "error", err)
	}
}
