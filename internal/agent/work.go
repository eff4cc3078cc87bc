package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanmeadows/thorfix/internal/provider"
	"github.com/alanmeadows/thorfix/internal/tools"
	"github.com/alanmeadows/thorfix/internal/workspace"
)

// work is the state of one issue being resolved. It backs the issue tools.
type work struct {
	r         *Resolver
	issue     *provider.Issue
	repo      *workspace.Repo
	base      string
	branch    string
	sessionID string
	tools     *tools.Registry
}

// Comment posts body on the issue behind the bot marker.
func (w *work) Comment(ctx context.Context, body string) error {
	if m := w.r.cfg.GitHub.Marker; m != "" {
		body = m + "\n\n" + body
	}
	return w.r.tracker.PostComment(ctx, w.issue.Number, body)
}

// CommitAndPush commits with a reference to the issue appended to message.
func (w *work) CommitAndPush(ctx context.Context, message string) (bool, error) {
	return w.commitAndPush(ctx, fmt.Sprintf("%s\n#%d", message, w.issue.Number))
}

func (w *work) commitAndPush(ctx context.Context, message string) (bool, error) {
	committed, err := w.repo.Commit(ctx, message)
	if err != nil || !committed {
		return committed, err
	}
	if err := w.repo.Push(ctx, w.branch); err != nil {
		return true, err
	}
	slog.Info("changes pushed", "issue", w.issue.Number, "branch", w.branch)
	return true, nil
}
