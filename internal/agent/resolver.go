// Package agent drives the model through fixing labelled issues: it prepares
// a branch, runs the tool conversation, checks the build, asks for
// verification and publishes the result as a pull request.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/alanmeadows/thorfix/internal/config"
	"github.com/alanmeadows/thorfix/internal/llm"
	"github.com/alanmeadows/thorfix/internal/prompts"
	"github.com/alanmeadows/thorfix/internal/provider"
	"github.com/alanmeadows/thorfix/internal/state"
	"github.com/alanmeadows/thorfix/internal/tools"
	"github.com/alanmeadows/thorfix/internal/workspace"
)

// ErrIterationsExhausted is returned when the model has not finished an
// issue within the configured number of turns.
var ErrIterationsExhausted = errors.New("iteration limit reached")

const (
	completedComment   = "This issue has been deemed completed."
	notMetPrompt       = "All requirements were not yet met. Continue working on the code."
	finalCommitMessage = "Thorfix: #%d"
)

// Resolver works one issue at a time.
type Resolver struct {
	cfg     *config.Config
	tracker provider.IssueTracker
	client  llm.Client
	store   *state.Store
	builder workspace.Builder

	// Remote is the URL cloned for every issue.
	Remote string

	sleep func(context.Context, time.Duration) error
}

// NewResolver wires a Resolver from configuration.
func NewResolver(cfg *config.Config, tracker provider.IssueTracker, client llm.Client, store *state.Store) *Resolver {
	return &Resolver{
		cfg:     cfg,
		tracker: tracker,
		client:  client,
		store:   store,
		builder: workspace.Builder{
			Command: cfg.Agent.BuildCommand,
			Timeout: cfg.Agent.ParseBuildTimeout(),
		},
		Remote: workspace.CloneURL(hostFromBaseURL(cfg.GitHub.BaseURL), cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Token),
		sleep:  sleepCtx,
	}
}

// WorkDir is where the repository is cloned.
func (r *Resolver) WorkDir() string {
	return r.cfg.CloneDir()
}

// HandleNumber fetches an issue and resolves it.
func (r *Resolver) HandleNumber(ctx context.Context, number int) error {
	issue, err := r.tracker.GetIssue(ctx, number)
	if err != nil {
		return fmt.Errorf("fetching issue #%d: %w", number, err)
	}
	return r.Handle(ctx, issue)
}

// Handle runs the full fix workflow for issue. The outcome is recorded in
// the state store whether or not it succeeds.
func (r *Resolver) Handle(ctx context.Context, issue *provider.Issue) (retErr error) {
	logger := slog.With("issue", issue.Number)
	logger.Info("handling issue", "title", issue.Title)

	r.record(issue.Number, func(rec *state.Record) {
		rec.Title = issue.Title
		rec.Status = state.StatusWorking
		rec.Logf("started")
	})
	defer func() {
		if retErr != nil {
			r.record(issue.Number, func(rec *state.Record) {
				rec.Status = state.StatusFailed
				rec.Logf("failed: %v", retErr)
			})
		}
	}()

	w, err := r.prepare(ctx, issue)
	if err != nil {
		return err
	}
	r.record(issue.Number, func(rec *state.Record) {
		rec.Branch = w.branch
		rec.Logf("working on branch %s", w.branch)
	})

	sess, err := r.client.CreateSession(ctx, fmt.Sprintf("thorfix #%d", issue.Number))
	if err != nil {
		return fmt.Errorf("creating model session: %w", err)
	}
	defer func() {
		if err := r.client.DeleteSession(context.WithoutCancel(ctx), sess.ID); err != nil {
			logger.Warn("failed to delete model session", "error", err)
		}
	}()
	w.sessionID = sess.ID

	reg, err := tools.NewDefault(w.repo.Dir, &tools.Issue{Commenter: w, Committer: w})
	if err != nil {
		return fmt.Errorf("building tool registry: %w", err)
	}
	w.tools = reg

	prompt, err := r.contextPrompt(ctx, issue, reg)
	if err != nil {
		return err
	}
	return r.converse(ctx, w, prompt)
}

// converse runs the prompt loop until verification passes or the turn
// budget is spent.
func (r *Resolver) converse(ctx context.Context, w *work, prompt string) error {
	logger := slog.With("issue", w.issue.Number)
	maxIter := r.cfg.Agent.MaxIterations
	if maxIter <= 0 {
		maxIter = config.DefaultConfig().Agent.MaxIterations
	}

	for iter := 1; iter <= maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.record(w.issue.Number, func(rec *state.Record) { rec.Iterations = iter })

		resp, err := r.client.SendPrompt(ctx, w.sessionID, prompt)
		if err != nil {
			return fmt.Errorf("prompting model: %w", err)
		}
		turn, err := parseTurn(ctx, r.client, w.sessionID, resp.Content)
		if err != nil {
			return fmt.Errorf("reading model turn: %w", err)
		}
		logger.Debug("model turn", "iteration", iter, "thought", turn.Thought, "tool_calls", len(turn.ToolCalls))

		if len(turn.ToolCalls) > 0 {
			prompt, err = toolResultsPrompt(runCalls(ctx, w.tools, turn.ToolCalls))
			if err != nil {
				return err
			}
			if err := r.sleep(ctx, r.cfg.Agent.ParseTurnDelay()); err != nil {
				return err
			}
			continue
		}

		next, done, err := r.review(ctx, w)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		prompt = next
		if err := r.sleep(ctx, r.cfg.Agent.ParseTurnDelay()); err != nil {
			return err
		}
	}

	if err := w.Comment(ctx, fmt.Sprintf("I stopped after %d iterations without completing this issue.", maxIter)); err != nil {
		logger.Warn("failed to post iteration limit comment", "error", err)
	}
	return fmt.Errorf("issue #%d: %w", w.issue.Number, ErrIterationsExhausted)
}

// review handles a turn without tool calls: build check, then verification.
// It returns the next prompt, or done once the work has been published.
func (r *Resolver) review(ctx context.Context, w *work) (string, bool, error) {
	logger := slog.With("issue", w.issue.Number)

	changed, err := w.repo.ChangedFiles(ctx)
	if err != nil {
		return "", false, err
	}
	logger.Info("model finished a pass", "changed_files", len(changed))

	if len(changed) > 0 && r.builder.Enabled() {
		res, err := r.builder.Run(ctx, w.repo.Dir)
		if err != nil {
			return "", false, fmt.Errorf("running build: %w", err)
		}
		if !res.Passed {
			logger.Warn("build failed", "exit_code", res.ExitCode, "timed_out", res.TimedOut)
			r.record(w.issue.Number, func(rec *state.Record) {
				rec.Status = state.StatusBuildFailed
				rec.Logf("build failed with exit code %d", res.ExitCode)
			})
			if body, err := prompts.Execute("build-failure-comment.md", map[string]any{"Output": res.Output}); err != nil {
				logger.Warn("failed to render build failure comment", "error", err)
			} else if err := w.Comment(ctx, body); err != nil {
				logger.Warn("failed to post build failure comment", "error", err)
			}
			next, err := prompts.Execute("build-failed.md", map[string]any{
				"Command":  r.builder.Command,
				"ExitCode": res.ExitCode,
				"TimedOut": res.TimedOut,
				"Output":   res.Output,
			})
			return next, false, err
		}
		logger.Info("build passed", "duration", res.Duration)
		r.record(w.issue.Number, func(rec *state.Record) {
			rec.Status = state.StatusWorking
			rec.Logf("build passed")
		})
	}

	if !r.cfg.Agent.IsVerifyEnabled() {
		return "", true, r.publish(ctx, w)
	}

	diff, err := w.repo.Diff(ctx)
	if err != nil {
		return "", false, err
	}
	verify, err := prompts.Execute("verify.md", map[string]any{"Body": w.issue.Body, "Diff": strings.TrimSpace(diff)})
	if err != nil {
		return "", false, err
	}
	resp, err := r.client.SendPrompt(ctx, w.sessionID, verify)
	if err != nil {
		return "", false, fmt.Errorf("prompting for verification: %w", err)
	}
	reply := strings.TrimSpace(resp.Content)
	logger.Info("verification result", "complete", IsComplete(reply))

	if IsComplete(reply) {
		return "", true, r.publish(ctx, w)
	}

	// The reviewer may answer with more tool calls instead of prose.
	feedback := reply
	var results []CallResult
	if turn, err := llm.ParseJSONResponse[Turn](ctx, nil, "", reply); err == nil {
		if turn.Thought != "" {
			feedback = turn.Thought
		}
		results = runCalls(ctx, w.tools, turn.ToolCalls)
	}

	if body, err := prompts.Execute("review-comment.md", map[string]any{"Body": w.issue.Body, "Feedback": feedback}); err != nil {
		logger.Warn("failed to render review comment", "error", err)
	} else if err := w.Comment(ctx, body); err != nil {
		logger.Warn("failed to post review comment", "error", err)
	}
	r.record(w.issue.Number, func(rec *state.Record) { rec.Logf("verification: requirements not yet met") })

	if len(results) == 0 {
		return notMetPrompt, false, nil
	}
	next, err := toolResultsPrompt(results)
	if err != nil {
		return "", false, err
	}
	return next + "\n" + notMetPrompt, false, nil
}

// publish commits outstanding work, opens or reuses the pull request, merges
// it when allowed, and marks the issue done.
func (r *Resolver) publish(ctx context.Context, w *work) error {
	logger := slog.With("issue", w.issue.Number)
	n := w.issue.Number

	if _, err := w.commitAndPush(ctx, fmt.Sprintf(finalCommitMessage, n)); err != nil {
		return err
	}

	ahead, err := w.repo.CommitsAhead(ctx, w.base)
	if err != nil {
		return err
	}

	var pr *provider.PullRequest
	if ahead > 0 {
		pr, err = r.pullRequest(ctx, w)
		if err != nil {
			return err
		}
		if r.cfg.Merge.AutoMerge {
			r.merge(ctx, w, pr)
		}
	} else {
		logger.Info("no changes relative to base branch, skipping pull request", "base", w.base)
	}

	if err := r.tracker.AddLabel(ctx, n, r.cfg.GitHub.DoneLabel); err != nil {
		return fmt.Errorf("labelling issue #%d done: %w", n, err)
	}
	msg := completedComment
	if pr != nil {
		msg += fmt.Sprintf(" Pull request: %s", pr.URL)
	}
	if err := w.Comment(ctx, msg); err != nil {
		logger.Warn("failed to post completion comment", "error", err)
	}

	r.record(n, func(rec *state.Record) {
		rec.Status = state.StatusComplete
		if pr != nil {
			rec.PRURL = pr.URL
		}
		rec.Logf("completed")
	})
	logger.Info("issue completed", "branch", w.branch)
	return nil
}

func (r *Resolver) pullRequest(ctx context.Context, w *work) (*provider.PullRequest, error) {
	pr, err := r.tracker.FindPullRequest(ctx, w.branch)
	if err != nil {
		return nil, fmt.Errorf("looking up pull request for %s: %w", w.branch, err)
	}
	if pr != nil {
		slog.Info("reusing open pull request", "issue", w.issue.Number, "pr", pr.Number)
		return pr, nil
	}
	pr, err = r.tracker.CreatePullRequest(ctx, provider.NewPullRequest{
		Title: w.issue.Title,
		Head:  w.branch,
		Base:  w.base,
		Body:  fmt.Sprintf("Fixes #%d", w.issue.Number),
	})
	if err != nil {
		return nil, fmt.Errorf("creating pull request: %w", err)
	}
	slog.Info("pull request created", "issue", w.issue.Number, "pr", pr.Number, "url", pr.URL)
	return pr, nil
}

// merge merges pr right away when it is ready, otherwise asks the host to
// merge it once checks pass. Failures are logged; the PR stays open.
func (r *Resolver) merge(ctx context.Context, w *work, pr *provider.PullRequest) {
	logger := slog.With("issue", w.issue.Number, "pr", pr.Number)
	method := r.cfg.Merge.Method

	ready, err := r.tracker.MergeReadiness(ctx, pr.Number)
	if err == nil && ready.Ready() {
		title := fmt.Sprintf("Merge pull request #%d from %s", pr.Number, w.branch)
		err = r.tracker.MergePullRequest(ctx, pr.Number, method, title)
		if err == nil {
			if err := r.tracker.CloseIssue(ctx, w.issue.Number); err != nil {
				logger.Warn("failed to close issue after merge", "error", err)
			}
			logger.Info("pull request merged")
			return
		}
		// Required checks that are still pending reject a direct merge.
		logger.Warn("merge failed, falling back to auto-merge", "error", err)
	} else if err != nil {
		logger.Debug("merge readiness unknown", "error", err)
	}

	if err := r.tracker.EnableAutoMerge(ctx, pr, method); err != nil {
		if errors.Is(err, provider.ErrUnsupported) {
			logger.Debug("auto-merge not supported by backend")
			return
		}
		logger.Warn("enabling auto-merge failed", "error", err)
		return
	}
	logger.Info("auto-merge enabled")
}

// prepare clones the repository and checks out the issue branch, reusing a
// branch from an earlier run when one exists.
func (r *Resolver) prepare(ctx context.Context, issue *provider.Issue) (*work, error) {
	author := workspace.Author{Name: r.cfg.Workspace.AuthorName, Email: r.cfg.Workspace.AuthorEmail}
	repo, err := workspace.Clone(ctx, r.Remote, r.WorkDir(), author)
	if err != nil {
		return nil, err
	}

	base := r.cfg.Workspace.BaseBranch
	if base == "" {
		if base, err = r.tracker.DefaultBranch(ctx); err != nil {
			return nil, fmt.Errorf("resolving base branch: %w", err)
		}
	}

	tmpl := r.cfg.Workspace.BranchTemplate
	prefix, err := workspace.BranchPrefix(tmpl, issue.Number)
	if err != nil {
		return nil, err
	}
	existing, err := repo.RemoteBranches(ctx, prefix)
	if err != nil {
		return nil, err
	}

	w := &work{r: r, issue: issue, repo: repo, base: base}
	if len(existing) > 0 {
		w.branch = existing[0]
		slog.Info("reusing existing branch", "issue", issue.Number, "branch", w.branch)
		if err := repo.CheckoutRemote(ctx, w.branch); err != nil {
			return nil, err
		}
		return w, nil
	}

	name, err := r.branchName(ctx, issue)
	if err != nil {
		return nil, err
	}
	if w.branch, err = workspace.RenderBranchName(tmpl, issue.Number, name); err != nil {
		return nil, err
	}
	slog.Info("creating branch", "issue", issue.Number, "branch", w.branch, "base", base)
	if err := repo.CreateBranch(ctx, w.branch, base); err != nil {
		return nil, err
	}
	if err := repo.Push(ctx, w.branch); err != nil {
		return nil, err
	}
	return w, nil
}

// branchName asks the model for a short branch name in its own session.
func (r *Resolver) branchName(ctx context.Context, issue *provider.Issue) (string, error) {
	prompt, err := prompts.Execute("branch-name.md", map[string]any{"Title": issue.Title, "Body": issue.Body})
	if err != nil {
		return "", err
	}
	sess, err := r.client.CreateSession(ctx, fmt.Sprintf("thorfix #%d branch", issue.Number))
	if err != nil {
		return "", fmt.Errorf("creating branch name session: %w", err)
	}
	defer r.client.DeleteSession(context.WithoutCancel(ctx), sess.ID)

	resp, err := r.client.SendPrompt(ctx, sess.ID, prompt)
	if err != nil {
		return "", fmt.Errorf("asking for branch name: %w", err)
	}
	return workspace.SanitizeName(resp.Content), nil
}

type historyEntry struct {
	Role string
	Body string
}

// contextPrompt renders the opening prompt. Comments carrying the bot marker
// are replayed as the assistant's side of the conversation.
func (r *Resolver) contextPrompt(ctx context.Context, issue *provider.Issue, reg *tools.Registry) (string, error) {
	comments, err := r.tracker.ListComments(ctx, issue.Number)
	if err != nil {
		return "", fmt.Errorf("listing comments on #%d: %w", issue.Number, err)
	}
	marker := r.cfg.GitHub.Marker
	var history []historyEntry
	for _, c := range comments {
		role, body := "User", strings.TrimSpace(c.Body)
		if marker != "" && strings.Contains(c.Body, marker) {
			role = "Assistant"
			body = strings.TrimSpace(strings.ReplaceAll(c.Body, marker, ""))
		}
		history = append(history, historyEntry{Role: role, Body: body})
	}

	return prompts.Execute("issue-context.md", map[string]any{
		"Repo":    r.cfg.GitHub.Owner + "/" + r.cfg.GitHub.Repo,
		"Number":  issue.Number,
		"Title":   issue.Title,
		"Body":    issue.Body,
		"History": history,
		"Tools":   toolDocs(reg),
	})
}

func (r *Resolver) record(number int, fn func(*state.Record)) {
	if r.store == nil {
		return
	}
	_, err := r.store.Update(r.cfg.GitHub.Owner, r.cfg.GitHub.Repo, number, func(rec *state.Record) error {
		fn(rec)
		return nil
	})
	if err != nil {
		slog.Warn("failed to update issue record", "issue", number, "error", err)
	}
}

// hostFromBaseURL extracts the web host from an API base URL. Empty means
// github.com.
func hostFromBaseURL(baseURL string) string {
	if baseURL == "" {
		return ""
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Host, "api.")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
