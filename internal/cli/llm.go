package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanmeadows/thorfix/internal/config"
	"github.com/alanmeadows/thorfix/internal/llm"
	"github.com/alanmeadows/thorfix/internal/provider"
	ghbackend "github.com/alanmeadows/thorfix/internal/provider/github"
)

// newModelClient starts the Copilot SDK client and wraps it with overload
// retries. The returned stop function shuts the SDK down.
func newModelClient(ctx context.Context, cfg *config.Config) (llm.Client, func(), error) {
	copilot := llm.NewCopilotClient(llm.CopilotOptions{
		Model:     cfg.Agent.Model,
		ServerURL: cfg.Agent.ServerURL,
		WorkDir:   cfg.CloneDir(),
	})
	if err := copilot.Start(ctx); err != nil {
		return nil, nil, err
	}
	stop := func() {
		if err := copilot.Stop(); err != nil {
			slog.Warn("failed to stop model client", "error", err)
		}
	}

	retry := llm.DefaultRetryConfig()
	if cfg.Agent.MaxRetries > 0 {
		retry.MaxAttempts = cfg.Agent.MaxRetries
	}
	return llm.NewRetryClient(copilot, retry), stop, nil
}

// buildRegistry creates a tracker registry populated from config.
func buildRegistry(cfg *config.Config) (*provider.Registry, error) {
	reg := provider.NewRegistry()
	gh, err := ghbackend.NewBackend(cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Token, cfg.GitHub.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating GitHub backend: %w", err)
	}
	reg.Register(gh)
	return reg, nil
}

// newTracker validates config and returns the GitHub tracker.
func newTracker(cfg *config.Config) (provider.IssueTracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	reg, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}
	return reg.Get("github")
}
