package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig controls how RetryClient backs off on overloaded errors.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
	// Multiplier grows the delay after every failed attempt.
	Multiplier float64
}

// DefaultRetryConfig returns the retry policy used by the agent.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// RetryClient decorates a Client, retrying SendPrompt when the error wraps
// ErrOverloaded. Other errors are returned immediately.
type RetryClient struct {
	Client
	cfg RetryConfig
	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryClient wraps c with the given retry policy.
func NewRetryClient(c Client, cfg RetryConfig) *RetryClient {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	return &RetryClient{Client: c, cfg: cfg, sleep: sleepCtx}
}

func (r *RetryClient) SendPrompt(ctx context.Context, sessionID string, prompt string) (*PromptResponse, error) {
	backoff := r.cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		resp, err := r.Client.SendPrompt(ctx, sessionID, prompt)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, ErrOverloaded) {
			return nil, err
		}
		lastErr = err
		if attempt == r.cfg.MaxAttempts {
			break
		}

		slog.Warn("model overloaded, retrying", "attempt", attempt, "backoff", backoff)
		if err := r.sleep(ctx, backoff); err != nil {
			return nil, fmt.Errorf("waiting to retry prompt: %w", err)
		}
		backoff = time.Duration(float64(backoff) * r.cfg.Multiplier)
		if r.cfg.MaxBackoff > 0 && backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}

	return nil, fmt.Errorf("prompt failed after %d attempts: %w", r.cfg.MaxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
