package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	sdk "github.com/github/copilot-sdk/go"
)

// CopilotOptions configures a CopilotClient.
type CopilotOptions struct {
	Model string
	// ServerURL connects to an already running headless Copilot server
	// instead of starting one.
	ServerURL string
	// WorkDir is the working directory of every session, normally the
	// issue's clone.
	WorkDir string
}

// CopilotClient implements Client on the GitHub Copilot SDK.
type CopilotClient struct {
	opts CopilotOptions

	mu       sync.Mutex
	sdk      *sdk.Client
	sessions map[string]*sdk.Session
}

// NewCopilotClient returns an unstarted client.
func NewCopilotClient(opts CopilotOptions) *CopilotClient {
	return &CopilotClient{opts: opts, sessions: make(map[string]*sdk.Session)}
}

// Start launches (or connects to) the Copilot backend. It is a no-op once
// started.
func (c *CopilotClient) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sdk != nil {
		return nil
	}

	var clientOpts *sdk.ClientOptions
	if c.opts.ServerURL != "" {
		clientOpts = &sdk.ClientOptions{CLIUrl: c.opts.ServerURL, AutoStart: sdk.Bool(false)}
	}
	client := sdk.NewClient(clientOpts)
	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("starting copilot SDK: %w", err)
	}
	c.sdk = client
	slog.Info("model client started", "model", c.opts.Model, "server", c.opts.ServerURL)
	return nil
}

// Stop destroys every open session and shuts the SDK client down.
func (c *CopilotClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, s := range c.sessions {
		if err := s.Destroy(); err != nil {
			slog.Debug("destroying model session", "session", id, "error", err)
		}
	}
	clear(c.sessions)
	if c.sdk == nil {
		return nil
	}
	err := c.sdk.Stop()
	c.sdk = nil
	return err
}

func (c *CopilotClient) CreateSession(ctx context.Context, title string) (*SessionInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sdk == nil {
		return nil, fmt.Errorf("creating session %q: client not started", title)
	}

	session, err := c.sdk.CreateSession(ctx, &sdk.SessionConfig{
		Model:               c.opts.Model,
		WorkingDirectory:    c.opts.WorkDir,
		OnPermissionRequest: sdk.PermissionHandler.ApproveAll,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session %q: %w", title, classify(err))
	}
	c.sessions[session.SessionID] = session

	slog.Debug("model session created", "session", session.SessionID, "title", title)
	return &SessionInfo{ID: session.SessionID, Title: title}, nil
}

func (c *CopilotClient) session(id string) (*sdk.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	return s, ok
}

func (c *CopilotClient) SendPrompt(ctx context.Context, sessionID string, prompt string) (*PromptResponse, error) {
	session, ok := c.session(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}

	slog.Debug("sending prompt", "session", sessionID, "bytes", len(prompt))
	reply, err := session.SendAndWait(ctx, sdk.MessageOptions{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("sending prompt: %w", classify(err))
	}

	out := &PromptResponse{}
	if reply != nil && reply.Data.Content != nil {
		out.Content = *reply.Data.Content
	}
	return out, nil
}

func (c *CopilotClient) DeleteSession(_ context.Context, sessionID string) error {
	c.mu.Lock()
	session, ok := c.sessions[sessionID]
	delete(c.sessions, sessionID)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	slog.Debug("deleting model session", "session", sessionID)
	return session.Destroy()
}

func (c *CopilotClient) AbortSession(ctx context.Context, sessionID string) error {
	session, ok := c.session(sessionID)
	if !ok {
		return nil
	}
	return session.Abort(ctx)
}

// overloadSignals are substrings the backend uses for transient capacity errors.
var overloadSignals = []string{"overloaded", "rate limit", "429", "529", "too many requests"}

// classify wraps err with ErrOverloaded when it looks like a capacity error.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	for _, s := range overloadSignals {
		if strings.Contains(msg, s) {
			return fmt.Errorf("%w: %w", ErrOverloaded, err)
		}
	}
	return err
}
