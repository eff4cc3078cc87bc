package llm

import (
	"context"
	"errors"
)

// ErrOverloaded marks a prompt that failed because the model backend was
// overloaded or rate limited. RetryClient retries these.
var ErrOverloaded = errors.New("model overloaded")

// SessionInfo represents a created LLM session.
type SessionInfo struct {
	ID    string
	Title string
}

// PromptResponse represents the result of a prompt.
type PromptResponse struct {
	Content string
}

// Client abstracts LLM session operations for testability.
type Client interface {
	// CreateSession opens a conversation. Prompts sent to the same session
	// share history.
	CreateSession(ctx context.Context, title string) (*SessionInfo, error)

	// SendPrompt sends a prompt to the given session and waits for the reply.
	SendPrompt(ctx context.Context, sessionID string, prompt string) (*PromptResponse, error)

	// DeleteSession releases a session.
	DeleteSession(ctx context.Context, sessionID string) error

	// AbortSession aborts a running prompt in a session.
	AbortSession(ctx context.Context, sessionID string) error
}
