package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a scripted Client for tests. Each SendPrompt pops the next
// entry of Responses; when the script runs out DefaultResult is returned.
type MockClient struct {
	mu sync.Mutex

	Responses     []string
	DefaultResult string

	// PromptErrs are consumed one per SendPrompt before a reply is served.
	// A nil entry lets that call through.
	PromptErrs []error
	// PromptErr fails every SendPrompt once PromptErrs is drained.
	PromptErr error

	Sessions map[string]*SessionInfo
	Aborted  []string

	calls   []PromptCall
	created int
}

// PromptCall is one recorded SendPrompt.
type PromptCall struct {
	SessionID string
	Prompt    string
}

// NewMockClient returns a MockClient that replies with responses in order.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{
		Responses:     responses,
		DefaultResult: "mock reply",
		Sessions:      make(map[string]*SessionInfo),
	}
}

func (m *MockClient) CreateSession(_ context.Context, title string) (*SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
	info := &SessionInfo{ID: fmt.Sprintf("mock-session-%d", m.created), Title: title}
	m.Sessions[info.ID] = info
	return info, nil
}

func (m *MockClient) SendPrompt(_ context.Context, sessionID string, prompt string) (*PromptResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, PromptCall{SessionID: sessionID, Prompt: prompt})

	if len(m.PromptErrs) > 0 {
		err := m.PromptErrs[0]
		m.PromptErrs = m.PromptErrs[1:]
		if err != nil {
			return nil, err
		}
	} else if m.PromptErr != nil {
		return nil, m.PromptErr
	}

	if len(m.Responses) == 0 {
		return &PromptResponse{Content: m.DefaultResult}, nil
	}
	next := m.Responses[0]
	m.Responses = m.Responses[1:]
	return &PromptResponse{Content: next}, nil
}

func (m *MockClient) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Sessions, sessionID)
	return nil
}

func (m *MockClient) AbortSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Aborted = append(m.Aborted, sessionID)
	return nil
}

// GetPromptHistory returns a copy of every prompt sent so far.
func (m *MockClient) GetPromptHistory() []PromptCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PromptCall(nil), m.calls...)
}
