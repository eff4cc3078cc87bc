package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanmeadows/thorfix/internal/llm"
	"github.com/alanmeadows/thorfix/internal/tools"
)

type nopIssue struct{}

func (nopIssue) Comment(context.Context, string) error               { return nil }
func (nopIssue) CommitAndPush(context.Context, string) (bool, error) { return false, nil }

func mustTools(t *testing.T) *tools.Registry {
	t.Helper()
	reg, err := tools.NewDefault(t.TempDir(), &tools.Issue{Commenter: nopIssue{}, Committer: nopIssue{}})
	require.NoError(t, err)
	return reg
}

func TestParseTurn_Fenced(t *testing.T) {
	reply := "Here is my plan:\n```json\n{\"thought\":\"read\",\"tool_calls\":[{\"name\":\"read_file\",\"arguments\":{\"path\":\"a.go\"}}]}\n```"
	got, err := parseTurn(context.Background(), nil, "", reply)
	require.NoError(t, err)
	assert.Equal(t, "read", got.Thought)
	require.Len(t, got.ToolCalls, 1)
	assert.Equal(t, "read_file", got.ToolCalls[0].Name)
	assert.JSONEq(t, `{"path":"a.go"}`, string(got.ToolCalls[0].Arguments))
}

func TestParseTurn_RepromptsSession(t *testing.T) {
	client := llm.NewMockClient(`{"thought":"ok","tool_calls":[]}`)
	got, err := parseTurn(context.Background(), client, "s1", "I will now think about it")
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Thought)
	assert.Empty(t, got.ToolCalls)
}

func TestRunCalls_InOrderWithErrors(t *testing.T) {
	reg := mustTools(t)
	calls := []ToolCall{
		{Name: "write_file", Arguments: json.RawMessage(`{"path":"x.txt","content":"hi"}`)},
		{Name: "read_file", Arguments: json.RawMessage(`{"path":"x.txt"}`)},
		{Name: "nope"},
	}
	results := runCalls(context.Background(), reg, calls)
	require.Len(t, results, 3)
	assert.False(t, results[0].IsError)
	assert.Equal(t, "hi", results[1].Response)
	assert.True(t, results[2].IsError)

	out, err := toolResultsPrompt(results)
	require.NoError(t, err)
	assert.Contains(t, out, "[read_file]\nhi")
	assert.Contains(t, out, "[nope] ERROR")
}
