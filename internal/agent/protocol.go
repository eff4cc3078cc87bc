package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/alanmeadows/thorfix/internal/llm"
	"github.com/alanmeadows/thorfix/internal/prompts"
	"github.com/alanmeadows/thorfix/internal/tools"
)

// CompleteMarker is what the model replies with when it judges the issue done.
const CompleteMarker = "[COMPLETE]"

// Turn is one model reply in the tool protocol.
type Turn struct {
	Thought   string     `json:"thought"`
	ToolCalls []ToolCall `json:"tool_calls"`
}

// ToolCall asks for one tool to run.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// CallResult pairs a tool call with its outcome for the next prompt.
type CallResult struct {
	Name string
	tools.Result
}

// IsComplete reports whether a verification reply signals completion.
func IsComplete(reply string) bool {
	return strings.Contains(strings.ToUpper(reply), CompleteMarker)
}

// parseTurn decodes a reply, re-prompting the session when it is not JSON.
func parseTurn(ctx context.Context, client llm.Client, sessionID, reply string) (Turn, error) {
	return llm.ParseJSONResponse[Turn](ctx, client, sessionID, reply)
}

// runCalls executes calls in order against reg.
func runCalls(ctx context.Context, reg *tools.Registry, calls []ToolCall) []CallResult {
	results := make([]CallResult, 0, len(calls))
	for _, c := range calls {
		results = append(results, CallResult{Name: c.Name, Result: reg.Call(ctx, c.Name, c.Arguments)})
	}
	return results
}

func toolResultsPrompt(results []CallResult) (string, error) {
	return prompts.Execute("tool-results.md", map[string]any{"Results": results})
}

type toolDoc struct {
	Name        string
	Description string
	Schema      string
}

func toolDocs(reg *tools.Registry) []toolDoc {
	var docs []toolDoc
	for _, t := range reg.Tools() {
		docs = append(docs, toolDoc{Name: t.Name, Description: t.Description, Schema: t.SchemaJSON()})
	}
	return docs
}
