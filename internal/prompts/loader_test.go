package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var expectedTemplates = []string{
	"branch-name.md",
	"build-failed.md",
	"build-failure-comment.md",
	"issue-context.md",
	"review-comment.md",
	"tool-results.md",
	"verify.md",
}

type tool struct{ Name, Description, Schema string }

type entry struct{ Role, Body string }

func TestLoadAllTemplates(t *testing.T) {
	for _, name := range expectedTemplates {
		t.Run(name, func(t *testing.T) {
			tmpl, err := Load(name)
			require.NoError(t, err)
			assert.NotNil(t, tmpl)
		})
	}
}

func TestLoadNonExistent(t *testing.T) {
	_, err := Load("nonexistent-template.md")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "loading prompt template")
}

func TestList(t *testing.T) {
	names, err := List()
	require.NoError(t, err)
	assert.Equal(t, expectedTemplates, names)
}

func TestLoad_UserOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	cfg, err := os.UserConfigDir()
	require.NoError(t, err)

	path := filepath.Join(cfg, "thorfix", "prompts", "verify.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("custom {{.Body}}"), 0o644))

	out, err := Execute("verify.md", map[string]string{"Body": "x"})
	require.NoError(t, err)
	assert.Equal(t, "custom x", out)
}

func TestExecuteIssueContext(t *testing.T) {
	data := map[string]any{
		"Repo":   "octo/widgets",
		"Number": 12,
		"Title":  "Crash on empty input",
		"Body":   "Parsing \"\" panics.",
		"History": []entry{
			{Role: "User", Body: "still broken on main"},
			{Role: "Assistant", Body: "looking into it"},
		},
		"Tools": []tool{{Name: "read_file", Description: "Reads a file", Schema: `{"type":"object"}`}},
	}

	out, err := Execute("issue-context.md", data)
	require.NoError(t, err)
	assert.Contains(t, out, "Issue #12: Crash on empty input")
	assert.Contains(t, out, "User: still broken on main")
	assert.Contains(t, out, "Assistant: looking into it")
	assert.Contains(t, out, "- read_file: Reads a file")
	assert.Contains(t, out, "<<<<<<< SEARCH")
	assert.Contains(t, out, "@@ -1,6 +1,7 @@")
}

func TestExecuteIssueContext_NoHistory(t *testing.T) {
	data := map[string]any{
		"Repo": "octo/widgets", "Number": 1, "Title": "t", "Body": "b",
		"History": []entry(nil), "Tools": []tool(nil),
	}
	out, err := Execute("issue-context.md", data)
	require.NoError(t, err)
	assert.NotContains(t, out, "Previous conversation history")
}

func TestExecuteVerify(t *testing.T) {
	out, err := Execute("verify.md", map[string]string{"Body": "make it fast", "Diff": "+fast := true"})
	require.NoError(t, err)
	assert.Contains(t, out, "[COMPLETE]")
	assert.Contains(t, out, "make it fast")
	assert.Contains(t, out, "+fast := true")
}

func TestExecuteBuildFailed(t *testing.T) {
	data := map[string]any{"Command": "go build ./...", "ExitCode": 1, "TimedOut": false, "Output": "undefined: foo"}
	out, err := Execute("build-failed.md", data)
	require.NoError(t, err)
	assert.Contains(t, out, "`go build ./...` failed with exit code 1")
	assert.NotContains(t, out, "timed out")
	assert.Contains(t, out, "undefined: foo")
}

func TestExecute_MissingKey(t *testing.T) {
	_, err := Execute("branch-name.md", map[string]string{"Title": "only title"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "executing prompt template branch-name.md")
}

func TestExecuteBuildFailureComment_TrimsOutput(t *testing.T) {
	out, err := Execute("build-failure-comment.md", map[string]any{"Output": "\n\nmain.go:3: syntax error\n\n"})
	require.NoError(t, err)
	assert.Contains(t, out, "```\nmain.go:3: syntax error\n```")
	assert.Contains(t, out, "⚠️ Build Failure")
}

func TestLoad_BadOverrideNamesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	override, err := OverrideDir()
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(override, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(override, "verify.md"), []byte("{{.Body"), 0o644))

	_, err = Load("verify.md")
	require.Error(t, err)
	assert.Contains(t, err.Error(), filepath.Join(override, "verify.md"))
}
