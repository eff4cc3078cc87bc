package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points every config source at empty temp locations.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GIT_CEILING_DIRECTORIES", t.TempDir())
	for _, k := range []string{"GITHUB_TOKEN", "REPO_OWNER", "REPO_NAME", "THORFIX_MODEL", "THORFIX_WORK_DIR"} {
		t.Setenv(k, "")
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.GitHub.TriggerLabel != "thorfix" {
		t.Errorf("expected trigger label thorfix, got %s", cfg.GitHub.TriggerLabel)
	}
	if cfg.GitHub.DoneLabel != "thordone" {
		t.Errorf("expected done label thordone, got %s", cfg.GitHub.DoneLabel)
	}
	if cfg.GitHub.Marker != "[FROM THOR]" {
		t.Errorf("expected marker [FROM THOR], got %s", cfg.GitHub.Marker)
	}
	if cfg.Agent.MaxIterations != 100 {
		t.Errorf("expected max_iterations 100, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Monitor.ParsePollInterval() != 5*time.Minute {
		t.Errorf("expected poll interval 5m, got %v", cfg.Monitor.ParsePollInterval())
	}
	if cfg.Monitor.ParseErrorBackoff() != time.Minute {
		t.Errorf("expected error backoff 1m, got %v", cfg.Monitor.ParseErrorBackoff())
	}
	if !cfg.Agent.IsVerifyEnabled() {
		t.Error("expected verification enabled by default")
	}
	if cfg.Workspace.BranchTemplate != "thorfix/{{.Number}}-{{.Name}}" {
		t.Errorf("unexpected branch template %s", cfg.Workspace.BranchTemplate)
	}
}

func TestLoadJSONC(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.jsonc")

	content := []byte(`{
  // repository to watch
  "github": {
    "owner": "acme",
  },
  "agent": {
    "max_iterations": 12
  }
}`)

	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	m, err := loadJSONC(path)
	if err != nil {
		t.Fatalf("loadJSONC failed: %v", err)
	}

	gh, ok := m["github"].(map[string]any)
	if !ok {
		t.Fatal("expected github to be a map")
	}
	if gh["owner"] != "acme" {
		t.Errorf("expected owner=acme, got %v", gh["owner"])
	}

	agent, ok := m["agent"].(map[string]any)
	if !ok {
		t.Fatal("expected agent to be a map")
	}
	if agent["max_iterations"] != float64(12) {
		t.Errorf("expected max_iterations=12, got %v", agent["max_iterations"])
	}
}

func TestLoadJSONC_MalformedContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonc")
	if err := os.WriteFile(path, []byte(`{"github": {"owner": "acme"`), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	if _, err := loadJSONC(path); err == nil {
		t.Error("expected error for malformed JSONC")
	}
}

func TestMergeDeepPreservesNestedFields(t *testing.T) {
	cfg := DefaultConfig()

	src := map[string]any{
		"github": map[string]any{
			"owner": "acme",
		},
	}
	if err := mergeIntoConfig(&cfg, src); err != nil {
		t.Fatalf("mergeIntoConfig failed: %v", err)
	}

	if cfg.GitHub.Owner != "acme" {
		t.Errorf("expected owner=acme, got %s", cfg.GitHub.Owner)
	}
	if cfg.GitHub.TriggerLabel != "thorfix" {
		t.Errorf("expected trigger label preserved, got %s", cfg.GitHub.TriggerLabel)
	}
	if cfg.Agent.MaxIterations != 100 {
		t.Errorf("expected agent.max_iterations preserved as 100, got %d", cfg.Agent.MaxIterations)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := DefaultConfig()

	t.Setenv("GITHUB_TOKEN", "gh-token-456")
	t.Setenv("REPO_OWNER", "acme")
	t.Setenv("REPO_NAME", "widgets")
	t.Setenv("THORFIX_MODEL", "gpt-5")
	t.Setenv("THORFIX_WORK_DIR", "/app/repository")

	applyEnvOverrides(&cfg)

	if cfg.GitHub.Token != "gh-token-456" {
		t.Errorf("expected token=gh-token-456, got %s", cfg.GitHub.Token)
	}
	if cfg.GitHub.Owner != "acme" || cfg.GitHub.Repo != "widgets" {
		t.Errorf("expected acme/widgets, got %s/%s", cfg.GitHub.Owner, cfg.GitHub.Repo)
	}
	if cfg.Agent.Model != "gpt-5" {
		t.Errorf("expected model=gpt-5, got %s", cfg.Agent.Model)
	}
	if cfg.Workspace.Root != "/app/repository" {
		t.Errorf("expected work dir override, got %s", cfg.Workspace.Root)
	}
}

func TestParseDurations_Invalid(t *testing.T) {
	m := MonitorConfig{PollInterval: "soon", ErrorBackoff: "later"}
	if m.ParsePollInterval() != 5*time.Minute {
		t.Error("expected fallback to 5m for invalid poll interval")
	}
	if m.ParseErrorBackoff() != time.Minute {
		t.Error("expected fallback to 1m for invalid backoff")
	}
	a := AgentConfig{TurnDelay: "x", BuildTimeout: "y"}
	if a.ParseTurnDelay() != 0 {
		t.Error("expected no turn delay for invalid value")
	}
	if a.ParseBuildTimeout() != 10*time.Minute {
		t.Error("expected fallback to 10m build timeout")
	}
}

func TestLoadMergesUserAndExplicit(t *testing.T) {
	isolate(t)
	userConfigDir := os.Getenv("XDG_CONFIG_HOME")

	dir := filepath.Join(userConfigDir, "thorfix")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	userConfig := []byte(`{"github":{"owner":"user-owner","repo":"widgets"},"agent":{"max_iterations":7}}`)
	if err := os.WriteFile(filepath.Join(dir, "thorfix.jsonc"), userConfig, 0644); err != nil {
		t.Fatalf("failed to write user config: %v", err)
	}

	explicit := filepath.Join(t.TempDir(), "override.jsonc")
	if err := os.WriteFile(explicit, []byte(`{"github":{"owner":"explicit-owner"}}`), 0644); err != nil {
		t.Fatalf("failed to write override config: %v", err)
	}

	t.Setenv("THORFIX_MODEL", "env-model")

	cfg, err := Load(explicit)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.GitHub.Owner != "explicit-owner" {
		t.Errorf("expected github.owner=explicit-owner, got %s", cfg.GitHub.Owner)
	}
	if cfg.GitHub.Repo != "widgets" {
		t.Errorf("expected github.repo=widgets from user config, got %s", cfg.GitHub.Repo)
	}
	if cfg.Agent.MaxIterations != 7 {
		t.Errorf("expected agent.max_iterations=7, got %d", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.Model != "env-model" {
		t.Errorf("expected env override for model, got %s", cfg.Agent.Model)
	}
	if cfg.GitHub.DoneLabel != "thordone" {
		t.Errorf("expected default done label, got %s", cfg.GitHub.DoneLabel)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.jsonc")); err == nil {
		t.Error("expected error for missing --config file")
	}
}

func TestLoad_ExpandsHome(t *testing.T) {
	isolate(t)
	home := os.Getenv("HOME")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if want := filepath.Join(home, ".local/share/thorfix/issues"); cfg.State.Dir != want {
		t.Errorf("expected state dir %s, got %s", want, cfg.State.Dir)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without owner/repo")
	}
	cfg.GitHub.Owner, cfg.GitHub.Repo = "acme", "widgets"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without token")
	}
	cfg.GitHub.Token = "t"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCloneDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workspace.Root = filepath.Join("srv", "work")
	cfg.GitHub.Repo = "widgets"
	if got, want := cfg.CloneDir(), filepath.Join("srv", "work", "widgets"); got != want {
		t.Errorf("CloneDir() = %q, want %q", got, want)
	}
}
