package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/tidwall/jsonc"
)

const (
	appName  = "thorfix"
	fileName = "thorfix.jsonc"
)

// Load reads and merges configuration. Resolution order, later wins:
// defaults, user config (~/.config/thorfix/thorfix.jsonc), repo config
// (.thorfix/thorfix.jsonc), the explicit file at path (if non-empty), then
// environment variables.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if userPath := UserConfigPath(); userPath != "" {
		if err := mergeFile(&cfg, userPath, false); err != nil {
			return nil, fmt.Errorf("merging user config: %w", err)
		}
	}

	if repoPath := RepoConfigPath(); repoPath != "" {
		if err := mergeFile(&cfg, repoPath, false); err != nil {
			return nil, fmt.Errorf("merging repo config: %w", err)
		}
	}

	if path != "" {
		if err := mergeFile(&cfg, path, true); err != nil {
			return nil, fmt.Errorf("merging %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	cfg.expandPaths()

	return &cfg, nil
}

// mergeFile merges the JSONC file at path into cfg. A missing file is only
// an error when required is set.
func mergeFile(cfg *Config, path string, required bool) error {
	m, err := loadJSONC(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return mergeIntoConfig(cfg, m)
}

// loadJSONC reads a JSONC file and returns it as a map.
func loadJSONC(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// mergeIntoConfig marshals the config to a map, deep-merges the source map over it,
// then unmarshals back to the Config struct.
func mergeIntoConfig(cfg *Config, src map[string]any) error {
	cfgBytes, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var dst map[string]any
	if err := json.Unmarshal(cfgBytes, &dst); err != nil {
		return err
	}

	if err := mergo.Merge(&dst, src, mergo.WithOverride); err != nil {
		return err
	}

	merged, err := json.Marshal(dst)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, cfg)
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}
	if owner := os.Getenv("REPO_OWNER"); owner != "" {
		cfg.GitHub.Owner = owner
	}
	if repo := os.Getenv("REPO_NAME"); repo != "" {
		cfg.GitHub.Repo = repo
	}
	if model := os.Getenv("THORFIX_MODEL"); model != "" {
		cfg.Agent.Model = model
	}
	if dir := os.Getenv("THORFIX_WORK_DIR"); dir != "" {
		cfg.Workspace.Root = dir
	}
}

func (c *Config) expandPaths() {
	c.Workspace.Root = ExpandHome(c.Workspace.Root)
	c.State.Dir = ExpandHome(c.State.Dir)
	c.Logging.File = ExpandHome(c.Logging.File)
}

// Validate reports the first setting that prevents the agent from running.
func (c *Config) Validate() error {
	switch {
	case c.GitHub.Owner == "" || c.GitHub.Repo == "":
		return fmt.Errorf("github.owner and github.repo must be set (or REPO_OWNER / REPO_NAME)")
	case c.GitHub.Token == "":
		return fmt.Errorf("github.token must be set (or GITHUB_TOKEN)")
	case c.Agent.MaxIterations < 1:
		return fmt.Errorf("agent.max_iterations must be at least 1")
	case c.Workspace.Root == "":
		return fmt.Errorf("workspace.root must be set")
	}
	return nil
}

// CloneDir is where the target repository is checked out.
func (c *Config) CloneDir() string {
	return filepath.Join(c.Workspace.Root, c.GitHub.Repo)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// UserConfigPath returns the user-level config file path, or "" if the
// config directory cannot be determined.
func UserConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appName, fileName)
}

// RepoConfigPath returns the repo-level config file path, or "" outside a
// git repository.
func RepoConfigPath() string {
	root := RepoRoot()
	if root == "" {
		return ""
	}
	return filepath.Join(root, "."+appName, fileName)
}

// RepoRoot returns the detected git repository root, or empty string if not in a repo.
func RepoRoot() string {
	out, err := exec.Command("git", "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
