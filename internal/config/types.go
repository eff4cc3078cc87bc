package config

import "time"

// Config is the top-level thorfix configuration.
type Config struct {
	GitHub    GitHubConfig    `json:"github"`
	Agent     AgentConfig     `json:"agent"`
	Workspace WorkspaceConfig `json:"workspace"`
	Monitor   MonitorConfig   `json:"monitor"`
	Merge     MergeConfig     `json:"merge"`
	Logging   LoggingConfig   `json:"logging"`
	State     StateConfig     `json:"state"`
}

// GitHubConfig identifies the watched repository and how issues are marked.
type GitHubConfig struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
	Token string `json:"token,omitempty"`
	// BaseURL points at a GitHub Enterprise API root. Empty means github.com.
	BaseURL      string `json:"base_url,omitempty"`
	TriggerLabel string `json:"trigger_label"`
	DoneLabel    string `json:"done_label"`
	// Marker prefixes every comment the bot posts, and identifies them later.
	Marker string `json:"marker"`
}

// AgentConfig controls the model conversation for one issue.
type AgentConfig struct {
	Model string `json:"model"`
	// ServerURL points at a shared headless Copilot server. Empty starts a
	// private one.
	ServerURL     string `json:"server_url,omitempty"`
	MaxIterations int    `json:"max_iterations"`
	MaxRetries    int    `json:"max_retries"`
	// TurnDelay throttles consecutive prompts.
	TurnDelay    string `json:"turn_delay"`
	BuildCommand string `json:"build_command"`
	BuildTimeout string `json:"build_timeout"`
	Verify       *bool  `json:"verify"`
}

// ParseTurnDelay returns the delay between turns. Invalid values mean none.
func (a AgentConfig) ParseTurnDelay() time.Duration {
	d, err := time.ParseDuration(a.TurnDelay)
	if err != nil {
		return 0
	}
	return d
}

// ParseBuildTimeout returns the build timeout as a time.Duration.
func (a AgentConfig) ParseBuildTimeout() time.Duration {
	d, err := time.ParseDuration(a.BuildTimeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// IsVerifyEnabled reports whether a finished change is sent back for review.
// Defaults to true when not explicitly set.
func (a AgentConfig) IsVerifyEnabled() bool {
	if a.Verify == nil {
		return true
	}
	return *a.Verify
}

// WorkspaceConfig controls where and how repositories are checked out.
type WorkspaceConfig struct {
	Root           string `json:"root"`
	BranchTemplate string `json:"branch_template"`
	// BaseBranch overrides the repository default branch.
	BaseBranch  string `json:"base_branch,omitempty"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
}

// MonitorConfig holds issue polling settings.
type MonitorConfig struct {
	PollInterval string `json:"poll_interval"`
	ErrorBackoff string `json:"error_backoff"`
}

// ParsePollInterval returns the poll interval as a time.Duration.
func (m MonitorConfig) ParsePollInterval() time.Duration {
	d, err := time.ParseDuration(m.PollInterval)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// ParseErrorBackoff returns the delay after a failed poll.
func (m MonitorConfig) ParseErrorBackoff() time.Duration {
	d, err := time.ParseDuration(m.ErrorBackoff)
	if err != nil {
		return time.Minute
	}
	return d
}

// MergeConfig controls what happens to a pull request once it is opened.
type MergeConfig struct {
	AutoMerge bool   `json:"auto_merge"`
	Method    string `json:"method"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	File string `json:"file,omitempty"`
}

// StateConfig locates the issue record store.
type StateConfig struct {
	Dir string `json:"dir"`
}

func boolPtr(b bool) *bool {
	return &b
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		GitHub: GitHubConfig{
			TriggerLabel: "thorfix",
			DoneLabel:    "thordone",
			Marker:       "[FROM THOR]",
		},
		Agent: AgentConfig{
			Model:         "claude-sonnet-4.5",
			MaxIterations: 100,
			MaxRetries:    3,
			TurnDelay:     "0s",
			BuildTimeout:  "10m",
			Verify:        boolPtr(true),
		},
		Workspace: WorkspaceConfig{
			Root:           "~/.local/share/thorfix/workspace",
			BranchTemplate: "thorfix/{{.Number}}-{{.Name}}",
			AuthorName:     "thorfix",
			AuthorEmail:    "thorfix@users.noreply.github.com",
		},
		Monitor: MonitorConfig{
			PollInterval: "5m",
			ErrorBackoff: "1m",
		},
		Merge: MergeConfig{
			Method: "squash",
		},
		State: StateConfig{
			Dir: "~/.local/share/thorfix/issues",
		},
	}
}
