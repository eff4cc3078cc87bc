package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/sjson"

	"github.com/alanmeadows/thorfix/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage thorfix configuration",
	Long:  `Show and modify thorfix configuration values.`,
}

var (
	configJSONFlag bool
	configUserFlag bool
)

func init() {
	configShowCmd.Flags().BoolVar(&configJSONFlag, "json", false, "Output raw JSON without formatting")
	configSetCmd.Flags().BoolVar(&configUserFlag, "user", false, "Write to the user config instead of the repository config")
	configCmd.AddCommand(configShowCmd, configGetCmd, configSetCmd, configPathCmd, configKeysCmd)
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "List config files in merge order",
	RunE: func(cmd *cobra.Command, args []string) error {
		sources := []struct{ name, path string }{
			{"user", config.UserConfigPath()},
			{"repo", config.RepoConfigPath()},
			{"flag", configPath},
		}
		for _, src := range sources {
			if src.path == "" {
				continue
			}
			status := "missing"
			if _, err := os.Stat(src.path); err == nil {
				status = "found"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-5s %s (%s)\n", src.name, src.path, status)
		}
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List settable config keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := config.Keys()
		for _, name := range config.KeyNames() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-26s %s\n", name, keys[name])
		}
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show merged configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := mergedConfigJSON(!configJSONFlag)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:     "get <key>",
	Short:   "Print one merged config value",
	Example: `  thorfix config get agent.max_iterations`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if _, ok := config.Keys()[key]; !ok {
			return fmt.Errorf("unknown config key %q", key)
		}
		data, err := mergedConfigJSON(false)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), gjson.GetBytes(data, key).String())
		return nil
	},
}

// mergedConfigJSON renders the effective config with secrets masked.
func mergedConfigJSON(indent bool) ([]byte, error) {
	cfg := appConfig
	if cfg == nil {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}
	redacted := redactConfig(cfg)

	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(redacted, "", "  ")
	} else {
		data, err = json.Marshal(redacted)
	}
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}

// redactConfig returns a copy of the config with secret fields masked.
func redactConfig(cfg *config.Config) *config.Config {
	c := *cfg
	if c.GitHub.Token != "" {
		c.GitHub.Token = "***"
	}
	return &c
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Long: `Set a configuration value using a dotted key path.

The value is written to .thorfix/thorfix.jsonc in the repository root, or to
the user config file with --user. The file is created if it does not exist.
Run "thorfix config keys" for the list of keys.

Note: JSONC comments are not preserved on write.`,
	Example: `  thorfix config set agent.model claude-sonnet-4.5
  thorfix config set agent.max_iterations 40
  thorfix config set --user merge.auto_merge true`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if strings.HasPrefix(key, "github.token") {
			return fmt.Errorf("refusing to store github.token in a config file; set GITHUB_TOKEN instead")
		}
		value, err := config.ParseValue(key, args[1])
		if err != nil {
			return err
		}

		target := config.RepoConfigPath()
		if configUserFlag {
			target = config.UserConfigPath()
		}
		if target == "" {
			if configUserFlag {
				return fmt.Errorf("cannot determine user config directory")
			}
			return fmt.Errorf("not in a git repository (use --user)")
		}

		existing := []byte("{}")
		if data, err := os.ReadFile(target); err == nil {
			// sjson needs plain JSON.
			existing = jsonc.ToJSON(data)
		}

		updated, err := sjson.SetBytes(existing, key, value)
		if err != nil {
			return fmt.Errorf("setting key %q: %w", key, err)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.WriteFile(target, updated, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v in %s\n", key, value, target)
		return nil
	},
}
