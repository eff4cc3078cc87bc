package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alanmeadows/thorfix/internal/config"
	"github.com/alanmeadows/thorfix/internal/logging"
)

var (
	verbose    bool
	configPath string
	appConfig  *config.Config
	logCloser  io.Closer

	rootCmd = &cobra.Command{
		Use:   "thorfix",
		Short: "Issue-fixing bot that edits code through patches and opens pull requests",
		Long: `Thorfix watches a GitHub repository for issues carrying a trigger label,
works on each one with a language model that edits files through
SEARCH/REPLACE blocks or unified diff hunks, and publishes the result as a
pull request.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to an additional config file")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			// A missing .env is fine.
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) {
				return fmt.Errorf("loading .env: %w", err)
			}
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		appConfig = cfg

		closer, err := logging.Setup(logging.Options{Verbose: verbose, File: cfg.Logging.File})
		if err != nil {
			return err
		}
		logCloser = closer
		return nil
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(patchCmd)
	rootCmd.AddCommand(configCmd)
}

func Execute() error {
	return rootCmd.Execute()
}
