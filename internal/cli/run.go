package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alanmeadows/thorfix/internal/agent"
	"github.com/alanmeadows/thorfix/internal/state"
)

var runOnce bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the repository and resolve labelled issues",
	Long: `Poll the configured repository for open issues carrying the trigger label
and resolve them one at a time. Issues already carrying the done label, or
whose last comment came from the bot, are skipped until someone replies.

Only one monitor may run against a state directory at a time.`,
	Example: `  thorfix run
  thorfix run --once
  REPO_OWNER=acme REPO_NAME=widgets thorfix run -v`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, err := newTracker(appConfig)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		client, stop, err := newModelClient(ctx, appConfig)
		if err != nil {
			return err
		}
		defer stop()

		resolver := agent.NewResolver(appConfig, tracker, client, state.New(appConfig.State.Dir))
		return agent.NewMonitor(appConfig, tracker, resolver).Run(ctx, runOnce)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single poll cycle and exit")
}
