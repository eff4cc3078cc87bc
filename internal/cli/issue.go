package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/alanmeadows/thorfix/internal/agent"
	"github.com/alanmeadows/thorfix/internal/state"
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Work with individual issues",
	Example: `  thorfix issue handle 42
  thorfix issue list`,
}

func init() {
	issueCmd.AddCommand(issueHandleCmd)
	issueCmd.AddCommand(issueListCmd)
}

var issueHandleCmd = &cobra.Command{
	Use:   "handle <number>",
	Short: "Resolve one issue now",
	Long: `Run the full fix workflow for a single issue, regardless of its labels
or conversation state. Takes the same run lock as the monitor.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[0])
		if err != nil || number <= 0 {
			return fmt.Errorf("invalid issue number %q", args[0])
		}
		tracker, err := newTracker(appConfig)
		if err != nil {
			return err
		}

		lock, err := state.AcquireRunLock(appConfig.State.Dir)
		if err != nil {
			return err
		}
		defer lock.Release()

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		client, stop, err := newModelClient(ctx, appConfig)
		if err != nil {
			return err
		}
		defer stop()

		resolver := agent.NewResolver(appConfig, tracker, client, state.New(appConfig.State.Dir))
		defer os.RemoveAll(resolver.WorkDir())
		return resolver.HandleNumber(ctx, number)
	},
}

var issueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked issues",
	Long:  `Display every issue the bot has worked on, most recently updated first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := state.New(appConfig.State.Dir).List()
		if err != nil {
			return fmt.Errorf("listing issues: %w", err)
		}
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tracked issues.")
			return nil
		}

		headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
		cellStyle := lipgloss.NewStyle().Padding(0, 1)

		rows := make([][]string, 0, len(records))
		for _, r := range records {
			rows = append(rows, []string{
				fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number),
				r.Title,
				string(r.Status),
				strconv.Itoa(r.Iterations),
				r.Branch,
				r.PRURL,
				r.Updated.Local().Format(time.DateTime),
			})
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("ISSUE", "TITLE", "STATUS", "TURNS", "BRANCH", "PULL REQUEST", "UPDATED").
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})

		fmt.Fprintln(cmd.OutOrStdout(), t)
		return nil
	},
}
