package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alanmeadows/thorfix/internal/patch"
)

var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Apply and produce text patches",
	Long: `Apply SEARCH/REPLACE blocks or unified diff hunks to a file, or produce
unified hunks between two files. These are the same operations the model
uses through its file tools.`,
	Example: `  thorfix patch apply main.go --diff fix.txt
  git diff | thorfix patch apply main.go --diff - --format unified --yes
  thorfix patch diff old.go new.go`,
}

var (
	patchDiffSource string
	patchFormat     string
	patchRoot       string
	patchDryRun     bool
	patchYes        bool
)

func init() {
	patchApplyCmd.Flags().StringVarP(&patchDiffSource, "diff", "d", "", "File holding the patch, or - for stdin")
	patchApplyCmd.Flags().StringVarP(&patchFormat, "format", "f", "search-replace", "Patch format: search-replace or unified")
	patchApplyCmd.Flags().StringVar(&patchRoot, "root", ".", "Directory paths are confined to")
	patchApplyCmd.Flags().BoolVar(&patchDryRun, "dry-run", false, "Print the resulting change instead of writing it")
	patchApplyCmd.Flags().BoolVarP(&patchYes, "yes", "y", false, "Apply without asking for confirmation")
	_ = patchApplyCmd.MarkFlagRequired("diff")

	patchCmd.AddCommand(patchApplyCmd)
	patchCmd.AddCommand(patchDiffCmd)
}

var patchApplyCmd = &cobra.Command{
	Use:   "apply <path>",
	Short: "Apply a patch to a file",
	Long: `Apply a patch to a file. The whole patch applies or nothing is written.

Search-replace blocks must match the file literally; the first occurrence
of each search text is replaced. Unified hunks must match context and
removed lines exactly at the positions their headers name.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := patch.ParseFormat(patchFormat)
		if err != nil {
			return err
		}
		diffText, err := readPatchSource(cmd.InOrStdin(), patchDiffSource)
		if err != nil {
			return err
		}

		svc := patch.NewService(patchRoot)
		path := args[0]
		out := cmd.OutOrStdout()

		interactive := !patchYes && patchDiffSource != "-" && isTerminal(os.Stdin)
		if patchDryRun || interactive {
			updated, err := svc.Preview(path, diffText, format)
			if err != nil {
				return err
			}
			change, err := svc.Diff(path, updated)
			if err != nil {
				return err
			}
			fmt.Fprint(out, renderDiff(change, isTerminal(os.Stdout)))
			if patchDryRun {
				return nil
			}

			var confirmed bool
			if err := huh.NewConfirm().
				Title(fmt.Sprintf("Apply this change to %s?", path)).
				Value(&confirmed).
				Run(); err != nil {
				return fmt.Errorf("confirmation cancelled: %w", err)
			}
			if !confirmed {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}
		}

		res, err := svc.Apply(cmd.Context(), path, diffText, format)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, res.Message())
		return nil
	},
}

var patchDiffCmd = &cobra.Command{
	Use:   "diff <original> <modified>",
	Short: "Print unified hunks between two files",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		original, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		modified, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[1], err)
		}
		fmt.Fprint(cmd.OutOrStdout(), renderDiff(patch.CreatePatch(string(original), string(modified)), isTerminal(os.Stdout)))
		return nil
	},
}

func readPatchSource(stdin io.Reader, source string) (string, error) {
	if source == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading patch from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("reading patch: %w", err)
	}
	return string(data), nil
}

var (
	hunkHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	addStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	removeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// renderDiff colours hunk headers, additions and removals when color is set.
func renderDiff(diff string, color bool) string {
	if !color || diff == "" {
		return diff
	}
	lines := strings.SplitAfter(diff, "\n")
	var sb strings.Builder
	for _, l := range lines {
		body := strings.TrimSuffix(l, "\n")
		switch {
		case strings.HasPrefix(body, "@@"):
			body = hunkHeaderStyle.Render(body)
		case strings.HasPrefix(body, "+"):
			body = addStyle.Render(body)
		case strings.HasPrefix(body, "-"):
			body = removeStyle.Render(body)
		}
		sb.WriteString(body)
		if strings.HasSuffix(l, "\n") {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
