package cli

import (
	"fmt"
	"io"

	cerrors "github.com/ariel-frischer/appgen/internal/errors"
	"github.com/ariel-frischer/appgen/internal/history"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View command execution history",
	Long: `View a log of appgen command executions with timestamp, command name,
execution id, workflow status, exit code, and duration.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runHistoryWithStateDir(cmd, cfg.StateDir)
	},
}

func init() {
	historyCmd.GroupID = GroupConfiguration
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("command", "", "Filter by command name")
	historyCmd.Flags().IntP("limit", "n", 0, "Limit to last N entries (most recent)")
	historyCmd.Flags().Bool("clear", false, "Clear all history")
	addFormatFlags(historyCmd, false)
}

// runHistoryWithStateDir runs the history command against stateDir.
func runHistoryWithStateDir(cmd *cobra.Command, stateDir string) error {
	clearFlag, _ := cmd.Flags().GetBool("clear")
	commandFilter, _ := cmd.Flags().GetString("command")
	limit, _ := cmd.Flags().GetInt("limit")
	out := cmd.OutOrStdout()

	if limit < 0 {
		return cerrors.NewArgumentError(fmt.Sprintf("limit must be positive, got %d", limit))
	}

	if clearFlag {
		if err := history.ClearHistory(stateDir); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		fmt.Fprintln(out, "History cleared.")
		return nil
	}

	histFile, err := history.LoadHistory(stateDir)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	entries := histFile.Select(history.Filter{Command: commandFilter, Limit: limit})

	if format := selectedFormat(cmd); format != formatText {
		if entries == nil {
			entries = []history.HistoryEntry{}
		}
		return encode(out, format, entries)
	}

	if len(entries) == 0 {
		if commandFilter != "" {
			fmt.Fprintf(out, "No matching entries for command '%s'.\n", commandFilter)
		} else {
			fmt.Fprintln(out, "No history available.")
		}
		return nil
	}
	displayEntries(out, entries)
	return nil
}

// displayEntries prints one colored line per entry, newest first.
func displayEntries(out io.Writer, entries []history.HistoryEntry) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	for _, entry := range entries {
		timestamp := entry.Timestamp.Local().Format("2006-01-02 15:04:05")

		exitCodeStr := fmt.Sprintf("%d", entry.ExitCode)
		if entry.ExitCode == 0 {
			exitCodeStr = green(exitCodeStr)
		} else {
			exitCodeStr = red(exitCodeStr)
		}

		id := entry.ExecutionID
		if id == "" {
			id = "-"
		} else if len(id) > 8 {
			id = id[:8]
		}
		status := entry.Status
		if status == "" {
			status = "-"
		}

		fmt.Fprintf(out, "%s  %-8s  %-8s  %-9s  exit=%s  %s\n",
			cyan(timestamp),
			entry.Command,
			id,
			status,
			exitCodeStr,
			entry.Duration,
		)
	}
}
