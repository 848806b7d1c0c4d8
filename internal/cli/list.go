package cli

import (
	"fmt"
	"io"
	"strings"

	cerrors "github.com/ariel-frischer/appgen/internal/errors"
	"github.com/ariel-frischer/appgen/internal/execution"
	"github.com/ariel-frischer/appgen/internal/store"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recorded executions, newest first",
	Example: `  appgen list
  appgen list --status failed -n 5
  appgen list --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		status, _ := cmd.Flags().GetString("status")
		if limit < 0 {
			return cerrors.NewArgumentError(fmt.Sprintf("limit must be positive, got %d", limit))
		}
		filter := store.Filter{Limit: limit}
		if status != "" {
			filter.Status = execution.Status(strings.ToLower(status))
			if !validStatus(filter.Status) {
				return cerrors.NewArgumentError(
					fmt.Sprintf("unknown status %q", status),
					"Valid values: pending, running, completed, failed",
				)
			}
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		st, err := a.openStore()
		if err != nil {
			return err
		}
		a.own(st)

		snaps, err := st.List(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("listing executions: %w", err)
		}

		out := cmd.OutOrStdout()
		if format := selectedFormat(cmd); format != formatText {
			views := make([]execution.StatusView, len(snaps))
			for i, s := range snaps {
				views[i] = s.StatusView()
			}
			return encode(out, format, views)
		}
		if len(snaps) == 0 {
			fmt.Fprintln(out, "No executions recorded.")
			return nil
		}
		printExecutions(out, snaps)
		return nil
	},
}

func init() {
	listCmd.GroupID = GroupInspect
	rootCmd.AddCommand(listCmd)
	addFormatFlags(listCmd, false)
	listCmd.Flags().IntP("limit", "n", store.DefaultListLimit, "Maximum number of executions")
	listCmd.Flags().String("status", "", "Only show executions in this status")
}

func validStatus(s execution.Status) bool {
	switch s {
	case execution.StatusPending, execution.StatusRunning, execution.StatusCompleted, execution.StatusFailed:
		return true
	}
	return false
}

func printExecutions(out io.Writer, snaps []execution.Snapshot) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	for _, s := range snaps {
		status := fmt.Sprintf("%-9s", s.Status)
		switch s.Status {
		case execution.StatusCompleted:
			status = green(status)
		case execution.StatusFailed:
			status = red(status)
		}
		desc := s.Requirements.Description
		if len(desc) > 48 {
			desc = desc[:45] + "..."
		}
		fmt.Fprintf(out, "%s  %s  %s  %3d%%  %s\n",
			cyan(s.CreatedAt.Local().Format("2006-01-02 15:04:05")),
			s.ID,
			status,
			s.ProgressPercent,
			desc,
		)
	}
}
