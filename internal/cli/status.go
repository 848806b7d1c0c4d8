package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	cerrors "github.com/ariel-frischer/appgen/internal/errors"
	"github.com/ariel-frischer/appgen/internal/execution"
	"github.com/ariel-frischer/appgen/internal/progress"
	"github.com/ariel-frischer/appgen/internal/stage"
	"github.com/ariel-frischer/appgen/internal/store"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status <execution-id>",
	Aliases: []string{"st"},
	Short:   "Show the status of an execution",
	Long: `Show the current stage, progress, stage results and key artifacts of an
execution recorded in the state database.

--json and --yaml print the same document the HTTP status endpoint returns;
add --full for the complete snapshot including artifact contents and stage
timings.`,
	Example: `  appgen status 6f1c2a9e-4b7d-4f0e-9a43-2c1d5e8f7a10
  appgen status 6f1c2a9e-4b7d-4f0e-9a43-2c1d5e8f7a10 --json
  appgen status 6f1c2a9e-4b7d-4f0e-9a43-2c1d5e8f7a10 --watch`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		id := strings.TrimSpace(args[0])
		format := selectedFormat(cmd)
		full, _ := cmd.Flags().GetBool("full")
		watch, _ := cmd.Flags().GetBool("watch")
		out := cmd.OutOrStdout()

		snap, err := getSnapshot(cmd.Context(), st, id)
		if err != nil {
			return err
		}
		if watch && !snap.Status.IsTerminal() {
			snap, err = watchSnapshot(cmd.Context(), st, snap, a.cfg.PollInterval, out)
			if err != nil {
				return err
			}
		}

		if format != formatText {
			if full {
				return encode(out, format, snap)
			}
			return encode(out, format, snap.StatusView())
		}
		printStatus(out, snap, full)
		return nil
	},
}

func init() {
	statusCmd.GroupID = GroupInspect
	rootCmd.AddCommand(statusCmd)
	addFormatFlags(statusCmd, true)
	statusCmd.Flags().Bool("full", false, "Include the complete snapshot")
	statusCmd.Flags().BoolP("watch", "w", false, "Poll until the execution finishes")
}

func getSnapshot(ctx context.Context, st *store.Store, id string) (execution.Snapshot, error) {
	snap, err := st.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return snap, cerrors.ExecutionNotFound(id)
	}
	if err != nil {
		return snap, fmt.Errorf("loading execution %s: %w", id, err)
	}
	return snap, nil
}

// watchSnapshot polls the store every interval until the execution is
// terminal, printing a line whenever the stage or progress changes.
func watchSnapshot(ctx context.Context, st *store.Store, snap execution.Snapshot, interval time.Duration, out io.Writer) (execution.Snapshot, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := ""
	for {
		line := fmt.Sprintf("%3d%%  %-10s %s", snap.ProgressPercent, snap.Status, snap.Stage)
		if line != last {
			fmt.Fprintln(out, line)
			last = line
		}
		if snap.Status.IsTerminal() {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ticker.C:
		}
		next, err := getSnapshot(ctx, st, snap.ID)
		if err != nil {
			return snap, err
		}
		snap = next
	}
}

func printStatus(out io.Writer, snap execution.Snapshot, full bool) {
	fmt.Fprint(out, progress.Summary(snap, progress.DetectTerminalCapabilities()))
	if snap.Stage != "" {
		fmt.Fprintf(out, "Stage      %s\n", snap.Stage)
	}
	if len(snap.StagesCompleted) > 0 {
		fmt.Fprintf(out, "Completed  %s\n", joinStageNames(snap.StagesCompleted))
	}
	if len(snap.StagesFailed) > 0 {
		fmt.Fprintf(out, "Failed     %s\n", joinStageNames(snap.StagesFailed))
	}
	if !full {
		return
	}
	fmt.Fprintf(out, "Request    %s\n", snap.Requirements.Description)
	fmt.Fprintf(out, "Type       %s\n", snap.Requirements.ProjectType)
	for _, s := range snap.StagesCompleted {
		if d, ok := snap.StageDurations[s.String()]; ok {
			fmt.Fprintf(out, "  %-24s %s\n", s, d)
		}
	}
}

func joinStageNames(stages []stage.Stage) string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.String()
	}
	return strings.Join(names, ", ")
}
