package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	cerrors "github.com/ariel-frischer/appgen/internal/errors"
	"github.com/ariel-frischer/appgen/internal/events"
	"github.com/ariel-frischer/appgen/internal/execution"
	"github.com/ariel-frischer/appgen/internal/guard"
	"github.com/ariel-frischer/appgen/internal/lifecycle"
	"github.com/ariel-frischer/appgen/internal/progress"
	"github.com/ariel-frischer/appgen/internal/runner"
	"github.com/ariel-frischer/appgen/internal/stage"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <description>",
	Short: "Generate a project from a description",
	Long: `Run the full generation pipeline for a project description and wait for it
to finish.

Stages run group by group in their fixed order ('appgen stages' shows the
layout); groups declared parallel run up to max_parallel stages at once.
A failed critical stage fails the workflow; a failed non-critical stage is
recorded and the run continues.

The exit code is 0 when the workflow completes, 1 when it fails and 5 when
--timeout expires.`,
	Example: `  # Generate a web app
  appgen run "Task manager with teams and due dates"

  # Set project type, features and technology preferences
  appgen run "Inventory tracker" --project-type api \
    --feature "barcode scanning" --feature "csv export" \
    --tech backend=go --tech database=postgres

  # Stop after architecture design and print JSON
  appgen run "Recipe sharing site" --max-stage architecture_design --json`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildRequest(cmd, args)
		if err != nil {
			return err
		}
		jsonOut, _ := cmd.Flags().GetBool("json")
		showProgress, _ := cmd.Flags().GetBool("progress")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		if jsonOut && showProgress {
			return cerrors.InvalidFlagCombination("--json and --progress", "Progress lines would corrupt the JSON document")
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		return lifecycle.RunWithHistory(a.notifier, a.history, "run", func() (lifecycle.Outcome, error) {
			snap, err := executeRun(cmd, a, req, runOptions{progress: showProgress, json: jsonOut, timeout: timeout})
			return lifecycle.Outcome{ExecutionID: snap.ID, Status: string(snap.Status)}, err
		})
	},
}

func init() {
	runCmd.GroupID = GroupWorkflow
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("project-type", execution.DefaultProjectType, "Project type (web_app, api, mobile_app, ...)")
	runCmd.Flags().StringArray("feature", nil, "Requested feature (repeatable)")
	runCmd.Flags().StringArray("tech", nil, "Technology preference as key=value (repeatable)")
	runCmd.Flags().String("max-stage", "", "Stop after this stage (see 'appgen stages')")
	runCmd.Flags().Duration("timeout", 0, "Fail the run after this long (0 = no limit)")
	runCmd.Flags().Bool("progress", false, "Show per-stage progress while running")
	runCmd.Flags().Bool("json", false, "Print the final snapshot as JSON")
}

type runOptions struct {
	progress bool
	json     bool
	timeout  time.Duration
}

// buildRequest turns the run arguments and flags into a request.
func buildRequest(cmd *cobra.Command, args []string) (execution.Request, error) {
	description := strings.TrimSpace(strings.Join(args, " "))
	if description == "" {
		return execution.Request{}, cerrors.MissingDescription()
	}
	projectType, _ := cmd.Flags().GetString("project-type")
	features, _ := cmd.Flags().GetStringArray("feature")
	techs, _ := cmd.Flags().GetStringArray("tech")
	maxStage, _ := cmd.Flags().GetString("max-stage")

	prefs, err := parseTechPreferences(techs)
	if err != nil {
		return execution.Request{}, err
	}
	return execution.Request{
		Description:           description,
		ProjectType:           projectType,
		Features:              features,
		TechnologyPreferences: prefs,
		MaxStage:              maxStage,
	}, nil
}

func parseTechPreferences(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	prefs := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			return nil, cerrors.InvalidTechFlag(v)
		}
		prefs[key] = value
	}
	return prefs, nil
}

// executeRun runs req to completion and prints the result.
func executeRun(cmd *cobra.Command, a *app, req execution.Request, opts runOptions) (execution.Snapshot, error) {
	out := cmd.OutOrStdout()
	caps := progress.DetectTerminalCapabilities()

	// The display needs the planned stage count, which is only known once
	// the registry exists, so the reporter resolves it lazily.
	var display *progress.Display
	var extra []runner.Option
	if opts.progress {
		extra = append(extra, runner.WithReporter(events.ReporterFunc(func(ev events.Event) {
			if display != nil {
				display.Report(ev)
			}
		})))
	}
	m, err := a.manager(extra...)
	if err != nil {
		return execution.Snapshot{}, err
	}
	if opts.progress {
		limit := stage.Parse(req.MaxStage)
		display = progress.NewDisplay(out, caps, m.Registry().Planned(limit, limit.Valid()))
		defer display.Stop()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	a.debugLog("submitting run: project_type=%s features=%d max_stage=%q", req.ProjectType, len(req.Features), req.MaxStage)
	start := time.Now()
	snap, err := m.Run(ctx, req)
	if err != nil && snap.ID == "" {
		if errors.Is(err, execution.ErrMissingDescription) {
			return snap, cerrors.MissingDescription()
		}
		return snap, fmt.Errorf("starting workflow: %w", err)
	}
	if display != nil {
		display.Stop()
	}

	if opts.json {
		if encErr := encode(out, formatJSON, snap); encErr != nil {
			return snap, encErr
		}
	} else {
		fmt.Fprint(out, progress.Summary(snap, caps))
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return snap, withExitCode(ExitTimeout, cerrors.WorkflowFailed(snap.ID,
			guard.NewTimeoutError(opts.timeout, time.Since(start))))
	}
	if snap.Status == execution.StatusFailed {
		if err == nil {
			err = errors.New(strings.Join(snap.Errors, "; "))
		}
		return snap, withExitCode(ExitWorkflowFailed, cerrors.WorkflowFailed(snap.ID, err))
	}
	return snap, nil
}
