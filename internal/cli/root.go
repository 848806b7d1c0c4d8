// appgen - Application Generation Pipeline
// Author: Ariel Frischer
// Source: https://github.com/ariel-frischer/appgen

// Package cli implements the appgen command line.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cerrors "github.com/ariel-frischer/appgen/internal/errors"
	"github.com/spf13/cobra"
)

// Command groups shown in help output.
const (
	GroupWorkflow      = "workflow"
	GroupInspect       = "inspect"
	GroupConfiguration = "configuration"
)

var rootCmd = &cobra.Command{
	Use:   "appgen",
	Short: "Run the application generation pipeline",
	Long: `appgen turns a plain-language project description into planning documents,
code skeletons, reports and a git repository by running a fixed pipeline of
stages: requirements, architecture, development, quality, delivery and
finalization.

Runs are recorded in a local SQLite database so their status can be queried
later or served over HTTP with 'appgen serve'.`,
	Example: `  # Generate a project and show progress
  appgen run "Task manager with teams and due dates" --progress

  # Stop after the architecture stage
  appgen run "Recipe sharing site" --max-stage architecture_design

  # Inspect a run
  appgen status 6f1c2a9e-...

  # Serve the status API
  appgen serve --addr :8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupWorkflow, Title: "Workflow Commands:"},
		&cobra.Group{ID: GroupInspect, Title: "Inspection Commands:"},
		&cobra.Group{ID: GroupConfiguration, Title: "Configuration Commands:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Project config file (default .appgen/config.yml)")
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("state-dir", "", "Override state_dir (database, logs, history)")
	flags.StringArray("set", nil, "Override a config key, e.g. --set max_parallel=2 (repeatable)")
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
// Errors are printed to stderr before being returned.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		cerrors.PrintError(err)
	}
	return err
}
