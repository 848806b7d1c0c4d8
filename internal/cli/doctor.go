package cli

import (
	"fmt"

	cerrors "github.com/ariel-frischer/appgen/internal/errors"
	"github.com/ariel-frischer/appgen/internal/health"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that workflows can run in this environment",
	Long: `Check the configured generator, state and artifact directories, the
snapshot database, the HTTP listen address and, when enabled, Redis and the
desktop notification tools.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		report := health.NewChecker(cfg).RunHealthChecks(cmd.Context())

		out := cmd.OutOrStdout()
		if format := selectedFormat(cmd); format != formatText {
			if err := encode(out, format, report); err != nil {
				return err
			}
		} else {
			fmt.Fprint(out, health.FormatReport(report))
		}
		if !report.Passed {
			return cerrors.NewPrerequisiteError("one or more health checks failed",
				"Fix the failing checks above and run 'appgen doctor' again")
		}
		return nil
	},
}

func init() {
	doctorCmd.GroupID = GroupConfiguration
	rootCmd.AddCommand(doctorCmd)
	addFormatFlags(doctorCmd, false)
}
