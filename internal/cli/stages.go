package cli

import (
	"fmt"
	"strings"

	"github.com/ariel-frischer/appgen/internal/api"
	"github.com/spf13/cobra"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Show the stage groups, dependencies and criticality",
	Long: `Show the registered stage layout: groups in execution order, whether each
group runs sequentially or in parallel, and every stage's dependencies.
Stage names are the values accepted by 'appgen run --max-stage'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		reg, err := a.registry()
		if err != nil {
			return err
		}
		layout := api.Layout(reg)

		out := cmd.OutOrStdout()
		if format := selectedFormat(cmd); format != formatText {
			return encode(out, format, map[string]interface{}{"groups": layout})
		}
		for _, g := range layout {
			fmt.Fprintf(out, "%s (%s)\n", g.Name, g.Mode)
			for _, s := range g.Stages {
				var notes []string
				if s.Critical {
					notes = append(notes, "critical")
				}
				if s.Skip {
					notes = append(notes, "skipped")
				}
				if len(s.DependsOn) > 0 {
					notes = append(notes, "after "+strings.Join(s.DependsOn, ", "))
				}
				line := "  " + s.Name
				if len(notes) > 0 {
					line = fmt.Sprintf("  %-24s %s", s.Name, strings.Join(notes, "; "))
				}
				fmt.Fprintln(out, line)
			}
		}
		return nil
	},
}

func init() {
	stagesCmd.GroupID = GroupInspect
	rootCmd.AddCommand(stagesCmd)
	addFormatFlags(stagesCmd, true)
}
