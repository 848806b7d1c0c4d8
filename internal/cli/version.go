package cli

import (
	"fmt"

	"github.com/ariel-frischer/appgen/internal/version"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// SourceURL is the project repository.
const SourceURL = "https://github.com/ariel-frischer/appgen"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		info := version.Get()

		if format := selectedFormat(cmd); format != formatText {
			return encode(out, format, info)
		}
		if plain, _ := cmd.Flags().GetBool("plain"); plain {
			fmt.Fprintln(out, info.String())
			return nil
		}

		bold := color.New(color.Bold).SprintFunc()
		fmt.Fprintf(out, "%s %s\n", bold("appgen"), info.Version)
		fmt.Fprintf(out, "  commit:   %s\n", info.Commit)
		fmt.Fprintf(out, "  built:    %s\n", info.BuildDate)
		fmt.Fprintf(out, "  go:       %s\n", info.GoVersion)
		fmt.Fprintf(out, "  platform: %s\n", info.Platform)
		if version.IsDevBuild() {
			fmt.Fprintln(out, "  (development build)")
		}
		return nil
	},
}

var sauceCmd = &cobra.Command{
	Use:    "sauce",
	Short:  "Print the source repository URL",
	Long:   "Print the URL of the appgen source repository.",
	Hidden: true,
	Args:   cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), SourceURL)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd, sauceCmd)
	addFormatFlags(versionCmd, false)
	versionCmd.Flags().Bool("plain", false, "Print a single line")
	rootCmd.Version = version.Get().String()
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}
