package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// outputFormat is the machine-readable format selected by --json or --yaml.
type outputFormat string

const (
	formatText outputFormat = ""
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

// addFormatFlags registers --json and, when withYAML is set, --yaml.
func addFormatFlags(cmd *cobra.Command, withYAML bool) {
	cmd.Flags().Bool("json", false, "Output as JSON")
	if withYAML {
		cmd.Flags().Bool("yaml", false, "Output as YAML")
		cmd.MarkFlagsMutuallyExclusive("json", "yaml")
	}
}

func selectedFormat(cmd *cobra.Command) outputFormat {
	if on, _ := cmd.Flags().GetBool("json"); on {
		return formatJSON
	}
	if on, _ := cmd.Flags().GetBool("yaml"); on {
		return formatYAML
	}
	return formatText
}

// encode writes v in the machine-readable format f.
func encode(w io.Writer, f outputFormat, v interface{}) error {
	switch f {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", f)
	}
	return nil
}
