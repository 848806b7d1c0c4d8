package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ariel-frischer/appgen/internal/config"
	cerrors "github.com/ariel-frischer/appgen/internal/errors"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and initialize appgen configuration",
	Long: `Inspect and initialize appgen configuration.

Configuration is loaded with the following priority (highest to lowest):
  1. --set key=value and --state-dir flags
  2. Environment variables (APPGEN_*, '__' between nested keys)
  3. Project config (.appgen/config.yml, or --config)
  4. User config (~/.config/appgen/config.yml)
  5. Built-in defaults`,
	Example: `  # Show the effective configuration
  appgen config show

  # Show where each value came from
  appgen config show --sources

  # List all keys with types and defaults
  appgen config keys

  # Write a commented project config
  appgen config init`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if showSources, _ := cmd.Flags().GetBool("sources"); showSources {
			opts, err := loadOptions(cmd)
			if err != nil {
				return err
			}
			sources, err := config.Sources(opts)
			if err != nil {
				return cerrors.ConfigParseError(configPathForError(opts), err)
			}
			for key := range opts.Overrides {
				sources[key] = "flag"
			}
			keys := make([]string, 0, len(sources))
			for k := range sources {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%-40s %s\n", k, sources[k])
			}
			return nil
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		format := selectedFormat(cmd)
		if format == formatText {
			format = formatYAML
		}
		return encode(out, format, cfg)
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List known configuration keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, key := range config.SortedKeys() {
			schema := config.KnownKeys[key]
			typ := schema.Type.String()
			if len(schema.AllowedValues) > 0 {
				typ = fmt.Sprintf("%s(%v)", typ, schema.AllowedValues)
			}
			fmt.Fprintf(out, "%-40s %-28s default=%v\n", key, typ, schema.Default)
			if schema.Description != "" {
				fmt.Fprintf(out, "    %s\n", schema.Description)
			}
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented config file",
	Long: `Write a config file containing every key with its default value.
By default the project config (.appgen/config.yml) is written; --user writes
the user config instead. Existing files are kept unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetBool("user")
		force, _ := cmd.Flags().GetBool("force")

		path, _ := cmd.Flags().GetString("config")
		if user {
			p, err := config.UserConfigPath()
			if err != nil {
				return cerrors.NewRuntimeError(fmt.Sprintf("cannot locate user config directory: %v", err))
			}
			path = p
		} else if path == "" {
			path = config.ProjectConfigPath()
		}

		if _, err := os.Stat(path); err == nil && !force {
			return cerrors.NewArgumentError(
				fmt.Sprintf("config file already exists: %s", path),
				"Use --force to overwrite it",
			)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.GetDefaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	configCmd.GroupID = GroupConfiguration
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configKeysCmd, configInitCmd)

	addFormatFlags(configShowCmd, true)
	configShowCmd.Flags().Bool("sources", false, "Show which layer supplied each key")

	configInitCmd.Flags().Bool("user", false, "Write the user config instead of the project config")
	configInitCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")
}
