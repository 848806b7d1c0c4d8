package errors

import (
	"fmt"
	"strings"
)

// Common error messages for the appgen CLI.

// MissingDescription creates an error for a run without a project description.
func MissingDescription() *CLIError {
	return NewArgumentErrorWithUsage(
		"project description is required",
		"appgen run \"<description>\"",
		"Describe the application to generate in quotes",
		"Example: appgen run \"Task manager with teams and due dates\"",
	)
}

// InvalidTechFlag creates an error for a --tech value that is not key=value.
func InvalidTechFlag(value string) *CLIError {
	return NewArgumentErrorWithUsage(
		fmt.Sprintf("invalid --tech value: %q", value),
		"appgen run \"<description>\" --tech frontend=react --tech backend=go",
		"Each --tech flag takes a single key=value pair",
	)
}

// ExecutionNotFound creates an error for an unknown execution id.
func ExecutionNotFound(id string) *CLIError {
	return NewNotFoundError(
		fmt.Sprintf("execution not found: %s", id),
		"List known executions with: appgen list",
		"Check that --state-dir points at the same state directory used for the run",
	)
}

// LogNotFound creates an error when an execution has no event log yet.
func LogNotFound(id, path string) *CLIError {
	return NewNotFoundError(
		fmt.Sprintf("no event log for execution %s at %s", id, path),
		"Event logs are written by 'appgen run' and 'appgen serve'",
		"Use -f to wait for the log to appear",
	)
}

// GeneratorNotFound creates an error when the configured generator command is missing.
func GeneratorNotFound(command string, err error) *CLIError {
	return WrapWithMessage(err, Prerequisite,
		fmt.Sprintf("generator command unavailable: %s", command),
		"Install the agent CLI or fix generator.command in .appgen/config.yml",
		"Or switch to the built-in templates: generator.type: template",
	)
}

// ConfigParseError creates an error for an invalid config file.
func ConfigParseError(path string, err error) *CLIError {
	return WrapWithMessage(err, Configuration,
		fmt.Sprintf("failed to load config: %s", path),
		"Check the file for YAML syntax errors",
		"Show the effective configuration with: appgen config show",
		"List known keys with: appgen config keys",
	)
}

// InvalidConfigValue creates an error for a config value outside its allowed range.
func InvalidConfigValue(key, reason string, allowed ...string) *CLIError {
	remediation := []string{fmt.Sprintf("Fix '%s' in your config file or APPGEN_%s", key, envName(key))}
	if len(allowed) > 0 {
		remediation = append(remediation, "Valid values: "+strings.Join(allowed, ", "))
	}
	return NewConfigError(fmt.Sprintf("invalid config value for %s: %s", key, reason), remediation...)
}

// InvalidFlagCombination creates an error for incompatible flag combinations.
func InvalidFlagCombination(flags string, reason string) *CLIError {
	return NewArgumentError(
		fmt.Sprintf("invalid flag combination: %s", flags),
		reason,
		"Use 'appgen <command> --help' to see valid options",
	)
}

// WorkflowFailed creates an error for a run that ended in failed status.
func WorkflowFailed(id string, err error) *CLIError {
	return WrapWithMessage(err, Runtime,
		fmt.Sprintf("workflow %s failed", id),
		"Inspect stage results with: appgen status "+id,
		"Replay the event log with: appgen logs "+id,
	)
}

// ServerStartFailed creates an error when the HTTP server cannot listen.
func ServerStartFailed(addr string, err error) *CLIError {
	return WrapWithMessage(err, Runtime,
		fmt.Sprintf("failed to start server on %s", addr),
		"Choose another address with --addr or http.addr",
		"Check that no other process is listening on the port",
	)
}

// StateDirNotWritable creates an error when the state directory cannot be used.
func StateDirNotWritable(path string, err error) *CLIError {
	return WrapWithMessage(err, Prerequisite,
		fmt.Sprintf("cannot use state directory: %s", path),
		"Check permissions with: ls -ld "+path,
		"Or pass a different directory with --state-dir",
	)
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "__"))
}
