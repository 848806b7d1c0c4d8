package config

import (
	"time"

	"github.com/ariel-frischer/appgen/internal/notify"
)

// GetDefaultConfigTemplate returns a commented config file covering every key.
func GetDefaultConfigTemplate() string {
	return `# appgen configuration
# See 'appgen config keys' for all options. Env overrides use APPGEN_<KEY>,
# with '__' between nested keys (APPGEN_HTTP__ADDR=:9090).

# Workflow settings
stage_timeout: 30m                    # Upper bound for a single stage handler
poll_interval: 2s                     # Status poll interval for progress and SSE clients
max_parallel: 4                       # Max concurrent stages inside a parallel group

# Storage
state_dir: ~/.appgen/state            # Snapshots DB, event logs, history
artifacts_dir: ./generated            # Persisted artifact copies (empty = do not persist)
db_path: ""                           # Default: <state_dir>/appgen.db
max_history_entries: 500              # Max command history entries to retain

# Document generation
generator:
  type: template                      # template | command
  command: ""                         # e.g. "claude -p {{PROMPT}}" when type is command

# Repository publishing
publish:
  enabled: true                       # Commit generated files to a git repository per execution
  root: ""                            # Default: <state_dir>/repos
  remote: ""                          # Push target; empty keeps the repository local
  author_name: appgen
  author_email: appgen@appgen.local

# Status API (appgen serve)
http:
  addr: ":8080"

# Redis event channel (appgen serve)
redis:
  enabled: false
  addr: localhost:6379
  password: ""
  db: 0
  channel_prefix: appgen:events

# Desktop notifications
notifications:
  enabled: false                      # Opt-in
  type: both                          # sound | visual | both
  sound_file: ""                      # Empty = system default
  on_workflow_complete: true
  on_command_complete: false
  on_stage_complete: false
  on_error: true
  on_long_running: false
  long_running_threshold: 30s
`
}

// GetDefaults returns the default configuration values as flat dotted keys.
// The notifications section comes from notify.DefaultConfig.
func GetDefaults() map[string]interface{} {
	n := notify.DefaultConfig()
	return map[string]interface{}{
		"stage_timeout":       30 * time.Minute,
		"poll_interval":       2 * time.Second,
		"max_parallel":        4,
		"state_dir":           "~/.appgen/state",
		"artifacts_dir":       "./generated",
		"db_path":             "",
		"max_history_entries": 500,

		"generator.type":    "template",
		"generator.command": "",

		"publish.enabled":      true,
		"publish.root":         "",
		"publish.remote":       "",
		"publish.author_name":  "appgen",
		"publish.author_email": "appgen@appgen.local",

		"http.addr": ":8080",

		"redis.enabled":        false,
		"redis.addr":           "localhost:6379",
		"redis.password":       "",
		"redis.db":             0,
		"redis.channel_prefix": "appgen:events",

		"notifications.enabled":                n.Enabled,
		"notifications.type":                   string(n.Type),
		"notifications.sound_file":             n.SoundFile,
		"notifications.on_workflow_complete":   n.OnWorkflowComplete,
		"notifications.on_command_complete":    n.OnCommandComplete,
		"notifications.on_stage_complete":      n.OnStageComplete,
		"notifications.on_error":               n.OnError,
		"notifications.on_long_running":        n.OnLongRunning,
		"notifications.long_running_threshold": n.LongRunningThreshold,
	}
}
