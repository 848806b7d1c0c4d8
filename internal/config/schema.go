package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ConfigValueType defines the expected type for a configuration value.
type ConfigValueType int

const (
	TypeBool ConfigValueType = iota
	TypeInt
	TypeFloat
	TypeDuration
	TypeString
	TypeEnum
)

// String returns the string representation of ConfigValueType.
func (t ConfigValueType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeDuration:
		return "duration"
	case TypeString:
		return "string"
	case TypeEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// ConfigKeySchema defines a known configuration key with its expected type and validation rules.
type ConfigKeySchema struct {
	Path          string          // Dotted key path (e.g., "redis.addr")
	Type          ConfigValueType // Expected value type for validation
	AllowedValues []string        // Valid values for enum types (empty for non-enums)
	Description   string          // Human-readable description for help text
	Default       interface{}     // Default value
}

// KnownKeys is the registry of all known configuration keys with their schemas.
var KnownKeys = map[string]ConfigKeySchema{
	"stage_timeout": {
		Path:        "stage_timeout",
		Type:        TypeDuration,
		Description: "Upper bound for a single stage handler",
		Default:     30 * time.Minute,
	},
	"poll_interval": {
		Path:        "poll_interval",
		Type:        TypeDuration,
		Description: "Status poll interval for progress output and SSE clients",
		Default:     2 * time.Second,
	},
	"max_parallel": {
		Path:        "max_parallel",
		Type:        TypeInt,
		Description: "Max concurrent stages inside a parallel group (1-64)",
		Default:     4,
	},
	"state_dir": {
		Path:        "state_dir",
		Type:        TypeString,
		Description: "Directory for the snapshot database, event logs and history",
		Default:     "~/.appgen/state",
	},
	"artifacts_dir": {
		Path:        "artifacts_dir",
		Type:        TypeString,
		Description: "Directory for persisted artifact copies (empty disables)",
		Default:     "./generated",
	},
	"db_path": {
		Path:        "db_path",
		Type:        TypeString,
		Description: "SQLite snapshot database (default <state_dir>/appgen.db)",
		Default:     "",
	},
	"max_history_entries": {
		Path:        "max_history_entries",
		Type:        TypeInt,
		Description: "Maximum command history entries to retain",
		Default:     500,
	},
	"generator.type": {
		Path:          "generator.type",
		Type:          TypeEnum,
		AllowedValues: []string{"template", "command"},
		Description:   "Document generator: embedded templates or an external agent command",
		Default:       "template",
	},
	"generator.command": {
		Path:        "generator.command",
		Type:        TypeString,
		Description: "Agent command line with a {{PROMPT}} placeholder",
		Default:     "",
	},
	"publish.enabled": {
		Path:        "publish.enabled",
		Type:        TypeBool,
		Description: "Commit generated files to a git repository per execution",
		Default:     true,
	},
	"publish.root": {
		Path:        "publish.root",
		Type:        TypeString,
		Description: "Parent directory for published repositories (default <state_dir>/repos)",
		Default:     "",
	},
	"publish.remote": {
		Path:        "publish.remote",
		Type:        TypeString,
		Description: "Remote URL to push to; empty keeps repositories local",
		Default:     "",
	},
	"publish.author_name": {
		Path:        "publish.author_name",
		Type:        TypeString,
		Description: "Commit author name",
		Default:     "appgen",
	},
	"publish.author_email": {
		Path:        "publish.author_email",
		Type:        TypeString,
		Description: "Commit author email",
		Default:     "appgen@appgen.local",
	},
	"http.addr": {
		Path:        "http.addr",
		Type:        TypeString,
		Description: "Listen address for appgen serve",
		Default:     ":8080",
	},
	"redis.enabled": {
		Path:        "redis.enabled",
		Type:        TypeBool,
		Description: "Publish workflow events to Redis pub/sub",
		Default:     false,
	},
	"redis.addr": {
		Path:        "redis.addr",
		Type:        TypeString,
		Description: "Redis server address",
		Default:     "localhost:6379",
	},
	"redis.password": {
		Path:        "redis.password",
		Type:        TypeString,
		Description: "Redis password",
		Default:     "",
	},
	"redis.db": {
		Path:        "redis.db",
		Type:        TypeInt,
		Description: "Redis database number",
		Default:     0,
	},
	"redis.channel_prefix": {
		Path:        "redis.channel_prefix",
		Type:        TypeString,
		Description: "Prefix for Redis event channels",
		Default:     "appgen:events",
	},
	"notifications.enabled": {
		Path:        "notifications.enabled",
		Type:        TypeBool,
		Description: "Enable desktop notifications (opt-in)",
		Default:     false,
	},
	"notifications.type": {
		Path:          "notifications.type",
		Type:          TypeEnum,
		AllowedValues: []string{"sound", "visual", "both"},
		Description:   "Notification output type",
		Default:       "both",
	},
	"notifications.sound_file": {
		Path:        "notifications.sound_file",
		Type:        TypeString,
		Description: "Custom sound file (empty = system default)",
		Default:     "",
	},
	"notifications.on_workflow_complete": {
		Path:        "notifications.on_workflow_complete",
		Type:        TypeBool,
		Description: "Notify when a workflow finishes",
		Default:     true,
	},
	"notifications.on_command_complete": {
		Path:        "notifications.on_command_complete",
		Type:        TypeBool,
		Description: "Notify when a CLI command finishes",
		Default:     false,
	},
	"notifications.on_stage_complete": {
		Path:        "notifications.on_stage_complete",
		Type:        TypeBool,
		Description: "Notify after each stage",
		Default:     false,
	},
	"notifications.on_error": {
		Path:        "notifications.on_error",
		Type:        TypeBool,
		Description: "Notify on failures",
		Default:     true,
	},
	"notifications.on_long_running": {
		Path:        "notifications.on_long_running",
		Type:        TypeBool,
		Description: "Only notify for runs longer than the threshold",
		Default:     false,
	},
	"notifications.long_running_threshold": {
		Path:        "notifications.long_running_threshold",
		Type:        TypeDuration,
		Description: "Threshold for on_long_running",
		Default:     30 * time.Second,
	},
}

// ErrUnknownKey is returned when trying to access an unknown configuration key.
type ErrUnknownKey struct {
	Key string
}

func (e ErrUnknownKey) Error() string {
	return "unknown configuration key: " + e.Key
}

// GetKeySchema returns the schema for a known configuration key.
// Returns ErrUnknownKey if the key is not in the registry.
func GetKeySchema(path string) (ConfigKeySchema, error) {
	schema, ok := KnownKeys[path]
	if !ok {
		return ConfigKeySchema{}, ErrUnknownKey{Key: path}
	}
	return schema, nil
}

// ParsedValue represents a configuration value after type inference and validation.
type ParsedValue struct {
	Raw    string      // Original string input from user
	Parsed interface{} // Value converted to correct type
	Type   ConfigValueType
}

// ValidateValue validates a value against the schema for a given key.
// Returns the parsed value or an error with details about what's wrong.
func ValidateValue(key, value string) (ParsedValue, error) {
	schema, err := GetKeySchema(key)
	if err != nil {
		return ParsedValue{}, err
	}
	return validateAgainstSchema(schema, value)
}

// validateAgainstSchema validates a value against a specific schema.
func validateAgainstSchema(schema ConfigKeySchema, value string) (ParsedValue, error) {
	switch schema.Type {
	case TypeBool:
		return parseBoolValue(value)
	case TypeInt:
		return parseIntValue(value)
	case TypeFloat:
		return parseFloatValue(value)
	case TypeDuration:
		return parseDurationValue(value)
	case TypeEnum:
		return parseEnumValue(schema, value)
	case TypeString:
		return ParsedValue{Raw: value, Parsed: value, Type: TypeString}, nil
	default:
		return ParsedValue{}, fmt.Errorf("unsupported type: %v", schema.Type)
	}
}

// parseBoolValue parses and validates a boolean value.
func parseBoolValue(value string) (ParsedValue, error) {
	switch strings.ToLower(value) {
	case "true":
		return ParsedValue{Raw: value, Parsed: true, Type: TypeBool}, nil
	case "false":
		return ParsedValue{Raw: value, Parsed: false, Type: TypeBool}, nil
	default:
		return ParsedValue{}, fmt.Errorf("invalid boolean: %q (expected true or false)", value)
	}
}

// parseIntValue parses and validates an integer value.
func parseIntValue(value string) (ParsedValue, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return ParsedValue{}, fmt.Errorf("invalid integer: %q", value)
	}
	return ParsedValue{Raw: value, Parsed: n, Type: TypeInt}, nil
}

// parseFloatValue parses and validates a float value.
func parseFloatValue(value string) (ParsedValue, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return ParsedValue{}, fmt.Errorf("invalid float: %q", value)
	}
	return ParsedValue{Raw: value, Parsed: f, Type: TypeFloat}, nil
}

// parseDurationValue parses and validates a duration value.
func parseDurationValue(value string) (ParsedValue, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return ParsedValue{}, fmt.Errorf("invalid duration: %q (examples: 5m, 1h30m, 10s)", value)
	}
	return ParsedValue{Raw: value, Parsed: d.String(), Type: TypeDuration}, nil
}

// parseEnumValue validates a value against allowed enum options.
func parseEnumValue(schema ConfigKeySchema, value string) (ParsedValue, error) {
	for _, allowed := range schema.AllowedValues {
		if value == allowed {
			return ParsedValue{Raw: value, Parsed: value, Type: TypeEnum}, nil
		}
	}
	return ParsedValue{}, fmt.Errorf(
		"invalid value: %q (valid options: %s)",
		value,
		strings.Join(schema.AllowedValues, ", "),
	)
}

// SortedKeys returns the known key paths in lexical order.
func SortedKeys() []string {
	keys := make([]string, 0, len(KnownKeys))
	for k := range KnownKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseOverride parses a "key=value" flag into a validated override for
// LoadOptions.Overrides.
func ParseOverride(kv string) (string, interface{}, error) {
	key, value, ok := strings.Cut(kv, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("invalid override %q: expected key=value", kv)
	}
	parsed, err := ValidateValue(key, value)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", key, err)
	}
	return key, parsed.Parsed, nil
}
