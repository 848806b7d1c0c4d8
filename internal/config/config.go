// appgen - Application Generation Pipeline
// Author: Ariel Frischer
// Source: https://github.com/ariel-frischer/appgen

// Package config provides layered configuration for appgen using koanf.
// Values are resolved with priority: environment variables (APPGEN_*) >
// project config (.appgen/config.yml) > user config (~/.config/appgen/config.yml)
// > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ariel-frischer/appgen/internal/notify"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides. A double underscore
// separates nested keys: APPGEN_HTTP__ADDR sets http.addr.
const EnvPrefix = "APPGEN_"

// ConfigSource tracks where a configuration value came from
type ConfigSource string

const (
	SourceDefault ConfigSource = "default"
	SourceUser    ConfigSource = "user"
	SourceProject ConfigSource = "project"
	SourceEnv     ConfigSource = "env"
)

// Configuration represents the appgen configuration.
type Configuration struct {
	// StageTimeout bounds each stage handler invocation.
	StageTimeout time.Duration `koanf:"stage_timeout" yaml:"stage_timeout" json:"stage_timeout" validate:"gt=0"`
	// PollInterval is how often `appgen run --progress` and the SSE stream poll status.
	PollInterval time.Duration `koanf:"poll_interval" yaml:"poll_interval" json:"poll_interval" validate:"gt=0"`
	// MaxParallel caps concurrently running stages inside a parallel group.
	MaxParallel int `koanf:"max_parallel" yaml:"max_parallel" json:"max_parallel" validate:"min=1,max=64"`

	StateDir     string `koanf:"state_dir" yaml:"state_dir" json:"state_dir" validate:"required"`
	ArtifactsDir string `koanf:"artifacts_dir" yaml:"artifacts_dir" json:"artifacts_dir"`
	// DBPath defaults to <state_dir>/appgen.db when empty.
	DBPath string `koanf:"db_path" yaml:"db_path" json:"db_path"`

	// MaxHistoryEntries sets the maximum number of command history entries to retain.
	MaxHistoryEntries int `koanf:"max_history_entries" yaml:"max_history_entries" json:"max_history_entries" validate:"min=1"`

	Generator GeneratorConfig `koanf:"generator" yaml:"generator" json:"generator"`
	Publish   PublishConfig   `koanf:"publish" yaml:"publish" json:"publish"`
	HTTP      HTTPConfig      `koanf:"http" yaml:"http" json:"http"`
	Redis     RedisConfig     `koanf:"redis" yaml:"redis" json:"redis"`

	Notifications notify.NotificationConfig `koanf:"notifications" yaml:"notifications" json:"notifications"`
}

// GeneratorConfig selects how stage documents are produced.
type GeneratorConfig struct {
	// Type is "template" (embedded documents) or "command" (external agent CLI).
	Type string `koanf:"type" yaml:"type" json:"type" validate:"oneof=template command"`
	// Command is the agent command line with a {{PROMPT}} placeholder.
	Command string `koanf:"command" yaml:"command" json:"command"`
}

// PublishConfig controls the repository publishing stage.
type PublishConfig struct {
	Enabled bool `koanf:"enabled" yaml:"enabled" json:"enabled"`
	// Root holds one git repository per execution. Defaults to <state_dir>/repos.
	Root        string `koanf:"root" yaml:"root" json:"root"`
	Remote      string `koanf:"remote" yaml:"remote" json:"remote"`
	AuthorName  string `koanf:"author_name" yaml:"author_name" json:"author_name"`
	AuthorEmail string `koanf:"author_email" yaml:"author_email" json:"author_email" validate:"omitempty,email"`
}

// HTTPConfig configures `appgen serve`.
type HTTPConfig struct {
	Addr string `koanf:"addr" yaml:"addr" json:"addr" validate:"required"`
}

// RedisConfig configures the optional Redis event channel.
type RedisConfig struct {
	Enabled       bool   `koanf:"enabled" yaml:"enabled" json:"enabled"`
	Addr          string `koanf:"addr" yaml:"addr" json:"addr" validate:"required_if=Enabled true"`
	Password      string `koanf:"password" yaml:"password" json:"password"`
	DB            int    `koanf:"db" yaml:"db" json:"db" validate:"min=0"`
	ChannelPrefix string `koanf:"channel_prefix" yaml:"channel_prefix" json:"channel_prefix"`
}

// LoadOptions configures how configuration is loaded
type LoadOptions struct {
	// ProjectConfigPath overrides the project config path (default: .appgen/config.yml).
	// A path ending in .json is parsed as JSON.
	ProjectConfigPath string
	// SkipUserConfig ignores ~/.config/appgen/config.yml.
	SkipUserConfig bool
	// Overrides are applied after the environment, e.g. from CLI flags.
	Overrides map[string]interface{}
}

// Load loads configuration from user, project, and environment sources.
func Load(projectConfigPath string) (*Configuration, error) {
	return LoadWithOptions(LoadOptions{ProjectConfigPath: projectConfigPath})
}

// LoadWithOptions loads configuration with custom options
func LoadWithOptions(opts LoadOptions) (*Configuration, error) {
	k, err := loadKoanf(opts)
	if err != nil {
		return nil, err
	}
	return finalizeConfig(k)
}

// Sources reports, for every known key, which layer supplied the effective value.
func Sources(opts LoadOptions) (map[string]ConfigSource, error) {
	out := make(map[string]ConfigSource)
	for key := range GetDefaults() {
		out[key] = SourceDefault
	}
	mark := func(k *koanf.Koanf, src ConfigSource) {
		for _, key := range k.Keys() {
			out[key] = src
		}
	}

	if !opts.SkipUserConfig {
		if path, err := UserConfigPath(); err == nil && fileExists(path) {
			k := koanf.New(".")
			if err := loadFileConfig(k, path, "user"); err != nil {
				return nil, err
			}
			mark(k, SourceUser)
		}
	}
	if path := projectPath(opts); fileExists(path) {
		k := koanf.New(".")
		if err := loadFileConfig(k, path, "project"); err != nil {
			return nil, err
		}
		mark(k, SourceProject)
	}
	k := koanf.New(".")
	if err := loadEnvironmentConfig(k); err != nil {
		return nil, err
	}
	mark(k, SourceEnv)
	return out, nil
}

func loadKoanf(opts LoadOptions) (*koanf.Koanf, error) {
	k := koanf.New(".")
	loadDefaults(k)

	if !opts.SkipUserConfig {
		if err := loadUserConfig(k); err != nil {
			return nil, err
		}
	}
	if err := loadProjectConfig(k, opts); err != nil {
		return nil, err
	}
	if err := loadEnvironmentConfig(k); err != nil {
		return nil, err
	}
	for key, value := range opts.Overrides {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("applying override %s: %w", key, err)
		}
	}
	return k, nil
}

// loadDefaults applies default configuration values
func loadDefaults(k *koanf.Koanf) {
	for key, value := range GetDefaults() {
		k.Set(key, value)
	}
}

func loadUserConfig(k *koanf.Koanf) error {
	path, err := UserConfigPath()
	if err != nil || !fileExists(path) {
		return nil
	}
	if err := loadFileConfig(k, path, "user"); err != nil {
		return fmt.Errorf("loading user config: %w", err)
	}
	return nil
}

func loadProjectConfig(k *koanf.Koanf, opts LoadOptions) error {
	path := projectPath(opts)
	if !fileExists(path) {
		if opts.ProjectConfigPath != "" {
			return &ValidationError{FilePath: path, Message: "config file not found"}
		}
		return nil
	}
	if err := loadFileConfig(k, path, "project"); err != nil {
		return fmt.Errorf("loading project config: %w", err)
	}
	return nil
}

func projectPath(opts LoadOptions) string {
	if opts.ProjectConfigPath != "" {
		return opts.ProjectConfigPath
	}
	return ProjectConfigPath()
}

// loadFileConfig loads a YAML file (or JSON by extension) after a syntax check.
func loadFileConfig(k *koanf.Koanf, path, configType string) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return fmt.Errorf("failed to load %s config %s: %w", configType, path, err)
		}
		return nil
	}
	if err := ValidateYAMLSyntax(path); err != nil {
		return fmt.Errorf("validating YAML syntax for %s config: %w", configType, err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load %s config %s: %w", configType, path, err)
	}
	return nil
}

// loadEnvironmentConfig loads environment variable overrides
func loadEnvironmentConfig(k *koanf.Koanf) error {
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return fmt.Errorf("failed to load environment config: %w", err)
	}
	return nil
}

// finalizeConfig unmarshals, validates, and resolves derived paths.
func finalizeConfig(k *koanf.Koanf) (*Configuration, error) {
	var cfg Configuration
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.StateDir = expandHomePath(cfg.StateDir)
	cfg.ArtifactsDir = expandHomePath(cfg.ArtifactsDir)
	cfg.DBPath = expandHomePath(cfg.DBPath)
	cfg.Publish.Root = expandHomePath(cfg.Publish.Root)

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.StateDir, "appgen.db")
	}
	if cfg.Publish.Root == "" {
		cfg.Publish.Root = filepath.Join(cfg.StateDir, "repos")
	}

	if err := ValidateConfigValues(&cfg, "config"); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// fileExists returns true if the file exists and is readable
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// envTransform converts environment variable names to config keys.
// Example: APPGEN_REDIS__CHANNEL_PREFIX -> redis.channel_prefix
func envTransform(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// expandHomePath expands ~ to the user's home directory
func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, path[2:])
		}
	}
	return path
}

// LogDir is where per-execution event logs are written.
func (c *Configuration) LogDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// HistoryPath is the YAML command history file.
func (c *Configuration) HistoryPath() string {
	return filepath.Join(c.StateDir, "history.yaml")
}
