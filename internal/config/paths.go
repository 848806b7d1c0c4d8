package config

import (
	"os"
	"path/filepath"
)

// UserConfigPath returns the user-level config file. It follows
// os.UserConfigDir, so XDG_CONFIG_HOME is honoured on Linux:
//   - Linux: ~/.config/appgen/config.yml
//   - macOS: ~/Library/Application Support/appgen/config.yml
func UserConfigPath() (string, error) {
	dir, err := UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// UserConfigDir returns the path to the user-level config directory.
func UserConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "appgen"), nil
}

// ProjectConfigPath returns .appgen/config.yml relative to the working directory.
func ProjectConfigPath() string {
	return filepath.Join(ProjectConfigDir(), "config.yml")
}

// ProjectConfigDir returns the path to the project-level config directory.
func ProjectConfigDir() string {
	return ".appgen"
}
