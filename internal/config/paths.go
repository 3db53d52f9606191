package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath is the environment variable for explicit config path
	EnvConfigPath = "SMOKEPLAN_CONFIG"
	// ConfigFileName is the config file name looked up next to projects and in the working directory
	ConfigFileName = "smokeplan.yaml"
	// ConfigDirName is the config directory name under XDG
	ConfigDirName = "smokeplan"
)

// FindConfigPath searches for a config file in priority order:
// 1. $SMOKEPLAN_CONFIG (explicit path)
// 2. ./smokeplan.yaml (working directory)
// 3. $XDG_CONFIG_HOME/smokeplan/config.yaml
// 4. ~/.config/smokeplan/config.yaml
// 5. /etc/smokeplan/config.yaml
//
// Returns empty string if no config file found
func FindConfigPath() string {
	return FindConfigPathFor("")
}

// FindConfigPathFor is FindConfigPath with dir/smokeplan.yaml checked right
// after the environment variable. The CLI passes the project's directory so
// a site folder can carry its own export settings.
func FindConfigPathFor(dir string) string {
	// 1. Explicit environment variable
	if path := os.Getenv(EnvConfigPath); path != "" {
		if fileExists(path) {
			return path
		}
	}

	// 2. Project directory, then working directory
	candidates := []string{ConfigFileName}
	if dir != "" {
		candidates = append([]string{filepath.Join(dir, ConfigFileName)}, candidates...)
	}
	for _, c := range candidates {
		if fileExists(c) {
			if abs, err := filepath.Abs(c); err == nil {
				return abs
			}
			return c
		}
	}

	// 3. XDG config home
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		path := filepath.Join(xdgHome, ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	// 4. Default XDG location (~/.config)
	if home := os.Getenv("HOME"); home != "" {
		path := filepath.Join(home, ".config", ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	// 5. System-wide
	systemPath := filepath.Join("/etc", ConfigDirName, "config.yaml")
	if fileExists(systemPath) {
		return systemPath
	}

	return ""
}

// LoadFor loads the config that applies to a project in dir
func LoadFor(dir string) (*Config, string, error) {
	path := FindConfigPathFor(dir)
	if path == "" {
		return DefaultConfig(), "", nil
	}
	return LoadFromPath(path)
}

// DefaultConfigPath returns the preferred location for a new config file
// Prefers XDG config home, falls back to working directory
func DefaultConfigPath() string {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, ConfigDirName, "config.yaml")
	}

	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", ConfigDirName, "config.yaml")
	}

	return ConfigFileName
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir(configPath string) error {
	dir := filepath.Dir(configPath)
	return os.MkdirAll(dir, 0755)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
