// Package home resolves the ~/.huddle directory layout.
package home

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.huddle, or the HUDDLE_HOME override.
func BaseDir() string {
	if dir := os.Getenv("HUDDLE_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".huddle")
}

// ConfigPath returns the config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// DataDir returns the daemon's data directory.
func DataDir() string {
	return filepath.Join(BaseDir(), "data")
}

// DBPath returns the daemon database path.
func DBPath() string {
	return filepath.Join(DataDir(), "huddle.db")
}

// LogDir returns the log directory.
func LogDir() string {
	return filepath.Join(BaseDir(), "logs")
}

// DaemonLogPath returns the daemon log file path.
func DaemonLogPath() string {
	return filepath.Join(LogDir(), "huddled.log")
}

// CLILogPath returns the CLI log file path.
func CLILogPath() string {
	return filepath.Join(LogDir(), "huddlectl.log")
}

// CacheDir returns the CLI's response cache directory.
func CacheDir() string {
	return filepath.Join(BaseDir(), "cache")
}

// EnsureDirs creates the directory tree with proper permissions.
func EnsureDirs() error {
	dirs := []string{
		BaseDir(),
		DataDir(),
		LogDir(),
		CacheDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
