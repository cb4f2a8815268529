// Package config provides configuration management for the srpctl CLI tool.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "srpctl"

// UserConfigDir returns the per-user configuration directory,
// e.g. ~/.config/srpctl on Linux.
func UserConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, appName), nil
}

// UserCacheDir returns the per-user cache directory, e.g. ~/.cache/srpctl
// on Linux. Session tokens live here.
func UserCacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}
	return filepath.Join(cacheDir, appName), nil
}

// EnsureDir creates dir and its parents with mode 0700.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
