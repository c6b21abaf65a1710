package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvConfigPath names the environment variable that overrides discovery.
const EnvConfigPath = "ARENAKERNEL_CONFIG"

// DiscoverConfigPath finds the config file by checking standard locations.
// Priority order: $ARENAKERNEL_CONFIG, ~/.config/arenakernel/config.yaml, ./config.yaml
func DiscoverConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		return "", fmt.Errorf("$%s points at %s, which does not exist", EnvConfigPath, path)
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfig := filepath.Join(homeDir, ".config", "arenakernel", "config.yaml")
		if fileExists(userConfig) {
			return userConfig, nil
		}
	}

	if fileExists("./config.yaml") {
		return "./config.yaml", nil
	}

	return "", fmt.Errorf("no config found (checked: $%s, ~/.config/arenakernel/config.yaml, ./config.yaml)", EnvConfigPath)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
