package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvConfigPath names the variable that points at an explicit config file.
const EnvConfigPath = "SPECLAUNCH_CONFIG"

const systemConfigPath = "/etc/speclaunch/config.yaml"

// SearchPaths lists the candidate config files in priority order.
func SearchPaths() []string {
	var paths []string
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "speclaunch", "config.yaml"))
	}
	return append(paths, systemConfigPath)
}

// Discover finds the config file to load. $SPECLAUNCH_CONFIG wins and must
// exist; otherwise the first existing SearchPaths entry is used. An empty
// result with a nil error means "use defaults".
func Discover() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		if !fileExists(path) {
			return "", fmt.Errorf("$%s points at %s, which is not a readable file", EnvConfigPath, path)
		}
		return path, nil
	}

	for _, path := range SearchPaths() {
		if fileExists(path) {
			return path, nil
		}
	}
	return "", nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
