package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir is the default state directory name under the user's home.
const Dir = ".presence"

// Paths holds resolved presence file locations.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	Home        string // ~/.presence or PRESENCE_HOME
	ConfigPath  string // PRESENCE_CONFIG, else the first config.{toml,yaml,yml,json,jsonc} found in Home, else ""
	CacheDBPath string // metadata.db or PRESENCE_CACHE_DB
	DashLogPath string // dash.log or PRESENCE_DASH_LOG
}

// ResolvePaths returns all presence paths, respecting env var overrides.
// Environment variables:
//   - PRESENCE_HOME: base directory (default: ~/.presence)
//   - PRESENCE_CONFIG: config file (default: $PRESENCE_HOME/config.<ext>, optional)
//   - PRESENCE_CACHE_DB: metadata cache database (default: $PRESENCE_HOME/metadata.db)
//   - PRESENCE_DASH_LOG: dashboard log file (default: $PRESENCE_HOME/dash.log)
func ResolvePaths() (*Paths, error) {
	home, err := resolveHome()
	if err != nil {
		return nil, err
	}

	return &Paths{
		Home:        home,
		ConfigPath:  resolveConfigPath(home),
		CacheDBPath: resolvePathWithEnv("PRESENCE_CACHE_DB", home, "metadata.db"),
		DashLogPath: resolvePathWithEnv("PRESENCE_DASH_LOG", home, "dash.log"),
	}, nil
}

func resolveHome() (string, error) {
	if v := os.Getenv("PRESENCE_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, Dir), nil
}

func resolveConfigPath(home string) string {
	if v := os.Getenv("PRESENCE_CONFIG"); v != "" {
		return v
	}
	for _, ext := range []string{".toml", ".yaml", ".yml", ".json", ".jsonc"} {
		p := filepath.Join(home, "config"+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// resolvePathWithEnv returns the path from envKey if set, otherwise joins base + suffix.
func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}
