package app

import (
	"fmt"

	"presence/internal/config"
	"presence/pkg/protocol"
)

// Overrides are command-line values that take precedence over the config
// file and environment. Empty fields are ignored.
type Overrides struct {
	ConfigPath string
	BaseURL    string
	Transport  string
	LogLevel   string
}

// LoadConfig resolves paths, reads the config file (Overrides.ConfigPath,
// else the one found by config.ResolvePaths) and environment, applies the
// overrides and validates the result.
func LoadConfig(o Overrides) (*config.Config, *config.Paths, error) {
	paths, err := config.ResolvePaths()
	if err != nil {
		return nil, nil, err
	}
	if o.ConfigPath != "" {
		paths.ConfigPath = o.ConfigPath
	}

	cfg, err := config.Read(paths.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	if o.Transport != "" {
		cfg.Transport = protocol.TransportMode(o.Transport)
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, paths, nil
}
