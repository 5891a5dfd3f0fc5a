// Package config loads presence configuration.
//
// A config file is optional. Its format follows the extension: .toml, .yaml
// or .yml, and .json or .jsonc (comments and trailing commas allowed).
// Environment variables prefixed PRESENCE_ override file values, and the
// result is validated before use.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"presence/internal/logging"
	"presence/pkg/protocol"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PRESENCE"

// Staleness threshold bounds.
const (
	MinStaleThreshold = 60 * time.Second
	MaxStaleThreshold = 120 * time.Second
)

// Config is the complete client configuration.
type Config struct {
	// BaseURL is the status server root, e.g. https://status.example.com.
	BaseURL string `toml:"base_url" yaml:"base_url" json:"base_url" envconfig:"BASE_URL"`

	// Transport is "auto" (push with fallback) or "poll".
	Transport protocol.TransportMode `toml:"transport" yaml:"transport" json:"transport" envconfig:"TRANSPORT"`

	StaleThreshold     Duration `toml:"stale_threshold" yaml:"stale_threshold" json:"stale_threshold" envconfig:"STALE_THRESHOLD"`
	StaleCheckInterval Duration `toml:"stale_check_interval" yaml:"stale_check_interval" json:"stale_check_interval" envconfig:"STALE_CHECK_INTERVAL"`

	// PollInterval is used when the server suggests none.
	PollInterval   Duration `toml:"poll_interval" yaml:"poll_interval" json:"poll_interval" envconfig:"POLL_INTERVAL"`
	RequestTimeout Duration `toml:"request_timeout" yaml:"request_timeout" json:"request_timeout" envconfig:"REQUEST_TIMEOUT"`

	// Probe settings. PlatformHeaders are response headers that mark an
	// edge platform that buffers streams.
	ProbePath       string   `toml:"probe_path" yaml:"probe_path" json:"probe_path" envconfig:"PROBE_PATH"`
	PlatformHeaders []string `toml:"platform_headers" yaml:"platform_headers" json:"platform_headers" envconfig:"PLATFORM_HEADERS"`

	// ClientID overrides the random per-process id.
	ClientID string `toml:"client_id" yaml:"client_id" json:"client_id" envconfig:"CLIENT_ID"`

	LogLevel  string `toml:"log_level" yaml:"log_level" json:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat string `toml:"log_format" yaml:"log_format" json:"log_format" envconfig:"LOG_FORMAT"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Transport:          protocol.TransportAuto,
		StaleThreshold:     Duration(MaxStaleThreshold),
		StaleCheckInterval: Duration(10 * time.Second),
		PollInterval:       Duration(protocol.DefaultRefreshInterval),
		RequestTimeout:     Duration(10 * time.Second),
		ProbePath:          protocol.DefaultProbePath,
		PlatformHeaders:    []string{protocol.DefaultPlatformHeader},
		LogLevel:           "info",
		LogFormat:          logging.FormatText,
	}
}

// Load reads path over the defaults (an empty path skips the file), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that apply further overrides
// (command-line flags) before calling Validate themselves.
func Read(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(c)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(c)
	case ".json", ".jsonc":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		err = dec.Decode(c)
	default:
		return fmt.Errorf("config %s: unsupported extension %q", path, ext)
	}
	// An empty YAML or JSON file decodes to io.EOF; treat it as no settings.
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays PRESENCE_* environment variables. Unset variables leave
// the current value alone.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("config env: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url %q: want http(s)://host", c.BaseURL)
	}

	if !c.Transport.Valid() {
		return fmt.Errorf("transport %q: want %q or %q", c.Transport, protocol.TransportAuto, protocol.TransportPoll)
	}

	threshold := c.StaleThreshold.D()
	if threshold < MinStaleThreshold || threshold > MaxStaleThreshold {
		return fmt.Errorf("stale_threshold %s: must be between %s and %s", threshold, MinStaleThreshold, MaxStaleThreshold)
	}
	if check := c.StaleCheckInterval.D(); check <= 0 || check >= threshold {
		return fmt.Errorf("stale_check_interval %s: must be positive and below stale_threshold", check)
	}
	if c.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	if !strings.HasPrefix(c.ProbePath, "/") {
		return fmt.Errorf("probe_path %q must start with /", c.ProbePath)
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("log_format %q: want text or json", c.LogFormat)
	}
	return nil
}
