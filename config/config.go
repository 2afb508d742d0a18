// Package config loads newsdesk configuration from the config file and
// the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pevans/newsdesk/remote"
)

// Environment variables recognized by every newsdesk command. The
// credential only ever comes from the environment; it is never written
// to the config file.
const (
	EnvToken        = "NEWSDESK_TOKEN"
	EnvAPI          = "NEWSDESK_API"
	EnvRepo         = "NEWSDESK_REPO"
	EnvStateDSN     = "NEWSDESK_STATE_DSN"
	EnvHeadlinesKey = "NEWSDESK_HEADLINES_KEY"
)

// APIConfig identifies the remote content API and repository.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Repo    string `yaml:"repo"`
}

// PathsConfig names the remote objects backing the two collections.
type PathsConfig struct {
	Articles string `yaml:"articles"`
	Portals  string `yaml:"portals"`
}

// StateConfig locates local fetch-state storage.
type StateConfig struct {
	DSN string `yaml:"dsn"`
}

// CleanupConfig tunes article retention.
type CleanupConfig struct {
	MaxAge string `yaml:"max_age"` // Go duration string, e.g. "72h"
}

// Config is the merged configuration for a newsdesk session.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Paths   PathsConfig   `yaml:"paths"`
	State   StateConfig   `yaml:"state"`
	Cleanup CleanupConfig `yaml:"cleanup"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: remote.DefaultBaseURL,
		},
		Paths: PathsConfig{
			Articles: "data/news.json",
			Portals:  "data/portals.json",
		},
		State: StateConfig{
			DSN: "newsdesk.db",
		},
		Cleanup: CleanupConfig{
			MaxAge: "72h",
		},
	}
}

// Load builds the effective configuration: defaults, overlaid by
// ~/.newsdesk/config.yaml when present, overlaid by environment
// variables. A missing config file is not an error.
func Load() (*Config, error) {
	cfg := Default()

	fileCfg, err := loadFile()
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		cfg.merge(fileCfg)
	}

	cfg.applyEnv()
	return cfg, nil
}

// loadFile reads ~/.newsdesk/config.yaml. Returns nil if the file
// doesn't exist (not an error). Returns error if the file exists but
// cannot be parsed.
func loadFile() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".newsdesk", "config.yaml")

	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil // File doesn't exist -- not an error
	}

	return ParseFile(configPath)
}

// ParseFile reads and parses a config file at an explicit path.
func ParseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// merge overlays non-empty fields from other onto c.
func (c *Config) merge(other *Config) {
	if other.API.BaseURL != "" {
		c.API.BaseURL = other.API.BaseURL
	}
	if other.API.Repo != "" {
		c.API.Repo = other.API.Repo
	}
	if other.Paths.Articles != "" {
		c.Paths.Articles = other.Paths.Articles
	}
	if other.Paths.Portals != "" {
		c.Paths.Portals = other.Paths.Portals
	}
	if other.State.DSN != "" {
		c.State.DSN = other.State.DSN
	}
	if other.Cleanup.MaxAge != "" {
		c.Cleanup.MaxAge = other.Cleanup.MaxAge
	}
}

// applyEnv overlays environment variables onto c.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPI); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvRepo); v != "" {
		c.API.Repo = v
	}
	if v := os.Getenv(EnvStateDSN); v != "" {
		c.State.DSN = v
	}
}

// Session builds a remote session from the configuration and the
// credential in the environment.
func (c *Config) Session() remote.Session {
	return remote.Session{
		BaseURL:    c.API.BaseURL,
		Repo:       c.API.Repo,
		Credential: os.Getenv(EnvToken),
	}
}

// HeadlinesKey returns the headlines-API key from the environment.
// Like the credential, it is never written to the config file.
func (c *Config) HeadlinesKey() string {
	return os.Getenv(EnvHeadlinesKey)
}

// RequireRepo reports whether a target repository is configured. Remote
// operations have no meaningful target without one, so commands check
// this up front rather than surfacing a confusing not-found.
func (c *Config) RequireRepo() error {
	if c.API.Repo == "" {
		return fmt.Errorf("no repository configured: set %s or api.repo in the config file", EnvRepo)
	}
	return nil
}

// MaxAge parses the cleanup retention window, falling back to the
// default when unset or unparseable.
func (c *Config) MaxAge() time.Duration {
	if c.Cleanup.MaxAge == "" {
		return 72 * time.Hour
	}
	d, err := time.ParseDuration(c.Cleanup.MaxAge)
	if err != nil || d <= 0 {
		return 72 * time.Hour
	}
	return d
}
