// Package config loads and saves mcpctl client settings.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// Config holds mcpctl client settings.
type Config struct {
	// APIAddr is the control API root, including the /api prefix.
	APIAddr string `yaml:"api_addr"`
	// Timeout bounds each request to the control API.
	Timeout time.Duration `yaml:"timeout"`
	// PollInterval is the time between health probes.
	PollInterval time.Duration `yaml:"poll_interval"`
	// DefaultModel is used when a query or tool listing names no model.
	DefaultModel string `yaml:"default_model"`
	// Models are offered for selection in the TUI.
	Models []string `yaml:"models"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// QuotedArgs switches argument text to shell quoting.
	QuotedArgs bool `yaml:"quoted_args"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		APIAddr:      "http://127.0.0.1:5000/api",
		Timeout:      10 * time.Second,
		PollInterval: 10 * time.Second,
		DefaultModel: "gpt-3.5-turbo",
		Models:       []string{"gpt-3.5-turbo", "gpt-4", "gpt-4-turbo"},
		LogLevel:     "info",
	}
}

// DefaultPath returns ~/.mcpctl/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home dir: %w", err)
	}
	return filepath.Join(home, ".mcpctl", "config.yaml"), nil
}

// LoadConfig loads configuration from a YAML file. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadConfigFromHome loads configuration from ~/.mcpctl/config.yaml.
func LoadConfigFromHome() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// SaveConfig writes cfg to path, creating parent directories if needed.
func SaveConfig(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIAddr)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_addr %q must be an http(s) URL", c.APIAddr)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("poll_interval must be at least 1s")
	}
	if strings.TrimSpace(c.DefaultModel) == "" {
		return fmt.Errorf("default_model cannot be empty")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q, must be: debug, info, warn, or error", c.LogLevel)
	}
	return nil
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// ModelChoices returns Models with DefaultModel first and duplicates removed.
func (c *Config) ModelChoices() []string {
	seen := map[string]bool{c.DefaultModel: true}
	out := []string{c.DefaultModel}
	for _, m := range c.Models {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
