// ABOUTME: Configuration loading for academy-admin
// ABOUTME: Loads TOML config from the XDG path; environment variables override file values

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/2389/academy-gateway/internal/client"
)

const defaultBaseURL = "http://localhost:8080"

// Config is the academy-admin configuration file.
type Config struct {
	BaseURL   string `toml:"base_url"`
	TokenFile string `toml:"token_file"`
}

// configPath returns $XDG_CONFIG_HOME/academy/admin.toml, falling back to ~/.config.
func configPath() string {
	if p := os.Getenv("ACADEMY_ADMIN_CONFIG"); p != "" {
		return p
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "admin.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "academy", "admin.toml")
}

// loadConfig reads path if it exists, then applies ACADEMY_URL and defaults.
func loadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if v := os.Getenv("ACADEMY_URL"); v != "" {
		cfg.BaseURL = v
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TokenFile == "" {
		p, err := client.DefaultTokenPath()
		if err != nil {
			return nil, err
		}
		cfg.TokenFile = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the base URL is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url must include a host")
	}
	return nil
}
