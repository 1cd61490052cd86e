package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvUserAgent   = "GALLERY_SCRAPER_USER_AGENT"
	EnvStateDir    = "GALLERY_SCRAPER_STATE_DIR"
	EnvMaxPages    = "GALLERY_SCRAPER_MAX_PAGES"
	EnvArchivePath = "GALLERY_SCRAPER_ARCHIVE_PATH"
	EnvOutputPath  = "GALLERY_SCRAPER_OUTPUT"
)

// Load reads a YAML config file. An empty path yields a zero AppConfig,
// which Validate fills with defaults.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// LoadDotEnv loads variables from envFile into the process environment.
// A missing file is not an error; existing variables are never overwritten.
func LoadDotEnv(envFile string) error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", envFile, err)
	}
	return nil
}

// ApplyEnvOverrides copies GALLERY_SCRAPER_* variables onto the config.
// Call before Validate so defaults derived from them stay consistent.
func (c *AppConfig) ApplyEnvOverrides() error {
	if v := os.Getenv(EnvUserAgent); v != "" {
		c.DefaultUserAgent = v
	}
	if v := os.Getenv(EnvStateDir); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv(EnvMaxPages); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxPages, err)
		}
		c.MaxPages = n
	}
	if v := os.Getenv(EnvArchivePath); v != "" {
		c.Archive.Enabled = true
		c.Archive.Path = v
	}
	if v := os.Getenv(EnvOutputPath); v != "" {
		c.Output.Path = v
	}
	return nil
}
