package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
//
// Values come from the YAML file first; SCHEDVIEW_* environment variables
// (optionally loaded from .env files) override them.
type Config struct {
	// Listen is the HTTP listen address for the schedule page and API.
	Listen string `yaml:"listen" json:"listen" env:"SCHEDVIEW_LISTEN"`

	// SourceURL is the event-data endpoint returning rooms, sessions and
	// speakers as one JSON document.
	SourceURL string `yaml:"source_url" json:"source_url" env:"SCHEDVIEW_SOURCE_URL"`

	// Title is shown in the page header and as the ICS calendar name.
	Title string `yaml:"title" json:"title" env:"SCHEDVIEW_TITLE"`

	// Timezone is the IANA zone the source timestamps are expressed in.
	Timezone string `yaml:"timezone" json:"timezone" env:"SCHEDVIEW_TIMEZONE"`

	// Locale selects the fixed date/time display format (e.g. "en-GB").
	Locale string `yaml:"locale" json:"locale" env:"SCHEDVIEW_LOCALE"`

	// DefaultTheme is used when the visitor has no stored preference.
	// Supported values: "light" (default), "dark".
	DefaultTheme string `yaml:"default_theme" json:"default_theme" env:"SCHEDVIEW_DEFAULT_THEME"`

	// RefreshCron is a cron-style schedule (e.g. "*/30 * * * *") for
	// reloading the snapshot. Empty disables refresh: the document is
	// loaded exactly once at startup.
	RefreshCron string `yaml:"refresh" json:"refresh" env:"SCHEDVIEW_REFRESH"`

	// FetchTimeoutSeconds bounds the load request. Zero leaves it to the
	// transport.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds" env:"SCHEDVIEW_FETCH_TIMEOUT_SECONDS"`

	// PreviewPath is where -capture writes the page screenshot and where
	// /preview.png reads it from.
	PreviewPath string `yaml:"preview_path" json:"preview_path" env:"SCHEDVIEW_PREVIEW_PATH"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level" env:"SCHEDVIEW_LOG_LEVEL"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTitle       = "Conference Schedule"
	defaultTimezone    = "UTC"
	defaultLocale      = "en-GB"
	defaultTheme       = "light"
	defaultPreviewPath = "./cache/preview.png"
	defaultLogLevel    = "info"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Title:        defaultTitle,
		Timezone:     defaultTimezone,
		Locale:       defaultLocale,
		DefaultTheme: defaultTheme,
		PreviewPath:  defaultPreviewPath,
		LogLevel:     defaultLogLevel,
	}
}

// Normalize fills in missing/zero values so partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	c.SourceURL = strings.TrimSpace(c.SourceURL)
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Title == "" {
		c.Title = defaultTitle
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.Locale == "" {
		c.Locale = defaultLocale
	}
	switch c.DefaultTheme {
	case "light", "dark":
	default:
		c.DefaultTheme = defaultTheme
	}
	if c.FetchTimeoutSeconds < 0 {
		c.FetchTimeoutSeconds = 0
	}
	if c.PreviewPath == "" {
		c.PreviewPath = defaultPreviewPath
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}

// Validate reports settings the service cannot run without.
func (c *Config) Validate() error {
	if c.SourceURL == "" {
		return errors.New("config: source_url is required")
	}
	return nil
}

// Load loads configuration from the given YAML path and applies
// environment overrides.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned (still subject to env overrides).
//   - envFiles are loaded into the process environment with godotenv;
//     missing files are skipped, and variables already set win.
//   - SCHEDVIEW_* variables override file values.
func Load(path string, envFiles ...string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Normalize()

	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return nil, fmt.Errorf("write default config: %w", err)
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func loadEnvFiles(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("load env file %s: %w", file, err)
		}
	}
	return nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".schedview-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
