package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xDMPx/PyDockMateAgent/app/clients"
	"github.com/xDMPx/PyDockMateAgent/app/identity"
	"github.com/xDMPx/PyDockMateAgent/app/services"
	"github.com/xDMPx/PyDockMateAgent/app/utils"
)

// Config holds agent configuration
type Config struct {
	HubAddress       string
	HubURL           string
	IdentityPath     string
	Interval         time.Duration
	Timeout          time.Duration
	Concurrency      int
	LogLevel         string
	LogFormat        string
	JournalPath      string
	JournalRetention time.Duration
}

// fileConfig is the optional agent.yaml settings file
type fileConfig struct {
	IdentityPath         string  `yaml:"identity_path"`
	IntervalSec          int     `yaml:"interval_sec"`
	TimeoutSec           int     `yaml:"timeout_sec"`
	Concurrency          int     `yaml:"concurrency"`
	LogLevel             string  `yaml:"log_level"`
	LogFormat            string  `yaml:"log_format"`
	JournalPath          *string `yaml:"journal_path"`
	JournalRetentionDays int     `yaml:"journal_retention_days"`
}

// SettingsFileName is looked up in the agent config directory when no
// explicit settings path is given
const SettingsFileName = "agent.yaml"

// LoadConfig builds the configuration from defaults, the optional settings
// file and environment variables, in that order of precedence. An explicit
// settingsPath must exist; the default one may be absent.
func LoadConfig(hubAddress, settingsPath string) (*Config, error) {
	if hubAddress == "" {
		return nil, fmt.Errorf("hub address must be set")
	}

	cfg := &Config{
		HubAddress:       hubAddress,
		HubURL:           utils.HubBaseURL(hubAddress),
		Interval:         services.DefaultInterval,
		Timeout:          clients.DefaultTimeout,
		Concurrency:      1,
		LogLevel:         "info",
		LogFormat:        "json",
		JournalRetention: 7 * 24 * time.Hour,
	}

	// The config dir is optional; without HOME the identity is simply absent
	configDir, dirErr := identity.ConfigDir()
	if dirErr == nil {
		cfg.IdentityPath = filepath.Join(configDir, "config")
		cfg.JournalPath = filepath.Join(configDir, "journal.db")
	}

	explicit := settingsPath != ""
	if !explicit && dirErr == nil {
		settingsPath = filepath.Join(configDir, SettingsFileName)
	}
	if settingsPath != "" {
		if err := cfg.applyFile(settingsPath, explicit); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	if fc.IdentityPath != "" {
		c.IdentityPath = fc.IdentityPath
	}
	if fc.IntervalSec > 0 {
		c.Interval = time.Duration(fc.IntervalSec) * time.Second
	}
	if fc.TimeoutSec > 0 {
		c.Timeout = time.Duration(fc.TimeoutSec) * time.Second
	}
	if fc.Concurrency > 0 {
		c.Concurrency = fc.Concurrency
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.LogFormat != "" {
		c.LogFormat = fc.LogFormat
	}
	if fc.JournalPath != nil {
		c.JournalPath = *fc.JournalPath
	}
	if fc.JournalRetentionDays > 0 {
		c.JournalRetention = time.Duration(fc.JournalRetentionDays) * 24 * time.Hour
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DOCKMATE_INTERVAL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Interval = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("DOCKMATE_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Timeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("DOCKMATE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Concurrency = n
		}
	}
	c.IdentityPath = getEnv("DOCKMATE_IDENTITY_PATH", c.IdentityPath)
	c.LogLevel = getEnv("DOCKMATE_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("DOCKMATE_LOG_FORMAT", c.LogFormat)
	c.JournalPath = getEnv("DOCKMATE_JOURNAL_PATH", c.JournalPath)
}

// Validate checks values that flags may have overridden
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
