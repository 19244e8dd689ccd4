// Package config provides the YAML-based application configuration,
// including first-run config creation and atomic saves with 0600
// permissions.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// MilestoneConfig controls the "第N个" display formatting applied to a small
// set of built-in anniversary names.
type MilestoneConfig struct {
	// BaselineYear is the year of the first occurrence; N is the resolved
	// occurrence year minus this.
	BaselineYear int `yaml:"baseline_year" json:"baseline_year"`
	// Names lists the built-in event names that receive the formatting.
	Names []string `yaml:"names" json:"names"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone whose calendar date is "today"
	// (e.g. "Asia/Shanghai").
	Timezone string `yaml:"timezone" json:"timezone"`

	// StorePath is the SQLite database file holding custom events.
	StorePath string `yaml:"store_path" json:"store_path"`

	// RefreshCron is a cron-style schedule for rolling the countdown cache
	// over to a new day (e.g. "0 0 * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Milestones configures ordinal display names for the relationship
	// anniversaries.
	Milestones MilestoneConfig `yaml:"milestones" json:"milestones"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Asia/Shanghai",
		StorePath:   "./var/daycount.db",
		RefreshCron: "0 0 * * *",
		Milestones: MilestoneConfig{
			BaselineYear: 2024,
			Names:        []string{"见面纪念日", "在一起的纪念日"},
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs from older versions still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Shanghai"
	}
	if c.StorePath == "" {
		c.StorePath = "./var/daycount.db"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "0 0 * * *"
	}
	if c.Milestones.BaselineYear == 0 {
		c.Milestones.BaselineYear = 2024
	}
	if c.Milestones.Names == nil {
		c.Milestones.Names = []string{"见面纪念日", "在一起的纪念日"}
	}
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there (creating
// the parent directory if needed) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
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

	tmp, err := os.CreateTemp(dir, ".daycount-config-*.tmp")
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
