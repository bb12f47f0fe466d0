package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds optional defaults loaded from ~/.config/lbgraph/config.yaml.
type Config struct {
	DefaultProfile string `yaml:"default_profile"`
	DefaultRegion  string `yaml:"default_region"`
	DefaultAccount string `yaml:"default_account"`
	OutputFormat   string `yaml:"output_format"`
	LogLevel       string `yaml:"log_level"`
	HistoryPath    string `yaml:"history_path"`
}

// Dir returns the lbgraph config directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "lbgraph"), nil
}

// Load reads the config file. Returns zero-value Config if the file doesn't exist.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return &Config{}, nil
	}
	return LoadFrom(filepath.Join(dir, "config.yaml"))
}

// LoadFrom reads the config file at path. A missing file yields a zero-value
// Config.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// Merge applies CLI flag overrides. Flags take precedence over config defaults.
func (c *Config) Merge(profile, region string) (string, string) {
	return pick(profile, c.DefaultProfile), pick(region, c.DefaultRegion)
}

// Account returns the account used in synthesized ARNs.
func (c *Config) Account(flag string) string {
	return pick(flag, c.DefaultAccount)
}

// Format returns the template output format; "yaml" unless configured.
func (c *Config) Format(flag string) string {
	return pick(flag, c.OutputFormat, "yaml")
}

// Level returns the log level; "warn" unless configured.
func (c *Config) Level(flag string) string {
	return pick(flag, c.LogLevel, "warn")
}

// History returns the synthesis history database path, defaulting to
// history.db in the config directory.
func (c *Config) History(flag string) string {
	if p := pick(flag, c.HistoryPath); p != "" {
		return p
	}
	dir, err := Dir()
	if err != nil {
		return "lbgraph-history.db"
	}
	return filepath.Join(dir, "history.db")
}

func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
