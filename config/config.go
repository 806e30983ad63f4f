package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds fetcher configuration.
type Config struct {
	URLs             []string      `yaml:"urls"`
	OutputDir        string        `yaml:"output_dir"`
	LedgerName       string        `yaml:"ledger_name"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxBytes         int64         `yaml:"max_bytes"`
	EnforceBodyLimit bool          `yaml:"enforce_body_limit"`
	UserAgent        string        `yaml:"user_agent"`
	LedgerCacheSize  int           `yaml:"ledger_cache_size"`
	ReportFile       string        `yaml:"report_file"`
	ReportFormat     string        `yaml:"report_format"` // csv, json, or dual
	MetricsAddr      string        `yaml:"metrics_addr"`
	Verbose          bool          `yaml:"verbose"`
}

// DefaultConfig returns the stock fetcher settings.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:        "Fetched_Images",
		LedgerName:       ".image_hashes.txt",
		Timeout:          15 * time.Second,
		MaxBytes:         10 * 1024 * 1024,
		EnforceBodyLimit: true,
		UserAgent:        "UbuntuImageFetcher/1.0 (Community Tool)",
		LedgerCacheSize:  4096,
		ReportFormat:     "csv",
	}
}

// LoadFile overlays values from a YAML file onto c. Keys missing from the
// file keep their current value.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("decode config file %q: %w", path, err)
	}
	return nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.LedgerName == "" {
		return fmt.Errorf("ledger name cannot be empty")
	}
	if strings.ContainsAny(c.LedgerName, `/\`) {
		return fmt.Errorf("ledger name must not contain path separators")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxBytes <= 0 {
		return fmt.Errorf("max bytes must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.LedgerCacheSize <= 0 {
		return fmt.Errorf("ledger cache size must be positive")
	}
	if c.ReportFormat != "csv" && c.ReportFormat != "json" && c.ReportFormat != "dual" {
		return fmt.Errorf("report format must be csv, json, or dual")
	}
	return nil
}
