// Package config provides configuration loading and management for
// inventoryd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete inventoryd configuration.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Download DownloadConfig `yaml:"download"`
	NATS     NATSConfig     `yaml:"nats"`
	Channels ChannelsConfig `yaml:"channels"`
	Publish  PublishConfig  `yaml:"publish"`
	Watch    WatchConfig    `yaml:"watch"`
}

// StorageConfig configures the persistent inventory store.
type StorageConfig struct {
	// DatabasePath is the sqlite database file.
	DatabasePath string `yaml:"database_path"`
}

// DownloadConfig configures artifact resolution.
type DownloadConfig struct {
	// Dir is the base directory for downloaded and extracted artifacts.
	Dir string `yaml:"dir"`
	// ConnectTimeout bounds connection establishment per request.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// ReadTimeout bounds waiting for response headers per request.
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	// URL is the NATS server URL.
	URL string `yaml:"url"`
}

// ChannelsConfig maps logical downstream stage names to subjects, so
// the dispatcher needs a name lookup rather than hard-coded routing.
type ChannelsConfig struct {
	LicenseMatcher  string `yaml:"license_matcher"`
	CopyrightFilter string `yaml:"copyright_filter"`
	Vulnerability   string `yaml:"vulnerability"`
}

// Subject returns the subject for a logical channel name.
func (c ChannelsConfig) Subject(name string) (string, bool) {
	switch name {
	case "license_matcher":
		return c.LicenseMatcher, c.LicenseMatcher != ""
	case "copyright_filter":
		return c.CopyrightFilter, c.CopyrightFilter != ""
	case "vulnerability":
		return c.Vulnerability, c.Vulnerability != ""
	}
	return "", false
}

// PublishConfig toggles the follow-up messages emitted after a
// successful ingestion. The vulnerability request is unconditional and
// has no toggle.
type PublishConfig struct {
	SendToLicenseMatcher  bool `yaml:"send_to_license_matcher"`
	SendToCopyrightFilter bool `yaml:"send_to_copyright_filter"`
}

// WatchConfig configures the drop-directory watcher that enqueues
// dropped SBOM documents and scan reports.
type WatchConfig struct {
	Enabled bool   `yaml:"enabled"`
	DropDir string `yaml:"drop_dir"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DatabasePath: "inventoryd.db",
		},
		Download: DownloadConfig{
			Dir:            "downloads",
			ConnectTimeout: 10 * time.Second,
			ReadTimeout:    60 * time.Second,
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Channels: ChannelsConfig{
			LicenseMatcher:  "inventory.license.match",
			CopyrightFilter: "inventory.copyright.filter",
			Vulnerability:   "work.vulnerability.request",
		},
		Publish: PublishConfig{
			SendToLicenseMatcher:  true,
			SendToCopyrightFilter: true,
		},
		Watch: WatchConfig{
			Enabled: true,
			DropDir: "dropbox",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path is required")
	}
	if c.Download.Dir == "" {
		return fmt.Errorf("download.dir is required")
	}
	if c.Download.ConnectTimeout < 0 || c.Download.ReadTimeout < 0 {
		return fmt.Errorf("download timeouts must not be negative")
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if c.Channels.Vulnerability == "" {
		return fmt.Errorf("channels.vulnerability is required")
	}
	if c.Watch.Enabled && c.Watch.DropDir == "" {
		return fmt.Errorf("watch.drop_dir is required when watching is enabled")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence
// for non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Storage.DatabasePath != "" {
		c.Storage.DatabasePath = other.Storage.DatabasePath
	}

	if other.Download.Dir != "" {
		c.Download.Dir = other.Download.Dir
	}
	if other.Download.ConnectTimeout != 0 {
		c.Download.ConnectTimeout = other.Download.ConnectTimeout
	}
	if other.Download.ReadTimeout != 0 {
		c.Download.ReadTimeout = other.Download.ReadTimeout
	}

	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	if other.Channels.LicenseMatcher != "" {
		c.Channels.LicenseMatcher = other.Channels.LicenseMatcher
	}
	if other.Channels.CopyrightFilter != "" {
		c.Channels.CopyrightFilter = other.Channels.CopyrightFilter
	}
	if other.Channels.Vulnerability != "" {
		c.Channels.Vulnerability = other.Channels.Vulnerability
	}

	c.Publish = other.Publish
	if other.Watch.DropDir != "" {
		c.Watch.DropDir = other.Watch.DropDir
	}
	c.Watch.Enabled = other.Watch.Enabled
}
