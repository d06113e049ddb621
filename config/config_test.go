package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Storage.DatabasePath != "inventoryd.db" {
		t.Errorf("expected default database path inventoryd.db, got %s", cfg.Storage.DatabasePath)
	}
	if cfg.Download.ConnectTimeout != 10*time.Second {
		t.Errorf("expected connect timeout 10s, got %v", cfg.Download.ConnectTimeout)
	}
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
	if !cfg.Publish.SendToLicenseMatcher {
		t.Error("expected license matcher publishing on by default")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing database path",
			modify:  func(c *Config) { c.Storage.DatabasePath = "" },
			wantErr: true,
		},
		{
			name:    "missing download dir",
			modify:  func(c *Config) { c.Download.Dir = "" },
			wantErr: true,
		},
		{
			name:    "negative timeout",
			modify:  func(c *Config) { c.Download.ReadTimeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "missing NATS URL",
			modify:  func(c *Config) { c.NATS.URL = "" },
			wantErr: true,
		},
		{
			name:    "missing vulnerability channel",
			modify:  func(c *Config) { c.Channels.Vulnerability = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
storage:
  database_path: "/var/lib/inventoryd/inventory.db"
download:
  dir: "/var/cache/inventoryd"
  connect_timeout: 5s
  read_timeout: 2m
nats:
  url: "nats://broker:4222"
channels:
  license_matcher: "custom.license.match"
publish:
  send_to_license_matcher: false
  send_to_copyright_filter: true
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Storage.DatabasePath != "/var/lib/inventoryd/inventory.db" {
		t.Errorf("unexpected database path %s", cfg.Storage.DatabasePath)
	}
	if cfg.Download.ReadTimeout != 2*time.Minute {
		t.Errorf("expected read timeout 2m, got %v", cfg.Download.ReadTimeout)
	}
	if cfg.NATS.URL != "nats://broker:4222" {
		t.Errorf("unexpected NATS URL %s", cfg.NATS.URL)
	}
	if cfg.Channels.LicenseMatcher != "custom.license.match" {
		t.Errorf("unexpected license matcher channel %s", cfg.Channels.LicenseMatcher)
	}
	// Unset channels keep their defaults.
	if cfg.Channels.Vulnerability != "work.vulnerability.request" {
		t.Errorf("unexpected vulnerability channel %s", cfg.Channels.Vulnerability)
	}
	if cfg.Publish.SendToLicenseMatcher {
		t.Error("expected license matcher publishing off")
	}
	if !cfg.Publish.SendToCopyrightFilter {
		t.Error("expected copyright filter publishing on")
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Storage: StorageConfig{DatabasePath: "/override/inventory.db"},
		NATS:    NATSConfig{URL: "nats://override:4222"},
		Publish: PublishConfig{SendToCopyrightFilter: true},
	}

	base.Merge(override)

	if base.Storage.DatabasePath != "/override/inventory.db" {
		t.Errorf("expected overridden database path, got %s", base.Storage.DatabasePath)
	}
	// Download dir should remain from base since override didn't set it.
	if base.Download.Dir != "downloads" {
		t.Errorf("expected download dir to remain default, got %s", base.Download.Dir)
	}
	if base.NATS.URL != "nats://override:4222" {
		t.Errorf("expected overridden NATS URL, got %s", base.NATS.URL)
	}
}

func TestChannelSubjectLookup(t *testing.T) {
	cfg := DefaultConfig()

	subject, ok := cfg.Channels.Subject("vulnerability")
	if !ok || subject != "work.vulnerability.request" {
		t.Errorf("Subject(vulnerability) = %q, %v", subject, ok)
	}
	if _, ok := cfg.Channels.Subject("unknown-stage"); ok {
		t.Error("expected lookup miss for unknown stage")
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Storage.DatabasePath = "/saved/inventory.db"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Storage.DatabasePath != "/saved/inventory.db" {
		t.Errorf("expected saved database path, got %s", loaded.Storage.DatabasePath)
	}
}
