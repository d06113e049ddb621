package workdispatcher

import (
	"fmt"
	"time"

	"github.com/c360studio/semstreams/component"
)

// Config holds configuration for the work-dispatcher processor
// component.
type Config struct {
	Ports *component.PortConfig `json:"ports" schema:"type:ports,description:Port configuration,category:basic"`

	// StreamName is the JetStream stream carrying work messages.
	StreamName string `json:"stream_name" schema:"type:string,description:JetStream stream name,category:basic,default:WORK"`

	// ConsumerName is the durable consumer name.
	ConsumerName string `json:"consumer_name" schema:"type:string,description:Durable consumer name,category:basic,default:work-dispatcher"`

	// DatabasePath is the sqlite inventory database file.
	DatabasePath string `json:"database_path" schema:"type:string,description:Inventory database file,category:basic,default:inventoryd.db"`

	// DownloadDir is the base directory for downloaded and extracted artifacts.
	DownloadDir string `json:"download_dir" schema:"type:string,description:Base directory for downloaded artifacts,category:basic,default:downloads"`

	// ConnectTimeout bounds connection establishment per download request.
	ConnectTimeout string `json:"connect_timeout" schema:"type:string,description:Download connect timeout,category:advanced,default:10s"`

	// ReadTimeout bounds waiting for response headers per download request.
	ReadTimeout string `json:"read_timeout" schema:"type:string,description:Download read timeout,category:advanced,default:60s"`

	// SkipPatterns lists glob patterns excluded from file tree scans.
	SkipPatterns []string `json:"skip_patterns" schema:"type:array,description:Glob patterns excluded from file tree scans,category:advanced,default:[.git/**,node_modules/**]"`

	// Channels maps downstream stage names to subjects.
	Channels ChannelConfig `json:"channels" schema:"type:object,description:Downstream channel subjects,category:basic"`

	// SendToLicenseMatcher toggles license matcher follow-up messages.
	SendToLicenseMatcher bool `json:"send_to_license_matcher" schema:"type:bool,description:Emit license matcher requests after ingestion,category:basic,default:true"`

	// SendToCopyrightFilter toggles copyright filter follow-up messages.
	SendToCopyrightFilter bool `json:"send_to_copyright_filter" schema:"type:bool,description:Emit copyright filter requests after ingestion,category:basic,default:true"`
}

// ChannelConfig maps logical downstream stage names to subjects.
type ChannelConfig struct {
	// LicenseMatcher is the subject for license matcher requests.
	LicenseMatcher string `json:"license_matcher" schema:"type:string,description:License matcher subject,default:inventory.license.match"`

	// CopyrightFilter is the subject for copyright filter requests.
	CopyrightFilter string `json:"copyright_filter" schema:"type:string,description:Copyright filter subject,default:inventory.copyright.filter"`

	// Vulnerability is the subject for vulnerability scan requests.
	Vulnerability string `json:"vulnerability" schema:"type:string,description:Vulnerability request subject,default:work.vulnerability.request"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.StreamName == "" {
		return fmt.Errorf("stream_name is required")
	}
	if c.ConsumerName == "" {
		return fmt.Errorf("consumer_name is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if c.DownloadDir == "" {
		return fmt.Errorf("download_dir is required")
	}
	if c.ConnectTimeout != "" {
		if _, err := time.ParseDuration(c.ConnectTimeout); err != nil {
			return fmt.Errorf("invalid connect_timeout format: %w", err)
		}
	}
	if c.ReadTimeout != "" {
		if _, err := time.ParseDuration(c.ReadTimeout); err != nil {
			return fmt.Errorf("invalid read_timeout format: %w", err)
		}
	}
	if c.Channels.Vulnerability == "" {
		return fmt.Errorf("channels.vulnerability is required")
	}
	return nil
}

// GetConnectTimeout returns the connect timeout as a duration.
func (c *Config) GetConnectTimeout() time.Duration {
	if c.ConnectTimeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(c.ConnectTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetReadTimeout returns the read timeout as a duration.
func (c *Config) GetReadTimeout() time.Duration {
	if c.ReadTimeout == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(c.ReadTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// DefaultConfig returns default configuration for the work-dispatcher
// processor.
func DefaultConfig() Config {
	inputDefs := []component.PortDefinition{
		{
			Name:        "work.in",
			Type:        "jetstream",
			Subject:     "work.>",
			StreamName:  "WORK",
			Required:    true,
			Description: "Inbound ingestion work messages",
		},
	}

	outputDefs := []component.PortDefinition{
		{
			Name:        "license.out",
			Type:        "jetstream",
			Subject:     "inventory.license.match",
			StreamName:  "INVENTORY",
			Required:    false,
			Description: "License matcher follow-up requests",
		},
		{
			Name:        "copyright.out",
			Type:        "jetstream",
			Subject:     "inventory.copyright.filter",
			StreamName:  "INVENTORY",
			Required:    false,
			Description: "Copyright filter follow-up requests",
		},
		{
			Name:        "vulnerability.out",
			Type:        "jetstream",
			Subject:     "work.vulnerability.request",
			StreamName:  "WORK",
			Required:    true,
			Description: "Vulnerability scan requests",
		},
	}

	return Config{
		Ports: &component.PortConfig{
			Inputs:  inputDefs,
			Outputs: outputDefs,
		},
		StreamName:     "WORK",
		ConsumerName:   "work-dispatcher",
		DatabasePath:   "inventoryd.db",
		DownloadDir:    "downloads",
		ConnectTimeout: "10s",
		ReadTimeout:    "60s",
		SkipPatterns:   []string{".git/**", "node_modules/**"},
		Channels: ChannelConfig{
			LicenseMatcher:  "inventory.license.match",
			CopyrightFilter: "inventory.copyright.filter",
			Vulnerability:   "work.vulnerability.request",
		},
		SendToLicenseMatcher:  true,
		SendToCopyrightFilter: true,
	}
}
