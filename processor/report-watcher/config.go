package reportwatcher

import (
	"fmt"
	"time"

	"github.com/c360studio/semstreams/component"
)

// Config holds configuration for the report-watcher processor
// component.
type Config struct {
	Ports *component.PortConfig `json:"ports" schema:"type:ports,description:Port configuration,category:basic"`

	// DropDir is the directory watched for SBOM and report files.
	DropDir string `json:"drop_dir" schema:"type:string,description:Directory watched for dropped SBOM and report files,category:basic,default:dropbox"`

	// DatabasePath is the sqlite inventory database file.
	DatabasePath string `json:"database_path" schema:"type:string,description:Inventory database file,category:basic,default:inventoryd.db"`

	// Bucket is the object store bucket uploaded SPDX documents land in.
	Bucket string `json:"bucket" schema:"type:string,description:Object store bucket for uploaded SPDX documents,category:advanced,default:SBOM_UPLOADS"`

	// SpdxSubject is where SPDX ingestion work is published.
	SpdxSubject string `json:"spdx_subject" schema:"type:string,description:Subject for SPDX ingestion work,category:advanced,default:work.spdx.request"`

	// ReportSubject is where report row ingestion work is published.
	ReportSubject string `json:"report_subject" schema:"type:string,description:Subject for report row ingestion work,category:advanced,default:work.report.request"`

	// DebounceDelay is how long to wait for a dropped file to settle.
	DebounceDelay string `json:"debounce_delay" schema:"type:string,description:Delay before processing dropped files,category:advanced,default:1s"`

	// UseLicenseMatcher sets the matching flag on enqueued SPDX work.
	UseLicenseMatcher bool `json:"use_license_matcher" schema:"type:bool,description:Request license matching for enqueued SPDX documents,category:basic,default:true"`

	// UseCopyrightAI sets the copyright filter flag on enqueued SPDX work.
	UseCopyrightAI bool `json:"use_copyright_ai" schema:"type:bool,description:Request copyright filtering for enqueued SPDX documents,category:basic,default:true"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.DropDir == "" {
		return fmt.Errorf("drop_dir is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if c.SpdxSubject == "" {
		return fmt.Errorf("spdx_subject is required")
	}
	if c.ReportSubject == "" {
		return fmt.Errorf("report_subject is required")
	}
	if c.DebounceDelay != "" {
		if _, err := time.ParseDuration(c.DebounceDelay); err != nil {
			return fmt.Errorf("invalid debounce_delay format: %w", err)
		}
	}
	return nil
}

// GetDebounceDelay returns the debounce delay as a duration.
func (c *Config) GetDebounceDelay() time.Duration {
	if c.DebounceDelay == "" {
		return time.Second
	}
	d, err := time.ParseDuration(c.DebounceDelay)
	if err != nil {
		return time.Second
	}
	return d
}

// DefaultConfig returns default configuration for the report-watcher
// processor.
func DefaultConfig() Config {
	outputDefs := []component.PortDefinition{
		{
			Name:        "work.out",
			Type:        "jetstream",
			Subject:     "work.>",
			StreamName:  "WORK",
			Required:    true,
			Description: "Enqueued ingestion work messages",
		},
	}

	return Config{
		Ports: &component.PortConfig{
			Inputs:  []component.PortDefinition{},
			Outputs: outputDefs,
		},
		DropDir:           "dropbox",
		DatabasePath:      "inventoryd.db",
		Bucket:            "SBOM_UPLOADS",
		SpdxSubject:       "work.spdx.request",
		ReportSubject:     "work.report.request",
		DebounceDelay:     "1s",
		UseLicenseMatcher: true,
		UseCopyrightAI:    true,
	}
}
