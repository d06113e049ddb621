package workdispatcher

import (
	"encoding/json"
	"errors"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
)

func init() {
	registrations := []*component.PayloadRegistration{
		{
			Domain:      "work",
			Category:    "download",
			Version:     "v1",
			Description: "Artifact download and file tree scan request",
			Factory:     func() any { return &DownloadWork{} },
		},
		{
			Domain:      "work",
			Category:    "spdx",
			Version:     "v1",
			Description: "SPDX document ingestion request",
			Factory:     func() any { return &SpdxWork{} },
		},
		{
			Domain:      "work",
			Category:    "report",
			Version:     "v1",
			Description: "Scan report row ingestion request",
			Factory:     func() any { return &ReportWork{} },
		},
		{
			Domain:      "work",
			Category:    "vulnerability",
			Version:     "v1",
			Description: "Vulnerability lookup request for a software component",
			Factory:     func() any { return &VulnerabilityWork{} },
		},
	}
	for _, reg := range registrations {
		if err := component.RegisterPayload(reg); err != nil {
			panic("failed to register work payload " + reg.Category + ": " + err.Error())
		}
	}
}

// Message types for the work payload kinds.
var (
	DownloadWorkType      = message.Type{Domain: "work", Category: "download", Version: "v1"}
	SpdxWorkType          = message.Type{Domain: "work", Category: "spdx", Version: "v1"}
	ReportWorkType        = message.Type{Domain: "work", Category: "report", Version: "v1"}
	VulnerabilityWorkType = message.Type{Domain: "work", Category: "vulnerability", Version: "v1"}
)

// DownloadWork requests resolving, extracting and scanning one
// component artifact.
type DownloadWork struct {
	TaskID          string `json:"task_id"`
	Details         string `json:"details,omitempty"`
	Timestamp       int64  `json:"timestamp"`
	ProjectID       string `json:"project_id"`
	InventoryItemID string `json:"inventory_item_id"`
	URL             string `json:"url,omitempty"`
	Purl            string `json:"purl,omitempty"`
	Name            string `json:"name,omitempty"`
	Version         string `json:"version,omitempty"`
	Location        string `json:"location"`
	IsMainPackage   bool   `json:"is_main_package"`
}

// Schema returns the message type for Payload interface.
func (p *DownloadWork) Schema() message.Type { return DownloadWorkType }

// Validate validates the payload for Payload interface.
func (p *DownloadWork) Validate() error {
	if p.TaskID == "" {
		return errors.New("task_id is required")
	}
	if p.ProjectID == "" || p.InventoryItemID == "" {
		return errors.New("project_id and inventory_item_id are required")
	}
	if p.URL == "" && p.Purl == "" && p.Name == "" {
		return errors.New("at least one of url, purl or name is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *DownloadWork) MarshalJSON() ([]byte, error) {
	type Alias DownloadWork
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *DownloadWork) UnmarshalJSON(data []byte) error {
	type Alias DownloadWork
	return json.Unmarshal(data, (*Alias)(p))
}

// SpdxWork requests ingesting one SPDX document held in the object
// store.
type SpdxWork struct {
	TaskID              string `json:"task_id"`
	Details             string `json:"details,omitempty"`
	Timestamp           int64  `json:"timestamp"`
	ProjectID           string `json:"project_id"`
	RootInventoryItemID string `json:"root_inventory_item_id"`
	Bucket              string `json:"bucket"`
	ObjectKey           string `json:"object_key"`
	UseCopyrightAI      bool   `json:"use_copyright_ai"`
	UseLicenseMatcher   bool   `json:"use_license_matcher"`
}

// Schema returns the message type for Payload interface.
func (p *SpdxWork) Schema() message.Type { return SpdxWorkType }

// Validate validates the payload for Payload interface.
func (p *SpdxWork) Validate() error {
	if p.TaskID == "" {
		return errors.New("task_id is required")
	}
	if p.ProjectID == "" {
		return errors.New("project_id is required")
	}
	if p.Bucket == "" || p.ObjectKey == "" {
		return errors.New("bucket and object_key are required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *SpdxWork) MarshalJSON() ([]byte, error) {
	type Alias SpdxWork
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *SpdxWork) UnmarshalJSON(data []byte) error {
	type Alias SpdxWork
	return json.Unmarshal(data, (*Alias)(p))
}

// ReportWork requests ingesting one scan-report row.
type ReportWork struct {
	TaskID               string         `json:"task_id"`
	Details              string         `json:"details,omitempty"`
	Timestamp            int64          `json:"timestamp"`
	ScannerInitializerID string         `json:"scanner_initializer_id"`
	Row                  map[string]any `json:"row"`
}

// Schema returns the message type for Payload interface.
func (p *ReportWork) Schema() message.Type { return ReportWorkType }

// Validate validates the payload for Payload interface.
func (p *ReportWork) Validate() error {
	if p.TaskID == "" {
		return errors.New("task_id is required")
	}
	if p.ScannerInitializerID == "" {
		return errors.New("scanner_initializer_id is required")
	}
	if len(p.Row) == 0 {
		return errors.New("row data is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *ReportWork) MarshalJSON() ([]byte, error) {
	type Alias ReportWork
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ReportWork) UnmarshalJSON(data []byte) error {
	type Alias ReportWork
	return json.Unmarshal(data, (*Alias)(p))
}

// VulnerabilityWork requests a vulnerability lookup for one software
// component.
type VulnerabilityWork struct {
	TaskID              string `json:"task_id"`
	Details             string `json:"details,omitempty"`
	Timestamp           int64  `json:"timestamp"`
	SoftwareComponentID string `json:"software_component_id"`
}

// Schema returns the message type for Payload interface.
func (p *VulnerabilityWork) Schema() message.Type { return VulnerabilityWorkType }

// Validate validates the payload for Payload interface.
func (p *VulnerabilityWork) Validate() error {
	if p.TaskID == "" {
		return errors.New("task_id is required")
	}
	if p.SoftwareComponentID == "" {
		return errors.New("software_component_id is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *VulnerabilityWork) MarshalJSON() ([]byte, error) {
	type Alias VulnerabilityWork
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *VulnerabilityWork) UnmarshalJSON(data []byte) error {
	type Alias VulnerabilityWork
	return json.Unmarshal(data, (*Alias)(p))
}

// Message types for the follow-up messages emitted after ingestion.
var (
	LicenseMatchType    = message.Type{Domain: "inventory", Category: "license-match", Version: "v1"}
	CopyrightFilterType = message.Type{Domain: "inventory", Category: "copyright-filter", Version: "v1"}
)

// LicenseMatchRequest asks the license matcher stage to review one
// component. It carries identifiers only.
type LicenseMatchRequest struct {
	TaskID          string `json:"task_id"`
	ComponentID     string `json:"component_id"`
	InventoryItemID string `json:"inventory_item_id,omitempty"`
}

// Schema returns the message type for Payload interface.
func (p *LicenseMatchRequest) Schema() message.Type { return LicenseMatchType }

// Validate validates the payload for Payload interface.
func (p *LicenseMatchRequest) Validate() error {
	if p.ComponentID == "" {
		return errors.New("component_id is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *LicenseMatchRequest) MarshalJSON() ([]byte, error) {
	type Alias LicenseMatchRequest
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *LicenseMatchRequest) UnmarshalJSON(data []byte) error {
	type Alias LicenseMatchRequest
	return json.Unmarshal(data, (*Alias)(p))
}

// CopyrightFilterRequest asks the copyright filter stage to review one
// component. It carries identifiers only.
type CopyrightFilterRequest struct {
	TaskID          string `json:"task_id"`
	ComponentID     string `json:"component_id"`
	InventoryItemID string `json:"inventory_item_id,omitempty"`
}

// Schema returns the message type for Payload interface.
func (p *CopyrightFilterRequest) Schema() message.Type { return CopyrightFilterType }

// Validate validates the payload for Payload interface.
func (p *CopyrightFilterRequest) Validate() error {
	if p.ComponentID == "" {
		return errors.New("component_id is required")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *CopyrightFilterRequest) MarshalJSON() ([]byte, error) {
	type Alias CopyrightFilterRequest
	return json.Marshal((*Alias)(p))
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *CopyrightFilterRequest) UnmarshalJSON(data []byte) error {
	type Alias CopyrightFilterRequest
	return json.Unmarshal(data, (*Alias)(p))
}
