package workdispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oscomply/inventoryd/download"
	"github.com/oscomply/inventoryd/inventory"
)

const defaultOSVBase = "https://api.osv.dev"

// VulnScanner queries the OSV database for known vulnerabilities of a
// software component.
type VulnScanner struct {
	client *download.Client
	logger *slog.Logger

	// APIBase is overridable for tests.
	APIBase string
}

// NewVulnScanner creates a VulnScanner backed by the shared download
// client.
func NewVulnScanner(client *download.Client, logger *slog.Logger) *VulnScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &VulnScanner{client: client, logger: logger, APIBase: defaultOSVBase}
}

type osvQuery struct {
	Version string     `json:"version,omitempty"`
	Package osvPackage `json:"package"`
}

type osvPackage struct {
	Purl string `json:"purl,omitempty"`
	Name string `json:"name,omitempty"`
}

type osvResponse struct {
	Vulns []osvVuln `json:"vulns"`
}

type osvVuln struct {
	ID               string         `json:"id"`
	Summary          string         `json:"summary"`
	Severity         []osvSeverity  `json:"severity"`
	DatabaseSpecific map[string]any `json:"database_specific"`
}

type osvSeverity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

// Scan looks up vulnerabilities for comp. The query prefers the purl;
// without one it falls back to name and version. A component with
// neither yields no results and no error.
func (s *VulnScanner) Scan(ctx context.Context, comp *inventory.SoftwareComponent) ([]*inventory.Vulnerability, error) {
	var query osvQuery
	switch {
	case comp.Purl != "":
		query.Package.Purl = comp.Purl
	case comp.Name != "":
		query.Package.Name = comp.Name
		query.Version = comp.Version
	default:
		return nil, nil
	}

	var resp osvResponse
	url := s.APIBase + "/v1/query"
	if err := s.client.PostJSON(ctx, url, query, &resp); err != nil {
		return nil, fmt.Errorf("osv query for %s: %w", comp.Name, err)
	}

	vulns := make([]*inventory.Vulnerability, 0, len(resp.Vulns))
	for _, v := range resp.Vulns {
		vulns = append(vulns, &inventory.Vulnerability{
			ComponentID: comp.ID,
			Identifier:  v.ID,
			Severity:    severityOf(v),
			DetailsURL:  "https://osv.dev/vulnerability/" + v.ID,
		})
	}
	return vulns, nil
}

// severityOf picks a severity label from the OSV record. Database
// specific labels like "HIGH" win over raw CVSS vectors.
func severityOf(v osvVuln) string {
	if raw, ok := v.DatabaseSpecific["severity"]; ok {
		if s, ok := raw.(string); ok && s != "" {
			return s
		}
	}
	for _, sev := range v.Severity {
		if sev.Score != "" {
			return sev.Score
		}
	}
	return ""
}
