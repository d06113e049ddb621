// Package spdx parses SPDX 2.x JSON documents and folds their
// packages, files and relationships into the inventory graph.
package spdx

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Document is the subset of an SPDX JSON document this service reads.
type Document struct {
	SPDXID            string             `json:"SPDXID"`
	Name              string             `json:"name"`
	DocumentNamespace string             `json:"documentNamespace"`
	Packages          []Package          `json:"packages"`
	Files             []FileRecord       `json:"files"`
	Relationships     []Relationship     `json:"relationships"`
	ExtractedLicenses []ExtractedLicense `json:"hasExtractedLicensingInfos"`
}

// Package is one package element.
type Package struct {
	SPDXID           string        `json:"SPDXID"`
	Name             string        `json:"name"`
	VersionInfo      string        `json:"versionInfo"`
	LicenseConcluded string        `json:"licenseConcluded"`
	LicenseDeclared  string        `json:"licenseDeclared"`
	DownloadLocation string        `json:"downloadLocation"`
	CopyrightText    string        `json:"copyrightText"`
	ExternalRefs     []ExternalRef `json:"externalRefs"`
	HasFiles         []string      `json:"hasFiles"`
}

// FileRecord is one file element, referenced from packages by SPDXID.
type FileRecord struct {
	SPDXID        string `json:"SPDXID"`
	FileName      string `json:"fileName"`
	CopyrightText string `json:"copyrightText"`
}

// ExternalRef carries a package's external identifiers.
type ExternalRef struct {
	ReferenceCategory string `json:"referenceCategory"`
	ReferenceType     string `json:"referenceType"`
	ReferenceLocator  string `json:"referenceLocator"`
}

// Relationship is one directed edge between two elements.
type Relationship struct {
	SpdxElementID      string `json:"spdxElementId"`
	RelationshipType   string `json:"relationshipType"`
	RelatedSpdxElement string `json:"relatedSpdxElement"`
}

// ExtractedLicense is a non-listed license carried inline in the
// document.
type ExtractedLicense struct {
	LicenseID     string `json:"licenseId"`
	Name          string `json:"name"`
	ExtractedText string `json:"extractedText"`
}

// ParseDocument decodes an SPDX JSON document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if doc.SPDXID == "" && len(doc.Packages) == 0 {
		return nil, fmt.Errorf("%w: no SPDXID and no packages", ErrParse)
	}
	return &doc, nil
}

// IsNoAssertion reports whether the value carries no information.
func IsNoAssertion(s string) bool {
	return s == "" || strings.EqualFold(s, "NOASSERTION")
}

// IsNone reports the explicit "no license / no text" marker.
func IsNone(s string) bool {
	return strings.EqualFold(s, "NONE")
}

// EffectiveLicense picks the concluded license unless it carries no
// assertion, falling back to the declared one.
func (p Package) EffectiveLicense() string {
	if !IsNoAssertion(p.LicenseConcluded) {
		return p.LicenseConcluded
	}
	if IsNoAssertion(p.LicenseDeclared) {
		return ""
	}
	return p.LicenseDeclared
}

// Purl returns the package-URL from the external references, empty when
// none is present. The reference type match is suffix-based so both
// "purl" and vendor-prefixed variants qualify.
func (p Package) Purl() string {
	for _, ref := range p.ExternalRefs {
		if strings.HasSuffix(strings.ToLower(ref.ReferenceType), "purl") {
			return ref.ReferenceLocator
		}
	}
	return ""
}
