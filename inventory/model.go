// Package inventory holds the persistent inventory graph: projects,
// inventory items, software components, licenses, copyrights, code
// locations and file trees, plus the reconciliation primitives that
// fold newly ingested facts into existing rows without duplication.
package inventory

// LinkingType describes how an inventory item is linked into its parent.
type LinkingType string

// Linking types for inventory items.
const (
	LinkingStatic  LinkingType = "static"
	LinkingDynamic LinkingType = "dynamic"
	LinkingNone    LinkingType = "none"
)

// Project is the root scope for all inventory data. BasePath anchors
// relative file paths reported by scanners.
type Project struct {
	ID        string
	Name      string
	BasePath  string
	CreatedAt string
}

// InventoryItem is a node in a per-project tree. ParentID is empty for
// roots. ComponentID is empty when no software component has been
// associated yet. Combined marks licensing that joins multiple licenses
// with a boolean operator.
type InventoryItem struct {
	ID          string
	ProjectID   string
	ComponentID string
	ParentID    string
	DisplayName string
	Size        int64
	Linking     LinkingType
	Combined    bool
	Curated     bool
	Notes       string
	ExchangeID  string
	CreatedAt   string
}

// SoftwareComponent is identified by (name, version). Once curated,
// automatic merges must not alter licenses, copyrights or URLs.
type SoftwareComponent struct {
	ID         string
	Name       string
	Version    string
	Purl       string
	DetailsURL string
	Curated    bool
}

// License carries the license identifier ("type") and optionally the
// full text. Standard is true when the license comes from the exchange
// format's listed set rather than an extracted text.
type License struct {
	ID         string
	LicenseID  string
	Name       string
	Text       string
	DetailsURL string
	Modified   bool
	Curated    bool
	Standard   bool
}

// Copyright is a free-text statement, optionally linked to a code
// location and/or a set of files.
type Copyright struct {
	ID             string
	Text           string
	Curated        bool
	Garbage        bool
	CodeLocationID string
}

// CodeLocation is a file path plus optional line range, used when the
// ingestion source does not model individual files.
type CodeLocation struct {
	ID              string
	InventoryItemID string
	Path            string
	StartLine       int
	EndLine         int
}

// File is a node in a per-project directory tree produced by the file
// scanner or by file-level exchange records.
type File struct {
	ID              string
	ProjectID       string
	ParentID        string
	InventoryItemID string
	CodeLocationID  string
	Name            string
	AbsPath         string
	RelPath         string
	IsDir           bool
}

// Vulnerability is a known issue recorded against a software component.
type Vulnerability struct {
	ID          string
	ComponentID string
	Identifier  string
	Severity    string
	DetailsURL  string
}
