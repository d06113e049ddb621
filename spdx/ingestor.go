package spdx

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/oscomply/inventoryd/inventory"
)

// Ingestor folds one SPDX document into the inventory graph. All writes
// go through the caller's transaction; nothing becomes visible unless
// the whole document commits.
type Ingestor struct {
	rec    *inventory.Reconciler
	logger *slog.Logger
}

// NewIngestor creates an Ingestor over the given reconciler.
func NewIngestor(rec *inventory.Reconciler, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{rec: rec, logger: logger}
}

// Result reports what one document produced, for follow-up messages.
type Result struct {
	Components []*inventory.SoftwareComponent
	Items      []*inventory.InventoryItem
}

// Ingest processes every package element of the document, then applies
// the relationship records in a second pass. The second pass is separate
// because a relationship may reference an element parsed later in
// document order.
func (g *Ingestor) Ingest(tx *inventory.Tx, doc *Document, projectID, rootItemID string) (*Result, error) {
	project, err := tx.GetProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", projectID, err)
	}

	caches := inventory.NewCaches()
	extracted := make(map[string]ExtractedLicense, len(doc.ExtractedLicenses))
	for _, e := range doc.ExtractedLicenses {
		extracted[e.LicenseID] = e
	}
	fileRecords := make(map[string]FileRecord, len(doc.Files))
	for _, f := range doc.Files {
		fileRecords[f.SPDXID] = f
	}

	result := &Result{}
	elements := make(map[string]*inventory.InventoryItem, len(doc.Packages))
	for i := range doc.Packages {
		pkg := doc.Packages[i]
		item, comp, err := g.ingestPackage(tx, caches, project, rootItemID, pkg, extracted, fileRecords)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", pkg.SPDXID, err)
		}
		elements[pkg.SPDXID] = item
		result.Components = append(result.Components, comp)
		result.Items = append(result.Items, item)
	}

	if err := g.applyRelationships(tx, doc.Relationships, elements); err != nil {
		return nil, err
	}
	return result, nil
}

func (g *Ingestor) ingestPackage(
	tx *inventory.Tx,
	caches *inventory.Caches,
	project *inventory.Project,
	rootItemID string,
	pkg Package,
	extracted map[string]ExtractedLicense,
	fileRecords map[string]FileRecord,
) (*inventory.InventoryItem, *inventory.SoftwareComponent, error) {
	unlock := g.rec.LockComponent(pkg.Name, pkg.VersionInfo)
	defer unlock()

	comp, _, err := g.rec.GetOrCreateComponent(tx, caches, pkg.Name, pkg.VersionInfo)
	if err != nil {
		return nil, nil, err
	}

	expr := pkg.EffectiveLicense()
	licenses, err := g.resolveLicenses(tx, caches, expr, extracted)
	if err != nil {
		return nil, nil, err
	}

	item, err := g.resolveItem(tx, project, comp, pkg, expr)
	if err != nil {
		return nil, nil, err
	}
	if item.ParentID == "" && rootItemID != "" && rootItemID != item.ID {
		if err := tx.SetItemParent(item.ID, rootItemID); err != nil {
			return nil, nil, err
		}
		item.ParentID = rootItemID
	}
	if inventory.MergeItemFacts(item, inventory.ItemFacts{ExchangeID: pkg.SPDXID, Combined: IsCombined(expr)}) {
		if err := tx.UpdateItem(item); err != nil {
			return nil, nil, err
		}
	}

	if err := g.rec.AttachLicenses(tx, comp, licenses); err != nil {
		return nil, nil, err
	}

	copyrights, err := g.resolveCopyrights(tx, project, item, pkg, fileRecords)
	if err != nil {
		return nil, nil, err
	}
	if err := g.rec.AttachCopyrights(tx, comp, item, copyrights); err != nil {
		return nil, nil, err
	}

	facts := inventory.ComponentFacts{Purl: pkg.Purl()}
	if !IsNoAssertion(pkg.DownloadLocation) && !IsNone(pkg.DownloadLocation) {
		facts.DetailsURL = pkg.DownloadLocation
	}
	if inventory.MergeComponentFacts(comp, facts) {
		if err := tx.UpdateComponent(comp); err != nil {
			return nil, nil, err
		}
	}
	return item, comp, nil
}

// resolveItem finds the item for a package element, preferring the
// exchange identifier recorded by an earlier ingestion so a re-ingested
// element whose display name changed (new version, new licensing) keeps
// its item. An identifier pointing at a different component is ignored.
func (g *Ingestor) resolveItem(tx *inventory.Tx, project *inventory.Project, comp *inventory.SoftwareComponent, pkg Package, expr string) (*inventory.InventoryItem, error) {
	item, err := tx.FindItemByExchangeID(project.ID, pkg.SPDXID)
	if err == nil && (item.ComponentID == "" || item.ComponentID == comp.ID) {
		return item, nil
	}
	if err != nil && err != inventory.ErrNotFound {
		return nil, err
	}
	item, _, err = g.rec.GetOrCreateItemScoped(tx, project.ID, comp.ID,
		DisplayName(pkg.SPDXID, pkg.VersionInfo, expr))
	return item, err
}

// resolveLicenses flattens the expression and resolves each leaf
// through the per-message cache. A leaf backed by an extracted licensing
// record carries that record's text; all other leaves count as standard
// listed licenses. An unparseable expression is logged and yields no
// licenses rather than sinking the whole document.
func (g *Ingestor) resolveLicenses(tx *inventory.Tx, caches *inventory.Caches, expr string, extracted map[string]ExtractedLicense) ([]*inventory.License, error) {
	if IsNoAssertion(expr) || IsNone(expr) {
		return nil, nil
	}
	parsed, err := ParseExpression(expr)
	if err != nil {
		g.logger.Warn("skipping unparseable license expression", "expression", expr, "error", err)
		return nil, nil
	}

	var out []*inventory.License
	for _, id := range parsed.Leaves() {
		lic := inventory.License{LicenseID: id, Name: id, Standard: true}
		if rec, ok := extracted[id]; ok {
			lic.Text = rec.ExtractedText
			lic.Standard = false
			if rec.Name != "" {
				lic.Name = rec.Name
			}
		}

		unlock := g.rec.LockLicense(id)
		l, _, err := g.rec.GetOrCreateLicense(tx, caches, lic)
		unlock()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// resolveCopyrights gathers the copyright texts of the package and its
// files, resolving each distinct text and each distinct file name once.
// The query count is bounded by distinct names plus distinct texts, not
// by the file count.
func (g *Ingestor) resolveCopyrights(tx *inventory.Tx, project *inventory.Project, item *inventory.InventoryItem, pkg Package, fileRecords map[string]FileRecord) ([]*inventory.Copyright, error) {
	texts := make(map[string][]string) // copyright text -> file names
	if !IsNoAssertion(pkg.CopyrightText) && !IsNone(pkg.CopyrightText) {
		texts[strings.TrimSpace(pkg.CopyrightText)] = nil
	}
	for _, fileID := range pkg.HasFiles {
		rec, ok := fileRecords[fileID]
		if !ok {
			continue
		}
		if IsNoAssertion(rec.CopyrightText) || IsNone(rec.CopyrightText) {
			continue
		}
		text := strings.TrimSpace(rec.CopyrightText)
		texts[text] = append(texts[text], rec.FileName)
	}

	files := make(map[string]*inventory.File)
	var out []*inventory.Copyright
	for text, names := range texts {
		cp, _, err := g.rec.GetOrCreateCopyright(tx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)

		for _, name := range names {
			f, ok := files[name]
			if !ok {
				f, err = g.resolveFile(tx, project, item, name)
				if err != nil {
					return nil, err
				}
				files[name] = f
			}
			if err := tx.LinkCopyrightFile(cp.ID, f.ID); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (g *Ingestor) resolveFile(tx *inventory.Tx, project *inventory.Project, item *inventory.InventoryItem, fileName string) (*inventory.File, error) {
	rel := path.Clean(strings.TrimPrefix(fileName, "./"))
	abs := path.Join(project.BasePath, rel)

	f, err := tx.FindFileByPath(project.ID, abs)
	if err == nil {
		return f, nil
	}
	if err != inventory.ErrNotFound {
		return nil, err
	}
	f = &inventory.File{
		ProjectID:       project.ID,
		InventoryItemID: item.ID,
		Name:            path.Base(rel),
		AbsPath:         abs,
		RelPath:         rel,
	}
	if err := tx.CreateFile(f); err != nil {
		return nil, err
	}
	return f, nil
}

// DisplayName derives an inventory item's display name from the element
// identifier, the version and the unflattened license expression.
func DisplayName(spdxID, version, expr string) string {
	id := strings.TrimPrefix(spdxID, "SPDXRef-")
	parts := []string{sanitize(id)}
	if version != "" {
		parts = append(parts, version)
	}
	if expr != "" && !IsNoAssertion(expr) {
		parts = append(parts, expr)
	}
	return strings.Join(parts, " ")
}

// sanitize strips control characters from an element identifier.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
