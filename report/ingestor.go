package report

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/oscomply/inventoryd/inventory"
)

// Ingestor folds parsed report rows into the inventory graph. Rows for
// an already known component or item merge additively; curated entities
// keep their reviewed state.
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

// IngestRow reconciles one raw row into the graph under the given
// project.
func (g *Ingestor) IngestRow(tx *inventory.Tx, projectID string, data map[string]any) (*inventory.SoftwareComponent, *inventory.InventoryItem, error) {
	row, err := ParseRow(data)
	if err != nil {
		return nil, nil, err
	}
	project, err := tx.GetProject(projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("load project %s: %w", projectID, err)
	}
	return g.ingest(tx, project, row)
}

func (g *Ingestor) ingest(tx *inventory.Tx, project *inventory.Project, row *Row) (*inventory.SoftwareComponent, *inventory.InventoryItem, error) {
	unlock := g.rec.LockComponent(row.Name, row.Version)
	defer unlock()

	comp, _, err := g.rec.GetOrCreateComponent(tx, nil, row.Name, row.Version)
	if err != nil {
		return nil, nil, err
	}

	displayName := strings.TrimSpace(row.Name + " " + row.Version)
	item, _, err := g.rec.GetOrCreateItemByName(tx, project.ID, displayName)
	if err != nil {
		return nil, nil, err
	}
	changed := item.ComponentID == ""
	if changed {
		item.ComponentID = comp.ID
	}
	if inventory.MergeItemFacts(item, inventory.ItemFacts{Combined: row.Combined}) {
		changed = true
	}
	if changed {
		if err := tx.UpdateItem(item); err != nil {
			return nil, nil, err
		}
	}

	licenses := make([]*inventory.License, 0, len(row.Licenses))
	for _, id := range row.Licenses {
		unlockLic := g.rec.LockLicense(id)
		l, _, err := g.rec.GetOrCreateLicenseByID(tx, nil, id)
		unlockLic()
		if err != nil {
			return nil, nil, err
		}
		licenses = append(licenses, l)
	}
	if err := g.rec.AttachLicenses(tx, comp, licenses); err != nil {
		return nil, nil, err
	}

	location, err := g.resolveLocation(tx, project, item, row)
	if err != nil {
		return nil, nil, err
	}

	copyrights := make([]*inventory.Copyright, 0, len(row.Copyrights))
	for _, text := range row.Copyrights {
		cp, err := g.resolveCopyright(tx, text, location)
		if err != nil {
			return nil, nil, err
		}
		copyrights = append(copyrights, cp)
	}
	if err := g.rec.AttachCopyrights(tx, comp, item, copyrights); err != nil {
		return nil, nil, err
	}

	if inventory.MergeComponentFacts(comp, inventory.ComponentFacts{DetailsURL: row.URL}) {
		if err := tx.UpdateComponent(comp); err != nil {
			return nil, nil, err
		}
	}
	return comp, item, nil
}

// resolveLocation anchors the row's files at a code location for the
// item's base path and records the file paths themselves. The first row
// that yields a base path also anchors the project itself.
func (g *Ingestor) resolveLocation(tx *inventory.Tx, project *inventory.Project, item *inventory.InventoryItem, row *Row) (*inventory.CodeLocation, error) {
	base := BasePath(row.Files, row.Folder)
	if base == "" && len(row.Files) == 0 {
		return nil, nil
	}
	if base != "" && project.BasePath == "" {
		if err := tx.UpdateProjectBasePath(project.ID, base); err != nil {
			return nil, err
		}
		project.BasePath = base
	}

	location, err := tx.FindCodeLocation(item.ID, base)
	if err == inventory.ErrNotFound {
		location = &inventory.CodeLocation{InventoryItemID: item.ID, Path: base}
		if err := tx.CreateCodeLocation(location); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	for _, p := range row.Files {
		abs := strings.Join(splitPath(p), "/")
		if strings.HasPrefix(p, "/") {
			abs = "/" + abs
		}
		_, err := tx.FindFileByPath(project.ID, abs)
		if err == nil {
			continue
		}
		if err != inventory.ErrNotFound {
			return nil, err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(strings.TrimPrefix(abs, "/"), base), "/")
		f := &inventory.File{
			ProjectID:       project.ID,
			InventoryItemID: item.ID,
			CodeLocationID:  location.ID,
			Name:            lastSegment(abs),
			AbsPath:         abs,
			RelPath:         rel,
		}
		if err := tx.CreateFile(f); err != nil {
			return nil, err
		}
	}
	return location, nil
}

// resolveCopyright finds a copyright by exact text or creates it
// anchored at the row's code location.
func (g *Ingestor) resolveCopyright(tx *inventory.Tx, text string, location *inventory.CodeLocation) (*inventory.Copyright, error) {
	cp, err := tx.FindCopyright(text)
	if err == nil {
		return cp, nil
	}
	if err != inventory.ErrNotFound {
		return nil, err
	}
	cp = &inventory.Copyright{Text: text}
	if location != nil {
		cp.CodeLocationID = location.ID
	}
	if err := tx.CreateCopyright(cp); err != nil {
		return nil, fmt.Errorf("create copyright: %w", err)
	}
	return cp, nil
}

func lastSegment(p string) string {
	segs := splitPath(p)
	if len(segs) == 0 {
		return p
	}
	return segs[len(segs)-1]
}
