package inventory

import (
	"context"
	"fmt"
)

// Reconciler provides the shared get-or-create and merge primitives the
// ingestion paths use. Identity is always resolved before creating, so
// replaying a redelivered work message never duplicates rows.
//
// Lookups and merges are deliberately split: Find* and GetOrCreate*
// touch the database, while the Merge* functions are pure and
// independently testable.
type Reconciler struct {
	store *Store
	locks *keyedMutex
}

// NewReconciler creates a Reconciler over the given store.
func NewReconciler(store *Store) *Reconciler {
	return &Reconciler{
		store: store,
		locks: newKeyedMutex(),
	}
}

// Begin opens the transaction that spans one work message.
func (r *Reconciler) Begin(ctx context.Context) (*Tx, error) {
	return r.store.Begin(ctx)
}

// LockComponent serializes in-process reconciliation of one component
// identity. The returned func releases the lock.
func (r *Reconciler) LockComponent(name, version string) func() {
	return r.locks.Lock("component\x00" + name + "\x00" + version)
}

// LockLicense serializes in-process reconciliation of one license identity.
func (r *Reconciler) LockLicense(licenseID string) func() {
	return r.locks.Lock("license\x00" + licenseID)
}

// Caches bounds redundant lookups during the processing of a single
// message. A Caches value is scoped to one message and must not be
// shared across messages.
type Caches struct {
	licenses   map[string]*License
	components map[string]*SoftwareComponent
}

// NewCaches creates empty per-message caches.
func NewCaches() *Caches {
	return &Caches{
		licenses:   make(map[string]*License),
		components: make(map[string]*SoftwareComponent),
	}
}

func licenseCacheKey(licenseID, text string) string {
	return licenseID + "\x00" + text
}

// GetOrCreateProject resolves a project by name, creating it if absent.
func (r *Reconciler) GetOrCreateProject(tx *Tx, name, basePath string) (*Project, bool, error) {
	p, err := tx.FindProjectByName(name)
	if err == nil {
		return p, false, nil
	}
	if err != ErrNotFound {
		return nil, false, err
	}
	p = &Project{Name: name, BasePath: basePath}
	if err := tx.CreateProject(p); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// GetOrCreateComponent resolves a software component by (name, version),
// creating it if absent. The per-message cache short-circuits repeated
// lookups of the same identity.
func (r *Reconciler) GetOrCreateComponent(tx *Tx, caches *Caches, name, version string) (*SoftwareComponent, bool, error) {
	key := name + "\x00" + version
	if caches != nil {
		if c, ok := caches.components[key]; ok {
			return c, false, nil
		}
	}

	c, err := tx.FindComponent(name, version)
	created := false
	if err == ErrNotFound {
		c = &SoftwareComponent{Name: name, Version: version}
		if err := tx.CreateComponent(c); err != nil {
			return nil, false, err
		}
		created = true
	} else if err != nil {
		return nil, false, err
	}

	if caches != nil {
		caches.components[key] = c
	}
	return c, created, nil
}

// GetOrCreateLicense resolves a license by (license id, text), creating
// it if absent.
func (r *Reconciler) GetOrCreateLicense(tx *Tx, caches *Caches, lic License) (*License, bool, error) {
	key := licenseCacheKey(lic.LicenseID, lic.Text)
	if caches != nil {
		if l, ok := caches.licenses[key]; ok {
			return l, false, nil
		}
	}

	l, err := tx.FindLicense(lic.LicenseID, lic.Text)
	created := false
	if err == ErrNotFound {
		created = true
		cp := lic
		l = &cp
		if err := tx.CreateLicense(l); err != nil {
			return nil, false, err
		}
	} else if err != nil {
		return nil, false, err
	}

	if caches != nil {
		caches.licenses[key] = l
	}
	return l, created, nil
}

// GetOrCreateLicenseByID resolves a license by identifier alone,
// creating it if absent. Used by ingestion paths that carry no license
// text.
func (r *Reconciler) GetOrCreateLicenseByID(tx *Tx, caches *Caches, licenseID string) (*License, bool, error) {
	key := licenseCacheKey(licenseID, "")
	if caches != nil {
		if l, ok := caches.licenses[key]; ok {
			return l, false, nil
		}
	}

	l, err := tx.FindLicenseByID(licenseID)
	created := false
	if err == ErrNotFound {
		created = true
		l = &License{LicenseID: licenseID, Name: licenseID}
		if err := tx.CreateLicense(l); err != nil {
			return nil, false, err
		}
	} else if err != nil {
		return nil, false, err
	}

	if caches != nil {
		caches.licenses[key] = l
	}
	return l, created, nil
}

// GetOrCreateItemByName resolves an inventory item by (project, display
// name), creating it if absent.
func (r *Reconciler) GetOrCreateItemByName(tx *Tx, projectID, displayName string) (*InventoryItem, bool, error) {
	it, err := tx.FindItemByName(projectID, displayName)
	if err == nil {
		return it, false, nil
	}
	if err != ErrNotFound {
		return nil, false, err
	}
	it = &InventoryItem{ProjectID: projectID, DisplayName: displayName}
	if err := tx.CreateItem(it); err != nil {
		return nil, false, err
	}
	return it, true, nil
}

// GetOrCreateItemScoped resolves an inventory item by (project,
// component, display name), creating it if absent.
func (r *Reconciler) GetOrCreateItemScoped(tx *Tx, projectID, componentID, displayName string) (*InventoryItem, bool, error) {
	it, err := tx.FindItemByComponentName(projectID, componentID, displayName)
	if err == nil {
		return it, false, nil
	}
	if err != ErrNotFound {
		return nil, false, err
	}
	it = &InventoryItem{ProjectID: projectID, ComponentID: componentID, DisplayName: displayName}
	if err := tx.CreateItem(it); err != nil {
		return nil, false, err
	}
	return it, true, nil
}

// GetOrCreateCopyright resolves a copyright by exact text, creating it
// if absent.
func (r *Reconciler) GetOrCreateCopyright(tx *Tx, text string) (*Copyright, bool, error) {
	c, err := tx.FindCopyright(text)
	if err == nil {
		return c, false, nil
	}
	if err != ErrNotFound {
		return nil, false, err
	}
	c = &Copyright{Text: text}
	if err := tx.CreateCopyright(c); err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// ComponentFacts carries attributes gathered from one ingestion source
// for merging into a software component.
type ComponentFacts struct {
	Purl       string
	DetailsURL string
}

// MergeComponentFacts folds facts into a component and reports whether
// anything changed. Curated components keep their purl and details URL.
func MergeComponentFacts(c *SoftwareComponent, facts ComponentFacts) bool {
	if c.Curated {
		return false
	}
	changed := false
	if facts.Purl != "" && facts.Purl != c.Purl {
		c.Purl = facts.Purl
		changed = true
	}
	if facts.DetailsURL != "" && facts.DetailsURL != c.DetailsURL {
		c.DetailsURL = facts.DetailsURL
		changed = true
	}
	return changed
}

// ItemFacts carries attributes gathered from one ingestion source for
// merging into an inventory item.
type ItemFacts struct {
	Size       int64
	Notes      string
	ExchangeID string
	Combined   bool
}

// MergeItemFacts folds facts into an item and reports whether anything
// changed. Size and exchange bookkeeping are merged even for curated
// items; notes and the combined-licensing mark are protected.
func MergeItemFacts(it *InventoryItem, facts ItemFacts) bool {
	changed := false
	if facts.Size > 0 && facts.Size != it.Size {
		it.Size = facts.Size
		changed = true
	}
	if facts.ExchangeID != "" && facts.ExchangeID != it.ExchangeID {
		it.ExchangeID = facts.ExchangeID
		changed = true
	}
	if !it.Curated && facts.Notes != "" && facts.Notes != it.Notes {
		it.Notes = facts.Notes
		changed = true
	}
	if !it.Curated && facts.Combined && !it.Combined {
		it.Combined = true
		changed = true
	}
	return changed
}

// AttachLicenses links the given licenses to a component unless the
// component is curated.
func (r *Reconciler) AttachLicenses(tx *Tx, c *SoftwareComponent, licenses []*License) error {
	if c.Curated {
		return nil
	}
	for _, l := range licenses {
		if err := tx.LinkComponentLicense(c.ID, l.ID); err != nil {
			return fmt.Errorf("attach license %s: %w", l.LicenseID, err)
		}
	}
	return nil
}

// AttachCopyrights unions copyrights into a component's and an item's
// sets. Curated components keep their copyright set unchanged; the item
// still receives the links unless it is curated itself.
func (r *Reconciler) AttachCopyrights(tx *Tx, c *SoftwareComponent, it *InventoryItem, copyrights []*Copyright) error {
	for _, cp := range copyrights {
		if c != nil && !c.Curated {
			if err := tx.LinkComponentCopyright(c.ID, cp.ID); err != nil {
				return err
			}
		}
		if it != nil && !it.Curated {
			if err := tx.LinkItemCopyright(it.ID, cp.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
