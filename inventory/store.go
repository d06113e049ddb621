package inventory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store manages the inventory database. All writes go through a Tx so
// one work message maps onto one transaction boundary.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the inventory database at dbPath
// and applies the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open inventory db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping inventory db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin starts a transaction spanning the processing of one work message.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx wraps one inventory transaction. Rollback after Commit is a no-op,
// so callers can always defer Rollback.
type Tx struct {
	tx   *sql.Tx
	done bool
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction unless it was already committed.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

// nullable maps empty strings onto SQL NULL for optional foreign keys.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func fromNull(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// --- projects ---

// GetProject retrieves a project by ID.
func (t *Tx) GetProject(id string) (*Project, error) {
	var p Project
	err := t.tx.QueryRow(
		`SELECT id, name, base_path, created_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.BasePath, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// FindProjectByName retrieves a project by its unique name.
func (t *Tx) FindProjectByName(name string) (*Project, error) {
	var p Project
	err := t.tx.QueryRow(
		`SELECT id, name, base_path, created_at FROM projects WHERE name = ?`, name,
	).Scan(&p.ID, &p.Name, &p.BasePath, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	return &p, nil
}

// CreateProject inserts a new project, generating its ID.
func (t *Tx) CreateProject(p *Project) error {
	p.ID = uuid.New().String()
	_, err := t.tx.Exec(
		`INSERT INTO projects (id, name, base_path) VALUES (?, ?, ?)`,
		p.ID, p.Name, p.BasePath,
	)
	if err != nil {
		return fmt.Errorf("insert project %q: %w", p.Name, err)
	}
	return nil
}

// UpdateProjectBasePath updates the base filesystem path of a project.
func (t *Tx) UpdateProjectBasePath(id, basePath string) error {
	_, err := t.tx.Exec(`UPDATE projects SET base_path = ? WHERE id = ?`, basePath, id)
	if err != nil {
		return fmt.Errorf("update project base path: %w", err)
	}
	return nil
}

// --- software components ---

func scanComponent(row *sql.Row) (*SoftwareComponent, error) {
	var c SoftwareComponent
	var curated int
	err := row.Scan(&c.ID, &c.Name, &c.Version, &c.Purl, &c.DetailsURL, &curated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Curated = curated != 0
	return &c, nil
}

// GetComponent retrieves a software component by ID.
func (t *Tx) GetComponent(id string) (*SoftwareComponent, error) {
	c, err := scanComponent(t.tx.QueryRow(
		`SELECT id, name, version, purl, details_url, curated FROM software_components WHERE id = ?`, id,
	))
	if err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("get component: %w", err)
	}
	return c, err
}

// FindComponent retrieves a software component by its (name, version) identity.
func (t *Tx) FindComponent(name, version string) (*SoftwareComponent, error) {
	c, err := scanComponent(t.tx.QueryRow(
		`SELECT id, name, version, purl, details_url, curated FROM software_components WHERE name = ? AND version = ?`,
		name, version,
	))
	if err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("find component %s %s: %w", name, version, err)
	}
	return c, err
}

// CreateComponent inserts a new software component, generating its ID.
func (t *Tx) CreateComponent(c *SoftwareComponent) error {
	c.ID = uuid.New().String()
	_, err := t.tx.Exec(
		`INSERT INTO software_components (id, name, version, purl, details_url, curated) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Version, c.Purl, c.DetailsURL, boolInt(c.Curated),
	)
	if err != nil {
		return fmt.Errorf("insert component %s %s: %w", c.Name, c.Version, err)
	}
	return nil
}

// UpdateComponent persists mutable component attributes.
func (t *Tx) UpdateComponent(c *SoftwareComponent) error {
	_, err := t.tx.Exec(
		`UPDATE software_components SET purl = ?, details_url = ?, curated = ? WHERE id = ?`,
		c.Purl, c.DetailsURL, boolInt(c.Curated), c.ID,
	)
	if err != nil {
		return fmt.Errorf("update component %s: %w", c.ID, err)
	}
	return nil
}

// --- inventory items ---

func (t *Tx) scanItem(row *sql.Row) (*InventoryItem, error) {
	var it InventoryItem
	var componentID, parentID sql.NullString
	var combined, curated int
	err := row.Scan(&it.ID, &it.ProjectID, &componentID, &parentID, &it.DisplayName,
		&it.Size, &it.Linking, &combined, &curated, &it.Notes, &it.ExchangeID, &it.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	it.ComponentID = fromNull(componentID)
	it.ParentID = fromNull(parentID)
	it.Combined = combined != 0
	it.Curated = curated != 0
	return &it, nil
}

const itemColumns = `id, project_id, component_id, parent_id, display_name, size, linking, combined, curated, notes, exchange_id, created_at`

// GetItem retrieves an inventory item by ID.
func (t *Tx) GetItem(id string) (*InventoryItem, error) {
	it, err := t.scanItem(t.tx.QueryRow(
		`SELECT `+itemColumns+` FROM inventory_items WHERE id = ?`, id,
	))
	if err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return it, err
}

// FindItemByName retrieves an item by (project, display name).
func (t *Tx) FindItemByName(projectID, displayName string) (*InventoryItem, error) {
	it, err := t.scanItem(t.tx.QueryRow(
		`SELECT `+itemColumns+` FROM inventory_items WHERE project_id = ? AND display_name = ?`,
		projectID, displayName,
	))
	if err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("find item %q: %w", displayName, err)
	}
	return it, err
}

// FindItemByComponentName retrieves an item by (project, component, display name).
func (t *Tx) FindItemByComponentName(projectID, componentID, displayName string) (*InventoryItem, error) {
	it, err := t.scanItem(t.tx.QueryRow(
		`SELECT `+itemColumns+` FROM inventory_items WHERE project_id = ? AND component_id IS ? AND display_name = ?`,
		projectID, nullable(componentID), displayName,
	))
	if err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("find item %q: %w", displayName, err)
	}
	return it, err
}

// FindItemByExchangeID retrieves an item by its exchange-format identifier.
func (t *Tx) FindItemByExchangeID(projectID, exchangeID string) (*InventoryItem, error) {
	it, err := t.scanItem(t.tx.QueryRow(
		`SELECT `+itemColumns+` FROM inventory_items WHERE project_id = ? AND exchange_id = ?`,
		projectID, exchangeID,
	))
	if err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("find item by exchange id %q: %w", exchangeID, err)
	}
	return it, err
}

// CreateItem inserts a new inventory item, generating its ID.
func (t *Tx) CreateItem(it *InventoryItem) error {
	it.ID = uuid.New().String()
	if it.Linking == "" {
		it.Linking = LinkingNone
	}
	_, err := t.tx.Exec(
		`INSERT INTO inventory_items (id, project_id, component_id, parent_id, display_name, size, linking, combined, curated, notes, exchange_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.ProjectID, nullable(it.ComponentID), nullable(it.ParentID),
		it.DisplayName, it.Size, string(it.Linking), boolInt(it.Combined), boolInt(it.Curated), it.Notes, it.ExchangeID,
	)
	if err != nil {
		return fmt.Errorf("insert item %q: %w", it.DisplayName, err)
	}
	return nil
}

// UpdateItem persists mutable item attributes.
func (t *Tx) UpdateItem(it *InventoryItem) error {
	_, err := t.tx.Exec(
		`UPDATE inventory_items SET component_id = ?, parent_id = ?, size = ?, linking = ?, combined = ?, curated = ?, notes = ?, exchange_id = ? WHERE id = ?`,
		nullable(it.ComponentID), nullable(it.ParentID), it.Size, string(it.Linking),
		boolInt(it.Combined), boolInt(it.Curated), it.Notes, it.ExchangeID, it.ID,
	)
	if err != nil {
		return fmt.Errorf("update item %s: %w", it.ID, err)
	}
	return nil
}

// SetItemParent points an item at its parent in the inventory tree.
func (t *Tx) SetItemParent(itemID, parentID string) error {
	_, err := t.tx.Exec(`UPDATE inventory_items SET parent_id = ? WHERE id = ?`, nullable(parentID), itemID)
	if err != nil {
		return fmt.Errorf("set item parent: %w", err)
	}
	return nil
}

// SetItemLinking records the linking mode of an item.
func (t *Tx) SetItemLinking(itemID string, linking LinkingType) error {
	_, err := t.tx.Exec(`UPDATE inventory_items SET linking = ? WHERE id = ?`, string(linking), itemID)
	if err != nil {
		return fmt.Errorf("set item linking: %w", err)
	}
	return nil
}

// --- licenses ---

func scanLicense(row *sql.Row) (*License, error) {
	var l License
	var modified, curated, standard int
	err := row.Scan(&l.ID, &l.LicenseID, &l.Name, &l.Text, &l.DetailsURL, &modified, &curated, &standard)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	l.Modified = modified != 0
	l.Curated = curated != 0
	l.Standard = standard != 0
	return &l, nil
}

const licenseColumns = `id, license_id, name, text, details_url, modified, curated, standard`

// FindLicense retrieves a license by its (license id, text) identity.
func (t *Tx) FindLicense(licenseID, text string) (*License, error) {
	l, err := scanLicense(t.tx.QueryRow(
		`SELECT `+licenseColumns+` FROM licenses WHERE license_id = ? AND text = ?`, licenseID, text,
	))
	if err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("find license %q: %w", licenseID, err)
	}
	return l, err
}

// FindLicenseByID retrieves a license by identifier alone.
func (t *Tx) FindLicenseByID(licenseID string) (*License, error) {
	l, err := scanLicense(t.tx.QueryRow(
		`SELECT `+licenseColumns+` FROM licenses WHERE license_id = ? LIMIT 1`, licenseID,
	))
	if err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("find license %q: %w", licenseID, err)
	}
	return l, err
}

// CreateLicense inserts a new license, generating its ID.
func (t *Tx) CreateLicense(l *License) error {
	l.ID = uuid.New().String()
	_, err := t.tx.Exec(
		`INSERT INTO licenses (id, license_id, name, text, details_url, modified, curated, standard) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.LicenseID, l.Name, l.Text, l.DetailsURL, boolInt(l.Modified), boolInt(l.Curated), boolInt(l.Standard),
	)
	if err != nil {
		return fmt.Errorf("insert license %q: %w", l.LicenseID, err)
	}
	return nil
}

// LinkComponentLicense attaches a license to a component. Duplicate
// links are ignored so replays stay idempotent.
func (t *Tx) LinkComponentLicense(componentID, licenseID string) error {
	_, err := t.tx.Exec(
		`INSERT OR IGNORE INTO component_licenses (component_id, license_id) VALUES (?, ?)`,
		componentID, licenseID,
	)
	if err != nil {
		return fmt.Errorf("link component license: %w", err)
	}
	return nil
}

// ComponentLicenses returns all licenses attached to a component.
func (t *Tx) ComponentLicenses(componentID string) ([]License, error) {
	rows, err := t.tx.Query(
		`SELECT l.id, l.license_id, l.name, l.text, l.details_url, l.modified, l.curated, l.standard
		 FROM licenses l JOIN component_licenses cl ON cl.license_id = l.id
		 WHERE cl.component_id = ? ORDER BY l.license_id`, componentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query component licenses: %w", err)
	}
	defer rows.Close()

	var out []License
	for rows.Next() {
		var l License
		var modified, curated, standard int
		if err := rows.Scan(&l.ID, &l.LicenseID, &l.Name, &l.Text, &l.DetailsURL, &modified, &curated, &standard); err != nil {
			return nil, fmt.Errorf("scan license: %w", err)
		}
		l.Modified = modified != 0
		l.Curated = curated != 0
		l.Standard = standard != 0
		out = append(out, l)
	}
	return out, rows.Err()
}

// --- copyrights ---

// FindCopyright retrieves a copyright by its exact text.
func (t *Tx) FindCopyright(text string) (*Copyright, error) {
	var c Copyright
	var curated, garbage int
	var loc sql.NullString
	err := t.tx.QueryRow(
		`SELECT id, text, curated, garbage, code_location_id FROM copyrights WHERE text = ? LIMIT 1`, text,
	).Scan(&c.ID, &c.Text, &curated, &garbage, &loc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find copyright: %w", err)
	}
	c.Curated = curated != 0
	c.Garbage = garbage != 0
	c.CodeLocationID = fromNull(loc)
	return &c, nil
}

// CreateCopyright inserts a new copyright, generating its ID.
func (t *Tx) CreateCopyright(c *Copyright) error {
	c.ID = uuid.New().String()
	_, err := t.tx.Exec(
		`INSERT INTO copyrights (id, text, curated, garbage, code_location_id) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Text, boolInt(c.Curated), boolInt(c.Garbage), nullable(c.CodeLocationID),
	)
	if err != nil {
		return fmt.Errorf("insert copyright: %w", err)
	}
	return nil
}

// LinkComponentCopyright unions a copyright into a component's set.
func (t *Tx) LinkComponentCopyright(componentID, copyrightID string) error {
	_, err := t.tx.Exec(
		`INSERT OR IGNORE INTO component_copyrights (component_id, copyright_id) VALUES (?, ?)`,
		componentID, copyrightID,
	)
	if err != nil {
		return fmt.Errorf("link component copyright: %w", err)
	}
	return nil
}

// LinkItemCopyright unions a copyright into an inventory item's set.
func (t *Tx) LinkItemCopyright(itemID, copyrightID string) error {
	_, err := t.tx.Exec(
		`INSERT OR IGNORE INTO item_copyrights (item_id, copyright_id) VALUES (?, ?)`,
		itemID, copyrightID,
	)
	if err != nil {
		return fmt.Errorf("link item copyright: %w", err)
	}
	return nil
}

// LinkCopyrightFile associates a copyright with a file entity.
func (t *Tx) LinkCopyrightFile(copyrightID, fileID string) error {
	_, err := t.tx.Exec(
		`INSERT OR IGNORE INTO copyright_files (copyright_id, file_id) VALUES (?, ?)`,
		copyrightID, fileID,
	)
	if err != nil {
		return fmt.Errorf("link copyright file: %w", err)
	}
	return nil
}

// --- vulnerabilities ---

// RecordVulnerability attaches a vulnerability to a component,
// ignoring duplicates by (component, identifier).
func (t *Tx) RecordVulnerability(v *Vulnerability) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	_, err := t.tx.Exec(
		`INSERT OR IGNORE INTO vulnerabilities (id, component_id, identifier, severity, details_url) VALUES (?, ?, ?, ?, ?)`,
		v.ID, v.ComponentID, v.Identifier, v.Severity, v.DetailsURL,
	)
	if err != nil {
		return fmt.Errorf("record vulnerability: %w", err)
	}
	return nil
}

// --- counts (used by callers verifying idempotent replays) ---

// Count returns the number of rows in the named table. The table name
// must be one of the schema's tables; anything else is rejected.
func (t *Tx) Count(table string) (int, error) {
	switch table {
	case "projects", "software_components", "inventory_items", "licenses",
		"copyrights", "code_locations", "files", "vulnerabilities",
		"component_licenses", "component_copyrights", "item_copyrights", "copyright_files":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	if err := t.tx.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
