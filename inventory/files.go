package inventory

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// FindFileByPath retrieves a file by its absolute path within a project.
func (t *Tx) FindFileByPath(projectID, absPath string) (*File, error) {
	f, err := scanFile(t.tx.QueryRow(
		`SELECT `+fileColumns+` FROM files WHERE project_id = ? AND abs_path = ? LIMIT 1`,
		projectID, absPath,
	))
	if err == ErrNotFound {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("find file %q: %w", absPath, err)
	}
	return f, nil
}

const fileColumns = `id, project_id, parent_id, inventory_item_id, code_location_id, name, abs_path, rel_path, is_dir`

func scanFile(row *sql.Row) (*File, error) {
	var f File
	var parentID, itemID, locID sql.NullString
	var isDir int
	err := row.Scan(&f.ID, &f.ProjectID, &parentID, &itemID, &locID, &f.Name, &f.AbsPath, &f.RelPath, &isDir)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.ParentID = fromNull(parentID)
	f.InventoryItemID = fromNull(itemID)
	f.CodeLocationID = fromNull(locID)
	f.IsDir = isDir != 0
	return &f, nil
}

// CreateFile inserts a single file entity, generating its ID.
func (t *Tx) CreateFile(f *File) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	_, err := t.tx.Exec(
		`INSERT INTO files (id, project_id, parent_id, inventory_item_id, code_location_id, name, abs_path, rel_path, is_dir)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ProjectID, nullable(f.ParentID), nullable(f.InventoryItemID),
		nullable(f.CodeLocationID), f.Name, f.AbsPath, f.RelPath, boolInt(f.IsDir),
	)
	if err != nil {
		return fmt.Errorf("insert file %q: %w", f.AbsPath, err)
	}
	return nil
}

// InsertFiles bulk-inserts file entities with one multi-row statement
// per chunk instead of one round trip per node. IDs are assigned to
// entries that lack one.
func (t *Tx) InsertFiles(files []*File) error {
	const chunkSize = 100
	for start := 0; start < len(files); start += chunkSize {
		end := start + chunkSize
		if end > len(files) {
			end = len(files)
		}
		chunk := files[start:end]

		placeholders := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*9)
		for _, f := range chunk {
			if f.ID == "" {
				f.ID = uuid.New().String()
			}
			placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, f.ID, f.ProjectID, nullable(f.ParentID), nullable(f.InventoryItemID),
				nullable(f.CodeLocationID), f.Name, f.AbsPath, f.RelPath, boolInt(f.IsDir))
		}

		_, err := t.tx.Exec(
			`INSERT INTO files (id, project_id, parent_id, inventory_item_id, code_location_id, name, abs_path, rel_path, is_dir) VALUES `+
				strings.Join(placeholders, ", "),
			args...,
		)
		if err != nil {
			return fmt.Errorf("bulk insert files: %w", err)
		}
	}
	return nil
}

// PurgeFilesUnder deletes every file entity of the project at root or
// below it, except the anchor row whose path equals keepPath. Re-scans
// call this before re-inserting the tree. Matching stops at the path
// separator so a sibling directory sharing root as a string prefix is
// untouched, and LIKE wildcard characters in root are escaped.
func (t *Tx) PurgeFilesUnder(projectID, root, keepPath string) (int64, error) {
	res, err := t.tx.Exec(
		`DELETE FROM files WHERE project_id = ?
		   AND (abs_path = ? OR abs_path LIKE ? || '/%' ESCAPE '\')
		   AND abs_path != ?`,
		projectID, root, escapeLike(root), keepPath,
	)
	if err != nil {
		return 0, fmt.Errorf("purge files under %q: %w", root, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// escapeLike escapes the LIKE pattern metacharacters in a literal path.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// --- code locations ---

// CreateCodeLocation inserts a code location, generating its ID.
func (t *Tx) CreateCodeLocation(cl *CodeLocation) error {
	cl.ID = uuid.New().String()
	_, err := t.tx.Exec(
		`INSERT INTO code_locations (id, inventory_item_id, path, start_line, end_line) VALUES (?, ?, ?, ?, ?)`,
		cl.ID, nullable(cl.InventoryItemID), cl.Path, cl.StartLine, cl.EndLine,
	)
	if err != nil {
		return fmt.Errorf("insert code location %q: %w", cl.Path, err)
	}
	return nil
}

// FindCodeLocation retrieves a code location by item and path.
func (t *Tx) FindCodeLocation(itemID, path string) (*CodeLocation, error) {
	var cl CodeLocation
	var invID sql.NullString
	err := t.tx.QueryRow(
		`SELECT id, inventory_item_id, path, start_line, end_line FROM code_locations WHERE inventory_item_id IS ? AND path = ? LIMIT 1`,
		nullable(itemID), path,
	).Scan(&cl.ID, &invID, &cl.Path, &cl.StartLine, &cl.EndLine)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find code location %q: %w", path, err)
	}
	cl.InventoryItemID = fromNull(invID)
	return &cl, nil
}
