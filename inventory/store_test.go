package inventory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreProjectRoundTrip(t *testing.T) {
	store := openTestStore(t)
	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	p := &Project{Name: "acme-device", BasePath: "/srv/scans/acme"}
	require.NoError(t, tx.CreateProject(p))
	require.NotEmpty(t, p.ID)

	got, err := tx.FindProjectByName("acme-device")
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)
	require.Equal(t, "/srv/scans/acme", got.BasePath)

	_, err = tx.FindProjectByName("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreComponentIdentity(t *testing.T) {
	store := openTestStore(t)
	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	c := &SoftwareComponent{Name: "zlib", Version: "1.2.13"}
	require.NoError(t, tx.CreateComponent(c))

	got, err := tx.FindComponent("zlib", "1.2.13")
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ID)

	// Same name, different version is a distinct identity.
	_, err = tx.FindComponent("zlib", "1.2.12")
	require.ErrorIs(t, err, ErrNotFound)

	// The UNIQUE constraint rejects duplicate identities.
	dup := &SoftwareComponent{Name: "zlib", Version: "1.2.13"}
	require.Error(t, tx.CreateComponent(dup))
}

func TestStoreItemTree(t *testing.T) {
	store := openTestStore(t)
	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	p := &Project{Name: "p"}
	require.NoError(t, tx.CreateProject(p))

	root := &InventoryItem{ProjectID: p.ID, DisplayName: "root"}
	require.NoError(t, tx.CreateItem(root))
	child := &InventoryItem{ProjectID: p.ID, DisplayName: "child"}
	require.NoError(t, tx.CreateItem(child))

	require.NoError(t, tx.SetItemParent(child.ID, root.ID))
	got, err := tx.GetItem(child.ID)
	require.NoError(t, err)
	require.Equal(t, root.ID, got.ParentID)
	require.Equal(t, LinkingNone, got.Linking)

	require.NoError(t, tx.SetItemLinking(child.ID, LinkingStatic))
	got, err = tx.GetItem(child.ID)
	require.NoError(t, err)
	require.Equal(t, LinkingStatic, got.Linking)
}

func TestStoreLicenseLinksAreIdempotent(t *testing.T) {
	store := openTestStore(t)
	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	c := &SoftwareComponent{Name: "openssl", Version: "3.0.8"}
	require.NoError(t, tx.CreateComponent(c))
	l := &License{LicenseID: "Apache-2.0", Name: "Apache License 2.0", Standard: true}
	require.NoError(t, tx.CreateLicense(l))

	require.NoError(t, tx.LinkComponentLicense(c.ID, l.ID))
	require.NoError(t, tx.LinkComponentLicense(c.ID, l.ID))

	links, err := tx.ComponentLicenses(c.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.True(t, links[0].Standard)
}

func TestStoreFilePurgeKeepsAnchor(t *testing.T) {
	store := openTestStore(t)
	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	p := &Project{Name: "p"}
	require.NoError(t, tx.CreateProject(p))

	anchor := &File{ProjectID: p.ID, Name: "src", AbsPath: "/work/src", IsDir: true}
	require.NoError(t, tx.CreateFile(anchor))
	files := []*File{
		{ProjectID: p.ID, ParentID: anchor.ID, Name: "a.c", AbsPath: "/work/src/a.c", RelPath: "a.c"},
		{ProjectID: p.ID, ParentID: anchor.ID, Name: "b.c", AbsPath: "/work/src/b.c", RelPath: "b.c"},
	}
	require.NoError(t, tx.InsertFiles(files))

	n, err := tx.PurgeFilesUnder(p.ID, "/work/src", "/work/src")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	got, err := tx.FindFileByPath(p.ID, "/work/src")
	require.NoError(t, err)
	require.True(t, got.IsDir)

	_, err = tx.FindFileByPath(p.ID, "/work/src/a.c")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreFilePurgeStopsAtPathBoundary(t *testing.T) {
	store := openTestStore(t)
	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	p := &Project{Name: "p"}
	require.NoError(t, tx.CreateProject(p))

	files := []*File{
		{ProjectID: p.ID, Name: "lib1", AbsPath: "/a/lib1", IsDir: true},
		{ProjectID: p.ID, Name: "a.txt", AbsPath: "/a/lib1/a.txt", RelPath: "a.txt"},
		{ProjectID: p.ID, Name: "b.txt", AbsPath: "/a/lib10/b.txt", RelPath: "b.txt"},
	}
	require.NoError(t, tx.InsertFiles(files))

	n, err := tx.PurgeFilesUnder(p.ID, "/a/lib1", "/a/lib1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	// The sibling tree sharing the root as a string prefix survives.
	_, err = tx.FindFileByPath(p.ID, "/a/lib10/b.txt")
	require.NoError(t, err)
	_, err = tx.FindFileByPath(p.ID, "/a/lib1/a.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreFilePurgeTreatsRootLiterally(t *testing.T) {
	store := openTestStore(t)
	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	p := &Project{Name: "p"}
	require.NoError(t, tx.CreateProject(p))

	files := []*File{
		{ProjectID: p.ID, Name: "x.c", AbsPath: "/a/my_lib/x.c", RelPath: "x.c"},
		{ProjectID: p.ID, Name: "y.c", AbsPath: "/a/myXlib/y.c", RelPath: "y.c"},
	}
	require.NoError(t, tx.InsertFiles(files))

	// The underscore in the root is a literal character, not a wildcard.
	n, err := tx.PurgeFilesUnder(p.ID, "/a/my_lib", "/a/my_lib")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = tx.FindFileByPath(p.ID, "/a/myXlib/y.c")
	require.NoError(t, err)
}

func TestStoreBulkInsertLargeBatch(t *testing.T) {
	store := openTestStore(t)
	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	p := &Project{Name: "p"}
	require.NoError(t, tx.CreateProject(p))

	var files []*File
	for i := 0; i < 257; i++ {
		files = append(files, &File{
			ProjectID: p.ID,
			Name:      "f",
			AbsPath:   filepath.Join("/work", "f", string(rune('a'+i%26)), string(rune('0'+i/26))),
		})
	}
	require.NoError(t, tx.InsertFiles(files))

	n, err := tx.Count("files")
	require.NoError(t, err)
	require.Equal(t, 257, n)
}

func TestStoreVulnerabilityDeduplicates(t *testing.T) {
	store := openTestStore(t)
	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	c := &SoftwareComponent{Name: "log4j", Version: "2.14.1"}
	require.NoError(t, tx.CreateComponent(c))

	v := &Vulnerability{ComponentID: c.ID, Identifier: "CVE-2021-44228", Severity: "critical"}
	require.NoError(t, tx.RecordVulnerability(v))
	again := &Vulnerability{ComponentID: c.ID, Identifier: "CVE-2021-44228", Severity: "critical"}
	require.NoError(t, tx.RecordVulnerability(again))

	n, err := tx.Count("vulnerabilities")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
