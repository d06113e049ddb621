package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateComponentIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	r := NewReconciler(store)
	tx, err := r.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	caches := NewCaches()
	first, created, err := r.GetOrCreateComponent(tx, caches, "busybox", "1.36.0")
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := r.GetOrCreateComponent(tx, caches, "busybox", "1.36.0")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)

	// Also idempotent without the cache: the lookup hits the database.
	third, created, err := r.GetOrCreateComponent(tx, NewCaches(), "busybox", "1.36.0")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, third.ID)

	n, err := tx.Count("software_components")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestGetOrCreateLicenseDistinguishesText(t *testing.T) {
	store := openTestStore(t)
	r := NewReconciler(store)
	tx, err := r.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	caches := NewCaches()
	a, created, err := r.GetOrCreateLicense(tx, caches, License{LicenseID: "MIT", Text: "variant one"})
	require.NoError(t, err)
	require.True(t, created)

	b, created, err := r.GetOrCreateLicense(tx, caches, License{LicenseID: "MIT", Text: "variant two"})
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, a.ID, b.ID)

	// Same (id, text) resolves to the existing row.
	again, created, err := r.GetOrCreateLicense(tx, caches, License{LicenseID: "MIT", Text: "variant one"})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, a.ID, again.ID)
}

func TestMergeComponentFactsRespectsCuration(t *testing.T) {
	tests := []struct {
		name        string
		component   SoftwareComponent
		facts       ComponentFacts
		wantChanged bool
		wantPurl    string
	}{
		{
			name:        "new facts applied",
			component:   SoftwareComponent{Name: "zlib"},
			facts:       ComponentFacts{Purl: "pkg:generic/zlib@1.2.13", DetailsURL: "https://zlib.net"},
			wantChanged: true,
			wantPurl:    "pkg:generic/zlib@1.2.13",
		},
		{
			name:        "curated component untouched",
			component:   SoftwareComponent{Name: "zlib", Purl: "pkg:generic/zlib@1.2.12", Curated: true},
			facts:       ComponentFacts{Purl: "pkg:generic/zlib@1.2.13"},
			wantChanged: false,
			wantPurl:    "pkg:generic/zlib@1.2.12",
		},
		{
			name:        "identical facts are a no-op",
			component:   SoftwareComponent{Name: "zlib", Purl: "pkg:generic/zlib@1.2.13"},
			facts:       ComponentFacts{Purl: "pkg:generic/zlib@1.2.13"},
			wantChanged: false,
			wantPurl:    "pkg:generic/zlib@1.2.13",
		},
		{
			name:        "empty facts never clear attributes",
			component:   SoftwareComponent{Name: "zlib", Purl: "pkg:generic/zlib@1.2.13"},
			facts:       ComponentFacts{},
			wantChanged: false,
			wantPurl:    "pkg:generic/zlib@1.2.13",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.component
			changed := MergeComponentFacts(&c, tt.facts)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantPurl, c.Purl)
		})
	}
}

func TestMergeItemFacts(t *testing.T) {
	it := InventoryItem{DisplayName: "zlib 1.2.13", Curated: true, Notes: "reviewed"}

	changed := MergeItemFacts(&it, ItemFacts{Size: 4096, Notes: "machine generated", ExchangeID: "SPDXRef-zlib", Combined: true})
	assert.True(t, changed)
	assert.EqualValues(t, 4096, it.Size)
	assert.Equal(t, "SPDXRef-zlib", it.ExchangeID)
	// Notes and the combined mark stay protected on curated items.
	assert.Equal(t, "reviewed", it.Notes)
	assert.False(t, it.Combined)
}

func TestMergeItemFactsCombinedLatches(t *testing.T) {
	it := InventoryItem{DisplayName: "libfoo 1.0"}

	assert.True(t, MergeItemFacts(&it, ItemFacts{Combined: true}))
	assert.True(t, it.Combined)

	// A later single-license source does not clear the mark.
	assert.False(t, MergeItemFacts(&it, ItemFacts{}))
	assert.True(t, it.Combined)
}

func TestAttachLicensesSkipsCurated(t *testing.T) {
	store := openTestStore(t)
	r := NewReconciler(store)
	tx, err := r.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	c := &SoftwareComponent{Name: "openssl", Version: "3.0.8", Curated: true}
	require.NoError(t, tx.CreateComponent(c))
	l := &License{LicenseID: "GPL-3.0-only"}
	require.NoError(t, tx.CreateLicense(l))

	require.NoError(t, r.AttachLicenses(tx, c, []*License{l}))

	links, err := tx.ComponentLicenses(c.ID)
	require.NoError(t, err)
	require.Empty(t, links)
}

func TestKeyedMutexSerializesSameIdentity(t *testing.T) {
	r := NewReconciler(openTestStore(t))

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	unlock := r.LockComponent("zlib", "1.2.13")
	wg.Add(1)
	go func() {
		defer wg.Done()
		u := r.LockComponent("zlib", "1.2.13")
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		u()
	}()

	// A different identity is not blocked.
	u := r.LockComponent("zlib", "1.2.12")
	u()

	mu.Lock()
	order = append(order, 1)
	mu.Unlock()
	unlock()
	wg.Wait()

	require.Equal(t, []int{1, 2}, order)
}
