package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStrategy struct {
	name    string
	handles bool
	path    string
	err     error
	calls   int
}

func (s *stubStrategy) Name() string             { return s.name }
func (s *stubStrategy) CanHandle(_ Request) bool { return s.handles }
func (s *stubStrategy) Download(_ context.Context, _ Request) (string, error) {
	s.calls++
	return s.path, s.err
}

func TestResolveFirstSuccessWins(t *testing.T) {
	first := &stubStrategy{name: "first", handles: true, path: "/tmp/a.tar.gz"}
	second := &stubStrategy{name: "second", handles: true, path: "/tmp/b.tar.gz"}

	r := NewResolverWithStrategies(nil, first, second)
	got, err := r.Resolve(context.Background(), Request{Name: "libfoo", Version: "1.0"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/a.tar.gz", got)
	assert.Equal(t, 0, second.calls)
}

func TestResolveFallsBackOnFailure(t *testing.T) {
	first := &stubStrategy{name: "first", handles: true, err: errors.New("404")}
	second := &stubStrategy{name: "second", handles: true, path: "/tmp/b.tgz"}

	r := NewResolverWithStrategies(nil, first, second)
	got, err := r.Resolve(context.Background(), Request{Name: "libfoo", Version: "1.0"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/b.tgz", got)
	assert.Equal(t, 1, first.calls)
}

func TestResolveSkipsInapplicableStrategies(t *testing.T) {
	skipped := &stubStrategy{name: "skipped", handles: false}
	used := &stubStrategy{name: "used", handles: true, path: "/tmp/c.jar"}

	r := NewResolverWithStrategies(nil, skipped, used)
	got, err := r.Resolve(context.Background(), Request{Name: "libfoo", Version: "1.0"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/c.jar", got)
	assert.Equal(t, 0, skipped.calls)
}

func TestResolveAllStrategiesFail(t *testing.T) {
	first := &stubStrategy{name: "first", handles: true, err: errors.New("boom")}
	second := &stubStrategy{name: "second", handles: true, err: errors.New("boom")}

	r := NewResolverWithStrategies(nil, first, second)
	_, err := r.Resolve(context.Background(), Request{Name: "libfoo", Version: "1.0"})
	require.ErrorIs(t, err, ErrResolutionFailed)
}

func TestResolveNoApplicableStrategy(t *testing.T) {
	r := NewResolverWithStrategies(nil, &stubStrategy{name: "none", handles: false})
	_, err := r.Resolve(context.Background(), Request{Name: "libfoo", Version: "1.0"})
	require.ErrorIs(t, err, ErrResolutionFailed)
}

func TestResolveRejectsLegacySchemes(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"cvs", "cvs://cvs.example.com/repo/libfoo"},
		{"svn", "svn://svn.example.com/libfoo/tags/1.0"},
		{"svn+ssh", "svn+ssh://svn.example.com/libfoo"},
	}

	r := NewResolverWithStrategies(nil, &stubStrategy{name: "any", handles: true, path: "/tmp/x"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), Request{DetailsURL: tt.url})
			require.ErrorIs(t, err, ErrLegacyScheme)
		})
	}
}

// A failing details URL must not sink the resolution when the request
// also carries a package-URL.
func TestResolveBrokenDetailsURLFallsBackToPurl(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer broken.Close()

	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/leftpad/-/leftpad-1.3.0.tgz", r.URL.Path)
		_, _ = w.Write([]byte("tgz-bytes"))
	}))
	defer registry.Close()

	client := NewClient(time.Second, time.Second)
	purl := NewPurlStrategy(client)
	purl.NpmBase = registry.URL

	r := NewResolverWithStrategies(nil, NewURLStrategy(client), purl)
	got, err := r.Resolve(context.Background(), Request{
		DetailsURL: broken.URL + "/dist/leftpad-1.3.0.tgz",
		Purl:       "pkg:npm/leftpad@1.3.0",
		Name:       "leftpad",
		Version:    "1.3.0",
		TargetDir:  t.TempDir(),
	})
	require.NoError(t, err)
	assert.Contains(t, got, "leftpad-1.3.0.tgz")
}
