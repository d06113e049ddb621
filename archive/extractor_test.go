package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, dir string, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, "artifact.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func writeTarGz(t *testing.T, dir string, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, "artifact.tar.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for name, content := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}))
		_, err = tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractZipFlattensSingleWrapper(t *testing.T) {
	tmp := t.TempDir()
	zipPath := writeZip(t, tmp, map[string]string{
		"lib-1.2.3/LICENSE":   "MIT",
		"lib-1.2.3/src/a.c":   "int main() {}",
		"lib-1.2.3/src/sub/b": "b",
	})

	target := filepath.Join(tmp, "out")
	err := NewExtractor(tmp).Extract(zipPath, target)
	require.NoError(t, err)

	// Wrapper directory removed, children land directly in the target.
	data, err := os.ReadFile(filepath.Join(target, "LICENSE"))
	require.NoError(t, err)
	require.Equal(t, "MIT", string(data))
	_, err = os.Stat(filepath.Join(target, "src", "sub", "b"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(target, "lib-1.2.3"))
	require.True(t, os.IsNotExist(err))
}

func TestExtractZipMultipleTopLevelEntries(t *testing.T) {
	tmp := t.TempDir()
	zipPath := writeZip(t, tmp, map[string]string{
		"README":  "hello",
		"src/a.c": "a",
	})

	target := filepath.Join(tmp, "out")
	require.NoError(t, NewExtractor(tmp).Extract(zipPath, target))

	_, err := os.Stat(filepath.Join(target, "README"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(target, "src", "a.c"))
	require.NoError(t, err)
}

func TestExtractRejectsTraversalEntry(t *testing.T) {
	tmp := t.TempDir()
	zipPath := writeZip(t, tmp, map[string]string{
		"ok.txt":     "fine",
		"../../evil": "nope",
	})

	target := filepath.Join(tmp, "out")
	err := NewExtractor(tmp).Extract(zipPath, target)
	require.ErrorIs(t, err, ErrSecurityViolation)

	// Target must be untouched: nothing from the archive is visible.
	_, err = os.Stat(target)
	require.True(t, os.IsNotExist(err))
}

func TestExtractRejectsAbsoluteEntry(t *testing.T) {
	tmp := t.TempDir()
	tarPath := writeTarGz(t, tmp, map[string]string{
		"/etc/evil": "nope",
	})

	err := NewExtractor(tmp).Extract(tarPath, filepath.Join(tmp, "out"))
	require.ErrorIs(t, err, ErrSecurityViolation)
}

func TestExtractTarGz(t *testing.T) {
	tmp := t.TempDir()
	tarPath := writeTarGz(t, tmp, map[string]string{
		"pkg/main.go":  "package main",
		"pkg/go.sum":   "",
		"pkg/doc/d.md": "# doc",
	})

	target := filepath.Join(tmp, "out")
	require.NoError(t, NewExtractor(tmp).Extract(tarPath, target))

	data, err := os.ReadFile(filepath.Join(target, "main.go"))
	require.NoError(t, err)
	require.Equal(t, "package main", string(data))
}

func TestExtractUnsupportedExtension(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "artifact.rar")
	require.NoError(t, os.WriteFile(path, []byte("not really"), 0o644))

	err := NewExtractor(tmp).Extract(path, filepath.Join(tmp, "out"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractRemovesSandbox(t *testing.T) {
	work := t.TempDir()
	payload := t.TempDir()
	zipPath := writeZip(t, payload, map[string]string{"a": "a"})

	require.NoError(t, NewExtractor(work).Extract(zipPath, filepath.Join(payload, "out")))

	entries, err := os.ReadDir(work)
	require.NoError(t, err)
	require.Empty(t, entries, "sandbox should be deleted after extraction")
}

func TestExtractJarUsesZipReader(t *testing.T) {
	tmp := t.TempDir()
	zipPath := writeZip(t, tmp, map[string]string{"META-INF/MANIFEST.MF": "Manifest-Version: 1.0"})
	jarPath := filepath.Join(tmp, "artifact.jar")
	require.NoError(t, os.Rename(zipPath, jarPath))

	target := filepath.Join(tmp, "out")
	require.NoError(t, NewExtractor(tmp).Extract(jarPath, target))
	_, err := os.Stat(filepath.Join(target, "META-INF", "MANIFEST.MF"))
	require.NoError(t, err)
}
