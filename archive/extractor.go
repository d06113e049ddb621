// Package archive unpacks downloaded artifacts into a target directory.
// Extraction always runs inside an ephemeral sandbox so that a crafted
// entry path ("zip-slip") or a mid-stream failure never leaves partial
// or misplaced files in the target.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Extractor unpacks ZIP, JAR and TAR+GZIP containers.
type Extractor struct {
	// workDir is where sandboxes are created. Empty means the system
	// temp directory.
	workDir string
}

// NewExtractor creates an Extractor placing sandboxes under workDir.
func NewExtractor(workDir string) *Extractor {
	return &Extractor{workDir: workDir}
}

// Extract unpacks the archive at archivePath into targetDir. The
// archive is first fully extracted into a fresh sandbox; only then are
// its contents moved into targetDir. When the sandbox's top level holds
// exactly one directory and nothing else, that wrapper is removed and
// its children land in targetDir directly. The sandbox is deleted on
// success and failure alike.
func (e *Extractor) Extract(archivePath, targetDir string) error {
	if e.workDir != "" {
		if err := os.MkdirAll(e.workDir, 0o755); err != nil {
			return fmt.Errorf("create work directory: %w", err)
		}
	}
	sandbox, err := os.MkdirTemp(e.workDir, "unpack-*")
	if err != nil {
		return fmt.Errorf("create sandbox: %w", err)
	}
	defer os.RemoveAll(sandbox)

	switch {
	case hasSuffixFold(archivePath, ".zip"), hasSuffixFold(archivePath, ".jar"):
		err = extractZip(archivePath, sandbox)
	case hasSuffixFold(archivePath, ".tar.gz"), hasSuffixFold(archivePath, ".tgz"):
		err = extractTarGz(archivePath, sandbox)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(archivePath))
	}
	if err != nil {
		return err
	}

	return moveContents(sandbox, targetDir)
}

// entryPath resolves an archive entry name under the sandbox and
// verifies the result is still a descendant of it. Absolute entry names
// and any ".." traversal abort the whole extraction.
func entryPath(sandbox, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return "", fmt.Errorf("%w: %s", ErrSecurityViolation, name)
	}
	target := filepath.Clean(filepath.Join(sandbox, filepath.FromSlash(name)))
	root := filepath.Clean(sandbox)
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrSecurityViolation, name)
	}
	return target, nil
}

func extractZip(zipPath, sandbox string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		target, err := entryPath(sandbox, entry.Name)
		if err != nil {
			return err
		}

		info := entry.FileInfo()
		if info.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}
			continue
		}
		// Symlink entries are not materialized: their targets could
		// point outside the sandbox.
		if info.Mode()&os.ModeSymlink != 0 {
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create parent directory: %w", err)
		}
		src, err := entry.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %s: %w", entry.Name, err)
		}
		if err := writeFile(target, src, info.Mode().Perm()); err != nil {
			src.Close()
			return fmt.Errorf("write %s: %w", entry.Name, err)
		}
		src.Close()
	}
	return nil
}

func extractTarGz(tarGzPath, sandbox string) error {
	file, err := os.Open(tarGzPath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		target, err := entryPath(sandbox, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create parent directory: %w", err)
			}
			mode := os.FileMode(header.Mode).Perm()
			if err := writeFile(target, tarReader, mode); err != nil {
				return fmt.Errorf("write %s: %w", header.Name, err)
			}
		default:
			// Symlinks, devices and other special entries are skipped.
		}
	}
	return nil
}

func writeFile(target string, src io.Reader, mode os.FileMode) error {
	if mode == 0 {
		mode = 0o644
	}
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// moveContents moves the sandbox's contents into targetDir, removing a
// single wrapper directory when the archive has one.
func moveContents(sandbox, targetDir string) error {
	entries, err := os.ReadDir(sandbox)
	if err != nil {
		return fmt.Errorf("read sandbox: %w", err)
	}

	source := sandbox
	if len(entries) == 1 && entries[0].IsDir() {
		source = filepath.Join(sandbox, entries[0].Name())
		entries, err = os.ReadDir(source)
		if err != nil {
			return fmt.Errorf("read wrapper directory: %w", err)
		}
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}

	for _, entry := range entries {
		from := filepath.Join(source, entry.Name())
		to := filepath.Join(targetDir, entry.Name())
		if err := moveEntry(from, to); err != nil {
			return fmt.Errorf("move %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// moveEntry renames from to to, falling back to copy-and-delete when
// the rename crosses filesystems.
func moveEntry(from, to string) error {
	if err := os.Rename(from, to); err == nil {
		return nil
	}
	info, err := os.Lstat(from)
	if err != nil {
		return err
	}
	if info.IsDir() {
		if err := copyTree(from, to); err != nil {
			return err
		}
	} else {
		if err := copyFile(from, to, info.Mode().Perm()); err != nil {
			return err
		}
	}
	return os.RemoveAll(from)
}

func copyTree(from, to string) error {
	return filepath.Walk(from, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(to, rel)
		if info.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}
		return copyFile(path, dest, info.Mode().Perm())
	})
}

func copyFile(from, to string, mode os.FileMode) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()
	return writeFile(to, src, mode)
}

func hasSuffixFold(name, suffix string) bool {
	return strings.HasSuffix(strings.ToLower(name), suffix)
}
