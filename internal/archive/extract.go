// Package archive unpacks ZIP archives into a working directory.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"fec-lake/internal/domain"
)

// Extract unpacks archivePath into destDir. Every entry is validated before
// anything is written: an absolute entry path or one with a ".." segment
// fails the whole extraction with *domain.UnsafePathError. When destDir then
// holds a single directory, that wrapper is flattened into destDir.
//
// Write failures after validation may leave destDir partially populated.
func Extract(archivePath, destDir string) error {
	// The reader may return a usable archive alongside an insecure-path
	// error; entry names are checked below either way.
	r, err := zip.OpenReader(archivePath)
	if r == nil {
		return &domain.CorruptArchiveError{Path: archivePath, Err: err}
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if !SafeEntryPath(f.Name) {
			return &domain.UnsafePathError{Archive: archivePath, Entry: f.Name}
		}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", destDir, err)
	}
	for _, f := range r.File {
		if err := extractEntry(f, destDir); err != nil {
			return fmt.Errorf("extract %s from %s: %w", f.Name, archivePath, err)
		}
	}

	return flattenSingleRoot(destDir)
}

// SafeEntryPath reports whether a stored entry name stays inside the
// extraction root. Both '/' and '\' count as separators.
func SafeEntryPath(name string) bool {
	if name == "" {
		return false
	}
	normalized := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(normalized, "/") || filepath.IsAbs(name) || hasVolumeName(normalized) {
		return false
	}
	for _, seg := range strings.Split(normalized, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}

// hasVolumeName catches Windows drive prefixes such as "C:" regardless of host OS.
func hasVolumeName(p string) bool {
	return len(p) >= 2 && p[1] == ':' &&
		((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}

func extractEntry(f *zip.File, destDir string) error {
	rel := filepath.FromSlash(strings.ReplaceAll(f.Name, `\`, "/"))
	target := filepath.Join(destDir, rel)

	// The joined path must still be below destDir.
	if r, err := filepath.Rel(destDir, target); err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return fmt.Errorf("entry resolves outside destination")
	}

	if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close() //nolint:errcheck

	mode := os.FileMode(0o644)
	if f.Mode()&0o111 != 0 {
		mode = 0o755
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode) //nolint:gosec // validated above
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil { //nolint:gosec // bulk archives are trusted in size
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

// flattenSingleRoot moves the children of a lone top-level directory up into
// root and removes the wrapper. Only one level is flattened.
func flattenSingleRoot(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("list %s: %w", root, err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}

	// Rename the wrapper first so a child sharing its name can move into place.
	wrapper, err := os.MkdirTemp(root, ".flatten-")
	if err != nil {
		return fmt.Errorf("flatten %s: %w", root, err)
	}
	if err := os.Remove(wrapper); err != nil {
		return fmt.Errorf("flatten %s: %w", root, err)
	}
	if err := os.Rename(filepath.Join(root, entries[0].Name()), wrapper); err != nil {
		return fmt.Errorf("flatten %s: %w", root, err)
	}

	children, err := os.ReadDir(wrapper)
	if err != nil {
		return fmt.Errorf("flatten %s: %w", root, err)
	}
	for _, c := range children {
		if err := os.Rename(filepath.Join(wrapper, c.Name()), filepath.Join(root, c.Name())); err != nil {
			return fmt.Errorf("flatten %s: move %s: %w", root, c.Name(), err)
		}
	}
	return os.Remove(wrapper)
}
