// Package atomicfile replaces files without leaving partial writes behind.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

const defaultPerm os.FileMode = 0o644

// WriteFile writes data to a temp file next to path, syncs it and renames it
// over path. Readers see the old content or the new one, never a mix.
//
// A zero perm keeps the mode of an existing file (0644 for a new one), which
// matters for config files other tools own.
func WriteFile(path string, data []byte, perm os.FileMode) (err error) {
	if perm == 0 {
		perm = existingPerm(path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	// Not every filesystem supports chmod.
	_ = tmp.Chmod(perm)

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return replace(tmpPath, path)
}

func existingPerm(path string) os.FileMode {
	if st, err := os.Stat(path); err == nil {
		return st.Mode().Perm()
	}
	return defaultPerm
}

// replace renames src over dst. Windows refuses to rename onto an existing
// file, so the second attempt removes dst first and is not atomic.
func replace(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	_ = os.Remove(dst)
	if err2 := os.Rename(src, dst); err2 != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
