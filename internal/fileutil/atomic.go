// Package fileutil writes files that are never observed half written.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrEmptyPath indicates an empty file path was provided.
var ErrEmptyPath = errors.New("path is empty")

// WriteFile replaces path with data. Missing parent directories are created
// with dirPerm. The data is synced to a temporary sibling first and renamed
// over path, so readers see either the old or the new content.
func WriteFile(path string, data []byte, perm, dirPerm os.FileMode) error {
	tmpPath, err := writeTemp(path, data, perm, dirPerm)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmpPath) }()

	if err := os.Rename(tmpPath, path); err != nil { //nolint:gosec // G703: path comes from configuration
		return fmt.Errorf("renaming temp file: %w", err)
	}
	syncDir(filepath.Dir(path))
	return nil
}

// CreateFile is WriteFile for a file that must not exist yet. It fails with an
// error matching fs.ErrExist when path is already present, even if another
// process creates it concurrently.
func CreateFile(path string, data []byte, perm, dirPerm os.FileMode) error {
	tmpPath, err := writeTemp(path, data, perm, dirPerm)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmpPath) }()

	// Link never replaces an existing file.
	if err := os.Link(tmpPath, path); err != nil {
		return err
	}
	syncDir(filepath.Dir(path))
	return nil
}

func writeTemp(path string, data []byte, perm, dirPerm os.FileMode) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := f.Name()

	err = fill(f, data, perm)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	return tmpPath, nil
}

func fill(f *os.File, data []byte, perm os.FileMode) error {
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Chmod(perm); err != nil {
		return fmt.Errorf("setting temp file permissions: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	return nil
}

// syncDir makes a rename durable where the platform allows it.
func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil { //nolint:gosec // G304: dir is derived from the target path
		_ = d.Sync()
		_ = d.Close()
	}
}
