// Package fileutil provides scoped file output: data reaches its final path
// whole or not at all.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// Hooks for injecting failures in tests.
var (
	osRename      = os.Rename
	tempFileWrite = func(f *os.File, data []byte) (int, error) { return f.Write(data) }
	tempFileSync  = func(f *os.File) error { return f.Sync() }
)

// WriteFileAtomic writes data to path by way of a temporary file in the same
// directory. On any failure the temporary file is removed and an existing
// file at path is left untouched.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	closed := false
	defer func() {
		if err != nil {
			if !closed {
				tempFile.Close()
			}
			os.Remove(tempPath)
		}
	}()

	if _, err = tempFileWrite(tempFile, data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tempFileSync(tempFile); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tempFile.Chmod(perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	closed = true
	if err = tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// atomic on POSIX
	if err = osRename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
