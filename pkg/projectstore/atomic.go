package projectstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const tempSuffix = ".tmp"

// writeFileAtomic writes data to a hidden temp file next to path and renames
// it over path. Readers see either the old file or the new one, never a
// partial write. The temp file is removed on any failure.
func writeFileAtomic(path string, data []byte) (err error) {
	dir, base := filepath.Split(path)
	tempPath := filepath.Join(dir, "."+base+"."+uuid.NewString()+tempSuffix)

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
