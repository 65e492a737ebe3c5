package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// RenameFile renames the stale file dataset in dir, if any, to newName. It
// reports the old name when a rename took place.
func RenameFile(dir, ext, newName, oldSuffix string) (string, error) {
	if oldSuffix == "" {
		return "", nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("list datasets in %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ext))
	}
	stale, ok := Stale(names, newName, oldSuffix)
	if !ok {
		return "", nil
	}
	if err := os.Rename(filepath.Join(dir, stale+ext), filepath.Join(dir, newName+ext)); err != nil {
		return "", fmt.Errorf("rename dataset %s: %w", stale, err)
	}
	return stale, nil
}
