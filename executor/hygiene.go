package executor

import (
	"fmt"
	"os"
	"path/filepath"
)

// flattenNestedTestDirs implements spec.md §4.11: the coding agent
// sometimes writes tests under "tests/tests/..." instead of "tests/...".
// This is the only implicit mutation the core performs on agent output —
// every nested tests/tests/ directory found anywhere in root is flattened
// by moving its contents up one level and removing the now-empty nested
// directory. Grounded on the teacher's filesystem tools' directory-walk
// idiom (capabilities/filesystem/search_files.go's filepath.Walk +
// os.Rename shape, there used for search rather than mutation).
func flattenNestedTestDirs(root string) error {
	var nested []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if filepath.Base(path) == "tests" && filepath.Base(filepath.Dir(path)) == "tests" {
			nested = append(nested, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("hygiene: walk failed: %w", err)
	}

	for _, dir := range nested {
		parent := filepath.Dir(dir)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("hygiene: read %s: %w", dir, err)
		}
		for _, e := range entries {
			src := filepath.Join(dir, e.Name())
			dst := filepath.Join(parent, e.Name())
			if err := os.Rename(src, dst); err != nil {
				return fmt.Errorf("hygiene: move %s -> %s: %w", src, dst, err)
			}
		}
		if err := os.Remove(dir); err != nil {
			return fmt.Errorf("hygiene: remove %s: %w", dir, err)
		}
	}
	return nil
}
