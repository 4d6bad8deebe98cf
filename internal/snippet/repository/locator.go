package repository

import (
	"os"
	"path/filepath"
	"sort"
)

// DirLocator locates definition files on disk using the conventional
// layout: each configured root holds either <scope>.snippets files or a
// <scope>/ directory of *.snippets files. Missing roots are empty
// results, not errors.
type DirLocator struct {
	roots []string
}

// NewDirLocator creates a locator over the given root directories.
func NewDirLocator(roots ...string) *DirLocator {
	return &DirLocator{roots: roots}
}

// FilesForScope returns the definition files for scope across all roots,
// in root order and sorted within a directory for deterministic loads.
func (l *DirLocator) FilesForScope(scope string) ([]string, error) {
	var out []string
	for _, root := range l.roots {
		if _, err := os.Stat(root); err != nil {
			continue
		}

		flat := filepath.Join(root, scope+".snippets")
		if info, err := os.Stat(flat); err == nil && !info.IsDir() {
			out = append(out, flat)
		}

		dir := filepath.Join(root, scope)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		var nested []string
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".snippets" {
				continue
			}
			nested = append(nested, filepath.Join(dir, e.Name()))
		}
		sort.Strings(nested)
		out = append(out, nested...)
	}
	return out, nil
}

var _ Locator = (*DirLocator)(nil)
