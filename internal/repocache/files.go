package repocache

import (
	"fmt"
	"io/fs"
	"path/filepath"
)

// SkipDirs are directory names never descended into during source discovery.
// These hold build outputs, vendored dependencies, and git metadata.
var SkipDirs = map[string]bool{
	"target":       true,
	"node_modules": true,
	".git":         true,
	".github":      true,
	"vendor":       true,
	"third_party":  true,
	"deps":         true,
	"build":        true,
}

// SourceExtension is the file extension of interest.
const SourceExtension = ".rs"

// FindSourceFiles walks the clone at root and returns every source file path,
// pruning skipped directories at any depth. Paths are absolute. Unreadable
// entries below the root are skipped rather than failing the walk.
func FindSourceFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}

		if d.IsDir() {
			if path != root && SkipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		if filepath.Ext(d.Name()) == SourceExtension {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return files, nil
}
