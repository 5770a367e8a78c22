package pak

import (
	"os"
	"path/filepath"
)

// ignoredBasenames lists file names never packed into an archive built
// from a directory tree: artifacts an OS or editor drops into a folder
// that a user never intended to ship.
var ignoredBasenames = map[string]bool{
	".DS_Store":   true,
	"Thumbs.db":   true,
	"desktop.ini": true,
	".directory":  true,
}

// CollectSources walks root and returns one Source per regular file
// found under it, using slash-separated paths relative to root. It
// skips symlinks (Build copies bytes into the archive and has no way to
// represent a link) and the OS/editor housekeeping files named in
// ignoredBasenames.
func CollectSources(root string) ([]Source, error) {
	var sources []Source
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		if ignoredBasenames[info.Name()] {
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sources = append(sources, Source{Path: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sources, nil
}
