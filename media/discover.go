package media

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// SubtitleExtensions are the sidecar extensions recognized next to a media
// file, in lookup order.
var SubtitleExtensions = []string{".srt", ".vtt", ".ass", ".ssa"}

// IsSubtitle reports whether path has a sidecar subtitle extension.
func IsSubtitle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SubtitleExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Discover walks root recursively and returns every regular file that can be
// a media file. Hidden files and subtitle sidecars are left out. An error
// reading root itself is returned; unreadable subdirectories are reported
// through skip and walked past.
func Discover(root string, skip func(path string, err error)) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if skip != nil {
				skip(path, err)
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		if IsSubtitle(path) {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking input directory: %w", err)
	}
	return files, nil
}
