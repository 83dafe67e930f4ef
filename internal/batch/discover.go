package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiscoveryError is returned when the image directory cannot be listed.
type DiscoveryError struct {
	Dir string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover images in %s: %v", e.Dir, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Discover lists the regular files directly inside dir whose extension matches
// ext (case-insensitive) and returns their paths sorted lexicographically by
// filename. An empty directory yields an empty slice.
func Discover(dir, ext string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &DiscoveryError{Dir: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &DiscoveryError{Dir: dir, Err: fmt.Errorf("not a directory")}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &DiscoveryError{Dir: dir, Err: err}
	}

	var names []string
	for _, entry := range entries {
		if !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			continue
		}
		if isRegular(dir, entry) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	files := make([]string, 0, len(names))
	for _, name := range names {
		files = append(files, filepath.Join(dir, name))
	}
	return files, nil
}

// isRegular reports whether entry is a regular file, following symlinks.
// Dangling links are skipped.
func isRegular(dir string, entry fs.DirEntry) bool {
	if entry.Type()&fs.ModeSymlink == 0 {
		return entry.Type().IsRegular()
	}
	info, err := os.Stat(filepath.Join(dir, entry.Name()))
	return err == nil && info.Mode().IsRegular()
}
