package client

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// ScanDir lists the regular files directly inside folder, sorted by name.
// Each remote path is the folder as given followed by the file name, so
// "upload" yields "upload/<name>".
func ScanDir(folder string) ([]Item, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", folder, err)
	}

	prefix := strings.Trim(filepath.ToSlash(folder), "/")
	var items []Item
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		items = append(items, Item{
			Local:  filepath.Join(folder, e.Name()),
			Remote: path.Join(prefix, e.Name()),
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Remote < items[j].Remote })
	return items, nil
}
