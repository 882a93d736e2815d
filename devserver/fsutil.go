package devserver

import (
	"os"
	"path/filepath"
	"strings"
)

// httpOpen opens pathname (a URL path) relative to root, rejecting any
// path that escapes root after cleaning.
func httpOpen(root, pathname string) (*os.File, error) {
	abs := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(pathname, "/")))
	cleanRoot := filepath.Clean(root)
	rootPrefix := strings.TrimSuffix(cleanRoot, string(filepath.Separator)) + string(filepath.Separator)
	if abs != cleanRoot && !strings.HasPrefix(abs, rootPrefix) {
		return nil, os.ErrNotExist
	}
	return os.Open(abs)
}
