// Package depcache is the content-addressed on-disk store the
// dependency optimizer persists its pre-bundled chunks and manifest to,
// so a warm server restart can skip re-bundling untouched dependencies.
//
// It follows a root-rooted, Exists/ReadFile/WriteFile local-disk shape
// with only a local driver: a dev server's optimizer cache is
// machine-local by nature, so no S3/postgres-backed driver is carried
// here (see DESIGN.md).
package depcache

import (
	"io"
	"os"
	"path"
	"time"

	"github.com/ije/gox/utils"
)

// Store is a directory rooted content-addressed cache: entries are
// addressed by an arbitrary relative name (the optimizer uses the
// sanitized specifier + content hash of the bundle).
type Store struct {
	root string
}

// Open ensures root exists and returns a Store rooted there.
func Open(root string) (*Store, error) {
	root = utils.CleanPath(root)
	if err := ensureDir(root); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

// Exists reports whether name is present and its modification time.
func (s *Store) Exists(name string) (found bool, modtime time.Time, err error) {
	fi, err := os.Stat(path.Join(s.root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, time.Time{}, nil
		}
		return false, time.Time{}, err
	}
	return true, fi.ModTime(), nil
}

// ReadFile opens name for reading.
func (s *Store) ReadFile(name string) (io.ReadCloser, error) {
	return os.Open(path.Join(s.root, name))
}

// WriteFile writes r to name, creating parent directories as needed and
// replacing any existing content atomically (write-to-temp then rename,
// so a concurrent reader never observes a partially-written chunk).
func (s *Store) WriteFile(name string, r io.Reader) (written int64, err error) {
	fullPath := path.Join(s.root, name)
	if err = ensureDir(path.Dir(fullPath)); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(path.Dir(fullPath), ".tmp-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())
	written, err = io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return written, err
	}
	return written, os.Rename(tmp.Name(), fullPath)
}

// WriteData is a convenience wrapper for in-memory byte slices.
func (s *Store) WriteData(name string, data []byte) error {
	fullPath := path.Join(s.root, name)
	if err := ensureDir(path.Dir(fullPath)); err != nil {
		return err
	}
	return os.WriteFile(fullPath, data, 0644)
}

// Remove deletes name, ignoring a not-exist error.
func (s *Store) Remove(name string) error {
	err := os.Remove(path.Join(s.root, name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Root returns the absolute directory the store is rooted at.
func (s *Store) Root() string {
	return s.root
}

func ensureDir(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0755)
		}
		return err
	}
	return nil
}
