package optimize

import (
	"encoding/json"

	bolt "go.etcd.io/bbolt"
)

const entriesBucket = "entries"
const metaBucket = "meta"
const browserHashKey = "browserHash"

// Entry is one pre-bundled dependency, as persisted in the manifest.
type Entry struct {
	Specifier    string `json:"specifier"`
	Src          string `json:"src"`
	File         string `json:"file"`
	FileHash     string `json:"fileHash"`
	NeedsInterop bool   `json:"needsInterop"`
}

// Manifest persists the optimizer's last-known-good generation to a
// bbolt database so a warm restart does not have to re-bundle every
// dependency: a single-file, bucket-per-concern embedded store with two
// buckets (entries + a small meta bucket for the shared browserHash).
type Manifest struct {
	db *bolt.DB
}

// OpenManifest opens (creating if absent) the bbolt file at path and
// ensures both buckets exist.
func OpenManifest(path string) (*Manifest, error) {
	db, err := bolt.Open(path, 0644, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(entriesBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Manifest{db: db}, nil
}

// Close releases the underlying bbolt file handle.
func (m *Manifest) Close() error {
	return m.db.Close()
}

// BrowserHash returns the last-persisted browserHash, or "" if none.
func (m *Manifest) BrowserHash() (hash string, err error) {
	err = m.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(metaBucket)).Get([]byte(browserHashKey))
		hash = string(v)
		return nil
	})
	return
}

// Entries returns every persisted entry, keyed by specifier.
func (m *Manifest) Entries() (entries map[string]Entry, err error) {
	entries = make(map[string]Entry)
	err = m.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(entriesBucket)).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries[string(k)] = e
			return nil
		})
	})
	return
}

// Save atomically replaces the manifest's entries and browserHash with a
// new optimization generation.
func (m *Manifest) Save(browserHash string, entries map[string]Entry) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		entriesB := tx.Bucket([]byte(entriesBucket))
		if err := entriesB.ForEach(func(k, _ []byte) error {
			return nil
		}); err != nil {
			return err
		}
		// drop stale keys from a previous generation that no longer
		// appear in the new entry set, then write the new generation.
		var stale [][]byte
		err := entriesB.ForEach(func(k, _ []byte) error {
			if _, ok := entries[string(k)]; !ok {
				stale = append(stale, append([]byte{}, k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := entriesB.Delete(k); err != nil {
				return err
			}
		}
		for specifier, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err := entriesB.Put([]byte(specifier), data); err != nil {
				return err
			}
		}
		return tx.Bucket([]byte(metaBucket)).Put([]byte(browserHashKey), []byte(browserHash))
	})
}
