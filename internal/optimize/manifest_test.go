package optimize

import (
	"path/filepath"
	"testing"
)

func TestManifestSaveAndReload(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "manifest.db")
	m, err := OpenManifest(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	entries := map[string]Entry{
		"react": {Specifier: "react", File: "react-abc123.js", FileHash: "abc123"},
	}
	if err := m.Save("browserhash1", entries); err != nil {
		t.Fatal(err)
	}
	m.Close()

	reopened, err := OpenManifest(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	hash, err := reopened.BrowserHash()
	if err != nil || hash != "browserhash1" {
		t.Fatalf("got hash=%q err=%v", hash, err)
	}
	loaded, err := reopened.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if loaded["react"].File != "react-abc123.js" {
		t.Fatalf("got %+v", loaded)
	}
}

func TestManifestSaveDropsStaleEntries(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "manifest.db")
	m, err := OpenManifest(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if err := m.Save("h1", map[string]Entry{"a": {Specifier: "a"}, "b": {Specifier: "b"}}); err != nil {
		t.Fatal(err)
	}
	if err := m.Save("h2", map[string]Entry{"b": {Specifier: "b"}}); err != nil {
		t.Fatal(err)
	}
	entries, err := m.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := entries["a"]; ok {
		t.Fatal("expected stale entry 'a' to be dropped")
	}
	if _, ok := entries["b"]; !ok {
		t.Fatal("expected entry 'b' to survive")
	}
}
