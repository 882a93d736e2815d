package depcache

import (
	"io"
	"strings"
	"testing"
)

func TestWriteFileThenReadFile(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteFile("react@18.2.0.js", strings.NewReader("export default {}")); err != nil {
		t.Fatal(err)
	}
	found, _, err := s.Exists("react@18.2.0.js")
	if err != nil || !found {
		t.Fatalf("expected entry to exist, found=%v err=%v", found, err)
	}
	rc, err := s.ReadFile("react@18.2.0.js")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "export default {}" {
		t.Fatalf("got %q", data)
	}
}

func TestExistsFalseForMissing(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	found, _, err := s.Exists("missing.js")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected missing entry to report not found")
	}
}

func TestWriteDataNestedPath(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.WriteData("nested/dir/chunk-abc123.js", []byte("x")); err != nil {
		t.Fatal(err)
	}
	found, _, err := s.Exists("nested/dir/chunk-abc123.js")
	if err != nil || !found {
		t.Fatalf("expected nested entry to exist, found=%v err=%v", found, err)
	}
}

func TestRemoveIgnoresMissing(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Remove("never-existed.js"); err != nil {
		t.Fatalf("expected no error removing missing entry, got %v", err)
	}
}
