package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigFillsZeroValues(t *testing.T) {
	c := DefaultConfig()
	if c.Port != 5173 {
		t.Fatalf("got port %d", c.Port)
	}
	if c.Host != "localhost" {
		t.Fatalf("got host %q", c.Host)
	}
	if c.Base != "/" {
		t.Fatalf("got base %q", c.Base)
	}
	if len(c.CorsAllowOrigins) == 0 {
		t.Fatal("expected default CORS origins")
	}
	if c.CacheDir == "" {
		t.Fatal("expected a default cache dir")
	}
}

func TestLoadConfigStripsCommentsAndFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devserver.jsonc")
	src := []byte(`{
		// dev server port
		"port": 3000,
		"base": "app",
		"optimize": { "exclude": ["lodash"] }
	}`)
	if err := os.WriteFile(path, src, 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Port != 3000 {
		t.Fatalf("got port %d", c.Port)
	}
	if c.Base != "/app" {
		t.Fatalf("expected base to be normalized with leading slash, got %q", c.Base)
	}
	if len(c.Optimize.Exclude) != 1 || c.Optimize.Exclude[0] != "lodash" {
		t.Fatalf("got optimize.exclude %+v", c.Optimize.Exclude)
	}
	if c.Host != "localhost" {
		t.Fatalf("expected default host to still be applied, got %q", c.Host)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.jsonc")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
