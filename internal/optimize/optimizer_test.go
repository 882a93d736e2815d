package optimize

import (
	"testing"

	"vite.dev/core/internal/depcache"
)

func TestSplitSpecifier(t *testing.T) {
	cases := []struct {
		in      string
		pkg     string
		subpath string
	}{
		{"react", "react", ""},
		{"react/jsx-runtime", "react", "jsx-runtime"},
		{"@babel/core", "@babel/core", ""},
		{"@babel/core/lib/index", "@babel/core", "lib/index"},
	}
	for _, c := range cases {
		pkg, sub := splitSpecifier(c.in)
		if pkg != c.pkg || sub != c.subpath {
			t.Errorf("splitSpecifier(%q) = (%q, %q), want (%q, %q)", c.in, pkg, sub, c.pkg, c.subpath)
		}
	}
}

func TestSanitizeSpecifier(t *testing.T) {
	if got := sanitizeSpecifier("@babel/core"); got != "babel_core" {
		t.Fatalf("got %q", got)
	}
	if got := sanitizeSpecifier("lodash.debounce"); got != "lodash-debounce" {
		t.Fatalf("got %q", got)
	}
}

func TestNeedsReoptimizeTrueForUnseenSpecifier(t *testing.T) {
	store, err := depcache.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	m, err := OpenManifest(store.Root() + "/manifest.db")
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	o := New(t.TempDir(), store, m, Config{Exclude: []string{"excluded-pkg"}})

	if !o.NeedsReoptimize("react") {
		t.Fatal("expected unseen specifier to need reoptimization")
	}
	if o.NeedsReoptimize("excluded-pkg") {
		t.Fatal("expected excluded specifier to never need reoptimization")
	}
}

func TestIsExcludedMatchesGlobPattern(t *testing.T) {
	o := New(t.TempDir(), nil, nil, Config{Exclude: []string{"@internal/**"}})
	if !o.isExcluded("@internal/testing-utils") {
		t.Fatal("expected scoped package under @internal/ to be excluded")
	}
	if o.isExcluded("react") {
		t.Fatal("expected unrelated specifier to not be excluded")
	}
}
