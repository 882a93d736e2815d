package devserver

import "testing"

func TestIsTransformable(t *testing.T) {
	cases := map[string]bool{
		"/src/main.ts":     true,
		"/src/App.tsx":     true,
		"/src/styles.css":  true,
		"/logo.png":        false,
		"/data.json":       false,
		"/main.js?t=12345": true,
	}
	for path, want := range cases {
		if got := isTransformable(path); got != want {
			t.Errorf("isTransformable(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	if ct := contentTypeFor("/a.css"); ct != "text/css; charset=utf-8" {
		t.Fatalf("got %q", ct)
	}
	if ct := contentTypeFor("/a.ts"); ct != "application/javascript; charset=utf-8" {
		t.Fatalf("got %q", ct)
	}
}
