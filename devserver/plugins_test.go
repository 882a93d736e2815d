package devserver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

func TestLoaderForExt(t *testing.T) {
	cases := []struct {
		ext    string
		loader esbuild.Loader
		ok     bool
	}{
		{".ts", esbuild.LoaderTS, true},
		{".tsx", esbuild.LoaderTSX, true},
		{".jsx", esbuild.LoaderJSX, true},
		{".js", esbuild.LoaderJS, false},
		{".css", esbuild.LoaderJS, false},
	}
	for _, c := range cases {
		loader, ok := loaderForExt(c.ext)
		if loader != c.loader || ok != c.ok {
			t.Errorf("loaderForExt(%q) = (%v, %v), want (%v, %v)", c.ext, loader, ok, c.loader, c.ok)
		}
	}
}

func TestFsPluginResolveIdAndLoad(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "app.ts"), []byte("const x: number = 1;"), 0644); err != nil {
		t.Fatal(err)
	}
	p := fsPlugin(root)

	res, err := p.ResolveId(context.Background(), "./app.ts", "")
	if err != nil {
		t.Fatalf("ResolveId: %v", err)
	}
	if res == nil || res.Id != "/app.ts" {
		t.Fatalf("ResolveId = %v, want /app.ts", res)
	}

	loaded, err := p.Load(context.Background(), res.Id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Code != "const x: number = 1;" {
		t.Errorf("Load code = %q", loaded.Code)
	}
}

func TestFsPluginResolveIdMissingFile(t *testing.T) {
	root := t.TempDir()
	p := fsPlugin(root)
	res, err := p.ResolveId(context.Background(), "./missing.ts", "")
	if err != nil {
		t.Fatalf("ResolveId: %v", err)
	}
	if res != nil {
		t.Errorf("expected nil result for missing file, got %v", res)
	}
}

func TestFsPluginTransformStripsTypeScriptTypes(t *testing.T) {
	root := t.TempDir()
	p := fsPlugin(root)
	result, err := p.Transform(context.Background(), "const x: number = 1;", "/app.ts")
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if !result.Handled || !result.HiresMap {
		t.Errorf("expected Handled and HiresMap set, got %+v", result)
	}
	if result.Code == "const x: number = 1;" {
		t.Errorf("expected type annotation stripped, got unchanged code")
	}
}

func TestFsPluginTransformPassesThroughPlainJS(t *testing.T) {
	root := t.TempDir()
	p := fsPlugin(root)
	result, err := p.Transform(context.Background(), "const x = 1;", "/app.js")
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if result.Code != "const x = 1;" {
		t.Errorf("expected plain JS passed through unchanged, got %q", result.Code)
	}
}
