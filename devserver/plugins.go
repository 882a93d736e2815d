package devserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"

	"vite.dev/core/internal/plugin"
)

// fsPlugin resolves relative/absolute module ids against the workspace
// root, reads their source off disk, and strips TypeScript/JSX syntax
// via esbuild.Transform directly rather than shelling out to tsc.
func fsPlugin(root string) *plugin.Plugin {
	return &plugin.Plugin{
		Name: "vite:fs",
		ResolveId: func(_ context.Context, id, importer string) (*plugin.ResolveResult, error) {
			if strings.HasPrefix(id, "\x00") {
				return nil, nil
			}
			abs := filepath.Join(root, filepath.FromSlash(id))
			if importer != "" && !strings.HasPrefix(id, "/") {
				abs = filepath.Join(filepath.Dir(filepath.Join(root, importer)), id)
			}
			if _, err := os.Stat(abs); err != nil {
				return nil, nil
			}
			rel, err := filepath.Rel(root, abs)
			if err != nil {
				return nil, nil
			}
			return &plugin.ResolveResult{Id: "/" + filepath.ToSlash(rel)}, nil
		},
		Load: func(_ context.Context, id string) (*plugin.LoadResult, error) {
			if strings.HasPrefix(id, "\x00") {
				return nil, nil
			}
			abs := filepath.Join(root, strings.TrimPrefix(id, "/"))
			data, err := os.ReadFile(abs)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", abs, err)
			}
			return &plugin.LoadResult{Code: string(data)}, nil
		},
		Transform: func(_ context.Context, code, id string) (*plugin.TransformResult, error) {
			loader, ok := loaderForExt(filepath.Ext(id))
			if !ok {
				return &plugin.TransformResult{Code: code, Handled: true}, nil
			}
			result := esbuild.Transform(code, esbuild.TransformOptions{
				Loader:      loader,
				Target:      esbuild.ES2020,
				Format:      esbuild.FormatESModule,
				Sourcemap:   esbuild.SourceMapInline,
				JSXFactory:  "React.createElement",
				JSXFragment: "React.Fragment",
			})
			if len(result.Errors) > 0 {
				return nil, fmt.Errorf("%s: %s", id, result.Errors[0].Text)
			}
			return &plugin.TransformResult{Code: string(result.Code), Handled: true, HiresMap: true}, nil
		},
	}
}

func loaderForExt(ext string) (esbuild.Loader, bool) {
	switch ext {
	case ".ts":
		return esbuild.LoaderTS, true
	case ".tsx":
		return esbuild.LoaderTSX, true
	case ".jsx":
		return esbuild.LoaderJSX, true
	default:
		return esbuild.LoaderJS, false
	}
}
