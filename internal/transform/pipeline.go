// Package transform implements the dev server's single per-URL entry
// point: transformRequest(url) -> {code, map, deps, etag}. It memoizes
// on the module graph, de-duplicates concurrent callers for the same
// URL, drives the plugin container, and runs the import-analysis
// sub-transform that rewrites bare/relative specifiers and records HMR
// accept/acceptExports registrations back onto the graph node.
//
// The de-duplication map is keyed by the URL being produced, fanning out
// to any number of waiters via buffered channels, with a single
// goroutine doing the actual plugin-container round trip.
package transform

import (
	"context"
	"fmt"
	"sync"

	"github.com/ije/esbuild-internal/xxhash"

	"vite.dev/core/internal/graph"
	"vite.dev/core/internal/plugin"
	"vite.dev/core/internal/urlpath"
)

// Result is what transformRequest returns to the HTTP layer.
type Result struct {
	Code string
	Map  string
	Deps []string
	ETag string
}

type pendingEntry struct {
	waitChans []chan *outcome
}

type outcome struct {
	result *Result
	err    error
}

// Pipeline is the per-server transform engine. One Pipeline is created
// per running dev server; it is not a process-wide singleton.
type Pipeline struct {
	graph     *graph.Graph
	container *plugin.Container
	errors    *plugin.ErrorTracker
	analyzer  *ImportAnalyzer

	mu      sync.Mutex
	pending map[string]*pendingEntry
}

// New builds a transform pipeline bound to g and c. analyzer rewrites
// bare imports to optimized URLs; it is supplied by the caller (the
// devserver package) because it in turn depends on the dependency
// optimizer's current browserHash.
func New(g *graph.Graph, c *plugin.Container, analyzer *ImportAnalyzer) *Pipeline {
	return &Pipeline{
		graph:     g,
		container: c,
		errors:    plugin.NewErrorTracker(),
		analyzer:  analyzer,
		pending:   make(map[string]*pendingEntry),
	}
}

// TransformRequest is the pipeline's single entry point.
func (p *Pipeline) TransformRequest(ctx context.Context, rawURL string) (*Result, error) {
	pathname, query := urlpath.CleanURL(rawURL)
	key := pathname
	if query != "" {
		key = pathname + "?" + query
	}

	if n := p.graph.GetModuleByUrl(key); n != nil {
		if !p.graph.IsStale(n) {
			tr := n.TransformResult
			return &Result{Code: tr.Code, Map: tr.Map, Deps: tr.Deps, ETag: tr.ETag}, nil
		}
		if err, ok := p.errors.Get(n.Id); ok {
			// Re-throw the cached error without re-running the
			// pipeline during this invalidation generation, to
			// prevent thrash.
			return nil, err
		}
	}

	ch := make(chan *outcome, 1)
	p.mu.Lock()
	if entry, inflight := p.pending[key]; inflight {
		entry.waitChans = append(entry.waitChans, ch)
		p.mu.Unlock()
		select {
		case o := <-ch:
			return o.result, o.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	entry := &pendingEntry{waitChans: []chan *outcome{ch}}
	p.pending[key] = entry
	p.mu.Unlock()

	result, err := p.run(ctx, pathname, query)

	p.mu.Lock()
	delete(p.pending, key)
	p.mu.Unlock()

	o := &outcome{result: result, err: err}
	for _, c := range entry.waitChans {
		c <- o
	}
	return o.result, o.err
}

func (p *Pipeline) run(ctx context.Context, pathname, query string) (*Result, error) {
	resolved, err := p.container.ResolveId(ctx, pathname, "")
	if err != nil {
		return nil, fmt.Errorf("resolve failure: %w", err)
	}
	id := pathname
	if resolved != nil {
		id = resolved.Id
	}

	loaded, err := p.container.Load(ctx, id)
	if err != nil {
		p.errors.Mark(id, err)
		return nil, fmt.Errorf("load failure: %w", err)
	}
	if loaded == nil {
		return nil, fmt.Errorf("load failure: no plugin resolved %q", id)
	}

	code, srcMap, err := p.container.Transform(ctx, loaded.Code, id)
	if err != nil {
		p.errors.Mark(id, err)
		return nil, fmt.Errorf("transform failure: %w", err)
	}

	file := graph.FileOf(id)
	typ := graph.TypeOfPath(pathname)
	n := p.graph.EnsureEntryFromUrl(urlKeyOf(pathname, query), id, file, typ, false)

	analysis, rewritten, err := p.analyzer.Analyze(code, pathname, n.LastHMRTimestamp)
	if err != nil {
		p.errors.Mark(id, err)
		return nil, fmt.Errorf("transform failure: import analysis: %w", err)
	}

	p.graph.UpdateModuleInfo(n, analysis.ImportedUrls, analysis.AcceptedDeps, analysis.AcceptedExports, analysis.IsSelfAccepting)

	if typ == graph.TypeJS {
		rewritten = fmt.Sprintf("import { createHotContext as __vite__createHotContext } from %q;import.meta.hot = __vite__createHotContext(%q);", "/@vite/client", n.Url) + rewritten
	}

	etag := etagOf(rewritten)
	tr := &graph.TransformResult{Code: rewritten, Map: srcMap, Deps: analysis.ImportedUrls, ETag: etag}
	p.graph.SetTransformResult(n, tr)
	p.errors.Clear(id)

	return &Result{Code: rewritten, Map: srcMap, Deps: analysis.ImportedUrls, ETag: etag}, nil
}

func urlKeyOf(pathname, query string) string {
	if query == "" {
		return pathname
	}
	return pathname + "?" + query
}

func etagOf(code string) string {
	h := xxhash.New()
	h.Write([]byte(code))
	return fmt.Sprintf(`W/"%x"`, h.Sum64())
}
