// Package graph holds the dev server's in-memory module DAG: one
// ModuleNode per distinct URL the server has observed, wired into three
// indexes (by url, by resolved id, by bare file path) and linked by
// mutual importer/importedModules sets.
//
// Nodes live in a flat arena (a slice) and refer to each other by
// integer handle rather than by pointer, per the "cyclic ownership"
// design note: mutual importer/importee sets would otherwise require
// either reference counting or careful weak-pointer bookkeeping. An
// index is stable for the node's lifetime; removal only ever happens
// when the whole graph is discarded, so stale handles never resurface
// with different identities.
package graph

import (
	"path"
	"sync"
	"time"

	"vite.dev/core/internal/urlpath"
)

// ModuleType distinguishes the two kinds of HMR boundary the watcher
// classifies updates into.
type ModuleType uint8

const (
	TypeJS ModuleType = iota
	TypeCSS
)

// handle is a stable arena index into Graph.nodes. Lookups gate on map
// presence (byUrl/byId/byFile), not on any sentinel handle value, since
// index 0 is itself a real, used node.
type handle int32

// ModuleNode is one node of the module graph.
type ModuleNode struct {
	Url  string
	Id   string
	File string // empty for virtual modules
	Type ModuleType

	self handle

	importers       map[handle]struct{}
	importedModules map[handle]struct{}
	acceptedHmrDeps map[handle]struct{}

	// AcceptedHmrExports is nil when the module self-accepts all
	// exports, or a set of export names when it narrows via
	// acceptExports(names).
	AcceptedHmrExports map[string]struct{}
	IsSelfAccepting    bool

	TransformResult *TransformResult

	LastHMRTimestamp          int64
	LastInvalidationTimestamp int64
}

// TransformResult is the cached output of the transform pipeline for a
// module: code, an optional source map, and the set of URLs it imports
// (used to keep importedModules in sync without re-parsing).
type TransformResult struct {
	Code string
	Map  string
	Deps []string
	ETag string
}

// Graph is the process-wide mutable module DAG. All mutations are
// expected to run on request or watcher goroutines that hold Lock/RLock
// for the duration of their work; there is no internal goroutine.
type Graph struct {
	mu sync.RWMutex

	nodes    []*ModuleNode
	byUrl    map[string]handle
	byId     map[string]handle
	byFile   map[string][]handle
	monotone int64
}

// New creates an empty module graph.
func New() *Graph {
	return &Graph{
		byUrl:  make(map[string]handle),
		byId:   make(map[string]handle),
		byFile: make(map[string][]handle),
	}
}

// nextTimestamp returns a strictly increasing value used for both
// LastHMRTimestamp and LastInvalidationTimestamp so a fresh timestamp
// always exceeds any prior one across both fields.
func (g *Graph) nextTimestamp() int64 {
	now := time.Now().UnixMilli()
	if now <= g.monotone {
		now = g.monotone + 1
	}
	g.monotone = now
	return now
}

func canonicalURL(raw string) string {
	pathname, query := urlpath.CleanURL(raw)
	if query == "" {
		return pathname
	}
	// strip a bare timestamp-buster query ("t=...") but keep anything
	// else (e.g. "raw", "module", "import") since those select a
	// different module identity.
	kept := ""
	for _, kv := range splitQuery(query) {
		if kv == "" {
			continue
		}
		if len(kv) >= 2 && kv[0] == 't' && kv[1] == '=' {
			continue
		}
		if kept != "" {
			kept += "&"
		}
		kept += kv
	}
	if kept == "" {
		return pathname
	}
	return pathname + "?" + kept
}

func splitQuery(q string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '&' {
			parts = append(parts, q[start:i])
			start = i + 1
		}
	}
	parts = append(parts, q[start:])
	return parts
}

// GetModuleByUrl looks up a node by URL after canonicalization (strip
// timestamp query). Returns nil if unknown.
func (g *Graph) GetModuleByUrl(url string) *ModuleNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.getByUrlLocked(url)
}

func (g *Graph) getByUrlLocked(url string) *ModuleNode {
	h, ok := g.byUrl[canonicalURL(url)]
	if !ok {
		return nil
	}
	return g.nodes[h]
}

// GetModuleById looks up a node by resolved id.
func (g *Graph) GetModuleById(id string) *ModuleNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	h, ok := g.byId[id]
	if !ok {
		return nil
	}
	return g.nodes[h]
}

// GetModulesByFile returns every node watching the given bare file path
// (a file may be imported under more than one query variant).
func (g *Graph) GetModulesByFile(file string) []*ModuleNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	handles := g.byFile[urlpath.ToPosix(file)]
	if len(handles) == 0 {
		return nil
	}
	out := make([]*ModuleNode, len(handles))
	for i, h := range handles {
		out[i] = g.nodes[h]
	}
	return out
}

// EnsureEntryFromUrl creates the node for url on first mention, wiring it
// into all three indexes. If it already exists, isSelfAccepting is only
// ever widened (set true), never cleared here (updateModuleInfo is the
// place that can narrow it back); a still-empty Id/File is backfilled
// and indexed, since a module first seen as an import (via
// getOrCreatePlaceholderLocked) only learns its resolved id and file
// path once the browser actually requests it.
func (g *Graph) EnsureEntryFromUrl(url string, id string, file string, typ ModuleType, setIsSelfAccepting bool) *ModuleNode {
	g.mu.Lock()
	defer g.mu.Unlock()

	cu := canonicalURL(url)
	if h, ok := g.byUrl[cu]; ok {
		n := g.nodes[h]
		if setIsSelfAccepting {
			n.IsSelfAccepting = true
		}
		if n.Id == "" && id != "" {
			n.Id = id
			g.byId[id] = h
			n.Type = typ
		}
		if n.File == "" && !urlpath.IsVirtualId(id) {
			if f := urlpath.ToPosix(file); f != "" {
				n.File = f
				g.byFile[f] = append(g.byFile[f], h)
			}
		}
		return n
	}

	n := &ModuleNode{
		Url:             cu,
		Id:              id,
		Type:            typ,
		IsSelfAccepting: setIsSelfAccepting,
		importers:       make(map[handle]struct{}),
		importedModules: make(map[handle]struct{}),
		acceptedHmrDeps: make(map[handle]struct{}),
	}
	if !urlpath.IsVirtualId(id) {
		n.File = urlpath.ToPosix(file)
	}

	h := handle(len(g.nodes))
	n.self = h
	g.nodes = append(g.nodes, n)
	g.byUrl[cu] = h
	if id != "" {
		g.byId[id] = h
	}
	if n.File != "" {
		g.byFile[n.File] = append(g.byFile[n.File], h)
	}
	return n
}

// UpdateModuleInfo diffs a node's importedModules/acceptedHmrDeps against
// a freshly-computed set (produced by the import-analysis sub-transform)
// and returns the set of modules that, as a result, are no longer
// reachable from any importer and should be reported via a prune message.
func (g *Graph) UpdateModuleInfo(n *ModuleNode, importedUrls []string, acceptedUrls []string, acceptedExports []string, isSelfAccepting bool) (pruned []*ModuleNode) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n.IsSelfAccepting = isSelfAccepting
	if acceptedExports == nil {
		n.AcceptedHmrExports = nil
	} else {
		n.AcceptedHmrExports = make(map[string]struct{}, len(acceptedExports))
		for _, e := range acceptedExports {
			n.AcceptedHmrExports[e] = struct{}{}
		}
	}

	newImported := make(map[handle]struct{}, len(importedUrls))
	for _, u := range importedUrls {
		dep := g.getOrCreatePlaceholderLocked(u)
		newImported[dep.self] = struct{}{}
	}

	// remove edges to modules no longer imported
	var candidatesForPrune []handle
	for h := range n.importedModules {
		if _, still := newImported[h]; !still {
			dep := g.nodes[h]
			delete(dep.importers, n.self)
			candidatesForPrune = append(candidatesForPrune, h)
		}
	}
	// add new edges
	for h := range newImported {
		if _, already := n.importedModules[h]; !already {
			g.nodes[h].importers[n.self] = struct{}{}
		}
	}
	n.importedModules = newImported

	n.acceptedHmrDeps = make(map[handle]struct{}, len(acceptedUrls))
	for _, u := range acceptedUrls {
		if h, ok := g.byUrl[canonicalURL(u)]; ok {
			n.acceptedHmrDeps[h] = struct{}{}
		}
	}

	for _, h := range candidatesForPrune {
		if len(g.nodes[h].importers) == 0 {
			pruned = append(pruned, g.nodes[h])
		}
	}
	return
}

func (g *Graph) getOrCreatePlaceholderLocked(url string) *ModuleNode {
	cu := canonicalURL(url)
	if h, ok := g.byUrl[cu]; ok {
		return g.nodes[h]
	}
	n := &ModuleNode{
		Url:             cu,
		importers:       make(map[handle]struct{}),
		importedModules: make(map[handle]struct{}),
		acceptedHmrDeps: make(map[handle]struct{}),
	}
	h := handle(len(g.nodes))
	n.self = h
	g.nodes = append(g.nodes, n)
	g.byUrl[cu] = h
	return n
}

// InvalidateModule marks a node stale and recursively invalidates every
// importer that does not accept this dependency (isSelfAccepting nor
// containing this module in acceptedHmrDeps). seen prevents revisiting a
// node twice in a single call (the graph need not be acyclic for this to
// terminate: each node is processed at most once).
func (g *Graph) InvalidateModule(n *ModuleNode, seen map[*ModuleNode]struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if seen == nil {
		seen = make(map[*ModuleNode]struct{})
	}
	g.invalidateLocked(n, seen)
}

func (g *Graph) invalidateLocked(n *ModuleNode, seen map[*ModuleNode]struct{}) {
	if _, ok := seen[n]; ok {
		return
	}
	seen[n] = struct{}{}

	ts := g.nextTimestamp()
	n.LastInvalidationTimestamp = ts
	n.TransformResult = nil

	for h := range n.importers {
		importer := g.nodes[h]
		if importer.IsSelfAccepting {
			continue
		}
		if _, accepts := importer.acceptedHmrDeps[n.self]; accepts {
			continue
		}
		g.invalidateLocked(importer, seen)
	}
}

// OnFileChange looks up every node for file (across query variants) and
// invalidates each.
func (g *Graph) OnFileChange(file string) []*ModuleNode {
	nodes := g.GetModulesByFile(file)
	seen := make(map[*ModuleNode]struct{})
	for _, n := range nodes {
		g.InvalidateModule(n, seen)
	}
	out := make([]*ModuleNode, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	return out
}

// Importers returns the direct importers of n.
func (g *Graph) Importers(n *ModuleNode) []*ModuleNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*ModuleNode, 0, len(n.importers))
	for h := range n.importers {
		out = append(out, g.nodes[h])
	}
	return out
}

// AcceptsDep reports whether importer accepts an update to dep, either by
// self-accepting or by having dep in its acceptedHmrDeps.
func (g *Graph) AcceptsDep(importer, dep *ModuleNode) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if importer.IsSelfAccepting {
		return true
	}
	_, ok := importer.acceptedHmrDeps[dep.self]
	return ok
}

// BumpHMRTimestamp assigns n a fresh monotonic timestamp without clearing
// its transformResult: the boundary's own cached output stays valid,
// only the client-facing query busts.
func (g *Graph) BumpHMRTimestamp(n *ModuleNode) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	ts := g.nextTimestamp()
	n.LastHMRTimestamp = ts
	return ts
}

// SetTransformResult stores a fresh transform result and clears the
// invalidation timestamp, restoring the invariant that a non-nil
// transformResult always has a zero invalidation timestamp.
func (g *Graph) SetTransformResult(n *ModuleNode, r *TransformResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n.TransformResult = r
	n.LastInvalidationTimestamp = 0
}

// IsStale reports whether n needs recomputation.
func (g *Graph) IsStale(n *ModuleNode) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return n.TransformResult == nil
}

// FileOf derives the bare watcher-matched file path for a resolved id,
// stripping any query and treating a virtual id as fileless.
func FileOf(id string) string {
	if urlpath.IsVirtualId(id) {
		return ""
	}
	p, _ := urlpath.CleanURL(id)
	return urlpath.ToPosix(p)
}

// TypeOfPath classifies a module by its file extension.
func TypeOfPath(p string) ModuleType {
	switch path.Ext(p) {
	case ".css":
		return TypeCSS
	default:
		return TypeJS
	}
}
