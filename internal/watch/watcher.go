// Package watch implements the dev server's file-watcher-driven HMR
// engine: it turns raw filesystem events into module-graph invalidation,
// runs the boundary-propagation algorithm, and emits typed update,
// full-reload and error messages over the message channel. It sends no
// prune messages: the modules UpdateModuleInfo reports as pruned are not
// forwarded to the channel.
//
// Event delivery is a background goroutine reacting to filesystem state
// and pushing to connected clients. This engine subscribes to
// github.com/fsnotify/fsnotify across the whole project root up front,
// rather than polling mtimes across an explicit per-connection watch
// list, which removes both the polling latency and the "browser must ask
// before the server watches" protocol step; the debounce window coalesces
// bursts of fsnotify events into a single propagation pass.
package watch

import (
	"container/list"
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"vite.dev/core/internal/graph"
	"vite.dev/core/internal/hmr"
	"vite.dev/core/internal/plugin"
	"vite.dev/core/internal/urlpath"
)

// DebounceWindow is how long the engine waits after the last observed
// event on a burst before running propagation, coalescing rapid
// sequences (e.g. an editor's atomic-rename save) into one batch.
const DebounceWindow = 50 * time.Millisecond

// ReloadMatcher decides whether a changed file with no HMR boundary
// should still trigger a full reload (e.g. index.html).
type ReloadMatcher func(file string) bool

// Logger is the minimal surface the engine needs; devserver wires this
// to the real dual server/access logger described in the ambient stack.
type Logger interface {
	Errorf(format string, args ...any)
}

// Engine ties a graph, a plugin container, a message channel and an
// fsnotify watcher together into the running HMR loop.
type Engine struct {
	graph     *graph.Graph
	container *plugin.Container
	channel   *hmr.Channel
	log       Logger
	isReload  ReloadMatcher

	watcher *fsnotify.Watcher
	ignore  []string

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

// New builds an Engine. Call Watch to add roots, then Start.
func New(g *graph.Graph, c *plugin.Container, ch *hmr.Channel, log Logger, isReload ReloadMatcher) (*Engine, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if isReload == nil {
		isReload = func(file string) bool { return strings.EqualFold(filepath.Ext(file), ".html") }
	}
	return &Engine{
		graph:     g,
		container: c,
		channel:   ch,
		log:       log,
		isReload:  isReload,
		watcher:   w,
		pending:   make(map[string]struct{}),
	}, nil
}

// SetIgnore installs doublestar glob patterns (e.g. "**/node_modules/**")
// that Watch will skip descending into and that scheduled events will be
// dropped against, matching the configured watch-ignore list.
func (e *Engine) SetIgnore(patterns []string) {
	e.ignore = patterns
}

func (e *Engine) isIgnored(p string) bool {
	posix := urlpath.ToPosix(p)
	for _, pat := range e.ignore {
		if ok, _ := doublestar.Match(pat, posix); ok {
			return true
		}
	}
	return false
}

// Watch adds root (and, since fsnotify is non-recursive, every
// subdirectory beneath it) to the watch set.
func (e *Engine) Watch(root string) error {
	return filepath.Walk(root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if strings.HasSuffix(p, ".git") || e.isIgnored(p) {
				return filepath.SkipDir
			}
			return e.watcher.Add(p)
		}
		return nil
	})
}

// Start runs the event loop until Close is called. Intended to be run in
// its own goroutine.
func (e *Engine) Start() {
	for {
		select {
		case ev, ok := <-e.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if e.isIgnored(ev.Name) {
				continue
			}
			e.schedule(urlpath.ToPosix(ev.Name))
		case err, ok := <-e.watcher.Errors:
			if !ok {
				return
			}
			if e.log != nil {
				e.log.Errorf("watch: %v", err)
			}
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (e *Engine) Close() error {
	return e.watcher.Close()
}

func (e *Engine) schedule(file string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending[file] = struct{}{}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(DebounceWindow, e.flush)
}

func (e *Engine) flush() {
	e.mu.Lock()
	files := make([]string, 0, len(e.pending))
	for f := range e.pending {
		files = append(files, f)
	}
	e.pending = make(map[string]struct{})
	e.mu.Unlock()

	for _, f := range files {
		e.handleFileChange(f)
	}
}

// boundary is one HMR update target discovered by propagation.
type boundary struct {
	node       *graph.ModuleNode
	acceptedVia *graph.ModuleNode
}

// handleFileChange runs steps 1-6 of the propagation algorithm for a
// single changed file.
func (e *Engine) handleFileChange(file string) {
	affected := e.graph.OnFileChange(file)

	moduleUrls := make([]string, len(affected))
	for i, n := range affected {
		moduleUrls[i] = n.Url
	}

	replaced, err := e.container.HandleHotUpdate(context.Background(), &plugin.HotUpdateContext{
		File:      file,
		Modules:   moduleUrls,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		e.channel.Broadcast(hmr.ErrorMessage(&hmr.ErrorPayload{Message: err.Error()}))
		return
	}

	if len(replaced) == 0 {
		if len(affected) == 0 && e.isReload(file) {
			e.channel.Broadcast(hmr.FullReload(file))
		}
		return
	}

	set := make([]*graph.ModuleNode, 0, len(replaced))
	for _, url := range replaced {
		if n := e.graph.GetModuleByUrl(url); n != nil {
			set = append(set, n)
		}
	}

	boundaries, fullReload := e.propagate(set)
	if fullReload {
		e.channel.Broadcast(hmr.FullReload(""))
		return
	}
	if len(boundaries) == 0 {
		return
	}

	updates := make([]hmr.Update, 0, len(boundaries))
	for _, b := range boundaries {
		ts := e.graph.BumpHMRTimestamp(b.node)
		kind := hmr.UpdateJS
		if b.node.Type == graph.TypeCSS {
			kind = hmr.UpdateCSS
		}
		updates = append(updates, hmr.Update{
			Kind:         kind,
			Path:         b.node.Url,
			AcceptedPath: b.acceptedVia.Url,
			Timestamp:    ts,
		})
	}
	e.channel.Broadcast(hmr.UpdateMessage(updates))
}

// propagate walks importers of each changed module, collecting the
// nearest accepting boundary for each, or signalling a full reload when
// a module with no importers is reached
// without ever finding an accept.
func (e *Engine) propagate(changed []*graph.ModuleNode) (boundaries []boundary, fullReload bool) {
	queue := list.New()
	visited := make(map[*graph.ModuleNode]struct{})
	acceptedVia := make(map[*graph.ModuleNode]*graph.ModuleNode)

	for _, n := range changed {
		queue.PushBack(n)
		acceptedVia[n] = n
	}

	for queue.Len() > 0 {
		front := queue.Front()
		queue.Remove(front)
		m := front.Value.(*graph.ModuleNode)
		if _, ok := visited[m]; ok {
			continue
		}
		visited[m] = struct{}{}

		if m.IsSelfAccepting {
			boundaries = append(boundaries, boundary{node: m, acceptedVia: acceptedVia[m]})
			continue
		}

		importers := e.graph.Importers(m)
		if len(importers) == 0 {
			return nil, true
		}
		for _, imp := range importers {
			if e.graph.AcceptsDep(imp, m) {
				boundaries = append(boundaries, boundary{node: imp, acceptedVia: acceptedVia[m]})
				continue
			}
			if _, ok := acceptedVia[imp]; !ok {
				acceptedVia[imp] = acceptedVia[m]
			}
			queue.PushBack(imp)
		}
	}
	return boundaries, false
}
