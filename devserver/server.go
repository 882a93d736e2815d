// Package devserver wires the module graph, plugin container, transform
// pipeline, dependency optimizer, file watcher and HMR channel into one
// running HTTP server behind a rex.Use middleware chain.
package devserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ije/gox/log"
	"github.com/ije/rex"

	"vite.dev/core/internal/clientjs"
	"vite.dev/core/internal/config"
	"vite.dev/core/internal/depcache"
	verrors "vite.dev/core/internal/errors"
	"vite.dev/core/internal/graph"
	"vite.dev/core/internal/hmr"
	"vite.dev/core/internal/optimize"
	"vite.dev/core/internal/plugin"
	"vite.dev/core/internal/transform"
	"vite.dev/core/internal/watch"
)

// Optimizer is re-exported so callers outside this package (tests, the
// cli package) can reference the concrete type without importing
// internal/optimize directly.
type Optimizer = optimize.Optimizer

// Server is one running dev server instance.
type Server struct {
	cfg       *config.Config
	logger    *log.Logger
	accessLog *log.Logger

	graph     *graph.Graph
	container *plugin.Container
	pipeline  *transform.Pipeline
	optimizer *optimize.Optimizer
	store     *depcache.Store
	manifest  *optimize.Manifest
	channel   *hmr.Channel
	watcher   *watch.Engine
}

// New constructs and wires a Server but does not yet bind a listener or
// start the watcher; call Start for that.
func New(cfg *config.Config) (*Server, error) {
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logger, err := log.New(fmt.Sprintf("file:%s?buffer=32k&fileDateFormat=20060102", path.Join(cfg.LogDir, "server.log")))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.SetLevelByName(cfg.LogLevel)

	accessLogger, err := log.New(fmt.Sprintf("file:%s?buffer=32k&fileDateFormat=20060102", path.Join(cfg.LogDir, "access.log")))
	if err != nil {
		return nil, fmt.Errorf("init access logger: %w", err)
	}
	accessLogger.SetQuite(true)

	store, err := depcache.Open(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("open dep cache: %w", err)
	}
	manifest, err := optimize.OpenManifest(filepath.Join(cfg.CacheDir, "manifest.db"))
	if err != nil {
		return nil, fmt.Errorf("open optimizer manifest: %w", err)
	}
	optimizer := optimize.New(cfg.Root, store, manifest, optimize.Config{
		Include: cfg.Optimize.Include,
		Exclude: cfg.Optimize.Exclude,
	})
	if err := optimizer.Prime(); err != nil {
		return nil, fmt.Errorf("prime optimizer: %w", err)
	}

	g := graph.New()
	container := plugin.New([]*plugin.Plugin{fsPlugin(cfg.Root)})
	analyzer := transform.NewImportAnalyzer(optimizer)
	pipeline := transform.New(g, container, analyzer)

	channel := hmr.NewChannel()

	isHTMLEntry := func(file string) bool {
		return strings.EqualFold(filepath.Ext(file), ".html")
	}
	watcher, err := watch.New(g, container, channel, logger, isHTMLEntry)
	if err != nil {
		return nil, fmt.Errorf("init watcher: %w", err)
	}
	watcher.SetIgnore(cfg.WatchIgnore)

	return &Server{
		cfg:       cfg,
		logger:    logger,
		accessLog: accessLogger,
		graph:     g,
		container: container,
		pipeline:  pipeline,
		optimizer: optimizer,
		store:     store,
		manifest:  manifest,
		channel:   channel,
		watcher:   watcher,
	}, nil
}

// Start watches the workspace root, begins draining the optimizer's
// discovery channel, and binds an HTTP listener on cfg.Port. It blocks
// until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if err := s.watcher.Watch(s.cfg.Root); err != nil {
		return fmt.Errorf("watch %s: %w", s.cfg.Root, err)
	}
	s.watcher.Start()
	go s.drainDiscoveries(ctx)

	rex.Use(
		rex.Header("Server", "vite-devcore"),
		corsMiddleware(s.cfg.CorsAllowOrigins),
		rex.Logger(s.logger),
		rex.AccessLogger(s.accessLog),
		s.router(),
	)

	serveErr := rex.Serve(rex.ServerConfig{Port: uint16(s.cfg.Port)})
	s.logger.Infof("dev server ready on http://%s:%d", s.cfg.Host, s.cfg.Port)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		s.logger.Errorf("server error: %v", err)
		return err
	}
	return s.Close()
}

// Close releases the watcher, manifest and log buffers.
func (s *Server) Close() error {
	s.watcher.Close()
	s.manifest.Close()
	s.logger.FlushBuffer()
	s.accessLog.FlushBuffer()
	return nil
}

// drainDiscoveries consumes specifiers the optimizer's ResolveImport
// surfaces for the first time and folds them into a fresh, debounced
// re-optimization pass, broadcasting a full-reload once it lands
// (the dependency optimizer's "atomic from the browser's perspective"
// re-optimization trigger).
func (s *Server) drainDiscoveries(ctx context.Context) {
	var pending []string
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case spec := <-s.optimizer.Discovered:
			pending = append(pending, spec)
			timer.Reset(100 * time.Millisecond)
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := pending
			pending = nil
			if _, err := s.optimizer.Run(ctx, batch); err != nil {
				s.logger.Errorf("re-optimize %v: %v", batch, err)
				s.channel.Broadcast(hmr.ErrorMessage(verrors.New(verrors.ErrOptimize, "dependency re-optimization failed", err).WireError()))
				continue
			}
			s.channel.Broadcast(hmr.FullReload(""))
		}
	}
}
