// Package plugin implements the rollup-style ordered-hook pipeline the
// dev server drives transformation through: resolveId, load, transform
// and handleHotUpdate, each consulted across three ordering bands (pre,
// normal, post), stable within a band.
//
// Instead of one hard-coded worker per extension, any number of
// in-process Plugin values can register for the same hook, and the
// container decides ordering and chains their results.
package plugin

import (
	"context"
	"fmt"
)

// Band is the ordering group a plugin belongs to for a given hook.
type Band int

const (
	BandPre Band = iota
	BandNormal
	BandPost
)

// ResolveResult is what a resolveId hook returns on a hit.
type ResolveResult struct {
	Id       string
	External bool
	Meta     map[string]any
}

// LoadResult is what a load hook returns on a hit.
type LoadResult struct {
	Code string
	Map  string
}

// TransformResult is what a transform hook contributes; a plugin that
// does not want to touch the code returns a zero value with Handled=false
// so the container knows to pass the previous stage's output through
// unchanged rather than replacing it with an empty string.
type TransformResult struct {
	Code    string
	Map     string
	HiresMap bool
	Handled bool
}

// HotUpdateContext is passed to handleHotUpdate hooks; File is the
// changed file (posix path), Modules is the current candidate list
// (mutable across the chain: each plugin sees what the previous one
// returned), Timestamp is the wall-clock time in Unix milliseconds at
// which the watcher handles this change.
type HotUpdateContext struct {
	File      string
	Modules   []string // module URLs
	Timestamp int64
	Server    any // opaque handle back to the running server, for plugins that need graph access
}

// Plugin mirrors a rollup/vite plugin object: a name, an ordering
// preference, and a set of optional hook implementations. A nil hook
// field means the plugin does not participate in that hook.
type Plugin struct {
	Name    string
	Enforce Band // BandNormal unless set to BandPre/BandPost

	ResolveId func(ctx context.Context, id string, importer string) (*ResolveResult, error)
	Load      func(ctx context.Context, id string) (*LoadResult, error)
	Transform func(ctx context.Context, code string, id string) (*TransformResult, error)
	// HandleHotUpdate may return a replacement module list, or nil to
	// leave the current list untouched. Returning a non-nil empty
	// slice short-circuits to "no update" for this plugin's purposes.
	HandleHotUpdate func(ctx context.Context, hctx *HotUpdateContext) ([]string, error)
}

// Container drives the ordered hook chains. It is safe for concurrent
// use: the pre/normal/post plugin lists are fixed at construction and
// each hook invocation only reads them.
type Container struct {
	pre    []*Plugin
	normal []*Plugin
	post   []*Plugin
}

// New builds a container from an unordered plugin list, splitting it into
// pre/normal/post bands and preserving relative order within each band
// (a stable partition, matching "pre plugins ∥ normal plugins ∥ post
// plugins, stable within each band").
func New(plugins []*Plugin) *Container {
	c := &Container{}
	for _, p := range plugins {
		switch p.Enforce {
		case BandPre:
			c.pre = append(c.pre, p)
		case BandPost:
			c.post = append(c.post, p)
		default:
			c.normal = append(c.normal, p)
		}
	}
	return c
}

func (c *Container) ordered() []*Plugin {
	out := make([]*Plugin, 0, len(c.pre)+len(c.normal)+len(c.post))
	out = append(out, c.pre...)
	out = append(out, c.normal...)
	out = append(out, c.post...)
	return out
}

// ResolveId consults resolveId hooks in order; the first plugin to
// return a non-nil result wins.
func (c *Container) ResolveId(ctx context.Context, id string, importer string) (*ResolveResult, error) {
	for _, p := range c.ordered() {
		if p.ResolveId == nil {
			continue
		}
		res, err := p.ResolveId(ctx, id, importer)
		if err != nil {
			return nil, fmt.Errorf("resolveId(%q) [plugin %s]: %w", id, p.Name, err)
		}
		if res != nil {
			return res, nil
		}
	}
	return nil, nil
}

// Load consults load hooks in order; the first non-nil result wins.
func (c *Container) Load(ctx context.Context, id string) (*LoadResult, error) {
	for _, p := range c.ordered() {
		if p.Load == nil {
			continue
		}
		res, err := p.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load(%q) [plugin %s]: %w", id, p.Name, err)
		}
		if res != nil {
			return res, nil
		}
	}
	return nil, nil
}

// Transform chains every plugin's transform hook: the output of one
// becomes the input of the next. Source maps are composed by replacing
// the running map outright when a later stage produces a hi-res map,
// otherwise keeping the earliest non-empty one (a full chain-mapping
// composition is out of scope for the core; the latest map is kept
// only if it is hi-res).
func (c *Container) Transform(ctx context.Context, code string, id string) (string, string, error) {
	runningMap := ""
	for _, p := range c.ordered() {
		if p.Transform == nil {
			continue
		}
		res, err := p.Transform(ctx, code, id)
		if err != nil {
			return "", "", fmt.Errorf("transform(%q) [plugin %s]: %w", id, p.Name, err)
		}
		if res == nil || !res.Handled {
			continue
		}
		code = res.Code
		if res.Map != "" && (res.HiresMap || runningMap == "") {
			runningMap = res.Map
		}
	}
	return code, runningMap, nil
}

// HandleHotUpdate runs handleHotUpdate hooks in order, letting each
// plugin replace the current candidate module list; a plugin returning
// a non-nil result (including an empty slice) overrides the list for
// every plugin after it.
func (c *Container) HandleHotUpdate(ctx context.Context, hctx *HotUpdateContext) ([]string, error) {
	modules := hctx.Modules
	for _, p := range c.ordered() {
		if p.HandleHotUpdate == nil {
			continue
		}
		hctx.Modules = modules
		next, err := p.HandleHotUpdate(ctx, hctx)
		if err != nil {
			return nil, fmt.Errorf("handleHotUpdate(%q) [plugin %s]: %w", hctx.File, p.Name, err)
		}
		if next != nil {
			modules = next
		}
	}
	return modules, nil
}
