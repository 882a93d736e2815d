// Package optimize implements the dependency pre-bundling optimizer:
// it resolves bare (node_modules) specifiers to real files, invokes
// github.com/evanw/esbuild to flatten each into a single ES module,
// persists the result in a content-addressed depcache.Store, and tracks
// a combined browserHash the transform pipeline stamps onto rewritten
// import URLs so the browser's HTTP cache is invalidated exactly when
// the optimized set changes.
//
// The bundler invocation drives github.com/evanw/esbuild's pkg/api
// directly with Write:false and reads results back from
// BuildResult.OutputFiles, one esbuild.Build call per bare specifier
// rather than a single multi-entry invocation, which keeps each output's
// specifier/fileHash correlation trivial.
package optimize

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	esbuild "github.com/evanw/esbuild/pkg/api"
	"github.com/ije/esbuild-internal/xxhash"

	"vite.dev/core/internal/depcache"
	"vite.dev/core/internal/nodepkg"
)

// Config controls which bare specifiers the optimizer is allowed to
// pre-bundle.
type Config struct {
	Include []string // force-include even if never statically discovered
	Exclude []string // never pre-bundle, always served bare/external
}

// Optimizer owns one live generation of pre-bundled dependencies for a
// project root.
type Optimizer struct {
	root     string
	store    *depcache.Store
	manifest *Manifest
	cfg      Config

	mu          sync.RWMutex
	browserHash string
	entries     map[string]Entry
	known       map[string]struct{} // specifiers already discovered this process lifetime

	// Discovered receives a specifier the moment import-analysis first
	// sees it. The devserver drains this channel and calls Run in the
	// background, then broadcasts a full-reload once the new generation
	// lands.
	Discovered chan string
}

// New builds an Optimizer. It does not scan or bundle anything yet;
// call Prime to load a persisted generation; ResolveImport and Run bring
// newly-discovered specifiers in.
func New(root string, store *depcache.Store, manifest *Manifest, cfg Config) *Optimizer {
	return &Optimizer{
		root:       root,
		store:      store,
		manifest:   manifest,
		cfg:        cfg,
		known:      make(map[string]struct{}),
		Discovered: make(chan string, 64),
	}
}

// Prime loads the last-persisted manifest generation, if any, so a warm
// restart can serve cached optimized modules without re-bundling.
func (o *Optimizer) Prime() error {
	hash, err := o.manifest.BrowserHash()
	if err != nil {
		return err
	}
	entries, err := o.manifest.Entries()
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.browserHash = hash
	o.entries = entries
	for spec := range entries {
		o.known[spec] = struct{}{}
	}
	o.mu.Unlock()
	return nil
}

// BrowserHash returns the optimizer's current generation hash.
func (o *Optimizer) BrowserHash() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.browserHash
}

// Lookup returns the persisted entry for specifier, if it has already
// been optimized in the current generation.
func (o *Optimizer) Lookup(specifier string) (Entry, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	e, ok := o.entries[specifier]
	return e, ok
}

// URLFor builds the /@fs/<cache>/... URL the import-analysis stage
// rewrites a bare specifier to.
func (o *Optimizer) URLFor(e Entry) string {
	return "/@fs/" + o.store.Root() + "/" + e.File + "?v=" + o.browserHash
}

// NeedsReoptimize reports whether specifier has never been seen before
// in this process; a previously-unseen bare specifier appearing during
// import analysis is itself one of the re-optimization triggers.
func (o *Optimizer) NeedsReoptimize(specifier string) bool {
	if o.isExcluded(specifier) {
		return false
	}
	o.mu.RLock()
	_, ok := o.known[specifier]
	o.mu.RUnlock()
	return !ok
}

// ResolveImport implements transform.Resolver: it satisfies a bare
// import URL immediately, bundling a never-before-seen specifier
// synchronously (under its own content hash, outside the current
// generation's browserHash) so the request in flight does not 404 while
// the background re-optimization the Discovered channel triggers is
// still running.
func (o *Optimizer) ResolveImport(specifier, importer string) (string, error) {
	if o.isExcluded(specifier) {
		return specifier, nil
	}
	if e, ok := o.Lookup(specifier); ok {
		return o.URLFor(e), nil
	}

	o.mu.Lock()
	_, seen := o.known[specifier]
	if !seen {
		o.known[specifier] = struct{}{}
	}
	o.mu.Unlock()
	if !seen {
		select {
		case o.Discovered <- specifier:
		default:
		}
	}

	e, err := o.bundleOne(specifier)
	if err != nil {
		return "", err
	}
	return "/@fs/" + o.store.Root() + "/" + e.File, nil
}

func (o *Optimizer) isExcluded(specifier string) bool {
	for _, pat := range o.cfg.Exclude {
		if specifier == pat {
			return true
		}
		if ok, _ := doublestar.Match(pat, specifier); ok {
			return true
		}
	}
	return false
}

// Run bundles every specifier in the union of the current generation,
// cfg.Include, and newlySeen, and atomically swaps in a fresh generation.
// Callers are expected to follow a successful Run with a full-reload
// broadcast so the swap is atomic from the browser's perspective: old
// optimized files are left on disk so in-flight requests for the
// previous browserHash's URLs keep resolving.
func (o *Optimizer) Run(ctx context.Context, newlySeen []string) (string, error) {
	specifiers := make(map[string]struct{})
	o.mu.RLock()
	for s := range o.entries {
		specifiers[s] = struct{}{}
	}
	o.mu.RUnlock()
	for _, s := range o.cfg.Include {
		specifiers[s] = struct{}{}
	}
	for _, s := range newlySeen {
		if !o.isExcluded(s) {
			specifiers[s] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(specifiers))
	for s := range specifiers {
		sorted = append(sorted, s)
	}
	sort.Strings(sorted)

	entries := make(map[string]Entry, len(sorted))
	var hashInput strings.Builder
	for _, specifier := range sorted {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		e, err := o.bundleOne(specifier)
		if err != nil {
			return "", fmt.Errorf("optimize %q: %w", specifier, err)
		}
		entries[specifier] = e
		fmt.Fprintf(&hashInput, "%s@%s\n", specifier, e.FileHash)
	}

	browserHash := shortHash(hashInput.String())

	if err := o.manifest.Save(browserHash, entries); err != nil {
		return "", err
	}

	o.mu.Lock()
	o.browserHash = browserHash
	o.entries = entries
	for s := range entries {
		o.known[s] = struct{}{}
	}
	o.mu.Unlock()

	return browserHash, nil
}

func (o *Optimizer) bundleOne(specifier string) (Entry, error) {
	src, needsInterop, err := resolveBareSpecifier(o.root, specifier)
	if err != nil {
		return Entry{}, err
	}

	result := esbuild.Build(esbuild.BuildOptions{
		EntryPoints:      []string{src},
		Bundle:           true,
		Write:            false,
		Format:           esbuild.FormatESModule,
		Platform:         esbuild.PlatformBrowser,
		Target:           esbuild.ES2020,
		MinifyWhitespace: true,
	})
	if len(result.Errors) > 0 {
		return Entry{}, fmt.Errorf("%s", result.Errors[0].Text)
	}
	if len(result.OutputFiles) == 0 {
		return Entry{}, fmt.Errorf("no output produced for %s", specifier)
	}
	// esbuild already lowers a CommonJS entry to a `export default
	// module.exports`-shaped ES module when bundling with FormatESModule;
	// needsInterop is persisted in the manifest entry only: import-analysis
	// does not read it and rewrites no import of a CommonJS package into a
	// default+property-access form.
	code := result.OutputFiles[0].Contents

	fileHash := shortHash(string(code))
	outName := sanitizeSpecifier(specifier) + "-" + fileHash + ".js"
	if _, err := o.store.WriteFile(outName, bytes.NewReader(code)); err != nil {
		return Entry{}, err
	}

	return Entry{
		Specifier:    specifier,
		Src:          src,
		File:         outName,
		FileHash:     fileHash,
		NeedsInterop: needsInterop,
	}, nil
}

// resolveBareSpecifier locates specifier's package.json beneath
// root/node_modules and returns its resolved entry file plus whether it
// needs CommonJS interop wrapping.
func resolveBareSpecifier(root, specifier string) (entryFile string, needsInterop bool, err error) {
	pkgName, subpath := splitSpecifier(specifier)
	pkgDir := path.Join(root, "node_modules", pkgName)
	pkgJSONPath := path.Join(pkgDir, "package.json")

	data, err := os.ReadFile(pkgJSONPath)
	if err != nil {
		return "", false, fmt.Errorf("cannot find package %q: %w", pkgName, err)
	}
	var pkg nodepkg.PackageJSON
	if err := pkg.UnmarshalJSON(data); err != nil {
		return "", false, err
	}

	key := subpath
	if key != "" {
		key = "./" + key
	}
	entry, cjsHint := pkg.ResolveEntry(key)
	if entry == "" {
		entry = subpath
		if path.Ext(entry) == "" {
			entry += ".js"
		}
	}
	entryFile = path.Join(pkgDir, entry)

	src, err := os.ReadFile(entryFile)
	if err != nil {
		return "", false, err
	}
	detected, err := NeedsInterop(entryFile, string(src))
	if err != nil {
		return entryFile, cjsHint, nil
	}
	return entryFile, detected || cjsHint, nil
}

func splitSpecifier(specifier string) (pkgName, subpath string) {
	parts := strings.SplitN(specifier, "/", 2)
	if strings.HasPrefix(specifier, "@") && len(parts) == 2 {
		scopedParts := strings.SplitN(parts[1], "/", 2)
		if len(scopedParts) == 2 {
			return parts[0] + "/" + scopedParts[0], scopedParts[1]
		}
		return specifier, ""
	}
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return specifier, ""
}

func sanitizeSpecifier(specifier string) string {
	return strings.NewReplacer("/", "_", "@", "", ".", "-").Replace(specifier)
}

func shortHash(s string) string {
	h := xxhash.New()
	h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())[:10]
}
