package watch

import (
	"testing"

	"vite.dev/core/internal/graph"
	"vite.dev/core/internal/hmr"
	"vite.dev/core/internal/plugin"
)

func newEngine(t *testing.T) (*Engine, *graph.Graph) {
	t.Helper()
	g := graph.New()
	c := plugin.New(nil)
	ch := hmr.NewChannel()
	e, err := New(g, c, ch, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return e, g
}

func TestPropagateStopsAtSelfAcceptingLeaf(t *testing.T) {
	e, g := newEngine(t)
	leaf := g.EnsureEntryFromUrl("/leaf.js", "/leaf.js", "/leaf.js", graph.TypeJS, true)

	boundaries, fullReload := e.propagate([]*graph.ModuleNode{leaf})
	if fullReload {
		t.Fatal("expected no full reload")
	}
	if len(boundaries) != 1 || boundaries[0].node != leaf {
		t.Fatalf("expected leaf to be its own boundary, got %v", boundaries)
	}
}

func TestPropagateStopsAtAcceptingImporter(t *testing.T) {
	e, g := newEngine(t)
	dep := g.EnsureEntryFromUrl("/dep.js", "/dep.js", "/dep.js", graph.TypeJS, false)
	parent := g.EnsureEntryFromUrl("/parent.js", "/parent.js", "/parent.js", graph.TypeJS, false)
	g.UpdateModuleInfo(parent, []string{"/dep.js"}, []string{"/dep.js"}, nil, false)

	boundaries, fullReload := e.propagate([]*graph.ModuleNode{dep})
	if fullReload {
		t.Fatal("expected no full reload")
	}
	if len(boundaries) != 1 || boundaries[0].node != parent || boundaries[0].acceptedVia != dep {
		t.Fatalf("expected parent boundary accepted via dep, got %v", boundaries)
	}
}

func TestPropagateFullReloadWhenRootHasNoAccept(t *testing.T) {
	e, g := newEngine(t)
	leaf := g.EnsureEntryFromUrl("/leaf.js", "/leaf.js", "/leaf.js", graph.TypeJS, false)
	root := g.EnsureEntryFromUrl("/root.js", "/root.js", "/root.js", graph.TypeJS, false)
	g.UpdateModuleInfo(root, []string{"/leaf.js"}, nil, nil, false)

	_, fullReload := e.propagate([]*graph.ModuleNode{leaf})
	if !fullReload {
		t.Fatal("expected full reload when no boundary accepts up to a rootless module")
	}
}

func TestIsIgnoredMatchesGlobPattern(t *testing.T) {
	e, _ := newEngine(t)
	e.SetIgnore([]string{"**/node_modules/**", "**/*.log"})

	if !e.isIgnored("/project/node_modules/react/index.js") {
		t.Fatal("expected node_modules path to be ignored")
	}
	if !e.isIgnored("/project/debug.log") {
		t.Fatal("expected .log file to be ignored")
	}
	if e.isIgnored("/project/src/main.ts") {
		t.Fatal("expected source file to not be ignored")
	}
}

func TestPropagatePropagatesPastNonAcceptingImporter(t *testing.T) {
	e, g := newEngine(t)
	dep := g.EnsureEntryFromUrl("/dep.js", "/dep.js", "/dep.js", graph.TypeJS, false)
	mid := g.EnsureEntryFromUrl("/mid.js", "/mid.js", "/mid.js", graph.TypeJS, false)
	top := g.EnsureEntryFromUrl("/top.js", "/top.js", "/top.js", graph.TypeJS, true)
	g.UpdateModuleInfo(mid, []string{"/dep.js"}, nil, nil, false)
	g.UpdateModuleInfo(top, []string{"/mid.js"}, nil, nil, true)

	boundaries, fullReload := e.propagate([]*graph.ModuleNode{dep})
	if fullReload {
		t.Fatal("expected no full reload")
	}
	if len(boundaries) != 1 || boundaries[0].node != top || boundaries[0].acceptedVia != dep {
		t.Fatalf("expected self-accepting top module as boundary, got %v", boundaries)
	}
}
