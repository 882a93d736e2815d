package plugin

import (
	"context"
	"testing"
)

func TestResolveIdOrderingFirstWins(t *testing.T) {
	var calls []string
	never := &Plugin{
		Name: "never",
		ResolveId: func(ctx context.Context, id, importer string) (*ResolveResult, error) {
			calls = append(calls, "never")
			return nil, nil
		},
	}
	winner := &Plugin{
		Name: "winner",
		ResolveId: func(ctx context.Context, id, importer string) (*ResolveResult, error) {
			calls = append(calls, "winner")
			return &ResolveResult{Id: "/resolved.js"}, nil
		},
	}
	tooLate := &Plugin{
		Name: "too-late",
		ResolveId: func(ctx context.Context, id, importer string) (*ResolveResult, error) {
			calls = append(calls, "too-late")
			return &ResolveResult{Id: "/wrong.js"}, nil
		},
	}
	c := New([]*Plugin{never, winner, tooLate})
	res, err := c.ResolveId(context.Background(), "x", "")
	if err != nil {
		t.Fatal(err)
	}
	if res == nil || res.Id != "/resolved.js" {
		t.Fatalf("got %+v", res)
	}
	if len(calls) != 2 || calls[1] != "winner" {
		t.Fatalf("expected short-circuit after winner, got %v", calls)
	}
}

func TestEnforceBandOrdering(t *testing.T) {
	var order []string
	mk := func(name string, band Band) *Plugin {
		return &Plugin{
			Name:    name,
			Enforce: band,
			ResolveId: func(ctx context.Context, id, importer string) (*ResolveResult, error) {
				order = append(order, name)
				return nil, nil
			},
		}
	}
	c := New([]*Plugin{
		mk("normal-1", BandNormal),
		mk("post-1", BandPost),
		mk("pre-1", BandPre),
		mk("normal-2", BandNormal),
	})
	c.ResolveId(context.Background(), "x", "")
	want := []string{"pre-1", "normal-1", "normal-2", "post-1"}
	if len(order) != len(want) {
		t.Fatalf("got %v want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v want %v", order, want)
		}
	}
}

func TestTransformChains(t *testing.T) {
	upper := &Plugin{
		Name: "upper",
		Transform: func(ctx context.Context, code, id string) (*TransformResult, error) {
			return &TransformResult{Code: code + "-A", Handled: true}, nil
		},
	}
	skip := &Plugin{
		Name: "skip",
		Transform: func(ctx context.Context, code, id string) (*TransformResult, error) {
			return nil, nil
		},
	}
	suffix := &Plugin{
		Name: "suffix",
		Transform: func(ctx context.Context, code, id string) (*TransformResult, error) {
			return &TransformResult{Code: code + "-B", Handled: true}, nil
		},
	}
	c := New([]*Plugin{upper, skip, suffix})
	code, _, err := c.Transform(context.Background(), "src", "id")
	if err != nil {
		t.Fatal(err)
	}
	if code != "src-A-B" {
		t.Fatalf("got %q", code)
	}
}

func TestHandleHotUpdateShortCircuitEmpty(t *testing.T) {
	dropAll := &Plugin{
		Name: "drop-all",
		HandleHotUpdate: func(ctx context.Context, hctx *HotUpdateContext) ([]string, error) {
			return []string{}, nil
		},
	}
	afterRan := false
	after := &Plugin{
		Name: "after",
		HandleHotUpdate: func(ctx context.Context, hctx *HotUpdateContext) ([]string, error) {
			if len(hctx.Modules) != 0 {
				t.Errorf("expected empty candidate list, got %v", hctx.Modules)
			}
			afterRan = true
			return nil, nil
		},
	}
	c := New([]*Plugin{dropAll, after})
	mods, err := c.HandleHotUpdate(context.Background(), &HotUpdateContext{
		File:    "a.js",
		Modules: []string{"/src/a.js"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(mods) != 0 {
		t.Fatalf("expected empty result, got %v", mods)
	}
	if !afterRan {
		t.Fatal("after plugin should still run and observe the emptied list")
	}
}

func TestErrorTracker(t *testing.T) {
	tr := NewErrorTracker()
	if _, ok := tr.Get("a.js"); ok {
		t.Fatal("expected no error initially")
	}
	tr.Mark("a.js", context.DeadlineExceeded)
	if err, ok := tr.Get("a.js"); !ok || err != context.DeadlineExceeded {
		t.Fatal("expected cached error")
	}
	tr.Clear("a.js")
	if _, ok := tr.Get("a.js"); ok {
		t.Fatal("expected error cleared")
	}
}
