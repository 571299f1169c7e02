package render

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/revgraph/pkg/cache"
	"github.com/matzehuels/revgraph/pkg/revision"
)

func testMap(t *testing.T) *revision.Map {
	t.Helper()
	m := revision.NewMap(func() ([]*revision.Revision, error) {
		a, _ := revision.NewRevision("a", nil, revision.WithBranchLabels("core"), revision.WithDoc("init"))
		b1, _ := revision.NewRevision("b1", []string{"a"})
		b2, _ := revision.NewRevision("b2", []string{"a"})
		c, _ := revision.NewRevision("c", []string{"b1", "b2"}, revision.WithDoc("merge"))
		x, _ := revision.NewRevision("x", nil, revision.DependsOn("b1"))
		return []*revision.Revision{a, b1, b2, c, x}, nil
	})
	if err := m.Build(); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestToDOT(t *testing.T) {
	dot, err := ToDOT(testMap(t), Options{Dependencies: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"digraph revisions {",
		`"a" [label="a (core)", fillcolor="#e0e0e0", style="rounded,filled,bold"];`,
		`"c" [label="c", fillcolor="#c8e6c9", penwidth=2, shape=hexagon];`,
		`"b1" -> "a";`,
		`"c" -> "b2";`,
		`"x" -> "b1" [style=dashed, color=grey40];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %s\n%s", want, dot)
		}
	}

	plain, _ := ToDOT(testMap(t), Options{})
	if strings.Contains(plain, "dashed") {
		t.Error("dependency edges drawn without Dependencies")
	}
}

func TestToDOTDetailed(t *testing.T) {
	dot, err := ToDOT(testMap(t), Options{Detailed: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(dot, `label="c\nmerge\nbranches: core"`) {
		t.Errorf("detailed label missing:\n%s", dot)
	}
}

func TestToDOTBuildError(t *testing.T) {
	m := revision.NewMap(func() ([]*revision.Revision, error) {
		return []*revision.Revision{{ID: "a", DownRevisions: []string{"a"}}}, nil
	})
	if _, err := ToDOT(m, Options{}); err == nil {
		t.Error("ToDOT() error = nil for a self-loop")
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="100pt" height="50pt" viewBox="0.00 0.00 100.00 50.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	got := string(normalizeViewBox(in))
	want := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100.00 50.00" width="100" height="50"><g/></svg>`
	if got != want {
		t.Errorf("normalizeViewBox() = %s", got)
	}
	if string(normalizeViewBox([]byte("<svg/>"))) != "<svg/>" {
		t.Error("svg without viewBox should be unchanged")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("svg"); err != nil || f != FormatSVG {
		t.Errorf("ParseFormat(svg) = %v, %v", f, err)
	}
	if _, err := ParseFormat("png"); err == nil {
		t.Error("ParseFormat(png) error = nil")
	}
}

// memCache is a map backed cache.Cache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.data[key]
	return d, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string][]byte)
	}
	c.data[key] = data
	c.sets++
	return nil
}

func (c *memCache) Delete(context.Context, string) error { return nil }
func (c *memCache) Close() error                         { return nil }

func TestRendererCache(t *testing.T) {
	ctx := context.Background()
	mc := &memCache{}
	r := NewRenderer(mc, cache.NewScopedKeyer(nil, "test:"), nil)
	req := Request{Map: testMap(t), ManifestHash: cache.Hash([]byte("manifest")), Format: FormatDOT}

	first, hit, err := r.Render(ctx, req)
	if err != nil || hit {
		t.Fatalf("first Render() = hit %v, err %v", hit, err)
	}
	second, hit, err := r.Render(ctx, req)
	if err != nil || !hit || string(second) != string(first) {
		t.Fatalf("second Render() = hit %v, err %v", hit, err)
	}

	req.Refresh = true
	if _, hit, _ := r.Render(ctx, req); hit {
		t.Error("Refresh served from cache")
	}
	if mc.sets != 2 {
		t.Errorf("cache sets = %d, want 2", mc.sets)
	}

	req.ManifestHash = ""
	req.Refresh = false
	if _, hit, _ := r.Render(ctx, req); hit || mc.sets != 2 {
		t.Error("render without manifest hash touched the cache")
	}
}

func TestRendererUnknownFormat(t *testing.T) {
	r := NewRenderer(nil, nil, nil)
	if _, _, err := r.Render(context.Background(), Request{Map: testMap(t), Format: "png"}); err == nil {
		t.Error("Render(png) error = nil")
	}
}
