package revision

import (
	"slices"
	"testing"
)

type node struct {
	id     string
	down   []string
	deps   []string
	labels []string
	doc    string
}

func gen(nodes ...node) Generator {
	return func() ([]*Revision, error) {
		out := make([]*Revision, 0, len(nodes))
		for _, n := range nodes {
			out = append(out, &Revision{
				ID:            n.id,
				DownRevisions: n.down,
				Dependencies:  n.deps,
				BranchLabels:  n.labels,
				Doc:           n.doc,
			})
		}
		return out, nil
	}
}

func newTestMap(t *testing.T, nodes ...node) *Map {
	t.Helper()
	m := NewMap(gen(nodes...))
	if err := m.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return m
}

func revIDs(revs []*Revision) []string {
	out := make([]string, len(revs))
	for i, r := range revs {
		out[i] = r.ID
	}
	return out
}

func assertIDs(t *testing.T, what string, got, want []string) {
	t.Helper()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !slices.Equal(got, want) {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

func assertSameIDs(t *testing.T, what string, got, want []string) {
	t.Helper()
	g, w := slices.Clone(got), slices.Clone(want)
	slices.Sort(g)
	slices.Sort(w)
	assertIDs(t, what, g, w)
}

func parents(down ...string) []string { return down }

// chain is a -> b -> c -> d.
func chain() []node {
	return []node{
		{id: "a"},
		{id: "b", down: parents("a")},
		{id: "c", down: parents("b")},
		{id: "d", down: parents("c")},
	}
}

// diamond is a -> {b1, b2} -> c -> d.
func diamond() []node {
	return []node{
		{id: "a"},
		{id: "b1", down: parents("a")},
		{id: "b2", down: parents("a")},
		{id: "c", down: parents("b1", "b2")},
		{id: "d", down: parents("c")},
	}
}

// crossBranches is three labeled lineages where b1b and c2 depend on a3.
func crossBranches() []node {
	return []node{
		{id: "base1", labels: []string{"b_1"}},
		{id: "a1a", down: parents("base1")},
		{id: "b1a", down: parents("a1a")},
		{id: "a1b", down: parents("base1")},
		{id: "b1b", down: parents("a1b"), deps: []string{"a3"}},
		{id: "base2", labels: []string{"b_2"}},
		{id: "a2", down: parents("base2")},
		{id: "b2", down: parents("a2")},
		{id: "c2", down: parents("b2"), deps: []string{"a3"}},
		{id: "d2", down: parents("c2")},
		{id: "base3", labels: []string{"b_3"}},
		{id: "a3", down: parents("base3")},
		{id: "b3", down: parents("a3")},
	}
}
