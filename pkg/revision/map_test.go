package revision

import (
	"errors"
	"strings"
	"testing"

	rgerrors "github.com/matzehuels/revgraph/pkg/errors"
)

func TestHeadsAndBases(t *testing.T) {
	tests := []struct {
		name      string
		nodes     []node
		heads     []string
		realHeads []string
		bases     []string
		realBases []string
	}{
		{
			name:      "empty",
			nodes:     nil,
			heads:     nil,
			realHeads: nil,
			bases:     nil,
			realBases: nil,
		},
		{
			name:      "chain",
			nodes:     chain(),
			heads:     []string{"d"},
			realHeads: []string{"d"},
			bases:     []string{"a"},
			realBases: []string{"a"},
		},
		{
			name: "branched",
			nodes: []node{
				{id: "a"},
				{id: "b", down: parents("a")},
				{id: "c1", down: parents("b")},
				{id: "c2", down: parents("b")},
			},
			heads:     []string{"c1", "c2"},
			realHeads: []string{"c1", "c2"},
			bases:     []string{"a"},
			realBases: []string{"a"},
		},
		{
			name:      "cross dependencies",
			nodes:     crossBranches(),
			heads:     []string{"b1a", "b1b", "d2", "b3"},
			realHeads: []string{"b1a", "b1b", "d2", "b3"},
			bases:     []string{"base1", "base2", "base3"},
			realBases: []string{"base1", "base2", "base3"},
		},
		{
			name: "dependency only head",
			nodes: []node{
				{id: "a"},
				{id: "x"},
				{id: "y", down: parents("x"), deps: []string{"a"}},
			},
			heads:     []string{"a", "y"},
			realHeads: []string{"y"},
			bases:     []string{"a", "x"},
			realBases: []string{"a", "x"},
		},
		{
			name: "base with dependency",
			nodes: []node{
				{id: "a"},
				{id: "z", deps: []string{"a"}},
			},
			heads:     []string{"a", "z"},
			realHeads: []string{"z"},
			bases:     []string{"a", "z"},
			realBases: []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMap(t, tt.nodes...)
			heads, _ := m.Heads()
			realHeads, _ := m.RealHeads()
			bases, _ := m.Bases()
			realBases, _ := m.RealBases()
			assertIDs(t, "Heads()", heads, tt.heads)
			assertIDs(t, "RealHeads()", realHeads, tt.realHeads)
			assertIDs(t, "Bases()", bases, tt.bases)
			assertIDs(t, "RealBases()", realBases, tt.realBases)
		})
	}
}

func TestChildren(t *testing.T) {
	m := newTestMap(t, crossBranches()...)
	a3, _ := m.GetRevision("a3")
	assertIDs(t, "NextRevisions()", a3.NextRevisions(), []string{"b3"})
	assertIDs(t, "AllNextRevisions()", a3.AllNextRevisions(), []string{"b1b", "c2", "b3"})
	if a3.IsBranchPoint() {
		t.Error("a3 has one structural child and is not a branch point")
	}

	c2, _ := m.GetRevision("c2")
	assertIDs(t, "AllDownRevisions()", c2.AllDownRevisions(), []string{"b2", "a3"})
	if c2.IsMergePoint() {
		t.Error("dependencies do not make a merge point")
	}
}

func TestDependencyOnBranchLabel(t *testing.T) {
	m := newTestMap(t,
		node{id: "a", labels: []string{"billing"}},
		node{id: "b", down: parents("a")},
		node{id: "x"},
		node{id: "y", down: parents("x"), deps: []string{"billing"}},
	)
	y, _ := m.GetRevision("y")
	assertIDs(t, "Dependencies", y.Dependencies, []string{"billing"})
	assertIDs(t, "ResolvedDependencies()", y.ResolvedDependencies(), []string{"a"})
}

func TestNormalizedDownRevisions(t *testing.T) {
	m := newTestMap(t,
		node{id: "a1"},
		node{id: "a2", down: parents("a1")},
		node{id: "a3", down: parents("a2")},
		node{id: "b1"},
		node{id: "b2", down: parents("b1"), deps: []string{"a3"}},
		node{id: "b3", down: parents("b2")},
		node{id: "b4", down: parents("b3"), deps: []string{"a3"}},
		node{id: "b5", down: parents("b4")},
	)

	b4, _ := m.GetRevision("b4")
	assertIDs(t, "b4 NormalizedDownRevisions()", b4.NormalizedDownRevisions(), []string{"b3"})
	assertIDs(t, "b4 AllDownRevisions()", b4.AllDownRevisions(), []string{"b3", "a3"})
	assertIDs(t, "b4 Dependencies", b4.Dependencies, []string{"a3"})

	b2, _ := m.GetRevision("b2")
	assertIDs(t, "b2 NormalizedDownRevisions()", b2.NormalizedDownRevisions(), []string{"b1", "a3"})
}

func TestBranchPropagation(t *testing.T) {
	m := newTestMap(t, crossBranches()...)
	tests := []struct {
		id   string
		want []string
	}{
		{"base1", []string{"b_1"}},
		{"b1b", []string{"b_1"}},
		{"d2", []string{"b_2"}},
		{"a3", []string{"b_3"}},
		{"b3", []string{"b_3"}},
	}
	for _, tt := range tests {
		r, _ := m.GetRevision(tt.id)
		assertIDs(t, tt.id+" Branches()", r.Branches(), tt.want)
	}
}

func TestBranchPropagationDownChain(t *testing.T) {
	m := newTestMap(t,
		node{id: "a"},
		node{id: "b", down: parents("a")},
		node{id: "c1", down: parents("b")},
		node{id: "c2", down: parents("b")},
		node{id: "d1", down: parents("c1"), labels: []string{"left"}},
	)
	c1, _ := m.GetRevision("c1")
	assertIDs(t, "c1 Branches()", c1.Branches(), []string{"left"})
	b, _ := m.GetRevision("b")
	assertIDs(t, "b Branches()", b.Branches(), nil)
	c2, _ := m.GetRevision("c2")
	assertIDs(t, "c2 Branches()", c2.Branches(), nil)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		nodes  []node
		check  func(error) bool
		msg    string
		code   rgerrors.Code
		target error
	}{
		{
			name:  "cycle",
			nodes: []node{{id: "a", down: parents("c")}, {id: "b", down: parents("a")}, {id: "c", down: parents("b")}},
			check: func(err error) bool {
				var e *CycleDetectedError
				return errors.As(err, &e)
			},
			msg:    "Cycle is detected in revisions (a, b, c)",
			code:   rgerrors.ErrCodeCycleDetected,
			target: ErrCycleDetected,
		},
		{
			name: "dependency cycle",
			nodes: []node{
				{id: "a"},
				{id: "b", down: parents("a"), deps: []string{"c"}},
				{id: "c", down: parents("b")},
			},
			check: func(err error) bool {
				var e *DependencyCycleDetectedError
				return errors.As(err, &e)
			},
			msg:    "Dependency cycle is detected in revisions (b, c)",
			code:   rgerrors.ErrCodeCycleDetected,
			target: ErrDependencyCycleDetected,
		},
		{
			name:  "self loop",
			nodes: []node{{id: "a", down: parents("a")}},
			check: func(err error) bool {
				var e *LoopDetectedError
				return errors.As(err, &e)
			},
			msg:    "Self-loop is detected in revisions (a)",
			target: ErrCycleDetected,
		},
		{
			name:  "self dependency through label",
			nodes: []node{{id: "a", labels: []string{"x"}, deps: []string{"x"}}},
			check: func(err error) bool {
				var e *DependencyLoopDetectedError
				return errors.As(err, &e)
			},
			msg:    "Dependency self-loop is detected in revisions (a)",
			target: ErrDependencyCycleDetected,
		},
		{
			name:  "missing dependency",
			nodes: []node{{id: "a"}, {id: "b", down: parents("a"), deps: []string{"nope"}}},
			check: func(err error) bool {
				var e *DependencyResolutionError
				return errors.As(err, &e)
			},
			msg:  "Dependency resolution failed; revision b depends on nope which is not present",
			code: rgerrors.ErrCodeDependencyResolution,
		},
		{
			name:  "label collides with label",
			nodes: []node{{id: "a", labels: []string{"x"}}, {id: "b", labels: []string{"x"}}},
			check: func(err error) bool {
				var e *RevisionError
				return errors.As(err, &e)
			},
			msg: "Branch name 'x' in revision b already used by revision a",
		},
		{
			name:  "label collides with id",
			nodes: []node{{id: "a", labels: []string{"b"}}, {id: "b"}},
			check: func(err error) bool {
				var e *RevisionError
				return errors.As(err, &e)
			},
			msg: "Branch name 'b' in revision a already used by revision b",
		},
		{
			name:  "reserved id",
			nodes: []node{{id: "heads"}},
			check: func(err error) bool {
				var e *RevisionError
				return errors.As(err, &e)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMap(gen(tt.nodes...))
			err := m.Build()
			if err == nil {
				t.Fatal("Build() error = nil, want error")
			}
			if !tt.check(err) {
				t.Errorf("Build() error type = %T (%v)", err, err)
			}
			if !errors.Is(err, ErrRevision) {
				t.Errorf("errors.Is(err, ErrRevision) = false")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("errors.Is(err, %v) = false", tt.target)
			}
			if tt.msg != "" && err.Error() != tt.msg {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.msg)
			}
			if tt.code != "" && rgerrors.GetCode(err) != tt.code {
				t.Errorf("GetCode() = %v, want %v", rgerrors.GetCode(err), tt.code)
			}
		})
	}
}

func TestBuildErrorIsSticky(t *testing.T) {
	calls := 0
	loadErr := errors.New("manifest unreadable")
	m := NewMap(func() ([]*Revision, error) {
		calls++
		return nil, loadErr
	})

	for range 3 {
		if err := m.Build(); !errors.Is(err, loadErr) {
			t.Fatalf("Build() error = %v, want %v", err, loadErr)
		}
	}
	if _, err := m.Heads(); !errors.Is(err, loadErr) {
		t.Errorf("Heads() error = %v, want %v", err, loadErr)
	}
	if calls != 1 {
		t.Errorf("generator called %d times, want 1", calls)
	}
}

func TestLazyBuild(t *testing.T) {
	calls := 0
	m := NewMap(func() ([]*Revision, error) {
		calls++
		return []*Revision{{ID: "a"}}, nil
	})
	if calls != 0 {
		t.Fatal("generator ran before first use")
	}
	if _, err := m.Heads(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Bases(); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("generator called %d times, want 1", calls)
	}
}

func TestRepairs(t *testing.T) {
	t.Run("missing down revision", func(t *testing.T) {
		m := newTestMap(t, node{id: "a"}, node{id: "b", down: parents("a", "gone")})
		repairs, _ := m.Repairs()
		if len(repairs) != 1 || repairs[0].Kind != RepairMissingDownRevision || repairs[0].Reference != "gone" {
			t.Fatalf("Repairs() = %+v", repairs)
		}
		b, _ := m.GetRevision("b")
		assertIDs(t, "DownRevisions", b.DownRevisions, []string{"a"})
	})

	t.Run("missing only parent makes a base", func(t *testing.T) {
		m := newTestMap(t, node{id: "a"}, node{id: "b", down: parents("gone")})
		bases, _ := m.Bases()
		assertIDs(t, "Bases()", bases, []string{"a", "b"})
	})

	t.Run("strict", func(t *testing.T) {
		m := NewMap(gen(node{id: "b", down: parents("gone")}), WithStrict())
		err := m.Build()
		var e *RevisionError
		if !errors.As(err, &e) {
			t.Fatalf("Build() error = %v, want *RevisionError", err)
		}
		if !strings.Contains(err.Error(), "gone") {
			t.Errorf("Error() = %q, want mention of missing revision", err.Error())
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		m := newTestMap(t,
			node{id: "a"},
			node{id: "b", down: parents("a"), doc: "first"},
			node{id: "c"},
			node{id: "b", doc: "second"},
		)
		repairs, _ := m.Repairs()
		if len(repairs) != 1 || repairs[0].Kind != RepairDuplicate {
			t.Fatalf("Repairs() = %+v", repairs)
		}
		b, _ := m.GetRevision("b")
		if b.Doc != "second" {
			t.Errorf("Doc = %q, want later definition", b.Doc)
		}
		revs, _ := m.Revisions()
		assertIDs(t, "Revisions()", revIDs(revs), []string{"a", "b", "c"})
		heads, _ := m.Heads()
		assertIDs(t, "Heads()", heads, []string{"a", "b", "c"})
	})
}

func TestAddRevision(t *testing.T) {
	m := newTestMap(t, node{id: "a"}, node{id: "b", down: parents("a")})

	c, _ := NewRevision("c", []string{"b"})
	if err := m.AddRevision(c); err != nil {
		t.Fatalf("AddRevision(c) error = %v", err)
	}
	heads, _ := m.Heads()
	assertIDs(t, "Heads() after c", heads, []string{"c"})

	d, _ := NewRevision("d", []string{"b"}, WithBranchLabels("side"))
	if err := m.AddRevision(d); err != nil {
		t.Fatalf("AddRevision(d) error = %v", err)
	}
	heads, _ = m.Heads()
	assertIDs(t, "Heads() after d", heads, []string{"c", "d"})

	b, _ := m.GetRevision("b")
	if !b.IsBranchPoint() {
		t.Error("b should be a branch point")
	}
	got, err := m.GetRevision("side@head")
	if err != nil || got.ID != "d" {
		t.Errorf("GetRevision(side@head) = %v, %v", got, err)
	}

	x, _ := NewRevision("x", nil)
	if err := m.AddRevision(x); err != nil {
		t.Fatal(err)
	}
	y, _ := NewRevision("y", []string{"x"}, DependsOn("c"))
	if err := m.AddRevision(y); err != nil {
		t.Fatal(err)
	}
	realHeads, _ := m.RealHeads()
	assertIDs(t, "RealHeads()", realHeads, []string{"d", "y"})
	bases, _ := m.Bases()
	assertIDs(t, "Bases()", bases, []string{"a", "x"})

	bad, _ := NewRevision("z", nil, DependsOn("nowhere"))
	var dre *DependencyResolutionError
	if err := m.AddRevision(bad); !errors.As(err, &dre) {
		t.Errorf("AddRevision(z) error = %v, want *DependencyResolutionError", err)
	}
	clash, _ := NewRevision("w", nil, WithBranchLabels("side"))
	if err := m.AddRevision(clash); err == nil {
		t.Error("AddRevision(w) with used label succeeded")
	}
	if _, err := m.GetRevision("w"); err == nil {
		t.Error("failed add left w in the map")
	}

	named, _ := NewRevision("side", []string{"d"})
	var re *RevisionError
	if err := m.AddRevision(named); !errors.As(err, &re) {
		t.Fatalf("AddRevision(side) error = %v, want *RevisionError", err)
	}
	if !strings.Contains(re.Error(), "Branch name 'side' in revision d already used by revision side") {
		t.Errorf("Error() = %q", re.Error())
	}
	for _, id := range []string{"side", "side@head"} {
		if got, err := m.GetRevision(id); err != nil || got.ID != "d" {
			t.Errorf("GetRevision(%s) = %v, %v, want d", id, got, err)
		}
	}
}

func TestAddRevisionMatchesBuildOnLabelClash(t *testing.T) {
	_, err := NewMap(gen(
		node{id: "aaaa", labels: []string{"feature"}},
		node{id: "feature", down: parents("aaaa")},
	)).Len()
	if err == nil {
		t.Fatal("Build() accepted a revision named after a branch label")
	}

	m := newTestMap(t, node{id: "aaaa", labels: []string{"feature"}})
	rev, _ := NewRevision("feature", []string{"aaaa"})
	addErr := m.AddRevision(rev)
	if addErr == nil || addErr.Error() != err.Error() {
		t.Errorf("AddRevision() error = %v, want %v", addErr, err)
	}
}

func TestReplaceRevision(t *testing.T) {
	m := newTestMap(t, chain()...)

	c, _ := NewRevision("c", []string{"a"}, WithDoc("rebased"))
	if err := m.ReplaceRevision(c); err != nil {
		t.Fatalf("ReplaceRevision(c) error = %v", err)
	}
	heads, _ := m.Heads()
	assertIDs(t, "Heads()", heads, []string{"b", "d"})
	a, _ := m.GetRevision("a")
	assertIDs(t, "a NextRevisions()", a.NextRevisions(), []string{"b", "c"})
	d, _ := m.GetRevision("d")
	assertIDs(t, "d DownRevisions", d.DownRevisions, []string{"c"})
	got, _ := m.GetRevision("c")
	assertIDs(t, "c NextRevisions()", got.NextRevisions(), []string{"d"})

	loop, _ := NewRevision("a", []string{"d"})
	err := m.ReplaceRevision(loop)
	var cyc *CycleDetectedError
	if !errors.As(err, &cyc) {
		t.Fatalf("ReplaceRevision(a) error = %v, want *CycleDetectedError", err)
	}
	a, _ = m.GetRevision("a")
	if !a.IsBase() {
		t.Error("failed replace modified the map")
	}
	heads, _ = m.Heads()
	assertIDs(t, "Heads() after failed replace", heads, []string{"b", "d"})

	unknown, _ := NewRevision("q", nil)
	var re *RevisionError
	if err := m.ReplaceRevision(unknown); !errors.As(err, &re) {
		t.Errorf("ReplaceRevision(q) error = %v, want *RevisionError", err)
	}
}

func TestAddDuplicateRecordsRepair(t *testing.T) {
	m := newTestMap(t, chain()...)
	b, _ := NewRevision("b", []string{"a"}, WithDoc("again"))
	if err := m.AddRevision(b); err != nil {
		t.Fatal(err)
	}
	repairs, _ := m.Repairs()
	if len(repairs) != 1 || repairs[0].Kind != RepairDuplicate || repairs[0].Revision != "b" {
		t.Errorf("Repairs() = %+v", repairs)
	}
	n, _ := m.Len()
	if n != 4 {
		t.Errorf("Len() = %d, want 4", n)
	}
	got, _ := m.GetRevision("b")
	assertIDs(t, "b NextRevisions()", got.NextRevisions(), []string{"c"})
}

func TestRejectedAddRecordsNoRepair(t *testing.T) {
	m := newTestMap(t, chain()...)

	loop, _ := NewRevision("a", []string{"d"})
	var cyc *CycleDetectedError
	if err := m.AddRevision(loop); !errors.As(err, &cyc) {
		t.Fatalf("AddRevision(a) error = %v, want *CycleDetectedError", err)
	}
	orphan, _ := NewRevision("e", []string{"gone"}, DependsOn("nowhere"))
	if err := m.AddRevision(orphan); err == nil {
		t.Fatal("AddRevision(e) with unknown dependency succeeded")
	}
	if repairs, _ := m.Repairs(); len(repairs) != 0 {
		t.Errorf("Repairs() after rejected adds = %+v, want none", repairs)
	}
}

func TestReturnedRevisionsAreLiveViews(t *testing.T) {
	m := newTestMap(t, chain()...)
	d, _ := m.GetRevision("d")
	if !d.IsHead() {
		t.Fatal("d should start as a head")
	}

	e, _ := NewRevision("e", []string{"d"})
	if err := m.AddRevision(e); err != nil {
		t.Fatal(err)
	}
	if d.IsHead() {
		t.Error("revision returned before the add still reports IsHead()")
	}
	assertIDs(t, "d NextRevisions()", d.NextRevisions(), []string{"e"})
}
