package plan

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/matzehuels/revgraph/pkg/revision"
)

type node struct {
	id     string
	down   []string
	labels []string
}

func newMap(t *testing.T, nodes ...node) *revision.Map {
	t.Helper()
	m := revision.NewMap(func() ([]*revision.Revision, error) {
		var out []*revision.Revision
		for _, s := range nodes {
			r, err := revision.NewRevision(s.id, s.down, revision.WithBranchLabels(s.labels...), revision.WithDoc("step "+s.id))
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
		return out, nil
	})
	if err := m.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return m
}

func chain(t *testing.T) *revision.Map {
	return newMap(t, node{id: "a"}, node{id: "b", down: []string{"a"}}, node{id: "c", down: []string{"b"}})
}

func diamond(t *testing.T) *revision.Map {
	return newMap(t,
		node{id: "a"},
		node{id: "b1", down: []string{"a"}},
		node{id: "b2", down: []string{"a"}},
		node{id: "c", down: []string{"b1", "b2"}},
	)
}

// recorder is a VersionWriter that logs every call.
type recorder struct {
	ops  []string
	fail error
}

func (r *recorder) Insert(_ context.Context, id string) error {
	r.ops = append(r.ops, "insert "+id)
	return r.fail
}

func (r *recorder) Delete(_ context.Context, id string) error {
	r.ops = append(r.ops, "delete "+id)
	return r.fail
}

func (r *recorder) Update(_ context.Context, from, to string) error {
	r.ops = append(r.ops, fmt.Sprintf("update %s %s", from, to))
	return r.fail
}

func stepIDs(steps []Step) []string {
	var ids []string
	for _, s := range steps {
		ids = append(ids, s.Revision.ID)
	}
	return ids
}

func apply(t *testing.T, hm *HeadMaintainer, steps []Step) {
	t.Helper()
	for _, s := range steps {
		if err := hm.Apply(context.Background(), s); err != nil {
			t.Fatalf("Apply(%s) error = %v", s, err)
		}
	}
}

func TestUpgradeDowngradeChain(t *testing.T) {
	m := chain(t)
	rec := &recorder{}
	hm := NewHeadMaintainer(rec, nil, nil)

	steps, err := Upgrade(m, nil, "heads")
	if err != nil {
		t.Fatal(err)
	}
	if got := stepIDs(steps); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("Upgrade() = %v", got)
	}
	apply(t, hm, steps)
	if !slices.Equal(hm.Heads(), []string{"c"}) {
		t.Errorf("Heads() after upgrade = %v", hm.Heads())
	}

	steps, err = Downgrade(m, hm.Heads(), "base")
	if err != nil {
		t.Fatal(err)
	}
	if got := stepIDs(steps); !slices.Equal(got, []string{"c", "b", "a"}) {
		t.Fatalf("Downgrade() = %v", got)
	}
	apply(t, hm, steps)
	if len(hm.Heads()) != 0 {
		t.Errorf("Heads() after downgrade = %v", hm.Heads())
	}

	want := []string{"insert a", "update a b", "update b c", "update c b", "update b a", "delete a"}
	if !slices.Equal(rec.ops, want) {
		t.Errorf("ops = %v, want %v", rec.ops, want)
	}
}

func TestMergeAndUnmerge(t *testing.T) {
	m := diamond(t)
	rec := &recorder{}
	hm := NewHeadMaintainer(rec, nil, nil)

	steps, err := Upgrade(m, nil, "heads")
	if err != nil {
		t.Fatal(err)
	}
	if got := stepIDs(steps); !slices.Equal(got, []string{"a", "b2", "b1", "c"}) {
		t.Fatalf("Upgrade() = %v", got)
	}
	apply(t, hm, steps)
	wantUp := []string{"insert a", "update a b2", "insert b1", "delete b1", "update b2 c"}
	if !slices.Equal(rec.ops, wantUp) {
		t.Errorf("upgrade ops = %v, want %v", rec.ops, wantUp)
	}

	rec.ops = nil
	steps, err = Downgrade(m, hm.Heads(), "a")
	if err != nil {
		t.Fatal(err)
	}
	apply(t, hm, steps)
	wantDown := []string{"insert b1", "update c b2", "delete b1", "update b2 a"}
	if !slices.Equal(rec.ops, wantDown) {
		t.Errorf("downgrade ops = %v, want %v", rec.ops, wantDown)
	}
	if !slices.Equal(hm.Heads(), []string{"a"}) {
		t.Errorf("Heads() = %v", hm.Heads())
	}
}

func TestStepPredicates(t *testing.T) {
	m := diamond(t)
	c, _ := m.GetRevision("c")
	b1, _ := m.GetRevision("b1")
	a, _ := m.GetRevision("a")

	up := NewStep(m, c, Up)
	if !up.ShouldMergeBranches([]string{"b1", "b2"}) {
		t.Error("merge expected with both parents applied")
	}
	if up.ShouldMergeBranches([]string{"b1"}) {
		t.Error("merge not expected with one parent applied")
	}
	if !up.ShouldCreateBranch(nil) {
		t.Error("create expected with no parent applied")
	}
	if !slices.Equal(up.FromRevisions(), []string{"b1", "b2"}) || !slices.Equal(up.ToRevisions(), []string{"c"}) {
		t.Errorf("from/to = %v/%v", up.FromRevisions(), up.ToRevisions())
	}

	down := NewStep(m, c, Down)
	if !down.ShouldUnmergeBranches([]string{"c"}) || down.ShouldDeleteBranch([]string{"c"}) {
		t.Error("unmerge expected when downgrading the merge head")
	}
	if _, _, err := down.UpdateVersion(nil); err == nil {
		t.Error("UpdateVersion() error = nil for ambiguous parent")
	}

	if !NewStep(m, a, Down).ShouldDeleteBranch([]string{"a"}) {
		t.Error("downgrading a base head deletes the branch")
	}
	if !NewStep(m, b1, Down).ShouldDeleteBranch([]string{"b1", "b2"}) {
		t.Error("downgrading b1 while b2 still needs a deletes the branch")
	}
	if NewStep(m, b1, Down).ShouldDeleteBranch([]string{"b2"}) {
		t.Error("delete reported for a revision that is not a head")
	}

	if got := NewStep(m, a, Up).String(); got != "upgrade <base> -> a, step a" {
		t.Errorf("String() = %q", got)
	}
	if got := down.String(); got != "downgrade c -> b1, b2, step c" {
		t.Errorf("String() = %q", got)
	}
}

func TestRelativePlans(t *testing.T) {
	m := chain(t)

	steps, err := Upgrade(m, []string{"a"}, "+1")
	if err != nil || !slices.Equal(stepIDs(steps), []string{"b"}) {
		t.Errorf("Upgrade(+1) = %v, %v", stepIDs(steps), err)
	}
	steps, err = Downgrade(m, []string{"c"}, "-1")
	if err != nil || !slices.Equal(stepIDs(steps), []string{"c"}) {
		t.Errorf("Downgrade(-1) = %v, %v", stepIDs(steps), err)
	}
	if _, err := Upgrade(m, []string{"a"}, "+5"); !errors.Is(err, revision.ErrRevision) {
		t.Errorf("Upgrade(+5) error = %v, want revision error", err)
	}
	if _, err := Downgrade(m, []string{"b"}, "c"); !errors.Is(err, revision.ErrRevision) {
		t.Errorf("Downgrade(b -> c) error = %v, want revision error", err)
	}
}

func TestStamp(t *testing.T) {
	m := newMap(t,
		node{id: "a", labels: []string{"x"}},
		node{id: "b", down: []string{"a"}},
		node{id: "c", labels: []string{"y"}},
	)

	tests := []struct {
		name    string
		current []string
		dest    []string
		purge   bool
		want    []string
	}{
		{"new lineage", []string{"b"}, []string{"c"}, false, []string{"b", "c"}},
		{"same lineage", []string{"b", "c"}, []string{"a"}, false, []string{"c", "a"}},
		{"heads", []string{"a"}, []string{"heads"}, false, []string{"b", "c"}},
		{"base", []string{"b", "c"}, []string{"base"}, false, nil},
		{"branch base", []string{"b", "c"}, []string{"x@base"}, false, []string{"c"}},
		{"purge", []string{"b"}, []string{"c"}, true, []string{"c"}},
		{"already there", []string{"b"}, []string{"b"}, false, []string{"b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Stamp(m, tt.current, tt.dest, tt.purge)
			if err != nil {
				t.Fatalf("Stamp() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Stamp() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := Stamp(m, nil, []string{"nope"}, false); err == nil {
		t.Error("Stamp(unknown) error = nil")
	}
}

func TestHeadMaintainerReset(t *testing.T) {
	rec := &recorder{}
	hm := NewHeadMaintainer(rec, []string{"a", "b"}, nil)
	if err := hm.Reset(context.Background(), []string{"b", "c"}); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(rec.ops, []string{"delete a", "insert c"}) {
		t.Errorf("ops = %v", rec.ops)
	}
	if !slices.Equal(hm.Heads(), []string{"b", "c"}) {
		t.Errorf("Heads() = %v", hm.Heads())
	}
}

func TestHeadMaintainerErrors(t *testing.T) {
	m := chain(t)
	b, _ := m.GetRevision("b")
	ctx := context.Background()

	boom := errors.New("store down")
	rec := &recorder{fail: boom}
	hm := NewHeadMaintainer(rec, []string{"a"}, nil)
	if err := hm.Apply(ctx, NewStep(m, b, Up)); !errors.Is(err, boom) {
		t.Errorf("Apply() error = %v, want writer error", err)
	}
	if !slices.Equal(hm.Heads(), []string{"a"}) {
		t.Errorf("failed write changed heads to %v", hm.Heads())
	}

	a, _ := m.GetRevision("a")
	dry := NewHeadMaintainer(nil, []string{"a"}, nil)
	if err := dry.Apply(ctx, NewStep(m, a, Up)); err == nil {
		t.Error("inserting an applied head twice should fail")
	}
}
