package plan

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/revgraph/pkg/revision"
)

// Direction tells whether a step applies or reverts its revision.
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Down {
		return "downgrade"
	}
	return "upgrade"
}

// Step applies or reverts one revision.
type Step struct {
	Revision  *revision.Revision
	Direction Direction

	m *revision.Map
}

// NewStep returns a step for rev within m.
func NewStep(m *revision.Map, rev *revision.Revision, dir Direction) Step {
	return Step{Revision: rev, Direction: dir, m: m}
}

func (s Step) IsUpgrade() bool   { return s.Direction == Up }
func (s Step) IsDowngrade() bool { return s.Direction == Down }

// FromRevisions are the heads this step starts from.
func (s Step) FromRevisions() []string {
	if s.IsUpgrade() {
		return s.Revision.NormalizedDownRevisions()
	}
	return []string{s.Revision.ID}
}

// ToRevisions are the heads this step leaves behind.
func (s Step) ToRevisions() []string {
	if s.IsUpgrade() {
		return []string{s.Revision.ID}
	}
	return s.Revision.NormalizedDownRevisions()
}

func (s Step) String() string {
	from, to := s.FromRevisions(), s.ToRevisions()
	return fmt.Sprintf("%s %s -> %s, %s", s.Direction, joinOrBase(from), joinOrBase(to), s.Revision.Doc)
}

// ShouldCreateBranch reports whether an upgrade starts a new head because
// none of its parents is currently applied.
func (s Step) ShouldCreateBranch(heads []string) bool {
	if !s.IsUpgrade() {
		return false
	}
	down := s.Revision.NormalizedDownRevisions()
	return len(down) == 0 || !intersects(heads, down)
}

// ShouldDeleteBranch reports whether a downgrade removes its head outright.
func (s Step) ShouldDeleteBranch(heads []string) bool {
	if !s.IsDowngrade() || !slices.Contains(heads, s.Revision.ID) {
		return false
	}
	if len(s.Revision.NormalizedDownRevisions()) == 0 {
		return true
	}
	return len(s.unmergeTo(heads)) == 0
}

// ShouldMergeBranches reports whether an upgrade joins several applied
// heads into one.
func (s Step) ShouldMergeBranches(heads []string) bool {
	if !s.IsUpgrade() {
		return false
	}
	down := s.Revision.NormalizedDownRevisions()
	return len(down) > 1 && countIn(heads, down) > 1
}

// ShouldUnmergeBranches reports whether a downgrade splits a merge head back
// into its parents.
func (s Step) ShouldUnmergeBranches(heads []string) bool {
	if !s.IsDowngrade() {
		return false
	}
	return slices.Contains(heads, s.Revision.ID) && len(s.Revision.NormalizedDownRevisions()) > 1
}

// MergeBranchIdents returns the heads to delete and the single head update
// that complete a merge.
func (s Step) MergeBranchIdents(heads []string) (deletes []string, from, to string) {
	fromRevs := s.FromRevisions()
	others := without(heads, fromRevs)
	if len(others) > 0 {
		anc := s.ancestorIDs(others)
		fromRevs = slices.DeleteFunc(fromRevs, func(id string) bool { return anc[id] })
	}
	if len(fromRevs) == 0 {
		return nil, "", s.ToRevisions()[0]
	}
	last := len(fromRevs) - 1
	return fromRevs[:last], fromRevs[last], s.ToRevisions()[0]
}

// UnmergeBranchIdents returns the head update and the extra heads to insert
// that undo a merge.
func (s Step) UnmergeBranchIdents(heads []string) (from, to string, inserts []string) {
	toRevs := s.unmergeTo(heads)
	if len(toRevs) == 0 {
		return s.FromRevisions()[0], "", nil
	}
	last := len(toRevs) - 1
	return s.FromRevisions()[0], toRevs[last], toRevs[:last]
}

// UpdateVersion returns the single head move this step performs. It fails
// when the step has several parents and not exactly one of them is applied.
func (s Step) UpdateVersion(heads []string) (from, to string, err error) {
	down := s.Revision.NormalizedDownRevisions()
	var parent string
	if len(down) == 1 {
		parent = down[0]
	} else {
		applied := intersection(heads, down)
		if len(applied) != 1 {
			return "", "", fmt.Errorf("cannot update version of %s: down revision is ambiguous among %v", s.Revision.ID, applied)
		}
		parent = applied[0]
	}
	if s.IsUpgrade() {
		return parent, s.Revision.ID, nil
	}
	return s.Revision.ID, parent, nil
}

// unmergeTo lists the parents that become heads when this step is undone,
// skipping any parent still reachable from another head.
func (s Step) unmergeTo(heads []string) []string {
	to := s.ToRevisions()
	others := without(heads, []string{s.Revision.ID})
	if len(others) == 0 {
		return to
	}
	anc := s.ancestorIDs(others)
	return slices.DeleteFunc(to, func(id string) bool { return anc[id] })
}

func (s Step) ancestorIDs(ids []string) map[string]bool {
	out := make(map[string]bool)
	if s.m == nil {
		return out
	}
	revs, err := s.m.Ancestors(ids, true)
	if err != nil {
		return out
	}
	for _, r := range revs {
		out[r.ID] = true
	}
	return out
}

func intersects(a, b []string) bool {
	return slices.ContainsFunc(a, func(x string) bool { return slices.Contains(b, x) })
}

func countIn(a, b []string) int {
	return len(intersection(a, b))
}

// intersection keeps the elements of b present in a, in b's order.
func intersection(a, b []string) []string {
	var out []string
	for _, x := range b {
		if slices.Contains(a, x) {
			out = append(out, x)
		}
	}
	return out
}

// without returns a minus b, in a's order.
func without(a, b []string) []string {
	var out []string
	for _, x := range a {
		if !slices.Contains(b, x) {
			out = append(out, x)
		}
	}
	return out
}

func joinOrBase(ids []string) string {
	if len(ids) == 0 {
		return "<base>"
	}
	return strings.Join(ids, ", ")
}
