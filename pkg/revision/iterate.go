package revision

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/revgraph/pkg/observability"
)

// IterOptions controls a walk between two bounds.
type IterOptions struct {
	// Inclusive includes the lower bound itself in the result.
	Inclusive bool
	// ImplicitBase treats the bases of lineages not covered by the lower
	// bound as additional lower bounds. Upgrades set it.
	ImplicitBase bool
	// SelectForDowngrade keeps revisions that merely depend on the lower
	// bound out of the walk. Downgrades set it.
	SelectForDowngrade bool
	// AssertRelativeLength fails a relative walk that cannot move the
	// requested number of steps.
	AssertRelativeLength bool
}

// Walk returns the revisions from upper down to lower, children before
// parents. The sequence is computed when iterated; ranging over it again
// re-runs the walk. An error is delivered as the final pair with a nil
// revision.
func (m *Map) Walk(upper, lower []string, opts IterOptions) iter.Seq2[*Revision, error] {
	return func(yield func(*Revision, error) bool) {
		revs, err := m.IterateRevisions(upper, lower, opts)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, r := range revs {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// IterateRevisions collects the walk from upper down to lower. Either bound
// may be a single relative identifier such as "+2" or "head-1".
func (m *Map) IterateRevisions(upper, lower []string, opts IterOptions) ([]*Revision, error) {
	if err := m.Build(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := time.Now()
	revs, err := m.iterate(upper, lower, opts)
	observability.Graph().OnIterate(strings.Join(upper, ","), strings.Join(lower, ","), len(revs), time.Since(start), err)
	return revs, err
}

func (m *Map) iterate(upper, lower []string, opts IterOptions) ([]*Revision, error) {
	upperID, lowerID := identOf(upper), identOf(lower)
	if rel, ok := upperID.(Relative); ok {
		return m.relativeIterate(rel, lowerID, true, opts)
	}
	if rel, ok := lowerID.(Relative); ok {
		return m.relativeIterate(rel, upperID, false, opts)
	}
	return m.iterateRevisions(upperID, lowerID, opts)
}

// relativeIterate resolves a relative bound by walking the full inclusive
// range towards the symbol and slicing the requested number of steps.
func (m *Map) relativeIterate(dest Relative, source Ident, upwards bool, opts IterOptions) ([]*Revision, error) {
	reldelta := 0
	if opts.Inclusive && dest.Symbol == "" {
		reldelta = 1
	}

	var from, to Ident
	if upwards {
		switch {
		case dest.Branch != "":
			from = Qualified{Branch: dest.Branch, Inner: Head{}}
		case strings.HasPrefix(dest.Symbol, "head"):
			from = parseSymbol(dest.Symbol)
		case dest.Symbol != "":
			from = Qualified{Branch: dest.Symbol, Inner: Head{}}
		default:
			from = Head{}
		}
		to = source
	} else {
		switch {
		case dest.Branch != "":
			to = Qualified{Branch: dest.Branch, Inner: Base{}}
		case dest.Symbol != "":
			to = Qualified{Branch: dest.Symbol, Inner: Base{}}
		default:
			to = Base{}
		}
		from = source
	}

	revs, err := m.iterateRevisions(from, to, IterOptions{Inclusive: opts.Inclusive, ImplicitBase: opts.ImplicitBase})
	if err != nil {
		return nil, err
	}

	index := 0
	switch {
	case dest.Symbol == "" || strings.HasPrefix(dest.Symbol, "head"):
	case dest.Symbol == "base":
		index = len(revs) - 1
	default:
		var symbol Ident = parseSymbol(dest.Symbol)
		if dest.Branch != "" {
			symbol = Qualified{Branch: dest.Branch, Inner: symbol}
		}
		rev, err := m.getRevision(symbol)
		if err != nil {
			return nil, err
		}
		for i := len(revs) - 1; i > 0; i-- {
			if rev != nil && revs[i].ID == rev.ID {
				index = i
				break
			}
		}
	}

	if upwards {
		revs = revs[pyIndex(index-dest.Offset-reldelta, len(revs)):]
		want := abs(dest.Offset - reldelta)
		if index == 0 && opts.AssertRelativeLength && len(revs) < want {
			return nil, &RevisionError{Message: fmt.Sprintf(
				"Relative revision %s didn't produce %d migrations", dest, want)}
		}
		return revs, nil
	}
	revs = revs[:pyIndex(index-dest.Offset+reldelta, len(revs))]
	want := abs(dest.Offset) + reldelta
	if index == 0 && opts.AssertRelativeLength && len(revs) != want {
		return nil, &RevisionError{Message: fmt.Sprintf(
			"Relative revision %s didn't produce %d migrations", dest, want)}
	}
	return revs, nil
}

// pyIndex clamps a possibly negative slice bound, counting negative values
// from the end.
func pyIndex(i, n int) int {
	if i < 0 {
		i += n
		if i < 0 {
			i = 0
		}
	}
	if i > n {
		i = n
	}
	return i
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// orderedSet is an insertion-ordered set of revision ids.
type orderedSet struct {
	ids   []string
	index map[string]bool
}

func newOrderedSet() *orderedSet { return &orderedSet{index: make(map[string]bool)} }

func (s *orderedSet) add(id string) {
	if !s.index[id] {
		s.index[id] = true
		s.ids = append(s.ids, id)
	}
}

func (s *orderedSet) has(id string) bool { return s.index[id] }

func (s *orderedSet) remove(id string) {
	if s.index[id] {
		delete(s.index, id)
		s.ids = slices.DeleteFunc(s.ids, func(x string) bool { return x == id })
	}
}

func (s *orderedSet) len() int { return len(s.index) }

// inOrder returns revs sorted by their position in the map's input order.
func (m *Map) inOrder(set map[string]bool) []*Revision {
	out := make([]*Revision, 0, len(set))
	for _, id := range m.order {
		if set[id] {
			out = append(out, m.revs[id])
		}
	}
	return out
}

// iterateRevisions is the deque walk from upper down to lower.
func (m *Map) iterateRevisions(upper, lower Ident, opts IterOptions) ([]*Revision, error) {
	requestedLowers, err := m.getRevisions(lower)
	if err != nil {
		return nil, err
	}
	uppers, err := m.getRevisions(upper)
	if err != nil {
		return nil, err
	}
	uppers = dedupeRevs(uppers)
	if len(uppers) == 0 && len(requestedLowers) == 0 {
		return nil, nil
	}

	upperAncestors, err := m.ancestors(uppers, true, true)
	if err != nil {
		return nil, err
	}
	upperSet := idSet(upperAncestors)

	var lowers []*Revision
	switch {
	case isBranchBase(lower):
		ids, err := m.filterForLineage(m.bases, lower, false)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			lowers = append(lowers, m.revs[id])
		}
	case opts.ImplicitBase && len(requestedLowers) > 0:
		lowerAnc, err := m.ancestors(requestedLowers, true, false)
		if err != nil {
			return nil, err
		}
		lowerDesc, err := m.descendants(requestedLowers, descendAll, false)
		if err != nil {
			return nil, err
		}
		candidates := make(map[string]bool, len(upperSet))
		for id := range upperSet {
			candidates[id] = true
		}
		for _, r := range append(lowerAnc, lowerDesc...) {
			delete(candidates, r.ID)
		}
		for _, rev := range m.inOrder(candidates) {
			isLowest := true
			for _, d := range rev.allDown() {
				if candidates[d] {
					isLowest = false
					break
				}
			}
			if isLowest {
				lowers = append(lowers, rev)
			}
		}
		lowers = dedupeRevs(append(lowers, requestedLowers...))
	case opts.ImplicitBase || len(requestedLowers) == 0:
		for _, id := range m.realBases {
			lowers = append(lowers, m.revs[id])
		}
		lowers = dedupeRevs(append(lowers, requestedLowers...))
	default:
		lowers = requestedLowers
	}

	mode := descendAll
	if opts.SelectForDowngrade && len(requestedLowers) > 0 {
		mode = descendOmitImmediateDeps
	}
	lowerDesc, err := m.descendants(lowers, mode, true)
	if err != nil {
		return nil, err
	}

	total := newOrderedSet()
	for _, r := range lowerDesc {
		if upperSet[r.ID] {
			total.add(r.ID)
		}
	}

	if total.len() == 0 {
		return nil, m.checkDisjointRange(requestedLowers, upperSet, upper, lower)
	}

	branchTodo := newOrderedSet()
	for _, id := range total.ids {
		rev := m.revs[id]
		if !rev.isRealBranchPoint() {
			continue
		}
		inSpace := 0
		for _, c := range rev.allNextrev {
			if total.has(c) {
				inSpace++
			}
		}
		if inSpace > 1 {
			branchTodo.add(id)
		}
	}

	var todo []*Revision
	for _, u := range uppers {
		if total.has(u.ID) {
			todo = append(todo, u)
		}
	}
	requested := idSet(requestedLowers)

	var out []*Revision
	for progressed := true; total.len() > 0; {
		if !progressed {
			return nil, &DependencyResolutionError{Message: "Dependency resolution failed; iteration can't proceed"}
		}
		progressed = false

		if len(todo) == 0 {
			var ready []*Revision
			for _, id := range branchTodo.ids {
				rev := m.revs[id]
				if !slices.ContainsFunc(rev.allNextrev, total.has) {
					ready = append(ready, rev)
				}
			}
			slices.SortStableFunc(ready, func(a, b *Revision) int {
				return branchKey(a) - branchKey(b)
			})
			for _, r := range ready {
				todo = append([]*Revision{r}, todo...)
				branchTodo.remove(r.ID)
			}
		}

		for len(todo) > 0 {
			rev := todo[0]
			todo = todo[1:]
			if !total.has(rev.ID) {
				continue
			}
			total.remove(rev.ID)
			progressed = true

			down := rev.normalizedDown()
			for i := len(down) - 1; i >= 0; i-- {
				if !branchTodo.has(down[i]) && total.has(down[i]) {
					todo = append([]*Revision{m.revs[down[i]]}, todo...)
				}
			}
			if !opts.Inclusive && requested[rev.ID] {
				continue
			}
			out = append(out, rev)
		}
	}
	return out, nil
}

// branchKey orders ready branch points ahead of plain dependency fan-outs.
func branchKey(r *Revision) int {
	if r.IsBranchPoint() {
		return 0
	}
	return 1
}

// checkDisjointRange decides whether an empty walk is legitimate. It is when
// some branch tip at or below the requested lowers is already below the
// upper bound; otherwise the range points the wrong way.
func (m *Map) checkDisjointRange(requestedLowers []*Revision, upperSet map[string]bool, upper, lower Ident) error {
	anc, err := m.ancestors(requestedLowers, true, false)
	if err != nil {
		return err
	}
	start := idSet(append(slices.Clone(requestedLowers), anc...))
	tips, err := m.filterIntoBranchHeads(start)
	if err != nil {
		return err
	}
	for id := range tips {
		if upperSet[id] {
			return nil
		}
	}
	return &RangeNotAncestorError{Lower: identArg(lower), Upper: identArg(upper)}
}

// filterIntoBranchHeads drops every member that has a structural descendant
// in the set.
func (m *Map) filterIntoBranchHeads(set map[string]bool) (map[string]bool, error) {
	out := make(map[string]bool, len(set))
	for id := range set {
		out[id] = true
	}
	for _, rev := range m.inOrder(set) {
		desc, err := m.descendants([]*Revision{rev}, descendStructural, false)
		if err != nil {
			return nil, err
		}
		for _, d := range desc {
			if d.ID != rev.ID && set[d.ID] {
				delete(out, rev.ID)
				break
			}
		}
	}
	return out, nil
}

func identArg(id Ident) string {
	if _, ok := id.(Base); ok {
		return ""
	}
	return id.String()
}

func dedupeRevs(revs []*Revision) []*Revision {
	seen := make(map[string]bool, len(revs))
	out := revs[:0:0]
	for _, r := range revs {
		if !seen[r.ID] {
			seen[r.ID] = true
			out = append(out, r)
		}
	}
	return out
}
