package revision

import (
	"fmt"
	"sort"
	"strings"
)

type descendMode int

const (
	// descendAll follows children through parent and dependency edges.
	descendAll descendMode = iota
	// descendStructural follows parent edges only.
	descendStructural
	// descendOmitImmediateDeps follows parent edges out of the targets
	// themselves and all edges everywhere else.
	descendOmitImmediateDeps
)

// ancestors walks down from targets. With includeDeps the walk follows
// normalized down revisions, otherwise parents only. The targets themselves
// are part of the result.
func (m *Map) ancestors(targets []*Revision, includeDeps, check bool) ([]*Revision, error) {
	next := func(r *Revision) []string { return r.DownRevisions }
	if includeDeps {
		next = (*Revision).normalizedDown
	}
	return m.related(targets, next, check)
}

// descendants walks up from targets. The targets themselves are part of the
// result.
func (m *Map) descendants(targets []*Revision, mode descendMode, check bool) ([]*Revision, error) {
	var next func(*Revision) []string
	switch mode {
	case descendStructural:
		next = func(r *Revision) []string { return r.nextrev }
	case descendOmitImmediateDeps:
		isTarget := make(map[string]bool, len(targets))
		for _, t := range targets {
			isTarget[t.ID] = true
		}
		next = func(r *Revision) []string {
			if isTarget[r.ID] {
				return r.nextrev
			}
			return r.allNextrev
		}
	default:
		next = func(r *Revision) []string { return r.allNextrev }
	}
	return m.related(targets, next, check)
}

// related collects every revision reachable from targets through next. With
// check set, a target whose walk reaches another target is an error.
func (m *Map) related(targets []*Revision, next func(*Revision) []string, check bool) ([]*Revision, error) {
	isTarget := make(map[string]bool, len(targets))
	for _, t := range targets {
		isTarget[t.ID] = true
	}

	seen := make(map[string]bool)
	var out []*Revision
	for _, target := range targets {
		todo := []*Revision{target}
		var perTarget map[string]bool
		if check {
			perTarget = make(map[string]bool)
		}
		for len(todo) > 0 {
			rev := todo[len(todo)-1]
			todo = todo[:len(todo)-1]
			if check {
				perTarget[rev.ID] = true
			}
			if seen[rev.ID] {
				continue
			}
			seen[rev.ID] = true
			for _, id := range next(rev) {
				nr, ok := m.revs[id]
				if !ok {
					return nil, &DependencyResolutionError{Message: fmt.Sprintf(
						"Dependency resolution failed; broken map: revision %s is not present", id)}
				}
				todo = append(todo, nr)
			}
			out = append(out, rev)
		}
		if check {
			var overlaps []string
			for id := range perTarget {
				if id != target.ID && isTarget[id] {
					overlaps = append(overlaps, id)
				}
			}
			if len(overlaps) > 0 {
				sort.Strings(overlaps)
				return nil, &RevisionError{Message: fmt.Sprintf(
					"Requested revision %s overlaps with other requested revisions %s",
					target.ID, strings.Join(overlaps, ", "))}
			}
		}
	}
	return out, nil
}

// Ancestors returns the named revisions and everything below them.
func (m *Map) Ancestors(ids []string, includeDependencies bool) ([]*Revision, error) {
	if err := m.Build(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	targets, err := m.getRevisions(identOf(ids))
	if err != nil {
		return nil, err
	}
	return m.ancestors(targets, includeDependencies, false)
}

// Descendants returns the named revisions and everything above them.
func (m *Map) Descendants(ids []string, includeDependencies bool) ([]*Revision, error) {
	if err := m.Build(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	targets, err := m.getRevisions(identOf(ids))
	if err != nil {
		return nil, err
	}
	mode := descendStructural
	if includeDependencies {
		mode = descendAll
	}
	return m.descendants(targets, mode, false)
}

// idSet builds a membership set from revisions.
func idSet(revs []*Revision) map[string]bool {
	set := make(map[string]bool, len(revs))
	for _, r := range revs {
		set[r.ID] = true
	}
	return set
}
