package revision

import (
	"fmt"
	"sort"
	"strings"
)

const partialAdvice = "; please ensure at least four characters are present for partial revision identifier matches"

// GetRevision resolves id to a single revision. It returns nil for "base"
// and a [MultipleHeadsError] when id designates more than one revision.
// The result is a live view into the map, updated by later adds.
func (m *Map) GetRevision(id string) (*Revision, error) {
	if err := m.Build(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRevision(ParseIdent(id))
}

// GetRevisions resolves each id and concatenates the results.
func (m *Map) GetRevisions(ids ...string) ([]*Revision, error) {
	if err := m.Build(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Revision
	for _, id := range ids {
		revs, err := m.getRevisions(ParseIdent(id))
		if err != nil {
			return nil, err
		}
		out = append(out, revs...)
	}
	return out, nil
}

// Lookup resolves a loosely typed identifier (see [ToIdent]).
func (m *Map) Lookup(v any) ([]*Revision, error) {
	id, err := ToIdent(v)
	if err != nil {
		return nil, err
	}
	if err := m.Build(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRevisions(id)
}

// GetCurrentHead returns the single head, or the single head of branch when
// branch is non-empty. It returns "" when there is none.
func (m *Map) GetCurrentHead(branch string) (string, error) {
	if err := m.Build(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCurrentHead(branch)
}

// FilterForLineage keeps the targets that are an ancestor or descendant of
// what anchor resolves to.
func (m *Map) FilterForLineage(targets []string, anchor string, includeDependencies bool) ([]string, error) {
	if err := m.Build(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterForLineage(targets, ParseIdent(anchor), includeDependencies)
}

// SharesLineage reports whether target is an ancestor or descendant of any
// of against. An empty against list is shared by everything.
func (m *Map) SharesLineage(target string, against []string, includeDependencies bool) (bool, error) {
	if err := m.Build(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sharesLineage(target, against, includeDependencies)
}

func (m *Map) getRevision(id Ident) (*Revision, error) {
	if t, ok := id.(Tuple); ok && len(t.IDs) > 1 {
		return nil, &MultipleHeadsError{Heads: t.IDs, Argument: t.String()}
	}
	ids, branch, err := m.resolveNumber(id)
	if err != nil {
		return nil, err
	}
	switch len(ids) {
	case 0:
		if branch != "" {
			if _, err := m.resolveBranch(branch); err != nil {
				return nil, err
			}
		}
		return nil, nil
	case 1:
		return m.revisionForIdent(ids[0], branch)
	}
	return nil, &MultipleHeadsError{Heads: ids, Argument: id.String()}
}

func (m *Map) getRevisions(id Ident) ([]*Revision, error) {
	if t, ok := id.(Tuple); ok {
		var out []*Revision
		for _, s := range t.IDs {
			revs, err := m.getRevisions(ParseIdent(s))
			if err != nil {
				return nil, err
			}
			out = append(out, revs...)
		}
		return out, nil
	}
	ids, branch, err := m.resolveNumber(id)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 && branch != "" {
		if _, err := m.resolveBranch(branch); err != nil {
			return nil, err
		}
	}
	out := make([]*Revision, 0, len(ids))
	for _, s := range ids {
		rev, err := m.revisionForIdent(s, branch)
		if err != nil {
			return nil, err
		}
		if rev != nil {
			out = append(out, rev)
		}
	}
	return out, nil
}

// resolveNumber turns a symbolic identifier into candidate ids plus the
// branch qualifier that constrains them.
func (m *Map) resolveNumber(id Ident) ([]string, string, error) {
	var branch string
	if q, ok := id.(Qualified); ok {
		branch, id = q.Branch, q.Inner
	}
	switch t := id.(type) {
	case Heads:
		if branch != "" {
			ids, err := m.filterForLineage(m.heads, Exact{ID: branch}, false)
			return ids, branch, err
		}
		return append([]string(nil), m.realHeads...), "", nil
	case Head:
		h, err := m.getCurrentHead(branch)
		if err != nil || h == "" {
			return nil, branch, err
		}
		return []string{h}, branch, nil
	case Base:
		return nil, branch, nil
	case Exact:
		return []string{t.ID}, branch, nil
	case Tuple:
		return append([]string(nil), t.IDs...), branch, nil
	case Qualified:
		return nil, "", &ResolutionError{Message: fmt.Sprintf("Invalid identifier '%s'", t), Argument: t.String()}
	case Relative:
		return nil, "", &ResolutionError{
			Message:  fmt.Sprintf("Relative revision %s is only valid as a walk bound", t),
			Argument: t.String(),
		}
	}
	return nil, "", &ResolutionError{Message: fmt.Sprintf("Unsupported identifier %v", id)}
}

func (m *Map) getCurrentHead(branch string) (string, error) {
	heads := m.heads
	if branch != "" {
		var err error
		if heads, err = m.filterForLineage(m.heads, Exact{ID: branch}, false); err != nil {
			return "", err
		}
	}
	switch len(heads) {
	case 0:
		return "", nil
	case 1:
		return heads[0], nil
	}
	arg := "head"
	if branch != "" {
		arg = branch + "@head"
	}
	return "", &MultipleHeadsError{Heads: append([]string(nil), heads...), Argument: arg}
}

// lookupKey finds a revision by exact id or branch label.
func (m *Map) lookupKey(key string) *Revision {
	if rev, ok := m.revs[key]; ok {
		return rev
	}
	return m.labels[key]
}

func (m *Map) resolveBranch(branch string) (*Revision, error) {
	if rev := m.lookupKey(branch); rev != nil {
		return rev, nil
	}
	rev, err := m.revisionForIdent(branch, "")
	if err != nil {
		return nil, &ResolutionError{Message: fmt.Sprintf("No such branch: '%s'", branch), Argument: branch}
	}
	return rev, nil
}

// revisionForIdent resolves a single id, label or unique prefix, checking
// membership of branch when given.
func (m *Map) revisionForIdent(id, branch string) (*Revision, error) {
	var branchRev *Revision
	if branch != "" {
		var err error
		if branchRev, err = m.resolveBranch(branch); err != nil {
			return nil, err
		}
	}
	if id == "" {
		return nil, nil
	}

	rev := m.lookupKey(id)
	if rev == nil {
		candidates := m.prefixMatches(id)
		if branchRev != nil && len(candidates) > 0 {
			var err error
			if candidates, err = m.filterForLineage(candidates, Exact{ID: branch}, false); err != nil {
				return nil, err
			}
		}
		switch {
		case len(candidates) == 0:
			msg := fmt.Sprintf("No such revision or branch '%s'", id)
			if len(id) < 4 {
				msg += partialAdvice
			}
			return nil, &ResolutionError{Message: msg, Argument: id}
		case len(candidates) > 1:
			shown := candidates
			if len(shown) > 3 {
				shown = shown[:3]
			}
			quoted := make([]string, len(shown))
			for i, c := range shown {
				quoted[i] = "'" + c + "'"
			}
			msg := fmt.Sprintf("Multiple revisions start with '%s': %s...", id, strings.Join(quoted, ", "))
			if len(id) < 4 {
				msg += partialAdvice
			}
			return nil, &ResolutionError{Message: msg, Argument: id}
		}
		rev = m.lookupKey(candidates[0])
	}

	if branchRev != nil {
		ok, err := m.sharesLineage(rev.ID, []string{branchRev.ID}, false)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &ResolutionError{
				Message:  fmt.Sprintf("Revision %s is not a member of branch '%s'", rev.ID, branch),
				Argument: id,
			}
		}
	}
	return rev, nil
}

// prefixMatches returns ids and labels longer than three characters that
// start with prefix, in input order followed by labels in sorted order.
func (m *Map) prefixMatches(prefix string) []string {
	var out []string
	for _, id := range m.order {
		if len(id) > 3 && strings.HasPrefix(id, prefix) {
			out = append(out, id)
		}
	}
	var labels []string
	for label := range m.labels {
		if len(label) > 3 && strings.HasPrefix(label, prefix) {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return append(out, labels...)
}

func (m *Map) filterForLineage(targets []string, anchor Ident, includeDeps bool) ([]string, error) {
	ids, branch, err := m.resolveNumber(anchor)
	if err != nil {
		return nil, err
	}
	var against []string
	if branch != "" {
		against = append(against, branch)
	}
	against = append(against, ids...)

	var out []string
	for _, tg := range targets {
		ok, err := m.sharesLineage(tg, against, includeDeps)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, tg)
		}
	}
	return out, nil
}

func (m *Map) sharesLineage(target string, against []string, includeDeps bool) (bool, error) {
	if len(against) == 0 {
		return true, nil
	}
	rev, err := m.revisionForIdent(target, "")
	if err != nil {
		return false, err
	}
	if rev == nil {
		return false, nil
	}
	want := make(map[string]bool, len(against))
	for _, a := range against {
		r, err := m.revisionForIdent(a, "")
		if err != nil {
			return false, err
		}
		if r != nil {
			want[r.ID] = true
		}
	}

	mode := descendStructural
	if includeDeps {
		mode = descendAll
	}
	desc, err := m.descendants([]*Revision{rev}, mode, false)
	if err != nil {
		return false, err
	}
	anc, err := m.ancestors([]*Revision{rev}, includeDeps, false)
	if err != nil {
		return false, err
	}
	for _, r := range append(desc, anc...) {
		if want[r.ID] {
			return true, nil
		}
	}
	return false, nil
}
