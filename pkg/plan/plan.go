package plan

import (
	"slices"

	"github.com/matzehuels/revgraph/pkg/revision"
)

// Upgrade returns the steps that take the applied heads current up to
// destination, parents first. Destination may be relative ("+1",
// "billing@+2").
func Upgrade(m *revision.Map, current []string, destination string) ([]Step, error) {
	revs, err := m.IterateRevisions([]string{destination}, current, revision.IterOptions{
		ImplicitBase:         true,
		AssertRelativeLength: true,
	})
	if err != nil {
		return nil, err
	}
	steps := make([]Step, 0, len(revs))
	for _, r := range slices.Backward(revs) {
		steps = append(steps, NewStep(m, r, Up))
	}
	return steps, nil
}

// Downgrade returns the steps that take the applied heads current down to
// destination, children first. Destination may be relative ("-1").
func Downgrade(m *revision.Map, current []string, destination string) ([]Step, error) {
	revs, err := m.IterateRevisions(current, []string{destination}, revision.IterOptions{
		SelectForDowngrade:   true,
		AssertRelativeLength: true,
	})
	if err != nil {
		return nil, err
	}
	steps := make([]Step, 0, len(revs))
	for _, r := range revs {
		steps = append(steps, NewStep(m, r, Down))
	}
	return steps, nil
}

// Stamp computes the heads that replace current when the store is marked
// as being at destinations without running any step. Each destination
// replaces the current heads on its own lineage. "base" clears all heads,
// "label@base" clears the heads on that branch. With purge the current
// heads are ignored.
func Stamp(m *revision.Map, current, destinations []string, purge bool) ([]string, error) {
	heads := slices.Clone(current)
	if purge {
		heads = nil
	}
	for _, dest := range destinations {
		switch id := revision.ParseIdent(dest).(type) {
		case revision.Base:
			heads = nil
			continue
		case revision.Qualified:
			if _, ok := id.Inner.(revision.Base); ok {
				onBranch, err := m.FilterForLineage(heads, id.Branch, false)
				if err != nil {
					return nil, err
				}
				heads = without(heads, onBranch)
				continue
			}
		}

		revs, err := m.GetRevisions(dest)
		if err != nil {
			return nil, err
		}
		for _, r := range revs {
			related, err := m.FilterForLineage(heads, r.ID, true)
			if err != nil {
				return nil, err
			}
			heads = without(heads, related)
			heads = append(heads, r.ID)
		}
	}
	return heads, nil
}
