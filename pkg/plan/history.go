package plan

import (
	"strings"

	"github.com/matzehuels/revgraph/pkg/errors"
	"github.com/matzehuels/revgraph/pkg/revision"
)

// ParseRange splits a history range of the form "lower:upper". An omitted
// lower bound is "base" and an omitted upper bound is "heads"; an empty
// string is the whole history.
func ParseRange(s string) (lower, upper string, err error) {
	if s == "" {
		return "base", "heads", nil
	}
	lower, upper, ok := strings.Cut(s, ":")
	if !ok {
		return "", "", errors.New(errors.ErrCodeInvalidInput, "history range %q must be of the form [lower]:[upper]", s)
	}
	if lower == "" {
		lower = "base"
	}
	if upper == "" {
		upper = "heads"
	}
	return lower, upper, nil
}

// History returns the revisions in rangeSpec from newest to oldest, both
// bounds included.
func History(m *revision.Map, rangeSpec string) ([]*revision.Revision, error) {
	lower, upper, err := ParseRange(rangeSpec)
	if err != nil {
		return nil, err
	}
	return m.IterateRevisions([]string{upper}, []string{lower}, revision.IterOptions{Inclusive: true})
}
