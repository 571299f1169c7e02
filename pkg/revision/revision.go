package revision

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// reservedIDs are the symbolic names that can never be revision identifiers.
var reservedIDs = map[string]bool{"head": true, "heads": true, "base": true}

// illegalChars delimit qualified and relative identifiers.
const illegalChars = "@-+"

// Revision is one node of the migration graph.
//
// The exported fields describe the revision as its author wrote it. The
// derived relations (children, resolved dependencies, branch membership) are
// populated by the owning [Map] and exposed through methods.
type Revision struct {
	ID            string
	DownRevisions []string
	Dependencies  []string
	BranchLabels  []string
	Doc           string
	Payload       any

	nextrev        []string
	allNextrev     []string
	resolvedDeps   []string
	normalizedDeps []string
	branches       []string
}

// RevisionOption configures a Revision built by [NewRevision].
type RevisionOption func(*Revision)

// DependsOn adds dependency identifiers (revision ids or branch labels).
func DependsOn(ids ...string) RevisionOption {
	return func(r *Revision) { r.Dependencies = append(r.Dependencies, ids...) }
}

// WithBranchLabels adds branch labels to the revision.
func WithBranchLabels(labels ...string) RevisionOption {
	return func(r *Revision) { r.BranchLabels = append(r.BranchLabels, labels...) }
}

// WithDoc sets the human readable message.
func WithDoc(doc string) RevisionOption {
	return func(r *Revision) { r.Doc = doc }
}

// WithPayload attaches opaque step content. The engine never reads it.
func WithPayload(p any) RevisionOption {
	return func(r *Revision) { r.Payload = p }
}

// NewRevision creates a validated revision with the given parents.
func NewRevision(id string, down []string, opts ...RevisionOption) (*Revision, error) {
	r := &Revision{ID: id, DownRevisions: slices.Clone(down)}
	for _, opt := range opts {
		opt(r)
	}
	r.tidy()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the identifier and rejects self references.
func (r *Revision) Validate() error {
	if r.ID == "" {
		return &RevisionError{Message: "Revision identifier must not be empty"}
	}
	if reservedIDs[r.ID] {
		return &RevisionError{Message: fmt.Sprintf("Revision %s is reserved and cannot be used as a revision identifier", r.ID)}
	}
	var bad []string
	for _, c := range illegalChars {
		if strings.ContainsRune(r.ID, c) {
			bad = append(bad, string(c))
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return &RevisionError{Message: fmt.Sprintf("Character(s) '%s' not allowed in revision identifier '%s'",
			strings.Join(bad, ", "), r.ID)}
	}
	if slices.Contains(r.DownRevisions, r.ID) {
		return &LoopDetectedError{Revision: r.ID}
	}
	if slices.Contains(r.Dependencies, r.ID) {
		return &DependencyLoopDetectedError{Revision: r.ID}
	}
	for _, label := range r.BranchLabels {
		if label == "" || strings.Contains(label, "@") {
			return &RevisionError{Message: fmt.Sprintf("Invalid branch label '%s' in revision %s", label, r.ID)}
		}
	}
	return nil
}

// tidy drops empty entries and duplicates from the author-supplied tuples.
func (r *Revision) tidy() {
	r.DownRevisions = dedupe(r.DownRevisions)
	r.Dependencies = dedupe(r.Dependencies)
	r.BranchLabels = dedupe(r.BranchLabels)
}

// clone copies the author-supplied fields; derived relations start empty.
func (r *Revision) clone() *Revision {
	c := &Revision{
		ID:            r.ID,
		DownRevisions: slices.Clone(r.DownRevisions),
		Dependencies:  slices.Clone(r.Dependencies),
		BranchLabels:  slices.Clone(r.BranchLabels),
		Doc:           r.Doc,
		Payload:       r.Payload,
	}
	c.tidy()
	return c
}

// IsBase reports whether the revision has no parents. Dependencies do not
// count: a revision that only depends on other lineages is still a base.
func (r *Revision) IsBase() bool { return len(r.DownRevisions) == 0 }

// IsHead reports whether no revision names this one as a parent.
func (r *Revision) IsHead() bool { return len(r.nextrev) == 0 }

// IsBranchPoint reports whether the revision has more than one structural child.
func (r *Revision) IsBranchPoint() bool { return len(r.nextrev) > 1 }

// IsMergePoint reports whether the revision has more than one parent.
func (r *Revision) IsMergePoint() bool { return len(r.DownRevisions) > 1 }

func (r *Revision) isRealBase() bool { return len(r.DownRevisions) == 0 && len(r.Dependencies) == 0 }

func (r *Revision) isRealHead() bool { return len(r.allNextrev) == 0 }

func (r *Revision) isRealBranchPoint() bool { return len(r.allNextrev) > 1 }

// NextRevisions returns the ids of the structural children.
func (r *Revision) NextRevisions() []string { return slices.Clone(r.nextrev) }

// AllNextRevisions returns the ids of every revision that names this one as
// a parent or a dependency.
func (r *Revision) AllNextRevisions() []string { return slices.Clone(r.allNextrev) }

// ResolvedDependencies returns the dependencies as revision ids, with branch
// labels replaced by the revision that carries them.
func (r *Revision) ResolvedDependencies() []string { return slices.Clone(r.resolvedDeps) }

// AllDownRevisions returns parents followed by resolved dependencies.
func (r *Revision) AllDownRevisions() []string { return r.allDown() }

// NormalizedDownRevisions returns parents followed by the dependencies that
// are not already implied by another down revision.
func (r *Revision) NormalizedDownRevisions() []string { return r.normalizedDown() }

// Branches returns the branch labels this revision belongs to, including
// labels inherited from ancestors and from its single-parent chain.
func (r *Revision) Branches() []string { return slices.Clone(r.branches) }

func (r *Revision) allDown() []string {
	return dedupe(append(slices.Clone(r.DownRevisions), r.resolvedDeps...))
}

func (r *Revision) normalizedDown() []string {
	return dedupe(append(slices.Clone(r.DownRevisions), r.normalizedDeps...))
}

// addNextrev records child as a dependent of r, and as a structural child
// when child names r as a parent.
func (r *Revision) addNextrev(child *Revision) {
	if !slices.Contains(r.allNextrev, child.ID) {
		r.allNextrev = append(r.allNextrev, child.ID)
	}
	if slices.Contains(child.DownRevisions, r.ID) && !slices.Contains(r.nextrev, child.ID) {
		r.nextrev = append(r.nextrev, child.ID)
	}
}

func (r *Revision) removeNextrev(id string) {
	r.allNextrev = slices.DeleteFunc(r.allNextrev, func(s string) bool { return s == id })
	r.nextrev = slices.DeleteFunc(r.nextrev, func(s string) bool { return s == id })
}

func (r *Revision) addBranches(labels []string) {
	for _, l := range labels {
		if !slices.Contains(r.branches, l) {
			r.branches = append(r.branches, l)
		}
	}
}

// String renders the revision the way history listings show it.
func (r *Revision) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(orBaseList(r.DownRevisions), ", "))
	b.WriteString(" -> ")
	b.WriteString(r.ID)
	var tags []string
	if r.IsHead() {
		tags = append(tags, "head")
	}
	if r.IsBranchPoint() {
		tags = append(tags, "branchpoint")
	}
	if r.IsMergePoint() {
		tags = append(tags, "mergepoint")
	}
	if len(tags) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(tags, ") ("))
	}
	if r.Doc != "" {
		b.WriteString(", ")
		b.WriteString(r.Doc)
	}
	return b.String()
}

func orBaseList(ids []string) []string {
	if len(ids) == 0 {
		return []string{"<base>"}
	}
	return ids
}

// dedupe drops empty strings and repeated entries, keeping first occurrence.
func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
