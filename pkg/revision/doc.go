// Package revision provides the graph engine for schema migration revisions.
//
// # Overview
//
// A migration history is a directed acyclic graph. Each [Revision] names its
// parents (down revisions), may depend on revisions in other lineages, and
// may carry branch labels. A [Map] indexes a set of revisions produced by a
// [Generator] and answers the questions a migration tool asks of it: which
// revisions are heads, what a symbolic identifier like "billing@head" or
// "ae10+2" refers to, and in what order the revisions between two points
// must be applied or rolled back.
//
// # Basic Usage
//
//	m := revision.NewMap(func() ([]*revision.Revision, error) {
//	    a, _ := revision.NewRevision("a", nil)
//	    b, _ := revision.NewRevision("b", []string{"a"})
//	    return []*revision.Revision{a, b}, nil
//	})
//	heads, err := m.Heads() // ["b"]
//
// The map is built lazily on first use. [Map.Build] forces construction and
// returns any structural error (cycles, unresolved dependencies, label
// collisions). Build errors are sticky: every later call returns the same
// error.
//
// # Identifiers
//
// Identifiers are parsed once by [ParseIdent] into a closed set of variants:
// [Exact], [Tuple], [Head], [Heads], [Base], [Qualified] and [Relative].
// Exact identifiers may be unique prefixes of at least four characters.
//
// # Traversal
//
// [Map.Walk] and [Map.IterateRevisions] walk from an upper bound down to a
// lower bound. Every revision is produced after all of its children in the
// requested range, and sibling branches are emitted one at a time, so that
// the reversed sequence is a valid upgrade order and the forward sequence a
// valid downgrade order.
//
// # Concurrency
//
// A Map is safe for concurrent readers. [Map.AddRevision] and
// [Map.ReplaceRevision] take the write lock; multi-writer coordination beyond
// that is the caller's responsibility.
//
// Revisions returned by a Map are live views into it, not copies. Adding or
// replacing a revision updates the child links of its neighbours, so reading
// [Revision.IsHead], [Revision.NextRevisions] or [Revision.Branches] on a
// returned value while another goroutine adds to the same Map is a data race.
// Finish writes before handing revisions to concurrent readers.
package revision
