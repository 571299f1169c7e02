// Package plan turns walks over a revision map into ordered migration steps
// and tracks the applied heads while those steps run.
//
// An upgrade walks from the destination down to the currently applied heads
// and reverses the result, so parents come before children. A downgrade
// walks from the current heads down to the destination as is.
//
//	steps, err := plan.Upgrade(m, current, "heads")
//	hm := plan.NewHeadMaintainer(store, current)
//	for _, s := range steps {
//	    if err := hm.Apply(ctx, s); err != nil { ... }
//	}
//
// Each [Step] knows how applying it changes the set of heads: it may create
// a new branch, delete one, merge several heads into one, split a merge
// back apart, or move a single head. [HeadMaintainer] picks the matching
// change and forwards it to a [VersionWriter] such as a version store.
//
// Steps only describe work. Nothing in this package interprets a revision's
// payload.
package plan
