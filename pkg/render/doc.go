// Package render draws revision graphs.
//
// [ToDOT] writes a map as Graphviz DOT: one box per revision, solid arrows
// from parent to child and dashed arrows for dependencies. Heads, bases,
// merge points and branch points are styled so the shape of the history
// reads at a glance. [RenderSVG] lays the DOT out with the embedded
// Graphviz from go-graphviz, so no system install is needed.
//
//	dot, err := render.ToDOT(m, render.Options{Detailed: true})
//	svg, err := render.RenderSVG(ctx, dot)
//
// [Renderer] wraps both behind a cache keyed by the manifest contents.
package render
