package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/matzehuels/revgraph/pkg/revision"
)

// Options configures graph rendering.
type Options struct {
	// Detailed adds the message and branch membership to node labels.
	// When false, only the revision id and its own labels are shown.
	Detailed bool
	// Dependencies draws dashed edges for depends_on links.
	Dependencies bool
}

// ToDOT converts the revision map to Graphviz DOT. Parents are drawn above
// their children.
func ToDOT(m *revision.Map, opts Options) (string, error) {
	revs, err := m.Revisions()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString("digraph revisions {\n")
	buf.WriteString("  rankdir=BT;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\", fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [arrowsize=0.7];\n")
	buf.WriteString("\n")

	for _, r := range revs {
		fmt.Fprintf(&buf, "  %q [%s];\n", r.ID, strings.Join(nodeAttrs(r, opts.Detailed), ", "))
	}

	buf.WriteString("\n")
	for _, r := range revs {
		for _, d := range r.DownRevisions {
			fmt.Fprintf(&buf, "  %q -> %q;\n", r.ID, d)
		}
		if !opts.Dependencies {
			continue
		}
		for _, d := range r.ResolvedDependencies() {
			fmt.Fprintf(&buf, "  %q -> %q [style=dashed, color=grey40];\n", r.ID, d)
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

func nodeLabel(r *revision.Revision, detailed bool) string {
	label := r.ID
	if len(r.BranchLabels) > 0 {
		label += " (" + strings.Join(r.BranchLabels, ", ") + ")"
	}
	if !detailed {
		return label
	}
	if r.Doc != "" {
		label += "\n" + r.Doc
	}
	if b := r.Branches(); len(b) > 0 {
		label += "\nbranches: " + strings.Join(b, ", ")
	}
	return label
}

func nodeAttrs(r *revision.Revision, detailed bool) []string {
	attrs := []string{fmt.Sprintf("label=%q", nodeLabel(r, detailed))}
	switch {
	case r.IsHead():
		attrs = append(attrs, "fillcolor=\"#c8e6c9\"", "penwidth=2")
	case r.IsBase():
		attrs = append(attrs, "fillcolor=\"#e0e0e0\"")
	}
	if r.IsMergePoint() {
		attrs = append(attrs, "shape=hexagon")
	}
	if r.IsBranchPoint() {
		attrs = append(attrs, "style=\"rounded,filled,bold\"")
	}
	return attrs
}
