package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/revgraph/pkg/errors"
	"github.com/matzehuels/revgraph/pkg/revision"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - commands
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleHighlight for emphasized values.
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleSuccess for success messages.
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)

	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
	styleKey     = lipgloss.NewStyle().Foreground(colorGray).Width(16)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// printCacheStatus prints whether a result was served from the cache.
func printCacheStatus(size int, cached bool) {
	status, style := iconFresh, styleComputed
	if cached {
		status, style = iconCached, styleCached
	}
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf("%d bytes · ", size)) + style.Render(status))
}

// printNextStep prints a suggested next command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

// =============================================================================
// Revision Output
// =============================================================================

// revisionLine formats a revision the way history and heads list it:
//
//	b1, b2 -> c (core) (head) (mergepoint), merge feature branches
func revisionLine(r *revision.Revision, current map[string]bool) string {
	var b strings.Builder
	b.WriteString(parentList(r))
	b.WriteString(" -> ")
	b.WriteString(r.ID)
	b.WriteString(markers(r, current))
	b.WriteString(", ")
	b.WriteString(r.Doc)
	return b.String()
}

// headLine formats a head with its markers only.
func headLine(r *revision.Revision, current map[string]bool) string {
	return r.ID + markers(r, current)
}

func parentList(r *revision.Revision) string {
	if len(r.DownRevisions) == 0 {
		return "<base>"
	}
	return strings.Join(r.DownRevisions, ", ")
}

func markers(r *revision.Revision, current map[string]bool) string {
	var b strings.Builder
	if labels := r.Branches(); len(labels) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(labels, ", "))
	}
	if r.IsHead() {
		b.WriteString(" (head)")
	}
	if r.IsBranchPoint() {
		b.WriteString(" (branchpoint)")
	}
	if r.IsMergePoint() {
		b.WriteString(" (mergepoint)")
	}
	if current[r.ID] {
		b.WriteString(" (current)")
	}
	return b.String()
}

// writeRevisionDetail writes the long form used by show.
func writeRevisionDetail(w io.Writer, r *revision.Revision, source string) {
	key := func(k, v string) {
		fmt.Fprintln(w, styleKey.Render(k)+" "+v)
	}
	key("Rev:", headLine(r, nil))
	switch {
	case r.IsMergePoint():
		key("Merges:", strings.Join(r.DownRevisions, ", "))
	default:
		key("Parent:", parentList(r))
	}
	if deps := r.Dependencies; len(deps) > 0 {
		key("Also depends on:", strings.Join(deps, ", "))
	}
	if r.IsBranchPoint() {
		key("Branches into:", strings.Join(r.NextRevisions(), ", "))
	}
	if labels := r.BranchLabels; len(labels) > 0 {
		key("Branch names:", strings.Join(labels, ", "))
	}
	if source != "" {
		key("Path:", source)
	}
	if r.Doc != "" {
		fmt.Fprintln(w)
		for _, line := range strings.Split(r.Doc, "\n") {
			fmt.Fprintln(w, "    "+line)
		}
	}
}

// currentSet turns a list of ids into a lookup set.
func currentSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// =============================================================================
// Errors
// =============================================================================

// remediation suggests a next step for errors a user can fix.
var remediation = map[errors.Code]string{
	errors.ErrCodeMultipleHeads:        "name a head, use a branch label (label@head), target 'heads', or join them with '" + appName + " merge'",
	errors.ErrCodeRevisionNotFound:     "list known revisions with '" + appName + " history'",
	errors.ErrCodeCycleDetected:        "inspect the manifest with '" + appName + " check'",
	errors.ErrCodeDependencyResolution: "inspect the manifest with '" + appName + " check'",
	errors.ErrCodeVersionStore:         "check the store URL given by --store or " + envStore,
	errors.ErrCodeInvalidPath:          "pass the manifest with --manifest or " + envManifest,
}

// FormatError renders err for the terminal: the message without its code,
// the code in brackets and a hint when one applies.
func FormatError(err error) string {
	msg := styleIconError.Render(iconError) + " " + errors.UserMessage(err)
	code := errors.GetCode(err)
	if code == "" {
		return msg
	}
	msg += " " + StyleDim.Render("["+string(code)+"]")
	if hint, ok := remediation[code]; ok {
		msg += "\n  " + StyleDim.Render(hint)
	}
	return msg
}
