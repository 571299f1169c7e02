package revision

import (
	"errors"
	"fmt"
	"strings"

	rgerrors "github.com/matzehuels/revgraph/pkg/errors"
)

// Sentinel errors for errors.Is checks. Every graph error except
// [IdentifierTypeError] matches ErrRevision.
var (
	ErrRevision                = errors.New("revision error")
	ErrCycleDetected           = errors.New("cycle detected in revisions")
	ErrDependencyCycleDetected = errors.New("dependency cycle detected in revisions")
	ErrIdentifierType          = errors.New("revision identifier is not a string")
)

// RevisionError is the generic graph error: invalid identifiers, label
// collisions, overlapping targets and short relative walks.
type RevisionError struct {
	Message string
}

func (e *RevisionError) Error() string { return e.Message }

func (e *RevisionError) Is(target error) bool { return target == ErrRevision }

func (e *RevisionError) Code() rgerrors.Code { return rgerrors.ErrCodeInvalidRevision }

// LoopDetectedError reports a revision listing itself as its own parent.
type LoopDetectedError struct {
	Revision string
}

func (e *LoopDetectedError) Error() string {
	return fmt.Sprintf("Self-loop is detected in revisions (%s)", e.Revision)
}

func (e *LoopDetectedError) Is(target error) bool {
	return target == ErrRevision || target == ErrCycleDetected
}

func (e *LoopDetectedError) Code() rgerrors.Code { return rgerrors.ErrCodeCycleDetected }

// DependencyLoopDetectedError reports a revision depending on itself.
type DependencyLoopDetectedError struct {
	Revision string
}

func (e *DependencyLoopDetectedError) Error() string {
	return fmt.Sprintf("Dependency self-loop is detected in revisions (%s)", e.Revision)
}

func (e *DependencyLoopDetectedError) Is(target error) bool {
	return target == ErrRevision || target == ErrDependencyCycleDetected
}

func (e *DependencyLoopDetectedError) Code() rgerrors.Code { return rgerrors.ErrCodeCycleDetected }

// CycleDetectedError names the revisions that form a cycle over parent edges.
type CycleDetectedError struct {
	Revisions []string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("Cycle is detected in revisions (%s)", strings.Join(e.Revisions, ", "))
}

func (e *CycleDetectedError) Is(target error) bool {
	return target == ErrRevision || target == ErrCycleDetected
}

func (e *CycleDetectedError) Code() rgerrors.Code { return rgerrors.ErrCodeCycleDetected }

// DependencyCycleDetectedError names the revisions that form a cycle once
// dependency edges are taken into account.
type DependencyCycleDetectedError struct {
	Revisions []string
}

func (e *DependencyCycleDetectedError) Error() string {
	return fmt.Sprintf("Dependency cycle is detected in revisions (%s)", strings.Join(e.Revisions, ", "))
}

func (e *DependencyCycleDetectedError) Is(target error) bool {
	return target == ErrRevision || target == ErrDependencyCycleDetected
}

func (e *DependencyCycleDetectedError) Code() rgerrors.Code { return rgerrors.ErrCodeCycleDetected }

// MultipleHeadsError is returned when a single revision was requested but
// the identifier designates several.
type MultipleHeadsError struct {
	Heads    []string
	Argument string
}

func (e *MultipleHeadsError) Error() string {
	return fmt.Sprintf("Multiple heads are present for given argument '%s'; %s",
		e.Argument, strings.Join(e.Heads, ", "))
}

func (e *MultipleHeadsError) Is(target error) bool { return target == ErrRevision }

func (e *MultipleHeadsError) Code() rgerrors.Code { return rgerrors.ErrCodeMultipleHeads }

// ResolutionError is returned when an identifier resolves to nothing, to an
// ambiguous prefix, or to a revision outside the requested branch.
type ResolutionError struct {
	Message  string
	Argument string
}

func (e *ResolutionError) Error() string { return e.Message }

func (e *ResolutionError) Is(target error) bool { return target == ErrRevision }

func (e *ResolutionError) Code() rgerrors.Code { return rgerrors.ErrCodeRevisionNotFound }

// RangeNotAncestorError is returned when the lower bound of a walk is not
// reachable from its upper bound.
type RangeNotAncestorError struct {
	Lower string
	Upper string
}

func (e *RangeNotAncestorError) Error() string {
	return fmt.Sprintf("Revision %s is not an ancestor of revision %s", orBase(e.Lower), orBase(e.Upper))
}

func (e *RangeNotAncestorError) Is(target error) bool { return target == ErrRevision }

func (e *RangeNotAncestorError) Code() rgerrors.Code { return rgerrors.ErrCodeRangeNotAncestor }

// DependencyResolutionError is returned when a dependency names nothing in
// the map, or when a walk cannot make progress.
type DependencyResolutionError struct {
	Message string
}

func (e *DependencyResolutionError) Error() string { return e.Message }

func (e *DependencyResolutionError) Is(target error) bool { return target == ErrRevision }

func (e *DependencyResolutionError) Code() rgerrors.Code {
	return rgerrors.ErrCodeDependencyResolution
}

// IdentifierTypeError is returned when a non-string value is presented as a
// revision identifier, typically bytes read back from a version store whose
// driver was not configured to decode text.
type IdentifierTypeError struct {
	Value any
}

func (e *IdentifierTypeError) Error() string {
	return fmt.Sprintf("revision identifier %#v is not a string; ensure database driver settings are correct", e.Value)
}

func (e *IdentifierTypeError) Is(target error) bool { return target == ErrIdentifierType }

func (e *IdentifierTypeError) Code() rgerrors.Code { return rgerrors.ErrCodeInvalidInput }

func orBase(s string) string {
	if s == "" {
		return "base"
	}
	return s
}
