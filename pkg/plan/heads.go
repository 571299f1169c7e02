package plan

import (
	"context"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
)

// VersionWriter persists changes to the set of applied heads.
type VersionWriter interface {
	Insert(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, from, to string) error
}

// HeadMaintainer keeps the in-memory set of applied heads in step with a
// VersionWriter while migration steps run.
type HeadMaintainer struct {
	w      VersionWriter
	heads  []string
	logger *log.Logger
}

// NewHeadMaintainer starts from the given applied heads. A nil writer only
// tracks heads in memory, which is how dry runs are computed.
func NewHeadMaintainer(w VersionWriter, heads []string, logger *log.Logger) *HeadMaintainer {
	if logger == nil {
		logger = log.New(nopWriter{})
	}
	return &HeadMaintainer{w: w, heads: slices.Clone(heads), logger: logger}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// Heads returns the currently applied heads.
func (h *HeadMaintainer) Heads() []string { return slices.Clone(h.heads) }

// Apply records the head change performed by step.
func (h *HeadMaintainer) Apply(ctx context.Context, step Step) error {
	switch {
	case step.ShouldDeleteBranch(h.heads):
		return h.delete(ctx, step.Revision.ID)

	case step.ShouldCreateBranch(h.heads):
		return h.insert(ctx, step.Revision.ID)

	case step.ShouldMergeBranches(h.heads):
		deletes, from, to := step.MergeBranchIdents(h.heads)
		for _, id := range deletes {
			if err := h.delete(ctx, id); err != nil {
				return err
			}
		}
		return h.update(ctx, from, to)

	case step.ShouldUnmergeBranches(h.heads):
		from, to, inserts := step.UnmergeBranchIdents(h.heads)
		for _, id := range inserts {
			if err := h.insert(ctx, id); err != nil {
				return err
			}
		}
		return h.update(ctx, from, to)

	default:
		from, to, err := step.UpdateVersion(h.heads)
		if err != nil {
			return err
		}
		return h.update(ctx, from, to)
	}
}

// Reset replaces the applied heads with heads, as a stamp does.
func (h *HeadMaintainer) Reset(ctx context.Context, heads []string) error {
	for _, id := range slices.Clone(h.heads) {
		if !slices.Contains(heads, id) {
			if err := h.delete(ctx, id); err != nil {
				return err
			}
		}
	}
	for _, id := range heads {
		if !slices.Contains(h.heads, id) {
			if err := h.insert(ctx, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *HeadMaintainer) insert(ctx context.Context, id string) error {
	if slices.Contains(h.heads, id) {
		return fmt.Errorf("revision %s is already an applied head", id)
	}
	h.logger.Debug("insert version", "revision", id)
	if h.w != nil {
		if err := h.w.Insert(ctx, id); err != nil {
			return err
		}
	}
	h.heads = append(h.heads, id)
	return nil
}

func (h *HeadMaintainer) delete(ctx context.Context, id string) error {
	if !slices.Contains(h.heads, id) {
		return fmt.Errorf("revision %s is not an applied head", id)
	}
	h.logger.Debug("delete version", "revision", id)
	if h.w != nil {
		if err := h.w.Delete(ctx, id); err != nil {
			return err
		}
	}
	h.heads = slices.DeleteFunc(h.heads, func(x string) bool { return x == id })
	return nil
}

func (h *HeadMaintainer) update(ctx context.Context, from, to string) error {
	if !slices.Contains(h.heads, from) {
		return fmt.Errorf("revision %s is not an applied head", from)
	}
	if from != to && slices.Contains(h.heads, to) {
		return fmt.Errorf("revision %s is already an applied head", to)
	}
	h.logger.Debug("update version", "from", from, "to", to)
	if h.w != nil {
		if err := h.w.Update(ctx, from, to); err != nil {
			return err
		}
	}
	h.heads[slices.Index(h.heads, from)] = to
	return nil
}
