// Package runner drives upgrades, downgrades and stamps against a version
// store.
//
// The Runner reads the applied heads from its store, asks [plan] for the
// steps to reach a destination, hands each step to an optional Executor and
// records the resulting head change. Payloads are never interpreted here;
// an Executor that runs SQL, or one that only prints, is supplied by the
// caller.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/revgraph/pkg/plan"
	"github.com/matzehuels/revgraph/pkg/revision"
	"github.com/matzehuels/revgraph/pkg/version"
)

// Executor performs the work of one step before its head change is
// recorded. Returning an error stops the run with the store reflecting
// every step completed so far.
type Executor func(ctx context.Context, step plan.Step) error

// Runner applies plans computed from Map to Store.
//
// A Runner holds no state between calls, so one value may serve several
// goroutines as long as they do not target the same store concurrently.
type Runner struct {
	Map      *revision.Map
	Store    version.Store
	Executor Executor
	Logger   *log.Logger
}

// New returns a runner. A nil logger logs nothing.
func New(m *revision.Map, store version.Store, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(nopWriter{})
	}
	return &Runner{Map: m, Store: store, Logger: logger}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// Options controls a single run.
type Options struct {
	// DryRun computes steps and resulting heads without executing steps
	// or writing to the store.
	DryRun bool
	// Purge makes a stamp ignore the heads currently stored.
	Purge bool
}

// Result describes a completed or simulated run.
type Result struct {
	Before   []string
	Heads    []string
	Steps    []plan.Step
	DryRun   bool
	Duration time.Duration
}

// Current returns the applied heads as revisions of the map. A stored head
// that the map does not know is a resolution error.
func (r *Runner) Current(ctx context.Context) ([]*revision.Revision, error) {
	heads, err := r.Store.Heads(ctx)
	if err != nil {
		return nil, fmt.Errorf("read heads: %w", err)
	}
	return r.Map.GetRevisions(heads...)
}

// Upgrade moves the store up to destination.
func (r *Runner) Upgrade(ctx context.Context, destination string, opts Options) (*Result, error) {
	return r.migrate(ctx, "upgrade", destination, opts, plan.Upgrade)
}

// Downgrade moves the store down to destination.
func (r *Runner) Downgrade(ctx context.Context, destination string, opts Options) (*Result, error) {
	return r.migrate(ctx, "downgrade", destination, opts, plan.Downgrade)
}

type planner func(*revision.Map, []string, string) ([]plan.Step, error)

func (r *Runner) migrate(ctx context.Context, op, destination string, opts Options, mkPlan planner) (*Result, error) {
	start := time.Now()
	current, err := r.Store.Heads(ctx)
	if err != nil {
		return nil, fmt.Errorf("read heads: %w", err)
	}
	steps, err := mkPlan(r.Map, current, destination)
	if err != nil {
		return nil, err
	}
	r.Logger.Info("planned "+op, "destination", destination, "steps", len(steps), "dry_run", opts.DryRun)

	hm := plan.NewHeadMaintainer(r.writer(opts), current, r.Logger)
	res := &Result{Before: current, Steps: steps, DryRun: opts.DryRun}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.Logger.Debug("running step", "step", step.String())
		if r.Executor != nil && !opts.DryRun {
			if err := r.Executor(ctx, step); err != nil {
				return nil, fmt.Errorf("%s %s: %w", step.Direction, step.Revision.ID, err)
			}
		}
		if err := hm.Apply(ctx, step); err != nil {
			return nil, fmt.Errorf("record %s %s: %w", step.Direction, step.Revision.ID, err)
		}
	}
	res.Heads = hm.Heads()
	res.Duration = time.Since(start)
	r.Logger.Info("finished "+op, "heads", res.Heads, "duration", res.Duration)
	return res, nil
}

// Stamp marks the store as being at destinations without running steps.
func (r *Runner) Stamp(ctx context.Context, destinations []string, opts Options) (*Result, error) {
	start := time.Now()
	current, err := r.Store.Heads(ctx)
	if err != nil {
		return nil, fmt.Errorf("read heads: %w", err)
	}
	next, err := plan.Stamp(r.Map, current, destinations, opts.Purge)
	if err != nil {
		return nil, err
	}
	hm := plan.NewHeadMaintainer(r.writer(opts), current, r.Logger)
	if err := hm.Reset(ctx, next); err != nil {
		return nil, err
	}
	res := &Result{Before: current, Heads: hm.Heads(), DryRun: opts.DryRun, Duration: time.Since(start)}
	r.Logger.Info("stamped", "heads", res.Heads, "dry_run", opts.DryRun)
	return res, nil
}

func (r *Runner) writer(opts Options) plan.VersionWriter {
	if opts.DryRun {
		return nil
	}
	return r.Store
}
