package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/revgraph/pkg/errors"
	"github.com/matzehuels/revgraph/pkg/manifest"
	"github.com/matzehuels/revgraph/pkg/plan"
	"github.com/matzehuels/revgraph/pkg/revision"
	"github.com/matzehuels/revgraph/pkg/runner"
)

// migrateOpts holds the flags shared by upgrade and downgrade.
type migrateOpts struct {
	sql         bool // print script bodies instead of recording heads
	dryRun      bool // plan only
	interactive bool // pick the destination among the heads (upgrade)
}

// upgradeCommand creates the upgrade command.
func (c *CLI) upgradeCommand() *cobra.Command {
	var opts migrateOpts

	cmd := &cobra.Command{
		Use:   "upgrade [revision]",
		Short: "Upgrade the version store to a later revision",
		Long: `Upgrade the version store to a later revision (default: heads).

The revision may be an id or unique prefix, a branch label, label@head,
"heads", or a relative step such as +2 or billing@+1.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: c.completeRevisions,
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := "heads"
			if len(args) == 1 {
				dest = args[0]
			}
			return c.runMigrate(cmd.Context(), cmd.OutOrStdout(), plan.Up, dest, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.sql, "sql", false, "print the upgrade scripts without touching the version store")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "show the steps without applying them")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "choose the target head interactively")
	return cmd
}

// downgradeCommand creates the downgrade command.
func (c *CLI) downgradeCommand() *cobra.Command {
	var opts migrateOpts

	cmd := &cobra.Command{
		Use:   "downgrade <revision>",
		Short: "Downgrade the version store to an earlier revision",
		Long: `Downgrade the version store to an earlier revision.

Use "base" to undo everything, label@base to remove one branch, or a
relative step such as -1 (pass it after "--": revgraph downgrade -- -1).`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeRevisions,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runMigrate(cmd.Context(), cmd.OutOrStdout(), plan.Down, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.sql, "sql", false, "print the downgrade scripts without touching the version store")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "show the steps without applying them")
	return cmd
}

func (c *CLI) runMigrate(ctx context.Context, out io.Writer, dir plan.Direction, dest string, opts migrateOpts) error {
	l, err := c.loadMap()
	if err != nil {
		return err
	}
	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	r := runner.New(l.Map, store, c.Logger)

	if opts.interactive {
		picked, err := c.chooseHead(ctx, r)
		if err != nil {
			return err
		}
		if picked == "" {
			printInfo("No head selected")
			return nil
		}
		dest = picked
	}

	runOpts := runner.Options{DryRun: opts.dryRun || opts.sql}
	prog := newProgress(c.Logger)
	var res *runner.Result
	if dir == plan.Up {
		res, err = r.Upgrade(ctx, dest, runOpts)
	} else {
		res, err = r.Downgrade(ctx, dest, runOpts)
	}
	if err != nil {
		return err
	}
	if opts.sql {
		writeScripts(out, res.Steps)
		return nil
	}

	reportSteps(res)
	prog.done(fmt.Sprintf("Finished %s to %s", dir, dest))
	return nil
}

// chooseHead offers the graph heads in a picker when there is more than one.
func (c *CLI) chooseHead(ctx context.Context, r *runner.Runner) (string, error) {
	heads, err := r.Map.GetRevisions("heads")
	if err != nil {
		return "", err
	}
	if len(heads) <= 1 {
		return "heads", nil
	}
	current, err := r.Store.Heads(ctx)
	if err != nil {
		return "", err
	}
	picked, err := pickHead(heads, current)
	if err != nil || picked == nil {
		return "", err
	}
	return picked.ID, nil
}

// writeScripts prints the body of each step's script in the step's direction.
func writeScripts(out io.Writer, steps []plan.Step) {
	for _, step := range steps {
		fmt.Fprintf(out, "-- Running %s\n", step)
		s := manifest.ScriptOf(step.Revision)
		body := ""
		if s != nil {
			body = s.Upgrade
			if step.IsDowngrade() {
				body = s.Downgrade
			}
		}
		if strings.TrimSpace(body) == "" {
			fmt.Fprintln(out, "-- (no script)")
		} else {
			fmt.Fprintln(out, strings.TrimRight(body, "\n"))
		}
		fmt.Fprintln(out)
	}
}

func reportSteps(res *runner.Result) {
	if len(res.Steps) == 0 {
		printInfo("Already at %s", joinStrings(res.Heads))
		return
	}
	for _, step := range res.Steps {
		printDetail("%s", step)
	}
	verb := "Now at"
	if res.DryRun {
		verb = "Would be at"
	}
	printSuccess("%s %s (%d step(s))", verb, joinStrings(res.Heads), len(res.Steps))
}

// stampCommand creates the stamp command.
func (c *CLI) stampCommand() *cobra.Command {
	var purge, dryRun bool

	cmd := &cobra.Command{
		Use:   "stamp <revision>...",
		Short: "Set the version store to revisions without running any step",
		Long: `Set the version store to revisions without running any step.

Stamping a revision replaces the stored heads in its lineage; heads in
unrelated branches are kept unless --purge is given. "base" clears the
store and label@base clears one branch.`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: c.completeRevisions,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := c.loadMap()
			if err != nil {
				return err
			}
			store, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := runner.New(l.Map, store, c.Logger).Stamp(cmd.Context(), args, runner.Options{DryRun: dryRun, Purge: purge})
			if err != nil {
				return err
			}
			verb := "Stamped"
			if dryRun {
				verb = "Would stamp"
			}
			printSuccess("%s %s", verb, joinStrings(res.Heads))
			printDetail("was %s", joinStrings(res.Before))
			return nil
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "discard the stored heads before stamping")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the resulting heads without writing them")
	return cmd
}

// revisionIDs lists the ids of revs.
func revisionIDs(revs []*revision.Revision) []string {
	ids := make([]string, len(revs))
	for i, r := range revs {
		ids[i] = r.ID
	}
	return ids
}

// requireRevisions resolves ids and fails when they name nothing.
func requireRevisions(m *revision.Map, ids ...string) ([]*revision.Revision, error) {
	revs, err := m.GetRevisions(ids...)
	if err != nil {
		return nil, err
	}
	if len(revs) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "%s names no revision", strings.Join(ids, ", "))
	}
	return revs, nil
}
