package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/revgraph/pkg/errors"
	"github.com/matzehuels/revgraph/pkg/plan"
	"github.com/matzehuels/revgraph/pkg/revision"
	"github.com/matzehuels/revgraph/pkg/runner"
)

// headsCommand lists the current heads of the graph.
func (c *CLI) headsCommand() *cobra.Command {
	var resolveDeps, indicateCurrent bool

	cmd := &cobra.Command{
		Use:   "heads",
		Short: "Show the heads of the revision graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := c.loadMap()
			if err != nil {
				return err
			}
			get := l.Map.Heads
			if resolveDeps {
				get = l.Map.RealHeads
			}
			ids, err := get()
			if err != nil {
				return err
			}
			current, err := c.currentIf(cmd.Context(), l.Map, indicateCurrent)
			if err != nil {
				return err
			}
			revs, err := l.Map.GetRevisions(ids...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range revs {
				fmt.Fprintln(out, headLine(r, current))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&resolveDeps, "resolve-dependencies", false, "treat dependencies as parents when finding heads")
	cmd.Flags().BoolVar(&indicateCurrent, "indicate-current", false, "mark heads applied to the version store")
	return cmd
}

// branchesCommand lists branch points and branch labels.
func (c *CLI) branchesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "branches",
		Short: "Show branch points and branch labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := c.loadMap()
			if err != nil {
				return err
			}
			revs, err := l.Map.Revisions()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range revs {
				if !r.IsBranchPoint() {
					continue
				}
				fmt.Fprintln(out, revisionLine(r, nil))
				for _, id := range r.NextRevisions() {
					child, err := l.Map.GetRevision(id)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%*s -> %s\n", len(r.ID), "", revisionLine(child, nil))
				}
			}

			labels, err := l.Map.BranchLabels()
			if err != nil {
				return err
			}
			names := make([]string, 0, len(labels))
			for name := range labels {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				heads, err := l.Map.GetRevisions(name + "@heads")
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %s (base) .. %s\n", name, labels[name], joinIDs(heads))
			}
			return nil
		},
	}
}

// historyCommand lists revisions from newest to oldest.
func (c *CLI) historyCommand() *cobra.Command {
	var rangeSpec string
	var indicateCurrent bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List revisions in order, newest first",
		Long: `List revisions in order, newest first.

The range is lower:upper, either side optional. "current" stands for the
heads stored in the version store, e.g. "current:" lists what is left to
apply.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := c.loadMap()
			if err != nil {
				return err
			}
			needStore := indicateCurrent || rangeMentionsCurrent(rangeSpec)
			current, err := c.currentIf(cmd.Context(), l.Map, needStore)
			if err != nil {
				return err
			}
			revs, err := historyRevisions(l.Map, rangeSpec, current)
			if err != nil {
				return err
			}
			if !indicateCurrent {
				current = nil
			}
			out := cmd.OutOrStdout()
			for _, r := range revs {
				fmt.Fprintln(out, revisionLine(r, current))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&rangeSpec, "rev-range", "r", "", "revision range lower:upper")
	cmd.Flags().BoolVarP(&indicateCurrent, "indicate-current", "i", false, "mark revisions applied to the version store")
	return cmd
}

func rangeMentionsCurrent(rangeSpec string) bool {
	lower, upper, err := plan.ParseRange(rangeSpec)
	return err == nil && (lower == "current" || upper == "current")
}

// historyRevisions walks rangeSpec, substituting the stored heads for
// "current".
func historyRevisions(m *revision.Map, rangeSpec string, current map[string]bool) ([]*revision.Revision, error) {
	if !rangeMentionsCurrent(rangeSpec) {
		return plan.History(m, rangeSpec)
	}
	lower, upper, _ := plan.ParseRange(rangeSpec)
	stored := make([]string, 0, len(current))
	for id := range current {
		stored = append(stored, id)
	}
	slices.Sort(stored)
	bound := func(s string) []string {
		if s == "current" {
			return stored
		}
		return []string{s}
	}
	uppers, lowers := bound(upper), bound(lower)
	if len(uppers) == 0 {
		return nil, nil
	}
	return m.IterateRevisions(uppers, lowers, revision.IterOptions{Inclusive: true})
}

// showCommand prints the details of one or more revisions.
func (c *CLI) showCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "show <revision>",
		Short:             "Show the details of a revision",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeRevisions,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := c.loadMap()
			if err != nil {
				return err
			}
			revs, err := requireRevisions(l.Map, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, r := range revs {
				if i > 0 {
					fmt.Fprintln(out)
				}
				writeRevisionDetail(out, r, c.manifestPath)
			}
			return nil
		},
	}
}

// currentCommand prints the heads recorded in the version store.
func (c *CLI) currentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the revisions applied to the version store",
		Args:  cobra.NoArgs,
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

			revs, err := runner.New(l.Map, store, c.Logger).Current(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range revs {
				fmt.Fprintln(out, headLine(r, nil))
			}
			return nil
		},
	}
}

// checkCommand builds the graph and reports every inconsistency found.
func (c *CLI) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the manifest for graph problems",
		Long: `Check the manifest for graph problems.

Duplicate revision ids and references to unknown parents are repaired
silently by other commands; check reports them and fails. Cycles and
unresolvable dependencies fail every command. When a version store is
configured, its heads must also be known to the manifest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := c.loadMap()
			if err != nil {
				return err
			}
			repairs, err := l.Map.Repairs()
			if err != nil {
				return err
			}
			for _, r := range repairs {
				printWarning("%s: %s", r.Kind, r.Message)
			}
			problems := len(repairs)

			if c.storeURL != "" {
				store, err := c.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer store.Close()
				if _, err := runner.New(l.Map, store, c.Logger).Current(cmd.Context()); err != nil {
					printWarning("version store: %s", errors.UserMessage(err))
					problems++
				}
			}

			n, _ := l.Map.Len()
			heads, _ := l.Map.Heads()
			if problems > 0 {
				return errors.New(errors.ErrCodeInvalidManifest, "%d problem(s) found in %s", problems, c.manifestPath)
			}
			printSuccess("%d revisions, %d head(s)", n, len(heads))
			if len(heads) > 1 {
				printDetail("Multiple heads: %s", joinStrings(heads))
				printNextStep("Join them with", appName+" merge -M \"merge heads\" heads")
			}
			return nil
		},
	}
}

// currentIf reads the stored heads when want is set. Stored heads must be
// known to the map.
func (c *CLI) currentIf(ctx context.Context, m *revision.Map, want bool) (map[string]bool, error) {
	if !want {
		return nil, nil
	}
	store, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	revs, err := runner.New(m, store, c.Logger).Current(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(revs))
	for _, r := range revs {
		set[r.ID] = true
	}
	return set, nil
}

func joinIDs(revs []*revision.Revision) string {
	return joinStrings(revisionIDs(revs))
}

func joinStrings(ids []string) string {
	if len(ids) == 0 {
		return "<base>"
	}
	return strings.Join(ids, ", ")
}
