package cli

import (
	stderrors "errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/revgraph/pkg/errors"
	"github.com/matzehuels/revgraph/pkg/manifest"
	"github.com/matzehuels/revgraph/pkg/revision"
)

// newRevisionOpts holds the flags shared by revision and merge.
type newRevisionOpts struct {
	message      string
	revID        string
	branchLabels []string
	dependsOn    []string
}

func (o *newRevisionOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.message, "message", "M", "", "revision message")
	cmd.Flags().StringVar(&o.revID, "rev-id", "", "revision id to use instead of a generated one")
	cmd.Flags().StringSliceVar(&o.branchLabels, "branch-label", nil, "branch label(s) for the new revision")
	cmd.Flags().StringSliceVar(&o.dependsOn, "depends-on", nil, "revision(s) or branch label(s) the new revision depends on")
}

// revisionCommand appends a new revision to the manifest.
func (c *CLI) revisionCommand() *cobra.Command {
	var opts newRevisionOpts
	var head string
	var splice bool

	cmd := &cobra.Command{
		Use:   "revision",
		Short: "Append a new revision to the manifest",
		Long: `Append a new revision to the manifest.

The new revision follows --head (default "head"). Use "base" to start a new
root, label@head to extend a branch, and --splice to branch off a revision
that already has children.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := c.loadMap()
			if err != nil {
				return err
			}
			parents, err := l.Map.GetRevisions(head)
			if err != nil {
				var mh *revision.MultipleHeadsError
				if stderrors.As(err, &mh) {
					return errors.Wrap(errors.ErrCodeMultipleHeads, err,
						"Multiple heads are present; please specify the head revision on which the new revision should be based, or perform a merge")
				}
				return err
			}
			for _, p := range parents {
				if !splice && !p.IsHead() {
					return errors.New(errors.ErrCodeInvalidInput,
						"Revision %s is not a head revision; please specify --splice to create a new branch from this revision", p.ID)
				}
			}
			return c.createRevision(l, revisionIDs(parents), opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&head, "head", "head", "revision the new one is based on")
	cmd.Flags().BoolVar(&splice, "splice", false, "allow a non-head revision as the parent")
	_ = cmd.RegisterFlagCompletionFunc("head", c.completeRevisions)
	return cmd
}

// mergeCommand appends a revision joining two or more revisions.
func (c *CLI) mergeCommand() *cobra.Command {
	var opts newRevisionOpts

	cmd := &cobra.Command{
		Use:               "merge <revision>...",
		Short:             "Append a revision that merges two or more revisions",
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: c.completeRevisions,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := c.loadMap()
			if err != nil {
				return err
			}
			revs, err := requireRevisions(l.Map, args...)
			if err != nil {
				return err
			}
			if len(revs) < 2 {
				return errors.New(errors.ErrCodeInvalidInput, "%s resolves to a single revision; nothing to merge", strings.Join(args, " "))
			}
			return c.createRevision(l, revisionIDs(revs), opts)
		},
	}

	opts.register(cmd)
	return cmd
}

// createRevision checks the new revision against the graph, then appends it
// to the manifest and saves the file.
func (c *CLI) createRevision(l *loaded, parents []string, opts newRevisionOpts) error {
	deps, err := resolveDependsOn(l.Map, opts.dependsOn)
	if err != nil {
		return err
	}
	id := opts.revID
	if id == "" {
		id = manifest.NewID()
	}
	script := manifest.Script{
		ID:            id,
		DownRevisions: parents,
		DependsOn:     deps,
		BranchLabels:  opts.branchLabels,
		Message:       opts.message,
	}

	rev, err := revision.NewRevision(id, parents,
		revision.DependsOn(deps...),
		revision.WithBranchLabels(opts.branchLabels...),
		revision.WithDoc(opts.message),
	)
	if err != nil {
		return err
	}
	if err := l.Manifest.Append(script); err != nil {
		return err
	}
	if err := l.Map.AddRevision(rev); err != nil {
		return err
	}
	if err := l.Manifest.Save(c.manifestPath); err != nil {
		return err
	}

	printSuccess("Generated revision %s", StyleHighlight.Render(id))
	printDetail("%s -> %s", joinStrings(parents), id)
	printFile(c.manifestPath)
	return nil
}

// resolveDependsOn expands partial ids to full ones. Branch labels are kept
// as written so the dependency follows the branch.
func resolveDependsOn(m *revision.Map, refs []string) ([]string, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	labels, err := m.BranchLabels()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if _, ok := labels[ref]; ok {
			out = append(out, ref)
			continue
		}
		r, err := m.GetRevision(ref)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, errors.New(errors.ErrCodeInvalidInput, "cannot depend on %q", ref)
		}
		out = append(out, r.ID)
	}
	return out, nil
}
