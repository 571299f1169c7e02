package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/revgraph/pkg/buildinfo"
	"github.com/matzehuels/revgraph/pkg/cache"
	"github.com/matzehuels/revgraph/pkg/render"
)

// graphOpts holds the command-line flags for the graph command.
type graphOpts struct {
	output   string // output file; stdout when empty
	format   string // dot or svg
	detailed bool   // show messages and branch labels in nodes
	deps     bool   // draw dependency edges
	refresh  bool   // re-render even when cached
	noCache  bool   // bypass the render cache entirely
}

// graphCommand renders the revision graph.
func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{format: string(render.FormatSVG)}

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the revision graph as SVG or Graphviz DOT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := render.ParseFormat(opts.format)
			if err != nil {
				return err
			}
			l, err := c.loadMap()
			if err != nil {
				return err
			}

			renderer := c.newRenderer(opts.noCache)
			defer renderer.Cache.Close()

			spinner := newSpinner(cmd.Context(), "Rendering graph...")
			spinner.Start()
			data, cached, err := renderer.Render(cmd.Context(), render.Request{
				Map:          l.Map,
				ManifestHash: l.Hash,
				Format:       format,
				Options:      render.Options{Detailed: opts.detailed, Dependencies: opts.deps},
				Refresh:      opts.refresh,
			})
			spinner.Stop()
			if err != nil {
				return err
			}

			if opts.output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(opts.output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", opts.output, err)
			}
			printSuccess("Rendered %s graph", format)
			printFile(opts.output)
			printCacheStatus(len(data), cached)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: svg, dot")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show messages and branch labels")
	cmd.Flags().BoolVar(&opts.deps, "deps", false, "draw depends_on edges")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-render even if a cached result exists")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the render cache")
	_ = cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions(
		[]string{string(render.FormatSVG), string(render.FormatDOT)}, cobra.ShellCompDirectiveNoFileComp))

	return cmd
}

// newRenderer returns a renderer backed by the file cache. Keys are scoped
// to the build version so an upgrade never serves stale output.
func (c *CLI) newRenderer(noCache bool) *render.Renderer {
	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), buildinfo.Version)
	return render.NewRenderer(c.newCache(noCache), keyer, c.Logger)
}
