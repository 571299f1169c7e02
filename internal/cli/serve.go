package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/revgraph/internal/server"
	"github.com/matzehuels/revgraph/pkg/version"
)

// serveCommand serves the revision graph over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string
	var noCache bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the revision graph as a read-only JSON API",
		Long: `Serve the revision graph as a read-only JSON API.

Endpoints: /heads, /branches, /history?range=lower:upper, /revisions/{id},
/graph/{dot,svg} and, with a version store, /current.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := c.loadMap()
			if err != nil {
				return err
			}

			var store version.Store
			if c.storeURL != "" {
				if store, err = c.openStore(cmd.Context()); err != nil {
					return err
				}
				defer store.Close()
			}

			renderer := c.newRenderer(noCache)
			defer renderer.Cache.Close()

			srv := &server.Server{
				Map:          l.Map,
				Store:        store,
				Renderer:     renderer,
				ManifestHash: l.Hash,
				Logger:       c.Logger,
			}
			printInfo("Serving %s on %s", c.manifestPath, StyleHighlight.Render(addr))
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the render cache")
	return cmd
}
