// Package cli implements the revgraph command-line interface.
package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/revgraph/pkg/buildinfo"
	"github.com/matzehuels/revgraph/pkg/cache"
	"github.com/matzehuels/revgraph/pkg/errors"
	"github.com/matzehuels/revgraph/pkg/manifest"
	"github.com/matzehuels/revgraph/pkg/revision"
	"github.com/matzehuels/revgraph/pkg/version"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "revgraph"

	// defaultManifest is used when neither --manifest nor REVGRAPH_MANIFEST is set.
	defaultManifest = "revisions.toml"

	envManifest = "REVGRAPH_MANIFEST"
	envStore    = "REVGRAPH_STORE"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	manifestPath string
	storeURL     string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level. At debug level the engine, store
// and cache events are logged as well.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	if level <= log.DebugLevel {
		registerLoggingHooks(c.Logger)
	}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "revgraph manages a graph of schema revisions",
		Long: `revgraph reads a manifest of migration revisions, answers questions about
their graph (heads, branches, history) and moves a version store between
revisions by planning upgrade, downgrade and stamp steps.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.PersistentFlags().StringVarP(&c.manifestPath, "manifest", "m", envOr(envManifest, defaultManifest), "revision manifest (.toml or .json)")
	root.PersistentFlags().StringVarP(&c.storeURL, "store", "s", os.Getenv(envStore), "version store URL (file://, sqlite://, redis://, mongodb://, memory://)")

	root.AddCommand(c.headsCommand())
	root.AddCommand(c.branchesCommand())
	root.AddCommand(c.historyCommand())
	root.AddCommand(c.showCommand())
	root.AddCommand(c.currentCommand())
	root.AddCommand(c.upgradeCommand())
	root.AddCommand(c.downgradeCommand())
	root.AddCommand(c.stampCommand())
	root.AddCommand(c.revisionCommand())
	root.AddCommand(c.mergeCommand())
	root.AddCommand(c.checkCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// =============================================================================
// Map & Store Factories
// =============================================================================

// loaded is a manifest together with the map built from it.
type loaded struct {
	Manifest *manifest.Manifest
	Map      *revision.Map
	Hash     string
}

// loadMap reads the manifest and builds its revision map. The hash of the
// raw manifest bytes keys rendered graphs in the cache.
func (c *CLI) loadMap(opts ...revision.Option) (*loaded, error) {
	if err := errors.ValidatePath(c.manifestPath); err != nil {
		return nil, err
	}
	format, err := manifest.FormatFromPath(c.manifestPath)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(c.manifestPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "read manifest %s", c.manifestPath)
	}
	mf, err := manifest.Read(bytes.NewReader(raw), format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.manifestPath, err)
	}

	prog := newProgress(c.Logger)
	opts = append([]revision.Option{revision.WithLogger(c.Logger)}, opts...)
	m := revision.NewMap(mf.RevisionList, opts...)
	if err := m.Build(); err != nil {
		return nil, err
	}
	n, _ := m.Len()
	prog.debug(fmt.Sprintf("Built map of %d revisions", n))

	return &loaded{Manifest: mf, Map: m, Hash: cache.Hash(raw)}, nil
}

// openStore opens the configured version store.
func (c *CLI) openStore(ctx context.Context) (version.Store, error) {
	if c.storeURL == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no version store configured (use --store or %s)", envStore)
	}
	return version.Open(ctx, c.storeURL, version.WithLogger(c.Logger))
}

// newCache returns the render cache, falling back to a null cache when the
// cache directory cannot be used.
func (c *CLI) newCache(noCache bool) cache.Cache {
	if noCache {
		return cache.NewNullCache()
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Debug("render cache disabled", "err", err)
		return cache.NewNullCache()
	}
	return fc
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/revgraph/).
func cacheDir() (string, error) {
	return cache.DefaultDir()
}
