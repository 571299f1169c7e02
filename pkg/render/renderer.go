package render

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/revgraph/pkg/cache"
	"github.com/matzehuels/revgraph/pkg/revision"
)

// Format names an output format.
type Format string

const (
	FormatDOT Format = "dot"
	FormatSVG Format = "svg"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatDOT, FormatSVG:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown graph format %q (want dot or svg)", s)
}

// Renderer renders revision graphs through a cache.
//
// Keys combine the hash of the manifest bytes with the render options, so
// the cache never needs explicit invalidation.
type Renderer struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
	TTL    time.Duration
}

// NewRenderer fills nil arguments with a null cache, the default keyer and
// a silent logger.
func NewRenderer(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Renderer {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.New(nopWriter{})
	}
	return &Renderer{Cache: c, Keyer: keyer, Logger: logger, TTL: 30 * 24 * time.Hour}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// Request describes one render.
type Request struct {
	Map          *revision.Map
	ManifestHash string
	Format       Format
	Options      Options
	// Refresh skips the cache lookup but still stores the result.
	Refresh bool
}

// Render returns the graph in the requested format and whether it came from
// the cache.
func (r *Renderer) Render(ctx context.Context, req Request) ([]byte, bool, error) {
	key := r.Keyer.GraphKey(req.ManifestHash, cache.GraphKeyOpts{
		Format:   string(req.Format),
		Detailed: req.Options.Detailed,
		Deps:     req.Options.Dependencies,
	})

	if !req.Refresh && req.ManifestHash != "" {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			r.Logger.Debug("graph cache hit", "format", req.Format)
			return data, true, nil
		} else if err != nil {
			r.Logger.Warn("graph cache read failed", "err", err)
		}
	}

	start := time.Now()
	dot, err := ToDOT(req.Map, req.Options)
	if err != nil {
		return nil, false, err
	}
	var out []byte
	switch req.Format {
	case FormatDOT:
		out = []byte(dot)
	case FormatSVG:
		if out, err = RenderSVG(ctx, dot); err != nil {
			return nil, false, err
		}
	default:
		return nil, false, fmt.Errorf("unknown graph format %q", req.Format)
	}
	r.Logger.Debug("rendered graph", "format", req.Format, "bytes", len(out), "duration", time.Since(start))

	if req.ManifestHash != "" {
		if err := r.Cache.Set(ctx, key, out, r.TTL); err != nil {
			r.Logger.Warn("graph cache write failed", "err", err)
		}
	}
	return out, false, nil
}
