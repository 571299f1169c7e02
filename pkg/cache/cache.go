// Package cache stores rendered revision graphs between CLI runs.
//
// Entries are opaque byte slices addressed by string keys. Keys are produced
// by a [Keyer] from the hash of the manifest contents and the render options,
// so editing a manifest naturally invalidates everything rendered from it.
//
// Two implementations are provided: [FileCache] keeps entries under a
// directory (normally $XDG_CACHE_HOME/revgraph) and [NullCache] disables
// caching. The package also carries the retry helper used by the network
// version stores.
package cache

import (
	"context"
	"time"
)

// Cache is a key/value store for rendered artifacts.
type Cache interface {
	// Get returns the entry for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// Keyer builds cache keys.
type Keyer interface {
	// GraphKey addresses a rendered graph of a manifest.
	GraphKey(manifestHash string, opts GraphKeyOpts) string

	// HistoryKey addresses a rendered history listing of a manifest.
	HistoryKey(manifestHash, rangeSpec string) string
}

// GraphKeyOpts holds the render options that change graph output.
type GraphKeyOpts struct {
	Format   string `json:"format"`
	Detailed bool   `json:"detailed,omitempty"`
	Deps     bool   `json:"deps,omitempty"`
}

// DefaultKeyer produces unprefixed keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default key builder.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// GraphKey returns "graph:<hash of manifest and options>".
func (DefaultKeyer) GraphKey(manifestHash string, opts GraphKeyOpts) string {
	return hashKey("graph", manifestHash, opts)
}

// HistoryKey returns "history:<hash of manifest and range>".
func (DefaultKeyer) HistoryKey(manifestHash, rangeSpec string) string {
	return hashKey("history", manifestHash, rangeSpec)
}
