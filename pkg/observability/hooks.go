// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about graph construction, walks, version store access and
// the render cache.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetGraphHooks(&myGraphHooks{})
//	    observability.SetStoreHooks(&myStoreHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	start := time.Now()
//	heads, err := s.readHeads(ctx)
//	observability.Store().OnHeadsRead(ctx, "redis", len(heads), time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Graph Hooks
// =============================================================================

// GraphHooks receives events from the revision graph engine.
type GraphHooks interface {
	// OnMapBuilt records the construction of a revision map.
	OnMapBuilt(revisions, heads int, duration time.Duration, err error)

	// OnIterate records a walk between two bounds.
	OnIterate(upper, lower string, steps int, duration time.Duration, err error)
}

// =============================================================================
// Store Hooks
// =============================================================================

// StoreHooks receives events from version store operations.
type StoreHooks interface {
	// OnHeadsRead records a read of the applied heads.
	OnHeadsRead(ctx context.Context, backend string, count int, duration time.Duration, err error)

	// OnHeadsWritten records an insert, delete or update of the applied heads.
	OnHeadsWritten(ctx context.Context, backend, op string, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopGraphHooks is a no-op implementation of GraphHooks.
type NoopGraphHooks struct{}

func (NoopGraphHooks) OnMapBuilt(int, int, time.Duration, error)           {}
func (NoopGraphHooks) OnIterate(string, string, int, time.Duration, error) {}

// NoopStoreHooks is a no-op implementation of StoreHooks.
type NoopStoreHooks struct{}

func (NoopStoreHooks) OnHeadsRead(context.Context, string, int, time.Duration, error)       {}
func (NoopStoreHooks) OnHeadsWritten(context.Context, string, string, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	graphHooks GraphHooks = NoopGraphHooks{}
	storeHooks StoreHooks = NoopStoreHooks{}
	cacheHooks CacheHooks = NoopCacheHooks{}
	hooksMu    sync.RWMutex
)

// SetGraphHooks registers custom graph hooks.
// This should be called once at application startup before any map is built.
func SetGraphHooks(h GraphHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		graphHooks = h
	}
}

// SetStoreHooks registers custom version store hooks.
func SetStoreHooks(h StoreHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		storeHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Graph returns the registered graph hooks.
func Graph() GraphHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return graphHooks
}

// Store returns the registered version store hooks.
func Store() StoreHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return storeHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	graphHooks = NoopGraphHooks{}
	storeHooks = NoopStoreHooks{}
	cacheHooks = NoopCacheHooks{}
}
