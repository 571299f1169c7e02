// Package pkg provides the libraries behind revgraph, a revision graph engine
// for schema migrations.
//
// # Overview
//
// A project keeps its migrations as revisions: each names the revisions it
// follows, may carry branch labels and cross-branch dependencies, and holds
// the upgrade and downgrade scripts for one change. The pkg directory is
// organized into these areas:
//
//  1. [revision] - The graph engine (map building, identifier resolution, walks)
//  2. [manifest] - Reading and writing revision manifests (TOML or JSON)
//  3. [plan] - Migration steps, head bookkeeping and history ranges
//  4. [version] - Stores for the applied heads (file, SQLite, Redis, MongoDB)
//  5. [runner] - Upgrade, downgrade and stamp against a store
//  6. [render] - DOT and SVG drawings of a map
//  7. [cache] - Content-addressed caching for rendered output
//
// # Architecture
//
// The typical data flow through revgraph:
//
//	revisions.toml
//	     ↓
//	[manifest] package (decode revisions)
//	     ↓
//	[revision] package (build the map, resolve identifiers)
//	     ↓
//	[plan] package (walk the map into steps)
//	     ↓
//	[runner] package (apply steps, record heads in a [version] store)
//
// # Quick Start
//
// Upgrade a database to the latest heads:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/revgraph/pkg/manifest"
//	    "github.com/matzehuels/revgraph/pkg/revision"
//	    "github.com/matzehuels/revgraph/pkg/runner"
//	    "github.com/matzehuels/revgraph/pkg/version"
//	)
//
//	m := revision.NewMap(manifest.Generator("revisions.toml"))
//	store, _ := version.Open(ctx, "sqlite:///var/lib/app/versions.db")
//	defer store.Close()
//
//	res, err := runner.New(m, store, nil).Upgrade(ctx, "heads", runner.Options{})
//
// Errors carry a [errors.Code] so callers can branch on the failure class
// without matching messages.
//
// [revision]: https://pkg.go.dev/github.com/matzehuels/revgraph/pkg/revision
// [manifest]: https://pkg.go.dev/github.com/matzehuels/revgraph/pkg/manifest
// [plan]: https://pkg.go.dev/github.com/matzehuels/revgraph/pkg/plan
// [version]: https://pkg.go.dev/github.com/matzehuels/revgraph/pkg/version
// [runner]: https://pkg.go.dev/github.com/matzehuels/revgraph/pkg/runner
// [render]: https://pkg.go.dev/github.com/matzehuels/revgraph/pkg/render
// [cache]: https://pkg.go.dev/github.com/matzehuels/revgraph/pkg/cache
// [errors.Code]: https://pkg.go.dev/github.com/matzehuels/revgraph/pkg/errors#Code
package pkg
