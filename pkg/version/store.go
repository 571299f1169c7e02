// Package version persists the set of applied revision heads.
//
// A [Store] holds one row per applied head, the same shape as a migration
// tool's version table. Stores are opened from a URL:
//
//	memory://                         process-local, for tests and dry runs
//	file:///var/lib/app/versions.json JSON document on disk
//	sqlite:///var/lib/app/app.db      table revgraph_version (?table=name)
//	redis://localhost:6379/0          sorted set revgraph:version (?key=name)
//	mongodb://localhost/app           collection revgraph_version (?collection=name)
//
// Writes are checked: deleting or updating a head that is not stored, or
// inserting one that already is, fails instead of silently diverging from
// the plan that issued it.
//
// Values read back go through [revision.ToIdent]; a backend that hands back
// something other than text (bytes from a misconfigured driver, numbers in
// a hand-edited file) yields a [revision.IdentifierTypeError].
package version

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/revgraph/pkg/cache"
	"github.com/matzehuels/revgraph/pkg/errors"
	"github.com/matzehuels/revgraph/pkg/observability"
	"github.com/matzehuels/revgraph/pkg/revision"
)

// Store persists applied heads.
type Store interface {
	Heads(ctx context.Context) ([]string, error)
	Insert(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, from, to string) error
	Close() error
}

// DefaultTable names the sqlite table and mongodb collection.
const DefaultTable = "revgraph_version"

// DefaultKey names the redis set.
const DefaultKey = "revgraph:version"

type options struct {
	logger  *log.Logger
	backoff cache.Backoff
}

// Option configures [Open].
type Option func(*options)

// WithLogger logs store operations at debug level.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBackoff overrides the retry policy of network stores.
func WithBackoff(b cache.Backoff) Option {
	return func(o *options) { o.backoff = b }
}

// Open opens the store addressed by rawURL.
func Open(ctx context.Context, rawURL string, opts ...Option) (Store, error) {
	o := options{backoff: cache.DefaultBackoff}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(nopWriter{})
	}

	if err := errors.ValidateStoreURL(rawURL); err != nil {
		return nil, err
	}
	u, _ := url.Parse(rawURL)

	var (
		s   Store
		err error
	)
	switch u.Scheme {
	case "memory":
		s = NewMemoryStore()
	case "file":
		s, err = NewFileStore(pathOf(u))
	case "sqlite":
		s, err = openSQLite(ctx, u)
	case "redis":
		s, err = openRedis(ctx, u, o.backoff)
	case "mongodb":
		s, err = openMongo(ctx, u, o.backoff)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeVersionStore, err, "open %s store", u.Scheme)
	}
	o.logger.Debug("opened version store", "backend", u.Scheme)
	return &instrumented{Store: s, backend: u.Scheme, logger: o.logger}, nil
}

func pathOf(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Host + u.Path
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// coerce converts raw stored values into revision ids.
func coerce(values []any) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, err := revision.ToIdent(v); err != nil {
			return nil, err
		}
		s, ok := v.(string)
		if !ok {
			return nil, &revision.IdentifierTypeError{Value: v}
		}
		out = append(out, s)
	}
	return out, nil
}

func rowCountError(op, id string, n int64) error {
	return errors.New(errors.ErrCodeVersionStore,
		"expected to match one row when %s '%s'; %d found", op, id, n)
}

func duplicateError(id string) error {
	return errors.New(errors.ErrCodeVersionStore, "revision %s is already stored", id)
}

// instrumented reports every call to the store hooks and the logger.
type instrumented struct {
	Store
	backend string
	logger  *log.Logger
}

func (s *instrumented) Heads(ctx context.Context) ([]string, error) {
	start := time.Now()
	heads, err := s.Store.Heads(ctx)
	observability.Store().OnHeadsRead(ctx, s.backend, len(heads), time.Since(start), err)
	return heads, err
}

func (s *instrumented) Insert(ctx context.Context, id string) error {
	return s.write(ctx, "insert", func() error { return s.Store.Insert(ctx, id) }, "revision", id)
}

func (s *instrumented) Delete(ctx context.Context, id string) error {
	return s.write(ctx, "delete", func() error { return s.Store.Delete(ctx, id) }, "revision", id)
}

func (s *instrumented) Update(ctx context.Context, from, to string) error {
	return s.write(ctx, "update", func() error { return s.Store.Update(ctx, from, to) }, "from", from, "to", to)
}

func (s *instrumented) write(ctx context.Context, op string, fn func() error, kv ...any) error {
	start := time.Now()
	err := fn()
	observability.Store().OnHeadsWritten(ctx, s.backend, op, time.Since(start), err)
	s.logger.Debug(fmt.Sprintf("version %s", op), append(kv, "backend", s.backend, "err", err)...)
	return err
}
