package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/revgraph/pkg/observability"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
// It is safe for sequential use by a single goroutine; concurrent calls to done will race.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress creates a progress tracker that captures the current time as start.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Upgraded to c (12ms)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, p.elapsed())
}

// debug is done at debug level.
func (p *progress) debug(msg string) {
	p.logger.Debugf("%s (%s)", msg, p.elapsed())
}

func (p *progress) elapsed() time.Duration {
	return time.Since(p.start).Round(time.Millisecond)
}

// =============================================================================
// Observability
// =============================================================================

// loggingHooks reports engine, store and cache events to a logger at debug
// level.
type loggingHooks struct {
	logger *log.Logger
}

func registerLoggingHooks(l *log.Logger) {
	h := &loggingHooks{logger: l}
	observability.SetGraphHooks(h)
	observability.SetStoreHooks(h)
	observability.SetCacheHooks(h)
}

func (h *loggingHooks) OnMapBuilt(revisions, heads int, d time.Duration, err error) {
	h.logger.Debug("map built", "revisions", revisions, "heads", heads, "took", d, "err", err)
}

func (h *loggingHooks) OnIterate(upper, lower string, steps int, d time.Duration, err error) {
	h.logger.Debug("walk", "upper", upper, "lower", lower, "steps", steps, "took", d, "err", err)
}

func (h *loggingHooks) OnHeadsRead(_ context.Context, backend string, count int, d time.Duration, err error) {
	h.logger.Debug("heads read", "backend", backend, "count", count, "took", d, "err", err)
}

func (h *loggingHooks) OnHeadsWritten(_ context.Context, backend, op string, d time.Duration, err error) {
	h.logger.Debug("heads written", "backend", backend, "op", op, "took", d, "err", err)
}

func (h *loggingHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *loggingHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *loggingHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}
