package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/revgraph/pkg/observability"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, log.InfoLevel)

	if logger == nil {
		t.Fatal("newLogger() returned nil")
	}

	logger.Info("test message")

	if buf.Len() == 0 {
		t.Error("logger should have written output")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{
			name:    "info at info level",
			level:   log.InfoLevel,
			logFunc: func(l *log.Logger) { l.Info("test") },
			wantLog: true,
		},
		{
			name:    "debug at info level",
			level:   log.InfoLevel,
			logFunc: func(l *log.Logger) { l.Debug("test") },
			wantLog: false,
		},
		{
			name:    "debug at debug level",
			level:   log.DebugLevel,
			logFunc: func(l *log.Logger) { l.Debug("test") },
			wantLog: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, tt.level)
			tt.logFunc(logger)

			gotLog := buf.Len() > 0
			if gotLog != tt.wantLog {
				t.Errorf("got log output = %v, want %v", gotLog, tt.wantLog)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, log.InfoLevel)

	prog := newProgress(logger)
	time.Sleep(10 * time.Millisecond)
	prog.done("upgrade completed")

	if !strings.Contains(buf.String(), "upgrade completed") {
		t.Errorf("progress.done() output = %q, want message", buf.String())
	}

	buf.Reset()
	prog.debug("hidden at info")
	if buf.Len() != 0 {
		t.Errorf("progress.debug() at info level wrote %q", buf.String())
	}
}

func TestSetLogLevelRegistersHooks(t *testing.T) {
	t.Cleanup(observability.Reset)

	var buf bytes.Buffer
	c := New(&buf, LogInfo)
	c.SetLogLevel(LogInfo)
	if _, ok := observability.Store().(*loggingHooks); ok {
		t.Fatal("hooks registered at info level")
	}

	c.SetLogLevel(LogDebug)
	if _, ok := observability.Store().(*loggingHooks); !ok {
		t.Fatalf("Store() = %T, want *loggingHooks", observability.Store())
	}

	ctx := context.Background()
	observability.Graph().OnMapBuilt(4, 1, time.Millisecond, nil)
	observability.Store().OnHeadsWritten(ctx, "sqlite", "insert", time.Millisecond, errors.New("locked"))
	observability.Cache().OnCacheHit(ctx, "graph")

	out := buf.String()
	for _, want := range []string{"map built", "revisions=4", "heads written", "backend=sqlite", "err=locked", "cache hit", "type=graph"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
