package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()
	for _, want := range []string{"DEBUG", "dbg", "a=1", "INFO", "inf", "b=2", "WARN", "wrn", "c=3", "ERROR", "err", "d=4"} {
		assert.True(t, strings.Contains(out, want), "output missing %q: %s", want, out)
	}
}

func TestSlogLogger_WithAddsFields(t *testing.T) {
	log, buf := newTestLogger(t)

	child := log.With("component", "syncer")
	child.Info(context.Background(), "tick")

	assert.Contains(t, buf.String(), "component=syncer")
}

func TestNop_DoesNothing(t *testing.T) {
	// Must not panic, must return a usable child.
	l := Nop()
	l.Info(context.Background(), "ignored")
	l.With("k", "v").Error(context.Background(), "ignored too")
}
