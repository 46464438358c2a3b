// Package testutil provides common helpers for unit and handler tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

// Logger returns a logger that discards all output, for wiring components
// under test.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Context returns a context canceled when the test finishes.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
