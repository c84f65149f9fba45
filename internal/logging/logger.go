package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Attribute keys shared by every dialogic component.
const (
	KeyComponent = "component"
	KeyTemplate  = "template"
	KeySession   = "session_id"
)

// New creates a text logger on stderr, keeping stdout for rendered text
// and JSON-RPC.
func New(level slog.Level) *slog.Logger {
	return slog.New(newHandler(os.Stderr, level, false))
}

// NewJSON creates a JSON logger on stderr for NDJSON conversations.
func NewJSON(level slog.Level) *slog.Logger {
	return slog.New(newHandler(os.Stderr, level, true))
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Component tags every record of logger with the emitting component.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With(KeyComponent, name)
}

func newHandler(w io.Writer, level slog.Level, json bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr}
	if json {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// replaceAttr normalizes the key spellings used across adapters and
// reports durations in milliseconds.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case "error":
		a.Key = "err"
	case "sessionID", "sessionId", "session":
		a.Key = KeySession
	case "templateName", "intent":
		a.Key = KeyTemplate
	}
	if a.Value.Kind() == slog.KindDuration {
		a.Value = slog.Float64Value(float64(a.Value.Duration()) / float64(time.Millisecond))
		a.Key += "_ms"
	}
	return a
}
