package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const redacted = "[REDACTED]"

// sensitiveKeys are attribute names whose values never reach the output.
var sensitiveKeys = map[string]struct{}{
	"password":    {},
	"secret":      {},
	"token":       {},
	"code":        {},
	"backup_code": {},
	"api_key":     {},
}

// New creates a JSON slog logger configured at the provided level. If the
// level string is invalid it defaults to info. attrs are attached to every
// record.
func New(level string, attrs ...slog.Attr) *slog.Logger {
	return newLogger(os.Stdout, level, attrs...)
}

func newLogger(w io.Writer, level string, attrs ...slog.Attr) *slog.Logger {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.Set(slog.LevelInfo)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl, ReplaceAttr: redact})
	if len(attrs) == 0 {
		return slog.New(handler)
	}
	return slog.New(handler.WithAttrs(attrs))
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	return a
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}
