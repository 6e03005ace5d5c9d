// Package logging builds the process logger.
package logging

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// New returns a logger writing to w. format is "json" or "console"; level is
// a zerolog level name and falls back to info when unrecognized.
func New(level, format string, w io.Writer) zerolog.Logger {
	out := w
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	}
	return zerolog.New(out).
		Level(parseLevel(level, zerolog.InfoLevel)).
		With().
		Timestamp().
		Str("service", "billcron").
		Logger()
}

// SetGlobal makes l the package-level logger used outside request scope.
func SetGlobal(l zerolog.Logger) {
	zlog.Logger = l
}

func parseLevel(s string, def zerolog.Level) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return def
	}
	return lvl
}
