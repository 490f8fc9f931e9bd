// ABOUTME: zerolog setup shared by the CLI and the MCP server
// ABOUTME: Console output for humans, component-tagged child loggers
package logging

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a console logger writing to w at the named level.
// Unknown levels fall back to info.
func New(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "02/01 15:04:05"}).
		Level(lvl).
		With().
		Timestamp().
		Str("app", "artmatch").
		Logger()
}

// Nop returns a logger that discards everything
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Component returns a child logger tagged with the component name
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
