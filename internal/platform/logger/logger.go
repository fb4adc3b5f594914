// Package logger provides structured logging for the match server.
// Every phase change, resolution and collaborator failure goes through this.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides leveled logging with context fields.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger creates a console logger at info level.
func NewLogger() *Logger {
	return New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}, "info")
}

// New creates a logger writing to w. Unknown levels fall back to info.
func New(w io.Writer, level string) *Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return &Logger{zl: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

// NewFromFormat picks the console writer for "console" and JSON lines otherwise.
func NewFromFormat(format, level string) *Logger {
	if format == "console" {
		return New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}, level)
	}
	return New(os.Stdout, level)
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger carrying an extra field.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

// Debug logs verbose diagnostics.
func (l *Logger) Debug(msg string) {
	l.zl.Debug().Msg(msg)
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string) {
	l.zl.Warn().Msg(msg)
}

// Error logs error messages.
func (l *Logger) Error(msg string) {
	l.zl.Error().Msg(msg)
}

// Err logs msg with err attached.
func (l *Logger) Err(msg string, err error) {
	l.zl.Error().Err(err).Msg(msg)
}

// Event logs a game event with its type and actor as fields.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.zl.Info().Str("event", eventType).Str("actor", actorID).Msg(details)
}
