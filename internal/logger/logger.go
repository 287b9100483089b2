// Package logger builds the structured loggers used across tripcache.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Options controls the handler and level of a logger.
type Options struct {
	JSON  bool
	Level slog.Level
}

// New creates a logger writing to w. A nil writer means stderr.
func New(w io.Writer, opts Options) *slog.Logger {
	if w == nil {
		// Logs go to stderr so stdout stays clean for command output
		w = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
