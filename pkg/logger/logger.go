package logger

import (
	"io"
	"log/slog"
	"os"
)

// New builds the process logger: text with debug level for development and
// local environments, JSON at info level everywhere else.
func New(env string) *slog.Logger {
	return newLogger(os.Stdout, env)
}

// Init installs New(env) as the default slog logger.
func Init(env string) *slog.Logger {
	l := New(env)
	slog.SetDefault(l)
	return l
}

func newLogger(w io.Writer, env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if env == "development" || env == "local" {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}
