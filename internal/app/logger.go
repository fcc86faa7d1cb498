package app

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

func newLogger(env string) *slog.Logger {
	return NewLogger(os.Stdout, env)
}

// NewLogger builds the JSON logger shared by the server and the CLI. Debug
// output is only enabled in development.
func NewLogger(w io.Writer, env string) *slog.Logger {
	level := slog.LevelInfo
	if strings.EqualFold(env, "development") {
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With(slog.String("env", env))
}
