package config

import (
	"io"
	"log/slog"
)

// NewLogger builds the process logger and installs it as the slog default.
func NewLogger(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.LogJSON {
		h = slog.NewJSONHandler(w, opts)
	}
	log := slog.New(h).With("service", cfg.ServiceName)
	slog.SetDefault(log)
	return log
}
