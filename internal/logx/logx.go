package logx

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// New builds the process logger and installs it as slog's default.
func New(service, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	l := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})).
		With(slog.String(Service, service))
	slog.SetDefault(l)
	return l
}

// FromRequest attaches the chi request id to l, if there is one.
func FromRequest(ctx context.Context, l *slog.Logger) *slog.Logger {
	if id := middleware.GetReqID(ctx); id != "" {
		return l.With(slog.String(TraceID, id))
	}
	return l
}

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(Error, "")
	}
	return slog.String(Error, err.Error())
}

// RequestID returns the chi request id carried by ctx, or "".
func RequestID(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}
