package logging

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// Setup initializes the default slog logger with JSON output to w.
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// OrDefault returns logger, or slog.Default() when it is nil.
func OrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

type contextKey string

const loggerKey contextKey = "logger"

// WithLogger returns a context with the given logger attached.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from the context, falling back to slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// Response headers the handlers set so the request log can pick them up.
const (
	HeaderCache    = "X-Moviego-Cache"
	HeaderOffline  = "X-Moviego-Offline"
	HeaderEndpoint = "X-Moviego-Endpoint"
	HeaderAttempts = "X-Moviego-Attempts"
	HeaderUpstream = "X-Moviego-Upstream-Ms"
)

// RequestFields holds all fields logged per request.
type RequestFields struct {
	Method     string
	Path       string
	Status     int
	Cache      string
	Offline    string
	Endpoint   string
	Attempts   int64
	UpstreamMs int64
	TotalMs    int64
	Bytes      int64
}

// LogRequest logs a completed request with structured fields.
func LogRequest(logger *slog.Logger, f RequestFields) {
	level := slog.LevelInfo
	if f.Status >= 500 {
		level = slog.LevelError
	} else if f.Status >= 400 {
		level = slog.LevelWarn
	}

	logger.Log(context.Background(), level, "request",
		"method", f.Method,
		"path", f.Path,
		"status", f.Status,
		"cache", f.Cache,
		"offline", f.Offline,
		"endpoint", f.Endpoint,
		"attempts", f.Attempts,
		"upstream_ms", f.UpstreamMs,
		"total_ms", f.TotalMs,
		"bytes", f.Bytes,
	)
}

// ByteCountingWriter wraps http.ResponseWriter to capture status code and bytes written.
type ByteCountingWriter struct {
	http.ResponseWriter
	StatusCode int
	Bytes      int64
}

// WriteHeader captures the status code.
func (w *ByteCountingWriter) WriteHeader(code int) {
	w.StatusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Write captures bytes written.
func (w *ByteCountingWriter) Write(b []byte) (int, error) {
	if w.StatusCode == 0 {
		w.StatusCode = 200
	}
	n, err := w.ResponseWriter.Write(b)
	w.Bytes += int64(n)
	return n, err
}

// Flush lets streaming reverse-proxied responses through.
func (w *ByteCountingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware returns an HTTP middleware that attaches logger to the request
// context and logs every request with timing.
func Middleware(logger *slog.Logger, next http.Handler) http.Handler {
	logger = OrDefault(logger)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &ByteCountingWriter{ResponseWriter: w}
		next.ServeHTTP(wrapped, r.WithContext(WithLogger(r.Context(), logger)))

		if wrapped.StatusCode == 0 {
			wrapped.StatusCode = 200
		}

		h := wrapped.Header()
		LogRequest(logger, RequestFields{
			Method:     r.Method,
			Path:       r.URL.Path,
			Status:     wrapped.StatusCode,
			Cache:      h.Get(HeaderCache),
			Offline:    h.Get(HeaderOffline),
			Endpoint:   h.Get(HeaderEndpoint),
			Attempts:   parseInt64(h.Get(HeaderAttempts)),
			UpstreamMs: parseInt64(h.Get(HeaderUpstream)),
			TotalMs:    time.Since(start).Milliseconds(),
			Bytes:      wrapped.Bytes,
		})
	})
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
