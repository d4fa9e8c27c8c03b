// Package middleware provides HTTP middleware for the inbox API.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/stationinbox/internal/logging"
)

// Logger logs one line per request. The logger comes from
// logging.FromContext and so carries chi's request ID.
//
// Log fields:
//   - method, path, status
//   - duration_ms: request processing time
//   - ip: client IP as resolved by TrustedRealIP
//   - user: authenticated user name, when the route required a token
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		holder := &userHolder{}
		ctx := context.WithValue(r.Context(), userHolderKey{}, holder)

		next.ServeHTTP(ww, r.WithContext(ctx))

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", r.RemoteAddr,
		}
		if holder.name != "" {
			args = append(args, "user", holder.name)
		}

		logger := logging.FromContext(ctx)
		switch {
		case ww.status >= 500:
			logger.Error("request", args...)
		case ww.status >= 400:
			logger.Warn("request", args...)
		default:
			logger.Info("request", args...)
		}
	})
}

// userHolder lets JWTAuth, which runs inside the route group, report the
// user name back to the outer Logger.
type userHolder struct {
	name string
}

type userHolderKey struct{}

func reportUser(ctx context.Context, name string) {
	if h, ok := ctx.Value(userHolderKey{}).(*userHolder); ok {
		h.name = name
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap gives http.ResponseController access to the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
