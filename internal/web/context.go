package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/stationinbox/internal/core"
	"github.com/JonMunkholm/stationinbox/internal/logging"
)

// WithRequestMetadata attaches the client IP to the request loggers and the
// User-Agent to ctx. The client info ends up in operator notifications.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // already reduced by TrustedRealIP
	ctx = core.ContextWithClientInfo(ctx, r.UserAgent())
	return logging.ContextWithAttrs(ctx, "client_ip", ip)
}

func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithRequestMetadata(r.Context(), r)))
	})
}
