package httpmw

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cwrk-planet/chat-service/pkg/logger"

	"github.com/go-chi/chi/v5/middleware"
)

// WithRequestLogger stores a logger tagged with the chi request id, path and
// method in the request context.
func WithRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := logger.L().With(
			slog.String("req_id", middleware.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("method", r.Method),
		)
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), l)))
	})
}

// RequestLogger writes one record per request. The wrapped writer keeps
// http.Hijacker so websocket upgrades pass through.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		logger.FromContext(r.Context()).LogAttrs(r.Context(), level, "http_request",
			slog.Int("status", status),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_ip", r.RemoteAddr),
			slog.String("user_agent", r.UserAgent()),
		)
	})
}
