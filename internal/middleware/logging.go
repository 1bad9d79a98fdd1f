package middleware

import (
	"net/http"
	"time"

	"storefront-be/internal/logger"
	"storefront-be/internal/utils"

	"go.uber.org/zap"
)

// responseRecorder captures the status code written by the handler.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware writes one structured access log line per request. It
// must run inside logger.RequestIDMiddleware to pick up the request id.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_ip", r.RemoteAddr),
		}
		if id, ok := utils.GetUserIDFromContext(r.Context()); ok {
			fields = append(fields, zap.String("user_id", id.String()))
		}

		log := logger.FromCtx(r.Context())
		switch {
		case rec.statusCode >= 500:
			log.Error("http request", fields...)
		case rec.statusCode >= 400:
			log.Warn("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	})
}
