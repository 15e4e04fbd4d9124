package api

import (
	"context"
	"net/http"
	"time"

	"github.com/FairForge/pollstore/internal/keepalive"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// statusClientClosed is recorded for requests whose client left before any
// response was written.
const statusClientClosed = 499

// requestIDMiddleware tags every request and response with a fresh uuid.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		latency := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = statusClientClosed
		}
		s.metrics.ObserveRequest(r.Method, status, latency)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("latency", latency),
			zap.String("request_id", RequestIDFromContext(r.Context())),
		}
		if conn := keepalive.FromContext(r.Context()); conn != nil {
			fields = append(fields,
				zap.String("conn", conn.ID),
				zap.Int64("conn_request", conn.Served()))
		}
		s.logger.Info("request", fields...)
	})
}
