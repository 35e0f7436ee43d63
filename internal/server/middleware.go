package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/admitml/predictgate/internal/auth"
)

// slowRequestThreshold is the duration above which requests are logged at WARN level.
const slowRequestThreshold = 100 * time.Millisecond

type contextKey string

// subjectKey carries the verified token subject through the request context.
const subjectKey contextKey = "subject"

// Subject returns the authenticated subject attached by the access gate, or
// the empty string on unauthenticated routes.
func Subject(ctx context.Context) string {
	subject, _ := ctx.Value(subjectKey).(string)
	return subject
}

// requireAuth is the access gate. It runs ahead of every protected handler,
// extracts the bearer token, and re-verifies signature and expiry on each
// request. The token itself is never logged.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(w, http.StatusUnauthorized, "Missing or invalid token")
			return
		}

		subject, err := s.issuer.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				s.writeError(w, http.StatusUnauthorized, "Token expired")
			} else {
				s.writeError(w, http.StatusUnauthorized, "Invalid token")
			}
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the response code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs every request with timing and records HTTP metrics.
// Slow requests (>100ms) are logged at WARN level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}

		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
			s.metrics.HTTPDuration.WithLabelValues(route).Observe(duration.Seconds())
		}

		attrs := []any{
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"duration_ms", duration.Milliseconds(),
		}
		if duration > slowRequestThreshold {
			s.logger.Warn("slow request", attrs...)
		} else {
			s.logger.Debug("request completed", attrs...)
		}
	})
}
