package httptransport

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apperrors "nearserve/internal/common/errors"
	"nearserve/internal/common/logger"
	"nearserve/internal/common/metrics"
	"nearserve/internal/models"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionFromContext returns the authenticated session, if any.
func SessionFromContext(ctx context.Context) (*models.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*models.Session)
	return session, ok
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Observer receives per-request telemetry; implemented by
// observability.Observability. Nil disables it.
type Observer interface {
	RecordRequest(ctx context.Context, route, status string)
	RecordRequestDuration(ctx context.Context, duration time.Duration, route string)
}

// RequestLogger logs every request with the chi request id and records the
// duration histogram.
func RequestLogger(log logger.Logger, obs Observer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(sw, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			duration := time.Since(start)
			status := strconv.Itoa(sw.status)
			metrics.HTTPRequestDuration.
				WithLabelValues(r.Method, route, status).
				Observe(duration.Seconds())
			if obs != nil {
				obs.RecordRequest(r.Context(), route, status)
				obs.RecordRequestDuration(r.Context(), duration, route)
			}

			log.Info("http request", map[string]interface{}{
				"requestId":  middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     sw.status,
				"bytes":      sw.bytes,
				"durationMs": duration.Milliseconds(),
			})
		})
	}
}

// SessionAuthenticator resolves bearer tokens; implemented by auth.SessionResolver.
type SessionAuthenticator interface {
	Resolve(ctx context.Context, token string) (*models.Session, error)
}

// Authenticate requires a valid bearer token and stores the session in the
// request context.
func Authenticate(sessions SessionAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			session, err := sessions.Resolve(r.Context(), token)
			if err != nil {
				writeStdError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCustomer rejects authenticated sessions that do not belong to a customer.
func RequireCustomer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := SessionFromContext(r.Context())
		if !ok {
			writeStdError(w, apperrors.NewUnauthenticatedError("no session in context"))
			return
		}
		if session.Role != models.RoleCustomer {
			writeStdError(w, apperrors.NewForbiddenError("customer account required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
