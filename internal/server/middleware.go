package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catx/internal/auth"
	"github.com/desertthunder/catx/internal/services"
	"github.com/google/uuid"
)

// RequestID tags every request and response with an [services.RequestIDHeader], keeping an
// incoming value when present.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(services.RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
				r.Header.Set(services.RequestIDHeader, id)
			}
			w.Header().Set(services.RequestIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging logs one line per request at debug level, or warn for 5xx responses.
func Logging(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			kv := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"request_id", r.Header.Get(services.RequestIDHeader),
			}
			if rec.status >= 500 {
				logger.Warn("request", kv...)
			} else {
				logger.Debug("request", kv...)
			}
		})
	}
}

// RequireAuth redirects requests without a stored session to the login route, keeping the
// requested URL as returnUrl.
func RequireAuth(guard *auth.Guard) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ok, redirect := guard.RequireAuth(r.URL.RequestURI()); !ok {
				http.Redirect(w, r, redirect, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginOnly sends authenticated users to the home route.
func LoginOnly(guard *auth.Guard) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ok, redirect := guard.LoginOnly(); !ok {
				http.Redirect(w, r, redirect, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
