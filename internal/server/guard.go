package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/triagemail/triagemail/internal/session"
)

// RequireSession guards protected routes. The predicate runs on every
// request against the current session, so an expiry between two
// requests is caught immediately; nothing is cached. Rejected requests
// get a 401 envelope pointing the client back to the login view.
func (sc *ServerContext) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := sc.sessions.Current()
		if !session.CanAccess(current) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{
				Error:   "authentication_required",
				Message: "sign in to view the dashboard",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestMetrics records a counter and duration histogram per request,
// labeled with the route pattern rather than the raw path to keep
// metric cardinality bounded.
func (sc *ServerContext) RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		sc.metrics.RecordHTTPRequest(r.Context(), r.Method, path, rec.status, time.Since(start))
	})
}
