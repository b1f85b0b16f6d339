package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/triagemail/triagemail/internal/auth"
	"github.com/triagemail/triagemail/internal/feed"
)

// errorResponse is the JSON error envelope for every non-2xx response.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`

	// Retryable tells the client whether a retry affordance makes
	// sense (feed failures) or the user must re-authenticate instead.
	Retryable bool `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error to its JSON envelope and status code.
func writeError(w http.ResponseWriter, err error) {
	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		writeJSON(w, authErr.Status, errorResponse{
			Error:   authErr.Code,
			Message: authErr.Description,
		})
		return
	}

	var feedErr *feed.FeedError
	if errors.As(err, &feedErr) {
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:     "feed_unavailable",
			Message:   feedErr.Error(),
			Retryable: true,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:   "internal_error",
		Message: err.Error(),
	})
}
