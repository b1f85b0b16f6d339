package auth

import (
	"fmt"
	"net/http"
)

// AuthError represents a failure in the authorization-code flow. It is
// recoverable: the presentation layer returns the user to the login
// view with the description as the message.
type AuthError struct {
	Code        string // stable machine-readable code (e.g. "access_denied")
	Description string // human-readable description
	Status      int    // HTTP status to surface
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewAuthError creates a new AuthError.
func NewAuthError(code, description string, status int) *AuthError {
	return &AuthError{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// Common auth errors as reusable constructors.
var (
	// ErrLoginNotAllowed indicates login was attempted while a flow is
	// already pending or a session is already authenticated
	ErrLoginNotAllowed = func(desc string) *AuthError {
		return NewAuthError("login_not_allowed", desc, http.StatusConflict)
	}

	// ErrInvalidState indicates the state nonce on the redirect return
	// is unknown, reused, or expired
	ErrInvalidState = func(desc string) *AuthError {
		return NewAuthError("invalid_state", desc, http.StatusBadRequest)
	}

	// ErrAccessDenied indicates the user or the identity provider
	// denied consent
	ErrAccessDenied = func(desc string) *AuthError {
		return NewAuthError("access_denied", desc, http.StatusForbidden)
	}

	// ErrExchangeFailed indicates the code-for-token exchange with the
	// identity provider failed
	ErrExchangeFailed = func(desc string) *AuthError {
		return NewAuthError("token_exchange_failed", desc, http.StatusBadGateway)
	}

	// ErrSessionExpired indicates a protected operation ran with an
	// expired or missing session
	ErrSessionExpired = func(desc string) *AuthError {
		return NewAuthError("session_expired", desc, http.StatusUnauthorized)
	}
)
