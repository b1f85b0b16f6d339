// Package auth drives the OAuth2 authorization-code handshake with the
// Microsoft identity platform and owns every session state transition.
//
// The flow is a three-state machine: anonymous -> pending (full-page
// redirect to the provider, the one true suspension point) ->
// authenticated (successful code exchange), with logout, consent
// denial, exchange failure, and token expiry all dropping back to
// anonymous. There is no silent refresh; an expired session requires a
// fresh login.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/triagemail/triagemail/internal/logging"
	"github.com/triagemail/triagemail/internal/session"
)

const (
	// defaultAuthority is the Microsoft identity platform host. National
	// cloud deployments (and tests) can override it via Config.Authority.
	defaultAuthority = "https://login.microsoftonline.com"

	// stateTTL bounds how long a pending flow waits for the provider to
	// redirect back before the state nonce stops being accepted.
	stateTTL = 10 * time.Minute

	// exchangeTimeout bounds the code-for-token exchange so a dead
	// token endpoint cannot leave the session pending indefinitely.
	exchangeTimeout = 30 * time.Second
)

// Scopes requested from the Microsoft identity platform.
var Scopes = []string{"Mail.Read", "Mail.ReadWrite", "User.Read"}

// Config holds the OAuth2 client registration for the Microsoft
// identity platform. All fields except Authority are required.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// Authority overrides the identity platform base URL. Empty means
	// the public cloud endpoint.
	Authority string
}

// Flow is the auth flow controller. It is the only writer of the
// session store.
type Flow struct {
	oauth    *oauth2.Config
	sessions *session.Store
	logger   *slog.Logger

	mu     sync.Mutex
	states map[string]time.Time // state nonce -> expiry

	now        func() time.Time
	httpClient *http.Client
}

// NewFlow creates a flow controller. Missing registration values are a
// configuration error, fatal at startup.
func NewFlow(cfg Config, sessions *session.Store, logger *slog.Logger) (*Flow, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURI == "" {
		return nil, fmt.Errorf("auth flow requires tenant ID, client ID, client secret and redirect URI")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithComponent(logger, "auth")

	authority := cfg.Authority
	if authority == "" {
		authority = defaultAuthority
	}

	return &Flow{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  fmt.Sprintf("%s/%s/oauth2/v2.0/authorize", authority, cfg.TenantID),
				TokenURL: fmt.Sprintf("%s/%s/oauth2/v2.0/token", authority, cfg.TenantID),
			},
		},
		sessions: sessions,
		logger:   logger,
		states:   make(map[string]time.Time),
		now:      time.Now,
	}, nil
}

// Begin starts the login flow. Valid only from an anonymous session: it
// mints a single-use state nonce, transitions the session to pending,
// and returns the authorize URL the browser must navigate to. From the
// application's perspective the redirect is irreversible until the
// provider calls back.
func (f *Flow) Begin() (string, error) {
	current := f.sessions.Current()
	if current.Status != session.StatusAnonymous {
		return "", ErrLoginNotAllowed(fmt.Sprintf("login is only valid from an anonymous session, current status is %s", current.Status))
	}

	state, err := newStateNonce()
	if err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}

	f.mu.Lock()
	f.states[state] = f.now().Add(stateTTL)
	f.mu.Unlock()

	f.sessions.Set(session.Session{Status: session.StatusPending})

	authURL := f.oauth.AuthCodeURL(state)
	f.logger.Info("login flow started", logging.Operation("auth.begin"))
	return authURL, nil
}

// Complete resumes the flow when the provider redirects back with an
// authorization code. Valid only while a flow is pending: a redirect
// return against an anonymous or authenticated session is rejected, so
// a terminated flow cannot be replayed into a login. On success the
// session becomes authenticated with the token and its expiry; on any
// failure (unknown state, exchange error) the session drops back to
// anonymous and an *AuthError is returned for the login view to
// display.
func (f *Flow) Complete(ctx context.Context, state, code string) error {
	if current := f.sessions.Current(); current.Status != session.StatusPending {
		err := ErrInvalidState(fmt.Sprintf("no login flow is pending, current status is %s", current.Status))
		f.logger.Warn("rejected redirect return", logging.Operation("auth.complete"), logging.Err(err))
		return err
	}

	if err := f.consumeState(state); err != nil {
		f.sessions.Reset()
		f.logger.Warn("rejected redirect return", logging.Operation("auth.complete"), logging.Err(err))
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()
	if f.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
	}

	token, err := f.oauth.Exchange(ctx, code)
	if err != nil {
		f.sessions.Reset()
		f.logger.Error("token exchange failed", logging.Operation("auth.complete"), logging.Err(err))
		return ErrExchangeFailed(fmt.Sprintf("token exchange failed: %v", err))
	}

	f.sessions.Set(session.Session{
		Status:      session.StatusAuthenticated,
		AccessToken: token.AccessToken,
		ExpiresAt:   token.Expiry,
	})
	f.logger.Info("session authenticated",
		logging.Operation("auth.complete"),
		slog.Time("expires_at", token.Expiry),
		slog.String("token", logging.SanitizeToken(token.AccessToken)),
	)
	return nil
}

// Deny resumes the flow when the provider redirects back with an error
// instead of a code (e.g. the user refused consent). The session drops
// back to anonymous and the issued state nonces are invalidated, so
// the denied flow cannot be replayed with its original state.
func (f *Flow) Deny(errCode, description string) *AuthError {
	f.mu.Lock()
	f.states = make(map[string]time.Time)
	f.mu.Unlock()

	f.sessions.Reset()
	if description == "" {
		description = "the identity provider denied the authorization request"
	}
	f.logger.Warn("authorization denied",
		logging.Operation("auth.deny"),
		slog.String("provider_error", errCode),
	)
	return ErrAccessDenied(description)
}

// Logout clears the session from any state.
func (f *Flow) Logout() {
	f.mu.Lock()
	f.states = make(map[string]time.Time)
	f.mu.Unlock()

	f.sessions.Reset()
	f.logger.Info("session cleared", logging.Operation("auth.logout"))
}

// consumeState validates a state nonce and deletes it so it can only be
// used once.
func (f *Flow) consumeState(state string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	expiry, ok := f.states[state]
	if !ok {
		return ErrInvalidState("unknown or already used state parameter")
	}
	delete(f.states, state)

	if f.now().After(expiry) {
		return ErrInvalidState("state parameter expired")
	}
	return nil
}

func newStateNonce() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
