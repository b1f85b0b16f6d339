// Package session tracks the authentication state of the single
// interactive user and provides the route-guard predicate that gates
// every protected view.
package session

import (
	"sync"
	"time"
)

// Status is the authentication state of the session.
type Status string

// Session statuses. A session starts anonymous, moves to pending when
// the user is handed off to the identity provider, and reaches
// authenticated only after a successful code exchange.
const (
	StatusAnonymous     Status = "anonymous"
	StatusPending       Status = "pending"
	StatusAuthenticated Status = "authenticated"
)

// Session is an immutable view of the authentication state. It is
// passed explicitly to everything that needs authorization; nothing in
// the codebase reads ambient global state.
type Session struct {
	Status      Status
	AccessToken string
	ExpiresAt   time.Time
}

// Expired reports whether an authenticated session has outlived its
// token at the given instant. Sessions without an expiry never expire.
func (s Session) Expired(now time.Time) bool {
	return s.Status == StatusAuthenticated && !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// CanAccess is the route guard: protected views render iff the session
// is authenticated and its token has not expired. It is pure and cheap,
// and must be re-evaluated on every navigation, never cached.
func CanAccess(s Session) bool {
	return CanAccessAt(s, time.Now())
}

// CanAccessAt is CanAccess with an explicit clock, for tests and for
// callers that already hold a timestamp.
func CanAccessAt(s Session, now time.Time) bool {
	return s.Status == StatusAuthenticated && !s.Expired(now)
}

// Store holds the current session and publishes transitions to
// subscribers. It is safe for concurrent use; the auth flow is the only
// writer.
type Store struct {
	mu      sync.RWMutex
	current Session
	subs    []chan struct{}
	now     func() time.Time
}

// NewStore creates a store holding an anonymous session.
func NewStore() *Store {
	return &Store{
		current: Session{Status: StatusAnonymous},
		now:     time.Now,
	}
}

// Current returns the session as of now. An authenticated session whose
// token has expired is reported as anonymous: protected operations must
// treat it as requiring re-authentication, with no silent refresh.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current.Expired(s.now()) {
		return Session{Status: StatusAnonymous}
	}
	return s.current
}

// Set replaces the session and notifies subscribers. Called by the auth
// flow on every state-machine transition.
func (s *Store) Set(session Session) {
	s.mu.Lock()
	s.current = session
	s.mu.Unlock()

	s.notify()
}

// Reset drops the session back to anonymous (logout, failed exchange,
// observed expiry).
func (s *Store) Reset() {
	s.Set(Session{Status: StatusAnonymous})
}

// Subscribe returns a channel that receives a signal after every
// transition. Signals are coalesced for slow consumers.
func (s *Store) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
