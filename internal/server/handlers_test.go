package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triagemail/triagemail/internal/auth"
	"github.com/triagemail/triagemail/internal/feed"
	"github.com/triagemail/triagemail/internal/session"
	"github.com/triagemail/triagemail/internal/triage"
)

// testEnv wires a full server with httptest stand-ins for the identity
// provider and the analyzed-email feed.
type testEnv struct {
	server   *Server
	sessions *session.Store
	records  *triage.Store
}

func newTestEnv(t *testing.T, providerURL, feedURL string) *testEnv {
	t.Helper()

	sessions := session.NewStore()
	records := triage.NewStore()

	flow, err := auth.NewFlow(auth.Config{
		TenantID:     "test-tenant",
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		RedirectURI:  "http://localhost:3000/auth/callback",
		Authority:    providerURL,
	}, sessions, nil)
	require.NoError(t, err)

	feedClient := feed.NewClient(feedURL, 5*time.Second, nil)

	sc := NewServerContext(context.Background(), sessions, records, flow, feedClient, 50, nil, nil)
	return &testEnv{
		server:   NewServer(sc, ":0"),
		sessions: sessions,
		records:  records,
	}
}

func (env *testEnv) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	return w
}

func (env *testEnv) authenticate() {
	env.sessions.Set(session.Session{
		Status:      session.StatusAuthenticated,
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
	})
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func seedRecord(id, subject, sender, category string, score float64, label triage.SentimentLabel) triage.EmailRecord {
	return triage.EmailRecord{
		ID:           id,
		Subject:      subject,
		Sender:       sender,
		Category:     category,
		ReceivedTime: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Analysis: triage.AnalysisResult{
			PriorityScore: score,
			Sentiment:     triage.Sentiment{Label: label, Score: 0.8},
		},
	}
}

func TestProtectedRoutesRequireAuthentication(t *testing.T) {
	routes := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/emails"},
		{http.MethodPost, "/emails/sync"},
		{http.MethodGet, "/dashboard/metrics"},
	}

	states := []struct {
		name    string
		session session.Session
	}{
		{"anonymous", session.Session{Status: session.StatusAnonymous}},
		{"pending", session.Session{Status: session.StatusPending}},
		{"expired", session.Session{
			Status:      session.StatusAuthenticated,
			AccessToken: "tok",
			ExpiresAt:   time.Now().Add(-time.Minute),
		}},
	}

	for _, st := range states {
		for _, rt := range routes {
			t.Run(st.name+" "+rt.target, func(t *testing.T) {
				env := newTestEnv(t, "http://provider.invalid", "http://feed.invalid")
				env.sessions.Set(st.session)

				w := env.do(t, rt.method, rt.target)
				assert.Equal(t, http.StatusUnauthorized, w.Code)

				body := decodeBody[errorResponse](t, w)
				assert.Equal(t, "authentication_required", body.Error)
			})
		}
	}
}

func TestLoginRedirectsToProvider(t *testing.T) {
	env := newTestEnv(t, "http://provider.invalid", "http://feed.invalid")

	w := env.do(t, http.MethodGet, "/auth/login")
	require.Equal(t, http.StatusFound, w.Code)

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/test-tenant/oauth2/v2.0/authorize", location.Path)
	assert.NotEmpty(t, location.Query().Get("state"))

	assert.Equal(t, session.StatusPending, env.sessions.Current().Status)
}

func TestLoginJSONMode(t *testing.T) {
	env := newTestEnv(t, "http://provider.invalid", "http://feed.invalid")

	w := env.do(t, http.MethodGet, "/auth/login?redirect=false")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody[loginResponse](t, w)
	assert.Contains(t, body.AuthURL, "/test-tenant/oauth2/v2.0/authorize")
}

func TestLoginRejectedWhilePending(t *testing.T) {
	env := newTestEnv(t, "http://provider.invalid", "http://feed.invalid")

	w := env.do(t, http.MethodGet, "/auth/login")
	require.Equal(t, http.StatusFound, w.Code)

	w = env.do(t, http.MethodGet, "/auth/login")
	assert.Equal(t, http.StatusConflict, w.Code)

	body := decodeBody[errorResponse](t, w)
	assert.Equal(t, "login_not_allowed", body.Error)
}

func TestCallbackCompletesLogin(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"provider-token","token_type":"Bearer","expires_in":3600}`)
	}))
	defer provider.Close()

	env := newTestEnv(t, provider.URL, "http://feed.invalid")

	w := env.do(t, http.MethodGet, "/auth/login?redirect=false")
	require.Equal(t, http.StatusOK, w.Code)
	authURL, err := url.Parse(decodeBody[loginResponse](t, w).AuthURL)
	require.NoError(t, err)
	state := authURL.Query().Get("state")
	require.NotEmpty(t, state)

	w = env.do(t, http.MethodGet, "/auth/callback?state="+state+"&code=granted-code")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody[sessionResponse](t, w)
	assert.True(t, body.Authenticated)
	assert.Equal(t, string(session.StatusAuthenticated), body.Status)
	assert.NotEmpty(t, body.ExpiresAt)

	// The route guard admits the fresh session.
	w = env.do(t, http.MethodGet, "/emails")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCallbackConsentDenied(t *testing.T) {
	env := newTestEnv(t, "http://provider.invalid", "http://feed.invalid")

	w := env.do(t, http.MethodGet, "/auth/login")
	require.Equal(t, http.StatusFound, w.Code)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	w = env.do(t, http.MethodGet, "/auth/callback?error=access_denied&error_description=user+declined")
	assert.Equal(t, http.StatusForbidden, w.Code)

	body := decodeBody[errorResponse](t, w)
	assert.Equal(t, "access_denied", body.Error)
	assert.Equal(t, "user declined", body.Message)
	assert.Equal(t, session.StatusAnonymous, env.sessions.Current().Status)

	// Replaying the denied flow's callback with its original state must
	// not log the session in.
	w = env.do(t, http.MethodGet, "/auth/callback?state="+state+"&code=replayed-code")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_state", decodeBody[errorResponse](t, w).Error)
	assert.Equal(t, session.StatusAnonymous, env.sessions.Current().Status)
}

func TestCallbackUnknownState(t *testing.T) {
	env := newTestEnv(t, "http://provider.invalid", "http://feed.invalid")

	w := env.do(t, http.MethodGet, "/auth/callback?state=forged&code=whatever")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeBody[errorResponse](t, w)
	assert.Equal(t, "invalid_state", body.Error)
}

func TestLogoutClearsSessionAndWorkingSet(t *testing.T) {
	env := newTestEnv(t, "http://provider.invalid", "http://feed.invalid")
	env.authenticate()
	env.records.Upsert(seedRecord("msg-1", "s", "a@example.com", "Work", 0.5, triage.SentimentNeutral))

	w := env.do(t, http.MethodPost, "/auth/logout")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, session.StatusAnonymous, env.sessions.Current().Status)
	assert.Zero(t, env.records.Len())

	w = env.do(t, http.MethodGet, "/emails")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionEndpoint(t *testing.T) {
	env := newTestEnv(t, "http://provider.invalid", "http://feed.invalid")

	w := env.do(t, http.MethodGet, "/auth/session")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody[sessionResponse](t, w)
	assert.Equal(t, string(session.StatusAnonymous), body.Status)
	assert.False(t, body.Authenticated)
	assert.Empty(t, body.ExpiresAt)
}

func TestEmailsListingAndFiltering(t *testing.T) {
	env := newTestEnv(t, "http://provider.invalid", "http://feed.invalid")
	env.authenticate()
	env.records.Upsert(seedRecord("a", "Server Outage Alert", "ops@example.com", "Work", 0.8, triage.SentimentNegative))
	env.records.Upsert(seedRecord("b", "Invoice Due", "billing@vendor.example", "Finance", 0.9, triage.SentimentNeutral))
	env.records.Upsert(seedRecord("c", "Weekend Plans", "friend@example.com", "Social", 0.1, triage.SentimentPositive))

	tests := []struct {
		name     string
		target   string
		filtered int
		firstID  string
	}{
		{"unfiltered", "/emails", 3, "a"},
		{"query match", "/emails?q=outage", 1, "a"},
		{"category facet", "/emails?category=Finance", 1, "b"},
		{"priority facet", "/emails?priority=high", 2, "a"},
		{"sentiment facet", "/emails?sentiment=positive", 1, "c"},
		{"combined with empty result", "/emails?q=outage&category=Social", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.target)
			require.Equal(t, http.StatusOK, w.Code)

			body := decodeBody[emailListResponse](t, w)
			assert.Equal(t, tt.filtered, body.Filtered)
			assert.Equal(t, 3, body.Total)
			require.Len(t, body.Emails, tt.filtered)
			if tt.firstID != "" {
				assert.Equal(t, tt.firstID, body.Emails[0].ID)
			}
		})
	}
}

func TestEmailsLimitTruncatesPage(t *testing.T) {
	env := newTestEnv(t, "http://provider.invalid", "http://feed.invalid")
	env.authenticate()
	env.records.Upsert(seedRecord("a", "First", "a@example.com", "Work", 0.5, triage.SentimentNeutral))
	env.records.Upsert(seedRecord("b", "Second", "b@example.com", "Work", 0.5, triage.SentimentNeutral))
	env.records.Upsert(seedRecord("c", "Third", "c@example.com", "Work", 0.5, triage.SentimentNeutral))

	w := env.do(t, http.MethodGet, "/emails?limit=2")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody[emailListResponse](t, w)
	require.Len(t, body.Emails, 2)
	assert.Equal(t, "a", body.Emails[0].ID)
	assert.Equal(t, "b", body.Emails[1].ID)

	// Filtered reports the full match count, not the page size.
	assert.Equal(t, 3, body.Filtered)
	assert.Equal(t, 3, body.Total)
}

func TestEmailsCarryDerivedBadges(t *testing.T) {
	env := newTestEnv(t, "http://provider.invalid", "http://feed.invalid")
	env.authenticate()
	env.records.Upsert(seedRecord("a", "Urgent", "ops@example.com", "Work", 0.8, triage.SentimentNegative))
	env.records.Upsert(seedRecord("b", "Casual", "friend@example.com", "Social", 0.2, triage.SentimentPositive))

	w := env.do(t, http.MethodGet, "/emails")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody[emailListResponse](t, w)
	require.Len(t, body.Emails, 2)
	assert.Equal(t, triage.PriorityHigh, body.Emails[0].PriorityBucket)
	assert.True(t, body.Emails[0].HighPriority)
	assert.Equal(t, triage.PriorityLow, body.Emails[1].PriorityBucket)
	assert.False(t, body.Emails[1].HighPriority)
}

func TestSyncIngestsFeedRecords(t *testing.T) {
	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
		  {
		    "email_id": "msg-1",
		    "subject": "Quarterly report due",
		    "sender": "boss@example.com",
		    "category": "Work",
		    "received_time": "2026-03-01T09:00:00Z",
		    "importance": "high",
		    "analysis_results": {
		      "priority_score": 0.85,
		      "sentiment": {"label": "neutral", "score": 0.6},
		      "summary": "Report due Friday.",
		      "suggested_actions": ["Draft the report"]
		    }
		  }
		]`)
	}))
	defer feedSrv.Close()

	env := newTestEnv(t, "http://provider.invalid", feedSrv.URL)
	env.authenticate()

	w := env.do(t, http.MethodPost, "/emails/sync")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody[syncResponse](t, w)
	assert.Equal(t, 1, body.Ingested)
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, 1, env.records.Len())
}

func TestSyncFeedFailureIsRetryable(t *testing.T) {
	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer feedSrv.Close()

	env := newTestEnv(t, "http://provider.invalid", feedSrv.URL)
	env.authenticate()
	env.records.Upsert(seedRecord("keep", "still here", "a@example.com", "Work", 0.5, triage.SentimentNeutral))

	w := env.do(t, http.MethodPost, "/emails/sync")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	body := decodeBody[errorResponse](t, w)
	assert.Equal(t, "feed_unavailable", body.Error)
	assert.True(t, body.Retryable)

	// The last good working set survives the failed sync.
	assert.Equal(t, 1, env.records.Len())
}

func TestDashboardMetrics(t *testing.T) {
	env := newTestEnv(t, "http://provider.invalid", "http://feed.invalid")
	env.authenticate()
	env.records.Upsert(seedRecord("a", "Urgent", "ops@example.com", "Work", 0.8, triage.SentimentPositive))
	env.records.Upsert(seedRecord("b", "Invoice", "billing@vendor.example", "Finance", 0.9, triage.SentimentNeutral))

	w := env.do(t, http.MethodGet, "/dashboard/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody[triage.MetricsSnapshot](t, w)
	assert.Equal(t, 2, body.TotalEmails)
	assert.Equal(t, 2, body.PriorityDistribution[triage.PriorityHigh])
	assert.Equal(t, 1, body.SentimentDistribution[triage.SentimentPositive])
	assert.Equal(t, map[string]int{"Work": 1, "Finance": 1}, body.Categories)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, "http://provider.invalid", "http://feed.invalid")

	w := env.do(t, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	live := decodeBody[HealthResponse](t, w)
	assert.Equal(t, "ok", live.Status)

	w = env.do(t, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessFailsDuringShutdown(t *testing.T) {
	env := newTestEnv(t, "http://provider.invalid", "http://feed.invalid")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, env.server.Shutdown(ctx))

	w := env.do(t, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	ready := decodeBody[HealthResponse](t, w)
	assert.Equal(t, "not ready", ready.Status)
}
