package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/triagemail/triagemail/internal/instrumentation"
	"github.com/triagemail/triagemail/internal/logging"
	"github.com/triagemail/triagemail/internal/session"
	"github.com/triagemail/triagemail/internal/triage"
)

// loginResponse carries the provider authorize URL when the client asks
// for JSON instead of a redirect.
type loginResponse struct {
	AuthURL string `json:"auth_url"`
}

// sessionResponse is the public view of the session state.
type sessionResponse struct {
	Status        string `json:"status"`
	Authenticated bool   `json:"authenticated"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// emailView is one list item as the dashboard consumes it: the record
// plus the derived badges.
type emailView struct {
	triage.EmailRecord
	PriorityBucket triage.PriorityBucket `json:"priority_bucket"`
	HighPriority   bool                  `json:"high_priority"`
}

// emailListResponse pairs the filtered view with the size of the full
// set, for "N of M total" rendering.
type emailListResponse struct {
	Emails   []emailView `json:"emails"`
	Filtered int         `json:"filtered"`
	Total    int         `json:"total"`
}

// syncResponse reports a feed sync outcome.
type syncResponse struct {
	Ingested int `json:"ingested"`
	Total    int `json:"total"`
}

// handleLogin begins the OAuth2 flow. By default it 302s the browser to
// the provider's authorize URL; with ?redirect=false it returns the URL
// as JSON for clients that navigate themselves.
func (sc *ServerContext) handleLogin(w http.ResponseWriter, r *http.Request) {
	authURL, err := sc.flow.Begin()
	if err != nil {
		sc.metrics.RecordAuthFlow(r.Context(), instrumentation.StageBegin, instrumentation.ResultError)
		writeError(w, err)
		return
	}
	sc.metrics.RecordAuthFlow(r.Context(), instrumentation.StageBegin, instrumentation.ResultSuccess)

	if r.URL.Query().Get("redirect") == "false" {
		writeJSON(w, http.StatusOK, loginResponse{AuthURL: authURL})
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleCallback is the resumption entry point after the provider
// redirect. It completes (or rejects) the pending flow.
func (sc *ServerContext) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		sc.metrics.RecordAuthFlow(r.Context(), instrumentation.StageComplete, instrumentation.ResultError)
		writeError(w, sc.flow.Deny(errCode, q.Get("error_description")))
		return
	}

	if err := sc.flow.Complete(r.Context(), q.Get("state"), q.Get("code")); err != nil {
		sc.metrics.RecordAuthFlow(r.Context(), instrumentation.StageComplete, instrumentation.ResultError)
		writeError(w, err)
		return
	}
	sc.metrics.RecordAuthFlow(r.Context(), instrumentation.StageComplete, instrumentation.ResultSuccess)

	writeJSON(w, http.StatusOK, sc.sessionView())
}

// handleLogout clears the session and the per-session working set.
func (sc *ServerContext) handleLogout(w http.ResponseWriter, r *http.Request) {
	sc.flow.Logout()
	sc.records.Clear()
	sc.metrics.RecordAuthFlow(r.Context(), instrumentation.StageLogout, instrumentation.ResultSuccess)
	sc.metrics.RecordStoreSize(r.Context(), 0)

	w.WriteHeader(http.StatusNoContent)
}

// handleSession lets the login view poll the current state.
func (sc *ServerContext) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sc.sessionView())
}

func (sc *ServerContext) sessionView() sessionResponse {
	current := sc.sessions.Current()
	resp := sessionResponse{
		Status:        string(current.Status),
		Authenticated: current.Status == session.StatusAuthenticated,
	}
	if !current.ExpiresAt.IsZero() {
		resp.ExpiresAt = current.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// handleEmails returns the working set narrowed by the search query and
// facet filters. Filtering never touches the store; Total always
// reflects the unfiltered set.
func (sc *ServerContext) handleEmails(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	records := sc.records.All()
	filtered := triage.Filter(records, q.Get("q"), triage.Facets{
		Category:  q.Get("category"),
		Priority:  triage.PriorityBucket(q.Get("priority")),
		Sentiment: triage.SentimentLabel(q.Get("sentiment")),
	})

	// A limit truncates the rendered page; Filtered still reports the
	// full match count so pagination hints stay correct.
	matched := len(filtered)
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit >= 0 && limit < len(filtered) {
		filtered = filtered[:limit]
	}

	views := make([]emailView, 0, len(filtered))
	for _, rec := range filtered {
		views = append(views, emailView{
			EmailRecord:    rec,
			PriorityBucket: triage.BucketForScore(rec.Analysis.PriorityScore),
			HighPriority:   rec.HighPriority(),
		})
	}

	writeJSON(w, http.StatusOK, emailListResponse{
		Emails:   views,
		Filtered: matched,
		Total:    len(records),
	})
}

// handleSync pulls the latest analyzed records from the feed into the
// store. Feed failures degrade: the working set keeps its last good
// contents and the response carries a retryable error envelope.
func (sc *ServerContext) handleSync(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ingested, err := sc.feed.Sync(r.Context(), sc.sessions.Current().AccessToken, sc.feedLim, sc.records)
	if err != nil {
		sc.metrics.RecordFeedSync(r.Context(), instrumentation.ResultError, 0, time.Since(start))
		writeError(w, err)
		return
	}
	sc.metrics.RecordFeedSync(r.Context(), instrumentation.ResultSuccess, ingested, time.Since(start))
	sc.metrics.RecordStoreSize(r.Context(), sc.records.Len())

	sc.logger.Info("working set refreshed",
		logging.Operation("server.sync"),
		logging.Status(logging.StatusSuccess),
	)
	writeJSON(w, http.StatusOK, syncResponse{
		Ingested: ingested,
		Total:    sc.records.Len(),
	})
}

// handleMetrics returns the dashboard aggregate, always recomputed from
// the full working set.
func (sc *ServerContext) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, triage.Recompute(sc.records.All()))
}
