package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triagemail/triagemail/internal/triage"
)

const feedPayload = `[
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
      "summary": "The quarterly report is due Friday.",
      "suggested_actions": ["Draft the report", "Schedule review"],
      "response_time": 4.5
    }
  },
  {
    "email_id": "msg-2",
    "subject": "Team lunch",
    "sender": "colleague@example.com",
    "category": "Social",
    "received_time": "2026-03-01T10:30:00Z",
    "importance": "normal",
    "analysis_results": {
      "priority_score": 0.2,
      "sentiment": {"label": "positive", "score": 0.9},
      "summary": "Lunch on Thursday.",
      "suggested_actions": []
    }
  }
]`

func TestFetchDecodesRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, feedPayload)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, nil)
	records, err := c.Fetch(context.Background(), "tok", 25)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "msg-1", first.ID)
	assert.Equal(t, "Quarterly report due", first.Subject)
	assert.Equal(t, "Work", first.Category)
	assert.Equal(t, 0.85, first.Analysis.PriorityScore)
	assert.Equal(t, triage.SentimentNeutral, first.Analysis.Sentiment.Label)
	require.NotNil(t, first.Analysis.ResponseTimeHours)
	assert.Equal(t, 4.5, *first.Analysis.ResponseTimeHours)
	assert.Equal(t, triage.PriorityHigh, triage.BucketForScore(first.Analysis.PriorityScore))

	// response_time is optional in the feed schema.
	assert.Nil(t, records[1].Analysis.ResponseTimeHours)
}

func TestFetchNormalizesSentimentLabelCase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
		  {
		    "email_id": "msg-1",
		    "subject": "s",
		    "sender": "a@example.com",
		    "category": "Work",
		    "received_time": "2026-03-01T09:00:00Z",
		    "analysis_results": {
		      "priority_score": 0.5,
		      "sentiment": {"label": "Positive", "score": 0.9},
		      "summary": "s",
		      "suggested_actions": []
		    }
		  }
		]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, nil)
	records, err := c.Fetch(context.Background(), "tok", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// A capitalized label must land in the seeded lowercase bucket, not
	// alongside it.
	assert.Equal(t, triage.SentimentPositive, records[0].Analysis.Sentiment.Label)

	snap := triage.Recompute(records)
	assert.Equal(t, 1, snap.SentimentDistribution[triage.SentimentPositive])
	assert.Len(t, snap.SentimentDistribution, 3)
}

func TestFetchReportsUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, nil)
	_, err := c.Fetch(context.Background(), "tok", 10)

	var feedErr *FeedError
	require.ErrorAs(t, err, &feedErr)
	assert.Equal(t, "fetch", feedErr.Op)
	assert.Equal(t, http.StatusServiceUnavailable, feedErr.Status)
}

func TestFetchReportsMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"not": "a list"`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, nil)
	_, err := c.Fetch(context.Background(), "tok", 10)

	var feedErr *FeedError
	require.ErrorAs(t, err, &feedErr)
	assert.Equal(t, "decode", feedErr.Op)
}

func TestFetchUnreachableFeed(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second, nil)
	_, err := c.Fetch(context.Background(), "tok", 10)

	var feedErr *FeedError
	require.ErrorAs(t, err, &feedErr)
	assert.Equal(t, "fetch", feedErr.Op)
	assert.Zero(t, feedErr.Status)
}

func TestSyncUpsertsIntoStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, feedPayload)
	}))
	defer srv.Close()

	store := triage.NewStore()
	store.Upsert(triage.EmailRecord{
		ID:      "msg-1",
		Subject: "stale subject",
	})

	c := NewClient(srv.URL, 5*time.Second, nil)
	n, err := c.Sync(context.Background(), "tok", 25, store)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, store.Len())

	// The refreshed record replaces the stale one in place.
	got, err := store.Get("msg-1")
	require.NoError(t, err)
	assert.Equal(t, "Quarterly report due", got.Subject)
}

func TestSyncLeavesStoreUntouchedOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	store := triage.NewStore()
	store.Upsert(triage.EmailRecord{ID: "keep-me", Subject: "still here"})

	c := NewClient(srv.URL, 5*time.Second, nil)
	_, err := c.Sync(context.Background(), "tok", 25, store)
	require.Error(t, err)
	assert.Equal(t, 1, store.Len())
}
