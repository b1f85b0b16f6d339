// Package feed consumes the external analyzed-email feed: the NLP
// backend that fetches mail upstream, classifies it, and serves the
// resulting records as JSON. This package only decodes that contract;
// no fetching or classification happens here.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/triagemail/triagemail/internal/logging"
	"github.com/triagemail/triagemail/internal/triage"
)

// FeedError indicates the analyzed-email feed was unreachable or served
// a malformed payload. It is recoverable: the dashboard degrades to the
// last good working set and offers a retry.
type FeedError struct {
	Op     string // "fetch" or "decode"
	Status int    // HTTP status, 0 when the request never completed
	Err    error
}

// Error implements the error interface.
func (e *FeedError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("feed %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("feed %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FeedError) Unwrap() error { return e.Err }

// Client talks to the analyzed-email feed.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a feed client. The timeout bounds every request.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.WithComponent(logger, "feed"),
	}
}

// wireRecord mirrors the feed's JSON schema for one analyzed email.
type wireRecord struct {
	EmailID      string    `json:"email_id"`
	Subject      string    `json:"subject"`
	Sender       string    `json:"sender"`
	Category     string    `json:"category"`
	ReceivedTime time.Time `json:"received_time"`
	Importance   string    `json:"importance"`

	AnalysisResults struct {
		PriorityScore float64 `json:"priority_score"`
		Sentiment     struct {
			Label string  `json:"label"`
			Score float64 `json:"score"`
		} `json:"sentiment"`
		Summary          string   `json:"summary"`
		SuggestedActions []string `json:"suggested_actions"`
		ResponseTime     *float64 `json:"response_time"`
	} `json:"analysis_results"`
}

func (w wireRecord) toRecord() triage.EmailRecord {
	// The feed is not strict about label casing; normalize so every
	// record lands in one of the seeded sentiment buckets.
	label := triage.SentimentLabel(strings.ToLower(w.AnalysisResults.Sentiment.Label))
	return triage.EmailRecord{
		ID:           w.EmailID,
		Subject:      w.Subject,
		Sender:       w.Sender,
		Category:     w.Category,
		ReceivedTime: w.ReceivedTime,
		Importance:   w.Importance,
		Analysis: triage.AnalysisResult{
			PriorityScore: w.AnalysisResults.PriorityScore,
			Sentiment: triage.Sentiment{
				Label: label,
				Score: w.AnalysisResults.Sentiment.Score,
			},
			Summary:           w.AnalysisResults.Summary,
			SuggestedActions:  w.AnalysisResults.SuggestedActions,
			ResponseTimeHours: w.AnalysisResults.ResponseTime,
		},
	}
}

// Fetch retrieves up to limit analyzed records. The access token proves
// to the feed that this user is entitled to the underlying mailbox.
func (c *Client) Fetch(ctx context.Context, accessToken string, limit int) ([]triage.EmailRecord, error) {
	u, err := url.Parse(c.baseURL + "/emails")
	if err != nil {
		return nil, &FeedError{Op: "fetch", Err: err}
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FeedError{Op: "fetch", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FeedError{Op: "fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FeedError{Op: "fetch", Status: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	var wire []wireRecord
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, &FeedError{Op: "decode", Status: resp.StatusCode, Err: err}
	}

	records := make([]triage.EmailRecord, 0, len(wire))
	for _, w := range wire {
		records = append(records, w.toRecord())
	}
	return records, nil
}

// Sync fetches the latest records and upserts them into the store. The
// store's own lock serializes these writes with any concurrent
// mutation, so a sync completing mid-request never exposes a partial
// update. Returns the number of records ingested.
func (c *Client) Sync(ctx context.Context, accessToken string, limit int, store *triage.Store) (int, error) {
	records, err := c.Fetch(ctx, accessToken, limit)
	if err != nil {
		c.logger.Error("feed sync failed",
			logging.Operation("feed.sync"),
			logging.Status(logging.StatusError),
			logging.Err(err),
		)
		return 0, err
	}

	for _, r := range records {
		store.Upsert(r)
		c.logger.Debug("record ingested",
			logging.Operation("feed.sync"),
			logging.EmailID(r.ID),
			logging.SenderHash(r.Sender),
			logging.Domain(r.Sender),
			slog.String(logging.KeyCategory, r.Category),
		)
	}

	c.logger.Info("feed sync complete",
		logging.Operation("feed.sync"),
		logging.Status(logging.StatusSuccess),
		slog.Int("records", len(records)),
	)
	return len(records), nil
}
