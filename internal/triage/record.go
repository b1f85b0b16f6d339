package triage

import "time"

// SentimentLabel is the classification backend's verdict on the tone of
// an email.
type SentimentLabel string

// Sentiment labels produced by the classification backend.
const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// SentimentLabels lists all labels in a stable order, used to seed
// zero-count distribution buckets.
var SentimentLabels = []SentimentLabel{SentimentPositive, SentimentNeutral, SentimentNegative}

// Sentiment is the backend's sentiment verdict with its confidence.
type Sentiment struct {
	Label SentimentLabel `json:"label"`
	Score float64        `json:"score"`
}

// PriorityBucket classifies a continuous priority score into one of a
// fixed set of named ranges.
type PriorityBucket string

// Priority buckets.
const (
	PriorityHigh   PriorityBucket = "high"
	PriorityMedium PriorityBucket = "medium"
	PriorityLow    PriorityBucket = "low"
)

// PriorityBuckets lists all buckets in a stable order, used to seed
// zero-count distribution buckets.
var PriorityBuckets = []PriorityBucket{PriorityHigh, PriorityMedium, PriorityLow}

// Bucket thresholds. The high threshold doubles as the per-record
// high-priority badge rule, so the badge and the aggregate
// priorityDistribution can never disagree.
const (
	highPriorityThreshold   = 0.7
	mediumPriorityThreshold = 0.3
)

// BucketForScore maps a priority score in [0,1] to its bucket:
// > 0.7 is high, > 0.3 is medium, everything else is low.
func BucketForScore(score float64) PriorityBucket {
	switch {
	case score > highPriorityThreshold:
		return PriorityHigh
	case score > mediumPriorityThreshold:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// AnalysisResult is the per-email output of the external classification
// backend. It is immutable once attached to an EmailRecord.
type AnalysisResult struct {
	// PriorityScore is in [0,1]; see BucketForScore.
	PriorityScore float64 `json:"priority_score"`

	Sentiment Sentiment `json:"sentiment"`

	// Summary is a short model-generated digest of the email body.
	Summary string `json:"summary"`

	// SuggestedActions are ordered follow-up suggestions rendered as
	// chips in the email list.
	SuggestedActions []string `json:"suggested_actions"`

	// ResponseTimeHours is how long the email took to answer, when the
	// backend could measure it. Nil when unknown; the aggregation
	// treats unknown as absent, never as zero.
	ResponseTimeHours *float64 `json:"response_time,omitempty"`
}

// EmailRecord is one analyzed email as the dashboard sees it. Identity
// is ID; the record store enforces uniqueness.
type EmailRecord struct {
	ID       string `json:"email_id"`
	Subject  string `json:"subject"`
	Sender   string `json:"sender"`
	Category string `json:"category"`

	// ReceivedTime and Importance pass through from the upstream mail
	// API unchanged.
	ReceivedTime time.Time `json:"received_time"`
	Importance   string    `json:"importance,omitempty"`

	Analysis AnalysisResult `json:"analysis_results"`
}

// HighPriority reports whether the record gets the high-priority badge.
func (r EmailRecord) HighPriority() bool {
	return BucketForScore(r.Analysis.PriorityScore) == PriorityHigh
}
