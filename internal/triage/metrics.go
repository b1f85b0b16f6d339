package triage

import (
	"sort"
	"time"
)

// aggregationWindow caps how many of the most recently received records
// feed the dashboard metrics, matching the upstream product behavior.
const aggregationWindow = 100

// MetricsSnapshot is the fully derived dashboard aggregate. It is never
// mutated in place, only recomputed from the record store.
//
// SentimentDistribution and PriorityDistribution always carry all of
// their fixed buckets, including zero counts. Categories is an open
// vocabulary and omits categories with no records. Each bucket family
// sums to TotalEmails.
type MetricsSnapshot struct {
	TotalEmails           int                    `json:"total_emails"`
	Categories            map[string]int         `json:"categories"`
	SentimentDistribution map[SentimentLabel]int `json:"sentiment_distribution"`
	PriorityDistribution  map[PriorityBucket]int `json:"priority_distribution"`

	// AvgResponseTimeHours is nil when no record in the window carries
	// a measured response time. Zero would wrongly imply zero latency.
	AvgResponseTimeHours *float64 `json:"avg_response_time,omitempty"`

	UpdateTime time.Time `json:"update_time"`
}

// HighPriorityCount returns the high bucket count for the metrics card.
func (m MetricsSnapshot) HighPriorityCount() int {
	return m.PriorityDistribution[PriorityHigh]
}

// PositiveCount returns the positive sentiment count for the metrics card.
func (m MetricsSnapshot) PositiveCount() int {
	return m.SentimentDistribution[SentimentPositive]
}

// Recompute derives a MetricsSnapshot from the given records. It is a
// pure function of its input: permuting the records yields an identical
// snapshot (modulo UpdateTime), and recomputing from scratch is always
// valid, no incremental state is kept anywhere.
//
// When more than aggregationWindow records are supplied, only the most
// recently received ones are counted.
func Recompute(records []EmailRecord) MetricsSnapshot {
	records = mostRecent(records, aggregationWindow)

	snap := MetricsSnapshot{
		TotalEmails:           len(records),
		Categories:            make(map[string]int),
		SentimentDistribution: make(map[SentimentLabel]int, len(SentimentLabels)),
		PriorityDistribution:  make(map[PriorityBucket]int, len(PriorityBuckets)),
		UpdateTime:            time.Now().UTC(),
	}
	for _, label := range SentimentLabels {
		snap.SentimentDistribution[label] = 0
	}
	for _, bucket := range PriorityBuckets {
		snap.PriorityDistribution[bucket] = 0
	}

	var (
		responseTotal float64
		responseCount int
	)
	for _, r := range records {
		snap.Categories[r.Category]++
		snap.SentimentDistribution[r.Analysis.Sentiment.Label]++
		snap.PriorityDistribution[BucketForScore(r.Analysis.PriorityScore)]++

		if rt := r.Analysis.ResponseTimeHours; rt != nil {
			responseTotal += *rt
			responseCount++
		}
	}

	if responseCount > 0 {
		avg := responseTotal / float64(responseCount)
		snap.AvgResponseTimeHours = &avg
	}

	return snap
}

// mostRecent returns the n records with the latest ReceivedTime. The
// selection is order-independent: ties break on record ID so permuted
// inputs pick the same window.
func mostRecent(records []EmailRecord, n int) []EmailRecord {
	if len(records) <= n {
		return records
	}

	sorted := make([]EmailRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].ReceivedTime.Equal(sorted[j].ReceivedTime) {
			return sorted[i].ReceivedTime.After(sorted[j].ReceivedTime)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[:n]
}
