package triage

import "strings"

// Facets are exact-match filter dimensions. Zero values mean the
// dimension is not constrained.
type Facets struct {
	Category  string
	Priority  PriorityBucket
	Sentiment SentimentLabel
}

// empty reports whether no facet is set.
func (f Facets) empty() bool {
	return f.Category == "" && f.Priority == "" && f.Sentiment == ""
}

// Filter narrows records to those matching the text query and every set
// facet. The query matches case-insensitively as a substring of subject
// or sender; facets AND with the query and with each other.
//
// The result preserves input order and is always a subsequence of the
// input; the underlying records are never mutated. An empty query with
// empty facets returns a copy of the input unchanged, so dashboard
// metrics (always computed over the full set) and the filtered view
// stay independently consistent.
func Filter(records []EmailRecord, query string, facets Facets) []EmailRecord {
	if query == "" && facets.empty() {
		out := make([]EmailRecord, len(records))
		copy(out, records)
		return out
	}

	query = strings.ToLower(query)

	out := make([]EmailRecord, 0, len(records))
	for _, r := range records {
		if !matchesQuery(r, query) {
			continue
		}
		if facets.Category != "" && r.Category != facets.Category {
			continue
		}
		if facets.Priority != "" && BucketForScore(r.Analysis.PriorityScore) != facets.Priority {
			continue
		}
		if facets.Sentiment != "" && r.Analysis.Sentiment.Label != facets.Sentiment {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesQuery(r EmailRecord, lowerQuery string) bool {
	if lowerQuery == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Subject), lowerQuery) ||
		strings.Contains(strings.ToLower(r.Sender), lowerQuery)
}
