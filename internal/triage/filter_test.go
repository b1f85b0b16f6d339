package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func filterFixtures() []EmailRecord {
	return []EmailRecord{
		record("a", "Quarterly Report", "boss@corp.example", "Work", 0.8, SentimentPositive),
		record("b", "Invoice Payment Due", "billing@vendor.example", "Finance", 0.9, SentimentNeutral),
		record("c", "Team lunch Friday", "office@corp.example", "Work", 0.2, SentimentPositive),
		record("d", "Re: complaint", "customer@client.example", "Support", 0.5, SentimentNegative),
	}
}

func ids(records []EmailRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestFilterIdentity(t *testing.T) {
	records := filterFixtures()
	result := Filter(records, "", Facets{})

	assert.Equal(t, records, result)

	// The identity result is a copy, not an alias of the input.
	result[0].Subject = "mutated"
	assert.Equal(t, "Quarterly Report", records[0].Subject)
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		facets   Facets
		expected []string
	}{
		{
			name:     "query matches subject case-insensitively",
			query:    "invoice",
			expected: []string{"b"},
		},
		{
			name:     "query matches sender",
			query:    "corp.example",
			expected: []string{"a", "c"},
		},
		{
			name:     "query with no match",
			query:    "zzz-no-such-term",
			expected: []string{},
		},
		{
			name:     "category facet",
			facets:   Facets{Category: "Work"},
			expected: []string{"a", "c"},
		},
		{
			name:     "priority facet",
			facets:   Facets{Priority: PriorityHigh},
			expected: []string{"a", "b"},
		},
		{
			name:     "sentiment facet",
			facets:   Facets{Sentiment: SentimentNegative},
			expected: []string{"d"},
		},
		{
			name:     "query and facets combine with AND",
			query:    "corp.example",
			facets:   Facets{Category: "Work", Priority: PriorityLow},
			expected: []string{"c"},
		},
		{
			name:     "facets with no intersection",
			facets:   Facets{Category: "Finance", Sentiment: SentimentNegative},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := filterFixtures()
			result := Filter(records, tt.query, tt.facets)

			assert.Equal(t, tt.expected, ids(result))

			// The result must be a subsequence of the input: same
			// relative order, nothing fabricated or duplicated.
			seen := make(map[string]bool)
			cursor := 0
			for _, r := range result {
				assert.False(t, seen[r.ID], "record %s duplicated", r.ID)
				seen[r.ID] = true
				for cursor < len(records) && records[cursor].ID != r.ID {
					cursor++
				}
				assert.Less(t, cursor, len(records), "record %s not in input order", r.ID)
			}

			// Input untouched.
			assert.Equal(t, filterFixtures(), records)
		})
	}
}
