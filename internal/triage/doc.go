// Package triage holds the analyzed-email working set and the pure
// logic derived from it: the insertion-ordered record store, the
// dashboard metrics aggregation, and the search/filter evaluator.
//
// All records arrive pre-analyzed from the external classification
// feed; this package never inspects email bodies or talks to the
// network. Aggregation always runs over the full store contents, never
// over a filtered view, so the dashboard can show "N of M total"
// without the counts drifting.
package triage
