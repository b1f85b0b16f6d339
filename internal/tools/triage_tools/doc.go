// Package triage_tools registers MCP tools that expose the triage
// working set to AI assistants: searching the analyzed email list with
// the same query/facet semantics as the dashboard, and reading the
// aggregate metrics snapshot. The tools run over the same stores and
// evaluators as the HTTP surface, so both views always agree.
package triage_tools
