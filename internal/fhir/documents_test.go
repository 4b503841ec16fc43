package fhir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimpleSnippetCentersOnMatch(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog in the chest x-ray report"
	snippet := simpleSnippet(text, "fox")
	require.Contains(t, snippet, "fox")
}

func TestSimpleSnippetFallsBackToLeadingWindowWithoutMatch(t *testing.T) {
	text := "no overlap with the query term at all"
	snippet := simpleSnippet(text, "zzz")
	require.Equal(t, text, snippet)
}

func TestSimpleSnippetEmptyText(t *testing.T) {
	require.Equal(t, "", simpleSnippet("", "anything"))
}

func TestMatchesFiltersRequiresAllKeys(t *testing.T) {
	md := map[string]string{"patient_id": "p1", "resource_kind": "DocumentReference"}
	require.True(t, matchesFilters(md, map[string]string{"patient_id": "p1"}))
	require.False(t, matchesFilters(md, map[string]string{"patient_id": "p2"}))
	require.True(t, matchesFilters(md, nil))
}
