package fhir

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func encounterServer(t *testing.T, encounters []map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/fhir+json")
		if r.URL.Path == "/metadata" {
			w.WriteHeader(http.StatusOK)
			return
		}
		entries := make([]map[string]any, 0, len(encounters))
		for _, e := range encounters {
			entries = append(entries, map[string]any{"resource": e})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"resourceType": "Bundle", "entry": entries})
	}))
}

func TestMatchEncounterPrefersClosestMidpoint(t *testing.T) {
	studyTime := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	near := studyTime.Add(12 * time.Hour)
	far := studyTime.Add(30 * time.Hour)

	srv := encounterServer(t, []map[string]any{
		{"id": "enc-near", "status": "finished", "subject": map[string]any{"reference": "Patient/p1"},
			"period": map[string]any{"start": near.Format(time.RFC3339), "end": near.Format(time.RFC3339)}},
		{"id": "enc-far", "status": "finished", "subject": map[string]any{"reference": "Patient/p1"},
			"period": map[string]any{"start": far.Format(time.RFC3339), "end": far.Format(time.RFC3339)}},
	})
	defer srv.Close()

	c := NewClient(t.Context(), srv.URL, srv.Client())
	id, ok := MatchEncounter(t.Context(), c, "p1", studyTime, 24*time.Hour)
	require.True(t, ok)
	require.Equal(t, "enc-near", id)
}

func TestMatchEncounterReturnsNoneWhenOutsideWindow(t *testing.T) {
	studyTime := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	far := studyTime.Add(25 * time.Hour)

	srv := encounterServer(t, []map[string]any{
		{"id": "enc-far", "status": "finished", "subject": map[string]any{"reference": "Patient/p1"},
			"period": map[string]any{"start": far.Format(time.RFC3339), "end": far.Format(time.RFC3339)}},
	})
	defer srv.Close()

	c := NewClient(t.Context(), srv.URL, srv.Client())
	_, ok := MatchEncounter(t.Context(), c, "p1", studyTime, 24*time.Hour)
	require.False(t, ok)
}

func TestMatchEncounterTieBreaksByLexicographicID(t *testing.T) {
	studyTime := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	sameOffset := studyTime.Add(10 * time.Hour)

	srv := encounterServer(t, []map[string]any{
		{"id": "enc-b", "status": "finished", "subject": map[string]any{"reference": "Patient/p1"},
			"period": map[string]any{"start": sameOffset.Format(time.RFC3339), "end": sameOffset.Format(time.RFC3339)}},
		{"id": "enc-a", "status": "finished", "subject": map[string]any{"reference": "Patient/p1"},
			"period": map[string]any{"start": sameOffset.Format(time.RFC3339), "end": sameOffset.Format(time.RFC3339)}},
	})
	defer srv.Close()

	c := NewClient(t.Context(), srv.URL, srv.Client())
	id, ok := MatchEncounter(t.Context(), c, "p1", studyTime, 24*time.Hour)
	require.True(t, ok)
	require.Equal(t, "enc-a", id)
}
