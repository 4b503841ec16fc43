package fhir

import (
	"context"
	"sort"
	"time"
)

// MatchEncounter finds the Encounter for patientID whose [start,end] window
// intersects [studyTime-window, studyTime+window], breaking ties by smallest
// absolute midpoint distance to studyTime, then by lowest lexicographic id.
// Returns ("", false) when no candidate intersects the window; failures to
// reach the server are non-fatal to the caller (BuildImagingStudy still
// succeeds without an encounter reference).
func MatchEncounter(ctx context.Context, client *Client, patientID string, studyTime time.Time, window time.Duration) (string, bool) {
	encounters, err := client.SearchEncountersForPatient(ctx, patientID)
	if err != nil || len(encounters) == 0 {
		return "", false
	}

	lo := studyTime.Add(-window)
	hi := studyTime.Add(window)

	type candidate struct {
		id       string
		distance time.Duration
	}
	var candidates []candidate
	for _, e := range encounters {
		start := e.Period.Start
		end := e.Period.End
		if end.IsZero() {
			end = start
		}
		if start.After(hi) || end.Before(lo) {
			continue
		}
		midpoint := start.Add(end.Sub(start) / 2)
		d := midpoint.Sub(studyTime)
		if d < 0 {
			d = -d
		}
		candidates = append(candidates, candidate{id: e.ID, distance: d})
	}
	if len(candidates) == 0 {
		return "", false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].id < candidates[j].id
	})
	return candidates[0].id, true
}
