package retrieve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"clinicalrag/internal/fhir"
	"clinicalrag/internal/kg"
)

func TestFuseRRFCombinesSourcesByResourceID(t *testing.T) {
	fhirHits := []fhir.DocumentHit{
		{DocumentID: "doc-1", Score: 0.9},
		{DocumentID: "doc-2", Score: 0.8},
	}
	kgHits := []kg.SearchResult{
		{Entity: kg.Entity{ID: 1, ResourceID: "doc-1"}, Score: 0.7},
	}

	out := FuseRRF(fhirHits, kgHits, 60, 1.0, 0.7)
	require.Len(t, out, 2)
	require.Equal(t, "doc-1", out[0].DocumentID)
	require.True(t, out[0].Sources[SourceFHIR])
	require.True(t, out[0].Sources[SourceKG])
	require.False(t, out[1].Sources[SourceKG])
}

func TestFuseRRFTieBreaksByRawScoreWhenFusedScoresMatch(t *testing.T) {
	// Equal weights and equal rank position (1st in each list) produce an
	// exact fused-score tie between a FHIR-only doc and a KG-only doc;
	// the higher raw score must win.
	fhirHits := []fhir.DocumentHit{{DocumentID: "doc-low", Score: 0.2}}
	kgHits := []kg.SearchResult{{Entity: kg.Entity{ID: 1, ResourceID: "doc-high"}, Score: 0.9}}

	out := FuseRRF(fhirHits, kgHits, 60, 1.0, 1.0)
	require.Len(t, out, 2)
	require.InDelta(t, out[0].Score, out[1].Score, 1e-9)
	require.Equal(t, "doc-high", out[0].DocumentID)
}

func TestFuseRRFTieBreaksByDocumentIDWhenFullyTied(t *testing.T) {
	fhirHits := []fhir.DocumentHit{{DocumentID: "doc-b", Score: 0.5}}
	kgHits := []kg.SearchResult{{Entity: kg.Entity{ID: 1, ResourceID: "doc-a"}, Score: 0.5}}

	out := FuseRRF(fhirHits, kgHits, 60, 1.0, 1.0)
	require.Len(t, out, 2)
	require.Equal(t, "doc-a", out[0].DocumentID)
	require.Equal(t, "doc-b", out[1].DocumentID)
}

func TestFuseRRFEntitiesWithoutResourceIDAreIgnored(t *testing.T) {
	kgHits := []kg.SearchResult{
		{Entity: kg.Entity{ID: 1, ResourceID: ""}, Score: 0.9},
	}
	out := FuseRRF(nil, kgHits, 60, 1.0, 0.7)
	require.Empty(t, out)
}

func TestFuseRRFDefaultsKWhenNonPositive(t *testing.T) {
	fhirHits := []fhir.DocumentHit{{DocumentID: "doc-1", Score: 0.5}}
	out := FuseRRF(fhirHits, nil, 0, 1.0, 0.7)
	require.Len(t, out, 1)
	require.InDelta(t, 1.0/61.0, out[0].Score, 1e-9)
}
