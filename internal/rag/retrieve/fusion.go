package retrieve

import (
	"sort"

	"clinicalrag/internal/fhir"
	"clinicalrag/internal/kg"
)

const (
	SourceFHIR  = "fhir"
	SourceKG    = "kg"
	SourceImage = "image"
)

// FusedResult is one document after reciprocal-rank fusion across sources.
type FusedResult struct {
	DocumentID string
	Score      float64
	RawScore   float64
	Sources    map[string]bool
	Snippet    string
	Metadata   map[string]string
	Entities   []kg.Entity
}

// FuseRRF implements spec.md §4.7: fused_score(d) = Σ_s w_s / (k + rank_s(d))
// over the FHIR document list and the KG entity list (joined to a document via
// Entity.ResourceID). Ties are broken by higher raw score, then document id
// ascending. Each returned document carries its contributing source set.
func FuseRRF(fhirHits []fhir.DocumentHit, kgHits []kg.SearchResult, k int, wFHIR, wKG float64) []FusedResult {
	if k <= 0 {
		k = 60
	}
	byDoc := map[string]*FusedResult{}

	get := func(id string) *FusedResult {
		r, ok := byDoc[id]
		if !ok {
			r = &FusedResult{DocumentID: id, Sources: map[string]bool{}}
			byDoc[id] = r
		}
		return r
	}

	for i, h := range fhirHits {
		rank := i + 1
		r := get(h.DocumentID)
		r.Score += wFHIR / float64(k+rank)
		r.Sources[SourceFHIR] = true
		if h.Score > r.RawScore {
			r.RawScore = h.Score
		}
		if r.Snippet == "" {
			r.Snippet = h.Snippet
		}
		if r.Metadata == nil {
			r.Metadata = h.Metadata
		}
	}

	for i, res := range kgHits {
		if res.Entity.ResourceID == "" {
			continue
		}
		rank := i + 1
		r := get(res.Entity.ResourceID)
		r.Score += wKG / float64(k+rank)
		r.Sources[SourceKG] = true
		if res.Score > r.RawScore {
			r.RawScore = res.Score
		}
		r.Entities = append(r.Entities, res.Entity)
	}

	out := make([]FusedResult, 0, len(byDoc))
	for _, r := range byDoc {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].RawScore != out[j].RawScore {
			return out[i].RawScore > out[j].RawScore
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	return out
}

// AttachImageSource marks documents in results whose id appears in imageDocIDs
// as also carrying image provenance, without altering their fused score (the
// image search results aren't RRF-weighted per spec.md §4.7's two-source
// invariant; they're surfaced only when hybrid_search explicitly asked for
// image evidence).
func AttachImageSource(results []FusedResult, imageDocIDs map[string]bool) {
	for i := range results {
		if imageDocIDs[results[i].DocumentID] {
			results[i].Sources[SourceImage] = true
		}
	}
}
