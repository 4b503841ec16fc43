// Package retrieve implements the hybrid retrieval surface described in
// spec.md §4.4-§4.7: FHIR document search, knowledge graph search, optional
// radiology image search, and reciprocal-rank fusion across them.
package retrieve

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"clinicalrag/internal/fhir"
	"clinicalrag/internal/imaging"
	"clinicalrag/internal/kg"
	"clinicalrag/internal/rag/obs"
)

// Options configures one hybrid_search call.
type Options struct {
	Query        string
	TopK         int
	PatientID    string
	EncounterID  string
	IncludeImage bool
	QueryImage   []byte
}

// Response is the fused, ranked result set returned to a tool handler.
type Response struct {
	Results        []FusedResult
	SearchMode     fhir.SearchMode
	FallbackReason string
}

// Facade bundles the three backends a hybrid search fans out to. Image
// search is optional and may be nil when the deployment has no imaging
// backend configured.
type Facade struct {
	Documents *fhir.DocumentStore
	Entities  *kg.Store
	Images    *imaging.Store
	Embedder  interface {
		fhir.EmbeddingLookup
		kg.EmbeddingLookup
		imaging.EmbeddingLookup
	}
	FusionK    int
	WeightFHIR float64
	WeightKG   float64
	Metrics    obs.Metrics
}

func (f *Facade) metrics() obs.Metrics {
	if f.Metrics != nil {
		return f.Metrics
	}
	return obs.NoopMetrics{}
}

// HybridSearch runs spec.md §4.7: fan FHIR document search and knowledge
// graph search out concurrently, fuse by weighted RRF, then optionally
// attach image provenance when the caller asked for image evidence.
func (f *Facade) HybridSearch(ctx context.Context, opts Options) (Response, error) {
	start := time.Now()
	defer func() {
		f.metrics().ObserveHistogram("retrieval_stage_ms", float64(time.Since(start).Milliseconds()), map[string]string{"stage": "hybrid_search"})
	}()

	filters := map[string]string{}
	if opts.PatientID != "" {
		filters["patient_id"] = opts.PatientID
	}
	if opts.EncounterID != "" {
		filters["encounter_id"] = opts.EncounterID
	}

	cands, err := f.gatherCandidates(ctx, opts, filters)
	if err != nil {
		return Response{}, err
	}

	fused := FuseRRF(cands.fhirHits, cands.kgHits, f.FusionK, f.WeightFHIR, f.WeightKG)
	if opts.TopK > 0 && len(fused) > opts.TopK {
		fused = fused[:opts.TopK]
	}
	for i := range fused {
		fused[i].Snippet = CleanNarrative(fused[i].Snippet)
	}

	if opts.IncludeImage && f.Images != nil && len(cands.imageHits) > 0 {
		imageDocIDs := map[string]bool{}
		for _, h := range cands.imageHits {
			if h.FHIRResourceID != "" {
				imageDocIDs[h.FHIRResourceID] = true
			}
		}
		AttachImageSource(fused, imageDocIDs)
	}

	f.metrics().IncCounter("retrieval_results_total", map[string]string{"mode": string(cands.searchMode)})

	return Response{
		Results:        fused,
		SearchMode:     cands.searchMode,
		FallbackReason: cands.fallbackReason,
	}, nil
}

// candidateSet holds the raw per-source results gathered before fusion.
type candidateSet struct {
	fhirHits       []fhir.DocumentHit
	kgHits         []kg.SearchResult
	imageHits      []imaging.SearchHit
	searchMode     fhir.SearchMode
	fallbackReason string
}

// gatherCandidates runs the FHIR, KG, and (when requested) image searches
// concurrently via errgroup; a failure in the optional image leg does not
// fail the whole call, but a failure in FHIR or KG does.
func (f *Facade) gatherCandidates(ctx context.Context, opts Options, filters map[string]string) (candidateSet, error) {
	var cands candidateSet
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hits, mode, reason, err := f.Documents.Search(gctx, f.Embedder, opts.Query, opts.TopK, filters)
		if err != nil {
			return err
		}
		cands.fhirHits = hits
		cands.searchMode = mode
		cands.fallbackReason = reason
		return nil
	})

	g.Go(func() error {
		hits, err := f.Entities.Search(gctx, f.Embedder, opts.Query, opts.TopK)
		if err != nil {
			return err
		}
		cands.kgHits = hits
		return nil
	})

	if opts.IncludeImage && f.Images != nil {
		g.Go(func() error {
			searchOpts := imaging.SearchOptions{TopK: opts.TopK, SubjectID: opts.PatientID}
			hits, err := f.Images.Search(gctx, f.Embedder, opts.Query, opts.QueryImage, searchOpts)
			if err != nil {
				// Image evidence is additive, not load-bearing: a failure here
				// narrows results to FHIR+KG rather than failing the search.
				return nil
			}
			cands.imageHits = hits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return candidateSet{}, err
	}
	return cands, nil
}
