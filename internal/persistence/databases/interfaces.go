package databases

import "context"

// VectorResult represents a single nearest-neighbor lookup result.
type VectorResult struct {
	ID       string
	Score    float64 // higher is closer
	Metadata map[string]string
}

// VectorStore is the minimum interface for a pluggable vector store; both
// the pgvector-backed FHIR document store and the Qdrant-backed image store
// implement it, so internal/rag/retrieve and internal/imaging can depend on
// the interface rather than a concrete driver.
type VectorStore interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
	Delete(ctx context.Context, id string) error
	SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]VectorResult, error)
	Close() error
}
