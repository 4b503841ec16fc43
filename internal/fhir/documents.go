package fhir

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clinicalrag/internal/apperr"
	"clinicalrag/internal/persistence/databases"
)

// Document is one embedded FHIR document (spec.md §3's Document entity),
// created by upstream ingestion of a FHIR DocumentReference/DiagnosticReport
// and immutable after write; this package only reads and searches them.
type Document struct {
	ID           string
	ResourceKind string
	Text         string
	PatientID    string
	EncounterID  string
	Date         time.Time
}

// SearchMode reports which retrieval path produced a result set.
type SearchMode string

const (
	SearchSemantic SearchMode = "semantic"
	SearchLexical  SearchMode = "lexical"
)

// DocumentHit is one ranked document result.
type DocumentHit struct {
	DocumentID string
	Score      float64 // [0,1] for semantic hits; occurrence count for lexical hits
	Snippet    string
	Metadata   map[string]string
}

// DocumentStore is the pgvector-backed FHIR document search described in
// spec.md §4.4: a VectorStore for the embedding column plus direct SQL
// access to the same table for the lexical fallback and raw-text reads.
type DocumentStore struct {
	vectors databases.VectorStore
	pool    *pgxpool.Pool
	table   string
}

// NewDocumentStore wraps an existing pgvector-backed VectorStore (table
// name must match so lexical fallback queries hit the same rows).
func NewDocumentStore(vectors databases.VectorStore, pool *pgxpool.Pool, table string) *DocumentStore {
	return &DocumentStore{vectors: vectors, pool: pool, table: table}
}

// Upsert stores one document's text, metadata, and embedding.
func (s *DocumentStore) Upsert(ctx context.Context, doc Document, vec []float32) error {
	md := map[string]string{
		"resource_kind": doc.ResourceKind,
		"text":          doc.Text,
		"patient_id":    doc.PatientID,
	}
	if doc.EncounterID != "" {
		md["encounter_id"] = doc.EncounterID
	}
	if !doc.Date.IsZero() {
		md["date"] = doc.Date.Format(time.RFC3339)
	}
	return s.vectors.Upsert(ctx, doc.ID, vec, md)
}

// EmbeddingLookup is satisfied by the embedding client's text method.
type EmbeddingLookup interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Search implements spec.md §4.4: embed the query and rank by cosine
// similarity mapped to [0,1] via (1+cos)/2; when the vector column is empty
// or the similarity search fails, fall back to a case-insensitive substring
// match ranked by occurrence count.
func (s *DocumentStore) Search(ctx context.Context, embedder EmbeddingLookup, query string, topK int, filters map[string]string) ([]DocumentHit, SearchMode, string, error) {
	if topK <= 0 {
		topK = 10
	}

	hasVecs, err := s.hasVectors(ctx)
	if err != nil {
		return nil, "", "", apperr.WrapDependencyUnavailable(err, "checking fhir document vector availability")
	}
	if hasVecs && embedder != nil {
		vec, err := embedder.EmbedText(ctx, query)
		if err == nil {
			hits, err := s.searchByVector(ctx, vec, topK, filters)
			if err == nil {
				return hits, SearchSemantic, "", nil
			}
		}
	}

	hits, err := s.searchBySubstring(ctx, query, topK, filters)
	if err != nil {
		return nil, "", "", apperr.WrapDependencyUnavailable(err, "lexical fallback document search")
	}
	reason := "vector search unavailable"
	if !hasVecs {
		reason = "no document embeddings present"
	}
	return hits, SearchLexical, reason, nil
}

// Get fetches one document's full text and metadata by id, used by the
// get_document_details tool. The vector column itself is never returned.
func (s *DocumentStore) Get(ctx context.Context, id string) (Document, bool, error) {
	var md map[string]string
	err := s.pool.QueryRow(ctx, `SELECT metadata FROM `+s.table+` WHERE id = $1`, id).Scan(&md)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, false, nil
		}
		return Document{}, false, apperr.WrapDependencyUnavailable(err, "fetching fhir document")
	}
	doc := Document{
		ID:           id,
		ResourceKind: md["resource_kind"],
		Text:         md["text"],
		PatientID:    md["patient_id"],
		EncounterID:  md["encounter_id"],
	}
	if raw, ok := md["date"]; ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			doc.Date = t
		}
	}
	return doc, true, nil
}

func (s *DocumentStore) hasVectors(ctx context.Context) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+s.table+` WHERE vec IS NOT NULL)`).Scan(&exists)
	return exists, err
}

func (s *DocumentStore) searchByVector(ctx context.Context, vec []float32, topK int, filters map[string]string) ([]DocumentHit, error) {
	results, err := s.vectors.SimilaritySearch(ctx, vec, topK, filters)
	if err != nil {
		return nil, err
	}
	hits := make([]DocumentHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, DocumentHit{
			DocumentID: r.ID,
			Score:      (1 + r.Score) / 2,
			Snippet:    simpleSnippet(r.Metadata["text"], ""),
			Metadata:   r.Metadata,
		})
	}
	return hits, nil
}

func (s *DocumentStore) searchBySubstring(ctx context.Context, query string, topK int, filters map[string]string) ([]DocumentHit, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, metadata,
		       GREATEST(0, (length(lower(metadata->>'text')) - length(replace(lower(metadata->>'text'), lower($1), ''))) / NULLIF(length($1), 0)) AS match_count
		FROM `+s.table+`
		WHERE metadata->>'text' ILIKE '%' || $1 || '%'
		ORDER BY match_count DESC, id ASC
		LIMIT $2
	`, q, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []DocumentHit
	for rows.Next() {
		var id string
		var md map[string]string
		var matchCount int
		if err := rows.Scan(&id, &md, &matchCount); err != nil {
			return nil, err
		}
		if !matchesFilters(md, filters) {
			continue
		}
		hits = append(hits, DocumentHit{
			DocumentID: id,
			Score:      float64(matchCount),
			Snippet:    simpleSnippet(md["text"], q),
			Metadata:   md,
		})
	}
	return hits, rows.Err()
}

func matchesFilters(md, filters map[string]string) bool {
	for k, v := range filters {
		if md[k] != v {
			return false
		}
	}
	return true
}

// simpleSnippet returns a short window of text around the first occurrence
// of query, or the leading 160 characters when there's no match to center on.
func simpleSnippet(text, query string) string {
	const window = 160
	if text == "" {
		return ""
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return truncateRunes(text, window)
	}
	idx := strings.Index(strings.ToLower(text), q)
	if idx == -1 {
		return truncateRunes(text, window)
	}
	start := idx - 60
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
