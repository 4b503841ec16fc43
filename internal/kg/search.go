package kg

import (
	"context"
	"fmt"
	"strings"

	"clinicalrag/internal/apperr"
)

// EmbeddingLookup is satisfied by the embedding client's text-embedding
// method, kept narrow here so kg.Search only depends on the shape it uses.
type EmbeddingLookup interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// SearchResult is one ranked entity match.
type SearchResult struct {
	Entity Entity
	Score  float64
}

// Search embeds query and joins against an optional entity_embeddings
// table; when that table is absent (spec.md §9 open question (b), resolved
// as optional), or when embedding the query or the vector query fails, it
// falls back to a substring match on entity_text ordered by confidence
// descending, then entity id ascending. A present but empty table yields an
// empty result rather than the fallback.
func (s *Store) Search(ctx context.Context, embedder EmbeddingLookup, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	hasEmbeddings, err := s.hasEntityEmbeddings(ctx)
	if err != nil {
		return nil, apperr.WrapDependencyUnavailable(err, "check entity_embeddings table")
	}
	if hasEmbeddings && embedder != nil {
		vec, err := embedder.EmbedText(ctx, query)
		if err == nil {
			results, err := s.searchByEmbedding(ctx, vec, limit)
			if err == nil {
				return results, nil
			}
		}
	}
	return s.searchBySubstring(ctx, query, limit)
}

func (s *Store) hasEntityEmbeddings(ctx context.Context) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables WHERE table_name = 'entity_embeddings'
		)
	`).Scan(&exists)
	return exists, err
}

func (s *Store) searchByEmbedding(ctx context.Context, vec []float32, limit int) ([]SearchResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.entity_id, e.entity_text, e.entity_type, e.confidence, COALESCE(e.resource_id, ''), e.created_at,
		       1 - (ee.vec <=> $1::vector) AS score
		FROM entity_embeddings ee
		JOIN rag_entities e ON e.entity_id = ee.entity_id
		ORDER BY ee.vec <=> $1::vector
		LIMIT $2
	`, toVectorLiteral(vec), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var typ string
		if err := rows.Scan(&r.Entity.ID, &r.Entity.Text, &typ, &r.Entity.Confidence, &r.Entity.ResourceID, &r.Entity.CreatedAt, &r.Score); err != nil {
			return nil, err
		}
		r.Entity.Type = EntityType(typ)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) searchBySubstring(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT entity_id, entity_text, entity_type, confidence, COALESCE(resource_id, ''), created_at
		FROM rag_entities
		WHERE entity_text ILIKE '%' || $1 || '%'
		ORDER BY confidence DESC, entity_id ASC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, apperr.WrapDependencyUnavailable(err, "substring entity search")
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var e Entity
		var typ string
		if err := rows.Scan(&e.ID, &e.Text, &typ, &e.Confidence, &e.ResourceID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EntityType(typ)
		out = append(out, SearchResult{Entity: e, Score: e.Confidence})
	}
	return out, rows.Err()
}

func toVectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	b := strings.Builder{}
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(fmt.Sprintf("%g", x))
	}
	b.WriteByte(']')
	return b.String()
}
