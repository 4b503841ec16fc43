// Package kg is the medical knowledge-graph store: a directed, typed graph
// of clinical entities (conditions, symptoms, medications, anatomy,
// procedures) and the relationships between them, backed by two flat
// Postgres tables rather than an in-memory pointer graph — so cycles never
// become a representation problem, only a traversal one.
package kg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EntityType enumerates the kinds of node this graph stores.
type EntityType string

const (
	EntityCondition EntityType = "CONDITION"
	EntitySymptom   EntityType = "SYMPTOM"
	EntityMedication EntityType = "MEDICATION"
	EntityAnatomy   EntityType = "ANATOMY"
	EntityProcedure EntityType = "PROCEDURE"
)

// Entity is one knowledge-graph node.
type Entity struct {
	ID         int64
	Text       string
	Type       EntityType
	Confidence float64
	ResourceID string
	CreatedAt  time.Time
}

// Relationship is one directed, typed edge between two entities.
type Relationship struct {
	ID         int64
	SourceID   int64
	TargetID   int64
	Type       string
	Confidence float64
	ResourceID string
	CreatedAt  time.Time
}

// Store is a Postgres-backed knowledge graph: RAG.Entities and
// RAG.EntityRelationships, per spec.md §6's DB schema.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore bootstraps the schema idempotently and returns a ready Store.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rag_entities (
			entity_id   BIGSERIAL PRIMARY KEY,
			entity_text TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			confidence  DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			resource_id TEXT,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (entity_text, entity_type)
		)`,
		`CREATE TABLE IF NOT EXISTS rag_entity_relationships (
			relationship_id   BIGSERIAL PRIMARY KEY,
			source_entity_id  BIGINT NOT NULL REFERENCES rag_entities(entity_id),
			target_entity_id  BIGINT NOT NULL REFERENCES rag_entities(entity_id),
			relationship_type TEXT NOT NULL,
			confidence        DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			resource_id       TEXT,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (source_entity_id, target_entity_id, relationship_type)
		)`,
		`CREATE INDEX IF NOT EXISTS rag_entity_relationships_src ON rag_entity_relationships(source_entity_id, relationship_type)`,
		`CREATE INDEX IF NOT EXISTS rag_entity_relationships_dst ON rag_entity_relationships(target_entity_id, relationship_type)`,
		`CREATE INDEX IF NOT EXISTS rag_entities_text_trgm ON rag_entities USING gin (entity_text gin_trgm_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			// gin_trgm_ops requires pg_trgm; degrade gracefully if the extension
			// isn't installed, the substring-fallback search path still works
			// via a plain ILIKE scan without that index.
			if stmt == stmts[len(stmts)-1] {
				continue
			}
			return nil, err
		}
	}
	return &Store{pool: pool}, nil
}

// UpsertEntity inserts an entity if (text, type) is new, otherwise returns
// the existing row's id unchanged — entities are never mutated after
// creation, per spec.md's Entity invariant.
func (s *Store) UpsertEntity(ctx context.Context, e Entity) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO rag_entities (entity_text, entity_type, confidence, resource_id)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (entity_text, entity_type) DO UPDATE SET entity_text = rag_entities.entity_text
		RETURNING entity_id
	`, e.Text, string(e.Type), e.Confidence, e.ResourceID).Scan(&id)
	return id, err
}

// UpsertRelationship inserts a (source, target, type) edge if not already
// present.
func (s *Store) UpsertRelationship(ctx context.Context, r Relationship) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO rag_entity_relationships (source_entity_id, target_entity_id, relationship_type, confidence, resource_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		ON CONFLICT (source_entity_id, target_entity_id, relationship_type)
		DO UPDATE SET confidence = rag_entity_relationships.confidence
		RETURNING relationship_id
	`, r.SourceID, r.TargetID, r.Type, r.Confidence, r.ResourceID).Scan(&id)
	return id, err
}

// Statistics is a count of entities per type and total relationships, used
// by the get_entity_statistics tool.
type Statistics struct {
	EntitiesByType    map[EntityType]int
	TotalRelationships int
}

// Statistics computes entity-type counts and the total relationship count.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	out := Statistics{EntitiesByType: map[EntityType]int{}}

	rows, err := s.pool.Query(ctx, `SELECT entity_type, COUNT(*) FROM rag_entities GROUP BY entity_type`)
	if err != nil {
		return Statistics{}, err
	}
	for rows.Next() {
		var typ string
		var count int
		if err := rows.Scan(&typ, &count); err != nil {
			rows.Close()
			return Statistics{}, err
		}
		out.EntitiesByType[EntityType(typ)] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Statistics{}, err
	}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rag_entity_relationships`).Scan(&out.TotalRelationships); err != nil {
		return Statistics{}, err
	}
	return out, nil
}

// GetEntity fetches a single entity by id.
func (s *Store) GetEntity(ctx context.Context, id int64) (Entity, error) {
	var e Entity
	var typ string
	err := s.pool.QueryRow(ctx, `
		SELECT entity_id, entity_text, entity_type, confidence, COALESCE(resource_id, ''), created_at
		FROM rag_entities WHERE entity_id = $1
	`, id).Scan(&e.ID, &e.Text, &typ, &e.Confidence, &e.ResourceID, &e.CreatedAt)
	e.Type = EntityType(typ)
	return e, err
}

// FindByText resolves an entity's canonical text (case-insensitively) to its
// row, for callers that only have the surface form a clinician would type
// rather than an id already in hand. Ties (same text, multiple types) break
// toward the highest-confidence, then lowest-id row.
func (s *Store) FindByText(ctx context.Context, text string) (Entity, error) {
	var e Entity
	var typ string
	err := s.pool.QueryRow(ctx, `
		SELECT entity_id, entity_text, entity_type, confidence, COALESCE(resource_id, ''), created_at
		FROM rag_entities WHERE lower(entity_text) = lower($1)
		ORDER BY confidence DESC, entity_id ASC
		LIMIT 1
	`, text).Scan(&e.ID, &e.Text, &typ, &e.Confidence, &e.ResourceID, &e.CreatedAt)
	e.Type = EntityType(typ)
	return e, err
}
