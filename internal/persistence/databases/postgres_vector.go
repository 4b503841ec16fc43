package databases

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// pgVector is a pgvector-backed VectorStore. Its schema bootstrap (run once,
// from NewPostgresVector) is idempotent: existing tables/indexes are left in
// place, per spec.md §4.2's bootstrap contract.
type pgVector struct {
	pool       *pgxpool.Pool
	table      string
	dimensions int
	metric     string // cosine|l2|ip
}

// NewPostgresVector opens (or creates) a pgvector table named `table` with
// an HNSW index (M=16, efConstruction=100) whose operator class follows the
// metric: cosine by default, l2 or inner product when asked for.
func NewPostgresVector(ctx context.Context, pool *pgxpool.Pool, table string, dimensions int, metric string) (VectorStore, error) {
	metric = strings.ToLower(strings.TrimSpace(metric))
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return nil, err
	}
	vecType := "vector"
	if dimensions > 0 {
		vecType = fmt.Sprintf("vector(%d)", dimensions)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  vec %s,
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb
)`, table, vecType)); err != nil {
		return nil, err
	}
	opClass := "vector_cosine_ops"
	switch metric {
	case "l2", "euclidean":
		opClass = "vector_l2_ops"
	case "ip", "dot":
		opClass = "vector_ip_ops"
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(`
CREATE INDEX IF NOT EXISTS %s_hnsw_idx ON %s
USING hnsw (vec %s) WITH (m = 16, ef_construction = 100)`, table, table, opClass)); err != nil {
		return nil, err
	}
	return &pgVector{pool: pool, table: table, dimensions: dimensions, metric: metric}, nil
}

func (p *pgVector) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	vecLit := toVectorLiteral(vector)
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s(id, vec, metadata) VALUES($1, $2::vector, $3)
ON CONFLICT (id) DO UPDATE SET vec=EXCLUDED.vec, metadata=EXCLUDED.metadata`, p.table),
		id, vecLit, metadata)
	return err
}

func (p *pgVector) Delete(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, p.table), id)
	return err
}

func (p *pgVector) SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]VectorResult, error) {
	if k <= 0 {
		k = 10
	}
	vecLit := toVectorLiteral(vector)
	op := "<=>" // cosine distance
	scoreExpr := "1 - (vec <=> $1::vector)"
	switch p.metric {
	case "l2", "euclidean":
		op = "<->"
		scoreExpr = "-(vec <-> $1::vector)"
	case "ip", "dot":
		op = "<#>"
		scoreExpr = "-(vec <#> $1::vector)"
	}
	args := []any{vecLit, k}
	where := ""
	if len(filter) > 0 {
		where = "WHERE metadata @> $3"
		args = []any{vecLit, k, filter}
	}
	query := fmt.Sprintf(`SELECT id, %s AS score, metadata FROM %s %s ORDER BY vec %s $1::vector LIMIT $2`,
		scoreExpr, p.table, where, op)
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]VectorResult, 0, k)
	for rows.Next() {
		var r VectorResult
		var md map[string]string
		if err := rows.Scan(&r.ID, &r.Score, &md); err != nil {
			return nil, err
		}
		r.Metadata = md
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *pgVector) Close() error { p.pool.Close(); return nil }

// toVectorLiteral renders a vector as the comma-joined textual float array
// pgvector accepts, per spec.md §4.2 ("vector values are passed as
// comma-joined textual float arrays and cast server-side").
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
