package kg

import "context"

const maxTraverseNodes = 200

// Edge is one directed relationship surfaced by Traverse, oriented away
// from the node it was reached from.
type Edge struct {
	From       int64
	To         int64
	Type       string
	Confidence float64
}

// Subgraph is the bounded result of a BFS traversal.
type Subgraph struct {
	Entities []Entity
	Edges    []Edge
}

// Traverse runs a breadth-first search from rootID out to depth hops
// (capped at 2), bounded to 200 total nodes. Neighbors at each level are
// visited ordered by confidence descending, then id ascending; cycles are
// broken by an explicit visited set rather than relying on any in-memory
// pointer structure, since the graph is stored as flat tables.
func (s *Store) Traverse(ctx context.Context, rootID int64, depth int) (Subgraph, error) {
	if depth > 2 {
		depth = 2
	}
	if depth < 0 {
		depth = 0
	}

	visited := map[int64]bool{rootID: true}
	queue := []int64{rootID}
	var sg Subgraph

	root, err := s.GetEntity(ctx, rootID)
	if err != nil {
		return Subgraph{}, err
	}
	sg.Entities = append(sg.Entities, root)

	for level := 0; level < depth && len(visited) < maxTraverseNodes; level++ {
		var next []int64
		for _, nodeID := range queue {
			if len(visited) >= maxTraverseNodes {
				break
			}
			rows, err := s.neighborEdges(ctx, nodeID)
			if err != nil {
				return Subgraph{}, err
			}
			for _, e := range rows {
				if len(visited) >= maxTraverseNodes {
					break
				}
				sg.Edges = append(sg.Edges, e)
				if visited[e.To] {
					continue
				}
				visited[e.To] = true
				next = append(next, e.To)
				entity, err := s.GetEntity(ctx, e.To)
				if err != nil {
					continue
				}
				sg.Entities = append(sg.Entities, entity)
			}
		}
		queue = next
	}
	return sg, nil
}

func (s *Store) neighborEdges(ctx context.Context, nodeID int64) ([]Edge, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT target_entity_id, relationship_type, confidence
		FROM rag_entity_relationships
		WHERE source_entity_id = $1
		ORDER BY confidence DESC, target_entity_id ASC
	`, nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var e Edge
		e.From = nodeID
		if err := rows.Scan(&e.To, &e.Type, &e.Confidence); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Relationships returns the outbound edges for entityID, used by the
// get_entity_relationships tool directly (a single hop, no BFS needed).
func (s *Store) Relationships(ctx context.Context, entityID int64) ([]Edge, error) {
	return s.neighborEdges(ctx, entityID)
}
