package memory

import (
	"context"
	"testing"

	"clinicalrag/internal/rag/embedder"
)

type fixtureEmbedder struct {
	e embedder.Embedder
}

func (f fixtureEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func newFixture() Embedder {
	return fixtureEmbedder{e: embedder.NewDeterministic(64, true, 0)}
}

func TestInProcessStoreRememberAndRecall(t *testing.T) {
	ctx := context.Background()
	s := NewInProcess(newFixture(), 256)

	if err := s.Remember(ctx, "sess-1", "patient has a history of hypertension"); err != nil {
		t.Fatalf("remember: %v", err)
	}
	if err := s.Remember(ctx, "sess-1", "allergic to penicillin"); err != nil {
		t.Fatalf("remember: %v", err)
	}
	if err := s.Remember(ctx, "sess-2", "unrelated session content"); err != nil {
		t.Fatalf("remember: %v", err)
	}

	hits, err := s.Recall(ctx, "sess-1", "patient has a history of hypertension", 3)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 items in sess-1, got %d", len(hits))
	}
	if hits[0].Text != "patient has a history of hypertension" {
		t.Fatalf("expected exact-text match ranked first, got %q (sim=%.3f)", hits[0].Text, hits[0].Similarity)
	}
	if hits[0].Similarity < hits[1].Similarity {
		t.Fatalf("expected descending similarity order")
	}
}

func TestInProcessStoreEvictsOldestFirstAtCap(t *testing.T) {
	ctx := context.Background()
	s := NewInProcess(newFixture(), 2)

	if err := s.Remember(ctx, "sess", "first"); err != nil {
		t.Fatalf("remember: %v", err)
	}
	if err := s.Remember(ctx, "sess", "second"); err != nil {
		t.Fatalf("remember: %v", err)
	}
	if err := s.Remember(ctx, "sess", "third"); err != nil {
		t.Fatalf("remember: %v", err)
	}

	stats, err := s.Stats(ctx, "sess")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Count != 2 {
		t.Fatalf("expected cap of 2 items after eviction, got %d", stats.Count)
	}

	hits, err := s.Recall(ctx, "sess", "first", 10)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	for _, h := range hits {
		if h.Text == "first" {
			t.Fatalf("expected oldest item 'first' to have been evicted")
		}
	}
}

func TestInProcessStoreStatsEmptySession(t *testing.T) {
	ctx := context.Background()
	s := NewInProcess(newFixture(), 256)

	stats, err := s.Stats(ctx, "never-used")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Count != 0 {
		t.Fatalf("expected zero count for unused session, got %d", stats.Count)
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	if sim := cosineSimilarity(a, b); sim < 0.999 {
		t.Fatalf("expected identical vectors to have similarity ~1, got %v", sim)
	}
	c := []float32{0, 1, 0}
	if sim := cosineSimilarity(a, c); sim > 0.001 || sim < -0.001 {
		t.Fatalf("expected orthogonal vectors to have similarity ~0, got %v", sim)
	}
}

func TestTopKByRecallRespectsLimit(t *testing.T) {
	items := []Item{
		{Text: "a", Embedding: []float32{1, 0}},
		{Text: "b", Embedding: []float32{0.9, 0.1}},
		{Text: "c", Embedding: []float32{0, 1}},
	}
	out := topKByRecall(items, []float32{1, 0}, 2)
	if len(out) != 2 {
		t.Fatalf("expected top 2, got %d", len(out))
	}
	if out[0].Text != "a" || out[1].Text != "b" {
		t.Fatalf("expected a,b in descending similarity order, got %v", out)
	}
}
