package tools

import (
	"context"
	"testing"

	"clinicalrag/internal/agent"
	"clinicalrag/internal/agent/memory"
	"clinicalrag/internal/rag/embedder"
)

func fixtureMemoryEmbedder() memory.Embedder {
	emb := embedder.NewDeterministic(32, true, 0)
	return fixtureMemoryAdapter{emb}
}

type fixtureMemoryAdapter struct{ e embedder.Embedder }

func (f fixtureMemoryAdapter) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func TestRememberRecallAndStatsRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewInProcess(fixtureMemoryEmbedder(), 256)
	deps := Deps{Memory: mem}
	reg := agent.NewRegistry()
	RegisterAll(reg, deps)

	remembered, err := reg.Execute(ctx, "remember_information", map[string]any{
		"session_id": "sess-1", "text": "patient allergic to penicillin",
	})
	if err != nil || remembered.Status != "ok" {
		t.Fatalf("remember_information: status=%q err=%v", remembered.Status, err)
	}

	recalled, err := reg.Execute(ctx, "recall_information", map[string]any{
		"session_id": "sess-1", "query": "patient allergic to penicillin", "top_k": float64(3),
	})
	if err != nil || recalled.Status != "ok" {
		t.Fatalf("recall_information: status=%q err=%v", recalled.Status, err)
	}
	hits, ok := recalled.Data.([]memory.Scored)
	if !ok || len(hits) == 0 {
		t.Fatalf("expected at least one recalled item, got %#v", recalled.Data)
	}
	if hits[0].Similarity < 0.99 {
		t.Fatalf("expected near-exact match similarity, got %f", hits[0].Similarity)
	}

	stats, err := reg.Execute(ctx, "get_memory_stats", map[string]any{"session_id": "sess-1"})
	if err != nil || stats.Status != "ok" {
		t.Fatalf("get_memory_stats: status=%q err=%v", stats.Status, err)
	}
	s, ok := stats.Data.(memory.Stats)
	if !ok || s.Count != 1 {
		t.Fatalf("expected Stats{Count:1}, got %#v", stats.Data)
	}
}

func TestRememberInformationRequiresSessionAndText(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewInProcess(fixtureMemoryEmbedder(), 256)
	deps := Deps{Memory: mem}
	reg := agent.NewRegistry()
	RegisterAll(reg, deps)

	result, err := reg.Execute(ctx, "remember_information", map[string]any{"session_id": "sess-1"})
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	if result.Status != "fail" {
		t.Fatalf("expected fail status for missing text, got %q", result.Status)
	}
}
