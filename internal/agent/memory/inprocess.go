package memory

import (
	"context"
	"sync"
	"time"

	"clinicalrag/internal/apperr"
)

// InProcessStore is a sync.Mutex-guarded map[session][]Item fallback used
// when no REDIS_URL is configured (single-instance deployments and tests).
type InProcessStore struct {
	embedder Embedder
	cap      int

	mu       sync.Mutex
	sessions map[string][]Item
}

// NewInProcess builds an in-memory Store with the given per-session cap
// (defaulting to DefaultCap when <= 0).
func NewInProcess(embedder Embedder, cap int) *InProcessStore {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &InProcessStore{embedder: embedder, cap: cap, sessions: map[string][]Item{}}
}

func (s *InProcessStore) Remember(ctx context.Context, session, text string) error {
	vec, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		return apperr.WrapDependencyUnavailable(err, "embedding memory item")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items := append(s.sessions[session], Item{Text: text, Embedding: vec, CreatedAt: time.Now()})
	if len(items) > s.cap {
		items = items[len(items)-s.cap:]
	}
	s.sessions[session] = items
	return nil
}

func (s *InProcessStore) Recall(ctx context.Context, session, query string, topK int) ([]Scored, error) {
	vec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, apperr.WrapDependencyUnavailable(err, "embedding recall query")
	}
	s.mu.Lock()
	items := append([]Item(nil), s.sessions[session]...)
	s.mu.Unlock()
	return topKByRecall(items, vec, topK), nil
}

func (s *InProcessStore) Stats(ctx context.Context, session string) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.sessions[session]
	if len(items) == 0 {
		return Stats{}, nil
	}
	return Stats{Count: len(items), OldestAt: items[0].CreatedAt, NewestAt: items[len(items)-1].CreatedAt}, nil
}

func (s *InProcessStore) Close() error { return nil }
