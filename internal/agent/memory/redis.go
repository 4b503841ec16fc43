package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"clinicalrag/internal/apperr"
	"clinicalrag/internal/config"
)

// RedisStore is the Redis-backed Store used when REDIS_URL is configured
// (spec.md §5's per-session lock, SPEC_FULL §4.11's sorted-set-per-session
// insertion ordering), grounded on the teacher's SETNX commit-lock pattern
// (internal/workspaces/redis_cache.go) and Get/Set dedupe store
// (internal/orchestrator/dedupe.go).
type RedisStore struct {
	client   redis.UniversalClient
	embedder Embedder
	cap      int
	lockTTL  time.Duration
}

// NewRedisStore builds a RedisStore when cfg.Addr is non-empty; returns nil
// when Redis isn't configured, so callers fall back to NewInProcess.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig, embedder Embedder, cap int) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	if cap <= 0 {
		cap = DefaultCap
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, apperr.WrapDependencyUnavailable(err, "connecting to redis for vector memory")
	}
	return &RedisStore{client: client, embedder: embedder, cap: cap, lockTTL: 10 * time.Second}, nil
}

func (s *RedisStore) keyItems(session string) string { return "memory:" + session + ":items" }
func (s *RedisStore) keyItem(session, id string) string {
	return "memory:" + session + ":item:" + id
}
func (s *RedisStore) keyLock(session string) string { return "memory:" + session + ":lock" }

// withSessionLock serializes Remember/eviction against concurrent callers on
// the same session. It retries briefly on contention, then proceeds
// unlocked rather than blocking a user turn indefinitely; the lease's TTL
// bounds how long a crashed holder can wedge the lock.
func (s *RedisStore) withSessionLock(ctx context.Context, session string, fn func() error) error {
	token := uuid.NewString()
	key := s.keyLock(session)
	deadline := time.Now().Add(2 * time.Second)
	for {
		ok, err := s.client.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil {
			return apperr.WrapDependencyUnavailable(err, "acquiring memory session lock")
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			break // proceed unlocked rather than block the turn forever
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
	defer func() {
		if v, err := s.client.Get(ctx, key).Result(); err == nil && v == token {
			s.client.Del(ctx, key)
		}
	}()
	return fn()
}

func (s *RedisStore) Remember(ctx context.Context, session, text string) error {
	vec, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		return apperr.WrapDependencyUnavailable(err, "embedding memory item")
	}
	item := Item{Text: text, Embedding: vec, CreatedAt: time.Now()}
	payload, err := json.Marshal(item)
	if err != nil {
		return apperr.WrapInternal(err, "encoding memory item")
	}

	return s.withSessionLock(ctx, session, func() error {
		id := uuid.NewString()
		itemsKey := s.keyItems(session)
		pipe := s.client.TxPipeline()
		pipe.Set(ctx, s.keyItem(session, id), payload, 0)
		pipe.ZAdd(ctx, itemsKey, redis.Z{Score: float64(item.CreatedAt.UnixNano()), Member: id})
		if _, err := pipe.Exec(ctx); err != nil {
			return apperr.WrapDependencyUnavailable(err, "writing memory item to redis")
		}
		return s.evictOverCap(ctx, session)
	})
}

// evictOverCap drops the oldest entries once a session exceeds its cap,
// matching spec.md §4.11's oldest-first eviction.
func (s *RedisStore) evictOverCap(ctx context.Context, session string) error {
	itemsKey := s.keyItems(session)
	count, err := s.client.ZCard(ctx, itemsKey).Result()
	if err != nil {
		return apperr.WrapDependencyUnavailable(err, "counting memory items")
	}
	over := int(count) - s.cap
	if over <= 0 {
		return nil
	}
	ids, err := s.client.ZPopMin(ctx, itemsKey, int64(over)).Result()
	if err != nil {
		return apperr.WrapDependencyUnavailable(err, "evicting oldest memory items")
	}
	for _, z := range ids {
		id, _ := z.Member.(string)
		if id != "" {
			s.client.Del(ctx, s.keyItem(session, id))
		}
	}
	return nil
}

func (s *RedisStore) Recall(ctx context.Context, session, query string, topK int) ([]Scored, error) {
	vec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, apperr.WrapDependencyUnavailable(err, "embedding recall query")
	}
	items, err := s.loadItems(ctx, session)
	if err != nil {
		return nil, err
	}
	return topKByRecall(items, vec, topK), nil
}

func (s *RedisStore) Stats(ctx context.Context, session string) (Stats, error) {
	items, err := s.loadItems(ctx, session)
	if err != nil {
		return Stats{}, err
	}
	if len(items) == 0 {
		return Stats{}, nil
	}
	oldest, newest := items[0].CreatedAt, items[0].CreatedAt
	for _, it := range items {
		if it.CreatedAt.Before(oldest) {
			oldest = it.CreatedAt
		}
		if it.CreatedAt.After(newest) {
			newest = it.CreatedAt
		}
	}
	return Stats{Count: len(items), OldestAt: oldest, NewestAt: newest}, nil
}

func (s *RedisStore) loadItems(ctx context.Context, session string) ([]Item, error) {
	ids, err := s.client.ZRange(ctx, s.keyItems(session), 0, -1).Result()
	if err != nil {
		return nil, apperr.WrapDependencyUnavailable(err, "listing memory items")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keyItem(session, id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, apperr.WrapDependencyUnavailable(err, "fetching memory items")
	}
	items := make([]Item, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue // evicted/expired between ZRANGE and MGET
		}
		var it Item
		if err := json.Unmarshal([]byte(str), &it); err != nil {
			return nil, apperr.WrapData(err, "decoding stored memory item")
		}
		items = append(items, it)
	}
	return items, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

var _ Store = (*RedisStore)(nil)
var _ Store = (*InProcessStore)(nil)
