package memory

import (
	"context"

	"github.com/rs/zerolog/log"

	"clinicalrag/internal/config"
)

// Open resolves the Store implementation per SPEC_FULL §4.11: Redis-backed
// when cfg.Addr is set, in-process otherwise.
func Open(ctx context.Context, cfg config.RedisConfig, embedder Embedder, cap int) Store {
	redisStore, err := NewRedisStore(ctx, cfg, embedder, cap)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("redis unavailable for vector memory, falling back to in-process store")
		return NewInProcess(embedder, cap)
	}
	if redisStore != nil {
		return redisStore
	}
	return NewInProcess(embedder, cap)
}
