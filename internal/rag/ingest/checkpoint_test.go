package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"clinicalrag/internal/objectstore"
)

func TestLoadCheckpointMissingIsEmptyNotError(t *testing.T) {
	store := objectstore.NewMemoryStore()
	set, err := loadCheckpoint(context.Background(), store)
	require.NoError(t, err)
	require.Empty(t, set)
}

func TestSaveThenLoadCheckpointRoundTrips(t *testing.T) {
	store := objectstore.NewMemoryStore()
	ctx := context.Background()

	set := map[string]bool{"img-a": true, "img-b": true}
	require.NoError(t, saveCheckpoint(ctx, store, set))

	loaded, err := loadCheckpoint(ctx, store)
	require.NoError(t, err)
	require.True(t, loaded["img-a"])
	require.True(t, loaded["img-b"])
	require.False(t, loaded["img-c"])
}
