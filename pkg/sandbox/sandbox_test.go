package sandbox

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphoreDefaultsToDefaultCapacity(t *testing.T) {
	s := NewSemaphore(0)
	assert.Equal(t, DefaultMaxConcurrency, s.Capacity())
}

func TestSemaphoreAcquireReleaseTracksInUse(t *testing.T) {
	s := NewSemaphore(2)
	require.NoError(t, s.Acquire(context.Background()))
	assert.Equal(t, 1, s.InUse())
	s.Release()
	assert.Equal(t, 0, s.InUse())
}

func TestSemaphoreAcquireBlocksAtCapacity(t *testing.T) {
	s := NewSemaphore(1)
	require.NoError(t, s.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := s.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTileBoundsFirstCellAtMargin(t *testing.T) {
	cfg := DefaultGridConfig()
	b := TileBounds(cfg, 0, 10)
	assert.Equal(t, cfg.Margin, b.Left)
	assert.Equal(t, cfg.Margin, b.Top)
}

func TestTileBoundsClampsOutOfRangeIndex(t *testing.T) {
	cfg := DefaultGridConfig()
	last := TileBounds(cfg, 9, 10)
	overflow := TileBounds(cfg, 99, 10)
	assert.Equal(t, last, overflow)
}

func TestTileBoundsEnforcesMinimumCellSize(t *testing.T) {
	cfg := GridConfig{Cols: 20, Rows: 1, Margin: 8, Screen: ScreenSize{Width: 100, Height: 1080}}
	b := TileBounds(cfg, 0, 20)
	assert.Equal(t, 200, b.Width)
}

func TestGroupCacheStoreAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.json")
	cache := NewGroupCache(path)

	got, err := cache.Lookup("batch-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, cache.Store("batch-1", "group-abc"))
	got, err = cache.Lookup("batch-1")
	require.NoError(t, err)
	assert.Equal(t, "group-abc", got)
}

func TestGroupCachePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.json")
	require.NoError(t, NewGroupCache(path).Store("batch-2", "group-xyz"))

	got, err := NewGroupCache(path).Lookup("batch-2")
	require.NoError(t, err)
	assert.Equal(t, "group-xyz", got)
}
