package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playpcd/pcdtrainer/internal/cache"
)

type fakeCache struct {
	mu          sync.Mutex
	data        []byte
	err         error
	sets        int
	invalidated int
}

func (c *fakeCache) Scenarios(context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if c.data == nil {
		return nil, cache.ErrMiss
	}
	return c.data, nil
}

func (c *fakeCache) SetScenarios(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data = data
	return c.err
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	c.data = nil
	return c.err
}

func TestLoaderListUsesCache(t *testing.T) {
	store := setupTestStore(t)
	fc := &fakeCache{}
	loader := NewScenarioLoader(store, fc, time.Hour, discardLogger())
	ctx := context.Background()

	require.NoError(t, loader.Create(ctx, DemoScenario()))
	assert.Equal(t, 1, fc.invalidated)

	list, err := loader.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, fc.sets)

	// served from the cache even though the store has changed underneath
	extra := DemoScenario()
	extra.Name = "behind the cache"
	require.NoError(t, store.CreateScenario(ctx, extra))
	list, err = loader.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, fc.sets)

	require.NoError(t, loader.Delete(ctx, extra.ID))
	assert.Equal(t, 2, fc.invalidated)
	list, err = loader.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 2, fc.sets)
}

func TestLoaderSurvivesCacheFailure(t *testing.T) {
	store := setupTestStore(t)
	fc := &fakeCache{err: errors.New("connection refused")}
	loader := NewScenarioLoader(store, fc, time.Hour, discardLogger())
	ctx := context.Background()

	require.NoError(t, loader.Create(ctx, DemoScenario()))
	list, err := loader.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestLoaderDiscardsCorruptCache(t *testing.T) {
	store := setupTestStore(t)
	fc := &fakeCache{data: []byte("{not a list")}
	loader := NewScenarioLoader(store, fc, time.Hour, discardLogger())

	list, err := loader.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, "[]", string(fc.data))
}

func TestLoaderGetKeepsParsedScenario(t *testing.T) {
	store := setupTestStore(t)
	loader := NewScenarioLoader(store, nil, time.Hour, discardLogger())
	ctx := context.Background()

	sc := DemoScenario()
	require.NoError(t, loader.Create(ctx, sc))

	first, err := loader.Get(ctx, sc.ID)
	require.NoError(t, err)
	second, err := loader.Get(ctx, sc.ID)
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, loader.Delete(ctx, sc.ID))
	_, err = loader.Get(ctx, sc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoaderRandom(t *testing.T) {
	store := setupTestStore(t)
	loader := NewScenarioLoader(store, nil, time.Hour, discardLogger())
	ctx := context.Background()

	_, err := loader.Random(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	sc := DemoScenario()
	require.NoError(t, loader.Create(ctx, sc))
	got, err := loader.Random(ctx)
	require.NoError(t, err)
	assert.Equal(t, sc.ID, got.ID)
}
