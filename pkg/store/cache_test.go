package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cacheImplementations(t *testing.T) map[string]EmbeddingCache {
	t.Helper()

	sqliteMem, err := NewSQLiteCache(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqliteMem.Close() })

	sqliteFile, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteFile.Close() })

	return map[string]EmbeddingCache{
		"memory":        NewMemoryCache(),
		"sqlite-memory": sqliteMem,
		"sqlite-file":   sqliteFile,
	}
}

func TestEmbeddingCache_PutGet(t *testing.T) {
	for name, cache := range cacheImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			err := cache.Put(ctx, "model-a", map[string][]float32{
				"python": {0.1, 0.2, 0.3},
				"sql":    {-1.5, 0, 2.25},
			})
			require.NoError(t, err)

			got, err := cache.Get(ctx, "model-a", []string{"python", "sql", "rust"})
			require.NoError(t, err)

			assert.Len(t, got, 2)
			assert.Equal(t, []float32{0.1, 0.2, 0.3}, got["python"])
			assert.Equal(t, []float32{-1.5, 0, 2.25}, got["sql"])
			_, ok := got["rust"]
			assert.False(t, ok)
		})
	}
}

func TestEmbeddingCache_ModelsAreIsolated(t *testing.T) {
	for name, cache := range cacheImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, cache.Put(ctx, "model-a", map[string][]float32{"go": {1, 0}}))

			got, err := cache.Get(ctx, "model-b", []string{"go"})
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestEmbeddingCache_PutOverwrites(t *testing.T) {
	for name, cache := range cacheImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, cache.Put(ctx, "m", map[string][]float32{"go": {1, 0}}))
			require.NoError(t, cache.Put(ctx, "m", map[string][]float32{"go": {0, 1, 0}}))

			got, err := cache.Get(ctx, "m", []string{"go"})
			require.NoError(t, err)
			assert.Equal(t, []float32{0, 1, 0}, got["go"])
		})
	}
}

func TestEmbeddingCache_EmptyInputs(t *testing.T) {
	for name, cache := range cacheImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, cache.Put(ctx, "m", nil))

			got, err := cache.Get(ctx, "m", nil)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestMemoryCache_CopiesVectors(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	v := []float32{1, 2}
	require.NoError(t, cache.Put(ctx, "m", map[string][]float32{"go": v}))
	v[0] = 99

	got, err := cache.Get(ctx, "m", []string{"go"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, got["go"])

	got["go"][1] = 42
	again, err := cache.Get(ctx, "m", []string{"go"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, again["go"])
	assert.Equal(t, 1, cache.Len())
}

func TestMemoryCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = cache.Put(ctx, "m", map[string][]float32{"go": {float32(i)}})
			_, _ = cache.Get(ctx, "m", []string{"go"})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, cache.Len())
}

func TestSQLiteCache_LargeLookupIsBatched(t *testing.T) {
	ctx := context.Background()
	cache, err := NewSQLiteCache(":memory:")
	require.NoError(t, err)
	defer cache.Close()

	vectors := make(map[string][]float32)
	texts := make([]string, 0, 1200)
	for i := 0; i < 1200; i++ {
		text := fmt.Sprintf("skill-%d", i)
		texts = append(texts, text)
		vectors[text] = []float32{float32(i)}
	}
	require.NoError(t, cache.Put(ctx, "m", vectors))

	got, err := cache.Get(ctx, "m", texts)
	require.NoError(t, err)
	assert.Len(t, got, 1200)

	n, err := cache.Count(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, int64(1200), n)
}

func TestSQLiteCache_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	cache, err := NewSQLiteCache(path)
	require.NoError(t, err)
	require.NoError(t, cache.Put(ctx, "m", map[string][]float32{"kubernetes": {0.5, 0.25}}))
	require.NoError(t, cache.Close())

	reopened, err := NewSQLiteCache(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "m", []string{"kubernetes"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, got["kubernetes"])
}

func TestSQLiteCache_RejectsEmptyVector(t *testing.T) {
	cache, err := NewSQLiteCache(":memory:")
	require.NoError(t, err)
	defer cache.Close()

	err = cache.Put(context.Background(), "m", map[string][]float32{"go": {}})
	assert.Error(t, err)
}

func TestSerializeEmbeddingRoundTrip(t *testing.T) {
	v := []float32{0, -1.25, 3.5e-7, 42}
	assert.Equal(t, v, deserializeEmbedding(serializeEmbedding(v)))
	assert.Nil(t, deserializeEmbedding([]byte{1, 2, 3}))
}
