package vector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := NewIndex(Config{Dimensions: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestIndexAddAndSearch(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	err := ix.Add(ctx,
		[]string{"CA8100", "CA8199", "B50W101"},
		[][]float32{
			{1, 0, 0, 0},
			{0.9, 0.1, 0, 0},
			{0, 0, 1, 0},
		})
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Count())

	hits, err := ix.NearestNeighbors(ctx, []float32{1, 0, 0, 0}, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "CA8100", hits[0].Key)
	assert.Equal(t, "CA8199", hits[1].Key)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestIndexThresholdFiltersDistant(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx,
		[]string{"near", "far"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))

	hits, err := ix.NearestNeighbors(ctx, []float32{1, 0, 0, 0}, 0.9, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "near", hits[0].Key)
}

func TestIndexLimit(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	keys := []string{"a", "b", "c", "d", "e"}
	vecs := make([][]float32, len(keys))
	for i := range keys {
		vecs[i] = []float32{1, float32(i) * 0.01, 0, 0}
	}
	require.NoError(t, ix.Add(ctx, keys, vecs))

	hits, err := ix.NearestNeighbors(ctx, []float32{1, 0, 0, 0}, 0.0, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestIndexEmpty(t *testing.T) {
	ix := newTestIndex(t)
	hits, err := ix.NearestNeighbors(context.Background(), []float32{1, 0, 0, 0}, 0.2, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndexDimensionMismatch(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	err := ix.Add(ctx, []string{"x"}, [][]float32{{1, 0}})
	require.Error(t, err)

	_, err = ix.NearestNeighbors(ctx, []float32{1, 0}, 0.2, 10)
	require.Error(t, err)
}

func TestIndexReplaceKey(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, []string{"CA8100"}, [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, ix.Add(ctx, []string{"CA8100"}, [][]float32{{0, 0, 0, 1}}))
	assert.Equal(t, 1, ix.Count())

	hits, err := ix.NearestNeighbors(ctx, []float32{0, 0, 0, 1}, 0.9, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "CA8100", hits[0].Key)
}

func TestIndexDelete(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx,
		[]string{"keep", "drop"},
		[][]float32{{1, 0, 0, 0}, {0.95, 0.05, 0, 0}}))
	require.NoError(t, ix.Delete(ctx, []string{"drop"}))

	assert.False(t, ix.Contains("drop"))
	assert.True(t, ix.Contains("keep"))
	assert.Equal(t, 1, ix.Count())

	hits, err := ix.NearestNeighbors(ctx, []float32{1, 0, 0, 0}, 0.0, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "keep", hits[0].Key)
}

func TestIndexSaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "products.hnsw")

	ix, err := NewIndex(Config{Dimensions: 4})
	require.NoError(t, err)
	require.NoError(t, ix.Add(ctx,
		[]string{"CA8100", "B50W101"},
		[][]float32{{1, 0, 0, 0}, {0, 0, 1, 0}}))
	require.NoError(t, ix.Save(path))
	require.NoError(t, ix.Close())

	loaded, err := NewIndex(Config{Dimensions: 4})
	require.NoError(t, err)
	defer func() { _ = loaded.Close() }()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 2, loaded.Count())
	hits, err := loaded.NearestNeighbors(ctx, []float32{1, 0, 0, 0}, 0.9, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "CA8100", hits[0].Key)
}
