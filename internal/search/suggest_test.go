package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coatseek/coatseek/internal/catalog"
)

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0.0, levenshtein("CA8100", "CA8100"))
	assert.Equal(t, 6.0, levenshtein("", "CA8100"))
	assert.Equal(t, 1.0, levenshtein("CA8100", "CA810"))
	// Digit-for-digit substitutions cost half an edit.
	assert.Equal(t, 0.5, levenshtein("CA8100", "CA8109"))
	assert.Equal(t, 1.0, levenshtein("CA8100", "CB8100"))
}

func TestCodeSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, codeSimilarity("CA8100", "CA8100"))
	assert.Equal(t, 0.0, codeSimilarity("", "CA8100"))

	// Near-miss codes in the same range stay above the suggestion floor.
	assert.GreaterOrEqual(t, codeSimilarity("CA9999", "CA8199"), 0.60)
	assert.GreaterOrEqual(t, codeSimilarity("CA9999", "CA8100"), 0.60)
	assert.Greater(t, codeSimilarity("CA9999", "CA8199"), codeSimilarity("CA9999", "CA8100"))

	// Structurally unrelated codes fall below it.
	assert.Less(t, codeSimilarity("CA9999", "B50W101"), 0.60)

	// Containment earns a boost.
	assert.Greater(t, codeSimilarity("CA8100", "CA810"), codeSimilarity("CA8100", "CA8119"))
}

func openSuggestStore(t *testing.T) catalog.Store {
	t.Helper()
	store, err := catalog.OpenSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	products := []*catalog.Product{
		{SKU: "CA 8100", Family: "Ceracron", Name: "Ceracron Epoxy Primer"},
		{SKU: "CA8199", Family: "Ceracron", Name: "Ceracron Epoxy Topcoat"},
		{SKU: "B50W101", Family: "Duraplate", Name: "Duraplate Urethane"},
	}
	require.NoError(t, store.UpsertBatch(context.Background(), products))
	return store
}

func TestSuggestRankedAboveFloor(t *testing.T) {
	store := openSuggestStore(t)
	d := NewDisambiguator(store, 0.60, 5, nil)

	suggestions, err := d.Suggest(context.Background(), "CA9999")
	require.NoError(t, err)
	require.Len(t, suggestions, 2)

	assert.Equal(t, "CA8199", suggestions[0].SKU)
	assert.Equal(t, "CA 8100", suggestions[1].SKU)
	for _, s := range suggestions {
		assert.GreaterOrEqual(t, s.Similarity, 0.60)
		assert.True(t, s.IsSuggestion)
	}
	assert.GreaterOrEqual(t, suggestions[0].Similarity, suggestions[1].Similarity)
}

func TestSuggestBounded(t *testing.T) {
	store, err := catalog.OpenSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var products []*catalog.Product
	for _, suffix := range []string{"01", "02", "03", "04", "05", "06", "07"} {
		products = append(products, &catalog.Product{SKU: "CA81" + suffix})
	}
	require.NoError(t, store.UpsertBatch(context.Background(), products))

	d := NewDisambiguator(store, 0.60, 3, nil)
	suggestions, err := d.Suggest(context.Background(), "CA8100")
	require.NoError(t, err)
	assert.Len(t, suggestions, 3)
}

func TestSuggestEmptyCode(t *testing.T) {
	store := openSuggestStore(t)
	d := NewDisambiguator(store, 0.60, 5, nil)

	suggestions, err := d.Suggest(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestSuggestNoPool(t *testing.T) {
	store := openSuggestStore(t)
	d := NewDisambiguator(store, 0.60, 5, nil)

	suggestions, err := d.Suggest(context.Background(), "ZZ111")
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}
