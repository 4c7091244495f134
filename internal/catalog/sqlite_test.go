package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedProducts(t *testing.T, store *SQLiteStore) {
	t.Helper()
	products := []*Product{
		{SKU: "CA 8100", Family: "Ceracron", Type: "Epoxy", Name: "Ceracron Epoxy Primer", Description: "Two-component epoxy primer for steel"},
		{SKU: "CA8199", Family: "Ceracron", Type: "Epoxy", Name: "Ceracron Epoxy Topcoat"},
		{SKU: "B50W101", Family: "Duraplate", Type: "Urethane", Model: "B50", Name: "Duraplate Urethane", Attrs: map[string]string{"voc": "250"}},
		{Family: "Duraplate", Type: "Alkyd", Name: "Duraplate Alkyd Enamel"},
	}
	require.NoError(t, store.UpsertBatch(context.Background(), products))
}

func TestSQLiteStore_UpsertAndCount(t *testing.T) {
	store := openTestStore(t)
	seedProducts(t, store)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// Upserting the same batch replaces, not duplicates.
	seedProducts(t, store)
	n, err = store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestSQLiteStore_QueryByCode_NormalizesStoredSKU(t *testing.T) {
	store := openTestStore(t)
	seedProducts(t, store)

	// "CA8100" must match the stored "CA 8100".
	products, err := store.QueryByCode(context.Background(), "CA8100")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "CA 8100", products[0].SKU)
}

func TestSQLiteStore_QueryByCode_PrefixFallback(t *testing.T) {
	store := openTestStore(t)
	seedProducts(t, store)

	// "CA81" matches no SKU exactly; prefix matching finds both.
	products, err := store.QueryByCode(context.Background(), "CA81")
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestSQLiteStore_QueryByCode_MatchesModelField(t *testing.T) {
	store := openTestStore(t)
	seedProducts(t, store)

	products, err := store.QueryByCode(context.Background(), "B50")
	require.NoError(t, err)
	require.NotEmpty(t, products)
	assert.Equal(t, "B50W101", products[0].SKU)
}

func TestSQLiteStore_QueryByExactField_CaseInsensitive(t *testing.T) {
	store := openTestStore(t)
	seedProducts(t, store)

	products, err := store.QueryByExactField(context.Background(), "family", "ceracron")
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestSQLiteStore_QueryByExactField_ResolvesAliases(t *testing.T) {
	store := openTestStore(t)
	seedProducts(t, store)

	// "product_family" is an alias spelling for family.
	products, err := store.QueryByExactField(context.Background(), "product_family", "Duraplate")
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestSQLiteStore_QueryBySubstring(t *testing.T) {
	store := openTestStore(t)
	seedProducts(t, store)

	products, err := store.QueryBySubstring(context.Background(), "name", "Epoxy")
	require.NoError(t, err)
	assert.Len(t, products, 2)

	// LIKE metacharacters in terms are literal.
	products, err = store.QueryBySubstring(context.Background(), "name", "100%")
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestSQLiteStore_QueryBySubstring_AttrField(t *testing.T) {
	store := openTestStore(t)
	seedProducts(t, store)

	products, err := store.QueryBySubstring(context.Background(), "voc", "250")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "B50W101", products[0].SKU)
}

func TestSQLiteStore_DistinctValues(t *testing.T) {
	store := openTestStore(t)
	seedProducts(t, store)

	families, err := store.DistinctValues(context.Background(), "family")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ceracron", "Duraplate"}, families)
}

func TestSQLiteStore_Columns_IncludesAttrKeys(t *testing.T) {
	store := openTestStore(t)
	seedProducts(t, store)

	cols, err := store.Columns(context.Background())
	require.NoError(t, err)
	assert.Contains(t, cols, "family")
	assert.Contains(t, cols, "voc")
}

func TestSQLiteStore_SKUsByAffix(t *testing.T) {
	store := openTestStore(t)
	seedProducts(t, store)

	skus, err := store.SKUsByAffix(context.Background(), "CA", "", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"CA 8100", "CA8199"}, skus)

	skus, err = store.SKUsByAffix(context.Background(), "", "99", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"CA8199"}, skus)
}

func TestSQLiteStore_GetAndForEach(t *testing.T) {
	store := openTestStore(t)
	seedProducts(t, store)

	p, err := store.Get(context.Background(), "B50W101")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "250", p.Attrs["voc"])

	missing, err := store.Get(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)

	var seen int
	require.NoError(t, store.ForEach(context.Background(), func(p *Product) error {
		seen++
		return nil
	}))
	assert.Equal(t, 4, seen)
}

func TestSQLiteStore_DeleteAll(t *testing.T) {
	store := openTestStore(t)
	seedProducts(t, store)

	require.NoError(t, store.DeleteAll(context.Background()))
	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
