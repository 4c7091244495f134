package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/coatseek/coatseek/internal/catalog"
	"github.com/coatseek/coatseek/internal/embed"
	"github.com/coatseek/coatseek/internal/vector"
)

// writeWorkbook creates an .xlsx fixture and returns its path.
func writeWorkbook(t *testing.T, headers []string, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, h))
	}
	for r, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, value))
		}
	}

	path := filepath.Join(t.TempDir(), "catalog.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestReadWorkbookMapsHeaders(t *testing.T) {
	path := writeWorkbook(t,
		[]string{"SKU Code", "Product Family", "Product Type", "Name", "VOC"},
		[][]string{
			{"CA 8100", "Ceracron", "Epoxy", "Ceracron Epoxy Primer", "250.0"},
			{"CA8199", "Ceracron", "Epoxy", "Ceracron Epoxy Topcoat", "nan"},
			{"nan", "-", "N/A", "null", "none"},
		})

	wb, err := ReadWorkbook(path)
	require.NoError(t, err)
	require.Len(t, wb.Products, 2)
	assert.Equal(t, 1, wb.SkippedRows)

	p := wb.Products[0]
	assert.Equal(t, "CA 8100", p.SKU)
	assert.Equal(t, "Ceracron", p.Family)
	assert.Equal(t, "Epoxy", p.Type)
	assert.Equal(t, "Ceracron Epoxy Primer", p.Name)
	// Unmapped header lands in attrs; whole-number float is normalized.
	assert.Equal(t, "250", p.Attrs["voc"])

	// NaN markers are dropped, not stored.
	assert.NotContains(t, wb.Products[1].Attrs, "voc")
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  trimmed  ", "trimmed"},
		{"nan", ""},
		{"N/A", ""},
		{"-", ""},
		{"250.0", "250"},
		{"250.5", "250.5"},
		{"CA 8100", "CA 8100"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanCell(tt.in), "input %q", tt.in)
	}
}

func newIngestFixture(t *testing.T) (*Ingester, catalog.Store, *vector.Index, *int) {
	t.Helper()
	dir := t.TempDir()

	store, err := catalog.OpenSQLite(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	embedder := embed.NewStaticEmbedder()
	index, err := vector.NewIndex(vector.Config{Dimensions: embedder.Dimensions()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	invalidations := 0
	ing := NewIngester(store, filepath.Join(dir, "ingest.lock"),
		WithEmbedding(embedder, index),
		WithBatchSize(2),
		WithInvalidation(func() { invalidations++ }))
	return ing, store, index, &invalidations
}

func TestIngestUpsert(t *testing.T) {
	ing, store, index, invalidations := newIngestFixture(t)
	ctx := context.Background()

	path := writeWorkbook(t,
		[]string{"sku", "family", "name"},
		[][]string{
			{"CA 8100", "Ceracron", "Epoxy Primer"},
			{"CA8199", "Ceracron", "Epoxy Topcoat"},
			{"ZN3000", "Zincshield", "Zinc Rich Primer"},
		})

	report, err := ing.Run(ctx, path, ModeUpsert)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Loaded)
	assert.Equal(t, 3, report.Embedded)
	assert.False(t, report.ReplacedAll)
	assert.Equal(t, 1, *invalidations)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, index.Count())

	// Re-running the same workbook replaces by identity key.
	report, err = ing.Run(ctx, path, ModeUpsert)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Loaded)

	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestIngestReplace(t *testing.T) {
	ing, store, _, _ := newIngestFixture(t)
	ctx := context.Background()

	first := writeWorkbook(t,
		[]string{"sku", "name"},
		[][]string{{"OLD1", "Old Product"}, {"OLD2", "Older Product"}})
	_, err := ing.Run(ctx, first, ModeUpsert)
	require.NoError(t, err)

	second := writeWorkbook(t,
		[]string{"sku", "name"},
		[][]string{{"NEW1", "New Product"}})
	report, err := ing.Run(ctx, second, ModeReplace)
	require.NoError(t, err)
	assert.True(t, report.ReplacedAll)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p, err := store.Get(ctx, "NEW1")
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestIngestMissingWorkbook(t *testing.T) {
	ing, _, _, _ := newIngestFixture(t)
	_, err := ing.Run(context.Background(), filepath.Join(t.TempDir(), "missing.xlsx"), ModeUpsert)
	require.Error(t, err)
}
