package catalog

import "context"

// Store is the tabular catalog store the retrieval cascade queries.
// Predicates address canonical field names; implementations map them to
// physical columns through the FieldResolver.
type Store interface {
	// QueryByExactField returns products whose field equals value
	// (case-insensitive). The exact-code retrieval stage does not call
	// this: it goes through QueryByCode, which matches against the
	// normalized code column.
	QueryByExactField(ctx context.Context, field, value string) ([]*Product, error)

	// QueryByPrefix returns products whose field starts with prefix.
	QueryByPrefix(ctx context.Context, field, prefix string) ([]*Product, error)

	// QueryBySubstring returns products whose field contains term.
	QueryBySubstring(ctx context.Context, field, term string) ([]*Product, error)

	// QueryByCode matches a normalized product code against the
	// code-bearing fields (sku, model), exact first, then prefix.
	QueryByCode(ctx context.Context, code string) ([]*Product, error)

	// DistinctValues returns the sorted distinct non-empty values of a
	// column. Implementations paginate internally.
	DistinctValues(ctx context.Context, column string) ([]string, error)

	// Columns returns the detected schema: fixed columns plus attribute
	// keys observed in the data.
	Columns(ctx context.Context) ([]string, error)

	// SKUsByAffix returns SKUs sharing a prefix or suffix with the given
	// normalized code. It bounds the disambiguator's candidate pool.
	SKUsByAffix(ctx context.Context, prefix, suffix string, limit int) ([]string, error)

	// Get fetches one product by identity key.
	Get(ctx context.Context, id string) (*Product, error)

	// UpsertBatch inserts or replaces a batch of products.
	UpsertBatch(ctx context.Context, products []*Product) error

	// DeleteAll removes every product (replace-mode ingest).
	DeleteAll(ctx context.Context) error

	// Count returns the number of products.
	Count(ctx context.Context) (int, error)

	// ForEach streams all products to fn; fn returning an error stops
	// the scan.
	ForEach(ctx context.Context, fn func(*Product) error) error

	// Close releases the store.
	Close() error
}
