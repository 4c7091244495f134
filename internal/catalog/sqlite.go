package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	cserrors "github.com/coatseek/coatseek/internal/errors"
)

// fixedColumns are the physical columns of the products table, in the
// order scanProduct reads them.
var fixedColumns = []string{"id", "sku", "sku_norm", "family", "product_type", "product_model", "model_norm", "name", "description", "application", "attrs", "updated_at"}

// columnForField maps canonical field names to physical columns.
var columnForField = map[string]string{
	FieldSKU:         "sku",
	FieldFamily:      "family",
	FieldType:        "product_type",
	FieldModel:       "product_model",
	FieldName:        "name",
	FieldDescription: "description",
	FieldApplication: "application",
}

// distinctPageSize bounds each page of a distinct-values scan.
const distinctPageSize = 500

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	resolver *FieldResolver
}

// OpenSQLite opens (creating if needed) the catalog database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, cserrors.Wrap(cserrors.ErrCodeCatalogOpen, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, cserrors.Wrap(cserrors.ErrCodeCatalogOpen, err)
	}

	// Single writer keeps lock contention out of ingest.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL must be set via PRAGMA for modernc.org/sqlite; DSN params are ignored.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, cserrors.Wrap(cserrors.ErrCodeCatalogOpen, fmt.Errorf("failed to set pragma: %w", err))
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, cserrors.Wrap(cserrors.ErrCodeCatalogOpen, fmt.Errorf("failed to initialize schema: %w", err))
	}

	cols, err := s.Columns(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.resolver = NewFieldResolver(cols)

	return s, nil
}

// Path returns the database file path (used by the cache watcher).
func (s *SQLiteStore) Path() string { return s.path }

// Resolver returns the field-alias resolver built from the live schema.
func (s *SQLiteStore) Resolver() *FieldResolver { return s.resolver }

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- sku_norm/model_norm hold separator-stripped upper-case values so
	-- code lookup matches "CA8100" against a stored "CA 8100".
	CREATE TABLE IF NOT EXISTS products (
		id            TEXT PRIMARY KEY,
		sku           TEXT,
		sku_norm      TEXT,
		family        TEXT,
		product_type  TEXT,
		product_model TEXT,
		model_norm    TEXT,
		name          TEXT,
		description   TEXT,
		application   TEXT,
		attrs         TEXT NOT NULL DEFAULT '{}',
		updated_at    TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_products_sku_norm ON products(sku_norm);
	CREATE INDEX IF NOT EXISTS idx_products_model_norm ON products(model_norm);
	CREATE INDEX IF NOT EXISTS idx_products_family ON products(family);
	CREATE INDEX IF NOT EXISTS idx_products_type ON products(product_type);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

const selectCols = "id, sku, sku_norm, family, product_type, product_model, model_norm, name, description, application, attrs, updated_at"

// scanProduct reads one row into a Product.
func scanProduct(rows *sql.Rows) (*Product, error) {
	var (
		id, attrsJSON                                     string
		sku, skuNorm, family, ptype, model, modelNorm     sql.NullString
		name, description, application                    sql.NullString
		updatedAt                                         sql.NullTime
	)
	if err := rows.Scan(&id, &sku, &skuNorm, &family, &ptype, &model, &modelNorm, &name, &description, &application, &attrsJSON, &updatedAt); err != nil {
		return nil, err
	}

	p := &Product{
		SKU:         sku.String,
		Family:      family.String,
		Type:        ptype.String,
		Model:       model.String,
		Name:        name.String,
		Description: description.String,
		Application: application.String,
		UpdatedAt:   updatedAt.Time,
	}
	if attrsJSON != "" && attrsJSON != "{}" {
		if err := json.Unmarshal([]byte(attrsJSON), &p.Attrs); err != nil {
			return nil, fmt.Errorf("corrupt attrs for %s: %w", id, err)
		}
	}
	return p, nil
}

// queryProducts runs a product query and scans all rows.
func (s *SQLiteStore) queryProducts(ctx context.Context, query string, args ...any) ([]*Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cserrors.Wrap(cserrors.ErrCodeCatalogQuery, err).WithCollaborator("catalog-store")
	}
	defer func() { _ = rows.Close() }()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, cserrors.Wrap(cserrors.ErrCodeCatalogQuery, err).WithCollaborator("catalog-store")
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, cserrors.Wrap(cserrors.ErrCodeCatalogQuery, err).WithCollaborator("catalog-store")
	}
	return products, nil
}

// fieldPredicate resolves a canonical field to a SQL expression. Well-known
// fields hit their column; anything else addresses the attrs JSON.
func (s *SQLiteStore) fieldPredicate(field string) string {
	canonical := s.resolver.Resolve(field)
	if col, ok := columnForField[canonical]; ok {
		return col
	}
	// json_extract returns NULL for absent keys, which fails LIKE/= as desired.
	return fmt.Sprintf("json_extract(attrs, '$.%s')", strings.ReplaceAll(canonical, "'", ""))
}

// QueryByExactField returns products whose field equals value, case-insensitively.
func (s *SQLiteStore) QueryByExactField(ctx context.Context, field, value string) ([]*Product, error) {
	pred := s.fieldPredicate(field)
	q := fmt.Sprintf("SELECT %s FROM products WHERE LOWER(%s) = LOWER(?) ORDER BY id", selectCols, pred)
	return s.queryProducts(ctx, q, value)
}

// QueryByPrefix returns products whose field starts with prefix.
func (s *SQLiteStore) QueryByPrefix(ctx context.Context, field, prefix string) ([]*Product, error) {
	pred := s.fieldPredicate(field)
	q := fmt.Sprintf("SELECT %s FROM products WHERE %s LIKE ? ESCAPE '\\' ORDER BY id", selectCols, pred)
	return s.queryProducts(ctx, q, escapeLike(prefix)+"%")
}

// QueryBySubstring returns products whose field contains term.
func (s *SQLiteStore) QueryBySubstring(ctx context.Context, field, term string) ([]*Product, error) {
	pred := s.fieldPredicate(field)
	q := fmt.Sprintf("SELECT %s FROM products WHERE %s LIKE ? ESCAPE '\\' ORDER BY id", selectCols, pred)
	return s.queryProducts(ctx, q, "%"+escapeLike(term)+"%")
}

// QueryByCode matches a normalized code against sku_norm and model_norm,
// exact match first, falling back to prefix.
func (s *SQLiteStore) QueryByCode(ctx context.Context, code string) ([]*Product, error) {
	code = NormalizeCodeValue(code)
	if code == "" {
		return nil, nil
	}

	q := fmt.Sprintf("SELECT %s FROM products WHERE sku_norm = ? OR model_norm = ? ORDER BY id", selectCols)
	exact, err := s.queryProducts(ctx, q, code, code)
	if err != nil || len(exact) > 0 {
		return exact, err
	}

	q = fmt.Sprintf("SELECT %s FROM products WHERE sku_norm LIKE ? OR model_norm LIKE ? ORDER BY id", selectCols)
	return s.queryProducts(ctx, q, escapeLike(code)+"%", escapeLike(code)+"%")
}

// DistinctValues returns the sorted distinct non-empty values of a column,
// scanning in pages to bound memory on wide catalogs.
func (s *SQLiteStore) DistinctValues(ctx context.Context, column string) ([]string, error) {
	pred := s.fieldPredicate(column)

	var values []string
	offset := 0
	for {
		q := fmt.Sprintf(
			"SELECT DISTINCT %s FROM products WHERE %s IS NOT NULL AND %s != '' ORDER BY %s LIMIT %d OFFSET %d",
			pred, pred, pred, pred, distinctPageSize, offset)

		rows, err := s.db.QueryContext(ctx, q)
		if err != nil {
			return nil, cserrors.Wrap(cserrors.ErrCodeCatalogQuery, err).WithCollaborator("catalog-store")
		}

		n := 0
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				_ = rows.Close()
				return nil, cserrors.Wrap(cserrors.ErrCodeCatalogQuery, err).WithCollaborator("catalog-store")
			}
			values = append(values, v)
			n++
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, cserrors.Wrap(cserrors.ErrCodeCatalogQuery, err).WithCollaborator("catalog-store")
		}
		_ = rows.Close()

		if n < distinctPageSize {
			return values, nil
		}
		offset += distinctPageSize
	}
}

// Columns returns the fixed schema plus attribute keys observed in the data.
func (s *SQLiteStore) Columns(ctx context.Context) ([]string, error) {
	cols := []string{FieldSKU, FieldFamily, FieldType, FieldModel, FieldName, FieldDescription, FieldApplication}

	// Sample attribute keys; json_each over every row is fine at catalog scale.
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT je.key FROM products, json_each(products.attrs) je ORDER BY je.key")
	if err != nil {
		return nil, cserrors.Wrap(cserrors.ErrCodeCatalogQuery, err).WithCollaborator("catalog-store")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, cserrors.Wrap(cserrors.ErrCodeCatalogQuery, err).WithCollaborator("catalog-store")
		}
		cols = append(cols, k)
	}
	return cols, rows.Err()
}

// SKUsByAffix returns SKUs whose normalized form shares the given prefix or
// suffix, bounding the disambiguator's candidate pool.
func (s *SQLiteStore) SKUsByAffix(ctx context.Context, prefix, suffix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 200
	}
	var (
		conds []string
		args  []any
	)
	if prefix != "" {
		conds = append(conds, "sku_norm LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(NormalizeCodeValue(prefix))+"%")
	}
	if suffix != "" {
		conds = append(conds, "sku_norm LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(NormalizeCodeValue(suffix)))
	}
	if len(conds) == 0 {
		return nil, nil
	}
	args = append(args, limit)

	q := fmt.Sprintf(
		"SELECT DISTINCT sku FROM products WHERE sku != '' AND (%s) ORDER BY sku LIMIT ?",
		strings.Join(conds, " OR "))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, cserrors.Wrap(cserrors.ErrCodeCatalogQuery, err).WithCollaborator("catalog-store")
	}
	defer func() { _ = rows.Close() }()

	var skus []string
	for rows.Next() {
		var sku string
		if err := rows.Scan(&sku); err != nil {
			return nil, cserrors.Wrap(cserrors.ErrCodeCatalogQuery, err).WithCollaborator("catalog-store")
		}
		skus = append(skus, sku)
	}
	return skus, rows.Err()
}

// Get fetches one product by identity key.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Product, error) {
	q := fmt.Sprintf("SELECT %s FROM products WHERE id = ?", selectCols)
	products, err := s.queryProducts(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return products[0], nil
}

// UpsertBatch inserts or replaces a batch of products in one transaction.
func (s *SQLiteStore) UpsertBatch(ctx context.Context, products []*Product) error {
	if len(products) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cserrors.Wrap(cserrors.ErrCodeCatalogQuery, err).WithCollaborator("catalog-store")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO products
		(id, sku, sku_norm, family, product_type, product_model, model_norm, name, description, application, attrs, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return cserrors.Wrap(cserrors.ErrCodeCatalogQuery, err).WithCollaborator("catalog-store")
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for _, p := range products {
		attrs := "{}"
		if len(p.Attrs) > 0 {
			b, err := json.Marshal(p.Attrs)
			if err != nil {
				return fmt.Errorf("marshal attrs for %s: %w", p.IdentityKey(), err)
			}
			attrs = string(b)
		}
		if _, err := stmt.ExecContext(ctx,
			p.IdentityKey(), p.SKU, NormalizeCodeValue(p.SKU),
			p.Family, p.Type, p.Model, NormalizeCodeValue(p.Model),
			p.Name, p.Description, p.Application, attrs, now,
		); err != nil {
			return cserrors.Wrap(cserrors.ErrCodeCatalogQuery, err).WithCollaborator("catalog-store")
		}
	}

	if err := tx.Commit(); err != nil {
		return cserrors.Wrap(cserrors.ErrCodeCatalogQuery, err).WithCollaborator("catalog-store")
	}

	// Refresh the resolver so newly observed attribute keys resolve.
	if cols, err := s.Columns(ctx); err == nil {
		s.resolver = NewFieldResolver(cols)
	}
	return nil
}

// DeleteAll removes every product (replace-mode ingest).
func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM products")
	if err != nil {
		return cserrors.Wrap(cserrors.ErrCodeCatalogQuery, err).WithCollaborator("catalog-store")
	}
	return nil
}

// Count returns the number of products.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n)
	if err != nil {
		return 0, cserrors.Wrap(cserrors.ErrCodeCatalogQuery, err).WithCollaborator("catalog-store")
	}
	return n, nil
}

// ForEach streams all products to fn.
func (s *SQLiteStore) ForEach(ctx context.Context, fn func(*Product) error) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM products ORDER BY id", selectCols))
	if err != nil {
		return cserrors.Wrap(cserrors.ErrCodeCatalogQuery, err).WithCollaborator("catalog-store")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return cserrors.Wrap(cserrors.ErrCodeCatalogQuery, err).WithCollaborator("catalog-store")
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close releases the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// escapeLike escapes LIKE metacharacters in user-supplied terms.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
