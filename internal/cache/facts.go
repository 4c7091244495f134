package cache

import (
	"context"
	"time"

	"github.com/coatseek/coatseek/internal/catalog"
)

// Cache keys for aggregate catalog facts.
const (
	KeyFamilies = "filter:families"
	KeyTypes    = "filter:types"
	KeyModels   = "filter:models"
	KeyColumns  = "schema:columns"
)

// Facts serves aggregate catalog facts (distinct filter values, detected
// schema) through the shared cache, so concurrent resolutions never scan
// the catalog redundantly.
type Facts struct {
	cache *Cache
}

// TTLs configures per-key-class TTLs. Full-catalog scans are expensive and
// the catalog changes rarely, so TTLs are hours, not seconds.
type TTLs struct {
	Filters time.Duration
	Schema  time.Duration
}

// NewFacts builds catalog-fact caching over the given store.
func NewFacts(store catalog.Store, ttls TTLs, opts ...Option) *Facts {
	if ttls.Filters <= 0 {
		ttls.Filters = 6 * time.Hour
	}
	if ttls.Schema <= 0 {
		ttls.Schema = 12 * time.Hour
	}

	c := New(opts...)
	c.Register(KeyFamilies, ttls.Filters, func(ctx context.Context) (any, error) {
		return store.DistinctValues(ctx, catalog.FieldFamily)
	})
	c.Register(KeyTypes, ttls.Filters, func(ctx context.Context) (any, error) {
		return store.DistinctValues(ctx, catalog.FieldType)
	})
	c.Register(KeyModels, ttls.Filters, func(ctx context.Context) (any, error) {
		return store.DistinctValues(ctx, catalog.FieldModel)
	})
	c.Register(KeyColumns, ttls.Schema, func(ctx context.Context) (any, error) {
		return store.Columns(ctx)
	})

	return &Facts{cache: c}
}

// Cache exposes the underlying cache (for invalidation and warming).
func (f *Facts) Cache() *Cache { return f.cache }

// Families returns the distinct product families.
func (f *Facts) Families(ctx context.Context) ([]string, bool, error) {
	return f.strings(ctx, KeyFamilies)
}

// Types returns the distinct product types.
func (f *Facts) Types(ctx context.Context) ([]string, bool, error) {
	return f.strings(ctx, KeyTypes)
}

// Models returns the distinct product models.
func (f *Facts) Models(ctx context.Context) ([]string, bool, error) {
	return f.strings(ctx, KeyModels)
}

// Columns returns the detected schema columns.
func (f *Facts) Columns(ctx context.Context) ([]string, bool, error) {
	return f.strings(ctx, KeyColumns)
}

// Warm pre-loads all fact keys concurrently.
func (f *Facts) Warm(ctx context.Context) error {
	return f.cache.Warm(ctx, KeyFamilies, KeyTypes, KeyModels, KeyColumns)
}

// Invalidate clears all fact entries (after ingest, or on file change).
func (f *Facts) Invalidate() {
	f.cache.InvalidateAll()
}

// strings adapts a Get to the []string values all fact keys hold.
// The bool reports whether the value was served stale.
func (f *Facts) strings(ctx context.Context, key string) ([]string, bool, error) {
	res, err := f.cache.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	values, _ := res.Value.([]string)
	return values, res.Expired, nil
}
