package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"github.com/coatseek/coatseek/internal/catalog"
	"github.com/coatseek/coatseek/internal/embed"
	serrors "github.com/coatseek/coatseek/internal/errors"
)

// Mode selects how an ingest treats existing catalog data.
type Mode string

const (
	// ModeUpsert inserts new records and replaces existing ones by
	// identity key.
	ModeUpsert Mode = "upsert"
	// ModeReplace deletes the whole catalog before loading.
	ModeReplace Mode = "replace"
)

// Defaults.
const (
	// DefaultBatchSize is how many products go into one store batch.
	DefaultBatchSize = 500
	// lockTimeout bounds the wait for a concurrent ingest to finish.
	lockTimeout = 30 * time.Second
	// lockRetryInterval is the poll interval while waiting for the lock.
	lockRetryInterval = 250 * time.Millisecond
)

// VectorIndexer receives embeddings for ingested products.
type VectorIndexer interface {
	Add(ctx context.Context, keys []string, vectors [][]float32) error
}

// Ingester loads workbooks into the store and, when an embedder and
// index are wired, populates the vector index in the same pass.
type Ingester struct {
	store     catalog.Store
	embedder  embed.Embedder
	index     VectorIndexer
	lockPath  string
	batchSize int
	// invalidate is called after a successful ingest so cached catalog
	// facts are reloaded.
	invalidate func()
	logger     *slog.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithEmbedding wires embedding generation into the ingest pass.
func WithEmbedding(embedder embed.Embedder, index VectorIndexer) Option {
	return func(i *Ingester) {
		i.embedder = embedder
		i.index = index
	}
}

// WithBatchSize overrides the store batch size.
func WithBatchSize(n int) Option {
	return func(i *Ingester) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

// WithInvalidation registers a cache invalidation hook.
func WithInvalidation(fn func()) Option {
	return func(i *Ingester) { i.invalidate = fn }
}

// WithLogger sets the ingest logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingester) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// NewIngester creates an ingester. lockPath is the file-lock guarding
// concurrent ingests against the same data directory.
func NewIngester(store catalog.Store, lockPath string, opts ...Option) *Ingester {
	i := &Ingester{
		store:     store,
		lockPath:  lockPath,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Report summarizes one ingest run.
type Report struct {
	Loaded      int
	Skipped     int
	Embedded    int
	Elapsed     time.Duration
	Mode        Mode
	ReplacedAll bool
}

// Run ingests one workbook. Only one ingest may run at a time per data
// directory; a second caller waits up to lockTimeout and then fails.
func (i *Ingester) Run(ctx context.Context, workbookPath string, mode Mode) (*Report, error) {
	started := time.Now()

	lock := flock.New(i.lockPath)
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrCodeIngestLocked, fmt.Errorf("acquire ingest lock: %w", err))
	}
	if !locked {
		return nil, serrors.New(serrors.ErrCodeIngestLocked, "another ingest is running", nil)
	}
	defer func() { _ = lock.Unlock() }()

	wb, err := ReadWorkbook(workbookPath)
	if err != nil {
		return nil, err
	}
	i.logger.Info("workbook_parsed",
		slog.String("path", workbookPath),
		slog.Int("products", len(wb.Products)),
		slog.Int("skipped", wb.SkippedRows))

	report := &Report{Skipped: wb.SkippedRows, Mode: mode}

	if mode == ModeReplace {
		if err := i.store.DeleteAll(ctx); err != nil {
			return nil, fmt.Errorf("clear catalog: %w", err)
		}
		report.ReplacedAll = true
	}

	for start := 0; start < len(wb.Products); start += i.batchSize {
		end := start + i.batchSize
		if end > len(wb.Products) {
			end = len(wb.Products)
		}
		batch := wb.Products[start:end]

		if err := i.store.UpsertBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
		report.Loaded += len(batch)

		if i.embedder != nil && i.index != nil {
			embedded, err := i.embedBatch(ctx, batch)
			if err != nil {
				// The catalog row is in; losing its vector only degrades
				// semantic recall, so the ingest continues.
				i.logger.Warn("embedding_batch_failed",
					slog.Int("start", start),
					slog.String("error", err.Error()))
			} else {
				report.Embedded += embedded
			}
		}

		i.logger.Debug("batch_loaded", slog.Int("start", start), slog.Int("count", len(batch)))
	}

	if i.invalidate != nil {
		i.invalidate()
	}

	report.Elapsed = time.Since(started)
	i.logger.Info("ingest_complete",
		slog.String("mode", string(mode)),
		slog.Int("loaded", report.Loaded),
		slog.Int("embedded", report.Embedded),
		slog.Duration("elapsed", report.Elapsed))
	return report, nil
}

// embedBatch embeds a store batch in embedder-sized chunks.
func (i *Ingester) embedBatch(ctx context.Context, batch []*catalog.Product) (int, error) {
	chunk := embed.DefaultBatchSize
	total := 0

	for start := 0; start < len(batch); start += chunk {
		end := start + chunk
		if end > len(batch) {
			end = len(batch)
		}

		texts := make([]string, 0, end-start)
		keys := make([]string, 0, end-start)
		for _, p := range batch[start:end] {
			texts = append(texts, p.SearchText())
			keys = append(keys, p.IdentityKey())
		}

		vectors, err := i.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return total, err
		}
		if err := i.index.Add(ctx, keys, vectors); err != nil {
			return total, err
		}
		total += len(keys)
	}
	return total, nil
}
