package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/coatseek/coatseek/internal/cache"
	"github.com/coatseek/coatseek/internal/catalog"
	"github.com/coatseek/coatseek/internal/ingest"
	"github.com/coatseek/coatseek/internal/output"
	"github.com/coatseek/coatseek/internal/vector"
)

// ingestOptions holds CLI flags for ingest.
type ingestOptions struct {
	replace   bool
	batchSize int
	noEmbed   bool
	offline   bool
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest <workbook.xlsx>",
		Short: "Load a product workbook into the catalog",
		Long: `Load an Excel product workbook into the catalog database.

Rows are cleaned (trimmed, NaN-ish cells dropped, float-formatted codes
integer-ized) and upserted by SKU in batches. Each loaded product is also
embedded and added to the vector index unless --no-embed is set.

By default existing products are kept and matching SKUs are updated;
--replace wipes the catalog first.

Examples:
  coatseek ingest catalog.xlsx
  coatseek ingest catalog.xlsx --replace
  coatseek ingest catalog.xlsx --no-embed --batch-size 1000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.replace, "replace", false, "Delete the existing catalog before loading")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Rows per database batch (default 500)")
	cmd.Flags().BoolVar(&opts.noEmbed, "no-embed", false, "Skip embedding generation and vector indexing")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Use static embeddings (no model calls)")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, workbookPath string, opts ingestOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()

	if _, err := os.Stat(workbookPath); err != nil {
		return fmt.Errorf("cannot read workbook %s: %w", workbookPath, err)
	}
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := catalog.OpenSQLite(cfg.Paths.CatalogDB)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer store.Close()

	facts := cache.NewFacts(store, cache.TTLs{
		Filters: cfg.Cache.FilterTTL,
		Schema:  cfg.Cache.SchemaTTL,
	})

	ingestOpts := []ingest.Option{
		ingest.WithLogger(logger),
		ingest.WithInvalidation(facts.Invalidate),
	}
	if opts.batchSize > 0 {
		ingestOpts = append(ingestOpts, ingest.WithBatchSize(opts.batchSize))
	}

	var index *vector.Index
	if !opts.noEmbed {
		embedder := buildEmbedder(ctx, cfg, opts.offline, logger)
		defer embedder.Close()

		index, err = vector.NewIndex(vector.Config{Dimensions: embedder.Dimensions()})
		if err != nil {
			return fmt.Errorf("failed to create vector index: %w", err)
		}
		// Replace mode starts the index from scratch; upsert extends
		// the existing one.
		if !opts.replace {
			if _, statErr := os.Stat(cfg.Paths.VectorIndex); statErr == nil {
				if loadErr := index.Load(cfg.Paths.VectorIndex); loadErr != nil {
					logger.Warn("vector_index_load_failed_rebuilding",
						slog.String("error", loadErr.Error()))
					index, err = vector.NewIndex(vector.Config{Dimensions: embedder.Dimensions()})
					if err != nil {
						return fmt.Errorf("failed to create vector index: %w", err)
					}
				}
			}
		}
		ingestOpts = append(ingestOpts, ingest.WithEmbedding(embedder, index))
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "ingest.lock")
	ingester := ingest.NewIngester(store, lockPath, ingestOpts...)

	mode := ingest.ModeUpsert
	if opts.replace {
		mode = ingest.ModeReplace
	}

	report, err := ingester.Run(ctx, workbookPath, mode)
	if err != nil {
		return err
	}

	if index != nil {
		if err := index.Save(cfg.Paths.VectorIndex); err != nil {
			logger.Warn("vector_index_save_failed", slog.String("error", err.Error()))
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: vector index not saved; semantic search will use the previous index")
		}
	}

	renderer := output.NewRenderer(cmd.OutOrStdout(), noColor, jsonOutput)
	renderer.RenderIngestReport(report.Loaded, report.Skipped, report.Embedded, string(report.Mode))
	return nil
}
