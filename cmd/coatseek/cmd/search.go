package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/coatseek/coatseek/internal/answer"
	"github.com/coatseek/coatseek/internal/cache"
	"github.com/coatseek/coatseek/internal/catalog"
	"github.com/coatseek/coatseek/internal/config"
	"github.com/coatseek/coatseek/internal/embed"
	"github.com/coatseek/coatseek/internal/output"
	"github.com/coatseek/coatseek/internal/search"
	"github.com/coatseek/coatseek/internal/vector"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	family   string
	prodType string
	model    string
	limit    int
	offline  bool // static embeddings, no classifier, no generated answer
	noAnswer bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the product catalog",
		Long: `Search the product catalog with a free-form question.

Product codes are normalized ("ca-8100", "CA 8100" and "ca8100" all hit
the same SKU), and when no code matches the query falls through semantic,
keyword, and fuzzy retrieval before suggesting near-miss codes.

Examples:
  coatseek search "what is CA 8100"
  coatseek search "zinc rich primer for steel" --family Ceracron
  coatseek search "compare B50W101 and B50W102" --json
  coatseek search "epoxy primer" --offline`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().StringVar(&opts.family, "family", "", "Restrict to a product family")
	cmd.Flags().StringVar(&opts.prodType, "type", "", "Restrict to a product type")
	cmd.Flags().StringVar(&opts.model, "model", "", "Restrict to a product model")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Run fully offline: static embeddings, no model calls")
	cmd.Flags().BoolVar(&opts.noAnswer, "no-answer", false, "Skip the generated answer, print results only")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()

	if _, err := os.Stat(cfg.Paths.CatalogDB); os.IsNotExist(err) {
		return fmt.Errorf("no catalog found at %s. Run 'coatseek ingest <workbook.xlsx>' first", cfg.Paths.CatalogDB)
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
	if cfg.Cache.WatchCatalog {
		if w, err := cache.NewWatcher(cfg.Paths.CatalogDB, facts.Invalidate); err == nil {
			defer w.Close()
		}
	}

	filters := search.Filters{
		Family:       opts.family,
		ProductType:  opts.prodType,
		ProductModel: opts.model,
	}
	warnUnknownFilters(ctx, cmd, facts, filters)

	embedder := buildEmbedder(ctx, cfg, opts.offline, logger)
	defer embedder.Close()

	index := loadVectorIndex(cfg, embedder, logger)

	classifier := buildClassifier(cfg, opts.offline)
	expander := search.NewTermExpander(search.WithMaxTerms(cfg.Search.MaxExpansionTerms))
	planner := search.NewPlanner(classifier, expander, cfg.Classifier.CacheSize, logger)

	cascade := search.NewCascade(store, embedder, index, search.CascadeConfig{
		SemanticThresholds: cfg.Search.SemanticThresholds,
		MinKeywordResults:  cfg.Search.MinKeywordResults,
		StageTimeout:       cfg.Search.StageTimeout,
	}, logger)

	disambiguator := search.NewDisambiguator(store, cfg.Search.SuggestionFloor, cfg.Search.MaxSuggestions, logger)

	maxResults := cfg.Search.MaxResults
	if opts.limit > 0 {
		maxResults = opts.limit
	}
	engine := search.NewEngine(planner, cascade, disambiguator,
		search.WithMaxResults(maxResults),
		search.WithConfidenceThreshold(cfg.Search.ConfidenceThreshold),
		search.WithLogger(logger),
	)

	resp := engine.Search(ctx, search.Request{Query: query, Filters: filters})

	answerText := ""
	if !opts.noAnswer && !jsonOutput {
		answerText = summarize(ctx, cfg, opts.offline, query, resp)
	}

	renderer := output.NewRenderer(cmd.OutOrStdout(), noColor, jsonOutput)
	return renderer.RenderResponse(resp, answerText)
}

// warnUnknownFilters checks filter flags against the catalog's known
// distinct values so a typo fails loudly instead of silently matching
// nothing. Best effort: cache errors never block the search.
func warnUnknownFilters(ctx context.Context, cmd *cobra.Command, facts *cache.Facts, filters search.Filters) {
	check := func(value string, load func(context.Context) ([]string, bool, error), label string) {
		if value == "" {
			return
		}
		known, _, err := load(ctx)
		if err != nil {
			return
		}
		for _, k := range known {
			if strings.EqualFold(k, value) {
				return
			}
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s %q not found in catalog\n", label, value)
	}

	check(filters.Family, facts.Families, "family")
	check(filters.ProductType, facts.Types, "type")
	check(filters.ProductModel, facts.Models, "model")
}

// buildEmbedder selects the embedding provider. Ollama is preferred when
// configured and reachable; otherwise the deterministic static embedder
// keeps semantic retrieval working offline.
func buildEmbedder(ctx context.Context, cfg *config.Config, offline bool, logger *slog.Logger) embed.Embedder {
	if offline || strings.EqualFold(cfg.Embeddings.Provider, "static") {
		return embed.NewStaticEmbedder()
	}

	ollama := embed.NewOllamaEmbedder(embed.OllamaConfig{
		Host:       cfg.Embeddings.OllamaHost,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
	})

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if !ollama.Available(probeCtx) {
		logger.Warn("ollama_unavailable_using_static",
			slog.String("host", cfg.Embeddings.OllamaHost))
		return embed.NewStaticEmbedder()
	}

	cached, err := embed.NewCachedEmbedder(ollama, cfg.Embeddings.CacheSize)
	if err != nil {
		return ollama
	}
	return cached
}

// loadVectorIndex loads the persisted HNSW index. A missing or
// incompatible index disables the semantic stage rather than failing the
// whole search.
func loadVectorIndex(cfg *config.Config, embedder embed.Embedder, logger *slog.Logger) search.VectorSearcher {
	if _, err := os.Stat(cfg.Paths.VectorIndex); os.IsNotExist(err) {
		return nil
	}

	index, err := vector.NewIndex(vector.Config{Dimensions: embedder.Dimensions()})
	if err != nil {
		return nil
	}
	if err := index.Load(cfg.Paths.VectorIndex); err != nil {
		logger.Warn("vector_index_load_failed",
			slog.String("path", cfg.Paths.VectorIndex),
			slog.String("error", err.Error()))
		return nil
	}
	if index.Dimensions() != embedder.Dimensions() {
		logger.Warn("vector_index_dimension_mismatch",
			slog.Int("index", index.Dimensions()),
			slog.Int("embedder", embedder.Dimensions()))
		return nil
	}
	return index
}

func buildClassifier(cfg *config.Config, offline bool) search.Classifier {
	if offline || !cfg.Classifier.Enabled {
		return nil
	}
	return search.NewLLMClassifier(search.PlannerConfig{
		Model:      cfg.Classifier.Model,
		Timeout:    cfg.Classifier.Timeout,
		CacheSize:  cfg.Classifier.CacheSize,
		OllamaHost: cfg.Classifier.OllamaHost,
	})
}

// summarize generates a one-paragraph answer for the response. The
// template fallback keeps output deterministic when no model is
// reachable.
func summarize(ctx context.Context, cfg *config.Config, offline bool, query string, resp *search.Response) string {
	var summarizer answer.Summarizer = answer.NewTemplateSummarizer()
	if !offline && cfg.Classifier.Enabled {
		summarizer = answer.NewOllamaSummarizer(answer.Config{
			Host:  cfg.Classifier.OllamaHost,
			Model: cfg.Classifier.Model,
		})
	}

	text, err := summarizer.Summarize(ctx, query, resp)
	if err != nil {
		text, err = answer.NewTemplateSummarizer().Summarize(ctx, query, resp)
		if err != nil {
			return ""
		}
	}
	return text
}
