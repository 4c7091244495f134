package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/coatseek/coatseek/internal/cache"
	"github.com/coatseek/coatseek/internal/catalog"
	"github.com/coatseek/coatseek/internal/config"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the catalog facts cache",
		Long: `Inspect the catalog facts cache.

Catalog facts (distinct families, types, models, and the detected column
schema) are cached with a TTL and loaded at most once concurrently. The
'warm' subcommand preloads every fact and prints what the catalog
contains.`,
	}

	cmd.AddCommand(newCacheWarmCmd())
	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCacheInvalidateCmd())

	return cmd
}

func newCacheWarmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "warm",
		Short: "Preload all catalog facts and print them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheWarm(cmd.Context(), cmd)
		},
	}
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog size and fact counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheStats(cmd.Context(), cmd)
		},
	}
}

func newCacheInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate",
		Short: "Signal running processes to drop cached catalog facts",
		Long: `Signal running coatseek processes to drop cached catalog facts.

Touches the catalog database file; any process watching the catalog
reloads its facts on the next read.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheInvalidate(cmd)
		},
	}
}

func openFacts(cfg *config.Config) (*cache.Facts, *catalog.SQLiteStore, error) {
	store, err := catalog.OpenSQLite(cfg.Paths.CatalogDB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	facts := cache.NewFacts(store, cache.TTLs{
		Filters: cfg.Cache.FilterTTL,
		Schema:  cfg.Cache.SchemaTTL,
	})
	return facts, store, nil
}

func runCacheWarm(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	facts, store, err := openFacts(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := facts.Warm(ctx); err != nil {
		return fmt.Errorf("failed to warm cache: %w", err)
	}

	families, _, _ := facts.Families(ctx)
	types, _, _ := facts.Types(ctx)
	models, _, _ := facts.Models(ctx)
	columns, _, _ := facts.Columns(ctx)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string][]string{
			"families": families,
			"types":    types,
			"models":   models,
			"columns":  columns,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Families (%d): %s\n", len(families), joinOrNone(families))
	fmt.Fprintf(out, "Types    (%d): %s\n", len(types), joinOrNone(types))
	fmt.Fprintf(out, "Models   (%d): %s\n", len(models), joinOrNone(models))
	fmt.Fprintf(out, "Columns  (%d): %s\n", len(columns), joinOrNone(columns))
	return nil
}

func runCacheStats(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	facts, store, err := openFacts(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	families, _, _ := facts.Families(ctx)
	types, _, _ := facts.Types(ctx)
	models, _, _ := facts.Models(ctx)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]int{
			"products": count,
			"families": len(families),
			"types":    len(types),
			"models":   len(models),
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Products: %d\n", count)
	fmt.Fprintf(out, "Families: %d\n", len(families))
	fmt.Fprintf(out, "Types:    %d\n", len(types))
	fmt.Fprintf(out, "Models:   %d\n", len(models))
	fmt.Fprintf(out, "Filter TTL: %s, schema TTL: %s\n", cfg.Cache.FilterTTL, cfg.Cache.SchemaTTL)
	return nil
}

func runCacheInvalidate(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.Paths.CatalogDB); err != nil {
		return fmt.Errorf("no catalog found at %s", cfg.Paths.CatalogDB)
	}
	now := time.Now()
	if err := os.Chtimes(cfg.Paths.CatalogDB, now, now); err != nil {
		return fmt.Errorf("failed to touch catalog: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "catalog cache invalidated")
	return nil
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	const maxShown = 12
	if len(values) > maxShown {
		return fmt.Sprintf("%v ...", values[:maxShown])
	}
	return fmt.Sprintf("%v", values)
}
