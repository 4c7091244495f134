// Package cmd provides the CLI commands for coatseek.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/coatseek/coatseek/internal/config"
	"github.com/coatseek/coatseek/internal/logging"
	"github.com/coatseek/coatseek/pkg/version"
)

// Persistent flags shared by all commands.
var (
	dataDir        string
	logLevel       string
	noColor        bool
	jsonOutput     bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the coatseek CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coatseek",
		Short: "Natural-language product search over a coatings catalog",
		Long: `coatseek resolves free-form questions like "what is CA 8100" or
"zinc rich primer for steel" against a coatings product catalog.

Queries run through code normalization, intent planning, and a retrieval
cascade (exact code, semantic, keyword, fuzzy) with "did you mean"
suggestions when a product code looks mistyped.

Load a catalog with 'coatseek ingest catalog.xlsx', then search:

  coatseek search "what is CA 8100"`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("coatseek version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default ~/.coatseek, env COATSEEK_DATA_DIR)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig builds the effective configuration, honoring --data-dir.
func loadConfig() (*config.Config, error) {
	dir := dataDir
	if dir == "" {
		dir = os.Getenv("COATSEEK_DATA_DIR")
	}
	if dir == "" {
		dir = config.DefaultDataDir()
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	// The flag outranks both the config file and the environment.
	if dataDir != "" {
		cfg.Paths.DataDir = dataDir
		cfg.Paths.CatalogDB = filepath.Join(dataDir, "catalog.db")
		cfg.Paths.VectorIndex = filepath.Join(dataDir, "vectors.idx")
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// setupLogging installs the file-backed slog logger before any command
// runs. CLI commands keep stderr quiet; diagnostics go to the log file.
func setupLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if logLevel != "" {
		logCfg.Level = logLevel
	} else if v := os.Getenv("COATSEEK_LOG_LEVEL"); v != "" {
		logCfg.Level = v
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Logging must never block the command itself.
		return nil
	}
	slog.SetDefault(logger)
	loggingCleanup = cleanup
	return nil
}
