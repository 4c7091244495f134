// Package config loads and validates coatseek configuration.
//
// Precedence, lowest to highest: built-in defaults, config file
// (.coatseek.yaml in the data directory), environment variables
// (COATSEEK_* prefix).
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the per-deployment config file name.
const ConfigFileName = ".coatseek.yaml"

// Config represents the complete coatseek configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Classifier ClassifierConfig `yaml:"classifier" json:"classifier"`
	LogLevel   string           `yaml:"log_level" json:"log_level"`
}

// PathsConfig configures on-disk locations.
type PathsConfig struct {
	// DataDir is the root data directory (catalog db, vector index, logs).
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// CatalogDB is the SQLite catalog database path.
	// Defaults to <data_dir>/catalog.db.
	CatalogDB string `yaml:"catalog_db" json:"catalog_db"`
	// VectorIndex is the persisted HNSW index path.
	// Defaults to <data_dir>/vectors.idx.
	VectorIndex string `yaml:"vector_index" json:"vector_index"`
}

// SearchConfig holds the tunable parameters of the resolution pipeline.
//
// The semantic threshold ladder and the disambiguation threshold are
// empirically tuned values carried over from production telemetry; they are
// configuration, not constants, so deployments can retune them.
type SearchConfig struct {
	// SemanticThresholds is the descending similarity ladder for the
	// semantic stage. Strictest first; the next rung is tried only when
	// the previous one yields nothing.
	SemanticThresholds []float64 `yaml:"semantic_thresholds" json:"semantic_thresholds"`

	// ConfidenceThreshold is the lexical similarity below which the
	// disambiguator produces "did you mean" suggestions.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`

	// SuggestionFloor is the minimum similarity for a suggestion.
	SuggestionFloor float64 `yaml:"suggestion_floor" json:"suggestion_floor"`

	// MaxSuggestions caps the number of "did you mean" entries.
	MaxSuggestions int `yaml:"max_suggestions" json:"max_suggestions"`

	// MaxResults bounds the diversified result list.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// MaxExpansionTerms caps term expansion to bound query fan-out.
	MaxExpansionTerms int `yaml:"max_expansion_terms" json:"max_expansion_terms"`

	// MinKeywordResults: the keyword stage runs whenever accumulated
	// results are below this count.
	MinKeywordResults int `yaml:"min_keyword_results" json:"min_keyword_results"`

	// StageTimeout bounds each retrieval stage's external calls.
	StageTimeout time.Duration `yaml:"stage_timeout" json:"stage_timeout"`
}

// CacheConfig configures the catalog cache.
type CacheConfig struct {
	// FilterTTL is the TTL for distinct filter value scans.
	FilterTTL time.Duration `yaml:"filter_ttl" json:"filter_ttl"`
	// SchemaTTL is the TTL for detected column schema.
	SchemaTTL time.Duration `yaml:"schema_ttl" json:"schema_ttl"`
	// WatchCatalog invalidates the cache when the catalog db file changes.
	WatchCatalog bool `yaml:"watch_catalog" json:"watch_catalog"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "ollama" or "static" (deterministic offline fallback).
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// ClassifierConfig configures the NL query classifier.
type ClassifierConfig struct {
	// Enabled controls whether the external classifier is consulted at
	// all; when false only the deterministic fallback planner runs.
	Enabled    bool          `yaml:"enabled" json:"enabled"`
	Model      string        `yaml:"model" json:"model"`
	OllamaHost string        `yaml:"ollama_host" json:"ollama_host"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	CacheSize  int           `yaml:"cache_size" json:"cache_size"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir:     dataDir,
			CatalogDB:   filepath.Join(dataDir, "catalog.db"),
			VectorIndex: filepath.Join(dataDir, "vectors.idx"),
		},
		Search: SearchConfig{
			SemanticThresholds:  []float64{0.45, 0.35, 0.25, 0.20},
			ConfidenceThreshold: 0.80,
			SuggestionFloor:     0.60,
			MaxSuggestions:      5,
			MaxResults:          20,
			MaxExpansionTerms:   40,
			MinKeywordResults:   5,
			StageTimeout:        30 * time.Second,
		},
		Cache: CacheConfig{
			FilterTTL:    6 * time.Hour,
			SchemaTTL:    12 * time.Hour,
			WatchCatalog: true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			Dimensions: 768,
			BatchSize:  32,
			OllamaHost: "http://localhost:11434",
			CacheSize:  1000,
		},
		Classifier: ClassifierConfig{
			Enabled:    true,
			Model:      "llama3.2:1b",
			OllamaHost: "http://localhost:11434",
			Timeout:    2 * time.Second,
			CacheSize:  10000,
		},
		LogLevel: "info",
	}
}

// DefaultDataDir returns the default data directory (~/.coatseek).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".coatseek")
	}
	return filepath.Join(home, ".coatseek")
}

// Load builds the effective configuration for the given directory:
// defaults, then <dir>/.coatseek.yaml if present, then env overrides.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile merges <dir>/.coatseek.yaml if it exists.
func (c *Config) loadFromFile(dir string) error {
	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("COATSEEK_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
		c.Paths.CatalogDB = filepath.Join(v, "catalog.db")
		c.Paths.VectorIndex = filepath.Join(v, "vectors.idx")
	}
	if v := os.Getenv("COATSEEK_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 && f <= 1 {
			c.Search.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("COATSEEK_SUGGESTION_FLOOR"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 && f <= 1 {
			c.Search.SuggestionFloor = f
		}
	}
	if v := os.Getenv("COATSEEK_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}
	if v := os.Getenv("COATSEEK_STAGE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Search.StageTimeout = d
		}
	}
	if v := os.Getenv("COATSEEK_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("COATSEEK_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("COATSEEK_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
		c.Classifier.OllamaHost = v
	}
	if v := os.Getenv("COATSEEK_CLASSIFIER_ENABLED"); v != "" {
		c.Classifier.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("COATSEEK_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the final configuration for consistency.
func (c *Config) Validate() error {
	if len(c.Search.SemanticThresholds) == 0 {
		return fmt.Errorf("search.semantic_thresholds must not be empty")
	}
	prev := math.Inf(1)
	for _, th := range c.Search.SemanticThresholds {
		if th <= 0 || th > 1 {
			return fmt.Errorf("semantic threshold out of range (0,1]: %f", th)
		}
		if th >= prev {
			return fmt.Errorf("semantic_thresholds must be strictly descending")
		}
		prev = th
	}

	if c.Search.ConfidenceThreshold < 0 || c.Search.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be between 0 and 1, got %f", c.Search.ConfidenceThreshold)
	}
	if c.Search.SuggestionFloor < 0 || c.Search.SuggestionFloor > 1 {
		return fmt.Errorf("suggestion_floor must be between 0 and 1, got %f", c.Search.SuggestionFloor)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("max_results must be positive, got %d", c.Search.MaxResults)
	}
	if c.Search.MaxSuggestions <= 0 {
		return fmt.Errorf("max_suggestions must be positive, got %d", c.Search.MaxSuggestions)
	}
	if c.Search.MaxExpansionTerms <= 0 {
		return fmt.Errorf("max_expansion_terms must be positive, got %d", c.Search.MaxExpansionTerms)
	}
	if c.Search.StageTimeout <= 0 {
		return fmt.Errorf("stage_timeout must be positive, got %s", c.Search.StageTimeout)
	}

	validProviders := map[string]bool{"ollama": true, "static": true}
	if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
		return fmt.Errorf("embeddings.provider must be 'ollama' or 'static', got %s", c.Embeddings.Provider)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
