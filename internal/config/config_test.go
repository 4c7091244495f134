package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, []float64{0.45, 0.35, 0.25, 0.20}, cfg.Search.SemanticThresholds)
	assert.Equal(t, 0.80, cfg.Search.ConfidenceThreshold)
	assert.Equal(t, 0.60, cfg.Search.SuggestionFloor)
	assert.Equal(t, 5, cfg.Search.MaxSuggestions)
	assert.Equal(t, 40, cfg.Search.MaxExpansionTerms)
	assert.Equal(t, 30*time.Second, cfg.Search.StageTimeout)
	assert.Equal(t, 6*time.Hour, cfg.Cache.FilterTTL)

	require.NoError(t, cfg.Validate())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
search:
  confidence_threshold: 0.75
  max_results: 50
log_level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 0.75, cfg.Search.ConfidenceThreshold)
	assert.Equal(t, 50, cfg.Search.MaxResults)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched fields keep defaults.
	assert.Equal(t, 0.60, cfg.Search.SuggestionFloor)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "search:\n  confidence_threshold: 0.75\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(yaml), 0o644))

	t.Setenv("COATSEEK_CONFIDENCE_THRESHOLD", "0.9")
	t.Setenv("COATSEEK_EMBEDDINGS_PROVIDER", "static")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 0.9, cfg.Search.ConfidenceThreshold)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Search.MaxResults)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty ladder", func(c *Config) { c.Search.SemanticThresholds = nil }},
		{"ascending ladder", func(c *Config) { c.Search.SemanticThresholds = []float64{0.2, 0.4} }},
		{"threshold above 1", func(c *Config) { c.Search.ConfidenceThreshold = 1.5 }},
		{"zero results", func(c *Config) { c.Search.MaxResults = 0 }},
		{"bad provider", func(c *Config) { c.Embeddings.Provider = "cloud" }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"zero timeout", func(c *Config) { c.Search.StageTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)

	cfg := NewConfig()
	cfg.Search.MaxResults = 33
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 33, loaded.Search.MaxResults)
}
