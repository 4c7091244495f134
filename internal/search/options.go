package search

import "log/slog"

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxResults sets the diversified page bound.
func WithMaxResults(n int) EngineOption {
	return func(e *Engine) {
		e.diversifier = NewDiversifier(n)
	}
}

// WithConfidenceThreshold sets the lexical similarity below which the
// disambiguator runs.
func WithConfidenceThreshold(threshold float64) EngineOption {
	return func(e *Engine) {
		if threshold > 0 && threshold <= 1 {
			e.confidenceThreshold = threshold
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}
