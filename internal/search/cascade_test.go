package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coatseek/coatseek/internal/catalog"
	"github.com/coatseek/coatseek/internal/embed"
	serrors "github.com/coatseek/coatseek/internal/errors"
	"github.com/coatseek/coatseek/internal/vector"
)

func embedStatic() embed.Embedder { return embed.NewStaticEmbedder() }

// scriptStore overrides the queries a cascade test cares about and counts
// calls; unset hooks return empty results.
type scriptStore struct {
	catalog.Store

	byCode         func(code string) ([]*catalog.Product, error)
	bySubstring    func(field, term string) ([]*catalog.Product, error)
	get            func(id string) (*catalog.Product, error)
	substringCalls int
}

func (s *scriptStore) QueryByCode(_ context.Context, code string) ([]*catalog.Product, error) {
	if s.byCode != nil {
		return s.byCode(code)
	}
	return nil, nil
}

func (s *scriptStore) QueryBySubstring(_ context.Context, field, term string) ([]*catalog.Product, error) {
	s.substringCalls++
	if s.bySubstring != nil {
		return s.bySubstring(field, term)
	}
	return nil, nil
}

func (s *scriptStore) Get(_ context.Context, id string) (*catalog.Product, error) {
	if s.get != nil {
		return s.get(id)
	}
	return nil, nil
}

// scriptVec records the thresholds the ladder walked.
type scriptVec struct {
	thresholds []float64
	hitsAt     map[float64][]vector.Hit
	calls      int
}

func (v *scriptVec) NearestNeighbors(_ context.Context, _ []float32, threshold float64, _ int) ([]vector.Hit, error) {
	v.calls++
	v.thresholds = append(v.thresholds, threshold)
	return v.hitsAt[threshold], nil
}

func lookupPlan(terms ...string) *SearchPlan {
	return &SearchPlan{Intent: IntentLookup, SearchTerms: terms}
}

func TestCascadeExactCodeShortCircuits(t *testing.T) {
	store := &scriptStore{
		byCode: func(code string) ([]*catalog.Product, error) {
			require.Equal(t, "CA8100", code)
			return []*catalog.Product{{SKU: "CA 8100"}}, nil
		},
	}
	vec := &scriptVec{}
	c := NewCascade(store, embedStatic(), vec, CascadeConfig{}, nil)

	out := c.Run(context.Background(), lookupPlan("ca8100"), &NormalizedCode{Code: "CA8100"}, Filters{})
	assert.Equal(t, StrategyExactCode, out.StrategyUsed)
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, 0, vec.calls, "a code hit must stop the cascade before semantic")
	assert.Equal(t, 0, store.substringCalls)
}

func TestCascadeCodeMissSkipsSemantic(t *testing.T) {
	store := &scriptStore{}
	vec := &scriptVec{hitsAt: map[float64][]vector.Hit{
		0.45: {{Key: "X1", Similarity: 0.5}},
	}}
	c := NewCascade(store, embedStatic(), vec, CascadeConfig{}, nil)

	out := c.Run(context.Background(), lookupPlan("ca9999"), &NormalizedCode{Code: "CA9999"}, Filters{})
	assert.Equal(t, 0, vec.calls, "semantic drift must not soften a code miss")
	assert.Empty(t, out.Candidates)
	assert.NoError(t, out.UpstreamErr)
}

func TestCascadeSemanticLadderRelaxes(t *testing.T) {
	store := &scriptStore{
		get: func(id string) (*catalog.Product, error) {
			return &catalog.Product{SKU: id, Name: "Epoxy Primer"}, nil
		},
	}
	vec := &scriptVec{hitsAt: map[float64][]vector.Hit{
		0.25: {
			{Key: "CA8100", Similarity: 0.31},
			{Key: "CA8199", Similarity: 0.27},
		},
	}}
	c := NewCascade(store, embedStatic(), vec, CascadeConfig{}, nil)

	out := c.Run(context.Background(), lookupPlan("epoxy", "primer"), nil, Filters{})

	// Strictest rung first, relaxed only on zero results, stop at the
	// first rung that yields any.
	assert.Equal(t, []float64{0.45, 0.35, 0.25}, vec.thresholds)
	assert.Equal(t, StrategySemantic, out.StrategyUsed)
	require.Len(t, out.Candidates, 2)
	assert.Equal(t, 0.31, out.Candidates[0].Similarity)
}

func TestCascadeKeywordSkippedWhenEnoughAccumulated(t *testing.T) {
	hits := make([]vector.Hit, 6)
	for i := range hits {
		hits[i] = vector.Hit{Key: string(rune('A'+i)) + "100", Similarity: 0.5}
	}
	store := &scriptStore{
		get: func(id string) (*catalog.Product, error) {
			return &catalog.Product{SKU: id}, nil
		},
	}
	vec := &scriptVec{hitsAt: map[float64][]vector.Hit{0.45: hits}}
	c := NewCascade(store, embedStatic(), vec, CascadeConfig{MinKeywordResults: 5}, nil)

	out := c.Run(context.Background(), lookupPlan("epoxy"), nil, Filters{})
	assert.Len(t, out.Candidates, 6)
	assert.Equal(t, 0, store.substringCalls, "keyword stage runs only below the minimum result count")
}

func TestCascadeFuzzySkippedWhenKeywordHit(t *testing.T) {
	store := &scriptStore{
		bySubstring: func(field, term string) ([]*catalog.Product, error) {
			if term == "epoxy" && field == catalog.FieldName {
				return []*catalog.Product{{SKU: "CA8100", Name: "Epoxy Primer"}}, nil
			}
			return nil, nil
		},
	}
	c := NewCascade(store, nil, nil, CascadeConfig{}, nil)

	out := c.Run(context.Background(), lookupPlan("epoxy"), nil, Filters{})
	assert.Equal(t, StrategyKeyword, out.StrategyUsed)
	require.Len(t, out.Candidates, 1)
	// One keyword pass over the field priority list, no fuzzy retries.
	assert.Equal(t, len(catalog.KeywordFieldPriority), store.substringCalls)
}

func TestCascadeStageTimeoutDegrades(t *testing.T) {
	store := &scriptStore{
		byCode: func(string) ([]*catalog.Product, error) {
			time.Sleep(50 * time.Millisecond)
			return nil, context.DeadlineExceeded
		},
	}
	c := NewCascade(store, nil, nil, CascadeConfig{StageTimeout: 10 * time.Millisecond}, nil)

	out := c.Run(context.Background(), lookupPlan("ca8100"), &NormalizedCode{Code: "CA8100"}, Filters{})

	// The timed-out exact stage degrades to zero results and the cascade
	// keeps going; the timeout is recorded for observability.
	require.Error(t, out.UpstreamErr)
	assert.True(t, serrors.IsRetryable(out.UpstreamErr))
	assert.Greater(t, store.substringCalls, 0, "later stages still run after a timeout")
}

func TestCascadeDedupPreservesStagePriority(t *testing.T) {
	product := &catalog.Product{SKU: "CA8100", Name: "Epoxy Primer"}
	store := &scriptStore{
		get: func(id string) (*catalog.Product, error) { return product, nil },
		bySubstring: func(field, term string) ([]*catalog.Product, error) {
			if field == catalog.FieldName && term == "epoxy" {
				return []*catalog.Product{product}, nil
			}
			return nil, nil
		},
	}
	vec := &scriptVec{hitsAt: map[float64][]vector.Hit{
		0.45: {{Key: "CA8100", Similarity: 0.6}},
	}}
	c := NewCascade(store, embedStatic(), vec, CascadeConfig{}, nil)

	out := c.Run(context.Background(), lookupPlan("epoxy"), nil, Filters{})

	require.Len(t, out.Candidates, 1, "the same identity key is never re-added by a later stage")
	assert.Equal(t, StrategySemantic, out.Candidates[0].SourceStrategy)
}

func TestCascadeCancelledCallerStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &scriptStore{
		byCode: func(string) ([]*catalog.Product, error) {
			return nil, ctx.Err()
		},
	}
	c := NewCascade(store, nil, nil, CascadeConfig{}, nil)

	out := c.Run(ctx, lookupPlan("ca8100"), &NormalizedCode{Code: "CA8100"}, Filters{})
	assert.Empty(t, out.Candidates)
	assert.NoError(t, out.UpstreamErr, "caller cancellation is not an upstream failure")
	assert.Equal(t, 0, store.substringCalls, "no further stages after the caller abandons")
}
