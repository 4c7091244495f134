package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/coatseek/coatseek/internal/catalog"
	serrors "github.com/coatseek/coatseek/internal/errors"
)

// DefaultConfidenceThreshold: below this lexical similarity between a
// detected code and the best candidate, the disambiguator runs.
const DefaultConfidenceThreshold = 0.80

// Engine orchestrates one query resolution: plan, normalize, cascade,
// score, diversify, and disambiguate on low confidence.
type Engine struct {
	planner       *Planner
	cascade       *Cascade
	scorer        *Scorer
	diversifier   *Diversifier
	disambiguator *Disambiguator

	confidenceThreshold float64
	logger              *slog.Logger
}

// NewEngine assembles an engine from its collaborators.
func NewEngine(planner *Planner, cascade *Cascade, disambiguator *Disambiguator, opts ...EngineOption) *Engine {
	e := &Engine{
		planner:             planner,
		cascade:             cascade,
		scorer:              NewScorer(),
		diversifier:         NewDiversifier(DefaultMaxResults),
		disambiguator:       disambiguator,
		confidenceThreshold: DefaultConfidenceThreshold,
		logger:              slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search resolves one request into a ranked, diversified, deduplicated
// result set. A failed search and a legitimate empty result are distinct:
// the former sets Success=false with Error, the latter keeps Success=true
// with suggestions where available.
func (e *Engine) Search(ctx context.Context, req Request) *Response {
	started := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		err := serrors.InvalidRequest("query must not be empty")
		return &Response{
			Success:      false,
			Intent:       IntentLookup,
			Results:      []*catalog.Product{},
			StrategyUsed: StrategyNone,
			Error:        err.Error(),
			Elapsed:      time.Since(started),
		}
	}

	plan := e.planner.Plan(ctx, query, req.Filters)
	code := NormalizeCode(query)

	outcome := e.cascade.Run(ctx, plan, code, req.Filters)

	ranked := e.scorer.RankCandidates(outcome.Candidates, plan.SearchTerms)
	diversified := e.diversifier.Diversify(ranked)

	resp := &Response{
		Success:      true,
		Intent:       plan.Intent,
		Results:      make([]*catalog.Product, 0, len(diversified)),
		StrategyUsed: outcome.StrategyUsed,
		Elapsed:      time.Since(started),
	}
	for _, c := range diversified {
		resp.Results = append(resp.Results, c.Product)
	}
	resp.TotalResults = len(resp.Results)

	if len(resp.Results) == 0 && outcome.UpstreamErr != nil {
		// Every stage failed upstream; this is a failed search, not an
		// empty one, and callers must phrase it differently.
		resp.Success = false
		resp.Error = outcome.UpstreamErr.Error()
		e.logger.Error("search_failed",
			slog.String("query", query),
			slog.String("collaborator", serrors.Collaborator(outcome.UpstreamErr)),
			slog.String("error", resp.Error))
		return resp
	}

	if e.lowConfidence(code, diversified, outcome.StrategyUsed) {
		resp.Suggestions = e.suggest(ctx, code)
	}

	e.logger.Info("search_resolved",
		slog.String("query", query),
		slog.String("intent", string(plan.Intent)),
		slog.String("strategy", string(resp.StrategyUsed)),
		slog.Int("results", resp.TotalResults),
		slog.Int("suggestions", len(resp.Suggestions)),
		slog.Duration("elapsed", resp.Elapsed))

	return resp
}

// lowConfidence decides whether to run the disambiguator: always on zero
// results with a detected code, otherwise when the best candidate's code
// is lexically far from the detected code.
func (e *Engine) lowConfidence(code *NormalizedCode, results []*Candidate, strategy Strategy) bool {
	if code == nil || code.IsSeries {
		return false
	}
	if len(results) == 0 {
		return true
	}
	if strategy == StrategyExactCode {
		return false
	}

	best := results[0]
	sku, ok := best.Product.Field(catalog.FieldSKU)
	if !ok || sku == "" {
		return true
	}
	similarity := codeSimilarity(code.Code, catalog.NormalizeCodeValue(sku))
	return similarity < e.confidenceThreshold
}

func (e *Engine) suggest(ctx context.Context, code *NormalizedCode) []Suggestion {
	if e.disambiguator == nil || code == nil {
		return nil
	}
	suggestions, err := e.disambiguator.Suggest(ctx, code.Code)
	if err != nil {
		// Suggestions are best-effort; the primary result stands.
		e.logger.Warn("suggestions_unavailable",
			slog.String("code", code.Code),
			slog.String("error", err.Error()))
		return nil
	}
	return suggestions
}
