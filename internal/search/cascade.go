package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/coatseek/coatseek/internal/catalog"
	"github.com/coatseek/coatseek/internal/embed"
	serrors "github.com/coatseek/coatseek/internal/errors"
	"github.com/coatseek/coatseek/internal/vector"
)

// Cascade defaults.
const (
	// DefaultStageTimeout bounds each stage's external calls.
	DefaultStageTimeout = 30 * time.Second
	// DefaultMinKeywordResults: the keyword stage runs whenever fewer
	// results than this have accumulated.
	DefaultMinKeywordResults = 5
	// semanticFetchLimit is how many neighbors each ladder rung requests.
	semanticFetchLimit = 30
)

// DefaultSemanticThresholds is the descending similarity ladder: the
// strictest rung is tried first and relaxed only on zero results.
var DefaultSemanticThresholds = []float64{0.45, 0.35, 0.25, 0.20}

// VectorSearcher is the nearest-neighbor collaborator.
type VectorSearcher interface {
	NearestNeighbors(ctx context.Context, query []float32, threshold float64, limit int) ([]vector.Hit, error)
}

// CascadeConfig tunes the retrieval cascade.
type CascadeConfig struct {
	SemanticThresholds []float64
	MinKeywordResults  int
	StageTimeout       time.Duration
}

// Cascade runs the ordered retrieval stages: exact-code, semantic,
// keyword, fuzzy. Stages run sequentially; each may short-circuit on a
// high-confidence result, and a failing or timed-out stage degrades to
// zero results rather than aborting the resolution.
type Cascade struct {
	store    catalog.Store
	embedder embed.Embedder
	index    VectorSearcher
	config   CascadeConfig
	logger   *slog.Logger
}

// NewCascade creates a cascade. embedder and index may be nil, which
// disables the semantic stage.
func NewCascade(store catalog.Store, embedder embed.Embedder, index VectorSearcher, cfg CascadeConfig, logger *slog.Logger) *Cascade {
	if len(cfg.SemanticThresholds) == 0 {
		cfg.SemanticThresholds = DefaultSemanticThresholds
	}
	if cfg.MinKeywordResults <= 0 {
		cfg.MinKeywordResults = DefaultMinKeywordResults
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = DefaultStageTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cascade{
		store:    store,
		embedder: embedder,
		index:    index,
		config:   cfg,
		logger:   logger,
	}
}

// Outcome is the cascade's result before scoring.
type Outcome struct {
	Candidates   []*Candidate
	StrategyUsed Strategy
	// UpstreamErr records the last stage failure. It matters only when
	// Candidates is empty: an empty outcome with UpstreamErr set is a
	// failed search, without it a legitimate no-match.
	UpstreamErr error
}

// resolution is per-request cascade state. Never shared across requests.
type resolution struct {
	plan       *SearchPlan
	code       *NormalizedCode
	filters    Filters
	seen       map[string]struct{}
	candidates []*Candidate
	// per-stage hit counts, for strategy attribution
	stageHits map[Strategy]int
	// codeMissed is set when a detected code found nothing in stage 1;
	// semantic drift must not soften a code miss.
	codeMissed  bool
	upstreamErr error
}

// stage is the uniform contract every retrieval strategy implements.
type stage struct {
	name Strategy
	// skip decides whether the stage runs given accumulated state.
	skip func(r *resolution) bool
	// run returns new candidates and whether the cascade should stop.
	run func(ctx context.Context, r *resolution) ([]*Candidate, bool, error)
}

// Run executes the cascade for a planned query.
func (c *Cascade) Run(ctx context.Context, plan *SearchPlan, code *NormalizedCode, filters Filters) *Outcome {
	r := &resolution{
		plan:      plan,
		code:      code,
		filters:   filters,
		seen:      make(map[string]struct{}),
		stageHits: make(map[Strategy]int),
	}

	stages := []stage{
		{
			name: StrategyExactCode,
			skip: func(r *resolution) bool { return r.code == nil },
			run:  c.exactCodeStage,
		},
		{
			name: StrategySemantic,
			skip: func(r *resolution) bool {
				return c.embedder == nil || c.index == nil || r.codeMissed
			},
			run: c.semanticStage,
		},
		{
			name: StrategyKeyword,
			skip: func(r *resolution) bool {
				return len(r.candidates) >= c.config.MinKeywordResults
			},
			run: c.keywordStage,
		},
		{
			name: StrategyFuzzy,
			skip: func(r *resolution) bool {
				return r.stageHits[StrategySemantic] > 0 || r.stageHits[StrategyKeyword] > 0
			},
			run: c.fuzzyStage,
		},
	}

	for _, st := range stages {
		if st.skip(r) {
			continue
		}
		stop := c.runStage(ctx, r, st)
		if stop {
			break
		}
	}

	return &Outcome{
		Candidates:   r.candidates,
		StrategyUsed: c.attributeStrategy(r),
		UpstreamErr:  r.upstreamErr,
	}
}

// runStage executes one stage under its timeout, deduplicates its
// candidates against earlier stages, and degrades failures to zero
// results.
func (c *Cascade) runStage(ctx context.Context, r *resolution, st stage) (stop bool) {
	stageCtx, cancel := context.WithTimeout(ctx, c.config.StageTimeout)
	defer cancel()

	started := time.Now()
	candidates, stop, err := st.run(stageCtx, r)
	elapsed := time.Since(started)

	if err != nil {
		var sErr error
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			sErr = serrors.Timeout(string(st.name), err)
		case errors.Is(err, context.Canceled):
			// Caller abandoned the resolution; nothing to record.
			return true
		default:
			sErr = serrors.Unavailable(string(st.name), err)
		}
		r.upstreamErr = sErr
		if st.name == StrategyExactCode {
			// A degraded code lookup counts as a miss; semantic drift
			// must not stand in for it.
			r.codeMissed = true
		}
		c.logger.Warn("stage_degraded",
			slog.String("stage", string(st.name)),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()))
		return false
	}

	added := 0
	for _, cand := range candidates {
		if cand.Product == nil {
			continue
		}
		if !c.matchesFilters(cand.Product, r.filters) {
			continue
		}
		key := cand.Product.IdentityKey()
		if _, dup := r.seen[key]; dup {
			continue
		}
		r.seen[key] = struct{}{}
		r.candidates = append(r.candidates, cand)
		added++
	}
	r.stageHits[st.name] = added

	if st.name == StrategyExactCode && added == 0 {
		r.codeMissed = true
	}

	c.logger.Debug("stage_complete",
		slog.String("stage", string(st.name)),
		slog.Int("added", added),
		slog.Duration("elapsed", elapsed))

	return stop && added > 0
}

// attributeStrategy reports the highest-priority stage that contributed.
func (c *Cascade) attributeStrategy(r *resolution) Strategy {
	for _, s := range []Strategy{StrategyExactCode, StrategySemantic, StrategyKeyword, StrategyFuzzy} {
		if r.stageHits[s] > 0 {
			return s
		}
	}
	return StrategyNone
}

// matchesFilters applies the request's structured filters.
func (c *Cascade) matchesFilters(p *catalog.Product, f Filters) bool {
	match := func(field, want string) bool {
		if want == "" {
			return true
		}
		value, ok := p.Field(field)
		return ok && strings.EqualFold(value, want)
	}
	return match(catalog.FieldFamily, f.Family) &&
		match(catalog.FieldType, f.ProductType) &&
		match(catalog.FieldModel, f.ProductModel)
}

// exactCodeStage queries code-bearing fields for the normalized code.
// Any hit terminates the cascade.
func (c *Cascade) exactCodeStage(ctx context.Context, r *resolution) ([]*Candidate, bool, error) {
	products, err := c.store.QueryByCode(ctx, r.code.Code)
	if err != nil {
		return nil, false, err
	}

	candidates := make([]*Candidate, 0, len(products))
	for _, p := range products {
		candidates = append(candidates, &Candidate{
			Product:        p,
			SourceStrategy: StrategyExactCode,
		})
	}
	return candidates, true, nil
}

// semanticStage embeds the expanded query and walks the threshold ladder,
// collecting all hits from the first rung that yields any.
func (c *Cascade) semanticStage(ctx context.Context, r *resolution) ([]*Candidate, bool, error) {
	queryText := strings.Join(r.plan.SearchTerms, " ")
	if queryText == "" {
		return nil, false, nil
	}

	queryVec, err := c.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, false, err
	}

	for _, threshold := range c.config.SemanticThresholds {
		hits, err := c.index.NearestNeighbors(ctx, queryVec, threshold, semanticFetchLimit)
		if err != nil {
			return nil, false, err
		}
		if len(hits) == 0 {
			continue
		}

		candidates := make([]*Candidate, 0, len(hits))
		for _, hit := range hits {
			product, err := c.store.Get(ctx, hit.Key)
			if err != nil {
				return nil, false, err
			}
			if product == nil {
				// Index entry with no catalog row; stale index.
				continue
			}
			candidates = append(candidates, &Candidate{
				Product:        product,
				SourceStrategy: StrategySemantic,
				Similarity:     hit.Similarity,
			})
		}
		return candidates, false, nil
	}

	return nil, false, nil
}

// keywordStage runs substring queries across the field priority list for
// each expansion term.
func (c *Cascade) keywordStage(ctx context.Context, r *resolution) ([]*Candidate, bool, error) {
	return c.substringSearch(ctx, r.plan.SearchTerms, StrategyKeyword)
}

// fuzzyStage retries substring queries with lexical variants of the
// query tokens. Only entered when semantic and keyword both came back
// empty.
func (c *Cascade) fuzzyStage(ctx context.Context, r *resolution) ([]*Candidate, bool, error) {
	variants := fuzzyVariants(r.plan.SearchTerms, r.code)
	if len(variants) == 0 {
		return nil, false, nil
	}
	return c.substringSearch(ctx, variants, StrategyFuzzy)
}

func (c *Cascade) substringSearch(ctx context.Context, terms []string, strategy Strategy) ([]*Candidate, bool, error) {
	var candidates []*Candidate
	local := make(map[string]struct{})

	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		for _, field := range catalog.KeywordFieldPriority {
			products, err := c.store.QueryBySubstring(ctx, field, term)
			if err != nil {
				return nil, false, err
			}
			for _, p := range products {
				key := p.IdentityKey()
				if _, dup := local[key]; dup {
					continue
				}
				local[key] = struct{}{}
				candidates = append(candidates, &Candidate{
					Product:        p,
					SourceStrategy: strategy,
				})
			}
		}
	}
	return candidates, false, nil
}

// fuzzyVariants generates lexical variants: punctuation stripped, embedded
// numerics extracted, separators permuted.
func fuzzyVariants(terms []string, code *NormalizedCode) []string {
	seen := make(map[string]struct{})
	var variants []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if len(v) < 2 {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		variants = append(variants, v)
	}

	sources := terms
	if code != nil {
		sources = append([]string{code.Code, code.Raw}, sources...)
	}

	for _, term := range sources {
		stripped := stripPunctuation(term)
		add(stripped)

		if digits := extractDigits(term); digits != "" && digits != stripped {
			add(digits)
		}
		if letters := extractLetters(term); letters != "" && letters != stripped {
			add(letters)
		}

		// Separator permutations: "CA8100" -> "CA 8100", "CA-8100".
		if prefix, rest := splitLetterDigit(stripped); prefix != "" && rest != "" {
			add(prefix + " " + rest)
			add(prefix + "-" + rest)
		}
	}
	return variants
}

func stripPunctuation(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractLetters(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitLetterDigit splits a compact code into its leading letter run and
// the remainder, e.g. "CA8100" -> ("CA", "8100").
func splitLetterDigit(s string) (string, string) {
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if i == 0 {
				return "", ""
			}
			return s[:i], s[i:]
		}
	}
	return "", ""
}
