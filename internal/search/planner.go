package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	serrors "github.com/coatseek/coatseek/internal/errors"
)

// Default planner configuration values.
const (
	DefaultClassifierModel     = "llama3.2:1b"
	DefaultClassifierTimeout   = 2 * time.Second
	DefaultClassifierCacheSize = 10000
	DefaultOllamaHost          = "http://localhost:11434"
)

// PlannerConfig holds configuration for the query planner.
type PlannerConfig struct {
	// Model is the Ollama model used for intent classification.
	Model string
	// Timeout bounds each classifier call.
	Timeout time.Duration
	// CacheSize is the LRU size for classification results.
	CacheSize int
	// OllamaHost is the Ollama API base URL.
	OllamaHost string
}

// DefaultPlannerConfig returns sensible planner defaults.
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Model:      DefaultClassifierModel,
		Timeout:    DefaultClassifierTimeout,
		CacheSize:  DefaultClassifierCacheSize,
		OllamaHost: DefaultOllamaHost,
	}
}

// Classifier produces a search plan from a query. Best effort; it may
// fail and the planner recovers with deterministic rules.
type Classifier interface {
	Classify(ctx context.Context, query string, filters Filters) (*SearchPlan, error)
}

// Planner classifies intent and extracts search terms. It tries the LLM
// classifier first and falls back to deterministic pattern rules; it
// never returns an error past the caller; total failure yields a
// degenerate lookup plan.
type Planner struct {
	classifier Classifier
	expander   *TermExpander
	cache      *lru.Cache[string, SearchPlan]
	logger     *slog.Logger
}

// NewPlanner creates a planner. classifier may be nil, in which case only
// the deterministic rules run.
func NewPlanner(classifier Classifier, expander *TermExpander, cacheSize int, logger *slog.Logger) *Planner {
	if cacheSize <= 0 {
		cacheSize = DefaultClassifierCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, _ := lru.New[string, SearchPlan](cacheSize)
	return &Planner{
		classifier: classifier,
		expander:   expander,
		cache:      cache,
		logger:     logger,
	}
}

// Plan produces a search plan for the query. Never fails.
func (p *Planner) Plan(ctx context.Context, query string, filters Filters) *SearchPlan {
	cacheKey := strings.ToLower(strings.TrimSpace(query)) + "\x00" + filters.Family + "\x00" + filters.ProductType + "\x00" + filters.ProductModel
	if plan, ok := p.cache.Get(cacheKey); ok {
		copied := plan
		return &copied
	}

	if p.classifier != nil {
		plan, err := p.classifier.Classify(ctx, query, filters)
		if err == nil && plan != nil && validPlan(plan) {
			p.cache.Add(cacheKey, *plan)
			return plan
		}
		if err != nil {
			p.logger.Debug("classifier_fallback",
				slog.String("query", query),
				slog.String("error", err.Error()))
		}
	}

	plan := p.fallbackPlan(query)
	p.cache.Add(cacheKey, *plan)
	return plan
}

// Deterministic intent rules, applied in order.
var (
	reComparison = regexp.MustCompile(`(?i)\b(compare|vs\.?|versus|difference between|better than|which is better)\b`)
	reCount      = regexp.MustCompile(`(?i)\b(how many|count|number of|total)\b`)
	reAnalytical = regexp.MustCompile(`(?i)\b(what is|what are|tell me about|explain|why|best for|suitable for|recommend(ed)? for)\b`)
	reList       = regexp.MustCompile(`(?i)\b(list|show( me)?|all|every|available)\b`)
)

// fallbackPlan applies deterministic pattern rules when the classifier is
// unavailable or unusable.
func (p *Planner) fallbackPlan(query string) *SearchPlan {
	intent := IntentLookup
	multiple := false

	switch {
	case reComparison.MatchString(query):
		intent = IntentComparison
		multiple = true
	case reCount.MatchString(query):
		intent = IntentCount
		multiple = true
	case reAnalytical.MatchString(query):
		intent = IntentAnalytical
	case reList.MatchString(query):
		intent = IntentList
		multiple = true
	}

	terms := p.expander.Expand(query)
	if len(terms) == 0 {
		terms = []string{strings.TrimSpace(query)}
	}

	return &SearchPlan{
		Intent:                   intent,
		SearchTerms:              terms,
		RequiresMultipleProducts: multiple,
	}
}

// validPlan rejects classifier output the cascade cannot use.
func validPlan(plan *SearchPlan) bool {
	switch plan.Intent {
	case IntentLookup, IntentComparison, IntentList, IntentCount, IntentAnalytical:
	default:
		return false
	}
	return len(plan.SearchTerms) > 0
}

// =============================================================================
// LLMClassifier
// =============================================================================

// LLMClassifier uses an Ollama model to produce a structured search plan.
type LLMClassifier struct {
	client *http.Client
	config PlannerConfig
}

// generateRequest is the Ollama /api/generate request body.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

// generateResponse is the Ollama /api/generate response body.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// classifierPlan is the JSON shape the model is asked to emit.
type classifierPlan struct {
	Intent                   string   `json:"intent"`
	SearchTerms              []string `json:"searchTerms"`
	RequiresMultipleProducts bool     `json:"requiresMultipleProducts"`
}

// NewLLMClassifier creates an Ollama-backed classifier.
func NewLLMClassifier(config PlannerConfig) *LLMClassifier {
	if config.Model == "" {
		config.Model = DefaultClassifierModel
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultClassifierTimeout
	}
	if config.OllamaHost == "" {
		config.OllamaHost = DefaultOllamaHost
	}
	return &LLMClassifier{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
	}
}

const planPrompt = `You classify search queries for an industrial coatings product catalog.

Classify the query into exactly one intent:
- lookup: find a specific product ("CA8100 datasheet", "zinc primer for steel")
- comparison: compare two or more products ("CA8100 vs CA8199")
- list: enumerate matching products ("show all epoxy primers")
- count: how many products match ("how many marine coatings do you have")
- analytical: explain or advise ("what is the best coating for tanks")

Extract the meaningful search terms from the query, most specific first.

Respond with ONLY a JSON object:
{"intent": "...", "searchTerms": ["..."], "requiresMultipleProducts": true|false}

Applied filters: %s
Query: %s
`

// Classify asks the model for a structured plan.
func (l *LLMClassifier) Classify(ctx context.Context, query string, filters Filters) (*SearchPlan, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}

	filterDesc := "none"
	if filters.Family != "" || filters.ProductType != "" || filters.ProductModel != "" {
		parts := make([]string, 0, 3)
		if filters.Family != "" {
			parts = append(parts, "family="+filters.Family)
		}
		if filters.ProductType != "" {
			parts = append(parts, "type="+filters.ProductType)
		}
		if filters.ProductModel != "" {
			parts = append(parts, "model="+filters.ProductModel)
		}
		filterDesc = strings.Join(parts, ", ")
	}

	body, err := json.Marshal(generateRequest{
		Model:  l.config.Model,
		Prompt: fmt.Sprintf(planPrompt, filterDesc, query),
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := l.config.OllamaHost + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return parsePlanResponse(result.Response)
}

// parsePlanResponse extracts a SearchPlan from raw model output. Models
// sometimes wrap JSON in prose or fences, so the first JSON object found
// is parsed.
func parsePlanResponse(response string) (*SearchPlan, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return nil, serrors.PlanParse(fmt.Errorf("no JSON object in classifier output"))
	}

	var parsed classifierPlan
	if err := json.Unmarshal([]byte(response[start:end+1]), &parsed); err != nil {
		return nil, serrors.PlanParse(err)
	}

	terms := make([]string, 0, len(parsed.SearchTerms))
	seen := make(map[string]struct{}, len(parsed.SearchTerms))
	for _, term := range parsed.SearchTerms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	plan := &SearchPlan{
		Intent:                   Intent(strings.ToLower(strings.TrimSpace(parsed.Intent))),
		SearchTerms:              terms,
		RequiresMultipleProducts: parsed.RequiresMultipleProducts,
	}
	if !validPlan(plan) {
		return nil, serrors.PlanParse(fmt.Errorf("unusable plan: intent=%q terms=%d", parsed.Intent, len(terms)))
	}
	return plan, nil
}

var _ Classifier = (*LLMClassifier)(nil)
