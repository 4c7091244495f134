// Package search implements the query resolution and ranking engine: code
// normalization, term expansion, intent planning, the retrieval cascade,
// relevance scoring, result diversification, and did-you-mean suggestions.
package search

import (
	"time"

	"github.com/coatseek/coatseek/internal/catalog"
)

// Intent classifies what a query is asking for.
type Intent string

const (
	IntentLookup     Intent = "lookup"
	IntentComparison Intent = "comparison"
	IntentList       Intent = "list"
	IntentCount      Intent = "count"
	IntentAnalytical Intent = "analytical"
)

// Strategy identifies the retrieval stage that produced a candidate.
type Strategy string

const (
	StrategyExactCode Strategy = "exact-code"
	StrategySemantic  Strategy = "semantic"
	StrategyKeyword   Strategy = "keyword"
	StrategyFuzzy     Strategy = "fuzzy"
	// StrategyNone marks a resolution that produced no candidates.
	StrategyNone Strategy = "none"
)

// stagePriority orders strategies for deterministic tie-breaking; lower
// is higher priority.
var stagePriority = map[Strategy]int{
	StrategyExactCode: 0,
	StrategySemantic:  1,
	StrategyKeyword:   2,
	StrategyFuzzy:     3,
}

// CodePattern tags which normalizer pattern recognized a product code.
type CodePattern string

const (
	PatternSeparated    CodePattern = "separated"     // "CA 8100", "CA-8100"
	PatternDigitLetter  CodePattern = "digit-letter"  // "54GN098"
	PatternLetterDigit  CodePattern = "letter-digit"  // "B50W101"
	PatternLetterHyphen CodePattern = "letter-hyphen" // "C-2000"
	PatternBarePrefix   CodePattern = "bare-prefix"   // "CA8100"
	PatternSeries       CodePattern = "series"        // "8000 series"
)

// NormalizedCode is the canonical form of a product-code-like query token:
// upper-cased, separators stripped, with provenance.
type NormalizedCode struct {
	// Code is the canonical separator-free upper-case code.
	Code string
	// Raw is the original matched text.
	Raw string
	// Pattern tags which recognizer produced the match.
	Pattern CodePattern
	// IsSeries marks numeric-series identifiers ("8000 series") as
	// distinct from discrete SKUs.
	IsSeries bool
}

// Filters carries the structured filter values applied alongside a query.
type Filters struct {
	Family       string `json:"family,omitempty"`
	ProductType  string `json:"productType,omitempty"`
	ProductModel string `json:"productModel,omitempty"`
}

// Request is one search invocation.
type Request struct {
	Query   string  `json:"query"`
	Filters Filters `json:"filters"`
}

// SearchPlan is the planner's output, consumed read-only by the cascade.
type SearchPlan struct {
	Intent                   Intent
	SearchTerms              []string
	RequiresMultipleProducts bool
}

// Candidate is a product plus retrieval provenance, scoped to one
// resolution. Only the scorer mutates Score and only the diversifier
// reorders.
type Candidate struct {
	Product        *catalog.Product
	SourceStrategy Strategy
	Score          float64
	// Similarity is set only for semantic-stage candidates.
	Similarity float64
}

// Suggestion is a ranked did-you-mean alternative. Suggestions are never
// merged into the primary result list.
type Suggestion struct {
	SKU          string  `json:"sku"`
	Similarity   float64 `json:"similarity"`
	IsSuggestion bool    `json:"isSuggestion"`
}

// Response is the resolution result handed to the answer generator.
type Response struct {
	Success      bool               `json:"success"`
	Intent       Intent             `json:"intent"`
	Results      []*catalog.Product `json:"results"`
	TotalResults int                `json:"totalResults"`
	StrategyUsed Strategy           `json:"searchStrategyUsed"`
	Suggestions  []Suggestion       `json:"suggestions,omitempty"`
	Error        string             `json:"error,omitempty"`
	Elapsed      time.Duration      `json:"-"`
}
