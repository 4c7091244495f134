package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/coatseek/coatseek/internal/catalog"
)

// Disambiguator defaults.
const (
	// DefaultSuggestionFloor is the minimum similarity for a suggestion.
	DefaultSuggestionFloor = 0.60
	// DefaultMaxSuggestions bounds the suggestion list.
	DefaultMaxSuggestions = 5
	// containsBoost is added when one code contains the other.
	containsBoost = 0.15
	// affixLength is how many leading/trailing characters seed the
	// candidate pool queries.
	affixLength = 2
	// poolLimit bounds each affix query so disambiguation never scans
	// the whole catalog.
	poolLimit = 200
)

// Disambiguator produces ranked did-you-mean suggestions when no strong
// match exists for a detected product code.
type Disambiguator struct {
	store          catalog.Store
	floor          float64
	maxSuggestions int
	logger         *slog.Logger
}

// NewDisambiguator creates a disambiguator over the catalog store.
func NewDisambiguator(store catalog.Store, floor float64, maxSuggestions int, logger *slog.Logger) *Disambiguator {
	if floor <= 0 || floor >= 1 {
		floor = DefaultSuggestionFloor
	}
	if maxSuggestions <= 0 {
		maxSuggestions = DefaultMaxSuggestions
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Disambiguator{
		store:          store,
		floor:          floor,
		maxSuggestions: maxSuggestions,
		logger:         logger,
	}
}

// Suggest returns up to maxSuggestions SKUs similar to the normalized
// code, ordered by similarity descending. The candidate pool is bounded
// by prefix/suffix heuristics rather than a full catalog scan.
func (d *Disambiguator) Suggest(ctx context.Context, code string) ([]Suggestion, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil
	}

	pool, err := d.candidatePool(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, nil
	}

	suggestions := make([]Suggestion, 0, len(pool))
	for sku := range pool {
		similarity := codeSimilarity(code, catalog.NormalizeCodeValue(sku))
		if similarity < d.floor {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			SKU:          sku,
			Similarity:   similarity,
			IsSuggestion: true,
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Similarity != suggestions[j].Similarity {
			return suggestions[i].Similarity > suggestions[j].Similarity
		}
		return suggestions[i].SKU < suggestions[j].SKU
	})

	if len(suggestions) > d.maxSuggestions {
		suggestions = suggestions[:d.maxSuggestions]
	}

	d.logger.Debug("suggestions_computed",
		slog.String("code", code),
		slog.Int("pool", len(pool)),
		slog.Int("returned", len(suggestions)))

	return suggestions, nil
}

// candidatePool fetches SKUs sharing a leading or trailing affix with the
// code.
func (d *Disambiguator) candidatePool(ctx context.Context, code string) (map[string]struct{}, error) {
	pool := make(map[string]struct{})

	if len(code) >= affixLength {
		prefix := code[:affixLength]
		skus, err := d.store.SKUsByAffix(ctx, prefix, "", poolLimit)
		if err != nil {
			return nil, err
		}
		for _, sku := range skus {
			pool[sku] = struct{}{}
		}

		suffix := code[len(code)-affixLength:]
		skus, err = d.store.SKUsByAffix(ctx, "", suffix, poolLimit)
		if err != nil {
			return nil, err
		}
		for _, sku := range skus {
			pool[sku] = struct{}{}
		}
	}

	return pool, nil
}

// codeSimilarity computes normalized edit-distance similarity between two
// canonical codes, with a boost when one contains the other. Digit-for-
// digit substitutions cost half a regular edit: codes in the same range
// ("CA9999" vs "CA8100") are near misses, not strangers.
func codeSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	similarity := 1 - levenshtein(a, b)/float64(maxLen)

	if strings.Contains(a, b) || strings.Contains(b, a) {
		similarity += containsBoost
	}
	if similarity > 1 {
		similarity = 1
	}
	if similarity < 0 {
		similarity = 0
	}
	return similarity
}

// levenshtein computes weighted edit distance with a two-row dynamic
// program. Substituting one digit for another costs 0.5; every other
// edit costs 1.
func levenshtein(a, b string) float64 {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return float64(len(b))
	}
	if len(b) == 0 {
		return float64(len(a))
	}

	prev := make([]float64, len(b)+1)
	curr := make([]float64, len(b)+1)
	for j := range prev {
		prev[j] = float64(j)
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = float64(i)
		for j := 1; j <= len(b); j++ {
			cost := substitutionCost(a[i-1], b[j-1])
			curr[j] = minFloat(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func substitutionCost(x, y byte) float64 {
	if x == y {
		return 0
	}
	if isDigit(x) && isDigit(y) {
		return 0.5
	}
	return 1
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func minFloat(values ...float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
