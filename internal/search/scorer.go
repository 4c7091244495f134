package search

import (
	"sort"
	"strings"

	"github.com/coatseek/coatseek/internal/catalog"
)

// Field weights, highest to lowest: identifier fields dominate, free-text
// fields contribute least.
var fieldWeights = []struct {
	field  string
	weight float64
}{
	{catalog.FieldSKU, 10},
	{catalog.FieldName, 7},
	{catalog.FieldFamily, 5},
	{catalog.FieldType, 4},
	{catalog.FieldModel, 3},
	{catalog.FieldDescription, 1.5},
	{catalog.FieldApplication, 1.5},
}

const (
	// exactMatchMultiplier rewards a full-field match over containment.
	exactMatchMultiplier = 2.0
	// multiTermBonus scales with the number of distinct matched terms.
	multiTermBonus = 3.0
)

// Scorer assigns relevance scores. Pure: identical (candidate, terms)
// input always yields the identical score.
type Scorer struct{}

// NewScorer creates a scorer.
func NewScorer() *Scorer { return &Scorer{} }

// Score computes the relevance of a candidate to the search terms. Each
// field is scored at most once per term; exact full-field matches score
// double their containment weight; a breadth bonus rewards candidates
// matching more distinct terms.
func (s *Scorer) Score(candidate *Candidate, terms []string) float64 {
	if candidate == nil || candidate.Product == nil || len(terms) == 0 {
		return 0
	}

	var total float64
	matchedTerms := 0

	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}

		termScore := 0.0
		for _, fw := range fieldWeights {
			value, ok := candidate.Product.Field(fw.field)
			if !ok || value == "" {
				continue
			}
			lower := strings.ToLower(value)
			switch {
			case lower == term:
				termScore += fw.weight * exactMatchMultiplier
			case strings.Contains(lower, term):
				termScore += fw.weight
			}
		}

		if termScore > 0 {
			matchedTerms++
			total += termScore
		}
	}

	if matchedTerms > 1 {
		total += multiTermBonus * float64(matchedTerms)
	}

	return total
}

// passesGate reports whether a candidate matched enough distinct terms to
// stay in the result set. Multi-term queries require a higher fraction of
// terms matched than single-term queries.
func (s *Scorer) passesGate(candidate *Candidate, terms []string) bool {
	if candidate.Product == nil {
		return false
	}
	// Semantic and exact-code candidates earned their place upstream.
	if candidate.SourceStrategy == StrategyExactCode || candidate.SourceStrategy == StrategySemantic {
		return true
	}

	distinct := 0
	matched := 0
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		distinct++
		if s.termMatches(candidate.Product, term) {
			matched++
		}
	}

	switch {
	case distinct == 0:
		return false
	case distinct == 1:
		return matched >= 1
	case distinct <= 3:
		return matched >= 1 && candidate.Score > 0
	default:
		// Broad queries demand at least a quarter of terms matched.
		return matched*4 >= distinct
	}
}

func (s *Scorer) termMatches(product *catalog.Product, term string) bool {
	for _, fw := range fieldWeights {
		if value, ok := product.Field(fw.field); ok && value != "" {
			if strings.Contains(strings.ToLower(value), term) {
				return true
			}
		}
	}
	return false
}

// RankCandidates scores, gates, and sorts candidates. Ordering is fully
// deterministic: score descending, then stage priority, then identity
// key.
func (s *Scorer) RankCandidates(candidates []*Candidate, terms []string) []*Candidate {
	for _, c := range candidates {
		c.Score = s.Score(c, terms)
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if s.passesGate(c, terms) {
			kept = append(kept, c)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		pi, pj := stagePriority[kept[i].SourceStrategy], stagePriority[kept[j].SourceStrategy]
		if pi != pj {
			return pi < pj
		}
		return kept[i].Product.IdentityKey() < kept[j].Product.IdentityKey()
	})

	return kept
}
