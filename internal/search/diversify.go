package search

import (
	"sort"

	"github.com/coatseek/coatseek/internal/catalog"
)

// DefaultMaxResults bounds the diversified result page.
const DefaultMaxResults = 20

// Diversifier re-orders a score-sorted candidate list so no single
// product family dominates the head of the page.
type Diversifier struct {
	maxResults int
}

// NewDiversifier creates a diversifier with the given page bound.
func NewDiversifier(maxResults int) *Diversifier {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Diversifier{maxResults: maxResults}
}

// Diversify groups candidates by family and round-robins across groups,
// one candidate per group per round in each group's internal score order,
// until the bound is hit or every group is exhausted. With k distinct
// families in the input, the first min(k, bound) output entries contain
// at most one entry per family.
func (d *Diversifier) Diversify(candidates []*Candidate) []*Candidate {
	if len(candidates) <= 1 {
		return bounded(candidates, d.maxResults)
	}

	groups := make(map[string][]*Candidate)
	var order []string
	for _, c := range candidates {
		family := candidateFamily(c)
		if _, exists := groups[family]; !exists {
			order = append(order, family)
		}
		groups[family] = append(groups[family], c)
	}

	if len(groups) == 1 {
		return bounded(candidates, d.maxResults)
	}

	// Groups take turns in order of their best candidate; input is
	// already score-sorted so first appearance is the group's best.
	sort.SliceStable(order, func(i, j int) bool {
		return groups[order[i]][0].Score > groups[order[j]][0].Score
	})

	result := make([]*Candidate, 0, min(len(candidates), d.maxResults))
	offsets := make(map[string]int, len(groups))
	for len(result) < d.maxResults {
		advanced := false
		for _, family := range order {
			group := groups[family]
			idx := offsets[family]
			if idx >= len(group) {
				continue
			}
			result = append(result, group[idx])
			offsets[family] = idx + 1
			advanced = true
			if len(result) >= d.maxResults {
				break
			}
		}
		if !advanced {
			break
		}
	}

	return result
}

// candidateFamily resolves the grouping key; unknown family is its own
// group.
func candidateFamily(c *Candidate) string {
	if c.Product == nil {
		return ""
	}
	family, ok := c.Product.Field(catalog.FieldFamily)
	if !ok {
		return ""
	}
	return family
}

func bounded(candidates []*Candidate, max int) []*Candidate {
	if len(candidates) > max {
		return candidates[:max]
	}
	return candidates
}
