package search

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coatseek/coatseek/internal/catalog"
)

func familyCandidate(sku, family string, score float64) *Candidate {
	return &Candidate{
		Product:        &catalog.Product{SKU: sku, Family: family},
		SourceStrategy: StrategyKeyword,
		Score:          score,
	}
}

func TestDiversifyAlternatesFamilies(t *testing.T) {
	d := NewDiversifier(20)

	var candidates []*Candidate
	for i := 0; i < 5; i++ {
		candidates = append(candidates, familyCandidate(fmt.Sprintf("A%d", i), "A", 10))
	}
	for i := 0; i < 5; i++ {
		candidates = append(candidates, familyCandidate(fmt.Sprintf("B%d", i), "B", 10))
	}

	out := d.Diversify(candidates)
	require.Len(t, out, 10)
	for i, c := range out {
		want := "A"
		if i%2 == 1 {
			want = "B"
		}
		assert.Equal(t, want, c.Product.Family, "position %d", i)
	}
}

func TestDiversifyFairnessHead(t *testing.T) {
	d := NewDiversifier(20)

	// 3 families; the first min(3, bound) entries must each come from a
	// different family regardless of the score skew toward family A.
	candidates := []*Candidate{
		familyCandidate("A1", "A", 50),
		familyCandidate("A2", "A", 49),
		familyCandidate("A3", "A", 48),
		familyCandidate("B1", "B", 10),
		familyCandidate("C1", "C", 5),
	}

	out := d.Diversify(candidates)
	require.Len(t, out, 5)

	head := map[string]int{}
	for _, c := range out[:3] {
		head[c.Product.Family]++
	}
	assert.Len(t, head, 3, "first k entries must cover k families")
	for family, n := range head {
		assert.Equal(t, 1, n, "family %s overrepresented in head", family)
	}
}

func TestDiversifyPreservesGroupScoreOrder(t *testing.T) {
	d := NewDiversifier(20)

	candidates := []*Candidate{
		familyCandidate("A1", "A", 30),
		familyCandidate("A2", "A", 20),
		familyCandidate("A3", "A", 10),
		familyCandidate("B1", "B", 25),
	}

	out := d.Diversify(candidates)
	require.Len(t, out, 4)
	assert.Equal(t, "A1", out[0].Product.SKU)
	assert.Equal(t, "B1", out[1].Product.SKU)
	assert.Equal(t, "A2", out[2].Product.SKU)
	assert.Equal(t, "A3", out[3].Product.SKU)
}

func TestDiversifyBound(t *testing.T) {
	d := NewDiversifier(3)

	var candidates []*Candidate
	for i := 0; i < 10; i++ {
		candidates = append(candidates, familyCandidate(fmt.Sprintf("S%d", i), fmt.Sprintf("F%d", i%2), 10))
	}

	out := d.Diversify(candidates)
	assert.Len(t, out, 3)
}

func TestDiversifySingleFamilyPassthrough(t *testing.T) {
	d := NewDiversifier(20)

	candidates := []*Candidate{
		familyCandidate("A1", "A", 30),
		familyCandidate("A2", "A", 20),
	}
	out := d.Diversify(candidates)
	require.Len(t, out, 2)
	assert.Equal(t, "A1", out[0].Product.SKU)
	assert.Equal(t, "A2", out[1].Product.SKU)
}

func TestDiversifyUnknownFamilyIsOwnGroup(t *testing.T) {
	d := NewDiversifier(20)

	candidates := []*Candidate{
		familyCandidate("A1", "A", 30),
		familyCandidate("A2", "A", 29),
		familyCandidate("X1", "", 10),
	}

	out := d.Diversify(candidates)
	require.Len(t, out, 3)
	assert.Equal(t, "A1", out[0].Product.SKU)
	assert.Equal(t, "X1", out[1].Product.SKU)
	assert.Equal(t, "A2", out[2].Product.SKU)
}

func TestDiversifyEmpty(t *testing.T) {
	d := NewDiversifier(20)
	assert.Empty(t, d.Diversify(nil))
}
