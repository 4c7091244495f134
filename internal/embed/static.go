package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// StaticEmbedder produces deterministic embeddings from token and
// character n-gram hashes. It needs no external service, so searches keep
// working when Ollama is down, at reduced semantic quality. Identical text
// always yields an identical vector.
type StaticEmbedder struct {
	dims int
}

// NewStaticEmbedder creates a hash-based embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{dims: StaticDimensions}
}

// Embed generates a deterministic embedding for text.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)

	tokens := tokenize(text)
	for _, tok := range tokens {
		addFeature(vec, tok, 1.0)
		// Character trigrams give partial-token overlap a signal, so
		// "polyurethane" and "polyurethanes" land near each other.
		for _, gram := range ngrams(tok, 3) {
			addFeature(vec, gram, 0.5)
		}
	}

	// Token bigrams capture a little word order.
	for i := 0; i+1 < len(tokens); i++ {
		addFeature(vec, tokens[i]+" "+tokens[i+1], 0.75)
	}

	return normalizeVector(vec), nil
}

// EmbedBatch embeds each text independently.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string { return "static-hash-v1" }

// Available always reports true; the static embedder has no dependencies.
func (e *StaticEmbedder) Available(context.Context) bool { return true }

// Close is a no-op.
func (e *StaticEmbedder) Close() error { return nil }

// addFeature hashes a feature into two vector positions with opposite
// signs derived from the hash, which keeps the vector roughly zero-mean.
func addFeature(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	idx1 := int(sum % uint64(len(vec)))
	idx2 := int((sum >> 16) % uint64(len(vec)))
	sign := float32(1.0)
	if sum&1 == 1 {
		sign = -1.0
	}
	vec[idx1] += weight * sign
	vec[idx2] += weight * sign * 0.5
}

// tokenize lowercases and splits on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ngrams returns character n-grams of s, or nil if s is shorter than n.
func ngrams(s string, n int) []string {
	runes := []rune(s)
	if len(runes) < n {
		return nil
	}
	grams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+n]))
	}
	return grams
}

// CosineSimilarity computes the cosine similarity of two equal-length
// vectors. Returns 0 for mismatched or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ Embedder = (*StaticEmbedder)(nil)
