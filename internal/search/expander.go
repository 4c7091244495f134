package search

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultMaxExpansionTerms bounds expander output to limit downstream
// query fan-out.
const DefaultMaxExpansionTerms = 40

// TermExpander expands a free-text query into a deduplicated, ordered
// term set: detected technical phrases first, then significant words,
// then synonyms and naive plural variants. Longer, more specific terms
// come first because the scorer rewards earlier matches.
type TermExpander struct {
	synonyms map[string][]string
	phrases  []string
	maxTerms int
}

// TermExpanderOption configures the expander.
type TermExpanderOption func(*TermExpander)

// WithMaxTerms caps the number of expansion terms.
func WithMaxTerms(n int) TermExpanderOption {
	return func(e *TermExpander) {
		if n > 0 {
			e.maxTerms = n
		}
	}
}

// WithExtraSynonyms merges additional synonym mappings.
func WithExtraSynonyms(synonyms map[string][]string) TermExpanderOption {
	return func(e *TermExpander) {
		for k, v := range synonyms {
			e.synonyms[k] = append(e.synonyms[k], v...)
		}
	}
}

// NewTermExpander creates an expander with the domain vocabulary.
func NewTermExpander(opts ...TermExpanderOption) *TermExpander {
	e := &TermExpander{
		synonyms: make(map[string][]string, len(DomainSynonyms)),
		maxTerms: DefaultMaxExpansionTerms,
	}
	for k, v := range DomainSynonyms {
		e.synonyms[k] = v
	}

	// Longest phrase first so "two component epoxy" beats "epoxy".
	e.phrases = make([]string, len(technicalPhrases))
	copy(e.phrases, technicalPhrases)
	sort.Slice(e.phrases, func(i, j int) bool {
		return len(e.phrases[i]) > len(e.phrases[j])
	})

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand returns the ordered expansion term set for a query.
func (e *TermExpander) Expand(query string) []string {
	normalized := normalizeForExpansion(query)
	if normalized == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var terms []string
	add := func(term string) {
		term = strings.TrimSpace(term)
		if term == "" {
			return
		}
		if _, dup := seen[term]; dup {
			return
		}
		if len(terms) >= e.maxTerms {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}

	// Phrases first; matched spans are blanked so their words are not
	// re-extracted individually.
	remaining := normalized
	for _, phrase := range e.phrases {
		if !strings.Contains(remaining, phrase) {
			continue
		}
		add(phrase)
		for _, syn := range e.synonyms[phrase] {
			add(strings.ToLower(syn))
		}
		remaining = strings.ReplaceAll(remaining, phrase, " ")
	}

	// Remaining significant words.
	words := strings.Fields(remaining)
	for _, word := range words {
		if len(word) <= 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		add(word)
	}

	// Synonyms, then plural variants for words with no synonym entry.
	for _, word := range words {
		if len(word) <= 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if syns, ok := e.synonyms[word]; ok {
			for _, syn := range syns {
				add(strings.ToLower(syn))
			}
		} else {
			for _, variant := range pluralVariants(word) {
				add(variant)
			}
		}
	}

	return terms
}

// normalizeForExpansion lowercases and collapses punctuation to spaces,
// keeping letters, digits and intra-word hyphens.
func normalizeForExpansion(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	for _, r := range strings.ToLower(query) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// pluralVariants returns naive singular/plural forms of a word.
func pluralVariants(word string) []string {
	switch {
	case strings.HasSuffix(word, "ies"):
		return []string{word[:len(word)-3] + "y"}
	case strings.HasSuffix(word, "es") && len(word) > 4:
		return []string{word[:len(word)-2], word[:len(word)-1]}
	case strings.HasSuffix(word, "s"):
		return []string{word[:len(word)-1]}
	default:
		return []string{word + "s"}
	}
}
