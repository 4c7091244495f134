package search

import (
	"regexp"
	"strings"
)

// Code recognizers, tried in priority order: the most specific form wins
// and at most one code is extracted per query.
var (
	// "CA 8100", "CA-8100", "CA_8100", "CA/8100"
	reSeparatedCode = regexp.MustCompile(`(?i)\b([A-Z]{2,4})[ \t\-_./]+(\d{2,6}[A-Z]?\d*)\b`)
	// "54GN098": digits, letters, digits
	reDigitLetterCode = regexp.MustCompile(`(?i)\b(\d{1,3}[A-Z]{1,3}\d{1,4})\b`)
	// "B50W101": letter, digits, letter, digits
	reLetterDigitCode = regexp.MustCompile(`(?i)\b([A-Z]\d{1,3}[A-Z]\d{1,4})\b`)
	// "C-2000": single letter, hyphen, digits
	reLetterHyphenCode = regexp.MustCompile(`(?i)\b([A-Z])-(\d{2,6})\b`)
	// "CA8100": bare letter prefix plus digits
	reBarePrefixCode = regexp.MustCompile(`(?i)\b([A-Z]{1,4}\d{2,6}[A-Z]?\d*)\b`)
	// "8000 series", "8000 series gloss"
	reSeriesCode = regexp.MustCompile(`(?i)\b(\d{3,5})[ \t]+series\b`)
	// a query that is nothing but a short digit run, as after series
	// canonicalization
	reBareDigits = regexp.MustCompile(`^[ \t]*(\d{3,5})[ \t]*$`)
)

// codeSeparators are stripped when canonicalizing a matched code.
var codeSeparators = strings.NewReplacer(" ", "", "\t", "", "-", "", "_", "", ".", "", "/", "")

// nonCodePrefixes are English words that would otherwise false-positive as
// a code prefix in phrases like "top 10 primers".
var nonCodePrefixes = map[string]struct{}{
	"a": {}, "all": {}, "any": {}, "best": {}, "for": {}, "in": {},
	"list": {}, "of": {}, "over": {}, "show": {}, "the": {}, "to": {},
	"top": {}, "type": {}, "under": {}, "with": {},
}

// NormalizeCode extracts at most one product-code-like token from the
// query and canonicalizes it: upper-case, separators stripped. Pure and
// idempotent: re-feeding a canonical code yields the same code.
func NormalizeCode(query string) *NormalizedCode {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	// A rejected prefix ("top 10") must not shadow a genuine code later
	// in the same query, so all matches are considered.
	for _, m := range reSeparatedCode.FindAllStringSubmatch(query, -1) {
		if _, skip := nonCodePrefixes[strings.ToLower(m[1])]; !skip {
			return canonicalCode(m[0], PatternSeparated, false)
		}
	}
	if m := reDigitLetterCode.FindStringSubmatch(query); m != nil {
		return canonicalCode(m[1], PatternDigitLetter, false)
	}
	if m := reLetterDigitCode.FindStringSubmatch(query); m != nil {
		return canonicalCode(m[1], PatternLetterDigit, false)
	}
	if m := reLetterHyphenCode.FindStringSubmatch(query); m != nil {
		return canonicalCode(m[0], PatternLetterHyphen, false)
	}
	for _, m := range reBarePrefixCode.FindAllStringSubmatch(query, -1) {
		if _, skip := nonCodePrefixes[strings.ToLower(letterPrefix(m[1]))]; !skip {
			return canonicalCode(m[1], PatternBarePrefix, false)
		}
	}
	if m := reSeriesCode.FindStringSubmatch(query); m != nil {
		return canonicalCode(m[1], PatternSeries, true)
	}
	if m := reBareDigits.FindStringSubmatch(query); m != nil {
		return canonicalCode(m[1], PatternSeries, true)
	}

	return nil
}

func canonicalCode(raw string, pattern CodePattern, series bool) *NormalizedCode {
	return &NormalizedCode{
		Code:     strings.ToUpper(codeSeparators.Replace(raw)),
		Raw:      raw,
		Pattern:  pattern,
		IsSeries: series,
	}
}

// letterPrefix returns the leading letter run of s.
func letterPrefix(s string) string {
	for i, r := range s {
		if r >= '0' && r <= '9' {
			return s[:i]
		}
	}
	return s
}
