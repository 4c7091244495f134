package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCodePatterns(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
		wantPat  CodePattern
		series   bool
	}{
		{
			name:     "separated by space",
			query:    "datasheet for CA 8100 please",
			wantCode: "CA8100",
			wantPat:  PatternSeparated,
		},
		{
			name:     "separated by hyphen",
			query:    "CA-8100",
			wantCode: "CA8100",
			wantPat:  PatternSeparated,
		},
		{
			name:     "separated by underscore",
			query:    "is GN_4500 in stock",
			wantCode: "GN4500",
			wantPat:  PatternSeparated,
		},
		{
			name:     "digit letter digit",
			query:    "need 54GN098 for the job",
			wantCode: "54GN098",
			wantPat:  PatternDigitLetter,
		},
		{
			name:     "letter digit letter digit",
			query:    "B50W101 coverage",
			wantCode: "B50W101",
			wantPat:  PatternLetterDigit,
		},
		{
			name:     "single letter hyphen digits",
			query:    "price of C-2000",
			wantCode: "C2000",
			wantPat:  PatternLetterHyphen,
		},
		{
			name:     "bare prefix",
			query:    "CA8100",
			wantCode: "CA8100",
			wantPat:  PatternBarePrefix,
		},
		{
			name:     "bare prefix lower case",
			query:    "what about ca8100",
			wantCode: "CA8100",
			wantPat:  PatternBarePrefix,
		},
		{
			name:     "series form",
			query:    "8000 series gloss",
			wantCode: "8000",
			wantPat:  PatternSeries,
			series:   true,
		},
		{
			name:     "bare digit run",
			query:    "8000",
			wantCode: "8000",
			wantPat:  PatternSeries,
			series:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeCode(tt.query)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantPat, got.Pattern)
			assert.Equal(t, tt.series, got.IsSeries)
		})
	}
}

func TestNormalizeCodeNoMatch(t *testing.T) {
	queries := []string{
		"",
		"   ",
		"epoxy primer for steel",
		"best paint for wood",
		"top 10 primers",
		"show all marine coatings",
	}
	for _, q := range queries {
		assert.Nil(t, NormalizeCode(q), "query %q should yield no code", q)
	}
}

func TestNormalizeCodeIdempotent(t *testing.T) {
	queries := []string{
		"CA 8100",
		"ca-8100",
		"54GN098",
		"B50W101",
		"C-2000",
		"CA8100",
		"8000 series",
	}
	for _, q := range queries {
		first := NormalizeCode(q)
		require.NotNil(t, first, "query %q", q)
		second := NormalizeCode(first.Code)
		require.NotNil(t, second, "canonical %q from %q", first.Code, q)
		assert.Equal(t, first.Code, second.Code, "query %q", q)
	}
}

func TestNormalizeCodeAfterRejectedPrefix(t *testing.T) {
	// A rejected English-word match earlier in the query must not hide a
	// genuine code later in the same query.
	tests := []struct {
		query    string
		wantCode string
		wantPat  CodePattern
	}{
		{"top 10 of CA 8100", "CA8100", PatternSeparated},
		{"show 20 results for GN-4500", "GN4500", PatternSeparated},
		{"all42 units of ca8100", "CA8100", PatternBarePrefix},
	}
	for _, tt := range tests {
		got := NormalizeCode(tt.query)
		require.NotNil(t, got, "query %q", tt.query)
		assert.Equal(t, tt.wantCode, got.Code, "query %q", tt.query)
		assert.Equal(t, tt.wantPat, got.Pattern, "query %q", tt.query)
	}
}

func TestNormalizeCodeMostSpecificWins(t *testing.T) {
	// Separator form outranks the bare embedded code.
	got := NormalizeCode("compare CA 8100 with CA8199")
	require.NotNil(t, got)
	assert.Equal(t, "CA8100", got.Code)
	assert.Equal(t, PatternSeparated, got.Pattern)
}
