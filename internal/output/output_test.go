package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coatseek/coatseek/internal/catalog"
	"github.com/coatseek/coatseek/internal/search"
)

func sampleResponse() *search.Response {
	return &search.Response{
		Success: true,
		Intent:  search.IntentLookup,
		Results: []*catalog.Product{
			{SKU: "CA 8100", Name: "Ceracron Epoxy Primer", Family: "Ceracron", Description: "Two-component epoxy primer"},
		},
		TotalResults: 1,
		StrategyUsed: search.StrategyExactCode,
	}
}

func TestRenderPlainText(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true, false)

	require.NoError(t, r.RenderResponse(sampleResponse(), ""))
	out := buf.String()
	assert.Contains(t, out, "CA 8100")
	assert.Contains(t, out, "exact-code")
	assert.Contains(t, out, "Two-component epoxy primer")
	// Not a TTY: no escape sequences.
	assert.NotContains(t, out, "\x1b[")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true, true)

	require.NoError(t, r.RenderResponse(sampleResponse(), ""))

	var decoded search.Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.True(t, decoded.Success)
	assert.Equal(t, 1, decoded.TotalResults)
}

func TestRenderSuggestions(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true, false)

	resp := &search.Response{
		Success:      true,
		Intent:       search.IntentLookup,
		Results:      []*catalog.Product{},
		StrategyUsed: search.StrategyFuzzy,
		Suggestions: []search.Suggestion{
			{SKU: "CA8199", Similarity: 0.83, IsSuggestion: true},
		},
	}
	require.NoError(t, r.RenderResponse(resp, ""))
	out := buf.String()
	assert.Contains(t, out, "Did you mean")
	assert.Contains(t, out, "CA8199")
	assert.Contains(t, out, "83% similar")
}

func TestRenderFailure(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true, false)

	resp := &search.Response{Success: false, Error: "[ERR_302_UPSTREAM_UNAVAILABLE] catalog: down"}
	require.NoError(t, r.RenderResponse(resp, ""))
	assert.Contains(t, buf.String(), "search failed")
}

func TestRenderAnswerAppended(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true, false)

	require.NoError(t, r.RenderResponse(sampleResponse(), "CA 8100 is an epoxy primer."))
	assert.Contains(t, buf.String(), "CA 8100 is an epoxy primer.")
}
