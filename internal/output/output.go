// Package output renders search results for the terminal. Styling is
// dropped automatically when stdout is not a TTY.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/coatseek/coatseek/internal/catalog"
	"github.com/coatseek/coatseek/internal/search"
)

// Renderer writes search responses to a terminal or pipe.
type Renderer struct {
	w      io.Writer
	styles Styles
	asJSON bool
}

// NewRenderer creates a renderer for w. Color is enabled only when w is
// os.Stdout/os.Stderr attached to a TTY and noColor is unset.
func NewRenderer(w io.Writer, noColor, asJSON bool) *Renderer {
	styles := NoColorStyles()
	if !noColor && isTerminal(w) {
		styles = DefaultStyles()
	}
	return &Renderer{w: w, styles: styles, asJSON: asJSON}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// RenderResponse writes one search response.
func (r *Renderer) RenderResponse(resp *search.Response, answer string) error {
	if r.asJSON {
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if !resp.Success {
		fmt.Fprintln(r.w, r.styles.Error.Render("search failed: ")+resp.Error)
		return nil
	}

	if resp.TotalResults == 0 {
		fmt.Fprintln(r.w, r.styles.Warning.Render("No products matched."))
		r.renderSuggestions(resp.Suggestions)
		if answer != "" {
			fmt.Fprintln(r.w)
			fmt.Fprintln(r.w, answer)
		}
		return nil
	}

	header := fmt.Sprintf("%d result(s)  ·  intent: %s  ·  strategy: %s",
		resp.TotalResults, resp.Intent, resp.StrategyUsed)
	fmt.Fprintln(r.w, r.styles.Header.Render(header))
	fmt.Fprintln(r.w, r.styles.Dim.Render(strings.Repeat("─", len(header))))

	for i, p := range resp.Results {
		r.renderProduct(i+1, p)
	}

	r.renderSuggestions(resp.Suggestions)

	if answer != "" {
		fmt.Fprintln(r.w)
		fmt.Fprintln(r.w, answer)
	}
	return nil
}

func (r *Renderer) renderProduct(rank int, p *catalog.Product) {
	sku := p.SKU
	if sku == "" {
		sku = "(no sku)"
	}
	fmt.Fprintf(r.w, "%2d. %s", rank, r.styles.SKU.Render(sku))

	var parts []string
	for _, f := range []string{catalog.FieldName, catalog.FieldFamily, catalog.FieldType} {
		if v, ok := p.Field(f); ok {
			parts = append(parts, v)
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(r.w, "  %s", r.styles.Label.Render(strings.Join(parts, " · ")))
	}
	fmt.Fprintln(r.w)

	if desc, ok := p.Field(catalog.FieldDescription); ok {
		fmt.Fprintf(r.w, "    %s\n", r.styles.Dim.Render(truncate(desc, 100)))
	}
}

func (r *Renderer) renderSuggestions(suggestions []search.Suggestion) {
	if len(suggestions) == 0 {
		return
	}
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, r.styles.Suggestion.Render("Did you mean:"))
	for _, s := range suggestions {
		fmt.Fprintf(r.w, "  %s %s\n",
			r.styles.SKU.Render(s.SKU),
			r.styles.Dim.Render(fmt.Sprintf("(%.0f%% similar)", s.Similarity*100)))
	}
}

// RenderIngestReport writes an ingest summary line.
func (r *Renderer) RenderIngestReport(loaded, skipped, embedded int, mode string) {
	fmt.Fprintln(r.w, r.styles.Success.Render(
		fmt.Sprintf("Loaded %d products (%s mode, %d embedded, %d rows skipped)",
			loaded, mode, embedded, skipped)))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
