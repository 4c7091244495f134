// Package answer turns a ranked result set into prose. It consumes the
// search engine's output; it never changes ranking or membership.
package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coatseek/coatseek/internal/catalog"
	"github.com/coatseek/coatseek/internal/search"
)

// Summarizer defaults.
const (
	DefaultModel   = "llama3.2:1b"
	DefaultTimeout = 20 * time.Second
	DefaultHost    = "http://localhost:11434"
	// maxProductsInPrompt bounds the context handed to the model.
	maxProductsInPrompt = 8
)

// Summarizer produces a prose answer for a resolved search.
type Summarizer interface {
	Summarize(ctx context.Context, query string, resp *search.Response) (string, error)
}

// Config configures the Ollama summarizer.
type Config struct {
	Host    string
	Model   string
	Timeout time.Duration
}

// OllamaSummarizer generates answers with a local Ollama model.
type OllamaSummarizer struct {
	client *http.Client
	config Config
}

// NewOllamaSummarizer creates an Ollama-backed summarizer.
func NewOllamaSummarizer(cfg Config) *OllamaSummarizer {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OllamaSummarizer{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Summarize phrases the outcome. A failed search and a legitimate
// no-match read differently: the first apologizes for the outage, the
// second offers the did-you-mean alternatives.
func (s *OllamaSummarizer) Summarize(ctx context.Context, query string, resp *search.Response) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("nil response")
	}

	// Degraded outcomes have fixed phrasings; no model call needed.
	if !resp.Success {
		return "The product search is currently unavailable, so I could not look that up. Please try again shortly.", nil
	}
	if len(resp.Results) == 0 {
		return noMatchAnswer(resp.Suggestions), nil
	}

	prompt := s.buildPrompt(query, resp)
	body, err := json.Marshal(generateRequest{Model: s.config.Model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return "", fmt.Errorf("unexpected status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var result generateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	text := strings.TrimSpace(result.Response)
	if text == "" {
		return "", fmt.Errorf("model returned empty answer")
	}
	return text, nil
}

func (s *OllamaSummarizer) buildPrompt(query string, resp *search.Response) string {
	var b strings.Builder
	b.WriteString("You are a coatings product specialist answering a customer question.\n")
	fmt.Fprintf(&b, "Question: %s\nIntent: %s\n\nMatching products:\n", query, resp.Intent)

	n := len(resp.Results)
	if n > maxProductsInPrompt {
		n = maxProductsInPrompt
	}
	for _, p := range resp.Results[:n] {
		b.WriteString("- ")
		b.WriteString(describeProduct(p))
		b.WriteString("\n")
	}
	if len(resp.Results) > n {
		fmt.Fprintf(&b, "(and %d more)\n", len(resp.Results)-n)
	}

	switch resp.Intent {
	case search.IntentComparison:
		b.WriteString("\nCompare the products, highlighting the differences that matter for the question.")
	case search.IntentCount:
		fmt.Fprintf(&b, "\nState that %d products match and summarize them in one sentence.", resp.TotalResults)
	case search.IntentAnalytical:
		b.WriteString("\nExplain which product fits best and why, in plain language.")
	default:
		b.WriteString("\nAnswer concisely using only the products listed. Do not invent products.")
	}
	return b.String()
}

func describeProduct(p *catalog.Product) string {
	parts := []string{p.SKU}
	for _, f := range []string{catalog.FieldName, catalog.FieldFamily, catalog.FieldType, catalog.FieldDescription} {
		if v, ok := p.Field(f); ok {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " | ")
}

func noMatchAnswer(suggestions []search.Suggestion) string {
	if len(suggestions) == 0 {
		return "No products matched that query. Try a product code or a broader description."
	}
	skus := make([]string, len(suggestions))
	for i, s := range suggestions {
		skus[i] = s.SKU
	}
	return fmt.Sprintf("No exact match found. Did you mean: %s?", strings.Join(skus, ", "))
}

var _ Summarizer = (*OllamaSummarizer)(nil)

// TemplateSummarizer phrases answers without a model, for environments
// where Ollama is absent. Same degraded-outcome phrasings as the Ollama
// summarizer.
type TemplateSummarizer struct{}

// NewTemplateSummarizer creates the deterministic fallback summarizer.
func NewTemplateSummarizer() *TemplateSummarizer { return &TemplateSummarizer{} }

// Summarize renders a fixed-form answer from the result set.
func (TemplateSummarizer) Summarize(_ context.Context, query string, resp *search.Response) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("nil response")
	}
	if !resp.Success {
		return "The product search is currently unavailable, so I could not look that up. Please try again shortly.", nil
	}
	if len(resp.Results) == 0 {
		return noMatchAnswer(resp.Suggestions), nil
	}

	switch resp.Intent {
	case search.IntentCount:
		return fmt.Sprintf("%d products match %q.", resp.TotalResults, query), nil
	default:
		top := describeProduct(resp.Results[0])
		if resp.TotalResults == 1 {
			return fmt.Sprintf("Found 1 product: %s.", top), nil
		}
		return fmt.Sprintf("Found %d products. Best match: %s.", resp.TotalResults, top), nil
	}
}

var _ Summarizer = (*TemplateSummarizer)(nil)
