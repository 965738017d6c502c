// Package llmclient composes analysis prompts, calls the Gemini API via
// google.golang.org/genai, and extracts generated source / insight text
// from the response. It implements the small capability interface named
// in the design notes: {generate(prompt, params) -> text}.
package llmclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/sandboxrunner/sandboxrunner/pkg/analysis"
)

// Config configures the client.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-2.0-flash"

// Client wraps a genai.Client with the two capabilities the orchestrator
// needs: program generation and result summarization.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// New constructs a Client. Returns nil (not an error) when no API key is
// configured, matching the pack's convention of a nil-safe disabled
// client rather than forcing every caller through an error check.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}

	return &Client{client: client, model: cfg.Model, timeout: cfg.Timeout}, nil
}

// IsConfigured reports whether the client has a live API key.
func (c *Client) IsConfigured() bool {
	return c != nil && c.client != nil
}

// GenerateProgram composes a code-generation prompt from the query and
// data context (plus an optional analysis-type hint), calls the model
// with low temperature for deterministic code, and extracts the source.
func (c *Client) GenerateProgram(ctx context.Context, query string, dc analysis.DataContext, hint string) (analysis.GeneratedProgram, error) {
	prompt := buildGenerationPrompt(query, dc, hint)

	text, err := c.generate(ctx, prompt, 0.2, 4096)
	if err != nil {
		return analysis.GeneratedProgram{}, fmt.Errorf("generate program: %w", err)
	}

	source := extractCode(text)
	sum := sha256.Sum256([]byte(source))
	return analysis.GeneratedProgram{
		Source:      source,
		Fingerprint: hex.EncodeToString(sum[:]),
	}, nil
}

// SummarizeResult derives natural-language insights from the execution
// outcome. If the program already wrote insights.txt, that text is
// returned unchanged (explicit-over-implicit, per the design notes). The
// summarization call's failure returns a static fallback and is never
// fatal to the caller.
func (c *Client) SummarizeResult(ctx context.Context, query string, outputs map[string]analysis.Artifact, exec analysis.ExecutionResult) string {
	if art, ok := outputs["insights.txt"]; ok {
		return art.Text
	}

	if !c.IsConfigured() {
		return "Could not generate insights from the analysis results."
	}

	prompt := buildSummarizationPrompt(query, outputs, exec)
	text, err := c.generate(ctx, prompt, 0.3, 1024)
	if err != nil {
		return "Could not generate insights from the analysis results."
	}
	return strings.TrimSpace(text)
}

func (c *Client) generate(ctx context.Context, prompt string, temperature float32, maxTokens int32) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("llm client not configured")
	}

	genCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: maxTokens,
	}

	result, err := c.client.Models.GenerateContent(genCtx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from model")
	}

	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("no text in response")
	}
	return text.String(), nil
}

// extractCode strips a single leading and trailing fenced code block
// delimiter (optionally language-tagged), otherwise returns the response
// verbatim, trimmed.
func extractCode(text string) string {
	code := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(code, "```python"):
		code = strings.TrimPrefix(code, "```python")
	case strings.HasPrefix(code, "```"):
		code = strings.TrimPrefix(code, "```")
	}
	code = strings.TrimSpace(code)
	code = strings.TrimSuffix(code, "```")
	return strings.TrimSpace(code)
}
