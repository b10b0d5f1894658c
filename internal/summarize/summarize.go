// Package summarize generates short research summaries of uploaded
// insight documents with the Anthropic API.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 1024

	// maxInputChars caps the document text sent per request.
	maxInputChars = 30000

	systemPrompt = "You are a sell-side research summarizer for an internal " +
		"markets dashboard. Summarize the document in at most five bullet " +
		"points: key calls, changed forecasts and notable risks. Be specific " +
		"about tickers, levels and dates. Do not editorialize."
)

// Summarizer describes anything that can summarize a document.
type Summarizer interface {
	Summarize(ctx context.Context, doc Document) (string, error)
}

// Document is the summarization input.
type Document struct {
	Issuer      string
	Name        string
	PublishedAt string
	Text        string
}

// Claude summarizes documents via the Anthropic Messages API.
type Claude struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	logger    *slog.Logger
}

// NewClaude builds a summarizer. model may be empty to use the default.
func NewClaude(apiKey, model string, logger *slog.Logger) *Claude {
	if model == "" {
		model = defaultModel
	}
	return &Claude{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     anthropic.Model(model),
		maxTokens: defaultMaxTokens,
		logger:    logger.With(slog.String("component", "summarizer")),
	}
}

// Summarize sends the document text and returns the generated summary.
func (c *Claude) Summarize(ctx context.Context, doc Document) (string, error) {
	text := doc.Text
	if len(text) > maxInputChars {
		text = text[:maxInputChars]
	}

	prompt := fmt.Sprintf("Issuer: %s\nTitle: %s\nPublished: %s\n\nDocument content:\n%s",
		doc.Issuer, doc.Name, doc.PublishedAt, text)

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("empty summary response")
	}

	c.logger.InfoContext(ctx, "summary generated",
		slog.String("issuer", doc.Issuer),
		slog.String("name", doc.Name),
		slog.Int("input_chars", len(text)),
		slog.Int("output_chars", out.Len()))

	return out.String(), nil
}
