package llm

import (
	"context"
	"fmt"
	"strings"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

const (
	summaryMaxTokens   = 600
	summaryTemperature = 0.2
)

// Summarizer produces structured reader-facing summaries.
type Summarizer struct {
	client   *Client
	language string
}

var _ ports.SummaryOracle = (*Summarizer)(nil)

// NewSummarizer builds a summary oracle writing in the given language.
func NewSummarizer(client *Client, language string) *Summarizer {
	if language == "" {
		language = "English"
	}
	return &Summarizer{client: client, language: language}
}

// Summarize asks the model for the five digest fields.
func (s *Summarizer) Summarize(ctx context.Context, article domain.Article) (domain.Summary, error) {
	raw, err := s.client.Complete(ctx, s.prompt(article), summaryMaxTokens, summaryTemperature)
	if err != nil {
		return domain.Summary{}, err
	}

	var summary domain.Summary
	if err := ExtractPayload(raw, &summary); err != nil {
		return domain.Summary{}, err
	}
	if summary.Empty() {
		return domain.Summary{}, fmt.Errorf("%w: all summary fields empty", ErrMalformedPayload)
	}
	return summary, nil
}

func (s *Summarizer) prompt(article domain.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize this paper in %s for a daily research digest.\n\n", s.language)
	fmt.Fprintf(&b, "Title: %s\n", article.Title)
	if article.Journal != "" {
		fmt.Fprintf(&b, "Journal: %s\n", article.Journal)
	}
	if article.Abstract != "" {
		fmt.Fprintf(&b, "Abstract: %s\n", article.Abstract)
	}
	b.WriteString("\nAnswer with JSON only, using exactly these keys:\n")
	b.WriteString(`{"localized_title": "the title, translated if needed", `)
	b.WriteString(`"tool_type": "what kind of tool, method, or resource this is", `)
	b.WriteString(`"design": "how the approach works", `)
	b.WriteString(`"functions": "what it can do", `)
	b.WriteString(`"key_results": "main findings, with numbers when reported"}`)
	return b.String()
}
