package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

const (
	scoreMaxTokens   = 64
	scoreTemperature = 0
	maxScore         = 100
)

// Scorer grades article relevance against a research profile.
type Scorer struct {
	client  *Client
	profile string
}

var _ ports.RelevanceOracle = (*Scorer)(nil)

// NewScorer builds a relevance oracle for the given research profile.
func NewScorer(client *Client, profile string) *Scorer {
	return &Scorer{client: client, profile: profile}
}

// Score asks the model for a 0-100 relevance grade.
func (s *Scorer) Score(ctx context.Context, article domain.Article) (int, error) {
	raw, err := s.client.Complete(ctx, s.prompt(article), scoreMaxTokens, scoreTemperature)
	if err != nil {
		return 0, err
	}
	return parseScore(raw)
}

func (s *Scorer) prompt(article domain.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are screening scientific papers for a digest focused on %s.\n\n", s.profile)
	b.WriteString("Grade how relevant this paper is on a 0-100 scale:\n")
	b.WriteString("- 80-100: squarely on topic, a practitioner should read it\n")
	b.WriteString("- 40-79: related or partially relevant\n")
	b.WriteString("- 0-39: off topic\n")
	b.WriteString("Add 5-15 points when the venue is a well-known, reputable journal.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", article.Title)
	if article.Journal != "" {
		fmt.Fprintf(&b, "Journal: %s\n", article.Journal)
	}
	if article.Abstract != "" {
		fmt.Fprintf(&b, "Abstract: %s\n", article.Abstract)
	}
	b.WriteString("\nAnswer with JSON only, exactly: {\"score\": <integer>}")
	return b.String()
}

// parseScore extracts the score field and clamps it to [0, 100]. Values too
// large to be a plausible grade at all are rejected rather than clamped.
func parseScore(raw string) (int, error) {
	var payload struct {
		Score json.Number `json:"score"`
	}
	if err := ExtractPayload(raw, &payload); err != nil {
		return 0, err
	}
	if payload.Score == "" {
		return 0, fmt.Errorf("%w: missing score field", ErrMalformedPayload)
	}

	value, err := payload.Score.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: score %q is not numeric", ErrMalformedPayload, payload.Score)
	}
	if math.IsNaN(value) || math.Abs(value) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: score %s", ErrValueOutOfRange, payload.Score)
	}

	score := int(value)
	if score < 0 {
		return 0, nil
	}
	if score > maxScore {
		return maxScore, nil
	}
	return score, nil
}
