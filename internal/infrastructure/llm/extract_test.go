package llm

import (
	"errors"
	"testing"
)

func TestExtractPayload(t *testing.T) {
	t.Parallel()

	type payload struct {
		Score int `json:"score"`
	}

	cases := []struct {
		name    string
		raw     string
		want    int
		wantErr error
	}{
		{
			name: "bare object",
			raw:  `{"score": 85}`,
			want: 85,
		},
		{
			name: "fenced object",
			raw:  "```json\n{\"score\": 85}\n```",
			want: 85,
		},
		{
			name: "fence without language tag",
			raw:  "```\n{\"score\": 12}\n```",
			want: 12,
		},
		{
			name: "prose around object",
			raw:  "Sure! Based on the abstract, here is my grade: {\"score\": 61}. Hope that helps.",
			want: 61,
		},
		{
			name: "valid object nested in invalid one",
			raw:  `{grade: {"score": 7}}`,
			want: 7,
		},
		{
			name: "braces inside strings are not structure",
			raw:  `{"note": "uses {braces}", "score": 33}`,
			want: 33,
		},
		{
			name:    "no json at all",
			raw:     "I would rate this paper 85 out of 100.",
			wantErr: ErrNoPayload,
		},
		{
			name:    "empty response",
			raw:     "",
			wantErr: ErrNoPayload,
		},
		{
			name:    "unterminated object",
			raw:     `{"score": 85`,
			wantErr: ErrNoPayload,
		},
		{
			name:    "balanced but invalid json",
			raw:     `{score: 90}`,
			wantErr: ErrMalformedPayload,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var got payload
			err := ExtractPayload(tc.raw, &got)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("ExtractPayload(%q) err = %v, want %v", tc.raw, err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractPayload(%q): %v", tc.raw, err)
			}
			if got.Score != tc.want {
				t.Errorf("score = %d, want %d", got.Score, tc.want)
			}
		})
	}
}

func TestParseScore(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		raw     string
		want    int
		wantErr error
	}{
		{name: "in range", raw: `{"score": 73}`, want: 73},
		{name: "decimal truncates", raw: `{"score": 87.6}`, want: 87},
		{name: "above range clamps", raw: `{"score": 150}`, want: 100},
		{name: "below range clamps", raw: `{"score": -3}`, want: 0},
		{name: "absurd magnitude rejected", raw: `{"score": 1e15}`, wantErr: ErrValueOutOfRange},
		{name: "quoted number tolerated", raw: `{"score": "85"}`, want: 85},
		{name: "missing field", raw: `{"grade": 80}`, wantErr: ErrMalformedPayload},
		{name: "quoted prose", raw: `{"score": "high"}`, wantErr: ErrMalformedPayload},
		{name: "non numeric", raw: `{"score": true}`, wantErr: ErrMalformedPayload},
		{name: "prose only", raw: `eighty five`, wantErr: ErrNoPayload},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseScore(tc.raw)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("parseScore(%q) err = %v, want %v", tc.raw, err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseScore(%q): %v", tc.raw, err)
			}
			if got != tc.want {
				t.Errorf("parseScore(%q) = %d, want %d", tc.raw, got, tc.want)
			}
		})
	}
}
