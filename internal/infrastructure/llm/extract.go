package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// Extraction failures are classified so callers can tell a response that
// contained no JSON at all from one whose JSON was unusable.
var (
	ErrNoPayload        = errors.New("llm: no JSON payload in response")
	ErrMalformedPayload = errors.New("llm: malformed JSON payload")
	ErrValueOutOfRange  = errors.New("llm: payload value out of range")
)

// ExtractPayload locates the first JSON object in raw model output that
// decodes into dst. Markdown code fences and surrounding prose are tolerated.
func ExtractPayload(raw string, dst any) error {
	text := stripFences(raw)

	balanced := false
	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}
		end, ok := balancedEnd(text, start)
		if !ok {
			continue
		}
		balanced = true
		if err := json.Unmarshal([]byte(text[start:end]), dst); err == nil {
			return nil
		}
	}

	if balanced {
		return ErrMalformedPayload
	}
	return ErrNoPayload
}

// stripFences removes a markdown code fence wrapping the whole response,
// including an optional language tag on the opening fence.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// balancedEnd returns the index just past the brace matching s[start],
// skipping braces inside JSON string literals.
func balancedEnd(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}
