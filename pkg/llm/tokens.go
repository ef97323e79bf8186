package llm

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter estimates prompt sizes with the GPT-4 encoding. Local models tokenize
// differently; the count is an approximation used only to keep prompts under the
// configured context length.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a counter backed by the cl100k encoding.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &TokenCounter{codec: codec}, nil
}

// Count returns the number of tokens in text.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.codec == nil {
		// 4 chars ≈ 1 token
		return len(text) / 4
	}

	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// TruncateToLimit shortens text to at most limit tokens. It cuts by characters in
// proportion to the overshoot, then trims further until the count fits. Runes are never split.
func (tc *TokenCounter) TruncateToLimit(text string, limit int) string {
	current := tc.Count(text)
	if current <= limit {
		return text
	}

	ratio := float64(limit) / float64(current)
	runes := []rune(text)
	charLimit := int(float64(len(runes)) * ratio * 0.9)
	if charLimit >= len(runes) {
		return text
	}
	for charLimit > 0 && tc.Count(string(runes[:charLimit])) > limit {
		charLimit = charLimit * 9 / 10
	}
	if charLimit < 0 {
		charLimit = 0
	}
	return string(runes[:charLimit])
}
