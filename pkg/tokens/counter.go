// Package tokens provides tiktoken-based token counting with a character
// heuristic fallback.
package tokens

import (
	"fmt"
	"math"
	"unicode"

	"github.com/tiktoken-go/tokenizer"
)

// Heuristic chars-per-token divisors. Token-dense code-like text costs more
// tokens per character than prose or whitespace. These are empirical and
// uncalibrated against any real tokenizer; treat them as tuning knobs.
const (
	DenseCharsPerToken = 3.5
	ProseCharsPerToken = 4.8
)

// Counter provides token counting for requirement text and conversation
// content. When a tiktoken codec is available it is used; otherwise the
// blended character heuristic applies.
type Counter struct {
	codec        tokenizer.Codec
	denseDivisor float64
	proseDivisor float64
}

// NewCounter creates a counter backed by the GPT-4 tiktoken encoding. Claude
// tokenization is similar enough that the same encoding is used as an
// approximation for all models.
func NewCounter() (*Counter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &Counter{
		codec:        codec,
		denseDivisor: DenseCharsPerToken,
		proseDivisor: ProseCharsPerToken,
	}, nil
}

// NewHeuristicCounter creates a counter that only uses the character
// heuristic. Divisors of zero fall back to the package defaults.
func NewHeuristicCounter(denseDivisor, proseDivisor float64) *Counter {
	if denseDivisor <= 0 {
		denseDivisor = DenseCharsPerToken
	}
	if proseDivisor <= 0 {
		proseDivisor = ProseCharsPerToken
	}
	return &Counter{denseDivisor: denseDivisor, proseDivisor: proseDivisor}
}

// Count returns the number of tokens in the given text.
func (c *Counter) Count(text string) int {
	if c.codec == nil {
		return c.Estimate(text)
	}

	count, err := c.codec.Count(text)
	if err != nil {
		// Fallback to character-based estimation on error
		return c.Estimate(text)
	}
	return count
}

// Estimate returns the heuristic token count: non-whitespace characters are
// charged at the dense divisor, whitespace at the prose divisor, so code-like
// text (high non-whitespace ratio) estimates higher than prose of the same
// length.
func (c *Counter) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}

	nonWS := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			nonWS++
		}
	}
	ws := len([]rune(text)) - nonWS

	est := float64(nonWS)/c.denseDivisor + float64(ws)/c.proseDivisor
	return int(math.Ceil(est))
}

// WithinLimit checks if text fits within the specified token limit.
func (c *Counter) WithinLimit(text string, limit int) bool {
	return c.Count(text) <= limit
}

// TruncateToLimit truncates text to fit within the specified token limit.
// This is a rough approximation - it truncates by characters, not perfect
// token boundaries.
func (c *Counter) TruncateToLimit(text string, limit int) string {
	currentTokens := c.Count(text)
	if currentTokens <= limit {
		return text
	}

	ratio := float64(limit) / float64(currentTokens)
	charLimit := int(float64(len(text)) * ratio * 0.9) // 0.9 safety margin

	if charLimit >= len(text) {
		return text
	}
	if charLimit < 0 {
		charLimit = 0
	}

	return text[:charLimit] + "..."
}

// EstimateSimple provides a token estimate without a Counter instance, using
// the default heuristic divisors.
func EstimateSimple(text string) int {
	return NewHeuristicCounter(0, 0).Estimate(text)
}
