package tokens

import (
	"strings"
	"testing"
)

func TestEstimateEmpty(t *testing.T) {
	c := NewHeuristicCounter(0, 0)
	if got := c.Estimate(""); got != 0 {
		t.Errorf("empty text should estimate 0 tokens, got %d", got)
	}
}

func TestEstimateGrowsWithLength(t *testing.T) {
	c := NewHeuristicCounter(0, 0)
	prev := 0
	for n := 1; n <= 8; n++ {
		got := c.Estimate(strings.Repeat("some words in a row ", n))
		if got <= prev {
			t.Errorf("estimate did not grow: %d then %d at n=%d", prev, got, n)
		}
		prev = got
	}
}

func TestEstimateDenseCostsMore(t *testing.T) {
	c := NewHeuristicCounter(0, 0)

	// Same length, different whitespace ratio. Code-like text has almost no
	// whitespace and must estimate higher.
	dense := strings.Repeat("x", 480)
	prose := strings.Repeat("word and an ", 40) // 480 chars with spaces

	if c.Estimate(dense) <= c.Estimate(prose) {
		t.Errorf("dense %d should exceed prose %d", c.Estimate(dense), c.Estimate(prose))
	}
}

func TestNewCounterUsesCodec(t *testing.T) {
	c, err := NewCounter()
	if err != nil {
		t.Fatalf("NewCounter: %v", err)
	}

	// cl100k encodes "hello world" as exactly two tokens; the character
	// heuristic charges more. A codec-backed counter must return the codec
	// count, not the estimate.
	if got := c.Count("hello world"); got != 2 {
		t.Errorf("codec count of \"hello world\" = %d, want 2", got)
	}
	if c.Count("hello world") >= c.Estimate("hello world") {
		t.Errorf("codec count %d should undercut heuristic estimate %d for short prose",
			c.Count("hello world"), c.Estimate("hello world"))
	}
}

func TestCountFallsBackWithoutCodec(t *testing.T) {
	c := NewHeuristicCounter(4, 4)
	text := "twelve chars"
	if got := c.Count(text); got != 3 {
		t.Errorf("heuristic count of %q with divisor 4 = %d, want 3", text, got)
	}
}

func TestWithinLimit(t *testing.T) {
	c := NewHeuristicCounter(4, 4)
	if !c.WithinLimit("abcd", 1) {
		t.Error("4 chars at divisor 4 is exactly 1 token")
	}
	if c.WithinLimit("abcdefgh", 1) {
		t.Error("8 chars at divisor 4 is 2 tokens")
	}
}

func TestTruncateToLimit(t *testing.T) {
	c := NewHeuristicCounter(0, 0)
	text := strings.Repeat("some sentence about nothing in particular ", 200)

	got := c.TruncateToLimit(text, 50)
	if len(got) >= len(text) {
		t.Errorf("truncation did not shrink the text: %d -> %d", len(text), len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated text must end with ellipsis")
	}
	if c.Estimate(got) > 60 {
		t.Errorf("truncated estimate %d well above the 50 token limit", c.Estimate(got))
	}

	if got := c.TruncateToLimit("short", 100); got != "short" {
		t.Errorf("text under the limit must pass through, got %q", got)
	}
}

func TestEstimateSimple(t *testing.T) {
	if got := EstimateSimple("plain text with several words"); got <= 0 {
		t.Errorf("expected positive estimate, got %d", got)
	}
}
