package budget

import (
	"fmt"
	"strings"
)

// Turn is one conversation turn in the caller's agent loop.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Summarization limits. Older turns collapse into one synthetic system turn
// holding extracted key sentences, so multi-turn context stays within budget
// without losing directional information.
const (
	maxKeySentencesPerTurn = 3
	maxKeySentenceLen      = 160
)

// Sentence markers that indicate a decision, obligation, question, or
// failure worth preserving when a turn is condensed.
var keyMarkers = []string{
	"decid", "will ", "must", "should", "chose", "plan", "next",
	"error", "fail", "cannot", "blocked", "?",
}

// SummarizeConversation collapses all but the most recent keepRecent turns
// into a single synthetic system turn. With keepRecent at or above the turn
// count the input is returned unchanged (as a copy).
func (m *Monitor) SummarizeConversation(turns []Turn, keepRecent int) []Turn {
	if keepRecent < 0 {
		keepRecent = 0
	}
	if len(turns) <= keepRecent {
		return append([]Turn{}, turns...)
	}

	older := turns[:len(turns)-keepRecent]
	recent := turns[len(turns)-keepRecent:]

	var b strings.Builder
	b.WriteString("Condensed earlier conversation:\n")
	for i := range older {
		for _, sentence := range keySentences(older[i].Content) {
			fmt.Fprintf(&b, "- [%s] %s\n", older[i].Role, sentence)
		}
	}

	result := make([]Turn, 0, keepRecent+1)
	result = append(result, Turn{Role: "system", Content: strings.TrimRight(b.String(), "\n")})
	result = append(result, recent...)
	return result
}

// keySentences extracts up to maxKeySentencesPerTurn sentences containing a
// key marker, each truncated. Falls back to the turn's first sentence when
// nothing matches, so no turn vanishes entirely.
func keySentences(content string) []string {
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return nil
	}

	var picked []string
	for _, s := range sentences {
		lower := strings.ToLower(s)
		for _, marker := range keyMarkers {
			if strings.Contains(lower, marker) {
				picked = append(picked, truncateSentence(s))
				break
			}
		}
		if len(picked) >= maxKeySentencesPerTurn {
			break
		}
	}

	if len(picked) == 0 {
		picked = append(picked, truncateSentence(sentences[0]))
	}
	return picked
}

func splitSentences(content string) []string {
	raw := strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '\n'
	})

	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// truncateSentence cuts on rune boundaries so multi-byte characters are never
// split mid-sequence.
func truncateSentence(s string) string {
	if len(s) <= maxKeySentenceLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxKeySentenceLen {
		return s
	}
	return string(runes[:maxKeySentenceLen]) + "..."
}
