package analyzer

import (
	"regexp"
	"strings"
)

// Feature phrase length window. Captures outside this window are noise
// (single words or whole paragraphs swallowed by a greedy match).
const (
	minFeatureLen = 4
	maxFeatureLen = 99
)

// Feature extraction battery. Each template captures one candidate phrase in
// group 1; the union of captures, filtered and deduplicated, is the feature
// set. Feature COUNT drives scoring, not identity.
var featurePatterns = []*regexp.Regexp{
	// Action-verb phrases: "implement user login", "add export button"
	regexp.MustCompile(`(?i)\b(?:add|create|implement|build|develop|design|integrate|support|enable|set ?up|write|generate|expose|provide)\s+((?:[\w'-]+ ){0,6}[\w'-]+)`),
	// "X feature/functionality" phrases
	regexp.MustCompile(`(?i)((?:[\w'-]+ ){0,4}[\w'-]+)\s+(?:feature|functionality|capability|support)\b`),
	// Bulleted / numbered list items
	regexp.MustCompile(`(?m)^\s*(?:[-*•]|\d+[.)])\s+(.+)$`),
	// Obligation phrases: "should persist state", "must validate input"
	regexp.MustCompile(`(?i)\b(?:should|must|needs? to|has to)\s+([^,.;\n]+)`),
}

// listItemSplitter detects comma/and separated enumerations for the
// synthetic multiple-listed-items feature.
var listItemSplitter = regexp.MustCompile(`(?i),|\band\b`)

// stopWords suppresses captures that are connective noise rather than
// requested capabilities.
var stopWords = map[string]bool{
	"it": true, "this": true, "that": true, "them": true, "the": true,
	"a": true, "an": true, "be": true, "able": true, "sure": true,
	"the following": true, "the same": true, "a new": true, "it work": true,
	"this work": true, "the code": true, "the file": true,
}

// extractFeatures runs the regex battery over the requirement text and
// returns the deduplicated feature phrases.
func extractFeatures(text string) []string {
	seen := make(map[string]bool)
	features := make([]string, 0)

	for _, pattern := range featurePatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			phrase := normalizeFeature(match[1])
			if phrase == "" || seen[phrase] {
				continue
			}
			seen[phrase] = true
			features = append(features, phrase)
		}
	}

	// A requirement that enumerates three or more comma/and separated items
	// is broader than any single captured phrase suggests.
	if parts := listItemSplitter.Split(text, -1); countNonEmpty(parts) >= 3 {
		if !seen["multiple-listed-items"] {
			features = append(features, "multiple-listed-items")
		}
	}

	return features
}

// normalizeFeature trims, lowercases, and filters a captured phrase against
// the stop-word list and the length window. Returns "" for rejects.
func normalizeFeature(phrase string) string {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	phrase = strings.Trim(phrase, ".,;:!?")

	if len(phrase) < minFeatureLen || len(phrase) > maxFeatureLen {
		return ""
	}
	if stopWords[phrase] {
		return ""
	}
	return phrase
}

func countNonEmpty(parts []string) int {
	n := 0
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	return n
}
