package budget

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Head/tail split for generic truncation. The head carries more signal than
// the tail, so it keeps the larger share.
const (
	headFraction = 0.65
	tailFraction = 0.25
)

// declarationLine matches structural source lines worth keeping when a file
// body must be dropped: package/import/declaration/signature lines across
// the common languages an agent touches.
var declarationLine = regexp.MustCompile(
	`^\s*(?:package |import |from |func |type |const |var |class |def |interface |struct |enum |public |private |protected |export |module |fn |impl )`)

// sourceExtensions marks file paths whose content gets structure-aware
// truncation.
var sourceExtensions = map[string]bool{
	".go": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".py": true, ".java": true, ".rb": true, ".rs": true, ".c": true,
	".h": true, ".cpp": true, ".cs": true, ".kt": true, ".swift": true,
}

// TruncateToFit truncates text so its estimated token count fits maxTokens.
// Keeps head and tail with an omission marker between them. A non-positive
// limit returns just the marker.
func (m *Monitor) TruncateToFit(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return truncationMarker(len(text))
	}
	if m.EstimateTokens(text) <= maxTokens {
		return text
	}

	// Token estimates are char-driven, so scale the char budget by the
	// ratio of allowed to estimated tokens.
	ratio := float64(maxTokens) / float64(m.EstimateTokens(text))
	charBudget := int(float64(len(text)) * ratio * 0.9)
	if charBudget < 1 {
		charBudget = 1
	}

	return truncateHeadTail(text, charBudget)
}

// TruncateFile truncates file content to maxChars. Source-like files keep
// import/declaration/signature lines and drop bodies with a clear omission
// marker; other content falls back to generic head+tail truncation.
func (m *Monitor) TruncateFile(text string, maxChars int, path string) string {
	if len(text) <= maxChars {
		return text
	}
	if maxChars <= 0 {
		return truncationMarker(len(text))
	}

	if looksLikeSource(path, text) {
		if skeleton := sourceSkeleton(text, path); len(skeleton) <= maxChars {
			return skeleton
		}
	}

	return truncateHeadTail(text, maxChars)
}

// truncateHeadTail keeps the head and tail of text within charBudget with a
// marker recording how much was dropped.
func truncateHeadTail(text string, charBudget int) string {
	headLen := int(float64(charBudget) * headFraction)
	tailLen := int(float64(charBudget) * tailFraction)
	if headLen+tailLen >= len(text) {
		return text
	}

	dropped := len(text) - headLen - tailLen
	return text[:headLen] + truncationMarker(dropped) + text[len(text)-tailLen:]
}

func truncationMarker(droppedChars int) string {
	return fmt.Sprintf("\n\n[... %d characters truncated ...]\n\n", droppedChars)
}

// looksLikeSource decides whether structure-aware truncation applies, by
// file extension first and declaration density as a fallback.
func looksLikeSource(path, text string) bool {
	if sourceExtensions[strings.ToLower(filepath.Ext(path))] {
		return true
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 10 {
		return false
	}

	declarations := 0
	for _, line := range lines {
		if declarationLine.MatchString(line) {
			declarations++
		}
	}
	return declarations*20 >= len(lines) // at least 5% declaration lines
}

// sourceSkeleton keeps structural lines and replaces dropped bodies with one
// marker per omitted run.
func sourceSkeleton(text, path string) string {
	lines := strings.Split(text, "\n")

	var b strings.Builder
	fmt.Fprintf(&b, "// %s (bodies omitted to fit context budget)\n", path)

	omitted := 0
	for _, line := range lines {
		if declarationLine.MatchString(line) || strings.TrimSpace(line) == "" {
			if omitted > 0 {
				fmt.Fprintf(&b, "    // ... %d line(s) omitted ...\n", omitted)
				omitted = 0
			}
			b.WriteString(line)
			b.WriteString("\n")
		} else {
			omitted++
		}
	}
	if omitted > 0 {
		fmt.Fprintf(&b, "    // ... %d line(s) omitted ...\n", omitted)
	}

	return b.String()
}
