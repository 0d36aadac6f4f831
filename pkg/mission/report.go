package mission

import (
	"fmt"
	"strings"

	"missionctl/pkg/proto"
)

const requirementExcerptLen = 200

// renderReport builds the human-readable progress report for a mission.
// Markdown-ish plain text, suitable for a terminal or a chat surface.
func renderReport(state *proto.PhaseExecutionState, b proto.ContextBudget) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Mission %s\n\n", state.TaskID)
	fmt.Fprintf(&sb, "Mode: %s\nState: %s\n", state.Mode, state.State)
	fmt.Fprintf(&sb, "Requirement: %s\n\n", excerpt(state.Requirement, requirementExcerptLen))

	if state.Score != nil {
		fmt.Fprintf(&sb, "Complexity: %s (score %d/100), recommendation %s\n",
			state.Score.Level, state.Score.Score, state.Score.Recommendation)
		fmt.Fprintf(&sb, "Estimated tokens: %d\n\n", state.Score.EstimatedTokens)
	}

	usedByPhase := make(map[string]int, len(state.PhaseResults))
	summaryByPhase := make(map[string]string, len(state.PhaseResults))
	for i := range state.PhaseResults {
		r := &state.PhaseResults[i]
		usedByPhase[r.PhaseID] = r.TokensUsed
		summaryByPhase[r.PhaseID] = r.Summary
	}

	fmt.Fprintf(&sb, "## Phases (%d)\n\n", len(state.Phases))
	for i := range state.Phases {
		p := &state.Phases[i]
		marker := " "
		if i == state.CurrentPhaseIndex {
			marker = ">"
		}
		fmt.Fprintf(&sb, "%s %d. %-12s %s (est %d", marker, i+1, p.Status, p.Name, p.EstimatedTokens)
		if used, ok := usedByPhase[p.ID]; ok {
			fmt.Fprintf(&sb, ", used %d", used)
		}
		sb.WriteString(" tokens)\n")
		if summary := summaryByPhase[p.ID]; summary != "" {
			fmt.Fprintf(&sb, "     %s\n", excerpt(summary, 120))
		}
	}

	fmt.Fprintf(&sb, "\n## Budget\n\n")
	fmt.Fprintf(&sb, "Current phase: %d / %d tokens used (%.0f%%), status %s, action %s\n",
		b.Used, b.Total, b.PercentUsed, b.Status, b.RecommendedAction)
	fmt.Fprintf(&sb, "Mission total: %d tokens across completed phases\n", state.TotalTokens)

	if state.PendingApproval {
		sb.WriteString("\nAwaiting approval to continue to the next phase.\n")
	}

	return sb.String()
}

// excerpt collapses whitespace and cuts on rune boundaries so multi-byte
// characters are never split mid-sequence.
func excerpt(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
