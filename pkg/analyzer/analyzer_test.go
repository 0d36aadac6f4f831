package analyzer

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"missionctl/pkg/proto"
)

const complexAuthRequirement = `Build a complete authentication system for the platform:
- OAuth login with Google and GitHub providers
- Role-based access control (RBAC) with admin and user roles
- Admin dashboard for user management
- Password reset flow with email verification
- Session management with refresh tokens on the API server
- Audit logging of all authentication events`

func TestAnalyzeSimpleRequirement(t *testing.T) {
	a := New(Config{})
	score, err := a.Analyze(context.Background(), "Fix the typo in the README file.", nil)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if score.Level != proto.LevelLow {
		t.Errorf("expected LOW level, got %s (score %d)", score.Level, score.Score)
	}
	if score.Recommendation != proto.RecommendProceed {
		t.Errorf("expected PROCEED, got %s", score.Recommendation)
	}
	if score.SuggestedPhases != 0 {
		t.Errorf("expected no suggested phases, got %d", score.SuggestedPhases)
	}
}

func TestAnalyzeComplexAuthRequirement(t *testing.T) {
	a := New(Config{})
	score, err := a.Analyze(context.Background(), complexAuthRequirement, nil)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if score.Level != proto.LevelHigh && score.Level != proto.LevelExtreme {
		t.Errorf("expected HIGH or EXTREME level, got %s (score %d)", score.Level, score.Score)
	}
	if score.Recommendation != proto.RecommendSplitPhases {
		t.Errorf("expected SPLIT_PHASES, got %s", score.Recommendation)
	}
	if score.Metrics.FeatureCount < 4 {
		t.Errorf("expected at least 4 features, got %d: %v", score.Metrics.FeatureCount, score.Metrics.Features)
	}
	if score.SuggestedPhases < 1 {
		t.Errorf("expected at least one suggested phase, got %d", score.SuggestedPhases)
	}
	if len(score.Metrics.RiskFactors) == 0 {
		t.Errorf("expected auth requirement to surface risk factors")
	}
}

func TestScoreAlwaysInRange(t *testing.T) {
	inputs := []string{
		"",
		"x",
		"!@#$%^&*()\x00�",
		strings.Repeat("implement everything and migrate all the databases, ", 500),
		complexAuthRequirement,
	}

	a := New(Config{})
	for _, input := range inputs {
		score, err := a.Analyze(context.Background(), input, nil)
		if err != nil {
			t.Fatalf("Analyze failed on %q: %v", input[:min(20, len(input))], err)
		}
		if score.Score < 0 || score.Score > 100 {
			t.Errorf("score %d out of [0,100] for input length %d", score.Score, len(input))
		}
		if score.EstimatedTokens < 0 {
			t.Errorf("negative token estimate %d", score.EstimatedTokens)
		}
	}
}

func TestAnalyzeIdempotent(t *testing.T) {
	a := New(Config{})
	first, err := a.Analyze(context.Background(), complexAuthRequirement, []string{"auth.go"})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	second, err := a.Analyze(context.Background(), complexAuthRequirement, []string{"auth.go"})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical input produced different scores:\n%+v\n%+v", first, second)
	}
}

func TestScoreMonotonicInFeatures(t *testing.T) {
	a := New(Config{})
	base := "Update the service.\n"
	prev := -1

	for bullets := 0; bullets <= 12; bullets += 3 {
		var sb strings.Builder
		sb.WriteString(base)
		for i := 0; i < bullets; i++ {
			fmt.Fprintf(&sb, "- handle input case number %d\n", i)
		}

		score, err := a.Analyze(context.Background(), sb.String(), nil)
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		if score.Score < prev {
			t.Errorf("score decreased from %d to %d when bullets grew to %d", prev, score.Score, bullets)
		}
		prev = score.Score
	}
}

func TestEstimatedTokensMonotonicInTextLength(t *testing.T) {
	a := New(Config{})
	prev := -1

	for n := 1; n <= 5; n++ {
		text := strings.Repeat("plain filler words without any signal here ", n*10)
		score, err := a.Analyze(context.Background(), text, nil)
		if err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
		if score.EstimatedTokens <= prev {
			t.Errorf("estimate did not increase with text length: %d then %d", prev, score.EstimatedTokens)
		}
		prev = score.EstimatedTokens
	}
}

func TestLevelThresholdBoundaries(t *testing.T) {
	a := New(Config{LowThreshold: 20, MediumThreshold: 40, HighThreshold: 70})

	cases := []struct {
		score int
		want  proto.ComplexityLevel
	}{
		{0, proto.LevelLow},
		{20, proto.LevelLow},
		{21, proto.LevelMedium},
		{40, proto.LevelMedium},
		{41, proto.LevelHigh},
		{70, proto.LevelHigh},
		{71, proto.LevelExtreme},
		{100, proto.LevelExtreme},
	}

	for _, tc := range cases {
		if got := a.levelFor(tc.score); got != tc.want {
			t.Errorf("levelFor(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestSuggestedPhasesFollowFormula(t *testing.T) {
	a := New(Config{TokensPerPhase: 30000})

	// A HIGH-level requirement whose estimate fits a single phase budget
	// still splits, and suggests exactly one phase; the planner applies its
	// own minimum when drafting.
	rec, phases := a.recommend(proto.LevelHigh, 25000)
	if rec != proto.RecommendSplitPhases {
		t.Fatalf("recommend(HIGH, 25000) = %s, want SPLIT_PHASES", rec)
	}
	if phases != 1 {
		t.Errorf("suggested phases for estimate 25000 = %d, want 1", phases)
	}

	cases := []struct{ est, want int }{
		{30001, 2},
		{60000, 2},
		{60001, 3},
		{95000, 4},
	}
	for _, tc := range cases {
		if _, got := a.recommend(proto.LevelExtreme, tc.est); got != tc.want {
			t.Errorf("suggested phases for estimate %d = %d, want %d", tc.est, got, tc.want)
		}
	}
}

func TestRecommendClarificationForOversizedRequirement(t *testing.T) {
	// Tiny per-phase budget: even a modest requirement estimates past the
	// clarification ceiling.
	a := New(Config{TokensPerPhase: 100})
	score, err := a.Analyze(context.Background(), "Implement a small helper for parsing dates.", nil)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if score.Recommendation != proto.RecommendClarification {
		t.Errorf("expected REQUIRE_CLARIFICATION with tiny phase budget, got %s (est %d)",
			score.Recommendation, score.EstimatedTokens)
	}
	if score.SuggestedPhases != 0 {
		t.Errorf("clarification must not suggest phases, got %d", score.SuggestedPhases)
	}
}

func TestEstimateFileCountClamped(t *testing.T) {
	if got := estimateFileCount(0, 0, 0); got != 1 {
		t.Errorf("empty metrics should clamp to 1 file, got %d", got)
	}
	if got := estimateFileCount(100, 10, 500); got != 50 {
		t.Errorf("huge metrics should clamp to 50 files, got %d", got)
	}
	// 1.5*2 + 3*1 + 0 = 6
	if got := estimateFileCount(2, 1, 0); got != 6 {
		t.Errorf("estimateFileCount(2,1,0) = %d, want 6", got)
	}
}

func TestContextFilesRaiseEstimate(t *testing.T) {
	a := New(Config{})
	without, _ := a.Analyze(context.Background(), complexAuthRequirement, nil)
	with, _ := a.Analyze(context.Background(), complexAuthRequirement, make([]string, 100))

	if with.Metrics.EstimatedFileCount <= without.Metrics.EstimatedFileCount {
		t.Errorf("context files should raise the file estimate: %d vs %d",
			without.Metrics.EstimatedFileCount, with.Metrics.EstimatedFileCount)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
