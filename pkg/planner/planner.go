// Package planner splits a requirement recommended for decomposition into an
// ordered list of phases whose estimated token costs respect the per-phase
// budget. The partitioning strategy is pluggable and selected by a pure
// function of the complexity metrics.
package planner

import (
	"fmt"
	"math"

	"missionctl/pkg/logx"
	"missionctl/pkg/proto"
)

// Config holds planner tuning. Zero TokensPerPhase falls back to the default
// phase budget.
type Config struct {
	TokensPerPhase int
}

// Plan is the planner's output: ordered phases plus the strategy tag the
// mission records for its audit trail.
type Plan struct {
	Phases       []proto.Phase `json:"phases"`
	StrategyUsed string        `json:"strategy_used"`
}

// Planner produces phase plans from complexity scores.
type Planner struct {
	cfg    Config
	logger *logx.Logger
}

// New creates a planner.
func New(cfg Config) *Planner {
	if cfg.TokensPerPhase <= 0 {
		cfg.TokensPerPhase = 30000
	}
	return &Planner{
		cfg:    cfg,
		logger: logx.NewLogger("planner"),
	}
}

// Plan partitions the requirement into phases. The score must recommend
// SPLIT_PHASES; the resulting phase count matches the score's suggestion
// within one, phases are ordered, and no phase's estimate exceeds the
// per-phase budget.
func (p *Planner) Plan(score *proto.ComplexityScore, requirement string) (*Plan, error) {
	if score == nil {
		return nil, fmt.Errorf("nil complexity score")
	}
	if score.Recommendation != proto.RecommendSplitPhases {
		return nil, fmt.Errorf("requirement does not call for decomposition: recommendation is %s", score.Recommendation)
	}

	target := score.SuggestedPhases
	if target < 2 {
		target = 2
	}

	strategy := selectStrategy(&score.Metrics)
	drafts := strategy.partition(&score.Metrics, target)
	drafts = fitToTarget(drafts, target)

	// Spread the estimated cost evenly; the cap guarantees no phase is
	// planned beyond its budget even when the estimate overshoots.
	tokensEach := int(math.Ceil(float64(score.EstimatedTokens) / float64(len(drafts))))
	if tokensEach > p.cfg.TokensPerPhase {
		tokensEach = p.cfg.TokensPerPhase
	}

	phases := make([]proto.Phase, 0, len(drafts))
	for i, d := range drafts {
		phases = append(phases, proto.Phase{
			ID:              proto.MustGeneratePhaseID(),
			Ordinal:         i,
			Name:            fmt.Sprintf("Phase %d: %s", i+1, d.name),
			Description:     d.description,
			Status:          proto.PhaseStatusPending,
			EstimatedTokens: tokensEach,
		})
	}

	p.logger.Info("Planned %d phases via %s strategy (%d est. tokens each)",
		len(phases), strategy.tag(), tokensEach)

	return &Plan{Phases: phases, StrategyUsed: strategy.tag()}, nil
}

// fitToTarget resizes a draft list to within one of the target count,
// merging from the tail or splitting the widest draft as needed.
func fitToTarget(drafts []phaseDraft, target int) []phaseDraft {
	for len(drafts) > target+1 {
		// Merge the last two drafts.
		last := len(drafts) - 1
		drafts[last-1] = phaseDraft{
			name:        drafts[last-1].name,
			description: drafts[last-1].description + " Also: " + drafts[last].description,
		}
		drafts = drafts[:last]
	}

	for len(drafts) < target-1 {
		drafts = append(drafts, phaseDraft{
			name:        "Continued implementation",
			description: "Continue the remaining implementation work from the previous phase.",
		})
	}

	return drafts
}
