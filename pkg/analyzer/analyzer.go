// Package analyzer scores the complexity of a free-text work request and
// recommends single-session or phased execution. The score is a heuristic
// lexical classifier, not a static-analysis tool; token estimates are
// conservative approximations.
package analyzer

import (
	"context"
	"fmt"
	"math"
	"strings"

	"missionctl/pkg/logx"
	"missionctl/pkg/proto"
)

// Scoring weights and caps. Empirical; the caps keep very long input from
// growing the score without bound.
const (
	pointsPerFeature    = 3
	maxFeaturePoints    = 30
	pointsPerFile       = 2
	maxFilePoints       = 20
	textLengthDivisor   = 100
	maxTextLengthPoints = 20
	extraDomainPoints   = 3
	maxScore            = 100
)

// File-count estimate coefficients, clamped to [1, 50].
const (
	filesPerFeature     = 1.5
	filesPerDomain      = 3.0
	filesPerContextFile = 0.1
	maxContextFileBonus = 10.0
	minFileCount        = 1
	maxFileCount        = 50
)

// Token estimate overhead constants (per detected signal). Uncalibrated
// against any real tokenizer; exposed as fields on Config for tuning.
const (
	charsPerToken       = 4
	tokensPerFile       = 500
	tokensPerFeature    = 1000
	tokensPerDomain     = 2000
	tokensPerRisk       = 1500
	tokensPerScope      = 3000
	clarificationFactor = 5
)

// Config holds the analyzer thresholds. Zero values fall back to defaults.
type Config struct {
	LowThreshold    int
	MediumThreshold int
	HighThreshold   int
	TokensPerPhase  int
}

// Analyzer scores requirements against injected pattern tables. Safe for
// concurrent use: all fields are read-only after construction.
type Analyzer struct {
	cfg    Config
	tables *PatternTables
	logger *logx.Logger
}

// New creates an analyzer with the built-in pattern tables.
func New(cfg Config) *Analyzer {
	return NewWithTables(cfg, nil)
}

// NewWithTables creates an analyzer with custom pattern tables; nil tables
// use the built-in defaults.
func NewWithTables(cfg Config, tables *PatternTables) *Analyzer {
	if cfg.LowThreshold <= 0 {
		cfg.LowThreshold = 20
	}
	if cfg.MediumThreshold <= 0 {
		cfg.MediumThreshold = 40
	}
	if cfg.HighThreshold <= 0 {
		cfg.HighThreshold = 70
	}
	if cfg.TokensPerPhase <= 0 {
		cfg.TokensPerPhase = 30000
	}
	if tables == nil {
		tables = defaultPatternTables()
	}
	return &Analyzer{
		cfg:    cfg,
		tables: tables,
		logger: logx.NewLogger("analyzer"),
	}
}

// Analyze scores a requirement. Pure and deterministic; context and error are
// part of the signature for interface symmetry with I/O-bound collaborators,
// but no I/O occurs and the error is always nil. Degenerate inputs (empty
// string) yield LOW / score 0 / PROCEED.
func (a *Analyzer) Analyze(ctx context.Context, requirement string, contextFiles []string) (*proto.ComplexityScore, error) {
	metrics := a.computeMetrics(requirement, contextFiles)
	score := a.computeScore(&metrics)
	estimatedTokens := a.estimateTokens(&metrics)
	level := a.levelFor(score)
	recommendation, suggestedPhases := a.recommend(level, estimatedTokens)

	result := &proto.ComplexityScore{
		Level:           level,
		Score:           score,
		EstimatedTokens: estimatedTokens,
		Recommendation:  recommendation,
		Explanation:     a.explain(&metrics, score, level, estimatedTokens, recommendation),
		SuggestedPhases: suggestedPhases,
		Metrics:         metrics,
	}

	logx.Debug(ctx, "analyzer", "Scored requirement: %d points, level %s, %d est. tokens, %s",
		score, level, estimatedTokens, recommendation)

	return result, nil
}

func (a *Analyzer) computeMetrics(requirement string, contextFiles []string) proto.ComplexityMetrics {
	features := extractFeatures(requirement)

	var scopeLabels []string
	for _, p := range a.tables.Scope {
		if p.Pattern.MatchString(requirement) {
			scopeLabels = append(scopeLabels, p.Label)
		}
	}

	var riskLabels []string
	for _, p := range a.tables.Risk {
		if p.Pattern.MatchString(requirement) {
			riskLabels = append(riskLabels, p.Label)
		}
	}

	var domains []string
	for _, p := range a.tables.Domain {
		if p.Pattern.MatchString(requirement) {
			domains = append(domains, p.Label)
		}
	}

	return proto.ComplexityMetrics{
		FeatureCount:       len(features),
		Features:           features,
		EstimatedFileCount: estimateFileCount(len(features), len(domains), len(contextFiles)),
		ScopeIndicators:    scopeLabels,
		RiskFactors:        riskLabels,
		TextLength:         len(requirement),
		TechnicalDomains:   domains,
	}
}

func estimateFileCount(featureCount, domainCount, contextFileCount int) int {
	contextBonus := math.Min(filesPerContextFile*float64(contextFileCount), maxContextFileBonus)
	estimate := filesPerFeature*float64(featureCount) + filesPerDomain*float64(domainCount) + contextBonus

	files := int(math.Round(estimate))
	if files < minFileCount {
		files = minFileCount
	}
	if files > maxFileCount {
		files = maxFileCount
	}
	return files
}

func (a *Analyzer) computeScore(m *proto.ComplexityMetrics) int {
	score := 0

	score += capped(pointsPerFeature*m.FeatureCount, maxFeaturePoints)
	score += capped(pointsPerFile*m.EstimatedFileCount, maxFilePoints)

	for _, label := range m.ScopeIndicators {
		score += a.scopePoints(label)
	}
	for _, label := range m.RiskFactors {
		score += a.riskPoints(label)
	}

	score += capped(m.TextLength/textLengthDivisor, maxTextLengthPoints)

	if extra := len(m.TechnicalDomains) - 1; extra > 0 {
		score += extraDomainPoints * extra
	}

	if score > maxScore {
		score = maxScore
	}
	return score
}

func (a *Analyzer) scopePoints(label string) int {
	for _, p := range a.tables.Scope {
		if p.Label == label {
			return p.Points
		}
	}
	return 0
}

func (a *Analyzer) riskPoints(label string) int {
	for _, p := range a.tables.Risk {
		if p.Label == label {
			return p.Points
		}
	}
	return 0
}

func (a *Analyzer) estimateTokens(m *proto.ComplexityMetrics) int {
	tokens := int(math.Ceil(float64(m.TextLength) / charsPerToken))
	tokens += tokensPerFile * m.EstimatedFileCount
	tokens += tokensPerFeature * m.FeatureCount
	tokens += tokensPerDomain * len(m.TechnicalDomains)
	tokens += tokensPerRisk * len(m.RiskFactors)
	tokens += tokensPerScope * len(m.ScopeIndicators)
	return tokens
}

func (a *Analyzer) levelFor(score int) proto.ComplexityLevel {
	switch {
	case score <= a.cfg.LowThreshold:
		return proto.LevelLow
	case score <= a.cfg.MediumThreshold:
		return proto.LevelMedium
	case score <= a.cfg.HighThreshold:
		return proto.LevelHigh
	default:
		return proto.LevelExtreme
	}
}

func (a *Analyzer) recommend(level proto.ComplexityLevel, estimatedTokens int) (proto.Recommendation, int) {
	if estimatedTokens > clarificationFactor*a.cfg.TokensPerPhase {
		return proto.RecommendClarification, 0
	}
	if level == proto.LevelHigh || level == proto.LevelExtreme || estimatedTokens > a.cfg.TokensPerPhase {
		// Exactly ceil(estimated/perPhase); the planner owns the minimum
		// split, not the analyzer.
		phases := int(math.Ceil(float64(estimatedTokens) / float64(a.cfg.TokensPerPhase)))
		if phases < 1 {
			phases = 1
		}
		return proto.RecommendSplitPhases, phases
	}
	return proto.RecommendProceed, 0
}

func (a *Analyzer) explain(m *proto.ComplexityMetrics, score int, level proto.ComplexityLevel, estimatedTokens int, rec proto.Recommendation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Complexity %s (score %d/100): %d feature(s), ~%d file(s), %d char(s) of requirement text.",
		level, score, m.FeatureCount, m.EstimatedFileCount, m.TextLength)

	if len(m.TechnicalDomains) > 0 {
		fmt.Fprintf(&b, " Domains: %s.", strings.Join(m.TechnicalDomains, ", "))
	}
	if len(m.ScopeIndicators) > 0 {
		fmt.Fprintf(&b, " Scope signals: %s.", strings.Join(m.ScopeIndicators, ", "))
	}
	if len(m.RiskFactors) > 0 {
		fmt.Fprintf(&b, " Risk factors: %s.", strings.Join(m.RiskFactors, ", "))
	}

	fmt.Fprintf(&b, " Estimated cost ~%d tokens.", estimatedTokens)

	switch rec {
	case proto.RecommendProceed:
		b.WriteString(" Small enough for a single continuous session.")
	case proto.RecommendSplitPhases:
		b.WriteString(" Exceeds a single-phase budget; split into sequential phases with approval gates.")
	case proto.RecommendClarification:
		b.WriteString(" Far too large for phased execution as written; narrow the requirement before starting.")
	}

	return b.String()
}

func capped(value, limit int) int {
	if value > limit {
		return limit
	}
	return value
}
