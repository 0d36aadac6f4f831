package proto

import "time"

// ComplexityMetrics holds the raw lexical signals extracted from a requirement.
// Immutable once computed.
type ComplexityMetrics struct {
	FeatureCount       int      `json:"feature_count"`
	Features           []string `json:"features,omitempty"`
	EstimatedFileCount int      `json:"estimated_file_count"`
	ScopeIndicators    []string `json:"scope_indicators,omitempty"`
	RiskFactors        []string `json:"risk_factors,omitempty"`
	TextLength         int      `json:"text_length"`
	TechnicalDomains   []string `json:"technical_domains,omitempty"`
}

// ComplexityScore is the analyzer's verdict on a requirement.
// Created once per requirement and never mutated.
type ComplexityScore struct {
	Level           ComplexityLevel   `json:"level"`
	Score           int               `json:"score"` // 0-100
	EstimatedTokens int               `json:"estimated_tokens"`
	Recommendation  Recommendation    `json:"recommendation"`
	Explanation     string            `json:"explanation"`
	SuggestedPhases int               `json:"suggested_phases,omitempty"` // Only set for SPLIT_PHASES
	Metrics         ComplexityMetrics `json:"metrics"`
}

// Phase is one bounded sub-unit of mission work. Status is the only mutable
// attribute and is owned exclusively by the controller.
type Phase struct {
	ID              string      `json:"id"`
	Ordinal         int         `json:"ordinal"` // Zero-based position in the plan
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	Status          PhaseStatus `json:"status"`
	EstimatedTokens int         `json:"estimated_tokens"`
}

// PhaseResult records the outcome of a completed, skipped, or failed phase.
// Results are append-only and form the mission's audit trail.
type PhaseResult struct {
	PhaseID             string      `json:"phase_id"`
	Status              PhaseStatus `json:"status"`
	TokensUsed          int         `json:"tokens_used"`
	Summary             string      `json:"summary,omitempty"`
	FilesCreated        []string    `json:"files_created,omitempty"`
	FilesModified       []string    `json:"files_modified,omitempty"`
	VerificationResults []string    `json:"verification_results,omitempty"`
	CompletedAt         time.Time   `json:"completed_at"`
}

// ContextBudget is a snapshot of token consumption against the current
// phase budget. Used and Remaining are clamped so an overrun never reports
// negative remaining or more than 100 percent used.
type ContextBudget struct {
	Total             int               `json:"total"`
	Used              int               `json:"used"`
	Remaining         int               `json:"remaining"`
	PercentUsed       float64           `json:"percent_used"`
	Status            BudgetStatus      `json:"status"`
	RecommendedAction RecommendedAction `json:"recommended_action"`
}

// PhaseExecutionState is the top-level aggregate the controller persists and
// from which all UI projections are derived. One instance per mission.
type PhaseExecutionState struct {
	TaskID            string           `json:"task_id"`
	Mode              ExecutionMode    `json:"mode"`
	State             MissionState     `json:"state"`
	Requirement       string           `json:"requirement"`
	Phases            []Phase          `json:"phases"`
	CurrentPhaseIndex int              `json:"current_phase_index"`
	PhaseResults      []PhaseResult    `json:"phase_results"`
	PendingApproval   bool             `json:"pending_approval"`
	TotalTokens       int              `json:"total_tokens"`
	Score             *ComplexityScore `json:"score,omitempty"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// UsageEvent is one entry in the budget monitor's rolling ledger.
type UsageEvent struct {
	ID        string    `json:"id"`
	Kind      UsageKind `json:"kind"`
	Tokens    int       `json:"tokens"`
	Source    string    `json:"source"`
	PhaseID   string    `json:"phase_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
