// Package proto defines the shared types exchanged between the analyzer,
// planner, budget monitor, and phase execution controller.
package proto

// ExecutionMode determines whether a mission runs in one continuous session
// or is decomposed into sequential phases.
type ExecutionMode string

const (
	// ModeSingle executes the whole requirement in one continuous session.
	ModeSingle ExecutionMode = "single"
	// ModePhased decomposes the requirement into sequential approved phases.
	ModePhased ExecutionMode = "phased"
)

// PhaseStatus represents the lifecycle status of a single phase.
type PhaseStatus string

const (
	PhaseStatusPending    PhaseStatus = "pending"
	PhaseStatusInProgress PhaseStatus = "in-progress"
	PhaseStatusCompleted  PhaseStatus = "completed"
	PhaseStatusFailed     PhaseStatus = "failed"
	PhaseStatusSkipped    PhaseStatus = "skipped"
)

// IsTerminal reports whether the status is a terminal phase status.
func (s PhaseStatus) IsTerminal() bool {
	return s == PhaseStatusCompleted || s == PhaseStatusFailed || s == PhaseStatusSkipped
}

// ComplexityLevel classifies a requirement's complexity score.
type ComplexityLevel string

const (
	LevelLow     ComplexityLevel = "LOW"
	LevelMedium  ComplexityLevel = "MEDIUM"
	LevelHigh    ComplexityLevel = "HIGH"
	LevelExtreme ComplexityLevel = "EXTREME"
)

// Recommendation is the analyzer's verdict on how to execute a requirement.
type Recommendation string

const (
	// RecommendProceed executes the requirement in a single session.
	RecommendProceed Recommendation = "PROCEED"
	// RecommendSplitPhases decomposes the requirement into phases.
	RecommendSplitPhases Recommendation = "SPLIT_PHASES"
	// RecommendClarification asks the user to narrow the requirement first.
	RecommendClarification Recommendation = "REQUIRE_CLARIFICATION"
)

// BudgetStatus classifies token consumption against the phase budget.
type BudgetStatus string

const (
	BudgetHealthy   BudgetStatus = "healthy"
	BudgetWarning   BudgetStatus = "warning"
	BudgetCritical  BudgetStatus = "critical"
	BudgetExhausted BudgetStatus = "exhausted"
)

// RecommendedAction is derived purely from the budget status.
type RecommendedAction string

const (
	ActionContinue   RecommendedAction = "continue"
	ActionWrapUp     RecommendedAction = "wrap-up"
	ActionCheckpoint RecommendedAction = "checkpoint"
	ActionStop       RecommendedAction = "stop"
)

// ActionForStatus maps a budget status to its recommended action.
func ActionForStatus(status BudgetStatus) RecommendedAction {
	switch status {
	case BudgetWarning:
		return ActionWrapUp
	case BudgetCritical:
		return ActionCheckpoint
	case BudgetExhausted:
		return ActionStop
	case BudgetHealthy:
		return ActionContinue
	default:
		return ActionContinue
	}
}

// ApprovalDecision is the human's answer at a between-phase approval gate.
type ApprovalDecision string

const (
	ApprovalApproved ApprovalDecision = "approved"
	ApprovalRejected ApprovalDecision = "rejected"
)

// MissionState represents the controller's state machine position.
type MissionState string

const (
	// StateUninitialized is the state before any execution mode is chosen.
	StateUninitialized MissionState = "UNINITIALIZED"
	// StateRunning is the single-mode execution state.
	StateRunning MissionState = "RUNNING"
	// StatePhaseIdle means phased mode is set up but the current phase has not begun.
	StatePhaseIdle MissionState = "PHASE_IDLE"
	// StatePhaseRunning means the current phase is executing.
	StatePhaseRunning MissionState = "PHASE_RUNNING"
	// StateAwaitingApproval means a phase completed and the gate is pending.
	StateAwaitingApproval MissionState = "AWAITING_APPROVAL"
	// StateComplete is the terminal success state.
	StateComplete MissionState = "COMPLETE"
	// StateAborted is the terminal abort state.
	StateAborted MissionState = "ABORTED"
)

// IsTerminal reports whether the mission state permits no further transitions.
func (s MissionState) IsTerminal() bool {
	return s == StateComplete || s == StateAborted
}

func (s MissionState) String() string {
	return string(s)
}

// UsageKind classifies a token usage event by origin.
type UsageKind string

const (
	UsagePrompt     UsageKind = "prompt"
	UsageResponse   UsageKind = "response"
	UsageToolCall   UsageKind = "tool-call"
	UsageToolResult UsageKind = "tool-result"
	UsageContext    UsageKind = "context"
	UsageSystem     UsageKind = "system"
)
