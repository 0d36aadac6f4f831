package proto

import "time"

// EventKind identifies the notification raised to the mission's caller.
type EventKind string

const (
	// EventPhaseUpdate fires on any controller state change.
	EventPhaseUpdate EventKind = "phase-update"
	// EventApprovalNeeded fires when a phase completes and the gate is pending.
	EventApprovalNeeded EventKind = "approval-needed"
	// EventPhaseComplete fires when a phase reaches a terminal status.
	EventPhaseComplete EventKind = "phase-complete"
	// EventAllPhasesComplete fires once every phase has a terminal result.
	EventAllPhasesComplete EventKind = "all-phases-complete"
	// EventBudgetAlert fires once per budget status crossing.
	EventBudgetAlert EventKind = "budget-alert"
)

// MissionEvent is the notification payload delivered on the mission event
// channel. Producers send non-blocking; a full channel drops the event.
type MissionEvent struct {
	Kind        EventKind      `json:"kind"`
	TaskID      string         `json:"task_id"`
	State       MissionState   `json:"state,omitempty"`
	Phase       *Phase         `json:"phase,omitempty"`
	Result      *PhaseResult   `json:"result,omitempty"`
	PhaseIndex  int            `json:"phase_index,omitempty"`
	TotalPhases int            `json:"total_phases,omitempty"`
	TotalTokens int            `json:"total_tokens,omitempty"`
	Budget      *ContextBudget `json:"budget,omitempty"`
	Message     string         `json:"message,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// BudgetAlert is raised by the budget monitor exactly once per status
// crossing. Transitions into healthy never alert.
type BudgetAlert struct {
	Status    BudgetStatus  `json:"status"`
	Budget    ContextBudget `json:"budget"`
	PhaseID   string        `json:"phase_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
