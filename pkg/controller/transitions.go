package controller

import "missionctl/pkg/proto"

// TransitionTable represents valid state transitions for a mission instance.
type TransitionTable map[proto.MissionState][]proto.MissionState

// ValidTransitions defines allowed mission state transitions.
// PHASE_RUNNING -> PHASE_RUNNING covers the auto-advance path where the next
// phase begins without an approval gate.
//
//nolint:gochecknoglobals // Shared immutable transition table
var ValidTransitions = TransitionTable{
	proto.StateUninitialized: {
		proto.StateRunning,
		proto.StatePhaseIdle,
		proto.StateAborted,
	},
	proto.StatePhaseIdle: {
		proto.StatePhaseRunning,
		proto.StateAborted,
	},
	proto.StatePhaseRunning: {
		proto.StatePhaseRunning,
		proto.StateAwaitingApproval,
		proto.StateComplete,
		proto.StateAborted,
	},
	proto.StateAwaitingApproval: {
		proto.StatePhaseRunning,
		proto.StateComplete,
		proto.StateAborted,
	},
	proto.StateRunning: {
		proto.StateComplete,
		proto.StateAborted,
	},
	proto.StateComplete: {},
	proto.StateAborted:  {},
}

// IsValidTransition checks whether a transition is allowed by the table.
func (t TransitionTable) IsValidTransition(from, to proto.MissionState) bool {
	allowed, ok := t[from]
	if !ok {
		return false
	}
	for _, state := range allowed {
		if state == to {
			return true
		}
	}
	return false
}
