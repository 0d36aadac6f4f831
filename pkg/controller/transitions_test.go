package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"missionctl/pkg/proto"
)

func TestValidTransitions(t *testing.T) {
	cases := []struct {
		from proto.MissionState
		to   proto.MissionState
		ok   bool
	}{
		{proto.StateUninitialized, proto.StatePhaseIdle, true},
		{proto.StateUninitialized, proto.StateRunning, true},
		{proto.StatePhaseIdle, proto.StatePhaseRunning, true},
		{proto.StatePhaseRunning, proto.StatePhaseRunning, true},
		{proto.StatePhaseRunning, proto.StateAwaitingApproval, true},
		{proto.StateAwaitingApproval, proto.StatePhaseRunning, true},
		{proto.StateAwaitingApproval, proto.StateComplete, true},
		{proto.StateRunning, proto.StateComplete, true},
		{proto.StatePhaseRunning, proto.StateComplete, true},

		{proto.StateUninitialized, proto.StateAwaitingApproval, false},
		{proto.StatePhaseIdle, proto.StateComplete, false},
		{proto.StateRunning, proto.StatePhaseRunning, false},
		{proto.StateAwaitingApproval, proto.StatePhaseIdle, false},
	}

	for _, tc := range cases {
		got := ValidTransitions.IsValidTransition(tc.from, tc.to)
		assert.Equalf(t, tc.ok, got, "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, terminal := range []proto.MissionState{proto.StateComplete, proto.StateAborted} {
		for _, to := range []proto.MissionState{
			proto.StateUninitialized, proto.StateRunning, proto.StatePhaseIdle,
			proto.StatePhaseRunning, proto.StateAwaitingApproval,
			proto.StateComplete, proto.StateAborted,
		} {
			assert.Falsef(t, ValidTransitions.IsValidTransition(terminal, to),
				"terminal %s must not transition to %s", terminal, to)
		}
	}
}

func TestEveryStateCanAbortExceptTerminals(t *testing.T) {
	for _, from := range []proto.MissionState{
		proto.StateUninitialized, proto.StateRunning, proto.StatePhaseIdle,
		proto.StatePhaseRunning, proto.StateAwaitingApproval,
	} {
		assert.Truef(t, ValidTransitions.IsValidTransition(from, proto.StateAborted),
			"%s must be abortable", from)
	}
}
