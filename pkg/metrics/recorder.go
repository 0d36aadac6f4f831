// Package metrics provides Prometheus-based metrics recording for mission
// and phase execution.
package metrics

import "time"

// Recorder is the interface the controller and monitor record through. The
// no-op implementation keeps tests and embedded callers free of a metrics
// registry.
type Recorder interface {
	// RecordTokens records token usage attributed to a mission phase.
	RecordTokens(taskID, phaseID, source, kind string, tokenCount int)

	// RecordPhaseDuration records how long a phase ran and its terminal status.
	RecordPhaseDuration(taskID, status string, duration time.Duration)

	// RecordApprovalWait records how long a mission sat at an approval gate.
	RecordApprovalWait(taskID string, duration time.Duration)

	// RecordBoundaryTrigger counts phase-boundary triggers by reason.
	RecordBoundaryTrigger(taskID, reason string)

	// RecordBudgetAlert counts budget status crossings.
	RecordBudgetAlert(status string)
}

// NopRecorder discards all observations.
type NopRecorder struct{}

func (NopRecorder) RecordTokens(_, _, _, _ string, _ int)            {}
func (NopRecorder) RecordPhaseDuration(_, _ string, _ time.Duration) {}
func (NopRecorder) RecordApprovalWait(_ string, _ time.Duration)     {}
func (NopRecorder) RecordBoundaryTrigger(_, _ string)                {}
func (NopRecorder) RecordBudgetAlert(_ string)                       {}
