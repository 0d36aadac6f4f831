// Package controller implements the phase execution state machine: it decides
// single versus phased mode, exposes per-phase prompt context, tracks token
// usage, detects phase boundaries, and gates phase advancement behind human
// approval. Single-writer by design: one logical agent loop drives one
// controller at a time.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"missionctl/pkg/analyzer"
	"missionctl/pkg/budget"
	"missionctl/pkg/logx"
	"missionctl/pkg/metrics"
	"missionctl/pkg/proto"
)

// Config holds the controller-facing execution settings.
type Config struct {
	TokenBudgetPerPhase          int
	RequireApprovalBetweenPhases bool
	AutoApprove                  bool
}

// StateStore persists the mission aggregate between state transitions so a
// host restart can resume an in-flight mission.
type StateStore interface {
	SaveMission(state *proto.PhaseExecutionState) error
	LoadMission(taskID string) (*proto.PhaseExecutionState, error)
}

// Controller is the per-mission state machine. All mutating operations take
// the mutex; the caller contract is single-writer, the lock guards against
// read projections racing a transition.
type Controller struct {
	mu sync.Mutex

	taskID   string
	cfg      Config
	analyzer *analyzer.Analyzer
	monitor  *budget.Monitor
	store    StateStore
	recorder metrics.Recorder
	table    TransitionTable
	logger   *logx.Logger
	eventCh  chan<- proto.MissionEvent

	state             proto.MissionState
	mode              proto.ExecutionMode
	requirement       string
	score             *proto.ComplexityScore
	phases            []proto.Phase
	currentPhaseIndex int
	results           []proto.PhaseResult
	pendingApproval   bool
	totalTokens       int

	phaseStartedAt   time.Time
	approvalRaisedAt time.Time
}

// New creates a controller for one mission. The monitor is required; store
// and recorder are optional (nil store disables persistence, nil recorder
// becomes a no-op).
func New(taskID string, cfg Config, an *analyzer.Analyzer, mon *budget.Monitor, store StateStore, rec metrics.Recorder) *Controller {
	if cfg.TokenBudgetPerPhase <= 0 {
		cfg.TokenBudgetPerPhase = 30000
	}
	if rec == nil {
		rec = metrics.NopRecorder{}
	}

	return &Controller{
		taskID:   taskID,
		cfg:      cfg,
		analyzer: an,
		monitor:  mon,
		store:    store,
		recorder: rec,
		table:    ValidTransitions,
		logger:   logx.NewLogger(taskID),
		state:    proto.StateUninitialized,
	}
}

// SetEventChannel sets the channel for mission event notifications.
// Sends are non-blocking; a full channel drops the event.
func (c *Controller) SetEventChannel(ch chan<- proto.MissionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventCh = ch
}

// TaskID returns the mission's task identifier.
func (c *Controller) TaskID() string {
	return c.taskID
}

// AnalyzeRequirement scores the requirement and stores the result.
func (c *Controller) AnalyzeRequirement(ctx context.Context, text string) (*proto.ComplexityScore, error) {
	if c.analyzer == nil {
		return nil, ErrNoAnalyzer
	}

	score, err := c.analyzer.Analyze(ctx, text, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze requirement: %w", err)
	}

	c.mu.Lock()
	c.score = score
	c.requirement = text
	c.mu.Unlock()

	return score, nil
}

// StartPhasedExecution sets phased mode with the given plan. Mutually
// exclusive with StartSingleExecution; called once per mission.
func (c *Controller) StartPhasedExecution(requirement string, phases []proto.Phase) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != proto.StateUninitialized {
		return fmt.Errorf("%w: state is %s", ErrAlreadyStarted, c.state)
	}
	if len(phases) == 0 {
		return fmt.Errorf("phased execution requires at least one phase")
	}

	c.mode = proto.ModePhased
	c.requirement = requirement
	c.phases = append([]proto.Phase{}, phases...)
	c.currentPhaseIndex = 0

	return c.transitionLocked(proto.StatePhaseIdle)
}

// StartSingleExecution sets single mode. The whole requirement runs as one
// bounded session, modeled as a one-phase mission with no approval gate.
func (c *Controller) StartSingleExecution(requirement string, estimatedTokens int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != proto.StateUninitialized {
		return fmt.Errorf("%w: state is %s", ErrAlreadyStarted, c.state)
	}

	c.mode = proto.ModeSingle
	c.requirement = requirement
	c.phases = []proto.Phase{{
		ID:              proto.MustGeneratePhaseID(),
		Ordinal:         0,
		Name:            "Single session",
		Description:     requirement,
		Status:          proto.PhaseStatusInProgress,
		EstimatedTokens: estimatedTokens,
	}}
	c.currentPhaseIndex = 0
	c.phaseStartedAt = time.Now().UTC()

	if c.monitor != nil {
		c.monitor.ResetForPhase(c.phases[0].ID, c.cfg.TokenBudgetPerPhase)
	}

	return c.transitionLocked(proto.StateRunning)
}

// BeginPhaseExecution marks the current phase in-progress and resets the
// monitor's budget window for it. Subsequent usage is tagged with the phase id.
func (c *Controller) BeginPhaseExecution() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.beginPhaseLocked()
}

func (c *Controller) beginPhaseLocked() error {
	if c.mode != proto.ModePhased {
		return fmt.Errorf("%w: not in phased mode", ErrNotStarted)
	}
	if c.currentPhaseIndex >= len(c.phases) {
		return fmt.Errorf("no phase to begin: index %d of %d", c.currentPhaseIndex, len(c.phases))
	}

	phase := &c.phases[c.currentPhaseIndex]
	phase.Status = proto.PhaseStatusInProgress
	c.phaseStartedAt = time.Now().UTC()

	if c.monitor != nil {
		c.monitor.ResetForPhase(phase.ID, c.cfg.TokenBudgetPerPhase)
	}

	if err := c.transitionLocked(proto.StatePhaseRunning); err != nil {
		return err
	}

	c.logger.Info("Phase %d/%d started: %s", c.currentPhaseIndex+1, len(c.phases), phase.Name)
	return nil
}

// GetPhasePromptContext returns the text block the caller injects into the
// LLM system prompt. Recomputed on demand, not cached.
func (c *Controller) GetPhasePromptContext() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentPhaseIndex >= len(c.phases) {
		return ""
	}

	phase := &c.phases[c.currentPhaseIndex]
	b := proto.ContextBudget{}
	if c.monitor != nil {
		b = c.monitor.GetBudget()
	}

	if c.mode == proto.ModeSingle {
		return fmt.Sprintf(
			"## Execution context\nThis task runs in a single continuous session.\nToken budget remaining: %d of %d (%.0f%% used).\nWrap up cleanly before the budget is exhausted.",
			b.Remaining, b.Total, b.PercentUsed)
	}

	return fmt.Sprintf(
		"## Phase %d of %d: %s\n%s\n\nToken budget remaining for this phase: %d of %d (%.0f%% used).\nComplete only this phase's scope; later phases are planned separately.",
		c.currentPhaseIndex+1, len(c.phases), phase.Name, phase.Description,
		b.Remaining, b.Total, b.PercentUsed)
}

// TrackTokens records already-counted token usage from the agent loop.
func (c *Controller) TrackTokens(kind proto.UsageKind, tokenCount int, source string) {
	if c.monitor == nil {
		return
	}
	c.monitor.TrackUsage(kind, tokenCount, source)
	c.recorder.RecordTokens(c.taskID, c.currentPhaseID(), source, string(kind), tokenCount)
}

// TrackText estimates the token cost of text and records it.
func (c *Controller) TrackText(kind proto.UsageKind, text, source string) {
	if c.monitor == nil {
		return
	}
	c.TrackTokens(kind, c.monitor.EstimateTokens(text), source)
}

func (c *Controller) currentPhaseID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentPhaseIndex < len(c.phases) {
		return c.phases[c.currentPhaseIndex].ID
	}
	return ""
}

// ShouldTriggerPhaseBoundary reports whether the current phase must stop.
// The agent loop polls this every turn and stops issuing LLM calls once true.
func (c *Controller) ShouldTriggerPhaseBoundary() bool {
	if c.monitor == nil {
		return false
	}

	triggered := c.monitor.ShouldTriggerPhaseBoundary()
	if triggered {
		reason := "reserve"
		if s := c.monitor.Status(); s == proto.BudgetCritical || s == proto.BudgetExhausted {
			reason = string(s)
		}
		c.recorder.RecordBoundaryTrigger(c.taskID, reason)
	}
	return triggered
}

// CompletePhase records the result of the current phase and either raises an
// approval gate or auto-advances. Returns whether execution continues to a
// next phase and whether the mission is now complete. Calling it while an
// approval is already pending, or after a terminal state, is a no-op.
func (c *Controller) CompletePhase(summary string, filesCreated, filesModified, verificationResults []string) (continueToNext, isComplete bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsTerminal() || c.pendingApproval {
		return false, c.state == proto.StateComplete
	}
	if c.state != proto.StatePhaseRunning && c.state != proto.StateRunning {
		return false, false
	}

	phase := &c.phases[c.currentPhaseIndex]
	if c.hasResultLocked(phase.ID) {
		return false, false
	}

	used := 0
	if c.monitor != nil {
		used = c.monitor.UsedTokens()
	}

	phase.Status = proto.PhaseStatusCompleted
	result := proto.PhaseResult{
		PhaseID:             phase.ID,
		Status:              proto.PhaseStatusCompleted,
		TokensUsed:          used,
		Summary:             summary,
		FilesCreated:        filesCreated,
		FilesModified:       filesModified,
		VerificationResults: verificationResults,
		CompletedAt:         time.Now().UTC(),
	}
	c.results = append(c.results, result)
	c.totalTokens += used
	c.recorder.RecordPhaseDuration(c.taskID, string(proto.PhaseStatusCompleted), time.Since(c.phaseStartedAt))

	c.emitLocked(proto.MissionEvent{
		Kind:        proto.EventPhaseComplete,
		TaskID:      c.taskID,
		State:       c.state,
		Phase:       clonePhase(phase),
		Result:      &result,
		PhaseIndex:  c.currentPhaseIndex,
		TotalPhases: len(c.phases),
		Timestamp:   time.Now().UTC(),
	})

	if c.mode == proto.ModeSingle {
		c.currentPhaseIndex = len(c.phases)
		c.finalizeLocked()
		return false, true
	}

	if c.cfg.RequireApprovalBetweenPhases && !c.cfg.AutoApprove {
		c.pendingApproval = true
		c.approvalRaisedAt = time.Now().UTC()
		if err := c.transitionLocked(proto.StateAwaitingApproval); err != nil {
			c.logger.Error("Failed to enter approval gate: %v", err)
			return false, false
		}
		c.emitLocked(proto.MissionEvent{
			Kind:        proto.EventApprovalNeeded,
			TaskID:      c.taskID,
			State:       c.state,
			Phase:       clonePhase(phase),
			Result:      &result,
			PhaseIndex:  c.currentPhaseIndex,
			TotalPhases: len(c.phases),
			Timestamp:   time.Now().UTC(),
		})
		return false, false
	}

	return c.advanceLocked()
}

// ProvideApproval resolves a pending approval gate. Approved advances to the
// next phase (or finalizes the mission after the last phase); rejected
// aborts the mission. Without a pending approval this is a no-op.
func (c *Controller) ProvideApproval(decision proto.ApprovalDecision, feedback string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.pendingApproval || c.state != proto.StateAwaitingApproval {
		return
	}

	c.pendingApproval = false
	c.recorder.RecordApprovalWait(c.taskID, time.Since(c.approvalRaisedAt))

	if decision != proto.ApprovalApproved {
		c.logger.Info("Phase %d rejected: %s", c.currentPhaseIndex+1, feedback)
		c.abortLocked(fmt.Sprintf("phase %d rejected: %s", c.currentPhaseIndex+1, feedback))
		return
	}

	c.logger.Info("Phase %d approved", c.currentPhaseIndex+1)
	c.advanceLocked()
}

// SkipCurrentPhase marks the current phase skipped with a zero-usage result
// and advances exactly as an approval would. A no-op while an approval is
// pending or after a terminal state.
func (c *Controller) SkipCurrentPhase(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsTerminal() || c.pendingApproval || c.mode != proto.ModePhased {
		return
	}
	if c.currentPhaseIndex >= len(c.phases) {
		return
	}

	phase := &c.phases[c.currentPhaseIndex]
	if c.hasResultLocked(phase.ID) {
		return
	}

	phase.Status = proto.PhaseStatusSkipped
	result := proto.PhaseResult{
		PhaseID:     phase.ID,
		Status:      proto.PhaseStatusSkipped,
		TokensUsed:  0,
		Summary:     fmt.Sprintf("Skipped: %s", reason),
		CompletedAt: time.Now().UTC(),
	}
	c.results = append(c.results, result)
	c.recorder.RecordPhaseDuration(c.taskID, string(proto.PhaseStatusSkipped), time.Since(c.phaseStartedAt))

	c.logger.Info("Phase %d/%d skipped: %s", c.currentPhaseIndex+1, len(c.phases), reason)

	c.emitLocked(proto.MissionEvent{
		Kind:        proto.EventPhaseComplete,
		TaskID:      c.taskID,
		State:       c.state,
		Phase:       clonePhase(phase),
		Result:      &result,
		PhaseIndex:  c.currentPhaseIndex,
		TotalPhases: len(c.phases),
		Timestamp:   time.Now().UTC(),
	})

	c.advanceLocked()
}

// AbortMission terminates the mission from any state. Not revocable.
func (c *Controller) AbortMission(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsTerminal() {
		return
	}
	c.abortLocked(reason)
}

// advanceLocked moves past the current phase: finalize after the last phase,
// otherwise begin the next one. Caller holds c.mu.
func (c *Controller) advanceLocked() (continueToNext, isComplete bool) {
	if c.currentPhaseIndex >= len(c.phases)-1 {
		c.currentPhaseIndex = len(c.phases)
		c.finalizeLocked()
		return false, true
	}

	c.currentPhaseIndex++
	if err := c.beginPhaseLocked(); err != nil {
		c.logger.Error("Failed to begin phase %d: %v", c.currentPhaseIndex+1, err)
		return false, false
	}

	c.emitLocked(proto.MissionEvent{
		Kind:        proto.EventPhaseUpdate,
		TaskID:      c.taskID,
		State:       c.state,
		Phase:       clonePhase(&c.phases[c.currentPhaseIndex]),
		PhaseIndex:  c.currentPhaseIndex,
		TotalPhases: len(c.phases),
		Timestamp:   time.Now().UTC(),
	})
	return true, false
}

// finalizeLocked completes the mission and fires the all-complete event with
// total token usage. Caller holds c.mu.
func (c *Controller) finalizeLocked() {
	if err := c.transitionLocked(proto.StateComplete); err != nil {
		c.logger.Error("Failed to finalize mission: %v", err)
		return
	}

	c.emitLocked(proto.MissionEvent{
		Kind:        proto.EventAllPhasesComplete,
		TaskID:      c.taskID,
		State:       c.state,
		TotalPhases: len(c.phases),
		TotalTokens: c.totalTokens,
		Timestamp:   time.Now().UTC(),
	})
}

func (c *Controller) abortLocked(reason string) {
	if err := c.transitionLocked(proto.StateAborted); err != nil {
		c.logger.Error("Failed to abort mission: %v", err)
		return
	}

	c.emitLocked(proto.MissionEvent{
		Kind:      proto.EventPhaseUpdate,
		TaskID:    c.taskID,
		State:     c.state,
		Message:   reason,
		Timestamp: time.Now().UTC(),
	})
}

// transitionLocked validates and performs a state transition, emits a
// phase-update, and persists the aggregate. Caller holds c.mu.
func (c *Controller) transitionLocked(to proto.MissionState) error {
	from := c.state
	if !c.table.IsValidTransition(from, to) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, from, to)
	}

	c.state = to
	c.logger.Info("🔄 Mission transition: %s → %s", from, to)

	if from != to {
		c.emitLocked(proto.MissionEvent{
			Kind:      proto.EventPhaseUpdate,
			TaskID:    c.taskID,
			State:     to,
			Timestamp: time.Now().UTC(),
		})
	}

	c.persistLocked()
	return nil
}

// persistLocked saves the mission aggregate. Persistence failures are logged,
// not raised: the caller must always be able to keep driving the loop.
func (c *Controller) persistLocked() {
	if c.store == nil {
		return
	}
	if err := c.store.SaveMission(c.snapshotLocked()); err != nil {
		c.logger.Warn("Failed to persist mission state: %v", err)
	}
}

// emitLocked sends an event without blocking. Caller holds c.mu.
func (c *Controller) emitLocked(event proto.MissionEvent) {
	if c.eventCh == nil {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("Mission event channel full, dropping %s event", event.Kind)
	}
}

func (c *Controller) hasResultLocked(phaseID string) bool {
	for i := range c.results {
		if c.results[i].PhaseID == phaseID {
			return true
		}
	}
	return false
}

// HasPendingApproval reports whether an approval gate is open.
func (c *Controller) HasPendingApproval() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingApproval
}

// GetState returns a copy of the mission aggregate.
func (c *Controller) GetState() *proto.PhaseExecutionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() *proto.PhaseExecutionState {
	return &proto.PhaseExecutionState{
		TaskID:            c.taskID,
		Mode:              c.mode,
		State:             c.state,
		Requirement:       c.requirement,
		Phases:            append([]proto.Phase{}, c.phases...),
		CurrentPhaseIndex: c.currentPhaseIndex,
		PhaseResults:      append([]proto.PhaseResult{}, c.results...),
		PendingApproval:   c.pendingApproval,
		TotalTokens:       c.totalTokens,
		Score:             c.score,
		UpdatedAt:         time.Now().UTC(),
	}
}

// GetBudget returns the monitor's current budget snapshot.
func (c *Controller) GetBudget() proto.ContextBudget {
	if c.monitor == nil {
		return proto.ContextBudget{Status: proto.BudgetExhausted, RecommendedAction: proto.ActionStop}
	}
	return c.monitor.GetBudget()
}

// GetCurrentPhase returns a copy of the current phase, or nil once every
// phase has a terminal result.
func (c *Controller) GetCurrentPhase() *proto.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentPhaseIndex >= len(c.phases) {
		return nil
	}
	return clonePhase(&c.phases[c.currentPhaseIndex])
}

// Restore hydrates the controller from a persisted aggregate. Used when the
// host resumes a mission after restart.
func (c *Controller) Restore(state *proto.PhaseExecutionState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mode = state.Mode
	c.state = state.State
	c.requirement = state.Requirement
	c.phases = append([]proto.Phase{}, state.Phases...)
	c.currentPhaseIndex = state.CurrentPhaseIndex
	c.results = append([]proto.PhaseResult{}, state.PhaseResults...)
	c.pendingApproval = state.PendingApproval
	c.totalTokens = state.TotalTokens
	c.score = state.Score
}

func clonePhase(p *proto.Phase) *proto.Phase {
	clone := *p
	return &clone
}
