// Package mission is the external surface of the phase execution core: a
// registry of per-task controllers consumed by the orchestration caller.
// Each mission gets its own controller and budget monitor; the only shared
// state is the analyzer's pattern tables, which are read-only after
// construction. Query operations on an unknown task id return empty
// sentinels instead of errors so a caller racing a cleanup never crashes.
package mission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"missionctl/pkg/analyzer"
	"missionctl/pkg/budget"
	"missionctl/pkg/config"
	"missionctl/pkg/controller"
	"missionctl/pkg/logx"
	"missionctl/pkg/metrics"
	"missionctl/pkg/persistence"
	"missionctl/pkg/planner"
	"missionctl/pkg/proto"
)

// MissionDBFilename is the SQLite file created under a persistence location.
const MissionDBFilename = "missions.db"

// ErrMissionExists is returned when AnalyzeAndPrepare is called twice for
// the same task id.
var ErrMissionExists = errors.New("mission already exists")

// PrepareResult is what AnalyzeAndPrepare hands back to the caller: the
// chosen mode, the complexity verdict, the plan (phased mode only), and the
// first prompt context block.
type PrepareResult struct {
	Mode          proto.ExecutionMode    `json:"mode"`
	Score         *proto.ComplexityScore `json:"score"`
	Phases        []proto.Phase          `json:"phases,omitempty"`
	StrategyUsed  string                 `json:"strategy_used,omitempty"`
	PromptContext string                 `json:"prompt_context"`
}

// PhaseInfo is the read projection for UI hosts.
type PhaseInfo struct {
	TaskID            string              `json:"task_id"`
	Mode              proto.ExecutionMode `json:"mode"`
	State             proto.MissionState  `json:"state"`
	CurrentPhaseIndex int                 `json:"current_phase_index"`
	TotalPhases       int                 `json:"total_phases"`
	CurrentPhase      *proto.Phase        `json:"current_phase,omitempty"`
	Budget            proto.ContextBudget `json:"budget"`
	PendingApproval   bool                `json:"pending_approval"`
	TotalTokens       int                 `json:"total_tokens"`
}

// entry bundles one mission's controller with the plumbing the registry owns
// for it: the alert forwarder and, when persistence is enabled, the database
// handle to close on removal.
type entry struct {
	ctrl    *controller.Controller
	monitor *budget.Monitor
	alertCh chan proto.BudgetAlert
	done    chan struct{}
	db      *sql.DB
}

// Registry manages the live missions, keyed by task id.
type Registry struct {
	mu       sync.RWMutex
	cfg      config.Config
	analyzer *analyzer.Analyzer
	planner  *planner.Planner
	recorder metrics.Recorder
	logger   *logx.Logger
	missions map[string]*entry
	events   chan proto.MissionEvent
}

// NewRegistry creates a registry from a config snapshot. The analyzer's
// pattern tables are loaded once here and shared read-only by every mission.
func NewRegistry(cfg config.Config) (*Registry, error) {
	var tables *analyzer.PatternTables
	if cfg.Analyzer.PatternFile != "" {
		var err error
		tables, err = analyzer.LoadPatternTables(cfg.Analyzer.PatternFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load pattern tables: %w", err)
		}
	}

	an := analyzer.NewWithTables(analyzer.Config{
		LowThreshold:    cfg.Analyzer.LowThreshold,
		MediumThreshold: cfg.Analyzer.MediumThreshold,
		HighThreshold:   cfg.Analyzer.HighThreshold,
		TokensPerPhase:  cfg.Execution.TokenBudgetPerPhase,
	}, tables)

	var recorder metrics.Recorder = metrics.NopRecorder{}
	if cfg.Metrics.Enabled {
		recorder = metrics.NewPrometheusRecorder()
	}

	return &Registry{
		cfg:      cfg,
		analyzer: an,
		planner:  planner.New(planner.Config{TokensPerPhase: cfg.Execution.TokenBudgetPerPhase}),
		recorder: recorder,
		logger:   logx.NewLogger("mission"),
		missions: make(map[string]*entry),
		events:   make(chan proto.MissionEvent, 64),
	}, nil
}

// Events returns the channel carrying mission notifications: phase-update,
// approval-needed, phase-complete, all-phases-complete, budget-alert.
// Producers never block; a slow consumer drops events.
func (r *Registry) Events() <-chan proto.MissionEvent {
	return r.events
}

// AnalyzeAndPrepare scores the requirement, decides the execution mode, and
// starts a controller for the task. A non-empty persistDir enables a durable
// SQLite state store under that directory.
func (r *Registry) AnalyzeAndPrepare(ctx context.Context, taskID, requirement, persistDir string) (*PrepareResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.missions[taskID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrMissionExists, taskID)
	}

	ctx = logx.WithTaskID(ctx, taskID)

	score, err := r.analyzer.Analyze(ctx, requirement, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze requirement: %w", err)
	}
	logx.Debug(ctx, "mission", "Analyzed requirement: score=%d level=%s recommendation=%s est=%d",
		score.Score, score.Level, score.Recommendation, score.EstimatedTokens)

	var store controller.StateStore
	var db *sql.DB
	if persistDir != "" {
		db, err = persistence.OpenDatabase(filepath.Join(persistDir, MissionDBFilename))
		if err != nil {
			return nil, logx.Wrap(err, "failed to open mission store")
		}
		store = persistence.NewMissionStore(db)
	}

	exec := r.cfg.Execution
	monitor := budget.NewMonitor(budget.Config{
		TotalBudget:     exec.TokenBudgetPerPhase,
		WarningPercent:  r.cfg.Monitor.WarningPercent,
		CriticalPercent: r.cfg.Monitor.CriticalPercent,
		WrapUpReserve:   exec.WrapUpReserve,
	})

	ctrl := controller.New(taskID, controller.Config{
		TokenBudgetPerPhase:          exec.TokenBudgetPerPhase,
		RequireApprovalBetweenPhases: exec.RequireApprovalBetweenPhases,
		AutoApprove:                  exec.AutoApprove,
	}, r.analyzer, monitor, store, r.recorder)
	ctrl.SetEventChannel(r.events)

	result := &PrepareResult{Mode: proto.ModeSingle, Score: score}

	phased := exec.Enabled &&
		score.Recommendation == proto.RecommendSplitPhases &&
		score.Score >= exec.PhasedExecutionThreshold
	if phased {
		plan, err := r.planner.Plan(score, requirement)
		if err != nil {
			r.closeDB(db)
			return nil, fmt.Errorf("failed to plan phases: %w", err)
		}
		if err := ctrl.StartPhasedExecution(requirement, plan.Phases); err != nil {
			r.closeDB(db)
			return nil, err
		}
		if err := ctrl.BeginPhaseExecution(); err != nil {
			r.closeDB(db)
			return nil, err
		}
		result.Mode = proto.ModePhased
		result.Phases = append([]proto.Phase{}, plan.Phases...)
		result.StrategyUsed = plan.StrategyUsed
	} else {
		if err := ctrl.StartSingleExecution(requirement, score.EstimatedTokens); err != nil {
			r.closeDB(db)
			return nil, err
		}
	}
	result.PromptContext = ctrl.GetPhasePromptContext()

	e := &entry{
		ctrl:    ctrl,
		monitor: monitor,
		alertCh: make(chan proto.BudgetAlert, 8),
		done:    make(chan struct{}),
		db:      db,
	}
	monitor.SetAlertChannel(e.alertCh)
	go r.forwardAlerts(taskID, e)

	r.missions[taskID] = e
	r.logger.Info("Mission %s prepared: mode=%s score=%d level=%s", taskID, result.Mode, score.Score, score.Level)

	return result, nil
}

// ResumeMission rehydrates a mission from a persistence location after a
// host restart. The controller resumes in the exact persisted state; the
// budget monitor starts a fresh window for the current phase.
func (r *Registry) ResumeMission(taskID, persistDir string) (*proto.PhaseExecutionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.missions[taskID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrMissionExists, taskID)
	}

	db, err := persistence.OpenDatabase(filepath.Join(persistDir, MissionDBFilename))
	if err != nil {
		return nil, logx.Wrap(err, "failed to open mission store")
	}
	store := persistence.NewMissionStore(db)

	state, err := store.LoadMission(taskID)
	if err != nil {
		r.closeDB(db)
		return nil, err
	}

	exec := r.cfg.Execution
	monitor := budget.NewMonitor(budget.Config{
		TotalBudget:     exec.TokenBudgetPerPhase,
		WarningPercent:  r.cfg.Monitor.WarningPercent,
		CriticalPercent: r.cfg.Monitor.CriticalPercent,
		WrapUpReserve:   exec.WrapUpReserve,
	})

	ctrl := controller.New(taskID, controller.Config{
		TokenBudgetPerPhase:          exec.TokenBudgetPerPhase,
		RequireApprovalBetweenPhases: exec.RequireApprovalBetweenPhases,
		AutoApprove:                  exec.AutoApprove,
	}, r.analyzer, monitor, store, r.recorder)
	ctrl.SetEventChannel(r.events)
	ctrl.Restore(state)

	if phase := ctrl.GetCurrentPhase(); phase != nil {
		monitor.ResetForPhase(phase.ID, exec.TokenBudgetPerPhase)
	}

	e := &entry{
		ctrl:    ctrl,
		monitor: monitor,
		alertCh: make(chan proto.BudgetAlert, 8),
		done:    make(chan struct{}),
		db:      db,
	}
	monitor.SetAlertChannel(e.alertCh)
	go r.forwardAlerts(taskID, e)

	r.missions[taskID] = e
	r.logger.Info("Mission %s resumed: state=%s phase=%d/%d", taskID, state.State, state.CurrentPhaseIndex+1, len(state.Phases))

	return state, nil
}

// GetPromptContext returns the current prompt context block, or "" for an
// unknown task.
func (r *Registry) GetPromptContext(taskID string) string {
	if e := r.lookup(taskID); e != nil {
		return e.ctrl.GetPhasePromptContext()
	}
	return ""
}

// TrackTokens records token usage for a mission. Unknown tasks are ignored.
func (r *Registry) TrackTokens(taskID string, kind proto.UsageKind, tokens int, source string) {
	if e := r.lookup(taskID); e != nil {
		e.ctrl.TrackTokens(kind, tokens, source)
	}
}

// TrackText estimates and records the token cost of text for a mission.
func (r *Registry) TrackText(taskID string, kind proto.UsageKind, text, source string) {
	if e := r.lookup(taskID); e != nil {
		e.ctrl.TrackText(kind, text, source)
	}
}

// ShouldEndPhase reports whether the mission's current phase must stop.
// False for unknown tasks.
func (r *Registry) ShouldEndPhase(taskID string) bool {
	if e := r.lookup(taskID); e != nil {
		return e.ctrl.ShouldTriggerPhaseBoundary()
	}
	return false
}

// CompleteCurrentPhase records the current phase's outcome.
// Returns (false, false) for unknown tasks.
func (r *Registry) CompleteCurrentPhase(taskID, summary string, filesCreated, filesModified, verificationResults []string) (continueToNext, isComplete bool) {
	if e := r.lookup(taskID); e != nil {
		return e.ctrl.CompletePhase(summary, filesCreated, filesModified, verificationResults)
	}
	return false, false
}

// ProvideApproval resolves a pending approval gate. Unknown tasks are ignored.
func (r *Registry) ProvideApproval(taskID string, approved bool, feedback string) {
	e := r.lookup(taskID)
	if e == nil {
		return
	}
	decision := proto.ApprovalRejected
	if approved {
		decision = proto.ApprovalApproved
	}
	e.ctrl.ProvideApproval(decision, feedback)
}

// SkipPhase skips the mission's current phase. Unknown tasks are ignored.
func (r *Registry) SkipPhase(taskID, reason string) {
	if e := r.lookup(taskID); e != nil {
		e.ctrl.SkipCurrentPhase(reason)
	}
}

// AbortMission aborts the mission. Unknown tasks are ignored.
func (r *Registry) AbortMission(taskID, reason string) {
	if e := r.lookup(taskID); e != nil {
		e.ctrl.AbortMission(reason)
	}
}

// HasPendingApproval reports whether the mission has an open approval gate.
// False for unknown tasks.
func (r *Registry) HasPendingApproval(taskID string) bool {
	if e := r.lookup(taskID); e != nil {
		return e.ctrl.HasPendingApproval()
	}
	return false
}

// GetPhaseInfo returns the mission's read projection, or nil for an unknown
// task.
func (r *Registry) GetPhaseInfo(taskID string) *PhaseInfo {
	e := r.lookup(taskID)
	if e == nil {
		return nil
	}

	state := e.ctrl.GetState()
	return &PhaseInfo{
		TaskID:            taskID,
		Mode:              state.Mode,
		State:             state.State,
		CurrentPhaseIndex: state.CurrentPhaseIndex,
		TotalPhases:       len(state.Phases),
		CurrentPhase:      e.ctrl.GetCurrentPhase(),
		Budget:            e.ctrl.GetBudget(),
		PendingApproval:   state.PendingApproval,
		TotalTokens:       state.TotalTokens,
	}
}

// GetState returns the mission's full aggregate, or nil for an unknown task.
func (r *Registry) GetState(taskID string) *proto.PhaseExecutionState {
	if e := r.lookup(taskID); e != nil {
		return e.ctrl.GetState()
	}
	return nil
}

// GenerateReport renders a human-readable progress report for the mission,
// or "" for an unknown task.
func (r *Registry) GenerateReport(taskID string) string {
	e := r.lookup(taskID)
	if e == nil {
		return ""
	}
	return renderReport(e.ctrl.GetState(), e.ctrl.GetBudget())
}

// RemoveMission drops a mission from the registry and releases its
// resources. The persisted state, if any, survives for later resume.
func (r *Registry) RemoveMission(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.missions[taskID]
	if !ok {
		return
	}
	delete(r.missions, taskID)
	close(e.done)
	r.closeDB(e.db)
}

// Close releases every mission's resources. The registry is unusable after.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for taskID, e := range r.missions {
		delete(r.missions, taskID)
		close(e.done)
		r.closeDB(e.db)
	}
}

func (r *Registry) lookup(taskID string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.missions[taskID]
}

// forwardAlerts republishes one mission's budget alerts as mission events,
// tagged with the task id the monitor does not know about.
func (r *Registry) forwardAlerts(taskID string, e *entry) {
	for {
		select {
		case alert := <-e.alertCh:
			b := alert.Budget
			event := proto.MissionEvent{
				Kind:      proto.EventBudgetAlert,
				TaskID:    taskID,
				Budget:    &b,
				Message:   string(alert.Status),
				Timestamp: alert.Timestamp,
			}
			select {
			case r.events <- event:
			default:
			}
			r.recorder.RecordBudgetAlert(string(alert.Status))
		case <-e.done:
			return
		}
	}
}

func (r *Registry) closeDB(db *sql.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		r.logger.Warn("Failed to close mission store: %v", err)
	}
}
