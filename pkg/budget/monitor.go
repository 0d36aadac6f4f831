// Package budget tracks cumulative token consumption against a per-phase
// ceiling, classifies budget health, and signals when a phase must end.
// No operation fails: malformed input and overruns degrade to clamped,
// best-effort values so the caller can always keep driving the mission loop.
package budget

import (
	"sync"
	"time"

	"missionctl/pkg/logx"
	"missionctl/pkg/proto"
	"missionctl/pkg/tokens"
)

// Default thresholds. WrapUpReserve is the token headroom kept back so a
// phase can always produce a closing summary before the window is gone.
const (
	DefaultWarningPercent  = 0.70
	DefaultCriticalPercent = 0.90
	DefaultWrapUpReserve   = 2000
)

// Config holds the monitor thresholds. Zero values fall back to defaults;
// a zero or negative TotalBudget is valid and yields an immediately
// exhausted budget.
type Config struct {
	TotalBudget     int
	WarningPercent  float64
	CriticalPercent float64
	WrapUpReserve   int
}

// Monitor tracks a rolling ledger of typed usage events for one mission.
// Single-writer by design: the controller is the sole caller that mutates.
type Monitor struct {
	mu      sync.Mutex
	cfg     Config
	counter *tokens.Counter
	used    int
	history []proto.UsageEvent
	status  proto.BudgetStatus
	phaseID string
	alertCh chan<- proto.BudgetAlert
	logger  *logx.Logger
}

// NewMonitor creates a monitor backed by the tiktoken counter. If the codec
// cannot be built the monitor degrades to the character heuristic.
func NewMonitor(cfg Config) *Monitor {
	counter, err := tokens.NewCounter()
	if err != nil {
		logx.NewLogger("budget").Warn("Tokenizer codec unavailable, falling back to heuristic estimates: %v", err)
		counter = tokens.NewHeuristicCounter(0, 0)
	}
	return NewMonitorWithCounter(cfg, counter)
}

// NewMonitorWithCounter creates a monitor with a caller-supplied counter,
// e.g. a tiktoken-backed one from tokens.NewCounter.
func NewMonitorWithCounter(cfg Config, counter *tokens.Counter) *Monitor {
	if cfg.WarningPercent <= 0 {
		cfg.WarningPercent = DefaultWarningPercent
	}
	if cfg.CriticalPercent <= 0 {
		cfg.CriticalPercent = DefaultCriticalPercent
	}
	if cfg.WrapUpReserve <= 0 {
		cfg.WrapUpReserve = DefaultWrapUpReserve
	}

	m := &Monitor{
		cfg:     cfg,
		counter: counter,
		history: make([]proto.UsageEvent, 0),
		logger:  logx.NewLogger("budget"),
	}
	m.status = m.statusForUsed(0)
	return m
}

// SetAlertChannel sets the channel receiving one alert per status crossing.
// Sends are non-blocking; a full channel drops the alert.
func (m *Monitor) SetAlertChannel(ch chan<- proto.BudgetAlert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alertCh = ch
}

// EstimateTokens estimates the token count of arbitrary text.
func (m *Monitor) EstimateTokens(text string) int {
	return m.counter.Count(text)
}

// TrackUsage appends a usage event to the ledger, updates the running total,
// and recomputes the budget status. Exactly one alert is emitted per status
// transition into warning/critical/exhausted; transitions into healthy and
// same-status usage never alert. Negative token counts are clamped to zero
// so usage within a phase is monotonically non-decreasing.
func (m *Monitor) TrackUsage(kind proto.UsageKind, tokenCount int, source string) {
	if tokenCount < 0 {
		tokenCount = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	event := proto.UsageEvent{
		ID:        proto.GenerateEventID(),
		Kind:      kind,
		Tokens:    tokenCount,
		Source:    source,
		PhaseID:   m.phaseID,
		Timestamp: time.Now().UTC(),
	}
	m.history = append(m.history, event)
	m.used += tokenCount

	newStatus := m.statusForUsed(m.used)
	if newStatus != m.status {
		oldStatus := m.status
		m.status = newStatus
		if newStatus != proto.BudgetHealthy {
			m.logger.Warn("Budget status %s -> %s (%d/%d tokens)", oldStatus, newStatus, m.used, m.cfg.TotalBudget)
			m.emitAlertLocked(newStatus)
		}
	}
}

// TrackText estimates the token cost of text and records it as usage.
func (m *Monitor) TrackText(kind proto.UsageKind, text, source string) {
	m.TrackUsage(kind, m.EstimateTokens(text), source)
}

// GetBudget returns a snapshot of the current budget. Remaining and
// PercentUsed are clamped so an overrun never reports negative remaining or
// more than 100 percent used.
func (m *Monitor) GetBudget() proto.ContextBudget {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.budgetLocked()
}

func (m *Monitor) budgetLocked() proto.ContextBudget {
	total := m.cfg.TotalBudget
	if total < 0 {
		total = 0
	}

	remaining := total - m.used
	if remaining < 0 {
		remaining = 0
	}

	percent := 100.0
	if total > 0 {
		percent = float64(m.used) / float64(total) * 100.0
		if percent > 100.0 {
			percent = 100.0
		}
	}

	return proto.ContextBudget{
		Total:             total,
		Used:              m.used,
		Remaining:         remaining,
		PercentUsed:       percent,
		Status:            m.status,
		RecommendedAction: proto.ActionForStatus(m.status),
	}
}

// CanAfford reports whether n more tokens fit without eating into the
// wrap-up reserve. Used to gate whether the caller should attempt one more
// LLM turn before ending the phase.
func (m *Monitor) CanAfford(n int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used+n+m.cfg.WrapUpReserve <= m.cfg.TotalBudget
}

// ShouldTriggerPhaseBoundary reports whether the current phase must end:
// status critical or exhausted, or remaining tokens below the wrap-up
// reserve. The controller polls this every agent turn.
func (m *Monitor) ShouldTriggerPhaseBoundary() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == proto.BudgetCritical || m.status == proto.BudgetExhausted {
		return true
	}

	remaining := m.cfg.TotalBudget - m.used
	return remaining < m.cfg.WrapUpReserve
}

// ResetForPhase starts a fresh budget window for a new phase. The event
// ledger is retained across phases as the mission audit trail; only the
// running total and status reset. A non-positive budget keeps the previous
// total.
func (m *Monitor) ResetForPhase(phaseID string, totalBudget int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.phaseID = phaseID
	if totalBudget > 0 {
		m.cfg.TotalBudget = totalBudget
	}
	m.used = 0
	m.status = m.statusForUsed(0)
}

// UsedTokens returns the tokens consumed in the current phase.
func (m *Monitor) UsedTokens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

// Status returns the current budget status.
func (m *Monitor) Status() proto.BudgetStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// History returns a copy of the usage ledger.
func (m *Monitor) History() []proto.UsageEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]proto.UsageEvent{}, m.history...)
}

// PhaseUsage sums the ledger entries tagged with the given phase.
func (m *Monitor) PhaseUsage(phaseID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	sum := 0
	for i := range m.history {
		if m.history[i].PhaseID == phaseID {
			sum += m.history[i].Tokens
		}
	}
	return sum
}

// statusForUsed classifies usage against the configured thresholds. A zero
// or negative total budget is a valid, immediately-exhausted state.
func (m *Monitor) statusForUsed(used int) proto.BudgetStatus {
	total := m.cfg.TotalBudget
	if total <= 0 {
		return proto.BudgetExhausted
	}

	fraction := float64(used) / float64(total)
	switch {
	case fraction >= 1.0:
		return proto.BudgetExhausted
	case fraction >= m.cfg.CriticalPercent:
		return proto.BudgetCritical
	case fraction >= m.cfg.WarningPercent:
		return proto.BudgetWarning
	default:
		return proto.BudgetHealthy
	}
}

// emitAlertLocked sends an alert without blocking. Caller holds m.mu.
func (m *Monitor) emitAlertLocked(status proto.BudgetStatus) {
	if m.alertCh == nil {
		return
	}

	alert := proto.BudgetAlert{
		Status:    status,
		Budget:    m.budgetLocked(),
		PhaseID:   m.phaseID,
		Timestamp: time.Now().UTC(),
	}

	select {
	case m.alertCh <- alert:
	default:
		m.logger.Warn("Budget alert channel full, dropping %s alert", status)
	}
}
