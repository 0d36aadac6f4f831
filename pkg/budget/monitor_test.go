package budget

import (
	"testing"

	"missionctl/pkg/proto"
	"missionctl/pkg/tokens"
)

func TestBudgetInvariant(t *testing.T) {
	m := NewMonitor(Config{TotalBudget: 1000})

	m.TrackUsage(proto.UsagePrompt, 400, "test")
	b := m.GetBudget()
	if b.Used+b.Remaining != b.Total {
		t.Errorf("used %d + remaining %d != total %d", b.Used, b.Remaining, b.Total)
	}

	// Overrun: remaining clamps to 0, percent to 100.
	m.TrackUsage(proto.UsageResponse, 5000, "test")
	b = m.GetBudget()
	if b.Remaining != 0 {
		t.Errorf("expected remaining 0 after overrun, got %d", b.Remaining)
	}
	if b.PercentUsed != 100.0 {
		t.Errorf("expected 100%% used after overrun, got %.1f", b.PercentUsed)
	}
	if b.Used != 5400 {
		t.Errorf("used must keep the true figure, got %d", b.Used)
	}
}

func TestStatusThresholds(t *testing.T) {
	m := NewMonitor(Config{TotalBudget: 1000, WarningPercent: 0.70, CriticalPercent: 0.90, WrapUpReserve: 1})

	m.TrackUsage(proto.UsagePrompt, 699, "test")
	if got := m.Status(); got != proto.BudgetHealthy {
		t.Errorf("at 699/1000 expected healthy, got %s", got)
	}

	m.TrackUsage(proto.UsagePrompt, 1, "test")
	if got := m.Status(); got != proto.BudgetWarning {
		t.Errorf("at 700/1000 expected warning, got %s", got)
	}

	m.TrackUsage(proto.UsagePrompt, 200, "test")
	if got := m.Status(); got != proto.BudgetCritical {
		t.Errorf("at 900/1000 expected critical, got %s", got)
	}

	m.TrackUsage(proto.UsagePrompt, 100, "test")
	if got := m.Status(); got != proto.BudgetExhausted {
		t.Errorf("at 1000/1000 expected exhausted, got %s", got)
	}
}

func TestAlertExactlyOncePerCrossing(t *testing.T) {
	alerts := make(chan proto.BudgetAlert, 16)
	m := NewMonitor(Config{TotalBudget: 1000, WrapUpReserve: 1})
	m.SetAlertChannel(alerts)

	// Cross warning, then stay there, then cross critical and exhausted.
	m.TrackUsage(proto.UsagePrompt, 750, "test") // healthy -> warning
	m.TrackUsage(proto.UsagePrompt, 10, "test")  // still warning, no alert
	m.TrackUsage(proto.UsagePrompt, 150, "test") // -> critical
	m.TrackUsage(proto.UsagePrompt, 200, "test") // -> exhausted
	m.TrackUsage(proto.UsagePrompt, 50, "test")  // still exhausted, no alert

	var got []proto.BudgetStatus
	for {
		select {
		case a := <-alerts:
			got = append(got, a.Status)
			continue
		default:
		}
		break
	}

	want := []proto.BudgetStatus{proto.BudgetWarning, proto.BudgetCritical, proto.BudgetExhausted}
	if len(got) != len(want) {
		t.Fatalf("expected %d alerts, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("alert %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestBoundaryFlipsOnFinalToken(t *testing.T) {
	// Thresholds pushed out of the way so only exhaustion can trigger.
	m := NewMonitor(Config{TotalBudget: 1000, WarningPercent: 0.9999, CriticalPercent: 0.99999, WrapUpReserve: 1})

	m.TrackUsage(proto.UsagePrompt, 999, "test")
	if m.ShouldTriggerPhaseBoundary() {
		t.Fatal("boundary must not trigger at total-1 with headroom left")
	}

	m.TrackUsage(proto.UsagePrompt, 1, "test")
	if m.Status() != proto.BudgetExhausted {
		t.Errorf("expected exhausted at exactly total, got %s", m.Status())
	}
	if !m.ShouldTriggerPhaseBoundary() {
		t.Error("boundary must trigger once the budget is exhausted")
	}
}

func TestBoundaryReservePath(t *testing.T) {
	m := NewMonitor(Config{TotalBudget: 10000, WrapUpReserve: 2000})

	m.TrackUsage(proto.UsagePrompt, 6500, "test")
	if m.ShouldTriggerPhaseBoundary() {
		t.Fatal("boundary must not trigger with 3500 tokens of headroom")
	}

	// 8100 used: status is only warning, but remaining 1900 < reserve 2000.
	m.TrackUsage(proto.UsagePrompt, 1600, "test")
	if m.Status() != proto.BudgetWarning {
		t.Fatalf("expected warning status, got %s", m.Status())
	}
	if !m.ShouldTriggerPhaseBoundary() {
		t.Error("boundary must trigger when remaining dips under the wrap-up reserve")
	}
}

func TestZeroBudgetDegradesToExhausted(t *testing.T) {
	m := NewMonitor(Config{TotalBudget: 0})

	if m.Status() != proto.BudgetExhausted {
		t.Errorf("zero budget should start exhausted, got %s", m.Status())
	}
	b := m.GetBudget()
	if b.PercentUsed != 100.0 || b.Remaining != 0 {
		t.Errorf("zero budget snapshot should read fully used: %+v", b)
	}
	if !m.ShouldTriggerPhaseBoundary() {
		t.Error("zero budget must trigger the phase boundary immediately")
	}
	if m.CanAfford(1) {
		t.Error("zero budget can afford nothing")
	}
}

func TestNegativeTokensClamped(t *testing.T) {
	m := NewMonitor(Config{TotalBudget: 1000})
	m.TrackUsage(proto.UsagePrompt, -50, "test")

	if got := m.UsedTokens(); got != 0 {
		t.Errorf("negative usage must clamp to 0, got %d", got)
	}
}

func TestResetForPhaseKeepsLedger(t *testing.T) {
	m := NewMonitor(Config{TotalBudget: 1000})
	m.ResetForPhase("phase-1", 1000)
	m.TrackUsage(proto.UsagePrompt, 900, "test")

	m.ResetForPhase("phase-2", 2000)
	if got := m.UsedTokens(); got != 0 {
		t.Errorf("reset must zero the running total, got %d", got)
	}
	if got := m.Status(); got != proto.BudgetHealthy {
		t.Errorf("reset must restore healthy status, got %s", got)
	}

	m.TrackUsage(proto.UsageResponse, 300, "test")
	if got := len(m.History()); got != 2 {
		t.Errorf("ledger must survive resets, got %d events", got)
	}
	if got := m.PhaseUsage("phase-1"); got != 900 {
		t.Errorf("phase-1 usage = %d, want 900", got)
	}
	if got := m.PhaseUsage("phase-2"); got != 300 {
		t.Errorf("phase-2 usage = %d, want 300", got)
	}
}

func TestCanAffordRespectsReserve(t *testing.T) {
	m := NewMonitor(Config{TotalBudget: 10000, WrapUpReserve: 2000})

	if !m.CanAfford(8000) {
		t.Error("8000 + 2000 reserve fits exactly in 10000")
	}
	if m.CanAfford(8001) {
		t.Error("8001 + 2000 reserve exceeds 10000")
	}
}

func TestMonitorEstimatesWithCodec(t *testing.T) {
	m := NewMonitor(Config{TotalBudget: 10000})

	// The default monitor counts with the tiktoken codec, which prices short
	// prose below the character heuristic.
	heuristic := tokens.NewHeuristicCounter(0, 0).Estimate("hello world")
	if got := m.EstimateTokens("hello world"); got >= heuristic {
		t.Errorf("monitor estimate %d should use the codec, not the heuristic %d", got, heuristic)
	}
}

func TestTrackTextEstimates(t *testing.T) {
	m := NewMonitor(Config{TotalBudget: 10000})
	m.TrackText(proto.UsageContext, "some ordinary prose content for the conversation", "test")

	if got := m.UsedTokens(); got <= 0 {
		t.Errorf("TrackText must record a positive estimate, got %d", got)
	}
}
