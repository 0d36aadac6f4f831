package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"missionctl/pkg/proto"
)

func newTestStore(t *testing.T) *MissionStore {
	t.Helper()

	db, err := OpenDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewMissionStore(db)
}

func sampleState(taskID string) *proto.PhaseExecutionState {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &proto.PhaseExecutionState{
		TaskID:            taskID,
		Mode:              proto.ModePhased,
		State:             proto.StateAwaitingApproval,
		Requirement:       "Build the ingestion pipeline",
		CurrentPhaseIndex: 0,
		PendingApproval:   true,
		TotalTokens:       4200,
		Score: &proto.ComplexityScore{
			Level:           proto.LevelHigh,
			Score:           55,
			EstimatedTokens: 60000,
			Recommendation:  proto.RecommendSplitPhases,
			SuggestedPhases: 2,
		},
		Phases: []proto.Phase{
			{ID: "ph-1", Ordinal: 0, Name: "Phase 1: ingest", Description: "ingest", Status: proto.PhaseStatusCompleted, EstimatedTokens: 30000},
			{ID: "ph-2", Ordinal: 1, Name: "Phase 2: query", Description: "query", Status: proto.PhaseStatusPending, EstimatedTokens: 30000},
		},
		PhaseResults: []proto.PhaseResult{
			{
				PhaseID:             "ph-1",
				Status:              proto.PhaseStatusCompleted,
				TokensUsed:          4200,
				Summary:             "ingest done",
				FilesCreated:        []string{"ingest.go"},
				FilesModified:       []string{"main.go"},
				VerificationResults: []string{"go test ok"},
				CompletedAt:         now,
			},
		},
		UpdatedAt: now,
	}
}

func TestSaveAndLoadMission(t *testing.T) {
	store := newTestStore(t)
	state := sampleState("task-rt")

	require.NoError(t, store.SaveMission(state))
	loaded, err := store.LoadMission("task-rt")
	require.NoError(t, err)

	assert.Equal(t, state.Mode, loaded.Mode)
	assert.Equal(t, state.State, loaded.State)
	assert.Equal(t, state.Requirement, loaded.Requirement)
	assert.Equal(t, state.CurrentPhaseIndex, loaded.CurrentPhaseIndex)
	assert.Equal(t, state.PendingApproval, loaded.PendingApproval)
	assert.Equal(t, state.TotalTokens, loaded.TotalTokens)

	require.NotNil(t, loaded.Score)
	assert.Equal(t, state.Score.Level, loaded.Score.Level)
	assert.Equal(t, state.Score.Score, loaded.Score.Score)

	require.Len(t, loaded.Phases, 2)
	assert.Equal(t, state.Phases[0], loaded.Phases[0])
	assert.Equal(t, state.Phases[1], loaded.Phases[1])

	require.Len(t, loaded.PhaseResults, 1)
	assert.Equal(t, state.PhaseResults[0].Summary, loaded.PhaseResults[0].Summary)
	assert.Equal(t, state.PhaseResults[0].FilesCreated, loaded.PhaseResults[0].FilesCreated)
	assert.Equal(t, state.PhaseResults[0].VerificationResults, loaded.PhaseResults[0].VerificationResults)
}

func TestSaveMissionIsUpsert(t *testing.T) {
	store := newTestStore(t)
	state := sampleState("task-up")
	require.NoError(t, store.SaveMission(state))

	state.State = proto.StateComplete
	state.CurrentPhaseIndex = 2
	state.Phases[1].Status = proto.PhaseStatusCompleted
	require.NoError(t, store.SaveMission(state))

	loaded, err := store.LoadMission("task-up")
	require.NoError(t, err)
	assert.Equal(t, proto.StateComplete, loaded.State)
	assert.Equal(t, 2, loaded.CurrentPhaseIndex)
	assert.Equal(t, proto.PhaseStatusCompleted, loaded.Phases[1].Status)

	ids, err := store.ListMissionIDs()
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestLoadMissingMission(t *testing.T) {
	store := newTestStore(t)
	_, err := store.LoadMission("nope")
	require.ErrorIs(t, err, ErrMissionNotFound)
}

func TestRecordAndSumUsage(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveMission(sampleState("task-u")))

	events := []proto.UsageEvent{
		{ID: "ev-1", Kind: proto.UsagePrompt, Tokens: 100, Source: "llm", PhaseID: "ph-1", Timestamp: time.Now().UTC()},
		{ID: "ev-2", Kind: proto.UsageResponse, Tokens: 250, Source: "llm", PhaseID: "ph-1", Timestamp: time.Now().UTC()},
		{ID: "ev-3", Kind: proto.UsageToolResult, Tokens: 40, Source: "tool", PhaseID: "ph-2", Timestamp: time.Now().UTC()},
	}
	for i := range events {
		require.NoError(t, store.RecordUsage("task-u", &events[i]))
	}

	usage, err := store.UsageByPhase("task-u")
	require.NoError(t, err)
	assert.Equal(t, 350, usage["ph-1"])
	assert.Equal(t, 40, usage["ph-2"])
}

func TestDeleteMission(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveMission(sampleState("task-d")))
	require.NoError(t, store.RecordUsage("task-d", &proto.UsageEvent{
		ID: "ev-d", Kind: proto.UsagePrompt, Tokens: 10, PhaseID: "ph-1", Timestamp: time.Now().UTC(),
	}))

	require.NoError(t, store.DeleteMission("task-d"))

	_, err := store.LoadMission("task-d")
	require.ErrorIs(t, err, ErrMissionNotFound)
	usage, err := store.UsageByPhase("task-d")
	require.NoError(t, err)
	assert.Empty(t, usage)
}

func TestSchemaVersionRecorded(t *testing.T) {
	db, err := OpenDatabase(filepath.Join(t.TempDir(), "ver.db"))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}
