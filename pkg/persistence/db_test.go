package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The singleton is process-global, so the full lifecycle lives in one test:
// Initialize, idempotent re-init, Missions access, Close, re-init after Close.
func TestSingletonLifecycle(t *testing.T) {
	require.False(t, IsInitialized(), "singleton must start uninitialized")

	path := filepath.Join(t.TempDir(), "missions.db")
	require.NoError(t, Initialize(path))
	defer func() { _ = Close() }()

	assert.True(t, IsInitialized())

	// Second Initialize is a no-op and keeps the open connection.
	require.NoError(t, Initialize(filepath.Join(t.TempDir(), "other.db")))
	assert.True(t, IsInitialized())

	state := sampleState("task-singleton")
	require.NoError(t, Missions().SaveMission(state))

	loaded, err := Missions().LoadMission("task-singleton")
	require.NoError(t, err)
	assert.Equal(t, state.TaskID, loaded.TaskID)

	require.NoError(t, Close())
	assert.False(t, IsInitialized())

	// Close releases the slot; a later Initialize opens a fresh connection.
	require.NoError(t, Initialize(path))
	loaded, err = Missions().LoadMission("task-singleton")
	require.NoError(t, err)
	assert.Equal(t, state.TaskID, loaded.TaskID)
}

func TestGetDBPanicsBeforeInitialize(t *testing.T) {
	if IsInitialized() {
		t.Skip("singleton already initialized by another test")
	}
	assert.Panics(t, func() { GetDB() })
}

func TestOpenDatabaseCreatesSchema(t *testing.T) {
	db, err := OpenDatabase(filepath.Join(t.TempDir(), "fresh.db"))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}
