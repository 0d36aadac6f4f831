package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"missionctl/pkg/proto"
)

// ErrMissionNotFound is returned by LoadMission when no row exists for the task.
var ErrMissionNotFound = errors.New("mission not found")

// MissionStore provides persistence for mission aggregates and the token
// usage ledger. It implements the controller's StateStore interface.
type MissionStore struct {
	db *sql.DB
}

// NewMissionStore creates a store bound to an open database connection.
func NewMissionStore(db *sql.DB) *MissionStore {
	return &MissionStore{db: db}
}

// SaveMission upserts the mission aggregate. Phases are replaced wholesale
// since the controller owns the full plan; phase results are upserted so the
// audit trail only grows.
func (s *MissionStore) SaveMission(state *proto.PhaseExecutionState) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	scoreJSON, err := marshalNullable(state.Score)
	if err != nil {
		return fmt.Errorf("failed to marshal complexity score: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO missions (task_id, mode, state, requirement, current_phase_index, pending_approval, total_tokens, score, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			mode = excluded.mode,
			state = excluded.state,
			requirement = excluded.requirement,
			current_phase_index = excluded.current_phase_index,
			pending_approval = excluded.pending_approval,
			total_tokens = excluded.total_tokens,
			score = excluded.score,
			updated_at = excluded.updated_at
	`, state.TaskID, string(state.Mode), string(state.State), state.Requirement,
		state.CurrentPhaseIndex, boolToInt(state.PendingApproval), state.TotalTokens,
		scoreJSON, state.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert mission %s: %w", state.TaskID, err)
	}

	if _, err := tx.Exec("DELETE FROM phases WHERE task_id = ?", state.TaskID); err != nil {
		return fmt.Errorf("failed to clear phases for %s: %w", state.TaskID, err)
	}
	for i := range state.Phases {
		p := &state.Phases[i]
		_, err := tx.Exec(`
			INSERT INTO phases (id, task_id, ordinal, name, description, status, estimated_tokens)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, p.ID, state.TaskID, p.Ordinal, p.Name, p.Description, string(p.Status), p.EstimatedTokens)
		if err != nil {
			return fmt.Errorf("failed to insert phase %s: %w", p.ID, err)
		}
	}

	for i := range state.PhaseResults {
		r := &state.PhaseResults[i]
		created, err := marshalNullable(r.FilesCreated)
		if err != nil {
			return fmt.Errorf("failed to marshal files created: %w", err)
		}
		modified, err := marshalNullable(r.FilesModified)
		if err != nil {
			return fmt.Errorf("failed to marshal files modified: %w", err)
		}
		verification, err := marshalNullable(r.VerificationResults)
		if err != nil {
			return fmt.Errorf("failed to marshal verification results: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO phase_results (phase_id, task_id, status, tokens_used, summary, files_created, files_modified, verification_results, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(phase_id) DO UPDATE SET
				status = excluded.status,
				tokens_used = excluded.tokens_used,
				summary = excluded.summary,
				files_created = excluded.files_created,
				files_modified = excluded.files_modified,
				verification_results = excluded.verification_results,
				completed_at = excluded.completed_at
		`, r.PhaseID, state.TaskID, string(r.Status), r.TokensUsed, r.Summary,
			created, modified, verification, r.CompletedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("failed to upsert phase result %s: %w", r.PhaseID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mission %s: %w", state.TaskID, err)
	}
	return nil
}

// LoadMission reads the full mission aggregate for a task.
// Returns ErrMissionNotFound if the task has never been persisted.
func (s *MissionStore) LoadMission(taskID string) (*proto.PhaseExecutionState, error) {
	state := &proto.PhaseExecutionState{TaskID: taskID}

	var mode, missionState, scoreJSON, updatedAt string
	var pendingApproval int
	err := s.db.QueryRow(`
		SELECT mode, state, requirement, current_phase_index, pending_approval, total_tokens, COALESCE(score, ''), updated_at
		FROM missions WHERE task_id = ?
	`, taskID).Scan(&mode, &missionState, &state.Requirement, &state.CurrentPhaseIndex,
		&pendingApproval, &state.TotalTokens, &scoreJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMissionNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mission %s: %w", taskID, err)
	}

	state.Mode = proto.ExecutionMode(mode)
	state.State = proto.MissionState(missionState)
	state.PendingApproval = pendingApproval != 0
	if scoreJSON != "" {
		var score proto.ComplexityScore
		if err := json.Unmarshal([]byte(scoreJSON), &score); err != nil {
			return nil, fmt.Errorf("failed to unmarshal complexity score: %w", err)
		}
		state.Score = &score
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		state.UpdatedAt = ts
	}

	phases, err := s.loadPhases(taskID)
	if err != nil {
		return nil, err
	}
	state.Phases = phases

	results, err := s.loadResults(taskID)
	if err != nil {
		return nil, err
	}
	state.PhaseResults = results

	return state, nil
}

func (s *MissionStore) loadPhases(taskID string) ([]proto.Phase, error) {
	rows, err := s.db.Query(`
		SELECT id, ordinal, name, description, status, estimated_tokens
		FROM phases WHERE task_id = ? ORDER BY ordinal ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query phases for %s: %w", taskID, err)
	}
	defer func() { _ = rows.Close() }()

	var phases []proto.Phase
	for rows.Next() {
		var p proto.Phase
		var status string
		if err := rows.Scan(&p.ID, &p.Ordinal, &p.Name, &p.Description, &status, &p.EstimatedTokens); err != nil {
			return nil, fmt.Errorf("failed to scan phase row: %w", err)
		}
		p.Status = proto.PhaseStatus(status)
		phases = append(phases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("phase rows error: %w", err)
	}
	return phases, nil
}

func (s *MissionStore) loadResults(taskID string) ([]proto.PhaseResult, error) {
	rows, err := s.db.Query(`
		SELECT pr.phase_id, pr.status, pr.tokens_used, COALESCE(pr.summary, ''),
			COALESCE(pr.files_created, ''), COALESCE(pr.files_modified, ''),
			COALESCE(pr.verification_results, ''), COALESCE(pr.completed_at, '')
		FROM phase_results pr
		JOIN phases p ON p.id = pr.phase_id
		WHERE pr.task_id = ? ORDER BY p.ordinal ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query phase results for %s: %w", taskID, err)
	}
	defer func() { _ = rows.Close() }()

	var results []proto.PhaseResult
	for rows.Next() {
		var r proto.PhaseResult
		var status, created, modified, verification, completedAt string
		if err := rows.Scan(&r.PhaseID, &status, &r.TokensUsed, &r.Summary,
			&created, &modified, &verification, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan phase result row: %w", err)
		}
		r.Status = proto.PhaseStatus(status)
		if err := unmarshalStrings(created, &r.FilesCreated); err != nil {
			return nil, err
		}
		if err := unmarshalStrings(modified, &r.FilesModified); err != nil {
			return nil, err
		}
		if err := unmarshalStrings(verification, &r.VerificationResults); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, completedAt); err == nil {
			r.CompletedAt = ts
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("phase result rows error: %w", err)
	}
	return results, nil
}

// RecordUsage appends one usage event to the ledger. Fire-and-forget from the
// caller's perspective; the monitor keeps its own in-memory copy.
func (s *MissionStore) RecordUsage(taskID string, event *proto.UsageEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO usage_events (id, task_id, phase_id, kind, tokens, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, event.ID, taskID, event.PhaseID, string(event.Kind), event.Tokens, event.Source,
		event.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record usage event: %w", err)
	}
	return nil
}

// UsageByPhase returns total tokens recorded per phase for a task.
func (s *MissionStore) UsageByPhase(taskID string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT COALESCE(phase_id, ''), SUM(tokens)
		FROM usage_events WHERE task_id = ? GROUP BY phase_id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage for %s: %w", taskID, err)
	}
	defer func() { _ = rows.Close() }()

	usage := make(map[string]int)
	for rows.Next() {
		var phaseID string
		var tokens int
		if err := rows.Scan(&phaseID, &tokens); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		usage[phaseID] = tokens
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("usage rows error: %w", err)
	}
	return usage, nil
}

// ListMissionIDs returns the task ids of every persisted mission, most
// recently updated first.
func (s *MissionStore) ListMissionIDs() ([]string, error) {
	rows, err := s.db.Query("SELECT task_id FROM missions ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan mission id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mission id rows error: %w", err)
	}
	return ids, nil
}

// DeleteMission removes a mission and its phases, results, and usage events.
func (s *MissionStore) DeleteMission(taskID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// usage_events has no FK to missions, delete explicitly
	if _, err := tx.Exec("DELETE FROM usage_events WHERE task_id = ?", taskID); err != nil {
		return fmt.Errorf("failed to delete usage events for %s: %w", taskID, err)
	}
	if _, err := tx.Exec("DELETE FROM missions WHERE task_id = ?", taskID); err != nil {
		return fmt.Errorf("failed to delete mission %s: %w", taskID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete of %s: %w", taskID, err)
	}
	return nil
}

func marshalNullable(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	switch t := v.(type) {
	case *proto.ComplexityScore:
		if t == nil {
			return "", nil
		}
	case []string:
		if len(t) == 0 {
			return "", nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalStrings(data string, dst *[]string) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), dst); err != nil {
		return fmt.Errorf("failed to unmarshal string list: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
