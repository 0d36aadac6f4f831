package proto

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// GenerateMissionID generates a new UUID for a mission.
func GenerateMissionID() string {
	return uuid.New().String()
}

// GenerateEventID generates a new UUID for a usage event.
func GenerateEventID() string {
	return uuid.New().String()
}

// GeneratePhaseID generates an 8-character hex ID for a phase (like git
// commit hashes).
func GeneratePhaseID() (string, error) {
	bytes := make([]byte, 4) // 4 bytes = 8 hex characters
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return fmt.Sprintf("%x", bytes), nil
}

// MustGeneratePhaseID generates a phase ID, falling back to a UUID prefix if
// the system randomness source fails.
func MustGeneratePhaseID() string {
	id, err := GeneratePhaseID()
	if err != nil {
		return uuid.New().String()[:8]
	}
	return id
}
