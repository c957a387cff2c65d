package domain

import "time"

// CoordinationStatus is an agent's relation to the shared understanding.
// synchronized ⇄ synchronizing → {synchronized | autonomous}; autonomous is only
// left through a fresh successful sync.
type CoordinationStatus string

const (
	StatusSynchronized  CoordinationStatus = "synchronized"
	StatusSynchronizing CoordinationStatus = "synchronizing"
	StatusAutonomous    CoordinationStatus = "autonomous"
)

// AgentConfig is one roster entry.
type AgentConfig struct {
	ID   string `yaml:"id" json:"id"`
	Role string `yaml:"role" json:"role"`
	URL  string `yaml:"url" json:"url"`
}

type AgentState struct {
	ID                 string             `json:"id"`
	Role               string             `json:"role"`
	LocalUnderstanding map[string]any     `json:"local_understanding,omitempty"`
	SyncedVersion      int                `json:"synced_version"`
	CapabilityActive   bool               `json:"capability_active"`
	Status             CoordinationStatus `json:"status"`
	LastHeartbeat      time.Time          `json:"last_heartbeat"`
}
