package domain

import "time"

// SharedUnderstanding is the agreed fact set plus the contradiction backlog common to
// all coordinating agents. Version only increments on a successful mutation.
type SharedUnderstanding struct {
	ID                   string             `json:"id"`
	Version              int                `json:"version"`
	Facts                map[string]any     `json:"established_facts"`
	ActiveContradictions []*Contradiction   `json:"active_contradictions"`
	Pending              []PendingConflict  `json:"-"`
	Resolutions          []ResolvedConflict `json:"resolutions,omitempty"`
	Participants         map[string]bool    `json:"participating_agents"`
	Confidence           float64            `json:"confidence"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// PendingConflict keeps what is needed to retry an unresolved grounding conflict.
// Previous is the value withdrawn from the established facts.
type PendingConflict struct {
	Key           string
	Previous      any
	Incoming      any
	Source        string
	Contradiction *Contradiction
}

// ResolvedConflict records how a conflicting fact made it into the shared understanding.
type ResolvedConflict struct {
	Key         string    `json:"key"`
	Previous    any       `json:"previous"`
	Incoming    any       `json:"incoming"`
	Source      string    `json:"source"`
	CycleID     string    `json:"cycle_id"`
	Method      string    `json:"method"`
	LearnedRule string    `json:"learned_rule,omitempty"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

// UnderstandingSnapshot is what gets pushed to agents on synchronization.
type UnderstandingSnapshot struct {
	Version   int            `json:"understanding_version"`
	Facts     map[string]any `json:"established_facts"`
	UpdatedAt time.Time      `json:"last_updated"`
}
