package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrCauseEffectViolation is returned when an effect cannot be traced to a recorded cause.
var ErrCauseEffectViolation = errors.New("cause-effect violation")

// CauseEffectError describes which chain failed validation and why.
type CauseEffectError struct {
	CycleID   string
	Iteration int
	Reason    string
}

func (e *CauseEffectError) Error() string {
	return fmt.Sprintf("cause-effect violation in cycle %s iteration %d: %s", e.CycleID, e.Iteration, e.Reason)
}

func (e *CauseEffectError) Unwrap() error {
	return ErrCauseEffectViolation
}

type ContradictionStateKind string

const (
	StateDetected ContradictionStateKind = "detected"
	StateResolved ContradictionStateKind = "resolved"
	StateRetained ContradictionStateKind = "retained"
)

// ContradictionState is one entry of a causation chain's contradiction log.
type ContradictionState struct {
	ContradictionID string                 `json:"contradiction_id"`
	State           ContradictionStateKind `json:"state"`
	At              time.Time              `json:"at"`
}

// CausationChain proves that an iteration's output effect derives from a recorded
// input cause and an ordered reasoning trail. There is one chain per (cycle, iteration).
type CausationChain struct {
	CycleID        string               `json:"cycle_id"`
	Iteration      int                  `json:"iteration"`
	InputCause     string               `json:"input_cause"`
	ReasoningSteps []string             `json:"reasoning_steps"`
	StateLog       []ContradictionState `json:"contradiction_state_log"`
	OutputEffect   *string              `json:"output_effect"`
	Unresolved     map[string]bool      `json:"unresolved_ids"`
	Energy         float64              `json:"energy"`
	CreatedAt      time.Time            `json:"created_at"`
	SealedAt       *time.Time           `json:"sealed_at,omitempty"`
}

func NewCausationChain(cycleID string, iteration int, inputCause string, now time.Time) *CausationChain {
	return &CausationChain{
		CycleID:    cycleID,
		Iteration:  iteration,
		InputCause: inputCause,
		Unresolved: make(map[string]bool),
		CreatedAt:  now,
	}
}

func (c *CausationChain) AddStep(step string) {
	c.ReasoningSteps = append(c.ReasoningSteps, step)
}

func (c *CausationChain) MarkDetected(id string, at time.Time) {
	c.Unresolved[id] = true
	c.StateLog = append(c.StateLog, ContradictionState{ContradictionID: id, State: StateDetected, At: at})
}

func (c *CausationChain) MarkResolved(id string, at time.Time) {
	delete(c.Unresolved, id)
	c.StateLog = append(c.StateLog, ContradictionState{ContradictionID: id, State: StateResolved, At: at})
}

func (c *CausationChain) MarkRetained(id string, at time.Time) {
	c.StateLog = append(c.StateLog, ContradictionState{ContradictionID: id, State: StateRetained, At: at})
}

// UnresolvedIDs returns the unresolved contradiction ids in sorted order.
func (c *CausationChain) UnresolvedIDs() []string {
	ids := make([]string, 0, len(c.Unresolved))
	for id := range c.Unresolved {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Seal records the output effect. It does not validate; call Validate afterwards.
func (c *CausationChain) Seal(effect string, at time.Time) {
	c.OutputEffect = &effect
	c.SealedAt = &at
}

// Validate is the single enforcement point for "no effect without a recorded cause".
// It never mutates the chain and may be called any number of times.
func (c *CausationChain) Validate() error {
	if c == nil {
		return &CauseEffectError{Reason: "no causation chain recorded"}
	}
	if c.InputCause == "" {
		return &CauseEffectError{CycleID: c.CycleID, Iteration: c.Iteration, Reason: "empty input cause"}
	}
	if len(c.ReasoningSteps) == 0 {
		return &CauseEffectError{CycleID: c.CycleID, Iteration: c.Iteration, Reason: "no reasoning steps recorded"}
	}
	return nil
}
