package service

import (
	"errors"
	"sync"
	"time"

	"github.com/Harshitk-cp/concord/internal/domain"
)

var ErrNegativeDelta = errors.New("coherence delta must be non-negative")

// CoherenceEntry is one accounting step. Phase records which transition produced the
// delta, so detection (REFLECT) and resolution (REVISE) contributions stay separable.
type CoherenceEntry struct {
	Phase        domain.Phase `json:"phase"`
	Delta        float64      `json:"delta"`
	RunningTotal float64      `json:"running_total"`
	Timestamp    time.Time    `json:"timestamp"`
}

// CoherenceTracker is a monotonic counter over contradictions processed.
type CoherenceTracker struct {
	mu      sync.RWMutex
	total   float64
	entries []CoherenceEntry
	now     func() time.Time
}

func NewCoherenceTracker() *CoherenceTracker {
	return &CoherenceTracker{now: time.Now}
}

// Update appends exactly one entry and returns the new running total.
func (t *CoherenceTracker) Update(phase domain.Phase, delta float64) (float64, error) {
	if delta < 0 {
		return 0, ErrNegativeDelta
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.total += delta
	t.entries = append(t.entries, CoherenceEntry{
		Phase:        phase,
		Delta:        delta,
		RunningTotal: t.total,
		Timestamp:    t.now(),
	})
	return t.total, nil
}

func (t *CoherenceTracker) Total() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// Ratio is the running total per entry, or 1.0 before any update.
func (t *CoherenceTracker) Ratio() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.entries) == 0 {
		return 1.0
	}
	return t.total / float64(len(t.entries))
}

// PhaseTotal sums the deltas contributed by one phase.
func (t *CoherenceTracker) PhaseTotal(phase domain.Phase) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sum := 0.0
	for _, e := range t.entries {
		if e.Phase == phase {
			sum += e.Delta
		}
	}
	return sum
}

func (t *CoherenceTracker) Entries() []CoherenceEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]CoherenceEntry(nil), t.entries...)
}
