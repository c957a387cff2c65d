package service

import (
	"errors"
	"testing"

	"github.com/Harshitk-cp/concord/internal/domain"
)

func TestCoherenceTracker_RatioEmpty(t *testing.T) {
	ct := NewCoherenceTracker()
	if r := ct.Ratio(); r != 1.0 {
		t.Fatalf("expected ratio 1.0 on empty tracker, got %v", r)
	}
}

func TestCoherenceTracker_NonDecreasing(t *testing.T) {
	ct := NewCoherenceTracker()
	deltas := []float64{0, 3, 0, 1, 2.5, 0}
	phases := []domain.Phase{domain.PhaseDraft, domain.PhaseReflect, domain.PhaseRevise, domain.PhaseReflect, domain.PhaseRevise, domain.PhaseLearned}

	prev := 0.0
	for i, d := range deltas {
		total, err := ct.Update(phases[i], d)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total < prev {
			t.Fatalf("total decreased from %v to %v", prev, total)
		}
		prev = total
	}

	if got := len(ct.Entries()); got != len(deltas) {
		t.Fatalf("expected %d entries, got %d", len(deltas), got)
	}
	if ct.Total() != 6.5 {
		t.Fatalf("expected total 6.5, got %v", ct.Total())
	}
	if r := ct.Ratio(); r != 6.5/6 {
		t.Fatalf("expected ratio %v, got %v", 6.5/6, r)
	}
}

func TestCoherenceTracker_RejectsNegativeDelta(t *testing.T) {
	ct := NewCoherenceTracker()
	_, _ = ct.Update(domain.PhaseReflect, 2)

	if _, err := ct.Update(domain.PhaseRevise, -1); !errors.Is(err, ErrNegativeDelta) {
		t.Fatalf("expected ErrNegativeDelta, got %v", err)
	}
	if ct.Total() != 2 || len(ct.Entries()) != 1 {
		t.Fatalf("rejected update must not change state, got total=%v entries=%d", ct.Total(), len(ct.Entries()))
	}
}

func TestCoherenceTracker_PhaseTotals(t *testing.T) {
	ct := NewCoherenceTracker()
	_, _ = ct.Update(domain.PhaseReflect, 2)
	_, _ = ct.Update(domain.PhaseRevise, 1)
	_, _ = ct.Update(domain.PhaseReflect, 1)

	if got := ct.PhaseTotal(domain.PhaseReflect); got != 3 {
		t.Fatalf("expected REFLECT total 3, got %v", got)
	}
	if got := ct.PhaseTotal(domain.PhaseRevise); got != 1 {
		t.Fatalf("expected REVISE total 1, got %v", got)
	}
}
