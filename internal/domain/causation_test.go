package domain

import (
	"errors"
	"testing"
	"time"
)

func TestCausationChain_ValidateRequiresCauseAndSteps(t *testing.T) {
	now := time.Now()

	empty := NewCausationChain("c1", 1, "", now)
	empty.AddStep("step")
	if err := empty.Validate(); !errors.Is(err, ErrCauseEffectViolation) {
		t.Fatalf("expected ErrCauseEffectViolation for empty cause, got %v", err)
	}

	noSteps := NewCausationChain("c1", 1, "input", now)
	err := noSteps.Validate()
	var ce *CauseEffectError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CauseEffectError, got %v", err)
	}
	if ce.CycleID != "c1" || ce.Iteration != 1 {
		t.Fatalf("expected error to name c1/1, got %s/%d", ce.CycleID, ce.Iteration)
	}

	var nilChain *CausationChain
	if err := nilChain.Validate(); !errors.Is(err, ErrCauseEffectViolation) {
		t.Fatalf("expected violation for nil chain, got %v", err)
	}
}

func TestCausationChain_ValidateIsIdempotent(t *testing.T) {
	c := NewCausationChain("c1", 1, "input", time.Now())
	c.AddStep("DRAFT: recorded input")
	c.Seal("zero contradictions achieved", time.Now())

	for i := 0; i < 3; i++ {
		if err := c.Validate(); err != nil {
			t.Fatalf("call %d: expected no error, got %v", i, err)
		}
	}
	if len(c.ReasoningSteps) != 1 {
		t.Fatalf("expected validate to leave steps untouched, got %d", len(c.ReasoningSteps))
	}
}

func TestCausationChain_UnresolvedTracking(t *testing.T) {
	now := time.Now()
	c := NewCausationChain("c1", 1, "input", now)
	c.MarkDetected("b", now)
	c.MarkDetected("a", now)
	c.MarkResolved("b", now)

	ids := c.UnresolvedIDs()
	if len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("expected [a], got %v", ids)
	}
	if len(c.StateLog) != 3 {
		t.Fatalf("expected 3 state log entries, got %d", len(c.StateLog))
	}
}

func TestContradiction_MarkResolvedSetsMethodAndTime(t *testing.T) {
	c := &Contradiction{ID: "x", StoredPotential: DefaultStoredPotential}
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.MarkResolved("context_disambiguation", at)

	if !c.Resolved || c.ResolutionMethod == "" || c.ResolvedAt == nil {
		t.Fatalf("expected resolved flag, method and timestamp, got %+v", c)
	}
	if !c.ResolvedAt.Equal(at) {
		t.Fatalf("expected resolved at %v, got %v", at, *c.ResolvedAt)
	}
}

func TestCycle_SummaryCountsAndCompliance(t *testing.T) {
	now := time.Now()
	c := &Cycle{ID: "c1", Phase: PhaseLearned, Iteration: 1}
	c.Contradictions = []*Contradiction{{ID: "a"}, {ID: "b"}}
	c.Contradictions[0].MarkResolved("context_disambiguation", now)
	c.KnowledgeChains = []*KnowledgeChain{
		{ID: "k1", Status: VerificationPartial},
		{ID: "k2", Status: VerificationUnverified},
	}
	c.Gaps = []Gap{{ID: "g1", Iteration: 1}}

	s := c.Summary(now)
	if s.ContradictionsDetected != 2 || s.ContradictionsResolved != 1 {
		t.Fatalf("expected 2 detected / 1 resolved, got %d / %d", s.ContradictionsDetected, s.ContradictionsResolved)
	}
	if s.KnowledgeChainsVerified != 1 {
		t.Fatalf("expected 1 verified chain, got %d", s.KnowledgeChainsVerified)
	}
	if s.Compliance.CausationTracked {
		t.Fatal("expected causation not tracked without a sealed chain")
	}
	if s.OutputEffect != nil {
		t.Fatal("expected nil output effect for an incomplete cycle")
	}

	c.Causation = NewCausationChain("c1", 1, "input", now)
	c.Causation.AddStep("DRAFT")
	c.Causation.Seal("1 contradiction retained", now)
	s = c.Summary(now)
	if !s.Compliance.CausationTracked || s.OutputEffect == nil {
		t.Fatalf("expected tracked causation with output effect, got %+v", s.Compliance)
	}
}

func TestPhase_Next(t *testing.T) {
	order := []Phase{PhaseDraft, PhaseReflect, PhaseRevise, PhaseLearned}
	for i := 0; i < len(order)-1; i++ {
		if got := order[i].Next(); got != order[i+1] {
			t.Fatalf("expected %s after %s, got %s", order[i+1], order[i], got)
		}
	}
	if PhaseLearned.Next() != PhaseLearned {
		t.Fatal("expected LEARNED to be terminal")
	}
}
