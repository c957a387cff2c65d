package domain

import (
	"testing"
	"time"
)

func TestContradiction_CloneIsIndependent(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	orig := &Contradiction{ID: "c1", StatementA: "a", StatementB: "b", StoredPotential: 0.5}
	orig.MarkResolved("context_disambiguation", at)

	cp := orig.Clone()
	if cp == orig || cp.ResolvedAt == orig.ResolvedAt {
		t.Fatal("expected clone to share no pointers with the original")
	}

	cp.StoredPotential = DefaultStoredPotential
	*cp.ResolvedAt = at.Add(time.Hour)
	if orig.StoredPotential != 0.5 {
		t.Fatalf("expected original potential 0.5, got %v", orig.StoredPotential)
	}
	if !orig.ResolvedAt.Equal(at) {
		t.Fatalf("expected original resolved_at %v, got %v", at, orig.ResolvedAt)
	}

	unresolved := (&Contradiction{ID: "c2"}).Clone()
	if unresolved.ResolvedAt != nil || unresolved.Resolved {
		t.Fatal("expected unresolved clone to stay unresolved")
	}
}
