package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Harshitk-cp/concord/internal/domain"
	"go.uber.org/zap"
)

func TestDriver_StopsWithoutIntegrityImprovement(t *testing.T) {
	d := NewDriver(newTestEngine(), zap.NewNop())

	run, err := d.Run(context.Background(), "drive-a", "X is always true. X is never true.", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Summary.Iterations != 2 {
		t.Fatalf("expected 2 iterations, got %d", run.Summary.Iterations)
	}
	if run.Summary.TerminationReason != domain.ReasonNoIntegrityImprovement {
		t.Fatalf("expected no_integrity_improvement, got %s", run.Summary.TerminationReason)
	}
	if run.Summary.ContradictionsDetected != 1 || run.Summary.ContradictionsResolved != 0 {
		t.Fatalf("expected 1 detected / 0 resolved, got %d/%d",
			run.Summary.ContradictionsDetected, run.Summary.ContradictionsResolved)
	}
	if strings.Count(run.Cycle.Content, "[GAP:") != 1 {
		t.Fatalf("expected one gap annotation in content, got %q", run.Cycle.Content)
	}
}

func TestDriver_ZeroContradictionsInOneIteration(t *testing.T) {
	d := NewDriver(newTestEngine(), zap.NewNop())

	run, err := d.Run(context.Background(), "drive-clean", "The deploy finished because checks passed.", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Summary.Iterations != 1 || run.Summary.TerminationReason != domain.ReasonZeroContradictions {
		t.Fatalf("expected 1 iteration ending zero_contradictions_achieved, got %d %s",
			run.Summary.Iterations, run.Summary.TerminationReason)
	}
	if run.Summary.OutputEffect == nil || *run.Summary.OutputEffect != OutputEffectResolved {
		t.Fatalf("unexpected output effect %v", run.Summary.OutputEffect)
	}
	if !run.Summary.Compliance.CausationTracked {
		t.Fatal("expected causation tracked")
	}
}

func TestDriver_MaxIterationsValve(t *testing.T) {
	e := newTestEngine()
	results := newMockCycleResultStore()
	e.SetResultStore(results)
	d := NewDriver(e, zap.NewNop())
	d.SetMaxIterations(1)

	run, err := d.Run(context.Background(), "drive-valve", "X is always true. X is never true.", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Summary.TerminationReason != domain.ReasonMaxIterations {
		t.Fatalf("expected max_iterations_reached, got %s", run.Summary.TerminationReason)
	}

	got, err := e.Lookup(context.Background(), "drive-valve")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.TerminationReason != domain.ReasonMaxIterations {
		t.Fatalf("expected remembered reason max_iterations_reached, got %s", got.TerminationReason)
	}
	if results.results["drive-valve"].TerminationReason != domain.ReasonMaxIterations {
		t.Fatal("expected persisted reason max_iterations_reached")
	}
}

func TestDriver_RefineFeedsNextDraft(t *testing.T) {
	d := NewDriver(newTestEngine(), zap.NewNop())

	var calls int
	refine := func(ctx context.Context, c *domain.Cycle) (string, error) {
		calls++
		return "X is always true. X is never true. The outcome is uncertain.", nil
	}

	run, err := d.Run(context.Background(), "drive-refine", "X is always true. X is never true.", refine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected refine to be called once, got %d", calls)
	}
	if !strings.Contains(run.Cycle.Causation.InputCause, "uncertain") {
		t.Fatalf("expected refined draft as iteration 2 input, got %q", run.Cycle.Causation.InputCause)
	}
	if run.Summary.TerminationReason != domain.ReasonNoIntegrityImprovement {
		t.Fatalf("expected no_integrity_improvement, got %s", run.Summary.TerminationReason)
	}
}

func TestDriver_RefineErrorAbandons(t *testing.T) {
	d := NewDriver(newTestEngine(), zap.NewNop())
	boom := errors.New("generator offline")

	run, err := d.Run(context.Background(), "drive-err", "X is always true. X is never true.",
		func(ctx context.Context, c *domain.Cycle) (string, error) { return "", boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected refine error, got %v", err)
	}
	if run.Summary.Iterations != 1 {
		t.Fatalf("expected 1 completed iteration, got %d", run.Summary.Iterations)
	}
}

func TestDriver_CancelledContext(t *testing.T) {
	d := NewDriver(newTestEngine(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := d.Run(ctx, "drive-cancel", "X is always true.", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if run.Summary.OutputEffect != nil {
		t.Fatal("cancelled cycle must not carry an output effect")
	}
}
