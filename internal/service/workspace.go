package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Harshitk-cp/concord/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MethodInternalCycle = "internal_cycle"

	integrityStep          = 0.1
	maxCorrectionHistory   = 100
	trimmedCorrectionCount = 50
	reflectionWindow       = 10
)

// SelfCorrection records one internal dialogue that had contradictions to work through.
type SelfCorrection struct {
	ID                     string    `json:"id"`
	DialogueID             string    `json:"dialogue_id"`
	ContradictionsDetected int       `json:"contradictions_detected"`
	ContradictionsResolved int       `json:"contradictions_resolved"`
	Success                bool      `json:"success"`
	IntegrityBefore        float64   `json:"integrity_before"`
	IntegrityAfter         float64   `json:"integrity_after"`
	At                     time.Time `json:"at"`
}

type ReflectionResult struct {
	DialogueID     string                  `json:"dialogue_id"`
	Perspectives   []domain.Perspective    `json:"perspectives"`
	Contradictions []*domain.Contradiction `json:"contradictions"`
	Resolved       int                     `json:"contradictions_resolved"`
	Success        bool                    `json:"success"`
	Understanding  string                  `json:"understanding"`
	Integrity      float64                 `json:"integrity"`
}

type WorkspaceStatus struct {
	AgentID                string    `json:"agent_id"`
	Integrity              float64   `json:"integrity"`
	ResolvedContradictions int       `json:"resolved_contradictions"`
	SelfCorrections        int       `json:"self_corrections"`
	LastReflection         time.Time `json:"last_reflection"`
}

type HistoryReflection struct {
	Corrections           int     `json:"corrections"`
	SuccessRate           float64 `json:"success_rate"`
	AverageContradictions float64 `json:"average_contradictions"`
	Integrity             float64 `json:"integrity"`
	Trend                 string  `json:"trend"`
}

// Workspace lets one agent audit content against itself: it generates perspectives,
// collects explicit and perspective contradictions, and runs a dedicated cycle per
// contradiction before anything is communicated outward.
type Workspace struct {
	agentID    string
	engine     *CycleEngine
	detector   domain.Detector
	generators []domain.PerspectiveGenerator
	logger     *zap.Logger

	mu             sync.Mutex
	integrity      float64
	resolved       int
	history        []SelfCorrection
	lastReflection time.Time
}

func NewWorkspace(agentID string, engine *CycleEngine, d domain.Detector, generators []domain.PerspectiveGenerator, logger *zap.Logger) *Workspace {
	return &Workspace{
		agentID:        agentID,
		engine:         engine,
		detector:       d,
		generators:     generators,
		logger:         logger,
		integrity:      1.0,
		lastReflection: engine.now(),
	}
}

// Perspectives evaluates every generator over content.
func (w *Workspace) Perspectives(content string) []domain.Perspective {
	now := w.engine.now()
	out := make([]domain.Perspective, 0, len(w.generators))
	for _, gen := range w.generators {
		p := gen(content)
		p.ID = fmt.Sprintf("%s-%s", p.Viewpoint, uuid.NewString()[:8])
		p.CreatedAt = now
		out = append(out, p)
	}
	return out
}

func (w *Workspace) Process(ctx context.Context, content string) (*ReflectionResult, error) {
	dialogueID := uuid.NewString()
	perspectives := w.Perspectives(content)

	candidates := w.detector.Detect(content)
	candidates = append(candidates, perspectiveConflicts(perspectives)...)

	result := &ReflectionResult{
		DialogueID:   dialogueID,
		Perspectives: perspectives,
	}
	if len(candidates) == 0 {
		result.Success = true
		result.Understanding = fmt.Sprintf("consistent understanding across %d perspectives at %.2f average confidence",
			len(perspectives), averageConfidence(perspectives))
		result.Integrity = w.Integrity()
		return result, nil
	}

	supporting := perspectiveLines(perspectives)
	now := w.engine.now()
	for i, cand := range candidates {
		ct := &domain.Contradiction{
			ID:          fmt.Sprintf("internal-%s-%d", dialogueID[:8], i),
			Kind:        cand.Kind,
			Description: cand.Description,
			StatementA:  cand.StatementA,
			StatementB:  cand.StatementB,
			MarkerA:     cand.MarkerA,
			MarkerB:     cand.MarkerB,
			Iteration:   1,
			DetectedAt:  now,
		}
		result.Contradictions = append(result.Contradictions, ct)

		cycle, ok, err := w.engine.Audit(ctx, ct.ID, contradictionDraft(ct.StatementA, ct.StatementB, supporting))
		if err != nil {
			return nil, fmt.Errorf("workspace %s: %w", w.agentID, err)
		}
		if !ok {
			ct.StoredPotential = domain.DefaultStoredPotential
			continue
		}
		ct.MarkResolved(MethodInternalCycle, w.engine.now())
		result.Resolved++
		if n := len(cycle.LearnedRules); n > 0 {
			result.Understanding = "internal resolution: " + cycle.LearnedRules[n-1]
		}
	}

	result.Success = result.Resolved == len(result.Contradictions)
	if result.Understanding == "" {
		result.Understanding = fmt.Sprintf("%d of %d internal contradictions retained as gaps",
			len(result.Contradictions)-result.Resolved, len(result.Contradictions))
	}
	result.Integrity = w.recordCorrection(dialogueID, result)

	w.logger.Debug("internal dialogue finished",
		zap.String("agent_id", w.agentID),
		zap.String("dialogue_id", dialogueID),
		zap.Int("contradictions", len(result.Contradictions)),
		zap.Int("resolved", result.Resolved))
	return result, nil
}

func (w *Workspace) recordCorrection(dialogueID string, r *ReflectionResult) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	before := w.integrity
	if r.Success {
		w.integrity = min(1.0, w.integrity+integrityStep)
	} else {
		w.integrity = max(0, w.integrity-integrityStep)
	}
	w.resolved += r.Resolved

	now := w.engine.now()
	w.history = append(w.history, SelfCorrection{
		ID:                     uuid.NewString(),
		DialogueID:             dialogueID,
		ContradictionsDetected: len(r.Contradictions),
		ContradictionsResolved: r.Resolved,
		Success:                r.Success,
		IntegrityBefore:        before,
		IntegrityAfter:         w.integrity,
		At:                     now,
	})
	if len(w.history) > maxCorrectionHistory {
		w.history = append([]SelfCorrection(nil), w.history[len(w.history)-trimmedCorrectionCount:]...)
	}
	w.lastReflection = now
	return w.integrity
}

func (w *Workspace) Integrity() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.integrity
}

func (w *Workspace) Status() WorkspaceStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorkspaceStatus{
		AgentID:                w.agentID,
		Integrity:              w.integrity,
		ResolvedContradictions: w.resolved,
		SelfCorrections:        len(w.history),
		LastReflection:         w.lastReflection,
	}
}

func (w *Workspace) History() []SelfCorrection {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]SelfCorrection(nil), w.history...)
}

// ReflectOnHistory summarizes the most recent self-corrections.
func (w *Workspace) ReflectOnHistory() HistoryReflection {
	w.mu.Lock()
	defer w.mu.Unlock()

	r := HistoryReflection{Integrity: w.integrity, Trend: "stable"}
	if w.integrity > 0.8 {
		r.Trend = "improving"
	}
	recent := w.history
	if len(recent) > reflectionWindow {
		recent = recent[len(recent)-reflectionWindow:]
	}
	if len(recent) == 0 {
		return r
	}

	var successes, contradictions int
	for _, c := range recent {
		if c.Success {
			successes++
		}
		contradictions += c.ContradictionsDetected
	}
	r.Corrections = len(recent)
	r.SuccessRate = float64(successes) / float64(len(recent))
	r.AverageContradictions = float64(contradictions) / float64(len(recent))
	return r
}

func perspectiveLines(ps []domain.Perspective) []string {
	lines := make([]string, 0, len(ps))
	for _, p := range ps {
		lines = append(lines, fmt.Sprintf("%s (confidence %.2f): %s", p.Viewpoint, p.Confidence, p.Reasoning))
	}
	return lines
}

func averageConfidence(ps []domain.Perspective) float64 {
	if len(ps) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range ps {
		sum += p.Confidence
	}
	return sum / float64(len(ps))
}
