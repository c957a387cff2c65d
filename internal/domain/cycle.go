package domain

import "time"

// Phase is a step of the reasoning cycle.
type Phase string

const (
	PhaseDraft   Phase = "DRAFT"
	PhaseReflect Phase = "REFLECT"
	PhaseRevise  Phase = "REVISE"
	PhaseLearned Phase = "LEARNED"
)

// Next returns the phase that follows p within one iteration.
// LEARNED is terminal and returns itself.
func (p Phase) Next() Phase {
	switch p {
	case PhaseDraft:
		return PhaseReflect
	case PhaseReflect:
		return PhaseRevise
	case PhaseRevise:
		return PhaseLearned
	default:
		return PhaseLearned
	}
}

func ValidPhase(s string) bool {
	switch Phase(s) {
	case PhaseDraft, PhaseReflect, PhaseRevise, PhaseLearned:
		return true
	}
	return false
}

// TerminationReason explains why a cycle should or should not stop.
type TerminationReason string

const (
	ReasonZeroContradictions     TerminationReason = "zero_contradictions_achieved"
	ReasonNoIntegrityImprovement TerminationReason = "no_integrity_improvement"
	ReasonContinue               TerminationReason = "continue_cycle"
	ReasonMaxIterations          TerminationReason = "max_iterations_reached"
)

type VerificationStatus string

const (
	VerificationVerified   VerificationStatus = "verified"
	VerificationPartial    VerificationStatus = "partial"
	VerificationUnverified VerificationStatus = "unverified"
	VerificationDisputed   VerificationStatus = "disputed"
)

// KnowledgeChain is a premise→conclusion claim extracted from causal language.
type KnowledgeChain struct {
	ID              string             `json:"id"`
	Premise         string             `json:"premise"`
	Conclusion      string             `json:"conclusion"`
	Connective      string             `json:"connective"`
	EvidenceSources []string           `json:"evidence_sources"`
	Status          VerificationStatus `json:"verification_status"`
	Confidence      float64            `json:"confidence"`
	Iteration       int                `json:"iteration"`
	CreatedAt       time.Time          `json:"created_at"`
}

// Claim is a raw premise/conclusion split produced by a ClaimExtractor.
type Claim struct {
	Premise    string
	Conclusion string
	Connective string
	Sources    []string
}

type GapType string

const (
	GapInsufficientEvidence GapType = "insufficient_evidence"
	GapContradictorySources GapType = "contradictory_sources"
	GapOutOfScope           GapType = "out_of_scope"
)

// Gap is an explicitly marked hole in the reasoning. Gaps are never resolved.
type Gap struct {
	ID                string    `json:"id"`
	Description       string    `json:"description"`
	Context           string    `json:"context"`
	Type              GapType   `json:"type"`
	SuggestedResearch string    `json:"suggested_research,omitempty"`
	Iteration         int       `json:"iteration"`
	MarkedAt          time.Time `json:"marked_at"`
}

// GapCandidate is a gap reported by a GapDetector before it is recorded.
type GapCandidate struct {
	Description       string
	Context           string
	Type              GapType
	SuggestedResearch string
}

// Cycle is one DRAFT→REFLECT→REVISE→LEARNED reasoning run over a piece of content,
// possibly spanning several iterations. Phase is the step the cycle is waiting to execute;
// Sealed is set once LEARNED has executed for the current iteration.
type Cycle struct {
	ID              string            `json:"id"`
	Phase           Phase             `json:"phase"`
	Iteration       int               `json:"iteration"`
	Sealed          bool              `json:"sealed"`
	Content         string            `json:"content"`
	Context         map[string]string `json:"context,omitempty"`
	Contradictions  []*Contradiction  `json:"contradictions"`
	KnowledgeChains []*KnowledgeChain `json:"knowledge_chains"`
	Gaps            []Gap             `json:"gaps"`
	LearnedRules    []string          `json:"learned_rules"`
	Causation       *CausationChain   `json:"causation,omitempty"`
	SealedChains    []*CausationChain `json:"sealed_chains,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (c *Cycle) Unresolved() []*Contradiction {
	var out []*Contradiction
	for _, ct := range c.Contradictions {
		if !ct.Resolved {
			out = append(out, ct)
		}
	}
	return out
}

func (c *Cycle) ResolvedCount() int {
	n := 0
	for _, ct := range c.Contradictions {
		if ct.Resolved {
			n++
		}
	}
	return n
}

// GapCount returns the number of gaps marked during the given iteration.
func (c *Cycle) GapCount(iteration int) int {
	n := 0
	for _, g := range c.Gaps {
		if g.Iteration == iteration {
			n++
		}
	}
	return n
}

// Complete reports whether the current iteration produced a sealed output effect.
// An unset output effect means the iteration is incomplete and carries no result.
func (c *Cycle) Complete() bool {
	return c.Causation != nil && c.Causation.OutputEffect != nil
}

// Compliance records which audit duties the cycle visibly performed.
type Compliance struct {
	ContradictionsSurfaced bool `json:"contradictions_surfaced"`
	GapsMarked             bool `json:"gaps_marked"`
	CausationTracked       bool `json:"causation_tracked"`
}

// CycleSummary is the externally visible LEARNED result.
type CycleSummary struct {
	CycleID                 string            `json:"cycle_id"`
	FinalPhase              Phase             `json:"final_phase"`
	Iterations              int               `json:"iterations"`
	ContradictionsDetected  int               `json:"contradictions_detected"`
	ContradictionsResolved  int               `json:"contradictions_resolved"`
	KnowledgeChainsCreated  int               `json:"knowledge_chains_created"`
	KnowledgeChainsVerified int               `json:"knowledge_chains_verified"`
	GapsIdentified          int               `json:"gaps_identified"`
	LearnedRules            []string          `json:"learned_rules"`
	OutputEffect            *string           `json:"output_effect"`
	Energy                  float64           `json:"energy"`
	TerminationReason       TerminationReason `json:"termination_reason,omitempty"`
	Compliance              Compliance        `json:"compliance"`
	GeneratedAt             time.Time         `json:"generated_at"`
}

// Summary projects the cycle into its external result. Chains count as verified
// once they carry any supporting evidence (partial or verified).
func (c *Cycle) Summary(now time.Time) CycleSummary {
	verified := 0
	for _, kc := range c.KnowledgeChains {
		if kc.Status == VerificationVerified || kc.Status == VerificationPartial {
			verified++
		}
	}

	s := CycleSummary{
		CycleID:                 c.ID,
		FinalPhase:              c.Phase,
		Iterations:              c.Iteration,
		ContradictionsDetected:  len(c.Contradictions),
		ContradictionsResolved:  c.ResolvedCount(),
		KnowledgeChainsCreated:  len(c.KnowledgeChains),
		KnowledgeChainsVerified: verified,
		GapsIdentified:          len(c.Gaps),
		LearnedRules:            append([]string(nil), c.LearnedRules...),
		GeneratedAt:             now,
	}
	if c.Causation != nil {
		if c.Causation.OutputEffect != nil {
			effect := *c.Causation.OutputEffect
			s.OutputEffect = &effect
		}
		s.Energy = c.Causation.Energy
	}
	s.Compliance = Compliance{
		ContradictionsSurfaced: len(c.Contradictions) > 0,
		GapsMarked:             len(c.Gaps) > 0,
		CausationTracked:       c.Complete() && c.Causation.Validate() == nil,
	}
	return s
}
