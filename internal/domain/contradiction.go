package domain

import "time"

// DefaultStoredPotential is the potential kept by a contradiction that survives
// to LEARNED unresolved. Unresolved contradictions are retained, never dropped.
const DefaultStoredPotential = 1.0

type ContradictionKind string

const (
	// ContradictionPolarity is a pair of sentences carrying opposite polarity terms
	// (always/never, can/cannot, ...).
	ContradictionPolarity ContradictionKind = "polarity"
	// ContradictionNegation is a sentence restated with a negation (safe/unsafe, is/is not).
	ContradictionNegation ContradictionKind = "negation"
	// ContradictionPerspective is a conflict between two internal perspectives.
	ContradictionPerspective ContradictionKind = "perspective"
	// ContradictionCrossAgent is a conflict between a shared fact and an agent's proposal.
	ContradictionCrossAgent ContradictionKind = "cross_agent"
)

// Contradiction is a flagged pair of conflicting statements. Structure lives in
// explicit fields; Description is prose for humans only.
type Contradiction struct {
	ID               string            `json:"id"`
	Kind             ContradictionKind `json:"kind"`
	Description      string            `json:"description"`
	StatementA       string            `json:"statement_a"`
	StatementB       string            `json:"statement_b"`
	MarkerA          string            `json:"marker_a,omitempty"`
	MarkerB          string            `json:"marker_b,omitempty"`
	Subject          string            `json:"subject,omitempty"`
	Iteration        int               `json:"iteration"`
	DetectedAt       time.Time         `json:"detected_at"`
	Resolved         bool              `json:"resolved"`
	ResolutionMethod string            `json:"resolution_method,omitempty"`
	ResolvedAt       *time.Time        `json:"resolved_at,omitempty"`
	StoredPotential  float64           `json:"stored_potential"`
}

// Clone returns a copy that shares no memory with c.
func (c *Contradiction) Clone() *Contradiction {
	cp := *c
	if c.ResolvedAt != nil {
		at := *c.ResolvedAt
		cp.ResolvedAt = &at
	}
	return &cp
}

// MarkResolved records the resolution method with its timestamp.
func (c *Contradiction) MarkResolved(method string, at time.Time) {
	c.Resolved = true
	c.ResolutionMethod = method
	c.ResolvedAt = &at
}

// Candidate is a contradiction reported by a Detector before it is recorded on a cycle.
type Candidate struct {
	Kind        ContradictionKind
	Description string
	StatementA  string
	StatementB  string
	MarkerA     string
	MarkerB     string
}

// Resolution is the outcome of a Resolver attempt. RevisedContent always carries the
// content to continue with; a failed attempt annotates it with a visible gap marker.
type Resolution struct {
	Success        bool
	Method         string
	RevisedContent string
}

// Detector finds candidate contradictions. Implementations must be deterministic
// for identical input.
type Detector interface {
	Detect(content string) []Candidate
}

// Resolver attempts to resolve a single contradiction against the current content.
type Resolver interface {
	Resolve(c Contradiction, content string) Resolution
}

// TextAnalyzer extracts causal claims and uncertainty markers from content.
type TextAnalyzer interface {
	ExtractClaims(content string) []Claim
	DetectGaps(content string) []GapCandidate
}

// FactComparator decides whether an incoming fact value contradicts an established one.
type FactComparator interface {
	Conflicts(existing, incoming any) (bool, string)
}
