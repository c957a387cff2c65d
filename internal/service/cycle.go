package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Harshitk-cp/concord/internal/domain"
	"github.com/Harshitk-cp/concord/internal/ledger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrPhaseOrder    = errors.New("phase executed out of order")
	ErrCycleNotFound = errors.New("cycle not found")
)

const (
	// MaxContradictionsPerIteration bounds how many new contradictions REFLECT records.
	MaxContradictionsPerIteration = 3
	// DefaultChainConfidence is assigned to knowledge chains at DRAFT, before verification.
	DefaultChainConfidence = 0.5
	// PartialChainConfidence applies to chains that cite evidence.
	PartialChainConfidence = 0.7
	// UnverifiedChainConfidence applies to chains without evidence.
	UnverifiedChainConfidence = 0.3

	OutputEffectResolved = "zero contradictions achieved"

	ledgerInputPreview = 200
)

// CycleEngine runs DRAFT→REFLECT→REVISE→LEARNED over a cycle. One engine owns one
// ledger and one coherence tracker; phases of a single cycle must be called in order
// from one goroutine, while distinct cycles may run concurrently.
type CycleEngine struct {
	detector  domain.Detector
	resolver  domain.Resolver
	analyzer  domain.TextAnalyzer
	ledger    *ledger.Ledger
	coherence *CoherenceTracker
	archive   domain.LedgerArchive
	results   domain.CycleResultStore
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.RWMutex
	recent map[string]domain.CycleSummary
}

func NewCycleEngine(d domain.Detector, r domain.Resolver, a domain.TextAnalyzer, l *ledger.Ledger, logger *zap.Logger) *CycleEngine {
	return &CycleEngine{
		detector:  d,
		resolver:  r,
		analyzer:  a,
		ledger:    l,
		coherence: NewCoherenceTracker(),
		logger:    logger,
		now:       time.Now,
		recent:    make(map[string]domain.CycleSummary),
	}
}

// SetArchive mirrors every ledger append into durable storage. Archive failures are
// logged and never fail a phase.
func (e *CycleEngine) SetArchive(a domain.LedgerArchive) {
	e.archive = a
}

func (e *CycleEngine) SetResultStore(s domain.CycleResultStore) {
	e.results = s
}

func (e *CycleEngine) SetClock(now func() time.Time) {
	e.now = now
	e.coherence.now = now
}

func (e *CycleEngine) Ledger() *ledger.Ledger {
	return e.ledger
}

func (e *CycleEngine) Coherence() *CoherenceTracker {
	return e.coherence
}

// StartCycle creates a cycle waiting for its first DRAFT. An empty id gets a random one.
func (e *CycleEngine) StartCycle(id, content string) *domain.Cycle {
	if id == "" {
		id = uuid.NewString()
	}
	now := e.now()
	return &domain.Cycle{
		ID:        id,
		Phase:     domain.PhaseDraft,
		Iteration: 1,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ExecuteDraft starts an iteration. On a sealed cycle it opens the next iteration.
func (e *CycleEngine) ExecuteDraft(ctx context.Context, c *domain.Cycle, content string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cycle %s: %w", c.ID, err)
	}
	switch {
	case c.Phase == domain.PhaseDraft && !c.Sealed:
	case c.Phase == domain.PhaseLearned && c.Sealed:
		c.SealedChains = append(c.SealedChains, c.Causation)
		c.Iteration++
		c.Sealed = false
	default:
		return fmt.Errorf("%w: DRAFT requested while cycle %s waits for %s", ErrPhaseOrder, c.ID, c.Phase)
	}

	now := e.now()
	c.Content = content
	c.Causation = domain.NewCausationChain(c.ID, c.Iteration, content, now)
	c.Causation.AddStep(fmt.Sprintf("DRAFT: %s", preview(content, 100)))

	claims := e.analyzer.ExtractClaims(content)
	for i, cl := range claims {
		c.KnowledgeChains = append(c.KnowledgeChains, &domain.KnowledgeChain{
			ID:              fmt.Sprintf("chain-%s-%d-%d", c.ID, c.Iteration, i),
			Premise:         cl.Premise,
			Conclusion:      cl.Conclusion,
			Connective:      cl.Connective,
			EvidenceSources: cl.Sources,
			Status:          domain.VerificationUnverified,
			Confidence:      DefaultChainConfidence,
			Iteration:       c.Iteration,
			CreatedAt:       now,
		})
	}

	if err := e.record(ctx, c, phaseRecord{
		Input:           preview(content, ledgerInputPreview),
		KnowledgeChains: len(claims),
	}); err != nil {
		return err
	}
	if _, err := e.coherence.Update(domain.PhaseDraft, 0); err != nil {
		return err
	}

	e.advance(c, domain.PhaseReflect, now)
	return nil
}

// ExecuteReflect records up to MaxContradictionsPerIteration new contradictions and
// every gap marker, then checks ledger integrity.
func (e *CycleEngine) ExecuteReflect(ctx context.Context, c *domain.Cycle) error {
	if err := e.enter(ctx, c, domain.PhaseReflect); err != nil {
		return err
	}

	now := e.now()
	for _, ct := range c.Unresolved() {
		c.Causation.MarkDetected(ct.ID, now)
	}

	known := make(map[string]bool, len(c.Contradictions))
	for _, ct := range c.Contradictions {
		known[contradictionKey(ct.Kind, ct.StatementA, ct.StatementB, ct.MarkerA, ct.MarkerB)] = true
	}

	var detected []string
	for _, cand := range e.detector.Detect(c.Content) {
		if len(detected) == MaxContradictionsPerIteration {
			break
		}
		key := contradictionKey(cand.Kind, cand.StatementA, cand.StatementB, cand.MarkerA, cand.MarkerB)
		if known[key] {
			continue
		}
		known[key] = true

		ct := &domain.Contradiction{
			ID:          fmt.Sprintf("contra-%s-%d-%d", c.ID, c.Iteration, len(detected)),
			Kind:        cand.Kind,
			Description: cand.Description,
			StatementA:  cand.StatementA,
			StatementB:  cand.StatementB,
			MarkerA:     cand.MarkerA,
			MarkerB:     cand.MarkerB,
			Iteration:   c.Iteration,
			DetectedAt:  now,
		}
		c.Contradictions = append(c.Contradictions, ct)
		c.Causation.MarkDetected(ct.ID, now)
		detected = append(detected, ct.ID)
	}

	gaps := e.analyzer.DetectGaps(c.Content)
	for i, g := range gaps {
		c.Gaps = append(c.Gaps, domain.Gap{
			ID:                fmt.Sprintf("gap-%s-%d-%d", c.ID, c.Iteration, i),
			Description:       g.Description,
			Context:           g.Context,
			Type:              g.Type,
			SuggestedResearch: g.SuggestedResearch,
			Iteration:         c.Iteration,
			MarkedAt:          now,
		})
	}
	c.Causation.AddStep(fmt.Sprintf("REFLECT: %d contradictions detected, %d gaps marked", len(detected), len(gaps)))

	if err := e.record(ctx, c, phaseRecord{
		ContradictionsDetected: len(detected),
		ContradictionIDs:       detected,
		GapsMarked:             len(gaps),
	}); err != nil {
		return err
	}
	if _, err := e.coherence.Update(domain.PhaseReflect, float64(len(detected))); err != nil {
		return err
	}
	if err := e.ledger.ValidateIntegrity(); err != nil {
		return fmt.Errorf("cycle %s reflect: %w", c.ID, err)
	}

	e.advance(c, domain.PhaseRevise, now)
	return nil
}

// ExecuteRevise attempts every unresolved contradiction and re-verifies unverified
// knowledge chains. A declined resolution keeps the contradiction and the resolver's
// gap annotation stays in the content.
func (e *CycleEngine) ExecuteRevise(ctx context.Context, c *domain.Cycle) error {
	if err := e.enter(ctx, c, domain.PhaseRevise); err != nil {
		return err
	}

	now := e.now()
	content := c.Content
	resolved := 0
	for _, ct := range c.Unresolved() {
		res := e.resolver.Resolve(*ct, content)
		content = res.RevisedContent
		if !res.Success {
			continue
		}
		ct.MarkResolved(res.Method, now)
		c.Causation.MarkResolved(ct.ID, now)
		c.Causation.AddStep(fmt.Sprintf("RESOLVED: %s (%s)", ct.Description, res.Method))
		resolved++
	}
	c.Content = content

	for _, kc := range c.KnowledgeChains {
		if kc.Status != domain.VerificationUnverified {
			continue
		}
		if len(kc.EvidenceSources) > 0 {
			kc.Status = domain.VerificationPartial
			kc.Confidence = PartialChainConfidence
		} else {
			kc.Confidence = UnverifiedChainConfidence
		}
	}

	total, err := e.coherence.Update(domain.PhaseRevise, float64(resolved))
	if err != nil {
		return err
	}
	c.Causation.Energy = total

	if err := e.record(ctx, c, phaseRecord{
		ContradictionsResolved: resolved,
		Energy:                 &total,
	}); err != nil {
		return err
	}

	e.advance(c, domain.PhaseLearned, now)
	return nil
}

// ExecuteLearned seals the iteration. Unresolved contradictions keep their full stored
// potential. The causation chain must validate before an output effect is recorded.
func (e *CycleEngine) ExecuteLearned(ctx context.Context, c *domain.Cycle) error {
	if err := e.enter(ctx, c, domain.PhaseLearned); err != nil {
		return err
	}

	now := e.now()
	unresolved := c.Unresolved()
	effect := OutputEffectResolved
	if len(unresolved) > 0 {
		effect = fmt.Sprintf("declared unresolved state: %d contradictions remain", len(unresolved))
		for _, ct := range unresolved {
			ct.StoredPotential = domain.DefaultStoredPotential
			c.Causation.MarkRetained(ct.ID, now)
		}
	}

	if err := c.Causation.Validate(); err != nil {
		e.logger.Error("causation chain rejected", zap.String("cycle_id", c.ID), zap.Error(err))
		return err
	}
	c.Causation.Seal(effect, now)

	energy := c.Causation.Energy
	if err := e.record(ctx, c, phaseRecord{
		OutputEffect:  effect,
		Energy:        &energy,
		UnresolvedIDs: c.Causation.UnresolvedIDs(),
	}); err != nil {
		return err
	}
	if err := e.ledger.ValidateIntegrity(); err != nil {
		return fmt.Errorf("cycle %s learned: %w", c.ID, err)
	}
	if _, err := e.coherence.Update(domain.PhaseLearned, 0); err != nil {
		return err
	}

	c.LearnedRules = append(c.LearnedRules, learnedRule(c))
	c.Sealed = true
	c.UpdatedAt = now

	summary := e.Summary(c)
	e.remember(summary)
	if e.results != nil {
		if err := e.results.Save(ctx, &summary); err != nil {
			e.logger.Warn("failed to persist cycle result", zap.String("cycle_id", c.ID), zap.Error(err))
		}
	}

	e.logger.Info("cycle iteration sealed",
		zap.String("cycle_id", c.ID),
		zap.Int("iteration", c.Iteration),
		zap.Int("unresolved", len(unresolved)),
		zap.Float64("energy", energy))
	return nil
}

// ShouldTerminate decides whether a driver should stop re-drafting.
func (e *CycleEngine) ShouldTerminate(c *domain.Cycle) (bool, domain.TerminationReason) {
	if len(c.Unresolved()) == 0 {
		return true, domain.ReasonZeroContradictions
	}
	if c.Iteration > 1 && c.GapCount(c.Iteration) >= c.GapCount(c.Iteration-1) {
		return true, domain.ReasonNoIntegrityImprovement
	}
	return false, domain.ReasonContinue
}

// RunIteration executes the four phases once.
func (e *CycleEngine) RunIteration(ctx context.Context, c *domain.Cycle, content string) error {
	if err := e.ExecuteDraft(ctx, c, content); err != nil {
		return err
	}
	if err := e.ExecuteReflect(ctx, c); err != nil {
		return err
	}
	if err := e.ExecuteRevise(ctx, c); err != nil {
		return err
	}
	return e.ExecuteLearned(ctx, c)
}

func (e *CycleEngine) Summary(c *domain.Cycle) domain.CycleSummary {
	s := c.Summary(e.now())
	if c.Sealed {
		_, s.TerminationReason = e.ShouldTerminate(c)
	}
	return s
}

// Lookup returns the latest summary of a cycle run by this engine, falling back to
// the result store.
func (e *CycleEngine) Lookup(ctx context.Context, cycleID string) (*domain.CycleSummary, error) {
	e.mu.RLock()
	s, ok := e.recent[cycleID]
	e.mu.RUnlock()
	if ok {
		return &s, nil
	}
	if e.results == nil {
		return nil, ErrCycleNotFound
	}
	stored, err := e.results.GetByCycleID(ctx, cycleID)
	if err != nil {
		return nil, ErrCycleNotFound
	}
	return stored, nil
}

func (e *CycleEngine) remember(s domain.CycleSummary) {
	e.mu.Lock()
	e.recent[s.CycleID] = s
	e.mu.Unlock()
}

func (e *CycleEngine) enter(ctx context.Context, c *domain.Cycle, phase domain.Phase) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cycle %s: %w", c.ID, err)
	}
	if c.Phase != phase || c.Sealed || c.Causation == nil {
		return fmt.Errorf("%w: %s requested while cycle %s waits for %s", ErrPhaseOrder, phase, c.ID, c.Phase)
	}
	return nil
}

func (e *CycleEngine) advance(c *domain.Cycle, next domain.Phase, now time.Time) {
	c.Phase = next
	c.UpdatedAt = now
}

// phaseRecord is the ledger payload of one phase transition.
type phaseRecord struct {
	CycleID                string   `json:"cycle_id"`
	Iteration              int      `json:"iteration"`
	Input                  string   `json:"input,omitempty"`
	KnowledgeChains        int      `json:"knowledge_chains,omitempty"`
	ContradictionsDetected int      `json:"contradictions_detected,omitempty"`
	ContradictionIDs       []string `json:"contradiction_ids,omitempty"`
	GapsMarked             int      `json:"gaps_marked,omitempty"`
	ContradictionsResolved int      `json:"contradictions_resolved,omitempty"`
	OutputEffect           string   `json:"output_effect,omitempty"`
	Energy                 *float64 `json:"energy,omitempty"`
	UnresolvedIDs          []string `json:"unresolved_ids,omitempty"`
}

// record appends the phase the cycle is executing to the ledger.
func (e *CycleEngine) record(ctx context.Context, c *domain.Cycle, rec phaseRecord) error {
	rec.CycleID = c.ID
	rec.Iteration = c.Iteration

	entry, err := e.ledger.AppendEntry(string(c.Phase), rec)
	if err != nil {
		return fmt.Errorf("cycle %s %s: ledger append: %w", c.ID, c.Phase, err)
	}
	if e.archive != nil {
		if err := e.archive.Append(ctx, e.ledger.ID(), entry); err != nil {
			e.logger.Warn("failed to archive ledger entry",
				zap.String("cycle_id", c.ID),
				zap.Int("index", entry.Index),
				zap.Error(err))
		}
	}
	return nil
}

func learnedRule(c *domain.Cycle) string {
	var resolved, retained int
	methods := make(map[string]bool)
	for _, ct := range c.Contradictions {
		if ct.Resolved {
			resolved++
			methods[ct.ResolutionMethod] = true
		} else {
			retained++
		}
	}
	if resolved+retained == 0 {
		return fmt.Sprintf("iteration %d: no contradictions detected", c.Iteration)
	}

	names := make([]string, 0, len(methods))
	for m := range methods {
		names = append(names, m)
	}
	sort.Strings(names)

	rule := fmt.Sprintf("iteration %d: resolved %d contradictions", c.Iteration, resolved)
	if len(names) > 0 {
		rule += " via " + strings.Join(names, ", ")
	}
	if retained > 0 {
		rule += fmt.Sprintf("; retained %d as marked gaps", retained)
	}
	return rule
}

func contradictionKey(kind domain.ContradictionKind, a, b, markerA, markerB string) string {
	return strings.Join([]string{string(kind), a, b, markerA, markerB}, "\x00")
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Audit runs one complete iteration over content as its own cycle and reports whether
// it ended with zero contradictions.
func (e *CycleEngine) Audit(ctx context.Context, id, content string) (*domain.Cycle, bool, error) {
	c := e.StartCycle(id, content)
	if err := e.RunIteration(ctx, c, content); err != nil {
		return c, false, err
	}
	_, reason := e.ShouldTerminate(c)
	return c, reason == domain.ReasonZeroContradictions, nil
}

// contradictionDraft renders a contradiction as a draft for a dedicated cycle: the two
// statements as sentences followed by supporting lines.
func contradictionDraft(a, b string, supporting []string) string {
	var sb strings.Builder
	sb.WriteString(asSentence(a))
	sb.WriteString(" ")
	sb.WriteString(asSentence(b))
	for _, line := range supporting {
		if line = strings.TrimSpace(line); line != "" {
			sb.WriteString("\n")
			sb.WriteString(line)
		}
	}
	return sb.String()
}

func asSentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s[len(s)-1:], ".!?") {
		return s
	}
	return s + "."
}
