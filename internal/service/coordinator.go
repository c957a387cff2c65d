package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/concord/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoFacts            = errors.New("facts are required")
	ErrSourceAgentMissing = errors.New("source agent is required")
	ErrUnknownAgent       = errors.New("unknown agent")
	ErrActionTypeMissing  = errors.New("action_type is required")
	ErrPatternTypeMissing = errors.New("pattern_type is required")
)

const (
	DefaultSyncTimeout    = 5 * time.Second
	DefaultAnalyzeTimeout = 10 * time.Second
	DefaultExecuteTimeout = 30 * time.Second

	// EmergenceConfidenceThreshold must be exceeded for a pattern to skip negotiation.
	EmergenceConfidenceThreshold = 0.8
	// ConsistencySpreadThreshold bounds the max-min spread of agent quality scores.
	ConsistencySpreadThreshold = 0.3
	// ConsistencyMinQuality is the lowest acceptable average quality score.
	ConsistencyMinQuality = 0.7

	MethodCrossAgentCycle = "cross_agent_cycle"

	IntegrationCompatibleMerge = "compatible_merge"
	IntegrationResolvedMerge   = "resolved_merge"

	ReasonAllAgentsAvailable  = "all_required_agents_available"
	ReasonAgentsUnavailable   = "some_agents_unavailable"
	ReasonPartialResolution   = "partial_resolution"
	ReasonInsufficientSignal  = "insufficient_evidence"
	ReasonStrongPattern       = "high_confidence_strong_pattern"
	emergentFactPrefix        = "emergent_"
	outcomeStatusFailed       = "failed"
	outcomeStatusAutonomously = "completed_autonomously"
)

type GroundingResult struct {
	Established            bool     `json:"common_grounding_established"`
	Integration            string   `json:"integration_type,omitempty"`
	Version                int      `json:"understanding_version"`
	ContradictionsDetected int      `json:"contradictions_detected"`
	ContradictionsResolved int      `json:"contradictions_resolved"`
	ResolutionCycles       []string `json:"resolution_cycles,omitempty"`
	SynchronizedAgents     int      `json:"synchronized_agents"`
	AutonomousAgents       []string `json:"autonomous_agents,omitempty"`
	Reason                 string   `json:"reason,omitempty"`
}

type ActionRequest struct {
	ActionType     string         `json:"action_type"`
	RequiredAgents []string       `json:"required_agents"`
	Payload        map[string]any `json:"payload,omitempty"`
}

type AgentOutcome struct {
	AgentID      string         `json:"agent_id"`
	Status       string         `json:"status"`
	QualityScore float64        `json:"quality_score"`
	Output       map[string]any `json:"output,omitempty"`
	Error        string         `json:"error,omitempty"`
}

type ActionResult struct {
	ActionType     string                  `json:"action_type"`
	Coordinated    bool                    `json:"coordination_successful"`
	Degraded       bool                    `json:"degraded"`
	Reason         string                  `json:"reason"`
	Consistent     bool                    `json:"consistent"`
	AverageQuality float64                 `json:"average_quality"`
	QualitySpread  float64                 `json:"quality_spread"`
	Reexecuted     []string                `json:"reexecuted_agents,omitempty"`
	Results        map[string]AgentOutcome `json:"results"`
}

type EmergencePattern struct {
	PatternType string         `json:"pattern_type"`
	Confidence  float64        `json:"confidence"`
	Strength    string         `json:"emergence_strength"`
	Data        map[string]any `json:"data,omitempty"`
}

type MonitoredPattern struct {
	Pattern    EmergencePattern `json:"pattern"`
	RecordedAt time.Time        `json:"recorded_at"`
}

type EmergenceResult struct {
	Integrated   bool   `json:"emergence_handled"`
	Monitoring   bool   `json:"monitoring_initiated"`
	Version      int    `json:"understanding_version"`
	PropagatedTo int    `json:"propagated_to_agents"`
	PatternType  string `json:"emergence_type"`
	Reason       string `json:"reason"`
}

type AgentStatus struct {
	ID               string                    `json:"id"`
	Role             string                    `json:"role"`
	Status           domain.CoordinationStatus `json:"status"`
	CapabilityActive bool                      `json:"capability_active"`
	SyncedVersion    int                       `json:"synced_version"`
	LastHeartbeat    time.Time                 `json:"last_heartbeat"`
}

type CoordinatorStatus struct {
	UnderstandingID      string        `json:"understanding_id"`
	Version              int           `json:"understanding_version"`
	FactCount            int           `json:"fact_count"`
	ActiveContradictions int           `json:"active_contradictions"`
	PendingConflicts     int           `json:"pending_conflicts"`
	Participants         int           `json:"participant_count"`
	Confidence           float64       `json:"confidence"`
	MonitoredPatterns    int           `json:"monitored_patterns"`
	Agents               []AgentStatus `json:"agents"`
}

// Coordinator keeps a shared understanding across agents. Mutating operations are
// serialized by opMu; remote calls fan out and join before state, guarded by stateMu,
// is touched. A failing agent only ever degrades itself to autonomous.
type Coordinator struct {
	engine     *CycleEngine
	comparator domain.FactComparator
	transport  domain.AgentTransport
	logger     *zap.Logger

	syncTimeout    time.Duration
	analyzeTimeout time.Duration
	executeTimeout time.Duration

	opMu    sync.Mutex
	stateMu sync.RWMutex

	understanding *domain.SharedUnderstanding
	agents        map[string]*domain.AgentState
	order         []string
	monitored     []MonitoredPattern
}

func NewCoordinator(engine *CycleEngine, fc domain.FactComparator, t domain.AgentTransport, roster []domain.AgentConfig, logger *zap.Logger) *Coordinator {
	now := engine.now()
	c := &Coordinator{
		engine:         engine,
		comparator:     fc,
		transport:      t,
		logger:         logger,
		syncTimeout:    DefaultSyncTimeout,
		analyzeTimeout: DefaultAnalyzeTimeout,
		executeTimeout: DefaultExecuteTimeout,
		understanding: &domain.SharedUnderstanding{
			ID:           uuid.NewString(),
			Version:      1,
			Facts:        make(map[string]any),
			Participants: make(map[string]bool),
			Confidence:   1.0,
			UpdatedAt:    now,
		},
		agents: make(map[string]*domain.AgentState, len(roster)),
	}
	for _, a := range roster {
		c.agents[a.ID] = &domain.AgentState{
			ID:                 a.ID,
			Role:               a.Role,
			LocalUnderstanding: make(map[string]any),
			SyncedVersion:      1,
			CapabilityActive:   true,
			Status:             domain.StatusSynchronized,
			LastHeartbeat:      now,
		}
		c.order = append(c.order, a.ID)
	}
	return c
}

func (c *Coordinator) SetTimeouts(syncTimeout, analyzeTimeout, executeTimeout time.Duration) {
	if syncTimeout > 0 {
		c.syncTimeout = syncTimeout
	}
	if analyzeTimeout > 0 {
		c.analyzeTimeout = analyzeTimeout
	}
	if executeTimeout > 0 {
		c.executeTimeout = executeTimeout
	}
}

// EstablishCommonGrounding integrates facts proposed by source. Facts that collide with
// established ones each go through a dedicated cycle; only when every collision
// resolves are the facts merged and pushed. Otherwise every agent turns autonomous and
// the contested keys are withdrawn until a retry succeeds.
func (c *Coordinator) EstablishCommonGrounding(ctx context.Context, facts map[string]any, source string) (*GroundingResult, error) {
	if len(facts) == 0 {
		return nil, ErrNoFacts
	}
	if source == "" {
		return nil, ErrSourceAgentMissing
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	conflicts := c.detectConflicts(facts, source)
	if len(conflicts) == 0 {
		c.stateMu.Lock()
		c.mergeLocked(facts, source)
		version := c.understanding.Version
		c.stateMu.Unlock()

		c.logger.Info("facts merged",
			zap.String("source", source),
			zap.Int("facts", len(facts)),
			zap.Int("version", version))
		return &GroundingResult{
			Established: true,
			Integration: IntegrationCompatibleMerge,
			Version:     version,
		}, nil
	}

	result := &GroundingResult{ContradictionsDetected: len(conflicts)}
	var unresolved []domain.PendingConflict
	for _, pc := range conflicts {
		cycleID, ct, ok, err := c.resolve(ctx, pc.Contradiction)
		if err != nil {
			return nil, err
		}
		pc.Contradiction = ct
		result.ResolutionCycles = append(result.ResolutionCycles, cycleID)
		if ok {
			result.ContradictionsResolved++
			continue
		}
		unresolved = append(unresolved, pc)
	}

	if len(unresolved) > 0 {
		c.stateMu.Lock()
		c.withdrawLocked(unresolved)
		result.Version = c.understanding.Version
		result.AutonomousAgents = append([]string(nil), c.order...)
		c.stateMu.Unlock()

		result.Reason = ReasonPartialResolution
		c.logger.Warn("common grounding failed, agents operating autonomously",
			zap.String("source", source),
			zap.Int("contradictions", len(conflicts)),
			zap.Int("unresolved", len(unresolved)))
		return result, nil
	}

	c.stateMu.Lock()
	now := c.engine.now()
	for i, pc := range conflicts {
		c.understanding.Resolutions = append(c.understanding.Resolutions, domain.ResolvedConflict{
			Key:        pc.Key,
			Previous:   pc.Previous,
			Incoming:   pc.Incoming,
			Source:     source,
			CycleID:    result.ResolutionCycles[i],
			Method:     MethodCrossAgentCycle,
			ResolvedAt: now,
		})
	}
	c.mergeLocked(facts, source)
	c.stateMu.Unlock()

	c.synchronize(ctx, c.targets(false))

	c.stateMu.RLock()
	result.Established = true
	result.Integration = IntegrationResolvedMerge
	result.Version = c.understanding.Version
	result.SynchronizedAgents = c.countLocked(domain.StatusSynchronized)
	result.AutonomousAgents = c.autonomousLocked()
	c.stateMu.RUnlock()
	return result, nil
}

// detectConflicts compares incoming facts with established ones in key order.
func (c *Coordinator) detectConflicts(facts map[string]any, source string) []domain.PendingConflict {
	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	now := c.engine.now()
	var out []domain.PendingConflict
	for _, k := range keys {
		existing, ok := c.understanding.Facts[k]
		if !ok {
			continue
		}
		conflict, reason := c.comparator.Conflicts(existing, facts[k])
		if !conflict {
			continue
		}
		out = append(out, domain.PendingConflict{
			Key:      k,
			Previous: existing,
			Incoming: facts[k],
			Source:   source,
			Contradiction: &domain.Contradiction{
				ID:          "cross-agent-" + uuid.NewString()[:8],
				Kind:        domain.ContradictionCrossAgent,
				Description: fmt.Sprintf("conflicting values for %q: %s", k, reason),
				StatementA:  fmt.Sprintf("%s is %v", k, existing),
				StatementB:  fmt.Sprintf("%s is %v", k, facts[k]),
				Subject:     k,
				Iteration:   1,
				DetectedAt:  now,
			},
		})
	}
	return out
}

// resolve runs one cycle over the contradiction and whatever the reachable agents say
// about it. The contradiction counts as resolved only on zero_contradictions_achieved.
// ct may be shared with snapshots, so the outcome is recorded on a clone.
func (c *Coordinator) resolve(ctx context.Context, ct *domain.Contradiction) (string, *domain.Contradiction, bool, error) {
	out := ct.Clone()
	draft := contradictionDraft(out.StatementA, out.StatementB, c.gatherPerspectives(ctx, out))
	cycle, ok, err := c.engine.Audit(ctx, "resolve-"+out.ID, draft)
	if err != nil {
		return "", nil, false, fmt.Errorf("resolve %s: %w", out.ID, err)
	}
	if ok {
		out.MarkResolved(MethodCrossAgentCycle, c.engine.now())
	} else {
		out.StoredPotential = domain.DefaultStoredPotential
	}
	return cycle.ID, out, ok, nil
}

// gatherPerspectives asks every non-autonomous agent to analyse a contradiction.
// Unreachable agents are skipped.
func (c *Coordinator) gatherPerspectives(ctx context.Context, ct *domain.Contradiction) []string {
	ids := c.targets(false)
	analyses := make([]string, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.analyzeTimeout)
			defer cancel()

			resp, err := c.transport.Send(callCtx, id, domain.AgentMessage{
				Kind:          domain.MessageAnalyzeContradiction,
				Contradiction: ct,
			})
			if err != nil {
				c.logger.Warn("agent perspective unavailable", zap.String("agent_id", id), zap.Error(err))
				return nil
			}
			if resp.Analysis != "" {
				analyses[i] = fmt.Sprintf("%s: %s", id, resp.Analysis)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := analyses[:0]
	for _, a := range analyses {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// mergeLocked applies facts as one successful mutation. Pending conflicts on merged
// keys are superseded.
func (c *Coordinator) mergeLocked(facts map[string]any, source string) {
	u := c.understanding
	for k, v := range facts {
		u.Facts[k] = v
	}
	c.dropPendingLocked(facts)
	u.Version++
	u.Participants[source] = true
	u.UpdatedAt = c.engine.now()
	u.Confidence = understandingConfidence(len(u.ActiveContradictions))
}

// withdrawLocked treats partial consensus as none: all agents go autonomous and each
// contested key leaves the established facts until its conflict is retried. A failed
// round is not a successful mutation, so the version stays put; agents only leave
// autonomous status through a fresh sync, which carries the reduced facts.
func (c *Coordinator) withdrawLocked(unresolved []domain.PendingConflict) {
	u := c.understanding
	for _, pc := range unresolved {
		delete(u.Facts, pc.Key)
		u.ActiveContradictions = append(u.ActiveContradictions, pc.Contradiction)
		u.Pending = append(u.Pending, pc)
	}
	u.UpdatedAt = c.engine.now()
	u.Confidence = understandingConfidence(len(u.ActiveContradictions))

	for _, a := range c.agents {
		a.Status = domain.StatusAutonomous
		a.CapabilityActive = true
	}
}

func (c *Coordinator) dropPendingLocked(keys map[string]any) {
	u := c.understanding
	if len(u.Pending) == 0 {
		return
	}
	superseded := make(map[string]bool)
	pending := u.Pending[:0]
	for _, pc := range u.Pending {
		if _, ok := keys[pc.Key]; ok {
			superseded[pc.Contradiction.ID] = true
			continue
		}
		pending = append(pending, pc)
	}
	u.Pending = pending

	active := u.ActiveContradictions[:0]
	for _, ct := range u.ActiveContradictions {
		if !superseded[ct.ID] {
			active = append(active, ct)
		}
	}
	u.ActiveContradictions = active
}

// RetryPending re-runs the cycle for every stashed conflict. Resolved conflicts
// re-establish their incoming value and are pushed to non-autonomous agents.
func (c *Coordinator) RetryPending(ctx context.Context) (int, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.stateMu.RLock()
	pending := append([]domain.PendingConflict(nil), c.understanding.Pending...)
	c.stateMu.RUnlock()
	if len(pending) == 0 {
		return 0, nil
	}

	resolved := 0
	for _, pc := range pending {
		cycleID, _, ok, err := c.resolve(ctx, pc.Contradiction)
		if err != nil {
			return resolved, err
		}
		if !ok {
			continue
		}
		resolved++

		c.stateMu.Lock()
		c.understanding.Resolutions = append(c.understanding.Resolutions, domain.ResolvedConflict{
			Key:        pc.Key,
			Previous:   pc.Previous,
			Incoming:   pc.Incoming,
			Source:     pc.Source,
			CycleID:    cycleID,
			Method:     MethodCrossAgentCycle,
			ResolvedAt: c.engine.now(),
		})
		c.mergeLocked(map[string]any{pc.Key: pc.Incoming}, pc.Source)
		c.stateMu.Unlock()
	}

	if resolved > 0 {
		c.synchronize(ctx, c.targets(false))
	}
	c.logger.Info("pending conflicts retried", zap.Int("pending", len(pending)), zap.Int("resolved", resolved))
	return resolved, nil
}

// ResyncAutonomous pushes the current snapshot to every autonomous agent. A successful
// push is the only way out of autonomous status.
func (c *Coordinator) ResyncAutonomous(ctx context.Context) int {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	ids := c.targets(true)
	if len(ids) == 0 {
		return 0
	}
	return c.synchronize(ctx, ids)
}

// CoordinateRealTimeAction fans a task out to the required agents. With every required
// agent reachable the results are checked for consistency; otherwise each agent runs
// the task on its own and the outcome is reported as degraded.
func (c *Coordinator) CoordinateRealTimeAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	if req.ActionType == "" {
		return nil, ErrActionTypeMissing
	}

	c.stateMu.RLock()
	required := req.RequiredAgents
	if len(required) == 0 {
		required = append([]string(nil), c.order...)
	}
	available := true
	roles := make(map[string]string, len(required))
	for _, id := range required {
		a, ok := c.agents[id]
		if !ok {
			c.stateMu.RUnlock()
			return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
		}
		roles[id] = a.Role
		if a.Status == domain.StatusAutonomous {
			available = false
		}
	}
	c.stateMu.RUnlock()

	result := &ActionResult{ActionType: req.ActionType}
	outcomes := c.execute(ctx, req, required, roles)

	if !available {
		result.Degraded = true
		result.Reason = ReasonAgentsUnavailable
		result.Results = outcomes
		for id, o := range outcomes {
			if o.Status != outcomeStatusFailed {
				o.Status = outcomeStatusAutonomously
				outcomes[id] = o
			}
		}
		c.logger.Warn("action executed without coordination",
			zap.String("action_type", req.ActionType),
			zap.Strings("required_agents", required))
		return result, nil
	}

	result.Coordinated = true
	result.Reason = ReasonAllAgentsAvailable
	c.markFailed(outcomes)

	consistent, avg, spread := consistency(outcomes)
	if !consistent {
		divergent := divergentAgents(outcomes)
		if len(divergent) > 0 {
			retry := c.execute(ctx, req, divergent, roles)
			c.markFailed(retry)
			for id, o := range retry {
				outcomes[id] = o
			}
			result.Reexecuted = divergent
			consistent, avg, spread = consistency(outcomes)
		}
	}

	result.Consistent = consistent
	result.AverageQuality = avg
	result.QualitySpread = spread
	result.Results = outcomes
	return result, nil
}

func (c *Coordinator) execute(ctx context.Context, req ActionRequest, ids []string, roles map[string]string) map[string]AgentOutcome {
	results := make([]AgentOutcome, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.executeTimeout)
			defer cancel()

			resp, err := c.transport.Send(callCtx, id, domain.AgentMessage{
				Kind: domain.MessageExecuteAction,
				Task: &domain.ActionTask{
					ActionType: req.ActionType,
					Role:       roles[id],
					Payload:    req.Payload,
				},
			})
			if err != nil {
				results[i] = AgentOutcome{AgentID: id, Status: outcomeStatusFailed, Error: err.Error()}
				return nil
			}
			results[i] = AgentOutcome{
				AgentID:      id,
				Status:       resp.Status,
				QualityScore: resp.QualityScore,
				Output:       resp.Output,
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]AgentOutcome, len(ids))
	for _, r := range results {
		out[r.AgentID] = r
	}
	return out
}

// markFailed flips agents that failed a coordinated call to autonomous.
func (c *Coordinator) markFailed(outcomes map[string]AgentOutcome) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	for id, o := range outcomes {
		if o.Status != outcomeStatusFailed {
			continue
		}
		if a, ok := c.agents[id]; ok {
			a.Status = domain.StatusAutonomous
			a.CapabilityActive = true
			c.logger.Warn("agent failed coordinated action", zap.String("agent_id", id), zap.String("error", o.Error))
		}
	}
}

// consistency requires a quality spread below ConsistencySpreadThreshold and an
// average of at least ConsistencyMinQuality over the agents that answered.
func consistency(outcomes map[string]AgentOutcome) (bool, float64, float64) {
	var scores []float64
	for _, o := range outcomes {
		if o.Status != outcomeStatusFailed {
			scores = append(scores, o.QualityScore)
		}
	}
	if len(scores) == 0 {
		return false, 0, 0
	}
	lo, hi, sum := scores[0], scores[0], 0.0
	for _, s := range scores {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
		sum += s
	}
	avg := sum / float64(len(scores))
	spread := hi - lo
	return spread < ConsistencySpreadThreshold && avg >= ConsistencyMinQuality, avg, spread
}

// divergentAgents returns the agents whose score sits more than half the spread
// threshold away from the median, or below the minimum quality.
func divergentAgents(outcomes map[string]AgentOutcome) []string {
	var scores []float64
	for _, o := range outcomes {
		if o.Status != outcomeStatusFailed {
			scores = append(scores, o.QualityScore)
		}
	}
	if len(scores) == 0 {
		return nil
	}
	sort.Float64s(scores)
	median := scores[len(scores)/2]
	if len(scores)%2 == 0 {
		median = (scores[len(scores)/2-1] + scores[len(scores)/2]) / 2
	}

	var out []string
	for id, o := range outcomes {
		if o.Status == outcomeStatusFailed {
			continue
		}
		if math.Abs(o.QualityScore-median) > ConsistencySpreadThreshold/2 || o.QualityScore < ConsistencyMinQuality {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// HandleUnderstandingEmergence integrates strong, high-confidence patterns at once and
// only records the rest for monitoring.
func (c *Coordinator) HandleUnderstandingEmergence(ctx context.Context, p EmergencePattern) (*EmergenceResult, error) {
	if p.PatternType == "" {
		return nil, ErrPatternTypeMissing
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	strong := p.Strength == "strong" || p.Strength == "very_strong"
	if p.Confidence <= EmergenceConfidenceThreshold || !strong {
		c.stateMu.Lock()
		c.monitored = append(c.monitored, MonitoredPattern{Pattern: p, RecordedAt: c.engine.now()})
		version := c.understanding.Version
		c.stateMu.Unlock()

		return &EmergenceResult{
			Monitoring:  true,
			Version:     version,
			PatternType: p.PatternType,
			Reason:      ReasonInsufficientSignal,
		}, nil
	}

	c.stateMu.Lock()
	now := c.engine.now()
	u := c.understanding
	u.Facts[emergentFactPrefix+p.PatternType] = map[string]any{
		"pattern":       p.Data,
		"confidence":    p.Confidence,
		"strength":      p.Strength,
		"integrated_at": now,
	}
	u.Version++
	u.UpdatedAt = now
	version := u.Version
	c.stateMu.Unlock()

	propagated := c.synchronize(ctx, c.targets(false))
	c.logger.Info("emergent understanding integrated",
		zap.String("pattern_type", p.PatternType),
		zap.Float64("confidence", p.Confidence),
		zap.Int("propagated", propagated))

	return &EmergenceResult{
		Integrated:   true,
		Version:      version,
		PropagatedTo: propagated,
		PatternType:  p.PatternType,
		Reason:       ReasonStrongPattern,
	}, nil
}

// synchronize pushes the current snapshot to ids in parallel, each call bounded by the
// sync timeout. It returns how many agents accepted the push.
func (c *Coordinator) synchronize(ctx context.Context, ids []string) int {
	if len(ids) == 0 {
		return 0
	}

	c.stateMu.Lock()
	snap := c.snapshotLocked()
	for _, id := range ids {
		if a := c.agents[id]; a.Status == domain.StatusSynchronized {
			a.Status = domain.StatusSynchronizing
		}
	}
	c.stateMu.Unlock()

	errs := make([]error, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.syncTimeout)
			defer cancel()
			_, errs[i] = c.transport.Send(callCtx, id, domain.AgentMessage{
				Kind:     domain.MessageSyncUnderstanding,
				Snapshot: &snap,
			})
			return nil
		})
	}
	_ = g.Wait()

	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	now := c.engine.now()
	synced := 0
	for i, id := range ids {
		a := c.agents[id]
		if errs[i] != nil {
			a.Status = domain.StatusAutonomous
			a.CapabilityActive = true
			c.logger.Warn("agent sync failed, operating autonomously",
				zap.String("agent_id", id),
				zap.Int("version", snap.Version),
				zap.Error(errs[i]))
			continue
		}
		a.Status = domain.StatusSynchronized
		a.SyncedVersion = snap.Version
		a.LocalUnderstanding = copyFacts(snap.Facts)
		a.LastHeartbeat = now
		synced++
	}

	for id, a := range c.agents {
		if a.SyncedVersion == c.understanding.Version {
			c.understanding.Participants[id] = true
		} else {
			delete(c.understanding.Participants, id)
		}
	}
	return synced
}

// targets lists roster agents in roster order, either the autonomous ones or the rest.
func (c *Coordinator) targets(autonomous bool) []string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	var out []string
	for _, id := range c.order {
		if (c.agents[id].Status == domain.StatusAutonomous) == autonomous {
			out = append(out, id)
		}
	}
	return out
}

func (c *Coordinator) countLocked(status domain.CoordinationStatus) int {
	n := 0
	for _, a := range c.agents {
		if a.Status == status {
			n++
		}
	}
	return n
}

func (c *Coordinator) autonomousLocked() []string {
	var out []string
	for _, id := range c.order {
		if c.agents[id].Status == domain.StatusAutonomous {
			out = append(out, id)
		}
	}
	return out
}

func (c *Coordinator) snapshotLocked() domain.UnderstandingSnapshot {
	return domain.UnderstandingSnapshot{
		Version:   c.understanding.Version,
		Facts:     copyFacts(c.understanding.Facts),
		UpdatedAt: c.understanding.UpdatedAt,
	}
}

func (c *Coordinator) Snapshot() domain.UnderstandingSnapshot {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.snapshotLocked()
}

// Understanding returns a point-in-time copy of the shared understanding.
func (c *Coordinator) Understanding() domain.SharedUnderstanding {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	u := *c.understanding
	u.Facts = copyFacts(c.understanding.Facts)
	u.ActiveContradictions = make([]*domain.Contradiction, len(c.understanding.ActiveContradictions))
	for i, ct := range c.understanding.ActiveContradictions {
		u.ActiveContradictions[i] = ct.Clone()
	}
	u.Pending = make([]domain.PendingConflict, len(c.understanding.Pending))
	for i, pc := range c.understanding.Pending {
		pc.Contradiction = pc.Contradiction.Clone()
		u.Pending[i] = pc
	}
	u.Resolutions = append([]domain.ResolvedConflict(nil), c.understanding.Resolutions...)
	u.Participants = make(map[string]bool, len(c.understanding.Participants))
	for k, v := range c.understanding.Participants {
		u.Participants[k] = v
	}
	return u
}

func (c *Coordinator) Agent(id string) (domain.AgentState, bool) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	a, ok := c.agents[id]
	if !ok {
		return domain.AgentState{}, false
	}
	cp := *a
	cp.LocalUnderstanding = copyFacts(a.LocalUnderstanding)
	return cp, true
}

func (c *Coordinator) Status() CoordinatorStatus {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	u := c.understanding
	s := CoordinatorStatus{
		UnderstandingID:      u.ID,
		Version:              u.Version,
		FactCount:            len(u.Facts),
		ActiveContradictions: len(u.ActiveContradictions),
		PendingConflicts:     len(u.Pending),
		Participants:         len(u.Participants),
		Confidence:           u.Confidence,
		MonitoredPatterns:    len(c.monitored),
	}
	for _, id := range c.order {
		a := c.agents[id]
		s.Agents = append(s.Agents, AgentStatus{
			ID:               a.ID,
			Role:             a.Role,
			Status:           a.Status,
			CapabilityActive: a.CapabilityActive,
			SyncedVersion:    a.SyncedVersion,
			LastHeartbeat:    a.LastHeartbeat,
		})
	}
	return s
}

func (c *Coordinator) Monitored() []MonitoredPattern {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return append([]MonitoredPattern(nil), c.monitored...)
}

func understandingConfidence(active int) float64 {
	return 1 / (1 + float64(active))
}

func copyFacts(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
