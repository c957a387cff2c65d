package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Harshitk-cp/concord/internal/detect"
	"github.com/Harshitk-cp/concord/internal/domain"
	"github.com/Harshitk-cp/concord/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

// fakeAgent is a scriptable domain.AgentHandler.
type fakeAgent struct {
	mu       sync.Mutex
	scores   []float64
	executes int
	syncs    []domain.UnderstandingSnapshot
	analyzed int
	failSync bool
	failExec bool
	slow     bool
}

func (f *fakeAgent) Handle(ctx context.Context, msg domain.AgentMessage) (*domain.AgentResponse, error) {
	f.mu.Lock()
	slow := f.slow
	f.mu.Unlock()
	if slow {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch msg.Kind {
	case domain.MessageSyncUnderstanding:
		if f.failSync {
			return nil, errors.New("sync refused")
		}
		f.syncs = append(f.syncs, *msg.Snapshot)
		return &domain.AgentResponse{Status: "synchronized"}, nil
	case domain.MessageAnalyzeContradiction:
		f.analyzed++
		return &domain.AgentResponse{Status: "analyzed", Analysis: "deployment window noted"}, nil
	default:
		if f.failExec {
			return nil, errors.New("executor crashed")
		}
		score := 0.9
		if len(f.scores) > 0 {
			score = f.scores[min(f.executes, len(f.scores)-1)]
		}
		f.executes++
		return &domain.AgentResponse{Status: "completed", QualityScore: score}, nil
	}
}

func (f *fakeAgent) set(fn func(*fakeAgent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAgent) lastSync() (domain.UnderstandingSnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.syncs) == 0 {
		return domain.UnderstandingSnapshot{}, false
	}
	return f.syncs[len(f.syncs)-1], true
}

// flakyResolver fails its first attempts through the keyword resolver, then resolves
// everything.
type flakyResolver struct {
	mu       sync.Mutex
	kw       *detect.Keyword
	failures int
}

func (r *flakyResolver) Resolve(c domain.Contradiction, content string) domain.Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return r.kw.Resolve(c, content)
	}
	return domain.Resolution{Success: true, Method: "operator_override", RevisedContent: content}
}

func newTestCoordinator(t *testing.T, e *CycleEngine, ids ...string) (*Coordinator, map[string]*fakeAgent) {
	t.Helper()
	local := transport.NewLocal()
	agents := make(map[string]*fakeAgent, len(ids))
	roster := make([]domain.AgentConfig, 0, len(ids))
	for _, id := range ids {
		fa := &fakeAgent{}
		agents[id] = fa
		local.Register(id, fa)
		roster = append(roster, domain.AgentConfig{ID: id, Role: "role-" + id})
	}
	if e == nil {
		e = newTestEngine()
	}
	return NewCoordinator(e, detect.NewKeyword(), local, roster, zap.NewNop()), agents
}

func TestCoordinator_CompatibleMerge(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, _ := newTestCoordinator(t, nil, "twin-a", "twin-b")

	res, err := c.EstablishCommonGrounding(context.Background(), map[string]any{"region": "eu-west"}, "twin-a")
	require.NoError(t, err)

	assert.True(t, res.Established)
	assert.Equal(t, IntegrationCompatibleMerge, res.Integration)
	assert.Equal(t, 2, res.Version)

	u := c.Understanding()
	assert.Equal(t, "eu-west", u.Facts["region"])
	assert.True(t, u.Participants["twin-a"])
	assert.Equal(t, 1.0, u.Confidence)
}

func TestCoordinator_GroundingValidation(t *testing.T) {
	c, _ := newTestCoordinator(t, nil, "twin-a")

	_, err := c.EstablishCommonGrounding(context.Background(), nil, "twin-a")
	assert.ErrorIs(t, err, ErrNoFacts)

	_, err = c.EstablishCommonGrounding(context.Background(), map[string]any{"k": "v"}, "")
	assert.ErrorIs(t, err, ErrSourceAgentMissing)
}

func TestCoordinator_UnresolvedConflictWithdrawsKey(t *testing.T) {
	defer goleak.VerifyNone(t)
	e := newTestEngine()
	c, _ := newTestCoordinator(t, e, "twin-a", "twin-b")
	ctx := context.Background()

	_, err := c.EstablishCommonGrounding(ctx, map[string]any{"status": "safe"}, "twin-a")
	require.NoError(t, err)
	before := e.Ledger().Len()

	res, err := c.EstablishCommonGrounding(ctx, map[string]any{"status": "unsafe"}, "twin-b")
	require.NoError(t, err)

	assert.False(t, res.Established)
	assert.Equal(t, ReasonPartialResolution, res.Reason)
	assert.Equal(t, 1, res.ContradictionsDetected)
	assert.Equal(t, 0, res.ContradictionsResolved)
	assert.Len(t, res.ResolutionCycles, 1)
	assert.ElementsMatch(t, []string{"twin-a", "twin-b"}, res.AutonomousAgents)
	assert.Equal(t, 2, res.Version, "a failed round leaves the version unchanged")
	assert.Equal(t, before+4, e.Ledger().Len(), "one cycle iteration is recorded")

	u := c.Understanding()
	assert.NotContains(t, u.Facts, "status")
	assert.Equal(t, 2, u.Version)
	require.Len(t, u.ActiveContradictions, 1)
	assert.Equal(t, domain.ContradictionCrossAgent, u.ActiveContradictions[0].Kind)
	assert.Equal(t, domain.DefaultStoredPotential, u.ActiveContradictions[0].StoredPotential)
	assert.Len(t, u.Pending, 1)
	assert.Equal(t, 0.5, u.Confidence)

	for _, id := range []string{"twin-a", "twin-b"} {
		a, ok := c.Agent(id)
		require.True(t, ok)
		assert.Equal(t, domain.StatusAutonomous, a.Status)
		assert.True(t, a.CapabilityActive)
	}

	// A later merge of the same key supersedes the pending conflict.
	_, err = c.EstablishCommonGrounding(ctx, map[string]any{"status": "safe"}, "twin-a")
	require.NoError(t, err)
	u = c.Understanding()
	assert.Equal(t, "safe", u.Facts["status"])
	assert.Empty(t, u.Pending)
	assert.Empty(t, u.ActiveContradictions)
	assert.Equal(t, 1.0, u.Confidence)
}

func TestCoordinator_ResolvedConflictMergesAndSyncs(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, agents := newTestCoordinator(t, nil, "twin-a", "twin-b")
	ctx := context.Background()

	_, err := c.EstablishCommonGrounding(ctx, map[string]any{"uptime": "usually always available"}, "twin-a")
	require.NoError(t, err)

	res, err := c.EstablishCommonGrounding(ctx, map[string]any{"uptime": "in practice never available"}, "twin-b")
	require.NoError(t, err)

	assert.True(t, res.Established)
	assert.Equal(t, IntegrationResolvedMerge, res.Integration)
	assert.Equal(t, 1, res.ContradictionsResolved)
	assert.Equal(t, 3, res.Version)
	assert.Equal(t, 2, res.SynchronizedAgents)
	assert.Empty(t, res.AutonomousAgents)

	u := c.Understanding()
	assert.Equal(t, "in practice never available", u.Facts["uptime"])
	require.Len(t, u.Resolutions, 1)
	assert.Equal(t, MethodCrossAgentCycle, u.Resolutions[0].Method)
	assert.Equal(t, "usually always available", u.Resolutions[0].Previous)
	assert.True(t, u.Participants["twin-a"])
	assert.True(t, u.Participants["twin-b"])

	for id, fa := range agents {
		snap, ok := fa.lastSync()
		require.True(t, ok, "agent %s was not synchronized", id)
		assert.Equal(t, 3, snap.Version)
		assert.Equal(t, 1, fa.analyzed, "agent %s should be asked for a perspective", id)

		a, _ := c.Agent(id)
		assert.Equal(t, domain.StatusSynchronized, a.Status)
		assert.Equal(t, 3, a.SyncedVersion)
		assert.Equal(t, "in practice never available", a.LocalUnderstanding["uptime"])
	}
}

func TestCoordinator_SlowAgentDegradesAlone(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, agents := newTestCoordinator(t, nil, "twin-a", "twin-b", "twin-c")
	c.SetTimeouts(30*time.Millisecond, 30*time.Millisecond, 30*time.Millisecond)
	agents["twin-c"].set(func(f *fakeAgent) { f.slow = true })
	ctx := context.Background()

	_, err := c.EstablishCommonGrounding(ctx, map[string]any{"uptime": "usually always available"}, "twin-a")
	require.NoError(t, err)
	res, err := c.EstablishCommonGrounding(ctx, map[string]any{"uptime": "in practice never available"}, "twin-b")
	require.NoError(t, err)

	assert.True(t, res.Established)
	assert.Equal(t, 2, res.SynchronizedAgents)
	assert.Equal(t, []string{"twin-c"}, res.AutonomousAgents)

	u := c.Understanding()
	assert.False(t, u.Participants["twin-c"])

	agents["twin-c"].set(func(f *fakeAgent) { f.slow = false })
	assert.Equal(t, 1, c.ResyncAutonomous(ctx))

	a, _ := c.Agent("twin-c")
	assert.Equal(t, domain.StatusSynchronized, a.Status)
	assert.Equal(t, u.Version, a.SyncedVersion)
	assert.True(t, c.Understanding().Participants["twin-c"])
}

func TestCoordinator_FailedSyncKeepsAgentAutonomous(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, agents := newTestCoordinator(t, nil, "twin-a", "twin-b")
	agents["twin-b"].set(func(f *fakeAgent) { f.failSync = true })
	ctx := context.Background()

	res, err := c.HandleUnderstandingEmergence(ctx, EmergencePattern{PatternType: "load", Confidence: 0.95, Strength: "very_strong"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.PropagatedTo)

	a, _ := c.Agent("twin-b")
	assert.Equal(t, domain.StatusAutonomous, a.Status)
	assert.Equal(t, 0, c.ResyncAutonomous(ctx))

	a, _ = c.Agent("twin-b")
	assert.Equal(t, domain.StatusAutonomous, a.Status, "only a successful sync leaves autonomous")
}

func TestCoordinator_RetryPendingRestoresKey(t *testing.T) {
	defer goleak.VerifyNone(t)
	kw := detect.NewKeyword()
	e := newTestEngine()
	e.resolver = &flakyResolver{kw: kw, failures: 1}
	c, agents := newTestCoordinator(t, e, "twin-a", "twin-b")
	ctx := context.Background()

	_, err := c.EstablishCommonGrounding(ctx, map[string]any{"status": "safe"}, "twin-a")
	require.NoError(t, err)
	res, err := c.EstablishCommonGrounding(ctx, map[string]any{"status": "unsafe"}, "twin-b")
	require.NoError(t, err)
	require.False(t, res.Established)

	n, err := c.RetryPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	u := c.Understanding()
	assert.Equal(t, "unsafe", u.Facts["status"])
	assert.Empty(t, u.Pending)
	assert.Empty(t, u.ActiveContradictions)
	assert.Equal(t, 3, u.Version)
	require.Len(t, u.Resolutions, 1)
	assert.Equal(t, "twin-b", u.Resolutions[0].Source)

	_, synced := agents["twin-a"].lastSync()
	assert.False(t, synced, "autonomous agents are not pushed by a retry")

	assert.Equal(t, 2, c.ResyncAutonomous(ctx))
	for id := range agents {
		a, _ := c.Agent(id)
		assert.Equal(t, domain.StatusSynchronized, a.Status)
		assert.Equal(t, 3, a.SyncedVersion)
	}

	n, err = c.RetryPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCoordinator_UnderstandingIsStableDuringRetry(t *testing.T) {
	defer goleak.VerifyNone(t)
	kw := detect.NewKeyword()
	e := newTestEngine()
	e.resolver = &flakyResolver{kw: kw, failures: 1}
	c, _ := newTestCoordinator(t, e, "twin-a", "twin-b")
	ctx := context.Background()

	_, err := c.EstablishCommonGrounding(ctx, map[string]any{"status": "safe"}, "twin-a")
	require.NoError(t, err)
	_, err = c.EstablishCommonGrounding(ctx, map[string]any{"status": "unsafe"}, "twin-b")
	require.NoError(t, err)

	u := c.Understanding()
	require.Len(t, u.ActiveContradictions, 1)
	require.Len(t, u.Pending, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, _ = json.Marshal(u.ActiveContradictions)
			_, _ = json.Marshal(u.Pending)
		}
	}()

	n, err := c.RetryPending(ctx)
	wg.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The earlier snapshot still shows the conflict as it was when taken.
	assert.False(t, u.ActiveContradictions[0].Resolved)
	assert.Nil(t, u.ActiveContradictions[0].ResolvedAt)
	assert.False(t, u.Pending[0].Contradiction.Resolved)
	assert.Empty(t, c.Understanding().ActiveContradictions)
}

func TestCoordinator_CoordinatedActionIsConsistent(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, agents := newTestCoordinator(t, nil, "twin-a", "twin-b")

	res, err := c.CoordinateRealTimeAction(context.Background(), ActionRequest{ActionType: "rollout"})
	require.NoError(t, err)

	assert.True(t, res.Coordinated)
	assert.False(t, res.Degraded)
	assert.True(t, res.Consistent)
	assert.Equal(t, ReasonAllAgentsAvailable, res.Reason)
	assert.InDelta(t, 0.9, res.AverageQuality, 1e-9)
	assert.Empty(t, res.Reexecuted)
	assert.Len(t, res.Results, 2)
	for _, fa := range agents {
		assert.Equal(t, 1, fa.executes)
	}
}

func TestCoordinator_DivergentAgentIsReexecuted(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, agents := newTestCoordinator(t, nil, "twin-a", "twin-b", "twin-c")
	agents["twin-c"].set(func(f *fakeAgent) { f.scores = []float64{0.3, 0.85} })

	res, err := c.CoordinateRealTimeAction(context.Background(), ActionRequest{ActionType: "rollout"})
	require.NoError(t, err)

	assert.Equal(t, []string{"twin-c"}, res.Reexecuted)
	assert.True(t, res.Consistent)
	assert.InDelta(t, 0.85, res.Results["twin-c"].QualityScore, 1e-9)
	assert.Equal(t, 2, agents["twin-c"].executes)
	assert.Equal(t, 1, agents["twin-a"].executes)
}

func TestCoordinator_FailedExecutionFlipsAgent(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, agents := newTestCoordinator(t, nil, "twin-a", "twin-b")
	agents["twin-b"].set(func(f *fakeAgent) { f.failExec = true })

	res, err := c.CoordinateRealTimeAction(context.Background(), ActionRequest{ActionType: "rollout"})
	require.NoError(t, err)

	assert.Equal(t, outcomeStatusFailed, res.Results["twin-b"].Status)
	assert.NotEmpty(t, res.Results["twin-b"].Error)
	a, _ := c.Agent("twin-b")
	assert.Equal(t, domain.StatusAutonomous, a.Status)

	res, err = c.CoordinateRealTimeAction(context.Background(), ActionRequest{ActionType: "rollout", RequiredAgents: []string{"twin-a", "twin-b"}})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.False(t, res.Coordinated)
	assert.Equal(t, ReasonAgentsUnavailable, res.Reason)
	assert.Equal(t, outcomeStatusAutonomously, res.Results["twin-a"].Status)
}

func TestCoordinator_ActionValidation(t *testing.T) {
	c, _ := newTestCoordinator(t, nil, "twin-a")

	_, err := c.CoordinateRealTimeAction(context.Background(), ActionRequest{})
	assert.ErrorIs(t, err, ErrActionTypeMissing)

	_, err = c.CoordinateRealTimeAction(context.Background(), ActionRequest{ActionType: "x", RequiredAgents: []string{"ghost"}})
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestCoordinator_Emergence(t *testing.T) {
	defer goleak.VerifyNone(t)
	e := newTestEngine()
	c, _ := newTestCoordinator(t, e, "twin-a", "twin-b")
	ctx := context.Background()
	ledgerLen := e.Ledger().Len()

	strong, err := c.HandleUnderstandingEmergence(ctx, EmergencePattern{
		PatternType: "traffic_shift",
		Confidence:  0.9,
		Strength:    "strong",
		Data:        map[string]any{"region": "eu"},
	})
	require.NoError(t, err)
	assert.True(t, strong.Integrated)
	assert.Equal(t, 2, strong.Version)
	assert.Equal(t, 2, strong.PropagatedTo)
	assert.Equal(t, ledgerLen, e.Ledger().Len(), "emergence runs no cycle")
	assert.Contains(t, c.Understanding().Facts, "emergent_traffic_shift")

	weak, err := c.HandleUnderstandingEmergence(ctx, EmergencePattern{PatternType: "noise", Confidence: 0.5, Strength: "strong"})
	require.NoError(t, err)
	assert.False(t, weak.Integrated)
	assert.True(t, weak.Monitoring)
	assert.Equal(t, 2, weak.Version)
	assert.Equal(t, ReasonInsufficientSignal, weak.Reason)
	assert.Len(t, c.Monitored(), 1)

	_, err = c.HandleUnderstandingEmergence(ctx, EmergencePattern{})
	assert.ErrorIs(t, err, ErrPatternTypeMissing)
}

func TestCoordinator_Status(t *testing.T) {
	c, _ := newTestCoordinator(t, nil, "twin-a", "twin-b")
	_, err := c.EstablishCommonGrounding(context.Background(), map[string]any{"a": 1, "b": true}, "twin-a")
	require.NoError(t, err)

	s := c.Status()
	assert.Equal(t, 2, s.Version)
	assert.Equal(t, 2, s.FactCount)
	assert.Equal(t, 1, s.Participants)
	require.Len(t, s.Agents, 2)
	assert.Equal(t, "twin-a", s.Agents[0].ID)
	assert.Equal(t, "role-twin-a", s.Agents[0].Role)
	assert.Equal(t, domain.StatusSynchronized, s.Agents[0].Status)
}
