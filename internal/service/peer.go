package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Harshitk-cp/concord/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrSnapshotMissing      = errors.New("snapshot is required")
	ErrStaleSnapshot        = errors.New("snapshot is older than the current understanding")
	ErrContradictionMissing = errors.New("contradiction is required")
	ErrTaskMissing          = errors.New("task is required")
	ErrUnsupportedMessage   = errors.New("unsupported message kind")
)

// PeerAgent answers coordinator messages on behalf of this process. It keeps the last
// understanding pushed to it and routes analysis and execution through its workspace.
type PeerAgent struct {
	id        string
	workspace *Workspace
	logger    *zap.Logger

	mu       sync.RWMutex
	snapshot *domain.UnderstandingSnapshot
}

func NewPeerAgent(id string, ws *Workspace, logger *zap.Logger) *PeerAgent {
	return &PeerAgent{id: id, workspace: ws, logger: logger}
}

func (p *PeerAgent) ID() string {
	return p.id
}

func (p *PeerAgent) Handle(ctx context.Context, msg domain.AgentMessage) (*domain.AgentResponse, error) {
	switch msg.Kind {
	case domain.MessageSyncUnderstanding:
		return p.sync(msg.Snapshot)
	case domain.MessageAnalyzeContradiction:
		return p.analyze(msg.Contradiction)
	case domain.MessageExecuteAction:
		return p.execute(ctx, msg.Task)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedMessage, msg.Kind)
}

func (p *PeerAgent) sync(snap *domain.UnderstandingSnapshot) (*domain.AgentResponse, error) {
	if snap == nil {
		return nil, ErrSnapshotMissing
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snapshot != nil && snap.Version < p.snapshot.Version {
		return nil, fmt.Errorf("%w: have %d, got %d", ErrStaleSnapshot, p.snapshot.Version, snap.Version)
	}
	cp := *snap
	cp.Facts = copyFacts(snap.Facts)
	p.snapshot = &cp

	p.logger.Debug("understanding synchronized", zap.String("agent_id", p.id), zap.Int("version", snap.Version))
	return &domain.AgentResponse{
		AgentID: p.id,
		Status:  string(domain.StatusSynchronized),
		Output:  map[string]any{"understanding_version": snap.Version},
	}, nil
}

func (p *PeerAgent) analyze(ct *domain.Contradiction) (*domain.AgentResponse, error) {
	if ct == nil {
		return nil, ErrContradictionMissing
	}
	ps := p.workspace.Perspectives(ct.StatementA + " " + ct.StatementB)
	return &domain.AgentResponse{
		AgentID:      p.id,
		Status:       "analyzed",
		Analysis:     strings.Join(perspectiveLines(ps), "; "),
		QualityScore: averageConfidence(ps),
	}, nil
}

// execute audits the task content internally. Quality is the average perspective
// confidence scaled by the share of contradictions the agent resolved.
func (p *PeerAgent) execute(ctx context.Context, task *domain.ActionTask) (*domain.AgentResponse, error) {
	if task == nil {
		return nil, ErrTaskMissing
	}
	content := task.ActionType
	if s, ok := task.Payload["content"].(string); ok && strings.TrimSpace(s) != "" {
		content = s
	}

	res, err := p.workspace.Process(ctx, content)
	if err != nil {
		return nil, err
	}

	resolvedShare := 1.0
	if n := len(res.Contradictions); n > 0 {
		resolvedShare = float64(res.Resolved) / float64(n)
	}
	return &domain.AgentResponse{
		AgentID:      p.id,
		Status:       "completed",
		QualityScore: averageConfidence(res.Perspectives) * resolvedShare,
		Output: map[string]any{
			"role":                    task.Role,
			"dialogue_id":             res.DialogueID,
			"understanding":           res.Understanding,
			"contradictions_detected": len(res.Contradictions),
			"contradictions_resolved": res.Resolved,
			"integrity":               res.Integrity,
		},
	}, nil
}

// Snapshot returns the last understanding pushed to this agent.
func (p *PeerAgent) Snapshot() (domain.UnderstandingSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.snapshot == nil {
		return domain.UnderstandingSnapshot{}, false
	}
	cp := *p.snapshot
	cp.Facts = copyFacts(p.snapshot.Facts)
	return cp, true
}
