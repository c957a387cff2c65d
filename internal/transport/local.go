package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/Harshitk-cp/concord/internal/domain"
)

// HandlerFunc adapts a function to domain.AgentHandler.
type HandlerFunc func(ctx context.Context, msg domain.AgentMessage) (*domain.AgentResponse, error)

func (f HandlerFunc) Handle(ctx context.Context, msg domain.AgentMessage) (*domain.AgentResponse, error) {
	return f(ctx, msg)
}

// Local dispatches to in-process handlers. Handlers are expected to honour ctx; a
// response that arrives after the deadline is discarded.
type Local struct {
	mu       sync.RWMutex
	handlers map[string]domain.AgentHandler
}

func NewLocal() *Local {
	return &Local{handlers: make(map[string]domain.AgentHandler)}
}

func (l *Local) Register(agentID string, h domain.AgentHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[agentID] = h
}

func (l *Local) Send(ctx context.Context, agentID string, msg domain.AgentMessage) (*domain.AgentResponse, error) {
	l.mu.RLock()
	h, ok := l.handlers[agentID]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	if !domain.ValidMessageKind(string(msg.Kind)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, msg.Kind)
	}

	resp, err := h.Handle(ctx, msg)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("agent %s: %w", agentID, err)
	}
	if resp.AgentID == "" {
		resp.AgentID = agentID
	}
	return resp, nil
}
