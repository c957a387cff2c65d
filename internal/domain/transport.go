package domain

import "context"

type MessageKind string

const (
	MessageSyncUnderstanding    MessageKind = "sync_understanding"
	MessageAnalyzeContradiction MessageKind = "analyze_contradiction"
	MessageExecuteAction        MessageKind = "execute_action"
)

func ValidMessageKind(s string) bool {
	switch MessageKind(s) {
	case MessageSyncUnderstanding, MessageAnalyzeContradiction, MessageExecuteAction:
		return true
	}
	return false
}

// ActionTask is the slice of a coordinated action assigned to one agent.
type ActionTask struct {
	ActionType string         `json:"action_type"`
	Role       string         `json:"role"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type AgentMessage struct {
	Kind          MessageKind            `json:"kind"`
	Snapshot      *UnderstandingSnapshot `json:"snapshot,omitempty"`
	Contradiction *Contradiction         `json:"contradiction,omitempty"`
	Task          *ActionTask            `json:"task,omitempty"`
}

type AgentResponse struct {
	AgentID      string         `json:"agent_id"`
	Status       string         `json:"status"`
	Analysis     string         `json:"analysis,omitempty"`
	QualityScore float64        `json:"quality_score"`
	Output       map[string]any `json:"output,omitempty"`
}

// AgentTransport reaches a remote agent. The only contract is: send with the deadline
// carried by ctx, get a structured response or an error.
type AgentTransport interface {
	Send(ctx context.Context, agentID string, msg AgentMessage) (*AgentResponse, error)
}

// AgentHandler is the receiving side of AgentTransport.
type AgentHandler interface {
	Handle(ctx context.Context, msg AgentMessage) (*AgentResponse, error)
}
