// Package transport delivers coordinator messages to agents, either over HTTP or to
// handlers living in the same process.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/concord/internal/domain"
)

var (
	ErrUnknownAgent = errors.New("unknown agent")
	ErrInvalidKind  = errors.New("invalid message kind")
)

// AgentPath is the route prefix peers serve messages under; the kind is appended.
const AgentPath = "/agent/"

// HTTP posts messages as JSON to <agent url>/agent/<kind>. The call deadline is the
// one carried by ctx.
type HTTP struct {
	endpoints  map[string]string
	apiKey     string
	httpClient *http.Client
}

func NewHTTP(roster []domain.AgentConfig, apiKey string) *HTTP {
	endpoints := make(map[string]string, len(roster))
	for _, a := range roster {
		endpoints[a.ID] = strings.TrimRight(a.URL, "/")
	}
	return &HTTP{
		endpoints:  endpoints,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

func (t *HTTP) Send(ctx context.Context, agentID string, msg domain.AgentMessage) (*domain.AgentResponse, error) {
	base, ok := t.endpoints[agentID]
	if !ok || base == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	if !domain.ValidMessageKind(string(msg.Kind)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, msg.Kind)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal agent message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+AgentPath+string(msg.Kind), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent %s request failed: %w", agentID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read agent response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent %s returned status %d: %s", agentID, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result domain.AgentResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal agent response: %w", err)
	}
	if result.AgentID == "" {
		result.AgentID = agentID
	}
	return &result, nil
}
