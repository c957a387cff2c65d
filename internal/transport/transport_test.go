package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Harshitk-cp/concord/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTP_Send(t *testing.T) {
	var gotPath, gotAuth string
	var gotMsg domain.AgentMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotMsg)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.AgentResponse{Status: "synchronized", QualityScore: 0.9})
	}))
	defer srv.Close()

	tr := NewHTTP([]domain.AgentConfig{{ID: "twin-a", Role: "text", URL: srv.URL + "/"}}, "secret")
	resp, err := tr.Send(context.Background(), "twin-a", domain.AgentMessage{
		Kind:     domain.MessageSyncUnderstanding,
		Snapshot: &domain.UnderstandingSnapshot{Version: 3, Facts: map[string]any{"status": "safe"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "/agent/sync_understanding", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	require.NotNil(t, gotMsg.Snapshot)
	assert.Equal(t, 3, gotMsg.Snapshot.Version)
	assert.Equal(t, "twin-a", resp.AgentID)
	assert.Equal(t, "synchronized", resp.Status)
}

func TestHTTP_SendNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewHTTP([]domain.AgentConfig{{ID: "a", URL: srv.URL}}, "")
	_, err := tr.Send(context.Background(), "a", domain.AgentMessage{Kind: domain.MessageExecuteAction})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTP_SendHonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tr := NewHTTP([]domain.AgentConfig{{ID: "slow", URL: srv.URL}}, "")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := tr.Send(ctx, "slow", domain.AgentMessage{Kind: domain.MessageSyncUnderstanding})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestHTTP_UnknownAgentAndKind(t *testing.T) {
	tr := NewHTTP([]domain.AgentConfig{{ID: "a", URL: "http://127.0.0.1:1"}}, "")

	_, err := tr.Send(context.Background(), "b", domain.AgentMessage{Kind: domain.MessageSyncUnderstanding})
	assert.ErrorIs(t, err, ErrUnknownAgent)

	_, err = tr.Send(context.Background(), "a", domain.AgentMessage{Kind: "reboot"})
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestLocal_Send(t *testing.T) {
	l := NewLocal()
	l.Register("a", HandlerFunc(func(ctx context.Context, msg domain.AgentMessage) (*domain.AgentResponse, error) {
		return &domain.AgentResponse{Status: "ok", Analysis: string(msg.Kind)}, nil
	}))
	l.Register("slow", HandlerFunc(func(ctx context.Context, msg domain.AgentMessage) (*domain.AgentResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	resp, err := l.Send(context.Background(), "a", domain.AgentMessage{Kind: domain.MessageAnalyzeContradiction})
	require.NoError(t, err)
	assert.Equal(t, "a", resp.AgentID)
	assert.Equal(t, "analyze_contradiction", resp.Analysis)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Send(ctx, "slow", domain.AgentMessage{Kind: domain.MessageSyncUnderstanding})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = l.Send(context.Background(), "missing", domain.AgentMessage{Kind: domain.MessageSyncUnderstanding})
	assert.ErrorIs(t, err, ErrUnknownAgent)
}
