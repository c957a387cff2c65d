package service

import (
	"context"
	"testing"
	"time"

	"github.com/Harshitk-cp/concord/internal/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestReconciler_ResyncsAutonomousAgents(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, agents := newTestCoordinator(t, nil, "twin-a", "twin-b")
	agents["twin-b"].set(func(f *fakeAgent) { f.failSync = true })

	_, err := c.HandleUnderstandingEmergence(context.Background(), EmergencePattern{PatternType: "load", Confidence: 0.95, Strength: "strong"})
	require.NoError(t, err)
	a, _ := c.Agent("twin-b")
	require.Equal(t, domain.StatusAutonomous, a.Status)

	agents["twin-b"].set(func(f *fakeAgent) { f.failSync = false })

	r := NewReconciler(c, zap.NewNop())
	r.SetInterval(10 * time.Millisecond)
	r.Start()
	defer r.Stop()

	require.Eventually(t, func() bool {
		a, _ := c.Agent("twin-b")
		return a.Status == domain.StatusSynchronized
	}, time.Second, 10*time.Millisecond)
}
