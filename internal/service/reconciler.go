package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReconcileInterval = 30 * time.Second
	reconcileRunTimeout      = 30 * time.Second
)

// Reconciler periodically brings autonomous agents back into sync and retries the
// grounding conflicts left pending.
type Reconciler struct {
	coordinator *Coordinator
	logger      *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewReconciler(c *Coordinator, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		coordinator: c,
		logger:      logger,
		interval:    defaultReconcileInterval,
		stopCh:      make(chan struct{}),
	}
}

func (r *Reconciler) SetInterval(d time.Duration) {
	if d > 0 {
		r.interval = d
	}
}

// Start runs the reconciler on a periodic schedule in a background goroutine.
func (r *Reconciler) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.Info("coordination reconciler started", zap.Duration("interval", r.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), reconcileRunTimeout)
				r.run(ctx)
				cancel()
			case <-r.stopCh:
				r.logger.Info("coordination reconciler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the reconciler.
func (r *Reconciler) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Reconciler) run(ctx context.Context) {
	if n := r.coordinator.ResyncAutonomous(ctx); n > 0 {
		r.logger.Info("autonomous agents resynchronized", zap.Int("count", n))
	}

	resolved, err := r.coordinator.RetryPending(ctx)
	if err != nil {
		r.logger.Error("failed to retry pending conflicts", zap.Error(err))
		return
	}
	if resolved > 0 {
		r.logger.Info("pending conflicts resolved", zap.Int("count", resolved))
	}
}
