package service

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/concord/internal/domain"
	"go.uber.org/zap"
)

const DefaultMaxIterations = 5

// RefineFunc produces the next draft after an iteration that did not terminate.
type RefineFunc func(ctx context.Context, c *domain.Cycle) (string, error)

// CycleRun is the outcome of a driven cycle.
type CycleRun struct {
	Cycle   *domain.Cycle
	Summary domain.CycleSummary
}

// Driver re-invokes the engine until ShouldTerminate agrees or the iteration valve
// trips. The engine itself never loops.
type Driver struct {
	engine        *CycleEngine
	maxIterations int
	logger        *zap.Logger
}

func NewDriver(engine *CycleEngine, logger *zap.Logger) *Driver {
	return &Driver{
		engine:        engine,
		maxIterations: DefaultMaxIterations,
		logger:        logger,
	}
}

func (d *Driver) SetMaxIterations(n int) {
	if n > 0 {
		d.maxIterations = n
	}
}

func (d *Driver) Engine() *CycleEngine {
	return d.engine
}

// Run drives a new cycle over content. A nil refine re-drafts the revised content,
// gap annotations included.
func (d *Driver) Run(ctx context.Context, id, content string, refine RefineFunc) (*CycleRun, error) {
	c := d.engine.StartCycle(id, content)
	next := content

	for {
		if err := d.engine.RunIteration(ctx, c, next); err != nil {
			d.logger.Warn("cycle abandoned",
				zap.String("cycle_id", c.ID),
				zap.Int("iteration", c.Iteration),
				zap.String("phase", string(c.Phase)),
				zap.Error(err))
			return &CycleRun{Cycle: c, Summary: d.engine.Summary(c)}, err
		}

		if done, _ := d.engine.ShouldTerminate(c); done {
			return &CycleRun{Cycle: c, Summary: d.engine.Summary(c)}, nil
		}
		if c.Iteration >= d.maxIterations {
			summary := d.engine.Summary(c)
			summary.TerminationReason = domain.ReasonMaxIterations
			d.engine.remember(summary)
			if d.engine.results != nil {
				if err := d.engine.results.Save(ctx, &summary); err != nil {
					d.logger.Warn("failed to persist cycle result", zap.String("cycle_id", c.ID), zap.Error(err))
				}
			}
			d.logger.Info("cycle stopped at iteration limit",
				zap.String("cycle_id", c.ID),
				zap.Int("iterations", c.Iteration))
			return &CycleRun{Cycle: c, Summary: summary}, nil
		}

		if refine == nil {
			next = c.Content
			continue
		}
		refined, err := refine(ctx, c)
		if err != nil {
			return &CycleRun{Cycle: c, Summary: d.engine.Summary(c)}, fmt.Errorf("refine cycle %s: %w", c.ID, err)
		}
		next = refined
	}
}
