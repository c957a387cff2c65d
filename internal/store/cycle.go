package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/concord/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CycleResultStore keeps the latest summary per cycle id.
type CycleResultStore struct {
	db *pgxpool.Pool
}

func NewCycleResultStore(db *pgxpool.Pool) *CycleResultStore {
	return &CycleResultStore{db: db}
}

func (s *CycleResultStore) Save(ctx context.Context, sum *domain.CycleSummary) error {
	body, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshal cycle summary: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO cycle_results (cycle_id, final_phase, iterations, termination_reason, summary, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (cycle_id) DO UPDATE SET
		   final_phase = EXCLUDED.final_phase,
		   iterations = EXCLUDED.iterations,
		   termination_reason = EXCLUDED.termination_reason,
		   summary = EXCLUDED.summary,
		   generated_at = EXCLUDED.generated_at`,
		sum.CycleID, string(sum.FinalPhase), sum.Iterations, string(sum.TerminationReason), body, sum.GeneratedAt,
	)
	return err
}

func (s *CycleResultStore) GetByCycleID(ctx context.Context, cycleID string) (*domain.CycleSummary, error) {
	var body []byte
	err := s.db.QueryRow(ctx,
		`SELECT summary FROM cycle_results WHERE cycle_id = $1`,
		cycleID,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var sum domain.CycleSummary
	if err := json.Unmarshal(body, &sum); err != nil {
		return nil, fmt.Errorf("unmarshal cycle summary: %w", err)
	}
	return &sum, nil
}
