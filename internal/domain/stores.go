package domain

import (
	"context"

	"github.com/google/uuid"
)

// LedgerArchive persists ledger entries append-only, keyed by ledger id.
type LedgerArchive interface {
	Append(ctx context.Context, ledgerID uuid.UUID, e LedgerEntry) error
	List(ctx context.Context, ledgerID uuid.UUID) ([]LedgerEntry, error)
}

type CycleResultStore interface {
	Save(ctx context.Context, s *CycleSummary) error
	GetByCycleID(ctx context.Context, cycleID string) (*CycleSummary, error)
}
