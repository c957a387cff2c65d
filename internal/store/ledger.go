package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/concord/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerStore archives ledger entries. Rows are only ever inserted; a duplicate
// (ledger_id, idx) is reported as ErrConflict.
type LedgerStore struct {
	db *pgxpool.Pool
}

func NewLedgerStore(db *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) Append(ctx context.Context, ledgerID uuid.UUID, e domain.LedgerEntry) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO ledger_entries (ledger_id, idx, ts, event_tag, payload, prev_hash, hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ledgerID, e.Index, e.Timestamp, e.EventTag, []byte(e.Payload), e.PrevHash, e.Hash,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert ledger entry %d: %w", e.Index, err)
	}
	return nil
}

func (s *LedgerStore) List(ctx context.Context, ledgerID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT idx, ts, event_tag, payload, prev_hash, hash
		 FROM ledger_entries WHERE ledger_id = $1
		 ORDER BY idx`,
		ledgerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var payload []byte
		if err := rows.Scan(&e.Index, &e.Timestamp, &e.EventTag, &payload, &e.PrevHash, &e.Hash); err != nil {
			return nil, err
		}
		e.Payload = payload
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
