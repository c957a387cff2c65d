package domain

import (
	"encoding/json"
	"time"
)

// LedgerEntry is one hash-chained record. Hash covers timestamp, event tag,
// canonical payload and the previous hash.
type LedgerEntry struct {
	Index     int             `json:"index"`
	Timestamp time.Time       `json:"timestamp"`
	EventTag  string          `json:"event_tag"`
	Payload   json.RawMessage `json:"payload"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

// LedgerExport is the self-contained form handed to third parties for re-verification.
type LedgerExport struct {
	LedgerID    string        `json:"ledger_id"`
	GenesisHash string        `json:"genesis_hash"`
	Entries     []LedgerEntry `json:"entries"`
}
