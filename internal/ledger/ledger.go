// Package ledger implements an append-only, hash-chained audit log. Every entry's hash
// covers its timestamp, event tag, canonical payload and the previous entry's hash, so
// any party holding an export can re-verify it by recomputing and comparing.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/Harshitk-cp/concord/internal/domain"
	"github.com/google/uuid"
)

const hashSeparator = "|"

type Option func(*Ledger)

// WithGenesisSeed roots the chain at a reproducible genesis hash.
func WithGenesisSeed(seed string) Option {
	return func(l *Ledger) {
		l.seed = &seed
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

func WithID(id uuid.UUID) Option {
	return func(l *Ledger) {
		l.id = id
	}
}

// Ledger is safe for concurrent use; appends are serialized so the instance behaves as
// a single writer, and reads observe one point-in-time view.
type Ledger struct {
	mu      sync.RWMutex
	id      uuid.UUID
	seed    *string
	genesis string
	entries []domain.LedgerEntry
	now     func() time.Time
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		id:  uuid.New(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	seed := time.Now().UTC().Format(time.RFC3339Nano)
	if l.seed != nil {
		seed = *l.seed
	}
	l.genesis = GenesisHash(seed)
	return l
}

// GenesisHash derives the root hash for a seed.
func GenesisHash(seed string) string {
	sum := sha256.Sum256([]byte("genesis" + hashSeparator + seed))
	return hex.EncodeToString(sum[:])
}

func (l *Ledger) ID() uuid.UUID {
	return l.id
}

func (l *Ledger) Genesis() string {
	return l.genesis
}

// Append records an event and returns its hash.
func (l *Ledger) Append(eventTag string, payload any) (string, error) {
	e, err := l.AppendEntry(eventTag, payload)
	if err != nil {
		return "", err
	}
	return e.Hash, nil
}

// AppendEntry records an event and returns a copy of the stored entry.
func (l *Ledger) AppendEntry(eventTag string, payload any) (domain.LedgerEntry, error) {
	canonical, err := Marshal(payload)
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.genesis
	if n := len(l.entries); n > 0 {
		prev = l.entries[n-1].Hash
	}

	// Microsecond precision survives a round trip through the archive.
	ts := l.now().UTC().Truncate(time.Microsecond)
	e := domain.LedgerEntry{
		Index:     len(l.entries),
		Timestamp: ts,
		EventTag:  eventTag,
		Payload:   canonical,
		PrevHash:  prev,
	}
	e.Hash = computeHash(ts, eventTag, canonical, prev)
	l.entries = append(l.entries, e)
	return copyEntry(e), nil
}

// ValidateIntegrity walks the chain from genesis recomputing every hash. It runs in
// O(n), never mutates, and returns an *IntegrityError naming the first bad index.
func (l *Ledger) ValidateIntegrity() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Verify(l.genesis, l.entries)
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Head returns the latest hash, or the genesis hash for an empty ledger.
func (l *Ledger) Head() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n := len(l.entries); n > 0 {
		return l.entries[n-1].Hash
	}
	return l.genesis
}

// Export returns a point-in-time copy suitable for third-party verification.
func (l *Ledger) Export() domain.LedgerExport {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]domain.LedgerEntry, len(l.entries))
	for i, e := range l.entries {
		entries[i] = copyEntry(e)
	}
	return domain.LedgerExport{
		LedgerID:    l.id.String(),
		GenesisHash: l.genesis,
		Entries:     entries,
	}
}

// Verify recomputes a chain rooted at genesis.
func Verify(genesis string, entries []domain.LedgerEntry) error {
	prev := genesis
	for i, e := range entries {
		if e.Index != i {
			return &IntegrityError{Index: i, Reason: "index out of sequence"}
		}
		if e.PrevHash != prev {
			return &IntegrityError{Index: i, Reason: "prev hash does not match preceding entry"}
		}
		canonical, err := Canonical(e.Payload)
		if err != nil {
			return &IntegrityError{Index: i, Reason: "payload is not valid JSON"}
		}
		if computeHash(e.Timestamp.UTC(), e.EventTag, canonical, e.PrevHash) != e.Hash {
			return &IntegrityError{Index: i, Reason: "hash mismatch"}
		}
		prev = e.Hash
	}
	return nil
}

func VerifyExport(exp domain.LedgerExport) error {
	return Verify(exp.GenesisHash, exp.Entries)
}

func computeHash(ts time.Time, eventTag string, canonicalPayload []byte, prevHash string) string {
	h := sha256.New()
	h.Write([]byte(ts.Format(time.RFC3339Nano)))
	h.Write([]byte(hashSeparator))
	h.Write([]byte(eventTag))
	h.Write([]byte(hashSeparator))
	h.Write(canonicalPayload)
	h.Write([]byte(hashSeparator))
	h.Write([]byte(prevHash))
	return hex.EncodeToString(h.Sum(nil))
}

func copyEntry(e domain.LedgerEntry) domain.LedgerEntry {
	e.Payload = append([]byte(nil), e.Payload...)
	return e
}
