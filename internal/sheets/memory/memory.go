// Package memory provides an in-memory ledger mirror for tests and for
// running without Google credentials.
package memory

import (
	"context"
	"sync"

	"finledger/internal/core"
	ports "finledger/internal/sheets"
)

type Store struct {
	mu      sync.Mutex
	ledgers map[string][]core.BalanceLedgerEntry
}

var _ ports.LedgerMirror = (*Store)(nil)

func New() *Store {
	return &Store{ledgers: make(map[string][]core.BalanceLedgerEntry)}
}

// MirrorLedger replaces the stored rows for userID.
func (s *Store) MirrorLedger(_ context.Context, userID string, entries []core.BalanceLedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers[userID] = append([]core.BalanceLedgerEntry(nil), entries...)
	return nil
}

// Ledger returns a copy of the mirrored rows for userID.
func (s *Store) Ledger(userID string) []core.BalanceLedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.BalanceLedgerEntry(nil), s.ledgers[userID]...)
}
