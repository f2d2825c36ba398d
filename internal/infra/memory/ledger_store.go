package memory

import (
	"context"
	"sync"
	"time"

	"edulearn-engine/internal/domain"
)

// LedgerStore is an in-memory, append-only implementation of
// app.LedgerStore. Entries are never mutated after Append.
type LedgerStore struct {
	mu      sync.RWMutex
	entries []domain.XPLedgerEntry
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{}
}

func (s *LedgerStore) Append(_ context.Context, entry domain.XPLedgerEntry) error {
	if entry.Amount <= 0 {
		return domain.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *LedgerStore) TotalXP(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, entry := range s.entries {
		if entry.UserID == userID {
			total += entry.Amount
		}
	}
	return total, nil
}

func (s *LedgerStore) SumSince(_ context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, entry := range s.entries {
		if entry.UserID == userID && !entry.CreatedAt.Before(since) {
			total += entry.Amount
		}
	}
	return total, nil
}

func (s *LedgerStore) SumAllSince(_ context.Context, since time.Time) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sums := make(map[string]int)
	for _, entry := range s.entries {
		if !entry.CreatedAt.Before(since) {
			sums[entry.UserID] += entry.Amount
		}
	}
	return sums, nil
}

func (s *LedgerStore) Recent(_ context.Context, userID string, limit int) ([]domain.XPLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]domain.XPLedgerEntry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(entries) < limit; i-- {
		if s.entries[i].UserID == userID {
			entries = append(entries, s.entries[i])
		}
	}
	return entries, nil
}

// Count reports the number of entries for a user, used by tests asserting
// exactly-once grants.
func (s *LedgerStore) Count(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, entry := range s.entries {
		if entry.UserID == userID {
			n++
		}
	}
	return n
}
