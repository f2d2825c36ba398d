package memory

import (
	"context"
	"sync"
)

// ClaimStore is the in-memory daily-challenge gate. The map insert under the
// mutex is the compare-and-set that keeps claims unique per (user, date).
type ClaimStore struct {
	mu     sync.Mutex
	claims map[string]struct{}
}

func NewClaimStore() *ClaimStore {
	return &ClaimStore{claims: make(map[string]struct{})}
}

func claimKey(userID, date string) string {
	return userID + "@" + date
}

func (s *ClaimStore) Claim(_ context.Context, userID, date string) (bool, error) {
	key := claimKey(userID, date)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.claims[key]; exists {
		return false, nil
	}
	s.claims[key] = struct{}{}
	return true, nil
}

func (s *ClaimStore) Release(_ context.Context, userID, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, claimKey(userID, date))
	return nil
}
