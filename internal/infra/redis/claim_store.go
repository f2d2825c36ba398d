package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClaimStore implements the daily-challenge gate on Redis. SETNX on a
// per-(user, date) key is the compare-and-set: the first caller wins, every
// later caller for the same day sees the marker.
//
// Keys carry a TTL of roughly two days so claims for past dates expire on
// their own. The date is already part of the key, so expiry is about space,
// not correctness.
type ClaimStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClaimStore(client *redis.Client) *ClaimStore {
	return &ClaimStore{client: client, ttl: 48 * time.Hour}
}

func (s *ClaimStore) Claim(ctx context.Context, userID, date string) (bool, error) {
	return s.client.SetNX(ctx, s.key(userID, date), "1", s.ttl).Result()
}

func (s *ClaimStore) Release(ctx context.Context, userID, date string) error {
	return s.client.Del(ctx, s.key(userID, date)).Err()
}

func (s *ClaimStore) key(userID, date string) string {
	return "daily:" + date + ":" + userID
}
