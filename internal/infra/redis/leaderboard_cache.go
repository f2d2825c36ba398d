package redis

import (
	"context"
	"encoding/json"
	"time"

	"edulearn-engine/internal/app"
	"edulearn-engine/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// LeaderboardCache decorates a RankingSource with a short-TTL Redis cache of
// the serialized ranking per scope. Readers within the TTL see the same
// snapshot, which keeps ranks stable across paginated reads and spares the
// ledger a full recompute per request. Staleness is bounded by the TTL.
//
// The rows are cached as an ordered JSON array rather than a sorted set:
// a ZSET cannot express the XP-desc, user_id-asc tie order on its own.
type LeaderboardCache struct {
	client *redis.Client
	next   app.RankingSource
	ttl    time.Duration
	sf     singleflight.Group
}

func NewLeaderboardCache(client *redis.Client, next app.RankingSource, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, next: next, ttl: ttl}
}

func (c *LeaderboardCache) Rows(ctx context.Context, scope domain.LeaderboardScope) ([]app.RankedRow, error) {
	key := c.key(scope)

	if rows, ok := c.fetch(ctx, key); ok {
		return rows, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if rows, ok := c.fetch(ctx, key); ok {
			return rows, nil
		}

		rows, err := c.next.Rows(ctx, scope)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(rows); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttl).Err()
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]app.RankedRow), nil
}

// Invalidate drops the cached rankings so the next read recomputes. Called
// after XP grants to tighten freshness below the TTL bound.
func (c *LeaderboardCache) Invalidate(ctx context.Context) {
	_ = c.client.Del(ctx, c.key(domain.ScopeGlobal), c.key(domain.ScopeWeekly)).Err()
}

func (c *LeaderboardCache) fetch(ctx context.Context, key string) ([]app.RankedRow, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var rows []app.RankedRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, false
	}
	return rows, true
}

func (c *LeaderboardCache) key(scope domain.LeaderboardScope) string {
	return "leaderboard:rows:" + string(scope)
}
