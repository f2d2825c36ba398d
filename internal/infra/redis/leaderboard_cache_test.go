package redis

import (
	"context"
	"testing"
	"time"

	"edulearn-engine/internal/app"
	"edulearn-engine/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestLeaderboardCacheServesCachedRows(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	calls := 0
	source := app.RankingSourceFunc(func(ctx context.Context, scope domain.LeaderboardScope) ([]app.RankedRow, error) {
		calls++
		return []app.RankedRow{
			{UserID: "user-a", DisplayName: "Ada", XP: 500, Level: 2, LevelBadge: "🌱"},
			{UserID: "user-b", DisplayName: "Bob", XP: 500, Level: 2, LevelBadge: "🌱"},
		}, nil
	})
	cache := NewLeaderboardCache(newClient(mr), source, 5*time.Second)
	ctx := context.Background()

	rows, err := cache.Rows(ctx, domain.ScopeGlobal)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected source called once, got %d", calls)
	}

	cached, err := cache.Rows(ctx, domain.ScopeGlobal)
	if err != nil {
		t.Fatalf("rows cached: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cache hit, source calls=%d", calls)
	}
	// tie order must survive the round trip
	if cached[0].UserID != rows[0].UserID || cached[1].UserID != rows[1].UserID {
		t.Fatalf("cached order differs: %v vs %v", cached, rows)
	}

	// scopes are cached independently
	if _, err := cache.Rows(ctx, domain.ScopeWeekly); err != nil {
		t.Fatalf("weekly rows: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected weekly recompute, source calls=%d", calls)
	}
}

func TestLeaderboardCacheInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	calls := 0
	source := app.RankingSourceFunc(func(ctx context.Context, scope domain.LeaderboardScope) ([]app.RankedRow, error) {
		calls++
		return []app.RankedRow{{UserID: "user-a", XP: calls * 100}}, nil
	})
	cache := NewLeaderboardCache(newClient(mr), source, time.Minute)
	ctx := context.Background()

	if _, err := cache.Rows(ctx, domain.ScopeGlobal); err != nil {
		t.Fatalf("rows: %v", err)
	}
	cache.Invalidate(ctx)

	rows, err := cache.Rows(ctx, domain.ScopeGlobal)
	if err != nil {
		t.Fatalf("rows after invalidate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected recompute after invalidate, source calls=%d", calls)
	}
	if rows[0].XP != 200 {
		t.Fatalf("expected fresh rows, got %+v", rows[0])
	}
}
