package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"edulearn-engine/internal/domain"
)

// RankedRow is one scored user in ranking order, before any top-N windowing
// or current-user marking. Rows are what the optional snapshot cache stores.
type RankedRow struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	XP          int    `json:"xp"`
	Level       int    `json:"level"`
	LevelBadge  string `json:"level_badge"`
	IsPremium   bool   `json:"is_premium"`
}

// RankingSource produces the full ordered ranking for a scope. The default
// source recomputes from the stores; infra may wrap it with a short-TTL
// cache (leaderboard staleness of a few seconds is documented and accepted).
type RankingSource interface {
	Rows(ctx context.Context, scope domain.LeaderboardScope) ([]RankedRow, error)
}

// RankingSourceFunc adapts a function to a RankingSource.
type RankingSourceFunc func(ctx context.Context, scope domain.LeaderboardScope) ([]RankedRow, error)

func (f RankingSourceFunc) Rows(ctx context.Context, scope domain.LeaderboardScope) ([]RankedRow, error) {
	return f(ctx, scope)
}

const broadcastTopN = 10

// LeaderboardService answers top-N and rank-of queries over lifetime and
// weekly XP, and fans out fresh snapshots to websocket subscribers after
// grants. Ordering: XP descending, then user_id ascending on ties, which
// keeps pagination and ranks deterministic.
type LeaderboardService struct {
	users  UserStore
	ledger LedgerStore
	curve  domain.LevelCurve
	loc    *time.Location
	now    func() time.Time
	source RankingSource

	mu          sync.Mutex
	subscribers map[chan domain.LeaderboardSnapshot]domain.LeaderboardScope
}

func NewLeaderboardService(users UserStore, ledger LedgerStore, curve domain.LevelCurve, loc *time.Location) *LeaderboardService {
	if loc == nil {
		loc = time.UTC
	}
	s := &LeaderboardService{
		users:       users,
		ledger:      ledger,
		curve:       curve,
		loc:         loc,
		now:         time.Now,
		subscribers: make(map[chan domain.LeaderboardSnapshot]domain.LeaderboardScope),
	}
	s.source = RankingSourceFunc(s.ComputeRows)
	return s
}

// SetClock is test-only for deterministic timestamps.
func (s *LeaderboardService) SetClock(now func() time.Time) { s.now = now }

// SetSource swaps in a caching RankingSource decorator.
func (s *LeaderboardService) SetSource(src RankingSource) { s.source = src }

// ComputeRows recomputes the full ranking from the stores. Weekly XP sums
// ledger entries from the fixed Monday boundary; users without entries this
// week rank with zero. At single-course scale a full recompute per query is
// the accepted trade-off over an order-statistics index.
func (s *LeaderboardService) ComputeRows(ctx context.Context, scope domain.LeaderboardScope) ([]RankedRow, error) {
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var weekly map[string]int
	if scope == domain.ScopeWeekly {
		weekly, err = s.ledger.SumAllSince(ctx, weekStart(s.now(), s.loc))
		if err != nil {
			return nil, err
		}
	}

	rows := make([]RankedRow, 0, len(users))
	for _, user := range users {
		xp := user.TotalXP
		if scope == domain.ScopeWeekly {
			xp = weekly[user.ID]
		}
		level := s.curve.LevelFor(user.TotalXP)
		badge, _ := s.curve.Badge(level)
		rows = append(rows, RankedRow{
			UserID:      user.ID,
			DisplayName: user.DisplayName,
			XP:          xp,
			Level:       level,
			LevelBadge:  badge,
			IsPremium:   user.PremiumActive(s.now()),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].XP != rows[j].XP {
			return rows[i].XP > rows[j].XP
		}
		return rows[i].UserID < rows[j].UserID
	})
	return rows, nil
}

// Top returns the first limit rows plus, when currentUserID falls outside
// that window, the caller's own rank.
func (s *LeaderboardService) Top(ctx context.Context, scope domain.LeaderboardScope, limit int, currentUserID string) (domain.LeaderboardSnapshot, error) {
	if limit <= 0 {
		limit = broadcastTopN
	}
	rows, err := s.source.Rows(ctx, scope)
	if err != nil {
		return domain.LeaderboardSnapshot{}, err
	}

	snapshot := domain.LeaderboardSnapshot{
		Scope:     scope,
		Entries:   make([]domain.LeaderboardEntry, 0, limit),
		UpdatedAt: s.now(),
	}

	currentInWindow := false
	for i, row := range rows {
		if i >= limit {
			break
		}
		entry := domain.LeaderboardEntry{
			Rank:          i + 1,
			UserID:        row.UserID,
			DisplayName:   row.DisplayName,
			Level:         row.Level,
			LevelBadge:    row.LevelBadge,
			IsPremium:     row.IsPremium,
			IsCurrentUser: row.UserID == currentUserID,
		}
		if scope == domain.ScopeWeekly {
			entry.WeeklyXP = row.XP
		} else {
			entry.TotalXP = row.XP
		}
		if entry.IsCurrentUser {
			currentInWindow = true
		}
		snapshot.Entries = append(snapshot.Entries, entry)
	}

	if currentUserID != "" && !currentInWindow {
		for i, row := range rows {
			if row.UserID == currentUserID {
				user, err := s.users.Get(ctx, currentUserID)
				if err != nil {
					return domain.LeaderboardSnapshot{}, err
				}
				badge, _ := s.curve.Badge(row.Level)
				snapshot.CurrentUser = &domain.CurrentUserRank{
					Rank:       i + 1,
					TotalXP:    user.TotalXP,
					Level:      row.Level,
					LevelBadge: badge,
				}
				break
			}
		}
	}
	return snapshot, nil
}

// RankOf returns the 1-based rank of a user in a scope, even far outside any
// top-N window.
func (s *LeaderboardService) RankOf(ctx context.Context, scope domain.LeaderboardScope, userID string) (int, error) {
	rows, err := s.source.Rows(ctx, scope)
	if err != nil {
		return 0, err
	}
	for i, row := range rows {
		if row.UserID == userID {
			return i + 1, nil
		}
	}
	return 0, domain.ErrUserNotFound
}

// Subscribe returns a channel receiving leaderboard snapshots for a scope.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *LeaderboardService) Subscribe(ctx context.Context, scope domain.LeaderboardScope) (<-chan domain.LeaderboardSnapshot, func(), error) {
	initial, err := s.Top(ctx, scope, broadcastTopN, "")
	if err != nil {
		return nil, nil, err
	}

	// Queue the initial snapshot before registering: once the channel is in
	// subscribers a broadcast burst could fill the buffer and a blocking send
	// here would stall Subscribe.
	ch := make(chan domain.LeaderboardSnapshot, 8)
	ch <- initial

	s.mu.Lock()
	s.subscribers[ch] = scope
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

// Broadcast pushes a fresh snapshot to every subscriber. Slow subscribers
// have their stale snapshot dropped rather than blocking the rest.
func (s *LeaderboardService) Broadcast(ctx context.Context) {
	s.mu.Lock()
	targets := make(map[chan domain.LeaderboardSnapshot]domain.LeaderboardScope, len(s.subscribers))
	for ch, scope := range s.subscribers {
		targets[ch] = scope
	}
	s.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	snapshots := make(map[domain.LeaderboardScope]domain.LeaderboardSnapshot, 2)
	for _, scope := range targets {
		if _, ok := snapshots[scope]; ok {
			continue
		}
		snapshot, err := s.Top(ctx, scope, broadcastTopN, "")
		if err != nil {
			return
		}
		snapshots[scope] = snapshot
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch, scope := range targets {
		if _, still := s.subscribers[ch]; !still {
			continue
		}
		snapshot := snapshots[scope]
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}
