package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"edulearn-engine/internal/domain"
	"edulearn-engine/internal/infra/memory"
)

type leaderboardFixture struct {
	service *LeaderboardService
	users   *memory.UserStore
	ledger  *memory.LedgerStore
	clock   *testClock
}

func newLeaderboardFixture(t *testing.T) *leaderboardFixture {
	t.Helper()
	users := memory.NewUserStore()
	ledger := memory.NewLedgerStore()
	service := NewLeaderboardService(users, ledger, domain.DefaultLevelCurve(), time.UTC)
	clock := newTestClock()
	service.SetClock(clock.Now)
	return &leaderboardFixture{service: service, users: users, ledger: ledger, clock: clock}
}

func (f *leaderboardFixture) seedUser(t *testing.T, id string, totalXP int) {
	t.Helper()
	if err := f.users.Save(context.Background(), domain.User{
		ID: id, DisplayName: id, TotalXP: totalXP, IsActive: true,
	}); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func (f *leaderboardFixture) appendXP(t *testing.T, userID string, amount int, at time.Time) {
	t.Helper()
	err := f.ledger.Append(context.Background(), domain.XPLedgerEntry{
		ID: userID + at.String(), UserID: userID, Amount: amount,
		Reason: domain.ReasonQuizPass, CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestGlobalOrderingAndTieBreak(t *testing.T) {
	f := newLeaderboardFixture(t)
	f.seedUser(t, "user-b", 500)
	f.seedUser(t, "user-a", 500)
	f.seedUser(t, "user-c", 900)

	snapshot, err := f.service.Top(context.Background(), domain.ScopeGlobal, 10, "")
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	got := []string{snapshot.Entries[0].UserID, snapshot.Entries[1].UserID, snapshot.Entries[2].UserID}
	want := []string{"user-c", "user-a", "user-b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if snapshot.Entries[1].Rank != 2 || snapshot.Entries[2].Rank != 3 {
		t.Fatalf("tied users must occupy distinct ranks: %+v", snapshot.Entries)
	}
	if snapshot.Entries[0].TotalXP != 900 || snapshot.Entries[0].WeeklyXP != 0 {
		t.Fatalf("global entries carry total_xp: %+v", snapshot.Entries[0])
	}
}

func TestTopWindowAndCurrentUserFallback(t *testing.T) {
	f := newLeaderboardFixture(t)
	for i := 0; i < 15; i++ {
		f.seedUser(t, userID(i), 1000-i*10)
	}

	snapshot, err := f.service.Top(context.Background(), domain.ScopeGlobal, 10, userID(12))
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(snapshot.Entries) != 10 {
		t.Fatalf("window = %d, want 10", len(snapshot.Entries))
	}
	for _, entry := range snapshot.Entries {
		if entry.IsCurrentUser {
			t.Fatalf("user 12 should be outside the window")
		}
	}
	if snapshot.CurrentUser == nil {
		t.Fatalf("expected current_user fallback")
	}
	if snapshot.CurrentUser.Rank != 13 {
		t.Fatalf("rank = %d, want 13", snapshot.CurrentUser.Rank)
	}
	if snapshot.CurrentUser.TotalXP != 880 {
		t.Fatalf("total = %d, want 880", snapshot.CurrentUser.TotalXP)
	}
}

func TestTopMarksCurrentUserInWindow(t *testing.T) {
	f := newLeaderboardFixture(t)
	f.seedUser(t, "user-a", 500)
	f.seedUser(t, "user-b", 300)

	snapshot, err := f.service.Top(context.Background(), domain.ScopeGlobal, 10, "user-b")
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if !snapshot.Entries[1].IsCurrentUser {
		t.Fatalf("expected is_current_user on rank 2")
	}
	if snapshot.CurrentUser != nil {
		t.Fatalf("no fallback needed when user is in the window")
	}
}

func TestWeeklyScopeUsesWeekBoundary(t *testing.T) {
	f := newLeaderboardFixture(t)
	f.seedUser(t, "user-a", 5000)
	f.seedUser(t, "user-b", 100)

	now := f.clock.Now() // Monday noon
	// user-a earned everything last week; user-b earned this week.
	f.appendXP(t, "user-a", 5000, now.Add(-48*time.Hour))
	f.appendXP(t, "user-b", 60, now.Add(-time.Hour))

	snapshot, err := f.service.Top(context.Background(), domain.ScopeWeekly, 10, "")
	if err != nil {
		t.Fatalf("top weekly: %v", err)
	}
	if snapshot.Entries[0].UserID != "user-b" {
		t.Fatalf("weekly top = %s, want user-b", snapshot.Entries[0].UserID)
	}
	if snapshot.Entries[0].WeeklyXP != 60 || snapshot.Entries[0].TotalXP != 0 {
		t.Fatalf("weekly entries carry weekly_xp: %+v", snapshot.Entries[0])
	}
	// Level still derives from lifetime XP even in weekly scope.
	if snapshot.Entries[1].UserID != "user-a" || snapshot.Entries[1].Level < 10 {
		t.Fatalf("lifetime level lost in weekly scope: %+v", snapshot.Entries[1])
	}
}

func TestRankOfOutsideWindow(t *testing.T) {
	f := newLeaderboardFixture(t)
	for i := 0; i < 50; i++ {
		f.seedUser(t, userID(i), 5000-i*10)
	}

	rank, err := f.service.RankOf(context.Background(), domain.ScopeGlobal, userID(42))
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if rank != 43 {
		t.Fatalf("rank = %d, want 43", rank)
	}

	if _, err := f.service.RankOf(context.Background(), domain.ScopeGlobal, "ghost"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestInactiveUsersExcluded(t *testing.T) {
	f := newLeaderboardFixture(t)
	f.seedUser(t, "user-a", 100)
	_ = f.users.Save(context.Background(), domain.User{ID: "user-x", DisplayName: "X", TotalXP: 9999, IsActive: false})

	snapshot, err := f.service.Top(context.Background(), domain.ScopeGlobal, 10, "")
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(snapshot.Entries) != 1 || snapshot.Entries[0].UserID != "user-a" {
		t.Fatalf("inactive user leaked into ranking: %+v", snapshot.Entries)
	}
}

func TestSubscribeReceivesInitialAndBroadcast(t *testing.T) {
	f := newLeaderboardFixture(t)
	f.seedUser(t, "user-a", 100)

	ch, cancel, err := f.service.Subscribe(context.Background(), domain.ScopeGlobal)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	initial := <-ch
	if len(initial.Entries) != 1 {
		t.Fatalf("initial snapshot entries = %d", len(initial.Entries))
	}

	f.seedUser(t, "user-b", 200)
	f.service.Broadcast(context.Background())

	select {
	case update := <-ch:
		if update.Entries[0].UserID != "user-b" {
			t.Fatalf("update top = %s, want user-b", update.Entries[0].UserID)
		}
	case <-time.After(time.Second):
		t.Fatalf("no broadcast received")
	}
}

func TestSubscribeDoesNotBlockUnderBroadcastLoad(t *testing.T) {
	f := newLeaderboardFixture(t)
	f.seedUser(t, "user-a", 100)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				f.service.Broadcast(context.Background())
			}
		}
	}()

	for i := 0; i < 25; i++ {
		done := make(chan struct{})
		go func() {
			defer close(done)
			ch, cancel, err := f.service.Subscribe(context.Background(), domain.ScopeGlobal)
			if err != nil {
				t.Errorf("subscribe: %v", err)
				return
			}
			<-ch
			cancel()
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("subscribe blocked under broadcast load")
		}
	}
	close(stop)
	wg.Wait()
}

func TestCancelStopsDelivery(t *testing.T) {
	f := newLeaderboardFixture(t)
	f.seedUser(t, "user-a", 100)

	ch, cancel, err := f.service.Subscribe(context.Background(), domain.ScopeGlobal)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	<-ch
	cancel()
	cancel() // idempotent

	if _, open := <-ch; open {
		t.Fatalf("channel should be closed after cancel")
	}
	// Broadcast after cancel must not panic.
	f.service.Broadcast(context.Background())
}

func userID(i int) string {
	return string(rune('a'+i/10)) + string(rune('0'+i%10)) + "-user"
}
