package app

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"edulearn-engine/internal/domain"
	"github.com/google/uuid"
)

// Policy carries the tunable progression constants: reward sizes and the
// level curve. These come from configuration, never hard-coded values.
type Policy struct {
	LessonXP          int
	DailyChallengeXP  int
	StreakBonusPerDay int
	MaxStreakBonus    int
	Curve             domain.LevelCurve
}

// ProgressionService owns every XP-granting use case: the ledger append with
// streak and level-up derivation, the daily-challenge claim, and lesson
// completion. Operations on one user are serialized through striped locks;
// different users proceed independently.
type ProgressionService struct {
	users    UserStore
	ledger   LedgerStore
	claims   ClaimStore
	progress ProgressStore
	lessons  LessonRepository
	policy   Policy
	loc      *time.Location
	now      func() time.Time

	locks [64]sync.Mutex

	onGrant func()
}

func NewProgressionService(users UserStore, ledger LedgerStore, claims ClaimStore, progress ProgressStore, lessons LessonRepository, policy Policy, loc *time.Location) *ProgressionService {
	if loc == nil {
		loc = time.UTC
	}
	return &ProgressionService{
		users:    users,
		ledger:   ledger,
		claims:   claims,
		progress: progress,
		lessons:  lessons,
		policy:   policy,
		loc:      loc,
		now:      time.Now,
	}
}

// SetClock is test-only for deterministic timestamps.
func (s *ProgressionService) SetClock(now func() time.Time) { s.now = now }

// SetGrantListener registers a callback fired after every successful grant,
// used to push fresh leaderboard snapshots to subscribers.
func (s *ProgressionService) SetGrantListener(fn func()) { s.onGrant = fn }

func (s *ProgressionService) lockFor(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}

// Grant appends one XP ledger entry and updates the user's streak and cached
// total. The level_up flag comes from comparing the derived level before and
// after the append, never from the amount.
func (s *ProgressionService) Grant(ctx context.Context, userID string, amount int, reason domain.XPReason, sourceID, description string) (domain.GrantOutcome, error) {
	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()
	outcome, err := s.grantLocked(ctx, userID, amount, reason, sourceID, description)
	if err != nil {
		return domain.GrantOutcome{}, err
	}
	s.notifyGrant()
	return outcome, nil
}

// grantLocked is the single code path that mutates XP. Callers hold the
// user's stripe lock.
func (s *ProgressionService) grantLocked(ctx context.Context, userID string, amount int, reason domain.XPReason, sourceID, description string) (domain.GrantOutcome, error) {
	if amount <= 0 {
		return domain.GrantOutcome{}, domain.ErrInvalidAmount
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return domain.GrantOutcome{}, err
	}

	now := s.now()
	entry := domain.XPLedgerEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Reason:      reason,
		SourceID:    sourceID,
		Description: description,
		CreatedAt:   now,
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		return domain.GrantOutcome{}, fmt.Errorf("append ledger entry: %w", err)
	}

	levelBefore := s.policy.Curve.LevelFor(user.TotalXP)
	user.TotalXP += amount
	s.touchStreak(&user, now)
	if err := s.users.Save(ctx, user); err != nil {
		return domain.GrantOutcome{}, fmt.Errorf("save user: %w", err)
	}

	info := s.policy.Curve.Info(user.TotalXP)
	return domain.GrantOutcome{
		Entry:      entry,
		TotalXP:    user.TotalXP,
		StreakDays: user.StreakDays,
		LevelUp:    info.Level > levelBefore,
		Level:      info,
	}, nil
}

// nextStreak applies the calendar-day streak rule: same day keeps the
// streak, the next day extends it, any gap resets it to 1.
func (s *ProgressionService) nextStreak(user domain.User, now time.Time) int {
	today := calendarDate(now, s.loc)
	switch {
	case user.LastActive.IsZero():
		return 1
	case calendarDate(user.LastActive, s.loc) == today:
		return user.StreakDays
	case calendarDate(user.LastActive.AddDate(0, 0, 1), s.loc) == today:
		return user.StreakDays + 1
	default:
		return 1
	}
}

func (s *ProgressionService) touchStreak(user *domain.User, now time.Time) {
	user.StreakDays = s.nextStreak(*user, now)
	user.LastActive = now
}

// ClaimDaily grants the daily-challenge XP at most once per calendar day.
// Repeat claims return Granted=false with the user's current state; the
// claim record's uniqueness is the gate, so concurrent claims cannot
// double-grant.
func (s *ProgressionService) ClaimDaily(ctx context.Context, userID string) (domain.ClaimResult, error) {
	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return domain.ClaimResult{}, err
	}

	today := calendarDate(s.now(), s.loc)
	first, err := s.claims.Claim(ctx, userID, today)
	if err != nil {
		return domain.ClaimResult{}, fmt.Errorf("claim daily challenge: %w", err)
	}
	if !first {
		return domain.ClaimResult{
			Granted:    false,
			StreakDays: user.StreakDays,
			TotalXP:    user.TotalXP,
			Level:      s.policy.Curve.Info(user.TotalXP),
		}, nil
	}

	amount := s.dailyAmount(user.StreakDays)
	description := fmt.Sprintf("Daily challenge (streak %d)", s.nextStreak(user, s.now()))
	outcome, err := s.grantLocked(ctx, userID, amount, domain.ReasonDailyChallenge, "", description)
	if err != nil {
		// Undo the claim so the user can retry; otherwise the day would be
		// burned without a ledger entry.
		_ = s.claims.Release(ctx, userID, today)
		return domain.ClaimResult{}, err
	}
	s.notifyGrant()

	return domain.ClaimResult{
		Granted:    true,
		Amount:     amount,
		StreakDays: outcome.StreakDays,
		TotalXP:    outcome.TotalXP,
		LevelUp:    outcome.LevelUp,
		Level:      outcome.Level,
	}, nil
}

func (s *ProgressionService) dailyAmount(streakDays int) int {
	bonus := streakDays * s.policy.StreakBonusPerDay
	if bonus > s.policy.MaxStreakBonus {
		bonus = s.policy.MaxStreakBonus
	}
	return s.policy.DailyChallengeXP + bonus
}

// CompleteLesson marks a lesson completed and grants its XP reward exactly
// once per (user, lesson). Repeat completions return Completed=false and no
// grant. Premium lessons require an active premium window.
func (s *ProgressionService) CompleteLesson(ctx context.Context, userID, lessonID string) (bool, domain.GrantOutcome, error) {
	lesson, err := s.lessons.GetLesson(ctx, lessonID)
	if err != nil {
		return false, domain.GrantOutcome{}, err
	}
	if !lesson.IsActive {
		return false, domain.GrantOutcome{}, domain.ErrLessonNotFound
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return false, domain.GrantOutcome{}, err
	}
	if lesson.IsPremium && !user.PremiumActive(s.now()) {
		return false, domain.GrantOutcome{}, domain.ErrPremiumRequired
	}

	mu := s.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	first, err := s.progress.MarkCompleted(ctx, userID, lessonID, s.now())
	if err != nil {
		return false, domain.GrantOutcome{}, fmt.Errorf("mark lesson completed: %w", err)
	}
	if !first {
		return false, domain.GrantOutcome{
			TotalXP: user.TotalXP,
			Level:   s.policy.Curve.Info(user.TotalXP),
		}, nil
	}

	amount := lesson.XPReward
	if amount <= 0 {
		amount = s.policy.LessonXP
	}
	outcome, err := s.grantLocked(ctx, userID, amount, domain.ReasonLessonComplete, lessonID, "Lesson: "+lesson.Title)
	if err != nil {
		return false, domain.GrantOutcome{}, err
	}
	s.notifyGrant()
	return true, outcome, nil
}

// Stats reports the level state plus the counters the profile screen shows.
// Weekly XP is derived by filtering the ledger from the week boundary, never
// from a separately mutated counter.
func (s *ProgressionService) Stats(ctx context.Context, userID string) (domain.LevelInfo, domain.ProgressStats, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return domain.LevelInfo{}, domain.ProgressStats{}, err
	}

	completed, err := s.progress.CountCompleted(ctx, userID)
	if err != nil {
		return domain.LevelInfo{}, domain.ProgressStats{}, fmt.Errorf("count completed lessons: %w", err)
	}
	weekly, err := s.ledger.SumSince(ctx, userID, weekStart(s.now(), s.loc))
	if err != nil {
		return domain.LevelInfo{}, domain.ProgressStats{}, fmt.Errorf("sum weekly xp: %w", err)
	}

	return s.policy.Curve.Info(user.TotalXP), domain.ProgressStats{
		CompletedLessons: completed,
		StreakDays:       user.StreakDays,
		WeeklyXP:         weekly,
	}, nil
}

// History returns the user's most recent ledger entries, newest first.
func (s *ProgressionService) History(ctx context.Context, userID string, limit int) ([]domain.XPLedgerEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, err
	}
	return s.ledger.Recent(ctx, userID, limit)
}

// LevelInfoFor derives the current level state for a user.
func (s *ProgressionService) LevelInfoFor(ctx context.Context, userID string) (domain.LevelInfo, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return domain.LevelInfo{}, err
	}
	return s.policy.Curve.Info(user.TotalXP), nil
}

func (s *ProgressionService) notifyGrant() {
	if s.onGrant != nil {
		s.onGrant()
	}
}
