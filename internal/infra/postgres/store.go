package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"edulearn-engine/internal/domain"
	"github.com/uptrace/bun"
)

type userRow struct {
	bun.BaseModel `bun:"table:users"`

	ID           string     `bun:"id,pk"`
	DisplayName  string     `bun:"display_name"`
	TotalXP      int        `bun:"total_xp"`
	StreakDays   int        `bun:"streak_days"`
	LastActive   time.Time  `bun:"last_active_at,nullzero"`
	PremiumUntil *time.Time `bun:"premium_until"`
	IsAdmin      bool       `bun:"is_admin"`
	IsActive     bool       `bun:"is_active"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:           r.ID,
		DisplayName:  r.DisplayName,
		TotalXP:      r.TotalXP,
		StreakDays:   r.StreakDays,
		LastActive:   r.LastActive,
		PremiumUntil: r.PremiumUntil,
		IsAdmin:      r.IsAdmin,
		IsActive:     r.IsActive,
	}
}

func userRowFrom(u domain.User) userRow {
	return userRow{
		ID:           u.ID,
		DisplayName:  u.DisplayName,
		TotalXP:      u.TotalXP,
		StreakDays:   u.StreakDays,
		LastActive:   u.LastActive,
		PremiumUntil: u.PremiumUntil,
		IsAdmin:      u.IsAdmin,
		IsActive:     u.IsActive,
	}
}

// UserStore persists users in Postgres via bun.
type UserStore struct {
	db *bun.DB
}

func NewUserStore(db *bun.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Get(ctx context.Context, userID string) (domain.User, error) {
	var row userRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return row.toDomain(), nil
}

func (s *UserStore) Save(ctx context.Context, user domain.User) error {
	row := userRowFrom(user)
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("display_name = EXCLUDED.display_name").
		Set("total_xp = EXCLUDED.total_xp").
		Set("streak_days = EXCLUDED.streak_days").
		Set("last_active_at = EXCLUDED.last_active_at").
		Set("premium_until = EXCLUDED.premium_until").
		Set("is_admin = EXCLUDED.is_admin").
		Set("is_active = EXCLUDED.is_active").
		Exec(ctx)
	return err
}

func (s *UserStore) ListActive(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	err := s.db.NewSelect().Model(&rows).Where("is_active").Scan(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toDomain())
	}
	return users, nil
}

type ledgerRow struct {
	bun.BaseModel `bun:"table:xp_ledger"`

	ID          string    `bun:"id,pk"`
	UserID      string    `bun:"user_id"`
	Amount      int       `bun:"amount"`
	Reason      string    `bun:"reason"`
	SourceID    string    `bun:"source_id"`
	Description string    `bun:"description"`
	CreatedAt   time.Time `bun:"created_at"`
}

func (r ledgerRow) toDomain() domain.XPLedgerEntry {
	return domain.XPLedgerEntry{
		ID:          r.ID,
		UserID:      r.UserID,
		Amount:      r.Amount,
		Reason:      domain.XPReason(r.Reason),
		SourceID:    r.SourceID,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}
}

// LedgerStore is the append-only XP ledger on Postgres. Rows are inserted and
// read, never updated; the amount > 0 CHECK backs the domain invariant.
type LedgerStore struct {
	db *bun.DB
}

func NewLedgerStore(db *bun.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) Append(ctx context.Context, entry domain.XPLedgerEntry) error {
	if entry.Amount <= 0 {
		return domain.ErrInvalidAmount
	}
	row := ledgerRow{
		ID:          entry.ID,
		UserID:      entry.UserID,
		Amount:      entry.Amount,
		Reason:      string(entry.Reason),
		SourceID:    entry.SourceID,
		Description: entry.Description,
		CreatedAt:   entry.CreatedAt,
	}
	_, err := s.db.NewInsert().Model(&row).Exec(ctx)
	return err
}

func (s *LedgerStore) TotalXP(ctx context.Context, userID string) (int, error) {
	var total int
	err := s.db.NewSelect().
		Model((*ledgerRow)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Scan(ctx, &total)
	return total, err
}

func (s *LedgerStore) SumSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var total int
	err := s.db.NewSelect().
		Model((*ledgerRow)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Where("created_at >= ?", since).
		Scan(ctx, &total)
	return total, err
}

func (s *LedgerStore) SumAllSince(ctx context.Context, since time.Time) (map[string]int, error) {
	var rows []struct {
		UserID string `bun:"user_id"`
		Total  int    `bun:"total"`
	}
	err := s.db.NewSelect().
		Model((*ledgerRow)(nil)).
		ColumnExpr("user_id, SUM(amount) AS total").
		Where("created_at >= ?", since).
		GroupExpr("user_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	sums := make(map[string]int, len(rows))
	for _, row := range rows {
		sums[row.UserID] = row.Total
	}
	return sums, nil
}

func (s *LedgerStore) Recent(ctx context.Context, userID string, limit int) ([]domain.XPLedgerEntry, error) {
	var rows []ledgerRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		OrderExpr("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.XPLedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toDomain())
	}
	return entries, nil
}

type claimRow struct {
	bun.BaseModel `bun:"table:daily_claims"`

	UserID    string    `bun:"user_id,pk"`
	ClaimDate string    `bun:"claim_date,pk"`
	ClaimedAt time.Time `bun:"claimed_at"`
}

// ClaimStore gates daily-challenge claims on the (user_id, claim_date)
// primary key. ON CONFLICT DO NOTHING makes the insert the compare-and-set:
// zero rows affected means someone else already claimed today.
type ClaimStore struct {
	db *bun.DB
}

func NewClaimStore(db *bun.DB) *ClaimStore {
	return &ClaimStore{db: db}
}

func (s *ClaimStore) Claim(ctx context.Context, userID, date string) (bool, error) {
	row := claimRow{UserID: userID, ClaimDate: date, ClaimedAt: time.Now().UTC()}
	res, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *ClaimStore) Release(ctx context.Context, userID, date string) error {
	_, err := s.db.NewDelete().
		Model((*claimRow)(nil)).
		Where("user_id = ?", userID).
		Where("claim_date = ?", date).
		Exec(ctx)
	return err
}

type progressRow struct {
	bun.BaseModel `bun:"table:lesson_progress"`

	UserID       string     `bun:"user_id,pk"`
	LessonID     string     `bun:"lesson_id,pk"`
	Completed    bool       `bun:"completed"`
	CompletedAt  *time.Time `bun:"completed_at"`
	QuizAttempts int        `bun:"quiz_attempts"`
	BestScore    int        `bun:"best_score"`
}

// ProgressStore tracks lesson completion and quiz stats in Postgres.
type ProgressStore struct {
	db *bun.DB
}

func NewProgressStore(db *bun.DB) *ProgressStore {
	return &ProgressStore{db: db}
}

// MarkCompleted upserts the progress row and flips completed. The WHERE on
// the conflict update keeps the flip one-shot, so the first completion is the
// only call that reports rows affected.
func (s *ProgressStore) MarkCompleted(ctx context.Context, userID, lessonID string, at time.Time) (bool, error) {
	row := progressRow{
		UserID:      userID,
		LessonID:    lessonID,
		Completed:   true,
		CompletedAt: &at,
	}
	res, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (user_id, lesson_id) DO UPDATE").
		Set("completed = TRUE").
		Set("completed_at = EXCLUDED.completed_at").
		Where("lesson_progress.completed = FALSE").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *ProgressStore) RecordQuizAttempt(ctx context.Context, userID, lessonID string, score int) error {
	row := progressRow{
		UserID:       userID,
		LessonID:     lessonID,
		QuizAttempts: 1,
		BestScore:    score,
	}
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (user_id, lesson_id) DO UPDATE").
		Set("quiz_attempts = lesson_progress.quiz_attempts + 1").
		Set("best_score = GREATEST(lesson_progress.best_score, EXCLUDED.best_score)").
		Exec(ctx)
	return err
}

func (s *ProgressStore) CountCompleted(ctx context.Context, userID string) (int, error) {
	return s.db.NewSelect().
		Model((*progressRow)(nil)).
		Where("user_id = ?", userID).
		Where("completed").
		Count(ctx)
}
