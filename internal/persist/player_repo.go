package persist

import (
	"context"
	"fmt"

	"github.com/sonettogo/server/internal/gametime"
	"github.com/sonettogo/server/internal/player"
)

type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

// Load returns the player's state, creating the row on first login.
func (r *PlayerRepo) Load(ctx context.Context, userID int64, nowMs int64) (*player.State, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	def := player.New(userID, nowMs)
	if _, err := r.db.Pool.Exec(ctx,
		`INSERT INTO players (user_id, level, register_time, touch_count_left)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, def.Level, def.RegisterTime, def.TouchCountLeft,
	); err != nil {
		return nil, fmt.Errorf("ensure player %d: %w", userID, err)
	}

	s := &player.State{UserID: userID}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT nickname, level, exp, portrait, register_time, last_login_at,
		        last_sign_in_at, sign_in_days, week_login_days, touch_count_left
		 FROM players WHERE user_id = $1`, userID,
	).Scan(
		&s.Nickname, &s.Level, &s.Exp, &s.Portrait, &s.RegisterTime, &s.LastLoginAt,
		&s.LastSignInAt, &s.SignInDays, &s.WeekLoginDays, &s.TouchCountLeft,
	)
	if err != nil {
		return nil, fmt.Errorf("load player %d: %w", userID, err)
	}
	return s, nil
}

// Save writes every mutable column of s.
func (r *PlayerRepo) Save(ctx context.Context, s *player.State) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE players SET nickname = $2, level = $3, exp = $4, portrait = $5,
		        last_login_at = $6, last_sign_in_at = $7, sign_in_days = $8,
		        week_login_days = $9, touch_count_left = $10
		 WHERE user_id = $1`,
		s.UserID, s.Nickname, s.Level, s.Exp, s.Portrait,
		s.LastLoginAt, s.LastSignInAt, s.SignInDays,
		s.WeekLoginDays, s.TouchCountLeft,
	)
	if err != nil {
		return fmt.Errorf("save player %d: %w", s.UserID, err)
	}
	return nil
}

// Rename sets the nickname and reports false when another player already
// uses it.
func (r *PlayerRepo) Rename(ctx context.Context, userID int64, nickname string) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE players SET nickname = $2
		 WHERE user_id = $1
		   AND NOT EXISTS (SELECT 1 FROM players WHERE nickname = $2 AND user_id <> $1)`,
		userID, nickname,
	)
	if err != nil {
		return false, fmt.Errorf("rename player %d: %w", userID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ProcessDailyLogin applies the login at nowMs to s and persists the result
// together with the login-day statistic in one transaction. s is only
// changed when the transaction commits.
func (r *PlayerRepo) ProcessDailyLogin(ctx context.Context, s *player.State, clock *gametime.Clock, nowMs int64) (player.DailyReset, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	next := s.Clone()
	reset := next.ApplyLogin(clock, nowMs)

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return reset, fmt.Errorf("daily login begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE players SET last_login_at = $2, week_login_days = $3, touch_count_left = $4
		 WHERE user_id = $1`,
		next.UserID, next.LastLoginAt, next.WeekLoginDays, next.TouchCountLeft,
	); err != nil {
		return reset, fmt.Errorf("daily login update: %w", err)
	}

	loginDays := 0
	if reset.NewDay {
		loginDays = 1
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO player_stats (user_id, login_days, first_login_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET login_days = player_stats.login_days + excluded.login_days`,
		next.UserID, loginDays, nowMs,
	); err != nil {
		return reset, fmt.Errorf("daily login stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return reset, fmt.Errorf("daily login commit: %w", err)
	}
	*s = *next
	return reset, nil
}
