package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// StatsRow is the account-level statistics block.
type StatsRow struct {
	LoginDays     int32
	TotalOnlineMs int64
	FirstLoginAt  int64
	LastLogoutAt  int64
}

type StatsRepo struct {
	db *DB
}

func NewStatsRepo(db *DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// Get returns the player's statistics; a player without a row gets zeros.
func (r *StatsRepo) Get(ctx context.Context, userID int64) (*StatsRow, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	s := &StatsRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT login_days, total_online_ms, first_login_at, last_logout_at
		 FROM player_stats WHERE user_id = $1`, userID,
	).Scan(&s.LoginDays, &s.TotalOnlineMs, &s.FirstLoginAt, &s.LastLogoutAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &StatsRow{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// RecordLogout adds a finished session's online time.
func (r *StatsRepo) RecordLogout(ctx context.Context, userID int64, onlineMs, nowMs int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO player_stats (user_id, total_online_ms, last_logout_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET
		   total_online_ms = player_stats.total_online_ms + excluded.total_online_ms,
		   last_logout_at = excluded.last_logout_at`,
		userID, onlineMs, nowMs,
	)
	return err
}
