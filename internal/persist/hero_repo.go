package persist

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// HeroRow is one owned hero.
type HeroRow struct {
	HeroID         int32
	Level          int32
	Rank           int32
	Exp            int32
	DuplicateCount int32
	SkinID         int32
	IsNew          bool
	CreateTime     int64
}

type HeroRepo struct {
	db *DB
}

func NewHeroRepo(db *DB) *HeroRepo {
	return &HeroRepo{db: db}
}

func (r *HeroRepo) List(ctx context.Context, userID int64) ([]HeroRow, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Pool.Query(ctx,
		`SELECT hero_id, level, rank, exp, duplicate_count, skin_id, is_new, create_time
		 FROM heroes WHERE user_id = $1 ORDER BY hero_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HeroRow
	for rows.Next() {
		var h HeroRow
		if err := rows.Scan(&h.HeroID, &h.Level, &h.Rank, &h.Exp, &h.DuplicateCount,
			&h.SkinID, &h.IsNew, &h.CreateTime); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// MarkSeen clears the hero's new flag and reports whether it was set.
func (r *HeroRepo) MarkSeen(ctx context.Context, userID int64, heroID int32) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE heroes SET is_new = FALSE WHERE user_id = $1 AND hero_id = $2 AND is_new`,
		userID, heroID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// rowQuerier is satisfied by both the pool and a transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// addOrDuplicate inserts the hero or bumps its duplicate count. isNew is true
// when the row was created by this call.
func addOrDuplicate(ctx context.Context, q rowQuerier, userID int64, heroID, skinID int32, nowMs int64) (isNew bool, dup int32, err error) {
	err = q.QueryRow(ctx,
		`INSERT INTO heroes (user_id, hero_id, skin_id, create_time)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, hero_id) DO UPDATE SET duplicate_count = heroes.duplicate_count + 1
		 RETURNING (xmax = 0), duplicate_count`,
		userID, heroID, skinID, nowMs,
	).Scan(&isNew, &dup)
	return isNew, dup, err
}

// AddOrDuplicate grants a hero outside of a summon.
func (r *HeroRepo) AddOrDuplicate(ctx context.Context, userID int64, heroID, skinID int32, nowMs int64) (bool, int32, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	return addOrDuplicate(ctx, r.db.Pool, userID, heroID, skinID, nowMs)
}
