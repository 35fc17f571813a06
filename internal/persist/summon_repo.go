package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sonettogo/server/internal/gacha"
)

// SummonCommit is everything one summon request writes.
type SummonCommit struct {
	UserID     int64
	BannerID   int32
	CurrencyID int32
	Cost       int32
	PrevPity   uint32 // pity the draw started from
	Pity       uint32 // pity after the pulls
	Pulls      []gacha.Pull
	SkinOf     func(heroID int32) int32
	NowMs      int64
}

// PullResult is the storage outcome of one pull.
type PullResult struct {
	gacha.Pull
	IsNew          bool
	DuplicateCount int32
}

type SummonRepo struct {
	db *DB
}

func NewSummonRepo(db *DB) *SummonRepo {
	return &SummonRepo{db: db}
}

// Pity returns the six-star pity counter of a banner, 0 if never pulled.
func (r *SummonRepo) Pity(ctx context.Context, userID int64, bannerID int32) (uint32, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	var pity int32
	err := r.db.Pool.QueryRow(ctx,
		`SELECT pity_6 FROM summon_pools WHERE user_id = $1 AND banner_id = $2`,
		userID, bannerID,
	).Scan(&pity)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint32(pity), nil
}

// SpUpHeroes returns the player's chosen up-hero string for a banner.
func (r *SummonRepo) SpUpHeroes(ctx context.Context, userID int64, bannerID int32) (string, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	var up string
	err := r.db.Pool.QueryRow(ctx,
		`SELECT sp_up_heroes FROM summon_pools WHERE user_id = $1 AND banner_id = $2`,
		userID, bannerID,
	).Scan(&up)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return up, err
}

// SetSpUpHeroes stores the player's chosen up heroes for a banner.
func (r *SummonRepo) SetSpUpHeroes(ctx context.Context, userID int64, bannerID int32, up string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO summon_pools (user_id, banner_id, sp_up_heroes)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, banner_id) DO UPDATE SET sp_up_heroes = excluded.sp_up_heroes`,
		userID, bannerID, up,
	)
	return err
}

// Commit charges the cost, grants the pulled heroes, stores the new pity and
// appends the history in a single transaction. ErrInsufficient and
// ErrPityConflict leave everything unchanged.
func (r *SummonRepo) Commit(ctx context.Context, c SummonCommit) ([]PullResult, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("summon begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the banner row so a concurrent summon for the same player waits,
	// then refuse if the draw was made from a stale pity.
	var stored int32
	err = tx.QueryRow(ctx,
		`SELECT pity_6 FROM summon_pools WHERE user_id = $1 AND banner_id = $2 FOR UPDATE`,
		c.UserID, c.BannerID,
	).Scan(&stored)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("summon lock pity: %w", err)
	}
	if uint32(stored) != c.PrevPity {
		return nil, ErrPityConflict
	}

	if c.Cost > 0 {
		tag, err := tx.Exec(ctx,
			`UPDATE currencies SET quantity = quantity - $3
			 WHERE user_id = $1 AND currency_id = $2 AND quantity >= $3`,
			c.UserID, c.CurrencyID, c.Cost,
		)
		if err != nil {
			return nil, fmt.Errorf("summon charge: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrInsufficient
		}
	}

	results := make([]PullResult, 0, len(c.Pulls))
	for _, p := range c.Pulls {
		var skin int32
		if c.SkinOf != nil {
			skin = c.SkinOf(p.HeroID)
		}
		isNew, dup, err := addOrDuplicate(ctx, tx, c.UserID, p.HeroID, skin, c.NowMs)
		if err != nil {
			return nil, fmt.Errorf("summon grant hero %d: %w", p.HeroID, err)
		}
		results = append(results, PullResult{Pull: p, IsNew: isNew, DuplicateCount: dup})

		if _, err := tx.Exec(ctx,
			`INSERT INTO summon_history (user_id, banner_id, hero_id, rarity, is_up, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.UserID, c.BannerID, p.HeroID, p.Rarity, p.Up, c.NowMs,
		); err != nil {
			return nil, fmt.Errorf("summon history: %w", err)
		}
	}

	// A first-ever row has nothing to lock above; the conditional update
	// catches a concurrent insert that won the race.
	tag, err := tx.Exec(ctx,
		`INSERT INTO summon_pools (user_id, banner_id, pity_6)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, banner_id) DO UPDATE SET pity_6 = excluded.pity_6
		 WHERE summon_pools.pity_6 = $4`,
		c.UserID, c.BannerID, int32(c.Pity), int32(c.PrevPity),
	)
	if err != nil {
		return nil, fmt.Errorf("summon pity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrPityConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("summon commit: %w", err)
	}
	return results, nil
}
