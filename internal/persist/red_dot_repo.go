package persist

import (
	"context"
	"fmt"
	"slices"
)

// MaxDefineIDs bounds the id list of one filtered red-dot query.
const MaxDefineIDs = 1000

// RedDot is one notification flag.
type RedDot struct {
	DefineID   int32
	InfoID     int64
	Value      int32
	Time       int64
	Ext        string
	ReplaceAll bool
}

// RedDotGroup is the red dots of one define id, as sent to the client.
type RedDotGroup struct {
	DefineID   int32
	Dots       []RedDot
	ReplaceAll bool
}

type RedDotRepo struct {
	db *DB
}

func NewRedDotRepo(db *DB) *RedDotRepo {
	return &RedDotRepo{db: db}
}

const redDotColumns = `define_id, info_id, value, time, ext, replace_all`

// List returns all red dots of a player ordered by define and info id.
func (r *RedDotRepo) List(ctx context.Context, userID int64) ([]RedDot, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	return r.query(ctx,
		`SELECT `+redDotColumns+` FROM red_dots WHERE user_id = $1 ORDER BY define_id, info_id`,
		userID)
}

// ListByDefines returns the player's red dots for the given define ids.
func (r *RedDotRepo) ListByDefines(ctx context.Context, userID int64, defineIDs []int32) ([]RedDot, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	if len(defineIDs) == 0 {
		return nil, nil
	}
	if len(defineIDs) > MaxDefineIDs {
		return nil, fmt.Errorf("red dot lookup: %d define ids exceeds limit %d", len(defineIDs), MaxDefineIDs)
	}
	return r.query(ctx,
		`SELECT `+redDotColumns+` FROM red_dots
		 WHERE user_id = $1 AND define_id = ANY($2)
		 ORDER BY define_id, info_id`,
		userID, defineIDs)
}

func (r *RedDotRepo) query(ctx context.Context, sql string, args ...any) ([]RedDot, error) {
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RedDot
	for rows.Next() {
		var d RedDot
		if err := rows.Scan(&d.DefineID, &d.InfoID, &d.Value, &d.Time, &d.Ext, &d.ReplaceAll); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Upsert sets one red dot. Repeating the call leaves the same row.
func (r *RedDotRepo) Upsert(ctx context.Context, userID int64, d RedDot, nowMs int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO red_dots (user_id, define_id, info_id, value, time, ext, replace_all, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id, define_id, info_id) DO UPDATE SET
		   value = excluded.value, time = excluded.time, ext = excluded.ext,
		   replace_all = excluded.replace_all, updated_at = excluded.updated_at`,
		userID, d.DefineID, d.InfoID, d.Value, d.Time, d.Ext, d.ReplaceAll, nowMs,
	)
	return err
}

// ClearDefine deletes every red dot of one define id.
func (r *RedDotRepo) ClearDefine(ctx context.Context, userID int64, defineID int32) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM red_dots WHERE user_id = $1 AND define_id = $2`, userID, defineID)
	return err
}

// ClearInfo deletes one red dot.
func (r *RedDotRepo) ClearInfo(ctx context.Context, userID int64, defineID int32, infoID int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM red_dots WHERE user_id = $1 AND define_id = $2 AND info_id = $3`,
		userID, defineID, infoID)
	return err
}

// GroupRedDots groups dots by define id in ascending define order, keeping
// the input order within a group. A group's ReplaceAll comes from its first dot.
func GroupRedDots(dots []RedDot) []RedDotGroup {
	idx := make(map[int32]int)
	var groups []RedDotGroup
	for _, d := range dots {
		i, ok := idx[d.DefineID]
		if !ok {
			i = len(groups)
			idx[d.DefineID] = i
			groups = append(groups, RedDotGroup{DefineID: d.DefineID, ReplaceAll: d.ReplaceAll})
		}
		groups[i].Dots = append(groups[i].Dots, d)
	}
	slices.SortStableFunc(groups, func(a, b RedDotGroup) int {
		return int(a.DefineID) - int(b.DefineID)
	})
	return groups
}
