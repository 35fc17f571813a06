package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ItemRow is one stack in a player's bag.
type ItemRow struct {
	ItemID         int32
	Quantity       int32
	LastUseTime    int64
	LastUpdateTime int64
}

type ItemRepo struct {
	db *DB
}

func NewItemRepo(db *DB) *ItemRepo {
	return &ItemRepo{db: db}
}

// List returns every non-empty item stack of a player.
func (r *ItemRepo) List(ctx context.Context, userID int64) ([]ItemRow, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Pool.Query(ctx,
		`SELECT item_id, quantity, last_use_time, last_update_time
		 FROM items WHERE user_id = $1 AND quantity > 0 ORDER BY item_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ItemRow
	for rows.Next() {
		var it ItemRow
		if err := rows.Scan(&it.ItemID, &it.Quantity, &it.LastUseTime, &it.LastUpdateTime); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Get returns one stack, or nil when the player has none.
func (r *ItemRepo) Get(ctx context.Context, userID int64, itemID int32) (*ItemRow, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	it := &ItemRow{ItemID: itemID}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT quantity, last_use_time, last_update_time
		 FROM items WHERE user_id = $1 AND item_id = $2`, userID, itemID,
	).Scan(&it.Quantity, &it.LastUseTime, &it.LastUpdateTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}

// AddQuantity adds n to a stack, creating it if needed.
func (r *ItemRepo) AddQuantity(ctx context.Context, userID int64, itemID, n int32, nowMs int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	if n <= 0 {
		return fmt.Errorf("add item %d: non-positive amount %d", itemID, n)
	}
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO items (user_id, item_id, quantity, last_update_time)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, item_id) DO UPDATE SET
		   quantity = items.quantity + excluded.quantity,
		   last_update_time = excluded.last_update_time`,
		userID, itemID, n, nowMs,
	)
	return err
}

// RemoveQuantity takes n from a stack. It returns ErrInsufficient and
// changes nothing when the stack holds fewer than n.
func (r *ItemRepo) RemoveQuantity(ctx context.Context, userID int64, itemID, n int32, nowMs int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE items SET quantity = quantity - $3, last_use_time = $4, last_update_time = $4
		 WHERE user_id = $1 AND item_id = $2 AND quantity >= $3`,
		userID, itemID, n, nowMs,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficient
	}
	return nil
}
