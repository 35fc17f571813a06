package persist

import (
	"context"
)

// CurrencyRow is one currency balance.
type CurrencyRow struct {
	CurrencyID      int32
	Quantity        int32
	LastRecoverTime int64
	ExpiredTime     int64
}

type CurrencyRepo struct {
	db *DB
}

func NewCurrencyRepo(db *DB) *CurrencyRepo {
	return &CurrencyRepo{db: db}
}

func (r *CurrencyRepo) List(ctx context.Context, userID int64) ([]CurrencyRow, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Pool.Query(ctx,
		`SELECT currency_id, quantity, last_recover_time, expired_time
		 FROM currencies WHERE user_id = $1 ORDER BY currency_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CurrencyRow
	for rows.Next() {
		var c CurrencyRow
		if err := rows.Scan(&c.CurrencyID, &c.Quantity, &c.LastRecoverTime, &c.ExpiredTime); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Add credits n of a currency, creating the balance if needed.
func (r *CurrencyRepo) Add(ctx context.Context, userID int64, currencyID, n int32) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO currencies (user_id, currency_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, currency_id) DO UPDATE SET
		   quantity = currencies.quantity + excluded.quantity`,
		userID, currencyID, n,
	)
	return err
}
