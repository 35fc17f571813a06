package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// TokenRow is the SDK-issued credential of one account.
type TokenRow struct {
	UserID       int64
	Token        string
	RefreshToken string
	ExpiresAt    *int64 // unix ms; nil = no expiry
}

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetToken returns the account's credential, or nil, nil when the account
// does not exist.
func (r *UserRepo) GetToken(ctx context.Context, userID int64) (*TokenRow, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	row := &TokenRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, token, refresh_token, token_expires_at FROM users WHERE id = $1`, userID,
	).Scan(&row.UserID, &row.Token, &row.RefreshToken, &row.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}
