package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sonettogo/server/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrInsufficient is returned when a spend would take a balance below zero.
	ErrInsufficient = errors.New("insufficient quantity")
	// ErrPityConflict means another summon moved the banner's pity since it
	// was read. Nothing was written; the caller may re-read and retry.
	ErrPityConflict = errors.New("summon pity changed concurrently")
)

// DB wraps a pgx connection pool. Every repo call runs under queryTimeout
// unless the caller's context already expires sooner.
type DB struct {
	Pool         *pgxpool.Pool
	queryTimeout time.Duration
	log          *zap.Logger
}

func NewDB(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	db := &DB{Pool: pool, queryTimeout: cfg.QueryTimeout, log: log}
	pingCtx, cancel := db.withTimeout(ctx)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	log.Debug("資料庫連線池已建立",
		zap.Int32("max_conns", poolCfg.MaxConns),
		zap.Duration("query_timeout", cfg.QueryTimeout),
	)
	return db, nil
}

// withTimeout bounds one repo call. A zero queryTimeout leaves ctx as is.
func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.queryTimeout)
}

func (db *DB) Close() {
	db.Pool.Close()
}
