package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mta-engine/internal/config/configs"
)

// NewPostgresPool creates a new pgxpool.Pool with the provided
// configuration and verifies connectivity by pinging the database with a
// 5 second timeout. The caller must close the returned pool when it is no
// longer needed.
func NewPostgresPool(ctx context.Context, cfg configs.Postgres) (*pgxpool.Pool, error) {
	poolConf, err := pgxpool.ParseConfig(cfg.Addr.String())
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConf)
	if err != nil {
		return nil, err
	}

	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
