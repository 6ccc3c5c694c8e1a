// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// PoolConfig controls how Connect builds and verifies the connection pool.
type PoolConfig struct {
	URL string
	// MaxConns overrides the pool size when positive.
	MaxConns int32
	// ConnectAttempts is the number of pings tried before giving up.
	ConnectAttempts uint64
	// ConnectBackoff is the first retry delay; it doubles per attempt
	// up to maxConnectBackoff.
	ConnectBackoff time.Duration
}

const maxConnectBackoff = 10 * time.Second

// Connect opens a pgx pool and pings it until it answers, backing off
// exponentially between attempts. PostgreSQL containers often accept TCP
// before they accept queries, so the first ping failing is normal.
func Connect(ctx context.Context, cfg PoolConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}

	attempts := max(cfg.ConnectAttempts, 1)
	base := cfg.ConnectBackoff
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(attempts-1,
		retry.WithCappedDuration(maxConnectBackoff, retry.NewExponential(base)))

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := pool.Ping(ctx); pingErr != nil {
			logger.WarnContext(ctx, "database not ready",
				"attempt", attempt,
				"max_attempts", attempts,
				"error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("attempts", attempt).Wrap(err)
	}

	logger.InfoContext(ctx, "database connected",
		"max_conns", poolCfg.MaxConns,
		"attempts", attempt)
	return pool, nil
}
