// Package postgres provides PostgreSQL persistence using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/duskfall/internal/config"
)

// ErrDisabled is returned by Open when the configuration switches durable
// persistence off. Hosts treat it as "run memory-only", not as a failure.
var ErrDisabled = errors.New("postgres: persistence disabled")

// connectTimeout bounds the initial dial and ping.
const connectTimeout = 10 * time.Second

// Pool wraps a pgx connection pool with health-check and lifecycle methods.
type Pool struct {
	db *pgxpool.Pool
}

// Open connects a pool according to cfg. The enabled switch lives here so
// hosts do not branch on it themselves: a disabled configuration yields
// ErrDisabled and no pool.
//
// Postcondition: Returns a Pool that answered a ping, or a non-nil error.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Pool{db: db}, nil
}

// Health checks that the database answers within the given timeout.
//
// Precondition: The pool must not be closed.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.db.Ping(ctx)
}

// Close releases all pool resources. The pool is unusable afterwards.
func (p *Pool) Close() {
	p.db.Close()
}

// DB returns the underlying pgxpool.Pool for use by the repositories.
func (p *Pool) DB() *pgxpool.Pool {
	return p.db
}
