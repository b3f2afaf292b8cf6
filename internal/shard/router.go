package shard

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/pollwise/acdash/internal/db"
	"github.com/pollwise/acdash/internal/metrics"
	"github.com/pollwise/acdash/internal/registry"
)

// Router resolves a constituency id to its physical partition handle.
// Resolution is deterministic and idempotent: the same id always maps to
// the same partition.
type Router interface {
	Resolve(ctx context.Context, acID int) (*Shard, error)
}

// PgxRouter routes constituencies to Postgres shard databases from the
// deploy-time registry. One pool per physical shard is dialed lazily on
// first use and reused for the process lifetime.
type PgxRouter struct {
	reg    *registry.Registry
	logger zerolog.Logger

	mu    sync.Mutex
	pools map[string]*pgxpool.Pool
}

func NewPgxRouter(reg *registry.Registry, logger zerolog.Logger) *PgxRouter {
	return &PgxRouter{
		reg:    reg,
		logger: logger.With().Str("component", "shard-router").Logger(),
		pools:  make(map[string]*pgxpool.Pool),
	}
}

// Resolve returns the partition handle for acID. Unknown ids fail fast
// with registry.ErrUnknownConstituency and never create a partition.
func (r *PgxRouter) Resolve(ctx context.Context, acID int) (*Shard, error) {
	ac, err := r.reg.Get(acID)
	if err != nil {
		return nil, err
	}
	placement, err := r.reg.ShardFor(acID)
	if err != nil {
		return nil, err
	}

	pool, err := r.pool(ctx, placement)
	if err != nil {
		return nil, err
	}

	return New(ac, pool), nil
}

func (r *PgxRouter) pool(ctx context.Context, placement registry.Shard) (*pgxpool.Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pool, ok := r.pools[placement.Name]; ok {
		return pool, nil
	}

	pool, err := db.NewShardPool(ctx, placement.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: dial shard %s: %v", ErrUnavailable, placement.Name, err)
	}

	r.logger.Info().Str("shard", placement.Name).Msg("shard pool created")
	metrics.RegisterPgxPoolMetrics("shard_"+placement.Name, pool)
	r.pools[placement.Name] = pool
	return pool, nil
}

// Pools returns the currently dialed pools keyed by shard name.
func (r *PgxRouter) Pools() map[string]*pgxpool.Pool {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]*pgxpool.Pool, len(r.pools))
	for name, pool := range r.pools {
		out[name] = pool
	}
	return out
}

// Close closes all dialed shard pools.
func (r *PgxRouter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, pool := range r.pools {
		pool.Close()
		delete(r.pools, name)
	}
}
