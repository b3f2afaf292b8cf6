package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterPgxPoolMetrics exposes pgx connection pool statistics as Prometheus
// gauges. The pool label distinguishes the core pool from the shard pools.
// Re-registering the same pool name is a no-op, since shard pools are dialed
// lazily and may race.
func RegisterPgxPoolMetrics(name string, pool *pgxpool.Pool) {
	labels := prometheus.Labels{"pool": name}
	register(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "pgxpool_acquired_conns",
			Help:        "Number of currently acquired connections in the pool",
			ConstLabels: labels,
		}, func() float64 {
			return float64(pool.Stat().AcquiredConns())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "pgxpool_max_conns",
			Help:        "Maximum number of connections in the pool",
			ConstLabels: labels,
		}, func() float64 {
			return float64(pool.Stat().MaxConns())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "pgxpool_total_conns",
			Help:        "Total number of connections in the pool",
			ConstLabels: labels,
		}, func() float64 {
			return float64(pool.Stat().TotalConns())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "pgxpool_idle_conns",
			Help:        "Number of idle connections in the pool",
			ConstLabels: labels,
		}, func() float64 {
			return float64(pool.Stat().IdleConns())
		}),
	)
}

func register(collectors ...prometheus.Collector) {
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			panic(err)
		}
	}
}
