package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

type poolMetric[S any] struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(S) float64
}

func newPoolMetric[S any](name, help string, kind prometheus.ValueType, value func(S) float64) poolMetric[S] {
	return poolMetric[S]{
		desc:  prometheus.NewDesc(name, help, []string{"service"}, nil),
		kind:  kind,
		value: value,
	}
}

// PoolStatsCollector implements prometheus.Collector for pgxpool connection metrics.
type PoolStatsCollector struct {
	pool    *pgxpool.Pool
	service string
	metrics []poolMetric[*pgxpool.Stat]
}

// NewPoolStatsCollector creates a new Prometheus collector that exports pgxpool
// connection pool statistics as metrics.
func NewPoolStatsCollector(pool *pgxpool.Pool, service string) *PoolStatsCollector {
	gauge, counter := prometheus.GaugeValue, prometheus.CounterValue
	return &PoolStatsCollector{
		pool:    pool,
		service: service,
		metrics: []poolMetric[*pgxpool.Stat]{
			newPoolMetric("db_pool_acquired_connections", "Number of currently acquired connections", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
			newPoolMetric("db_pool_idle_connections", "Number of currently idle connections", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
			newPoolMetric("db_pool_total_connections", "Total number of connections in the pool", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
			newPoolMetric("db_pool_max_connections", "Maximum number of connections allowed", gauge,
				func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
			newPoolMetric("db_pool_acquire_count_total", "Total number of connection acquires", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.AcquireCount()) }),
			newPoolMetric("db_pool_acquire_duration_seconds_total", "Total time spent acquiring connections in seconds", counter,
				func(s *pgxpool.Stat) float64 { return s.AcquireDuration().Seconds() }),
			newPoolMetric("db_pool_canceled_acquire_count_total", "Total number of canceled connection acquires", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.CanceledAcquireCount()) }),
			newPoolMetric("db_pool_empty_acquire_count_total", "Total number of acquires that had to wait for a connection", counter,
				func(s *pgxpool.Stat) float64 { return float64(s.EmptyAcquireCount()) }),
		},
	}
}

// Describe sends the descriptors of all metrics to the provided channel.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect reads current pool statistics and sends them as Prometheus metrics.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(stat), c.service)
	}
}

// RegisterPoolMetrics creates and registers a pgxpool metrics collector with
// the default Prometheus registry.
func RegisterPoolMetrics(pool *pgxpool.Pool, service string) {
	prometheus.MustRegister(NewPoolStatsCollector(pool, service))
}

// RedisStatsCollector implements prometheus.Collector for go-redis pool metrics.
type RedisStatsCollector struct {
	client  redis.UniversalClient
	service string
	metrics []poolMetric[*redis.PoolStats]
}

// NewRedisStatsCollector creates a collector exporting the client's connection
// pool statistics.
func NewRedisStatsCollector(client redis.UniversalClient, service string) *RedisStatsCollector {
	gauge, counter := prometheus.GaugeValue, prometheus.CounterValue
	return &RedisStatsCollector{
		client:  client,
		service: service,
		metrics: []poolMetric[*redis.PoolStats]{
			newPoolMetric("redis_pool_hits_total", "Number of times a free connection was found in the pool", counter,
				func(s *redis.PoolStats) float64 { return float64(s.Hits) }),
			newPoolMetric("redis_pool_misses_total", "Number of times a free connection was not found in the pool", counter,
				func(s *redis.PoolStats) float64 { return float64(s.Misses) }),
			newPoolMetric("redis_pool_timeouts_total", "Number of times a wait timeout occurred", counter,
				func(s *redis.PoolStats) float64 { return float64(s.Timeouts) }),
			newPoolMetric("redis_pool_total_connections", "Number of connections in the pool", gauge,
				func(s *redis.PoolStats) float64 { return float64(s.TotalConns) }),
			newPoolMetric("redis_pool_idle_connections", "Number of idle connections in the pool", gauge,
				func(s *redis.PoolStats) float64 { return float64(s.IdleConns) }),
		},
	}
}

// Describe sends the descriptors of all metrics to the provided channel.
func (c *RedisStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect reads current pool statistics and sends them as Prometheus metrics.
func (c *RedisStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.client.PoolStats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(stat), c.service)
	}
}

// RegisterRedisMetrics registers a go-redis pool collector with the default
// Prometheus registry.
func RegisterRedisMetrics(client redis.UniversalClient, service string) {
	prometheus.MustRegister(NewRedisStatsCollector(client, service))
}
