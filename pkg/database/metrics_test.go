package database

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func describeNames(t *testing.T, c prometheus.Collector) []string {
	t.Helper()
	ch := make(chan *prometheus.Desc, 32)
	c.Describe(ch)
	close(ch)

	var names []string
	for d := range ch {
		names = append(names, d.String())
	}
	return names
}

func TestPoolStatsCollector_Describe(t *testing.T) {
	// Describe does not touch the pool, so a nil pool is fine here.
	c := NewPoolStatsCollector(nil, "contactbook")
	require.NotNil(t, c)

	names := describeNames(t, c)
	assert.Len(t, names, 8)

	for _, want := range []string{
		"db_pool_acquired_connections",
		"db_pool_idle_connections",
		"db_pool_total_connections",
		"db_pool_max_connections",
		"db_pool_acquire_count_total",
		"db_pool_acquire_duration_seconds_total",
		"db_pool_canceled_acquire_count_total",
		"db_pool_empty_acquire_count_total",
	} {
		found := false
		for _, n := range names {
			if strings.Contains(n, `"`+want+`"`) {
				found = true
				break
			}
		}
		assert.True(t, found, "missing descriptor %s", want)
	}
}

func TestRedisStatsCollector_Collect(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Ping(context.Background()).Err())

	c := NewRedisStatsCollector(client, "contactbook")
	assert.Len(t, describeNames(t, c), 5)
	assert.Equal(t, 5, testutil.CollectAndCount(c))

	assert.GreaterOrEqual(t, client.PoolStats().TotalConns, uint32(1))
}
