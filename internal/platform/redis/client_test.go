package redis

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantgate/internal/platform/config"
)

func TestOptionsAppliesOverrides(t *testing.T) {
	opts, err := Options(config.Redis{
		URL:          "redis://cache:6380/2",
		PoolSize:     7,
		MinIdleConns: 2,
		DialTimeout:  time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, 2, opts.MinIdleConns)
	assert.Equal(t, time.Second, opts.DialTimeout)
}

func TestOptionsRejectsBadURL(t *testing.T) {
	_, err := Options(config.Redis{URL: "http://cache"})
	require.Error(t, err)
}

func TestNewWithoutURLIsDisabled(t *testing.T) {
	c, err := New(context.Background(), config.Redis{}, prometheus.NewRegistry())
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestRecordPoolStatsAddsDeltas(t *testing.T) {
	c := &Client{metrics: newPoolMetrics(prometheus.NewRegistry())}

	c.record(&redis.PoolStats{Hits: 5, Misses: 1, TotalConns: 3, IdleConns: 2})
	c.record(&redis.PoolStats{Hits: 8, Misses: 1, Timeouts: 1, TotalConns: 4, IdleConns: 1})

	assert.Equal(t, 8.0, testutil.ToFloat64(c.metrics.hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.misses))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.timeouts))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.metrics.totalConns))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.idleConns))
}
