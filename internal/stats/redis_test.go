package stats

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"dispatch/internal/resilience"
)

func setupRedisSink(t *testing.T, ttl time.Duration) *RedisSink {
	t.Helper()

	ctx := context.Background()

	if os.Getenv("TESTCONTAINERS_RYUK_DISABLED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	}

	container, err := redismodule.Run(ctx, "redis:8.4.0-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("6379/tcp").WithStartupTimeout(10*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis uri: %v", err)
	}

	opt, err := redis.ParseURL(uri)
	if err != nil {
		t.Fatalf("failed to parse redis URL: %v", err)
	}

	client := redis.NewClient(opt)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Ping(ctxWithTimeout).Err(); err != nil {
		client.Close()
		t.Fatalf("failed to ping redis: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	return NewRedisSink(client, ttl)
}

func TestRedisSink_RecordQueryRoundTrip(t *testing.T) {
	sink := setupRedisSink(t, time.Hour)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, sink.Record(ctx, resultAt(now,
		resilience.Invocation{HandlerID: "h1", Status: resilience.StatusSuccess, Attempts: 1, Duration: 10 * time.Millisecond},
		resilience.Invocation{HandlerID: "h1", Status: resilience.StatusFailure, Attempts: 3, Duration: 30 * time.Millisecond},
		resilience.Invocation{HandlerID: "h2", Status: resilience.StatusFastFailure, Attempts: 1},
	)))
	require.NoError(t, sink.Record(ctx, resultAt(now,
		resilience.Invocation{HandlerID: "h1", Status: resilience.StatusSkipped},
	)))

	agg, err := sink.Query(ctx, "h1", now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(3), agg.Dispatched)
	assert.Equal(t, int64(1), agg.Succeeded)
	assert.Equal(t, int64(1), agg.Failed)
	assert.Equal(t, int64(1), agg.Skipped)
	assert.Equal(t, int64(4), agg.Attempts)
	assert.Equal(t, 13*time.Millisecond, agg.AvgDuration)

	agg, err = sink.Query(ctx, "h2", now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.Dispatched)
	assert.Equal(t, int64(1), agg.FastFailures)
}

func TestRedisSink_QueryRespectsBuckets(t *testing.T) {
	sink := setupRedisSink(t, time.Hour)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Minute)

	require.NoError(t, sink.Record(ctx, resultAt(base,
		resilience.Invocation{HandlerID: "h1", Status: resilience.StatusSuccess, Attempts: 1},
	)))
	require.NoError(t, sink.Record(ctx, resultAt(base.Add(2*time.Minute),
		resilience.Invocation{HandlerID: "h1", Status: resilience.StatusSuccess, Attempts: 1},
	)))

	agg, err := sink.Query(ctx, "h1", base, base.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.Dispatched, "query window covers only the first bucket")

	agg, err = sink.Query(ctx, "h1", base, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), agg.Dispatched)
}

func TestRedisSink_BucketsExpire(t *testing.T) {
	sink := setupRedisSink(t, time.Second)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, sink.Record(ctx, resultAt(now,
		resilience.Invocation{HandlerID: "h1", Status: resilience.StatusSuccess, Attempts: 1},
	)))

	time.Sleep(2 * time.Second)

	agg, err := sink.Query(ctx, "h1", now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, agg.Dispatched)
}

func TestRedisSink_RecordContextCancellation(t *testing.T) {
	sink := setupRedisSink(t, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sink.Record(ctx, resultAt(time.Now(),
		resilience.Invocation{HandlerID: "h1", Status: resilience.StatusSuccess, Attempts: 1},
	))
	require.Error(t, err)
}
