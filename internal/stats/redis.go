package stats

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"dispatch/internal/processor"
	"dispatch/internal/resilience"
)

const bucketResolution = time.Minute

// RedisSink persists per-handler outcome counters in minute-resolution hash
// buckets with a TTL. It is the remote sink for multi-process hosts; the
// engine only ever touches it through Record and Query.
type RedisSink struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisSink(client *redis.Client, ttl time.Duration) *RedisSink {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSink{
		client: client,
		prefix: "dispatch:stats",
		ttl:    ttl,
	}
}

func (s *RedisSink) key(handlerID string, bucket time.Time) string {
	return fmt.Sprintf("%s:%s:%d", s.prefix, handlerID, bucket.Unix())
}

func (s *RedisSink) Record(ctx context.Context, result processor.Result) error {
	if len(result.Outcomes) == 0 {
		return nil
	}

	bucket := result.ProcessedAt.UTC().Truncate(bucketResolution)

	pipe := s.client.Pipeline()
	for _, inv := range result.Outcomes {
		key := s.key(inv.HandlerID, bucket)
		pipe.HIncrBy(ctx, key, "dispatched", 1)
		pipe.HIncrBy(ctx, key, string(inv.Status), 1)
		pipe.HIncrBy(ctx, key, "attempts", int64(inv.Attempts))
		pipe.HIncrBy(ctx, key, "duration_ms", inv.Duration.Milliseconds())
		pipe.Expire(ctx, key, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis stats record failed: %w", err)
	}
	return nil
}

func (s *RedisSink) Query(ctx context.Context, handlerID string, from, to time.Time) (Aggregate, error) {
	agg := Aggregate{HandlerID: handlerID}
	var totalDurationMs int64

	start := from.UTC().Truncate(bucketResolution)
	end := to.UTC().Truncate(bucketResolution)

	for bucket := start; !bucket.After(end); bucket = bucket.Add(bucketResolution) {
		if err := ctx.Err(); err != nil {
			return agg, err
		}

		fields, err := s.client.HGetAll(ctx, s.key(handlerID, bucket)).Result()
		if err != nil {
			return agg, fmt.Errorf("redis stats query failed: %w", err)
		}

		agg.Dispatched += fieldInt(fields, "dispatched")
		agg.Succeeded += fieldInt(fields, string(resilience.StatusSuccess))
		agg.Failed += fieldInt(fields, string(resilience.StatusFailure))
		agg.FastFailures += fieldInt(fields, string(resilience.StatusFastFailure))
		agg.Cancelled += fieldInt(fields, string(resilience.StatusCancelled))
		agg.Skipped += fieldInt(fields, string(resilience.StatusSkipped))
		agg.Attempts += fieldInt(fields, "attempts")
		totalDurationMs += fieldInt(fields, "duration_ms")
	}

	if agg.Dispatched > 0 {
		agg.AvgDuration = time.Duration(totalDurationMs/agg.Dispatched) * time.Millisecond
	}
	return agg, nil
}

func fieldInt(fields map[string]string, name string) int64 {
	v, _ := strconv.ParseInt(fields[name], 10, 64)
	return v
}
