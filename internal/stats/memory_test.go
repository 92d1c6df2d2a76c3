package stats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/processor"
	"dispatch/internal/resilience"
)

func resultAt(at time.Time, invocations ...resilience.Invocation) processor.Result {
	return processor.Result{
		EventID:     "ev",
		ProcessedAt: at,
		Outcomes:    invocations,
	}
}

func TestMemorySink_QueryAggregates(t *testing.T) {
	sink := NewMemorySink(100)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, sink.Record(ctx, resultAt(now,
		resilience.Invocation{HandlerID: "h1", Status: resilience.StatusSuccess, Attempts: 1, Duration: 10 * time.Millisecond},
		resilience.Invocation{HandlerID: "h2", Status: resilience.StatusFailure, Attempts: 3, Duration: 30 * time.Millisecond},
	)))
	require.NoError(t, sink.Record(ctx, resultAt(now.Add(time.Second),
		resilience.Invocation{HandlerID: "h1", Status: resilience.StatusFailure, Attempts: 2, Duration: 20 * time.Millisecond},
		resilience.Invocation{HandlerID: "h1", Status: resilience.StatusFastFailure, Attempts: 1},
		resilience.Invocation{HandlerID: "h1", Status: resilience.StatusSkipped},
	)))

	agg, err := sink.Query(ctx, "h1", now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(4), agg.Dispatched)
	assert.Equal(t, int64(1), agg.Succeeded)
	assert.Equal(t, int64(1), agg.Failed)
	assert.Equal(t, int64(1), agg.FastFailures)
	assert.Equal(t, int64(1), agg.Skipped)
	assert.Equal(t, int64(4), agg.Attempts)

	agg, err = sink.Query(ctx, "h2", now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.Dispatched)
	assert.Equal(t, int64(1), agg.Failed)
}

func TestMemorySink_QueryRespectsTimeRange(t *testing.T) {
	sink := NewMemorySink(100)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, sink.Record(ctx, resultAt(now.Add(time.Duration(i)*time.Minute),
			resilience.Invocation{HandlerID: "h1", Status: resilience.StatusSuccess, Attempts: 1},
		)))
	}

	agg, err := sink.Query(ctx, "h1", now.Add(time.Minute), now.Add(3*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(3), agg.Dispatched)
}

func TestMemorySink_QueryUnknownHandlerIsEmpty(t *testing.T) {
	sink := NewMemorySink(100)

	agg, err := sink.Query(context.Background(), "ghost", time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "ghost", agg.HandlerID)
	assert.Zero(t, agg.Dispatched)
	assert.Zero(t, agg.AvgDuration)
}

func TestMemorySink_AverageDuration(t *testing.T) {
	sink := NewMemorySink(100)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, sink.Record(ctx, resultAt(now,
		resilience.Invocation{HandlerID: "h1", Status: resilience.StatusSuccess, Duration: 10 * time.Millisecond},
		resilience.Invocation{HandlerID: "h1", Status: resilience.StatusSuccess, Duration: 30 * time.Millisecond},
	)))

	agg, err := sink.Query(ctx, "h1", now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, agg.AvgDuration)
}

func TestMemorySink_RecentRingIsBounded(t *testing.T) {
	sink := NewMemorySink(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result := resultAt(time.Now())
		result.EventID = fmt.Sprintf("ev-%d", i)
		require.NoError(t, sink.Record(ctx, result))
	}

	recent := sink.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "ev-2", recent[0].EventID)
	assert.Equal(t, "ev-4", recent[2].EventID)
}
