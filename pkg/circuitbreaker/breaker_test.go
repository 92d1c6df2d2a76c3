package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dispatch/pkg/errors"
)

func testConfig(name string, threshold uint32, cooldown time.Duration) Config {
	return Config{
		Name:             name,
		FailureThreshold: threshold,
		Cooldown:         cooldown,
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New(testConfig("open-after-threshold", 3, time.Minute))
	boom := errors.New("boom")

	invocations := 0
	fail := func() error {
		invocations++
		return boom
	}

	for i := 0; i < 3; i++ {
		err := b.Execute(context.Background(), fail)
		require.ErrorIs(t, err, boom)
	}

	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.Equal(t, 3, invocations)

	snap := b.Snapshot()
	require.NotNil(t, snap.OpenUntil)
	assert.WithinDuration(t, time.Now().Add(time.Minute), *snap.OpenUntil, 5*time.Second)
	require.NotNil(t, snap.LastFailureAt)
}

func TestBreaker_FastFailureWhileOpen(t *testing.T) {
	b := New(testConfig("fast-failure", 2, time.Minute))

	invocations := 0
	fail := func() error {
		invocations++
		return errors.New("boom")
	}

	for i := 0; i < 2; i++ {
		_ = b.Execute(context.Background(), fail)
	}
	require.True(t, b.IsOpen())

	// Open window: the function must never run.
	for i := 0; i < 5; i++ {
		err := b.Execute(context.Background(), fail)
		require.True(t, apperrors.IsCircuitOpen(err))
	}
	assert.Equal(t, 2, invocations)
}

func TestBreaker_HalfOpenSingleTrialThenClosed(t *testing.T) {
	b := New(testConfig("half-open", 2, 50*time.Millisecond))

	for i := 0; i < 2; i++ {
		_ = b.Execute(context.Background(), func() error { return errors.New("boom") })
	}
	require.True(t, b.IsOpen())

	time.Sleep(60 * time.Millisecond)

	invocations := 0
	err := b.Execute(context.Background(), func() error {
		invocations++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, invocations)

	assert.Equal(t, gobreaker.StateClosed, b.State())
	snap := b.Snapshot()
	assert.Equal(t, uint32(0), snap.ConsecutiveFailures)
	assert.Nil(t, snap.OpenUntil)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New(testConfig("half-open-reopen", 2, 50*time.Millisecond))

	for i := 0; i < 2; i++ {
		_ = b.Execute(context.Background(), func() error { return errors.New("boom") })
	}
	require.True(t, b.IsOpen())

	time.Sleep(60 * time.Millisecond)

	err := b.Execute(context.Background(), func() error { return errors.New("still broken") })
	require.Error(t, err)
	assert.Equal(t, gobreaker.StateOpen, b.State())
}

func TestBreaker_CancelledDoesNotCountAsFailure(t *testing.T) {
	b := New(testConfig("cancel-no-failure", 2, time.Minute))

	for i := 0; i < 5; i++ {
		_ = b.Execute(context.Background(), func() error {
			return apperrors.ErrCancelled.WithCause(context.Canceled)
		})
	}

	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_CancelledContextShortCircuits(t *testing.T) {
	b := New(testConfig("ctx-cancelled", 2, time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	invoked := false
	err := b.Execute(ctx, func() error {
		invoked = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, invoked)
}
