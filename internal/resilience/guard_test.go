package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/event"
	"dispatch/internal/handler"
	apperrors "dispatch/pkg/errors"
)

func fastPolicy() Policy {
	return Policy{
		MaxRetries:       3,
		RetryBaseDelay:   time.Millisecond,
		RetryMaxDelay:    5 * time.Millisecond,
		AttemptTimeout:   time.Second,
		FailureThreshold: 5,
		Cooldown:         time.Minute,
	}
}

type hookedHandler struct {
	handle func(ctx context.Context, ev event.Event) error
	before func(ctx context.Context, ev event.Event) bool
	after  func(ctx context.Context, ev event.Event, result error)
}

func (h *hookedHandler) Handle(ctx context.Context, ev event.Event) error {
	return h.handle(ctx, ev)
}

func (h *hookedHandler) Before(ctx context.Context, ev event.Event) bool {
	return h.before(ctx, ev)
}

func (h *hookedHandler) After(ctx context.Context, ev event.Event, result error) {
	h.after(ctx, ev, result)
}

func testEvent() event.Event {
	return event.NewMessageDeleted("org", "m1")
}

func TestGuard_Success(t *testing.T) {
	g := NewGuard("h1", fastPolicy(), nil)

	inv := g.Invoke(context.Background(), handler.HandlerFunc(func(context.Context, event.Event) error {
		return nil
	}), testEvent())

	assert.Equal(t, StatusSuccess, inv.Status)
	assert.Equal(t, 1, inv.Attempts)
	assert.True(t, inv.Succeeded())
	assert.NoError(t, inv.Err)
}

func TestGuard_RetriesThenSucceeds(t *testing.T) {
	g := NewGuard("h1", fastPolicy(), nil)

	var calls atomic.Int32
	inv := g.Invoke(context.Background(), handler.HandlerFunc(func(context.Context, event.Event) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}), testEvent())

	assert.Equal(t, StatusSuccess, inv.Status)
	assert.Equal(t, 3, inv.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGuard_FatalFailureNotRetried(t *testing.T) {
	g := NewGuard("h1", fastPolicy(), nil)

	var calls atomic.Int32
	inv := g.Invoke(context.Background(), handler.HandlerFunc(func(context.Context, event.Event) error {
		calls.Add(1)
		return apperrors.ErrValidation.WithMessage("malformed")
	}), testEvent())

	assert.Equal(t, StatusFailure, inv.Status)
	assert.Equal(t, 1, inv.Attempts)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGuard_BeforeHookSkips(t *testing.T) {
	g := NewGuard("h1", fastPolicy(), nil)

	var handled atomic.Int32
	h := &hookedHandler{
		handle: func(context.Context, event.Event) error {
			handled.Add(1)
			return nil
		},
		before: func(context.Context, event.Event) bool { return false },
		after:  func(context.Context, event.Event, error) {},
	}

	inv := g.Invoke(context.Background(), h, testEvent())
	assert.Equal(t, StatusSkipped, inv.Status)
	assert.True(t, inv.Succeeded())
	assert.Equal(t, int32(0), handled.Load())

	// Skips never advance the breaker.
	assert.Equal(t, uint32(0), g.Snapshot().ConsecutiveFailures)
}

func TestGuard_AfterHookObservesResult(t *testing.T) {
	g := NewGuard("h1", fastPolicy(), nil)

	var observed error
	sentinel := apperrors.ErrProcessing.WithMessage("domain failure").AsFatal()
	h := &hookedHandler{
		handle: func(context.Context, event.Event) error { return sentinel },
		before: func(context.Context, event.Event) bool { return true },
		after: func(_ context.Context, _ event.Event, result error) {
			observed = result
		},
	}

	inv := g.Invoke(context.Background(), h, testEvent())
	assert.Equal(t, StatusFailure, inv.Status)
	require.Error(t, observed)
}

func TestGuard_AfterHookPanicSwallowed(t *testing.T) {
	g := NewGuard("h1", fastPolicy(), nil)

	h := &hookedHandler{
		handle: func(context.Context, event.Event) error { return nil },
		before: func(context.Context, event.Event) bool { return true },
		after:  func(context.Context, event.Event, error) { panic("observer bug") },
	}

	inv := g.Invoke(context.Background(), h, testEvent())
	assert.Equal(t, StatusSuccess, inv.Status)
}

func TestGuard_HandlerPanicIsFatalFailure(t *testing.T) {
	g := NewGuard("h1", fastPolicy(), nil)

	var calls atomic.Int32
	inv := g.Invoke(context.Background(), handler.HandlerFunc(func(context.Context, event.Event) error {
		calls.Add(1)
		panic("programming error")
	}), testEvent())

	assert.Equal(t, StatusFailure, inv.Status)
	assert.Equal(t, int32(1), calls.Load(), "panics are not retried")
	require.Error(t, inv.Err)
}

func TestGuard_TimeoutRetriedThenFails(t *testing.T) {
	policy := fastPolicy()
	policy.MaxRetries = 2
	policy.AttemptTimeout = 10 * time.Millisecond
	g := NewGuard("h1", policy, nil)

	var calls atomic.Int32
	inv := g.Invoke(context.Background(), handler.HandlerFunc(func(ctx context.Context, _ event.Event) error {
		calls.Add(1)
		<-ctx.Done()
		return ctx.Err()
	}), testEvent())

	assert.Equal(t, StatusFailure, inv.Status)
	assert.True(t, apperrors.IsTimeout(inv.Err))
	assert.Equal(t, 2, inv.Attempts)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGuard_CircuitOpensAndFastFails(t *testing.T) {
	policy := fastPolicy()
	policy.MaxRetries = 1
	policy.FailureThreshold = 2
	g := NewGuard("h1", policy, nil)

	var calls atomic.Int32
	failing := handler.HandlerFunc(func(context.Context, event.Event) error {
		calls.Add(1)
		return errors.New("boom")
	})

	for i := 0; i < 2; i++ {
		inv := g.Invoke(context.Background(), failing, testEvent())
		assert.Equal(t, StatusFailure, inv.Status)
	}
	require.Equal(t, int32(2), calls.Load())

	inv := g.Invoke(context.Background(), failing, testEvent())
	assert.Equal(t, StatusFastFailure, inv.Status)
	assert.True(t, apperrors.IsCircuitOpen(inv.Err))
	assert.Equal(t, int32(2), calls.Load(), "open circuit must not invoke the handler")
}

func TestGuard_HalfOpenRecovery(t *testing.T) {
	policy := fastPolicy()
	policy.MaxRetries = 1
	policy.FailureThreshold = 2
	policy.Cooldown = 30 * time.Millisecond
	g := NewGuard("h1", policy, nil)

	fail := handler.HandlerFunc(func(context.Context, event.Event) error {
		return errors.New("boom")
	})
	for i := 0; i < 2; i++ {
		_ = g.Invoke(context.Background(), fail, testEvent())
	}

	time.Sleep(40 * time.Millisecond)

	inv := g.Invoke(context.Background(), handler.HandlerFunc(func(context.Context, event.Event) error {
		return nil
	}), testEvent())
	assert.Equal(t, StatusSuccess, inv.Status)
	assert.Equal(t, uint32(0), g.Snapshot().ConsecutiveFailures)
}

func TestGuard_CancellationIsNotFailure(t *testing.T) {
	g := NewGuard("h1", fastPolicy(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	inv := g.Invoke(ctx, handler.HandlerFunc(func(hctx context.Context, _ event.Event) error {
		cancel()
		<-hctx.Done()
		return hctx.Err()
	}), testEvent())

	assert.Equal(t, StatusCancelled, inv.Status)
	assert.Equal(t, uint32(0), g.Snapshot().ConsecutiveFailures)
}

func TestGuardSet_PerHandlerIsolation(t *testing.T) {
	set := NewGuardSet(fastPolicy(), nil)

	g1 := set.Get("h1")
	g2 := set.Get("h2")
	assert.NotSame(t, g1, g2)
	assert.Same(t, g1, set.Get("h1"))

	_, err := set.Snapshot("ghost")
	assert.True(t, apperrors.IsHandlerNotFound(err))

	set.Remove("h1")
	assert.NotSame(t, g1, set.Get("h1"), "removed guard starts fresh")
}
