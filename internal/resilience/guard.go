package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dispatch/internal/event"
	"dispatch/internal/handler"
	"dispatch/internal/logger"
	"dispatch/pkg/circuitbreaker"
	apperrors "dispatch/pkg/errors"
	"dispatch/pkg/metrics"
	"dispatch/pkg/retry"
)

// Status classifies the terminal result of one guarded invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	// StatusFastFailure means the circuit was open and the handler was never
	// called.
	StatusFastFailure Status = "fast_failure"
	// StatusSkipped means the handler's Before hook declined the event.
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// Invocation is the record of one guarded handler call, retries included.
type Invocation struct {
	HandlerID string
	Status    Status
	Attempts  int
	Duration  time.Duration
	Err       error
}

func (i Invocation) Succeeded() bool {
	return i.Status == StatusSuccess || i.Status == StatusSkipped
}

// Policy configures one guard.
type Policy struct {
	MaxRetries       int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	AttemptTimeout   time.Duration
	FailureThreshold int
	Cooldown         time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:       3,
		RetryBaseDelay:   100 * time.Millisecond,
		RetryMaxDelay:    30 * time.Second,
		AttemptTimeout:   30 * time.Second,
		FailureThreshold: 5,
		Cooldown:         300 * time.Second,
	}
}

// Guard wraps every invocation of one handler with the retry policy, the
// per-attempt timeout, and the handler's circuit breaker. Every real attempt
// passes through the breaker, so a persistently failing handler trips open
// after FailureThreshold consecutive failures regardless of how attempts are
// grouped into invocations.
type Guard struct {
	id      string
	policy  Policy
	breaker *circuitbreaker.Breaker
	log     logger.Logger
}

func NewGuard(id string, policy Policy, log logger.Logger) *Guard {
	if log == nil {
		log = logger.NopLogger()
	}
	return &Guard{
		id:     id,
		policy: policy,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:             id,
			FailureThreshold: uint32(policy.FailureThreshold),
			Cooldown:         policy.Cooldown,
		}),
		log: log,
	}
}

// Invoke runs h for ev under the guard and never returns an error out of
// band: every anticipated condition lands in the Invocation record.
func (g *Guard) Invoke(ctx context.Context, h handler.Handler, ev event.Event) Invocation {
	start := time.Now()
	inv := Invocation{HandlerID: g.id}

	if hook, ok := h.(handler.BeforeHook); ok {
		if !hook.Before(ctx, ev) {
			inv.Status = StatusSkipped
			inv.Duration = time.Since(start)
			metrics.IncHandlerInvocation(g.id, string(StatusSkipped))
			return inv
		}
	}

	policy := retry.Policy{
		MaxAttempts:     g.policy.MaxRetries,
		InitialInterval: g.policy.RetryBaseDelay,
		MaxInterval:     g.policy.RetryMaxDelay,
		Multiplier:      2.0,
	}

	attempts, err := retry.RetryWithCallback(ctx, policy,
		func() error {
			return g.breaker.Execute(ctx, func() error {
				return g.attempt(ctx, h, ev)
			})
		},
		func(attempt int, err error, nextDelay time.Duration) {
			metrics.IncRetryAttempt(g.id)
			g.log.Debugw("handler attempt failed, retrying",
				"handler_id", g.id,
				"event_id", ev.ID,
				"attempt", attempt,
				"next_delay", nextDelay,
				"error", err,
			)
		},
	)

	inv.Attempts = attempts
	inv.Duration = time.Since(start)
	inv.Err = err
	inv.Status = classify(ctx, err)

	metrics.IncHandlerInvocation(g.id, string(inv.Status))
	metrics.ObserveHandlerDuration(g.id, inv.Duration)

	if hook, ok := h.(handler.AfterHook); ok {
		g.runAfter(ctx, hook, ev, err)
	}

	return inv
}

// attempt bounds a single handler call with the per-attempt timeout. A
// handler that ignores cancellation is abandoned rather than allowed to hold
// the dispatch slot; its goroutine exits whenever the handler returns.
func (g *Guard) attempt(ctx context.Context, h handler.Handler, ev event.Event) error {
	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if g.policy.AttemptTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, g.policy.AttemptTimeout)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- safeHandle(attemptCtx, h, ev)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			return apperrors.ErrTimeout.WithDetail("handler_id", g.id).WithCause(err)
		}
		return err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return apperrors.ErrCancelled.WithCause(ctx.Err())
		}
		return apperrors.ErrTimeout.WithDetail("handler_id", g.id)
	}
}

func safeHandle(ctx context.Context, h handler.Handler, ev event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.ErrProcessing.
				WithMessage("handler panicked: %v", r).
				AsFatal()
		}
	}()
	return h.Handle(ctx, ev)
}

func (g *Guard) runAfter(ctx context.Context, hook handler.AfterHook, ev event.Event, result error) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Warnw("after hook panicked",
				"handler_id", g.id,
				"event_id", ev.ID,
				"panic", fmt.Sprintf("%v", r),
			)
		}
	}()
	hook.After(ctx, ev, result)
}

func classify(ctx context.Context, err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case apperrors.IsCircuitOpen(err):
		return StatusFastFailure
	case apperrors.IsCancelled(err),
		errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return StatusCancelled
	default:
		return StatusFailure
	}
}

// Snapshot exposes the guard's breaker state for operational inspection.
func (g *Guard) Snapshot() circuitbreaker.Snapshot {
	return g.breaker.Snapshot()
}
