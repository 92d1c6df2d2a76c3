package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	apperrors "dispatch/pkg/errors"
	"dispatch/pkg/metrics"
)

// Config defines per-handler circuit breaker configuration.
type Config struct {
	Name             string
	FailureThreshold uint32
	Cooldown         time.Duration
	OnStateChange    func(name string, from, to gobreaker.State)
}

func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		Cooldown:         300 * time.Second,
	}
}

// Snapshot is a point-in-time view of the breaker's resilience state.
type Snapshot struct {
	State               gobreaker.State
	ConsecutiveFailures uint32
	OpenUntil           *time.Time
	LastFailureAt       *time.Time
}

// Breaker guards one handler. It trips to open when the consecutive failure
// count reaches the configured threshold, stays open for the cooldown, then
// admits a single half-open trial.
type Breaker struct {
	cb *gobreaker.CircuitBreaker

	mu            sync.Mutex
	cooldown      time.Duration
	openUntil     *time.Time
	lastFailureAt *time.Time
}

func New(cfg Config) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 300 * time.Second
	}

	b := &Breaker{cooldown: cfg.Cooldown}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// Cancellation is not a handler failure and must not advance the
		// consecutive failure count. gobreaker has no neutral outcome, so a
		// cancelled attempt is reported as a success and also resets an
		// in-progress failure streak.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return errors.Is(err, context.Canceled) || apperrors.IsCancelled(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.trackTransition(to)
			updateStateMetric(name, to)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}

	b.cb = gobreaker.NewCircuitBreaker(settings)
	updateStateMetric(cfg.Name, b.cb.State())
	return b
}

func (b *Breaker) trackTransition(to gobreaker.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if to == gobreaker.StateOpen {
		until := time.Now().Add(b.cooldown)
		b.openUntil = &until
	} else {
		b.openUntil = nil
	}
}

// Execute runs fn under the breaker. While the breaker is open (or a
// half-open trial is already in flight) fn is never called and the error is
// a circuit-open fast failure.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	switch err {
	case nil:
		return nil
	case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
		metrics.CircuitBreakerFastFailuresTotal.WithLabelValues(b.cb.Name()).Inc()
		return apperrors.ErrCircuitOpen.WithDetail("handler_id", b.cb.Name())
	default:
		if !errors.Is(err, context.Canceled) && !apperrors.IsCancelled(err) {
			b.mu.Lock()
			now := time.Now()
			b.lastFailureAt = &now
			b.mu.Unlock()
		}
		return err
	}
}

func (b *Breaker) Name() string {
	return b.cb.Name()
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) IsOpen() bool {
	return b.cb.State() == gobreaker.StateOpen
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	var openUntil, lastFailure *time.Time
	if b.openUntil != nil {
		u := *b.openUntil
		openUntil = &u
	}
	if b.lastFailureAt != nil {
		f := *b.lastFailureAt
		lastFailure = &f
	}

	return Snapshot{
		State:               b.cb.State(),
		ConsecutiveFailures: b.cb.Counts().ConsecutiveFailures,
		OpenUntil:           openUntil,
		LastFailureAt:       lastFailure,
	}
}

func updateStateMetric(name string, state gobreaker.State) {
	var stateValue float64
	switch state {
	case gobreaker.StateClosed:
		stateValue = 0
	case gobreaker.StateHalfOpen:
		stateValue = 1
	case gobreaker.StateOpen:
		stateValue = 2
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue)
}
