package filter

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"dispatch/internal/event"
)

type funcPredicate struct {
	name string
	fn   func(ctx context.Context, ev event.Event) (bool, error)
}

func (p *funcPredicate) Name() string { return p.name }

func (p *funcPredicate) Evaluate(ctx context.Context, ev event.Event) (bool, error) {
	return p.fn(ctx, ev)
}

// Func wraps a user-supplied predicate function.
func Func(name string, fn func(ctx context.Context, ev event.Event) (bool, error)) Predicate {
	return &funcPredicate{name: name, fn: fn}
}

// MaxEventAge rejects events older than maxAge at evaluation time.
func MaxEventAge(maxAge time.Duration) Predicate {
	return Func("max_event_age", func(_ context.Context, ev event.Event) (bool, error) {
		return ev.Age(time.Now()) <= maxAge, nil
	})
}

// ScopeAllow permits only events whose origin scope is listed.
func ScopeAllow(scopes []string) Predicate {
	allowed := toSet(scopes)
	return Func("scope_allow", func(_ context.Context, ev event.Event) (bool, error) {
		_, ok := allowed[ev.ScopeID]
		return ok, nil
	})
}

// ScopeDeny rejects events whose origin scope is listed.
func ScopeDeny(scopes []string) Predicate {
	denied := toSet(scopes)
	return Func("scope_deny", func(_ context.Context, ev event.Event) (bool, error) {
		_, ok := denied[ev.ScopeID]
		return !ok, nil
	})
}

// RateLimit rejects events beyond rps with the given burst. State is the
// limiter's own token bucket; rejected events are dropped, not queued.
func RateLimit(rps float64, burst int) Predicate {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return Func("rate_limit", func(_ context.Context, ev event.Event) (bool, error) {
		return limiter.Allow(), nil
	})
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
