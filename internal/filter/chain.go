package filter

import (
	"context"

	"dispatch/internal/event"
	"dispatch/internal/logger"
	"dispatch/pkg/metrics"
)

// Predicate is a named pre-dispatch check. Evaluate must be cheap,
// synchronous, and free of side effects beyond closed-over state; an error
// means the predicate itself is misconfigured, not that the event failed.
type Predicate interface {
	Name() string
	Evaluate(ctx context.Context, ev event.Event) (bool, error)
}

// Chain evaluates predicates in registration order. The first predicate
// returning false rejects the event and short-circuits the rest; a rejection
// is never retried and never counted as a handler failure.
type Chain struct {
	predicates []Predicate
	log        logger.Logger
}

func NewChain(log logger.Logger) *Chain {
	if log == nil {
		log = logger.NopLogger()
	}
	return &Chain{log: log}
}

func (c *Chain) Append(p Predicate) *Chain {
	c.predicates = append(c.predicates, p)
	return c
}

func (c *Chain) Len() int {
	return len(c.predicates)
}

// Evaluate returns whether the event passes, and the name of the rejecting
// predicate when it does not. A predicate error aborts evaluation and is
// surfaced to the caller as a processor-level failure.
func (c *Chain) Evaluate(ctx context.Context, ev event.Event) (passed bool, rejectedBy string, err error) {
	for _, p := range c.predicates {
		if err := ctx.Err(); err != nil {
			return false, "", err
		}

		ok, err := p.Evaluate(ctx, ev)
		if err != nil {
			return false, "", err
		}
		if !ok {
			metrics.IncFilteredEvent(p.Name())
			c.log.Debugw("event rejected by filter",
				"predicate", p.Name(),
				"event_id", ev.ID,
				"kind", ev.Kind,
			)
			return false, p.Name(), nil
		}
	}
	return true, "", nil
}
