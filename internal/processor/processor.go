package processor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"dispatch/internal/config"
	"dispatch/internal/event"
	"dispatch/internal/filter"
	"dispatch/internal/handler"
	"dispatch/internal/logger"
	"dispatch/internal/registry"
	"dispatch/internal/resilience"
	apperrors "dispatch/pkg/errors"
	"dispatch/pkg/metrics"
)

const sinkRecordTimeout = 5 * time.Second

// Processor orchestrates filtering, handler resolution, and guarded
// dispatch for incoming events. One semaphore bounds concurrently executing
// handler invocations across all in-flight events.
type Processor struct {
	cfg      config.ProcessorConfig
	registry *registry.Registry
	chain    *filter.Chain
	guards   *resilience.GuardSet
	sink     Sink
	sem      *semaphore.Weighted
	log      logger.Logger
}

func New(cfg config.ProcessorConfig, reg *registry.Registry, chain *filter.Chain, sink Sink, log logger.Logger) *Processor {
	if cfg.MaxConcurrentHandlers < 1 {
		cfg.MaxConcurrentHandlers = runtime.NumCPU()
	}
	if log == nil {
		log = logger.NopLogger()
	}
	if chain == nil {
		chain = filter.NewChain(log)
	}
	p := &Processor{
		cfg:      cfg,
		registry: reg,
		chain:    chain,
		guards: resilience.NewGuardSet(resilience.Policy{
			MaxRetries:       cfg.MaxRetries,
			RetryBaseDelay:   cfg.RetryBaseDelay,
			RetryMaxDelay:    cfg.RetryMaxDelay,
			AttemptTimeout:   cfg.HandlerTimeout,
			FailureThreshold: cfg.CircuitFailureThreshold,
			Cooldown:         cfg.CircuitCooldown,
		}, log),
		sink: sink,
		sem:  semaphore.NewWeighted(int64(cfg.MaxConcurrentHandlers)),
		log:  log,
	}

	// Resilience state lives and dies with the descriptor: unregistering a
	// handler drops its guard, so a re-registered id starts with a closed
	// breaker.
	if reg != nil {
		reg.OnRemove(p.guards.Remove)
	}

	return p
}

// Guards exposes per-handler resilience state for operational tooling.
func (p *Processor) Guards() *resilience.GuardSet {
	return p.guards
}

// Process runs one event through the engine. The returned error is reserved
// for engine-level failures (malformed event, misconfigured filter
// predicate); per-handler failures land in the result's failed partition.
func (p *Processor) Process(ctx context.Context, ev event.Event) (Result, error) {
	start := time.Now()
	result := Result{
		EventID:     ev.ID,
		EventKind:   ev.Kind,
		ProcessedAt: start,
	}

	if err := event.Validate(ev); err != nil {
		return result, err
	}

	passed, rejectedBy, err := p.chain.Evaluate(ctx, ev)
	if err != nil {
		return result, apperrors.ErrProcessing.
			WithMessage("filter chain failed").
			WithCause(err)
	}
	if !passed {
		result.FilteredOut = true
		result.FilteredBy = rejectedBy
		result.Duration = time.Since(start)
		p.finish(ctx, ev, result, "filtered")
		return result, nil
	}

	candidates := p.registry.Resolve(ev.Kind)
	result.Outcomes = p.dispatch(ctx, ev, candidates)

	for _, inv := range result.Outcomes {
		result.DispatchedTo = append(result.DispatchedTo, inv.HandlerID)
		if inv.Succeeded() {
			result.Succeeded = append(result.Succeeded, inv.HandlerID)
			continue
		}
		reason := ""
		if inv.Err != nil {
			reason = inv.Err.Error()
		}
		result.Failed = append(result.Failed, HandlerFailure{
			HandlerID: inv.HandlerID,
			Status:    inv.Status,
			Reason:    reason,
		})
	}

	result.Duration = time.Since(start)

	status := "success"
	if len(result.Failed) > 0 {
		status = "partial_failure"
		if len(result.Succeeded) == 0 {
			status = "failure"
		}
	}
	p.finish(ctx, ev, result, status)
	return result, nil
}

// dispatch invokes every candidate under the concurrency bound and returns
// one invocation record per candidate, in resolution order. A handler's
// failure never aborts dispatch to the others.
func (p *Processor) dispatch(ctx context.Context, ev event.Event, candidates []handler.Descriptor) []resilience.Invocation {
	if len(candidates) == 0 {
		return nil
	}

	outcomes := make([]resilience.Invocation, len(candidates))

	var g errgroup.Group
	for i, desc := range candidates {
		i, desc := i, desc
		g.Go(func() error {
			outcomes[i] = p.invokeOne(ctx, ev, desc.ID)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (p *Processor) invokeOne(ctx context.Context, ev event.Event, handlerID string) resilience.Invocation {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return resilience.Invocation{
			HandlerID: handlerID,
			Status:    resilience.StatusCancelled,
			Err:       apperrors.ErrCancelled.WithCause(err),
		}
	}
	defer p.sem.Release(1)

	instance, err := p.registry.GetInstance(handlerID)
	if err != nil {
		// Registry failures abort this event/handler pair only.
		return resilience.Invocation{
			HandlerID: handlerID,
			Status:    resilience.StatusFailure,
			Err:       err,
		}
	}

	return p.guards.Get(handlerID).Invoke(ctx, instance, ev)
}

// ProcessMany processes each event independently and returns one result per
// input, in input order. Engine-level failures of individual events are
// joined into the returned error; the remaining events still process.
func (p *Processor) ProcessMany(ctx context.Context, events []event.Event) ([]Result, error) {
	results := make([]Result, len(events))
	errs := make([]error, len(events))

	var g errgroup.Group
	for i, ev := range events {
		i, ev := i, ev
		g.Go(func() error {
			var err error
			results[i], err = p.Process(ctx, ev)
			if err != nil {
				errs[i] = fmt.Errorf("event %s: %w", ev.ID, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// finish emits metrics and hands the result to the statistics sink without
// letting sink unavailability block or fail processing.
func (p *Processor) finish(ctx context.Context, ev event.Event, result Result, status string) {
	metrics.EventsProcessedTotal.WithLabelValues(ev.Kind.String(), status).Inc()
	metrics.ObserveProcessingDuration(ev.Kind.String(), status, result.Duration)

	if p.sink == nil {
		return
	}

	go func() {
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkRecordTimeout)
		defer cancel()
		if err := p.sink.Record(recordCtx, result); err != nil {
			metrics.StatsSinkErrorsTotal.Inc()
			p.log.Warnw("stats sink record failed",
				"event_id", result.EventID,
				"error", err,
			)
		}
	}()
}
