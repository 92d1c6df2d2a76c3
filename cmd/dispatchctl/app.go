package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"dispatch/internal/config"
	"dispatch/internal/event"
	"dispatch/internal/filter"
	"dispatch/internal/handler"
	"dispatch/internal/logger"
	"dispatch/internal/processor"
	"dispatch/internal/registry"
	"dispatch/internal/stats"
	"dispatch/pkg/metrics"
)

// App wires the engine: registry, filter chain, sink, processor. Handlers
// are registered explicitly at startup; nothing registers itself as a side
// effect of being defined.
type App struct {
	Config    *config.Config
	Logger    logger.Logger
	Registry  *registry.Registry
	Chain     *filter.Chain
	Sink      processor.Sink
	Querier   stats.Querier
	Processor *processor.Processor
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   log,
		Registry: registry.New(cfg.Registry.InstanceCacheSize, log),
	}

	a.Chain = buildChain(cfg.Filter, log)

	switch cfg.Stats.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Stats.Redis.Host, cfg.Stats.Redis.Port),
			Password: cfg.Stats.Redis.Password,
			DB:       cfg.Stats.Redis.DB,
		})
		sink := stats.NewRedisSink(client, cfg.Stats.TTL)
		a.Sink = sink
		a.Querier = sink
	default:
		sink := stats.NewMemorySink(1024)
		a.Sink = sink
		a.Querier = sink
	}

	a.Processor = processor.New(cfg.Processor, a.Registry, a.Chain, a.Sink, log)
	return a, nil
}

func buildChain(cfg config.FilterConfig, log logger.Logger) *filter.Chain {
	chain := filter.NewChain(log)
	if cfg.MaxEventAge > 0 {
		chain.Append(filter.MaxEventAge(cfg.MaxEventAge))
	}
	if len(cfg.AllowedScopes) > 0 {
		chain.Append(filter.ScopeAllow(cfg.AllowedScopes))
	}
	if len(cfg.DeniedScopes) > 0 {
		chain.Append(filter.ScopeDeny(cfg.DeniedScopes))
	}
	return chain
}

// RegisterBuiltins enumerates the handler constructors shipped with this
// binary and registers each one. Hosts embedding the engine do the same
// from their plugin loader.
func (a *App) RegisterBuiltins() error {
	builtins := []struct {
		desc    handler.Descriptor
		factory handler.Factory
	}{
		{
			desc: handler.Descriptor{
				ID:             "message-logger",
				SupportedKinds: handler.MessageKinds(),
				Enabled:        true,
				Reusable:       true,
			},
			factory: func() (handler.Handler, error) {
				return newMessageLogger(a.Logger), nil
			},
		},
		{
			desc: handler.Descriptor{
				ID:             "activity-logger",
				SupportedKinds: handler.UserActivityKinds(),
				Enabled:        true,
				Reusable:       true,
			},
			factory: func() (handler.Handler, error) {
				return newActivityLogger(a.Logger), nil
			},
		},
		{
			desc: handler.Descriptor{
				ID:             "audit-trail",
				SupportedKinds: handler.WildcardKinds(),
				Enabled:        true,
				Reusable:       true,
			},
			factory: func() (handler.Handler, error) {
				return newAuditTrail(a.Logger), nil
			},
		},
	}

	for _, b := range builtins {
		if err := a.Registry.Register(b.desc, b.factory); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) RegisterMetrics() {
	metrics.RegisterProcessorMetrics()
	metrics.RegisterResilienceMetrics()
	metrics.RegisterRegistryMetrics()
	metrics.RegisterIngestMetrics()
}

// Shutdown drains the registry's instance cache.
func (a *App) Shutdown(_ context.Context) {
	a.Registry.Close()
}

type messageLogger struct {
	log logger.Logger
}

func newMessageLogger(log logger.Logger) handler.Handler {
	return handler.Messages(&messageLogger{log: log})
}

func (h *messageLogger) OnMessage(_ context.Context, ev event.Event, p event.MessagePayload) error {
	h.log.Infow("message received",
		"message_id", p.ID,
		"sender_id", p.SenderID,
		"scope_id", ev.ScopeID,
	)
	return nil
}

func (h *messageLogger) OnMessageUpdated(_ context.Context, ev event.Event, p event.MessageUpdatePayload) error {
	h.log.Infow("message updated", "message_id", p.ID, "scope_id", ev.ScopeID)
	return nil
}

func (h *messageLogger) OnMessageDeleted(_ context.Context, ev event.Event, messageID string) error {
	h.log.Infow("message deleted", "message_id", messageID, "scope_id", ev.ScopeID)
	return nil
}

type activityLogger struct {
	log logger.Logger
}

func newActivityLogger(log logger.Logger) handler.Handler {
	return handler.UserActivity(&activityLogger{log: log})
}

func (h *activityLogger) OnPresence(_ context.Context, ev event.Event, p event.PresencePayload) error {
	h.log.Infow("presence changed", "user_id", p.UserID, "status", p.Status)
	return nil
}

func (h *activityLogger) OnTyping(_ context.Context, ev event.Event, p event.TypingPayload) error {
	h.log.Debugw("typing", "user_id", p.UserID, "target_ref", p.TargetRef)
	return nil
}

func newAuditTrail(log logger.Logger) handler.Handler {
	return handler.HandlerFunc(func(_ context.Context, ev event.Event) error {
		log.Infow("audit",
			"event_id", ev.ID,
			"kind", ev.Kind,
			"scope_id", ev.ScopeID,
			"occurred_at", ev.OccurredAt,
		)
		return nil
	})
}
