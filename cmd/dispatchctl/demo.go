package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dispatch/internal/event"
	"dispatch/internal/handler"
	"dispatch/internal/logger"
	apperrors "dispatch/pkg/errors"
)

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the engine against synthetic events and print results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Stats.Backend = "memory"

			app, err := NewApp(cfg, logger.NopLogger())
			if err != nil {
				return err
			}
			if err := app.RegisterBuiltins(); err != nil {
				return err
			}
			if err := registerDemoHandlers(app); err != nil {
				return err
			}
			defer app.Shutdown(context.Background())

			events := syntheticEvents()

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			results, err := app.Processor.ProcessMany(ctx, events)
			if err != nil {
				fmt.Printf("engine-level failures: %v\n\n", err)
			}

			fmt.Printf("%-18s %-10s %-30s %-30s %s\n",
				"KIND", "FILTERED", "DISPATCHED", "FAILED", "DURATION")
			for _, r := range results {
				failed := make([]string, 0, len(r.Failed))
				for _, f := range r.Failed {
					failed = append(failed, fmt.Sprintf("%s(%s)", f.HandlerID, f.Status))
				}
				fmt.Printf("%-18s %-10v %-30s %-30s %s\n",
					r.EventKind,
					r.FilteredOut,
					strings.Join(r.DispatchedTo, ","),
					strings.Join(failed, ","),
					r.Duration,
				)
			}
			return nil
		},
	}
}

// registerDemoHandlers adds a deliberately flaky handler so the demo shows
// retries and failure isolation alongside the built-in loggers.
func registerDemoHandlers(app *App) error {
	return app.Registry.Register(
		handler.Descriptor{
			ID:             "flaky-responder",
			SupportedKinds: handler.NewKindSet(event.KindMessage),
			Enabled:        true,
			Reusable:       true,
		},
		func() (handler.Handler, error) {
			return handler.HandlerFunc(func(_ context.Context, ev event.Event) error {
				if strings.Contains(ev.Message().Content, "fail") {
					return apperrors.ErrProcessing.
						WithMessage("content rejected").
						AsFatal()
				}
				return nil
			}), nil
		},
	)
}

func syntheticEvents() []event.Event {
	scope := "demo-org"
	return []event.Event{
		event.NewMessage(scope, event.MessagePayload{
			ID: "m1", SenderID: "u1", Content: "hello there",
		}),
		event.NewMessage(scope, event.MessagePayload{
			ID: "m2", SenderID: "u2", Content: "please fail",
		}),
		event.NewMessageUpdated(scope, event.MessageUpdatePayload{
			ID: "m1", NewContent: "hello again",
		}),
		event.NewMessageDeleted(scope, "m2"),
		event.NewPresence(scope, event.PresencePayload{UserID: "u1", Status: "online"}),
		event.NewTyping(scope, event.TypingPayload{UserID: "u2", TargetRef: "c1"}),
		event.NewChannel(scope, event.ChannelPayload{Op: "create", ChannelID: "c1", Name: "general"}),
		event.NewSubscription(scope, event.SubscriptionPayload{Op: "join", ChannelID: "c1", UserID: "u2"}),
	}
}
