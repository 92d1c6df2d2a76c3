package handler

import (
	"context"

	"dispatch/internal/event"
	apperrors "dispatch/pkg/errors"
)

// MessageHandler splits the message event family into its sub-events.
type MessageHandler interface {
	OnMessage(ctx context.Context, ev event.Event, p event.MessagePayload) error
	OnMessageUpdated(ctx context.Context, ev event.Event, p event.MessageUpdatePayload) error
	OnMessageDeleted(ctx context.Context, ev event.Event, messageID string) error
}

// Messages adapts a MessageHandler to the base capability. Events outside
// the message family are rejected as non-retryable validation failures,
// which only happens when the descriptor subscribes too broadly.
func Messages(m MessageHandler) Handler {
	return HandlerFunc(func(ctx context.Context, ev event.Event) error {
		switch ev.Kind {
		case event.KindMessage:
			return m.OnMessage(ctx, ev, ev.Message())
		case event.KindMessageUpdated:
			return m.OnMessageUpdated(ctx, ev, ev.MessageUpdate())
		case event.KindMessageDeleted:
			return m.OnMessageDeleted(ctx, ev, ev.Message().ID)
		default:
			return apperrors.ErrValidation.
				WithMessage("message handler received %q event", ev.Kind)
		}
	})
}

// MessageKinds is the subscription set matching the Messages adapter.
func MessageKinds() KindSet {
	return NewKindSet(event.KindMessage, event.KindMessageUpdated, event.KindMessageDeleted)
}

// UserActivityHandler covers presence and typing signals.
type UserActivityHandler interface {
	OnPresence(ctx context.Context, ev event.Event, p event.PresencePayload) error
	OnTyping(ctx context.Context, ev event.Event, p event.TypingPayload) error
}

func UserActivity(u UserActivityHandler) Handler {
	return HandlerFunc(func(ctx context.Context, ev event.Event) error {
		switch ev.Kind {
		case event.KindPresence:
			return u.OnPresence(ctx, ev, ev.Presence())
		case event.KindTyping:
			return u.OnTyping(ctx, ev, ev.Typing())
		default:
			return apperrors.ErrValidation.
				WithMessage("user activity handler received %q event", ev.Kind)
		}
	})
}

func UserActivityKinds() KindSet {
	return NewKindSet(event.KindPresence, event.KindTyping)
}

// ChannelHandler covers channel lifecycle and subscription changes.
type ChannelHandler interface {
	OnChannel(ctx context.Context, ev event.Event, p event.ChannelPayload) error
	OnSubscription(ctx context.Context, ev event.Event, p event.SubscriptionPayload) error
}

func Channels(c ChannelHandler) Handler {
	return HandlerFunc(func(ctx context.Context, ev event.Event) error {
		switch ev.Kind {
		case event.KindChannel:
			return c.OnChannel(ctx, ev, ev.Channel())
		case event.KindSubscription:
			return c.OnSubscription(ctx, ev, ev.Subscription())
		default:
			return apperrors.ErrValidation.
				WithMessage("channel handler received %q event", ev.Kind)
		}
	})
}

func ChannelKinds() KindSet {
	return NewKindSet(event.KindChannel, event.KindSubscription)
}
