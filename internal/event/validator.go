package event

import (
	apperrors "dispatch/pkg/errors"
)

var requiredFields = map[Kind][]string{
	KindMessage:        {"id", "sender_id", "content"},
	KindMessageUpdated: {"id", "new_content"},
	KindMessageDeleted: {"id"},
	KindPresence:       {"user_id", "status"},
	KindTyping:         {"user_id", "target_ref"},
	KindChannel:        {"op", "channel_id"},
	KindSubscription:   {"op", "channel_id", "user_id"},
}

// Validate checks structural integrity. Unknown kinds pass with only the
// envelope checks so they can still reach wildcard handlers; the wildcard
// itself is never a legal event kind.
func Validate(e Event) error {
	if e.Kind == "" {
		return apperrors.ErrValidation.WithMessage("event kind is empty")
	}
	if e.Kind == KindWildcard {
		return apperrors.ErrValidation.WithMessage("wildcard is not a valid event kind")
	}
	if e.OccurredAt.IsZero() {
		return apperrors.ErrValidation.WithMessage("event occurred_at is zero").
			WithDetail("event_id", e.ID)
	}

	fields, known := requiredFields[e.Kind]
	if !known {
		return nil
	}

	for _, field := range fields {
		if e.str(field) == "" {
			return apperrors.ErrValidation.
				WithMessage("event payload missing field %q", field).
				WithDetail("event_id", e.ID).
				WithDetail("kind", e.Kind.String())
		}
	}
	return nil
}
