package event

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the event payload. The set of known kinds is closed;
// events carrying an unknown kind are preserved but only routed to wildcard
// handlers.
type Kind string

const (
	KindMessage        Kind = "message"
	KindMessageUpdated Kind = "message_updated"
	KindMessageDeleted Kind = "message_deleted"
	KindPresence       Kind = "presence"
	KindTyping         Kind = "typing"
	KindChannel        Kind = "channel"
	KindSubscription   Kind = "subscription"

	// KindWildcard is only valid in a handler's supported kind set, never on
	// an event.
	KindWildcard Kind = "*"
)

var knownKinds = map[Kind]struct{}{
	KindMessage:        {},
	KindMessageUpdated: {},
	KindMessageDeleted: {},
	KindPresence:       {},
	KindTyping:         {},
	KindChannel:        {},
	KindSubscription:   {},
}

func (k Kind) Known() bool {
	_, ok := knownKinds[k]
	return ok
}

func (k Kind) String() string {
	return string(k)
}

// Kinds returns the closed enumeration of known event kinds.
func Kinds() []Kind {
	return []Kind{
		KindMessage,
		KindMessageUpdated,
		KindMessageDeleted,
		KindPresence,
		KindTyping,
		KindChannel,
		KindSubscription,
	}
}

// Event is a single normalized activity notification. Events are immutable
// once constructed; the payload map must not be mutated by handlers.
type Event struct {
	ID         string                 `json:"id"`
	Kind       Kind                   `json:"kind"`
	ScopeID    string                 `json:"scope_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}

// New constructs an event with a generated id and the current timestamp.
func New(kind Kind, scopeID string, payload map[string]interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		ScopeID:    scopeID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Age returns how long ago the event occurred, never negative.
func (e Event) Age(now time.Time) time.Duration {
	age := now.Sub(e.OccurredAt)
	if age < 0 {
		return 0
	}
	return age
}

func (e Event) str(key string) string {
	if e.Payload == nil {
		return ""
	}
	v, _ := e.Payload[key].(string)
	return v
}
