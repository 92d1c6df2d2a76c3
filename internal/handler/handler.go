package handler

import (
	"context"

	"dispatch/internal/event"
)

// Handler is the contract every pluggable unit of work implements. Handle
// reports anticipated failures (malformed payload, dependency down) through
// its error return, marked retryable or fatal via pkg/errors; panics are
// reserved for programming errors. Handle must be safe for concurrent calls
// across different events and must honor ctx cancellation.
type Handler interface {
	Handle(ctx context.Context, ev event.Event) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, ev event.Event) error

func (f HandlerFunc) Handle(ctx context.Context, ev event.Event) error {
	return f(ctx, ev)
}

// BeforeHook is an optional lifecycle refinement. Returning false skips
// Handle for that event without counting as a failure.
type BeforeHook interface {
	Before(ctx context.Context, ev event.Event) bool
}

// AfterHook is an optional observational refinement invoked after Handle
// with its result. Errors inside After are logged by the processor and never
// propagated.
type AfterHook interface {
	After(ctx context.Context, ev event.Event, result error)
}

// Descriptor is the registry-facing identity of a handler.
type Descriptor struct {
	ID             string
	SupportedKinds KindSet
	Configuration  map[string]string
	Enabled        bool
	// Reusable marks the handler instance as stateless-safe, allowing the
	// registry to cache and share one instance across invocations.
	Reusable bool
}

// Factory constructs a handler instance for its descriptor.
type Factory func() (Handler, error)

// KindSet is the set of event kinds a handler subscribes to. A set
// containing event.KindWildcard matches every kind, including unknown ones.
type KindSet map[event.Kind]struct{}

func NewKindSet(kinds ...event.Kind) KindSet {
	set := make(KindSet, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return set
}

func WildcardKinds() KindSet {
	return NewKindSet(event.KindWildcard)
}

func (s KindSet) Supports(kind event.Kind) bool {
	if _, ok := s[event.KindWildcard]; ok {
		return true
	}
	_, ok := s[kind]
	return ok
}

func (s KindSet) Wildcard() bool {
	_, ok := s[event.KindWildcard]
	return ok
}

func (s KindSet) Kinds() []event.Kind {
	out := make([]event.Kind, 0, len(s))
	for _, k := range event.Kinds() {
		if _, ok := s[k]; ok {
			out = append(out, k)
		}
	}
	if s.Wildcard() {
		out = append(out, event.KindWildcard)
	}
	return out
}
