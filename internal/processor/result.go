package processor

import (
	"context"
	"time"

	"dispatch/internal/event"
	"dispatch/internal/resilience"
)

// HandlerFailure names one handler's terminal failure for an event.
type HandlerFailure struct {
	HandlerID string             `json:"handler_id"`
	Status    resilience.Status  `json:"status"`
	Reason    string             `json:"reason"`
}

// Result is the per-event outcome summary. It is immutable once returned
// and owned by the caller.
type Result struct {
	EventID      string                   `json:"event_id"`
	EventKind    event.Kind               `json:"event_kind"`
	FilteredOut  bool                     `json:"filtered_out"`
	FilteredBy   string                   `json:"filtered_by,omitempty"`
	DispatchedTo []string                 `json:"dispatched_to"`
	Succeeded    []string                 `json:"succeeded"`
	Failed       []HandlerFailure         `json:"failed"`
	Outcomes     []resilience.Invocation  `json:"-"`
	Duration     time.Duration            `json:"duration"`
	ProcessedAt  time.Time                `json:"processed_at"`
}

// Sink receives processing outcomes for persistence. Implementations live in
// internal/stats; sink errors are logged and swallowed, never surfaced to
// the processing path.
type Sink interface {
	Record(ctx context.Context, result Result) error
}
