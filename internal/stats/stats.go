package stats

import (
	"context"
	"time"
)

// Aggregate summarizes a handler's processing outcomes over a time range.
type Aggregate struct {
	HandlerID    string        `json:"handler_id"`
	Dispatched   int64         `json:"dispatched"`
	Succeeded    int64         `json:"succeeded"`
	Failed       int64         `json:"failed"`
	FastFailures int64         `json:"fast_failures"`
	Cancelled    int64         `json:"cancelled"`
	Skipped      int64         `json:"skipped"`
	Attempts     int64         `json:"attempts"`
	AvgDuration  time.Duration `json:"avg_duration"`
}

// Querier reads aggregates back out of a sink.
type Querier interface {
	Query(ctx context.Context, handlerID string, from, to time.Time) (Aggregate, error)
}
