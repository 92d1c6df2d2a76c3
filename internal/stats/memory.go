package stats

import (
	"context"
	"sync"
	"time"

	"dispatch/internal/processor"
	"dispatch/internal/resilience"
)

type record struct {
	at         time.Time
	invocation resilience.Invocation
}

// MemorySink is the in-process sink used by tests and the demo command. It
// keeps a bounded ring of recent results for inspection plus per-handler
// invocation records for Query.
type MemorySink struct {
	mu      sync.Mutex
	cap     int
	recent  []processor.Result
	records map[string][]record
}

func NewMemorySink(capacity int) *MemorySink {
	if capacity < 1 {
		capacity = 1024
	}
	return &MemorySink{
		cap:     capacity,
		records: make(map[string][]record),
	}
}

func (s *MemorySink) Record(_ context.Context, result processor.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent = append(s.recent, result)
	if len(s.recent) > s.cap {
		s.recent = s.recent[len(s.recent)-s.cap:]
	}

	for _, inv := range result.Outcomes {
		s.records[inv.HandlerID] = append(s.records[inv.HandlerID], record{
			at:         result.ProcessedAt,
			invocation: inv,
		})
	}
	return nil
}

func (s *MemorySink) Query(_ context.Context, handlerID string, from, to time.Time) (Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agg := Aggregate{HandlerID: handlerID}
	var totalDuration time.Duration

	for _, r := range s.records[handlerID] {
		if r.at.Before(from) || r.at.After(to) {
			continue
		}
		agg.Dispatched++
		agg.Attempts += int64(r.invocation.Attempts)
		totalDuration += r.invocation.Duration

		switch r.invocation.Status {
		case resilience.StatusSuccess:
			agg.Succeeded++
		case resilience.StatusFastFailure:
			agg.FastFailures++
		case resilience.StatusCancelled:
			agg.Cancelled++
		case resilience.StatusSkipped:
			agg.Skipped++
		default:
			agg.Failed++
		}
	}

	if agg.Dispatched > 0 {
		agg.AvgDuration = totalDuration / time.Duration(agg.Dispatched)
	}
	return agg, nil
}

// Recent returns a copy of the retained result ring, oldest first.
func (s *MemorySink) Recent() []processor.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]processor.Result, len(s.recent))
	copy(out, s.recent)
	return out
}
