package handler

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"dispatch/internal/event"
	apperrors "dispatch/pkg/errors"
)

// Composite fans one event out to an explicit list of child handlers and
// folds their results into one outcome. Children run concurrently; the
// composite fails if any child fails, but every child still sees the event.
type Composite struct {
	children []Handler
	names    []string
}

func NewComposite() *Composite {
	return &Composite{}
}

// Add appends a named child. Names only label failure reasons.
func (c *Composite) Add(name string, h Handler) *Composite {
	c.children = append(c.children, h)
	c.names = append(c.names, name)
	return c
}

func (c *Composite) Len() int {
	return len(c.children)
}

func (c *Composite) Handle(ctx context.Context, ev event.Event) error {
	if len(c.children) == 0 {
		return nil
	}

	var (
		mu       sync.Mutex
		failures []string
		fatal    bool
	)

	// Plain group: one child's failure must not cancel its siblings, and
	// failures are folded into the aggregate outcome rather than returned.
	var g errgroup.Group

	for i, child := range c.children {
		name := c.names[i]
		child := child
		g.Go(func() error {
			if err := child.Handle(ctx, ev); err != nil {
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", name, err))
				if !apperrors.IsRetryable(err) {
					fatal = true
				}
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()

	if len(failures) == 0 {
		return nil
	}

	err := apperrors.ErrProcessing.
		WithMessage("%d of %d child handlers failed", len(failures), len(c.children)).
		WithDetail("failures", failures)
	if fatal {
		return err.AsFatal()
	}
	return err
}
