package resilience

import (
	"sync"

	"dispatch/internal/logger"
	"dispatch/pkg/circuitbreaker"
	apperrors "dispatch/pkg/errors"
)

// GuardSet owns one Guard per handler id, created lazily on first dispatch.
type GuardSet struct {
	mu     sync.Mutex
	guards map[string]*Guard
	policy Policy
	log    logger.Logger
}

func NewGuardSet(policy Policy, log logger.Logger) *GuardSet {
	if log == nil {
		log = logger.NopLogger()
	}
	return &GuardSet{
		guards: make(map[string]*Guard),
		policy: policy,
		log:    log,
	}
}

func (s *GuardSet) Get(id string) *Guard {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.guards[id]
	if !ok {
		g = NewGuard(id, s.policy, s.log)
		s.guards[id] = g
	}
	return g
}

// Remove drops the guard for id, resetting its breaker history. Called when
// a handler is unregistered so a re-registered handler starts closed.
func (s *GuardSet) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.guards, id)
}

// Snapshot returns the breaker state for id, if a guard exists.
func (s *GuardSet) Snapshot(id string) (circuitbreaker.Snapshot, error) {
	s.mu.Lock()
	g, ok := s.guards[id]
	s.mu.Unlock()

	if !ok {
		return circuitbreaker.Snapshot{}, apperrors.ErrHandlerNotFound.WithDetail("handler_id", id)
	}
	return g.Snapshot(), nil
}
