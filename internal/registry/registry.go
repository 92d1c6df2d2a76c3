package registry

import (
	"io"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"dispatch/internal/event"
	"dispatch/internal/handler"
	"dispatch/internal/logger"
	apperrors "dispatch/pkg/errors"
	"dispatch/pkg/metrics"
)

type entry struct {
	descriptor handler.Descriptor
	factory    handler.Factory
}

// Registry is the process-wide handler catalog. Registration order is
// preserved so Resolve is deterministic. Reads are safe concurrently with
// registration of unrelated handlers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string

	cache    *lru.Cache[string, handler.Handler]
	log      logger.Logger
	onRemove []func(id string)
}

// New creates an empty registry with a bounded instance cache. cacheSize
// below 1 falls back to the default of 128.
func New(cacheSize int, log logger.Logger) *Registry {
	if cacheSize < 1 {
		cacheSize = 128
	}
	if log == nil {
		log = logger.NopLogger()
	}
	cache, _ := lru.NewWithEvict[string, handler.Handler](cacheSize, func(id string, h handler.Handler) {
		closeInstance(id, h, log)
	})
	return &Registry{
		entries: make(map[string]*entry),
		cache:   cache,
		log:     log,
	}
}

// Register adds a descriptor and its factory. Re-registering an existing id
// fails and leaves the catalog unchanged; unregister first.
func (r *Registry) Register(desc handler.Descriptor, factory handler.Factory) error {
	if desc.ID == "" {
		return apperrors.ErrValidation.WithMessage("handler id is empty")
	}
	if len(desc.SupportedKinds) == 0 {
		return apperrors.ErrValidation.
			WithMessage("handler %q has no supported kinds", desc.ID)
	}
	if factory == nil {
		return apperrors.ErrValidation.
			WithMessage("handler %q has no factory", desc.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[desc.ID]; exists {
		return apperrors.ErrDuplicateHandler.WithDetail("handler_id", desc.ID)
	}

	r.entries[desc.ID] = &entry{descriptor: desc, factory: factory}
	r.order = append(r.order, desc.ID)
	metrics.SetRegisteredHandlers(len(r.entries))

	r.log.Infow("handler registered",
		"handler_id", desc.ID,
		"kinds", desc.SupportedKinds.Kinds(),
		"enabled", desc.Enabled,
	)
	return nil
}

// OnRemove registers fn to run after a handler is unregistered. The
// processor hooks this to drop the handler's resilience state together with
// the descriptor, so a later registration under the same id starts clean.
func (r *Registry) OnRemove(fn func(id string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemove = append(r.onRemove, fn)
}

// Unregister removes a handler and drops any cached instance. Removing an
// unknown id is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()

	if _, exists := r.entries[id]; !exists {
		r.mu.Unlock()
		return
	}

	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.cache.Remove(id)
	metrics.SetRegisteredHandlers(len(r.entries))
	callbacks := r.onRemove
	r.mu.Unlock()

	r.log.Infow("handler unregistered", "handler_id", id)
	for _, fn := range callbacks {
		fn(id)
	}
}

// Resolve returns the enabled descriptors interested in kind, in
// registration order. Unknown kinds match only wildcard subscriptions.
func (r *Registry) Resolve(kind event.Kind) []handler.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []handler.Descriptor
	for _, id := range r.order {
		e := r.entries[id]
		if !e.descriptor.Enabled {
			continue
		}
		if !kind.Known() && !e.descriptor.SupportedKinds.Wildcard() {
			continue
		}
		if e.descriptor.SupportedKinds.Supports(kind) {
			out = append(out, e.descriptor)
		}
	}
	return out
}

// GetInstance returns a handler instance for id. Reusable handlers are
// served from the LRU cache; others are constructed fresh per call.
func (r *Registry) GetInstance(id string) (handler.Handler, error) {
	r.mu.RLock()
	e, exists := r.entries[id]
	r.mu.RUnlock()

	if !exists {
		return nil, apperrors.ErrHandlerNotFound.WithDetail("handler_id", id)
	}

	if !e.descriptor.Reusable {
		return r.construct(e)
	}

	if h, ok := r.cache.Get(id); ok {
		return h, nil
	}

	h, err := r.construct(e)
	if err != nil {
		return nil, err
	}
	r.cache.Add(id, h)
	return h, nil
}

func (r *Registry) construct(e *entry) (handler.Handler, error) {
	h, err := e.factory()
	if err != nil {
		return nil, apperrors.ErrProcessing.
			WithMessage("handler %q construction failed", e.descriptor.ID).
			WithCause(err).
			AsFatal()
	}
	return h, nil
}

// Get returns the descriptor for id.
func (r *Registry) Get(id string) (handler.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[id]
	if !exists {
		return handler.Descriptor{}, apperrors.ErrHandlerNotFound.WithDetail("handler_id", id)
	}
	return e.descriptor, nil
}

// List returns all descriptors in registration order.
func (r *Registry) List() []handler.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]handler.Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].descriptor)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// SetEnabled flips a handler's enabled flag.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[id]
	if !exists {
		return apperrors.ErrHandlerNotFound.WithDetail("handler_id", id)
	}
	e.descriptor.Enabled = enabled
	r.log.Infow("handler toggled", "handler_id", id, "enabled", enabled)
	return nil
}

// Reconfigure replaces a handler's opaque configuration map and drops any
// cached instance so the next invocation sees the new settings.
func (r *Registry) Reconfigure(id string, configuration map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[id]
	if !exists {
		return apperrors.ErrHandlerNotFound.WithDetail("handler_id", id)
	}
	e.descriptor.Configuration = configuration
	r.cache.Remove(id)
	r.log.Infow("handler reconfigured", "handler_id", id)
	return nil
}

// Close drains the instance cache, closing any handler that implements
// io.Closer. The catalog itself stays queryable.
func (r *Registry) Close() {
	r.cache.Purge()
}

func closeInstance(id string, h handler.Handler, log logger.Logger) {
	closer, ok := h.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		log.Warnw("handler close failed", "handler_id", id, "error", err)
	}
}
