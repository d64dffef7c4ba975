package destinations

import (
	"fmt"
	"sync"

	"github.com/cavendo/go-dispatch/core"
)

// Registry resolves destinations by kind. Registration happens at wiring
// time, resolution at dispatch time, so the lock is cheap read traffic.
type Registry struct {
	mu           sync.RWMutex
	destinations map[core.DestinationKind]core.Destination
}

func NewRegistry() *Registry {
	return &Registry{
		destinations: map[core.DestinationKind]core.Destination{},
	}
}

func (r *Registry) Register(destination core.Destination) error {
	if destination == nil {
		return fmt.Errorf("destinations: destination is required")
	}
	kind := destination.Kind()
	if !kind.Valid() {
		return fmt.Errorf("destinations: unknown destination kind %q", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.destinations[kind]; exists {
		return fmt.Errorf("destinations: destination %q already registered", kind)
	}
	r.destinations[kind] = destination
	return nil
}

func (r *Registry) Resolve(kind core.DestinationKind) (core.Destination, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	destination, ok := r.destinations[kind]
	if !ok {
		return nil, fmt.Errorf("destinations: destination %q is not registered", kind)
	}
	return destination, nil
}

var _ core.DestinationRegistry = (*Registry)(nil)
