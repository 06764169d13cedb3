package permission

import (
	"errors"
	"sync"
)

// Registry records the permission keys the client knows about, in registration
// order. The registered keys form the skeleton restored by a full reset.
type Registry struct {
	mu     sync.RWMutex
	keys   []string
	index  map[string]int
	frozen bool
}

// NewRegistry creates an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// DefaultRegistry returns a frozen registry holding the reset skeleton keys:
// federation, settings, library and upload.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, key := range []string{KeyFederation, KeySettings, KeyLibrary, KeyUpload} {
		_, _ = r.Register(key)
	}
	r.Freeze()
	return r
}

// Register appends key to the registry and returns its position.
// Must be called before [Registry.Freeze].
func (r *Registry) Register(key string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}
	if key == "" {
		return -1, errors.New("permission key cannot be empty")
	}
	if _, exists := r.index[key]; exists {
		return -1, errors.New("permission already registered")
	}

	pos := len(r.keys)
	r.keys = append(r.keys, key)
	r.index[key] = pos
	return pos, nil
}

// Known reports whether key was registered.
func (r *Registry) Known(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[key]
	return ok
}

// Keys returns the registered keys in registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Skeleton returns a new [Set] with every registered key set to false.
func (r *Registry) Skeleton() Set {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(Set, len(r.keys))
	for _, k := range r.keys {
		out[k] = false
	}
	return out
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}
