package crawler

import "sync"

// Registry is the set of normalized URLs reserved during one traversal.
// It only grows. TryReserve is the single point that decides whether a URL
// gets visited, so the at-most-once guarantee holds even if several
// goroutines share one registry.
type Registry struct {
	mu    sync.Mutex
	keys  map[string]struct{}
	order []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		keys:  make(map[string]struct{}),
		order: make([]string, 0),
	}
}

// TryReserve inserts key and reports whether it was absent.
// A second call with the same key returns false.
func (r *Registry) TryReserve(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.keys[key]; ok {
		return false
	}
	r.keys[key] = struct{}{}
	r.order = append(r.order, key)
	return true
}

// Contains reports whether key has been reserved.
func (r *Registry) Contains(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.keys[key]
	return ok
}

// Len returns the number of reserved keys.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

// Keys returns the reserved keys in reservation order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
