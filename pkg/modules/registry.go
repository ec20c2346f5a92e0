package modules

import (
	"sort"
	"sync"
)

// registry maps normalized identities to module records. It is shared by
// prefetch goroutines, so all access is locked.
type registry struct {
	modules map[string]Module
	order   []string
	mutex   sync.RWMutex
	stats   RegistryStats
}

// newRegistry creates an empty module registry.
func newRegistry() *registry {
	return &registry{modules: make(map[string]Module)}
}

// Get retrieves a module record by identity.
func (r *registry) Get(identity string) Module {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	m := r.modules[identity]
	if m != nil {
		r.stats.CacheHits++
	} else {
		r.stats.CacheMisses++
	}
	return m
}

// Set stores a module record unless one is already registered under the
// same identity, and returns the record that ends up registered.
func (r *registry) Set(identity string, m Module) Module {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if existing := r.modules[identity]; existing != nil {
		return existing
	}
	r.modules[identity] = m
	r.order = append(r.order, identity)
	r.stats.TotalModules++
	return m
}

// Remove removes a module from the registry. It reports whether one was
// registered.
func (r *registry) Remove(identity string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.modules[identity]; !ok {
		return false
	}
	delete(r.modules, identity)
	for i, id := range r.order {
		if id == identity {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.stats.TotalModules--
	return true
}

// List returns the registered identities in registration order.
func (r *registry) List() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// GetStats returns current registry statistics.
func (r *registry) GetStats() RegistryStats {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.stats
}

// GetByStatus returns the identities of modules in status, sorted.
func (r *registry) GetByStatus(status Status) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var ids []string
	for id, m := range r.modules {
		if m.Status() == status {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
