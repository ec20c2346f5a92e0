package modules

import (
	"sort"
	"sync"

	pkgerrors "github.com/pkg/errors"
)

// ModuleProvider builds a host-defined module for identity. It is called at
// most once per loader.
type ModuleProvider func(identity string) (Module, error)

// ProviderResolver serves modules the host declares by exact name, such as
// "std:math". It outranks every source resolver.
type ProviderResolver struct {
	providers map[string]ModuleProvider
	mutex     sync.RWMutex
	priority  int
}

// NewProviderResolver creates an empty provider resolver.
func NewProviderResolver() *ProviderResolver {
	return &ProviderResolver{providers: make(map[string]ModuleProvider), priority: 10}
}

func (r *ProviderResolver) Name() string { return "Provider" }
func (r *ProviderResolver) Priority() int { return r.priority }

// Provide registers p under name, replacing any earlier provider.
func (r *ProviderResolver) Provide(name string, p ModuleProvider) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.providers[name] = p
}

func (r *ProviderResolver) CanResolve(specifier string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.providers[specifier]
	return ok
}

// Normalize is the identity: provided names are already canonical.
func (r *ProviderResolver) Normalize(specifier, _ string) (string, error) {
	if !r.CanResolve(specifier) {
		return "", pkgerrors.Errorf("no module provided as %s", specifier)
	}
	return specifier, nil
}

func (r *ProviderResolver) Load(identity string) (*ResolvedModule, error) {
	r.mutex.RLock()
	p, ok := r.providers[identity]
	r.mutex.RUnlock()
	if !ok {
		return nil, pkgerrors.Errorf("no module provided as %s", identity)
	}
	m, err := p(identity)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to provide module %s", identity)
	}
	return &ResolvedModule{Identity: identity, Module: m, Resolver: r.Name()}, nil
}

// Names returns the provided names, sorted.
func (r *ProviderResolver) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
