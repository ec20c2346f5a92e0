package modules

import (
	"path"
	"sort"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"

	"escore/pkg/source"
)

// MemoryResolver resolves modules from an in-memory store
type MemoryResolver struct {
	name     string                   // Human-readable name
	modules  map[string]*MemoryModule // Map of module path -> module
	mutex    sync.RWMutex             // Protects concurrent access
	priority int                      // Resolution priority

	extensions []string
	indexFiles []string
}

// MemoryModule represents a module stored in memory
type MemoryModule struct {
	Path     string    // Module path
	Content  string    // Module source content
	Created  time.Time // When the module was created
	Modified time.Time // When the module was last modified
}

// NewMemoryResolver creates a new memory-based module resolver
func NewMemoryResolver(name string) *MemoryResolver {
	if name == "" {
		name = "Memory"
	}

	return &MemoryResolver{
		name:       name,
		modules:    make(map[string]*MemoryModule),
		priority:   50, // Higher priority than file system for testing
		extensions: []string{".yaml", ".yml"},
		indexFiles: []string{"index.yaml", "index.yml"},
	}
}

func (r *MemoryResolver) Name() string { return r.name }
func (r *MemoryResolver) Priority() int { return r.priority }

// CanResolve accepts path specifiers and bare names stored verbatim.
func (r *MemoryResolver) CanResolve(specifier string) bool {
	if isPathSpecifier(specifier) {
		return true
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.modules[specifier]
	return ok
}

// Normalize finds the stored path specifier names.
func (r *MemoryResolver) Normalize(specifier, referrer string) (string, error) {
	target, err := targetPath(specifier, referrer, "")
	if err != nil {
		return "", err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if _, ok := r.modules[target]; ok {
		return target, nil
	}
	for _, ext := range r.extensions {
		if _, ok := r.modules[target+ext]; ok {
			return target + ext, nil
		}
	}
	for _, indexFile := range r.indexFiles {
		indexPath := path.Join(target, indexFile)
		if _, ok := r.modules[indexPath]; ok {
			return indexPath, nil
		}
	}
	return "", pkgerrors.Errorf("module not found: %s", target)
}

// Load returns the stored source for identity.
func (r *MemoryResolver) Load(identity string) (*ResolvedModule, error) {
	r.mutex.RLock()
	module, ok := r.modules[identity]
	r.mutex.RUnlock()
	if !ok {
		return nil, pkgerrors.Errorf("module not found: %s", identity)
	}

	src := source.FromIdentity(identity, []byte(module.Content))
	src.Resolver = r.name
	return &ResolvedModule{Identity: identity, Source: src, Resolver: r.name}, nil
}

// AddModule adds a module to the memory store
func (r *MemoryResolver) AddModule(path string, content string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now()
	r.modules[path] = &MemoryModule{
		Path:     path,
		Content:  content,
		Created:  now,
		Modified: now,
	}
}

// UpdateModule updates an existing module's content
func (r *MemoryResolver) UpdateModule(path string, content string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	module, exists := r.modules[path]
	if !exists {
		return pkgerrors.Errorf("module not found: %s", path)
	}

	module.Content = content
	module.Modified = time.Now()
	return nil
}

// RemoveModule removes a module from the memory store
func (r *MemoryResolver) RemoveModule(path string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.modules, path)
}

// ListModules returns all module paths in the store, sorted.
func (r *MemoryResolver) ListModules() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	paths := make([]string, 0, len(r.modules))
	for path := range r.modules {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// GetModule returns a module by path (for testing/debugging)
func (r *MemoryResolver) GetModule(path string) *MemoryModule {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.modules[path]
}

// SetPriority sets the resolver priority
func (r *MemoryResolver) SetPriority(priority int) {
	r.priority = priority
}
