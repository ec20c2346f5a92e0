package modules

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dlclark/regexp2"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"escore/pkg/errors"
	"escore/pkg/vm"
)

// Loader maps specifiers to module records. It normalizes specifiers
// through a resolver chain, memoizes one record per identity, compiles
// sources with its Compiler and links graphs with its Linker. It is the
// Host its linker resolves imports through.
type Loader struct {
	config    *LoaderConfig
	resolvers []ModuleResolver
	compiler  Compiler
	aliases   []alias
	registry  *registry
	graph     *DependencyGraph
	linker    *Linker
	logger    logrus.FieldLogger

	inflight singleflight.Group
	owners   map[string]ModuleResolver // identity → resolver that normalized it
	mutex    sync.RWMutex

	compiled   int64
	prefetched int64
}

type alias struct {
	pattern     *regexp2.Regexp
	replacement string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithCompiler sets the compiler used for module sources.
func WithCompiler(c Compiler) LoaderOption {
	return func(l *Loader) { l.compiler = c }
}

// WithResolvers adds resolvers to the chain.
func WithResolvers(resolvers ...ModuleResolver) LoaderOption {
	return func(l *Loader) { l.resolvers = append(l.resolvers, resolvers...) }
}

// WithLinkObserver reports the linker's closed components to o.
func WithLinkObserver(o LinkObserver) LoaderOption {
	return func(l *Loader) { l.linker.observer = o }
}

// WithLogger sets the logger of the loader and its linker.
func WithLogger(logger logrus.FieldLogger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
		l.linker.logger = logger
	}
}

// NewLoader creates a loader whose modules belong to realm. A nil config
// means DefaultLoaderConfig.
func NewLoader(realm *vm.Realm, config *LoaderConfig, opts ...LoaderOption) (*Loader, error) {
	if config == nil {
		config = DefaultLoaderConfig()
	}
	l := &Loader{
		config:   config,
		registry: newRegistry(),
		graph:    NewDependencyGraph(),
		owners:   make(map[string]ModuleResolver),
	}
	l.linker = NewLinker(realm, l)
	l.logger = l.linker.logger
	for _, opt := range opts {
		opt(l)
	}
	l.sortResolvers()

	for _, rule := range config.Aliases {
		re, err := regexp2.Compile(rule.Pattern, regexp2.ECMAScript)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "invalid alias pattern %q", rule.Pattern)
		}
		l.aliases = append(l.aliases, alias{pattern: re, replacement: rule.Replacement})
	}
	return l, nil
}

// Sort resolvers by priority (lower = higher priority)
func (l *Loader) sortResolvers() {
	sort.SliceStable(l.resolvers, func(i, j int) bool {
		return l.resolvers[i].Priority() < l.resolvers[j].Priority()
	})
}

// AddResolver adds a resolver to the chain.
func (l *Loader) AddResolver(r ModuleResolver) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.resolvers = append(l.resolvers, r)
	l.sortResolvers()
}

// Linker returns the loader's linker.
func (l *Loader) Linker() *Linker { return l.linker }

// Graph returns the import edges discovered so far.
func (l *Loader) Graph() *DependencyGraph { return l.graph }

// Modules returns the identities of every loaded module in load order.
func (l *Loader) Modules() []string { return l.registry.List() }

// ModulesByStatus returns the identities of loaded modules in status,
// sorted.
func (l *Loader) ModulesByStatus(status Status) []string {
	return l.registry.GetByStatus(status)
}

// Evict drops an uninstantiated record so the next Resolve loads the
// module again. Records that took part in a successful link stay.
func (l *Loader) Evict(identity string) bool {
	m := l.registry.Get(identity)
	if m == nil || m.Status() != Uninstantiated {
		return false
	}
	l.logger.WithField("module", identity).Debug("module evicted")
	return l.registry.Remove(identity)
}

// GetStats returns loader statistics.
func (l *Loader) GetStats() LoaderStats {
	return LoaderStats{
		Registry:   l.registry.GetStats(),
		Compiled:   int(atomic.LoadInt64(&l.compiled)),
		Prefetched: int(atomic.LoadInt64(&l.prefetched)),
	}
}

// NormalizeName maps specifier, requested by the module with identity
// referrer ("" at top level), to a module identity. The first matching
// alias rule rewrites the specifier; then the first resolver that accepts
// it decides the identity.
func (l *Loader) NormalizeName(specifier, referrer string) (string, error) {
	rewritten, err := l.rewrite(specifier)
	if err != nil {
		return "", errors.NewResolutionError(specifier, referrer, err)
	}

	l.mutex.RLock()
	resolvers := l.resolvers
	l.mutex.RUnlock()

	var lastErr error
	for _, r := range resolvers {
		if !r.CanResolve(rewritten) {
			continue
		}
		identity, err := r.Normalize(rewritten, referrer)
		if err != nil {
			lastErr = err
			continue
		}
		l.mutex.Lock()
		if _, ok := l.owners[identity]; !ok {
			l.owners[identity] = r
		}
		l.mutex.Unlock()
		return identity, nil
	}
	if lastErr == nil {
		lastErr = pkgerrors.New("no resolver accepts the specifier")
	}
	return "", errors.NewResolutionError(specifier, referrer, lastErr)
}

func (l *Loader) rewrite(specifier string) (string, error) {
	for _, a := range l.aliases {
		ok, err := a.pattern.MatchString(specifier)
		if err != nil {
			return "", err
		}
		if ok {
			return a.pattern.Replace(specifier, a.replacement, -1, -1)
		}
	}
	return specifier, nil
}

// Resolve returns the module record for identity, loading and compiling it
// on first use. Concurrent calls for the same identity share one load.
func (l *Loader) Resolve(identity string) (Module, error) {
	if m := l.registry.Get(identity); m != nil {
		return m, nil
	}
	v, err, _ := l.inflight.Do(identity, func() (interface{}, error) {
		if m := l.registry.Get(identity); m != nil {
			return m, nil
		}
		m, err := l.load(identity)
		if err != nil {
			return nil, err
		}
		l.graph.AddModule(identity)
		return l.registry.Set(identity, m), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Module), nil
}

func (l *Loader) load(identity string) (Module, error) {
	l.mutex.RLock()
	owner := l.owners[identity]
	resolvers := l.resolvers
	l.mutex.RUnlock()

	var resolved *ResolvedModule
	var err error
	if owner != nil {
		resolved, err = owner.Load(identity)
	} else {
		err = pkgerrors.Errorf("module not found: %s", identity)
		for _, r := range resolvers {
			if resolved, err = r.Load(identity); err == nil {
				break
			}
		}
	}
	if err != nil {
		return nil, errors.NewResolutionError(identity, "", err)
	}
	l.logger.WithField("module", identity).WithField("resolver", resolved.Resolver).Debug("module loaded")

	if resolved.Module != nil {
		return resolved.Module, nil
	}
	if l.compiler == nil {
		return nil, pkgerrors.Errorf("no compiler configured for module %s", identity)
	}
	src, err := l.compiler.CompileModule(resolved.Source)
	if err != nil {
		return nil, err
	}
	src.Identity = identity
	if src.File == nil {
		src.File = resolved.Source
	}
	m, err := NewSourceTextModule(src, l.linker)
	if err != nil {
		return nil, err
	}
	atomic.AddInt64(&l.compiled, 1)
	return m, nil
}

// ResolveImportedModule implements Host.
func (l *Loader) ResolveImportedModule(referrer Module, specifier string) (Module, error) {
	identity, err := l.NormalizeName(specifier, referrer.Identity())
	if err != nil {
		return nil, err
	}
	m, err := l.Resolve(identity)
	if err != nil {
		return nil, err
	}
	l.graph.AddDependency(referrer.Identity(), identity)
	return m, nil
}

// Prefetch loads and compiles the static import graphs of specifiers
// concurrently, so that linking finds every module in the registry. At
// most NumWorkers loads run at once.
func (l *Loader) Prefetch(ctx context.Context, specifiers ...string) error {
	workers := l.config.NumWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	sem := semaphore.NewWeighted(int64(workers))
	g, ctx := errgroup.WithContext(ctx)

	var seen sync.Map
	var visit func(identity string, depth int)
	visit = func(identity string, depth int) {
		if _, loaded := seen.LoadOrStore(identity, true); loaded {
			return
		}
		g.Go(func() error {
			if l.config.MaxDepth > 0 && depth > l.config.MaxDepth {
				return pkgerrors.Errorf("import chain deeper than %d at %s", l.config.MaxDepth, identity)
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			m, err := l.Resolve(identity)
			sem.Release(1)
			if err != nil {
				return err
			}
			atomic.AddInt64(&l.prefetched, 1)

			for _, specifier := range m.RequestedModules() {
				dep, err := l.NormalizeName(specifier, identity)
				if err != nil {
					return err
				}
				l.graph.AddDependency(identity, dep)
				visit(dep, depth+1)
			}
			return nil
		})
	}

	for _, specifier := range specifiers {
		identity, err := l.NormalizeName(specifier, "")
		if err != nil {
			return err
		}
		visit(identity, 0)
	}
	return g.Wait()
}

// Import loads the module specifier names, links it and evaluates it.
func (l *Loader) Import(ctx context.Context, specifier string) (Module, error) {
	identity, err := l.NormalizeName(specifier, "")
	if err != nil {
		return nil, err
	}
	if l.config.Prefetch {
		if err := l.Prefetch(ctx, specifier); err != nil {
			return nil, err
		}
	}
	m, err := l.Resolve(identity)
	if err != nil {
		return nil, err
	}
	if err := l.linker.Instantiate(m); err != nil {
		// Rolled back records are reloaded by the next Import.
		for _, id := range l.ModulesByStatus(Uninstantiated) {
			l.Evict(id)
		}
		return nil, err
	}
	if err := l.linker.Evaluate(m); err != nil {
		return m, err
	}
	return m, nil
}
