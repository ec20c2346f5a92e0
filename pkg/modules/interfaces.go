package modules

import (
	"escore/pkg/env"
	"escore/pkg/source"
	"escore/pkg/vm"
)

// Module is a module record. Source text modules take part in the
// linker's graph walk; other kinds (host-defined synthetic modules)
// instantiate and evaluate themselves opaquely.
type Module interface {
	// Identity is the normalized name the loader registered the module under.
	Identity() string
	// Realm is assigned when the module is linked and never changes after.
	Realm() *vm.Realm
	// Environment is nil until instantiation creates it.
	Environment() *env.Environment
	Status() Status
	// EvaluationError is the sticky error of a failed evaluation.
	EvaluationError() error
	RequestedModules() []string

	// GetExportedNames collects the names this module exports, skipping
	// modules already in exportStarSet.
	GetExportedNames(exportStarSet map[Module]bool) ([]string, error)
	// ResolveExport resolves an export name to the binding that provides
	// it. It returns nil when the name cannot be resolved or the lookup
	// is circular, and Ambiguous when star exports disagree.
	ResolveExport(exportName string, set *ResolveSet) (*ResolvedBinding, error)

	Instantiate() error
	Evaluate() error

	base() *moduleBase
}

// Host resolves the module requested by specifier from within referrer.
// Implementations must return the same Module for the same normalized
// identity.
type Host interface {
	ResolveImportedModule(referrer Module, specifier string) (Module, error)
}

// ModuleResolver turns specifiers into identities and identities into
// module sources.
type ModuleResolver interface {
	// Name returns a human-readable name for this resolver.
	Name() string

	// Priority returns the priority of this resolver (lower = higher priority).
	Priority() int

	// CanResolve returns true if this resolver can handle the given specifier.
	CanResolve(specifier string) bool

	// Normalize maps specifier, requested from referrer (an identity, or ""
	// at top level), to the identity of the module it names.
	Normalize(specifier, referrer string) (string, error)

	// Load fetches the module with the given identity.
	Load(identity string) (*ResolvedModule, error)
}

// Compiler turns module source into compiled module entries and code.
// Compile may be called from several goroutines at once during prefetch.
type Compiler interface {
	CompileModule(src *source.SourceFile) (*ModuleSource, error)
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(src *source.SourceFile) (*ModuleSource, error)

func (f CompilerFunc) CompileModule(src *source.SourceFile) (*ModuleSource, error) { return f(src) }

// LinkObserver is told about every strongly connected component the linker
// closes, in closing order.
type LinkObserver interface {
	ComponentInstantiated(component []Module)
	ComponentEvaluated(component []Module)
}
