package modules

import (
	"escore/pkg/env"
	"escore/pkg/value"
	"escore/pkg/vm"
)

// moduleBase holds the state every module record kind shares.
type moduleBase struct {
	identity    string
	realm       *vm.Realm
	environment *env.Environment
	namespace   *value.Object
	status      Status
	evalError   error

	// Graph walk bookkeeping, meaningful only while the module is on a
	// linker stack.
	dfsIndex         int
	dfsAncestorIndex int
}

func (b *moduleBase) Identity() string { return b.identity }
func (b *moduleBase) Realm() *vm.Realm { return b.realm }
func (b *moduleBase) Environment() *env.Environment { return b.environment }
func (b *moduleBase) Status() Status { return b.status }
func (b *moduleBase) EvaluationError() error { return b.evalError }
func (b *moduleBase) base() *moduleBase { return b }

func (b *moduleBase) resetWalk() {
	b.dfsIndex = -1
	b.dfsAncestorIndex = -1
}

// ResolvedBinding names the module and binding that ultimately provide an
// export.
type ResolvedBinding struct {
	Module Module
	// BindingName is a binding in Module's environment, or NamespaceBinding
	// when the export is Module's namespace object.
	BindingName string
}

// NamespaceBinding marks a resolution to a module namespace object rather
// than a binding.
const NamespaceBinding = "*namespace*"

// Ambiguous is returned by ResolveExport when two star exports provide the
// same name from different bindings.
var Ambiguous = &ResolvedBinding{BindingName: "*ambiguous*"}

// IsNamespace reports whether the resolution is a namespace object.
func (r *ResolvedBinding) IsNamespace() bool {
	return r != Ambiguous && r.BindingName == NamespaceBinding
}

func (r *ResolvedBinding) sameAs(o *ResolvedBinding) bool {
	return r.Module == o.Module && r.BindingName == o.BindingName
}

// ResolveSet records the (module, export name) pairs visited by one
// resolution call tree, so that export cycles terminate.
type ResolveSet struct {
	visited map[Module]map[string]bool
	// circular is set when a named re-export chain led back to a pair
	// already being resolved.
	circular bool
}

// NewResolveSet creates an empty resolve set.
func NewResolveSet() *ResolveSet {
	return &ResolveSet{visited: make(map[Module]map[string]bool)}
}

// enter marks (m, name) visited. It reports false if it already was.
func (s *ResolveSet) enter(m Module, name string) bool {
	names := s.visited[m]
	if names == nil {
		names = make(map[string]bool)
		s.visited[m] = names
	}
	if names[name] {
		s.circular = true
		return false
	}
	names[name] = true
	return true
}

// Circular reports whether a nil resolution came from a cycle of named
// re-exports rather than a missing export.
func (s *ResolveSet) Circular() bool {
	return s.circular
}

// Value reads the current value of a resolved binding.
func (r *ResolvedBinding) Value() (value.Value, error) {
	if r.IsNamespace() {
		ns, err := GetModuleNamespace(r.Module)
		if err != nil {
			return value.Undefined, err
		}
		return value.ObjectValue(ns), nil
	}
	target := r.Module.Environment()
	if target == nil {
		return value.Undefined, errUninitializedExport(r.BindingName)
	}
	return target.Record().GetBindingValue(r.BindingName, true)
}
