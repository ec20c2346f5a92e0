package env

import (
	"sort"

	"escore/pkg/errors"
	"escore/pkg/value"
)

// Record is the capability surface shared by every environment record
// variant. Variant-specific operations live on the concrete types
// (*GlobalRecord, *FunctionRecord, *ModuleRecord) and are reached by type
// assertion.
type Record interface {
	// HasBinding reports whether this record (not its outer chain) binds name.
	HasBinding(name string) (bool, error)
	// CreateMutableBinding declares an uninitialized mutable binding.
	CreateMutableBinding(name string, deletable bool) error
	// CreateImmutableBinding declares an uninitialized immutable binding.
	CreateImmutableBinding(name string, strict bool) error
	InitializeBinding(name string, v value.Value) error
	SetMutableBinding(name string, v value.Value, strict bool) error
	GetBindingValue(name string, strict bool) (value.Value, error)
	DeleteBinding(name string) (bool, error)
	HasThisBinding() bool
	HasSuperBinding() bool
	// WithBaseObject is non-nil only for with-statement object records.
	WithBaseObject() *value.Object
}

// ThisBinder is implemented by records that provide a this binding.
type ThisBinder interface {
	GetThisBinding() (value.Value, error)
}

// bindingLookup exposes binding cells for the reference fast path.
type bindingLookup interface {
	lookup(name string) *Binding
}

// DeclarativeRecord binds names to in-memory cells.
type DeclarativeRecord struct {
	bindings map[string]*Binding
	catch    bool
}

// NewDeclarativeRecord creates an empty declarative record.
func NewDeclarativeRecord() *DeclarativeRecord {
	return &DeclarativeRecord{bindings: make(map[string]*Binding)}
}

func (r *DeclarativeRecord) lookup(name string) *Binding {
	return r.bindings[name]
}

// Binding returns the cell for name, or nil.
func (r *DeclarativeRecord) Binding(name string) *Binding {
	return r.bindings[name]
}

// Names returns the bound names in sorted order.
func (r *DeclarativeRecord) Names() []string {
	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *DeclarativeRecord) HasBinding(name string) (bool, error) {
	_, ok := r.bindings[name]
	return ok, nil
}

func (r *DeclarativeRecord) declare(name string) *Binding {
	if _, exists := r.bindings[name]; exists {
		errors.Invariant("binding %q already declared in this scope", name)
	}
	b := &Binding{name: name}
	r.bindings[name] = b
	return b
}

func (r *DeclarativeRecord) CreateMutableBinding(name string, deletable bool) error {
	b := r.declare(name)
	b.mutable = true
	b.deletable = deletable
	return nil
}

func (r *DeclarativeRecord) CreateImmutableBinding(name string, strict bool) error {
	b := r.declare(name)
	b.strict = strict
	return nil
}

func (r *DeclarativeRecord) InitializeBinding(name string, v value.Value) error {
	b, ok := r.bindings[name]
	if !ok {
		errors.Invariant("initializing undeclared binding %q", name)
	}
	b.initialize(v)
	return nil
}

func (r *DeclarativeRecord) SetMutableBinding(name string, v value.Value, strict bool) error {
	b, ok := r.bindings[name]
	if !ok {
		if strict {
			return errNotDefined(name)
		}
		b = &Binding{name: name, mutable: true, deletable: true}
		r.bindings[name] = b
		b.initialize(v)
		return nil
	}
	return b.set(v, strict)
}

func (r *DeclarativeRecord) GetBindingValue(name string, strict bool) (value.Value, error) {
	b, ok := r.bindings[name]
	if !ok {
		return value.Undefined, errNotDefined(name)
	}
	return b.get()
}

func (r *DeclarativeRecord) DeleteBinding(name string) (bool, error) {
	b, ok := r.bindings[name]
	if !ok {
		return true, nil
	}
	if !b.deletable {
		return false, nil
	}
	delete(r.bindings, name)
	return true, nil
}

func (r *DeclarativeRecord) HasThisBinding() bool { return false }
func (r *DeclarativeRecord) HasSuperBinding() bool { return false }
func (r *DeclarativeRecord) WithBaseObject() *value.Object { return nil }

// clone copies every binding with identical flags and values.
func (r *DeclarativeRecord) clone() *DeclarativeRecord {
	c := &DeclarativeRecord{bindings: make(map[string]*Binding, len(r.bindings)), catch: r.catch}
	for name, b := range r.bindings {
		c.bindings[name] = b.clone()
	}
	return c
}
