package env

import (
	"escore/pkg/errors"
	"escore/pkg/value"
)

// ModuleRecord is the top-level record of a module. Local declarations are
// ordinary declarative cells; imports are indirect bindings into the
// exporting module's environment.
type ModuleRecord struct {
	*DeclarativeRecord
	imports map[string]*IndirectBinding
}

// NewModuleRecord creates an empty module record.
func NewModuleRecord() *ModuleRecord {
	return &ModuleRecord{
		DeclarativeRecord: NewDeclarativeRecord(),
		imports:           make(map[string]*IndirectBinding),
	}
}

// CreateImportBinding declares name as an indirect binding to targetName
// in target's environment.
func (r *ModuleRecord) CreateImportBinding(name string, target ImportTarget, targetName string) {
	if r.isBound(name) {
		errors.Invariant("binding %q already declared in module scope", name)
	}
	r.imports[name] = &IndirectBinding{name: name, target: target, targetName: targetName}
}

// ImportBinding returns the indirect binding for name, or nil.
func (r *ModuleRecord) ImportBinding(name string) *IndirectBinding {
	return r.imports[name]
}

func (r *ModuleRecord) isBound(name string) bool {
	if _, ok := r.imports[name]; ok {
		return true
	}
	_, ok := r.bindings[name]
	return ok
}

func (r *ModuleRecord) HasBinding(name string) (bool, error) {
	return r.isBound(name), nil
}

func (r *ModuleRecord) CreateMutableBinding(name string, deletable bool) error {
	if _, ok := r.imports[name]; ok {
		errors.Invariant("binding %q already declared as an import", name)
	}
	return r.DeclarativeRecord.CreateMutableBinding(name, deletable)
}

func (r *ModuleRecord) CreateImmutableBinding(name string, strict bool) error {
	if _, ok := r.imports[name]; ok {
		errors.Invariant("binding %q already declared as an import", name)
	}
	return r.DeclarativeRecord.CreateImmutableBinding(name, strict)
}

func (r *ModuleRecord) InitializeBinding(name string, v value.Value) error {
	if _, ok := r.imports[name]; ok {
		errors.Invariant("initializing import binding %q", name)
	}
	return r.DeclarativeRecord.InitializeBinding(name, v)
}

func (r *ModuleRecord) SetMutableBinding(name string, v value.Value, strict bool) error {
	if _, ok := r.imports[name]; ok {
		return errors.NewTypeError("Assignment to constant variable '%s'", name)
	}
	return r.DeclarativeRecord.SetMutableBinding(name, v, strict)
}

func (r *ModuleRecord) GetBindingValue(name string, strict bool) (value.Value, error) {
	if ib, ok := r.imports[name]; ok {
		return ib.GetValue()
	}
	return r.DeclarativeRecord.GetBindingValue(name, strict)
}

// DeleteBinding is never reached from strict module code.
func (r *ModuleRecord) DeleteBinding(name string) (bool, error) {
	errors.Invariant("delete of module binding %q", name)
	return false, nil
}

func (r *ModuleRecord) HasThisBinding() bool { return true }

// GetThisBinding returns undefined: module code has no this value.
func (r *ModuleRecord) GetThisBinding() (value.Value, error) {
	return value.Undefined, nil
}
