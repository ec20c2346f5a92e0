package env

import (
	"escore/pkg/errors"
	"escore/pkg/value"
)

// Binding is one declared name's storage cell in a declarative record.
// A binding is created uninitialized and initialized exactly once; until
// then every read or write is a temporal-dead-zone error.
type Binding struct {
	name        string
	mutable     bool
	deletable   bool
	strict      bool
	initialized bool
	value       value.Value
}

func (b *Binding) Name() string { return b.name }
func (b *Binding) IsMutable() bool { return b.mutable }
func (b *Binding) IsDeletable() bool { return b.deletable }
func (b *Binding) IsStrict() bool { return b.strict }
func (b *Binding) IsInitialized() bool { return b.initialized }

// Value returns the stored value without a TDZ check.
func (b *Binding) Value() value.Value { return b.value }

func (b *Binding) initialize(v value.Value) {
	if b.initialized {
		errors.Invariant("binding %q initialized twice", b.name)
	}
	b.value = v
	b.initialized = true
}

func (b *Binding) get() (value.Value, error) {
	if !b.initialized {
		return value.Undefined, errUninitialized(b.name)
	}
	return b.value, nil
}

func (b *Binding) set(v value.Value, strict bool) error {
	if !b.initialized {
		return errUninitialized(b.name)
	}
	if !b.mutable {
		if strict || b.strict {
			return errors.NewTypeError("Assignment to constant variable '%s'", b.name)
		}
		return nil
	}
	b.value = v
	return nil
}

func (b *Binding) clone() *Binding {
	c := *b
	return &c
}

// ImportTarget is the module side of an indirect binding.
type ImportTarget interface {
	// Environment returns the module environment, or nil before the module
	// has been instantiated.
	Environment() *Environment
}

// IndirectBinding is a read-only import binding. It has no storage of its
// own; reads are forwarded to the exporting module's environment, which
// also performs the temporal-dead-zone check.
type IndirectBinding struct {
	name       string
	target     ImportTarget
	targetName string
}

func (b *IndirectBinding) Name() string { return b.name }
func (b *IndirectBinding) Target() ImportTarget { return b.target }
func (b *IndirectBinding) TargetName() string { return b.targetName }

// IsInitialized reports whether the target module has an environment yet.
func (b *IndirectBinding) IsInitialized() bool {
	return b.target.Environment() != nil
}

// GetValue reads the target binding.
func (b *IndirectBinding) GetValue() (value.Value, error) {
	targetEnv := b.target.Environment()
	if targetEnv == nil {
		return value.Undefined, errUninitialized(b.name)
	}
	return targetEnv.Record().GetBindingValue(b.targetName, true)
}

func errUninitialized(name string) error {
	return errors.NewReferenceError("Cannot access '%s' before initialization", name)
}

func errNotDefined(name string) error {
	return errors.NewReferenceError("%s is not defined", name)
}
