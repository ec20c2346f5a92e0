package env

import (
	"escore/pkg/value"
)

// Reference is a resolved or unresolved identifier reference. Non-deletable
// declarative bindings are captured directly; everything else is looked up
// again by name on use, since a deletable binding may disappear.
type Reference struct {
	base    *Environment
	binding *Binding
	root    *Environment
	name    string
	strict  bool
}

// GetIdentifierReference walks env outward and returns a reference to the
// first record that binds name. When no record does, the reference is
// unresolvable; errors are deferred to GetValue/PutValue.
func GetIdentifierReference(e *Environment, name string, strict bool) (*Reference, error) {
	var last *Environment
	for ; e != nil; e = e.outer {
		last = e
		if bl, ok := e.record.(bindingLookup); ok {
			if b := bl.lookup(name); b != nil {
				ref := &Reference{base: e, name: name, strict: strict}
				if !b.deletable {
					ref.binding = b
				}
				return ref, nil
			}
		}
		found, err := e.record.HasBinding(name)
		if err != nil {
			return nil, err
		}
		if found {
			return &Reference{base: e, name: name, strict: strict}, nil
		}
	}
	return &Reference{root: last, name: name, strict: strict}, nil
}

// GetIdentifierValueOrThrow resolves name and reads it, raising a
// ReferenceError immediately when no record binds it.
func GetIdentifierValueOrThrow(e *Environment, name string, strict bool) (value.Value, error) {
	ref, err := GetIdentifierReference(e, name, strict)
	if err != nil {
		return value.Undefined, err
	}
	return ref.GetValue()
}

func (r *Reference) Name() string { return r.name }
func (r *Reference) IsStrict() bool { return r.strict }
func (r *Reference) Base() *Environment { return r.base }

// IsUnresolvable reports whether no environment bound the name.
func (r *Reference) IsUnresolvable() bool { return r.base == nil }

// Binding returns the captured binding cell, or nil when the reference is
// resolved by name.
func (r *Reference) Binding() *Binding { return r.binding }

// GetValue reads the referenced binding.
func (r *Reference) GetValue() (value.Value, error) {
	if r.base == nil {
		return value.Undefined, errNotDefined(r.name)
	}
	if r.binding != nil {
		return r.binding.get()
	}
	return r.base.record.GetBindingValue(r.name, r.strict)
}

// PutValue assigns v. Unresolvable sloppy-mode writes create a property on
// the global object.
func (r *Reference) PutValue(v value.Value) error {
	if r.base == nil {
		if r.strict || r.root == nil {
			return errNotDefined(r.name)
		}
		return r.root.record.SetMutableBinding(r.name, v, false)
	}
	if r.binding != nil {
		return r.binding.set(v, r.strict)
	}
	return r.base.record.SetMutableBinding(r.name, v, r.strict)
}

// Delete implements delete on an identifier reference.
func (r *Reference) Delete() (bool, error) {
	if r.base == nil {
		return true, nil
	}
	return r.base.record.DeleteBinding(r.name)
}

// ThisValue returns the implicit this for a call through this reference:
// the with-object for with-statement bindings, undefined otherwise.
func (r *Reference) ThisValue() value.Value {
	if r.base == nil {
		return value.Undefined
	}
	if obj := r.base.record.WithBaseObject(); obj != nil {
		return value.ObjectValue(obj)
	}
	return value.Undefined
}
