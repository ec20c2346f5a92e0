package env

import (
	"escore/pkg/errors"
	"escore/pkg/value"
)

// ObjectRecord binds names to the properties of an object. It backs the
// object part of the global record and with statements.
type ObjectRecord struct {
	object *value.Object
	with   bool
}

// NewObjectRecord creates a record over obj. with selects with-statement
// semantics: @@unscopables filtering and an implicit this value.
func NewObjectRecord(obj *value.Object, with bool) *ObjectRecord {
	return &ObjectRecord{object: obj, with: with}
}

// BindingObject returns the backing object.
func (r *ObjectRecord) BindingObject() *value.Object { return r.object }

func (r *ObjectRecord) HasBinding(name string) (bool, error) {
	key := value.StringKey(name)
	found, err := value.HasProperty(r.object, key)
	if err != nil || !found || !r.with {
		return found, err
	}
	unscopables, err := value.Get(r.object, value.SymbolKey(value.SymbolUnscopables))
	if err != nil {
		return false, err
	}
	if u := unscopables.Object(); u != nil {
		blocked, err := value.Get(u, key)
		if err != nil {
			return false, err
		}
		if value.ToBoolean(blocked) {
			return false, nil
		}
	}
	return true, nil
}

func (r *ObjectRecord) CreateMutableBinding(name string, deletable bool) error {
	return value.DefinePropertyOrThrow(r.object, value.StringKey(name),
		value.DataDescriptor(value.Undefined, true, true, deletable))
}

func (r *ObjectRecord) CreateImmutableBinding(name string, strict bool) error {
	errors.Invariant("object environment records have no immutable bindings (%q)", name)
	return nil
}

func (r *ObjectRecord) InitializeBinding(name string, v value.Value) error {
	return r.SetMutableBinding(name, v, false)
}

func (r *ObjectRecord) SetMutableBinding(name string, v value.Value, strict bool) error {
	key := value.StringKey(name)
	stillExists, err := value.HasProperty(r.object, key)
	if err != nil {
		return err
	}
	if !stillExists && strict {
		return errNotDefined(name)
	}
	return value.Set(r.object, key, v, strict)
}

func (r *ObjectRecord) GetBindingValue(name string, strict bool) (value.Value, error) {
	key := value.StringKey(name)
	exists, err := value.HasProperty(r.object, key)
	if err != nil {
		return value.Undefined, err
	}
	if !exists {
		if strict {
			return value.Undefined, errNotDefined(name)
		}
		return value.Undefined, nil
	}
	return value.Get(r.object, key)
}

func (r *ObjectRecord) DeleteBinding(name string) (bool, error) {
	return value.DeleteProperty(r.object, value.StringKey(name))
}

func (r *ObjectRecord) HasThisBinding() bool { return false }
func (r *ObjectRecord) HasSuperBinding() bool { return false }

func (r *ObjectRecord) WithBaseObject() *value.Object {
	if r.with {
		return r.object
	}
	return nil
}
