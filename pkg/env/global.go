package env

import (
	"github.com/emirpasic/gods/sets/linkedhashset"

	"escore/pkg/errors"
	"escore/pkg/value"
)

// GlobalRecord combines an object record over the global object with a
// declarative record for top-level lexical declarations. varNames remembers
// which global object properties were created by var and function
// declarations, in declaration order.
type GlobalRecord struct {
	object      *ObjectRecord
	declarative *DeclarativeRecord
	thisValue   *value.Object
	varNames    *linkedhashset.Set
}

// GlobalObject returns the object backing global var bindings.
func (r *GlobalRecord) GlobalObject() *value.Object { return r.object.object }

// ObjectRecord returns the object part of the record.
func (r *GlobalRecord) ObjectRecord() *ObjectRecord { return r.object }

// DeclarativeRecord returns the lexical part of the record.
func (r *GlobalRecord) DeclarativeRecord() *DeclarativeRecord { return r.declarative }

func (r *GlobalRecord) lookup(name string) *Binding {
	return r.declarative.lookup(name)
}

func (r *GlobalRecord) HasBinding(name string) (bool, error) {
	if ok, _ := r.declarative.HasBinding(name); ok {
		return true, nil
	}
	return r.object.HasBinding(name)
}

func (r *GlobalRecord) CreateMutableBinding(name string, deletable bool) error {
	if ok, _ := r.declarative.HasBinding(name); ok {
		return errors.NewTypeError("Identifier '%s' has already been declared", name)
	}
	return r.declarative.CreateMutableBinding(name, deletable)
}

func (r *GlobalRecord) CreateImmutableBinding(name string, strict bool) error {
	if ok, _ := r.declarative.HasBinding(name); ok {
		return errors.NewTypeError("Identifier '%s' has already been declared", name)
	}
	return r.declarative.CreateImmutableBinding(name, strict)
}

func (r *GlobalRecord) InitializeBinding(name string, v value.Value) error {
	if ok, _ := r.declarative.HasBinding(name); ok {
		return r.declarative.InitializeBinding(name, v)
	}
	return r.object.InitializeBinding(name, v)
}

func (r *GlobalRecord) SetMutableBinding(name string, v value.Value, strict bool) error {
	if ok, _ := r.declarative.HasBinding(name); ok {
		return r.declarative.SetMutableBinding(name, v, strict)
	}
	return r.object.SetMutableBinding(name, v, strict)
}

func (r *GlobalRecord) GetBindingValue(name string, strict bool) (value.Value, error) {
	if ok, _ := r.declarative.HasBinding(name); ok {
		return r.declarative.GetBindingValue(name, strict)
	}
	return r.object.GetBindingValue(name, strict)
}

func (r *GlobalRecord) DeleteBinding(name string) (bool, error) {
	if ok, _ := r.declarative.HasBinding(name); ok {
		return r.declarative.DeleteBinding(name)
	}
	key := value.StringKey(name)
	exists, err := value.HasOwnProperty(r.GlobalObject(), key)
	if err != nil {
		return false, err
	}
	if !exists {
		return true, nil
	}
	deleted, err := r.object.DeleteBinding(name)
	if err != nil {
		return false, err
	}
	if deleted {
		r.varNames.Remove(name)
	}
	return deleted, nil
}

func (r *GlobalRecord) HasThisBinding() bool { return true }
func (r *GlobalRecord) HasSuperBinding() bool { return false }
func (r *GlobalRecord) WithBaseObject() *value.Object { return nil }

// GetThisBinding returns the global this value.
func (r *GlobalRecord) GetThisBinding() (value.Value, error) {
	return value.ObjectValue(r.thisValue), nil
}

// HasVarDeclaration reports whether name was declared by var or function
// declaration at top level.
func (r *GlobalRecord) HasVarDeclaration(name string) bool {
	return r.varNames.Contains(name)
}

// HasLexicalDeclaration reports whether name is a top-level lexical binding.
func (r *GlobalRecord) HasLexicalDeclaration(name string) bool {
	_, ok := r.declarative.bindings[name]
	return ok
}

// HasRestrictedGlobalProperty reports whether the global object has a
// non-configurable own property name, which a lexical declaration may not
// shadow.
func (r *GlobalRecord) HasRestrictedGlobalProperty(name string) (bool, error) {
	desc, ok, err := value.GetOwnProperty(r.GlobalObject(), value.StringKey(name))
	if err != nil || !ok {
		return false, err
	}
	return !desc.Configurable, nil
}

// CanDeclareGlobalVar reports whether a var named name may be created.
func (r *GlobalRecord) CanDeclareGlobalVar(name string) (bool, error) {
	has, err := value.HasOwnProperty(r.GlobalObject(), value.StringKey(name))
	if err != nil {
		return false, err
	}
	return has || r.GlobalObject().IsExtensible(), nil
}

// CanDeclareGlobalFunction reports whether a function declaration named
// name may replace whatever the global object holds under that name.
func (r *GlobalRecord) CanDeclareGlobalFunction(name string) (bool, error) {
	desc, ok, err := value.GetOwnProperty(r.GlobalObject(), value.StringKey(name))
	if err != nil {
		return false, err
	}
	if !ok {
		return r.GlobalObject().IsExtensible(), nil
	}
	if desc.Configurable {
		return true, nil
	}
	return desc.IsData() && desc.Writable && desc.Enumerable, nil
}

// CreateGlobalVarBinding defines name on the global object unless it is
// already an own property, then records it as a var name.
func (r *GlobalRecord) CreateGlobalVarBinding(name string, deletable bool) error {
	global := r.GlobalObject()
	has, err := value.HasOwnProperty(global, value.StringKey(name))
	if err != nil {
		return err
	}
	if !has && global.IsExtensible() {
		if err := r.object.CreateMutableBinding(name, deletable); err != nil {
			return err
		}
		if err := r.object.InitializeBinding(name, value.Undefined); err != nil {
			return err
		}
	}
	r.varNames.Add(name)
	return nil
}

// CreateGlobalFunctionBinding defines or replaces the global property name
// with v and records it as a var name.
func (r *GlobalRecord) CreateGlobalFunctionBinding(name string, v value.Value, deletable bool) error {
	global := r.GlobalObject()
	key := value.StringKey(name)
	existing, ok, err := value.GetOwnProperty(global, key)
	if err != nil {
		return err
	}
	desc := value.PropertyDescriptor{Value: v, HasValue: true}
	if !ok || existing.Configurable {
		desc = value.DataDescriptor(v, true, true, deletable)
	}
	if err := value.DefinePropertyOrThrow(global, key, desc); err != nil {
		return err
	}
	if err := value.Set(global, key, v, false); err != nil {
		return err
	}
	r.varNames.Add(name)
	return nil
}

// VarNames returns the recorded var names in declaration order.
func (r *GlobalRecord) VarNames() []string {
	names := make([]string, 0, r.varNames.Size())
	for _, v := range r.varNames.Values() {
		names = append(names, v.(string))
	}
	return names
}
