package value

import (
	"math"

	"escore/pkg/errors"
)

// GetOwnProperty implements [[GetOwnProperty]].
func GetOwnProperty(o *Object, key PropertyKey) (PropertyDescriptor, bool, error) {
	if o.exotic != nil {
		return o.exotic.GetOwnProperty(o, key)
	}
	p, ok := o.props[key]
	if !ok {
		return PropertyDescriptor{}, false, nil
	}
	return p.Descriptor(), true, nil
}

// DefineOwnProperty implements [[DefineOwnProperty]].
func DefineOwnProperty(o *Object, key PropertyKey, desc PropertyDescriptor) (bool, error) {
	if o.exotic != nil {
		return o.exotic.DefineOwnProperty(o, key, desc)
	}
	return o.DefineOwnProperty(key, desc), nil
}

// DefinePropertyOrThrow defines key on o and raises a TypeError when the
// definition is rejected.
func DefinePropertyOrThrow(o *Object, key PropertyKey, desc PropertyDescriptor) error {
	ok, err := DefineOwnProperty(o, key, desc)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewTypeError("Cannot redefine property: %s", key)
	}
	return nil
}

// CreateDataProperty defines a writable, enumerable, configurable data property.
func CreateDataProperty(o *Object, key PropertyKey, v Value) (bool, error) {
	return DefineOwnProperty(o, key, DataDescriptor(v, true, true, true))
}

// HasProperty implements [[HasProperty]], walking the prototype chain.
func HasProperty(o *Object, key PropertyKey) (bool, error) {
	for o != nil {
		if o.exotic != nil {
			return o.exotic.HasProperty(o, key)
		}
		if _, ok := o.props[key]; ok {
			return true, nil
		}
		o = o.proto
	}
	return false, nil
}

// HasOwnProperty reports whether o has an own property key.
func HasOwnProperty(o *Object, key PropertyKey) (bool, error) {
	_, ok, err := GetOwnProperty(o, key)
	return ok, err
}

// Get implements [[Get]] with o itself as the receiver.
func Get(o *Object, key PropertyKey) (Value, error) {
	return GetWithReceiver(o, key, ObjectValue(o))
}

// GetWithReceiver implements [[Get]] (OrdinaryGet for ordinary objects).
func GetWithReceiver(o *Object, key PropertyKey, receiver Value) (Value, error) {
	for o != nil {
		if o.exotic != nil {
			return o.exotic.Get(o, key, receiver)
		}
		if p, ok := o.props[key]; ok {
			if !p.Accessor {
				return p.Value, nil
			}
			if p.Getter.IsUndefined() {
				return Undefined, nil
			}
			return Call(p.Getter, receiver)
		}
		o = o.proto
	}
	return Undefined, nil
}

// GetV reads a property of an arbitrary value. Primitive bases are looked
// up on proto, the wrapper prototype the caller selected.
func GetV(v Value, key PropertyKey, proto *Object) (Value, error) {
	if o := v.Object(); o != nil {
		return Get(o, key)
	}
	if v.IsNullish() {
		return Undefined, errors.NewTypeError("Cannot read properties of %s (reading '%s')", v, key)
	}
	if proto == nil {
		return Undefined, nil
	}
	return GetWithReceiver(proto, key, v)
}

// SetWithReceiver implements [[Set]] (OrdinarySet for ordinary objects).
func SetWithReceiver(o *Object, key PropertyKey, v Value, receiver Value) (bool, error) {
	if o.exotic != nil {
		return o.exotic.Set(o, key, v, receiver)
	}
	p, ok := o.props[key]
	if !ok {
		if o.proto != nil {
			return SetWithReceiver(o.proto, key, v, receiver)
		}
		p = &Property{Value: Undefined, Writable: true, Enumerable: true, Configurable: true}
	}
	if p.Accessor {
		if p.Setter.IsUndefined() {
			return false, nil
		}
		if _, err := Call(p.Setter, receiver, v); err != nil {
			return false, err
		}
		return true, nil
	}
	if !p.Writable {
		return false, nil
	}
	recv := receiver.Object()
	if recv == nil {
		return false, nil
	}
	existing, exists, err := GetOwnProperty(recv, key)
	if err != nil {
		return false, err
	}
	if exists {
		if existing.IsAccessor() || !existing.Writable {
			return false, nil
		}
		return DefineOwnProperty(recv, key, PropertyDescriptor{Value: v, HasValue: true})
	}
	return CreateDataProperty(recv, key, v)
}

// Set implements the Set abstract operation. When throw is true a rejected
// assignment raises a TypeError.
func Set(o *Object, key PropertyKey, v Value, throw bool) error {
	ok, err := SetWithReceiver(o, key, v, ObjectValue(o))
	if err != nil {
		return err
	}
	if !ok && throw {
		return errors.NewTypeError("Cannot assign to read only property '%s' of %s", key, ObjectValue(o))
	}
	return nil
}

// DeleteProperty implements [[Delete]].
func DeleteProperty(o *Object, key PropertyKey) (bool, error) {
	if o.exotic != nil {
		return o.exotic.Delete(o, key)
	}
	return o.DeleteOwn(key), nil
}

// DeletePropertyOrThrow deletes key and raises a TypeError when the
// property is not configurable.
func DeletePropertyOrThrow(o *Object, key PropertyKey) error {
	ok, err := DeleteProperty(o, key)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewTypeError("Cannot delete property '%s' of %s", key, ObjectValue(o))
	}
	return nil
}

// OwnPropertyKeys implements [[OwnPropertyKeys]].
func OwnPropertyKeys(o *Object) ([]PropertyKey, error) {
	if o.exotic != nil {
		return o.exotic.OwnKeys(o)
	}
	return o.OwnKeys(), nil
}

// Call invokes f with the given receiver and arguments.
func Call(f Value, this Value, args ...Value) (Value, error) {
	o := f.Object()
	if o == nil || o.call == nil {
		return Undefined, errors.NewTypeError("%s is not a function", describe(f))
	}
	return o.call.Call(this, args)
}

// Construct invokes the [[Construct]] behaviour of f. A nil newTarget means f.
func Construct(f Value, args []Value, newTarget *Object) (Value, error) {
	o := f.Object()
	if o == nil || o.construct == nil {
		return Undefined, errors.NewTypeError("%s is not a constructor", describe(f))
	}
	if newTarget == nil {
		newTarget = o
	}
	return o.construct.Construct(args, newTarget)
}

// Invoke calls the method named key on v.
func Invoke(v Value, key PropertyKey, proto *Object, args ...Value) (Value, error) {
	fn, err := GetV(v, key, proto)
	if err != nil {
		return Undefined, err
	}
	return Call(fn, v, args...)
}

func describe(v Value) string {
	if v.IsString() {
		return "\"" + v.AsString() + "\""
	}
	return v.String()
}

// ToPrimitive converts an object to a primitive using @@toPrimitive or the
// ordinary valueOf/toString protocol. hint is "string", "number" or "default".
func ToPrimitive(v Value, hint string) (Value, error) {
	o := v.Object()
	if o == nil {
		return v, nil
	}
	exotic, err := Get(o, SymbolKey(SymbolToPrimitive))
	if err != nil {
		return Undefined, err
	}
	if !exotic.IsNullish() {
		r, err := Call(exotic, v, String(hint))
		if err != nil {
			return Undefined, err
		}
		if r.IsObject() {
			return Undefined, errors.NewTypeError("Cannot convert object to primitive value")
		}
		return r, nil
	}
	order := []string{"valueOf", "toString"}
	if hint == "string" {
		order = []string{"toString", "valueOf"}
	}
	for _, name := range order {
		m, err := Get(o, StringKey(name))
		if err != nil {
			return Undefined, err
		}
		if !m.IsCallable() {
			continue
		}
		r, err := Call(m, v)
		if err != nil {
			return Undefined, err
		}
		if !r.IsObject() {
			return r, nil
		}
	}
	return Undefined, errors.NewTypeError("Cannot convert object to primitive value")
}

// ToString implements the ToString abstract operation.
func ToString(v Value) (string, error) {
	switch v.typ {
	case TypeSymbol:
		return "", errors.NewTypeError("Cannot convert a Symbol value to a string")
	case TypeObject:
		p, err := ToPrimitive(v, "string")
		if err != nil {
			return "", err
		}
		return ToString(p)
	}
	return v.String(), nil
}

// ToPropertyKey implements the ToPropertyKey abstract operation.
func ToPropertyKey(v Value) (PropertyKey, error) {
	p, err := ToPrimitive(v, "string")
	if err != nil {
		return PropertyKey{}, err
	}
	if p.IsSymbol() {
		return SymbolKey(p.AsSymbol()), nil
	}
	s, err := ToString(p)
	if err != nil {
		return PropertyKey{}, err
	}
	return StringKey(s), nil
}

// ToNumber converts primitives to numbers. String parsing beyond plain
// decimal literals belongs to the number conversion routines of the host.
func ToNumber(v Value) (float64, error) {
	switch v.typ {
	case TypeUndefined:
		return math.NaN(), nil
	case TypeNull:
		return 0, nil
	case TypeBoolean:
		if v.as.boolean {
			return 1, nil
		}
		return 0, nil
	case TypeNumber:
		return v.as.number, nil
	case TypeString:
		return parseNumber(v.as.str), nil
	case TypeSymbol:
		return 0, errors.NewTypeError("Cannot convert a Symbol value to a number")
	default:
		p, err := ToPrimitive(v, "number")
		if err != nil {
			return 0, err
		}
		return ToNumber(p)
	}
}
