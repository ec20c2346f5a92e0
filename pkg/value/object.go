package value

import (
	"sort"
	"strconv"
)

// PropertyKey is either a string or a symbol. It is comparable and can be
// used directly as a map key.
type PropertyKey struct {
	name string
	sym  *Symbol
}

func StringKey(name string) PropertyKey { return PropertyKey{name: name} }
func SymbolKey(sym *Symbol) PropertyKey { return PropertyKey{sym: sym} }

func (k PropertyKey) IsSymbol() bool { return k.sym != nil }
func (k PropertyKey) Name() string { return k.name }
func (k PropertyKey) Symbol() *Symbol { return k.sym }

// Value returns the key as a language value.
func (k PropertyKey) Value() Value {
	if k.sym != nil {
		return SymbolValue(k.sym)
	}
	return String(k.name)
}

func (k PropertyKey) String() string {
	if k.sym != nil {
		return "[" + k.sym.Description + "]"
	}
	return k.name
}

// arrayIndex reports whether the key is a canonical array index.
func (k PropertyKey) arrayIndex() (uint32, bool) {
	if k.sym != nil || k.name == "" || len(k.name) > 10 {
		return 0, false
	}
	if len(k.name) > 1 && k.name[0] == '0' {
		return 0, false
	}
	n, err := strconv.ParseUint(k.name, 10, 32)
	if err != nil || n == 1<<32-1 {
		return 0, false
	}
	return uint32(n), true
}

// Property is one stored own property. Accessor properties keep their
// functions in Getter/Setter (undefined when absent) and ignore Value and
// Writable.
type Property struct {
	Value        Value
	Getter       Value
	Setter       Value
	Accessor     bool
	Writable     bool
	Enumerable   bool
	Configurable bool
}

// Descriptor converts the stored property to a complete descriptor.
func (p *Property) Descriptor() PropertyDescriptor {
	if p.Accessor {
		return AccessorDescriptor(p.Getter, p.Setter, p.Enumerable, p.Configurable)
	}
	return DataDescriptor(p.Value, p.Writable, p.Enumerable, p.Configurable)
}

// PropertyDescriptor is a possibly partial property description as used by
// [[DefineOwnProperty]]. Absent fields have their Has flag unset.
type PropertyDescriptor struct {
	Value        Value
	Get          Value
	Set          Value
	Writable     bool
	Enumerable   bool
	Configurable bool

	HasValue        bool
	HasGet          bool
	HasSet          bool
	HasWritable     bool
	HasEnumerable   bool
	HasConfigurable bool
}

// DataDescriptor returns a complete data descriptor.
func DataDescriptor(v Value, writable, enumerable, configurable bool) PropertyDescriptor {
	return PropertyDescriptor{
		Value: v, Writable: writable, Enumerable: enumerable, Configurable: configurable,
		HasValue: true, HasWritable: true, HasEnumerable: true, HasConfigurable: true,
	}
}

// AccessorDescriptor returns a complete accessor descriptor.
func AccessorDescriptor(get, set Value, enumerable, configurable bool) PropertyDescriptor {
	return PropertyDescriptor{
		Get: get, Set: set, Enumerable: enumerable, Configurable: configurable,
		HasGet: true, HasSet: true, HasEnumerable: true, HasConfigurable: true,
	}
}

func (d PropertyDescriptor) IsAccessor() bool { return d.HasGet || d.HasSet }
func (d PropertyDescriptor) IsData() bool { return d.HasValue || d.HasWritable }
func (d PropertyDescriptor) IsGeneric() bool { return !d.IsAccessor() && !d.IsData() }

// Callable is the [[Call]] behaviour of a function object.
type Callable interface {
	Call(this Value, args []Value) (Value, error)
}

// Constructor is the [[Construct]] behaviour of a function object.
type Constructor interface {
	Construct(args []Value, newTarget *Object) (Value, error)
}

// NativeFunc adapts a Go function to Callable.
type NativeFunc func(this Value, args []Value) (Value, error)

func (f NativeFunc) Call(this Value, args []Value) (Value, error) { return f(this, args) }

// Exotic overrides the essential internal methods of an object. Objects
// without one use the ordinary definitions.
type Exotic interface {
	GetOwnProperty(o *Object, key PropertyKey) (PropertyDescriptor, bool, error)
	DefineOwnProperty(o *Object, key PropertyKey, desc PropertyDescriptor) (bool, error)
	HasProperty(o *Object, key PropertyKey) (bool, error)
	Get(o *Object, key PropertyKey, receiver Value) (Value, error)
	Set(o *Object, key PropertyKey, v Value, receiver Value) (bool, error)
	Delete(o *Object, key PropertyKey) (bool, error)
	OwnKeys(o *Object) ([]PropertyKey, error)
}

// Object is an ordinary object, optionally callable and constructible.
type Object struct {
	// Class is the informal class tag used for display ("Object", "Function", "Module").
	Class string
	// Internal carries host data such as a wrapped primitive or a WeakRef target.
	Internal interface{}

	proto      *Object
	extensible bool
	keys       []PropertyKey
	props      map[PropertyKey]*Property
	call       Callable
	construct  Constructor
	exotic     Exotic
}

// NewObject creates an extensible ordinary object with the given prototype
// (nil for none).
func NewObject(proto *Object) *Object {
	return &Object{
		Class:      "Object",
		proto:      proto,
		extensible: true,
		props:      make(map[PropertyKey]*Property),
	}
}

// NewFunctionObject creates a callable object. construct may be nil.
func NewFunctionObject(proto *Object, call Callable, construct Constructor) *Object {
	o := NewObject(proto)
	o.Class = "Function"
	o.call = call
	o.construct = construct
	return o
}

// NewNativeFunction creates a built-in function with "length" and "name"
// properties, as for built-in function objects.
func NewNativeFunction(proto *Object, name string, length int, fn NativeFunc) *Object {
	o := NewFunctionObject(proto, fn, nil)
	o.DefineOwnProperty(StringKey("length"), DataDescriptor(Number(float64(length)), false, false, true))
	o.DefineOwnProperty(StringKey("name"), DataDescriptor(String(name), false, false, true))
	return o
}

// NewExoticObject creates an object whose internal methods are supplied by ex.
func NewExoticObject(proto *Object, class string, ex Exotic) *Object {
	o := NewObject(proto)
	o.Class = class
	o.exotic = ex
	return o
}

func (o *Object) Prototype() *Object { return o.proto }
func (o *Object) IsExtensible() bool { return o.extensible }
func (o *Object) IsCallable() bool { return o.call != nil }
func (o *Object) IsConstructor() bool { return o.construct != nil }
func (o *Object) Callable() Callable { return o.call }
func (o *Object) Exotic() Exotic { return o.exotic }
func (o *Object) PreventExtensions() { o.extensible = false }
func (o *Object) Constructor() Constructor { return o.construct }

// SetPrototype implements OrdinarySetPrototypeOf.
func (o *Object) SetPrototype(proto *Object) bool {
	if proto == o.proto {
		return true
	}
	if !o.extensible {
		return false
	}
	for p := proto; p != nil; p = p.proto {
		if p == o {
			return false
		}
	}
	o.proto = proto
	return true
}

// Name returns the "name" own data property when it is a string.
func (o *Object) Name() string {
	if p, ok := o.props[StringKey("name")]; ok && !p.Accessor && p.Value.IsString() {
		return p.Value.AsString()
	}
	return ""
}

// OwnProperty returns the stored own property for key (ordinary objects only).
func (o *Object) OwnProperty(key PropertyKey) (*Property, bool) {
	p, ok := o.props[key]
	return p, ok
}

// HasOwn reports whether key is a stored own property.
func (o *Object) HasOwn(key PropertyKey) bool {
	_, ok := o.props[key]
	return ok
}

// SetOwn creates or overwrites a writable, enumerable, configurable data
// property without any checks.
func (o *Object) SetOwn(name string, v Value) {
	o.put(StringKey(name), &Property{Value: v, Writable: true, Enumerable: true, Configurable: true})
}

// SetOwnNonEnumerable is SetOwn for built-in methods and constructors.
func (o *Object) SetOwnNonEnumerable(name string, v Value) {
	o.put(StringKey(name), &Property{Value: v, Writable: true, Configurable: true})
}

// DefineAccessor installs an accessor property without any checks.
func (o *Object) DefineAccessor(key PropertyKey, getter, setter Value, enumerable, configurable bool) {
	o.put(key, &Property{Accessor: true, Getter: getter, Setter: setter, Enumerable: enumerable, Configurable: configurable})
}

func (o *Object) put(key PropertyKey, p *Property) {
	if _, exists := o.props[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.props[key] = p
}

// DeleteOwn implements OrdinaryDelete.
func (o *Object) DeleteOwn(key PropertyKey) bool {
	p, ok := o.props[key]
	if !ok {
		return true
	}
	if !p.Configurable {
		return false
	}
	delete(o.props, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	return true
}

// OwnKeys implements OrdinaryOwnPropertyKeys: array indices ascending, then
// strings in insertion order, then symbols in insertion order.
func (o *Object) OwnKeys() []PropertyKey {
	var indices []PropertyKey
	var strs, syms []PropertyKey
	for _, k := range o.keys {
		switch {
		case k.IsSymbol():
			syms = append(syms, k)
		default:
			if _, ok := k.arrayIndex(); ok {
				indices = append(indices, k)
			} else {
				strs = append(strs, k)
			}
		}
	}
	sort.Slice(indices, func(i, j int) bool {
		a, _ := indices[i].arrayIndex()
		b, _ := indices[j].arrayIndex()
		return a < b
	})
	out := make([]PropertyKey, 0, len(o.keys))
	out = append(out, indices...)
	out = append(out, strs...)
	return append(out, syms...)
}

// DefineOwnProperty implements ValidateAndApplyPropertyDescriptor for an
// ordinary object. It reports false when the definition is not allowed.
func (o *Object) DefineOwnProperty(key PropertyKey, desc PropertyDescriptor) bool {
	current, exists := o.props[key]
	if !exists {
		if !o.extensible {
			return false
		}
		p := &Property{
			Enumerable:   desc.HasEnumerable && desc.Enumerable,
			Configurable: desc.HasConfigurable && desc.Configurable,
		}
		if desc.IsAccessor() {
			p.Accessor = true
			p.Getter, p.Setter = Undefined, Undefined
			if desc.HasGet {
				p.Getter = desc.Get
			}
			if desc.HasSet {
				p.Setter = desc.Set
			}
		} else {
			p.Value = Undefined
			if desc.HasValue {
				p.Value = desc.Value
			}
			p.Writable = desc.HasWritable && desc.Writable
		}
		o.put(key, p)
		return true
	}

	if !current.Configurable {
		if desc.HasConfigurable && desc.Configurable {
			return false
		}
		if desc.HasEnumerable && desc.Enumerable != current.Enumerable {
			return false
		}
		if !desc.IsGeneric() && desc.IsAccessor() != current.Accessor {
			return false
		}
		if current.Accessor {
			if desc.HasGet && !SameValue(desc.Get, current.Getter) {
				return false
			}
			if desc.HasSet && !SameValue(desc.Set, current.Setter) {
				return false
			}
		} else if !current.Writable {
			if desc.HasWritable && desc.Writable {
				return false
			}
			if desc.HasValue && !SameValue(desc.Value, current.Value) {
				return false
			}
		}
	}

	switch {
	case desc.IsAccessor() && !current.Accessor:
		current.Accessor = true
		current.Value, current.Writable = Undefined, false
		current.Getter, current.Setter = Undefined, Undefined
	case desc.IsData() && current.Accessor:
		current.Accessor = false
		current.Getter, current.Setter = Undefined, Undefined
		current.Value, current.Writable = Undefined, false
	}
	if desc.HasValue {
		current.Value = desc.Value
	}
	if desc.HasWritable {
		current.Writable = desc.Writable
	}
	if desc.HasGet {
		current.Getter = desc.Get
	}
	if desc.HasSet {
		current.Setter = desc.Set
	}
	if desc.HasEnumerable {
		current.Enumerable = desc.Enumerable
	}
	if desc.HasConfigurable {
		current.Configurable = desc.Configurable
	}
	return true
}
