package vm

import (
	"math"
	"sort"

	"escore/pkg/errors"
	"escore/pkg/value"
)

// IntrinsicInitializer populates part of a realm's intrinsics table.
type IntrinsicInitializer interface {
	// Name returns the batch name used in diagnostics.
	Name() string
	// Priority returns initialization order (lower = earlier).
	Priority() int
	// Requires lists intrinsics that must exist before Init runs.
	Requires() []Intrinsic
	// Provides lists intrinsics Init must install.
	Provides() []Intrinsic
	Init(r *Realm) error
}

// Priority constants for initialization order. The order is a correctness
// requirement: later batches reference objects built by earlier ones.
const (
	PriorityFundamental    = 0   // Object.prototype and Function.prototype
	PriorityThrowTypeError = 1   // %ThrowTypeError%
	PriorityRestricted     = 2   // caller/arguments poison pills on Function.prototype
	PriorityConstructors   = 10  // Object and Function constructors
	PriorityErrors         = 11  // Error hierarchy
	PriorityWrappers       = 12  // primitive wrapper prototypes
	PriorityEval           = 20  // %eval%
	PriorityHost           = 50  // embedder-supplied intrinsics
	PriorityGlobals        = 100 // global object default properties
)

// InitializerFunc adapts a function to IntrinsicInitializer.
type InitializerFunc struct {
	BatchName     string
	BatchPriority int
	Needs         []Intrinsic
	Installs      []Intrinsic
	Fn            func(r *Realm) error
}

func (f *InitializerFunc) Name() string { return f.BatchName }
func (f *InitializerFunc) Priority() int { return f.BatchPriority }
func (f *InitializerFunc) Requires() []Intrinsic { return f.Needs }
func (f *InitializerFunc) Provides() []Intrinsic { return f.Installs }
func (f *InitializerFunc) Init(r *Realm) error { return f.Fn(r) }

// builtinInitializers returns the core batches.
func builtinInitializers() []IntrinsicInitializer {
	return []IntrinsicInitializer{
		&InitializerFunc{
			BatchName:     "fundamental",
			BatchPriority: PriorityFundamental,
			Installs:      []Intrinsic{IntrinsicObjectPrototype, IntrinsicFunctionPrototype},
			Fn:            initFundamental,
		},
		&InitializerFunc{
			BatchName:     "throw-type-error",
			BatchPriority: PriorityThrowTypeError,
			Needs:         []Intrinsic{IntrinsicFunctionPrototype},
			Installs:      []Intrinsic{IntrinsicThrowTypeError},
			Fn:            initThrowTypeError,
		},
		&InitializerFunc{
			BatchName:     "restricted-properties",
			BatchPriority: PriorityRestricted,
			Needs:         []Intrinsic{IntrinsicFunctionPrototype, IntrinsicThrowTypeError},
			Fn:            initRestrictedProperties,
		},
		&InitializerFunc{
			BatchName:     "constructors",
			BatchPriority: PriorityConstructors,
			Needs:         []Intrinsic{IntrinsicObjectPrototype, IntrinsicFunctionPrototype},
			Installs:      []Intrinsic{IntrinsicObject, IntrinsicFunction},
			Fn:            initConstructors,
		},
		&InitializerFunc{
			BatchName:     "errors",
			BatchPriority: PriorityErrors,
			Needs:         []Intrinsic{IntrinsicObjectPrototype, IntrinsicFunctionPrototype},
			Installs: []Intrinsic{
				IntrinsicErrorPrototype, IntrinsicError,
				IntrinsicTypeErrorPrototype, IntrinsicTypeError,
				IntrinsicReferenceErrorPrototype, IntrinsicReferenceError,
				IntrinsicSyntaxErrorPrototype, IntrinsicSyntaxError,
				IntrinsicRangeErrorPrototype, IntrinsicRangeError,
				IntrinsicEvalErrorPrototype, IntrinsicEvalError,
			},
			Fn: initErrors,
		},
		&InitializerFunc{
			BatchName:     "wrappers",
			BatchPriority: PriorityWrappers,
			Needs:         []Intrinsic{IntrinsicObjectPrototype, IntrinsicFunctionPrototype},
			Installs: []Intrinsic{
				IntrinsicBooleanPrototype, IntrinsicNumberPrototype,
				IntrinsicStringPrototype, IntrinsicSymbolPrototype,
			},
			Fn: initWrappers,
		},
		&InitializerFunc{
			BatchName:     "eval",
			BatchPriority: PriorityEval,
			Needs:         []Intrinsic{IntrinsicFunctionPrototype},
			Installs:      []Intrinsic{IntrinsicEval},
			Fn:            initEval,
		},
		&InitializerFunc{
			BatchName:     "globals",
			BatchPriority: PriorityGlobals,
			Needs: []Intrinsic{
				IntrinsicObjectPrototype, IntrinsicObject, IntrinsicFunction,
				IntrinsicError, IntrinsicTypeError, IntrinsicReferenceError,
				IntrinsicSyntaxError, IntrinsicRangeError, IntrinsicEvalError,
				IntrinsicEval,
			},
			Fn: initGlobals,
		},
	}
}

// initializeIntrinsics runs the built-in batches and extra in priority
// order, verifying each batch's prerequisites before it runs and its
// products after.
func (r *Realm) initializeIntrinsics(extra []IntrinsicInitializer) error {
	batches := append(builtinInitializers(), extra...)
	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].Priority() < batches[j].Priority()
	})
	for _, b := range batches {
		for _, need := range b.Requires() {
			if r.intrinsics[need] == nil {
				return errors.Errorf("realm initializer %q requires %s, which is not yet available", b.Name(), need)
			}
		}
		if err := b.Init(r); err != nil {
			return errors.Wrapf(err, "realm initializer %q", b.Name())
		}
		for _, p := range b.Provides() {
			if r.intrinsics[p] == nil {
				return errors.Errorf("realm initializer %q did not install %s", b.Name(), p)
			}
		}
		r.logger.WithField("batch", b.Name()).Debug("intrinsics initialized")
	}
	return nil
}

func (r *Realm) nativeFunction(name string, length int, fn value.NativeFunc) *value.Object {
	return value.NewNativeFunction(r.Intrinsic(IntrinsicFunctionPrototype), name, length, fn)
}

func initFundamental(r *Realm) error {
	objectProto := value.NewObject(nil)
	r.SetIntrinsic(IntrinsicObjectPrototype, objectProto)
	// Function.prototype is itself callable and returns undefined.
	functionProto := value.NewFunctionObject(objectProto, value.NativeFunc(func(value.Value, []value.Value) (value.Value, error) {
		return value.Undefined, nil
	}), nil)
	functionProto.DefineOwnProperty(value.StringKey("length"), value.DataDescriptor(value.Number(0), false, false, true))
	functionProto.DefineOwnProperty(value.StringKey("name"), value.DataDescriptor(value.String(""), false, false, true))
	r.SetIntrinsic(IntrinsicFunctionPrototype, functionProto)

	objectProto.SetOwnNonEnumerable("hasOwnProperty", value.ObjectValue(r.nativeFunction("hasOwnProperty", 1,
		func(this value.Value, args []value.Value) (value.Value, error) {
			key, err := value.ToPropertyKey(argument(args, 0))
			if err != nil {
				return value.Undefined, err
			}
			obj, err := r.ToObject(this)
			if err != nil {
				return value.Undefined, err
			}
			has, err := value.HasOwnProperty(obj, key)
			return value.Bool(has), err
		})))
	objectProto.SetOwnNonEnumerable("toString", value.ObjectValue(r.nativeFunction("toString", 0,
		func(this value.Value, args []value.Value) (value.Value, error) {
			switch {
			case this.IsUndefined():
				return value.String("[object Undefined]"), nil
			case this.IsNull():
				return value.String("[object Null]"), nil
			}
			obj, err := r.ToObject(this)
			if err != nil {
				return value.Undefined, err
			}
			tag := obj.Class
			if t, err := value.Get(obj, value.SymbolKey(value.SymbolToStringTag)); err != nil {
				return value.Undefined, err
			} else if t.IsString() {
				tag = t.AsString()
			}
			return value.String("[object " + tag + "]"), nil
		})))
	objectProto.SetOwnNonEnumerable("valueOf", value.ObjectValue(r.nativeFunction("valueOf", 0,
		func(this value.Value, args []value.Value) (value.Value, error) {
			obj, err := r.ToObject(this)
			if err != nil {
				return value.Undefined, err
			}
			return value.ObjectValue(obj), nil
		})))

	functionProto.SetOwnNonEnumerable("call", value.ObjectValue(r.nativeFunction("call", 1,
		func(this value.Value, args []value.Value) (value.Value, error) {
			var rest []value.Value
			if len(args) > 1 {
				rest = args[1:]
			}
			return value.Call(this, argument(args, 0), rest...)
		})))
	return nil
}

func initThrowTypeError(r *Realm) error {
	thrower := value.NewFunctionObject(r.Intrinsic(IntrinsicFunctionPrototype), value.NativeFunc(func(value.Value, []value.Value) (value.Value, error) {
		return value.Undefined, errors.NewTypeError("'caller', 'callee', and 'arguments' properties may not be accessed on strict mode functions or the arguments objects for calls to them")
	}), nil)
	thrower.DefineOwnProperty(value.StringKey("length"), value.DataDescriptor(value.Number(0), false, false, false))
	thrower.DefineOwnProperty(value.StringKey("name"), value.DataDescriptor(value.String(""), false, false, false))
	thrower.PreventExtensions()
	r.SetIntrinsic(IntrinsicThrowTypeError, thrower)
	return nil
}

func initRestrictedProperties(r *Realm) error {
	thrower := value.ObjectValue(r.Intrinsic(IntrinsicThrowTypeError))
	fp := r.Intrinsic(IntrinsicFunctionPrototype)
	fp.DefineAccessor(value.StringKey("caller"), thrower, thrower, false, true)
	fp.DefineAccessor(value.StringKey("arguments"), thrower, thrower, false, true)
	return nil
}

// builtinConstructor is a built-in function with distinct call and
// construct behaviour.
type builtinConstructor struct {
	call      value.NativeFunc
	construct func(args []value.Value, newTarget *value.Object) (value.Value, error)
}

func (c *builtinConstructor) Call(this value.Value, args []value.Value) (value.Value, error) {
	return c.call(this, args)
}

func (c *builtinConstructor) Construct(args []value.Value, newTarget *value.Object) (value.Value, error) {
	return c.construct(args, newTarget)
}

func (r *Realm) constructor(name string, length int, proto *value.Object, c *builtinConstructor) *value.Object {
	ctor := value.NewFunctionObject(r.Intrinsic(IntrinsicFunctionPrototype), c, c)
	ctor.DefineOwnProperty(value.StringKey("length"), value.DataDescriptor(value.Number(float64(length)), false, false, true))
	ctor.DefineOwnProperty(value.StringKey("name"), value.DataDescriptor(value.String(name), false, false, true))
	ctor.DefineOwnProperty(value.StringKey("prototype"), value.DataDescriptor(value.ObjectValue(proto), false, false, false))
	proto.SetOwnNonEnumerable("constructor", value.ObjectValue(ctor))
	return ctor
}

func initConstructors(r *Realm) error {
	objectProto := r.Intrinsic(IntrinsicObjectPrototype)
	object := func(args []value.Value) (value.Value, error) {
		v := argument(args, 0)
		if v.IsNullish() {
			return value.ObjectValue(value.NewObject(objectProto)), nil
		}
		obj, err := r.ToObject(v)
		return value.ObjectValue(obj), err
	}
	objectCtor := r.constructor("Object", 1, objectProto, &builtinConstructor{
		call: func(_ value.Value, args []value.Value) (value.Value, error) { return object(args) },
		construct: func(args []value.Value, newTarget *value.Object) (value.Value, error) {
			if newTarget != nil && newTarget != r.Intrinsic(IntrinsicObject) {
				proto, err := r.prototypeFromConstructor(newTarget, IntrinsicObjectPrototype)
				if err != nil {
					return value.Undefined, err
				}
				return value.ObjectValue(value.NewObject(proto)), nil
			}
			return object(args)
		},
	})
	objectCtor.SetOwnNonEnumerable("getPrototypeOf", value.ObjectValue(r.nativeFunction("getPrototypeOf", 1,
		func(_ value.Value, args []value.Value) (value.Value, error) {
			obj, err := r.ToObject(argument(args, 0))
			if err != nil {
				return value.Undefined, err
			}
			return value.ObjectValue(obj.Prototype()), nil
		})))
	r.SetIntrinsic(IntrinsicObject, objectCtor)

	noDynamic := func() (value.Value, error) {
		return value.Undefined, errors.NewEvalError("Code generation from strings is not available in this realm")
	}
	functionCtor := r.constructor("Function", 1, r.Intrinsic(IntrinsicFunctionPrototype), &builtinConstructor{
		call:      func(value.Value, []value.Value) (value.Value, error) { return noDynamic() },
		construct: func([]value.Value, *value.Object) (value.Value, error) { return noDynamic() },
	})
	r.SetIntrinsic(IntrinsicFunction, functionCtor)
	return nil
}

var errorKinds = []struct {
	name  string
	proto Intrinsic
	ctor  Intrinsic
}{
	{"TypeError", IntrinsicTypeErrorPrototype, IntrinsicTypeError},
	{"ReferenceError", IntrinsicReferenceErrorPrototype, IntrinsicReferenceError},
	{"SyntaxError", IntrinsicSyntaxErrorPrototype, IntrinsicSyntaxError},
	{"RangeError", IntrinsicRangeErrorPrototype, IntrinsicRangeError},
	{"EvalError", IntrinsicEvalErrorPrototype, IntrinsicEvalError},
}

func (r *Realm) errorConstructor(name string, proto *value.Object, protoID Intrinsic) *value.Object {
	create := func(args []value.Value, newTarget *value.Object) (value.Value, error) {
		p, err := r.prototypeFromConstructor(newTarget, protoID)
		if err != nil {
			return value.Undefined, err
		}
		obj := value.NewObject(p)
		obj.Class = "Error"
		if msg := argument(args, 0); !msg.IsUndefined() {
			s, err := value.ToString(msg)
			if err != nil {
				return value.Undefined, err
			}
			obj.SetOwnNonEnumerable("message", value.String(s))
		}
		return value.ObjectValue(obj), nil
	}
	ctor := r.constructor(name, 1, proto, &builtinConstructor{
		call: func(_ value.Value, args []value.Value) (value.Value, error) { return create(args, nil) },
		construct: create,
	})
	proto.SetOwnNonEnumerable("name", value.String(name))
	proto.SetOwnNonEnumerable("message", value.String(""))
	return ctor
}

func initErrors(r *Realm) error {
	errorProto := value.NewObject(r.Intrinsic(IntrinsicObjectPrototype))
	r.SetIntrinsic(IntrinsicErrorPrototype, errorProto)
	errorCtor := r.errorConstructor("Error", errorProto, IntrinsicErrorPrototype)
	errorProto.SetOwnNonEnumerable("toString", value.ObjectValue(r.nativeFunction("toString", 0,
		func(this value.Value, args []value.Value) (value.Value, error) {
			obj := this.Object()
			if obj == nil {
				return value.Undefined, errors.NewTypeError("Error.prototype.toString called on non-object")
			}
			return value.String(value.Throw(this).Error()), nil
		})))
	r.SetIntrinsic(IntrinsicError, errorCtor)

	for _, k := range errorKinds {
		proto := value.NewObject(errorProto)
		r.SetIntrinsic(k.proto, proto)
		ctor := r.errorConstructor(k.name, proto, k.proto)
		ctor.SetPrototype(errorCtor)
		r.SetIntrinsic(k.ctor, ctor)
	}
	return nil
}

func initWrappers(r *Realm) error {
	objectProto := r.Intrinsic(IntrinsicObjectPrototype)
	for _, w := range []struct {
		id    Intrinsic
		class string
		zero  value.Value
	}{
		{IntrinsicBooleanPrototype, "Boolean", value.False},
		{IntrinsicNumberPrototype, "Number", value.Number(0)},
		{IntrinsicStringPrototype, "String", value.String("")},
		{IntrinsicSymbolPrototype, "Symbol", value.Undefined},
	} {
		proto := value.NewObject(objectProto)
		proto.Class = w.class
		if !w.zero.IsUndefined() {
			proto.Internal = w.zero
		}
		class := w.class
		proto.SetOwnNonEnumerable("valueOf", value.ObjectValue(r.nativeFunction("valueOf", 0,
			func(this value.Value, args []value.Value) (value.Value, error) {
				return thisPrimitive(this, class)
			})))
		proto.SetOwnNonEnumerable("toString", value.ObjectValue(r.nativeFunction("toString", 0,
			func(this value.Value, args []value.Value) (value.Value, error) {
				p, err := thisPrimitive(this, class)
				if err != nil {
					return value.Undefined, err
				}
				if p.IsSymbol() {
					return value.String(p.AsSymbol().String()), nil
				}
				return value.String(p.String()), nil
			})))
		r.SetIntrinsic(w.id, proto)
	}
	r.Intrinsic(IntrinsicSymbolPrototype).DefineOwnProperty(value.SymbolKey(value.SymbolToStringTag),
		value.DataDescriptor(value.String("Symbol"), false, false, true))
	return nil
}

// thisPrimitive unwraps this for the wrapper prototype methods of class.
func thisPrimitive(this value.Value, class string) (value.Value, error) {
	if this.IsPrimitive() && this.Type().String() == lowerFirst(class) {
		return this, nil
	}
	if obj := this.Object(); obj != nil && obj.Class == class {
		if p, ok := obj.Internal.(value.Value); ok {
			return p, nil
		}
	}
	return value.Undefined, errors.NewTypeError("%s.prototype.valueOf requires that 'this' be a %s", class, class)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]+'a'-'A') + s[1:]
}

func initEval(r *Realm) error {
	eval := r.nativeFunction("eval", 1, func(_ value.Value, args []value.Value) (value.Value, error) {
		return r.PerformEval(argument(args, 0), false, false)
	})
	r.SetIntrinsic(IntrinsicEval, eval)
	return nil
}

func initGlobals(r *Realm) error {
	global := r.GlobalObject
	if global.Prototype() == nil && global.Class == "global" {
		global.SetPrototype(r.Intrinsic(IntrinsicObjectPrototype))
	}
	constants := []struct {
		name string
		v    value.Value
	}{
		{"undefined", value.Undefined},
		{"NaN", value.Number(math.NaN())},
		{"Infinity", value.Number(math.Inf(1))},
	}
	for _, c := range constants {
		if err := value.DefinePropertyOrThrow(global, value.StringKey(c.name), value.DataDescriptor(c.v, false, false, false)); err != nil {
			return err
		}
	}
	if err := value.DefinePropertyOrThrow(global, value.StringKey("globalThis"),
		value.DataDescriptor(value.ObjectValue(r.GlobalThis), true, false, true)); err != nil {
		return err
	}
	ctors := []struct {
		name string
		id   Intrinsic
	}{
		{"Object", IntrinsicObject},
		{"Function", IntrinsicFunction},
		{"Error", IntrinsicError},
		{"TypeError", IntrinsicTypeError},
		{"ReferenceError", IntrinsicReferenceError},
		{"SyntaxError", IntrinsicSyntaxError},
		{"RangeError", IntrinsicRangeError},
		{"EvalError", IntrinsicEvalError},
	}
	if r.Permits(PermitEval) {
		ctors = append(ctors, struct {
			name string
			id   Intrinsic
		}{"eval", IntrinsicEval})
	}
	for _, c := range ctors {
		if err := value.DefinePropertyOrThrow(global, value.StringKey(c.name),
			value.DataDescriptor(value.ObjectValue(r.Intrinsic(c.id)), true, false, true)); err != nil {
			return err
		}
	}
	return nil
}

func argument(args []value.Value, i int) value.Value {
	if i < len(args) {
		return args[i]
	}
	return value.Undefined
}
