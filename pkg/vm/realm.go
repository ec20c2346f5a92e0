package vm

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"escore/pkg/env"
	"escore/pkg/errors"
	"escore/pkg/runtime"
	"escore/pkg/value"
)

// Intrinsic names a built-in object of a realm.
type Intrinsic int

const (
	IntrinsicObjectPrototype Intrinsic = iota
	IntrinsicFunctionPrototype
	IntrinsicObject
	IntrinsicFunction
	IntrinsicThrowTypeError
	IntrinsicErrorPrototype
	IntrinsicError
	IntrinsicTypeErrorPrototype
	IntrinsicTypeError
	IntrinsicReferenceErrorPrototype
	IntrinsicReferenceError
	IntrinsicSyntaxErrorPrototype
	IntrinsicSyntaxError
	IntrinsicRangeErrorPrototype
	IntrinsicRangeError
	IntrinsicEvalErrorPrototype
	IntrinsicEvalError
	IntrinsicBooleanPrototype
	IntrinsicNumberPrototype
	IntrinsicStringPrototype
	IntrinsicSymbolPrototype
	IntrinsicEval

	intrinsicCount
)

var intrinsicNames = [intrinsicCount]string{
	IntrinsicObjectPrototype:         "%Object.prototype%",
	IntrinsicFunctionPrototype:       "%Function.prototype%",
	IntrinsicObject:                  "%Object%",
	IntrinsicFunction:                "%Function%",
	IntrinsicThrowTypeError:          "%ThrowTypeError%",
	IntrinsicErrorPrototype:          "%Error.prototype%",
	IntrinsicError:                   "%Error%",
	IntrinsicTypeErrorPrototype:      "%TypeError.prototype%",
	IntrinsicTypeError:               "%TypeError%",
	IntrinsicReferenceErrorPrototype: "%ReferenceError.prototype%",
	IntrinsicReferenceError:          "%ReferenceError%",
	IntrinsicSyntaxErrorPrototype:    "%SyntaxError.prototype%",
	IntrinsicSyntaxError:             "%SyntaxError%",
	IntrinsicRangeErrorPrototype:     "%RangeError.prototype%",
	IntrinsicRangeError:              "%RangeError%",
	IntrinsicEvalErrorPrototype:      "%EvalError.prototype%",
	IntrinsicEvalError:               "%EvalError%",
	IntrinsicBooleanPrototype:        "%Boolean.prototype%",
	IntrinsicNumberPrototype:         "%Number.prototype%",
	IntrinsicStringPrototype:         "%String.prototype%",
	IntrinsicSymbolPrototype:         "%Symbol.prototype%",
	IntrinsicEval:                    "%eval%",
}

func (i Intrinsic) String() string {
	if i < 0 || i >= intrinsicCount {
		return fmt.Sprintf("Intrinsic(%d)", int(i))
	}
	return intrinsicNames[i]
}

// errorPrototypes maps error kinds to their intrinsic prototypes.
var errorPrototypes = map[string]Intrinsic{
	"Error":          IntrinsicErrorPrototype,
	"TypeError":      IntrinsicTypeErrorPrototype,
	"ReferenceError": IntrinsicReferenceErrorPrototype,
	"SyntaxError":    IntrinsicSyntaxErrorPrototype,
	"RangeError":     IntrinsicRangeErrorPrototype,
	"EvalError":      IntrinsicEvalErrorPrototype,
}

// Permission gates realm capabilities.
type Permission string

const (
	// PermitEval allows direct and indirect eval.
	PermitEval Permission = "eval"
)

// EvalCompiler turns eval source text into Code. strict is true when the
// caller is strict mode code making a direct eval.
type EvalCompiler func(source string, strict bool) (Code, error)

// RealmOptions configures a new realm.
type RealmOptions struct {
	// GlobalObject replaces the ordinary global object (sandboxing).
	GlobalObject *value.Object
	// GlobalThis is the global this value when it differs from GlobalObject.
	GlobalThis *value.Object
	// Permissions defaults to {eval}.
	Permissions []Permission
	// Initializers run after the built-in intrinsic batches of the same
	// or lower priority.
	Initializers []IntrinsicInitializer
	// EvalCompiler compiles eval code; without one eval raises an EvalError.
	EvalCompiler EvalCompiler
	// DirectEvalHook and IndirectEvalHook, when callable, translate the
	// source text before it is compiled.
	DirectEvalHook   value.Value
	IndirectEvalHook value.Value
}

// Realm is one global object graph: intrinsics, global object, global
// environment and per-realm hooks.
type Realm struct {
	id    int
	world *World

	GlobalObject *value.Object
	GlobalThis   *value.Object
	GlobalEnv    *env.Environment

	intrinsics  [intrinsicCount]*value.Object
	templates   map[interface{}]*value.Object
	permissions map[Permission]bool

	evalCompiler     EvalCompiler
	DirectEvalHook   value.Value
	IndirectEvalHook value.Value

	logger logrus.FieldLogger
}

// NewRealm creates a realm in w. Construction is two-phase: the global
// object, global this and global environment shells are allocated first,
// then the intrinsics are populated in priority batches.
func NewRealm(w *World, opts RealmOptions) (*Realm, error) {
	r := &Realm{
		id:               w.nextRealmID(),
		world:            w,
		templates:        make(map[interface{}]*value.Object),
		permissions:      make(map[Permission]bool),
		evalCompiler:     opts.EvalCompiler,
		DirectEvalHook:   opts.DirectEvalHook,
		IndirectEvalHook: opts.IndirectEvalHook,
	}
	r.logger = w.logger.WithField("realm", r.id)

	perms := opts.Permissions
	if perms == nil {
		perms = []Permission{PermitEval}
	}
	for _, p := range perms {
		r.permissions[p] = true
	}

	// Phase 1: shells.
	r.GlobalObject = opts.GlobalObject
	if r.GlobalObject == nil {
		r.GlobalObject = value.NewObject(nil)
		r.GlobalObject.Class = "global"
	}
	r.GlobalThis = opts.GlobalThis
	if r.GlobalThis == nil {
		r.GlobalThis = r.GlobalObject
	}
	r.GlobalEnv = env.NewGlobalEnvironment(r.GlobalObject, r.GlobalThis)

	// Phase 2: intrinsics.
	if err := r.initializeIntrinsics(opts.Initializers); err != nil {
		return nil, err
	}
	w.addRealm(r)
	return r, nil
}

// ID returns the unique identifier for this realm.
func (r *Realm) ID() int { return r.id }

// World returns the world the realm belongs to.
func (r *Realm) World() *World { return r.world }

// Intrinsic returns a built-in object, nil before it is populated.
func (r *Realm) Intrinsic(i Intrinsic) *value.Object {
	return r.intrinsics[i]
}

// SetIntrinsic installs a built-in object. Initializers call it.
func (r *Realm) SetIntrinsic(i Intrinsic, obj *value.Object) {
	if r.intrinsics[i] != nil {
		errors.Invariant("intrinsic %s installed twice", i)
	}
	r.intrinsics[i] = obj
}

// Permits reports whether the realm grants p.
func (r *Realm) Permits(p Permission) bool { return r.permissions[p] }

// Logger returns the realm's logger.
func (r *Realm) Logger() logrus.FieldLogger { return r.logger }

// EnqueueJob schedules job on one of the world's queues.
func (r *Realm) EnqueueJob(kind QueueKind, job runtime.Job) {
	r.world.EnqueueJob(kind, job)
}

// TemplateObject returns the cached template object for site, building it
// on first use.
func (r *Realm) TemplateObject(site interface{}, build func() *value.Object) *value.Object {
	if obj, ok := r.templates[site]; ok {
		return obj
	}
	obj := build()
	r.templates[site] = obj
	return obj
}

// ToObject implements the ToObject abstract operation.
func (r *Realm) ToObject(v value.Value) (*value.Object, error) {
	var proto Intrinsic
	class := ""
	switch v.Type() {
	case value.TypeObject:
		return v.AsObject(), nil
	case value.TypeUndefined, value.TypeNull:
		return nil, errors.NewTypeError("Cannot convert undefined or null to object")
	case value.TypeBoolean:
		proto, class = IntrinsicBooleanPrototype, "Boolean"
	case value.TypeNumber:
		proto, class = IntrinsicNumberPrototype, "Number"
	case value.TypeString:
		proto, class = IntrinsicStringPrototype, "String"
	case value.TypeSymbol:
		proto, class = IntrinsicSymbolPrototype, "Symbol"
	}
	obj := value.NewObject(r.Intrinsic(proto))
	obj.Class = class
	obj.Internal = v
	if v.IsString() {
		obj.DefineOwnProperty(value.StringKey("length"),
			value.DataDescriptor(value.Number(float64(len([]rune(v.AsString())))), false, false, false))
	}
	return obj, nil
}

// PrototypeFor returns the prototype used for property lookups on v.
func (r *Realm) PrototypeFor(v value.Value) *value.Object {
	switch v.Type() {
	case value.TypeObject:
		return v.AsObject()
	case value.TypeBoolean:
		return r.Intrinsic(IntrinsicBooleanPrototype)
	case value.TypeNumber:
		return r.Intrinsic(IntrinsicNumberPrototype)
	case value.TypeString:
		return r.Intrinsic(IntrinsicStringPrototype)
	case value.TypeSymbol:
		return r.Intrinsic(IntrinsicSymbolPrototype)
	default:
		return nil
	}
}

// NewError creates an error object of the given kind ("TypeError", ...).
func (r *Realm) NewError(kind, message string) *value.Object {
	protoID, ok := errorPrototypes[kind]
	if !ok {
		protoID = IntrinsicErrorPrototype
	}
	obj := value.NewObject(r.Intrinsic(protoID))
	obj.Class = "Error"
	if message != "" {
		obj.SetOwnNonEnumerable("message", value.String(message))
	}
	return obj
}

// ErrorValue converts a Go error into the language value a catch clause
// observes. Thrown values are unwrapped; engine errors become error
// objects of the matching kind; anything else becomes a plain Error.
func (r *Realm) ErrorValue(err error) value.Value {
	var exc *value.Exception
	if errors.As(err, &exc) {
		return exc.Value
	}
	var ee errors.EngineError
	if errors.As(err, &ee) {
		obj := r.NewError(ee.Kind(), ee.Message())
		obj.Internal = err
		return value.ObjectValue(obj)
	}
	obj := r.NewError("Error", err.Error())
	obj.Internal = err
	return value.ObjectValue(obj)
}

// Throw converts err into an *value.Exception carrying its language value,
// so that identity is preserved across rethrows.
func (r *Realm) Throw(err error) *value.Exception {
	var exc *value.Exception
	if errors.As(err, &exc) {
		return exc
	}
	return value.Throw(r.ErrorValue(err))
}
