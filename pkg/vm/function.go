package vm

import (
	"escore/pkg/env"
	"escore/pkg/errors"
	"escore/pkg/value"
)

// FunctionKind distinguishes ordinary functions from generator and async
// bodies, which the generator subsystem drives.
type FunctionKind uint8

const (
	NormalFunction FunctionKind = iota
	GeneratorFunction
	AsyncFunction
	AsyncGeneratorFunction
)

// ThisMode selects how a call computes this.
type ThisMode uint8

const (
	// ThisModeLexical: arrow functions take this from the enclosing scope.
	ThisModeLexical ThisMode = iota
	// ThisModeStrict: the receiver is used as is.
	ThisModeStrict
	// ThisModeGlobal: nullish receivers become the global this and
	// primitives are wrapped.
	ThisModeGlobal
)

func (m ThisMode) String() string {
	switch m {
	case ThisModeLexical:
		return "lexical"
	case ThisModeStrict:
		return "strict"
	default:
		return "global"
	}
}

// ConstructorKind distinguishes base from derived class constructors.
type ConstructorKind uint8

const (
	ConstructorBase ConstructorKind = iota
	ConstructorDerived
)

// FunctionTemplate is the compiled, scope-independent part of a function.
// Instantiate closes it over a scope.
type FunctionTemplate struct {
	Name   string
	Code   Code
	Kind   FunctionKind
	Length int
	// Arrow functions have lexical this and are not constructors.
	Arrow bool
	// Constructor marks functions with a [[Construct]] behaviour.
	Constructor     bool
	ConstructorKind ConstructorKind
	// ClassConstructor functions throw when called without new.
	ClassConstructor bool
}

// ThisMode returns the this mode implied by the template.
func (t *FunctionTemplate) ThisMode() ThisMode {
	switch {
	case t.Arrow:
		return ThisModeLexical
	case t.Code.IsStrict():
		return ThisModeStrict
	default:
		return ThisModeGlobal
	}
}

// Function is a template closed over the environment it was created in.
type Function struct {
	template   *FunctionTemplate
	realm      *Realm
	scope      *env.Environment
	homeObject *value.Object
	object     *value.Object
}

// Object returns the function object.
func (f *Function) Object() *value.Object { return f.object }

// Realm returns the realm the function was created in.
func (f *Function) Realm() *Realm { return f.realm }

// Scope returns the captured environment.
func (f *Function) Scope() *env.Environment { return f.scope }

// Template returns the compiled template.
func (f *Function) Template() *FunctionTemplate { return f.template }

// SetHomeObject attaches the object used for super lookups (methods).
func (f *Function) SetHomeObject(home *value.Object) { f.homeObject = home }

// FunctionOf returns the Function behind a function object, or nil for
// built-ins and non-functions.
func FunctionOf(v value.Value) *Function {
	o := v.Object()
	if o == nil {
		return nil
	}
	f, _ := o.Callable().(*Function)
	return f
}

// InstantiateFunction creates a function object for t closed over scope.
func (r *Realm) InstantiateFunction(t *FunctionTemplate, scope *env.Environment) *value.Object {
	f := &Function{template: t, realm: r, scope: scope}
	var construct value.Constructor
	if t.Constructor && !t.Arrow {
		construct = f
	}
	obj := value.NewFunctionObject(r.Intrinsic(IntrinsicFunctionPrototype), f, construct)
	obj.DefineOwnProperty(value.StringKey("length"), value.DataDescriptor(value.Number(float64(t.Length)), false, false, true))
	obj.DefineOwnProperty(value.StringKey("name"), value.DataDescriptor(value.String(t.Name), false, false, true))
	if construct != nil {
		proto := value.NewObject(r.Intrinsic(IntrinsicObjectPrototype))
		proto.SetOwnNonEnumerable("constructor", value.ObjectValue(obj))
		obj.DefineOwnProperty(value.StringKey("prototype"), value.DataDescriptor(value.ObjectValue(proto), true, false, false))
	}
	f.object = obj
	return obj
}

// PrepareForOrdinaryCall builds the execution context of a call to f. The
// new function environment is both environments and the function anchor.
func PrepareForOrdinaryCall(f *Function, newTarget *value.Object) *ExecutionContext {
	localEnv := env.NewFunctionEnvironment(f.scope, env.FunctionEnvironmentOptions{
		Function:    f.object,
		HomeObject:  f.homeObject,
		NewTarget:   newTarget,
		LexicalThis: f.template.Arrow,
	})
	return &ExecutionContext{
		Kind:                FunctionContext,
		Realm:               f.realm,
		Code:                f.template.Code,
		VariableEnvironment: localEnv,
		LexicalEnvironment:  localEnv,
		FunctionEnvironment: localEnv,
		Function:            f,
		strict:              f.template.Code.IsStrict(),
	}
}

// OrdinaryCallBindThis binds the receiver of a call according to the
// function's this mode.
func OrdinaryCallBindThis(f *Function, ctx *ExecutionContext, thisArg value.Value) error {
	mode := f.template.ThisMode()
	if mode == ThisModeLexical {
		return nil
	}
	thisValue := thisArg
	if mode == ThisModeGlobal {
		if thisArg.IsNullish() {
			thisValue = value.ObjectValue(f.realm.GlobalThis)
		} else {
			obj, err := f.realm.ToObject(thisArg)
			if err != nil {
				return err
			}
			thisValue = value.ObjectValue(obj)
		}
	}
	return ctx.FunctionEnvironment.Record().(*env.FunctionRecord).BindThisValue(thisValue)
}

// Call implements [[Call]].
func (f *Function) Call(this value.Value, args []value.Value) (value.Value, error) {
	if f.template.ClassConstructor {
		return value.Undefined, errors.NewTypeError("Class constructor %s cannot be invoked without 'new'", f.template.Name)
	}
	ctx := PrepareForOrdinaryCall(f, nil)
	if err := OrdinaryCallBindThis(f, ctx, this); err != nil {
		return value.Undefined, err
	}
	w := f.realm.world
	w.PushContext(ctx)
	defer w.PopContext()
	if err := FunctionDeclarationInstantiation(ctx, args); err != nil {
		return value.Undefined, err
	}
	return f.template.Code.Execute(ctx)
}

// Construct implements [[Construct]].
func (f *Function) Construct(args []value.Value, newTarget *value.Object) (value.Value, error) {
	base := f.template.ConstructorKind == ConstructorBase
	var thisArg value.Value
	if base {
		proto, err := f.realm.prototypeFromConstructor(newTarget, IntrinsicObjectPrototype)
		if err != nil {
			return value.Undefined, err
		}
		thisArg = value.ObjectValue(value.NewObject(proto))
	}
	ctx := PrepareForOrdinaryCall(f, newTarget)
	if base {
		if err := OrdinaryCallBindThis(f, ctx, thisArg); err != nil {
			return value.Undefined, err
		}
	}
	w := f.realm.world
	w.PushContext(ctx)
	defer w.PopContext()
	if err := FunctionDeclarationInstantiation(ctx, args); err != nil {
		return value.Undefined, err
	}
	result, err := f.template.Code.Execute(ctx)
	if err != nil {
		return value.Undefined, err
	}
	if result.IsObject() {
		return result, nil
	}
	if base {
		return thisArg, nil
	}
	if !result.IsUndefined() {
		return value.Undefined, errors.NewTypeError("Derived constructors may only return object or undefined")
	}
	return ctx.FunctionEnvironment.Record().(*env.FunctionRecord).GetThisBinding()
}

// prototypeFromConstructor reads newTarget.prototype, falling back to the
// realm's intrinsic when it is not an object.
func (r *Realm) prototypeFromConstructor(newTarget *value.Object, fallback Intrinsic) (*value.Object, error) {
	if newTarget != nil {
		proto, err := value.Get(newTarget, value.StringKey("prototype"))
		if err != nil {
			return nil, err
		}
		if o := proto.Object(); o != nil {
			return o, nil
		}
	}
	return r.Intrinsic(fallback), nil
}

// FunctionDeclarationInstantiation binds parameters, the arguments object
// and the hoisted declarations of a function body.
func FunctionDeclarationInstantiation(ctx *ExecutionContext, args []value.Value) error {
	f := ctx.Function
	code := f.template.Code
	strict := code.IsStrict()
	varEnv := ctx.VariableEnvironment
	fr := varEnv.Record().(*env.FunctionRecord)

	varScoped, lexical := splitDeclarations(code.Declarations())
	params := code.ParameterNames()

	paramSet := make(map[string]bool, len(params))
	for i, name := range params {
		arg := value.Undefined
		if i < len(args) {
			arg = args[i]
		}
		if paramSet[name] {
			// Sloppy duplicate parameters: the last one wins.
			if err := fr.SetMutableBinding(name, arg, false); err != nil {
				return err
			}
			continue
		}
		paramSet[name] = true
		if err := fr.CreateMutableBinding(name, false); err != nil {
			return err
		}
		if err := fr.InitializeBinding(name, arg); err != nil {
			return err
		}
	}

	needsArguments := !f.template.Arrow && !paramSet["arguments"]
	for _, d := range code.Declarations() {
		if d.Name == "arguments" && (d.IsFunction() || d.IsLexical()) {
			needsArguments = false
		}
	}
	if needsArguments {
		argsObj := ctx.Realm.createArgumentsObject(f, args, strict)
		fr.Arguments = argsObj
		var err error
		if strict {
			err = fr.CreateImmutableBinding("arguments", false)
		} else {
			err = fr.CreateMutableBinding("arguments", false)
		}
		if err != nil {
			return err
		}
		if err := fr.InitializeBinding("arguments", value.ObjectValue(argsObj)); err != nil {
			return err
		}
	}

	for _, d := range varScoped {
		if has, _ := fr.HasBinding(d.Name); has {
			continue
		}
		if err := fr.CreateMutableBinding(d.Name, false); err != nil {
			return err
		}
		if err := fr.InitializeBinding(d.Name, value.Undefined); err != nil {
			return err
		}
	}

	lexEnv := varEnv
	if !strict {
		// Sloppy direct eval may add vars to varEnv; keep lexicals apart.
		lexEnv = env.NewDeclarativeEnvironment(varEnv)
	}
	ctx.LexicalEnvironment = lexEnv

	if err := declareLexical(lexEnv, lexical, func(name string) bool {
		return paramSet[name] || hasDeclaration(varScoped, name)
	}); err != nil {
		return err
	}

	for _, d := range functionsToInitialize(varScoped) {
		fo := ctx.Realm.InstantiateFunction(d.Function, lexEnv)
		if err := fr.SetMutableBinding(d.Name, value.ObjectValue(fo), false); err != nil {
			return err
		}
	}
	return nil
}

// declareLexical creates uninitialized bindings for lexical declarations,
// reporting duplicate names and names that conflict per conflicts.
func declareLexical(e *env.Environment, lexical []Declaration, conflicts func(string) bool) error {
	seen := make(map[string]bool, len(lexical))
	for _, d := range lexical {
		if seen[d.Name] || conflicts(d.Name) {
			return errors.NewSyntaxError("Identifier '%s' has already been declared", d.Name)
		}
		seen[d.Name] = true
		var err error
		if d.IsConstant() {
			err = e.Record().CreateImmutableBinding(d.Name, true)
		} else {
			err = e.Record().CreateMutableBinding(d.Name, false)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func hasDeclaration(decls []Declaration, name string) bool {
	for _, d := range decls {
		if d.Name == name {
			return true
		}
	}
	return false
}

// createArgumentsObject builds an unmapped arguments object.
func (r *Realm) createArgumentsObject(f *Function, args []value.Value, strict bool) *value.Object {
	obj := value.NewObject(r.Intrinsic(IntrinsicObjectPrototype))
	obj.Class = "Arguments"
	obj.SetOwnNonEnumerable("length", value.Number(float64(len(args))))
	for i, a := range args {
		obj.SetOwn(value.Number(float64(i)).String(), a)
	}
	if strict {
		thrower := value.ObjectValue(r.Intrinsic(IntrinsicThrowTypeError))
		obj.DefineAccessor(value.StringKey("callee"), thrower, thrower, false, false)
	} else {
		obj.SetOwnNonEnumerable("callee", value.ObjectValue(f.object))
	}
	return obj
}
