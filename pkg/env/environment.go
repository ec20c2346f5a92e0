package env

import (
	"github.com/emirpasic/gods/sets/linkedhashset"

	"escore/pkg/errors"
	"escore/pkg/value"
)

// Environment is one immutable node of the scope chain. Only the global
// environment has a nil outer. Closures keep their defining node, and so
// the whole chain above it, alive.
type Environment struct {
	outer  *Environment
	record Record
}

// Outer returns the enclosing environment, nil for the global environment.
func (e *Environment) Outer() *Environment { return e.outer }

// Record returns the environment record.
func (e *Environment) Record() Record { return e.record }

// Root returns the outermost environment of the chain.
func (e *Environment) Root() *Environment {
	for e.outer != nil {
		e = e.outer
	}
	return e
}

// NewDeclarativeEnvironment creates a block scope.
func NewDeclarativeEnvironment(outer *Environment) *Environment {
	return &Environment{outer: outer, record: NewDeclarativeRecord()}
}

// NewCatchEnvironment creates the declarative scope of a catch clause. Its
// record may be cloned with CloneCatch.
func NewCatchEnvironment(outer *Environment) *Environment {
	r := NewDeclarativeRecord()
	r.catch = true
	return &Environment{outer: outer, record: r}
}

// NewObjectEnvironment creates an object-backed scope. with selects
// with-statement semantics.
func NewObjectEnvironment(obj *value.Object, outer *Environment, with bool) *Environment {
	return &Environment{outer: outer, record: NewObjectRecord(obj, with)}
}

// FunctionEnvironmentOptions describes the activation a function
// environment is created for.
type FunctionEnvironmentOptions struct {
	Function   *value.Object
	HomeObject *value.Object
	// NewTarget is the constructor for [[Construct]] activations, nil for calls.
	NewTarget *value.Object
	// LexicalThis suppresses the this binding (arrow functions).
	LexicalThis bool
}

// NewFunctionEnvironment creates the top-level scope of a function
// activation. Unless the function is lexical-this, the this binding starts
// uninitialized and is bound by the caller with BindThisValue.
func NewFunctionEnvironment(outer *Environment, opts FunctionEnvironmentOptions) *Environment {
	r := &FunctionRecord{
		DeclarativeRecord: NewDeclarativeRecord(),
		function:          opts.Function,
		homeObject:        opts.HomeObject,
		newTarget:         value.Undefined,
		thisValue:         value.Undefined,
		thisStatus:        ThisUninitialized,
	}
	if opts.NewTarget != nil {
		r.newTarget = value.ObjectValue(opts.NewTarget)
	}
	if opts.LexicalThis {
		r.thisStatus = ThisLexical
	}
	return &Environment{outer: outer, record: r}
}

// NewGlobalEnvironment creates the root environment of a realm.
func NewGlobalEnvironment(globalObject, globalThis *value.Object) *Environment {
	if globalThis == nil {
		globalThis = globalObject
	}
	return &Environment{record: &GlobalRecord{
		object:      NewObjectRecord(globalObject, false),
		declarative: NewDeclarativeRecord(),
		thisValue:   globalThis,
		varNames:    linkedhashset.New(),
	}}
}

// NewModuleEnvironment creates the top-level scope of a module.
func NewModuleEnvironment(outer *Environment) *Environment {
	return &Environment{outer: outer, record: NewModuleRecord()}
}

// CloneCatch returns a sibling of a catch environment with a fresh copy of
// every binding.
func (e *Environment) CloneCatch() *Environment {
	r, ok := e.record.(*DeclarativeRecord)
	if !ok || !r.catch {
		errors.Invariant("CloneCatch on a non-catch environment")
	}
	return &Environment{outer: e.outer, record: r.clone()}
}

// GetThisEnvironment returns the nearest environment with a this binding.
// The global environment always has one.
func GetThisEnvironment(e *Environment) *Environment {
	for ; e != nil; e = e.outer {
		if e.record.HasThisBinding() {
			return e
		}
	}
	errors.Invariant("scope chain without a this binding")
	return nil
}

// ResolveThisBinding returns the this value visible from e.
func ResolveThisBinding(e *Environment) (value.Value, error) {
	binder, ok := GetThisEnvironment(e).record.(ThisBinder)
	if !ok {
		errors.Invariant("this environment does not implement ThisBinder")
	}
	return binder.GetThisBinding()
}

// GetNewTarget returns new.target as seen from e.
func GetNewTarget(e *Environment) value.Value {
	if fr, ok := GetThisEnvironment(e).record.(*FunctionRecord); ok {
		return fr.NewTarget()
	}
	return value.Undefined
}

// GetSuperBase returns the super base visible from e, or null.
func GetSuperBase(e *Environment) value.Value {
	if fr, ok := GetThisEnvironment(e).record.(*FunctionRecord); ok {
		return fr.GetSuperBase()
	}
	return value.Null
}
