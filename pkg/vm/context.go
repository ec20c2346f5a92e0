package vm

import (
	"escore/pkg/env"
	"escore/pkg/value"
)

// ContextKind records which recipe built an execution context.
type ContextKind uint8

const (
	ScriptContext ContextKind = iota
	ModuleContext
	FunctionContext
	EvalContext
)

func (k ContextKind) String() string {
	switch k {
	case ScriptContext:
		return "script"
	case ModuleContext:
		return "module"
	case FunctionContext:
		return "function"
	case EvalContext:
		return "eval"
	default:
		return "unknown"
	}
}

// ExecutionContext is the state of one running unit of code. Variable and
// lexical environments start out identical; block scopes replace
// LexicalEnvironment and never splice existing nodes.
type ExecutionContext struct {
	Kind  ContextKind
	Realm *Realm
	Code  Code

	VariableEnvironment *env.Environment
	LexicalEnvironment  *env.Environment
	// FunctionEnvironment anchors this, super, new.target and arguments
	// resolution. Nil for script and module contexts.
	FunctionEnvironment *env.Environment

	// Function is the active function, nil outside function code.
	Function *Function
	// ScriptOrModule is the module record for module contexts.
	ScriptOrModule interface{}
	// Generator is attached by the generator subsystem while the context
	// is parked between resumptions.
	Generator interface{}

	strict bool
}

// NewScriptContext builds the context for top-level script code: both
// environments are the realm's global environment.
func NewScriptContext(realm *Realm, code Code) *ExecutionContext {
	return &ExecutionContext{
		Kind:                ScriptContext,
		Realm:               realm,
		Code:                code,
		VariableEnvironment: realm.GlobalEnv,
		LexicalEnvironment:  realm.GlobalEnv,
		strict:              code.IsStrict(),
	}
}

// NewModuleContext builds the context for module top-level code: both
// environments are the module's own environment.
func NewModuleContext(realm *Realm, moduleEnv *env.Environment, code Code, module interface{}) *ExecutionContext {
	return &ExecutionContext{
		Kind:                ModuleContext,
		Realm:               realm,
		Code:                code,
		VariableEnvironment: moduleEnv,
		LexicalEnvironment:  moduleEnv,
		ScriptOrModule:      module,
		strict:              true,
	}
}

// NewEvalContext builds the context for eval code. The function anchor is
// inherited from the caller for direct eval.
func NewEvalContext(realm *Realm, varEnv, lexEnv *env.Environment, caller *ExecutionContext, code Code, strict bool) *ExecutionContext {
	ctx := &ExecutionContext{
		Kind:                EvalContext,
		Realm:               realm,
		Code:                code,
		VariableEnvironment: varEnv,
		LexicalEnvironment:  lexEnv,
		strict:              strict,
	}
	if caller != nil {
		ctx.FunctionEnvironment = caller.FunctionEnvironment
		ctx.Function = caller.Function
		ctx.ScriptOrModule = caller.ScriptOrModule
	}
	return ctx
}

// IsStrict reports whether the running code is strict mode code.
func (c *ExecutionContext) IsStrict() bool { return c.strict }

// PushDeclarativeScope enters a block scope and returns the scope to
// restore on exit.
func (c *ExecutionContext) PushDeclarativeScope() (saved *env.Environment) {
	saved = c.LexicalEnvironment
	c.LexicalEnvironment = env.NewDeclarativeEnvironment(saved)
	return saved
}

// PushCatchScope enters the scope of a catch clause.
func (c *ExecutionContext) PushCatchScope() (saved *env.Environment) {
	saved = c.LexicalEnvironment
	c.LexicalEnvironment = env.NewCatchEnvironment(saved)
	return saved
}

// PushWithScope enters the object scope of a with statement.
func (c *ExecutionContext) PushWithScope(obj *value.Object) (saved *env.Environment) {
	saved = c.LexicalEnvironment
	c.LexicalEnvironment = env.NewObjectEnvironment(obj, saved, true)
	return saved
}

// RestoreScope leaves scopes entered since saved was returned.
func (c *ExecutionContext) RestoreScope(saved *env.Environment) {
	c.LexicalEnvironment = saved
}

// ResolveBinding resolves name from the current lexical environment.
func (c *ExecutionContext) ResolveBinding(name string) (*env.Reference, error) {
	return env.GetIdentifierReference(c.LexicalEnvironment, name, c.strict)
}

// GetValue reads name, raising a ReferenceError when it is unbound.
func (c *ExecutionContext) GetValue(name string) (value.Value, error) {
	return env.GetIdentifierValueOrThrow(c.LexicalEnvironment, name, c.strict)
}

// PutValue assigns name through an identifier reference.
func (c *ExecutionContext) PutValue(name string, v value.Value) error {
	ref, err := c.ResolveBinding(name)
	if err != nil {
		return err
	}
	return ref.PutValue(v)
}

// ResolveThis returns the this value visible from the current scope.
func (c *ExecutionContext) ResolveThis() (value.Value, error) {
	return env.ResolveThisBinding(c.LexicalEnvironment)
}

// NewTarget returns new.target for the current scope.
func (c *ExecutionContext) NewTarget() value.Value {
	return env.GetNewTarget(c.LexicalEnvironment)
}

// World returns the world the context's realm belongs to.
func (c *ExecutionContext) World() *World { return c.Realm.world }
