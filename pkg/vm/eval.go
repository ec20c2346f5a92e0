package vm

import (
	"escore/pkg/env"
	"escore/pkg/errors"
	"escore/pkg/value"
)

// PerformEval evaluates x as eval code. Direct eval runs in the running
// context's scope; indirect eval runs in the global scope. Non-string
// arguments are returned unchanged.
func (r *Realm) PerformEval(x value.Value, direct, strictCaller bool) (value.Value, error) {
	if !r.Permits(PermitEval) {
		return value.Undefined, errors.NewEvalError("eval is not permitted in this realm")
	}
	if !x.IsString() {
		return x, nil
	}
	source := x.AsString()

	hook := r.IndirectEvalHook
	if direct {
		hook = r.DirectEvalHook
	}
	if hook.IsCallable() {
		translated, err := value.Call(hook, value.Undefined, x)
		if err != nil {
			return value.Undefined, err
		}
		if source, err = value.ToString(translated); err != nil {
			return value.Undefined, err
		}
	}
	if r.evalCompiler == nil {
		return value.Undefined, errors.NewEvalError("no eval compiler is configured for this realm")
	}
	code, err := r.evalCompiler(source, direct && strictCaller)
	if err != nil {
		return value.Undefined, err
	}
	strict := code.IsStrict() || (direct && strictCaller)

	var caller *ExecutionContext
	varEnv, lexEnv := r.GlobalEnv, r.GlobalEnv
	if direct {
		if caller = r.world.RunningContext(); caller != nil {
			varEnv, lexEnv = caller.VariableEnvironment, caller.LexicalEnvironment
		}
	}
	// The eval's own let/const/class live in a fresh scope; strict eval
	// code also keeps its vars and functions there.
	lexEnv = env.NewDeclarativeEnvironment(lexEnv)
	if strict {
		varEnv = lexEnv
	}

	ctx := NewEvalContext(r, varEnv, lexEnv, caller, code, strict)
	r.world.PushContext(ctx)
	defer r.world.PopContext()
	if err := EvalDeclarationInstantiation(ctx, strict); err != nil {
		return value.Undefined, err
	}
	return code.Execute(ctx)
}

// EvalDeclarationInstantiation hoists eval code declarations. Sloppy eval
// vars land in the caller's variable environment and must not collide
// with lexical declarations between the eval scope and that environment.
func EvalDeclarationInstantiation(ctx *ExecutionContext, strict bool) error {
	varEnv, lexEnv := ctx.VariableEnvironment, ctx.LexicalEnvironment
	varScoped, lexical := splitDeclarations(ctx.Code.Declarations())
	global, varIsGlobal := varEnv.Record().(*env.GlobalRecord)

	if !strict {
		if varIsGlobal {
			for _, d := range varScoped {
				if global.HasLexicalDeclaration(d.Name) {
					return errors.NewSyntaxError("Identifier '%s' has already been declared", d.Name)
				}
			}
		}
		for e := lexEnv.Outer(); e != nil && e != varEnv; e = e.Outer() {
			if _, isObject := e.Record().(*env.ObjectRecord); isObject {
				continue
			}
			for _, d := range varScoped {
				has, err := e.Record().HasBinding(d.Name)
				if err != nil {
					return err
				}
				if has {
					return errors.NewSyntaxError("Identifier '%s' has already been declared", d.Name)
				}
			}
		}
	}

	functions := functionsToInitialize(varScoped)
	declaredFunctions := make(map[string]bool, len(functions))
	for _, d := range functions {
		if !strict && varIsGlobal {
			ok, err := global.CanDeclareGlobalFunction(d.Name)
			if err != nil {
				return err
			}
			if !ok {
				return errors.NewTypeError("Cannot declare global function '%s'", d.Name)
			}
		}
		declaredFunctions[d.Name] = true
	}

	var declaredVars []string
	seenVar := make(map[string]bool)
	for _, d := range varScoped {
		if d.IsFunction() || declaredFunctions[d.Name] || seenVar[d.Name] {
			continue
		}
		if !strict && varIsGlobal {
			ok, err := global.CanDeclareGlobalVar(d.Name)
			if err != nil {
				return err
			}
			if !ok {
				return errors.NewTypeError("Cannot declare global variable '%s'", d.Name)
			}
		}
		seenVar[d.Name] = true
		declaredVars = append(declaredVars, d.Name)
	}

	if err := declareLexical(lexEnv, lexical, func(name string) bool {
		return hasDeclaration(varScoped, name)
	}); err != nil {
		return err
	}

	varRec := varEnv.Record()
	for _, d := range functions {
		fo := value.ObjectValue(ctx.Realm.InstantiateFunction(d.Function, lexEnv))
		if varIsGlobal {
			if err := global.CreateGlobalFunctionBinding(d.Name, fo, true); err != nil {
				return err
			}
			continue
		}
		has, err := varRec.HasBinding(d.Name)
		if err != nil {
			return err
		}
		if !has {
			if err := varRec.CreateMutableBinding(d.Name, true); err != nil {
				return err
			}
			if err := varRec.InitializeBinding(d.Name, fo); err != nil {
				return err
			}
		} else if err := varRec.SetMutableBinding(d.Name, fo, false); err != nil {
			return err
		}
	}

	for _, name := range declaredVars {
		if varIsGlobal {
			if err := global.CreateGlobalVarBinding(name, true); err != nil {
				return err
			}
			continue
		}
		has, err := varRec.HasBinding(name)
		if err != nil {
			return err
		}
		if !has {
			if err := varRec.CreateMutableBinding(name, true); err != nil {
				return err
			}
			if err := varRec.InitializeBinding(name, value.Undefined); err != nil {
				return err
			}
		}
	}
	return nil
}
