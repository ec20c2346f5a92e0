package vm

import (
	"escore/pkg/env"
	"escore/pkg/errors"
	"escore/pkg/value"
)

// EvaluateScript runs top-level script code in the realm's global scope.
func (r *Realm) EvaluateScript(code Code) (value.Value, error) {
	ctx := NewScriptContext(r, code)
	r.world.PushContext(ctx)
	defer r.world.PopContext()
	if err := GlobalDeclarationInstantiation(r, code); err != nil {
		return value.Undefined, err
	}
	return code.Execute(ctx)
}

// GlobalDeclarationInstantiation hoists a script's declarations into the
// global environment. Conflicts are checked before anything is created,
// so a failing script leaves the global scope untouched.
func GlobalDeclarationInstantiation(r *Realm, code Code) error {
	g := r.GlobalEnv.Record().(*env.GlobalRecord)
	varScoped, lexical := splitDeclarations(code.Declarations())

	seenLex := make(map[string]bool, len(lexical))
	for _, d := range lexical {
		if seenLex[d.Name] || g.HasVarDeclaration(d.Name) || g.HasLexicalDeclaration(d.Name) {
			return errors.NewSyntaxError("Identifier '%s' has already been declared", d.Name)
		}
		restricted, err := g.HasRestrictedGlobalProperty(d.Name)
		if err != nil {
			return err
		}
		if restricted {
			return errors.NewSyntaxError("Cannot redeclare restricted global property '%s'", d.Name)
		}
		seenLex[d.Name] = true
	}
	for _, d := range varScoped {
		if g.HasLexicalDeclaration(d.Name) || seenLex[d.Name] {
			return errors.NewSyntaxError("Identifier '%s' has already been declared", d.Name)
		}
	}

	functions := functionsToInitialize(varScoped)
	declaredFunctions := make(map[string]bool, len(functions))
	for _, d := range functions {
		ok, err := g.CanDeclareGlobalFunction(d.Name)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NewTypeError("Cannot declare global function '%s'", d.Name)
		}
		declaredFunctions[d.Name] = true
	}

	var declaredVars []string
	seenVar := make(map[string]bool)
	for _, d := range varScoped {
		if d.IsFunction() || declaredFunctions[d.Name] || seenVar[d.Name] {
			continue
		}
		ok, err := g.CanDeclareGlobalVar(d.Name)
		if err != nil {
			return err
		}
		if !ok {
			return errors.NewTypeError("Cannot declare global variable '%s'", d.Name)
		}
		seenVar[d.Name] = true
		declaredVars = append(declaredVars, d.Name)
	}

	for _, d := range lexical {
		var err error
		if d.IsConstant() {
			err = g.CreateImmutableBinding(d.Name, true)
		} else {
			err = g.CreateMutableBinding(d.Name, false)
		}
		if err != nil {
			return err
		}
	}
	for _, d := range functions {
		fo := r.InstantiateFunction(d.Function, r.GlobalEnv)
		if err := g.CreateGlobalFunctionBinding(d.Name, value.ObjectValue(fo), false); err != nil {
			return err
		}
	}
	for _, name := range declaredVars {
		if err := g.CreateGlobalVarBinding(name, false); err != nil {
			return err
		}
	}
	return nil
}
