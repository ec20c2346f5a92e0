package vm

import (
	"escore/pkg/env"
	"escore/pkg/errors"
	"escore/pkg/value"
)

// ModuleDeclarationInstantiation hoists a module body's own declarations
// into its environment. Import bindings must already be in place; a local
// declaration that reuses an imported name is a SyntaxError.
func ModuleDeclarationInstantiation(r *Realm, moduleEnv *env.Environment, code Code) error {
	rec := moduleEnv.Record()
	varScoped, lexical := splitDeclarations(code.Declarations())

	imported := func(name string) bool {
		mr, ok := rec.(*env.ModuleRecord)
		return ok && mr.ImportBinding(name) != nil
	}
	for _, d := range code.Declarations() {
		if imported(d.Name) {
			return errors.NewSyntaxError("Identifier '%s' has already been declared", d.Name)
		}
	}

	declared := make(map[string]bool)
	for _, d := range varScoped {
		if declared[d.Name] {
			continue
		}
		declared[d.Name] = true
		if err := rec.CreateMutableBinding(d.Name, false); err != nil {
			return err
		}
		if err := rec.InitializeBinding(d.Name, value.Undefined); err != nil {
			return err
		}
	}
	if err := declareLexical(moduleEnv, lexical, func(name string) bool {
		return declared[name]
	}); err != nil {
		return err
	}
	for _, d := range functionsToInitialize(varScoped) {
		fo := r.InstantiateFunction(d.Function, moduleEnv)
		if err := rec.SetMutableBinding(d.Name, value.ObjectValue(fo), true); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteModule runs module top-level code in a fresh module context. The
// previously running context is restored on every exit path.
func (r *Realm) ExecuteModule(moduleEnv *env.Environment, code Code, module interface{}) (value.Value, error) {
	ctx := NewModuleContext(r, moduleEnv, code, module)
	r.world.PushContext(ctx)
	defer r.world.PopContext()
	return code.Execute(ctx)
}
