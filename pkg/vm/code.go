package vm

import (
	"escore/pkg/value"
)

// DeclarationKind classifies a hoisted declaration.
type DeclarationKind uint8

const (
	DeclVar DeclarationKind = iota
	DeclFunction
	DeclLet
	DeclConst
	DeclClass
)

func (k DeclarationKind) String() string {
	switch k {
	case DeclVar:
		return "var"
	case DeclFunction:
		return "function"
	case DeclLet:
		return "let"
	case DeclConst:
		return "const"
	case DeclClass:
		return "class"
	default:
		return "unknown"
	}
}

// Declaration is one name hoisted to the top of a script, module,
// function or eval body.
type Declaration struct {
	Name string
	Kind DeclarationKind
	// Function is instantiated for DeclFunction entries.
	Function *FunctionTemplate
}

// IsLexical reports whether the declaration is block scoped.
func (d Declaration) IsLexical() bool {
	return d.Kind == DeclLet || d.Kind == DeclConst || d.Kind == DeclClass
}

func (d Declaration) IsConstant() bool { return d.Kind == DeclConst }
func (d Declaration) IsFunction() bool { return d.Kind == DeclFunction }

// IsGenerator reports whether a function declaration declares a generator.
func (d Declaration) IsGenerator() bool {
	return d.Function != nil && (d.Function.Kind == GeneratorFunction || d.Function.Kind == AsyncGeneratorFunction)
}

// Code is a compiled script, module, function or eval body. The compiler
// producing it is outside the engine core.
type Code interface {
	// Name is used in diagnostics.
	Name() string
	IsStrict() bool
	// ParameterNames lists bound parameter names in order (function code only).
	ParameterNames() []string
	// Declarations lists the var-scoped and lexically scoped declarations of
	// the body's top level.
	Declarations() []Declaration
	// Execute runs the body in ctx, returning its completion value.
	Execute(ctx *ExecutionContext) (value.Value, error)
}

// HostCode implements Code with a Go closure. Embedders use it for host
// functions that need a full activation, and tests use it in place of
// compiled code.
type HostCode struct {
	Label  string
	Strict bool
	Params []string
	Decls  []Declaration
	Body   func(ctx *ExecutionContext) (value.Value, error)
}

func (c *HostCode) Name() string { return c.Label }
func (c *HostCode) IsStrict() bool { return c.Strict }
func (c *HostCode) ParameterNames() []string { return c.Params }
func (c *HostCode) Declarations() []Declaration { return c.Decls }

func (c *HostCode) Execute(ctx *ExecutionContext) (value.Value, error) {
	if c.Body == nil {
		return value.Undefined, nil
	}
	return c.Body(ctx)
}

// splitDeclarations separates var-scoped from lexically scoped declarations.
func splitDeclarations(decls []Declaration) (varScoped, lexical []Declaration) {
	for _, d := range decls {
		if d.IsLexical() {
			lexical = append(lexical, d)
		} else {
			varScoped = append(varScoped, d)
		}
	}
	return varScoped, lexical
}

// functionsToInitialize returns the function declarations that win: when a
// name is declared more than once the last declaration is used. The
// result keeps the order of the winning declarations.
func functionsToInitialize(varScoped []Declaration) []Declaration {
	seen := make(map[string]bool)
	var reversed []Declaration
	for i := len(varScoped) - 1; i >= 0; i-- {
		d := varScoped[i]
		if !d.IsFunction() || seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		reversed = append(reversed, d)
	}
	out := make([]Declaration, len(reversed))
	for i, d := range reversed {
		out[len(reversed)-1-i] = d
	}
	return out
}
