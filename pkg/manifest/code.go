package manifest

import (
	"escore/pkg/errors"
	"escore/pkg/source"
	"escore/pkg/value"
	"escore/pkg/vm"
)

// Code is the executable form of a manifest body. It implements vm.Code
// for scripts, modules, functions and eval.
type Code struct {
	name   string
	strict bool
	params []string
	decls  []vm.Declaration
	// prologue runs before body; modules use it to initialize *default*.
	prologue []Statement
	body     []Statement
	file     *source.SourceFile
	log      *Log
}

func (c *Code) Name() string { return c.name }
func (c *Code) IsStrict() bool { return c.strict }
func (c *Code) ParameterNames() []string { return c.params }
func (c *Code) Declarations() []vm.Declaration { return c.decls }

// Execute runs the statements in order. The completion value is the value
// produced by the last read, call or eval statement.
func (c *Code) Execute(ctx *vm.ExecutionContext) (value.Value, error) {
	completion := value.Undefined
	for _, list := range [][]Statement{c.prologue, c.body} {
		for i := range list {
			v, produced, err := c.exec(ctx, &list[i])
			if err != nil {
				return value.Undefined, err
			}
			if produced {
				completion = v
			}
		}
	}
	return completion, nil
}

func (c *Code) exec(ctx *vm.ExecutionContext, s *Statement) (value.Value, bool, error) {
	switch s.Op {
	case OpLog:
		c.log.Printf("%s", s.Text)
	case OpInit:
		ref, err := ctx.ResolveBinding(s.Name)
		if err != nil {
			return value.Undefined, false, err
		}
		if ref.IsUnresolvable() {
			return value.Undefined, false, errors.NewReferenceError("%s is not defined", s.Name)
		}
		if err := ref.Base().Record().InitializeBinding(s.Name, s.Value); err != nil {
			return value.Undefined, false, err
		}
	case OpAssign:
		if err := ctx.PutValue(s.Name, s.Value); err != nil {
			return value.Undefined, false, err
		}
	case OpRead:
		v, err := ctx.GetValue(s.Name)
		if err != nil {
			kind := errors.KindOf(err)
			if kind == "" {
				return value.Undefined, false, err
			}
			c.log.Printf("%s: %s", s.Name, kind)
			return value.Undefined, false, nil
		}
		c.log.Printf("%s = %s", s.Name, v.String())
		return v, true, nil
	case OpCall:
		f, err := ctx.GetValue(s.Name)
		if err != nil {
			return value.Undefined, false, err
		}
		v, err := value.Call(f, value.Undefined)
		return v, err == nil, err
	case OpThrow:
		return value.Undefined, false, value.Throw(s.Value)
	case OpEval:
		v, err := ctx.Realm.PerformEval(value.String(s.Text), true, ctx.IsStrict())
		return v, err == nil, err
	default:
		errors.Invariant("unknown manifest statement %q", s.Op)
	}
	return value.Undefined, false, nil
}

// position locates s in the code's source file.
func (c *Code) position(s *Statement) errors.Position {
	return errors.Position{Line: s.Line, Column: s.Col, Source: c.file}
}
