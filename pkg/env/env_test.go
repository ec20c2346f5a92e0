package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escore/pkg/errors"
	"escore/pkg/value"
)

func newGlobal() *Environment {
	return NewGlobalEnvironment(value.NewObject(nil), nil)
}

func declareLet(t *testing.T, e *Environment, name string, v value.Value) {
	t.Helper()
	require.NoError(t, e.Record().CreateMutableBinding(name, false))
	require.NoError(t, e.Record().InitializeBinding(name, v))
}

func TestShadowing(t *testing.T) {
	global := newGlobal()
	outer := NewDeclarativeEnvironment(global)
	declareLet(t, outer, "x", value.Number(1))
	inner := NewDeclarativeEnvironment(outer)
	require.NoError(t, inner.Record().CreateMutableBinding("x", true))
	require.NoError(t, inner.Record().InitializeBinding("x", value.Number(2)))

	v, err := GetIdentifierValueOrThrow(inner, "x", true)
	require.NoError(t, err)
	assert.Equal(t, float64(2), v.AsNumber())

	ref, err := GetIdentifierReference(inner, "x", false)
	require.NoError(t, err)
	assert.Nil(t, ref.Binding(), "deletable bindings resolve by name")
	deleted, err := ref.Delete()
	require.NoError(t, err)
	assert.True(t, deleted)

	v, err = GetIdentifierValueOrThrow(inner, "x", true)
	require.NoError(t, err)
	assert.Equal(t, float64(1), v.AsNumber())

	ref, err = GetIdentifierReference(inner, "x", false)
	require.NoError(t, err)
	assert.NotNil(t, ref.Binding(), "non-deletable bindings use the fast path")
	deleted, err = ref.Delete()
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestTemporalDeadZone(t *testing.T) {
	e := NewDeclarativeEnvironment(newGlobal())
	r := e.Record()
	require.NoError(t, r.CreateImmutableBinding("c", true))

	_, err := r.GetBindingValue("c", false)
	assert.True(t, errors.IsReferenceError(err), "read before init: %v", err)
	err = r.SetMutableBinding("c", value.Number(1), false)
	assert.True(t, errors.IsReferenceError(err), "write before init: %v", err)

	ref, err := GetIdentifierReference(e, "c", true)
	require.NoError(t, err)
	_, err = ref.GetValue()
	assert.True(t, errors.IsReferenceError(err))

	require.NoError(t, r.InitializeBinding("c", value.Number(3)))
	err = ref.PutValue(value.Number(4))
	assert.True(t, errors.IsTypeError(err), "write after init: %v", err)
	v, err := ref.GetValue()
	require.NoError(t, err)
	assert.Equal(t, float64(3), v.AsNumber())
}

func TestSloppyImmutableWriteIgnored(t *testing.T) {
	r := NewDeclarativeRecord()
	require.NoError(t, r.CreateImmutableBinding("f", false))
	require.NoError(t, r.InitializeBinding("f", value.String("fn")))
	require.NoError(t, r.SetMutableBinding("f", value.String("other"), false))
	v, _ := r.GetBindingValue("f", false)
	assert.Equal(t, "fn", v.AsString())
	assert.True(t, errors.IsTypeError(r.SetMutableBinding("f", value.Null, true)))
}

func TestDeclarativeSetUnbound(t *testing.T) {
	r := NewDeclarativeRecord()
	assert.True(t, errors.IsReferenceError(r.SetMutableBinding("u", value.True, true)))
	require.NoError(t, r.SetMutableBinding("u", value.True, false))
	b := r.Binding("u")
	require.NotNil(t, b)
	assert.True(t, b.IsMutable())
	assert.True(t, b.IsDeletable())
	assert.True(t, b.IsInitialized())
}

func TestDuplicateDeclarationIsInvariant(t *testing.T) {
	r := NewDeclarativeRecord()
	require.NoError(t, r.CreateMutableBinding("x", false))
	assert.PanicsWithValue(t, &errors.InvariantError{Msg: `binding "x" already declared in this scope`}, func() {
		_ = r.CreateImmutableBinding("x", true)
	})
}

func TestThisSingleInitialization(t *testing.T) {
	fn := value.NewFunctionObject(nil, value.NativeFunc(nil), nil)
	e := NewFunctionEnvironment(newGlobal(), FunctionEnvironmentOptions{Function: fn, NewTarget: fn})
	fr := e.Record().(*FunctionRecord)

	assert.True(t, fr.HasThisBinding())
	_, err := fr.GetThisBinding()
	assert.True(t, errors.IsReferenceError(err))

	this := value.ObjectValue(value.NewObject(nil))
	require.NoError(t, fr.BindThisValue(this))
	assert.True(t, errors.IsReferenceError(fr.BindThisValue(this)))

	got, err := ResolveThisBinding(NewDeclarativeEnvironment(e))
	require.NoError(t, err)
	assert.True(t, value.SameValue(this, got))
	assert.True(t, value.SameValue(value.ObjectValue(fn), GetNewTarget(e)))
}

func TestLexicalThisDefersToOuter(t *testing.T) {
	global := newGlobal()
	arrow := NewFunctionEnvironment(global, FunctionEnvironmentOptions{LexicalThis: true})
	assert.False(t, arrow.Record().HasThisBinding())
	assert.Same(t, global, GetThisEnvironment(arrow))
	this, err := ResolveThisBinding(arrow)
	require.NoError(t, err)
	assert.Same(t, global.Record().(*GlobalRecord).GlobalObject(), this.AsObject())
}

func TestSuperBase(t *testing.T) {
	proto := value.NewObject(nil)
	home := value.NewObject(proto)

	plain := NewFunctionEnvironment(nil, FunctionEnvironmentOptions{})
	assert.False(t, plain.Record().HasSuperBinding())
	assert.True(t, plain.Record().(*FunctionRecord).GetSuperBase().IsNull())

	method := NewFunctionEnvironment(nil, FunctionEnvironmentOptions{HomeObject: home})
	assert.True(t, method.Record().HasSuperBinding())
	assert.Same(t, proto, GetSuperBase(method).AsObject())
}

func TestGlobalRedeclarationRules(t *testing.T) {
	globalObj := value.NewObject(nil)
	getter := value.NewNativeFunction(nil, "get", 0, func(value.Value, []value.Value) (value.Value, error) {
		return value.Undefined, nil
	})
	globalObj.DefineAccessor(value.StringKey("locked"), value.ObjectValue(getter), value.Undefined, false, false)
	globalObj.DefineOwnProperty(value.StringKey("loose"), value.DataDescriptor(value.Number(1), false, false, true))
	globalObj.DefineOwnProperty(value.StringKey("open"), value.DataDescriptor(value.Number(1), true, true, false))

	g := NewGlobalEnvironment(globalObj, nil).Record().(*GlobalRecord)

	ok, err := g.CanDeclareGlobalFunction("locked")
	require.NoError(t, err)
	assert.False(t, ok, "non-configurable accessor blocks function declarations")

	ok, _ = g.CanDeclareGlobalFunction("open")
	assert.True(t, ok, "writable enumerable data property may be replaced")
	ok, _ = g.CanDeclareGlobalFunction("loose")
	assert.True(t, ok)
	ok, _ = g.CanDeclareGlobalFunction("missing")
	assert.True(t, ok)

	require.NoError(t, g.CreateGlobalVarBinding("loose", false))
	p, _ := globalObj.OwnProperty(value.StringKey("loose"))
	assert.False(t, p.Enumerable)
	assert.False(t, p.Writable)
	assert.True(t, g.HasVarDeclaration("loose"))

	restricted, err := g.HasRestrictedGlobalProperty("open")
	require.NoError(t, err)
	assert.True(t, restricted)

	require.NoError(t, g.CreateGlobalVarBinding("v", true))
	require.NoError(t, g.CreateGlobalFunctionBinding("f", value.String("fn"), false))
	assert.Equal(t, []string{"loose", "v", "f"}, g.VarNames())

	globalObj.PreventExtensions()
	ok, _ = g.CanDeclareGlobalVar("nope")
	assert.False(t, ok)
	ok, _ = g.CanDeclareGlobalVar("v")
	assert.True(t, ok)
}

func TestGlobalLexicalAndObjectParts(t *testing.T) {
	genv := newGlobal()
	g := genv.Record().(*GlobalRecord)
	require.NoError(t, g.CreateImmutableBinding("k", true))
	assert.True(t, errors.IsTypeError(g.CreateMutableBinding("k", false)))
	require.NoError(t, g.InitializeBinding("k", value.Number(1)))
	assert.True(t, g.HasLexicalDeclaration("k"))
	assert.False(t, g.GlobalObject().HasOwn(value.StringKey("k")))

	require.NoError(t, g.CreateGlobalVarBinding("v", true))
	deleted, err := g.DeleteBinding("v")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, g.HasVarDeclaration("v"))

	deleted, err = g.DeleteBinding("never")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestUnresolvableReference(t *testing.T) {
	genv := newGlobal()
	block := NewDeclarativeEnvironment(genv)

	ref, err := GetIdentifierReference(block, "ghost", true)
	require.NoError(t, err)
	assert.True(t, ref.IsUnresolvable())
	_, err = ref.GetValue()
	assert.True(t, errors.IsReferenceError(err))
	assert.True(t, errors.IsReferenceError(ref.PutValue(value.True)))

	_, err = GetIdentifierValueOrThrow(block, "ghost", false)
	assert.True(t, errors.IsReferenceError(err))

	sloppy, err := GetIdentifierReference(block, "ghost", false)
	require.NoError(t, err)
	require.NoError(t, sloppy.PutValue(value.Number(9)))
	globalObj := genv.Record().(*GlobalRecord).GlobalObject()
	p, ok := globalObj.OwnProperty(value.StringKey("ghost"))
	require.True(t, ok)
	assert.Equal(t, float64(9), p.Value.AsNumber())
	assert.True(t, p.Configurable)
}

func TestWithUnscopables(t *testing.T) {
	genv := newGlobal()
	declareLet(t, genv, "hidden", value.String("outer"))

	obj := value.NewObject(nil)
	obj.SetOwn("hidden", value.String("inner"))
	obj.SetOwn("shown", value.String("inner"))
	unscopables := value.NewObject(nil)
	unscopables.SetOwn("hidden", value.True)
	obj.DefineOwnProperty(value.SymbolKey(value.SymbolUnscopables), value.DataDescriptor(value.ObjectValue(unscopables), false, false, true))

	with := NewObjectEnvironment(obj, genv, true)
	v, err := GetIdentifierValueOrThrow(with, "hidden", false)
	require.NoError(t, err)
	assert.Equal(t, "outer", v.AsString())

	ref, err := GetIdentifierReference(with, "shown", false)
	require.NoError(t, err)
	v, err = ref.GetValue()
	require.NoError(t, err)
	assert.Equal(t, "inner", v.AsString())
	assert.Same(t, obj, ref.ThisValue().AsObject())

	plain := NewObjectEnvironment(obj, genv, false)
	v, err = GetIdentifierValueOrThrow(plain, "hidden", false)
	require.NoError(t, err)
	assert.Equal(t, "inner", v.AsString())
	assert.Nil(t, plain.Record().WithBaseObject())
}

type fakeModule struct{ env *Environment }

func (m *fakeModule) Environment() *Environment { return m.env }

func TestImportBindingDelegatesTDZ(t *testing.T) {
	genv := newGlobal()
	target := &fakeModule{}
	importer := NewModuleEnvironment(genv)
	mr := importer.Record().(*ModuleRecord)
	mr.CreateImportBinding("x", target, "y")

	ib := mr.ImportBinding("x")
	assert.False(t, ib.IsInitialized())
	_, err := GetIdentifierValueOrThrow(importer, "x", true)
	assert.True(t, errors.IsReferenceError(err))

	target.env = NewModuleEnvironment(genv)
	require.NoError(t, target.env.Record().CreateMutableBinding("y", false))
	assert.True(t, ib.IsInitialized())
	_, err = GetIdentifierValueOrThrow(importer, "x", true)
	assert.True(t, errors.IsReferenceError(err), "TDZ of the target still applies")

	require.NoError(t, target.env.Record().InitializeBinding("y", value.Number(5)))
	v, err := GetIdentifierValueOrThrow(importer, "x", true)
	require.NoError(t, err)
	assert.Equal(t, float64(5), v.AsNumber())

	require.NoError(t, target.env.Record().SetMutableBinding("y", value.Number(6), true))
	v, _ = GetIdentifierValueOrThrow(importer, "x", true)
	assert.Equal(t, float64(6), v.AsNumber(), "imports are live")

	assert.True(t, errors.IsTypeError(mr.SetMutableBinding("x", value.Null, true)))

	this, err := ResolveThisBinding(importer)
	require.NoError(t, err)
	assert.True(t, this.IsUndefined())
}

func TestCloneCatch(t *testing.T) {
	genv := newGlobal()
	c := NewCatchEnvironment(genv)
	declareLet(t, c, "e", value.Number(1))
	clone := c.CloneCatch()
	assert.Same(t, genv, clone.Outer())

	require.NoError(t, clone.Record().SetMutableBinding("e", value.Number(2), true))
	orig, _ := c.Record().GetBindingValue("e", true)
	copied, _ := clone.Record().GetBindingValue("e", true)
	assert.Equal(t, float64(1), orig.AsNumber())
	assert.Equal(t, float64(2), copied.AsNumber())

	assert.Panics(t, func() { NewDeclarativeEnvironment(genv).CloneCatch() })
}
