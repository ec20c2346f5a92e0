package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escore/pkg/errors"
	"escore/pkg/value"
	"escore/pkg/vm"
)

func TestCodeUnitOrdering(t *testing.T) {
	// U+10000 encodes as a surrogate pair starting at 0xD800, which sorts
	// before U+FF21 in UTF-16 even though its UTF-8 bytes sort after.
	assert.True(t, codeUnitLess("\U00010000", "\uFF21"))
	assert.False(t, codeUnitLess("\uFF21", "\U00010000"))
	assert.True(t, codeUnitLess("B", "a"))
	assert.True(t, codeUnitLess("a", "ab"))
	assert.False(t, codeUnitLess("a", "a"))
}

func TestModuleNamespace(t *testing.T) {
	g := newTestGraph(t)
	n := g.add(&ModuleSource{
		Identity: "n",
		Exports:  exportLocal("zeta", "alpha", "Beta"),
		Code: &vm.HostCode{Decls: lets("zeta", "alpha", "Beta"), Body: func(ctx *vm.ExecutionContext) (value.Value, error) {
			for _, name := range []string{"zeta", "alpha", "Beta"} {
				if err := initialize(ctx, name, value.String(name)); err != nil {
					return value.Undefined, err
				}
			}
			return value.Undefined, nil
		}},
	})
	require.NoError(t, g.linker.Instantiate(n))

	ns, err := GetModuleNamespace(n)
	require.NoError(t, err)
	again, err := GetModuleNamespace(n)
	require.NoError(t, err)
	assert.Same(t, ns, again)

	keys, err := value.OwnPropertyKeys(ns)
	require.NoError(t, err)
	require.Len(t, keys, 4)
	assert.Equal(t, "Beta", keys[0].Name())
	assert.Equal(t, "alpha", keys[1].Name())
	assert.Equal(t, "zeta", keys[2].Name())
	assert.True(t, keys[3].IsSymbol())

	tag, err := value.Get(ns, value.SymbolKey(value.SymbolToStringTag))
	require.NoError(t, err)
	assert.Equal(t, "Module", tag.AsString())
	assert.False(t, ns.IsExtensible())

	// Before evaluation the bindings are in their temporal dead zone.
	_, err = value.Get(ns, value.StringKey("alpha"))
	assert.True(t, errors.IsReferenceError(err))

	require.NoError(t, g.linker.Evaluate(n))
	v, err := value.Get(ns, value.StringKey("alpha"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", v.AsString())

	// Values are live.
	require.NoError(t, n.Environment().Record().SetMutableBinding("alpha", value.Number(7), true))
	v, err = value.Get(ns, value.StringKey("alpha"))
	require.NoError(t, err)
	assert.Equal(t, float64(7), v.AsNumber())

	desc, ok, err := value.GetOwnProperty(ns, value.StringKey("zeta"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, desc.Writable)
	assert.True(t, desc.Enumerable)
	assert.False(t, desc.Configurable)

	missing, err := value.Get(ns, value.StringKey("missing"))
	require.NoError(t, err)
	assert.True(t, missing.IsUndefined())
	has, err := value.HasProperty(ns, value.StringKey("missing"))
	require.NoError(t, err)
	assert.False(t, has)
	has, err = value.HasProperty(ns, value.StringKey("Beta"))
	require.NoError(t, err)
	assert.True(t, has)
}

func TestModuleNamespaceIsImmutable(t *testing.T) {
	g := newTestGraph(t)
	n := g.add(&ModuleSource{
		Identity: "n",
		Exports:  exportLocal("x"),
		Code: &vm.HostCode{Decls: lets("x"), Body: func(ctx *vm.ExecutionContext) (value.Value, error) {
			return value.Undefined, initialize(ctx, "x", value.Number(1))
		}},
	})
	require.NoError(t, g.linker.Instantiate(n))
	require.NoError(t, g.linker.Evaluate(n))
	ns, err := GetModuleNamespace(n)
	require.NoError(t, err)

	require.NoError(t, value.Set(ns, value.StringKey("x"), value.Number(2), false))
	err = value.Set(ns, value.StringKey("x"), value.Number(2), true)
	assert.True(t, errors.IsTypeError(err))
	err = value.Set(ns, value.StringKey("added"), value.Number(2), true)
	assert.True(t, errors.IsTypeError(err))
	v, err := value.Get(ns, value.StringKey("x"))
	require.NoError(t, err)
	assert.Equal(t, float64(1), v.AsNumber())

	deleted, err := value.DeleteProperty(ns, value.StringKey("x"))
	require.NoError(t, err)
	assert.False(t, deleted)
	deleted, err = value.DeleteProperty(ns, value.StringKey("absent"))
	require.NoError(t, err)
	assert.True(t, deleted)

	ok, err := value.DefineOwnProperty(ns, value.StringKey("x"), value.DataDescriptor(value.Number(1), true, true, false))
	require.NoError(t, err)
	assert.True(t, ok, "redefinition with the current value is allowed")
	ok, err = value.DefineOwnProperty(ns, value.StringKey("x"), value.DataDescriptor(value.Number(5), true, true, false))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = value.DefineOwnProperty(ns, value.StringKey("x"), value.DataDescriptor(value.Number(1), true, true, true))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestModuleNamespaceFailsOnAmbiguousName(t *testing.T) {
	g := newTestGraph(t)
	g.add(&ModuleSource{Identity: "x", Exports: exportLocal("v"), Code: &vm.HostCode{Decls: lets("v")}})
	g.add(&ModuleSource{Identity: "y", Exports: exportLocal("v"), Code: &vm.HostCode{Decls: lets("v")}})
	m := g.add(&ModuleSource{Identity: "m", Exports: []ExportEntry{
		{ModuleRequest: "x", ImportName: NamespaceImport},
		{ModuleRequest: "y", ImportName: NamespaceImport},
	}})
	require.NoError(t, g.linker.Instantiate(m))

	_, err := GetModuleNamespace(m)
	require.Error(t, err)
	assert.True(t, errors.IsSyntaxError(err))
}
