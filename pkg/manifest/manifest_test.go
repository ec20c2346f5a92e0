package manifest

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escore/pkg/errors"
	"escore/pkg/modules"
	"escore/pkg/source"
	"escore/pkg/value"
	"escore/pkg/vm"
)

func newRealm(t *testing.T, c *Compiler) *vm.Realm {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	r, err := vm.NewRealm(vm.NewWorld(vm.WithLogger(l)), vm.RealmOptions{EvalCompiler: c.CompileEval})
	require.NoError(t, err)
	return r
}

func runScript(t *testing.T, text string) (*Log, value.Value, error) {
	t.Helper()
	log := NewLog(nil)
	c := NewCompiler(log)
	code, err := c.CompileScript(source.NewSourceFile("script.yaml", "script.yaml", text))
	require.NoError(t, err)
	v, err := newRealm(t, c).EvaluateScript(code)
	return log, v, err
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(source.NewSourceFile("bad.yaml", "bad.yaml", "imprts: []\n"))
	require.Error(t, err)
	assert.True(t, errors.IsSyntaxError(err))
	assert.Contains(t, err.Error(), "bad.yaml")
}

func TestParseStatements(t *testing.T) {
	doc, err := Parse(source.NewSourceFile("s.yaml", "s.yaml", `body:
  - log: hello
  - init: {name: a, value: 1.5}
  - assign: {name: b, value: true}
  - assign: {name: c}
  - throw: ~
  - read: a
`))
	require.NoError(t, err)
	require.Len(t, doc.Body, 6)

	assert.Equal(t, OpLog, doc.Body[0].Op)
	assert.Equal(t, "hello", doc.Body[0].Text)
	assert.Equal(t, 2, doc.Body[0].Line)
	assert.Equal(t, 5, doc.Body[0].Col)

	assert.Equal(t, 1.5, doc.Body[1].Value.AsNumber())
	assert.True(t, doc.Body[2].Value.IsBoolean())
	assert.True(t, doc.Body[3].Value.IsUndefined())
	assert.True(t, doc.Body[4].Value.IsNull())
	assert.Equal(t, "a", doc.Body[5].Name)
}

func TestParseRejectsUnknownStatement(t *testing.T) {
	_, err := Parse(source.NewSourceFile("s.yaml", "s.yaml", "body:\n  - jump: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown statement "jump"`)
}

func TestParseEmptyDocument(t *testing.T) {
	doc, err := Parse(source.NewSourceFile("e.yaml", "e.yaml", "\n"))
	require.NoError(t, err)
	assert.Empty(t, doc.Body)
}

func TestCompileModuleEntries(t *testing.T) {
	c := NewCompiler(nil)
	ms, err := c.CompileModule(source.FromIdentity("lib/m.yaml", []byte(`imports:
  - from: ./b.yaml
    names: {x: y, default: d}
  - from: ./side.yaml
  - from: ./b.yaml
    namespace: ns
exports:
  - local: v
  - local: v
    as: w
  - from: ./c.yaml
    name: k
  - from: ./c.yaml
    star: true
  - from: ./d.yaml
    star: true
    as: dns
  - default: 7
declarations:
  - {name: v, kind: let}
`)))
	require.NoError(t, err)

	assert.Equal(t, []string{"./b.yaml", "./side.yaml", "./c.yaml", "./d.yaml"}, ms.Requested)
	assert.Equal(t, []modules.ImportEntry{
		{ModuleRequest: "./b.yaml", ImportName: "x", LocalName: "y"},
		{ModuleRequest: "./b.yaml", ImportName: "default", LocalName: "d"},
		{ModuleRequest: "./b.yaml", ImportName: modules.NamespaceImport, LocalName: "ns"},
	}, ms.Imports)
	assert.Equal(t, []modules.ExportEntry{
		{ExportName: "v", LocalName: "v"},
		{ExportName: "w", LocalName: "v"},
		{ExportName: "k", ModuleRequest: "./c.yaml", ImportName: "k"},
		{ModuleRequest: "./c.yaml", ImportName: modules.NamespaceImport},
		{ExportName: "dns", ModuleRequest: "./d.yaml", ImportName: modules.NamespaceImport},
		{ExportName: "default", LocalName: DefaultLocal},
	}, ms.Exports)

	code := ms.Code.(*Code)
	assert.True(t, code.IsStrict())
	assert.Equal(t, []vm.Declaration{
		{Name: "v", Kind: vm.DeclLet},
		{Name: DefaultLocal, Kind: vm.DeclConst},
	}, code.Declarations())
	require.Len(t, code.prologue, 1)
	assert.Equal(t, float64(7), code.prologue[0].Value.AsNumber())
}

func TestCompileModuleRejectsMalformedExport(t *testing.T) {
	c := NewCompiler(nil)
	_, err := c.CompileModule(source.FromIdentity("m.yaml", []byte("exports:\n  - as: x\n")))
	require.Error(t, err)
	assert.True(t, errors.IsSyntaxError(err))

	_, err = c.CompileModule(source.FromIdentity("m.yaml", []byte("imports:\n  - names: [x]\n")))
	require.Error(t, err)
	assert.True(t, errors.IsSyntaxError(err))
}

func TestCompileScriptRejectsModuleSyntax(t *testing.T) {
	c := NewCompiler(nil)
	_, err := c.CompileScript(source.NewSourceFile("s.yaml", "s.yaml", "imports:\n  - from: ./x.yaml\n"))
	assert.True(t, errors.IsSyntaxError(err))
	_, err = c.CompileScript(source.NewSourceFile("s.yaml", "s.yaml", "exports:\n  - local: x\n"))
	assert.True(t, errors.IsSyntaxError(err))
}

func TestInitOfUndeclaredNameIsPositioned(t *testing.T) {
	src := source.NewSourceFile("s.yaml", "s.yaml", `declarations:
  - {name: v, kind: var}
body:
  - log: first
  - init: {name: v, value: 1}
`)
	_, err := NewCompiler(nil).CompileScript(src)
	require.Error(t, err)
	var se *errors.SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 5, se.Pos().Line)
	assert.Same(t, src, se.Pos().Source)
}

func TestSecondInitIsSyntaxError(t *testing.T) {
	src := source.NewSourceFile("twice.yaml", "twice.yaml", `declarations:
  - {name: x, kind: let}
body:
  - init: {name: x, value: 1}
  - init: {name: x, value: 2}
`)
	_, err := NewCompiler(nil).CompileScript(src)
	require.Error(t, err)
	var se *errors.SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Message(), "'x' is initialized more than once")
	assert.Equal(t, 5, se.Pos().Line)
}

func TestFunctionBodyInitRunsPerCall(t *testing.T) {
	log, _, err := runScript(t, `declarations:
  - name: f
    kind: function
    declarations:
      - {name: local, kind: const}
    body:
      - init: {name: local, value: 1}
      - read: local
body:
  - call: f
  - call: f
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"local = 1", "local = 1"}, log.Lines())
}

func TestScriptBindingsAndFunctions(t *testing.T) {
	log, _, err := runScript(t, `declarations:
  - {name: counter, kind: var}
  - {name: fixed, kind: const}
  - name: f
    kind: function
    declarations:
      - {name: inner, kind: let}
    body:
      - read: inner
      - init: {name: inner, value: 3}
      - read: inner
      - read: counter
body:
  - read: fixed
  - init: {name: fixed, value: x}
  - assign: {name: counter, value: 5}
  - call: f
  - read: missing
`)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"fixed: ReferenceError",
		"inner: ReferenceError",
		"inner = 3",
		"counter = 5",
		"missing: ReferenceError",
	}, log.Lines())
}

func TestAssignToConstIsTypeError(t *testing.T) {
	_, _, err := runScript(t, `declarations:
  - {name: k, kind: const}
body:
  - init: {name: k, value: 1}
  - assign: {name: k, value: 2}
`)
	assert.True(t, errors.IsTypeError(err))
}

func TestThrowPropagatesException(t *testing.T) {
	log, _, err := runScript(t, "body:\n  - log: before\n  - throw: boom\n  - log: after\n")
	require.Error(t, err)
	var exc *value.Exception
	require.True(t, errors.As(err, &exc))
	assert.Equal(t, "boom", exc.Value.AsString())
	assert.Equal(t, []string{"before"}, log.Lines())
}

func TestDirectEval(t *testing.T) {
	log, v, err := runScript(t, `declarations:
  - {name: x, kind: var}
body:
  - assign: {name: x, value: 1}
  - eval: |
      declarations:
        - {name: y, kind: var}
      body:
        - assign: {name: x, value: 2}
        - assign: {name: y, value: 3}
        - read: x
  - read: x
  - read: y
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"x = 2", "x = 2", "y = 3"}, log.Lines())
	assert.Equal(t, float64(3), v.AsNumber())
}

func TestStrictEvalKeepsVarsLocal(t *testing.T) {
	log, _, err := runScript(t, `body:
  - eval: |
      strict: true
      declarations:
        - {name: z, kind: var}
      body:
        - assign: {name: z, value: 1}
        - read: z
  - read: z
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"z = 1", "z: ReferenceError"}, log.Lines())
}

func TestModuleGraph(t *testing.T) {
	log := NewLog(nil)
	c := NewCompiler(log)
	mem := modules.NewMemoryResolver("mem")
	mem.AddModule("main.yaml", `imports:
  - from: ./a.yaml
    names: [av]
  - from: ./b.yaml
    names: {default: greeting}
body:
  - read: av
  - read: greeting
`)
	mem.AddModule("a.yaml", `imports:
  - from: ./b.yaml
    names: [bv]
exports:
  - local: av
declarations:
  - {name: av, kind: let}
body:
  - init: {name: av, value: 1}
  - read: bv
`)
	mem.AddModule("b.yaml", `imports:
  - from: ./a.yaml
    names: [av]
exports:
  - local: bv
  - default: hello
declarations:
  - {name: bv, kind: const}
body:
  - read: av
  - init: {name: bv, value: 2}
`)
	loader, err := modules.NewLoader(newRealm(t, c), nil, modules.WithResolvers(mem), modules.WithCompiler(c))
	require.NoError(t, err)

	m, err := loader.Import(context.Background(), "./main.yaml")
	require.NoError(t, err)
	assert.Equal(t, modules.Evaluated, m.Status())
	assert.Equal(t, []string{
		"av: ReferenceError",
		"bv = 2",
		"av = 1",
		"greeting = hello",
	}, log.Lines())
	assert.Equal(t, []string{"a.yaml", "b.yaml"}, loader.Graph().Cycles())
}

func TestModuleImportOfMissingExport(t *testing.T) {
	c := NewCompiler(nil)
	mem := modules.NewMemoryResolver("mem")
	mem.AddModule("main.yaml", "imports:\n  - from: ./dep.yaml\n    names: [nope]\n")
	mem.AddModule("dep.yaml", "exports:\n  - default: 1\n")
	loader, err := modules.NewLoader(newRealm(t, c), nil, modules.WithResolvers(mem), modules.WithCompiler(c))
	require.NoError(t, err)

	_, err = loader.Import(context.Background(), "./main.yaml")
	require.Error(t, err)
	assert.True(t, errors.IsReferenceError(err), "got %v", err)
	assert.Contains(t, err.Error(), "does not provide an export named 'nope'")
}

func TestLogEcho(t *testing.T) {
	var nilLog *Log
	nilLog.Printf("dropped")
	assert.Nil(t, nilLog.Lines())

	var sb strings.Builder
	l := NewLog(&sb)
	l.Printf("a = %d", 1)
	l.Printf("b")
	assert.Equal(t, "a = 1\nb\n", sb.String())
	l.Reset()
	assert.Empty(t, l.Lines())
}
