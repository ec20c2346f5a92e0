package driver

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escore/pkg/modules"
	"escore/pkg/value"
	"escore/pkg/vm"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestFS(t *testing.T, files map[string]string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	for name, content := range files {
		require.NoError(t, util.WriteFile(fs, name, []byte(content), 0o644))
	}
	return fs
}

func newTestEngine(t *testing.T, cfg *Config, files map[string]string, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithFilesystem(newTestFS(t, files)), WithLogger(quietLogger())}, opts...)
	e, err := New(cfg, opts...)
	require.NoError(t, err)
	return e
}

type componentLog struct {
	instantiated [][]string
	evaluated    [][]string
}

func ids(component []modules.Module) []string {
	out := make([]string, len(component))
	for i, m := range component {
		out[i] = m.Identity()
	}
	return out
}

func (c *componentLog) ComponentInstantiated(m []modules.Module) {
	c.instantiated = append(c.instantiated, ids(m))
}

func (c *componentLog) ComponentEvaluated(m []modules.Module) {
	c.evaluated = append(c.evaluated, ids(m))
}

func getProperty(t *testing.T, o *value.Object, name string) value.Value {
	t.Helper()
	v, err := value.Get(o, value.StringKey(name))
	require.NoError(t, err)
	return v
}

func TestEngineImport(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Loader.BaseDir = "app"
	cfg.Loader.Aliases = []modules.AliasRule{{Pattern: "^@/(.*)$", Replacement: "/$1"}}
	obs := &componentLog{}
	e := newTestEngine(t, cfg, map[string]string{
		"app/main.yaml": `imports:
  - from: "@/lib/util"
    names: [greeting]
  - from: escore:path
    names: [sep]
  - from: host:counter
    names: [answer, next]
body:
  - read: greeting
  - read: sep
  - read: answer
  - call: next
  - call: next
`,
		"app/lib/util.yaml": `exports:
  - local: greeting
declarations:
  - {name: greeting, kind: const}
body:
  - init: {name: greeting, value: hi}
`,
	}, WithLinkObserver(obs))

	count := 0
	e.DeclareModule("host:counter", func(m *ModuleBuilder) {
		m.Const("answer", 42)
		m.Function("next", func() int { count++; return count })
	})

	m, err := e.Import(context.Background(), "./main.yaml")
	require.NoError(t, err)
	assert.Equal(t, "app/main.yaml", m.Identity())
	assert.Equal(t, modules.Evaluated, m.Status())
	assert.Equal(t, []string{"greeting = hi", "sep = /", "answer = 42"}, e.Log().Lines())
	assert.Equal(t, 2, count)

	assert.Equal(t, [][]string{{"app/lib/util.yaml"}, {"app/main.yaml"}}, obs.instantiated)
	assert.Equal(t, [][]string{{"app/lib/util.yaml"}, {"app/main.yaml"}}, obs.evaluated)
	assert.Equal(t, []string{"app/lib/util.yaml", "escore:path", "host:counter"}, e.Loader().Graph().Dependencies("app/main.yaml"))
}

func TestEngineNativeNamespace(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	m, err := e.Import(context.Background(), "escore:path")
	require.NoError(t, err)
	ns, err := e.Namespace(m)
	require.NoError(t, err)

	join := getProperty(t, ns, "join")
	require.True(t, join.IsCallable())
	v, err := value.Call(join, value.Undefined, value.String("a/b"), value.String("../c"))
	require.NoError(t, err)
	assert.Equal(t, "a/c", v.AsString())

	assert.Equal(t, "/", getProperty(t, ns, "sep").AsString())

	again, err := e.Import(context.Background(), "escore:path")
	require.NoError(t, err)
	assert.Same(t, m, again)
}

func TestEngineStringsModule(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	m, err := e.Import(context.Background(), "escore:strings")
	require.NoError(t, err)
	ns, err := e.Namespace(m)
	require.NoError(t, err)

	v, err := value.Call(getProperty(t, ns, "repeat"), value.Undefined, value.String("ab"), value.Number(3))
	require.NoError(t, err)
	assert.Equal(t, "ababab", v.AsString())

	unicode := getProperty(t, ns, "unicode")
	require.True(t, unicode.IsObject())
	assert.Equal(t, float64(0x10FFFF), getProperty(t, unicode.AsObject(), "maxRune").AsNumber())
}

func TestNativeFunctionErrorIsThrown(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	e.DeclareModule("host:fail", func(m *ModuleBuilder) {
		m.Function("boom", func(s string) (string, error) {
			if s == "" {
				return "", fmt.Errorf("nope")
			}
			return s + "!", nil
		})
	})
	m, err := e.Import(context.Background(), "host:fail")
	require.NoError(t, err)
	ns, err := e.Namespace(m)
	require.NoError(t, err)
	boom := getProperty(t, ns, "boom")

	v, err := value.Call(boom, value.Undefined, value.String("ok"))
	require.NoError(t, err)
	assert.Equal(t, "ok!", v.AsString())

	_, err = value.Call(boom, value.Undefined, value.String(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestDeclareModuleBuilderError(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	e.DeclareModule("host:bad", func(m *ModuleBuilder) {
		m.Const("chan", make(chan int))
	})
	_, err := e.Import(context.Background(), "host:bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported Go value")
}

func TestDefaultExportOfNativeModule(t *testing.T) {
	e := newTestEngine(t, nil, map[string]string{
		"main.yaml": `imports:
  - from: host:greeter
    names: {default: hello}
body:
  - read: hello
`,
	})
	e.DeclareModule("host:greeter", func(m *ModuleBuilder) {
		m.Default("hello world")
	})
	_, err := e.Import(context.Background(), "./main")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello = hello world"}, e.Log().Lines())
}

func TestBuiltinsCanBeDisabled(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	assert.Equal(t, []string{"escore:path", "escore:strings"}, e.NativeModules())

	cfg := DefaultConfig()
	cfg.Loader.NoBuiltins = true
	e = newTestEngine(t, cfg, nil)
	assert.Empty(t, e.NativeModules())
	_, err := e.Import(context.Background(), "escore:path")
	assert.Error(t, err)
}

func TestRunScriptFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Loader.BaseDir = "scripts"
	e := newTestEngine(t, cfg, map[string]string{
		"scripts/hello.yaml": `declarations:
  - {name: x, kind: var}
body:
  - assign: {name: x, value: 3}
  - read: x
`,
	})
	v, err := e.RunScriptFile("hello.yaml")
	require.NoError(t, err)
	assert.Equal(t, float64(3), v.AsNumber())
	assert.Equal(t, []string{"x = 3"}, e.Log().Lines())

	x := getProperty(t, e.Realm().GlobalObject, "x")
	assert.Equal(t, float64(3), x.AsNumber())

	_, err = e.RunScriptFile("missing.yaml")
	assert.Error(t, err)
}

func TestEvalPermission(t *testing.T) {
	files := map[string]string{"s.yaml": "body:\n  - eval: \"body: [{log: inside}]\"\n"}

	e := newTestEngine(t, nil, files)
	_, err := e.RunScriptFile("s.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"inside"}, e.Log().Lines())

	cfg := DefaultConfig()
	cfg.Realm.Permissions = []vm.Permission{}
	e = newTestEngine(t, cfg, files)
	_, err = e.RunScriptFile("s.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eval is not permitted")
}

func TestProcessGlobal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Realm.Process = true
	e := newTestEngine(t, cfg, nil, WithArgs([]string{"escore", "run"}))

	process := getProperty(t, e.Realm().GlobalObject, "process")
	require.True(t, process.IsObject())
	argv := getProperty(t, process.AsObject(), "argv").AsObject()
	assert.Equal(t, "run", getProperty(t, argv, "1").AsString())
	assert.Equal(t, float64(2), getProperty(t, argv, "length").AsNumber())

	var ticked []string
	tick := value.ObjectValue(value.NewNativeFunction(nil, "tick", 1, func(_ value.Value, args []value.Value) (value.Value, error) {
		ticked = append(ticked, args[0].AsString())
		return value.Undefined, nil
	}))
	_, err := value.Call(getProperty(t, process.AsObject(), "nextTick"), value.Undefined, tick, value.String("later"))
	require.NoError(t, err)
	assert.Empty(t, ticked)

	require.NoError(t, e.RunJobs(context.Background()))
	assert.Equal(t, []string{"later"}, ticked)

	_, err = value.Call(getProperty(t, process.AsObject(), "nextTick"), value.Undefined)
	assert.Error(t, err)
}

func TestNoProcessGlobalByDefault(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	has, err := value.HasProperty(e.Realm().GlobalObject, value.StringKey("process"))
	require.NoError(t, err)
	assert.False(t, has)
}
