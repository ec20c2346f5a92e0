package driver

import (
	"path"
	"strings"
)

// builtinModules are declared on every engine unless the config disables
// them.
var builtinModules = map[string]func(m *ModuleBuilder){
	"escore:path":    pathModule,
	"escore:strings": stringsModule,
}

// pathModule exposes slash-separated path manipulation, the same rules the
// module resolvers use for identities.
func pathModule(m *ModuleBuilder) {
	m.Const("sep", "/")
	m.Function("join", func(a, b string) string { return path.Join(a, b) })
	m.Function("base", path.Base)
	m.Function("dir", path.Dir)
	m.Function("ext", path.Ext)
	m.Function("clean", path.Clean)
	m.Function("isAbsolute", path.IsAbs)
}

func stringsModule(m *ModuleBuilder) {
	m.Function("toUpper", strings.ToUpper)
	m.Function("toLower", strings.ToLower)
	m.Function("trim", strings.TrimSpace)
	m.Function("repeat", func(s string, n int) string {
		if n < 0 {
			n = 0
		}
		return strings.Repeat(s, n)
	})
	m.Function("includes", strings.Contains)
	m.Namespace("unicode", func(ns *NamespaceBuilder) {
		ns.Function("isUpper", func(s string) bool { return s != "" && s == strings.ToUpper(s) && s != strings.ToLower(s) })
		ns.Const("maxRune", 0x10FFFF)
	})
}
