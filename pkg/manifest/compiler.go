package manifest

import (

	"github.com/emirpasic/gods/sets/linkedhashset"

	"escore/pkg/errors"
	"escore/pkg/modules"
	"escore/pkg/source"
	"escore/pkg/vm"
)

// DefaultLocal is the local binding behind `export default <value>`.
const DefaultLocal = "*default*"

// Compiler compiles manifest documents for the module loader, the script
// runner and eval. All code it produces writes to Log.
type Compiler struct {
	Log *Log
}

// NewCompiler creates a compiler writing to log.
func NewCompiler(log *Log) *Compiler {
	return &Compiler{Log: log}
}

var _ modules.Compiler = (*Compiler)(nil)

// CompileModule compiles src as module code. Module code is always strict.
func (c *Compiler) CompileModule(src *source.SourceFile) (*modules.ModuleSource, error) {
	doc, err := Parse(src)
	if err != nil {
		return nil, err
	}
	ms := &modules.ModuleSource{Identity: src.Identity, File: src}
	requested := linkedhashset.New()

	for i, in := range doc.Imports {
		if in.From == "" {
			return nil, errors.NewSyntaxError("import %d in %s has no module specifier", i+1, src.DisplayPath())
		}
		requested.Add(in.From)
		for _, n := range in.Names {
			ms.Imports = append(ms.Imports, modules.ImportEntry{ModuleRequest: in.From, ImportName: n.Imported, LocalName: n.Local})
		}
		if in.Namespace != "" {
			ms.Imports = append(ms.Imports, modules.ImportEntry{ModuleRequest: in.From, ImportName: modules.NamespaceImport, LocalName: in.Namespace})
		}
	}

	var prologue []Statement
	var extra []vm.Declaration
	for i, ex := range doc.Exports {
		entry, err := exportEntry(ex)
		if err != nil {
			return nil, errors.NewSyntaxError("export %d in %s: %v", i+1, src.DisplayPath(), err)
		}
		if ex.Default != nil {
			v, err := literal(ex.Default)
			if err != nil {
				return nil, errors.NewSyntaxError("export %d in %s: %v", i+1, src.DisplayPath(), err)
			}
			extra = append(extra, vm.Declaration{Name: DefaultLocal, Kind: vm.DeclConst})
			prologue = append(prologue, Statement{Op: OpInit, Name: DefaultLocal, Value: v, Line: ex.Default.Line, Col: ex.Default.Column})
		}
		if entry.ModuleRequest != "" {
			requested.Add(entry.ModuleRequest)
		}
		ms.Exports = append(ms.Exports, entry)
	}

	code, err := c.compile(src, src.Identity, true, nil, doc.Declarations, doc.Body)
	if err != nil {
		return nil, err
	}
	code.decls = append(code.decls, extra...)
	code.prologue = prologue
	ms.Code = code

	for _, spec := range requested.Values() {
		ms.Requested = append(ms.Requested, spec.(string))
	}
	return ms, nil
}

func exportEntry(ex ExportSpec) (modules.ExportEntry, error) {
	switch {
	case ex.Default != nil:
		if ex.Local != "" || ex.From != "" {
			return modules.ExportEntry{}, errors.Errorf("a default export takes no other fields")
		}
		return modules.ExportEntry{ExportName: "default", LocalName: DefaultLocal}, nil
	case ex.Local != "":
		if ex.From != "" {
			return modules.ExportEntry{}, errors.Errorf("local and from are exclusive")
		}
		return modules.ExportEntry{ExportName: orDefault(ex.As, ex.Local), LocalName: ex.Local}, nil
	case ex.From != "" && ex.Star:
		return modules.ExportEntry{ExportName: ex.As, ModuleRequest: ex.From, ImportName: modules.NamespaceImport}, nil
	case ex.From != "" && ex.Name != "":
		return modules.ExportEntry{ExportName: orDefault(ex.As, ex.Name), ModuleRequest: ex.From, ImportName: ex.Name}, nil
	default:
		return modules.ExportEntry{}, errors.Errorf("needs local, default, or from with name or star")
	}
}

func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}

// CompileScript compiles src as global script code.
func (c *Compiler) CompileScript(src *source.SourceFile) (vm.Code, error) {
	doc, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if len(doc.Imports) > 0 {
		return nil, errors.NewSyntaxError("Cannot use import statement outside a module")
	}
	if len(doc.Exports) > 0 {
		return nil, errors.NewSyntaxError("Unexpected token 'export'")
	}
	return c.compile(src, src.DisplayPath(), doc.Strict, nil, doc.Declarations, doc.Body)
}

// CompileEval compiles eval source text. It has the shape of
// vm.EvalCompiler.
func (c *Compiler) CompileEval(text string, strict bool) (vm.Code, error) {
	src := source.NewEvalSource(text)
	doc, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if len(doc.Imports) > 0 || len(doc.Exports) > 0 {
		return nil, errors.NewSyntaxError("Cannot use import or export in eval code")
	}
	return c.compile(src, "eval", strict || doc.Strict, nil, doc.Declarations, doc.Body)
}

func (c *Compiler) compile(src *source.SourceFile, name string, strict bool, params []string, decls []DeclSpec, body []Statement) (*Code, error) {
	code := &Code{name: name, strict: strict, params: params, body: body, file: src, log: c.Log}
	lexical := make(map[string]bool)
	for _, d := range decls {
		decl, err := c.declaration(src, strict, d)
		if err != nil {
			return nil, err
		}
		if decl.IsLexical() {
			lexical[decl.Name] = true
		}
		code.decls = append(code.decls, decl)
	}
	initialized := make(map[string]bool)
	for i := range body {
		s := &body[i]
		if s.Op != OpInit {
			continue
		}
		if !lexical[s.Name] {
			return nil, errors.NewSyntaxError("'%s' is not a lexical declaration of this body", s.Name).At(code.position(s))
		}
		if initialized[s.Name] {
			return nil, errors.NewSyntaxError("'%s' is initialized more than once", s.Name).At(code.position(s))
		}
		initialized[s.Name] = true
	}
	return code, nil
}

func (c *Compiler) declaration(src *source.SourceFile, strict bool, d DeclSpec) (vm.Declaration, error) {
	if d.Name == "" {
		return vm.Declaration{}, errors.NewSyntaxError("declaration without a name in %s", src.DisplayPath())
	}
	switch d.Kind {
	case "var", "":
		return vm.Declaration{Name: d.Name, Kind: vm.DeclVar}, nil
	case "let":
		return vm.Declaration{Name: d.Name, Kind: vm.DeclLet}, nil
	case "const":
		return vm.Declaration{Name: d.Name, Kind: vm.DeclConst}, nil
	case "class":
		return vm.Declaration{Name: d.Name, Kind: vm.DeclClass}, nil
	case "function":
		body, err := c.compile(src, d.Name, strict, d.Params, d.Declarations, d.Body)
		if err != nil {
			return vm.Declaration{}, err
		}
		fn := &vm.FunctionTemplate{
			Name:        d.Name,
			Code:        body,
			Kind:        vm.NormalFunction,
			Length:      len(d.Params),
			Arrow:       d.Arrow,
			Constructor: !d.Arrow,
		}
		return vm.Declaration{Name: d.Name, Kind: vm.DeclFunction, Function: fn}, nil
	default:
		return vm.Declaration{}, errors.NewSyntaxError("unknown declaration kind %q for %s", d.Kind, d.Name)
	}
}

// ParseScript compiles src as a script whose output goes to log.
func ParseScript(src *source.SourceFile, log *Log) (vm.Code, error) {
	return NewCompiler(log).CompileScript(src)
}
