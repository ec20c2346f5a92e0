package modules

import (
	"escore/pkg/env"
	"escore/pkg/errors"
	"escore/pkg/value"
	"escore/pkg/vm"
)

// SourceTextModule is a module compiled from source. Its export entries
// are partitioned the way export resolution consumes them.
type SourceTextModule struct {
	moduleBase
	linker *Linker

	code      vm.Code
	requested []string
	imports   []ImportEntry

	localExports     []ExportEntry
	indirectExports  []ExportEntry
	starExports      []ExportEntry
	namespaceExports []ExportEntry
}

// NewSourceTextModule builds a module record from compiled source. It
// reports early errors: duplicate import or export names, and local
// exports of names the module never declares.
func NewSourceTextModule(src *ModuleSource, linker *Linker) (*SourceTextModule, error) {
	m := &SourceTextModule{
		moduleBase: moduleBase{identity: src.Identity},
		linker:     linker,
		code:       src.Code,
		requested:  src.requestedModules(),
		imports:    src.Imports,
	}
	m.resetWalk()

	importsByLocal := make(map[string]ImportEntry, len(src.Imports))
	for _, in := range src.Imports {
		if _, dup := importsByLocal[in.LocalName]; dup {
			return nil, errors.NewSyntaxError("Identifier '%s' has already been declared", in.LocalName)
		}
		importsByLocal[in.LocalName] = in
	}
	declared := make(map[string]bool)
	if src.Code != nil {
		for _, d := range src.Code.Declarations() {
			declared[d.Name] = true
		}
	}

	exported := make(map[string]bool)
	for _, ex := range src.Exports {
		if ex.ExportName != "" {
			if exported[ex.ExportName] {
				return nil, errors.NewSyntaxError("Duplicate export of '%s'", ex.ExportName)
			}
			exported[ex.ExportName] = true
		}

		switch {
		case ex.ModuleRequest == "":
			in, isImport := importsByLocal[ex.LocalName]
			switch {
			case !isImport:
				if src.Code != nil && !declared[ex.LocalName] {
					return nil, errors.NewSyntaxError("Export '%s' is not defined in module", ex.LocalName)
				}
				m.localExports = append(m.localExports, ex)
			case in.IsNamespace():
				// The namespace is a local immutable binding.
				m.localExports = append(m.localExports, ex)
			default:
				// import {a} from "m"; export {a as b}  re-exports m's a.
				m.indirectExports = append(m.indirectExports, ExportEntry{
					ExportName:    ex.ExportName,
					ModuleRequest: in.ModuleRequest,
					ImportName:    in.ImportName,
				})
			}
		case ex.isStar():
			m.starExports = append(m.starExports, ex)
		case ex.isNamespaceReexport():
			m.namespaceExports = append(m.namespaceExports, ex)
		default:
			m.indirectExports = append(m.indirectExports, ex)
		}
	}
	return m, nil
}

func (m *SourceTextModule) RequestedModules() []string { return m.requested }

// Code returns the module's top-level code.
func (m *SourceTextModule) Code() vm.Code { return m.code }

// LocalExports returns the exports bound in this module's own environment.
func (m *SourceTextModule) LocalExports() []ExportEntry { return m.localExports }

// IndirectExports returns the named re-exports, including imports that are
// exported again.
func (m *SourceTextModule) IndirectExports() []ExportEntry { return m.indirectExports }

// StarExports returns the `export * from` entries.
func (m *SourceTextModule) StarExports() []ExportEntry { return m.starExports }

// NamespaceExports returns the `export * as ns from` entries.
func (m *SourceTextModule) NamespaceExports() []ExportEntry { return m.namespaceExports }

func (m *SourceTextModule) Instantiate() error { return m.linker.Instantiate(m) }
func (m *SourceTextModule) Evaluate() error { return m.linker.Evaluate(m) }

func (m *SourceTextModule) importedModule(specifier string) (Module, error) {
	return m.linker.host.ResolveImportedModule(m, specifier)
}

func (m *SourceTextModule) GetExportedNames(exportStarSet map[Module]bool) ([]string, error) {
	if exportStarSet[m] {
		// Star export cycle.
		return nil, nil
	}
	exportStarSet[m] = true

	var names []string
	for _, ex := range m.localExports {
		names = append(names, ex.ExportName)
	}
	for _, ex := range m.indirectExports {
		names = append(names, ex.ExportName)
	}
	for _, ex := range m.namespaceExports {
		names = append(names, ex.ExportName)
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	for _, ex := range m.starExports {
		requested, err := m.importedModule(ex.ModuleRequest)
		if err != nil {
			return nil, err
		}
		starNames, err := requested.GetExportedNames(exportStarSet)
		if err != nil {
			return nil, err
		}
		for _, n := range starNames {
			if n == "default" || seen[n] {
				continue
			}
			seen[n] = true
			names = append(names, n)
		}
	}
	return names, nil
}

func (m *SourceTextModule) ResolveExport(exportName string, set *ResolveSet) (*ResolvedBinding, error) {
	if !set.enter(m, exportName) {
		return nil, nil
	}
	for _, ex := range m.localExports {
		if ex.ExportName == exportName {
			return &ResolvedBinding{Module: m, BindingName: ex.LocalName}, nil
		}
	}
	for _, ex := range m.indirectExports {
		if ex.ExportName == exportName {
			imported, err := m.importedModule(ex.ModuleRequest)
			if err != nil {
				return nil, err
			}
			return imported.ResolveExport(ex.ImportName, set)
		}
	}
	for _, ex := range m.namespaceExports {
		if ex.ExportName == exportName {
			imported, err := m.importedModule(ex.ModuleRequest)
			if err != nil {
				return nil, err
			}
			return &ResolvedBinding{Module: imported, BindingName: NamespaceBinding}, nil
		}
	}
	if exportName == "default" {
		// A default export is never provided by export *.
		return nil, nil
	}

	var starResolution *ResolvedBinding
	for _, ex := range m.starExports {
		imported, err := m.importedModule(ex.ModuleRequest)
		if err != nil {
			return nil, err
		}
		circular := set.circular
		resolution, err := imported.ResolveExport(exportName, set)
		if err != nil {
			return nil, err
		}
		switch {
		case resolution == Ambiguous:
			return Ambiguous, nil
		case resolution == nil:
			// Star exports revisiting a module just provide nothing.
			set.circular = circular
		case starResolution == nil:
			starResolution = resolution
		case !starResolution.sameAs(resolution):
			return Ambiguous, nil
		}
	}
	return starResolution, nil
}

// initializeEnvironment creates the module environment, binds imports and
// hoists the module's own declarations.
func (m *SourceTextModule) initializeEnvironment() error {
	for _, ex := range m.indirectExports {
		set := NewResolveSet()
		resolution, err := m.ResolveExport(ex.ExportName, set)
		if err != nil {
			return err
		}
		if err := checkResolution(resolution, set, m.identity, ex.ExportName); err != nil {
			return err
		}
	}

	moduleEnv := env.NewModuleEnvironment(m.realm.GlobalEnv)
	m.environment = moduleEnv
	rec := moduleEnv.Record().(*env.ModuleRecord)

	for _, in := range m.imports {
		imported, err := m.importedModule(in.ModuleRequest)
		if err != nil {
			return err
		}
		if in.IsNamespace() {
			if err := bindNamespace(rec, in.LocalName, imported); err != nil {
				return err
			}
			continue
		}
		set := NewResolveSet()
		resolution, err := imported.ResolveExport(in.ImportName, set)
		if err != nil {
			return err
		}
		if err := checkResolution(resolution, set, imported.Identity(), in.ImportName); err != nil {
			return err
		}
		if resolution.IsNamespace() {
			if err := bindNamespace(rec, in.LocalName, resolution.Module); err != nil {
				return err
			}
			continue
		}
		rec.CreateImportBinding(in.LocalName, resolution.Module, resolution.BindingName)
	}

	if m.code == nil {
		return nil
	}
	return vm.ModuleDeclarationInstantiation(m.realm, moduleEnv, m.code)
}

func (m *SourceTextModule) execute() error {
	if m.code == nil {
		return nil
	}
	_, err := m.realm.ExecuteModule(m.environment, m.code, m)
	return err
}

func bindNamespace(rec *env.ModuleRecord, name string, target Module) error {
	ns, err := GetModuleNamespace(target)
	if err != nil {
		return err
	}
	if err := rec.CreateImmutableBinding(name, true); err != nil {
		return err
	}
	return rec.InitializeBinding(name, value.ObjectValue(ns))
}

// checkResolution turns an unusable resolution of name in module into the
// error its consumer raises.
func checkResolution(resolution *ResolvedBinding, set *ResolveSet, module, name string) error {
	switch {
	case resolution == nil && set.Circular():
		return errors.NewSyntaxError("Detected cycle while resolving name '%s' in '%s'", name, module)
	case resolution == nil:
		return errors.NewReferenceError("The requested module '%s' does not provide an export named '%s'", module, name)
	case resolution == Ambiguous:
		return errors.NewSyntaxError("The requested module '%s' contains conflicting star exports for name '%s'", module, name)
	}
	return nil
}

func errUninitializedExport(name string) error {
	return errors.NewReferenceError("Cannot access '%s' before initialization", name)
}
