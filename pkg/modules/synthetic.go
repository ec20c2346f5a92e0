package modules

import (
	"escore/pkg/env"
	"escore/pkg/errors"
	"escore/pkg/value"
	"escore/pkg/vm"
)

// SyntheticModule is a host-defined module: a fixed list of export names
// whose values the host sets from Go. It links and evaluates itself
// without taking part in the graph walk.
type SyntheticModule struct {
	moduleBase
	exportNames []string
	exported    map[string]bool
	evaluate    func(m *SyntheticModule) error
}

// NewSyntheticModule creates a synthetic module in realm. evaluate runs
// once, on first evaluation, and typically calls SetExport.
func NewSyntheticModule(identity string, realm *vm.Realm, exportNames []string, evaluate func(m *SyntheticModule) error) *SyntheticModule {
	m := &SyntheticModule{
		moduleBase:  moduleBase{identity: identity, realm: realm},
		exportNames: exportNames,
		exported:    make(map[string]bool, len(exportNames)),
		evaluate:    evaluate,
	}
	for _, name := range exportNames {
		m.exported[name] = true
	}
	m.resetWalk()
	return m
}

func (m *SyntheticModule) RequestedModules() []string { return nil }

func (m *SyntheticModule) GetExportedNames(map[Module]bool) ([]string, error) {
	return m.exportNames, nil
}

func (m *SyntheticModule) ResolveExport(exportName string, _ *ResolveSet) (*ResolvedBinding, error) {
	if !m.exported[exportName] {
		return nil, nil
	}
	return &ResolvedBinding{Module: m, BindingName: exportName}, nil
}

// Instantiate creates the environment with every export initialized to
// undefined.
func (m *SyntheticModule) Instantiate() error {
	if m.environment != nil {
		return nil
	}
	moduleEnv := env.NewModuleEnvironment(m.realm.GlobalEnv)
	rec := moduleEnv.Record()
	for _, name := range m.exportNames {
		if err := rec.CreateMutableBinding(name, false); err != nil {
			return err
		}
		if err := rec.InitializeBinding(name, value.Undefined); err != nil {
			return err
		}
	}
	m.environment = moduleEnv
	m.status = Instantiated
	return nil
}

// Evaluate runs the evaluation callback once. A failure is sticky.
func (m *SyntheticModule) Evaluate() error {
	switch m.status {
	case Evaluated:
		return m.evalError
	case Evaluating:
		return nil
	}
	if err := m.Instantiate(); err != nil {
		return err
	}
	m.status = Evaluating
	var err error
	if m.evaluate != nil {
		err = m.evaluate(m)
	}
	m.status = Evaluated
	m.evalError = err
	return err
}

// SetExport updates an export's value.
func (m *SyntheticModule) SetExport(name string, v value.Value) error {
	if !m.exported[name] {
		return errors.NewReferenceError("Module '%s' has no export named '%s'", m.identity, name)
	}
	if err := m.Instantiate(); err != nil {
		return err
	}
	return m.environment.Record().SetMutableBinding(name, v, true)
}
