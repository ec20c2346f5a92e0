package modules

import (
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"escore/pkg/vm"
)

// Linker instantiates and evaluates module graphs. Both walks are
// depth-first and close strongly connected components as a unit, so a
// cycle of imports is instantiated and evaluated exactly once.
type Linker struct {
	realm    *vm.Realm
	host     Host
	observer LinkObserver
	logger   logrus.FieldLogger
}

// LinkerOption configures a Linker.
type LinkerOption func(*Linker)

// WithObserver reports closed components to o.
func WithObserver(o LinkObserver) LinkerOption {
	return func(l *Linker) { l.observer = o }
}

// WithLinkerLogger sets the linker's logger.
func WithLinkerLogger(logger logrus.FieldLogger) LinkerOption {
	return func(l *Linker) { l.logger = logger }
}

// NewLinker creates a linker that assigns modules to realm and resolves
// module requests through host.
func NewLinker(realm *vm.Realm, host Host, opts ...LinkerOption) *Linker {
	l := &Linker{realm: realm, host: host, logger: logrus.StandardLogger()}
	if realm != nil {
		l.logger = realm.Logger()
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Realm returns the realm modules are linked into.
func (l *Linker) Realm() *vm.Realm { return l.realm }

func (l *Linker) trace(m *SourceTextModule, msg string) {
	l.logger.WithField("module", m.identity).WithField("status", m.status).Debug(msg)
}

// Instantiate links m and everything it imports. On failure every module
// of the components still being walked, m included, is returned to
// Uninstantiated and the error is returned.
func (l *Linker) Instantiate(m Module) error {
	stm, ok := m.(*SourceTextModule)
	if !ok {
		if b := m.base(); b.realm == nil {
			b.realm = l.realm
		}
		return m.Instantiate()
	}
	if stm.status == Instantiating || stm.status == Evaluating {
		return pkgerrors.Errorf("cannot instantiate module %s while it is %s", stm.identity, stm.status)
	}

	var stack []*SourceTextModule
	if _, err := l.innerInstantiate(stm, &stack, 0); err != nil {
		for _, sm := range stack {
			sm.status = Uninstantiated
			sm.environment = nil
			sm.resetWalk()
			l.trace(sm, "instantiation rolled back")
		}
		return err
	}
	return nil
}

func (l *Linker) innerInstantiate(m Module, stack *[]*SourceTextModule, index int) (int, error) {
	if b := m.base(); b.realm == nil {
		b.realm = l.realm
	}
	stm, ok := m.(*SourceTextModule)
	if !ok {
		return index, m.Instantiate()
	}
	if stm.status != Uninstantiated {
		return index, nil
	}
	stm.status = Instantiating
	stm.dfsIndex, stm.dfsAncestorIndex = index, index
	index++
	*stack = append(*stack, stm)
	l.trace(stm, "instantiating")

	for _, specifier := range stm.requested {
		requested, err := l.host.ResolveImportedModule(stm, specifier)
		if err != nil {
			return index, err
		}
		if index, err = l.innerInstantiate(requested, stack, index); err != nil {
			return index, err
		}
		if dep, ok := requested.(*SourceTextModule); ok && dep.status == Instantiating {
			stm.dfsAncestorIndex = min(stm.dfsAncestorIndex, dep.dfsAncestorIndex)
		}
	}

	if err := stm.initializeEnvironment(); err != nil {
		return index, err
	}

	if stm.dfsAncestorIndex == stm.dfsIndex {
		component := l.closeComponent(stm, stack, Instantiated)
		if l.observer != nil {
			l.observer.ComponentInstantiated(component)
		}
	}
	return index, nil
}

// Evaluate runs m's top-level code after that of everything it imports.
// A module whose evaluation failed keeps its error and returns it to
// every later evaluator.
func (l *Linker) Evaluate(m Module) error {
	stm, ok := m.(*SourceTextModule)
	if !ok {
		return m.Evaluate()
	}
	if stm.status != Instantiated && stm.status != Evaluated {
		return pkgerrors.Errorf("cannot evaluate module %s while it is %s", stm.identity, stm.status)
	}

	var stack []*SourceTextModule
	if _, err := l.innerEvaluate(stm, &stack, 0); err != nil {
		for _, sm := range stack {
			sm.status = Evaluated
			sm.evalError = err
			sm.resetWalk()
			l.trace(sm, "evaluation failed")
		}
		return err
	}
	return nil
}

func (l *Linker) innerEvaluate(m Module, stack *[]*SourceTextModule, index int) (int, error) {
	stm, ok := m.(*SourceTextModule)
	if !ok {
		return index, m.Evaluate()
	}
	switch stm.status {
	case Evaluated:
		return index, stm.evalError
	case Evaluating:
		return index, nil
	case Instantiated:
	default:
		return index, pkgerrors.Errorf("module %s is %s, not instantiated", stm.identity, stm.status)
	}
	stm.status = Evaluating
	stm.dfsIndex, stm.dfsAncestorIndex = index, index
	index++
	*stack = append(*stack, stm)
	l.trace(stm, "evaluating")

	for _, specifier := range stm.requested {
		requested, err := l.host.ResolveImportedModule(stm, specifier)
		if err != nil {
			return index, err
		}
		if index, err = l.innerEvaluate(requested, stack, index); err != nil {
			return index, err
		}
		if dep, ok := requested.(*SourceTextModule); ok && dep.status == Evaluating {
			stm.dfsAncestorIndex = min(stm.dfsAncestorIndex, dep.dfsAncestorIndex)
		}
	}

	if err := stm.execute(); err != nil {
		return index, err
	}

	if stm.dfsAncestorIndex == stm.dfsIndex {
		component := l.closeComponent(stm, stack, Evaluated)
		if l.observer != nil {
			l.observer.ComponentEvaluated(component)
		}
	}
	return index, nil
}

// closeComponent pops the component rooted at root off the stack, moving
// each member to status.
func (l *Linker) closeComponent(root *SourceTextModule, stack *[]*SourceTextModule, status Status) []Module {
	var component []Module
	for {
		n := len(*stack) - 1
		top := (*stack)[n]
		*stack = (*stack)[:n]
		top.status = status
		top.resetWalk()
		component = append(component, top)
		l.trace(top, "component closed")
		if top == root {
			break
		}
	}
	// Report members in the order the walk reached them.
	for i, j := 0, len(component)-1; i < j; i, j = i+1, j-1 {
		component[i], component[j] = component[j], component[i]
	}
	return component
}
