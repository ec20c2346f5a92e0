package modules

import (
	"sort"
	"unicode/utf16"

	"escore/pkg/value"
)

// namespace implements the exotic behaviour of module namespace objects:
// a frozen view of a module's exports whose values stay live.
type namespace struct {
	module   Module
	names    []string
	bindings map[string]*ResolvedBinding
}

// GetModuleNamespace returns the namespace object of m, building it on
// first use. Construction fails if any exported name is unresolvable or
// ambiguous.
func GetModuleNamespace(m Module) (*value.Object, error) {
	b := m.base()
	if b.namespace != nil {
		return b.namespace, nil
	}
	names, err := m.GetExportedNames(make(map[Module]bool))
	if err != nil {
		return nil, err
	}
	ns := &namespace{module: m, bindings: make(map[string]*ResolvedBinding, len(names))}
	for _, name := range names {
		set := NewResolveSet()
		resolution, err := m.ResolveExport(name, set)
		if err != nil {
			return nil, err
		}
		if err := checkResolution(resolution, set, m.Identity(), name); err != nil {
			return nil, err
		}
		ns.bindings[name] = resolution
		ns.names = append(ns.names, name)
	}
	sort.Slice(ns.names, func(i, j int) bool {
		return codeUnitLess(ns.names[i], ns.names[j])
	})

	obj := value.NewExoticObject(nil, "Module", ns)
	obj.DefineOwnProperty(value.SymbolKey(value.SymbolToStringTag),
		value.DataDescriptor(value.String("Module"), false, false, false))
	obj.PreventExtensions()
	b.namespace = obj
	return obj, nil
}

// codeUnitLess orders strings by UTF-16 code units.
func codeUnitLess(a, b string) bool {
	ua, ub := utf16.Encode([]rune(a)), utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			return ua[i] < ub[i]
		}
	}
	return len(ua) < len(ub)
}

func (ns *namespace) GetOwnProperty(o *value.Object, key value.PropertyKey) (value.PropertyDescriptor, bool, error) {
	if key.IsSymbol() {
		p, ok := o.OwnProperty(key)
		if !ok {
			return value.PropertyDescriptor{}, false, nil
		}
		return p.Descriptor(), true, nil
	}
	b, ok := ns.bindings[key.Name()]
	if !ok {
		return value.PropertyDescriptor{}, false, nil
	}
	v, err := b.Value()
	if err != nil {
		return value.PropertyDescriptor{}, false, err
	}
	return value.DataDescriptor(v, true, true, false), true, nil
}

// DefineOwnProperty accepts only definitions that would not change an
// existing export property.
func (ns *namespace) DefineOwnProperty(o *value.Object, key value.PropertyKey, desc value.PropertyDescriptor) (bool, error) {
	if key.IsSymbol() {
		return o.DefineOwnProperty(key, desc), nil
	}
	current, ok, err := ns.GetOwnProperty(o, key)
	if err != nil || !ok {
		return false, err
	}
	if desc.HasConfigurable && desc.Configurable ||
		desc.HasEnumerable && !desc.Enumerable ||
		desc.IsAccessor() ||
		desc.HasWritable && !desc.Writable {
		return false, nil
	}
	if desc.HasValue {
		return value.SameValue(desc.Value, current.Value), nil
	}
	return true, nil
}

func (ns *namespace) HasProperty(o *value.Object, key value.PropertyKey) (bool, error) {
	if key.IsSymbol() {
		return o.HasOwn(key), nil
	}
	_, ok := ns.bindings[key.Name()]
	return ok, nil
}

func (ns *namespace) Get(o *value.Object, key value.PropertyKey, receiver value.Value) (value.Value, error) {
	if key.IsSymbol() {
		p, ok := o.OwnProperty(key)
		if !ok {
			return value.Undefined, nil
		}
		return p.Value, nil
	}
	b, ok := ns.bindings[key.Name()]
	if !ok {
		return value.Undefined, nil
	}
	return b.Value()
}

func (ns *namespace) Set(*value.Object, value.PropertyKey, value.Value, value.Value) (bool, error) {
	return false, nil
}

func (ns *namespace) Delete(o *value.Object, key value.PropertyKey) (bool, error) {
	if key.IsSymbol() {
		return o.DeleteOwn(key), nil
	}
	_, ok := ns.bindings[key.Name()]
	return !ok, nil
}

func (ns *namespace) OwnKeys(o *value.Object) ([]value.PropertyKey, error) {
	keys := make([]value.PropertyKey, 0, len(ns.names)+1)
	for _, name := range ns.names {
		keys = append(keys, value.StringKey(name))
	}
	for _, k := range o.OwnKeys() {
		if k.IsSymbol() {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
