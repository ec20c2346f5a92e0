package driver

import (
	"reflect"
	"sort"

	"escore/pkg/errors"
	"escore/pkg/modules"
	"escore/pkg/value"
	"escore/pkg/vm"
)

// ModuleBuilder provides the declarative API for building native modules.
// Values are converted to engine values as they are added.
type ModuleBuilder struct {
	realm  *vm.Realm
	values map[string]value.Value
	err    error
}

// NamespaceBuilder builds a plain object exported by a native module.
type NamespaceBuilder struct {
	realm  *vm.Realm
	values map[string]value.Value
	err    error
}

// NativeModule is a module declared in Go code. Its builder runs once, when
// the module is first loaded.
type NativeModule struct {
	name    string
	builder func(*ModuleBuilder)
}

func newModuleBuilder(realm *vm.Realm) *ModuleBuilder {
	return &ModuleBuilder{realm: realm, values: make(map[string]value.Value)}
}

// Const adds a constant to the module.
func (m *ModuleBuilder) Const(name string, v interface{}) *ModuleBuilder {
	m.set(name, v)
	return m
}

// Let adds a variable to the module. Exports are read-only through imports
// either way, so it is the same as Const.
func (m *ModuleBuilder) Let(name string, v interface{}) *ModuleBuilder {
	return m.Const(name, v)
}

// Function adds a Go function to the module. Arguments and results are
// converted by reflection; a trailing error result is raised as a throw.
func (m *ModuleBuilder) Function(name string, fn interface{}) *ModuleBuilder {
	if m.err != nil {
		return m
	}
	f, err := goFunctionToValue(m.realm, name, fn)
	if err != nil {
		m.err = err
		return m
	}
	m.values[name] = f
	return m
}

// Namespace adds an object export built by builder.
func (m *ModuleBuilder) Namespace(name string, builder func(ns *NamespaceBuilder)) *ModuleBuilder {
	ns := &NamespaceBuilder{realm: m.realm, values: make(map[string]value.Value)}
	builder(ns)
	if ns.err != nil {
		if m.err == nil {
			m.err = ns.err
		}
		return m
	}
	obj := value.NewObject(m.realm.Intrinsic(vm.IntrinsicObjectPrototype))
	for _, prop := range sortedKeys(ns.values) {
		obj.SetOwn(prop, ns.values[prop])
	}
	m.values[name] = value.ObjectValue(obj)
	return m
}

// Default sets the default export.
func (m *ModuleBuilder) Default(v interface{}) *ModuleBuilder {
	return m.Const("default", v)
}

func (m *ModuleBuilder) set(name string, v interface{}) {
	if m.err != nil {
		return
	}
	converted, err := goValueToValue(m.realm, v)
	if err != nil {
		m.err = errors.Wrapf(err, "export %s", name)
		return
	}
	m.values[name] = converted
}

func (ns *NamespaceBuilder) Const(name string, v interface{}) *NamespaceBuilder {
	if ns.err != nil {
		return ns
	}
	converted, err := goValueToValue(ns.realm, v)
	if err != nil {
		ns.err = errors.Wrapf(err, "property %s", name)
		return ns
	}
	ns.values[name] = converted
	return ns
}

func (ns *NamespaceBuilder) Function(name string, fn interface{}) *NamespaceBuilder {
	if ns.err != nil {
		return ns
	}
	f, err := goFunctionToValue(ns.realm, name, fn)
	if err != nil {
		ns.err = err
		return ns
	}
	ns.values[name] = f
	return ns
}

// Name returns the specifier the module is declared under.
func (nm *NativeModule) Name() string { return nm.name }

// instantiate runs the builder and wraps its exports in a synthetic module.
func (nm *NativeModule) instantiate(realm *vm.Realm) (modules.Module, error) {
	b := newModuleBuilder(realm)
	nm.builder(b)
	if b.err != nil {
		return nil, b.err
	}
	names := sortedKeys(b.values)
	return modules.NewSyntheticModule(nm.name, realm, names, func(m *modules.SyntheticModule) error {
		for _, name := range names {
			if err := m.SetExport(name, b.values[name]); err != nil {
				return err
			}
		}
		return nil
	}), nil
}

func sortedKeys(values map[string]value.Value) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	valueType = reflect.TypeOf(value.Value{})
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// goValueToValue converts a Go value to an engine value.
func goValueToValue(realm *vm.Realm, v interface{}) (value.Value, error) {
	switch v := v.(type) {
	case nil:
		return value.Null, nil
	case value.Value:
		return v, nil
	case *value.Object:
		return value.ObjectValue(v), nil
	case string:
		return value.String(v), nil
	case bool:
		return value.Bool(v), nil
	case int:
		return value.Number(float64(v)), nil
	case int64:
		return value.Number(float64(v)), nil
	case float32:
		return value.Number(float64(v)), nil
	case float64:
		return value.Number(v), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Func {
		return goFunctionToValue(realm, "native_function", v)
	}
	return reflectValueToValue(realm, rv)
}

// goFunctionToValue wraps fn as a built-in function object.
func goFunctionToValue(realm *vm.Realm, name string, fn interface{}) (value.Value, error) {
	fnValue := reflect.ValueOf(fn)
	fnType := fnValue.Type()
	if fnType.Kind() != reflect.Func {
		return value.Undefined, errors.Errorf("%s: expected a function, got %T", name, fn)
	}
	if fnType.IsVariadic() {
		return value.Undefined, errors.Errorf("%s: variadic functions are not supported", name)
	}
	proto := realm.Intrinsic(vm.IntrinsicFunctionPrototype)
	native := value.NewNativeFunction(proto, name, fnType.NumIn(), func(this value.Value, args []value.Value) (value.Value, error) {
		goArgs := make([]reflect.Value, fnType.NumIn())
		for i := range goArgs {
			arg := value.Undefined
			if i < len(args) {
				arg = args[i]
			}
			converted, err := valueToReflectValue(arg, fnType.In(i))
			if err != nil {
				return value.Undefined, err
			}
			goArgs[i] = converted
		}

		results := fnValue.Call(goArgs)
		if n := len(results); n > 0 && fnType.Out(n-1) == errorType {
			if err, _ := results[n-1].Interface().(error); err != nil {
				return value.Undefined, err
			}
			results = results[:n-1]
		}
		if len(results) == 0 {
			return value.Undefined, nil
		}
		return reflectValueToValue(realm, results[0])
	})
	return value.ObjectValue(native), nil
}

// valueToReflectValue converts an argument to the Go parameter type.
func valueToReflectValue(v value.Value, targetType reflect.Type) (reflect.Value, error) {
	if targetType == valueType {
		return reflect.ValueOf(v), nil
	}
	switch targetType.Kind() {
	case reflect.String:
		s, err := value.ToString(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(s).Convert(targetType), nil
	case reflect.Float64, reflect.Float32:
		f, err := value.ToNumber(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(f).Convert(targetType), nil
	case reflect.Int, reflect.Int64, reflect.Int32:
		f, err := value.ToNumber(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(int64(f)).Convert(targetType), nil
	case reflect.Bool:
		return reflect.ValueOf(value.ToBoolean(v)).Convert(targetType), nil
	case reflect.Interface:
		if x := exportValue(v); x != nil && reflect.TypeOf(x).AssignableTo(targetType) {
			return reflect.ValueOf(x), nil
		}
		return reflect.Zero(targetType), nil
	default:
		return reflect.Zero(targetType), nil
	}
}

// exportValue returns the Go form of a primitive or object value, or nil
// for undefined, null and symbols.
func exportValue(v value.Value) interface{} {
	switch {
	case v.IsNumber():
		return v.AsNumber()
	case v.IsString():
		return v.AsString()
	case v.IsBoolean():
		return v.AsBoolean()
	case v.IsObject():
		return v.AsObject()
	}
	return nil
}

// reflectValueToValue converts a Go result to an engine value.
func reflectValueToValue(realm *vm.Realm, rv reflect.Value) (value.Value, error) {
	if !rv.IsValid() {
		return value.Undefined, nil
	}
	if rv.Type() == valueType {
		return rv.Interface().(value.Value), nil
	}
	switch rv.Kind() {
	case reflect.String:
		return value.String(rv.String()), nil
	case reflect.Float64, reflect.Float32:
		return value.Number(rv.Float()), nil
	case reflect.Int, reflect.Int64, reflect.Int32, reflect.Int16, reflect.Int8:
		return value.Number(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint64, reflect.Uint32, reflect.Uint16, reflect.Uint8:
		return value.Number(float64(rv.Uint())), nil
	case reflect.Bool:
		return value.Bool(rv.Bool()), nil
	case reflect.Interface, reflect.Ptr:
		if rv.IsNil() {
			return value.Null, nil
		}
		if o, ok := rv.Interface().(*value.Object); ok {
			return value.ObjectValue(o), nil
		}
		if rv.Kind() == reflect.Interface {
			return goValueToValue(realm, rv.Elem().Interface())
		}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		obj := value.NewObject(realm.Intrinsic(vm.IntrinsicObjectPrototype))
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		for _, key := range keys {
			v, err := reflectValueToValue(realm, rv.MapIndex(key))
			if err != nil {
				return value.Undefined, err
			}
			obj.SetOwn(key.String(), v)
		}
		return value.ObjectValue(obj), nil
	}
	return value.Undefined, errors.Errorf("unsupported Go value of type %s", rv.Type())
}
