package driver

import (
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"escore/pkg/errors"
	"escore/pkg/value"
	"escore/pkg/vm"
)

// ProcessInitializer installs a small `process` global: argv, platform,
// pid, env, cwd() and nextTick(). It runs in the host batch and needs only
// the fundamental prototypes.
type ProcessInitializer struct {
	argv []string
	env  []string
}

// NewProcessInitializer creates a ProcessInitializer with the given argv
// and the current process environment.
func NewProcessInitializer(argv []string) *ProcessInitializer {
	return &ProcessInitializer{argv: argv, env: os.Environ()}
}

var _ vm.IntrinsicInitializer = (*ProcessInitializer)(nil)

func (p *ProcessInitializer) Name() string { return "process" }

func (p *ProcessInitializer) Priority() int { return vm.PriorityHost }

func (p *ProcessInitializer) Requires() []vm.Intrinsic {
	return []vm.Intrinsic{vm.IntrinsicObjectPrototype, vm.IntrinsicFunctionPrototype}
}

func (p *ProcessInitializer) Provides() []vm.Intrinsic { return nil }

func (p *ProcessInitializer) Init(r *vm.Realm) error {
	objProto := r.Intrinsic(vm.IntrinsicObjectPrototype)
	fnProto := r.Intrinsic(vm.IntrinsicFunctionPrototype)

	argv := value.NewObject(objProto)
	for i, arg := range p.argv {
		argv.SetOwn(strconv.Itoa(i), value.String(arg))
	}
	argv.SetOwnNonEnumerable("length", value.Number(float64(len(p.argv))))

	envObj := value.NewObject(objProto)
	vars := append([]string(nil), p.env...)
	sort.Strings(vars)
	for _, kv := range vars {
		if i := strings.IndexByte(kv, '='); i > 0 {
			envObj.SetOwn(kv[:i], value.String(kv[i+1:]))
		}
	}

	process := value.NewObject(objProto)
	process.SetOwn("argv", value.ObjectValue(argv))
	process.SetOwn("platform", value.String(runtime.GOOS))
	process.SetOwn("pid", value.Number(float64(os.Getpid())))
	process.SetOwn("env", value.ObjectValue(envObj))

	process.SetOwn("cwd", value.ObjectValue(value.NewNativeFunction(fnProto, "cwd", 0, func(value.Value, []value.Value) (value.Value, error) {
		cwd, err := os.Getwd()
		if err != nil {
			return value.String(""), nil
		}
		return value.String(cwd), nil
	})))

	// nextTick(fn, ...args) queues fn on the realm's promise queue.
	process.SetOwn("nextTick", value.ObjectValue(value.NewNativeFunction(fnProto, "nextTick", 1, func(_ value.Value, args []value.Value) (value.Value, error) {
		if len(args) == 0 || !args[0].IsCallable() {
			return value.Undefined, errors.NewTypeError("process.nextTick requires a function")
		}
		fn, rest := args[0], append([]value.Value(nil), args[1:]...)
		r.EnqueueJob(vm.PromiseQueue, func() error {
			_, err := value.Call(fn, value.Undefined, rest...)
			return err
		})
		return value.Undefined, nil
	})))

	return value.DefinePropertyOrThrow(r.GlobalObject, value.StringKey("process"),
		value.DataDescriptor(value.ObjectValue(process), true, false, true))
}
