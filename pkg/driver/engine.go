package driver

import (
	"context"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"escore/pkg/manifest"
	"escore/pkg/modules"
	"escore/pkg/runtime"
	"escore/pkg/source"
	"escore/pkg/value"
	"escore/pkg/vm"
)

// Engine is one world with one realm and a module loader over a
// filesystem. Scripts and modules are manifest documents; hosts add
// modules from Go with DeclareModule.
type Engine struct {
	config *Config
	logger logrus.FieldLogger

	world    *vm.World
	realm    *vm.Realm
	loader   *modules.Loader
	compiler *manifest.Compiler
	log      *manifest.Log

	fs        billy.Filesystem
	root      string
	natives   *modules.ProviderResolver
	declared  map[string]*NativeModule
	mutex     sync.Mutex
	observer  modules.LinkObserver
	jobSource runtime.JobSource
	argv      []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithFilesystem loads modules and scripts from fs instead of the OS
// filesystem. The config's baseDir is then a path within fs.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(e *Engine) { e.fs = fs }
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithLog collects the output of manifest code in log.
func WithLog(log *manifest.Log) Option {
	return func(e *Engine) { e.log = log }
}

// WithLinkObserver reports every component the linker closes.
func WithLinkObserver(o modules.LinkObserver) Option {
	return func(e *Engine) { e.observer = o }
}

// WithJobSource connects a host event loop to RunJobs.
func WithJobSource(src runtime.JobSource) Option {
	return func(e *Engine) { e.jobSource = src }
}

// WithArgs sets process.argv when the process global is enabled.
func WithArgs(argv []string) Option {
	return func(e *Engine) { e.argv = argv }
}

// New creates an engine. A nil config means DefaultConfig.
func New(cfg *Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		config:   cfg,
		logger:   logrus.StandardLogger(),
		declared: make(map[string]*NativeModule),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = manifest.NewLog(nil)
	}
	e.compiler = manifest.NewCompiler(e.log)

	worldOpts := []vm.WorldOption{vm.WithLogger(e.logger)}
	if e.jobSource != nil {
		worldOpts = append(worldOpts, vm.WithJobSource(e.jobSource))
	}
	e.world = vm.NewWorld(worldOpts...)

	realmOpts := vm.RealmOptions{
		Permissions:  cfg.Realm.Permissions,
		EvalCompiler: e.compiler.CompileEval,
	}
	if cfg.Realm.Process {
		realmOpts.Initializers = append(realmOpts.Initializers, NewProcessInitializer(e.argv))
	}
	realm, err := vm.NewRealm(e.world, realmOpts)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create realm")
	}
	e.realm = realm

	e.root = cfg.Loader.BaseDir
	if e.fs == nil {
		abs, err := filepath.Abs(cfg.Loader.BaseDir)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "invalid baseDir %s", cfg.Loader.BaseDir)
		}
		e.fs = osfs.New(abs)
		e.root = "."
	}
	fsResolver := modules.NewFileSystemResolver(e.fs, e.root)
	if len(cfg.Loader.Extensions) > 0 {
		fsResolver.SetExtensions(cfg.Loader.Extensions)
	}
	if len(cfg.Loader.IndexFiles) > 0 {
		fsResolver.SetIndexFiles(cfg.Loader.IndexFiles)
	}
	e.natives = modules.NewProviderResolver()

	loaderOpts := []modules.LoaderOption{
		modules.WithResolvers(e.natives, fsResolver),
		modules.WithCompiler(e.compiler),
		modules.WithLogger(e.logger.WithField("component", "loader")),
	}
	if e.observer != nil {
		loaderOpts = append(loaderOpts, modules.WithLinkObserver(e.observer))
	}
	if e.loader, err = modules.NewLoader(realm, cfg.LoaderConfig(), loaderOpts...); err != nil {
		return nil, err
	}

	if !cfg.Loader.NoBuiltins {
		for name, builder := range builtinModules {
			e.DeclareModule(name, builder)
		}
	}
	return e, nil
}

// DeclareModule makes a Go-built module importable as name. The builder
// runs when the module is first imported.
func (e *Engine) DeclareModule(name string, builder func(m *ModuleBuilder)) *NativeModule {
	nm := &NativeModule{name: name, builder: builder}
	e.mutex.Lock()
	e.declared[name] = nm
	e.mutex.Unlock()
	e.natives.Provide(name, func(string) (modules.Module, error) {
		return nm.instantiate(e.realm)
	})
	e.logger.WithField("module", name).Debug("declared native module")
	return nm
}

// NativeModules returns the names of the declared native modules, sorted.
func (e *Engine) NativeModules() []string {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	names := make([]string, 0, len(e.declared))
	for name := range e.declared {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunScript evaluates src as a global script and returns its completion
// value.
func (e *Engine) RunScript(src *source.SourceFile) (value.Value, error) {
	code, err := e.compiler.CompileScript(src)
	if err != nil {
		return value.Undefined, err
	}
	e.logger.WithField("script", src.DisplayPath()).Debug("evaluating script")
	return e.realm.EvaluateScript(code)
}

// RunScriptFile reads name, relative to the module root, and runs it as a
// script.
func (e *Engine) RunScriptFile(name string) (value.Value, error) {
	p := path.Join(e.root, filepath.ToSlash(name))
	data, err := util.ReadFile(e.fs, p)
	if err != nil {
		return value.Undefined, pkgerrors.Wrapf(err, "failed to read script %s", name)
	}
	return e.RunScript(source.NewSourceFile(path.Base(p), p, string(data)))
}

// Import loads, links and evaluates the module specifier names.
func (e *Engine) Import(ctx context.Context, specifier string) (modules.Module, error) {
	return e.loader.Import(ctx, specifier)
}

// Namespace returns the namespace object of an imported module.
func (e *Engine) Namespace(m modules.Module) (*value.Object, error) {
	return modules.GetModuleNamespace(m)
}

// RunJobs drains the world's job queues and the host job source.
func (e *Engine) RunJobs(ctx context.Context) error {
	return e.world.RunJobs(ctx)
}

func (e *Engine) Config() *Config { return e.config }
func (e *Engine) World() *vm.World { return e.world }
func (e *Engine) Realm() *vm.Realm { return e.realm }
func (e *Engine) Loader() *modules.Loader { return e.loader }
func (e *Engine) Log() *manifest.Log { return e.log }
func (e *Engine) Filesystem() billy.Filesystem { return e.fs }
