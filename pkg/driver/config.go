package driver

import (
	"io"

	"github.com/go-git/go-billy/v5"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"escore/pkg/modules"
	"escore/pkg/vm"
)

// Config is the engine configuration, usually read from escore.yaml.
type Config struct {
	Loader LoaderSettings `yaml:"loader"`
	Realm  RealmSettings  `yaml:"realm"`
	Log    LogSettings    `yaml:"log"`
}

// LoaderSettings configures module resolution and loading.
type LoaderSettings struct {
	// BaseDir is the module root; "/x" specifiers resolve against it.
	BaseDir    string   `yaml:"baseDir"`
	Extensions []string `yaml:"extensions"`
	IndexFiles []string `yaml:"indexFiles"`
	Prefetch   bool     `yaml:"prefetch"`
	Workers    int      `yaml:"workers"`
	MaxDepth   int      `yaml:"maxDepth"`
	// Aliases rewrite specifiers before resolution; the first match wins.
	Aliases []modules.AliasRule `yaml:"aliases"`
	// NoBuiltins leaves out the escore:* native modules.
	NoBuiltins bool `yaml:"noBuiltins"`
}

// RealmSettings configures the engine's realm.
type RealmSettings struct {
	Permissions []vm.Permission `yaml:"permissions"`
	// Process installs the `process` global.
	Process bool `yaml:"process"`
}

type LogSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	lc := modules.DefaultLoaderConfig()
	return &Config{
		Loader: LoaderSettings{
			BaseDir:  ".",
			Workers:  lc.NumWorkers,
			MaxDepth: lc.MaxDepth,
		},
		Realm: RealmSettings{Permissions: []vm.Permission{vm.PermitEval}},
		Log:   LogSettings{Level: "info", Format: "text"},
	}
}

// LoadConfig reads a YAML configuration from fs. Fields missing from the
// file keep their defaults; unknown fields are an error.
func LoadConfig(fs billy.Filesystem, name string) (*Config, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open config %s", name)
	}
	defer f.Close()

	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return nil, pkgerrors.Wrapf(err, "failed to parse config %s", name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, pkgerrors.Wrapf(err, "invalid config %s", name)
	}
	return cfg, nil
}

// Validate checks values the YAML schema cannot express.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return pkgerrors.Errorf("unknown log format %q", c.Log.Format)
	}
	for _, p := range c.Realm.Permissions {
		if p != vm.PermitEval {
			return pkgerrors.Errorf("unknown permission %q", p)
		}
	}
	if c.Loader.Workers < 0 {
		return pkgerrors.Errorf("workers must not be negative, got %d", c.Loader.Workers)
	}
	if c.Loader.MaxDepth < 0 {
		return pkgerrors.Errorf("maxDepth must not be negative, got %d", c.Loader.MaxDepth)
	}
	return nil
}

// LoaderConfig converts the loader settings for modules.NewLoader.
func (c *Config) LoaderConfig() *modules.LoaderConfig {
	return &modules.LoaderConfig{
		Prefetch:   c.Loader.Prefetch,
		NumWorkers: c.Loader.Workers,
		Aliases:    c.Loader.Aliases,
		MaxDepth:   c.Loader.MaxDepth,
	}
}

// ConfigureLogger applies the log settings to l. The text formatter uses
// colours only when color is set.
func (c *Config) ConfigureLogger(l *logrus.Logger, color bool) error {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return err
	}
	l.SetLevel(level)
	if c.Log.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			ForceColors:      color,
			DisableColors:    !color,
			DisableTimestamp: true,
		})
	}
	return nil
}
