package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"escore/pkg/driver"
	"escore/pkg/errors"
	"escore/pkg/manifest"
)

const (
	exitUsage    = 64 // command line usage error
	exitSoftware = 70 // the script or module failed
)

// runError marks a failure of the evaluated code, as opposed to bad
// arguments or configuration.
type runError struct {
	err error
}

func (e runError) Error() string { return e.err.Error() }
func (e runError) Unwrap() error { return e.err }

type options struct {
	configPath string
	dir        string
	logLevel   string
	logFormat  string
	verbose    bool
	prefetch   bool
	argv       []string
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(ctx, stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	if err == nil {
		return 0
	}
	var re runError
	if pkgerrors.As(err, &re) {
		errors.Display(stderr, re.err)
		return exitSoftware
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitUsage
}

func newRootCommand(ctx context.Context, stdout, stderr io.Writer) *cobra.Command {
	o := &options{}
	rootCmd := &cobra.Command{
		Use:           "escore",
		Short:         "Run and inspect manifest scripts and module graphs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "path to escore.yaml")
	rootCmd.PersistentFlags().StringVarP(&o.dir, "directory", "C", ".", "working directory")
	rootCmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "log level (overrides the config)")
	rootCmd.PersistentFlags().StringVar(&o.logFormat, "log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&o.prefetch, "prefetch", false, "load the whole import graph concurrently before linking")

	rootCmd.AddCommand(newRunCommand(ctx, o, stdout, stderr))
	rootCmd.AddCommand(newGraphCommand(ctx, o, stdout, stderr))
	return rootCmd
}

// loadConfig reads the config file, if any, and applies flag overrides.
func (o *options) loadConfig() (*driver.Config, error) {
	cfg := driver.DefaultConfig()
	if o.configPath != "" {
		p := o.configPath
		if !filepath.IsAbs(p) {
			p = filepath.Join(o.dir, p)
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		if cfg, err = driver.LoadConfig(osfs.New(filepath.Dir(abs)), filepath.Base(abs)); err != nil {
			return nil, err
		}
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if o.prefetch {
		cfg.Loader.Prefetch = true
	}
	if !filepath.IsAbs(cfg.Loader.BaseDir) {
		cfg.Loader.BaseDir = filepath.Join(o.dir, cfg.Loader.BaseDir)
	}
	return cfg, cfg.Validate()
}

// newEngine builds an engine from the options. Manifest output goes to
// out; a nil out discards it.
func (o *options) newEngine(out, stderr io.Writer, extra ...driver.Option) (*driver.Engine, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(stderr)
	if err := cfg.ConfigureLogger(logger, checkIfTerminal(stderr)); err != nil {
		return nil, err
	}
	opts := []driver.Option{
		driver.WithLogger(logger),
		driver.WithLog(manifest.NewLog(out)),
		driver.WithArgs(o.argv),
	}
	return driver.New(cfg, append(opts, extra...)...)
}

func checkIfTerminal(w io.Writer) bool {
	switch v := w.(type) {
	case *os.File:
		return term.IsTerminal(int(v.Fd()))
	default:
		return false
	}
}

// specifierFor turns a file argument into a module specifier resolved
// from the module root.
func specifierFor(file string) string {
	file = filepath.ToSlash(file)
	for _, prefix := range []string{"./", "../", "/"} {
		if strings.HasPrefix(file, prefix) {
			return file
		}
	}
	return "./" + file
}
