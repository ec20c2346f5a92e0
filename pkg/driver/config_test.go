package driver

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"escore/pkg/modules"
	"escore/pkg/vm"
)

func TestLoadConfig(t *testing.T) {
	fs := newTestFS(t, map[string]string{"escore.yaml": `loader:
  baseDir: app
  prefetch: true
  workers: 2
  extensions: [.yml]
  aliases:
    - pattern: "^@/(.*)$"
      replacement: "/$1"
realm:
  process: true
log:
  level: debug
  format: json
`})
	cfg, err := LoadConfig(fs, "escore.yaml")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.Loader.BaseDir != "app" {
		t.Errorf("Expected baseDir app, got %q", cfg.Loader.BaseDir)
	}
	if len(cfg.Loader.Extensions) != 1 || cfg.Loader.Extensions[0] != ".yml" {
		t.Errorf("Expected extensions [.yml], got %v", cfg.Loader.Extensions)
	}
	if !cfg.Realm.Process {
		t.Errorf("Expected process to be enabled")
	}
	// Fields the file leaves out keep their defaults.
	if len(cfg.Realm.Permissions) != 1 || cfg.Realm.Permissions[0] != vm.PermitEval {
		t.Errorf("Expected default permissions [eval], got %v", cfg.Realm.Permissions)
	}
	if cfg.Loader.MaxDepth != modules.DefaultLoaderConfig().MaxDepth {
		t.Errorf("Expected default maxDepth, got %d", cfg.Loader.MaxDepth)
	}

	lc := cfg.LoaderConfig()
	if !lc.Prefetch || lc.NumWorkers != 2 {
		t.Errorf("Expected prefetch with 2 workers, got %+v", lc)
	}
	if len(lc.Aliases) != 1 || lc.Aliases[0].Replacement != "/$1" {
		t.Errorf("Expected one alias rule, got %v", lc.Aliases)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	fs := newTestFS(t, map[string]string{
		"unknown.yaml":    "loader:\n  basedir: x\n",
		"level.yaml":      "log:\n  level: loud\n",
		"format.yaml":     "log:\n  format: xml\n",
		"permission.yaml": "realm:\n  permissions: [eval, network]\n",
		"workers.yaml":    "loader:\n  workers: -1\n",
	})
	tests := []struct {
		file string
		want string
	}{
		{"unknown.yaml", "field basedir not found"},
		{"level.yaml", "not a valid logrus Level"},
		{"format.yaml", `unknown log format "xml"`},
		{"permission.yaml", `unknown permission "network"`},
		{"workers.yaml", "workers must not be negative"},
		{"missing.yaml", "failed to open config missing.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			_, err := LoadConfig(fs, tt.file)
			if err == nil {
				t.Fatalf("Expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %q", tt.want, err.Error())
			}
		})
	}
}

func TestLoadEmptyConfig(t *testing.T) {
	fs := newTestFS(t, map[string]string{"empty.yaml": ""})
	cfg, err := LoadConfig(fs, "empty.yaml")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.Log.Level != "info" || cfg.Loader.BaseDir != "." {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestConfigureLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"

	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	if err := cfg.ConfigureLogger(l, false); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	l.Info("hidden")
	l.WithField("module", "a.yaml").Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected info to be filtered, got %q", out)
	}
	if !strings.Contains(out, `"module":"a.yaml"`) {
		t.Errorf("Expected JSON fields, got %q", out)
	}
}
