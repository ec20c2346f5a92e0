package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func runMain(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunScript(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"hello.yaml": `declarations:
  - {name: x, kind: let}
body:
  - log: hi
  - init: {name: x, value: 7}
  - read: x
`,
	})
	code, stdout, stderr := runMain("-C", dir, "run", "hello.yaml")
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d: %s", code, stderr)
	}
	if stdout != "hi\nx = 7\n" {
		t.Errorf("Expected script output, got %q", stdout)
	}
}

func TestRunModule(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.yaml": `imports:
  - from: ./lib/names
    names: {who: name}
  - from: escore:path
    names: [sep]
body:
  - read: name
  - read: sep
`,
		"lib/names.yaml": `exports:
  - local: who
declarations:
  - {name: who, kind: const}
body:
  - init: {name: who, value: world}
`,
	})
	for _, args := range [][]string{
		{"-C", dir, "run", "-m", "main.yaml"},
		{"-C", dir, "--prefetch", "run", "--module", "./main.yaml"},
	} {
		code, stdout, stderr := runMain(args...)
		if code != 0 {
			t.Fatalf("Expected exit 0 for %v, got %d: %s", args, code, stderr)
		}
		if stdout != "name = world\nsep = /\n" {
			t.Errorf("Expected module output for %v, got %q", args, stdout)
		}
	}
}

func TestRunFailures(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"throw.yaml":  "body:\n  - throw: boom\n",
		"syntax.yaml": "body:\n  - log: before\n  - init: {name: y, value: 1}\n",
		"bad.yaml":    "loader:\n  basedir: x\n",
	})
	tests := []struct {
		name   string
		args   []string
		code   int
		stderr string
	}{
		{"uncaught", []string{"-C", dir, "run", "throw.yaml"}, exitSoftware, "Uncaught"},
		{"syntax", []string{"-C", dir, "run", "syntax.yaml"}, exitSoftware, "is not a lexical declaration"},
		{"missing file", []string{"-C", dir, "run", "nope.yaml"}, exitSoftware, "failed to read script nope.yaml"},
		{"no file", []string{"-C", dir, "run"}, exitUsage, "Error:"},
		{"bad config", []string{"-C", dir, "--config", "bad.yaml", "run", "throw.yaml"}, exitUsage, "failed to parse config"},
		{"bad level", []string{"-C", dir, "--log-level", "loud", "run", "throw.yaml"}, exitUsage, "not a valid logrus Level"},
		{"unknown command", []string{"frobnicate"}, exitUsage, "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runMain(tt.args...)
			if code != tt.code {
				t.Errorf("Expected exit %d, got %d (%s)", tt.code, code, stderr)
			}
			if !strings.Contains(stderr, tt.stderr) {
				t.Errorf("Expected stderr containing %q, got %q", tt.stderr, stderr)
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"escore.yaml": `loader:
  baseDir: src
  aliases:
    - pattern: "^~/(.*)$"
      replacement: "/$1"
log:
  level: warn
`,
		"src/main.yaml": `imports:
  - from: "~/dep"
    names: [v]
body:
  - read: v
`,
		"src/dep.yaml": "exports:\n  - default: 1\n  - local: v\ndeclarations:\n  - {name: v, kind: var}\nbody:\n  - assign: {name: v, value: 5}\n",
	})
	code, stdout, stderr := runMain("-C", dir, "--config", "escore.yaml", "run", "-m", "main.yaml")
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d: %s", code, stderr)
	}
	if stdout != "v = 5\n" {
		t.Errorf("Expected aliased import to resolve, got %q", stdout)
	}
}

func TestGraph(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.yaml": "imports:\n  - from: ./b\n    names: [b]\nexports:\n  - local: a\ndeclarations:\n  - {name: a, kind: var}\n",
		"b.yaml": "imports:\n  - from: ./a\n    names: [a]\nexports:\n  - local: b\ndeclarations:\n  - {name: b, kind: var}\n",
	})
	code, stdout, stderr := runMain("-C", dir, "graph", "a.yaml")
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d: %s", code, stderr)
	}
	for _, want := range []string{"instantiated:\n", "evaluated:\n", "cycles: a.yaml, b.yaml\n", "modules: 2, imports: 2\n", "status evaluated: a.yaml, b.yaml\n"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("Expected output containing %q, got %q", want, stdout)
		}
	}
	if strings.Contains(stdout, "order:") {
		t.Errorf("Expected no topological order for a cycle, got %q", stdout)
	}

	code, stdout, _ = runMain("-C", dir, "graph", "--link-only", "b.yaml")
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d", code)
	}
	if strings.Contains(stdout, "evaluated:") {
		t.Errorf("Expected no evaluation with --link-only, got %q", stdout)
	}
}

func TestGraphOrder(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.yaml": "imports:\n  - from: ./util\n    names: [u]\n",
		"util.yaml": "exports:\n  - local: u\ndeclarations:\n  - {name: u, kind: var}\n",
	})
	code, stdout, stderr := runMain("-C", dir, "graph", "main.yaml")
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "  1  util.yaml\n  2  main.yaml\n") {
		t.Errorf("Expected util to link before main, got %q", stdout)
	}
	if !strings.Contains(stdout, "order: util.yaml -> main.yaml\n") {
		t.Errorf("Expected topological order, got %q", stdout)
	}
}

func TestSpecifierFor(t *testing.T) {
	tests := map[string]string{
		"main.yaml":    "./main.yaml",
		"./main.yaml":  "./main.yaml",
		"../up.yaml":   "../up.yaml",
		"/abs/x.yaml":  "/abs/x.yaml",
		"lib/dep.yaml": "./lib/dep.yaml",
	}
	for in, want := range tests {
		if got := specifierFor(in); got != want {
			t.Errorf("Expected %q for %q, got %q", want, in, got)
		}
	}
}
