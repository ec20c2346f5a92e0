package modules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

func newTestFS(t *testing.T, files map[string]string) *FileSystemResolver {
	t.Helper()
	fs := memfs.New()
	for name, content := range files {
		if err := util.WriteFile(fs, name, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return NewFileSystemResolver(fs, "")
}

func TestFileSystemResolverBasic(t *testing.T) {
	resolver := newTestFS(t, nil)

	if resolver.Name() != "FileSystem" {
		t.Errorf("Expected name 'FileSystem', got '%s'", resolver.Name())
	}
	if resolver.Priority() != 100 {
		t.Errorf("Expected priority 100, got %d", resolver.Priority())
	}
}

func TestFileSystemResolverCanResolve(t *testing.T) {
	resolver := newTestFS(t, nil)

	tests := []struct {
		specifier  string
		canResolve bool
	}{
		{"./relative.yaml", true},
		{"../parent.yaml", true},
		{"/absolute.yaml", true},
		{"bare-module", false}, // Not handled by file system resolver
		{"std:math", false},
	}

	for _, test := range tests {
		result := resolver.CanResolve(test.specifier)
		if result != test.canResolve {
			t.Errorf("CanResolve('%s') = %v, expected %v", test.specifier, result, test.canResolve)
		}
	}
}

func TestFileSystemResolverNormalize(t *testing.T) {
	resolver := newTestFS(t, map[string]string{
		"main.yaml":         "{}",
		"lib/index.yml":     "{}",
		"lib/helper.yaml":   "{}",
		"lib/data.txt.yaml": "{}",
	})

	tests := []struct {
		specifier string
		referrer  string
		expected  string
	}{
		{"./main.yaml", "", "main.yaml"},
		{"./main", "", "main.yaml"},
		{"./lib", "", "lib/index.yml"},
		{"./helper", "lib/index.yml", "lib/helper.yaml"},
		{"./data.txt", "lib/index.yml", "lib/data.txt.yaml"},
		{"../main", "lib/helper.yaml", "main.yaml"},
		{"/lib/helper", "lib/index.yml", "lib/helper.yaml"},
	}

	for _, test := range tests {
		identity, err := resolver.Normalize(test.specifier, test.referrer)
		if err != nil {
			t.Errorf("Normalize('%s', '%s') failed: %v", test.specifier, test.referrer, err)
			continue
		}
		if identity != test.expected {
			t.Errorf("Normalize('%s', '%s') = '%s', expected '%s'", test.specifier, test.referrer, identity, test.expected)
		}
	}
}

func TestFileSystemResolverBaseDir(t *testing.T) {
	fs := memfs.New()
	if err := util.WriteFile(fs, "src/app/main.yaml", []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	resolver := NewFileSystemResolver(fs, "src")

	identity, err := resolver.Normalize("./app/main", "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if identity != "src/app/main.yaml" {
		t.Errorf("Expected 'src/app/main.yaml', got '%s'", identity)
	}

	identity, err = resolver.Normalize("/app/main", "other/x.yaml")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if identity != "src/app/main.yaml" {
		t.Errorf("Expected '/' to be rooted at baseDir, got '%s'", identity)
	}
}

func TestFileSystemResolverDirectoryIsNotAFile(t *testing.T) {
	resolver := newTestFS(t, map[string]string{"pkg/other.yaml": "{}"})

	if _, err := resolver.Normalize("./pkg", ""); err == nil {
		t.Error("Expected a directory without index file to fail")
	}
}

func TestFileSystemResolverLoad(t *testing.T) {
	resolver := newTestFS(t, map[string]string{"lib/a.yaml": "body: []"})

	resolved, err := resolver.Load("lib/a.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if resolved.Source.Content != "body: []" {
		t.Errorf("Expected content 'body: []', got '%s'", resolved.Source.Content)
	}
	if resolved.Source.Identity != "lib/a.yaml" {
		t.Errorf("Expected identity 'lib/a.yaml', got '%s'", resolved.Source.Identity)
	}
	if resolved.Source.Resolver != "FileSystem" {
		t.Errorf("Expected resolver 'FileSystem', got '%s'", resolved.Source.Resolver)
	}

	if _, err := resolver.Load("lib/missing.yaml"); err == nil {
		t.Error("Expected error loading a missing file")
	}
}

func TestFileSystemResolverUnicodeNormalization(t *testing.T) {
	// "café" with a combining acute accent, as some filesystems store it.
	decomposed := "cafe\u0301.yaml"
	resolver := newTestFS(t, map[string]string{decomposed: "body: []"})

	identity, err := resolver.Normalize("./"+decomposed, "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if identity != "caf\u00e9.yaml" {
		t.Errorf("Expected composed identity, got %q", identity)
	}

	resolved, err := resolver.Load(identity)
	if err != nil {
		t.Fatalf("Load of normalized identity failed: %v", err)
	}
	if resolved.Source.Content != "body: []" {
		t.Errorf("Expected content to be read from the stored path, got %q", resolved.Source.Content)
	}
}

func TestFileSystemResolverCustomExtensions(t *testing.T) {
	resolver := newTestFS(t, map[string]string{"mod.json": "{}"})
	resolver.SetExtensions([]string{".json"})
	resolver.SetIndexFiles(nil)
	resolver.SetPriority(1)

	identity, err := resolver.Normalize("./mod", "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if identity != "mod.json" {
		t.Errorf("Expected 'mod.json', got '%s'", identity)
	}
	if resolver.Priority() != 1 {
		t.Errorf("Expected priority 1, got %d", resolver.Priority())
	}
}

func TestOSFileSystemResolver(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "entry.yaml"), []byte("body: []"), 0o644); err != nil {
		t.Fatal(err)
	}
	resolver := NewOSFileSystemResolver(dir)

	identity, err := resolver.Normalize("./entry", "")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if identity != "entry.yaml" {
		t.Errorf("Expected 'entry.yaml', got '%s'", identity)
	}
	if resolver.Name() != "OSFileSystem" {
		t.Errorf("Expected name 'OSFileSystem', got '%s'", resolver.Name())
	}
}
