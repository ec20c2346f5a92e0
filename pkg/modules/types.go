package modules

import (
	"runtime"

	"escore/pkg/source"
	"escore/pkg/vm"
)

// Status is the linking state of a module record.
type Status int

const (
	Uninstantiated Status = iota
	Instantiating
	Instantiated
	Evaluating
	Evaluated
)

func (s Status) String() string {
	switch s {
	case Uninstantiated:
		return "uninstantiated"
	case Instantiating:
		return "instantiating"
	case Instantiated:
		return "instantiated"
	case Evaluating:
		return "evaluating"
	case Evaluated:
		return "evaluated"
	default:
		return "invalid"
	}
}

// NamespaceImport is the ImportName of `import * as ns` and the ImportName
// of `export * from` and `export * as ns from`.
const NamespaceImport = "*"

// ImportEntry is one imported name.
//
//	import x from "m"          {ModuleRequest: "m", ImportName: "default", LocalName: "x"}
//	import {a as b} from "m"   {ModuleRequest: "m", ImportName: "a", LocalName: "b"}
//	import * as ns from "m"    {ModuleRequest: "m", ImportName: "*", LocalName: "ns"}
type ImportEntry struct {
	ModuleRequest string
	ImportName    string
	LocalName     string
}

// IsNamespace reports whether the entry imports the module namespace.
func (e ImportEntry) IsNamespace() bool { return e.ImportName == NamespaceImport }

// ExportEntry is one exported name.
//
//	export {x as y}              {ExportName: "y", LocalName: "x"}
//	export {a as b} from "m"     {ExportName: "b", ModuleRequest: "m", ImportName: "a"}
//	export * from "m"            {ModuleRequest: "m", ImportName: "*"}
//	export * as ns from "m"      {ExportName: "ns", ModuleRequest: "m", ImportName: "*"}
type ExportEntry struct {
	ExportName    string
	ModuleRequest string
	ImportName    string
	LocalName     string
}

func (e ExportEntry) isStar() bool {
	return e.ImportName == NamespaceImport && e.ExportName == ""
}

func (e ExportEntry) isNamespaceReexport() bool {
	return e.ImportName == NamespaceImport && e.ExportName != ""
}

// ModuleSource is the compiled form of one module: its import and export
// entries and its top-level code.
type ModuleSource struct {
	Identity string
	// Requested lists module specifiers in source order. When empty it is
	// derived from the import and export entries.
	Requested []string
	Imports   []ImportEntry
	Exports   []ExportEntry
	Code      vm.Code
	// File is the source the module was compiled from, if any.
	File *source.SourceFile
}

func (s *ModuleSource) requestedModules() []string {
	if len(s.Requested) > 0 {
		return s.Requested
	}
	seen := make(map[string]bool)
	var out []string
	add := func(spec string) {
		if spec != "" && !seen[spec] {
			seen[spec] = true
			out = append(out, spec)
		}
	}
	for _, in := range s.Imports {
		add(in.ModuleRequest)
	}
	for _, ex := range s.Exports {
		add(ex.ModuleRequest)
	}
	return out
}

// ResolvedModule is what a resolver hands back for an identity: either
// source for the loader's compiler or a ready-made module.
type ResolvedModule struct {
	Identity string
	Source   *source.SourceFile
	Module   Module
	Resolver string
}

// LoaderConfig configures module loader behavior.
type LoaderConfig struct {
	// Prefetch loads and compiles the whole static graph concurrently
	// before linking.
	Prefetch bool
	// NumWorkers bounds concurrent compiles during prefetch (0 = NumCPU).
	NumWorkers int
	// Aliases rewrite specifiers before resolution, in order.
	Aliases []AliasRule
	// MaxDepth bounds the prefetch walk (0 = unlimited).
	MaxDepth int
}

// AliasRule rewrites specifiers matching Pattern (ECMAScript regular
// expression syntax) to Replacement, which may use $1-style references.
type AliasRule struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// DefaultLoaderConfig returns sensible default configuration.
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		Prefetch:   false,
		NumWorkers: runtime.NumCPU(),
		MaxDepth:   100,
	}
}

// RegistryStats contains statistics about the module registry.
type RegistryStats struct {
	TotalModules int
	CacheHits    int
	CacheMisses  int
}

// LoaderStats contains overall statistics about module loading.
type LoaderStats struct {
	Registry   RegistryStats
	Compiled   int
	Prefetched int
}
