package source

import (
	"path"
	"strings"
)

// SourceFile is the raw text of a script or module together with the
// identity the loader assigned to it.
type SourceFile struct {
	Name     string // Display name (e.g., "main.yaml", "<eval>")
	Identity string // Normalized module identity; empty for scripts and eval code
	Resolver string // Name of the resolver that fetched the source
	Content  string
	lines    []string
}

// NewSourceFile creates a new source file
func NewSourceFile(name, identity, content string) *SourceFile {
	return &SourceFile{
		Name:     name,
		Identity: identity,
		Content:  content,
	}
}

// NewEvalSource creates a source file for eval code
func NewEvalSource(content string) *SourceFile {
	return &SourceFile{Name: "<eval>", Content: content}
}

// FromIdentity creates a SourceFile named after the last element of identity.
func FromIdentity(identity string, content []byte) *SourceFile {
	return NewSourceFile(path.Base(identity), identity, string(content))
}

// Lines returns the source split into lines (cached)
func (sf *SourceFile) Lines() []string {
	if sf.lines == nil {
		sf.lines = strings.Split(sf.Content, "\n")
	}
	return sf.lines
}

// Line returns the 1-based line n, or "" when out of range.
func (sf *SourceFile) Line(n int) string {
	lines := sf.Lines()
	if n < 1 || n > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[n-1], "\r")
}

// DisplayPath returns the best path for display (prefers Identity, falls back to Name)
func (sf *SourceFile) DisplayPath() string {
	if sf.Identity != "" {
		return sf.Identity
	}
	return sf.Name
}

// IsModule reports whether the source was fetched by the module loader.
func (sf *SourceFile) IsModule() bool {
	return sf.Identity != ""
}
