package modules

import (
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"

	"escore/pkg/source"
)

// FileSystemResolver resolves relative and root-relative specifiers
// against a billy filesystem. Identities are clean slash paths within the
// filesystem, in Unicode normal form C, so one file never yields two
// module records.
type FileSystemResolver struct {
	name     string
	fs       billy.Filesystem
	priority int

	extensions []string // Tried after the exact path, e.g. ".yaml"
	indexFiles []string // Tried when the target is a directory
	baseDir    string   // Root of top-level and "/"-prefixed specifiers

	// identity -> the path found on disk, when the two differ by
	// normalization.
	paths sync.Map
}

// NewFileSystemResolver creates a resolver reading from filesystem.
func NewFileSystemResolver(filesystem billy.Filesystem, baseDir string) *FileSystemResolver {
	return &FileSystemResolver{
		name:       "FileSystem",
		fs:         filesystem,
		priority:   100,
		extensions: []string{".yaml", ".yml"},
		indexFiles: []string{"index.yaml", "index.yml"},
		baseDir:    path.Clean(filepath.ToSlash(baseDir)),
	}
}

// NewOSFileSystemResolver creates a resolver rooted at baseDir on the OS
// filesystem.
func NewOSFileSystemResolver(baseDir string) *FileSystemResolver {
	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		absBaseDir = baseDir
	}
	r := NewFileSystemResolver(osfs.New(absBaseDir), ".")
	r.name = "OSFileSystem"
	return r
}

func (r *FileSystemResolver) Name() string { return r.name }
func (r *FileSystemResolver) Priority() int { return r.priority }

// CanResolve accepts relative and root-relative specifiers.
func (r *FileSystemResolver) CanResolve(specifier string) bool {
	return isPathSpecifier(specifier)
}

// Normalize maps specifier to the identity of the file it names.
func (r *FileSystemResolver) Normalize(specifier, referrer string) (string, error) {
	target, err := targetPath(specifier, referrer, r.baseDir)
	if err != nil {
		return "", err
	}
	found, err := r.tryResolve(target)
	if err != nil {
		return "", err
	}
	identity := norm.NFC.String(found)
	if identity != found {
		r.paths.Store(identity, found)
	}
	return identity, nil
}

// Load reads the module source for identity.
func (r *FileSystemResolver) Load(identity string) (*ResolvedModule, error) {
	p := identity
	if found, ok := r.paths.Load(identity); ok {
		p = found.(string)
	}
	data, err := util.ReadFile(r.fs, p)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read module %s", identity)
	}
	src := source.FromIdentity(identity, data)
	src.Resolver = r.name
	return &ResolvedModule{Identity: identity, Source: src, Resolver: r.name}, nil
}

// tryResolve tries the exact path, then each extension, then each index
// file.
func (r *FileSystemResolver) tryResolve(target string) (string, error) {
	if r.isFile(target) {
		return target, nil
	}
	for _, ext := range r.extensions {
		if r.isFile(target + ext) {
			return target + ext, nil
		}
	}
	for _, indexFile := range r.indexFiles {
		indexPath := path.Join(target, indexFile)
		if r.isFile(indexPath) {
			return indexPath, nil
		}
	}
	return "", pkgerrors.Errorf("module not found: %s", target)
}

func (r *FileSystemResolver) isFile(p string) bool {
	info, err := r.fs.Stat(p)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// SetExtensions sets the file extensions to try during resolution
func (r *FileSystemResolver) SetExtensions(extensions []string) {
	r.extensions = extensions
}

// SetIndexFiles sets the index file names to try during resolution
func (r *FileSystemResolver) SetIndexFiles(indexFiles []string) {
	r.indexFiles = indexFiles
}

// SetPriority sets the resolver priority
func (r *FileSystemResolver) SetPriority(priority int) {
	r.priority = priority
}

func isPathSpecifier(specifier string) bool {
	return strings.HasPrefix(specifier, "./") ||
		strings.HasPrefix(specifier, "../") ||
		strings.HasPrefix(specifier, "/")
}

// targetPath resolves specifier against the directory of referrer, or
// against root for top-level and "/"-prefixed specifiers. The result never
// leaves root.
func targetPath(specifier, referrer, root string) (string, error) {
	if root == "" {
		root = "."
	}
	var p string
	switch {
	case strings.HasPrefix(specifier, "/"):
		p = path.Join(root, specifier)
	case strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../"):
		dir := root
		if referrer != "" {
			dir = path.Dir(referrer)
		}
		p = path.Join(dir, specifier)
	default:
		p = path.Clean(specifier)
	}
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", pkgerrors.Errorf("%s is outside the module root", specifier)
	}
	return p, nil
}
