// Package scan walks the filesystem for each named package root,
// yielding every Python module with its dotted name, absolute path
// and modification time. Directories without an __init__.py are not
// descended into (except for the root itself, which may be a
// namespace portion); hidden files and directories are skipped, as
// are filenames carrying extra dots.
package scan

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.trai.ch/zerr"
)

const (
	initFile  = "__init__.py"
	extension = ".py"
)

// ModuleFile is one discovered source file.
type ModuleFile struct {
	// Module is the fully qualified dotted name.
	Module string
	// Path is the absolute filename.
	Path string
	// MTimeNanos is the file's modification time in nanoseconds
	// since the Unix epoch.
	MTimeNanos int64
}

// Package is the result of scanning one root.
type Package struct {
	// Name is the importable (possibly dotted) package name.
	Name string
	// Directory is the package's directory on disk.
	Directory string
	// Files lists every module found, sorted by module name.
	Files []ModuleFile
}

// IsNamespacePackage reports a root that contained neither an
// __init__ file nor any source modules.
type IsNamespacePackage struct {
	Package string
}

func (e *IsNamespacePackage) Error() string {
	return fmt.Sprintf("package %q appears to be a namespace package", e.Package)
}

// Locator resolves an importable package name to its directory on
// disk.
type Locator interface {
	Locate(packageName string) (string, error)
}

// PathLocator searches an ordered list of directories, mapping dots
// in the package name to path separators the way an import system
// would.
type PathLocator struct {
	SearchPath []string
}

func (l PathLocator) Locate(packageName string) (string, error) {
	searchPath := l.SearchPath
	if len(searchPath) == 0 {
		searchPath = []string{"."}
	}
	relative := filepath.Join(strings.Split(packageName, ".")...)
	for _, dir := range searchPath {
		candidate := filepath.Join(dir, relative)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return filepath.Abs(candidate)
		}
	}
	return "", fmt.Errorf("could not find package %q in search path %v", packageName, searchPath)
}

// Scanner discovers the modules of package roots.
type Scanner struct {
	log *slog.Logger
}

// New returns a Scanner that logs skipped files to log.
func New(log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{log: log}
}

// ScanPackage walks the package rooted at directory. Symbolic links
// to directories are followed. A root with neither an __init__ file
// nor any modules fails with IsNamespacePackage.
func (s *Scanner) ScanPackage(packageName, directory string) (Package, error) {
	directory, err := filepath.Abs(directory)
	if err != nil {
		return Package{}, zerr.Wrap(err, "failed to resolve package directory")
	}

	var files []ModuleFile
	if err := s.walk(directory, packageName, true, &files); err != nil {
		return Package{}, err
	}

	if len(files) == 0 {
		return Package{}, &IsNamespacePackage{Package: packageName}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Module < files[j].Module })
	return Package{Name: packageName, Directory: directory, Files: files}, nil
}

// walk scans one directory. Non-root directories require an __init__
// file; the root is scanned regardless so that namespace portions
// (roots distributed without an __init__) work.
func (s *Scanner) walk(dir, prefix string, isRoot bool, files *[]ModuleFile) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return zerr.Wrap(err, "failed to read package directory")
	}

	if !isRoot && !hasInit(entries) {
		return nil
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)

		// Stat rather than the dir entry so symlinked directories are
		// followed.
		info, err := os.Stat(path)
		if err != nil {
			s.log.Warn("skipping unreadable entry", "path", path, "error", err)
			continue
		}

		if info.IsDir() {
			if err := s.walk(path, prefix+"."+name, false, files); err != nil {
				return err
			}
			continue
		}

		if !strings.HasSuffix(name, extension) {
			continue
		}
		if strings.Count(name, ".") > 1 {
			s.log.Warn("skipping module with too many dots in the name", "path", path)
			continue
		}

		module := prefix
		if name != initFile {
			module = prefix + "." + strings.TrimSuffix(name, extension)
		}
		*files = append(*files, ModuleFile{
			Module:     module,
			Path:       path,
			MTimeNanos: info.ModTime().UnixNano(),
		})
	}
	return nil
}

func hasInit(entries []os.DirEntry) bool {
	for _, entry := range entries {
		if entry.Name() == initFile {
			return true
		}
	}
	return false
}
