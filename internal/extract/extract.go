// Package extract turns the raw imported names of one module into
// resolved importer→imported pairs: relative imports are absolutised
// against the importer's dotted name, names are resolved against the
// scanned module inventory, and external imports are distilled to
// squashed ancestor names.
package extract

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.trai.ch/zerr"

	"github.com/jward/taproot/internal/parse"
	"github.com/jward/taproot/internal/scan"
)

// Import is one resolved import made by a module.
type Import struct {
	Importer     string
	Imported     string
	LineNumber   int
	LineContents string
	TypeChecking bool
}

// Resolver resolves the imports of modules belonging to a set of
// scanned packages.
type Resolver struct {
	packages        []scan.Package
	modules         map[string]struct{}
	includeExternal bool
}

// NewResolver builds a Resolver over the scanned packages. When
// includeExternal is false, imports of modules outside the packages
// are dropped.
func NewResolver(packages []scan.Package, includeExternal bool) *Resolver {
	modules := make(map[string]struct{})
	for _, pkg := range packages {
		for _, file := range pkg.Files {
			modules[file.Module] = struct{}{}
		}
	}
	return &Resolver{
		packages:        packages,
		modules:         modules,
		includeExternal: includeExternal,
	}
}

// ScanFile reads and parses one module file and returns its resolved
// imports. Errors from parsing (parse.ErrInvalidEncoding,
// *parse.SyntaxError) are returned unwrapped for the caller to
// classify.
func (r *Resolver) ScanFile(ctx context.Context, file scan.ModuleFile) ([]Import, error) {
	src, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read module")
	}

	objects, err := parse.Imports(ctx, src)
	if err != nil {
		return nil, err
	}

	isPackage := filepath.Base(file.Path) == "__init__.py"

	seen := make(map[Import]struct{})
	var imports []Import
	for _, object := range objects {
		name := r.absolutise(file.Module, isPackage, object.Name)

		imported, ok := r.resolve(name)
		if !ok {
			continue
		}
		imp := Import{
			Importer:     file.Module,
			Imported:     imported,
			LineNumber:   object.LineNumber,
			LineContents: object.LineContents,
			TypeChecking: object.TypeChecking,
		}
		if _, dup := seen[imp]; dup {
			continue
		}
		seen[imp] = struct{}{}
		imports = append(imports, imp)
	}
	return imports, nil
}

// absolutise resolves a possibly-relative imported name against the
// importer. A relative import at depth k strips k trailing segments
// from the importer's dotted name (one fewer when the importer is
// itself a package __init__) before prepending.
func (r *Resolver) absolutise(importer string, isPackage bool, name string) string {
	dots := 0
	for dots < len(name) && name[dots] == '.' {
		dots++
	}
	if dots == 0 {
		return name
	}

	parts := strings.Split(importer, ".")
	keep := len(parts) - dots
	if isPackage {
		keep++
	}
	if keep < 1 {
		keep = 1
	}
	base := strings.Join(parts[:keep], ".")
	return base + "." + name[dots:]
}

// resolve maps an absolute imported name to a graph module. Internal
// names resolve to themselves or, when the name is an attribute of a
// module rather than a module (`from x import something`), to their
// parent. External names are distilled when external packages are
// included, otherwise dropped.
func (r *Resolver) resolve(name string) (string, bool) {
	if _, ok := r.modules[name]; ok {
		return name, true
	}
	if parent := parentOf(name); parent != "" {
		if _, ok := r.modules[parent]; ok {
			return parent, true
		}
	}
	if !r.includeExternal {
		return "", false
	}
	return r.distillExternal(name)
}

// distillExternal strips an external module name down to the node
// that should appear in the graph. Normally that is the root package
// (django.db.models becomes django). When the external module shares
// a namespace with an internal package, the shallowest prefix that
// does not collide with the internal namespace is used instead, so
// namespace portions stay distinct. Imports naming an ancestor
// namespace of an internal package are dropped.
func (r *Resolver) distillExternal(name string) (string, bool) {
	for _, pkg := range r.packages {
		if isDescendant(pkg.Name, name) {
			return "", false
		}
	}

	sorted := make([]scan.Package, len(r.packages))
	copy(sorted, r.packages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name > sorted[j].Name })

	root := strings.SplitN(name, ".", 2)[0]
	var candidates []string
	for _, pkg := range sorted {
		if !isDescendant(pkg.Name, root) {
			continue
		}
		internal := strings.Split(pkg.Name, ".")
		external := strings.Split(name, ".")
		var namespace []string
		for len(external) > 0 && len(internal) > 0 && external[0] == internal[0] {
			namespace = append(namespace, external[0])
			external = external[1:]
			internal = internal[1:]
		}
		namespace = append(namespace, external[0])
		candidates = append(candidates, strings.Join(namespace, "."))
	}

	if len(candidates) > 0 {
		// Multiple internal packages may share the namespace; the
		// deepest candidate is known to be a namespace itself.
		sort.Slice(candidates, func(i, j int) bool {
			return strings.Count(candidates[i], ".") < strings.Count(candidates[j], ".")
		})
		return candidates[len(candidates)-1], true
	}
	return root, true
}

func parentOf(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return name[:i]
}

// isDescendant reports whether module lies strictly under ancestor.
func isDescendant(module, ancestor string) bool {
	return strings.HasPrefix(module, ancestor+".")
}
