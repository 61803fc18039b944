package taproot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jward/taproot/internal/cache"
	"github.com/jward/taproot/internal/extract"
	"github.com/jward/taproot/internal/parse"
	"github.com/jward/taproot/internal/scan"
)

type buildConfig struct {
	includeExternal     bool
	excludeTypeChecking bool
	cacheDir            string
	cacheEnabled        bool
	searchPath          []string
	log                 *slog.Logger
}

// Option configures BuildGraph.
type Option func(*buildConfig)

// IncludeExternalPackages keeps imports of modules outside the named
// packages, added to the graph as squashed external nodes.
func IncludeExternalPackages() Option {
	return func(c *buildConfig) { c.includeExternal = true }
}

// ExcludeTypeCheckingImports drops imports made inside
// `if TYPE_CHECKING:` guards.
func ExcludeTypeCheckingImports() Option {
	return func(c *buildConfig) { c.excludeTypeChecking = true }
}

// WithCacheDir sets the directory for the import cache. The default
// is ".taproot_cache"; an empty dir disables the cache.
func WithCacheDir(dir string) Option {
	return func(c *buildConfig) { c.cacheDir = dir }
}

// WithoutCache disables both reading and writing the import cache.
func WithoutCache() Option {
	return func(c *buildConfig) { c.cacheEnabled = false }
}

// WithSearchPath sets the directories searched to locate the named
// packages. The default is the working directory.
func WithSearchPath(dirs ...string) Option {
	return func(c *buildConfig) { c.searchPath = dirs }
}

// WithLogger sets the logger for warn-and-skip events and cache
// diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(c *buildConfig) { c.log = log }
}

// BuildGraph scans the named packages, extracts the imports of every
// module (in parallel, consulting the on-disk cache) and assembles
// the import graph.
func BuildGraph(ctx context.Context, packageNames []string, opts ...Option) (*Graph, error) {
	if len(packageNames) == 0 {
		return nil, errors.New("at least one package name is required")
	}

	cfg := buildConfig{
		cacheDir:     cache.DefaultDir,
		cacheEnabled: true,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	packages, err := scanPackages(packageNames, cfg)
	if err != nil {
		return nil, err
	}

	imports, err := extractImports(ctx, packages, cfg)
	if err != nil {
		return nil, err
	}

	return assembleGraph(packages, imports, cfg)
}

func scanPackages(packageNames []string, cfg buildConfig) ([]scan.Package, error) {
	locator := scan.PathLocator{SearchPath: cfg.searchPath}
	scanner := scan.New(cfg.log)

	packages := make([]scan.Package, 0, len(packageNames))
	for _, name := range packageNames {
		dir, err := locator.Locate(name)
		if err != nil {
			return nil, err
		}
		pkg, err := scanner.ScanPackage(name, dir)
		if err != nil {
			var namespace *scan.IsNamespacePackage
			if errors.As(err, &namespace) {
				return nil, &NamespacePackageError{Package: namespace.Package}
			}
			return nil, fmt.Errorf("scanning %s: %w", name, err)
		}
		packages = append(packages, pkg)
	}
	sort.Slice(packages, func(i, j int) bool { return packages[i].Name < packages[j].Name })
	return packages, nil
}

// extractImports returns the import records for every scanned file,
// keyed by path. Files with a warm cache entry are not re-extracted;
// the rest are parsed on a worker pool.
func extractImports(ctx context.Context, packages []scan.Package, cfg buildConfig) (map[string][]cache.ImportRecord, error) {
	var store *cache.Cache
	if cfg.cacheEnabled && cfg.cacheDir != "" {
		store = cache.Open(cfg.cacheDir, cacheConfig(packages, cfg), cfg.log)
	}

	records := make(map[string][]cache.ImportRecord)
	scanned := make(map[string]struct{})
	var misses []scan.ModuleFile
	for _, pkg := range packages {
		for _, file := range pkg.Files {
			scanned[file.Path] = struct{}{}
			if cached, ok := store.Lookup(file.Path, file.MTimeNanos); ok {
				records[file.Path] = cached
				continue
			}
			misses = append(misses, file)
		}
	}

	if len(misses) > 0 {
		resolver := extract.NewResolver(packages, cfg.includeExternal)

		var mu sync.Mutex
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(runtime.NumCPU())
		for _, file := range misses {
			group.Go(func() error {
				found, err := resolver.ScanFile(groupCtx, file)
				if err != nil {
					if errors.Is(err, parse.ErrInvalidEncoding) {
						cfg.log.Warn("skipping file that is not valid UTF-8", "path", file.Path)
						found = nil
					} else {
						var syntaxErr *parse.SyntaxError
						if errors.As(err, &syntaxErr) {
							return &SourceSyntaxError{
								Path: file.Path,
								Line: syntaxErr.Line,
								Text: syntaxErr.Text,
							}
						}
						return fmt.Errorf("extracting %s: %w", file.Path, err)
					}
				}

				fileRecords := make([]cache.ImportRecord, 0, len(found))
				for _, imp := range found {
					fileRecords = append(fileRecords, cache.ImportRecord{
						Imported:     imp.Imported,
						LineNumber:   imp.LineNumber,
						LineContents: imp.LineContents,
						TypeChecking: imp.TypeChecking,
					})
				}

				mu.Lock()
				records[file.Path] = fileRecords
				store.Record(file.Path, file.Module, file.MTimeNanos, fileRecords)
				mu.Unlock()
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}
	}

	if err := store.Write(scanned); err != nil {
		cfg.log.Warn("could not write import cache", "error", err)
	}
	return records, nil
}

func cacheConfig(packages []scan.Package, cfg buildConfig) cache.Config {
	names := make([]string, len(packages))
	for i, pkg := range packages {
		names[i] = pkg.Name
	}
	return cache.Config{
		RootNames:                  names,
		IncludeExternalPackages:    cfg.includeExternal,
		ExcludeTypeCheckingImports: cfg.excludeTypeChecking,
	}
}

// assembleGraph inserts every scanned module and every extracted edge
// into a fresh graph. Imported modules outside the scanned packages
// are added as squashed external nodes.
func assembleGraph(packages []scan.Package, records map[string][]cache.ImportRecord, cfg buildConfig) (*Graph, error) {
	roots := make([]string, len(packages))
	for i, pkg := range packages {
		roots[i] = pkg.Name
	}

	g := NewGraph()
	for _, pkg := range packages {
		for _, file := range pkg.Files {
			if err := g.AddModule(file.Module); err != nil {
				return nil, fmt.Errorf("adding module %s: %w", file.Module, err)
			}
		}
	}
	for _, pkg := range packages {
		for _, file := range pkg.Files {
			for _, record := range records[file.Path] {
				if cfg.excludeTypeChecking && record.TypeChecking {
					continue
				}
				if isExternalModule(record.Imported, roots) {
					if err := g.AddSquashedModule(record.Imported); err != nil {
						return nil, fmt.Errorf("adding external module %s: %w", record.Imported, err)
					}
				}
				g.AddDetailedImport(file.Module, record.Imported, record.LineNumber, record.LineContents)
			}
		}
	}
	return g, nil
}

// isExternalModule reports whether a module's root segment is not
// among the scanned package roots.
func isExternalModule(module string, roots []string) bool {
	for _, root := range roots {
		if module == root || isDescendantName(module, root) {
			return false
		}
	}
	return true
}
