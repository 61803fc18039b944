// Package taproot builds and queries a directed import graph of one
// or more Python-style packages: packages as directories, modules as
// files, imports declared via textual `import` / `from X import Y`
// statements.
//
// # Pipeline
//
// Taproot operates in three phases:
//
//  1. Scan: walk the filesystem for each named package root, yielding
//     every module together with its dotted name and mtime.
//
//  2. Extract: parse each module with tree-sitter, collect its import
//     statements (including relative imports, wildcards and
//     TYPE_CHECKING guards) and resolve them to fully qualified
//     module names. Unchanged files are served from an on-disk cache.
//
//  3. Assemble: insert every module and every resolved import into an
//     in-memory directed multigraph over interned module identifiers.
//
// # Usage
//
// Build a graph and query it:
//
//	g, err := taproot.BuildGraph(ctx, []string{"mypackage"})
//	if err != nil { ... }
//
//	chain, err := g.FindShortestChain("mypackage.api", "mypackage.db", false)
//	deps, err := g.FindIllegalDependenciesForLayers(
//		[]taproot.Layer{taproot.NewLayer("api"), taproot.NewLayer("db")},
//		[]string{"mypackage"},
//	)
//
// # Query API
//
// The [Graph] supports hierarchy queries (FindChildren,
// FindDescendants), direct-import queries (DirectImportExists,
// ImportDetails, FindMatchingDirectImports), reachability queries
// (FindUpstreamModules, FindDownstreamModules, FindShortestChain,
// FindShortestChains, ChainExists), module-expression matching
// (FindMatchingModules), and enforcement of layered architectures
// (FindIllegalDependenciesForLayers).
//
// # Incremental builds
//
// BuildGraph caches extracted imports per file, keyed by the exact
// build configuration and each file's mtime. Rebuilds with unchanged
// files skip extraction entirely. Use [WithoutCache] to disable.
package taproot
