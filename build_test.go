package taproot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree lays out a package fixture: keys are slash-separated
// paths relative to dir.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for path, contents := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(contents), 0o644))
	}
}

func buildFixture(t *testing.T, files map[string]string, opts ...Option) *Graph {
	t.Helper()
	dir := t.TempDir()
	writeTree(t, dir, files)
	opts = append([]Option{WithSearchPath(dir), WithoutCache()}, opts...)
	g, err := BuildGraph(context.Background(), []string{"pkg"}, opts...)
	require.NoError(t, err)
	return g
}

// =============================================================================
// End-to-end scenarios
// =============================================================================

func TestBuildGraph_TrivialTwoModuleChain(t *testing.T) {
	t.Parallel()
	g := buildFixture(t, map[string]string{
		"pkg/__init__.py": "",
		"pkg/a.py":        "from . import b\n",
		"pkg/b.py":        "",
	})

	assert.Equal(t, []string{"pkg", "pkg.a", "pkg.b"}, g.Modules())

	exists, err := g.DirectImportExists("pkg.a", "pkg.b", false)
	require.NoError(t, err)
	assert.True(t, exists)

	chain, err := g.FindShortestChain("pkg.a", "pkg.b", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg.a", "pkg.b"}, chain)

	details := g.ImportDetails("pkg.a", "pkg.b")
	require.Len(t, details, 1)
	assert.Equal(t, ImportDetail{LineNumber: 1, LineContents: "from . import b"}, details[0])
}

func TestBuildGraph_RelativeImportDepth(t *testing.T) {
	t.Parallel()
	g := buildFixture(t, map[string]string{
		"pkg/__init__.py":   "",
		"pkg/x/__init__.py": "",
		"pkg/x/y.py":        "from ..z import q\n",
		"pkg/z/__init__.py": "",
		"pkg/z/q.py":        "",
	})

	exists, err := g.DirectImportExists("pkg.x.y", "pkg.z.q", false)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBuildGraph_RelativeImportOfAttributeResolvesToModule(t *testing.T) {
	t.Parallel()
	// q is not a module, so the import resolves to pkg.z itself.
	g := buildFixture(t, map[string]string{
		"pkg/__init__.py":   "",
		"pkg/x/__init__.py": "",
		"pkg/x/y.py":        "from ..z import q\n",
		"pkg/z/__init__.py": "q = 1\n",
	})

	exists, err := g.DirectImportExists("pkg.x.y", "pkg.z", false)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBuildGraph_TypeCheckingGuard(t *testing.T) {
	t.Parallel()
	files := map[string]string{
		"pkg/__init__.py": "",
		"pkg/a.py": "from typing import TYPE_CHECKING\n" +
			"if TYPE_CHECKING:\n" +
			"    from pkg import b\n",
		"pkg/b.py": "",
	}

	g := buildFixture(t, files)
	exists, err := g.DirectImportExists("pkg.a", "pkg.b", false)
	require.NoError(t, err)
	assert.True(t, exists)

	g = buildFixture(t, files, ExcludeTypeCheckingImports())
	exists, err = g.DirectImportExists("pkg.a", "pkg.b", false)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBuildGraph_ExternalSquash(t *testing.T) {
	t.Parallel()
	g := buildFixture(t, map[string]string{
		"pkg/__init__.py": "",
		"pkg/a.py":        "import some_ext.sub\n",
	}, IncludeExternalPackages())

	require.True(t, g.Contains("some_ext"))
	squashed, err := g.IsSquashed("some_ext")
	require.NoError(t, err)
	assert.True(t, squashed)

	exists, err := g.DirectImportExists("pkg.a", "some_ext", false)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBuildGraph_ExternalImportsDroppedByDefault(t *testing.T) {
	t.Parallel()
	g := buildFixture(t, map[string]string{
		"pkg/__init__.py": "",
		"pkg/a.py":        "import some_ext.sub\n",
	})

	assert.False(t, g.Contains("some_ext"))
	assert.Equal(t, 0, g.CountImports())
}

func TestBuildGraph_LayerViolationEndToEnd(t *testing.T) {
	t.Parallel()
	g := buildFixture(t, map[string]string{
		"pkg/__init__.py":    "",
		"pkg/hi/__init__.py": "",
		"pkg/hi/y.py":        "",
		"pkg/lo/__init__.py": "",
		"pkg/lo/x.py":        "from pkg.hi import y\n",
	})

	deps, err := g.FindIllegalDependenciesForLayers(
		[]Layer{NewLayer("hi"), NewLayer("lo")},
		[]string{"pkg"},
	)
	require.NoError(t, err)

	require.Len(t, deps, 1)
	assert.Equal(t, "pkg.lo", deps[0].Importer)
	assert.Equal(t, "pkg.hi", deps[0].Imported)
	require.Len(t, deps[0].Routes, 1)
	assert.Equal(t, Route{
		Heads: []string{"pkg.lo.x"},
		Tails: []string{"pkg.hi.y"},
	}, deps[0].Routes[0])
}

// =============================================================================
// Scanning edge cases
// =============================================================================

func TestBuildGraph_SkipsSubdirectoriesWithoutInit(t *testing.T) {
	t.Parallel()
	g := buildFixture(t, map[string]string{
		"pkg/__init__.py": "",
		"pkg/data/notes.py": "import pkg\n", // no __init__.py alongside
	})

	assert.Equal(t, []string{"pkg"}, g.Modules())
}

func TestBuildGraph_SkipsFilesWithExtraDots(t *testing.T) {
	t.Parallel()
	g := buildFixture(t, map[string]string{
		"pkg/__init__.py":  "",
		"pkg/some.thing.py": "import pkg\n",
	})

	assert.Equal(t, []string{"pkg"}, g.Modules())
}

func TestBuildGraph_NamespacePackageFails(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0o755))

	_, err := BuildGraph(context.Background(), []string{"pkg"},
		WithSearchPath(dir), WithoutCache())

	var namespace *NamespacePackageError
	require.ErrorAs(t, err, &namespace)
	assert.Equal(t, "pkg", namespace.Package)
}

func TestBuildGraph_NamespacePortionIsScanned(t *testing.T) {
	t.Parallel()
	// A root without an __init__ file but with modules is a namespace
	// portion and scans normally.
	g := buildFixture(t, map[string]string{
		"pkg/a.py": "",
		"pkg/b.py": "import pkg.a\n",
	})

	assert.Equal(t, []string{"pkg.a", "pkg.b"}, g.Modules())
	exists, err := g.DirectImportExists("pkg.b", "pkg.a", false)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBuildGraph_SyntaxErrorFailsBuild(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"pkg/__init__.py": "",
		"pkg/broken.py":   "def def def\n",
	})

	_, err := BuildGraph(context.Background(), []string{"pkg"},
		WithSearchPath(dir), WithoutCache())

	var syntaxErr *SourceSyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	assert.Contains(t, syntaxErr.Path, "broken.py")
}

func TestBuildGraph_NonUTF8FileIsSkipped(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"pkg/__init__.py": "",
		"pkg/ok.py":       "import pkg\n",
	})
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "pkg", "latin.py"),
		[]byte("# caf\xe9\nimport pkg\n"), 0o644))

	g, err := BuildGraph(context.Background(), []string{"pkg"},
		WithSearchPath(dir), WithoutCache())
	require.NoError(t, err)

	// The module is present but contributes no imports.
	assert.Contains(t, g.Modules(), "pkg.latin")
	imported, err := g.ModulesDirectlyImportedBy("pkg.latin")
	require.NoError(t, err)
	assert.Empty(t, imported)
}

func TestBuildGraph_UTF8BOMIsTolerated(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"pkg/__init__.py": "",
	})
	source := append([]byte{0xEF, 0xBB, 0xBF}, []byte("import pkg\n")...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pkg", "a.py"), source, 0o644))

	g, err := BuildGraph(context.Background(), []string{"pkg"},
		WithSearchPath(dir), WithoutCache())
	require.NoError(t, err)

	exists, err := g.DirectImportExists("pkg.a", "pkg", false)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBuildGraph_MultiplePackages(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"one/__init__.py": "",
		"one/a.py":        "import two.b\n",
		"two/__init__.py": "",
		"two/b.py":        "",
	})

	g, err := BuildGraph(context.Background(), []string{"one", "two"},
		WithSearchPath(dir), WithoutCache())
	require.NoError(t, err)

	exists, err := g.DirectImportExists("one.a", "two.b", false)
	require.NoError(t, err)
	assert.True(t, exists)
	// two.b is internal, so it is not squashed.
	squashed, err := g.IsSquashed("two.b")
	require.NoError(t, err)
	assert.False(t, squashed)
}

// =============================================================================
// Cache behaviour
// =============================================================================

func TestBuildGraph_CacheIdempotence(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cacheDir := filepath.Join(t.TempDir(), "cache")
	writeTree(t, dir, map[string]string{
		"pkg/__init__.py": "",
		"pkg/a.py":        "from . import b\n",
		"pkg/b.py":        "",
	})

	build := func() *Graph {
		g, err := BuildGraph(context.Background(), []string{"pkg"},
			WithSearchPath(dir), WithCacheDir(cacheDir))
		require.NoError(t, err)
		return g
	}

	first := build()
	second := build()

	assert.Equal(t, first.Modules(), second.Modules())
	assert.Equal(t, first.Imports(), second.Imports())
	assert.Equal(t,
		first.ImportDetails("pkg.a", "pkg.b"),
		second.ImportDetails("pkg.a", "pkg.b"))
}

func TestBuildGraph_WarmCacheSkipsExtraction(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cacheDir := filepath.Join(t.TempDir(), "cache")
	path := filepath.Join(dir, "pkg", "a.py")
	writeTree(t, dir, map[string]string{
		"pkg/__init__.py": "",
		"pkg/a.py":        "from . import b\n",
		"pkg/b.py":        "",
	})

	_, err := BuildGraph(context.Background(), []string{"pkg"},
		WithSearchPath(dir), WithCacheDir(cacheDir))
	require.NoError(t, err)

	// Replace the file with unparseable garbage while preserving its
	// mtime: a second build only succeeds if it never re-extracts.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("def def def\n"), 0o644))
	require.NoError(t, os.Chtimes(path, info.ModTime(), info.ModTime()))

	g, err := BuildGraph(context.Background(), []string{"pkg"},
		WithSearchPath(dir), WithCacheDir(cacheDir))
	require.NoError(t, err)

	exists, err := g.DirectImportExists("pkg.a", "pkg.b", false)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBuildGraph_ChangedFileIsReExtracted(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cacheDir := filepath.Join(t.TempDir(), "cache")
	path := filepath.Join(dir, "pkg", "a.py")
	writeTree(t, dir, map[string]string{
		"pkg/__init__.py": "",
		"pkg/a.py":        "from . import b\n",
		"pkg/b.py":        "",
		"pkg/c.py":        "",
	})

	_, err := BuildGraph(context.Background(), []string{"pkg"},
		WithSearchPath(dir), WithCacheDir(cacheDir))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("from . import c\n"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	g, err := BuildGraph(context.Background(), []string{"pkg"},
		WithSearchPath(dir), WithCacheDir(cacheDir))
	require.NoError(t, err)

	exists, err := g.DirectImportExists("pkg.a", "pkg.c", false)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = g.DirectImportExists("pkg.a", "pkg.b", false)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBuildGraph_CorruptCacheIsColdBuild(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cacheDir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"pkg/__init__.py": "",
		"pkg/a.py":        "from . import b\n",
		"pkg/b.py":        "",
	})

	_, err := BuildGraph(context.Background(), []string{"pkg"},
		WithSearchPath(dir), WithCacheDir(cacheDir))
	require.NoError(t, err)

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".yaml" {
			require.NoError(t, os.WriteFile(
				filepath.Join(cacheDir, entry.Name()), []byte("{not yaml"), 0o644))
		}
	}

	g, err := BuildGraph(context.Background(), []string{"pkg"},
		WithSearchPath(dir), WithCacheDir(cacheDir))
	require.NoError(t, err)

	exists, err := g.DirectImportExists("pkg.a", "pkg.b", false)
	require.NoError(t, err)
	assert.True(t, exists)
}
