package parse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(t *testing.T, src string) []string {
	t.Helper()
	imports, err := Imports(context.Background(), []byte(src))
	require.NoError(t, err)
	out := make([]string, len(imports))
	for i, imp := range imports {
		out[i] = imp.Name
	}
	return out
}

func TestImports_EmptySource(t *testing.T) {
	t.Parallel()
	imports, err := Imports(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, imports)
}

func TestImports_ImportStatements(t *testing.T) {
	t.Parallel()
	tests := []struct {
		src      string
		expected []string
	}{
		{"import foo", []string{"foo"}},
		{"import foo_FOO_123", []string{"foo_FOO_123"}},
		{"import foo.bar", []string{"foo.bar"}},
		{"import foo.bar.baz", []string{"foo.bar.baz"}},
		{"import foo, bar, bax", []string{"foo", "bar", "bax"}},
		{"import foo as FOO", []string{"foo"}},
		{"import foo as FOO, bar as BAR", []string{"foo", "bar"}},
		{"import foo # Comment", []string{"foo"}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.expected, names(t, tt.src))
		})
	}
}

func TestImports_FromImportStatements(t *testing.T) {
	t.Parallel()
	tests := []struct {
		src      string
		expected []string
	}{
		{"from foo import bar", []string{"foo.bar"}},
		{"from .foo import bar", []string{".foo.bar"}},
		{"from ..foo import bar", []string{"..foo.bar"}},
		{"from . import foo", []string{".foo"}},
		{"from .. import foo", []string{"..foo"}},
		{"from foo.bar import baz", []string{"foo.bar.baz"}},
		{"from .foo.bar import baz", []string{".foo.bar.baz"}},
		{"from foo import bar, baz, bax", []string{"foo.bar", "foo.baz", "foo.bax"}},
		{"from foo import bar as BAR", []string{"foo.bar"}},
		{"from foo import bar as BAR, baz as BAZ", []string{"foo.bar", "foo.baz"}},
		{"from foo import (bar)", []string{"foo.bar"}},
		{"from foo import (bar, baz,)", []string{"foo.bar", "foo.baz"}},
		{"from foo import (\n    bar,\n    baz,\n)", []string{"foo.bar", "foo.baz"}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.expected, names(t, tt.src))
		})
	}
}

func TestImports_Wildcards(t *testing.T) {
	t.Parallel()
	tests := []struct {
		src      string
		expected []string
	}{
		{"from foo import *", []string{"foo.*"}},
		{"from .foo import *", []string{".foo.*"}},
		{"from . import *", []string{".*"}},
		{"from .. import *", []string{"..*"}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.expected, names(t, tt.src))
		})
	}
}

func TestImports_NestedInsideFunctionsAndClasses(t *testing.T) {
	t.Parallel()
	src := `
import a
def foo():
    import b
class Foo:
    import c
import d
`
	assert.Equal(t, []string{"a", "b", "c", "d"}, names(t, src))
}

func TestImports_StringsAndCommentsAreIgnored(t *testing.T) {
	t.Parallel()
	src := `
import foo
# import bar
s = """
import baz
"""
import bax
`
	assert.Equal(t, []string{"foo", "bax"}, names(t, src))
}

func TestImports_TypeCheckingGuards(t *testing.T) {
	t.Parallel()
	src := `
import foo
if TYPE_CHECKING:
    import bar
if typing.TYPE_CHECKING:
    from baz import qux
if OTHER_FLAG:
    import bax
`
	imports, err := Imports(context.Background(), []byte(src))
	require.NoError(t, err)

	byName := make(map[string]bool, len(imports))
	for _, imp := range imports {
		byName[imp.Name] = imp.TypeChecking
	}
	assert.Equal(t, map[string]bool{
		"foo":     false,
		"bar":     true,
		"baz.qux": true,
		"bax":     false,
	}, byName)
}

func TestImports_LineMetadata(t *testing.T) {
	t.Parallel()
	src := "\nimport a\nfrom b import c\n"
	imports, err := Imports(context.Background(), []byte(src))
	require.NoError(t, err)

	require.Len(t, imports, 2)
	assert.Equal(t, 2, imports[0].LineNumber)
	assert.Equal(t, "import a", imports[0].LineContents)
	assert.Equal(t, 3, imports[1].LineNumber)
	assert.Equal(t, "from b import c", imports[1].LineContents)
}

func TestImports_MultilineImportUsesStatementLine(t *testing.T) {
	t.Parallel()
	src := "from foo import (\n    bar,\n    baz,\n)\n"
	imports, err := Imports(context.Background(), []byte(src))
	require.NoError(t, err)

	require.Len(t, imports, 2)
	assert.Equal(t, 1, imports[0].LineNumber)
	assert.Equal(t, 1, imports[1].LineNumber)
}

func TestImports_SyntaxError(t *testing.T) {
	t.Parallel()
	_, err := Imports(context.Background(), []byte("import foo\ndef def def\n"))

	var syntaxErr *SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	assert.Equal(t, 2, syntaxErr.Line)
}

func TestImports_InvalidEncoding(t *testing.T) {
	t.Parallel()
	_, err := Imports(context.Background(), []byte("import caf\xe9\n"))

	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestImports_BOMIsStripped(t *testing.T) {
	t.Parallel()
	src := append([]byte{0xEF, 0xBB, 0xBF}, []byte("import foo\n")...)
	imports, err := Imports(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, imports, 1)
	assert.Equal(t, "foo", imports[0].Name)
}
