// Package parse extracts import statements from Python source using
// tree-sitter. It reports each imported object together with its line
// metadata and whether it sits inside a TYPE_CHECKING guard; dotted
// names are returned raw (relative imports keep their leading dots)
// for the resolver to absolutise.
package parse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrInvalidEncoding reports source that is not valid UTF-8. Callers
// treat this as a recoverable warning and skip the file.
var ErrInvalidEncoding = errors.New("source is not valid UTF-8")

// SyntaxError reports source that could not be parsed. The graph is
// never silently incomplete, so builds fail on it.
type SyntaxError struct {
	Line int
	Text string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error on line %d: %s", e.Line, e.Text)
}

// ImportedObject is one name imported by a statement. For
// `from X import a, b` two objects are produced (`X.a`, `X.b`);
// wildcard imports produce `X.*`; relative imports keep their dots
// (`from .. import foo` produces `..foo`).
type ImportedObject struct {
	Name         string
	LineNumber   int
	LineContents string
	TypeChecking bool
}

// Node types from the tree-sitter-python grammar.
const (
	nodeImportStatement     = "import_statement"
	nodeImportFromStatement = "import_from_statement"
	nodeDottedName          = "dotted_name"
	nodeAliasedImport       = "aliased_import"
	nodeRelativeImport      = "relative_import"
	nodeImportPrefix        = "import_prefix"
	nodeWildcardImport      = "wildcard_import"
	nodeIfStatement         = "if_statement"
	nodeIdentifier          = "identifier"
	nodeAttribute           = "attribute"
	nodeError               = "ERROR"
)

// Imports parses src and returns every imported object, in source
// order. A UTF-8 byte order mark is tolerated. Returns
// ErrInvalidEncoding for non-UTF-8 source and *SyntaxError when the
// parse tree contains errors.
func Imports(ctx context.Context, src []byte) ([]ImportedObject, error) {
	src = bytes.TrimPrefix(src, []byte{0xEF, 0xBB, 0xBF})
	if !utf8.Valid(src) {
		return nil, ErrInvalidEncoding
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	lines := strings.Split(string(src), "\n")
	if root.HasError() {
		line := firstErrorLine(root)
		return nil, &SyntaxError{Line: line, Text: lineText(lines, line)}
	}

	v := &visitor{src: src, lines: lines}
	v.walk(root, false)
	return v.imports, nil
}

type visitor struct {
	src     []byte
	lines   []string
	imports []ImportedObject
}

func (v *visitor) walk(node *sitter.Node, typeChecking bool) {
	switch node.Type() {
	case nodeImportStatement:
		v.visitImport(node, typeChecking)
	case nodeImportFromStatement:
		v.visitImportFrom(node, typeChecking)
	case nodeIfStatement:
		guarded := typeChecking || isTypeCheckingCondition(node.ChildByFieldName("condition"), v.src)
		for i := 0; i < int(node.NamedChildCount()); i++ {
			v.walk(node.NamedChild(i), guarded)
		}
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		v.walk(node.NamedChild(i), typeChecking)
	}
}

// visitImport handles `import a.b, c as d`. Every name on the
// statement shares the statement's line metadata.
func (v *visitor) visitImport(node *sitter.Node, typeChecking bool) {
	line := int(node.StartPoint().Row) + 1
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		var name string
		switch child.Type() {
		case nodeDottedName:
			name = child.Content(v.src)
		case nodeAliasedImport:
			name = child.ChildByFieldName("name").Content(v.src)
		default:
			continue
		}
		v.add(name, line, typeChecking)
	}
}

// visitImportFrom handles `from a.b import c, d as e`, relative forms
// and wildcards. The first named child is the source module; wildcard
// imports yield a single `module.*` object.
func (v *visitor) visitImportFrom(node *sitter.Node, typeChecking bool) {
	if node.NamedChildCount() == 0 {
		return
	}
	module := node.NamedChild(0).Content(v.src)
	line := int(node.StartPoint().Row) + 1

	for i := 1; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		var name string
		switch child.Type() {
		case nodeDottedName:
			name = child.Content(v.src)
		case nodeAliasedImport:
			name = child.ChildByFieldName("name").Content(v.src)
		case nodeWildcardImport:
			name = "*"
		default:
			continue
		}
		v.add(joinModule(module, name), line, typeChecking)
	}
}

// joinModule appends an imported name to its source module. Pure
// relative sources ("." or "..") concatenate without a separator:
// `from . import foo` is `.foo`.
func joinModule(module, name string) string {
	if strings.HasSuffix(module, ".") {
		return module + name
	}
	return module + "." + name
}

func (v *visitor) add(name string, line int, typeChecking bool) {
	v.imports = append(v.imports, ImportedObject{
		Name:         name,
		LineNumber:   line,
		LineContents: strings.TrimSpace(lineText(v.lines, line)),
		TypeChecking: typeChecking,
	})
}

// isTypeCheckingCondition reports whether an if condition is the bare
// name TYPE_CHECKING or an attribute access ending in .TYPE_CHECKING.
func isTypeCheckingCondition(condition *sitter.Node, src []byte) bool {
	if condition == nil {
		return false
	}
	switch condition.Type() {
	case nodeIdentifier:
		return condition.Content(src) == "TYPE_CHECKING"
	case nodeAttribute:
		attr := condition.ChildByFieldName("attribute")
		return attr != nil && attr.Content(src) == "TYPE_CHECKING"
	}
	return false
}

func firstErrorLine(node *sitter.Node) int {
	if node.Type() == nodeError || node.IsMissing() {
		return int(node.StartPoint().Row) + 1
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if line := firstErrorLine(node.Child(i)); line > 0 {
			return line
		}
	}
	return 0
}

func lineText(lines []string, line int) string {
	if line < 1 || line > len(lines) {
		return ""
	}
	return lines[line-1]
}
