package taproot

import "fmt"

// ModuleNotPresentError indicates that a module was not present in
// the graph.
type ModuleNotPresentError struct {
	Module string
}

func (e *ModuleNotPresentError) Error() string {
	return fmt.Sprintf("module %q is not present in the graph", e.Module)
}

// ModuleIsSquashedError indicates that a hierarchy query was made
// against a squashed module, which by definition has no children.
type ModuleIsSquashedError struct {
	Module string
}

func (e *ModuleIsSquashedError) Error() string {
	return fmt.Sprintf("module %q is squashed and has no hierarchy", e.Module)
}

// SharedDescendantsError indicates that a query treated two modules
// as packages whose subtrees overlap (one is a descendant of the
// other, or they are the same module).
type SharedDescendantsError struct {
	Importer string
	Imported string
}

func (e *SharedDescendantsError) Error() string {
	return fmt.Sprintf("modules %q and %q have shared descendants", e.Importer, e.Imported)
}

// InvalidModuleExpressionError indicates a malformed module
// expression, e.g. a wildcard embedded in a segment such as "foo*".
type InvalidModuleExpressionError struct {
	Expression string
}

func (e *InvalidModuleExpressionError) Error() string {
	return fmt.Sprintf("invalid module expression %q", e.Expression)
}

// NoSuchContainerError indicates that a container passed to the layer
// analyser is not a module in the graph.
type NoSuchContainerError struct {
	Container string
}

func (e *NoSuchContainerError) Error() string {
	return fmt.Sprintf("container %q does not exist in the graph", e.Container)
}

// NamespacePackageError indicates that a named root is a pure
// namespace package: it has no __init__ file and no source modules,
// so there is nothing to scan.
type NamespacePackageError struct {
	Package string
}

func (e *NamespacePackageError) Error() string {
	return fmt.Sprintf(
		"package %q appears to be a namespace package with no modules; "+
			"if this is not deliberate, adding an __init__.py file should fix the problem",
		e.Package)
}

// SourceSyntaxError indicates that a module could not be parsed. The
// build fails rather than producing a silently incomplete graph.
type SourceSyntaxError struct {
	Path string
	Line int
	Text string
}

func (e *SourceSyntaxError) Error() string {
	return fmt.Sprintf("syntax error in %s, line %d: %s", e.Path, e.Line, e.Text)
}
