package taproot

import (
	"strings"

	"github.com/jward/taproot/internal/intern"
)

// ModuleID is an opaque handle for an interned module name, unique
// within one Graph instance.
type ModuleID = intern.ID

// ImportDetail records one occurrence of an import statement. An edge
// holds zero or more details; multiple imports of the same module
// from the same importer append details without creating new edges.
type ImportDetail struct {
	LineNumber   int
	LineContents string
}

// Import is one directed edge of the graph, identified by module
// names.
type Import struct {
	Importer string
	Imported string
}

// parentName returns the dotted-name parent of name, or "" for a
// root-level module.
func parentName(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return name[:i]
}

// selfAndAncestors expands "foo.bar.baz" to
// ["foo.bar.baz", "foo.bar", "foo"].
func selfAndAncestors(name string) []string {
	names := []string{name}
	for {
		parent := parentName(names[len(names)-1])
		if parent == "" {
			return names
		}
		names = append(names, parent)
	}
}

// isDescendantName reports whether name lies strictly under ancestor
// in the dotted namespace.
func isDescendantName(name, ancestor string) bool {
	return strings.HasPrefix(name, ancestor+".")
}
