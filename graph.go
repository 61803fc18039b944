package taproot

import (
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jward/taproot/internal/intern"
)

// descendantCacheSize bounds the memo of descendant sets. Package
// queries over large graphs resolve the same subtrees repeatedly; the
// memo is purged on any mutation.
const descendantCacheSize = 4096

type edgeKey struct {
	importer ModuleID
	imported ModuleID
}

// moduleNode is the graph's record of one dotted name. Invisible
// nodes exist only as hierarchy placeholders: they are ancestors of
// added modules that have not themselves been added, and are never
// reported by queries.
type moduleNode struct {
	id        ModuleID
	hasParent bool
	parent    ModuleID
	children  map[ModuleID]struct{}
	invisible bool
	squashed  bool
}

// Graph is an in-memory directed multigraph of modules and the
// imports between them. The zero value is not usable; call NewGraph.
//
// Graph methods assume exclusive access: the graph is not safe for
// concurrent mutation.
type Graph struct {
	names   *intern.Interner
	nodes   map[ModuleID]*moduleNode
	imports map[ModuleID]*ordset
	reverse map[ModuleID]*ordset
	details map[edgeKey][]ImportDetail

	desc *lru.Cache[ModuleID, []ModuleID]
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	desc, _ := lru.New[ModuleID, []ModuleID](descendantCacheSize)
	return &Graph{
		names:   intern.New(),
		nodes:   make(map[ModuleID]*moduleNode),
		imports: make(map[ModuleID]*ordset),
		reverse: make(map[ModuleID]*ordset),
		details: make(map[edgeKey][]ImportDetail),
		desc:    desc,
	}
}

// mutated drops derived state after any change to modules or edges.
func (g *Graph) mutated() {
	g.desc.Purge()
}

// lookup returns the node for name, visible or not.
func (g *Graph) lookup(name string) *moduleNode {
	id, ok := g.names.Lookup(name)
	if !ok {
		return nil
	}
	return g.nodes[id]
}

// visibleNode returns the node for name, or ModuleNotPresentError if
// the module has not been added to the graph.
func (g *Graph) visibleNode(name string) (*moduleNode, error) {
	node := g.lookup(name)
	if node == nil || node.invisible {
		return nil, &ModuleNotPresentError{Module: name}
	}
	return node, nil
}

func (g *Graph) nameOf(id ModuleID) string {
	return g.names.Resolve(id)
}

// getOrAdd ensures a visible node for name exists, creating invisible
// placeholder nodes for any missing ancestors.
func (g *Graph) getOrAdd(name string) *moduleNode {
	if node := g.lookup(name); node != nil {
		if node.invisible {
			node.invisible = false
			g.mutated()
		}
		return node
	}

	ancestors := selfAndAncestors(name)
	var parent *moduleNode
	for i := len(ancestors) - 1; i >= 0; i-- {
		ancestorName := ancestors[i]
		node := g.lookup(ancestorName)
		if node == nil {
			id := g.names.Intern(ancestorName)
			node = &moduleNode{
				id:        id,
				children:  make(map[ModuleID]struct{}),
				invisible: i != 0,
			}
			if parent != nil {
				node.hasParent = true
				node.parent = parent.id
				parent.children[id] = struct{}{}
			}
			g.nodes[id] = node
			g.imports[id] = newOrdset()
			g.reverse[id] = newOrdset()
		}
		parent = node
	}
	g.mutated()
	return parent
}

// Modules returns the names of all modules in the graph.
func (g *Graph) Modules() []string {
	var names []string
	for _, node := range g.nodes {
		if !node.invisible {
			names = append(names, g.nameOf(node.id))
		}
	}
	sort.Strings(names)
	return names
}

// Contains reports whether the named module is in the graph.
func (g *Graph) Contains(name string) bool {
	node := g.lookup(name)
	return node != nil && !node.invisible
}

// IsSquashed reports whether the named module is squashed.
func (g *Graph) IsSquashed(name string) (bool, error) {
	node, err := g.visibleNode(name)
	if err != nil {
		return false, err
	}
	return node.squashed, nil
}

// AddModule adds a module to the graph. Idempotent, except that
// re-adding an existing squashed module fails.
func (g *Graph) AddModule(name string) error {
	return g.addModule(name, false)
}

// AddSquashedModule adds a module that stands in for itself and all
// of its descendants. A squashed module has no children in the graph.
func (g *Graph) AddSquashedModule(name string) error {
	return g.addModule(name, true)
}

func (g *Graph) addModule(name string, squashed bool) error {
	for _, ancestor := range selfAndAncestors(name)[1:] {
		if node := g.lookup(ancestor); node != nil && !node.invisible && node.squashed {
			return fmt.Errorf("cannot add module %q: it is a descendant of squashed module %q", name, ancestor)
		}
	}

	if existing := g.lookup(name); existing != nil {
		if !existing.invisible && existing.squashed != squashed {
			return fmt.Errorf(
				"cannot add a squashed module when it is already present in the graph as an unsquashed module, or vice versa: %q",
				name)
		}
		if squashed && len(existing.children) > 0 {
			return fmt.Errorf("cannot add %q as squashed: it has children in the graph", name)
		}
	}

	node := g.getOrAdd(name)
	node.squashed = squashed
	return nil
}

// RemoveModule removes a module and all of its incident imports. A
// no-op if the module is absent. Descendants are not removed: if the
// module has children it is retained as an invisible hierarchy
// placeholder.
func (g *Graph) RemoveModule(name string) {
	node := g.lookup(name)
	if node == nil || node.invisible {
		return
	}

	for _, imported := range g.imports[node.id].members() {
		g.removeImportIDs(node.id, imported)
	}
	for _, importer := range g.reverse[node.id].members() {
		g.removeImportIDs(importer, node.id)
	}

	if len(node.children) > 0 {
		node.invisible = true
		node.squashed = false
		g.mutated()
		return
	}
	g.detachLeaf(node)
	g.mutated()
}

// detachLeaf deletes a childless node, then prunes any invisible
// ancestors left childless by the deletion.
func (g *Graph) detachLeaf(node *moduleNode) {
	for {
		if node.hasParent {
			parent := g.nodes[node.parent]
			delete(parent.children, node.id)
			delete(g.nodes, node.id)
			delete(g.imports, node.id)
			delete(g.reverse, node.id)
			if parent.invisible && len(parent.children) == 0 {
				node = parent
				continue
			}
			return
		}
		delete(g.nodes, node.id)
		delete(g.imports, node.id)
		delete(g.reverse, node.id)
		return
	}
}

// AddImport adds a directed import between two modules, adding either
// module to the graph if missing. Idempotent at the edge level.
func (g *Graph) AddImport(importer, imported string) {
	i := g.getOrAdd(importer)
	j := g.getOrAdd(imported)
	g.addImportIDs(i.id, j.id)
}

// AddDetailedImport is AddImport carrying line metadata. Adding the
// same edge with different details appends a detail rather than
// creating a second edge.
func (g *Graph) AddDetailedImport(importer, imported string, lineNumber int, lineContents string) {
	i := g.getOrAdd(importer)
	j := g.getOrAdd(imported)
	g.addImportIDs(i.id, j.id)
	key := edgeKey{importer: i.id, imported: j.id}
	detail := ImportDetail{LineNumber: lineNumber, LineContents: lineContents}
	for _, existing := range g.details[key] {
		if existing == detail {
			return
		}
	}
	g.details[key] = append(g.details[key], detail)
}

func (g *Graph) addImportIDs(importer, imported ModuleID) {
	g.imports[importer].add(imported)
	g.reverse[imported].add(importer)
	g.mutated()
}

// RemoveImport removes the edge between two modules together with all
// of its details. A no-op if the edge (or either module) is absent.
func (g *Graph) RemoveImport(importer, imported string) {
	i := g.lookup(importer)
	j := g.lookup(imported)
	if i == nil || j == nil {
		return
	}
	g.removeImportIDs(i.id, j.id)
}

func (g *Graph) removeImportIDs(importer, imported ModuleID) {
	g.imports[importer].remove(imported)
	g.reverse[imported].remove(importer)
	delete(g.details, edgeKey{importer: importer, imported: imported})
	g.mutated()
}

// CountImports returns the number of edges in the graph. Multiple
// import details between the same pair count once.
func (g *Graph) CountImports() int {
	n := 0
	for _, set := range g.imports {
		n += set.len()
	}
	return n
}

// Imports returns every edge in the graph, sorted by importer then
// imported name.
func (g *Graph) Imports() []Import {
	var out []Import
	for importer, set := range g.imports {
		for _, imported := range set.members() {
			out = append(out, Import{
				Importer: g.nameOf(importer),
				Imported: g.nameOf(imported),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importer != out[j].Importer {
			return out[i].Importer < out[j].Importer
		}
		return out[i].Imported < out[j].Imported
	})
	return out
}

// SquashModule collapses a module's subtree: every import incident to
// a descendant is reassigned to the module itself, descendant import
// details are discarded, and the descendants are removed.
func (g *Graph) SquashModule(name string) error {
	node, err := g.visibleNode(name)
	if err != nil {
		return err
	}

	descendants := g.descendants(node.id)
	inSubtree := make(map[ModuleID]struct{}, len(descendants)+1)
	inSubtree[node.id] = struct{}{}
	for _, d := range descendants {
		inSubtree[d] = struct{}{}
	}

	// Reassign every edge between a descendant and the outside world
	// to the squashed module. Edges internal to the subtree, and their
	// details, are discarded.
	for _, d := range descendants {
		for _, imported := range g.imports[d].members() {
			if _, internal := inSubtree[imported]; !internal {
				g.addImportIDs(node.id, imported)
			}
		}
		for _, importer := range g.reverse[d].members() {
			if _, internal := inSubtree[importer]; !internal {
				g.addImportIDs(importer, node.id)
			}
		}
	}

	for _, d := range descendants {
		for _, imported := range g.imports[d].members() {
			g.removeImportIDs(d, imported)
		}
		for _, importer := range g.reverse[d].members() {
			g.removeImportIDs(importer, d)
		}
		delete(g.nodes, d)
		delete(g.imports, d)
		delete(g.reverse, d)
	}
	node.children = make(map[ModuleID]struct{})
	node.squashed = true
	g.mutated()
	return nil
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	c.names = g.names.Clone()
	for id, node := range g.nodes {
		children := make(map[ModuleID]struct{}, len(node.children))
		for child := range node.children {
			children[child] = struct{}{}
		}
		c.nodes[id] = &moduleNode{
			id:        node.id,
			hasParent: node.hasParent,
			parent:    node.parent,
			children:  children,
			invisible: node.invisible,
			squashed:  node.squashed,
		}
	}
	for id, set := range g.imports {
		c.imports[id] = set.clone()
	}
	for id, set := range g.reverse {
		c.reverse[id] = set.clone()
	}
	for key, details := range g.details {
		c.details[key] = append([]ImportDetail(nil), details...)
	}
	return c
}
