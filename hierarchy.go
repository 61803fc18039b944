package taproot

import "sort"

// FindChildren returns the modules whose name is the given module's
// name plus exactly one more segment. Fails with
// ModuleIsSquashedError for a squashed module, which by definition
// has no children.
func (g *Graph) FindChildren(name string) ([]string, error) {
	node := g.lookup(name)
	if node == nil {
		return nil, &ModuleNotPresentError{Module: name}
	}
	if node.squashed {
		return nil, &ModuleIsSquashedError{Module: name}
	}

	var names []string
	for child := range node.children {
		if childNode := g.nodes[child]; !childNode.invisible {
			names = append(names, g.nameOf(child))
		}
	}
	sort.Strings(names)
	return names, nil
}

// FindDescendants returns every module strictly under the given
// module in the dotted namespace.
func (g *Graph) FindDescendants(name string) ([]string, error) {
	node := g.lookup(name)
	if node == nil {
		return nil, &ModuleNotPresentError{Module: name}
	}
	if node.squashed {
		return nil, &ModuleIsSquashedError{Module: name}
	}

	var names []string
	for _, id := range g.descendants(node.id) {
		if descendant := g.nodes[id]; !descendant.invisible {
			names = append(names, g.nameOf(id))
		}
	}
	sort.Strings(names)
	return names, nil
}

// descendants returns every node (visible or not) under id, parents
// before children. The result is memoised until the next mutation.
func (g *Graph) descendants(id ModuleID) []ModuleID {
	if cached, ok := g.desc.Get(id); ok {
		return cached
	}

	var out []ModuleID
	frontier := []ModuleID{id}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		children := g.sortedChildren(next)
		out = append(out, children...)
		frontier = append(frontier, children...)
	}
	g.desc.Add(id, out)
	return out
}

// sortedChildren returns a node's children ordered by name, keeping
// hierarchy traversal deterministic.
func (g *Graph) sortedChildren(id ModuleID) []ModuleID {
	node := g.nodes[id]
	if node == nil || len(node.children) == 0 {
		return nil
	}
	children := make([]ModuleID, 0, len(node.children))
	for child := range node.children {
		children = append(children, child)
	}
	sort.Slice(children, func(i, j int) bool {
		return g.nameOf(children[i]) < g.nameOf(children[j])
	})
	return children
}

// withDescendants expands a set of modules with all their
// descendants.
func (g *Graph) withDescendants(ids map[ModuleID]struct{}) map[ModuleID]struct{} {
	out := make(map[ModuleID]struct{}, len(ids))
	for id := range ids {
		out[id] = struct{}{}
		for _, d := range g.descendants(id) {
			out[d] = struct{}{}
		}
	}
	return out
}

// FindMatchingModules returns the modules matching a module
// expression, where `*` matches one name segment and `**` matches one
// or more.
func (g *Graph) FindMatchingModules(expression string) ([]string, error) {
	expr, err := ParseModuleExpression(expression)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, node := range g.nodes {
		if node.invisible {
			continue
		}
		if name := g.nameOf(node.id); expr.Match(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
