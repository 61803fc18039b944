package taproot

import "sort"

// DirectImportExists reports whether importer imports imported
// directly. With asPackages, both sides are expanded to their
// descendant sets; overlapping subtrees fail with
// SharedDescendantsError.
func (g *Graph) DirectImportExists(importer, imported string, asPackages bool) (bool, error) {
	i, err := g.visibleNode(importer)
	if err != nil {
		return false, err
	}
	j, err := g.visibleNode(imported)
	if err != nil {
		return false, err
	}

	importers := map[ModuleID]struct{}{i.id: {}}
	importeds := map[ModuleID]struct{}{j.id: {}}
	if asPackages {
		importers = g.withDescendants(importers)
		importeds = g.withDescendants(importeds)
		if setsOverlap(importers, importeds) {
			return false, &SharedDescendantsError{Importer: importer, Imported: imported}
		}
	}

	for from := range importers {
		for _, to := range g.imports[from].members() {
			if _, ok := importeds[to]; ok {
				return true, nil
			}
		}
	}
	return false, nil
}

func (g *Graph) directImportExistsIDs(importer, imported ModuleID) bool {
	return g.imports[importer].has(imported)
}

// ModulesDirectlyImportedBy returns the modules the named module
// imports directly.
func (g *Graph) ModulesDirectlyImportedBy(name string) ([]string, error) {
	node, err := g.visibleNode(name)
	if err != nil {
		return nil, err
	}
	return g.visibleNames(g.imports[node.id].members()), nil
}

// ModulesThatDirectlyImport returns the modules that import the named
// module directly.
func (g *Graph) ModulesThatDirectlyImport(name string) ([]string, error) {
	node, err := g.visibleNode(name)
	if err != nil {
		return nil, err
	}
	return g.visibleNames(g.reverse[node.id].members()), nil
}

func (g *Graph) visibleNames(ids []ModuleID) []string {
	var names []string
	for _, id := range ids {
		if node := g.nodes[id]; node != nil && !node.invisible {
			names = append(names, g.nameOf(id))
		}
	}
	sort.Strings(names)
	return names
}

// ImportDetails returns the line metadata recorded for the edge
// between two modules, in insertion order. Empty (never an error)
// when the edge or either module is absent.
func (g *Graph) ImportDetails(importer, imported string) []ImportDetail {
	i := g.lookup(importer)
	j := g.lookup(imported)
	if i == nil || j == nil {
		return nil
	}
	details := g.details[edgeKey{importer: i.id, imported: j.id}]
	out := make([]ImportDetail, len(details))
	copy(out, details)
	return out
}

// FindMatchingDirectImports returns every edge whose importer and
// imported names match the respective module expressions, sorted by
// importer then imported.
func (g *Graph) FindMatchingDirectImports(importerExpression, importedExpression string) ([]Import, error) {
	importerExpr, err := ParseModuleExpression(importerExpression)
	if err != nil {
		return nil, err
	}
	importedExpr, err := ParseModuleExpression(importedExpression)
	if err != nil {
		return nil, err
	}

	var out []Import
	for importer, set := range g.imports {
		importerName := g.nameOf(importer)
		if !importerExpr.Match(importerName) {
			continue
		}
		for _, imported := range set.members() {
			importedName := g.nameOf(imported)
			if importedExpr.Match(importedName) {
				out = append(out, Import{Importer: importerName, Imported: importedName})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importer != out[j].Importer {
			return out[i].Importer < out[j].Importer
		}
		return out[i].Imported < out[j].Imported
	})
	return out, nil
}

func setsOverlap(a, b map[ModuleID]struct{}) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for id := range a {
		if _, ok := b[id]; ok {
			return true
		}
	}
	return false
}
