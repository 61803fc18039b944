package taproot

import "sort"

// FindUpstreamModules returns every module transitively imported by
// the given module, directly or not. With asPackage, the traversal
// starts from the module and all of its descendants; the starting set
// is excluded from the result.
func (g *Graph) FindUpstreamModules(name string, asPackage bool) ([]string, error) {
	node, err := g.visibleNode(name)
	if err != nil {
		return nil, err
	}
	from := map[ModuleID]struct{}{node.id: {}}
	if asPackage {
		from = g.withDescendants(from)
	}
	return g.visibleNames(g.findReach(g.imports, from)), nil
}

// FindDownstreamModules returns every module that transitively
// imports the given module.
func (g *Graph) FindDownstreamModules(name string, asPackage bool) ([]string, error) {
	node, err := g.visibleNode(name)
	if err != nil {
		return nil, err
	}
	from := map[ModuleID]struct{}{node.id: {}}
	if asPackage {
		from = g.withDescendants(from)
	}
	return g.visibleNames(g.findReach(g.reverse, from)), nil
}

// findReach computes the closure of adjacency from a starting set,
// excluding the starting set itself.
func (g *Graph) findReach(adjacency map[ModuleID]*ordset, from map[ModuleID]struct{}) []ModuleID {
	seen := make(map[ModuleID]struct{}, len(from))
	var queue []ModuleID
	for id := range from {
		seen[id] = struct{}{}
		queue = append(queue, id)
	}
	for i := 0; i < len(queue); i++ {
		for _, next := range adjacency[queue[i]].members() {
			if _, ok := seen[next]; !ok {
				seen[next] = struct{}{}
				queue = append(queue, next)
			}
		}
	}

	var out []ModuleID
	for id := range seen {
		if _, start := from[id]; !start {
			out = append(out, id)
		}
	}
	return out
}

// FindShortestChain returns one of the shortest import chains from
// importer to imported as an ordered sequence of module names, or nil
// if imported is not reachable. With asPackages, both endpoints are
// expanded with their descendants; overlapping subtrees fail with
// SharedDescendantsError.
func (g *Graph) FindShortestChain(importer, imported string, asPackages bool) ([]string, error) {
	i, err := g.visibleNode(importer)
	if err != nil {
		return nil, err
	}
	j, err := g.visibleNode(imported)
	if err != nil {
		return nil, err
	}

	from := map[ModuleID]struct{}{i.id: {}}
	to := map[ModuleID]struct{}{j.id: {}}
	if asPackages {
		from = g.withDescendants(from)
		to = g.withDescendants(to)
	}

	chain, err := g.findShortestPath(from, to, nil, nil)
	if err != nil {
		return nil, &SharedDescendantsError{Importer: importer, Imported: imported}
	}
	if chain == nil {
		return nil, nil
	}
	names := make([]string, len(chain))
	for k, id := range chain {
		names[k] = g.nameOf(id)
	}
	return names, nil
}

// ChainExists reports whether any chain of imports connects importer
// to imported.
func (g *Graph) ChainExists(importer, imported string, asPackages bool) (bool, error) {
	chain, err := g.FindShortestChain(importer, imported, asPackages)
	if err != nil {
		return false, err
	}
	return chain != nil, nil
}

// FindShortestChains returns, for every (head, tail) pair across the
// two packages' module sets that is connected, one shortest chain.
// Chains passing through other members of either endpoint set are not
// considered, and any chain whose interior strictly contains another
// result's interior is suppressed.
func (g *Graph) FindShortestChains(importer, imported string, asPackages bool) ([][]string, error) {
	i, err := g.visibleNode(importer)
	if err != nil {
		return nil, err
	}
	j, err := g.visibleNode(imported)
	if err != nil {
		return nil, err
	}

	downstream := map[ModuleID]struct{}{i.id: {}}
	upstream := map[ModuleID]struct{}{j.id: {}}
	if asPackages {
		downstream = g.withDescendants(downstream)
		upstream = g.withDescendants(upstream)
	}
	if setsOverlap(downstream, upstream) {
		return nil, &SharedDescendantsError{Importer: importer, Imported: imported}
	}

	// Shortcut when there is no chain at all.
	if exists, err := g.ChainExists(importer, imported, asPackages); err != nil || !exists {
		return nil, err
	}

	allEndpoints := make(map[ModuleID]struct{}, len(downstream)+len(upstream))
	for id := range downstream {
		allEndpoints[id] = struct{}{}
	}
	for id := range upstream {
		allEndpoints[id] = struct{}{}
	}

	var chains [][]ModuleID
	for _, head := range g.sortedIDs(downstream) {
		for _, tail := range g.sortedIDs(upstream) {
			excluded := make(map[ModuleID]struct{}, len(allEndpoints))
			for id := range allEndpoints {
				if id != head && id != tail {
					excluded[id] = struct{}{}
				}
			}
			chain, err := g.findShortestPath(
				map[ModuleID]struct{}{head: {}},
				map[ModuleID]struct{}{tail: {}},
				excluded, nil)
			if err != nil {
				return nil, &SharedDescendantsError{Importer: importer, Imported: imported}
			}
			if chain != nil {
				chains = append(chains, chain)
			}
		}
	}

	chains = suppressContainingChains(chains)

	out := make([][]string, len(chains))
	for k, chain := range chains {
		names := make([]string, len(chain))
		for l, id := range chain {
			names[l] = g.nameOf(id)
		}
		out[k] = names
	}
	return out, nil
}

func (g *Graph) sortedIDs(ids map[ModuleID]struct{}) []ModuleID {
	out := make([]ModuleID, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return g.nameOf(out[i]) < g.nameOf(out[j])
	})
	return out
}

// suppressContainingChains drops any chain whose interior is a
// strict super-chain of another result's interior: the shorter chain
// already describes that slice of the dependency surface.
func suppressContainingChains(chains [][]ModuleID) [][]ModuleID {
	var out [][]ModuleID
	for i, chain := range chains {
		interior := chainInterior(chain)
		contains := false
		for j, other := range chains {
			if i == j {
				continue
			}
			otherInterior := chainInterior(other)
			if len(otherInterior) == 0 || len(otherInterior) >= len(interior) {
				continue
			}
			if chainContains(interior, otherInterior) {
				contains = true
				break
			}
		}
		if !contains {
			out = append(out, chain)
		}
	}
	return out
}

func chainInterior(chain []ModuleID) []ModuleID {
	if len(chain) <= 2 {
		return nil
	}
	return chain[1 : len(chain)-1]
}

func chainContains(chain, sub []ModuleID) bool {
	if len(sub) == 0 || len(sub) > len(chain) {
		return false
	}
outer:
	for start := 0; start+len(sub) <= len(chain); start++ {
		for k := range sub {
			if chain[start+k] != sub[k] {
				continue outer
			}
		}
		return true
	}
	return false
}

// findShortestPath runs a bidirectional BFS from the `from` set to
// the `to` set, skipping excluded modules and excluded imports.
// Returns nil when unreachable, or an error when the two sets
// overlap. Neighbours are visited in name order, so a given graph
// yields a stable chain.
func (g *Graph) findShortestPath(
	from, to map[ModuleID]struct{},
	excludedModules map[ModuleID]struct{},
	excludedImports map[ModuleID]map[ModuleID]struct{},
) ([]ModuleID, error) {
	if setsOverlap(from, to) {
		return nil, &SharedDescendantsError{}
	}

	// Predecessor/successor maps double as visited sets; iteration
	// order over the frontier follows insertion, as in a queue.
	predecessors := newVisitMap(from)
	successors := newVisitMap(to)

	var meet ModuleID
	found := false
	iForwards, iBackwards := 0, 0
search:
	for {
		for limit := len(predecessors.order); iForwards < limit; iForwards++ {
			module := predecessors.order[iForwards]
			for _, next := range g.neighboursByName(g.imports, module) {
				if importExcluded(module, next, excludedModules, excludedImports) {
					continue
				}
				if !predecessors.has(next) {
					predecessors.add(next, visitVia(module))
				}
				if successors.has(next) {
					meet, found = next, true
					break search
				}
			}
		}

		for limit := len(successors.order); iBackwards < limit; iBackwards++ {
			module := successors.order[iBackwards]
			for _, next := range g.neighboursByName(g.reverse, module) {
				if importExcluded(next, module, excludedModules, excludedImports) {
					continue
				}
				if !successors.has(next) {
					successors.add(next, visitVia(module))
				}
				if predecessors.has(next) {
					meet, found = next, true
					break search
				}
			}
		}

		if iForwards == len(predecessors.order) && iBackwards == len(successors.order) {
			break
		}
	}

	if !found {
		return nil, nil
	}

	// Stitch the two halves together at the meeting point.
	var path []ModuleID
	node, ok := meet, true
	for ok {
		path = append(path, node)
		node, ok = predecessors.via(node)
	}
	reverseIDs(path)
	node, ok = successors.via(path[len(path)-1])
	for ok {
		path = append(path, node)
		node, ok = successors.via(node)
	}
	return path, nil
}

// neighboursByName returns a module's adjacency sorted by module
// name.
func (g *Graph) neighboursByName(adjacency map[ModuleID]*ordset, id ModuleID) []ModuleID {
	set := adjacency[id]
	if set == nil || set.len() == 0 {
		return nil
	}
	neighbours := set.members()
	sort.Slice(neighbours, func(i, j int) bool {
		return g.nameOf(neighbours[i]) < g.nameOf(neighbours[j])
	})
	return neighbours
}

func importExcluded(
	from, to ModuleID,
	excludedModules map[ModuleID]struct{},
	excludedImports map[ModuleID]map[ModuleID]struct{},
) bool {
	if _, ok := excludedModules[to]; ok {
		return true
	}
	if excluded, ok := excludedImports[from]; ok {
		if _, ok := excluded[to]; ok {
			return true
		}
	}
	return false
}

// visitMap is an insertion-ordered map from module to the module it
// was reached from during BFS.
type visitMap struct {
	order []ModuleID
	entries map[ModuleID]visitEntry
}

type visitEntry struct {
	from ModuleID
	ok   bool
}

func visitVia(from ModuleID) visitEntry {
	return visitEntry{from: from, ok: true}
}

func newVisitMap(start map[ModuleID]struct{}) *visitMap {
	m := &visitMap{entries: make(map[ModuleID]visitEntry, len(start))}
	ids := make([]ModuleID, 0, len(start))
	for id := range start {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		m.order = append(m.order, id)
		m.entries[id] = visitEntry{}
	}
	return m
}

func (m *visitMap) has(id ModuleID) bool {
	_, ok := m.entries[id]
	return ok
}

func (m *visitMap) add(id ModuleID, entry visitEntry) {
	m.order = append(m.order, id)
	m.entries[id] = entry
}

func (m *visitMap) via(id ModuleID) (ModuleID, bool) {
	entry := m.entries[id]
	return entry.from, entry.ok
}

func reverseIDs(ids []ModuleID) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}
