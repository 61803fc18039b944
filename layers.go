package taproot

import (
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Layer is one element of a layered architecture: a set of sibling
// module tails, optionally required to be mutually independent. When
// combined with a container C, each tail t denotes the module C.t.
type Layer struct {
	Tails       []string
	Independent bool
}

// NewLayer returns a Layer of the given tails, independent by
// default.
func NewLayer(tails ...string) Layer {
	return Layer{Tails: tails, Independent: true}
}

// Route is a compact representation of a family of chains sharing the
// same interior: chains fan in from Heads to the first middle module
// and out from the last middle module to Tails. An empty Middle means
// direct imports.
type Route struct {
	Heads  []string
	Middle []string
	Tails  []string
}

// PackageDependency describes all discovered illegal chains for one
// ordered pair of packages: Importer (the lower package) reaches
// Imported (the higher package) via Routes.
type PackageDependency struct {
	Importer string
	Imported string
	Routes   []Route
}

// level is a Layer resolved against the graph for one container.
type level struct {
	modules     []ModuleID
	independent bool
}

// FindIllegalDependenciesForLayers checks the graph against a layered
// architecture. Layers are ordered highest first; a module in a lower
// layer must not import a module in a higher layer, and modules
// within an independent layer must not import each other.
//
// With containers, each layer tail t is resolved as <container>.t for
// every container, and each container is checked separately. Layer
// modules missing from the graph are ignored; a missing container is
// NoSuchContainerError.
func (g *Graph) FindIllegalDependenciesForLayers(layers []Layer, containers []string) ([]PackageDependency, error) {
	for _, container := range containers {
		if !g.Contains(container) {
			return nil, &NoSuchContainerError{Container: container}
		}
	}

	levelsPerContainer := g.resolveLevels(layers, containers)

	var (
		mu           sync.Mutex
		dependencies []PackageDependency
	)
	group := &errgroup.Group{}
	group.SetLimit(runtime.NumCPU())

	for _, levels := range levelsPerContainer {
		allLayerModules := make(map[ModuleID]struct{})
		for _, lv := range levels {
			for _, m := range lv.modules {
				allLayerModules[m] = struct{}{}
				for _, d := range g.descendants(m) {
					allLayerModules[d] = struct{}{}
				}
			}
		}

		for _, pair := range modulePermutations(levels) {
			group.Go(func() error {
				dep, err := g.findIllegalDependencies(pair.lower, pair.higher, allLayerModules)
				if err != nil {
					return err
				}
				if dep != nil {
					mu.Lock()
					dependencies = append(dependencies, *dep)
					mu.Unlock()
				}
				return nil
			})
		}
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(dependencies, func(i, j int) bool {
		if dependencies[i].Importer != dependencies[j].Importer {
			return dependencies[i].Importer < dependencies[j].Importer
		}
		return dependencies[i].Imported < dependencies[j].Imported
	})
	return dependencies, nil
}

// resolveLevels produces, per container, the layers resolved to
// module IDs. Without containers the tails are used as module names
// directly.
func (g *Graph) resolveLevels(layers []Layer, containers []string) [][]level {
	prefixes := []string{""}
	if len(containers) > 0 {
		prefixes = containers
	}

	out := make([][]level, 0, len(prefixes))
	for _, prefix := range prefixes {
		levels := make([]level, 0, len(layers))
		for _, layer := range layers {
			lv := level{independent: layer.Independent}
			for _, tail := range layer.Tails {
				name := tail
				if prefix != "" {
					name = prefix + "." + tail
				}
				if node, err := g.visibleNode(name); err == nil {
					lv.modules = append(lv.modules, node.id)
				}
			}
			levels = append(levels, lv)
		}
		out = append(out, levels)
	}
	return out
}

type layerPair struct {
	lower  ModuleID
	higher ModuleID
}

// modulePermutations enumerates every ordered (lower, higher) check:
// each module against every module in a lower level, plus both
// directions between distinct siblings of an independent level.
func modulePermutations(levels []level) []layerPair {
	var pairs []layerPair
	for index, lv := range levels {
		for _, module := range lv.modules {
			for _, lowerLevel := range levels[index+1:] {
				for _, lowerModule := range lowerLevel.modules {
					pairs = append(pairs, layerPair{lower: lowerModule, higher: module})
				}
			}
			if lv.independent {
				for _, sibling := range lv.modules {
					if sibling != module {
						pairs = append(pairs, layerPair{lower: module, higher: sibling})
					}
				}
			}
		}
	}
	return pairs
}

// findIllegalDependencies finds the chains from one package to
// another, slicing the violation surface: each discovered shortest
// chain has its edges removed from further searches, so the discovered
// chains are edge-disjoint. Chains sharing the same middle are grouped
// into one route.
func (g *Graph) findIllegalDependencies(lower, higher ModuleID, allLayerModules map[ModuleID]struct{}) (*PackageDependency, error) {
	lowerSet := g.withDescendants(map[ModuleID]struct{}{lower: {}})
	higherSet := g.withDescendants(map[ModuleID]struct{}{higher: {}})

	// Chains may not pass through any other layer's modules.
	excludedModules := make(map[ModuleID]struct{})
	for id := range allLayerModules {
		_, inLower := lowerSet[id]
		_, inHigher := higherSet[id]
		if !inLower && !inHigher {
			excludedModules[id] = struct{}{}
		}
	}

	excludedImports := make(map[ModuleID]map[ModuleID]struct{})

	type directImport struct {
		head ModuleID
		tail ModuleID
	}
	var directImports []directImport
	var middles [][]ModuleID

	for {
		chain, err := g.findShortestPath(lowerSet, higherSet, excludedModules, excludedImports)
		if err != nil {
			lowerName, higherName := g.nameOf(lower), g.nameOf(higher)
			return nil, &SharedDescendantsError{Importer: lowerName, Imported: higherName}
		}
		if chain == nil {
			break
		}

		for i := 0; i+1 < len(chain); i++ {
			if excludedImports[chain[i]] == nil {
				excludedImports[chain[i]] = make(map[ModuleID]struct{})
			}
			excludedImports[chain[i]][chain[i+1]] = struct{}{}
		}

		if len(chain) == 2 {
			directImports = append(directImports, directImport{head: chain[0], tail: chain[1]})
		} else {
			middle := chain[1 : len(chain)-1]
			duplicate := false
			for _, existing := range middles {
				if len(existing) == len(middle) && chainContains(existing, middle) {
					duplicate = true
					break
				}
			}
			if !duplicate {
				middles = append(middles, middle)
			}
		}
	}

	var routes []Route
	for _, direct := range directImports {
		routes = append(routes, Route{
			Heads: []string{g.nameOf(direct.head)},
			Tails: []string{g.nameOf(direct.tail)},
		})
	}
	for _, middle := range middles {
		var heads, tails []string
		for id := range lowerSet {
			if g.directImportExistsIDs(id, middle[0]) {
				heads = append(heads, g.nameOf(id))
			}
		}
		for id := range higherSet {
			if g.directImportExistsIDs(middle[len(middle)-1], id) {
				tails = append(tails, g.nameOf(id))
			}
		}
		sort.Strings(heads)
		sort.Strings(tails)
		middleNames := make([]string, len(middle))
		for i, id := range middle {
			middleNames[i] = g.nameOf(id)
		}
		routes = append(routes, Route{Heads: heads, Middle: middleNames, Tails: tails})
	}

	if len(routes) == 0 {
		return nil, nil
	}
	return &PackageDependency{
		Importer: g.nameOf(lower),
		Imported: g.nameOf(higher),
		Routes:   routes,
	}, nil
}
