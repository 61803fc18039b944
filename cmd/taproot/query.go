package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/taproot"
)

var flagAsPackages bool

var chainCmd = &cobra.Command{
	Use:   "chain PACKAGE IMPORTER IMPORTED",
	Short: "Find the shortest import chain between two modules",
	Long:  "Builds the graph for PACKAGE and prints one shortest chain of imports from IMPORTER to IMPORTED, if any exists.",
	Args:  cobra.ExactArgs(3),
	RunE:  runChain,
}

func init() {
	chainCmd.Flags().BoolVar(&flagAsPackages, "as-packages", false, "treat both endpoints as packages including their descendants")
}

func runChain(cmd *cobra.Command, args []string) error {
	g, err := taproot.BuildGraph(cmd.Context(), []string{args[0]}, buildOptions()...)
	if err != nil {
		return err
	}

	chain, err := g.FindShortestChain(args[1], args[2], flagAsPackages)
	if err != nil {
		return err
	}
	result := CLIChain{Importer: args[1], Imported: args[2], Chain: chain, Found: chain != nil}
	return output(cmd.OutOrStdout(), result, formatChainText)
}

var (
	flagLayers     []string
	flagContainers []string
)

var layersCmd = &cobra.Command{
	Use:   "layers PACKAGE... --layer high --layer low",
	Short: "Check the graph against a layered architecture",
	Long: "Builds the graph and reports every dependency that flows from a lower layer to a higher one. " +
		"Layers are given highest first; sibling modules within one --layer flag are separated by commas and are independent by default " +
		"(prefix the group with '~' to allow siblings to import each other).",
	Args: cobra.MinimumNArgs(1),
	RunE: runLayers,
}

func init() {
	layersCmd.Flags().StringArrayVar(&flagLayers, "layer", nil, "layer modules, highest first (comma-separated siblings)")
	layersCmd.Flags().StringArrayVar(&flagContainers, "container", nil, "containers whose children form the layers")
	layersCmd.MarkFlagRequired("layer")
}

func runLayers(cmd *cobra.Command, args []string) error {
	g, err := taproot.BuildGraph(cmd.Context(), args, buildOptions()...)
	if err != nil {
		return err
	}

	layers := make([]taproot.Layer, 0, len(flagLayers))
	for _, spec := range flagLayers {
		layers = append(layers, parseLayer(spec))
	}

	dependencies, err := g.FindIllegalDependenciesForLayers(layers, flagContainers)
	if err != nil {
		return err
	}
	return output(cmd.OutOrStdout(), toCLIDependencies(dependencies), formatDependenciesText)
}

// parseLayer parses one --layer value: comma-separated sibling tails,
// independent unless prefixed with '~'.
func parseLayer(spec string) taproot.Layer {
	independent := true
	if strings.HasPrefix(spec, "~") {
		independent = false
		spec = spec[1:]
	}
	var tails []string
	for _, tail := range strings.Split(spec, ",") {
		if tail = strings.TrimSpace(tail); tail != "" {
			tails = append(tails, tail)
		}
	}
	return taproot.Layer{Tails: tails, Independent: independent}
}
