package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/taproot"
	"github.com/jward/taproot/internal/store"
)

var flagDB string

var exportCmd = &cobra.Command{
	Use:   "export PACKAGE...",
	Short: "Build the import graph and persist it to SQLite",
	Long:  "Builds the graph and writes modules, imports and import details to a SQLite database for querying with plain SQL.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&flagDB, "db", "taproot.db", "database path")
}

func runExport(cmd *cobra.Command, args []string) error {
	g, err := taproot.BuildGraph(cmd.Context(), args, buildOptions()...)
	if err != nil {
		return err
	}

	s, err := store.Open(flagDB)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Migrate(); err != nil {
		return err
	}

	modules := make([]store.Module, 0)
	for _, name := range g.Modules() {
		squashed, err := g.IsSquashed(name)
		if err != nil {
			return err
		}
		modules = append(modules, store.Module{Name: name, IsSquashed: squashed})
	}

	imports := make([]store.Import, 0)
	details := make([]store.ImportDetail, 0)
	for _, imp := range g.Imports() {
		imports = append(imports, store.Import{Importer: imp.Importer, Imported: imp.Imported})
		for _, d := range g.ImportDetails(imp.Importer, imp.Imported) {
			details = append(details, store.ImportDetail{
				Importer:     imp.Importer,
				Imported:     imp.Imported,
				LineNumber:   d.LineNumber,
				LineContents: d.LineContents,
			})
		}
	}

	if err := s.Save(modules, imports, details); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d modules and %d imports to %s\n",
		len(modules), len(imports), flagDB)
	return nil
}
