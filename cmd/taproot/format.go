package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jward/taproot"
)

// CLISummary is the output of `taproot build`.
type CLISummary struct {
	Packages []string `json:"packages"`
	Modules  int      `json:"modules"`
	Imports  int      `json:"imports"`
	Elapsed  string   `json:"elapsed"`
}

// CLIChain is the output of `taproot chain`.
type CLIChain struct {
	Importer string   `json:"importer"`
	Imported string   `json:"imported"`
	Found    bool     `json:"found"`
	Chain    []string `json:"chain,omitempty"`
}

// CLIRoute mirrors taproot.Route for JSON output.
type CLIRoute struct {
	Heads  []string `json:"heads"`
	Middle []string `json:"middle,omitempty"`
	Tails  []string `json:"tails"`
}

// CLIDependency mirrors taproot.PackageDependency for JSON output.
type CLIDependency struct {
	Importer string     `json:"importer"`
	Imported string     `json:"imported"`
	Routes   []CLIRoute `json:"routes"`
}

func toCLIDependencies(deps []taproot.PackageDependency) []CLIDependency {
	out := make([]CLIDependency, 0, len(deps))
	for _, dep := range deps {
		routes := make([]CLIRoute, 0, len(dep.Routes))
		for _, r := range dep.Routes {
			routes = append(routes, CLIRoute{Heads: r.Heads, Middle: r.Middle, Tails: r.Tails})
		}
		out = append(out, CLIDependency{Importer: dep.Importer, Imported: dep.Imported, Routes: routes})
	}
	return out
}

func validateFormat(format string) error {
	switch format {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("invalid format %q (expected json or text)", format)
	}
}

// output writes v as JSON or via the text formatter, per --format.
func output[T any](w io.Writer, v T, text func(io.Writer, T)) error {
	if flagFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w, v)
	return nil
}

func formatSummaryText(w io.Writer, s CLISummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Packages\t%s\n", strings.Join(s.Packages, ", "))
	fmt.Fprintf(tw, "Modules\t%d\n", s.Modules)
	fmt.Fprintf(tw, "Imports\t%d\n", s.Imports)
	fmt.Fprintf(tw, "Elapsed\t%s\n", s.Elapsed)
	tw.Flush()
}

func formatChainText(w io.Writer, c CLIChain) {
	if !c.Found {
		fmt.Fprintf(w, "No chain from %s to %s\n", c.Importer, c.Imported)
		return
	}
	fmt.Fprintln(w, strings.Join(c.Chain, " -> "))
}

func formatDependenciesText(w io.Writer, deps []CLIDependency) {
	if len(deps) == 0 {
		fmt.Fprintln(w, "No illegal dependencies found")
		return
	}
	for _, dep := range deps {
		fmt.Fprintf(w, "%s is not allowed to import %s:\n", dep.Importer, dep.Imported)
		for _, route := range dep.Routes {
			if len(route.Middle) == 0 {
				fmt.Fprintf(w, "  %s -> %s\n", strings.Join(route.Heads, ", "), strings.Join(route.Tails, ", "))
				continue
			}
			fmt.Fprintf(w, "  %s -> %s -> %s\n",
				strings.Join(route.Heads, ", "),
				strings.Join(route.Middle, " -> "),
				strings.Join(route.Tails, ", "))
		}
	}
}
