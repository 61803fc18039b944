package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/taproot"
)

var (
	flagFormat     string
	flagExternal   bool
	flagNoTypeCk   bool
	flagCacheDir   string
	flagNoCache    bool
	flagSearchPath []string
	flagVerbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "taproot",
	Short:         "Build and query the import graph of Python packages",
	Long:          "Taproot scans Python packages, extracts every import with tree-sitter, and answers reachability and layering questions over the resulting graph.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text")
	rootCmd.PersistentFlags().BoolVar(&flagExternal, "external", false, "include external packages as squashed nodes")
	rootCmd.PersistentFlags().BoolVar(&flagNoTypeCk, "no-type-checking", false, "exclude imports made inside TYPE_CHECKING guards")
	rootCmd.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", "", "import cache directory (default .taproot_cache)")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "disable the import cache")
	rootCmd.PersistentFlags().StringSliceVar(&flagSearchPath, "search-path", nil, "directories to search for packages (default: working directory)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log cache and skip diagnostics")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(chainCmd)
	rootCmd.AddCommand(layersCmd)
	rootCmd.AddCommand(exportCmd)
}

// buildOptions translates the persistent flags into BuildGraph
// options.
func buildOptions() []taproot.Option {
	opts := []taproot.Option{taproot.WithLogger(newLogger())}
	if flagExternal {
		opts = append(opts, taproot.IncludeExternalPackages())
	}
	if flagNoTypeCk {
		opts = append(opts, taproot.ExcludeTypeCheckingImports())
	}
	if flagCacheDir != "" {
		opts = append(opts, taproot.WithCacheDir(flagCacheDir))
	}
	if flagNoCache {
		opts = append(opts, taproot.WithoutCache())
	}
	if len(flagSearchPath) > 0 {
		opts = append(opts, taproot.WithSearchPath(flagSearchPath...))
	}
	return opts
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

var buildCmd = &cobra.Command{
	Use:   "build PACKAGE...",
	Short: "Build the import graph and print a summary",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	start := time.Now()
	g, err := taproot.BuildGraph(cmd.Context(), args, buildOptions()...)
	if err != nil {
		return err
	}

	summary := CLISummary{
		Packages: args,
		Modules:  len(g.Modules()),
		Imports:  g.CountImports(),
		Elapsed:  time.Since(start).Round(time.Millisecond).String(),
	}
	return output(cmd.OutOrStdout(), summary, formatSummaryText)
}
