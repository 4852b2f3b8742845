// tracenav - Structured compiler-trace log analyzer.
// Parses the compiler's structured trace log and renders a navigable HTML
// diagnostic report.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tracenav/tracenav/pkg/config"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// CLI flags
var (
	outputDir        string
	overwrite        bool
	strict           bool
	parallel         bool
	plainText        bool
	customHeaderHTML string
	verbose          bool
)

var logger *zap.Logger

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tracenav",
	Short: "tracenav - Navigate compiler trace logs",
	Long: `tracenav parses a structured compiler trace log, classifies its events
into per-category streams, and renders a navigable HTML report: graphs,
guards, compilation metrics, cache outcomes, and the stack trie of every
compiled frame.

Examples:
  tracenav report trace.log -o report/
  tracenav export trace.log -o export_report/
  tracenav watch trace.log -o report/
  tracenav manifest report/`,
	Version: fmt.Sprintf("%s (%s)", version, commit),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if err := config.Global().LoadError(); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	for _, cmd := range []*cobra.Command{reportCmd, exportCmd, watchCmd} {
		cmd.Flags().StringVarP(&outputDir, "out", "o", "", "Output directory (default from config)")
		cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Write into a non-empty output directory")
		cmd.Flags().BoolVar(&strict, "strict", false, "Fail on unparseable log lines")
		cmd.Flags().BoolVar(&parallel, "parallel", false, "Render report modules concurrently")
		cmd.Flags().BoolVar(&plainText, "plain-text", false, "Disable payload syntax highlighting")
		cmd.Flags().StringVar(&customHeaderHTML, "custom-header-html", "", "File with HTML injected at the top of the index page")
	}

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(manifestCmd)
}

// resolveOutputDir applies flag > config default.
func resolveOutputDir() string {
	if outputDir != "" {
		return outputDir
	}
	return config.Global().Get().Report.OutputDir
}
