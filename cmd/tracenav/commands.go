package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tracenav/tracenav/pkg/config"
	"github.com/tracenav/tracenav/pkg/intermediate"
	"github.com/tracenav/tracenav/pkg/run"
	"github.com/tracenav/tracenav/pkg/telemetry"
	"github.com/tracenav/tracenav/pkg/tui"
	"github.com/tracenav/tracenav/pkg/watch"
)

var reportCmd = &cobra.Command{
	Use:   "report [trace-log]",
	Short: "Render the full HTML report from a trace log",
	Long: `Parse a structured compiler trace log and render the full diagnostic
report: per-compilation artifacts, guards, metrics, cache outcomes, the
stack trie, and the index page.

Examples:
  tracenav report trace.log
  tracenav report trace.log -o report/ --parallel
  tracenav report trace.log --strict --overwrite`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd.Context(), args[0], false)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [trace-log]",
	Short: "Render the export-diagnostics report",
	Long: `Parse a trace log captured during program export and render the export
report: fake-kernel failures, symbolic-shape guards, and the captured
exported program.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd.Context(), args[0], true)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [trace-log]",
	Short: "Re-render the report whenever the trace log changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context(), args[0])
	},
}

var manifestCmd = &cobra.Command{
	Use:   "manifest [report-dir]",
	Short: "Print the manifest of a generated report",
	Long:  `Read and pretty-print the manifest from a report's intermediate directory.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runManifest(args[0])
	},
}

// buildOptions merges config-file defaults with command-line flags.
func buildOptions(inputPath string, exportMode bool) (run.Options, error) {
	cfg := config.Global().Get()
	header, err := headerHTML(cfg)
	if err != nil {
		return run.Options{}, err
	}
	return run.Options{
		InputPath:        inputPath,
		OutputDir:        resolveOutputDir(),
		Overwrite:        overwrite,
		Strict:           strict || cfg.Parser.Strict,
		Parallel:         parallel || cfg.Report.Parallel,
		ExportMode:       exportMode,
		PlainText:        plainText || cfg.Report.PlainText,
		CustomHeaderHTML: header,
		ShowProgress:     true,
		Logger:           logger,
	}, nil
}

// headerHTML loads the custom header: the flag names a file, the config
// carries literal HTML.
func headerHTML(cfg *config.Config) (string, error) {
	if customHeaderHTML != "" {
		data, err := os.ReadFile(customHeaderHTML)
		if err != nil {
			return "", fmt.Errorf("read custom header: %w", err)
		}
		return string(data), nil
	}
	return cfg.Report.CustomHeaderHTML, nil
}

func runReport(ctx context.Context, inputPath string, exportMode bool) error {
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input file does not exist: %s", inputPath)
	}

	shutdown, err := initTelemetry(ctx)
	if err != nil {
		return err
	}
	if shutdown != nil {
		defer shutdown(context.Background())
	}

	opts, err := buildOptions(inputPath, exportMode)
	if err != nil {
		return err
	}
	res, err := run.Run(ctx, opts)
	if err != nil {
		return err
	}

	tui.PrintRunSummary(&tui.RunSummary{
		SourceFile:   inputPath,
		OutputDir:    res.OutputDir,
		IndexPath:    res.IndexPath,
		Envelopes:    res.Manifest.TotalEnvelopes,
		SkippedLines: res.SkippedLines,
		Dropped:      res.DroppedEnvelopes,
		CompileCount: len(res.Manifest.CompileIDs),
		FilesWritten: res.FilesWritten,
		Duration:     res.Duration,
	})
	return nil
}

func runWatch(ctx context.Context, inputPath string) error {
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input file does not exist: %s", inputPath)
	}

	cfg := config.Global().Get()
	watcher, err := watch.NewWatcher(cfg.Watch.Debounce)
	if err != nil {
		return err
	}
	defer watcher.Close()

	rebuild := func(path string) error {
		start := time.Now()
		opts, err := buildOptions(path, false)
		if err != nil {
			return err
		}
		opts.Overwrite = true
		opts.ShowProgress = false
		_, err = run.Run(ctx, opts)
		tui.PrintWatchEvent(path, time.Since(start), err)
		return err
	}

	watcher.OnChange = rebuild
	watcher.OnError = func(path string, err error) {
		logger.Warn("watch error", zap.String("path", path), zap.Error(err))
	}

	if err := watcher.Watch(inputPath); err != nil {
		return err
	}

	// Render once up front so the report exists before the first change.
	if err := rebuild(inputPath); err != nil {
		logger.Warn("initial render failed", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("  watching %s (ctrl-c to stop)\n", inputPath)
	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runManifest(reportDir string) error {
	m, err := intermediate.ReadManifest(fmt.Sprintf("%s/%s", reportDir, run.IntermediateDirName))
	if err != nil {
		// The dir may itself be the intermediate dir.
		m, err = intermediate.ReadManifest(reportDir)
		if err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func initTelemetry(ctx context.Context) (func(context.Context) error, error) {
	tcfg := config.Global().Get().Telemetry
	if !tcfg.Enabled {
		return nil, nil
	}
	ocfg := telemetry.DefaultOTLPConfig("tracenav")
	ocfg.ServiceVersion = version
	if tcfg.Endpoint != "" {
		ocfg.Endpoint = tcfg.Endpoint
	}
	return telemetry.InitOTLP(ctx, ocfg)
}
