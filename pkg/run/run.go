// Package run wires the full pipeline: parse the structured trace log,
// classify envelopes into category streams, then render the report from the
// intermediate directory.
package run

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tracenav/tracenav/internal/model"
	"github.com/tracenav/tracenav/pkg/intermediate"
	"github.com/tracenav/tracenav/pkg/parser"
	"github.com/tracenav/tracenav/pkg/report"
	"github.com/tracenav/tracenav/pkg/util"
)

// IntermediateDirName is the subdirectory of the output dir holding the
// category streams and manifest.
const IntermediateDirName = "intermediate"

const envelopeChanSize = 256

// Options configures one end-to-end run.
type Options struct {
	// InputPath is the structured trace log to ingest.
	InputPath string

	// OutputDir receives the report files; the intermediate streams land in
	// a subdirectory.
	OutputDir string

	// Overwrite allows writing into a non-empty output directory.
	Overwrite bool

	// Strict turns skipped (unparseable) log lines into a run failure.
	Strict bool

	// Parallel renders report modules concurrently.
	Parallel bool

	// ExportMode runs the export-diagnostics registry instead of the full
	// report.
	ExportMode bool

	// PlainText and CustomHeaderHTML pass through to rendering.
	PlainText        bool
	CustomHeaderHTML string

	// ShowProgress draws a byte-progress bar during ingestion.
	ShowProgress bool

	Logger *zap.Logger
}

// Result summarizes a completed run.
type Result struct {
	Manifest     *intermediate.Manifest
	OutputDir    string
	IndexPath    string
	FilesWritten int

	// SkippedLines is the count of log lines the parser could not decode.
	SkippedLines uint64

	// DroppedEnvelopes is the count of envelopes with no known category.
	DroppedEnvelopes uint64

	Duration time.Duration
}

var tracer = otel.Tracer("tracenav/run")

// Run executes the whole pipeline and returns the run summary.
func Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := prepareOutputDir(opts.OutputDir, opts.Overwrite); err != nil {
		return nil, err
	}

	res := &Result{OutputDir: opts.OutputDir}

	manifest, err := ingest(ctx, opts, logger, res)
	if err != nil {
		return nil, err
	}
	res.Manifest = manifest

	combined, err := render(ctx, opts, logger, manifest)
	if err != nil {
		return nil, err
	}

	if err := emit(ctx, opts, combined, res); err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	logger.Info("run complete",
		zap.String("output", opts.OutputDir),
		zap.Uint64("envelopes", manifest.TotalEnvelopes),
		zap.Uint64("skipped_lines", res.SkippedLines),
		zap.Int("files", res.FilesWritten),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// ingest parses the source log and writes the intermediate directory.
func ingest(ctx context.Context, opts Options, logger *zap.Logger, res *Result) (*intermediate.Manifest, error) {
	ctx, span := tracer.Start(ctx, "ingest")
	defer span.End()

	f, err := os.Open(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	// Progress tracks compressed bytes, so the bar wraps the raw file and
	// decompression sits on top.
	var reader io.Reader = f
	if opts.ShowProgress {
		if info, err := f.Stat(); err == nil {
			bar := ingestBar(info.Size())
			reader = io.TeeReader(f, bar)
			defer bar.Finish()
		}
	}
	reader, closeGz, err := util.MaybeDecompress(reader, opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("open gzip input: %w", err)
	}
	defer closeGz()

	writer, err := intermediate.NewWriter(filepath.Join(opts.OutputDir, IntermediateDirName))
	if err != nil {
		return nil, err
	}

	pcfg := parser.DefaultConfig()
	pcfg.Logger = logger
	p := parser.New(pcfg)

	envs := make(chan *model.Envelope, envelopeChanSize)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(envs)
		return p.Parse(gctx, reader, envs)
	})
	g.Go(func() error {
		for env := range envs {
			rec, cat, err := classify(env)
			if err != nil {
				logger.Warn("envelope dropped", zap.Error(err))
				res.DroppedEnvelopes++
				continue
			}
			if cat == intermediate.CategoryNone {
				res.DroppedEnvelopes++
				continue
			}
			if err := writer.Write(rec, cat); err != nil {
				return err
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.SkippedLines = p.SkippedLines()
	if opts.Strict && res.SkippedLines > 0 {
		return nil, fmt.Errorf("strict mode: %d unparseable lines in %s",
			res.SkippedLines, opts.InputPath)
	}

	table := p.StringTable()
	if len(table) > 0 {
		if err := writer.WriteStringTable(table); err != nil {
			return nil, err
		}
	}

	mode := "normal"
	if opts.ExportMode {
		mode = "export"
	}
	manifest, err := writer.Finalize(opts.InputPath, mode, uint64(len(table)))
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("envelopes", int64(manifest.TotalEnvelopes)),
		attribute.Int64("skipped_lines", int64(res.SkippedLines)),
	)
	return manifest, nil
}

// render runs the module registry against the intermediate directory.
func render(ctx context.Context, opts Options, logger *zap.Logger, manifest *intermediate.Manifest) (*report.CombinedOutput, error) {
	ctx, span := tracer.Start(ctx, "render")
	defer span.End()

	cfg := report.Config{
		PlainText:        opts.PlainText,
		CustomHeaderHTML: opts.CustomHeaderHTML,
		ExportMode:       opts.ExportMode,
	}
	mctx := report.NewContext(filepath.Join(opts.OutputDir, IntermediateDirName), manifest, cfg)

	var registry *report.Registry
	if opts.ExportMode {
		registry = report.ForExportMode(cfg, logger)
	} else {
		registry = report.WithDefaults(cfg, logger)
	}

	var combined *report.CombinedOutput
	var err error
	if opts.Parallel {
		combined, err = registry.RenderAllParallel(ctx, mctx)
	} else {
		combined, err = registry.RenderAll(ctx, mctx)
	}
	if err != nil {
		return nil, err
	}

	// The export registry renders its own index page; the full report gets
	// the assembled directory index.
	if !opts.ExportMode {
		index, err := report.GenerateIndex(combined, cfg)
		if err != nil {
			return nil, err
		}
		combined.Files = append(combined.Files, report.File{Path: "index.html", Content: index})
	}

	span.SetAttributes(attribute.Int("files", len(combined.Files)))
	return combined, nil
}

// emit writes every rendered file under the output directory.
func emit(ctx context.Context, opts Options, combined *report.CombinedOutput, res *Result) error {
	_, span := tracer.Start(ctx, "emit")
	defer span.End()

	for _, file := range combined.Files {
		path := filepath.Join(opts.OutputDir, file.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(file.Content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", file.Path, err)
		}
		res.FilesWritten++
		if file.Path == "index.html" {
			res.IndexPath = path
		}
	}
	return nil
}

// prepareOutputDir creates the output directory, refusing to write into an
// existing non-empty one unless overwrite is set.
func prepareOutputDir(dir string, overwrite bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0o755)
		}
		return fmt.Errorf("inspect output dir: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory %s is not empty (use overwrite)", dir)
	}
	return nil
}

func ingestBar(total int64) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription("ingesting"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
