package report

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Registry holds modules in registration order. Order matters: combined
// files and index contributions keep it, so the index page layout is stable
// run to run.
type Registry struct {
	modules []Module
	logger  *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{logger: logger}
}

// Register appends a module.
func (r *Registry) Register(m Module) {
	r.modules = append(r.modules, m)
}

// Modules returns the registered modules in order.
func (r *Registry) Modules() []Module {
	return r.modules
}

// WithDefaults builds the standard registry for a full report.
func WithDefaults(cfg Config, logger *zap.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(NewArtifactsModule(cfg.PlainText))
	r.Register(NewGuardsModule(cfg.PlainText))
	r.Register(NewCacheModule())
	r.Register(NewMetricsModule(cfg.PlainText))
	r.Register(NewTraceModule())
	r.Register(NewSymbolicShapesModule())
	r.Register(NewStackTrieModule())
	r.Register(NewDirectoryModule())
	return r
}

// ForExportMode builds the registry for export diagnostics.
func ForExportMode(cfg Config, logger *zap.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(NewExportModule())
	r.Register(NewSymbolicShapesModule())
	return r
}

// RenderAll runs every module and merges the outputs. A module failure is
// logged and skipped; the rest of the report still renders. Only a canceled
// context aborts the pass.
func (r *Registry) RenderAll(ctx context.Context, mctx *Context) (*CombinedOutput, error) {
	combined := NewCombinedOutput()
	for _, m := range r.modules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := m.Render(mctx)
		if err != nil {
			r.logger.Warn("module failed, continuing",
				zap.String("module", m.ID()),
				zap.Error(err))
			continue
		}
		combined.Merge(out)
	}
	return combined, nil
}

// RenderAllParallel renders modules concurrently, then merges in
// registration order so output is identical to the sequential pass. Failure
// isolation is the same: a failed module is logged and its slot left empty.
func (r *Registry) RenderAllParallel(ctx context.Context, mctx *Context) (*CombinedOutput, error) {
	outputs := make([]*Output, len(r.modules))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range r.modules {
		i, m := i, m
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := m.Render(mctx)
			if err != nil {
				r.logger.Warn("module failed, continuing",
					zap.String("module", m.ID()),
					zap.Error(err))
				return nil
			}
			mu.Lock()
			outputs[i] = out
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	combined := NewCombinedOutput()
	for _, out := range outputs {
		combined.Merge(out)
	}
	return combined, nil
}
