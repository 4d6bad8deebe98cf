// Package engine assembles the snippet pipeline from configuration:
// repository, matcher, evaluator, completion aggregator, and optional
// file watching, behind one host-facing facade.
package engine

import (
	"context"

	"github.com/dshills/snipstorm/internal/config"
	"github.com/dshills/snipstorm/internal/eval"
	"github.com/dshills/snipstorm/internal/eval/luaeval"
	"github.com/dshills/snipstorm/internal/snippet/complete"
	"github.com/dshills/snipstorm/internal/snippet/repository"
	"github.com/dshills/snipstorm/internal/watch"
)

// Engine owns the assembled pipeline. Create with New, release with
// Close.
type Engine struct {
	cfg     *config.Config
	repo    *repository.Repository
	staging *eval.Staging
	agg     *complete.Aggregator
	diag    eval.Diagnostics

	evaluator eval.Evaluator
	lua       *luaeval.Evaluator
	watcher   *watch.Watcher

	disposeProvider func()
}

// Option configures an Engine.
type Option func(*Engine)

// WithDiagnostics sets the diagnostics collaborator for every component.
func WithDiagnostics(d eval.Diagnostics) Option {
	return func(e *Engine) {
		if d != nil {
			e.diag = d
		}
	}
}

// New builds an engine from cfg. The repository starts empty; call
// LoadScope per document type the host opens.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		staging: eval.NewStaging(),
		diag:    eval.Discard,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.repo = repository.New(
		repository.NewDirLocator(cfg.Directories...),
		repository.WithDiagnostics(e.diag),
	)
	for scope, exts := range cfg.Scopes {
		e.repo.ExtendScope(scope, exts...)
	}

	if !cfg.Evaluator.Disabled {
		e.lua = luaeval.New(
			luaeval.WithTimeout(cfg.Evaluator.Timeout()),
			luaeval.WithQueueSize(cfg.Evaluator.QueueSize),
			luaeval.WithDiagnostics(e.diag),
		)
		e.evaluator = e.lua
	}

	e.agg = complete.NewAggregator(complete.WithDiagnostics(e.diag))
	provider := complete.NewSnippetProvider(e.repo, e.evaluator, e.diag)
	dispose, err := e.agg.Register(provider)
	if err != nil {
		e.closePartial()
		return nil, err
	}
	e.disposeProvider = dispose

	if cfg.Watch.Enabled {
		w, err := watch.New(e.repo,
			watch.WithDebounce(cfg.Watch.Debounce()),
			watch.WithDiagnostics(e.diag),
			watch.WithEvaluator(e.evaluator, e.staging),
		)
		if err != nil {
			e.closePartial()
			return nil, err
		}
		e.watcher = w
		for _, dir := range cfg.Directories {
			if err := w.WatchDir(dir); err != nil {
				e.diag.Warnf("watch %s: %v", dir, err)
			}
		}
	}
	return e, nil
}

// LoadScope loads every definition file for scope and flushes staged
// setup code to the evaluator in one batch.
func (e *Engine) LoadScope(ctx context.Context, scope string) error {
	if err := e.repo.LoadScope(ctx, scope, e.staging); err != nil {
		return err
	}
	if e.evaluator != nil {
		if err := e.staging.Flush(ctx, e.evaluator); err != nil {
			e.diag.Warnf("stage setup code: %v", err)
		}
	}
	return nil
}

// Complete returns the merged completion items for a query.
func (e *Engine) Complete(ctx context.Context, q complete.Query) []complete.Item {
	return e.agg.Collect(ctx, q)
}

// Expand resolves an accepted item's body into final insertable text.
func (e *Engine) Expand(ctx context.Context, item complete.Item, q complete.Query) (string, error) {
	return e.agg.Resolve(ctx, item, q)
}

// Register adds a host-supplied provider beside the repository-backed
// one. The returned disposer removes it.
func (e *Engine) Register(p complete.Provider) (func(), error) {
	return e.agg.Register(p)
}

// Repository exposes the definition store, for hosts that drive loads
// and evictions directly.
func (e *Engine) Repository() *repository.Repository {
	return e.repo
}

// Close releases the watcher and the interpreter.
func (e *Engine) Close() error {
	if e.disposeProvider != nil {
		e.disposeProvider()
	}
	return e.closePartial()
}

func (e *Engine) closePartial() error {
	var err error
	if e.watcher != nil {
		err = e.watcher.Close()
		e.watcher = nil
	}
	if e.lua != nil {
		e.lua.Close()
		e.lua = nil
	}
	return err
}
