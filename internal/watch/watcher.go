// Package watch keeps a snippet repository in sync with its on-disk
// definition files. Filesystem events are debounced per path, so an
// editor's save-rename-chmod burst coalesces into one reload.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/snipstorm/internal/eval"
	"github.com/dshills/snipstorm/internal/snippet"
	"github.com/dshills/snipstorm/internal/snippet/repository"
)

// DefaultDebounce is the coalescing window for filesystem events.
const DefaultDebounce = 200 * time.Millisecond

// ErrWatcherClosed is returned when watching a path on a closed watcher.
var ErrWatcherClosed = errors.New("watcher is closed")

// Store is the repository surface the watcher drives.
type Store interface {
	Load(ctx context.Context, path, scope string, staging *eval.Staging) error
	Reload(ctx context.Context, path string, staging *eval.Staging) error
	Evict(path string) error
	Loaded(path string) bool
}

// Watcher reloads definition files as they change on disk. Only
// *.snippets files are acted on; other files in watched directories are
// ignored.
type Watcher struct {
	fsw   *fsnotify.Watcher
	store Store

	staging   *eval.Staging
	evaluator eval.Evaluator
	diag      eval.Diagnostics
	delay     time.Duration

	mu      sync.Mutex
	roots   map[string]bool
	pending map[string]*time.Timer
	closed  bool

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithDiagnostics sets the diagnostics collaborator.
func WithDiagnostics(d eval.Diagnostics) Option {
	return func(w *Watcher) {
		if d != nil {
			w.diag = d
		}
	}
}

// WithEvaluator flushes staged setup code to ev after each reload batch.
func WithEvaluator(ev eval.Evaluator, staging *eval.Staging) Option {
	return func(w *Watcher) {
		w.evaluator = ev
		w.staging = staging
	}
}

// New creates a watcher driving the given store.
func New(store Store, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:     fsw,
		store:   store,
		diag:    eval.Discard,
		delay:   DefaultDebounce,
		roots:   make(map[string]bool),
		pending: make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// WatchDir watches a snippet root directory and its immediate scope
// subdirectories, matching the conventional <root>/<scope>.snippets and
// <root>/<scope>/*.snippets layout.
func (w *Watcher) WatchDir(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	w.roots[abs] = true
	w.mu.Unlock()

	if err := w.fsw.Add(abs); err != nil {
		return err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := w.fsw.Add(filepath.Join(abs, e.Name())); err != nil {
			w.diag.Warnf("watch %s: %v", filepath.Join(abs, e.Name()), err)
		}
	}
	return nil
}

// Close stops the watcher and cancels pending reloads.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		for path, timer := range w.pending {
			timer.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()

		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Ext(ev.Name) != ".snippets" {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.schedule(ev.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.diag.Warnf("watch: %v", err)
		}
	}
}

// schedule arms (or re-arms) the debounce timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.delay)
		return
	}
	w.pending[path] = time.AfterFunc(w.delay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}
		w.apply(path)
	})
}

// apply reconciles one settled path against the store.
func (w *Watcher) apply(path string) {
	ctx := context.Background()

	if _, err := os.Stat(path); err != nil {
		if evErr := w.store.Evict(path); evErr != nil && !errors.Is(evErr, repository.ErrNotLoaded) {
			w.diag.Warnf("evict %s: %v", path, evErr)
		}
		return
	}

	var err error
	if w.store.Loaded(path) {
		err = w.store.Reload(ctx, path, w.staging)
	} else {
		err = w.store.Load(ctx, path, w.scopeFor(path), w.staging)
	}
	if err != nil && !errors.Is(err, repository.ErrAlreadyLoaded) {
		w.diag.Warnf("reload %s: %v", path, err)
		return
	}

	if w.staging != nil && w.evaluator != nil {
		if err := w.staging.Flush(ctx, w.evaluator); err != nil {
			w.diag.Warnf("stage setup code: %v", err)
		}
	}
}

// scopeFor derives the scope of a newly appearing file from the
// conventional layout: files directly under a root are scoped by file
// name, files one level down by their directory name.
func (w *Watcher) scopeFor(path string) string {
	dir := filepath.Dir(path)
	w.mu.Lock()
	isRoot := w.roots[dir]
	w.mu.Unlock()
	if isRoot {
		return snippet.ScopeForPath(path)
	}
	return filepath.Base(dir)
}
