// Package repository holds parsed snippet files per scope and computes
// the authoritative candidate set for a scope, applying priority,
// clearsnippets, and prefix-deduplication rules.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/snipstorm/internal/eval"
	"github.com/dshills/snipstorm/internal/snippet"
)

// WildcardScope is matched into every concrete scope's resolution.
const WildcardScope = "all"

// Repository errors.
var (
	// ErrAlreadyLoaded is returned when a filepath is loaded twice
	// without an intervening evict. Callers treat it as a no-op.
	ErrAlreadyLoaded = errors.New("snippet file is already loaded")

	// ErrNotLoaded is returned when evicting a filepath that was never
	// loaded.
	ErrNotLoaded = errors.New("snippet file is not loaded")
)

// Locator maps a scope to the definition files that belong to it.
// Directory discovery stays outside the repository; a missing scope is an
// empty result, not an error.
type Locator interface {
	FilesForScope(scope string) ([]string, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(scope string) ([]string, error)

// FilesForScope calls f.
func (f LocatorFunc) FilesForScope(scope string) ([]string, error) { return f(scope) }

type loadState int

const (
	stateLoading loadState = iota + 1
	stateLoaded
)

// Repository is the per-scope definition store. The read path (Resolve)
// is synchronous and cheap enough to run per keystroke; loads may fan out
// recursively via extends directives.
type Repository struct {
	mu    sync.RWMutex
	files   map[string]*snippet.File
	state   map[string]loadState
	order   []string            // filepaths in completed-load order
	aliases map[string][]string // host-configured extends, by scope

	locator Locator
	diag    eval.Diagnostics

	// parse is swappable for tests.
	parse func(path, scope string) (*snippet.File, error)
}

// Option configures a Repository.
type Option func(*Repository)

// WithDiagnostics sets the diagnostics collaborator.
func WithDiagnostics(d eval.Diagnostics) Option {
	return func(r *Repository) {
		if d != nil {
			r.diag = d
		}
	}
}

// New creates a repository backed by the given locator.
func New(locator Locator, opts ...Option) *Repository {
	r := &Repository{
		files:   make(map[string]*snippet.File),
		state:   make(map[string]loadState),
		aliases: make(map[string][]string),
		locator: locator,
		diag:    eval.Discard,
		parse:   snippet.ParseFile,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load parses the file at path into the given scope (empty scope derives
// from the file name), stages its setup blocks, and recursively loads the
// files of any scopes the file extends. Loading is idempotent per exact
// filepath: a duplicate load is a defensive no-op reported as
// ErrAlreadyLoaded.
func (r *Repository) Load(ctx context.Context, path, scope string, staging *eval.Staging) error {
	// Claim the path before parsing so concurrent loads of the same
	// filepath collapse to a single effective load.
	r.mu.Lock()
	if _, exists := r.state[path]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", path, ErrAlreadyLoaded)
	}
	r.state[path] = stateLoading
	r.mu.Unlock()

	file, err := r.parse(path, scope)
	if err != nil {
		r.mu.Lock()
		delete(r.state, path)
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	r.files[path] = file
	r.state[path] = stateLoaded
	r.order = append(r.order, path)
	r.mu.Unlock()

	if staging != nil {
		for _, g := range file.Globals {
			staging.Add(g)
		}
	}

	// Fan out to extended scopes. Already-loaded and in-flight paths are
	// skipped; cycles terminate because every file is claimed exactly
	// once.
	for _, ext := range file.ExtendScopes {
		if err := r.LoadScope(ctx, ext, staging); err != nil {
			r.diag.Warnf("extends %s: %v", ext, err)
		}
	}
	return nil
}

// LoadScope loads every definition file the locator reports for scope.
// Files that are already loaded or in flight are skipped; a file that
// fails to parse is reported to diagnostics and does not affect other
// files.
func (r *Repository) LoadScope(ctx context.Context, scope string, staging *eval.Staging) error {
	if r.locator == nil {
		return nil
	}
	paths, err := r.locator.FilesForScope(scope)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.Load(ctx, p, scope, staging); err != nil {
			if errors.Is(err, ErrAlreadyLoaded) {
				continue
			}
			r.diag.Warnf("load %s: %v", p, err)
		}
	}
	return nil
}

// Evict removes a previously loaded file and every definition it
// contributed.
func (r *Repository) Evict(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.files[path]; !exists {
		return fmt.Errorf("%s: %w", path, ErrNotLoaded)
	}
	delete(r.files, path)
	delete(r.state, path)
	for i, p := range r.order {
		if p == path {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Reload replaces a file wholesale: its old definitions are evicted
// before the fresh parse is inserted.
func (r *Repository) Reload(ctx context.Context, path string, staging *eval.Staging) error {
	r.mu.RLock()
	old, loaded := r.files[path]
	r.mu.RUnlock()

	scope := ""
	if loaded {
		scope = old.Scope
		if err := r.Evict(path); err != nil {
			return err
		}
	}
	return r.Load(ctx, path, scope, staging)
}

// ExtendScope declares host-configured scopes resolved into scope, on
// top of extends directives the files themselves declare.
func (r *Repository) ExtendScope(scope string, extends ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[scope] = append(r.aliases[scope], extends...)
}

// Loaded reports whether path has completed loading.
func (r *Repository) Loaded(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[path] == stateLoaded
}

// Files returns the loaded filepaths in load order.
func (r *Repository) Files() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// FilesForScope returns the loaded filepaths contributing to scope, in
// load order.
func (r *Repository) FilesForScope(scope string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, f := range r.scopeFiles(scope) {
		out = append(out, f.Filepath)
	}
	return out
}

// Resolve computes the ordered candidate set for scope: the union of the
// scope's own files, wildcard-scope files, and files inherited through
// extends, with the clearsnippets and priority-deduplication invariants
// applied. Context-carrying definitions precede plain ones so guarded
// variants can shadow generic ones downstream.
//
// When two plain definitions tie on priority, the definition from the
// file loaded later wins.
func (r *Repository) Resolve(scope string) []*snippet.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	files := r.scopeFiles(scope)
	if len(files) == 0 {
		return nil
	}

	type slot struct {
		def   *snippet.Definition
		exact bool
	}
	plain := make(map[string]*slot) // prefix+kind -> winner
	var ordered []*snippet.Definition

	for _, f := range files {
		exact := f.Scope == scope
		for _, d := range f.Definitions {
			if d.Priority < r.clearThresholdFor(files, f) {
				continue
			}
			if !d.Plain() {
				ordered = append(ordered, d)
				continue
			}
			key := fmt.Sprintf("%s\x00%d", d.Prefix, d.Kind)
			cur, ok := plain[key]
			switch {
			case !ok:
				plain[key] = &slot{def: d, exact: exact}
			case d.Priority > cur.def.Priority:
				*cur = slot{def: d, exact: exact}
			case d.Priority == cur.def.Priority && (exact || !cur.exact):
				// Exact scope beats inherited/wildcard; otherwise the
				// later-loaded file wins.
				*cur = slot{def: d, exact: exact}
			}
		}
	}

	// Context-carrying definitions first, then surviving plain ones in
	// file order.
	var out []*snippet.Definition
	for _, d := range ordered {
		if d.Context != "" {
			out = append(out, d)
		}
	}
	for _, d := range ordered {
		if d.Context == "" {
			out = append(out, d)
		}
	}
	for _, f := range files {
		for _, d := range f.Definitions {
			if s, ok := plain[fmt.Sprintf("%s\x00%d", d.Prefix, d.Kind)]; ok && s.def == d {
				out = append(out, d)
			}
		}
	}
	return out
}

// scopeFiles returns the files visible to scope in load order: direct
// scope files, wildcard files, and files of scopes reachable through
// extends declarations. Must be called with mu held.
func (r *Repository) scopeFiles(scope string) []*snippet.File {
	visible := map[string]bool{scope: true, WildcardScope: true}

	// Expand the visible scope set to a fixed point over extends edges,
	// both file-declared and host-configured.
	for changed := true; changed; {
		changed = false
		for _, p := range r.order {
			f := r.files[p]
			if !visible[f.Scope] {
				continue
			}
			for _, ext := range f.ExtendScopes {
				if !visible[ext] {
					visible[ext] = true
					changed = true
				}
			}
		}
		for scope, exts := range r.aliases {
			if !visible[scope] {
				continue
			}
			for _, ext := range exts {
				if !visible[ext] {
					visible[ext] = true
					changed = true
				}
			}
		}
	}

	var out []*snippet.File
	for _, p := range r.order {
		if f := r.files[p]; visible[f.Scope] {
			out = append(out, f)
		}
	}
	return out
}

// clearThresholdFor returns the combined clearsnippets floor applying to
// definitions from file own: the maximum threshold declared by the other
// files resolved into the scope. A file never clears its own snippets.
func (r *Repository) clearThresholdFor(files []*snippet.File, own *snippet.File) int {
	threshold := minInt
	for _, f := range files {
		if f == own || f.ClearThreshold == nil {
			continue
		}
		if *f.ClearThreshold > threshold {
			threshold = *f.ClearThreshold
		}
	}
	return threshold
}

const minInt = -int(^uint(0)>>1) - 1
