// Package complete merges snippet candidates from registered providers
// into one ranked completion list for the host's completion surface.
// Body resolution is deferred until an item is accepted.
package complete

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dshills/snipstorm/internal/eval"
	"github.com/dshills/snipstorm/internal/snippet/match"
)

// Aggregator errors.
var (
	// ErrDuplicateProvider is returned when registering a provider whose
	// ID is already taken.
	ErrDuplicateProvider = errors.New("provider ID already registered")

	// ErrUnknownProvider is returned when resolving an item whose
	// provider has been deregistered.
	ErrUnknownProvider = errors.New("unknown completion provider")
)

// Query describes one completion or expansion request.
type Query struct {
	// Scope is the host document's type identifier.
	Scope string

	// Line is the line text before the cursor.
	Line string

	// Input is the token the user has typed so far.
	Input string

	// Auto selects auto-trigger matching.
	Auto bool

	// Row is the zero-based line number of Line in the host document.
	Row int

	// Filename and Filepath describe the host document.
	Filename string
	Filepath string

	// Visual is the text substituted for visual placeholders.
	Visual string
}

// Provider supplies candidates and resolves their bodies. Implementations
// other than the repository-backed one can be registered by the host.
type Provider interface {
	// ID identifies the provider in the registry.
	ID() string

	// Candidates returns the matches eligible for the query.
	Candidates(ctx context.Context, q Query) ([]match.Candidate, error)

	// ResolveBody produces the final insertable text for an accepted
	// candidate.
	ResolveBody(ctx context.Context, c match.Candidate, q Query) (string, error)

	// SourceFiles reports the definition files backing the provider.
	SourceFiles() []string
}

type registration struct {
	provider Provider
	token    uuid.UUID
}

// Aggregator is the provider registry and collection pipeline.
type Aggregator struct {
	mu        sync.RWMutex
	providers map[string]registration
	order     []string

	diag   eval.Diagnostics
	isWord match.WordClassifier
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithDiagnostics sets the diagnostics collaborator.
func WithDiagnostics(d eval.Diagnostics) AggregatorOption {
	return func(a *Aggregator) {
		if d != nil {
			a.diag = d
		}
	}
}

// WithWordClassifier overrides the classifier used for label
// head-stripping.
func WithWordClassifier(f match.WordClassifier) AggregatorOption {
	return func(a *Aggregator) {
		if f != nil {
			a.isWord = f
		}
	}
}

// NewAggregator creates an empty aggregator.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		providers: make(map[string]registration),
		diag:      eval.Discard,
		isWord:    match.DefaultWordClassifier,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register adds a provider and returns a disposer that removes it. The
// disposer is idempotent and never removes a later registration that
// reused the same ID.
func (a *Aggregator) Register(p Provider) (func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := p.ID()
	if _, exists := a.providers[id]; exists {
		return nil, fmt.Errorf("%s: %w", id, ErrDuplicateProvider)
	}
	token := uuid.New()
	a.providers[id] = registration{provider: p, token: token}
	a.order = append(a.order, id)

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		reg, ok := a.providers[id]
		if !ok || reg.token != token {
			return
		}
		delete(a.providers, id)
		for i, pid := range a.order {
			if pid == id {
				a.order = append(a.order[:i], a.order[i+1:]...)
				break
			}
		}
	}, nil
}

// Providers returns the registered provider IDs in registration order.
func (a *Aggregator) Providers() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Collect merges each provider's candidates into one item list. A failing
// provider is reported and skipped; items are never deduplicated across
// providers.
func (a *Aggregator) Collect(ctx context.Context, q Query) []Item {
	a.mu.RLock()
	regs := make([]registration, 0, len(a.order))
	for _, id := range a.order {
		regs = append(regs, a.providers[id])
	}
	a.mu.RUnlock()

	var items []Item
	for _, reg := range regs {
		cands, err := reg.provider.Candidates(ctx, q)
		if err != nil {
			a.diag.Warnf("provider %s: %v", reg.provider.ID(), err)
			continue
		}
		for _, c := range cands {
			label := a.visibleLabel(c.Matched, q.Input)
			items = append(items, newItem(reg.provider.ID(), c, label))
		}
	}
	a.sortItems(items, q.Input)
	return items
}

// Resolve runs the deferred resolution hook for an accepted item.
func (a *Aggregator) Resolve(ctx context.Context, item Item, q Query) (string, error) {
	a.mu.RLock()
	reg, ok := a.providers[item.Provider]
	a.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%s: %w", item.Provider, ErrUnknownProvider)
	}
	return reg.provider.ResolveBody(ctx, item.Candidate, q)
}

// visibleLabel strips a non-word head segment from the trigger when the
// remaining text still matches what the user is typing.
func (a *Aggregator) visibleLabel(trigger, input string) string {
	i := 0
	for i < len(trigger) {
		r, w := utf8.DecodeRuneInString(trigger[i:])
		if a.isWord(r) {
			break
		}
		i += w
	}
	if i == 0 || i >= len(trigger) {
		return trigger
	}
	tail := trigger[i:]
	token := a.lastToken(input)
	if token == "" || strings.HasPrefix(tail, token) {
		return tail
	}
	return trigger
}

// lastToken returns the trailing run of word characters in input.
func (a *Aggregator) lastToken(input string) string {
	end := len(input)
	for end > 0 {
		r, w := utf8.DecodeLastRuneInString(input[:end])
		if !a.isWord(r) {
			break
		}
		end -= w
	}
	return input[end:]
}

// sortItems ranks items with typed-prefix matches first, then
// alphabetically. Provider order breaks remaining ties via stability.
func (a *Aggregator) sortItems(items []Item, input string) {
	token := a.lastToken(input)
	sort.SliceStable(items, func(i, j int) bool {
		if token != "" {
			pi := strings.HasPrefix(items[i].FilterText, token)
			pj := strings.HasPrefix(items[j].FilterText, token)
			if pi != pj {
				return pi
			}
		}
		return items[i].Label < items[j].Label
	})
}
