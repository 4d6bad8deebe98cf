package complete

import (
	"context"
	"strings"

	"github.com/dshills/snipstorm/internal/eval"
	"github.com/dshills/snipstorm/internal/snippet/body"
	"github.com/dshills/snipstorm/internal/snippet/match"
	"github.com/dshills/snipstorm/internal/snippet/repository"
)

// DefaultProviderID names the repository-backed provider.
const DefaultProviderID = "snippets"

// SnippetProvider is the repository-backed Provider: it matches triggers
// against the resolved scope set, filters guarded candidates through the
// evaluator, and resolves accepted bodies.
type SnippetProvider struct {
	id      string
	repo    *repository.Repository
	matcher *match.Matcher
	guard   *match.ContextResolver
	body    *body.Resolver
}

// ProviderOption configures a SnippetProvider.
type ProviderOption func(*SnippetProvider)

// WithProviderID overrides the registry identity.
func WithProviderID(id string) ProviderOption {
	return func(p *SnippetProvider) {
		if id != "" {
			p.id = id
		}
	}
}

// WithMatcher replaces the trigger matcher.
func WithMatcher(m *match.Matcher) ProviderOption {
	return func(p *SnippetProvider) {
		if m != nil {
			p.matcher = m
		}
	}
}

// NewSnippetProvider wires a repository and an evaluator into a Provider.
// ev may be nil when no definitions carry guards or scriptlets.
func NewSnippetProvider(repo *repository.Repository, ev eval.Evaluator, diag eval.Diagnostics, opts ...ProviderOption) *SnippetProvider {
	p := &SnippetProvider{
		id:      DefaultProviderID,
		repo:    repo,
		matcher: match.NewMatcher(),
		guard:   match.NewContextResolver(ev, diag),
		body:    body.NewResolver(ev, body.WithDiagnostics(diag)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID implements Provider.
func (p *SnippetProvider) ID() string { return p.id }

// Candidates implements Provider: resolve the scope set, match triggers,
// then let guards shadow plain variants.
func (p *SnippetProvider) Candidates(ctx context.Context, q Query) ([]match.Candidate, error) {
	defs := p.repo.Resolve(q.Scope)
	cands := p.matcher.Match(q.Line, q.Input, q.Auto, defs)
	return p.guard.Filter(ctx, cands), nil
}

// ResolveBody implements Provider.
func (p *SnippetProvider) ResolveBody(ctx context.Context, c match.Candidate, q Query) (string, error) {
	in := body.Input{
		Body:        c.Definition.Body,
		Context:     c.Definition.Context,
		Indent:      lineIndent(q.Line),
		Start:       eval.Position{Line: q.Row, Col: c.Start},
		End:         eval.Position{Line: q.Row, Col: c.End},
		Line:        q.Line,
		Filename:    q.Filename,
		Filepath:    q.Filepath,
		MatchedText: c.Matched,
		Visual:      q.Visual,
	}
	if c.Definition.Regex != nil {
		in.RegexPattern = c.Definition.RegexSource
	}
	return p.body.Resolve(ctx, in)
}

// SourceFiles implements Provider.
func (p *SnippetProvider) SourceFiles() []string {
	return p.repo.Files()
}

// lineIndent returns the leading whitespace of line.
func lineIndent(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
