package match

import (
	"context"

	"github.com/dshills/snipstorm/internal/eval"
)

// ContextResolver filters candidates through their guard expressions via
// the external evaluator. Evaluation is sequential and preserves the
// incoming order (context-carrying candidates first, per the repository's
// resolve bias) so guarded variants can shadow generic ones.
type ContextResolver struct {
	ev   eval.Evaluator
	diag eval.Diagnostics
}

// NewContextResolver creates a resolver. diag may be nil.
func NewContextResolver(ev eval.Evaluator, diag eval.Diagnostics) *ContextResolver {
	if diag == nil {
		diag = eval.Discard
	}
	return &ContextResolver{ev: ev, diag: diag}
}

// Filter keeps candidates whose guard holds. A guard failure (evaluator
// error) counts as false and is reported, never fatal. A plain candidate
// whose prefix was already accepted through a truthy guard is suppressed:
// the guarded variant shadows the generic one sharing its trigger.
func (r *ContextResolver) Filter(ctx context.Context, cands []Candidate) []Candidate {
	accepted := make(map[string]bool)
	var out []Candidate

	for _, c := range cands {
		expr := c.Definition.Context
		if expr == "" {
			if accepted[c.Definition.Prefix] {
				continue
			}
			out = append(out, c)
			continue
		}

		if r.ev == nil {
			r.diag.Warnf("context %q: no evaluator configured", expr)
			continue
		}
		ok, err := r.ev.CheckContext(ctx, expr)
		if err != nil {
			r.diag.Warnf("context %q: %v", expr, err)
			continue
		}
		if !ok {
			continue
		}
		accepted[c.Definition.Prefix] = true
		out = append(out, c)
	}
	return out
}
