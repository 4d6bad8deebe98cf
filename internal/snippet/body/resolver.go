// Package body expands a winning snippet's body template into final
// insertable text: numbered placeholders are resolved, embedded
// scriptlets are dispatched to the external evaluator in one batch per
// expansion, and tab-stop transforms are applied over the resolved
// values.
package body

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/snipstorm/internal/eval"
	"github.com/dshills/snipstorm/internal/snippet/translate"
)

// DefaultSigil marks a backtick block as an execution scriptlet.
const DefaultSigil = "!p"

// Input carries everything one expansion needs.
type Input struct {
	// Body is the snippet template.
	Body string

	// Context is the guard expression source, rebound for scriptlets.
	Context string

	// Indent is the indentation string at the cursor.
	Indent string

	// Start and End delimit the replacement range in the host document.
	Start eval.Position
	End   eval.Position

	// Line is the full text of the line being expanded on.
	Line string

	// Filename and Filepath describe the host document.
	Filename string
	Filepath string

	// RegexPattern and MatchedText are set when the trigger matched via
	// regex.
	RegexPattern string
	MatchedText  string

	// Visual is the text substituted for ${VISUAL} placeholders.
	Visual string
}

// Resolver expands body templates. Expansion is asynchronous when the
// template contains scriptlets; templates without scriptlets never touch
// the evaluator.
type Resolver struct {
	ev    eval.Evaluator
	diag  eval.Diagnostics
	sigil string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithDiagnostics sets the diagnostics collaborator.
func WithDiagnostics(d eval.Diagnostics) ResolverOption {
	return func(r *Resolver) {
		if d != nil {
			r.diag = d
		}
	}
}

// WithSigil overrides the execution sigil.
func WithSigil(s string) ResolverOption {
	return func(r *Resolver) {
		if s != "" {
			r.sigil = s
		}
	}
}

// NewResolver creates a Resolver. ev may be nil when templates carry no
// scriptlets.
func NewResolver(ev eval.Evaluator, opts ...ResolverOption) *Resolver {
	r := &Resolver{ev: ev, diag: eval.Discard, sigil: DefaultSigil}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve expands the template into final text with no unresolved
// markers. The steps are order-sensitive: placeholder values are
// finalized first, then at most one scriptlet batch is submitted, then
// results are spliced and transforms applied. Evaluator failures degrade
// to empty substitutions; Resolve only fails on context cancellation.
func (r *Resolver) Resolve(ctx context.Context, in Input) (string, error) {
	nodes := parseTemplate(in.Body, r.sigil)

	// Step 1: finalized placeholder tuple from literal defaults only.
	tuple := literalTuple(nodes)

	// Steps 2-3: one batched request for all deferred scriptlets.
	scripts := collectScriptlets(nodes)
	values := make(map[string]string)
	if len(scripts) > 0 {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		resp := r.execute(ctx, in, tuple, scripts)
		if resp != nil {
			for id, v := range resp.Values {
				values[id] = v
			}
			for id, msg := range resp.Errors {
				r.diag.Warnf("scriptlet %s: %s", id, msg)
			}
		}
	}

	// Step 4: splice results and run transforms over resolved values.
	st := &renderState{
		values: values,
		slots:  make(map[int]string),
		visual: in.Visual,
	}
	st.fillSlots(nodes)
	return st.render(nodes), nil
}

func (r *Resolver) execute(ctx context.Context, in Input, tuple []string, scripts []eval.Scriptlet) *eval.Response {
	if r.ev == nil {
		r.diag.Warnf("no evaluator configured; %d scriptlets substitute empty", len(scripts))
		return nil
	}
	req := &eval.Request{
		Scriptlets:   scripts,
		Placeholders: tuple,
		Filename:     in.Filename,
		Filepath:     in.Filepath,
		Indent:       in.Indent,
		Start:        in.Start,
		End:          in.End,
		Context:      in.Context,
		RegexPattern: in.RegexPattern,
		MatchedText:  in.MatchedText,
		Visual:       in.Visual,
	}
	resp, err := r.ev.Execute(ctx, req)
	if err != nil {
		r.diag.Warnf("scriptlet batch: %v", err)
		return nil
	}
	return resp
}

// literalTuple computes the placeholder values in index order using
// literal defaults only. The first non-empty default for an index wins;
// scriptlet defaults contribute empty text at this stage.
func literalTuple(nodes []node) []string {
	slots := make(map[int]string)
	maxIndex := -1

	var walk func(ns []node)
	walk = func(ns []node) {
		for _, n := range ns {
			if n.kind != nodeTabstop && n.kind != nodeVisual {
				continue
			}
			if n.kind == nodeTabstop {
				if n.index > maxIndex {
					maxIndex = n.index
				}
				if _, seen := slots[n.index]; !seen || slots[n.index] == "" {
					if v := literalText(n.def); v != "" || !hasSlot(slots, n.index) {
						slots[n.index] = v
					}
				}
			}
			walk(n.def)
		}
	}
	walk(nodes)

	if maxIndex < 0 {
		return nil
	}
	tuple := make([]string, maxIndex+1)
	for i := range tuple {
		tuple[i] = slots[i]
	}
	return tuple
}

func hasSlot(slots map[int]string, i int) bool {
	_, ok := slots[i]
	return ok
}

// literalText renders a default sequence using literal text only.
func literalText(ns []node) string {
	var b strings.Builder
	for _, n := range ns {
		switch n.kind {
		case nodeText:
			b.WriteString(n.text)
		case nodeTabstop, nodeVisual:
			b.WriteString(literalText(n.def))
		}
	}
	return b.String()
}

// collectScriptlets gathers scriptlet nodes in document order.
func collectScriptlets(nodes []node) []eval.Scriptlet {
	var out []eval.Scriptlet
	var walk func(ns []node)
	walk = func(ns []node) {
		for _, n := range ns {
			if n.kind == nodeScriptlet {
				out = append(out, eval.Scriptlet{ID: n.id, Source: n.text})
			}
			walk(n.def)
		}
	}
	walk(nodes)
	return out
}

// renderState renders a parsed template with scriptlet results spliced
// in.
type renderState struct {
	values map[string]string // scriptlet ID -> result
	slots  map[int]string    // tabstop index -> rendered value
	visual string
}

// fillSlots computes the rendered value per tabstop index: the first
// non-empty rendered default in document order, with later occurrences
// able to override an earlier empty one.
func (st *renderState) fillSlots(nodes []node) {
	var walk func(ns []node)
	walk = func(ns []node) {
		for _, n := range ns {
			if n.kind == nodeTabstop {
				if cur, seen := st.slots[n.index]; !seen || cur == "" {
					st.slots[n.index] = st.renderSeq(n.def)
				}
			}
			walk(n.def)
		}
	}
	walk(nodes)
}

// render produces the final text.
func (st *renderState) render(nodes []node) string {
	var b strings.Builder
	for _, n := range nodes {
		switch n.kind {
		case nodeText:
			b.WriteString(n.text)
		case nodeScriptlet:
			b.WriteString(st.values[n.id])
		case nodeVisual:
			if st.visual != "" {
				b.WriteString(st.visual)
			} else {
				b.WriteString(st.renderSeq(n.def))
			}
		case nodeTabstop:
			v := st.slots[n.index]
			if n.xform != nil {
				v = applyTransform(v, n.xform)
			}
			b.WriteString(v)
		}
	}
	return b.String()
}

// renderSeq renders a default sequence with scriptlet results available.
func (st *renderState) renderSeq(ns []node) string {
	var b strings.Builder
	for _, n := range ns {
		switch n.kind {
		case nodeText:
			b.WriteString(n.text)
		case nodeScriptlet:
			b.WriteString(st.values[n.id])
		case nodeVisual:
			if st.visual != "" {
				b.WriteString(st.visual)
			} else {
				b.WriteString(st.renderSeq(n.def))
			}
		case nodeTabstop:
			if v, ok := st.slots[n.index]; ok && v != "" {
				b.WriteString(v)
			} else {
				b.WriteString(st.renderSeq(n.def))
			}
		}
	}
	return b.String()
}

// applyTransform runs a ${n/pattern/replacement/flags} transform over the
// resolved value. The pattern uses the author dialect; an untranslatable
// or uncompilable pattern leaves the value unchanged.
func applyTransform(val string, tr *transform) string {
	src, err := translate.Translate(tr.pattern)
	if err != nil {
		return val
	}
	if tr.insensitive {
		src = "(?i)" + src
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return val
	}

	rep := goReplacement(tr.replacement)
	if tr.global {
		return re.ReplaceAllString(val, rep)
	}
	m := re.FindStringSubmatchIndex(val)
	if m == nil {
		return val
	}
	expanded := re.ExpandString(nil, rep, val, m)
	return val[:m[0]] + string(expanded) + val[m[1]:]
}

// goReplacement converts dialect group references ($1, ${1}) into the
// native ${1} form and neutralizes bare dollars.
func goReplacement(rep string) string {
	var b strings.Builder
	for i := 0; i < len(rep); i++ {
		c := rep[i]
		if c == '\\' && i+1 < len(rep) {
			b.WriteByte(rep[i+1])
			i++
			continue
		}
		if c != '$' {
			b.WriteByte(c)
			continue
		}
		rest := rep[i+1:]
		if strings.HasPrefix(rest, "{") {
			b.WriteByte(c)
			continue
		}
		n, width := leadingNumber(rest)
		if width == 0 {
			b.WriteString("$$")
			continue
		}
		b.WriteString("${")
		b.WriteString(strconv.Itoa(n))
		b.WriteByte('}')
		i += width
	}
	return b.String()
}

// Indices returns the distinct tabstop indexes a body template declares,
// sorted ascending. Used by hosts that surface interactive tab stops.
func Indices(bodyTemplate, sigil string) []int {
	nodes := parseTemplate(bodyTemplate, sigil)
	set := make(map[int]bool)
	var walk func(ns []node)
	walk = func(ns []node) {
		for _, n := range ns {
			if n.kind == nodeTabstop {
				set[n.index] = true
			}
			walk(n.def)
		}
	}
	walk(nodes)

	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
