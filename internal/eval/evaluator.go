package eval

import (
	"context"
	"errors"
)

// ErrEvaluator is the sentinel wrapped by evaluator-side failures. Callers
// treat it as "guard false" or "empty substitution", never as fatal.
var ErrEvaluator = errors.New("evaluator error")

// Position is a (line, byte-column) pair on the host document.
type Position struct {
	Line int
	Col  int
}

// Scriptlet is one embedded code block extracted from a snippet body.
type Scriptlet struct {
	// ID identifies the block within its expansion request. IDs are
	// stable in document order ("s0", "s1", ...).
	ID string

	// Source is the code after the execution sigil, unmodified.
	Source string
}

// Request is one batched scriptlet evaluation for a single snippet
// expansion. The engine submits at most one Request per expansion, after
// all placeholder values are finalized.
type Request struct {
	Scriptlets []Scriptlet

	// Placeholders holds the finalized slot values in index order.
	Placeholders []string

	// Filename and Filepath describe the host document.
	Filename string
	Filepath string

	// Indent is the indentation string at the cursor.
	Indent string

	// Start and End delimit the replacement range.
	Start Position
	End   Position

	// Context is the guard expression source bound for reuse inside
	// scriptlets; empty when the definition has no guard.
	Context string

	// RegexPattern and MatchedText are set when the snippet matched via
	// a regex trigger.
	RegexPattern string
	MatchedText  string

	// Visual is the visually selected text available to scriptlets.
	Visual string
}

// Response carries the evaluated scriptlet values. A missing or errored
// entry substitutes as empty text in the expansion.
type Response struct {
	// Values maps scriptlet ID to its result.
	Values map[string]string

	// Errors maps scriptlet ID to a failure description for blocks that
	// raised. Errors never abort the expansion.
	Errors map[string]string
}

// Evaluator is the external scriptlet execution engine.
type Evaluator interface {
	// Stage installs file-scoped setup code shared by later requests.
	// Blocks are applied in order; a failing block is reported but does
	// not prevent later blocks from being applied.
	Stage(ctx context.Context, blocks []string) error

	// CheckContext evaluates a boolean guard expression.
	CheckContext(ctx context.Context, expr string) (bool, error)

	// Execute runs one batched scriptlet request.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Diagnostics is the collaborator non-fatal failures are reported to.
type Diagnostics interface {
	Warnf(format string, args ...any)
}

// Discard is a Diagnostics that drops everything.
var Discard Diagnostics = discard{}

type discard struct{}

func (discard) Warnf(string, ...any) {}
