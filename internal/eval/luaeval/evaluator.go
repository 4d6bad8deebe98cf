package luaeval

import (
	"context"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/snipstorm/internal/eval"
)

// DefaultTimeout bounds one interpreter round trip. Guard checks and
// scriptlet batches run on the completion path, so runaway chunks must
// not stall the host.
const DefaultTimeout = 2 * time.Second

// Evaluator implements eval.Evaluator on an embedded Lua interpreter.
// One Evaluator holds one interpreter: staged setup code persists across
// requests until Close.
type Evaluator struct {
	exec    *executor
	diag    eval.Diagnostics
	timeout time.Duration
	queue   int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithDiagnostics sets the diagnostics collaborator.
func WithDiagnostics(d eval.Diagnostics) Option {
	return func(e *Evaluator) {
		if d != nil {
			e.diag = d
		}
	}
}

// WithTimeout bounds each interpreter round trip. Zero disables the
// bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		e.timeout = d
	}
}

// WithQueueSize sets the submission queue depth.
func WithQueueSize(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.queue = n
		}
	}
}

// New creates an Evaluator with a fresh sandboxed interpreter.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		diag:    eval.Discard,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.exec = newExecutor(newState(), e.queue)
	return e
}

// Close shuts the interpreter down. Pending submissions fail with
// ErrClosed.
func (e *Evaluator) Close() {
	e.exec.close()
}

func (e *Evaluator) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

// Stage applies file-scoped setup blocks in order. A failing block is
// reported and does not prevent later blocks; the first failure is
// returned after all blocks ran.
func (e *Evaluator) Stage(ctx context.Context, blocks []string) error {
	var firstErr error
	for i, block := range blocks {
		bctx, cancel := e.bound(ctx)
		err := e.exec.submit(bctx, func(L *lua.LState) error {
			return L.DoString(block)
		})
		cancel()
		if err != nil {
			e.diag.Warnf("setup block %d: %v", i, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: setup block %d: %v", eval.ErrEvaluator, i, err)
			}
		}
	}
	return firstErr
}

// CheckContext evaluates a guard expression. Any interpreter failure is
// an error; callers treat it as guard-false.
func (e *Evaluator) CheckContext(ctx context.Context, expr string) (bool, error) {
	bctx, cancel := e.bound(ctx)
	defer cancel()

	var truthy bool
	err := e.exec.submit(bctx, func(L *lua.LState) error {
		base := L.GetTop()
		if err := L.DoString("return (" + expr + ")"); err != nil {
			return err
		}
		if L.GetTop() > base {
			truthy = lua.LVAsBool(L.Get(base + 1))
			L.SetTop(base)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: context %q: %v", eval.ErrEvaluator, expr, err)
	}
	return truthy, nil
}

// Execute runs one batched scriptlet request. Scriptlets run in order on
// a shared snip binding rebuilt per scriptlet; a failing scriptlet is
// recorded in Response.Errors and later scriptlets still run.
func (e *Evaluator) Execute(ctx context.Context, req *eval.Request) (*eval.Response, error) {
	bctx, cancel := e.bound(ctx)
	defer cancel()

	resp := &eval.Response{
		Values: make(map[string]string),
		Errors: make(map[string]string),
	}
	err := e.exec.submit(bctx, func(L *lua.LState) error {
		for _, sc := range req.Scriptlets {
			snip := bindSnip(L, req)
			L.SetGlobal("snip", snip)
			if err := L.DoString(sc.Source); err != nil {
				resp.Errors[sc.ID] = err.Error()
				continue
			}
			resp.Values[sc.ID] = lvString(L.GetField(snip, "rv"))
		}
		L.SetGlobal("snip", lua.LNil)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", eval.ErrEvaluator, err)
	}
	return resp, nil
}

// bindSnip builds the per-scriptlet snip table from the request.
func bindSnip(L *lua.LState, req *eval.Request) *lua.LTable {
	snip := L.NewTable()
	snip.RawSetString("rv", lua.LString(""))
	snip.RawSetString("fn", lua.LString(req.Filename))
	snip.RawSetString("path", lua.LString(req.Filepath))
	snip.RawSetString("indent", lua.LString(req.Indent))
	snip.RawSetString("context", lua.LString(req.Context))
	snip.RawSetString("visual", lua.LString(req.Visual))

	t := L.NewTable()
	for i, v := range req.Placeholders {
		t.RawSetInt(i, lua.LString(v))
	}
	snip.RawSetString("t", t)

	if req.RegexPattern != "" {
		snip.RawSetString("pattern", lua.LString(req.RegexPattern))
		snip.RawSetString("match", lua.LString(req.MatchedText))
	}

	snip.RawSetString("snippet_start", positionTable(L, req.Start))
	snip.RawSetString("snippet_end", positionTable(L, req.End))
	return snip
}

func positionTable(L *lua.LState, p eval.Position) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("line", lua.LNumber(p.Line))
	t.RawSetString("col", lua.LNumber(p.Col))
	return t
}

// lvString converts a scalar Lua value to its substitution text.
// Non-scalar results substitute empty.
func lvString(v lua.LValue) string {
	switch v.(type) {
	case lua.LString, lua.LNumber, lua.LBool:
		return v.String()
	default:
		return ""
	}
}

var _ eval.Evaluator = (*Evaluator)(nil)
