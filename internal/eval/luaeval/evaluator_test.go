package luaeval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/snipstorm/internal/eval"
)

func newTestEvaluator(t *testing.T, opts ...Option) *Evaluator {
	t.Helper()
	e := New(opts...)
	t.Cleanup(e.Close)
	return e
}

func TestCheckContext(t *testing.T) {
	e := newTestEvaluator(t)

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"true comparison", "1 == 1", true},
		{"false comparison", "1 == 2", false},
		{"string is truthy", `"x"`, true},
		{"nil is falsy", "nil", false},
		{"arithmetic", "2 + 2 == 4", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.CheckContext(context.Background(), tt.expr)
			if err != nil {
				t.Fatalf("CheckContext(%q) error: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("CheckContext(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestCheckContextError(t *testing.T) {
	e := newTestEvaluator(t)

	_, err := e.CheckContext(context.Background(), "1 ===")
	if !errors.Is(err, eval.ErrEvaluator) {
		t.Errorf("error = %v, want wrapped eval.ErrEvaluator", err)
	}
}

func TestExecuteScriptlets(t *testing.T) {
	e := newTestEvaluator(t)

	req := &eval.Request{
		Scriptlets: []eval.Scriptlet{
			{ID: "s0", Source: `snip.rv = "hello"`},
			{ID: "s1", Source: `snip.rv = 40 + 2`},
			{ID: "s2", Source: `snip.rv = string.upper("go")`},
		},
	}
	resp, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"s0": "hello", "s1": "42", "s2": "GO"}
	for id, v := range want {
		if resp.Values[id] != v {
			t.Errorf("Values[%s] = %q, want %q", id, resp.Values[id], v)
		}
	}
}

func TestExecuteFailureIsolated(t *testing.T) {
	e := newTestEvaluator(t)

	req := &eval.Request{
		Scriptlets: []eval.Scriptlet{
			{ID: "s0", Source: `error("boom")`},
			{ID: "s1", Source: `snip.rv = "fine"`},
		},
	}
	resp, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Errors["s0"] == "" {
		t.Error("raising scriptlet must be recorded in Errors")
	}
	if resp.Values["s1"] != "fine" {
		t.Errorf("later scriptlet must still run, Values = %v", resp.Values)
	}
}

func TestExecuteBindings(t *testing.T) {
	e := newTestEvaluator(t)

	req := &eval.Request{
		Scriptlets: []eval.Scriptlet{
			{ID: "s0", Source: `snip.rv = snip.fn .. "|" .. snip.t[1] .. "|" .. snip.indent`},
			{ID: "s1", Source: `snip.rv = snip.match .. "@" .. snip.snippet_start.col`},
		},
		Placeholders: []string{"", "arg"},
		Filename:     "app.py",
		Filepath:     "/src/app.py",
		Indent:       "\t",
		Start:        eval.Position{Line: 7, Col: 4},
		End:          eval.Position{Line: 7, Col: 9},
		RegexPattern: `im\w+`,
		MatchedText:  "imp",
	}
	resp, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Values["s0"] != "app.py|arg|\t" {
		t.Errorf("Values[s0] = %q", resp.Values["s0"])
	}
	if resp.Values["s1"] != "imp@4" {
		t.Errorf("Values[s1] = %q", resp.Values["s1"])
	}
}

func TestExecuteNonScalarResultIsEmpty(t *testing.T) {
	e := newTestEvaluator(t)

	resp, err := e.Execute(context.Background(), &eval.Request{
		Scriptlets: []eval.Scriptlet{{ID: "s0", Source: `snip.rv = {}`}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Values["s0"] != "" {
		t.Errorf("table result must substitute empty, got %q", resp.Values["s0"])
	}
}

func TestStagePersistsAcrossRequests(t *testing.T) {
	e := newTestEvaluator(t)

	blocks := []string{
		`function greet(n) return "hi " .. n end`,
	}
	if err := e.Stage(context.Background(), blocks); err != nil {
		t.Fatal(err)
	}

	resp, err := e.Execute(context.Background(), &eval.Request{
		Scriptlets: []eval.Scriptlet{{ID: "s0", Source: `snip.rv = greet("there")`}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Values["s0"] != "hi there" {
		t.Errorf("staged function unavailable, Values = %v", resp.Values)
	}
}

func TestStageFailingBlockDoesNotStopLaterBlocks(t *testing.T) {
	e := newTestEvaluator(t)

	err := e.Stage(context.Background(), []string{
		`this is not lua`,
		`survivor = "yes"`,
	})
	if !errors.Is(err, eval.ErrEvaluator) {
		t.Errorf("Stage error = %v, want wrapped eval.ErrEvaluator", err)
	}

	got, cerr := e.CheckContext(context.Background(), `survivor == "yes"`)
	if cerr != nil {
		t.Fatal(cerr)
	}
	if !got {
		t.Error("block after the failing one was not applied")
	}
}

func TestSandboxClosesUnsafeLibraries(t *testing.T) {
	e := newTestEvaluator(t)

	for _, expr := range []string{"os == nil", "io == nil", "debug == nil"} {
		got, err := e.CheckContext(context.Background(), expr)
		if err != nil {
			t.Fatal(err)
		}
		if !got {
			t.Errorf("%s must hold in the sandbox", expr)
		}
	}
}

func TestConcurrentSubmissions(t *testing.T) {
	e := newTestEvaluator(t)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.CheckContext(context.Background(), "10 * 10 == 100")
			if err != nil {
				errs <- err
				return
			}
			if !got {
				errs <- errors.New("wrong guard result")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestTimeoutAbortsRunawayChunk(t *testing.T) {
	e := newTestEvaluator(t, WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := e.CheckContext(context.Background(), "(function() while true do end end)()")
	if err == nil {
		t.Fatal("runaway chunk must fail")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout did not bound the call")
	}
}

func TestClosedEvaluator(t *testing.T) {
	e := New()
	e.Close()

	_, err := e.CheckContext(context.Background(), "true")
	if err == nil || !strings.Contains(err.Error(), ErrClosed.Error()) {
		t.Errorf("error = %v, want closed", err)
	}
}
