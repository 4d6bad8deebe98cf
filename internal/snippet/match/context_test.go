package match

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/snipstorm/internal/eval"
	"github.com/dshills/snipstorm/internal/snippet"
)

// fakeEvaluator scripts guard results per expression.
type fakeEvaluator struct {
	results map[string]bool
	errs    map[string]error
	calls   []string
}

func (f *fakeEvaluator) Stage(context.Context, []string) error { return nil }

func (f *fakeEvaluator) CheckContext(_ context.Context, expr string) (bool, error) {
	f.calls = append(f.calls, expr)
	if err := f.errs[expr]; err != nil {
		return false, err
	}
	return f.results[expr], nil
}

func (f *fakeEvaluator) Execute(context.Context, *eval.Request) (*eval.Response, error) {
	return &eval.Response{}, nil
}

func guarded(t *testing.T, prefix, expr string) Candidate {
	t.Helper()
	src := "context \"" + expr + "\"\nsnippet " + prefix + " \"d\" e\nbody\nendsnippet\n"
	f, err := snippet.Parse(strings.NewReader(src), "/t.snippets", "all")
	if err != nil {
		t.Fatal(err)
	}
	d := f.Definitions[0]
	return Candidate{Definition: d, Matched: prefix, End: len(prefix)}
}

func plain(t *testing.T, prefix string) Candidate {
	t.Helper()
	f, err := snippet.Parse(strings.NewReader("snippet "+prefix+"\nbody\nendsnippet\n"), "/t.snippets", "all")
	if err != nil {
		t.Fatal(err)
	}
	return Candidate{Definition: f.Definitions[0], Matched: prefix, End: len(prefix)}
}

func TestFilterTruthyGuardShadowsPlainVariant(t *testing.T) {
	ev := &fakeEvaluator{results: map[string]bool{"math()": true}}
	r := NewContextResolver(ev, nil)

	// Context-carrying candidates come first, per resolve ordering.
	cands := []Candidate{guarded(t, "sum", "math()"), plain(t, "sum")}
	got := r.Filter(context.Background(), cands)

	if len(got) != 1 {
		t.Fatalf("Filter kept %d candidates, want 1", len(got))
	}
	if got[0].Definition.Context == "" {
		t.Error("the guarded variant must survive, not the plain one")
	}
}

func TestFilterFalsyGuardKeepsPlainVariant(t *testing.T) {
	ev := &fakeEvaluator{results: map[string]bool{"math()": false}}
	r := NewContextResolver(ev, nil)

	cands := []Candidate{guarded(t, "sum", "math()"), plain(t, "sum")}
	got := r.Filter(context.Background(), cands)

	if len(got) != 1 || got[0].Definition.Context != "" {
		t.Errorf("falsy guard must drop the guarded variant and keep the plain one")
	}
}

func TestFilterEvaluatorErrorIsGuardFalse(t *testing.T) {
	ev := &fakeEvaluator{errs: map[string]error{"boom()": errors.New("raise")}}
	r := NewContextResolver(ev, nil)

	cands := []Candidate{guarded(t, "x", "boom()"), plain(t, "y")}
	got := r.Filter(context.Background(), cands)

	if len(got) != 1 || got[0].Definition.Prefix != "y" {
		t.Errorf("evaluator error must exclude only the guarded candidate")
	}
}

func TestFilterSequentialEvaluation(t *testing.T) {
	ev := &fakeEvaluator{results: map[string]bool{"a()": true, "b()": true}}
	r := NewContextResolver(ev, nil)

	cands := []Candidate{guarded(t, "p1", "a()"), guarded(t, "p2", "b()")}
	r.Filter(context.Background(), cands)

	if len(ev.calls) != 2 || ev.calls[0] != "a()" || ev.calls[1] != "b()" {
		t.Errorf("guard calls = %v, want sequential [a() b()]", ev.calls)
	}
}

func TestFilterPassesPlainCandidatesUntouched(t *testing.T) {
	ev := &fakeEvaluator{}
	r := NewContextResolver(ev, nil)

	cands := []Candidate{plain(t, "a"), plain(t, "b")}
	got := r.Filter(context.Background(), cands)
	if len(got) != 2 {
		t.Errorf("Filter kept %d, want 2", len(got))
	}
	if len(ev.calls) != 0 {
		t.Errorf("no evaluator calls expected, got %v", ev.calls)
	}
}
