package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/snipstorm/internal/config"
	"github.com/dshills/snipstorm/internal/snippet/complete"
)

func writeSnippets(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestEngine(t *testing.T, dir string, mutate func(*config.Config)) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Directories = []string{dir}
	cfg.Watch.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngineCompleteAndExpand(t *testing.T) {
	dir := t.TempDir()
	writeSnippets(t, dir, "python.snippets", `snippet imp "import module"
import ${1:os}
endsnippet
`)
	e := newTestEngine(t, dir, func(c *config.Config) { c.Evaluator.Disabled = true })

	ctx := context.Background()
	if err := e.LoadScope(ctx, "python"); err != nil {
		t.Fatal(err)
	}

	q := complete.Query{Scope: "python", Line: "imp", Input: "imp", Filename: "a.py"}
	items := e.Complete(ctx, q)
	if len(items) != 1 || items[0].Label != "imp" {
		t.Fatalf("Complete = %+v", items)
	}

	got, err := e.Expand(ctx, items[0], q)
	if err != nil {
		t.Fatal(err)
	}
	if got != "import os" {
		t.Errorf("Expand = %q, want %q", got, "import os")
	}
}

func TestEngineScriptletsAndStagedGlobals(t *testing.T) {
	dir := t.TempDir()
	writeSnippets(t, dir, "python.snippets", `global !p
function shout(s) return string.upper(s) end
endglobal

snippet imp "import"
import `+"`!p snip.rv = shout(\"os\")`"+`
endsnippet
`)
	e := newTestEngine(t, dir, nil)

	ctx := context.Background()
	if err := e.LoadScope(ctx, "python"); err != nil {
		t.Fatal(err)
	}

	q := complete.Query{Scope: "python", Line: "imp", Input: "imp"}
	items := e.Complete(ctx, q)
	if len(items) != 1 {
		t.Fatalf("Complete returned %d items", len(items))
	}
	got, err := e.Expand(ctx, items[0], q)
	if err != nil {
		t.Fatal(err)
	}
	if got != "import OS" {
		t.Errorf("Expand = %q, want %q (staged global must be callable)", got, "import OS")
	}
}

func TestEngineContextGuard(t *testing.T) {
	dir := t.TempDir()
	writeSnippets(t, dir, "go.snippets", `context "1 == 2"
snippet ret "guarded"
return nil
endsnippet

snippet ret "plain"
return
endsnippet
`)
	e := newTestEngine(t, dir, nil)

	ctx := context.Background()
	if err := e.LoadScope(ctx, "go"); err != nil {
		t.Fatal(err)
	}

	items := e.Complete(ctx, complete.Query{Scope: "go", Line: "ret", Input: "ret"})
	if len(items) != 1 || items[0].Detail != "plain" {
		t.Errorf("falsy guard must leave only the plain variant, got %+v", items)
	}
}

func TestEngineConfiguredScopeAlias(t *testing.T) {
	dir := t.TempDir()
	writeSnippets(t, dir, "c.snippets", "snippet main\nint main() {}\nendsnippet\n")
	e := newTestEngine(t, dir, func(c *config.Config) {
		c.Evaluator.Disabled = true
		c.Scopes = map[string][]string{"cpp": {"c"}}
	})

	ctx := context.Background()
	if err := e.LoadScope(ctx, "c"); err != nil {
		t.Fatal(err)
	}

	items := e.Complete(ctx, complete.Query{Scope: "cpp", Line: "main", Input: "main"})
	if len(items) != 1 {
		t.Errorf("configured alias must resolve c into cpp, got %+v", items)
	}
}

func TestEngineDisabledEvaluatorDegrades(t *testing.T) {
	dir := t.TempDir()
	writeSnippets(t, dir, "go.snippets", "snippet now\ntime: `!p snip.rv = 1`\nendsnippet\n")
	e := newTestEngine(t, dir, func(c *config.Config) { c.Evaluator.Disabled = true })

	ctx := context.Background()
	if err := e.LoadScope(ctx, "go"); err != nil {
		t.Fatal(err)
	}

	q := complete.Query{Scope: "go", Line: "now", Input: "now"}
	items := e.Complete(ctx, q)
	if len(items) != 1 {
		t.Fatal("expected one item")
	}
	got, err := e.Expand(ctx, items[0], q)
	if err != nil {
		t.Fatal(err)
	}
	if got != "time: " {
		t.Errorf("Expand = %q, want scriptlet substituted empty", got)
	}
}
