package complete

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/snipstorm/internal/snippet/repository"
)

func writeSnippets(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadedRepo(t *testing.T, scope, content string) *repository.Repository {
	t.Helper()
	dir := t.TempDir()
	writeSnippets(t, dir, scope+".snippets", content)
	repo := repository.New(repository.NewDirLocator(dir))
	if err := repo.LoadScope(context.Background(), scope, nil); err != nil {
		t.Fatal(err)
	}
	return repo
}

func TestSnippetProviderEndToEnd(t *testing.T) {
	repo := loadedRepo(t, "python", `snippet imp "import module"
import ${1}
endsnippet
`)
	p := NewSnippetProvider(repo, nil, nil)

	a := NewAggregator()
	if _, err := a.Register(p); err != nil {
		t.Fatal(err)
	}

	q := Query{
		Scope:    "python",
		Line:     "  imp",
		Input:    "imp",
		Row:      4,
		Filename: "app.py",
		Filepath: "/src/app.py",
	}
	items := a.Collect(context.Background(), q)
	if len(items) != 1 {
		t.Fatalf("Collect returned %d items, want 1", len(items))
	}
	it := items[0]
	if it.Label != "imp" || it.Detail != "import module" {
		t.Errorf("item = %+v", it)
	}
	if it.Range != (Range{Start: 2, End: 5}) {
		t.Errorf("Range = %+v, want [2,5)", it.Range)
	}

	got, err := a.Resolve(context.Background(), it, q)
	if err != nil {
		t.Fatal(err)
	}
	if got != "import " {
		t.Errorf("Resolve = %q, want %q", got, "import ")
	}
}

func TestSnippetProviderScopeIsolation(t *testing.T) {
	repo := loadedRepo(t, "python", `snippet imp
import ${1}
endsnippet
`)
	p := NewSnippetProvider(repo, nil, nil)

	cands, err := p.Candidates(context.Background(), Query{Scope: "ruby", Line: "imp", Input: "imp"})
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 0 {
		t.Errorf("foreign scope produced %d candidates, want 0", len(cands))
	}
}

func TestSnippetProviderSourceFiles(t *testing.T) {
	repo := loadedRepo(t, "go", "snippet fn\nfunc $1() {}\nendsnippet\n")
	p := NewSnippetProvider(repo, nil, nil)

	files := p.SourceFiles()
	if len(files) != 1 || filepath.Base(files[0]) != "go.snippets" {
		t.Errorf("SourceFiles = %v", files)
	}
}

func TestLineIndent(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"", ""},
		{"foo", ""},
		{"  foo", "  "},
		{"\t\tfoo", "\t\t"},
		{"   ", "   "},
	}
	for _, tt := range tests {
		if got := lineIndent(tt.line); got != tt.want {
			t.Errorf("lineIndent(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}
