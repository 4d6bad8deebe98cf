// Package main is the command-line front end for the snippet engine:
// it loads definition files for a scope, matches a line against them,
// and prints the candidates or the expanded body.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dshills/snipstorm/internal/config"
	"github.com/dshills/snipstorm/internal/engine"
	"github.com/dshills/snipstorm/internal/snippet/complete"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

type options struct {
	configPath string
	dirs       string
	scope      string
	line       string
	input      string
	auto       bool
	expand     bool
	pick       int
	asJSON     bool
	noEval     bool
	watch      bool
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.dirs != "" {
		cfg.Directories = splitList(opts.dirs)
	}
	if opts.noEval {
		cfg.Evaluator.Disabled = true
	}
	// Watching only makes sense when the process stays alive.
	cfg.Watch.Enabled = opts.watch

	if len(cfg.Directories) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no snippet directories (use -dir or a config file)")
		return 1
	}

	eng, err := engine.New(cfg, engine.WithDiagnostics(stderrDiag{}))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.LoadScope(ctx, opts.scope); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	input := opts.input
	if input == "" {
		input = lastToken(opts.line)
	}
	q := complete.Query{
		Scope: opts.scope,
		Line:  opts.line,
		Input: input,
		Auto:  opts.auto,
	}

	items := eng.Complete(ctx, q)
	code := 0
	if opts.expand {
		code = expandItem(ctx, eng, items, q, opts.pick)
	} else {
		code = printItems(items, opts.asJSON)
	}

	if opts.watch && code == 0 {
		fmt.Fprintln(os.Stderr, "Watching snippet directories (Ctrl-C to stop)")
		<-ctx.Done()
	}
	return code
}

func expandItem(ctx context.Context, eng *engine.Engine, items []complete.Item, q complete.Query, pick int) int {
	if len(items) == 0 {
		fmt.Fprintln(os.Stderr, "No matching snippet")
		return 1
	}
	if pick < 0 || pick >= len(items) {
		fmt.Fprintf(os.Stderr, "Error: pick %d out of range (0..%d)\n", pick, len(items)-1)
		return 1
	}
	text, err := eng.Expand(ctx, items[pick], q)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(text)
	return 0
}

func printItems(items []complete.Item, asJSON bool) int {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(items); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
	for _, it := range items {
		if it.Detail != "" {
			fmt.Printf("%s\t%s\t[%d,%d)\n", it.Label, it.Detail, it.Range.Start, it.Range.End)
			continue
		}
		fmt.Printf("%s\t\t[%d,%d)\n", it.Label, it.Range.Start, it.Range.End)
	}
	return 0
}

func parseFlags() options {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.configPath, "config", config.DefaultPath(), "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", config.DefaultPath(), "Path to configuration file (shorthand)")
	flag.StringVar(&opts.dirs, "dir", "", "Snippet directories, comma-separated (overrides config)")
	flag.StringVar(&opts.scope, "scope", "all", "Document scope to resolve")
	flag.StringVar(&opts.scope, "s", "all", "Document scope to resolve (shorthand)")
	flag.StringVar(&opts.line, "line", "", "Line text before the cursor")
	flag.StringVar(&opts.line, "l", "", "Line text before the cursor (shorthand)")
	flag.StringVar(&opts.input, "input", "", "Typed token (default: trailing word of -line)")
	flag.BoolVar(&opts.auto, "auto", false, "Match auto-trigger snippets instead of manual ones")
	flag.BoolVar(&opts.expand, "expand", false, "Expand the picked candidate and print its body")
	flag.IntVar(&opts.pick, "pick", 0, "Candidate index to expand")
	flag.BoolVar(&opts.asJSON, "json", false, "Print candidates as JSON")
	flag.BoolVar(&opts.noEval, "no-eval", false, "Disable the embedded scriptlet evaluator")
	flag.BoolVar(&opts.watch, "watch", false, "Keep running and reload snippet files as they change")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Snipstorm - snippet expansion engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: snipstorm [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  snipstorm -dir ./snippets -s python -l '  imp'           List candidates\n")
		fmt.Fprintf(os.Stderr, "  snipstorm -dir ./snippets -s python -l '  imp' -expand   Expand the first one\n")
		fmt.Fprintf(os.Stderr, "  snipstorm -dir ./snippets -s go -l 'fn' -auto -json      Auto-trigger matches as JSON\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("Snipstorm %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		os.Exit(0)
	}
	return opts
}

// lastToken returns the trailing run of non-space characters of line.
func lastToken(line string) string {
	if i := strings.LastIndexAny(line, " \t"); i >= 0 {
		return line[i+1:]
	}
	return line
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// stderrDiag reports pipeline warnings on standard error.
type stderrDiag struct{}

func (stderrDiag) Warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}
