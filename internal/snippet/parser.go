package snippet

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/dshills/snipstorm/internal/snippet/translate"
)

// ParseFile reads and parses the definition file at path into the given
// scope. An empty scope is derived from the file name
// ("python.snippets" -> "python").
func ParseFile(path, scope string) (*File, error) {
	if scope == "" {
		scope = ScopeForPath(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	file, err := Parse(f, path, scope)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// ScopeForPath derives the document-type scope from a snippet file name.
func ScopeForPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Parse parses definition-file content from r. The filepath and scope are
// recorded on the resulting File and its Definitions.
func Parse(r io.Reader, path, scope string) (*File, error) {
	file := &File{
		Filepath: path,
		Scope:    scope,
	}

	p := &parser{
		file:     file,
		priority: 0,
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	for sc.Scan() {
		lineno++
		if err := p.line(sc.Text(), lineno); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if p.state != stateTop {
		return nil, fmt.Errorf("line %d: %w", p.blockLine, ErrUnterminatedBlock)
	}
	return file, nil
}

type parseState int

const (
	stateTop parseState = iota
	stateSnippet
	stateGlobal
)

type parser struct {
	file  *File
	state parseState

	// File-level directive state.
	priority int
	context  string // pending context expression for the next block

	// Current block state.
	blockLine int
	current   *Definition
	body      []string
	global    []string
}

func (p *parser) line(line string, lineno int) error {
	switch p.state {
	case stateSnippet:
		if strings.TrimRight(line, " \t") == "endsnippet" {
			p.current.Body = strings.Join(p.body, "\n")
			p.file.Definitions = append(p.file.Definitions, p.current)
			p.current = nil
			p.body = nil
			p.state = stateTop
			return nil
		}
		p.body = append(p.body, line)
		return nil

	case stateGlobal:
		if strings.TrimRight(line, " \t") == "endglobal" {
			p.file.Globals = append(p.file.Globals, strings.Join(p.global, "\n"))
			p.global = nil
			p.state = stateTop
			return nil
		}
		p.global = append(p.global, line)
		return nil
	}

	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil
	}

	if rest, ok := directive(trimmed, "priority"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil {
			return fmt.Errorf("%w: priority %q", ErrBadDirective, rest)
		}
		p.priority = n
		return nil
	}

	if rest, ok := directive(trimmed, "extends"); ok {
		for _, s := range strings.Split(rest, ",") {
			if s = strings.TrimSpace(s); s != "" {
				p.file.ExtendScopes = append(p.file.ExtendScopes, s)
			}
		}
		return nil
	}

	if rest, ok := directive(trimmed, "clearsnippets"); ok {
		threshold := p.priority
		if rest != "" {
			n, err := strconv.Atoi(rest)
			if err != nil {
				return fmt.Errorf("%w: clearsnippets %q", ErrBadDirective, rest)
			}
			threshold = n
		}
		if p.file.ClearThreshold == nil || threshold > *p.file.ClearThreshold {
			p.file.ClearThreshold = &threshold
		}
		return nil
	}

	if rest, ok := directive(trimmed, "context"); ok {
		expr := strings.Trim(rest, `"`)
		if expr == "" {
			return fmt.Errorf("%w: empty context expression", ErrBadDirective)
		}
		p.context = expr
		return nil
	}

	if _, ok := directive(trimmed, "global"); ok {
		p.state = stateGlobal
		p.blockLine = lineno
		return nil
	}

	if rest, ok := directive(trimmed, "snippet"); ok {
		def, err := p.header(rest)
		if err != nil {
			return err
		}
		p.current = def
		p.state = stateSnippet
		p.blockLine = lineno
		return nil
	}

	// Unknown top-level lines are ignored (forward compatibility with
	// directives this engine does not act on).
	return nil
}

// directive matches "name" or "name <rest>" and returns the trimmed rest.
func directive(line, name string) (string, bool) {
	if !strings.HasPrefix(line, name) {
		return "", false
	}
	rest := line[len(name):]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// header parses the remainder of a "snippet ..." trigger line.
func (p *parser) header(rest string) (*Definition, error) {
	trig, desc, flags, err := splitHeader(rest)
	if err != nil {
		return nil, err
	}

	def := &Definition{
		Prefix:      trig,
		Description: desc,
		Priority:    p.priority,
		Kind:        kindForFlags(flags),
		AutoTrigger: strings.ContainsRune(flags, 'A'),
		Scope:       p.file.Scope,
		SourceFile:  p.file.Filepath,
		Flags:       flags,
	}

	if strings.ContainsRune(flags, 'e') || p.context != "" {
		def.Context = p.context
	}
	p.context = ""

	if strings.ContainsRune(flags, 'r') {
		src, err := translate.Translate(trig)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile("(?:" + src + ")$")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", translate.ErrUnsupportedPattern, err)
		}
		def.Regex = re
		def.RegexSource = src
	}

	return def, nil
}

// splitHeader separates trigger, description and option flags. The layout
// follows the original format: options are a final unquoted word after a
// quoted description; multi-word and regex triggers are quoted with an
// arbitrary matching delimiter which is stripped.
func splitHeader(rest string) (trig, desc, flags string, err error) {
	rest = strings.TrimSpace(rest)

	words := strings.Fields(rest)
	if len(words) > 2 && !strings.Contains(words[len(words)-1], `"`) &&
		strings.HasSuffix(words[len(words)-2], `"`) {
		flags = words[len(words)-1]
		rest = strings.TrimSpace(rest[:strings.LastIndex(rest, flags)])
	}

	if len(strings.Fields(rest)) > 1 && strings.HasSuffix(rest, `"`) {
		if i := strings.LastIndex(rest[:len(rest)-1], `"`); i > 0 {
			desc = rest[i+1 : len(rest)-1]
			rest = strings.TrimSpace(rest[:i])
		}
	}

	trig = strings.TrimSpace(rest)
	if len(strings.Fields(trig)) > 1 || strings.ContainsRune(flags, 'r') {
		r := []rune(trig)
		if len(r) < 2 || r[0] != r[len(r)-1] || isWordRune(r[0]) {
			return "", "", "", ErrBadTrigger
		}
		trig = string(r[1 : len(r)-1])
	}
	if trig == "" {
		return "", "", "", ErrBadTrigger
	}
	return trig, desc, flags, nil
}

// kindForFlags maps option flags to a trigger kind. When several kind
// flags are present the most permissive one wins: i over w over b.
func kindForFlags(flags string) TriggerKind {
	kind := SpaceBefore
	if strings.ContainsRune(flags, 'b') {
		kind = LineBegin
	}
	if strings.ContainsRune(flags, 'w') {
		kind = WordBoundary
	}
	if strings.ContainsRune(flags, 'i') {
		kind = InWord
	}
	return kind
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
