// Package match computes which repository definitions are eligible at a
// cursor location, enforcing trigger-kind boundary rules, and filters
// candidates through their context guards.
package match

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/snipstorm/internal/snippet"
)

// Candidate is an eligible definition together with the text it matched
// and the replacement range on the current line.
type Candidate struct {
	Definition *snippet.Definition

	// Matched is the literal trigger text: the prefix for literal
	// triggers, or the matched run for regex triggers.
	Matched string

	// Start and End are byte columns delimiting the replacement range.
	Start int
	End   int
}

// WordClassifier decides whether a rune counts as a word character for
// the host document. The default treats letters, digits and underscore
// as word characters.
type WordClassifier func(r rune) bool

// DefaultWordClassifier is the fallback word-character classification.
func DefaultWordClassifier(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Matcher evaluates trigger eligibility. The zero value is not usable;
// construct with NewMatcher. Matching is synchronous and side-effect-free
// so it can run on every keystroke.
type Matcher struct {
	isWord WordClassifier
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithWordClassifier overrides the word-character classification.
func WithWordClassifier(fn WordClassifier) MatcherOption {
	return func(m *Matcher) {
		if fn != nil {
			m.isWord = fn
		}
	}
}

// NewMatcher creates a Matcher.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{isWord: DefaultWordClassifier}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match returns the candidates eligible at the end of line. input is the
// raw completion token the host is currently typing (used by the InWord
// rule). auto selects automatic-trigger matching: only autoTrigger
// definitions are considered, and an empty line or a trailing space
// yields no matches because no token is being typed.
func (m *Matcher) Match(line, input string, auto bool, defs []*snippet.Definition) []Candidate {
	if auto && noTokenTyped(line) {
		return nil
	}

	var out []Candidate
	for _, d := range defs {
		if d.AutoTrigger != auto {
			continue
		}
		c, ok := m.matchOne(line, input, d)
		if ok {
			out = append(out, c)
		}
	}
	return out
}

func noTokenTyped(line string) bool {
	if line == "" {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(line)
	return unicode.IsSpace(r)
}

func (m *Matcher) matchOne(line, input string, d *snippet.Definition) (Candidate, bool) {
	var matched string
	if d.Regex != nil {
		// The compiled pattern is anchored at end of input.
		loc := d.Regex.FindStringIndex(line)
		if loc == nil {
			return Candidate{}, false
		}
		matched = line[loc[0]:loc[1]]
	} else {
		if d.Prefix == "" || !strings.HasSuffix(line, d.Prefix) {
			return Candidate{}, false
		}
		matched = d.Prefix
	}

	start := len(line) - len(matched)
	if !m.boundaryOK(line, input, start, matched, d.Kind) {
		return Candidate{}, false
	}
	return Candidate{
		Definition: d,
		Matched:    matched,
		Start:      start,
		End:        len(line),
	}, true
}

// boundaryOK enforces the trigger-kind rule for a match starting at the
// given byte column.
func (m *Matcher) boundaryOK(line, input string, start int, matched string, kind snippet.TriggerKind) bool {
	switch kind {
	case snippet.LineBegin:
		return strings.TrimSpace(line[:start]) == ""
	case snippet.InWord:
		// Mid-identifier triggers must be a suffix of the token the
		// host is typing, not merely of the line.
		return strings.HasSuffix(input, matched)
	case snippet.SpaceBefore:
		if start == 0 {
			return true
		}
		r, _ := utf8.DecodeLastRuneInString(line[:start])
		return unicode.IsSpace(r)
	case snippet.WordBoundary:
		if start == 0 {
			return true
		}
		r, _ := utf8.DecodeLastRuneInString(line[:start])
		return !m.isWord(r)
	default:
		return false
	}
}
