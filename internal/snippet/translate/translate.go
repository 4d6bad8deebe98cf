// Package translate converts trigger patterns written in the Python regex
// dialect used by snippet authors into Go (RE2) pattern source.
//
// Translation is structural: the input is scanned into a token list which
// is then rendered, rather than splicing a mutable string. Constructs RE2
// cannot express are rejected with ErrUnsupportedPattern naming the
// construct; everything that passes validation is converted, so no
// dialect-specific syntax survives in the output. Translation is
// idempotent on its own output.
package translate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedPattern is returned when a pattern uses a construct that
// cannot be represented in the native dialect.
var ErrUnsupportedPattern = errors.New("unsupported pattern construct")

func unsupported(construct string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedPattern, construct)
}

// Translate converts pattern into native (RE2) pattern source.
func Translate(pattern string) (string, error) {
	s := scanner{src: []rune(pattern)}
	toks, err := s.scan()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t)
	}
	return b.String(), nil
}

type scanner struct {
	src []rune
	pos int
}

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() rune {
	if s.eof() {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) next() rune {
	r := s.src[s.pos]
	s.pos++
	return r
}

// scan tokenizes the whole pattern, applying dialect substitutions.
func (s *scanner) scan() ([]string, error) {
	var toks []string
	for !s.eof() {
		r := s.next()
		switch r {
		case '\n':
			return nil, unsupported("literal newline")
		case '\\':
			tok, err := s.escape(false)
			if err != nil {
				return nil, err
			}
			if tok != "" {
				toks = append(toks, tok)
			}
		case '(':
			tok, err := s.group()
			if err != nil {
				return nil, err
			}
			if tok != "" {
				toks = append(toks, tok)
			}
		case '[':
			tok, err := s.class()
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
		default:
			toks = append(toks, string(r))
		}
	}
	return toks, nil
}

// escape handles a backslash escape. inClass toggles the character-class
// rules (no anchors, bell must stay a character).
func (s *scanner) escape(inClass bool) (string, error) {
	if s.eof() {
		return "\\", nil
	}
	r := s.next()
	switch {
	case r == 'z':
		if inClass {
			return "\\z", nil
		}
		return "", unsupported(`\z end-of-string anchor`)
	case r == 'A':
		if inClass {
			return "\\A", nil
		}
		// Start-of-string anchor becomes the native start anchor.
		return "^", nil
	case r == 'a':
		if inClass {
			// Keep the character so the class stays non-empty.
			return `\x07`, nil
		}
		// Bell escape has no trigger-text equivalent; drop it.
		return "", nil
	case r >= '1' && r <= '9' && !inClass:
		return "", unsupported(fmt.Sprintf(`\%c numeric back-reference`, r))
	case r == '\n':
		return "", unsupported("literal newline")
	default:
		return "\\" + string(r), nil
	}
}

// group handles an open paren and any (?...) extension syntax.
func (s *scanner) group() (string, error) {
	if s.peek() != '?' {
		return "(", nil
	}
	s.next() // consume '?'
	if s.eof() {
		return "(?", nil
	}
	switch r := s.next(); r {
	case '#':
		// Comment group: strip entirely. Python comment groups do not
		// nest; scan to the closing paren.
		for !s.eof() {
			if s.next() == ')' {
				return "", nil
			}
		}
		return "", unsupported("unterminated (?#...) comment")
	case ':':
		return "(?:", nil
	case '(':
		return "", unsupported("(?(cond)yes|no) conditional")
	case '=':
		return "", unsupported("(?=...) look-ahead")
	case '!':
		return "", unsupported("(?!...) negative look-ahead")
	case 'P':
		if s.eof() {
			return "(?P", nil
		}
		switch s.next() {
		case '<':
			return "(?P<", nil
		case '=':
			return "", unsupported("(?P=name) named back-reference")
		default:
			return "", unsupported("(?P...) group syntax")
		}
	case '<':
		if s.eof() {
			return "", unsupported("(?<...) group syntax")
		}
		switch s.peek() {
		case '=':
			return "", unsupported("(?<=...) look-behind")
		case '!':
			return "", unsupported("(?<!...) negative look-behind")
		default:
			// Alternate named-group spelling; normalize to (?P<name>.
			return "(?P<", nil
		}
	default:
		// Inline mode toggles such as (?i), (?x), (?im) or scoped
		// (?i:...) forms.
		return "", unsupported(fmt.Sprintf("(?%c...) inline mode toggle", r))
	}
}

// class handles a character class. The dialect allows a bare ']' as the
// first member ("[]a]" matches ']' or 'a'); the native dialect requires
// the bracket escaped.
func (s *scanner) class() (string, error) {
	var b strings.Builder
	b.WriteRune('[')
	if s.peek() == '^' {
		b.WriteRune(s.next())
	}
	if s.peek() == ']' {
		s.next()
		b.WriteString(`\]`)
	}
	for !s.eof() {
		r := s.next()
		switch r {
		case ']':
			b.WriteRune(']')
			return b.String(), nil
		case '\\':
			tok, err := s.escape(true)
			if err != nil {
				return "", err
			}
			b.WriteString(tok)
		case '\n':
			return "", unsupported("literal newline")
		default:
			b.WriteRune(r)
		}
	}
	return "", unsupported("unterminated character class")
}
