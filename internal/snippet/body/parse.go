package body

import (
	"fmt"
	"strings"
)

type nodeKind int

const (
	nodeText nodeKind = iota
	nodeTabstop
	nodeScriptlet
	nodeVisual
)

// node is one element of a parsed body template. Tabstop and visual nodes
// carry their default content as a child sequence; scriptlet nodes carry
// the code after the execution sigil.
type node struct {
	kind  nodeKind
	text  string // nodeText literal, or nodeScriptlet source
	id    string // scriptlet ID, stable in document order
	index int    // tabstop index
	def   []node // tabstop/visual default content
	xform *transform
}

// transform is a ${n/pattern/replacement/flags} occurrence.
type transform struct {
	pattern     string
	replacement string
	global      bool
	insensitive bool
}

type templateParser struct {
	src   string
	pos   int
	sigil string
	nexts int // next scriptlet ordinal
}

// parseTemplate splits a body template into nodes. Parsing never fails:
// malformed syntax degrades to literal text, matching how authors expect
// stray dollars and braces to behave.
func parseTemplate(src, sigil string) []node {
	p := &templateParser{src: src, sigil: sigil}
	return p.seq(0, false)
}

// seq parses nodes until end of input or, when inDefault is set, an
// unmatched closing brace. depth counts enclosing placeholder defaults.
func (p *templateParser) seq(depth int, inDefault bool) []node {
	var nodes []node
	var text strings.Builder

	flush := func() {
		if text.Len() > 0 {
			nodes = append(nodes, node{kind: nodeText, text: text.String()})
			text.Reset()
		}
	}

	braces := 0
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '\\':
			if p.pos+1 < len(p.src) {
				switch n := p.src[p.pos+1]; n {
				case '$', '`', '\\', '{', '}':
					text.WriteByte(n)
					p.pos += 2
					continue
				}
			}
			text.WriteByte(c)
			p.pos++

		case '`':
			end := p.findUnescaped('`', p.pos+1)
			if end < 0 {
				text.WriteByte(c)
				p.pos++
				continue
			}
			content := p.src[p.pos+1 : end]
			p.pos = end + 1
			if rest, ok := strings.CutPrefix(content, p.sigil); ok {
				flush()
				if depth >= 2 {
					// A scriptlet buried below a placeholder default is
					// not evaluated as a default; it resolves empty.
					nodes = append(nodes, node{kind: nodeText, text: ""})
					continue
				}
				nodes = append(nodes, node{
					kind: nodeScriptlet,
					id:   fmt.Sprintf("s%d", p.nexts),
					text: strings.TrimSpace(rest),
				})
				p.nexts++
				continue
			}
			// Non-scriptlet interpolation blocks pass through verbatim.
			text.WriteString("`" + content + "`")

		case '$':
			start := p.pos
			if n, ok := p.dollar(depth); ok {
				flush()
				nodes = append(nodes, n)
				continue
			}
			p.pos = start
			text.WriteByte(c)
			p.pos++

		case '{':
			braces++
			text.WriteByte(c)
			p.pos++

		case '}':
			if inDefault && braces == 0 {
				flush()
				p.pos++ // consume the closing brace
				return nodes
			}
			if braces > 0 {
				braces--
			}
			text.WriteByte(c)
			p.pos++

		default:
			text.WriteByte(c)
			p.pos++
		}
	}
	flush()
	return nodes
}

// dollar parses $N, ${N}, ${N:default}, ${N/pat/rep/flags} and
// ${VISUAL[:default]} at the current position. Reports false when the
// dollar does not open a recognized construct.
func (p *templateParser) dollar(depth int) (node, bool) {
	rest := p.src[p.pos+1:]

	// Bare $N tabstop.
	if n, width := leadingNumber(rest); width > 0 {
		p.pos += 1 + width
		return node{kind: nodeTabstop, index: n}, true
	}

	if !strings.HasPrefix(rest, "{") {
		return node{}, false
	}
	inner := rest[1:]

	if strings.HasPrefix(inner, "VISUAL") {
		after := inner[len("VISUAL"):]
		switch {
		case strings.HasPrefix(after, "}"):
			p.pos += 1 + 1 + len("VISUAL") + 1
			return node{kind: nodeVisual}, true
		case strings.HasPrefix(after, ":"):
			p.pos += 1 + 1 + len("VISUAL") + 1 // past "${VISUAL:"
			def := p.seq(depth+1, true)
			return node{kind: nodeVisual, def: def}, true
		}
		return node{}, false
	}

	n, width := leadingNumber(inner)
	if width == 0 {
		return node{}, false
	}
	switch {
	case strings.HasPrefix(inner[width:], "}"):
		p.pos += 2 + width + 1
		return node{kind: nodeTabstop, index: n}, true

	case strings.HasPrefix(inner[width:], ":"):
		p.pos += 2 + width + 1 // past "${N:"
		def := p.seq(depth+1, true)
		return node{kind: nodeTabstop, index: n, def: def}, true

	case strings.HasPrefix(inner[width:], "/"):
		p.pos += 2 + width + 1 // past "${N/"
		tr, ok := p.transformTail()
		if !ok {
			return node{}, false
		}
		return node{kind: nodeTabstop, index: n, xform: tr}, true
	}
	return node{}, false
}

// transformTail parses "pattern/replacement/flags}" from the current
// position.
func (p *templateParser) transformTail() (*transform, bool) {
	pat, ok := p.until('/')
	if !ok {
		return nil, false
	}
	rep, ok := p.until('/')
	if !ok {
		return nil, false
	}
	flags, ok := p.until('}')
	if !ok {
		return nil, false
	}
	return &transform{
		pattern:     pat,
		replacement: rep,
		global:      strings.ContainsRune(flags, 'g'),
		insensitive: strings.ContainsRune(flags, 'i'),
	}, true
}

// until consumes up to an unescaped stop byte, unescaping "\stop".
func (p *templateParser) until(stop byte) (string, bool) {
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '\\' && p.pos+1 < len(p.src) && p.src[p.pos+1] == stop {
			b.WriteByte(stop)
			p.pos += 2
			continue
		}
		if c == stop {
			p.pos++
			return b.String(), true
		}
		b.WriteByte(c)
		p.pos++
	}
	return "", false
}

// findUnescaped returns the index of the next unescaped occurrence of c
// at or after from, or -1.
func (p *templateParser) findUnescaped(c byte, from int) int {
	for i := from; i < len(p.src); i++ {
		if p.src[i] == '\\' {
			i++
			continue
		}
		if p.src[i] == c {
			return i
		}
	}
	return -1
}

// leadingNumber parses a decimal number prefix, returning its value and
// byte width (0 when absent).
func leadingNumber(s string) (int, int) {
	i := 0
	n := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		n = n*10 + int(s[i]-'0')
		i++
	}
	return n, i
}
