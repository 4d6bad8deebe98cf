package snippet

import "regexp"

// TriggerKind classifies where on a line a trigger may legally start.
type TriggerKind int

const (
	// SpaceBefore requires whitespace (or line start) immediately before
	// the trigger. This is the default when no option flag is given.
	SpaceBefore TriggerKind = iota

	// LineBegin requires the trigger to be the first non-blank text on
	// the line ('b' flag).
	LineBegin

	// InWord allows the trigger to fire mid-identifier ('i' flag).
	InWord

	// WordBoundary requires a non-word character (or line start) before
	// the trigger ('w' flag).
	WordBoundary
)

// String returns the option-flag style name of the trigger kind.
func (k TriggerKind) String() string {
	switch k {
	case LineBegin:
		return "lineBegin"
	case InWord:
		return "inWord"
	case WordBoundary:
		return "wordBoundary"
	case SpaceBefore:
		return "spaceBefore"
	default:
		return "unknown"
	}
}

// Definition is one parsed snippet block.
type Definition struct {
	// Prefix is the literal trigger text. When Regex is non-nil the
	// prefix is the original pattern source as written by the author.
	Prefix string

	// Body is the template text between the trigger line and endsnippet.
	Body string

	// Description is the quoted description on the trigger line.
	Description string

	// Priority comes from the most recent priority directive (default 0).
	Priority int

	// Kind is the trigger boundary classification.
	Kind TriggerKind

	// Regex is the compiled trigger pattern, anchored at end of input,
	// when the block carries the 'r' flag. Nil for literal triggers.
	Regex *regexp.Regexp

	// RegexSource is the translated (native-dialect) pattern source,
	// without the end anchor. Handed to the evaluator so scriptlets can
	// re-run the original match.
	RegexSource string

	// Context is the source text of the boolean guard expression, empty
	// when the block has no guard.
	Context string

	// AutoTrigger marks blocks carrying the 'A' flag.
	AutoTrigger bool

	// Scope is the document-type identifier the definition applies to.
	Scope string

	// SourceFile is the filepath the definition was parsed from.
	SourceFile string

	// Flags holds the raw option string as written, including flags the
	// engine does not act on.
	Flags string
}

// Plain reports whether the definition participates in prefix-based
// deduplication. Definitions carrying a regex or a context guard never do.
func (d *Definition) Plain() bool {
	return d.Regex == nil && d.Context == ""
}

// File is one parsed definition file. A File owns its Definitions; the
// repository holds only references.
type File struct {
	Filepath string
	Scope    string

	// Definitions in file order.
	Definitions []*Definition

	// ExtendScopes lists scopes whose definitions are inherited into
	// this file's scope (extends directive).
	ExtendScopes []string

	// ClearThreshold is the priority floor declared by a clearsnippets
	// directive, nil when the file declares none. Definitions from other
	// files in the same scope with priority below the threshold are
	// invalidated.
	ClearThreshold *int

	// Globals holds file-scoped setup code blocks (global !p ...
	// endglobal), staged to the evaluator in one batch after loading.
	Globals []string
}
