package complete

import (
	"strings"

	"github.com/dshills/snipstorm/internal/snippet/match"
)

// InsertFormat tells the host how to treat an item's body on acceptance.
type InsertFormat int

const (
	// InsertLiteral bodies are inserted as-is.
	InsertLiteral InsertFormat = iota
	// InsertTemplate bodies carry placeholder or scriptlet markers and
	// must go through body resolution before insertion.
	InsertTemplate
)

// String returns a string representation of the insert format.
func (f InsertFormat) String() string {
	switch f {
	case InsertLiteral:
		return "literal"
	case InsertTemplate:
		return "template"
	default:
		return "unknown"
	}
}

// Range is the byte-column span on the current line that accepting an
// item replaces.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Item is one completion entry surfaced to the host. The body template is
// carried unresolved; final text is produced only when the item is
// accepted.
type Item struct {
	// Label is the visible portion of the trigger.
	Label string `json:"label"`

	// FilterText is what host-side filtering matches against.
	FilterText string `json:"filterText"`

	// Detail is the author-supplied description.
	Detail string `json:"detail,omitempty"`

	// Format flags whether Body needs template resolution.
	Format InsertFormat `json:"format"`

	// Range is the replacement span computed per trigger kind.
	Range Range `json:"range"`

	// Provider identifies the provider that produced the item, for the
	// deferred resolution hook.
	Provider string `json:"provider"`

	// Body is the unresolved body template.
	Body string `json:"body"`

	// Candidate is the underlying match, kept for deferred resolution.
	Candidate match.Candidate `json:"-"`
}

func newItem(providerID string, c match.Candidate, label string) Item {
	body := c.Definition.Body
	format := InsertLiteral
	if strings.ContainsAny(body, "$`") {
		format = InsertTemplate
	}
	return Item{
		Label:      label,
		FilterText: label,
		Detail:     c.Definition.Description,
		Format:     format,
		Range:      Range{Start: c.Start, End: c.End},
		Provider:   providerID,
		Body:       body,
		Candidate:  c,
	}
}
