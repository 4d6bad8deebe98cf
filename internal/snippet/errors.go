package snippet

import "errors"

// Parser errors.
var (
	// ErrBadTrigger is returned when a multi-word or regex trigger is not
	// quoted with matching delimiters.
	ErrBadTrigger = errors.New("snippet trigger must be quoted with matching delimiters")

	// ErrUnterminatedBlock is returned when a snippet or global block is
	// missing its terminator line.
	ErrUnterminatedBlock = errors.New("unterminated block")

	// ErrBadDirective is returned when a file-level directive cannot be
	// parsed.
	ErrBadDirective = errors.New("malformed directive")
)
