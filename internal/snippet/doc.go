// Package snippet defines the snippet data model and the parser for the
// UltiSnips plain-text definition format.
//
// A definition file is a sequence of blocks. Each block opens with a
// trigger line:
//
//	snippet <trigger> ["description"] [options]
//
// and closes with an "endsnippet" line. File-level directives (priority,
// extends, context, clearsnippets, global blocks) apply to the blocks that
// follow them. Parsing is lossless: unknown option flags are retained on
// the definition so a file can be round-tripped.
package snippet
