package parser

import "fmt"

// Error is a ParserError: a syntax problem found while turning tokens
// into a schema.Schema. Line and Column are 1-based and zero when the
// error has no associated position (e.g. an error synthesized after
// running off the end of the token stream).
//
// Fatal distinguishes errors that stop parsing altogether (an Error
// token from the lexer, or running out of tokens mid-declaration) from
// ones the parser recovers from by skipping to the next statement
// boundary and continuing.
type Error struct {
	Message string
	Line    int
	Column  int
	Fatal   bool
}

func (e *Error) Error() string {
	if e.Line == 0 && e.Column == 0 {
		return e.Message
	}
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}
