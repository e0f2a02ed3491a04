package parser

import "github.com/wardenhq/warden/core/token"

// Cursor is a read-only, position-carrying view over a token slice.
// Position lives behind the Cursor value itself (a pointer receiver is
// enough in Go to give every helper method write access to it without
// each one needing to return an updated cursor), which is what lets
// small helper methods like CheckIdentifierText advance-free peek
// while Advance moves the shared position forward for everyone holding
// the same *Cursor.
type Cursor struct {
	tokens []token.Token
	pos    int
}

// NewCursor wraps tokens for lookahead parsing. tokens should already
// end with an EOF token (as core/lexer.Tokenize guarantees); an empty
// slice is tolerated and behaves as if positioned at EOF.
func NewCursor(tokens []token.Token) *Cursor {
	return &Cursor{tokens: tokens}
}

func (c *Cursor) at(idx int) token.Token {
	if idx < 0 {
		idx = 0
	}
	if idx >= len(c.tokens) {
		if len(c.tokens) == 0 {
			return token.Token{Kind: token.EOF}
		}
		return c.tokens[len(c.tokens)-1]
	}
	return c.tokens[idx]
}

// Peek returns the current token without consuming it.
func (c *Cursor) Peek() token.Token {
	return c.at(c.pos)
}

// PeekAhead returns the token n positions ahead of the current one
// (PeekAhead(0) == Peek()), clamped to the last token once past the
// end of the stream.
func (c *Cursor) PeekAhead(n int) token.Token {
	return c.at(c.pos + n)
}

// Advance returns the current token and moves the cursor forward by
// one, unless already at the end of the stream.
func (c *Cursor) Advance() token.Token {
	t := c.Peek()
	if c.pos < len(c.tokens)-1 {
		c.pos++
	}
	return t
}

// Check reports whether the current token has the given kind,
// comparing only the discriminant (kind), never the payload.
func (c *Cursor) Check(k token.Kind) bool {
	return c.Peek().Kind == k
}

// CheckIdentifierText reports whether the current token is an
// Identifier whose text is exactly name. Used for the grammar's
// pseudo-keywords ("boolean", "string", "SubjectSet", "includes",
// "traverse") that are not lexer keywords.
func (c *Cursor) CheckIdentifierText(name string) bool {
	t := c.Peek()
	return t.Kind == token.Identifier && t.Value == name
}

// IdentifierText returns the current token's text if it is an
// Identifier.
func (c *Cursor) IdentifierText() (string, bool) {
	t := c.Peek()
	if t.Kind != token.Identifier {
		return "", false
	}
	return t.Value, true
}

// StringLiteralText returns the current token's text if it is a
// String literal.
func (c *Cursor) StringLiteralText() (string, bool) {
	t := c.Peek()
	if t.Kind != token.String {
		return "", false
	}
	return t.Value, true
}

// IsAtEnd reports whether the cursor is positioned past the last
// token, or at an EOF token.
func (c *Cursor) IsAtEnd() bool {
	return c.Peek().Kind == token.EOF
}
