// Package lexer turns namespace-DSL source text into a stream of
// core/token.Token values.
//
// Whitespace is skipped between tokens and never emitted. Comments
// (// line comments and /* block */ comments, non-nesting) are
// recognised and dropped. Lexing is total: any input that cannot be
// matched by a known token shape produces an Error token instead of
// failing, and the cursor re-syncs at the next whitespace or bracket.
package lexer

import (
	"strings"
	"unicode/utf8"

	"github.com/wardenhq/warden/core/token"
)

// Lexer scans a single source string into tokens. It holds no state
// beyond the cursor into source, so it is not safe for concurrent use
// by multiple goroutines against the same instance — construct one
// Lexer per source text instead.
type Lexer struct {
	source string
	name   string

	pos    int // byte offset
	line   int // 1-based
	column int // 1-based, utf8 columns
}

// New constructs a Lexer over source. name identifies the source (a
// file path, or "<string>") and is attached to every emitted Span.
func New(source, name string) *Lexer {
	return &Lexer{source: source, name: name, pos: 0, line: 1, column: 1}
}

// Tokenize scans source in full and returns its token stream,
// terminated by a single EOF token. Comments are dropped. Tokenize is
// deterministic and total: it never panics on malformed input, and
// empty input yields a stream containing only EOF.
func Tokenize(source, name string) []token.Token {
	l := New(source, name)
	var toks []token.Token
	for {
		tok, ok := l.next()
		if !ok {
			continue // comment: skip without emitting
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

// next scans and returns the next token. The second return value is
// false for comments, which are recognised but never emitted.
func (l *Lexer) next() (token.Token, bool) {
	l.skipWhitespace()

	start := l.span()

	if l.atEnd() {
		return token.New(token.EOF, "", start), true
	}

	if tok, ok, consumed := l.tryComment(start); consumed {
		return tok, ok
	}

	if tok, ok := l.tryString(start); ok {
		return tok, true
	}

	if tok, ok := l.tryIdentifierOrKeyword(start); ok {
		return tok, true
	}

	if tok, ok := l.tryOperatorOrBracket(start); ok {
		return tok, true
	}

	// Recognition failure: emit an Error token and re-sync at the next
	// whitespace or bracket so lexing remains total.
	frag := l.errorFragment()
	l.advanceBytes(len(frag))
	return token.Token{Kind: token.Error, Value: frag, Line: intp(start.Line), Column: intp(start.Column)}, true
}

func intp(i int) *int { return &i }

// span captures the current position as a Span with no fragment set.
func (l *Lexer) span() token.Span {
	return token.Span{Source: l.name, Offset: l.pos, Line: l.line, Column: l.column}
}

func (l *Lexer) atEnd() bool {
	return l.pos >= len(l.source)
}

func (l *Lexer) peekByte() byte {
	if l.atEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekByteAt(offset int) byte {
	if l.pos+offset >= len(l.source) {
		return 0
	}
	return l.source[l.pos+offset]
}

// advance consumes one rune and updates line/column bookkeeping.
func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.source[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return r
}

// advanceBytes consumes n bytes rune-by-rune, keeping line/column accurate.
func (l *Lexer) advanceBytes(n int) {
	end := l.pos + n
	for l.pos < end && !l.atEnd() {
		l.advance()
	}
}

func (l *Lexer) skipWhitespace() {
	for !l.atEnd() {
		switch l.peekByte() {
		case ' ', '\t', '\r', '\n':
			l.advance()
		default:
			return
		}
	}
}

// tryComment recognises "// ..." to end of line and "/* ... */"
// (non-nesting). Returns consumed=true if a comment was matched, in
// which case ok indicates whether the returned token should be
// emitted (always false — comments are dropped, but next() still
// needs a Token value to satisfy the return signature uniformly).
func (l *Lexer) tryComment(start token.Span) (token.Token, bool, bool) {
	if l.peekByte() != '/' {
		return token.Token{}, false, false
	}
	switch l.peekByteAt(1) {
	case '/':
		l.advance()
		l.advance()
		for !l.atEnd() && l.peekByte() != '\n' {
			l.advance()
		}
		return token.Token{Kind: token.Comment}, false, true
	case '*':
		l.advance()
		l.advance()
		for !l.atEnd() {
			if l.peekByte() == '*' && l.peekByteAt(1) == '/' {
				l.advance()
				l.advance()
				return token.Token{Kind: token.Comment}, false, true
			}
			l.advance()
		}
		// Unterminated block comment: treat the remainder as consumed
		// so the caller still moves past it (total lexing).
		return token.Token{Kind: token.Comment}, false, true
	default:
		_ = start
		return token.Token{}, false, false
	}
}

// tryString recognises '...' or "..." string literals. The returned
// value excludes the delimiters. An unterminated literal yields an
// Error token whose value is the remainder of the current line.
func (l *Lexer) tryString(start token.Span) (token.Token, bool) {
	quote := l.peekByte()
	if quote != '\'' && quote != '"' {
		return token.Token{}, false
	}
	l.advance() // opening quote

	var sb strings.Builder
	for {
		if l.atEnd() || l.peekByte() == '\n' {
			// Unterminated literal: remainder of the line is the message.
			rest := sb.String()
			return token.Token{Kind: token.Error, Value: rest, Line: intp(start.Line), Column: intp(start.Column)}, true
		}
		c := l.peekByte()
		if c == quote {
			l.advance()
			return token.New(token.String, sb.String(), start), true
		}
		sb.WriteByte(c)
		l.advance()
	}
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

func isIdentCont(r rune) bool {
	return isIdentStart(r)
}

// tryIdentifierOrKeyword matches [A-Za-z0-9_]+. Digits are allowed at
// any position per spec; the grammar never begins an identifier with
// a digit in practice, but the lexer does not special-case it.
func (l *Lexer) tryIdentifierOrKeyword(start token.Span) (token.Token, bool) {
	r, _ := utf8.DecodeRuneInString(l.source[l.pos:])
	if !isIdentStart(r) {
		return token.Token{}, false
	}
	begin := l.pos
	for !l.atEnd() {
		r, _ := utf8.DecodeRuneInString(l.source[l.pos:])
		if !isIdentCont(r) {
			break
		}
		l.advance()
	}
	text := l.source[begin:l.pos]
	return token.New(token.LookupIdentifier(text), text, start), true
}

// operators lists multi-byte operators before their single-byte
// prefixes so the longest match wins.
var operators = []struct {
	text string
	kind token.Kind
}{
	{"=>", token.Arrow},
	{"&&", token.And},
	{"||", token.Or},
	{"=", token.Arrow},
	{"!", token.Not},
	{".", token.Dot},
	{":", token.Colon},
	{",", token.Comma},
	{";", token.Semicolon},
	{"|", token.Pipe},
	{"(", token.LParen},
	{")", token.RParen},
	{"{", token.LBrace},
	{"}", token.RBrace},
	{"[", token.LBracket},
	{"]", token.RBracket},
	{"<", token.LAngle},
	{">", token.RAngle},
}

func (l *Lexer) tryOperatorOrBracket(start token.Span) (token.Token, bool) {
	for _, op := range operators {
		if strings.HasPrefix(l.source[l.pos:], op.text) {
			l.advanceBytes(len(op.text))
			return token.New(op.kind, op.text, start), true
		}
	}
	return token.Token{}, false
}

// errorFragment returns the shortest prefix of the remaining source
// that will be consumed when recognition fails at the current
// position: up to (but not including) the next whitespace or bracket,
// or a single rune if the failure point is immediately followed by
// one of those.
func (l *Lexer) errorFragment() string {
	rest := l.source[l.pos:]
	if rest == "" {
		return ""
	}
	idx := strings.IndexFunc(rest, func(r rune) bool {
		switch r {
		case ' ', '\t', '\r', '\n', '(', ')', '{', '}', '[', ']', '<', '>':
			return true
		}
		return false
	})
	if idx == 0 {
		// The failing rune is itself whitespace/bracket-shaped but
		// didn't match any known operator above (shouldn't normally
		// happen); consume just that one rune to guarantee progress.
		_, size := utf8.DecodeRuneInString(rest)
		return rest[:size]
	}
	if idx < 0 {
		return rest
	}
	return rest[:idx]
}
