package lexer_test

import (
	"testing"

	"github.com/wardenhq/warden/core/lexer"
	"github.com/wardenhq/warden/core/token"
)

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func TestTokenize_Empty(t *testing.T) {
	toks := lexer.Tokenize("", "<string>")
	if len(toks) != 1 || toks[0].Kind != token.EOF {
		t.Fatalf("expected single EOF token, got %v", toks)
	}
}

func TestTokenize_KeywordsAndIdentifiers(t *testing.T) {
	src := "class implements Namespace related permits this ctx foo Foo123 _bar"
	toks := lexer.Tokenize(src, "<string>")
	want := []token.Kind{
		token.Class, token.Implements, token.Namespace, token.Related,
		token.Permits, token.This, token.Ctx,
		token.Identifier, token.Identifier, token.Identifier,
		token.EOF,
	}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("len mismatch: got %d want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestTokenize_CommentsDropped(t *testing.T) {
	src := "foo // a comment\nbar /* block\ncomment */ baz"
	toks := lexer.Tokenize(src, "<string>")
	for _, tok := range toks {
		if tok.Kind == token.Comment {
			t.Fatalf("comment token leaked into stream: %v", tok)
		}
	}
	got := kinds(toks)
	want := []token.Kind{token.Identifier, token.Identifier, token.Identifier, token.EOF}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestTokenize_StringLiterals(t *testing.T) {
	toks := lexer.Tokenize(`'members' "viewers"`, "<string>")
	if len(toks) != 3 {
		t.Fatalf("expected 2 strings + EOF, got %v", toks)
	}
	if toks[0].Kind != token.String || toks[0].Value != "members" {
		t.Errorf("got %v", toks[0])
	}
	if toks[1].Kind != token.String || toks[1].Value != "viewers" {
		t.Errorf("got %v", toks[1])
	}
}

func TestTokenize_UnterminatedString(t *testing.T) {
	toks := lexer.Tokenize(`'unterminated`, "<string>")
	if len(toks) < 1 || toks[0].Kind != token.Error {
		t.Fatalf("expected Error token, got %v", toks)
	}
}

func TestTokenize_Operators(t *testing.T) {
	toks := lexer.Tokenize("=> && || ! = . : , ; | ( ) { } [ ] < >", "<string>")
	want := []token.Kind{
		token.Arrow, token.And, token.Or, token.Not, token.Arrow, token.Dot,
		token.Colon, token.Comma, token.Semicolon, token.Pipe,
		token.LParen, token.RParen, token.LBrace, token.RBrace,
		token.LBracket, token.RBracket, token.LAngle, token.RAngle,
		token.EOF,
	}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestTokenize_PositionsAreOneBased(t *testing.T) {
	toks := lexer.Tokenize("class\n  Foo", "<string>")
	for _, tok := range toks {
		if tok.Kind == token.EOF {
			continue
		}
		line, col := tok.Pos()
		if line < 1 || col < 1 {
			t.Errorf("token %v has invalid position %d:%d", tok, line, col)
		}
	}
	// "Foo" is on line 2, column 3 (after two leading spaces).
	found := false
	for _, tok := range toks {
		if tok.Kind == token.Identifier && tok.Value == "Foo" {
			found = true
			line, col := tok.Pos()
			if line != 2 || col != 3 {
				t.Errorf("Foo position = %d:%d, want 2:3", line, col)
			}
		}
	}
	if !found {
		t.Fatal("did not find Foo token")
	}
}

func TestTokenize_ErrorTokenResyncs(t *testing.T) {
	// '@' and '#' are not valid anywhere in the grammar; the lexer must
	// still terminate and keep scanning after them.
	toks := lexer.Tokenize("foo @#$ bar", "<string>")
	var sawError bool
	for _, tok := range toks {
		if tok.Kind == token.Error {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("expected an Error token, got %v", toks)
	}
	last := toks[len(toks)-1]
	if last.Kind != token.EOF {
		t.Fatalf("lexer did not terminate: %v", toks)
	}
}

func TestTokenize_NoCommentKindEverEmitted(t *testing.T) {
	// Invariant 1: every produced token has kind != Comment.
	src := "class Foo implements Namespace { // x\n /* y */ }"
	for _, tok := range lexer.Tokenize(src, "<string>") {
		if tok.Kind == token.Comment {
			t.Fatalf("Comment token emitted: %v", tok)
		}
	}
}
