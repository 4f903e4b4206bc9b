package compiler

import "testing"

func types(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestLexSimpleStatement(t *testing.T) {
	toks := NewLexer("x = 1 + 2.5\n").Tokens()
	want := []TokenType{
		TokenIdentifier, TokenAssign, TokenInt, TokenPlus, TokenFloat,
		TokenNewline, TokenEOF,
	}
	got := types(toks)
	if len(got) != len(want) {
		t.Fatalf("tokens = %v, want %v", toks, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestLexIndentationBlocks(t *testing.T) {
	src := "if x:\n    y = 1\n    z = 2\nw = 3\n"
	toks := NewLexer(src).Tokens()
	want := []TokenType{
		TokenIf, TokenIdentifier, TokenColon, TokenNewline,
		TokenIndent,
		TokenIdentifier, TokenAssign, TokenInt, TokenNewline,
		TokenIdentifier, TokenAssign, TokenInt, TokenNewline,
		TokenDedent,
		TokenIdentifier, TokenAssign, TokenInt, TokenNewline,
		TokenEOF,
	}
	got := types(toks)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %v, want %d", len(got), toks, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestLexBlankAndCommentLinesDoNotDedent(t *testing.T) {
	src := "if x:\n    a = 1\n\n    # note\n    b = 2\n"
	toks := NewLexer(src).Tokens()
	indents, dedents := 0, 0
	for _, tok := range toks {
		switch tok.Type {
		case TokenIndent:
			indents++
		case TokenDedent:
			dedents++
		}
	}
	if indents != 1 || dedents != 1 {
		t.Fatalf("indents = %d, dedents = %d, want 1 and 1", indents, dedents)
	}
}

func TestLexBracketsSuppressNewlines(t *testing.T) {
	src := "xs = [1,\n      2,\n      3]\n"
	toks := NewLexer(src).Tokens()
	newlines := 0
	for _, tok := range toks {
		if tok.Type == TokenNewline {
			newlines++
		}
	}
	if newlines != 1 {
		t.Fatalf("newlines = %d, want 1", newlines)
	}
}

func TestLexStringsAndEscapes(t *testing.T) {
	toks := NewLexer(`s = "a\nb" + 'c'` + "\n").Tokens()
	if toks[2].Type != TokenString || toks[2].Literal != "a\nb" {
		t.Fatalf("token = %v", toks[2])
	}
	if toks[4].Type != TokenString || toks[4].Literal != "c" {
		t.Fatalf("token = %v", toks[4])
	}
}

func TestLexDocstring(t *testing.T) {
	toks := NewLexer("\"\"\"Doc text.\"\"\"\n").Tokens()
	if toks[0].Type != TokenDocstring || toks[0].Literal != "Doc text." {
		t.Fatalf("token = %v", toks[0])
	}
}

func TestLexOperators(t *testing.T) {
	src := "a <= b != c -> d += e\n"
	toks := NewLexer(src).Tokens()
	want := []TokenType{
		TokenIdentifier, TokenLessEqual, TokenIdentifier, TokenNotEqual,
		TokenIdentifier, TokenArrow, TokenIdentifier, TokenPlusAssign,
		TokenIdentifier, TokenNewline, TokenEOF,
	}
	got := types(toks)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestLexKeywords(t *testing.T) {
	toks := NewLexer("def for while nonlocal True None\n").Tokens()
	want := []TokenType{
		TokenDef, TokenFor, TokenWhile, TokenNonlocal, TokenTrue, TokenNone,
		TokenNewline, TokenEOF,
	}
	got := types(toks)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestLexUnterminatedString(t *testing.T) {
	toks := NewLexer("s = \"oops\n").Tokens()
	found := false
	for _, tok := range toks {
		if tok.Type == TokenError {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a lexing error for an unterminated string")
	}
}

func TestLexLineNumbers(t *testing.T) {
	toks := NewLexer("a = 1\nb = 2\n").Tokens()
	if toks[0].Line != 1 {
		t.Fatalf("first token line = %d, want 1", toks[0].Line)
	}
	var bTok Token
	for _, tok := range toks {
		if tok.Type == TokenIdentifier && tok.Literal == "b" {
			bTok = tok
		}
	}
	if bTok.Line != 2 {
		t.Fatalf("b line = %d, want 2", bTok.Line)
	}
}
