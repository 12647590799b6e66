package compiler

import (
	"testing"
)

func TestLexerBasicTokens(t *testing.T) {
	input := `( ) [ ] { } , . : ; + - * / ! = != == > >= < <=`
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBrack, "["},
		{TokenRBrack, "]"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenComma, ","},
		{TokenDot, "."},
		{TokenColon, ":"},
		{TokenSemicolon, ";"},
		{TokenPlus, "+"},
		{TokenMinus, "-"},
		{TokenAsterisk, "*"},
		{TokenSlash, "/"},
		{TokenBang, "!"},
		{TokenEq, "="},
		{TokenBangEq, "!="},
		{TokenEqEq, "=="},
		{TokenGt, ">"},
		{TokenGtEq, ">="},
		{TokenLt, "<"},
		{TokenLtEq, "<="},
		{TokenEOF, ""},
	}

	l := NewLexer(input, nil)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if tok.Text != exp.lit {
			t.Errorf("token[%d] text = %q, want %q", i, tok.Text, exp.lit)
		}
	}
}

func TestLexerKeywords(t *testing.T) {
	tests := []struct {
		input string
		want  TokenType
	}{
		{"and", TokenAnd},
		{"or", TokenOr},
		{"if", TokenIf},
		{"else", TokenElse},
		{"fun", TokenFun},
		{"for", TokenFor},
		{"while", TokenWhile},
		{"nil", TokenNil},
		{"return", TokenReturn},
		{"var", TokenVar},
		{"true", TokenTrue},
		{"false", TokenFalse},
		{"print", TokenPrint},
		{"break", TokenBreak},
		{"continue", TokenContinue},
		// Prefixes and extensions of keywords stay identifiers
		{"an", TokenIdentifier},
		{"andd", TokenIdentifier},
		{"fo", TokenIdentifier},
		{"form", TokenIdentifier},
		{"f", TokenIdentifier},
		{"truex", TokenIdentifier},
		{"_var", TokenIdentifier},
		{"printf", TokenIdentifier},
	}

	for _, tc := range tests {
		l := NewLexer(tc.input, nil)
		tok := l.NextToken()
		if tok.Type != tc.want {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.want)
		}
		if tok.Text != tc.input {
			t.Errorf("Lexer(%q): text = %q, want %q", tc.input, tok.Text, tc.input)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		text  string
		value float64
	}{
		{"42", "42", 42},
		{"0", "0", 0},
		{"3.14", "3.14", 3.14},
		{"0.5", "0.5", 0.5},
		{"10_000", "10_000", 10000},
		{"1_2.3_4", "1_2.3_4", 12.34},
	}

	for _, tc := range tests {
		l := NewLexer(tc.input, nil)
		tok := l.NextToken()
		if tok.Type != TokenNumber {
			t.Fatalf("Lexer(%q): type = %v, want NUMBER", tc.input, tok.Type)
		}
		if tok.Text != tc.text {
			t.Errorf("Lexer(%q): text = %q, want %q", tc.input, tok.Text, tc.text)
		}
		if got := DecodeNumber(tok.Text); got != tc.value {
			t.Errorf("DecodeNumber(%q) = %v, want %v", tok.Text, got, tc.value)
		}
	}
}

func TestLexerNumberSeparatorErrors(t *testing.T) {
	for _, input := range []string{"1_", "1_.5", "1._5", "1.5_"} {
		h := NewCollectingHandler()
		l := NewLexer(input+" 9", h)
		l.Tokenize()
		if !h.HasErrors() {
			t.Errorf("Lexer(%q): expected an error diagnostic", input)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`""`, ""},
		{`"a\tb"`, "a\tb"},
		{`"a\nb"`, "a\nb"},
		{`"q\"q"`, `q"q`},
		{`"back\\slash"`, `back\slash`},
		{`"A"`, "A"},
		{`"é"`, "é"},
	}

	for _, tc := range tests {
		h := NewCollectingHandler()
		l := NewLexer(tc.input, h)
		tok := l.NextToken()
		if tok.Type != TokenString {
			t.Fatalf("Lexer(%q): type = %v, want STRING", tc.input, tok.Type)
		}
		if tok.Text != tc.want {
			t.Errorf("Lexer(%q): text = %q, want %q", tc.input, tok.Text, tc.want)
		}
		if h.HasErrors() {
			t.Errorf("Lexer(%q): unexpected diagnostics %v", tc.input, h.Diagnostics)
		}
	}
}

func TestLexerStringErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"\"abc", "unexpected EOF"},
		{"\"ab\nc\"", "multiline strings are not supported"},
		{`"a\qb"`, "unrecognized escape sequence"},
		{`"a\u12xy"`, "illegal unicode escape"},
	}

	for _, tc := range tests {
		h := NewCollectingHandler()
		l := NewLexer(tc.input, h)
		l.Tokenize()
		if len(h.Diagnostics) == 0 {
			t.Fatalf("Lexer(%q): expected a diagnostic", tc.input)
		}
		if got := h.Diagnostics[0].Message; got != tc.want {
			t.Errorf("Lexer(%q): message = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestLexerComments(t *testing.T) {
	input := "1 // a comment\n2"
	l := NewLexer(input, nil)
	first := l.NextToken()
	second := l.NextToken()
	if first.Type != TokenNumber || first.Text != "1" {
		t.Errorf("first token = %v", first)
	}
	if second.Type != TokenNumber || second.Text != "2" {
		t.Errorf("second token = %v, want the comment skipped", second)
	}

	l = NewLexer(input, nil)
	l.IgnoreComments = false
	l.NextToken()
	comment := l.NextToken()
	if comment.Type != TokenComment {
		t.Errorf("comment token = %v, want COMMENT", comment)
	}
}

func TestLexerContinuesAfterError(t *testing.T) {
	h := NewCollectingHandler()
	l := NewLexer("@ 42", h)
	tok := l.NextToken()
	if tok.Type != TokenNumber || tok.Text != "42" {
		t.Errorf("token after error = %v, want NUMBER(42)", tok)
	}
	if len(h.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %v, want exactly one", h.Diagnostics)
	}
	if h.Diagnostics[0].Message != "unknown token" {
		t.Errorf("message = %q, want %q", h.Diagnostics[0].Message, "unknown token")
	}
}

func TestLexerPositions(t *testing.T) {
	l := NewLexer("a\n bb", nil)
	a := l.NextToken()
	bb := l.NextToken()
	if a.Range.Start.Line != 1 || a.Range.Start.Column != 1 {
		t.Errorf("a starts at %d:%d, want 1:1", a.Range.Start.Line, a.Range.Start.Column)
	}
	if bb.Range.Start.Line != 2 || bb.Range.Start.Column != 2 {
		t.Errorf("bb starts at %d:%d, want 2:2", bb.Range.Start.Line, bb.Range.Start.Column)
	}
	if bb.Range.Start.Offset != 3 {
		t.Errorf("bb offset = %d, want 3", bb.Range.Start.Offset)
	}
}
