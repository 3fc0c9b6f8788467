package capture

import (
	"strings"
	"testing"
)

func collectTokens(t *testing.T, input string) []Token {
	t.Helper()
	lex := NewLexer(input)
	var tokens []Token
	for {
		tok, err := lex.Next()
		if err != nil {
			t.Fatalf("lexer error on %q: %v", input, err)
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokEOF {
			break
		}
	}
	return tokens
}

func TestLexerOperators(t *testing.T) {
	tests := []struct {
		input string
		kind  TokenKind
	}{
		{".", TokDot},
		{",", TokComma},
		{"(", TokLParen},
		{")", TokRParen},
		{"[", TokLBrack},
		{"]", TokRBrack},
		{"+", TokAdd},
		{"-", TokSub},
		{"*", TokMul},
		{"/", TokQuo},
		{"%", TokRem},
		{"&", TokAnd},
		{"|", TokOr},
		{"^", TokXor},
		{"&^", TokAndNot},
		{"<<", TokShl},
		{">>", TokShr},
		{"&&", TokLAnd},
		{"||", TokLOr},
		{"!", TokNot},
		{"==", TokEql},
		{"!=", TokNeq},
		{"<", TokLss},
		{"<=", TokLeq},
		{">", TokGtr},
		{">=", TokGeq},
	}
	for _, tt := range tests {
		toks := collectTokens(t, tt.input)
		if len(toks) != 2 { // token + EOF
			t.Errorf("input %q: expected 2 tokens, got %d", tt.input, len(toks))
			continue
		}
		if toks[0].Kind != tt.kind {
			t.Errorf("input %q: expected %v, got %v", tt.input, tt.kind, toks[0].Kind)
		}
		if toks[0].Lit != tt.input {
			t.Errorf("input %q: expected literal %q, got %q", tt.input, tt.input, toks[0].Lit)
		}
	}
}

func TestLexerLiterals(t *testing.T) {
	tests := []struct {
		input string
		kind  TokenKind
		lit   string
	}{
		{"42", TokInt, "42"},
		{"0x2A", TokInt, "0x2A"},
		{"1_000", TokInt, "1_000"},
		{"3.14", TokFloat, "3.14"},
		{".5", TokFloat, ".5"},
		{"1e-3", TokFloat, "1e-3"},
		{`"a \"b\""`, TokString, `"a \"b\""`},
		{"`raw\\n`", TokString, "`raw\\n`"},
		{`'x'`, TokChar, `'x'`},
		{"Salary", TokIdent, "Salary"},
		{"_tmp1", TokIdent, "_tmp1"},
	}
	for _, tt := range tests {
		toks := collectTokens(t, tt.input)
		if len(toks) != 2 {
			t.Errorf("input %q: expected 2 tokens, got %d: %v", tt.input, len(toks), toks)
			continue
		}
		if toks[0].Kind != tt.kind || toks[0].Lit != tt.lit {
			t.Errorf("input %q: expected %v(%q), got %v(%q)", tt.input, tt.kind, tt.lit, toks[0].Kind, toks[0].Lit)
		}
	}
}

func TestLexerExpression(t *testing.T) {
	toks := collectTokens(t, "p.Salary >= 100 && !done // trailing comment")
	want := []TokenKind{TokIdent, TokDot, TokIdent, TokGeq, TokInt, TokLAnd, TokNot, TokIdent, TokEOF}
	if len(toks) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(toks), toks)
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d: expected %v, got %v", i, k, toks[i].Kind)
		}
	}
	if toks[3].Pos != 9 {
		t.Errorf("expected >= at position 9, got %d", toks[3].Pos)
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"open`, "unterminated string"},
		{"`open", "unterminated raw string"},
		{"a = b", "did you mean '=='"},
		{"a # b", "unexpected character"},
	}
	for _, tt := range tests {
		lex := NewLexer(tt.input)
		var err error
		for err == nil {
			var tok Token
			tok, err = lex.Next()
			if err == nil && tok.Kind == TokEOF {
				break
			}
		}
		if err == nil {
			t.Errorf("input %q: expected error containing %q", tt.input, tt.want)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("input %q: expected error containing %q, got %q", tt.input, tt.want, err)
		}
	}
}
