package capture

import "fmt"

// TokenKind classifies a lexical token of a captured Go expression.
type TokenKind int

const (
	TokEOF      TokenKind = iota
	TokIdent              // identifier
	TokInt                // 42, 0x2a
	TokFloat              // 3.14, 1e3
	TokString             // "text", `raw`
	TokChar               // 'a'
	TokDot                // .
	TokComma              // ,
	TokLParen             // (
	TokRParen             // )
	TokLBrack             // [
	TokRBrack             // ]
	TokAdd                // +
	TokSub                // -
	TokMul                // *
	TokQuo                // /
	TokRem                // %
	TokAnd                // &
	TokOr                 // |
	TokXor                // ^
	TokAndNot             // &^
	TokShl                // <<
	TokShr                // >>
	TokLAnd               // &&
	TokLOr                // ||
	TokNot                // !
	TokEql                // ==
	TokNeq                // !=
	TokLss                // <
	TokLeq                // <=
	TokGtr                // >
	TokGeq                // >=
)

// Token is a single lexical token produced by the lexer.
type Token struct {
	Kind TokenKind
	Lit  string // raw text of the token
	Pos  int    // rune offset in input
}

func (t Token) String() string {
	if t.Lit != "" && t.Lit != t.Kind.String() {
		return fmt.Sprintf("%s(%q)", t.Kind, t.Lit)
	}
	return t.Kind.String()
}

var kindNames = map[TokenKind]string{
	TokEOF:    "EOF",
	TokIdent:  "identifier",
	TokInt:    "integer",
	TokFloat:  "float",
	TokString: "string",
	TokChar:   "char",
	TokDot:    ".",
	TokComma:  ",",
	TokLParen: "(",
	TokRParen: ")",
	TokLBrack: "[",
	TokRBrack: "]",
	TokAdd:    "+",
	TokSub:    "-",
	TokMul:    "*",
	TokQuo:    "/",
	TokRem:    "%",
	TokAnd:    "&",
	TokOr:     "|",
	TokXor:    "^",
	TokAndNot: "&^",
	TokShl:    "<<",
	TokShr:    ">>",
	TokLAnd:   "&&",
	TokLOr:    "||",
	TokNot:    "!",
	TokEql:    "==",
	TokNeq:    "!=",
	TokLss:    "<",
	TokLeq:    "<=",
	TokGtr:    ">",
	TokGeq:    ">=",
}

func (k TokenKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Precedence returns the Go binary precedence of k, or 0 when k is not a
// binary operator.
func (k TokenKind) Precedence() int {
	switch k {
	case TokLOr:
		return 1
	case TokLAnd:
		return 2
	case TokEql, TokNeq, TokLss, TokLeq, TokGtr, TokGeq:
		return 3
	case TokAdd, TokSub, TokOr, TokXor:
		return 4
	case TokMul, TokQuo, TokRem, TokShl, TokShr, TokAnd, TokAndNot:
		return 5
	}
	return 0
}

// IsComparison reports whether k compares two operands.
func (k TokenKind) IsComparison() bool {
	return k.Precedence() == 3
}

// IsLiteral reports whether k is a basic literal.
func (k TokenKind) IsLiteral() bool {
	switch k {
	case TokInt, TokFloat, TokString, TokChar:
		return true
	}
	return false
}
