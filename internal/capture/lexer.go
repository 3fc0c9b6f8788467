package capture

import (
	"fmt"
	"unicode"

	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// Lexer tokenizes a captured Go expression.
type Lexer struct {
	input  []rune
	pos    int
	peeked *Token
}

// NewLexer creates a lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: []rune(input)}
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() (Token, error) {
	if l.peeked != nil {
		return *l.peeked, nil
	}
	tok, err := l.next()
	if err != nil {
		return Token{}, err
	}
	l.peeked = &tok
	return tok, nil
}

// Next consumes and returns the next token.
func (l *Lexer) Next() (Token, error) {
	if l.peeked != nil {
		tok := *l.peeked
		l.peeked = nil
		return tok, nil
	}
	return l.next()
}

func (l *Lexer) next() (Token, error) {
	l.skipWhitespace()
	if l.pos >= len(l.input) {
		return Token{Kind: TokEOF, Pos: l.pos}, nil
	}

	ch := l.input[l.pos]
	pos := l.pos

	switch ch {
	case '.':
		if l.peekIs(1, unicode.IsDigit) {
			return l.readNumber(pos)
		}
		return l.single(TokDot), nil
	case ',':
		return l.single(TokComma), nil
	case '(':
		return l.single(TokLParen), nil
	case ')':
		return l.single(TokRParen), nil
	case '[':
		return l.single(TokLBrack), nil
	case ']':
		return l.single(TokRBrack), nil
	case '+':
		return l.single(TokAdd), nil
	case '-':
		return l.single(TokSub), nil
	case '*':
		return l.single(TokMul), nil
	case '%':
		return l.single(TokRem), nil
	case '^':
		return l.single(TokXor), nil
	case '/':
		if l.at(1) == '/' {
			l.skipLineComment()
			return l.next()
		}
		return l.single(TokQuo), nil
	case '&':
		switch l.at(1) {
		case '&':
			return l.double(TokLAnd), nil
		case '^':
			return l.double(TokAndNot), nil
		}
		return l.single(TokAnd), nil
	case '|':
		if l.at(1) == '|' {
			return l.double(TokLOr), nil
		}
		return l.single(TokOr), nil
	case '=':
		if l.at(1) == '=' {
			return l.double(TokEql), nil
		}
		return Token{}, l.errorf(pos, "unexpected '=', did you mean '=='?")
	case '!':
		if l.at(1) == '=' {
			return l.double(TokNeq), nil
		}
		return l.single(TokNot), nil
	case '<':
		switch l.at(1) {
		case '=':
			return l.double(TokLeq), nil
		case '<':
			return l.double(TokShl), nil
		}
		return l.single(TokLss), nil
	case '>':
		switch l.at(1) {
		case '=':
			return l.double(TokGeq), nil
		case '>':
			return l.double(TokShr), nil
		}
		return l.single(TokGtr), nil
	case '"':
		return l.readString(pos)
	case '`':
		return l.readRawString(pos)
	case '\'':
		return l.readChar(pos)
	default:
		if unicode.IsDigit(ch) {
			return l.readNumber(pos)
		}
		if isIdentStart(ch) {
			return l.readIdent(pos)
		}
		return Token{}, l.errorf(pos, "unexpected character %q", ch)
	}
}

func (l *Lexer) single(kind TokenKind) Token {
	tok := Token{Kind: kind, Lit: string(l.input[l.pos]), Pos: l.pos}
	l.pos++
	return tok
}

func (l *Lexer) double(kind TokenKind) Token {
	tok := Token{Kind: kind, Lit: string(l.input[l.pos : l.pos+2]), Pos: l.pos}
	l.pos += 2
	return tok
}

// at returns the rune at offset ahead of the cursor, or 0 past the end.
func (l *Lexer) at(offset int) rune {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *Lexer) peekIs(offset int, fn func(rune) bool) bool {
	return l.pos+offset < len(l.input) && fn(l.input[l.pos+offset])
}

// readString keeps the quotes in Lit so strconv.Unquote can decode escapes.
func (l *Lexer) readString(pos int) (Token, error) {
	l.pos++ // skip opening "
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case '\\':
			l.pos += 2
			continue
		case '\n':
			return Token{}, l.errorf(pos, "newline in string literal")
		case '"':
			l.pos++
			return Token{Kind: TokString, Lit: string(l.input[pos:l.pos]), Pos: pos}, nil
		}
		l.pos++
	}
	return Token{}, l.errorf(pos, "unterminated string literal")
}

func (l *Lexer) readRawString(pos int) (Token, error) {
	l.pos++ // skip opening `
	for l.pos < len(l.input) {
		if l.input[l.pos] == '`' {
			l.pos++
			return Token{Kind: TokString, Lit: string(l.input[pos:l.pos]), Pos: pos}, nil
		}
		l.pos++
	}
	return Token{}, l.errorf(pos, "unterminated raw string literal")
}

func (l *Lexer) readChar(pos int) (Token, error) {
	l.pos++ // skip opening '
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case '\\':
			l.pos += 2
			continue
		case '\n':
			return Token{}, l.errorf(pos, "newline in rune literal")
		case '\'':
			l.pos++
			return Token{Kind: TokChar, Lit: string(l.input[pos:l.pos]), Pos: pos}, nil
		}
		l.pos++
	}
	return Token{}, l.errorf(pos, "unterminated rune literal")
}

// readNumber scans decimal, hex, octal and binary integers and decimal
// floats with an optional exponent. Validation is left to strconv.
func (l *Lexer) readNumber(pos int) (Token, error) {
	start := l.pos
	kind := TokInt
	hex := l.at(0) == '0' && (l.at(1) == 'x' || l.at(1) == 'X')
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == '.':
			kind = TokFloat
		case !hex && (ch == 'e' || ch == 'E'):
			kind = TokFloat
			if next := l.at(1); next == '+' || next == '-' {
				l.pos++
			}
		case ch == '_' || unicode.IsDigit(ch) || unicode.IsLetter(ch):
		default:
			return Token{Kind: kind, Lit: string(l.input[start:l.pos]), Pos: pos}, nil
		}
		l.pos++
	}
	return Token{Kind: kind, Lit: string(l.input[start:l.pos]), Pos: pos}, nil
}

func (l *Lexer) readIdent(pos int) (Token, error) {
	start := l.pos
	for l.pos < len(l.input) && isIdentCont(l.input[l.pos]) {
		l.pos++
	}
	return Token{Kind: TokIdent, Lit: string(l.input[start:l.pos]), Pos: pos}, nil
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(l.input[l.pos]) {
		l.pos++
	}
}

func (l *Lexer) skipLineComment() {
	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		l.pos++
	}
}

func (l *Lexer) errorf(pos int, format string, args ...any) error {
	return sqlerr.Invalid("lexer error at position %d: %s", pos, fmt.Sprintf(format, args...))
}

func isIdentStart(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_'
}

func isIdentCont(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}
