package capture

import (
	"fmt"

	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// Parse parses a single Go expression. Parentheses in the source are kept as
// ParenExpr nodes.
func Parse(input string) (Node, error) {
	p := &parser{lexer: NewLexer(input)}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != TokEOF {
		return nil, p.errorf(tok.Pos, "unexpected %s after expression", tok)
	}
	return node, nil
}

type parser struct {
	lexer *Lexer
}

func (p *parser) parseExpr() (Node, error) {
	return p.parseBinaryExpr(1)
}

// parseBinaryExpr climbs Go's five precedence levels. Operators of equal
// precedence associate to the left.
func (p *parser) parseBinaryExpr(prec1 int) (Node, error) {
	x, err := p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		prec := tok.Kind.Precedence()
		if prec < prec1 {
			return x, nil
		}
		p.advance()
		y, err := p.parseBinaryExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		x = &BinaryExpr{Op: tok.Kind, X: x, Y: y, OpPos: tok.Pos}
	}
}

func (p *parser) parseUnaryExpr() (Node, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case TokAdd, TokSub, TokNot, TokXor:
		p.advance()
		x, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: tok.Kind, X: x, OpPos: tok.Pos}, nil
	}
	return p.parsePrimaryExpr()
}

// parsePrimaryExpr: operand { "." ident | "(" args ")" | "[" expr "]" }
func (p *parser) parsePrimaryExpr() (Node, error) {
	x, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case TokDot:
			p.advance()
			sel, err := p.lexer.Next()
			if err != nil {
				return nil, err
			}
			if sel.Kind != TokIdent {
				return nil, p.errorf(sel.Pos, "expected selector after '.', got %s", sel.Kind)
			}
			x = &SelectorExpr{X: x, Sel: sel.Lit}
		case TokLParen:
			p.advance()
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			x = &CallExpr{Fun: x, Args: args}
		case TokLBrack:
			p.advance()
			index, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(TokRBrack); err != nil {
				return nil, err
			}
			x = &IndexExpr{X: x, Index: index}
		default:
			return x, nil
		}
	}
}

func (p *parser) parseOperand() (Node, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch {
	case tok.Kind == TokIdent:
		p.advance()
		return &Ident{Name: tok.Lit, NamePos: tok.Pos}, nil
	case tok.Kind.IsLiteral():
		p.advance()
		return &BasicLit{Kind: tok.Kind, Value: tok.Lit, ValuePos: tok.Pos}, nil
	case tok.Kind == TokLParen:
		p.advance() // consume (
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return &ParenExpr{X: inner, Lparen: tok.Pos}, nil
	case tok.Kind == TokEOF:
		return nil, p.errorf(tok.Pos, "unexpected end of expression")
	}
	return nil, p.errorf(tok.Pos, "unexpected %s", tok)
}

// parseArgs parses call arguments after the opening paren, allowing a
// trailing comma like Go does.
func (p *parser) parseArgs() ([]Node, error) {
	var args []Node
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokRParen {
			p.advance()
			return args, nil
		}
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)

		tok, err = p.peek()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case TokComma:
			p.advance()
		case TokRParen:
		default:
			return nil, p.errorf(tok.Pos, "expected ',' or ')' in argument list, got %s", tok)
		}
	}
}

// --- Helpers ---

func (p *parser) peek() (Token, error) {
	return p.lexer.Peek()
}

func (p *parser) advance() {
	p.lexer.Next() //nolint:errcheck
}

func (p *parser) expect(kind TokenKind) error {
	tok, err := p.lexer.Next()
	if err != nil {
		return err
	}
	if tok.Kind != kind {
		return p.errorf(tok.Pos, "expected %s, got %s", kind, tok)
	}
	return nil
}

func (p *parser) errorf(pos int, format string, args ...any) error {
	return sqlerr.Invalid("parse error at position %d: %s", pos, fmt.Sprintf(format, args...))
}
