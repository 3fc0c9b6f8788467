package capture

import (
	"fmt"
	"strings"
)

// Node is a node of a captured expression tree.
type Node interface {
	node()
	// Pos returns the rune offset of the node in the source text.
	Pos() int
	String() string
}

// Ident is a bare name: a parameter, a bound local, a builtin or a package.
type Ident struct {
	Name    string
	NamePos int
}

// BasicLit is an integer, float, string or rune literal. Value holds the
// literal as written, quotes included.
type BasicLit struct {
	Kind     TokenKind
	Value    string
	ValuePos int
}

// SelectorExpr is X.Sel.
type SelectorExpr struct {
	X   Node
	Sel string
}

// IndexExpr is X[Index].
type IndexExpr struct {
	X     Node
	Index Node
}

// CallExpr is Fun(Args...).
type CallExpr struct {
	Fun  Node
	Args []Node
}

// ParenExpr is an explicitly parenthesized expression. The parser keeps it so
// operator flattening stops where the source grouped.
type ParenExpr struct {
	X      Node
	Lparen int
}

// UnaryExpr is Op X.
type UnaryExpr struct {
	Op    TokenKind
	X     Node
	OpPos int
}

// BinaryExpr is X Op Y.
type BinaryExpr struct {
	Op    TokenKind
	X     Node
	Y     Node
	OpPos int
}

func (*Ident) node() {}
func (*BasicLit) node() {}
func (*SelectorExpr) node() {}
func (*IndexExpr) node() {}
func (*CallExpr) node() {}
func (*ParenExpr) node() {}
func (*UnaryExpr) node() {}
func (*BinaryExpr) node() {}

func (n *Ident) Pos() int { return n.NamePos }
func (n *BasicLit) Pos() int { return n.ValuePos }
func (n *SelectorExpr) Pos() int { return n.X.Pos() }
func (n *IndexExpr) Pos() int { return n.X.Pos() }
func (n *CallExpr) Pos() int { return n.Fun.Pos() }
func (n *ParenExpr) Pos() int { return n.Lparen }
func (n *UnaryExpr) Pos() int { return n.OpPos }
func (n *BinaryExpr) Pos() int { return n.X.Pos() }

func (n *Ident) String() string { return n.Name }
func (n *BasicLit) String() string { return n.Value }
func (n *SelectorExpr) String() string { return n.X.String() + "." + n.Sel }
func (n *IndexExpr) String() string { return n.X.String() + "[" + n.Index.String() + "]" }
func (n *ParenExpr) String() string { return "(" + n.X.String() + ")" }
func (n *UnaryExpr) String() string { return n.Op.String() + n.X.String() }

func (n *BinaryExpr) String() string {
	return fmt.Sprintf("%s %s %s", n.X, n.Op, n.Y)
}

func (n *CallExpr) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.String()
	}
	return n.Fun.String() + "(" + strings.Join(args, ", ") + ")"
}

// dottedName returns "a.b.c" for a selector chain rooted at an identifier.
func dottedName(n Node) (string, bool) {
	switch n := n.(type) {
	case *Ident:
		return n.Name, true
	case *SelectorExpr:
		x, ok := dottedName(n.X)
		if !ok {
			return "", false
		}
		return x + "." + n.Sel, true
	}
	return "", false
}

// rootIdent returns the identifier a selector/index chain starts from.
func rootIdent(n Node) *Ident {
	for {
		switch x := n.(type) {
		case *Ident:
			return x
		case *SelectorExpr:
			n = x.X
		case *IndexExpr:
			n = x.X
		default:
			return nil
		}
	}
}
