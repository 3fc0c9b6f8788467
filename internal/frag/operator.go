package frag

import (
	"fmt"

	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// OpKind identifies an operator.
type OpKind int

const (
	OpAdd OpKind = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpBitAnd
	OpBitOr
	OpBitXor
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpLike
	OpNotLike
	OpAnd
	OpOr
	OpNegate
	OpNot
	OpBitNot
)

type arity int

const (
	arityNary arity = iota
	arityBinary
	arityUnary
)

// Precedence classes, tightest first.
const (
	precUnary = iota + 1
	precMultiplicative
	precAdditive
	precBitwise
	precComparison
	precNot
	precAnd
	precOr
)

type opInfo struct {
	name        string
	token       string
	prec        int
	arity       arity
	associative bool
}

var opTable = [...]opInfo{
	OpAdd:          {"ADD", "+", precAdditive, arityNary, true},
	OpSubtract:     {"SUBTRACT", "-", precAdditive, arityNary, false},
	OpMultiply:     {"MULTIPLY", "*", precMultiplicative, arityNary, true},
	OpDivide:       {"DIVIDE", "/", precMultiplicative, arityNary, false},
	OpModulo:       {"MODULO", "%", precMultiplicative, arityNary, false},
	OpBitAnd:       {"BIT_AND", "&", precBitwise, arityNary, true},
	OpBitOr:        {"BIT_OR", "|", precBitwise, arityNary, true},
	OpBitXor:       {"BIT_XOR", "^", precBitwise, arityNary, true},
	OpEqual:        {"EQUAL", "=", precComparison, arityBinary, false},
	OpNotEqual:     {"NOT_EQUAL", "<>", precComparison, arityBinary, false},
	OpLess:         {"LESS", "<", precComparison, arityBinary, false},
	OpLessEqual:    {"LESS_EQUAL", "<=", precComparison, arityBinary, false},
	OpGreater:      {"GREATER", ">", precComparison, arityBinary, false},
	OpGreaterEqual: {"GREATER_EQUAL", ">=", precComparison, arityBinary, false},
	OpLike:         {"LIKE", "LIKE", precComparison, arityBinary, false},
	OpNotLike:      {"NOT_LIKE", "NOT LIKE", precComparison, arityBinary, false},
	OpAnd:          {"AND", "AND", precAnd, arityNary, true},
	OpOr:           {"OR", "OR", precOr, arityNary, true},
	OpNegate:       {"NEGATE", "-", precUnary, arityUnary, false},
	OpNot:          {"NOT", "NOT ", precNot, arityUnary, false},
	OpBitNot:       {"BIT_NOT", "~", precUnary, arityUnary, false},
}

func (k OpKind) info() opInfo {
	if k < 0 || int(k) >= len(opTable) {
		return opInfo{name: fmt.Sprintf("OP(%d)", int(k))}
	}
	return opTable[k]
}

// String returns the operator name used by dialect token overrides.
func (k OpKind) String() string { return k.info().name }

// Token returns the default SQL token.
func (k OpKind) Token() string { return k.info().token }

// Precedence returns the precedence class; lower binds tighter.
func (k OpKind) Precedence() int { return k.info().prec }

// Associative reports whether a same-kind child can be written without
// parentheses.
func (k OpKind) Associative() bool { return k.info().associative }

// IsArithmetic reports whether the operator is a binary arithmetic or
// bitwise operator.
func (k OpKind) IsArithmetic() bool {
	p := k.info().prec
	return p > precUnary && p < precComparison
}

// IsUnary reports whether the operator takes exactly one operand.
func (k OpKind) IsUnary() bool { return k.info().arity == arityUnary }

// Operator is an n-ary operator application. It is immutable: Add returns
// a new operator and leaves the receiver unchanged.
type Operator struct {
	kind     OpKind
	operands []Fragment
}

// Op applies kind to operands lifted with ValueOf.
func Op(kind OpKind, operands ...any) Operator {
	return Operator{kind: kind, operands: valuesOf(operands)}
}

func Add(operands ...any) Operator { return Op(OpAdd, operands...) }
func Sub(operands ...any) Operator { return Op(OpSubtract, operands...) }
func Mul(operands ...any) Operator { return Op(OpMultiply, operands...) }
func Div(operands ...any) Operator { return Op(OpDivide, operands...) }
func Mod(operands ...any) Operator { return Op(OpModulo, operands...) }
func BitAnd(operands ...any) Operator { return Op(OpBitAnd, operands...) }
func BitOr(operands ...any) Operator { return Op(OpBitOr, operands...) }
func BitXor(operands ...any) Operator { return Op(OpBitXor, operands...) }
func And(operands ...any) Operator { return Op(OpAnd, operands...) }
func Or(operands ...any) Operator { return Op(OpOr, operands...) }
func Eq(left, right any) Operator { return Op(OpEqual, left, right) }
func Ne(left, right any) Operator { return Op(OpNotEqual, left, right) }
func Lt(left, right any) Operator { return Op(OpLess, left, right) }
func Le(left, right any) Operator { return Op(OpLessEqual, left, right) }
func Gt(left, right any) Operator { return Op(OpGreater, left, right) }
func Ge(left, right any) Operator { return Op(OpGreaterEqual, left, right) }
func Like(left, pattern any) Operator { return Op(OpLike, left, pattern) }
func NotLike(left, pattern any) Operator { return Op(OpNotLike, left, pattern) }
func Neg(operand any) Operator { return Op(OpNegate, operand) }
func Not(operand any) Operator { return Op(OpNot, operand) }

// Kind returns the operator kind.
func (o Operator) Kind() OpKind { return o.kind }

// Operands returns a copy of the operand list.
func (o Operator) Operands() []Fragment {
	out := make([]Fragment, len(o.operands))
	copy(out, o.operands)
	return out
}

// Add returns a copy of o with v appended.
func (o Operator) Add(v any) Operator {
	ops := make([]Fragment, len(o.operands), len(o.operands)+1)
	copy(ops, o.operands)
	return Operator{kind: o.kind, operands: append(ops, ValueOf(v))}
}

func (o Operator) shape() shape {
	if len(o.operands) == 1 && !o.kind.IsUnary() {
		return shapeOf(o.operands[0])
	}
	return shapeComposite
}

func (o Operator) Compile(w *Writer, p Parens) error {
	info := o.kind.info()
	if info.token == "" {
		return sqlerr.Invalid("unknown operator").With("operator", info.name)
	}
	if len(o.operands) == 0 {
		return sqlerr.EmptyList(info.name)
	}
	switch info.arity {
	case arityUnary:
		if len(o.operands) != 1 {
			return sqlerr.Structure("unary operator takes one operand, got %d", len(o.operands)).With("operator", info.name)
		}
	case arityBinary:
		if len(o.operands) != 2 {
			return sqlerr.Structure("binary operator takes two operands, got %d", len(o.operands)).With("operator", info.name)
		}
	default:
		if len(o.operands) == 1 {
			return w.Write(o.operands[0], p)
		}
	}

	def, err := w.funcs.operator(o.kind, w.opts)
	if err != nil {
		return err
	}
	if def != nil && def.Strategy != nil {
		return def.Strategy(w, o.operands, p)
	}
	tok := info.token
	if t, ok := w.opts.OperatorToken(info.name); ok {
		tok = t
	}
	if def != nil && def.Token != "" {
		tok = def.Token
	}

	return wrapIf(w, p.wraps(shapeComposite), func() error {
		if info.arity == arityUnary {
			w.WriteString(tok)
			pp := o.childParens(o.operands[0])
			if _, isValue := o.operands[0].(Value); isValue && w.opts.InlineParameters {
				// keeps "-" and a negative literal from forming a comment
				pp = ParensAlways
			}
			return w.Write(o.operands[0], pp)
		}
		for i, operand := range o.operands {
			if i > 0 {
				w.WriteString(" " + tok + " ")
			}
			if err := w.Write(operand, o.childParens(operand)); err != nil {
				return err
			}
		}
		return nil
	})
}

// childParens decides how an operand is parenthesized: a nested operator
// is written bare when it is the same associative kind, or when it is a
// comparison (or tighter) under AND/OR; anything else composite gets
// parentheses.
func (o Operator) childParens(child Fragment) Parens {
	c, ok := child.(Operator)
	if !ok {
		// predicates bind tighter than the logical operators
		if pc, ok := child.(interface{ precedence() int }); ok {
			return ParensIf(pc.precedence() >= o.kind.Precedence())
		}
		return ParensSubFragment
	}
	if len(c.operands) == 1 && !c.kind.IsUnary() {
		return o.childParens(c.operands[0])
	}
	if c.kind == o.kind && o.kind.Associative() {
		return ParensNever
	}
	if (o.kind == OpAnd || o.kind == OpOr) && c.kind.Precedence() <= precComparison {
		return ParensNever
	}
	return ParensAlways
}

func (o Operator) String() string { return render(o) }
