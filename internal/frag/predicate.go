package frag

import (
	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// In is "x IN (v, ...)" or "x IN (subquery)".
type In struct {
	Expr   Fragment
	Values []Fragment
	Query  Fragment
	Negate bool
}

// InValues builds x IN (values...).
func InValues(x any, values ...any) In {
	return In{Expr: ValueOf(x), Values: valuesOf(values)}
}

// InQuery builds x IN (query).
func InQuery(x any, query Fragment) In {
	return In{Expr: ValueOf(x), Query: query}
}

// Not returns the negated predicate.
func (in In) Not() In {
	in.Negate = !in.Negate
	return in
}

func (in In) Compile(w *Writer, p Parens) error {
	if in.Query == nil && len(in.Values) == 0 {
		return sqlerr.EmptyList("IN")
	}
	return wrapIf(w, p.wraps(shapeComposite), func() error {
		if err := w.Write(in.Expr, ParensSubFragment); err != nil {
			return err
		}
		if in.Negate {
			w.WriteString(" NOT IN ")
		} else {
			w.WriteString(" IN ")
		}
		if in.Query != nil {
			return w.Write(in.Query, ParensAlways)
		}
		w.WriteString("(")
		if err := w.WriteList(in.Values, ", ", ParensSubQuery); err != nil {
			return err
		}
		w.WriteString(")")
		return nil
	})
}

func (in In) shape() shape { return shapeComposite }
func (in In) precedence() int { return precComparison }
func (in In) String() string { return render(in) }

// Exists is EXISTS (query).
type Exists struct {
	Query  Fragment
	Negate bool
}

func (e Exists) Compile(w *Writer, _ Parens) error {
	if e.Query == nil {
		return sqlerr.Structure("EXISTS needs a query")
	}
	if e.Negate {
		w.WriteString("NOT ")
	}
	w.WriteString("EXISTS ")
	return w.Write(e.Query, ParensAlways)
}

func (e Exists) String() string { return render(e) }

// IsNull is "x IS NULL" or "x IS NOT NULL".
type IsNull struct {
	Expr   Fragment
	Negate bool
}

// NullCheck reports whether x IS NULL.
func NullCheck(x any) IsNull { return IsNull{Expr: ValueOf(x)} }

// NotNullCheck reports whether x IS NOT NULL.
func NotNullCheck(x any) IsNull { return IsNull{Expr: ValueOf(x), Negate: true} }

func (n IsNull) Compile(w *Writer, p Parens) error {
	return wrapIf(w, p.wraps(shapeComposite), func() error {
		if err := w.Write(n.Expr, ParensSubFragment); err != nil {
			return err
		}
		if n.Negate {
			w.WriteString(" IS NOT NULL")
		} else {
			w.WriteString(" IS NULL")
		}
		return nil
	})
}

func (n IsNull) shape() shape { return shapeComposite }
func (n IsNull) precedence() int { return precComparison }
func (n IsNull) String() string { return render(n) }

// Between is "x BETWEEN lo AND hi".
type Between struct {
	Expr, Low, High Fragment
	Negate          bool
}

// InRange builds x BETWEEN lo AND hi.
func InRange(x, lo, hi any) Between {
	return Between{Expr: ValueOf(x), Low: ValueOf(lo), High: ValueOf(hi)}
}

func (b Between) Compile(w *Writer, p Parens) error {
	return wrapIf(w, p.wraps(shapeComposite), func() error {
		if err := w.Write(b.Expr, ParensSubFragment); err != nil {
			return err
		}
		if b.Negate {
			w.WriteString(" NOT")
		}
		w.WriteString(" BETWEEN ")
		if err := w.Write(b.Low, ParensSubFragment); err != nil {
			return err
		}
		w.WriteString(" AND ")
		return w.Write(b.High, ParensSubFragment)
	})
}

func (b Between) shape() shape { return shapeComposite }
func (b Between) precedence() int { return precComparison }
func (b Between) String() string { return render(b) }

// Case is a searched CASE (no input) or a simple CASE input WHEN ...
// expression. It is immutable; When and Else return copies.
type Case struct {
	input Fragment
	whens []caseWhen
	els   Fragment
}

type caseWhen struct {
	cond, result Fragment
}

// NewCase starts a searched CASE.
func NewCase() Case { return Case{} }

// CaseOf starts a simple CASE over input.
func CaseOf(input any) Case { return Case{input: ValueOf(input)} }

// When appends a branch.
func (c Case) When(cond, result any) Case {
	whens := make([]caseWhen, len(c.whens), len(c.whens)+1)
	copy(whens, c.whens)
	c.whens = append(whens, caseWhen{cond: ValueOf(cond), result: ValueOf(result)})
	return c
}

// Else sets the fallback branch.
func (c Case) Else(result any) Case {
	c.els = ValueOf(result)
	return c
}

func (c Case) Compile(w *Writer, _ Parens) error {
	if len(c.whens) == 0 {
		return sqlerr.EmptyList("CASE")
	}
	w.WriteString("CASE")
	if c.input != nil {
		w.WriteString(" ")
		if err := w.Write(c.input, ParensSubFragment); err != nil {
			return err
		}
	}
	for _, br := range c.whens {
		w.WriteString(" WHEN ")
		if err := w.Write(br.cond, ParensNever); err != nil {
			return err
		}
		w.WriteString(" THEN ")
		if err := w.Write(br.result, ParensSubQuery); err != nil {
			return err
		}
	}
	if c.els != nil {
		w.WriteString(" ELSE ")
		if err := w.Write(c.els, ParensSubQuery); err != nil {
			return err
		}
	}
	w.WriteString(" END")
	return nil
}

func (c Case) String() string { return render(c) }
