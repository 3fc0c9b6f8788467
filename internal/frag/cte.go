package frag

import (
	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// CTE is one named common table expression.
type CTE struct {
	Name    string
	Columns []string
	Query   Fragment
}

// NewCTE names query for use in a WITH clause.
func NewCTE(name string, query Fragment, columns ...string) CTE {
	return CTE{Name: name, Query: query, Columns: columns}
}

// Ref returns an alias reading from the CTE.
func (c CTE) Ref(alias string) *Alias {
	if alias == "" {
		alias = c.Name
	}
	return &Alias{name: alias, table: c.Name}
}

func (c CTE) compile(w *Writer) error {
	if c.Name == "" {
		return sqlerr.Structure("CTE name is empty")
	}
	if c.Query == nil {
		return sqlerr.Structure("CTE has no query").With("cte", c.Name)
	}
	w.WriteIdent(c.Name)
	if len(c.Columns) > 0 {
		w.WriteString("(")
		for i, col := range c.Columns {
			if i > 0 {
				w.WriteString(", ")
			}
			w.WriteIdent(col)
		}
		w.WriteString(")")
	}
	w.WriteString(" AS ")
	return w.Write(c.Query, ParensAlways)
}

// With is the WITH clause of a statement.
type With struct {
	Recursive bool
	CTEs      []CTE
}

// WithCTE starts a WITH clause.
func WithCTE(ctes ...CTE) With { return With{CTEs: ctes} }

// RecursiveCTE starts a WITH RECURSIVE clause.
func RecursiveCTE(ctes ...CTE) With { return With{Recursive: true, CTEs: ctes} }

func (wc With) compile(w *Writer) error {
	if len(wc.CTEs) == 0 {
		return sqlerr.EmptyList("WITH")
	}
	w.WriteString("WITH ")
	if wc.Recursive && w.opts.RecursiveKeyword {
		w.WriteString("RECURSIVE ")
	}
	for i, c := range wc.CTEs {
		if i > 0 {
			w.WriteString(", ")
		}
		if err := c.compile(w); err != nil {
			return err
		}
	}
	return nil
}

// SetKind is a set operation between queries.
type SetKind int

const (
	SetUnion SetKind = iota
	SetUnionAll
	SetIntersect
	SetExcept
)

func (k SetKind) String() string {
	switch k {
	case SetUnionAll:
		return "UNION ALL"
	case SetIntersect:
		return "INTERSECT"
	case SetExcept:
		return "EXCEPT"
	}
	return "UNION"
}

// SetOp combines queries with UNION, INTERSECT or EXCEPT.
type SetOp struct {
	Kind    SetKind
	Queries []Fragment
	orderBy []Order
}

func Union(queries ...Fragment) SetOp { return SetOp{Kind: SetUnion, Queries: queries} }
func UnionAll(queries ...Fragment) SetOp { return SetOp{Kind: SetUnionAll, Queries: queries} }
func Intersect(queries ...Fragment) SetOp { return SetOp{Kind: SetIntersect, Queries: queries} }
func Except(queries ...Fragment) SetOp { return SetOp{Kind: SetExcept, Queries: queries} }

// OrderBy orders the combined result.
func (s SetOp) OrderBy(orders ...Order) SetOp {
	s.orderBy = grow(s.orderBy, orders...)
	return s
}

func (s SetOp) Compile(w *Writer, p Parens) error {
	if len(s.Queries) == 0 {
		return sqlerr.EmptyList(s.Kind.String())
	}
	return wrapIf(w, p.wraps(shapeQuery), func() error {
		for i, q := range s.Queries {
			if i > 0 {
				w.WriteString(" " + s.Kind.String() + " ")
			}
			if err := w.Write(q, ParensNever); err != nil {
				return err
			}
		}
		return writeOrderBy(w, s.orderBy)
	})
}

func (s SetOp) shape() shape { return shapeQuery }
func (s SetOp) String() string { return render(s) }
