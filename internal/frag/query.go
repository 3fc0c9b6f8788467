package frag

import (
	"github.com/atlekbai/sqlcraft/internal/dialect"
	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// JoinKind tags a join.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
)

func (k JoinKind) String() string {
	switch k {
	case JoinLeft:
		return "LEFT JOIN"
	case JoinRight:
		return "RIGHT JOIN"
	case JoinFull:
		return "FULL JOIN"
	case JoinCross:
		return "CROSS JOIN"
	}
	return "INNER JOIN"
}

// Join is one JOIN clause.
type Join struct {
	Kind   JoinKind
	Target *Alias
	On     Fragment
}

func (j Join) compile(w *Writer) error {
	switch {
	case j.Kind == JoinRight && !w.opts.SupportsRightJoin,
		j.Kind == JoinFull && !w.opts.SupportsFullJoin:
		return sqlerr.Unsupported("%s is not supported", j.Kind).With("dialect", w.opts.Name)
	case j.Target == nil:
		return sqlerr.Structure("join has no target")
	case j.Kind != JoinCross && j.On == nil:
		return sqlerr.Structure("%s needs an ON condition", j.Kind)
	}
	w.WriteString(" " + j.Kind.String() + " ")
	if err := j.Target.compileSource(w); err != nil {
		return err
	}
	if j.Kind == JoinCross {
		return nil
	}
	w.WriteString(" ON ")
	return w.Write(j.On, ParensNever)
}

// Order is one ORDER BY item.
type Order struct {
	Expr Fragment
	Desc bool
}

// Asc orders by x ascending.
func Asc(x any) Order { return Order{Expr: ValueOf(x)} }

// Desc orders by x descending.
func Desc(x any) Order { return Order{Expr: ValueOf(x), Desc: true} }

// Top limits the row count ahead of the select list. Percent and WithTies
// need a dialect that can express them.
type Top struct {
	N        Fragment
	Percent  bool
	WithTies bool
}

// Offset skips and limits rows; either part may be nil.
type Offset struct {
	Skip Fragment
	Take Fragment
}

// Query is a SELECT statement. It is immutable; every builder method
// returns a modified copy.
type Query struct {
	with     *With
	distinct bool
	top      *Top
	columns  []Fragment
	from     []*Alias
	joins    []Join
	where    Fragment
	groupBy  []Fragment
	having   Fragment
	orderBy  []Order
	offset   *Offset
}

// Select starts a query over columns lifted with ValueOf. No columns
// selects *.
func Select(columns ...any) Query {
	return Query{columns: valuesOf(columns)}
}

func grow[T any](s []T, v ...T) []T {
	out := make([]T, len(s), len(s)+len(v))
	copy(out, s)
	return append(out, v...)
}

// With attaches common table expressions.
func (q Query) With(w With) Query {
	q.with = &w
	return q
}

// Distinct selects distinct rows.
func (q Query) Distinct() Query {
	q.distinct = true
	return q
}

// Columns appends select-list items.
func (q Query) Columns(columns ...any) Query {
	q.columns = grow(q.columns, valuesOf(columns)...)
	return q
}

// From appends row sources.
func (q Query) From(sources ...*Alias) Query {
	q.from = grow(q.from, sources...)
	return q
}

// Join appends a join.
func (q Query) Join(kind JoinKind, target *Alias, on any) Query {
	j := Join{Kind: kind, Target: target}
	if on != nil {
		j.On = ValueOf(on)
	}
	q.joins = grow(q.joins, j)
	return q
}

func (q Query) InnerJoin(target *Alias, on any) Query { return q.Join(JoinInner, target, on) }
func (q Query) LeftJoin(target *Alias, on any) Query { return q.Join(JoinLeft, target, on) }
func (q Query) RightJoin(target *Alias, on any) Query { return q.Join(JoinRight, target, on) }
func (q Query) FullJoin(target *Alias, on any) Query { return q.Join(JoinFull, target, on) }
func (q Query) CrossJoin(target *Alias) Query { return q.Join(JoinCross, target, nil) }

// Where adds a condition; repeated calls are combined with AND.
func (q Query) Where(cond any) Query {
	q.where = conjoin(q.where, ValueOf(cond))
	return q
}

// GroupBy appends grouping expressions.
func (q Query) GroupBy(exprs ...any) Query {
	q.groupBy = grow(q.groupBy, valuesOf(exprs)...)
	return q
}

// Having adds a group condition; repeated calls are combined with AND.
func (q Query) Having(cond any) Query {
	q.having = conjoin(q.having, ValueOf(cond))
	return q
}

// OrderBy appends ordering items.
func (q Query) OrderBy(orders ...Order) Query {
	q.orderBy = grow(q.orderBy, orders...)
	return q
}

// Top limits the result ahead of the select list.
func (q Query) Top(t Top) Query {
	q.top = &t
	return q
}

// Limit is Top with a plain row count.
func (q Query) Limit(n any) Query { return q.Top(Top{N: ValueOf(n)}) }

// Offset skips rows and optionally limits the remainder.
func (q Query) Offset(skip, take any) Query {
	o := Offset{}
	if skip != nil {
		o.Skip = ValueOf(skip)
	}
	if take != nil {
		o.Take = ValueOf(take)
	}
	q.offset = &o
	return q
}

func conjoin(prev, next Fragment) Fragment {
	if prev == nil {
		return next
	}
	if op, ok := prev.(Operator); ok && op.kind == OpAnd {
		return op.Add(next)
	}
	return And(prev, next)
}

func (q Query) shape() shape { return shapeQuery }
func (q Query) String() string { return render(q) }

func (q Query) Compile(w *Writer, p Parens) error {
	return wrapIf(w, p.wraps(shapeQuery), func() error { return q.compile(w) })
}

func (q Query) compile(w *Writer) error {
	o := w.opts
	if q.top != nil && q.offset != nil {
		return sqlerr.Structure("TOP cannot be combined with OFFSET")
	}
	if q.with != nil {
		if err := q.with.compile(w); err != nil {
			return err
		}
		w.WriteString(" ")
	}
	w.WriteString("SELECT ")
	if q.distinct {
		w.WriteString("DISTINCT ")
	}
	if q.top != nil && o.Paging == dialect.PagingTop {
		if err := q.writeTop(w); err != nil {
			return err
		}
	}
	if len(q.columns) == 0 {
		w.WriteString("*")
	} else if err := w.WriteList(q.columns, ", ", ParensSubQuery); err != nil {
		return err
	}

	if len(q.from) > 0 {
		w.WriteString(" FROM ")
		for i, src := range q.from {
			if i > 0 {
				w.WriteString(", ")
			}
			if err := src.compileSource(w); err != nil {
				return err
			}
		}
	} else if o.DummyTable != "" {
		w.WriteString(" FROM " + o.DummyTable)
	}
	for _, j := range q.joins {
		if err := j.compile(w); err != nil {
			return err
		}
	}
	if q.where != nil {
		w.WriteString(" WHERE ")
		if err := w.Write(q.where, ParensNever); err != nil {
			return err
		}
	}
	if len(q.groupBy) > 0 {
		w.WriteString(" GROUP BY ")
		if err := w.WriteList(q.groupBy, ", ", ParensSubQuery); err != nil {
			return err
		}
	}
	if q.having != nil {
		w.WriteString(" HAVING ")
		if err := w.Write(q.having, ParensNever); err != nil {
			return err
		}
	}
	if err := writeOrderBy(w, q.orderBy); err != nil {
		return err
	}
	if q.top != nil && o.Paging != dialect.PagingTop {
		return q.writeLimit(w)
	}
	if q.offset != nil {
		return writeOffset(w, *q.offset, len(q.orderBy) > 0)
	}
	return nil
}

func writeOrderBy(w *Writer, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}
	w.WriteString(" ORDER BY ")
	for i, ord := range orders {
		if i > 0 {
			w.WriteString(", ")
		}
		if err := w.Write(ord.Expr, ParensSubQuery); err != nil {
			return err
		}
		if ord.Desc {
			w.WriteString(" DESC")
		}
	}
	return nil
}

func (q Query) writeTop(w *Writer) error {
	w.WriteString("TOP(")
	if err := w.Write(q.top.N, ParensNever); err != nil {
		return err
	}
	w.WriteString(") ")
	if q.top.Percent {
		w.WriteString("PERCENT ")
	}
	if q.top.WithTies {
		if len(q.orderBy) == 0 {
			return sqlerr.Structure("TOP WITH TIES needs ORDER BY")
		}
		w.WriteString("WITH TIES ")
	}
	return nil
}

// writeLimit renders Top on dialects without TOP.
func (q Query) writeLimit(w *Writer) error {
	t := q.top
	if w.opts.Paging == dialect.PagingOffsetFetch {
		w.WriteString(" FETCH FIRST ")
		if err := w.Write(t.N, ParensSubFragment); err != nil {
			return err
		}
		if t.Percent {
			w.WriteString(" PERCENT")
		}
		if t.WithTies {
			if len(q.orderBy) == 0 {
				return sqlerr.Structure("TOP WITH TIES needs ORDER BY")
			}
			w.WriteString(" ROWS WITH TIES")
		} else {
			w.WriteString(" ROWS ONLY")
		}
		return nil
	}
	if t.Percent || t.WithTies {
		return sqlerr.Unsupported("TOP PERCENT and WITH TIES are not supported").With("dialect", w.opts.Name)
	}
	w.WriteString(" LIMIT ")
	return w.Write(t.N, ParensSubFragment)
}

func writeOffset(w *Writer, off Offset, ordered bool) error {
	if off.Skip == nil && off.Take == nil {
		return nil
	}
	if w.opts.Paging == dialect.PagingLimitOffset {
		switch {
		case off.Take != nil:
			w.WriteString(" LIMIT ")
			if err := w.Write(off.Take, ParensSubFragment); err != nil {
				return err
			}
		case w.opts.UnboundedLimit != "":
			w.WriteString(" LIMIT " + w.opts.UnboundedLimit)
		}
		if off.Skip == nil {
			return nil
		}
		w.WriteString(" OFFSET ")
		return w.Write(off.Skip, ParensSubFragment)
	}

	if !ordered && w.opts.OffsetRequiresOrder {
		w.WriteString(" ORDER BY (SELECT NULL)")
	}
	w.WriteString(" OFFSET ")
	if off.Skip == nil {
		w.WriteString("0")
	} else if err := w.Write(off.Skip, ParensSubFragment); err != nil {
		return err
	}
	w.WriteString(" ROWS")
	if off.Take != nil {
		w.WriteString(" FETCH NEXT ")
		if err := w.Write(off.Take, ParensSubFragment); err != nil {
			return err
		}
		w.WriteString(" ROWS ONLY")
	}
	return nil
}

// SubQuery marks a query used as a value. Queries parenthesize themselves
// in value positions already; SubQuery exists for fragments built from
// text or squirrel that should behave the same way.
type SubQuery struct {
	Query Fragment
}

func (s SubQuery) Compile(w *Writer, p Parens) error {
	return wrapIf(w, p.wraps(shapeQuery), func() error {
		return w.Write(s.Query, ParensNever)
	})
}

func (s SubQuery) shape() shape { return shapeQuery }
func (s SubQuery) String() string { return render(s) }
