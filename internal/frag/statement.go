package frag

import (
	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// Insert is an INSERT statement with VALUES rows or a source query.
type Insert struct {
	with      *With
	into      *Alias
	columns   []Column
	rows      [][]Fragment
	query     Fragment
	returning []Fragment
}

// InsertInto starts an INSERT. Columns are named on the target alias so
// property paths resolve against a typed alias.
func InsertInto(into *Alias, columns ...Column) Insert {
	return Insert{into: into, columns: columns}
}

// With attaches common table expressions.
func (s Insert) With(w With) Insert {
	s.with = &w
	return s
}

// Values appends one row.
func (s Insert) Values(values ...any) Insert {
	s.rows = grow(s.rows, valuesOf(values))
	return s
}

// FromQuery inserts the rows of a query.
func (s Insert) FromQuery(q Fragment) Insert {
	s.query = q
	return s
}

// Returning lists expressions returned by the statement.
func (s Insert) Returning(exprs ...any) Insert {
	s.returning = grow(s.returning, valuesOf(exprs)...)
	return s
}

func (s Insert) Compile(w *Writer, _ Parens) error {
	if s.into == nil {
		return sqlerr.Structure("INSERT has no target")
	}
	if len(s.rows) == 0 && s.query == nil {
		return sqlerr.EmptyList("VALUES")
	}
	if len(s.rows) > 0 && s.query != nil {
		return sqlerr.Structure("INSERT takes VALUES or a query, not both")
	}
	if err := writeWith(w, s.with); err != nil {
		return err
	}
	w.WriteString("INSERT INTO ")
	if err := s.into.bare().compileSource(w); err != nil {
		return err
	}
	if len(s.columns) > 0 {
		w.WriteString(" (")
		for i, c := range s.columns {
			if i > 0 {
				w.WriteString(", ")
			}
			if err := c.compileName(w); err != nil {
				return err
			}
		}
		w.WriteString(")")
	}
	if s.query != nil {
		w.WriteString(" ")
		if err := w.Write(s.query, ParensNever); err != nil {
			return err
		}
		return writeReturning(w, s.returning)
	}
	w.WriteString(" VALUES ")
	for i, row := range s.rows {
		if len(s.columns) > 0 && len(row) != len(s.columns) {
			return sqlerr.Structure("row %d has %d values for %d columns", i, len(row), len(s.columns))
		}
		if len(row) == 0 {
			return sqlerr.EmptyList("VALUES")
		}
		if i > 0 {
			w.WriteString(", ")
		}
		w.WriteString("(")
		if err := w.WriteList(row, ", ", ParensSubQuery); err != nil {
			return err
		}
		w.WriteString(")")
	}
	return writeReturning(w, s.returning)
}

func (s Insert) String() string { return render(s) }

type assignment struct {
	col   Column
	value Fragment
}

// Update is an UPDATE statement.
type Update struct {
	with      *With
	target    *Alias
	sets      []assignment
	from      []*Alias
	where     Fragment
	returning []Fragment
}

// UpdateOf starts an UPDATE of target.
func UpdateOf(target *Alias) Update { return Update{target: target} }

// With attaches common table expressions.
func (s Update) With(w With) Update {
	s.with = &w
	return s
}

// Set appends an assignment.
func (s Update) Set(col Column, value any) Update {
	s.sets = grow(s.sets, assignment{col: col, value: ValueOf(value)})
	return s
}

// From appends extra row sources.
func (s Update) From(sources ...*Alias) Update {
	s.from = grow(s.from, sources...)
	return s
}

// Where adds a condition; repeated calls are combined with AND.
func (s Update) Where(cond any) Update {
	s.where = conjoin(s.where, ValueOf(cond))
	return s
}

// Returning lists expressions returned by the statement.
func (s Update) Returning(exprs ...any) Update {
	s.returning = grow(s.returning, valuesOf(exprs)...)
	return s
}

func (s Update) Compile(w *Writer, _ Parens) error {
	if s.target == nil {
		return sqlerr.Structure("UPDATE has no target")
	}
	if len(s.sets) == 0 {
		return sqlerr.EmptyList("SET")
	}
	if err := writeWith(w, s.with); err != nil {
		return err
	}
	w.WriteString("UPDATE ")
	if err := s.target.compileSource(w); err != nil {
		return err
	}
	w.WriteString(" SET ")
	for i, a := range s.sets {
		if i > 0 {
			w.WriteString(", ")
		}
		if err := a.col.compileName(w); err != nil {
			return err
		}
		w.WriteString(" = ")
		if err := w.Write(a.value, ParensSubQuery); err != nil {
			return err
		}
	}
	if len(s.from) > 0 {
		w.WriteString(" FROM ")
		for i, src := range s.from {
			if i > 0 {
				w.WriteString(", ")
			}
			if err := src.compileSource(w); err != nil {
				return err
			}
		}
	}
	if s.where != nil {
		w.WriteString(" WHERE ")
		if err := w.Write(s.where, ParensNever); err != nil {
			return err
		}
	}
	return writeReturning(w, s.returning)
}

func (s Update) String() string { return render(s) }

// Delete is a DELETE statement.
type Delete struct {
	with      *With
	from      *Alias
	where     Fragment
	returning []Fragment
}

// DeleteFrom starts a DELETE from target.
func DeleteFrom(target *Alias) Delete { return Delete{from: target} }

// With attaches common table expressions.
func (s Delete) With(w With) Delete {
	s.with = &w
	return s
}

// Where adds a condition; repeated calls are combined with AND.
func (s Delete) Where(cond any) Delete {
	s.where = conjoin(s.where, ValueOf(cond))
	return s
}

// Returning lists expressions returned by the statement.
func (s Delete) Returning(exprs ...any) Delete {
	s.returning = grow(s.returning, valuesOf(exprs)...)
	return s
}

func (s Delete) Compile(w *Writer, _ Parens) error {
	if s.from == nil {
		return sqlerr.Structure("DELETE has no target")
	}
	if err := writeWith(w, s.with); err != nil {
		return err
	}
	w.WriteString("DELETE FROM ")
	if err := s.from.compileSource(w); err != nil {
		return err
	}
	if s.where != nil {
		w.WriteString(" WHERE ")
		if err := w.Write(s.where, ParensNever); err != nil {
			return err
		}
	}
	return writeReturning(w, s.returning)
}

func (s Delete) String() string { return render(s) }

func writeWith(w *Writer, wc *With) error {
	if wc == nil {
		return nil
	}
	if err := wc.compile(w); err != nil {
		return err
	}
	w.WriteString(" ")
	return nil
}

func writeReturning(w *Writer, exprs []Fragment) error {
	if len(exprs) == 0 {
		return nil
	}
	if !w.opts.SupportsReturning {
		return sqlerr.Unsupported("RETURNING is not supported").With("dialect", w.opts.Name)
	}
	w.WriteString(" RETURNING ")
	return w.WriteList(exprs, ", ", ParensSubQuery)
}
