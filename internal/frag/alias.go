package frag

import (
	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// Alias is a named row source: a table, a catalog object, a derived query
// or a CTE reference. Columns are qualified by the alias name.
type Alias struct {
	name   string
	schema string
	table  string
	object string
	source Fragment
}

// Table returns an alias for a physical table. The alias name is the
// table name unless renamed with As.
func Table(table string) *Alias {
	return &Alias{name: table, table: table}
}

// TableIn is Table with an explicit schema.
func TableIn(schemaName, table string) *Alias {
	return &Alias{name: table, schema: schemaName, table: table}
}

// Object returns an alias typed by a catalog object. Its table and
// property paths are resolved through the compiler's catalog.
func Object(object, name string) *Alias {
	return &Alias{name: name, object: object}
}

// Derived returns an alias over a subquery: (query) AS name.
func Derived(query Fragment, name string) *Alias {
	return &Alias{name: name, source: query}
}

// As returns a copy of the alias with another name.
func (a *Alias) As(name string) *Alias {
	c := *a
	c.name = name
	return &c
}

func (a *Alias) bare() *Alias {
	c := *a
	c.name = ""
	return &c
}

// Name returns the alias name.
func (a *Alias) Name() string { return a.name }

// ObjectName returns the catalog object the alias is typed by, if any.
func (a *Alias) ObjectName() string { return a.object }

// Col references a storage column by name.
func (a *Alias) Col(name string) Column { return Column{alias: a, name: name} }

// Prop references a property path resolved through the catalog.
func (a *Alias) Prop(path string) Column { return Column{alias: a, path: path} }

// All is alias.*.
func (a *Alias) All() Column { return Column{alias: a, all: true} }

// Expand lists every column of a typed alias in declaration order.
func (a *Alias) Expand() Fragment { return expansion{alias: a} }

// Compile writes the alias name as a column qualifier.
func (a *Alias) Compile(w *Writer, _ Parens) error {
	if a.name == "" {
		return sqlerr.Structure("alias name is empty")
	}
	w.WriteIdent(a.name)
	return nil
}

func (a *Alias) String() string { return render(a) }

// compileSource writes the alias as a FROM or JOIN item.
func (a *Alias) compileSource(w *Writer) error {
	switch {
	case a.source != nil:
		if a.name == "" {
			return sqlerr.Structure("derived table needs an alias name")
		}
		if err := w.Write(a.source, ParensAlways); err != nil {
			return err
		}
		a.writeAliasName(w)
		return nil
	case a.object != "":
		s, t, err := w.table(a.object)
		if err != nil {
			return err
		}
		w.WriteQualified(s, t)
		if a.name == "" {
			return nil
		}
		if a.name != t {
			a.writeAliasName(w)
		}
		return nil
	}
	if a.table == "" {
		return sqlerr.Structure("alias has no table")
	}
	w.WriteQualified(a.schema, a.table)
	if a.name != "" && a.name != a.table {
		a.writeAliasName(w)
	}
	return nil
}

func (a *Alias) writeAliasName(w *Writer) {
	if w.opts.TableAliasAs {
		w.WriteString(" AS ")
	} else {
		w.WriteString(" ")
	}
	w.WriteIdent(a.name)
}

// Source writes the alias as it appears after FROM, for use in Raw text.
func Source(a *Alias) Fragment { return source{a} }

type source struct{ a *Alias }

func (s source) Compile(w *Writer, _ Parens) error { return s.a.compileSource(w) }
func (s source) String() string { return render(s) }

// Column references one column, optionally qualified by an alias.
type Column struct {
	alias *Alias
	name  string
	path  string
	all   bool
}

// Col references an unqualified column.
func Col(name string) Column { return Column{name: name} }

// Star is an unqualified *.
func Star() Column { return Column{all: true} }

func (c Column) Compile(w *Writer, _ Parens) error {
	if c.alias != nil {
		if err := c.alias.Compile(w, ParensNever); err != nil {
			return err
		}
		w.WriteString(".")
	}
	return c.compileName(w)
}

func (c Column) compileName(w *Writer) error {
	switch {
	case c.all:
		w.WriteString("*")
		return nil
	case c.path != "":
		if c.alias == nil || c.alias.object == "" {
			return sqlerr.Config("property path on an untyped alias").With("path", c.path)
		}
		col, err := w.resolve(c.alias.object, c.path)
		if err != nil {
			return err
		}
		w.WriteIdent(col)
		return nil
	case c.name == "":
		return sqlerr.Structure("column name is empty")
	}
	w.WriteIdent(c.name)
	return nil
}

func (c Column) String() string { return render(c) }

type expansion struct{ alias *Alias }

func (e expansion) Compile(w *Writer, p Parens) error {
	if e.alias.object == "" {
		return sqlerr.Config("cannot expand the columns of an untyped alias").With("alias", e.alias.name)
	}
	cols, err := w.columns(e.alias.object)
	if err != nil {
		return err
	}
	items := make([]Fragment, len(cols))
	for i, c := range cols {
		items[i] = e.alias.Col(c)
	}
	return List{Items: items}.Compile(w, p)
}

func (e expansion) shape() shape { return shapeComposite }
func (e expansion) String() string { return render(e) }
