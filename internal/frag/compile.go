package frag

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/atlekbai/sqlcraft/internal/dialect"
	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// Result is the output of one compilation: the statement text and the
// parameters referenced by it, in order of appearance.
type Result struct {
	SQL    string
	Params Params
}

// Args returns the parameter values in order.
func (r *Result) Args() []any { return r.Params.Values() }

// NamedArgs returns the parameters as pgx named arguments. The dialect
// prefix is stripped, so "@p0" becomes "p0".
func (r *Result) NamedArgs() pgx.NamedArgs {
	out := make(pgx.NamedArgs, r.Params.Len())
	for _, p := range r.Params.list {
		out[strings.TrimLeft(p.Name, "@:$?")] = p.Value
	}
	return out
}

// String renders "text; [@p0, 1], [@p1, 2]".
func (r *Result) String() string {
	if r.Params.Len() == 0 {
		return r.SQL
	}
	return r.SQL + "; " + r.Params.String()
}

// Compiler compiles fragments against one dialect, function registry and
// catalog. A Compiler is safe for concurrent use; each Compile call gets
// its own Writer.
type Compiler struct {
	opts    dialect.Options
	funcs   *Registry
	catalog Catalog
}

// NewCompiler returns a compiler. A nil registry gets the built-in
// functions; a nil catalog rejects property paths and typed aliases.
func NewCompiler(opts dialect.Options, funcs *Registry, catalog Catalog) *Compiler {
	if funcs == nil {
		funcs = NewRegistry()
	}
	return &Compiler{opts: opts.Clone(), funcs: funcs, catalog: catalog}
}

// Options returns a copy of the compiler's dialect.
func (c *Compiler) Options() dialect.Options { return c.opts.Clone() }

// Registry returns the compiler's function registry.
func (c *Compiler) Registry() *Registry { return c.funcs }

// Compile renders root. On error no text is produced.
func (c *Compiler) Compile(root Fragment) (*Result, error) {
	return c.compile(root, &c.opts)
}

func (c *Compiler) compile(root Fragment, opts *dialect.Options) (*Result, error) {
	if root == nil {
		return nil, sqlerr.Structure("fragment is nil")
	}
	w := newWriter(opts, c.funcs, c.catalog)
	if err := root.Compile(w, ParensNever); err != nil {
		return nil, err
	}
	return &Result{SQL: w.buf.String(), Params: w.params}, nil
}

// Compile renders root with the given dialect, the built-in functions and
// no catalog.
func Compile(root Fragment, opts dialect.Options) (*Result, error) {
	return NewCompiler(opts, nil, nil).Compile(root)
}

// Sqlizer adapts a fragment to squirrel. The fragment is compiled with "?"
// placeholders so squirrel can apply its own placeholder format.
func (c *Compiler) Sqlizer(f Fragment) sq.Sqlizer {
	return sqlizer{c: c, f: f}
}

type sqlizer struct {
	c *Compiler
	f Fragment
}

func (s sqlizer) ToSql() (string, []any, error) {
	opts := s.c.opts.Clone()
	opts.Placeholder = dialect.PlaceholderQuestion
	opts.InlineParameters = false
	w := newWriter(&opts, s.c.funcs, s.c.catalog)
	w.escapeMarks = true
	if err := w.Write(s.f, ParensNever); err != nil {
		return "", nil, err
	}
	return w.buf.String(), w.params.Values(), nil
}

// render is the diagnostic form behind every fragment's String method.
func render(f Fragment) string {
	opts := dialect.Default()
	opts.InlineParameters = true
	w := newWriter(&opts, defaultRegistry, nil)
	w.diagnostic = true
	if err := f.Compile(w, ParensNever); err != nil {
		return fmt.Sprintf("%s<error: %v>", w.buf.String(), err)
	}
	return w.buf.String()
}
