package frag

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/atlekbai/sqlcraft/internal/dialect"
	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// Catalog resolves typed aliases and property paths to storage names.
// *schema.Catalog implements it.
type Catalog interface {
	Resolve(object, path string) (string, error)
	Columns(object string) ([]string, error)
	Table(object string) (schemaName, table string, err error)
}

// Writer is the output target of compilation: it owns the text buffer and
// the parameter table of a single Compile call.
type Writer struct {
	buf     strings.Builder
	params  Params
	opts    *dialect.Options
	funcs   *Registry
	catalog Catalog
	// diagnostic tolerates missing catalog entries and unrenderable values.
	diagnostic bool
	// escapeMarks doubles literal question marks for squirrel.
	escapeMarks bool
}

func newWriter(opts *dialect.Options, funcs *Registry, catalog Catalog) *Writer {
	if funcs == nil {
		funcs = NewRegistry()
	}
	return &Writer{opts: opts, funcs: funcs, catalog: catalog}
}

// Options returns the dialect in effect.
func (w *Writer) Options() *dialect.Options { return w.opts }

// Registry returns the function registry in effect.
func (w *Writer) Registry() *Registry { return w.funcs }

// WriteString appends raw SQL text.
func (w *Writer) WriteString(s string) { w.buf.WriteString(s) }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.buf.Len() }

// Write compiles a child fragment under policy p.
func (w *Writer) Write(f Fragment, p Parens) error {
	if f == nil {
		return sqlerr.Structure("fragment is nil")
	}
	return f.Compile(w, p)
}

// WriteList compiles fs separated by sep.
func (w *Writer) WriteList(fs []Fragment, sep string, p Parens) error {
	for i, f := range fs {
		if i > 0 {
			w.WriteString(sep)
		}
		if err := w.Write(f, p); err != nil {
			return err
		}
	}
	return nil
}

// WriteIdent writes a quoted identifier. "*" is written verbatim.
func (w *Writer) WriteIdent(name string) {
	w.WriteString(w.quote(name))
}

// WriteQualified writes dot-separated quoted identifiers, skipping empty parts.
func (w *Writer) WriteQualified(parts ...string) {
	first := true
	for _, p := range parts {
		if p == "" {
			continue
		}
		if !first {
			w.WriteString(".")
		}
		w.WriteIdent(p)
		first = false
	}
}

func (w *Writer) quote(name string) string {
	if name == "*" {
		return name
	}
	switch w.opts.Quote {
	case dialect.QuoteBracket:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	case dialect.QuoteBacktick:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case dialect.QuoteNone:
		return name
	}
	return pq.QuoteIdentifier(name)
}

// WriteValue binds v as a parameter, or writes it as a literal when the
// dialect inlines parameters. NULL never produces a parameter.
func (w *Writer) WriteValue(v any) error {
	if isNil(v) {
		w.WriteString("NULL")
		return nil
	}
	if w.opts.InlineParameters {
		lit, err := literal(v, w.opts.BackslashEscapes)
		if err != nil {
			if !w.diagnostic {
				return err
			}
			lit = quoteString(fmt.Sprint(v), w.opts.BackslashEscapes)
		}
		w.WriteString(lit)
		return nil
	}
	name, marker := w.nextParam()
	w.params.add(name, v)
	w.WriteString(marker)
	return nil
}

func (w *Writer) nextParam() (name, marker string) {
	n := w.params.Len()
	switch w.opts.Placeholder {
	case dialect.PlaceholderQuestion:
		return "p" + strconv.Itoa(n), "?"
	case dialect.PlaceholderDollar:
		name = "$" + strconv.Itoa(n+1)
		return name, name
	case dialect.PlaceholderColon:
		name = ":" + strconv.Itoa(n+1)
		return name, name
	}
	prefix := w.opts.ParamPrefix
	if prefix == "" {
		prefix = "@"
	}
	name = prefix + "p" + strconv.Itoa(n)
	return name, name
}

func (w *Writer) resolve(object, path string) (string, error) {
	if w.catalog == nil {
		if w.diagnostic {
			return path, nil
		}
		return "", sqlerr.Config("no catalog configured").With("path", path).With("type", object)
	}
	return w.catalog.Resolve(object, path)
}

func (w *Writer) table(object string) (string, string, error) {
	if w.catalog == nil {
		if w.diagnostic {
			return "", object, nil
		}
		return "", "", sqlerr.Config("no catalog configured").With("type", object)
	}
	return w.catalog.Table(object)
}

func (w *Writer) columns(object string) ([]string, error) {
	if w.catalog == nil {
		return nil, sqlerr.Config("no catalog configured").With("type", object)
	}
	return w.catalog.Columns(object)
}
