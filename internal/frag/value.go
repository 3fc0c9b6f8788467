package frag

import (
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// Null is the SQL NULL keyword.
type Null struct{}

func (Null) Compile(w *Writer, _ Parens) error {
	w.WriteString("NULL")
	return nil
}

func (n Null) String() string { return render(n) }

// Value is a Go value bound as a parameter. A nil V renders as NULL and
// binds nothing. A non-empty Type wraps the placeholder in CAST(... AS Type).
// An inlined literal is parenthesized under ParensAlways so that a unary
// minus ahead of a negative number does not read as a comment.
type Value struct {
	V    any
	Type string
}

// Typed returns v bound with an explicit SQL type.
func Typed(v any, sqlType string) Value {
	return Value{V: v, Type: sqlType}
}

func (v Value) Compile(w *Writer, p Parens) error {
	inline := w.opts.InlineParameters && !isNil(v.V)
	return wrapIf(w, inline && p.wraps(shapeAtom), func() error {
		if v.Type == "" {
			return w.WriteValue(v.V)
		}
		w.WriteString("CAST(")
		if err := w.WriteValue(v.V); err != nil {
			return err
		}
		w.WriteString(" AS " + v.Type + ")")
		return nil
	})
}

func (v Value) String() string { return render(v) }

// Raw is verbatim SQL text. Each "?" is replaced by the next argument,
// which is compiled as a fragment or bound as a value; "??" writes a
// literal question mark. Raw text is opaque, so it is parenthesized
// whenever the surrounding policy wraps composites.
type Raw struct {
	SQL  string
	Args []any
}

// Text returns a Raw fragment.
func Text(sql string, args ...any) Raw {
	return Raw{SQL: sql, Args: args}
}

func (r Raw) Compile(w *Writer, p Parens) error {
	return wrapIf(w, p.wraps(shapeComposite), func() error {
		return compileRaw(w, r.SQL, r.Args)
	})
}

func (r Raw) shape() shape { return shapeComposite }
func (r Raw) String() string { return render(r) }

func compileRaw(w *Writer, text string, args []any) error {
	next := 0
	for {
		i := strings.IndexByte(text, '?')
		if i < 0 {
			w.WriteString(text)
			break
		}
		w.WriteString(text[:i])
		if i+1 < len(text) && text[i+1] == '?' {
			if w.escapeMarks {
				w.WriteString("??")
			} else {
				w.WriteString("?")
			}
			text = text[i+2:]
			continue
		}
		if next >= len(args) {
			return sqlerr.Structure("raw sql has more markers than arguments").With("sql", text)
		}
		if err := w.Write(ValueOf(args[next]), ParensSubQuery); err != nil {
			return err
		}
		next++
		text = text[i+1:]
	}
	if next != len(args) {
		return sqlerr.Structure("raw sql has %d markers for %d arguments", next, len(args))
	}
	return nil
}

// RawQuery is verbatim SQL that forms a complete query. It is parenthesized
// when used as a value and written bare at the root.
type RawQuery struct {
	SQL  string
	Args []any
}

func (r RawQuery) Compile(w *Writer, p Parens) error {
	return wrapIf(w, p.wraps(shapeQuery), func() error {
		return compileRaw(w, r.SQL, r.Args)
	})
}

func (r RawQuery) shape() shape { return shapeQuery }
func (r RawQuery) String() string { return render(r) }

// Group wraps Inner in parentheses regardless of the surrounding policy.
type Group struct {
	Inner Fragment
}

// Paren groups v.
func Paren(v any) Group { return Group{Inner: ValueOf(v)} }

func (g Group) Compile(w *Writer, _ Parens) error {
	w.WriteString("(")
	if err := w.Write(g.Inner, ParensNever); err != nil {
		return err
	}
	w.WriteString(")")
	return nil
}

func (g Group) String() string { return render(g) }

// List is a comma-separated sequence, parenthesized when nested.
type List struct {
	Items []Fragment
}

// ListOf lifts each item with ValueOf.
func ListOf(items ...any) List { return List{Items: valuesOf(items)} }

func (l List) Compile(w *Writer, p Parens) error {
	if len(l.Items) == 0 {
		return sqlerr.EmptyList("LIST")
	}
	return wrapIf(w, p.wraps(shapeComposite), func() error {
		return w.WriteList(l.Items, ", ", ParensSubQuery)
	})
}

func (l List) shape() shape { return shapeComposite }
func (l List) String() string { return render(l) }

// Squirrel embeds a squirrel builder. Its "?" markers are rebound through
// the writer so the result follows the dialect's placeholder style.
type Squirrel struct {
	S sq.Sqlizer
}

func (s Squirrel) Compile(w *Writer, p Parens) error {
	text, args, err := s.S.ToSql()
	if err != nil {
		if sqlerr.KindOf(err) != "" {
			// an embedded fragment failed
			return err
		}
		return sqlerr.Invalid("squirrel fragment").Wrap(err)
	}
	return wrapIf(w, p.wraps(s.shape()), func() error {
		return compileRaw(w, text, args)
	})
}

func (s Squirrel) shape() shape {
	switch s.S.(type) {
	case sq.SelectBuilder, *sq.SelectBuilder:
		return shapeQuery
	}
	return shapeComposite
}

func (s Squirrel) String() string { return render(s) }
