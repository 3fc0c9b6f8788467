// Package frag is the SQL fragment model: immutable nodes that compile
// themselves into a Writer, which accumulates the statement text and the
// ordered parameter table.
package frag

import (
	"fmt"
	"reflect"
)

// Fragment is a node of a SQL statement.
type Fragment interface {
	// Compile writes the fragment into w. p is the parenthesization policy
	// chosen by the enclosing fragment.
	Compile(w *Writer, p Parens) error
	// String renders the fragment with inline literals for diagnostics.
	String() string
}

// Parens is the parenthesization policy a parent passes to a child.
type Parens int

const (
	// ParensNever writes the child bare.
	ParensNever Parens = iota
	// ParensAlways wraps the child unconditionally.
	ParensAlways
	// ParensSubFragment wraps composite children and queries.
	ParensSubFragment
	// ParensSubQuery wraps queries only.
	ParensSubQuery
)

// ParensIf maps a boolean onto ParensAlways/ParensNever.
func ParensIf(wrap bool) Parens {
	if wrap {
		return ParensAlways
	}
	return ParensNever
}

func (p Parens) String() string {
	switch p {
	case ParensNever:
		return "never"
	case ParensAlways:
		return "always"
	case ParensSubFragment:
		return "subfragment"
	case ParensSubQuery:
		return "subquery"
	}
	return fmt.Sprintf("Parens(%d)", int(p))
}

type shape int

const (
	shapeAtom shape = iota
	shapeComposite
	shapeQuery
)

func (p Parens) wraps(s shape) bool {
	switch p {
	case ParensAlways:
		return true
	case ParensSubFragment:
		return s != shapeAtom
	case ParensSubQuery:
		return s == shapeQuery
	}
	return false
}

type shaper interface {
	shape() shape
}

func shapeOf(f Fragment) shape {
	if s, ok := f.(shaper); ok {
		return s.shape()
	}
	return shapeAtom
}

// ValueOf lifts a Go value into a fragment: fragments pass through, nil
// becomes NULL, anything else becomes a bound Value.
func ValueOf(v any) Fragment {
	switch x := v.(type) {
	case Fragment:
		return x
	case nil:
		return Null{}
	}
	if isNil(v) {
		return Null{}
	}
	return Value{V: v}
}

func valuesOf(vs []any) []Fragment {
	out := make([]Fragment, len(vs))
	for i, v := range vs {
		out[i] = ValueOf(v)
	}
	return out
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func wrapIf(w *Writer, wrap bool, fn func() error) error {
	if !wrap {
		return fn()
	}
	w.WriteString("(")
	if err := fn(); err != nil {
		return err
	}
	w.WriteString(")")
	return nil
}
