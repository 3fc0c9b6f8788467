package frag

import (
	"strconv"
	"strings"

	"github.com/atlekbai/sqlcraft/internal/dialect"
	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// Function is a function application. It is immutable; Add and Before
// return modified copies.
type Function struct {
	name   string
	before Fragment
	args   []Fragment
}

// Func applies name to args lifted with ValueOf.
func Func(name string, args ...any) Function {
	return Function{name: name, args: valuesOf(args)}
}

// Add returns a copy of f with arg appended.
func (f Function) Add(arg any) Function {
	args := make([]Fragment, len(f.args), len(f.args)+1)
	copy(args, f.args)
	f.args = append(args, ValueOf(arg))
	return f
}

// Before returns a copy of f with a prefix written ahead of the arguments,
// as in COUNT(DISTINCT x).
func (f Function) Before(prefix any) Function {
	f.before = nil
	if prefix != nil {
		f.before = ValueOf(prefix)
	}
	return f
}

// Name returns the logical function name.
func (f Function) Name() string { return f.name }

// Args returns a copy of the argument list.
func (f Function) Args() []Fragment {
	out := make([]Fragment, len(f.args))
	copy(out, f.args)
	return out
}

func (f Function) Compile(w *Writer, p Parens) error {
	if f.name == "" {
		return sqlerr.Structure("function name is empty")
	}
	def, err := w.funcs.function(f.name, w.opts)
	if err != nil {
		return err
	}
	name := w.opts.FunctionName(f.name)
	if def != nil {
		n := len(f.args)
		if n < def.MinArgs || (def.MaxArgs >= 0 && n > def.MaxArgs) {
			return sqlerr.Structure("function %s takes %s, got %d", def.Name, arityText(def.MinArgs, def.MaxArgs), n).
				With("function", def.Name)
		}
		if def.Translation != "" {
			name = def.Translation
		}
	}
	call := Call{Name: name, Before: f.before, Args: f.args, Parens: p}
	if def != nil && def.Strategy != nil {
		return def.Strategy(w, call)
	}
	return WriteCall(w, call)
}

func (f Function) String() string { return render(f) }

// WriteCall renders call as NAME([before ]arg, arg, ...). Strategies use it
// for the default shape.
func WriteCall(w *Writer, call Call) error {
	w.WriteString(call.Name + "(")
	if call.Before != nil {
		if err := w.Write(call.Before, ParensNever); err != nil {
			return err
		}
		if len(call.Args) > 0 {
			w.WriteString(" ")
		}
	}
	if err := w.WriteList(call.Args, ", ", ParensSubFragment); err != nil {
		return err
	}
	w.WriteString(")")
	return nil
}

func arityText(lo, hi int) string {
	switch {
	case hi < 0:
		return "at least " + plural(lo, "argument")
	case lo == hi:
		return "exactly " + plural(lo, "argument")
	}
	return "between " + strconv.Itoa(lo) + " and " + strconv.Itoa(hi) + " arguments"
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}

// Count is COUNT(x), or COUNT(*) without an argument.
func Count(args ...any) Function { return Func("COUNT", args...) }

// CountDistinct is COUNT(DISTINCT x).
func CountDistinct(x any) Function { return Func("COUNT", x).Before(Text("DISTINCT")) }

func Sum(x any) Function { return Func("SUM", x) }
func Avg(x any) Function { return Func("AVG", x) }
func Min(x any) Function { return Func("MIN", x) }
func Max(x any) Function { return Func("MAX", x) }
func Coalesce(args ...any) Function { return Func("COALESCE", args...) }
func Concat(args ...any) Function { return Func("CONCAT", args...) }
func Lower(x any) Function { return Func("LOWER", x) }
func Upper(x any) Function { return Func("UPPER", x) }
func Length(x any) Function { return Func("LENGTH", x) }
func CurrentTimestamp() Function { return Func("CURRENT_TIMESTAMP") }

// Cast is CAST(x AS sqlType).
func Cast(x any, sqlType string) Function { return Func("CAST", x, Text(sqlType)) }

// Extract is EXTRACT(part FROM x), part being a date field such as YEAR.
func Extract(part string, x any) Function { return Func("EXTRACT", Text(part), x) }

func registerBuiltins(r *Registry) {
	fixed := func(name string, lo, hi int) {
		r.Register(name, WithArity(lo, hi))
	}
	fixed("SUM", 1, 1)
	fixed("AVG", 1, 1)
	fixed("MIN", 1, 1)
	fixed("MAX", 1, 1)
	fixed("COALESCE", 2, -1)
	fixed("NULLIF", 2, 2)
	fixed("LOWER", 1, 1)
	fixed("UPPER", 1, 1)
	fixed("LENGTH", 1, 1)
	fixed("TRIM", 1, 1)
	fixed("ABS", 1, 1)
	fixed("FLOOR", 1, 1)
	fixed("CEILING", 1, 1)
	fixed("ROUND", 1, 2)
	fixed("SUBSTRING", 2, 3)
	fixed("REPLACE", 3, 3)

	r.Register("COUNT", WithArity(0, 1), WithStrategy(countStrategy))
	r.Register("CAST", WithArity(2, 2), WithStrategy(castStrategy))
	r.Register("EXTRACT", WithArity(2, 2), WithStrategy(extractStrategy))
	r.Register("CONCAT", WithArity(2, -1), WithStrategy(concatStrategy))
	r.Register("CURRENT_TIMESTAMP", WithArity(0, 0), WithStrategy(keywordStrategy))

	for k := range opTable {
		r.RegisterOperator(OpKind(k), "", nil)
	}
}

func countStrategy(w *Writer, call Call) error {
	if len(call.Args) == 0 && call.Before == nil {
		w.WriteString(call.Name + "(*)")
		return nil
	}
	return WriteCall(w, call)
}

func castStrategy(w *Writer, call Call) error {
	typ, ok := call.Args[1].(Raw)
	if !ok {
		return sqlerr.Structure("CAST target type must be raw SQL, got %T", call.Args[1])
	}
	w.WriteString("CAST(")
	if err := w.Write(call.Args[0], ParensNever); err != nil {
		return err
	}
	w.WriteString(" AS ")
	if err := typ.Compile(w, ParensNever); err != nil {
		return err
	}
	w.WriteString(")")
	return nil
}

func extractStrategy(w *Writer, call Call) error {
	part, ok := call.Args[0].(Raw)
	if !ok {
		return sqlerr.Structure("EXTRACT field must be raw SQL, got %T", call.Args[0])
	}
	w.WriteString(call.Name + "(")
	if err := part.Compile(w, ParensNever); err != nil {
		return err
	}
	w.WriteString(" FROM ")
	if err := w.Write(call.Args[1], ParensNever); err != nil {
		return err
	}
	w.WriteString(")")
	return nil
}

func concatStrategy(w *Writer, call Call) error {
	var sep string
	switch w.opts.Concat {
	case dialect.ConcatPipes:
		sep = " || "
	case dialect.ConcatPlus:
		sep = " + "
	default:
		return WriteCall(w, call)
	}
	w.WriteString("(")
	if err := w.WriteList(call.Args, sep, ParensSubFragment); err != nil {
		return err
	}
	w.WriteString(")")
	return nil
}

func keywordStrategy(w *Writer, call Call) error {
	w.WriteString(strings.ToUpper(call.Name))
	return nil
}
