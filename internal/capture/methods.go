package capture

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/atlekbai/sqlcraft/internal/frag"
	"github.com/atlekbai/sqlcraft/internal/schema"
	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// MethodKey identifies a callable: Type is the package name for package
// functions, the catalog field type (e.g. "DATETIME") for methods on
// columns, the Go type for methods on bound values, and empty for
// predeclared functions such as len.
type MethodKey struct {
	Type string
	Name string
}

func (k MethodKey) String() string {
	if k.Type == "" {
		return k.Name
	}
	return k.Type + "." + k.Name
}

// Method lowers one call.
type Method func(inv *Invocation) (frag.Fragment, error)

// Invocation is a call being lowered. Arguments are left unlowered so a
// Method can decide how to treat each one.
type Invocation struct {
	Key MethodKey
	// Recv is the lowered receiver of a method call, nil for functions.
	Recv frag.Fragment
	// Field is the catalog field of a column receiver.
	Field *schema.FieldDef
	Args  []Node

	call *CallExpr
	l    *lowerer
}

// Errorf returns an InvalidExpression error naming the call.
func (inv *Invocation) Errorf(format string, args ...any) error {
	return sqlerr.Invalid("%s: %s", inv.Key, fmt.Sprintf(format, args...)).
		With("expr", inv.call.String()).With("pos", inv.call.Pos())
}

// Arity checks the argument count; hi < 0 means no upper bound.
func (inv *Invocation) Arity(lo, hi int) error {
	n := len(inv.Args)
	if n >= lo && (hi < 0 || n <= hi) {
		return nil
	}
	switch {
	case lo == hi:
		return inv.Errorf("takes %d argument(s), got %d", lo, n)
	case hi < 0:
		return inv.Errorf("takes at least %d argument(s), got %d", lo, n)
	}
	return inv.Errorf("takes %d to %d arguments, got %d", lo, hi, n)
}

// Arg lowers argument i.
func (inv *Invocation) Arg(i int) (frag.Fragment, error) {
	return inv.Lower(inv.Args[i])
}

// ArgsFrom lowers the arguments starting at i.
func (inv *Invocation) ArgsFrom(i int) ([]any, error) {
	out := make([]any, 0, len(inv.Args)-i)
	for _, a := range inv.Args[i:] {
		f, err := inv.Lower(a)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Lower lowers any node in the scope of the call.
func (inv *Invocation) Lower(n Node) (frag.Fragment, error) {
	e, err := inv.l.lower(n)
	if err != nil {
		return nil, err
	}
	return e.f, nil
}

// Const evaluates argument i in Go. ok is false when the argument references
// a parameter and so has no Go value.
func (inv *Invocation) Const(i int) (v any, ok bool, err error) {
	if !inv.l.closed(inv.Args[i]) {
		return nil, false, nil
	}
	v, err = inv.l.eval(inv.Args[i])
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// ConstString evaluates argument i, which must be a Go string.
func (inv *Invocation) ConstString(i int) (string, error) {
	v, ok, err := inv.Const(i)
	if err != nil {
		return "", err
	}
	s, isString := v.(string)
	if !ok || !isString {
		return "", inv.Errorf("argument %d must be a constant string", i)
	}
	return s, nil
}

// Methods maps MethodKeys to lowering strategies. Each engine owns one.
type Methods struct {
	mu      sync.RWMutex
	methods map[MethodKey]Method
}

// NewMethods returns a registry with the default lowerings.
func NewMethods() *Methods {
	m := &Methods{methods: make(map[MethodKey]Method)}
	registerDefaults(m)
	return m
}

// Register adds or replaces the lowering for key.
func (m *Methods) Register(key MethodKey, fn Method) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.methods[key] = fn
}

// Unregister removes key.
func (m *Methods) Unregister(key MethodKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.methods, key)
}

// Lookup returns the lowering for key.
func (m *Methods) Lookup(key MethodKey) (Method, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.methods[key]
	return fn, ok
}

// Keys returns every registered key, sorted.
func (m *Methods) Keys() []MethodKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]MethodKey, 0, len(m.methods))
	for k := range m.methods {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b MethodKey) int {
		return cmp.Or(cmp.Compare(a.Type, b.Type), cmp.Compare(a.Name, b.Name))
	})
	return keys
}

// Clone returns an independent copy.
func (m *Methods) Clone() *Methods {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := &Methods{methods: make(map[MethodKey]Method, len(m.methods))}
	for k, fn := range m.methods {
		c.methods[k] = fn
	}
	return c
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}

func registerDefaults(m *Methods) {
	for name := range conversions {
		m.Register(MethodKey{Name: name}, transparent)
	}
	m.Register(MethodKey{Name: "len"}, function("LENGTH", 1, 1))

	m.Register(MethodKey{"strings", "Contains"}, like("%", "%"))
	m.Register(MethodKey{"strings", "HasPrefix"}, like("", "%"))
	m.Register(MethodKey{"strings", "HasSuffix"}, like("%", ""))
	m.Register(MethodKey{"strings", "ToUpper"}, function("UPPER", 1, 1))
	m.Register(MethodKey{"strings", "ToLower"}, function("LOWER", 1, 1))
	m.Register(MethodKey{"strings", "TrimSpace"}, function("TRIM", 1, 1))
	m.Register(MethodKey{"strings", "ReplaceAll"}, function("REPLACE", 3, 3))

	m.Register(MethodKey{"math", "Abs"}, function("ABS", 1, 1))
	m.Register(MethodKey{"math", "Round"}, function("ROUND", 1, 1))
	m.Register(MethodKey{"math", "Floor"}, function("FLOOR", 1, 1))
	m.Register(MethodKey{"math", "Ceil"}, function("CEILING", 1, 1))

	m.Register(MethodKey{"cmp", "Or"}, function("COALESCE", 2, -1))
	m.Register(MethodKey{"time", "Now"}, function("CURRENT_TIMESTAMP", 0, 0))

	for _, t := range []schema.FieldType{schema.FieldDate, schema.FieldDatetime} {
		m.Register(MethodKey{string(t), "Year"}, extract("YEAR"))
		m.Register(MethodKey{string(t), "Month"}, extract("MONTH"))
		m.Register(MethodKey{string(t), "Day"}, extract("DAY"))
	}
	m.Register(MethodKey{string(schema.FieldDatetime), "Hour"}, extract("HOUR"))
	m.Register(MethodKey{string(schema.FieldDatetime), "Minute"}, extract("MINUTE"))

	m.Register(MethodKey{"sql", "Val"}, sqlVal)
	m.Register(MethodKey{"sql", "Col"}, sqlCol)
	m.Register(MethodKey{"sql", "Cast"}, sqlCast)
	m.Register(MethodKey{"sql", "Raw"}, sqlRaw)
	m.Register(MethodKey{"sql", "Count"}, function("COUNT", 0, 1))
	m.Register(MethodKey{"sql", "CountDistinct"}, sqlCountDistinct)
	m.Register(MethodKey{"sql", "Sum"}, function("SUM", 1, 1))
	m.Register(MethodKey{"sql", "Avg"}, function("AVG", 1, 1))
	m.Register(MethodKey{"sql", "Min"}, function("MIN", 1, 1))
	m.Register(MethodKey{"sql", "Max"}, function("MAX", 1, 1))
	m.Register(MethodKey{"sql", "In"}, sqlIn)
	m.Register(MethodKey{"sql", "Like"}, sqlLike)
	m.Register(MethodKey{"sql", "IsNull"}, sqlIsNull(false))
	m.Register(MethodKey{"sql", "IsNotNull"}, sqlIsNull(true))
	m.Register(MethodKey{"sql", "Between"}, sqlBetween)
}

// function lowers a call to the SQL function name with every argument lowered.
func function(name string, lo, hi int) Method {
	return func(inv *Invocation) (frag.Fragment, error) {
		if err := inv.Arity(lo, hi); err != nil {
			return nil, err
		}
		args, err := inv.ArgsFrom(0)
		if err != nil {
			return nil, err
		}
		return frag.Func(name, args...), nil
	}
}

// transparent drops a conversion around its single argument.
func transparent(inv *Invocation) (frag.Fragment, error) {
	if err := inv.Arity(1, 1); err != nil {
		return nil, err
	}
	return inv.Arg(0)
}

// like lowers a substring test to LIKE. A constant needle is wildcarded in Go
// and bound as one parameter; a column needle is wrapped with CONCAT.
func like(prefix, suffix string) Method {
	return func(inv *Invocation) (frag.Fragment, error) {
		if err := inv.Arity(2, 2); err != nil {
			return nil, err
		}
		x, err := inv.Arg(0)
		if err != nil {
			return nil, err
		}
		v, ok, err := inv.Const(1)
		if err != nil {
			return nil, err
		}
		if ok {
			s, isString := v.(string)
			if !isString {
				return nil, inv.Errorf("argument 1 must be a string, got %T", v)
			}
			return frag.Like(x, prefix+s+suffix), nil
		}
		needle, err := inv.Arg(1)
		if err != nil {
			return nil, err
		}
		var parts []any
		if prefix != "" {
			parts = append(parts, prefix)
		}
		parts = append(parts, needle)
		if suffix != "" {
			parts = append(parts, suffix)
		}
		return frag.Like(x, frag.Concat(parts...)), nil
	}
}

func extract(part string) Method {
	return func(inv *Invocation) (frag.Fragment, error) {
		if err := inv.Arity(0, 0); err != nil {
			return nil, err
		}
		return frag.Extract(part, inv.Recv), nil
	}
}

// sqlVal forces its argument to be a bound value.
func sqlVal(inv *Invocation) (frag.Fragment, error) {
	if err := inv.Arity(1, 1); err != nil {
		return nil, err
	}
	v, ok, err := inv.Const(0)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, inv.Errorf("argument references a parameter")
	}
	return frag.Value{V: v}, nil
}

// sqlCol forces a bare, unqualified column name.
func sqlCol(inv *Invocation) (frag.Fragment, error) {
	if err := inv.Arity(1, 1); err != nil {
		return nil, err
	}
	name, err := inv.ConstString(0)
	if err != nil {
		return nil, err
	}
	return frag.Col(name), nil
}

// sqlCast binds a Go value with an explicit SQL type, or casts an expression.
func sqlCast(inv *Invocation) (frag.Fragment, error) {
	if err := inv.Arity(2, 2); err != nil {
		return nil, err
	}
	sqlType, err := inv.ConstString(1)
	if err != nil {
		return nil, err
	}
	v, ok, err := inv.Const(0)
	if err != nil {
		return nil, err
	}
	if ok {
		return frag.Typed(v, sqlType), nil
	}
	x, err := inv.Arg(0)
	if err != nil {
		return nil, err
	}
	return frag.Cast(x, sqlType), nil
}

// sqlRaw embeds SQL text; "?" markers take the remaining arguments.
func sqlRaw(inv *Invocation) (frag.Fragment, error) {
	if err := inv.Arity(1, -1); err != nil {
		return nil, err
	}
	text, err := inv.ConstString(0)
	if err != nil {
		return nil, err
	}
	args, err := inv.ArgsFrom(1)
	if err != nil {
		return nil, err
	}
	return frag.Text(text, args...), nil
}

func sqlCountDistinct(inv *Invocation) (frag.Fragment, error) {
	if err := inv.Arity(1, 1); err != nil {
		return nil, err
	}
	x, err := inv.Arg(0)
	if err != nil {
		return nil, err
	}
	return frag.CountDistinct(x), nil
}

// sqlIn lowers sql.In(x, values...). A single bound slice is expanded and a
// single bound query becomes IN (subquery).
func sqlIn(inv *Invocation) (frag.Fragment, error) {
	if err := inv.Arity(1, -1); err != nil {
		return nil, err
	}
	x, err := inv.Arg(0)
	if err != nil {
		return nil, err
	}
	if len(inv.Args) == 2 {
		v, ok, err := inv.Const(1)
		if err != nil {
			return nil, err
		}
		if ok {
			switch q := v.(type) {
			case frag.Query, frag.SetOp, frag.RawQuery, frag.SubQuery:
				return frag.InQuery(x, q.(frag.Fragment)), nil
			}
			if values, isList := spread(v); isList {
				return frag.InValues(x, values...), nil
			}
		}
	}
	values, err := inv.ArgsFrom(1)
	if err != nil {
		return nil, err
	}
	return frag.InValues(x, values...), nil
}

// spread returns the elements of a slice or array other than []byte.
func spread(v any) ([]any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func sqlLike(inv *Invocation) (frag.Fragment, error) {
	if err := inv.Arity(2, 2); err != nil {
		return nil, err
	}
	args, err := inv.ArgsFrom(0)
	if err != nil {
		return nil, err
	}
	return frag.Like(args[0], args[1]), nil
}

func sqlIsNull(negate bool) Method {
	return func(inv *Invocation) (frag.Fragment, error) {
		if err := inv.Arity(1, 1); err != nil {
			return nil, err
		}
		x, err := inv.Arg(0)
		if err != nil {
			return nil, err
		}
		if negate {
			return frag.NotNullCheck(x), nil
		}
		return frag.NullCheck(x), nil
	}
}

func sqlBetween(inv *Invocation) (frag.Fragment, error) {
	if err := inv.Arity(3, 3); err != nil {
		return nil, err
	}
	args, err := inv.ArgsFrom(0)
	if err != nil {
		return nil, err
	}
	return frag.InRange(args[0], args[1], args[2]), nil
}
