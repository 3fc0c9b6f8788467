package capture

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

var (
	intType     = reflect.TypeFor[int]()
	int64Type   = reflect.TypeFor[int64]()
	float64Type = reflect.TypeFor[float64]()
	errorType   = reflect.TypeFor[error]()
)

// conversions are the predeclared type names usable as conversion calls.
var conversions = map[string]reflect.Type{
	"bool":    reflect.TypeFor[bool](),
	"string":  reflect.TypeFor[string](),
	"int":     intType,
	"int8":    reflect.TypeFor[int8](),
	"int16":   reflect.TypeFor[int16](),
	"int32":   reflect.TypeFor[int32](),
	"int64":   int64Type,
	"uint":    reflect.TypeFor[uint](),
	"uint8":   reflect.TypeFor[uint8](),
	"uint16":  reflect.TypeFor[uint16](),
	"uint32":  reflect.TypeFor[uint32](),
	"uint64":  reflect.TypeFor[uint64](),
	"float32": reflect.TypeFor[float32](),
	"float64": float64Type,
	"byte":    reflect.TypeFor[byte](),
	"rune":    reflect.TypeFor[rune](),
}

func isBuiltin(name string) bool {
	_, conv := conversions[name]
	return conv || name == "len"
}

// closed reports whether n can be evaluated in Go: it references no
// parameter and calls nothing that must be lowered to SQL.
func (s *scope) closed(n Node) bool {
	switch n := n.(type) {
	case *BasicLit:
		return true
	case *Ident:
		_, param := s.params[n.Name]
		return !param
	case *SelectorExpr:
		if s.boundName(n) {
			return true
		}
		if id, ok := n.X.(*Ident); ok && !s.isLocal(id.Name) {
			return false
		}
		return s.closed(n.X)
	case *IndexExpr:
		return s.closed(n.X) && s.closed(n.Index)
	case *ParenExpr:
		return s.closed(n.X)
	case *UnaryExpr:
		return s.closed(n.X)
	case *BinaryExpr:
		return s.closed(n.X) && s.closed(n.Y)
	case *CallExpr:
		for _, a := range n.Args {
			if !s.closed(a) {
				return false
			}
		}
		switch fun := n.Fun.(type) {
		case *Ident:
			return s.isLocal(fun.Name) || isBuiltin(fun.Name)
		case *SelectorExpr:
			if s.boundName(fun) {
				return true
			}
			if id, ok := fun.X.(*Ident); ok && !s.isLocal(id.Name) {
				return false
			}
			return s.closed(fun.X)
		}
	}
	return false
}

// eval computes the Go value of a closed expression.
func (s *scope) eval(n Node) (any, error) {
	switch n := n.(type) {
	case *BasicLit:
		return literalValue(n)
	case *Ident:
		return s.ident(n)
	case *ParenExpr:
		return s.eval(n.X)
	case *SelectorExpr:
		if name, ok := dottedName(n); ok {
			if v, bound := s.locals[name]; bound {
				return v, nil
			}
		}
		x, err := s.eval(n.X)
		if err != nil {
			return nil, err
		}
		return field(x, n.Sel, n)
	case *IndexExpr:
		x, err := s.eval(n.X)
		if err != nil {
			return nil, err
		}
		i, err := s.eval(n.Index)
		if err != nil {
			return nil, err
		}
		return index(x, i, n)
	case *UnaryExpr:
		x, err := s.eval(n.X)
		if err != nil {
			return nil, err
		}
		return unaryValue(n.Op, x, n)
	case *BinaryExpr:
		x, err := s.eval(n.X)
		if err != nil {
			return nil, err
		}
		y, err := s.eval(n.Y)
		if err != nil {
			return nil, err
		}
		return binaryValue(n.Op, x, y, n)
	case *CallExpr:
		return s.evalCall(n)
	}
	return nil, sqlerr.Invalid("cannot evaluate %s", n).With("pos", n.Pos())
}

func (s *scope) ident(n *Ident) (any, error) {
	if v, ok := s.locals[n.Name]; ok {
		return v, nil
	}
	switch n.Name {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "nil":
		return nil, nil
	}
	return nil, sqlerr.Invalid("undefined: %s", n.Name).With("pos", n.Pos())
}

func (s *scope) evalCall(n *CallExpr) (any, error) {
	args := make([]any, len(n.Args))
	for i, a := range n.Args {
		v, err := s.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	var fn reflect.Value
	switch fun := n.Fun.(type) {
	case *Ident:
		if v, ok := s.locals[fun.Name]; ok {
			fn = reflect.ValueOf(v)
			break
		}
		if fun.Name == "len" {
			return length(args, n)
		}
		if t, ok := conversions[fun.Name]; ok {
			return convert(args, t, n)
		}
		return nil, sqlerr.Invalid("undefined: %s", fun.Name).With("pos", fun.Pos())
	case *SelectorExpr:
		if name, ok := dottedName(fun); ok {
			if v, bound := s.locals[name]; bound {
				fn = reflect.ValueOf(v)
				break
			}
		}
		recv, err := s.eval(fun.X)
		if err != nil {
			return nil, err
		}
		fn, err = method(recv, fun.Sel, n)
		if err != nil {
			return nil, err
		}
	default:
		return nil, sqlerr.Invalid("cannot call %s", n.Fun).With("pos", n.Pos())
	}
	return callFunc(fn, args, n)
}

func literalValue(n *BasicLit) (any, error) {
	bad := func(err error) error {
		return sqlerr.Invalid("malformed literal %s", n.Value).With("pos", n.Pos()).Wrap(err)
	}
	switch n.Kind {
	case TokInt:
		v, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, bad(err)
		}
		if int64(int(v)) != v {
			return v, nil
		}
		return int(v), nil
	case TokFloat:
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, bad(err)
		}
		return v, nil
	case TokString:
		v, err := strconv.Unquote(n.Value)
		if err != nil {
			return nil, bad(err)
		}
		return v, nil
	case TokChar:
		v, err := strconv.Unquote(n.Value)
		if err != nil {
			return nil, bad(err)
		}
		runes := []rune(v)
		if len(runes) != 1 {
			return nil, bad(errors.New("rune literal must hold one character"))
		}
		return runes[0], nil
	}
	return nil, bad(fmt.Errorf("unknown literal kind %s", n.Kind))
}

func indirect(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v, false
		}
		v = v.Elem()
	}
	return v, true
}

func field(x any, name string, n Node) (any, error) {
	v, ok := indirect(reflect.ValueOf(x))
	if !ok {
		return nil, sqlerr.Invalid("nil dereference in %s", n).With("pos", n.Pos())
	}
	switch v.Kind() {
	case reflect.Struct:
		sf, ok := v.Type().FieldByName(name)
		if !ok || !sf.IsExported() {
			return nil, sqlerr.Invalid("%s has no exported field %s", v.Type(), name).With("pos", n.Pos())
		}
		return v.FieldByIndex(sf.Index).Interface(), nil
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String {
			e := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
			if !e.IsValid() {
				return nil, nil
			}
			return e.Interface(), nil
		}
	}
	return nil, sqlerr.Invalid("%T has no field %s", x, name).With("pos", n.Pos())
}

func index(x, i any, n Node) (any, error) {
	v, ok := indirect(reflect.ValueOf(x))
	if !ok {
		return nil, sqlerr.Invalid("nil dereference in %s", n).With("pos", n.Pos())
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		iv, ok := toInt64(reflect.ValueOf(i))
		if !ok {
			return nil, sqlerr.Invalid("index of %s must be an integer, got %T", n, i).With("pos", n.Pos())
		}
		if iv < 0 || iv >= int64(v.Len()) {
			return nil, sqlerr.Invalid("index %d out of range [0:%d]", iv, v.Len()).With("pos", n.Pos())
		}
		return v.Index(int(iv)).Interface(), nil
	case reflect.Map:
		key := reflect.ValueOf(i)
		if !key.IsValid() || !key.Type().ConvertibleTo(v.Type().Key()) {
			return nil, sqlerr.Invalid("cannot use %T as key of %s", i, v.Type()).With("pos", n.Pos())
		}
		e := v.MapIndex(key.Convert(v.Type().Key()))
		if !e.IsValid() {
			return reflect.Zero(v.Type().Elem()).Interface(), nil
		}
		return e.Interface(), nil
	}
	return nil, sqlerr.Invalid("cannot index %T", x).With("pos", n.Pos())
}

func method(recv any, name string, n Node) (reflect.Value, error) {
	v := reflect.ValueOf(recv)
	if !v.IsValid() {
		return reflect.Value{}, sqlerr.Invalid("nil dereference in %s", n).With("pos", n.Pos())
	}
	if m := v.MethodByName(name); m.IsValid() {
		return m, nil
	}
	if v.Kind() != reflect.Pointer {
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		if m := p.MethodByName(name); m.IsValid() {
			return m, nil
		}
	}
	return reflect.Value{}, sqlerr.Invalid("%T has no method %s", recv, name).With("pos", n.Pos())
}

func callFunc(fn reflect.Value, args []any, n Node) (any, error) {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, sqlerr.Invalid("cannot call non-function %s", n).With("pos", n.Pos())
	}
	t := fn.Type()
	if (!t.IsVariadic() && len(args) != t.NumIn()) || (t.IsVariadic() && len(args) < t.NumIn()-1) {
		return nil, sqlerr.Invalid("%s: wrong number of arguments, want %d got %d", n, t.NumIn(), len(args)).With("pos", n.Pos())
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		pt := t.In(min(i, t.NumIn()-1))
		if t.IsVariadic() && i >= t.NumIn()-1 {
			pt = pt.Elem()
		}
		av, err := assign(a, pt)
		if err != nil {
			return nil, sqlerr.Invalid("%s: argument %d: %v", n, i, err).With("pos", n.Pos())
		}
		in[i] = av
	}

	out := fn.Call(in)
	if len(out) == 0 {
		return nil, sqlerr.Invalid("%s is used as a value but returns nothing", n).With("pos", n.Pos())
	}
	if last := out[len(out)-1]; last.Type().Implements(errorType) && len(out) > 1 {
		if err, _ := last.Interface().(error); err != nil {
			return nil, sqlerr.Invalid("evaluating %s failed", n).With("pos", n.Pos()).Wrap(err)
		}
	}
	return out[0].Interface(), nil
}

func assign(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use nil as %s", t)
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if v.CanConvert(t) {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", a, t)
}

func length(args []any, n Node) (any, error) {
	if len(args) != 1 {
		return nil, sqlerr.Invalid("len takes exactly 1 argument, got %d", len(args)).With("pos", n.Pos())
	}
	v, ok := indirect(reflect.ValueOf(args[0]))
	if ok {
		switch v.Kind() {
		case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
			return v.Len(), nil
		}
	}
	return nil, sqlerr.Invalid("invalid argument for len: %T", args[0]).With("pos", n.Pos())
}

func convert(args []any, t reflect.Type, n Node) (any, error) {
	if len(args) != 1 {
		return nil, sqlerr.Invalid("conversion to %s takes exactly 1 argument, got %d", t, len(args)).With("pos", n.Pos())
	}
	v := reflect.ValueOf(args[0])
	if !v.IsValid() || !v.CanConvert(t) {
		return nil, sqlerr.Invalid("cannot convert %T to %s", args[0], t).With("pos", n.Pos())
	}
	return v.Convert(t).Interface(), nil
}

func isNilValue(x any) bool {
	if x == nil {
		return true
	}
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func unaryValue(op TokenKind, x any, n Node) (any, error) {
	v := reflect.ValueOf(x)
	switch {
	case op == TokAdd && isNumber(v):
		return x, nil
	case op == TokNot && v.Kind() == reflect.Bool:
		return !v.Bool(), nil
	case op == TokSub && isFloat(v):
		return reflect.ValueOf(-v.Float()).Convert(v.Type()).Interface(), nil
	case op == TokSub && isUnsigned(v):
		return reflect.ValueOf(-v.Uint()).Convert(v.Type()).Interface(), nil
	case op == TokXor && isUnsigned(v):
		return reflect.ValueOf(^v.Uint()).Convert(v.Type()).Interface(), nil
	case op == TokSub && isNumber(v):
		return reflect.ValueOf(-v.Int()).Convert(v.Type()).Interface(), nil
	case op == TokXor && isNumber(v) && !isFloat(v):
		return reflect.ValueOf(^v.Int()).Convert(v.Type()).Interface(), nil
	}
	return nil, sqlerr.Invalid("operator %s not defined on %T", op, x).With("pos", n.Pos())
}

func binaryValue(op TokenKind, x, y any, n Node) (any, error) {
	undefined := func() error {
		return sqlerr.Invalid("operator %s not defined on %T and %T", op, x, y).With("pos", n.Pos())
	}

	if op == TokLAnd || op == TokLOr {
		a, ok1 := x.(bool)
		b, ok2 := y.(bool)
		if !ok1 || !ok2 {
			return nil, undefined()
		}
		if op == TokLAnd {
			return a && b, nil
		}
		return a || b, nil
	}

	if x == nil || y == nil {
		switch op {
		case TokEql:
			return isNilValue(x) && isNilValue(y), nil
		case TokNeq:
			return !(isNilValue(x) && isNilValue(y)), nil
		}
		return nil, undefined()
	}

	xv, yv := reflect.ValueOf(x), reflect.ValueOf(y)
	switch {
	case xv.Kind() == reflect.String && yv.Kind() == reflect.String:
		a, b := xv.String(), yv.String()
		if op == TokAdd {
			return reflect.ValueOf(a + b).Convert(commonType(xv.Type(), yv.Type())).Interface(), nil
		}
		if op.IsComparison() {
			return compare(op, strings.Compare(a, b)), nil
		}
	case isNumber(xv) && isNumber(yv):
		return arith(op, xv, yv, undefined)
	case op == TokEql || op == TokNeq:
		if xv.Type() == yv.Type() && xv.Type().Comparable() {
			eq := xv.Equal(yv)
			if op == TokNeq {
				return !eq, nil
			}
			return eq, nil
		}
	}
	return nil, undefined()
}

func arith(op TokenKind, xv, yv reflect.Value, undefined func() error) (any, error) {
	t := commonType(xv.Type(), yv.Type())

	if isFloat(xv) || isFloat(yv) {
		a, b := toFloat64(xv), toFloat64(yv)
		if op.IsComparison() {
			switch {
			case a < b:
				return compare(op, -1), nil
			case a > b:
				return compare(op, 1), nil
			}
			return compare(op, 0), nil
		}
		var r float64
		switch op {
		case TokAdd:
			r = a + b
		case TokSub:
			r = a - b
		case TokMul:
			r = a * b
		case TokQuo:
			r = a / b
		default:
			return nil, undefined()
		}
		return reflect.ValueOf(r).Convert(t).Interface(), nil
	}

	if op.IsComparison() {
		return compare(op, compareIntegers(xv, yv)), nil
	}
	if op == TokShl || op == TokShr {
		t = xv.Type()
	}
	if isUnsignedType(t) {
		a, ok1 := toUint64(xv)
		b, ok2 := toUint64(yv)
		if !ok1 || !ok2 {
			return nil, sqlerr.Invalid("negative operand overflows %s", t)
		}
		r, err := intOp(op, a, b, undefined)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(r).Convert(t).Interface(), nil
	}
	a, ok1 := toInt64(xv)
	b, ok2 := toInt64(yv)
	if !ok1 || !ok2 {
		return nil, sqlerr.Invalid("operand overflows %s", t)
	}
	r, err := intOp(op, a, b, undefined)
	if err != nil {
		return nil, err
	}
	return reflect.ValueOf(r).Convert(t).Interface(), nil
}

// intOp applies a non-comparison integer operator with Go's wrapping
// semantics for T.
func intOp[T int64 | uint64](op TokenKind, a, b T, undefined func() error) (T, error) {
	switch op {
	case TokAdd:
		return a + b, nil
	case TokSub:
		return a - b, nil
	case TokMul:
		return a * b, nil
	case TokQuo, TokRem:
		if b == 0 {
			return 0, sqlerr.Invalid("integer division by zero")
		}
		if op == TokQuo {
			return a / b, nil
		}
		return a % b, nil
	case TokAnd:
		return a & b, nil
	case TokOr:
		return a | b, nil
	case TokXor:
		return a ^ b, nil
	case TokAndNot:
		return a &^ b, nil
	case TokShl, TokShr:
		if b < 0 {
			return 0, sqlerr.Invalid("negative shift count %d", b)
		}
		if op == TokShl {
			return a << b, nil
		}
		return a >> b, nil
	}
	return 0, undefined()
}

// compareIntegers orders two integer values of any signedness.
func compareIntegers(xv, yv reflect.Value) int {
	a, aok := toInt64(xv)
	b, bok := toInt64(yv)
	switch {
	case aok && bok:
		return cmp.Compare(a, b)
	case !aok && !bok:
		return cmp.Compare(xv.Uint(), yv.Uint())
	case !aok:
		return 1
	}
	return -1
}

// commonType picks the result type of a binary operation. Literals evaluate
// to int or float64, so those adapt to the other operand's type the way
// untyped constants do.
func commonType(a, b reflect.Type) reflect.Type {
	if a == b {
		return a
	}
	if isDefaultType(a) && !(a == float64Type && !isFloatType(b)) {
		return b
	}
	if isDefaultType(b) && !(b == float64Type && !isFloatType(a)) {
		return a
	}
	if isFloatType(a) || isFloatType(b) {
		return float64Type
	}
	if a.Kind() == reflect.String {
		return reflect.TypeFor[string]()
	}
	return int64Type
}

func isDefaultType(t reflect.Type) bool { return t == intType || t == float64Type }

func compare(op TokenKind, c int) bool {
	switch op {
	case TokEql:
		return c == 0
	case TokNeq:
		return c != 0
	case TokLss:
		return c < 0
	case TokLeq:
		return c <= 0
	case TokGtr:
		return c > 0
	case TokGeq:
		return c >= 0
	}
	return false
}

func isNumber(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isFloat(v reflect.Value) bool { return v.IsValid() && isFloatType(v.Type()) }

func isFloatType(t reflect.Type) bool {
	return t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
}

func isUnsigned(v reflect.Value) bool { return v.IsValid() && isUnsignedType(v.Type()) }

func isUnsignedType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// toInt64 reports false for non-integers and for unsigned values above
// math.MaxInt64.
func toInt64(v reflect.Value) (int64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

// toUint64 reports false for non-integers and for negative values.
func toUint64(v reflect.Value) (uint64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := v.Int()
		if i < 0 {
			return 0, false
		}
		return uint64(i), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), true
	}
	return 0, false
}

func toFloat64(v reflect.Value) float64 {
	switch {
	case isFloat(v):
		return v.Float()
	case isUnsigned(v):
		return float64(v.Uint())
	}
	return float64(v.Int())
}
