// Package capture lowers Go expressions, supplied as source text, to SQL
// fragments. Identifiers are either parameters standing for rows of a table
// or catalog object, or bound locals that are evaluated in Go and become
// bound values.
//
//	c := capture.New(catalog, nil)
//	f, err := c.Capture(`p.Salary > min && strings.HasPrefix(p.FirstName, "A")`,
//		capture.Param("p", "Person"), capture.Bind("min", 1000))
package capture

import (
	"reflect"
	"slices"
	"strings"

	"github.com/atlekbai/sqlcraft/internal/frag"
	"github.com/atlekbai/sqlcraft/internal/schema"
	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// Resolver maps member paths of typed parameters to columns.
// *schema.Catalog satisfies it.
type Resolver interface {
	ResolvePath(object, path string) (schema.Resolution, error)
}

// Capturer lowers captured expressions using a catalog and a method registry.
// It is safe for concurrent use.
type Capturer struct {
	catalog Resolver
	methods *Methods
}

// New returns a Capturer. A nil methods registry gets the defaults; a nil
// catalog restricts member access to untyped parameters.
func New(catalog Resolver, methods *Methods) *Capturer {
	if methods == nil {
		methods = NewMethods()
	}
	return &Capturer{catalog: catalog, methods: methods}
}

// Methods returns the method registry used for calls.
func (c *Capturer) Methods() *Methods { return c.methods }

// Capture parses src and lowers it to a fragment.
func (c *Capturer) Capture(src string, decls ...Decl) (frag.Fragment, error) {
	node, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return c.Lower(node, decls...)
}

// Lower lowers an already parsed expression.
func (c *Capturer) Lower(node Node, decls ...Decl) (frag.Fragment, error) {
	s := &scope{params: map[string]*frag.Alias{}, locals: map[string]any{}}
	for _, d := range decls {
		if err := d(s); err != nil {
			return nil, err
		}
	}
	l := &lowerer{Capturer: c, scope: s}
	e, err := l.lower(node)
	if err != nil {
		return nil, err
	}
	return e.f, nil
}

// Decl declares a name visible to a captured expression.
type Decl func(*scope) error

type scope struct {
	params map[string]*frag.Alias
	locals map[string]any
}

func (s *scope) declare(name string) error {
	if name == "" {
		return sqlerr.Config("declared name is empty")
	}
	_, p := s.params[name]
	_, l := s.locals[name]
	if p || l {
		return sqlerr.Config("name %q is declared twice", name)
	}
	return nil
}

func (s *scope) isLocal(name string) bool {
	_, ok := s.locals[name]
	return ok
}

// boundName reports whether a dotted selector chain is bound as a whole,
// e.g. Bind("cfg.MinSalary", 10).
func (s *scope) boundName(n Node) bool {
	name, ok := dottedName(n)
	return ok && strings.Contains(name, ".") && s.isLocal(name)
}

// Param declares name as a row of the catalog object. Member paths on it are
// resolved through the catalog and qualified by name.
func Param(name, object string) Decl {
	return ParamAlias(name, frag.Object(object, name))
}

// ParamTable declares name as a row of an untyped table. Members are used as
// column names verbatim.
func ParamTable(name, table string) Decl {
	return ParamAlias(name, frag.Table(table).As(name))
}

// ParamAlias declares name as a row of alias.
func ParamAlias(name string, alias *frag.Alias) Decl {
	return func(s *scope) error {
		if err := s.declare(name); err != nil {
			return err
		}
		if alias == nil {
			return sqlerr.Config("parameter %q has no alias", name)
		}
		s.params[name] = alias
		return nil
	}
}

// Bind declares a local whose value is captured when the expression is
// lowered. A dotted name binds a whole selector chain.
func Bind(name string, value any) Decl {
	return func(s *scope) error {
		if err := s.declare(name); err != nil {
			return err
		}
		s.locals[name] = value
		return nil
	}
}

// Binds declares every entry of values as a local.
func Binds(values map[string]any) Decl {
	return func(s *scope) error {
		for name, v := range values {
			if err := Bind(name, v)(s); err != nil {
				return err
			}
		}
		return nil
	}
}

// expr is a lowered subexpression.
type expr struct {
	f       frag.Fragment
	field   *schema.FieldDef // catalog field of a resolved member
	text    bool
	numeric bool
}

type lowerer struct {
	*Capturer
	*scope
}

var binaryOps = map[TokenKind]frag.OpKind{
	TokAdd:  frag.OpAdd,
	TokSub:  frag.OpSubtract,
	TokMul:  frag.OpMultiply,
	TokQuo:  frag.OpDivide,
	TokRem:  frag.OpModulo,
	TokAnd:  frag.OpBitAnd,
	TokOr:   frag.OpBitOr,
	TokXor:  frag.OpBitXor,
	TokLAnd: frag.OpAnd,
	TokLOr:  frag.OpOr,
	TokEql:  frag.OpEqual,
	TokNeq:  frag.OpNotEqual,
	TokLss:  frag.OpLess,
	TokLeq:  frag.OpLessEqual,
	TokGtr:  frag.OpGreater,
	TokGeq:  frag.OpGreaterEqual,
}

func (l *lowerer) lower(n Node) (expr, error) {
	if l.closed(n) {
		v, err := l.eval(n)
		if err != nil {
			return expr{}, err
		}
		_, text := v.(string)
		return expr{f: frag.ValueOf(v), text: text, numeric: isNumber(reflect.ValueOf(v))}, nil
	}

	switch n := n.(type) {
	case *Ident:
		alias := l.params[n.Name]
		if alias.ObjectName() == "" {
			return expr{f: alias.All()}, nil
		}
		return expr{f: alias.Expand()}, nil
	case *SelectorExpr, *IndexExpr:
		return l.member(n)
	case *ParenExpr:
		inner, err := l.lower(n.X)
		if err != nil {
			return expr{}, err
		}
		switch inner.f.(type) {
		case frag.Operator, frag.In, frag.IsNull, frag.Between:
			inner.f = frag.Paren(inner.f)
		}
		return inner, nil
	case *UnaryExpr:
		return l.unary(n)
	case *BinaryExpr:
		return l.binary(n)
	case *CallExpr:
		return l.call(n)
	}
	return expr{}, sqlerr.Invalid("unsupported expression %s", n).With("pos", n.Pos())
}

// member resolves a selector/index chain rooted at a parameter.
func (l *lowerer) member(n Node) (expr, error) {
	var segs []string
	cur := n
	for {
		switch x := cur.(type) {
		case *SelectorExpr:
			segs = append(segs, x.Sel)
			cur = x.X
			continue
		case *IndexExpr:
			key, err := l.memberKey(x)
			if err != nil {
				return expr{}, err
			}
			segs = append(segs, key)
			cur = x.X
			continue
		case *Ident:
			alias, ok := l.params[x.Name]
			if !ok {
				return expr{}, sqlerr.Invalid("undefined: %s", n).With("pos", n.Pos())
			}
			slices.Reverse(segs)
			return l.resolve(alias, strings.Join(segs, "."))
		}
		return expr{}, sqlerr.Invalid("unsupported member access %s", n).With("pos", n.Pos())
	}
}

func (l *lowerer) memberKey(x *IndexExpr) (string, error) {
	if !l.closed(x.Index) {
		return "", sqlerr.Invalid("member index %s must not reference a parameter", x.Index).With("pos", x.Index.Pos())
	}
	v, err := l.eval(x.Index)
	if err != nil {
		return "", err
	}
	key, ok := v.(string)
	if !ok {
		return "", sqlerr.Invalid("member index %s must be a string, got %T", x.Index, v).With("pos", x.Index.Pos())
	}
	return key, nil
}

func (l *lowerer) resolve(alias *frag.Alias, path string) (expr, error) {
	object := alias.ObjectName()
	if object == "" {
		if strings.Contains(path, ".") {
			return expr{}, sqlerr.Config("nested member path on untyped parameter %q", alias.Name()).With("path", path)
		}
		return expr{f: alias.Col(path)}, nil
	}
	if l.catalog == nil {
		return expr{}, sqlerr.Config("no catalog configured").With("path", path).With("type", object)
	}
	res, err := l.catalog.ResolvePath(object, path)
	if err != nil {
		return expr{}, err
	}
	if res.IsComposite() {
		items := make([]any, len(res.Columns))
		for i, col := range res.Columns {
			items[i] = alias.Col(col)
		}
		return expr{f: frag.ListOf(items...), field: res.Field}, nil
	}
	return expr{
		f:       alias.Col(res.Column),
		field:   res.Field,
		text:    res.Field != nil && res.Field.IsText(),
		numeric: res.Field != nil && res.Field.IsNumeric(),
	}, nil
}

func (l *lowerer) unary(n *UnaryExpr) (expr, error) {
	x, err := l.lower(n.X)
	if err != nil {
		return expr{}, err
	}
	switch n.Op {
	case TokAdd:
		return x, nil
	case TokSub:
		return expr{f: frag.Neg(x.f)}, nil
	case TokNot:
		return expr{f: frag.Not(x.f)}, nil
	case TokXor:
		return expr{f: frag.Op(frag.OpBitNot, x.f)}, nil
	}
	return expr{}, sqlerr.Invalid("unary operator %s is not supported", n.Op).With("pos", n.Pos())
}

func (l *lowerer) binary(n *BinaryExpr) (expr, error) {
	if n.Op == TokEql || n.Op == TokNeq {
		if other, ok := l.nilComparison(n); ok {
			x, err := l.lower(other)
			if err != nil {
				return expr{}, err
			}
			if n.Op == TokEql {
				return expr{f: frag.NullCheck(x.f)}, nil
			}
			return expr{f: frag.NotNullCheck(x.f)}, nil
		}
	}

	kind, ok := binaryOps[n.Op]
	if !ok {
		return expr{}, sqlerr.Invalid("operator %s is not supported", n.Op).With("pos", n.OpPos)
	}

	operands := flatten(n)
	fs := make([]any, len(operands))
	text, numeric := false, false
	for i, o := range operands {
		e, err := l.lower(o)
		if err != nil {
			return expr{}, err
		}
		fs[i] = e.f
		text = text || e.text
		numeric = numeric || e.numeric
	}
	arithmetic := kind.IsArithmetic()
	if arithmetic && text && numeric {
		return expr{}, sqlerr.Invalid("operator %s on mismatched text and numeric operands", n.Op).With("pos", n.OpPos)
	}
	if kind == frag.OpAdd && text {
		return expr{f: frag.Concat(fs...), text: true}, nil
	}
	return expr{f: frag.Op(kind, fs...), numeric: arithmetic && numeric}, nil
}

// flatten collects the operands of a left-associated run of the same
// operator. A ParenExpr operand ends the run.
func flatten(n *BinaryExpr) []Node {
	if x, ok := n.X.(*BinaryExpr); ok && x.Op == n.Op && !n.Op.IsComparison() {
		return append(flatten(x), n.Y)
	}
	return []Node{n.X, n.Y}
}

// nilComparison returns the operand compared against a literal nil.
func (l *lowerer) nilComparison(n *BinaryExpr) (Node, bool) {
	isNil := func(x Node) bool {
		id, ok := x.(*Ident)
		if !ok || id.Name != "nil" || l.isLocal("nil") {
			return false
		}
		_, param := l.params["nil"]
		return !param
	}
	switch {
	case isNil(n.Y) && !isNil(n.X):
		return n.X, true
	case isNil(n.X) && !isNil(n.Y):
		return n.Y, true
	}
	return nil, false
}

func (l *lowerer) call(n *CallExpr) (expr, error) {
	inv := &Invocation{Args: n.Args, call: n, l: l}
	switch fun := n.Fun.(type) {
	case *Ident:
		inv.Key = MethodKey{Name: fun.Name}
	case *SelectorExpr:
		if id, ok := fun.X.(*Ident); ok && !l.isLocal(id.Name) {
			if _, param := l.params[id.Name]; !param {
				inv.Key = MethodKey{Type: id.Name, Name: fun.Sel}
				break
			}
		}
		recv, err := l.receiver(fun.X)
		if err != nil {
			return expr{}, err
		}
		inv.Key = MethodKey{Type: recv.typ, Name: fun.Sel}
		inv.Recv = recv.f
		inv.Field = recv.field
	default:
		return expr{}, sqlerr.Invalid("unsupported call %s", n).With("pos", n.Pos())
	}

	m, ok := l.methods.Lookup(inv.Key)
	if !ok {
		return expr{}, sqlerr.Invalid("unsupported call %s", inv.Key).With("expr", n.String()).With("pos", n.Pos())
	}
	f, err := m(inv)
	if err != nil {
		return expr{}, err
	}
	return expr{f: f, text: isTextFunction(f)}, nil
}

type receiver struct {
	expr
	typ string
}

// receiver lowers the receiver of a method call. Column receivers are typed
// by their catalog field type, Go values by their dynamic type.
func (l *lowerer) receiver(x Node) (receiver, error) {
	if l.closed(x) {
		v, err := l.eval(x)
		if err != nil {
			return receiver{}, err
		}
		return receiver{expr: expr{f: frag.ValueOf(v)}, typ: typeName(v)}, nil
	}
	e, err := l.lower(x)
	if err != nil {
		return receiver{}, err
	}
	r := receiver{expr: e}
	if e.field != nil {
		r.typ = string(e.field.Type)
	}
	return r, nil
}

var textFunctions = map[string]bool{
	"CONCAT": true, "UPPER": true, "LOWER": true, "TRIM": true, "REPLACE": true, "SUBSTRING": true,
}

func isTextFunction(f frag.Fragment) bool {
	fn, ok := f.(frag.Function)
	return ok && textFunctions[strings.ToUpper(fn.Name())]
}
