package capture

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/sqlcraft/internal/dialect"
	"github.com/atlekbai/sqlcraft/internal/frag"
	"github.com/atlekbai/sqlcraft/internal/schema"
	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

type department struct {
	ID   int
	Name string
}

type address struct {
	City string
	Zip  string
}

type person struct {
	ID         int
	FirstName  string
	Salary     float64
	Department department
	Address    address
	Hired      time.Time
	ManagerID  *int
	Notes      string `db:"-"`
}

func testCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	c := schema.NewCatalog()
	_, err := c.RegisterStruct(department{}, "hr", "departments")
	require.NoError(t, err)
	_, err = c.RegisterStruct(person{}, "hr", "people")
	require.NoError(t, err)
	return c
}

// --- Helpers ---

func capture(t *testing.T, src string, decls ...Decl) frag.Fragment {
	t.Helper()
	f, err := New(testCatalog(t), nil).Capture(src, append([]Decl{Param("p", "person")}, decls...)...)
	require.NoError(t, err, src)
	return f
}

func compile(t *testing.T, f frag.Fragment) *frag.Result {
	t.Helper()
	res, err := frag.NewCompiler(dialect.Postgres(), nil, testCatalog(t)).Compile(f)
	require.NoError(t, err)
	return res
}

func expectCaptureError(t *testing.T, src string, kind sqlerr.Kind, wantSubstr ...string) {
	t.Helper()
	f, err := New(testCatalog(t), nil).Capture(src, Param("p", "person"), Bind("min", 10))
	require.Error(t, err, src)
	assert.Nil(t, f)
	assert.ErrorIs(t, err, kind)
	for _, s := range wantSubstr {
		assert.Contains(t, err.Error(), s)
	}
}

// --- Operators ---

func TestCaptureMatchesBuilder(t *testing.T) {
	captured := compile(t, capture(t, "p.Salary + 100 + 200"))

	p := frag.Object("person", "p")
	built := compile(t, frag.Add().Add(p.Col("salary")).Add(100).Add(200))

	assert.Equal(t, `"p"."salary" + @p0 + @p1`, captured.SQL)
	assert.Equal(t, built.SQL, captured.SQL)
	assert.Equal(t, built.Args(), captured.Args())

	op, ok := capture(t, "p.Salary + 100 + 200").(frag.Operator)
	require.True(t, ok)
	assert.Len(t, op.Operands(), 3, "same-operator run is one operator")
}

func TestCaptureGrouping(t *testing.T) {
	tests := []struct {
		name string
		src  string
		sql  string
		args []any
	}{
		{"right group nests", "p.Salary + (p.Salary + 1)", `"p"."salary" + ("p"."salary" + @p0)`, []any{1}},
		{"left group nests", "(p.Salary + 1) + 2", `("p"."salary" + @p0) + @p1`, []any{1, 2}},
		{"closed group folds", "p.Salary + (100 + 200)", `"p"."salary" + @p0`, []any{300}},
		{"precedence", "p.Salary * 2 + 1", `("p"."salary" * @p0) + @p1`, []any{2, 1}},
		{"subtraction run", "p.Salary - 1 - 2", `"p"."salary" - @p0 - @p1`, []any{1, 2}},
		{"logical", "p.Salary > 1 && p.ID != 2 || p.ID == 3",
			`("p"."salary" > @p0 AND "p"."id" <> @p1) OR "p"."id" = @p2`, []any{1, 2, 3}},
		{"not group", "!(p.Salary > 10)", `NOT ("p"."salary" > @p0)`, []any{10}},
		{"negative constant", "p.Salary > -5", `"p"."salary" > @p0`, []any{-5}},
		{"negate column", "-p.Salary < 0", `(-"p"."salary") < @p0`, []any{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compile(t, capture(t, tt.src))
			assert.Equal(t, tt.sql, res.SQL)
			assert.Equal(t, tt.args, res.Args())
		})
	}
}

func TestCaptureStringConcat(t *testing.T) {
	res := compile(t, capture(t, `p.FirstName + " " + p.Address.City`))
	assert.Equal(t, `("p"."first_name" || @p0 || "p"."address_city")`, res.SQL)
	assert.Equal(t, []any{" "}, res.Args())
}

// --- Locals ---

func TestCaptureLocals(t *testing.T) {
	type limits struct{ Min float64 }
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		src   string
		decls []Decl
		sql   string
		args  []any
	}{
		{"bound int", "p.Salary > min", []Decl{Bind("min", 1000)}, `"p"."salary" > @p0`, []any{1000}},
		{"field and arithmetic", "p.Salary > cfg.Min * 2", []Decl{Bind("cfg", limits{Min: 500})}, `"p"."salary" > @p0`, []any{1000.0}},
		{"dotted name", "p.Salary <= limits.Max", []Decl{Bind("limits.Max", 5)}, `"p"."salary" <= @p0`, []any{5}},
		{"index", "p.ID == ids[1]", []Decl{Bind("ids", []int{7, 8})}, `"p"."id" = @p0`, []any{8}},
		{"map", `p.FirstName == names["x"]`, []Decl{Bind("names", map[string]string{"x": "Ann"})}, `"p"."first_name" = @p0`, []any{"Ann"}},
		{"method", "p.Hired > since.AddDate(0, 0, 1)", []Decl{Bind("since", since)}, `"p"."hired" > @p0`, []any{since.AddDate(0, 0, 1)}},
		{"conversion", "float64(p.ID) * 1.5 > 3", nil, `("p"."id" * @p0) > @p1`, []any{1.5, 3}},
		{"bound fragment", "p.Salary > top", []Decl{Bind("top", frag.RawQuery{SQL: "SELECT 1"})}, `"p"."salary" > (SELECT 1)`, []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compile(t, capture(t, tt.src, tt.decls...))
			assert.Equal(t, tt.sql, res.SQL)
			assert.Equal(t, tt.args, res.Args())
		})
	}
}

func TestCaptureUnsignedArithmetic(t *testing.T) {
	decls := []Decl{Bind("big", uint64(math.MaxUint64)), Bind("limit", int64(math.MaxInt64)), Bind("one", int64(1))}
	tests := []struct {
		name string
		src  string
		want any
	}{
		{"subtract", "p.Salary > big - 1", uint64(math.MaxUint64 - 1)},
		{"divide", "p.Salary > big / 2", uint64(math.MaxInt64)},
		{"negate wraps", "p.Salary > -big", uint64(1)},
		{"complement", "p.Salary > ^big", uint64(0)},
		{"greater than max int64", "sql.Val(big > limit)", true},
		{"not less than one", "sql.Val(big < one)", false},
		{"equal to itself", "sql.Val(big == big)", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compile(t, capture(t, tt.src, decls...))
			assert.Equal(t, []any{tt.want}, res.Args())
		})
	}

	_, err := New(testCatalog(t), nil).Capture("p.Salary > big + one", decls...)
	require.ErrorIs(t, err, sqlerr.InvalidExpression)
	assert.Contains(t, err.Error(), "overflows int64")

	_, err = New(testCatalog(t), nil).Capture("p.Salary > big + -1", decls...)
	require.ErrorIs(t, err, sqlerr.InvalidExpression)
	assert.Contains(t, err.Error(), "overflows uint64")
}

func TestCaptureInlineNegation(t *testing.T) {
	opts := dialect.Postgres()
	opts.InlineParameters = true
	c := frag.NewCompiler(opts, nil, testCatalog(t))

	res, err := c.Compile(capture(t, "p.Salary > -sql.Val(v)", Bind("v", -5)))
	require.NoError(t, err)
	assert.Equal(t, `"p"."salary" > (-(-5))`, res.SQL)

	res, err = c.Compile(capture(t, "p.Salary > -v", Bind("v", -5)))
	require.NoError(t, err)
	assert.Equal(t, `"p"."salary" > 5`, res.SQL)
}

func TestCaptureNull(t *testing.T) {
	var missing *int
	tests := []struct {
		name  string
		src   string
		sql   string
		count int
	}{
		{"is null", "p.ManagerID == nil", `"p"."manager_id" IS NULL`, 0},
		{"is not null", "nil != p.ManagerID", `"p"."manager_id" IS NOT NULL`, 0},
		{"bound nil", "p.ManagerID == missing", `"p"."manager_id" = NULL`, 0},
		{"bound value", "p.ManagerID == 5", `"p"."manager_id" = @p0`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compile(t, capture(t, tt.src, Bind("missing", missing)))
			assert.Equal(t, tt.sql, res.SQL)
			assert.Equal(t, tt.count, res.Params.Len())
		})
	}
}

// --- Members ---

func TestCaptureMemberResolution(t *testing.T) {
	c := New(testCatalog(t), nil)
	first, err := c.Capture("p.Department.ID", Param("p", "person"))
	require.NoError(t, err)
	second, err := c.Capture(`p["Department"].ID`, Param("p", "person"))
	require.NoError(t, err)

	assert.Equal(t, `"p"."department_id"`, compile(t, first).SQL)
	assert.Equal(t, compile(t, first).SQL, compile(t, second).SQL, "resolution is idempotent")
}

func TestCaptureCompositeMember(t *testing.T) {
	f := capture(t, "p.Address")
	require.IsType(t, frag.List{}, f)
	assert.Equal(t, `"p"."address_city", "p"."address_zip"`, compile(t, f).SQL)

	res := compile(t, frag.Select(capture(t, "p")).From(frag.Object("person", "p")))
	assert.Equal(t, `SELECT "p"."id", "p"."first_name", "p"."salary", "p"."department_id", "p"."address_city", "p"."address_zip", "p"."hired", "p"."manager_id" FROM "hr"."people" AS "p"`, res.SQL)
}

func TestCaptureUnmappedPath(t *testing.T) {
	expectCaptureError(t, `p.Department.Name == "x"`, sqlerr.Configuration, "path: Department.Name", "type: person")
	expectCaptureError(t, "p.Notes", sqlerr.Configuration, "is ignored", "path: Notes")
	expectCaptureError(t, "p.Missing", sqlerr.Configuration, "not registered")
}

func TestCaptureUntypedParam(t *testing.T) {
	c := New(nil, nil)
	f, err := c.Capture("o.total > 10 && o.status == s", ParamTable("o", "orders"), Bind("s", "open"))
	require.NoError(t, err)
	res, err := frag.Compile(f, dialect.Postgres())
	require.NoError(t, err)
	assert.Equal(t, `"o"."total" > @p0 AND "o"."status" = @p1`, res.SQL)
	assert.Equal(t, []any{10, "open"}, res.Args())

	_, err = c.Capture("o.a.b", ParamTable("o", "orders"))
	require.ErrorIs(t, err, sqlerr.Configuration)

	_, err = c.Capture("p.Salary", Param("p", "person"))
	require.ErrorIs(t, err, sqlerr.Configuration)
	assert.Contains(t, err.Error(), "no catalog")
}

// --- Calls ---

func TestCaptureMethods(t *testing.T) {
	tests := []struct {
		name string
		src  string
		sql  string
		args []any
	}{
		{"contains constant", `strings.Contains(p.FirstName, "an")`, `"p"."first_name" LIKE @p0`, []any{"%an%"}},
		{"prefix column", `strings.HasPrefix(p.FirstName, p.Address.City)`, `"p"."first_name" LIKE ("p"."address_city" || @p0)`, []any{"%"}},
		{"suffix local", `strings.HasSuffix(p.FirstName, s)`, `"p"."first_name" LIKE @p0`, []any{"%x"}},
		{"upper", `strings.ToUpper(p.FirstName) == "ANN"`, `UPPER("p"."first_name") = @p0`, []any{"ANN"}},
		{"upper of local", `p.FirstName == strings.ToUpper(s)`, `"p"."first_name" = UPPER(@p0)`, []any{"x"}},
		{"len", `len(p.FirstName) > 3`, `LENGTH("p"."first_name") > @p0`, []any{3}},
		{"math", `math.Abs(p.Salary) >= 1`, `ABS("p"."salary") >= @p0`, []any{1}},
		{"coalesce", `cmp.Or(p.ManagerID, p.ID)`, `COALESCE("p"."manager_id", "p"."id")`, []any{}},
		{"now", `p.Hired < time.Now()`, `"p"."hired" < CURRENT_TIMESTAMP`, []any{}},
		{"column method", `p.Hired.Year() == 2024`, `EXTRACT(YEAR FROM "p"."hired") = @p0`, []any{2024}},
		{"sql col", `sql.Col("raw_col") > 1`, `"raw_col" > @p0`, []any{1}},
		{"sql cast value", `p.Salary > sql.Cast(min, "NUMERIC")`, `"p"."salary" > CAST(@p0 AS NUMERIC)`, []any{10}},
		{"sql cast column", `sql.Cast(p.ID, "TEXT") == s`, `CAST("p"."id" AS TEXT) = @p0`, []any{"x"}},
		{"sql val", `sql.Val(min)`, `@p0`, []any{10}},
		{"sql in slice", `sql.In(p.ID, ids)`, `"p"."id" IN (@p0, @p1, @p2)`, []any{1, 2, 3}},
		{"sql in args", `sql.In(p.ID, 1, min)`, `"p"."id" IN (@p0, @p1)`, []any{1, 10}},
		{"sql between", `sql.Between(p.Salary, 1, min)`, `"p"."salary" BETWEEN @p0 AND @p1`, []any{1, 10}},
		{"sql count", `sql.Count() > 1`, `COUNT(*) > @p0`, []any{1}},
		{"sql raw", `sql.Raw("? @> ?", p.FirstName, s)`, `"p"."first_name" @> @p0`, []any{"x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := capture(t, tt.src, Bind("s", "x"), Bind("min", 10), Bind("ids", []int{1, 2, 3}))
			res := compile(t, f)
			assert.Equal(t, tt.sql, res.SQL)
			assert.Equal(t, tt.args, res.Args())
		})
	}
}

func TestCaptureCustomMethod(t *testing.T) {
	methods := NewMethods()
	methods.Register(MethodKey{Type: "geo", Name: "Near"}, func(inv *Invocation) (frag.Fragment, error) {
		if err := inv.Arity(2, 2); err != nil {
			return nil, err
		}
		x, err := inv.Arg(0)
		if err != nil {
			return nil, err
		}
		y, err := inv.Arg(1)
		if err != nil {
			return nil, err
		}
		return frag.Func("ST_DWithin", x, y, 100), nil
	})

	c := New(testCatalog(t), methods)
	f, err := c.Capture(`geo.Near(p.Address.City, here)`, Param("p", "person"), Bind("here", "POINT(0 0)"))
	require.NoError(t, err)
	assert.Equal(t, `ST_DWithin("p"."address_city", @p0, @p1)`, compile(t, f).SQL)

	_, err = New(testCatalog(t), nil).Capture(`geo.Near(p.Address.City, 1)`, Param("p", "person"))
	require.ErrorIs(t, err, sqlerr.InvalidExpression)

	_, err = c.Capture(`geo.Near(p.ID)`, Param("p", "person"))
	require.ErrorIs(t, err, sqlerr.InvalidExpression)
	assert.Contains(t, err.Error(), "takes 2 argument(s), got 1")
}

func TestCaptureInvalidExpressions(t *testing.T) {
	expectCaptureError(t, "fmt.Sprint(p.Salary)", sqlerr.InvalidExpression, "unsupported call fmt.Sprint")
	expectCaptureError(t, "p.Salary << 2", sqlerr.InvalidExpression, "operator << is not supported")
	expectCaptureError(t, "p.Salary > missing", sqlerr.InvalidExpression, "undefined: missing")
	expectCaptureError(t, "sql.Val(p.Salary)", sqlerr.InvalidExpression, "references a parameter")
	expectCaptureError(t, "p.FirstName.Foo()", sqlerr.InvalidExpression, "unsupported call TEXT.Foo")
	expectCaptureError(t, "p.Salary > min / 0", sqlerr.InvalidExpression, "division by zero")
	expectCaptureError(t, "p.Salary + p.FirstName", sqlerr.InvalidExpression, "mismatched text and numeric")
	expectCaptureError(t, `p.ID * 2 + "x"`, sqlerr.InvalidExpression, "mismatched text and numeric")
	expectCaptureError(t, "p.Salary >", sqlerr.InvalidExpression, "parse error")
}

func TestCaptureDeclarations(t *testing.T) {
	c := New(testCatalog(t), nil)
	_, err := c.Capture("p.ID", Param("p", "person"), Bind("p", 1))
	require.ErrorIs(t, err, sqlerr.Configuration)
	assert.Contains(t, err.Error(), "declared twice")

	f, err := c.Capture("a + b", Binds(map[string]any{"a": 1, "b": 2}))
	require.NoError(t, err)
	assert.Equal(t, frag.ValueOf(3), f, "closed expressions evaluate in Go")
}

func TestMethodsRegistry(t *testing.T) {
	m := NewMethods()
	_, ok := m.Lookup(MethodKey{"strings", "Contains"})
	require.True(t, ok)

	clone := m.Clone()
	clone.Unregister(MethodKey{"strings", "Contains"})
	_, ok = clone.Lookup(MethodKey{"strings", "Contains"})
	assert.False(t, ok)
	_, ok = m.Lookup(MethodKey{"strings", "Contains"})
	assert.True(t, ok, "clones are independent")

	keys := m.Keys()
	assert.Equal(t, MethodKey{Name: "bool"}, keys[0])
	assert.Equal(t, "strings.Contains", MethodKey{"strings", "Contains"}.String())
	assert.Equal(t, "len", MethodKey{Name: "len"}.String())
}
