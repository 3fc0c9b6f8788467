package frag

import (
	"sync"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/sqlcraft/internal/dialect"
	"github.com/atlekbai/sqlcraft/internal/schema"
	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

func compileWith(t *testing.T, reg *Registry, opts dialect.Options, f Fragment) (*Result, error) {
	t.Helper()
	return NewCompiler(opts, reg, nil).Compile(f)
}

// --- Functions ---

func TestFunctionTranslation(t *testing.T) {
	name := Col("name")
	assert.Equal(t, `LEN([name])`, mustCompile(t, Length(name), dialect.SQLServer()).SQL)
	assert.Equal(t, "CHAR_LENGTH(`name`)", mustCompile(t, Length(name), dialect.MySQL()).SQL)
	assert.Equal(t, `SUBSTR("name", :p0)`, mustCompile(t, Func("SUBSTRING", name, 2), dialect.Oracle()).SQL)

	reg := NewRegistry()
	reg.Register("LENGTH", WithTranslation("OCTET_LENGTH"))
	res, err := compileWith(t, reg, dialect.SQLServer(), Length(name))
	require.NoError(t, err)
	assert.Equal(t, `OCTET_LENGTH([name])`, res.SQL, "registry translation wins over dialect names")
}

func TestFunctionStrategy(t *testing.T) {
	reg := NewRegistry()
	reg.Register("DAY_OF", WithArity(1, 1), WithStrategy(func(w *Writer, call Call) error {
		w.WriteString("date_trunc('day', ")
		if err := w.Write(call.Args[0], ParensNever); err != nil {
			return err
		}
		w.WriteString(")")
		return nil
	}))

	res, err := compileWith(t, reg, dialect.Postgres(), Func("day_of", Col("created_at")))
	require.NoError(t, err)
	assert.Equal(t, `date_trunc('day', "created_at")`, res.SQL)

	_, err = compileWith(t, reg, dialect.Postgres(), Func("DAY_OF"))
	require.ErrorIs(t, err, sqlerr.Structural)
	assert.Contains(t, err.Error(), "exactly 1 argument")
}

func TestBuiltinFunctions(t *testing.T) {
	a, b := Col("a"), Col("b")
	tests := []struct {
		name string
		f    Fragment
		opts dialect.Options
		want string
	}{
		{"count star", Count(), dialect.Default(), `COUNT(*)`},
		{"count distinct", CountDistinct(a), dialect.Default(), `COUNT(DISTINCT "a")`},
		{"cast", Cast(a, "INT"), dialect.Default(), `CAST("a" AS INT)`},
		{"cast composite", Cast(Add(a, b), "NUMERIC(10, 2)"), dialect.Default(), `CAST("a" + "b" AS NUMERIC(10, 2))`},
		{"concat function", Concat(a, b), dialect.Default(), `CONCAT("a", "b")`},
		{"concat pipes", Concat(a, b), dialect.Postgres(), `("a" || "b")`},
		{"concat plus", Concat(a, b), dialect.SQLServer(), `([a] + [b])`},
		{"coalesce", Coalesce(a, b, Col("c")), dialect.Default(), `COALESCE("a", "b", "c")`},
		{"current timestamp", CurrentTimestamp(), dialect.Oracle(), `CURRENT_TIMESTAMP`},
		{"unregistered passes through", Func("soundex", a), dialect.Default(), `soundex("a")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustCompile(t, tt.f, tt.opts).SQL)
		})
	}
}

func TestFunctionArity(t *testing.T) {
	expectKind(t, Func("CAST", Col("a")), dialect.Default(), sqlerr.Structural, "CAST", "exactly 2 arguments")
	expectKind(t, Func("CAST", Col("a"), "INT"), dialect.Default(), sqlerr.Structural, "raw SQL")
	expectKind(t, Func("COALESCE", Col("a")), dialect.Default(), sqlerr.Structural, "at least 2 arguments")
	expectKind(t, Func("ROUND"), dialect.Default(), sqlerr.Structural, "between 1 and 2 arguments")
}

func TestOnlyRegistered(t *testing.T) {
	reg := NewRegistry()
	reg.SetOnlyRegistered(true)
	_, err := compileWith(t, reg, dialect.Default(), Func("soundex", Col("a")))
	require.ErrorIs(t, err, sqlerr.Configuration)
	assert.Contains(t, err.Error(), `"soundex"`)

	res, err := compileWith(t, reg, dialect.Default(), Upper(Col("a")))
	require.NoError(t, err)
	assert.Equal(t, `UPPER("a")`, res.SQL)

	reg.UnregisterOperator(OpAdd)
	_, err = compileWith(t, reg, dialect.Default(), Add(Col("a"), 1))
	require.ErrorIs(t, err, sqlerr.Configuration)
	assert.Contains(t, err.Error(), "ADD")

	opts := dialect.Default()
	opts.OnlyRegisteredFunctions = true
	expectKind(t, Func("soundex", Col("a")), opts, sqlerr.Configuration, "not registered")
}

func TestRegistriesAreIsolated(t *testing.T) {
	r1, r2 := NewRegistry(), NewRegistry()
	r1.Register("FOO", WithTranslation("BAR"))

	res1, err := compileWith(t, r1, dialect.Default(), Func("foo", 1))
	require.NoError(t, err)
	res2, err := compileWith(t, r2, dialect.Default(), Func("foo", 1))
	require.NoError(t, err)

	assert.Equal(t, `BAR(@p0)`, res1.SQL)
	assert.Equal(t, `foo(@p0)`, res2.SQL)

	clone := r1.Clone()
	clone.Register("FOO", WithTranslation("BAZ"))
	def, ok := r1.Lookup("foo")
	require.True(t, ok)
	assert.Equal(t, "BAR", def.Translation)
}

func TestConcurrentCompile(t *testing.T) {
	c := NewCompiler(dialect.Postgres(), nil, nil)
	f := Select(Col("a")).From(Table("t")).Where(And(Gt(Col("a"), 1), Lt(Col("a"), 9)))

	var wg sync.WaitGroup
	results := make([]*Result, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Compile(f)
			if err == nil {
				results[i] = res
			}
		}()
	}
	wg.Wait()
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, `SELECT "a" FROM "t" WHERE "a" > @p0 AND "a" < @p1`, res.SQL)
		assert.Equal(t, []any{1, 9}, res.Args())
	}
}

// --- Squirrel interop ---

func TestSquirrelFragment(t *testing.T) {
	f := And(Eq(Col("a"), 1), Squirrel{S: sq.Eq{"status": "active"}})
	res := mustCompile(t, f, dialect.Postgres())
	assert.Equal(t, `"a" = @p0 AND (status = @p1)`, res.SQL)
	assert.Equal(t, []any{1, "active"}, res.Args())

	sub := sq.Select("id").From("users").Where(sq.Eq{"team": 7})
	res = mustCompile(t, InQuery(Col("owner"), Squirrel{S: sub}), dialect.Oracle())
	assert.Equal(t, `"owner" IN (SELECT id FROM users WHERE team = :p0)`, res.SQL)
}

func TestSqlizer(t *testing.T) {
	c := NewCompiler(dialect.Postgres(), nil, nil)
	where := c.Sqlizer(And(Eq(Col("a"), 1), Text("b ?? ?", 2)))

	text, args, err := sq.Select("*").From("t").Where(where).PlaceholderFormat(sq.Dollar).ToSql()
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM t WHERE "a" = $1 AND (b ? $2)`, text)
	assert.Equal(t, []any{1, 2}, args)
}

// --- Catalog ---

type department struct {
	ID   int
	Name string
}

type person struct {
	ID         int
	FirstName  string
	Salary     float64
	Department department
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

func TestTypedAlias(t *testing.T) {
	c := NewCompiler(dialect.Postgres(), nil, testCatalog(t))
	p := Object("person", "p")
	q := Select(p.Prop("FirstName"), p.Prop("Department.ID")).From(p).Where(Gt(p.Prop("Salary"), 100))

	res, err := c.Compile(q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "p"."first_name", "p"."department_id" FROM "hr"."people" AS "p" WHERE "p"."salary" > @p0`, res.SQL)

	res, err = c.Compile(Select(p.Expand()).From(p))
	require.NoError(t, err)
	assert.Equal(t, `SELECT "p"."id", "p"."first_name", "p"."salary", "p"."department_id" FROM "hr"."people" AS "p"`, res.SQL)
}

func TestUnmappedPath(t *testing.T) {
	c := NewCompiler(dialect.Postgres(), nil, testCatalog(t))
	p := Object("person", "p")

	res, err := c.Compile(Eq(p.Prop("Department.Name"), "eng"))
	require.ErrorIs(t, err, sqlerr.Configuration)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "path: Department.Name")
	assert.Contains(t, err.Error(), "type: person")

	_, err = NewCompiler(dialect.Postgres(), nil, nil).Compile(p.Prop("Salary"))
	require.ErrorIs(t, err, sqlerr.Configuration)
	assert.Contains(t, err.Error(), "no catalog")
}
