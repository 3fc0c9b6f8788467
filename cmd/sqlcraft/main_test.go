package main

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
objects:
  - name: Person
    schema: hr
    table: people
    key: Id
    fields:
      - {name: Id, type: NUMBER}
      - {name: Name}
      - {name: Salary, type: NUMBER}
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("hr.yaml", []byte(catalogYAML), 0o644))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCompileText(t *testing.T) {
	out, err := run(t, "compile", "--catalog", "hr.yaml", "--param", "p=Person", "--bind", "min=10",
		`p.Salary > min && p.Name != ""`)
	require.NoError(t, err)
	assert.Equal(t, "\"p\".\"salary\" > @p0 AND \"p\".\"name\" <> @p1\n  @p0 = 10\n  @p1 = \n", out)
}

func TestCompileJSONAndYAML(t *testing.T) {
	out, err := run(t, "compile", "-d", "mysql", "-t", "t=tasks", "-b", "ids=[1, 2]", "-o", "json", "sql.In(t.id, ids)")
	require.NoError(t, err)
	assert.JSONEq(t, `{"sql":"`+"`t`.`id`"+` IN (?, ?)","params":[{"name":"p0","value":1},{"name":"p1","value":2}]}`, out)

	out, err = run(t, "compile", "-t", "t=tasks", "-o", "yaml", "t.done == true")
	require.NoError(t, err)
	assert.Contains(t, out, `"t"."done" = @p0`)
	assert.Contains(t, out, "value: true")
}

func TestCompileNamedArgs(t *testing.T) {
	out, err := run(t, "compile", "-t", "t=tasks", "-b", "n=3", "-o", "json", "t.size > n")
	require.NoError(t, err)
	assert.JSONEq(t, `{"sql":"\"t\".\"size\" > @p0","params":[{"name":"@p0","value":3}],"named_args":{"p0":3}}`, out)

	out, err = run(t, "compile", "-t", "t=tasks", "-o", "json", "t.done == true", "-d", "mysql")
	require.NoError(t, err)
	assert.NotContains(t, out, "named_args", "positional dialects have no names")
}

func TestCompileSelect(t *testing.T) {
	out, err := run(t, "compile", "--catalog", "hr.yaml", "--param", "p=Person", "--bind", "min=10",
		"--from", "Person p", "--select", "p.name,p.salary", "p.Salary > min")
	require.NoError(t, err)
	assert.Equal(t, "SELECT \"p\".\"name\", \"p\".\"salary\" FROM \"hr\".\"people\" AS \"p\" WHERE \"p\".\"salary\" > @p0\n  @p0 = 10\n", out)

	out, err = run(t, "compile", "-d", "mysql", "-t", "t=tasks", "--from", "tasks t", "t.done == true")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `tasks` AS `t` WHERE `t`.`done` = ?\n  p0 = true\n", out)

	_, err = run(t, "compile", "-t", "t=tasks", "--from", "a b c", "t.done")
	var exitErr *exitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, exitCompile, exitErr.code)
}

func TestCompileErrors(t *testing.T) {
	var exitErr *exitError

	_, err := run(t, "compile", "--param", "p", "p.x")
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, exitConfig, exitErr.code)

	_, err = run(t, "compile", "-t", "t=tasks", "t.x >")
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, exitCompile, exitErr.code)

	_, err = run(t, "compile", "-d", "db2", "1 == 1")
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, exitConfig, exitErr.code)
}

func TestDialects(t *testing.T) {
	out, err := run(t, "dialects")
	require.NoError(t, err)
	assert.Contains(t, out, "* postgres\n")
	assert.Contains(t, out, "  oracle\n")
}

func TestFunctions(t *testing.T) {
	out, err := run(t, "functions", "-d", "sqlserver")
	require.NoError(t, err)
	assert.Contains(t, out, "LENGTH -> LEN\n")
	assert.Contains(t, out, "COALESCE\n")
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"10", int64(10)},
		{"2.5", 2.5},
		{"true", true},
		{"bob", "bob"},
		{"", ""},
		{"[1, a]", []any{int64(1), "a"}},
	}
	for _, tt := range tests {
		got, err := parseValue(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	_, err := parseValue("{a: 1}")
	assert.Error(t, err)
}

func TestSplitAssignment(t *testing.T) {
	name, value, err := splitAssignment("expr=a=b")
	require.NoError(t, err)
	assert.Equal(t, "expr", name)
	assert.Equal(t, "a=b", value)

	_, _, err = splitAssignment("=x")
	assert.Error(t, err)
}
