package engine

import (
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/sqlcraft/internal/frag"
	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

// Source parses a FROM item written as "name [alias]". name is a catalog
// object, "schema.table" or a bare table.
func (e *Engine) Source(spec string) (*frag.Alias, error) {
	parts := strings.Fields(spec)
	if len(parts) == 0 || len(parts) > 2 {
		return nil, sqlerr.Structure("source must be \"name [alias]\", got %q", spec)
	}
	name, alias := parts[0], ""
	if len(parts) == 2 {
		alias = parts[1]
	}

	if e.catalog != nil && e.catalog.IsAggregateRoot(name) {
		return frag.Object(name, alias), nil
	}
	var a *frag.Alias
	if schemaName, table, ok := strings.Cut(name, "."); ok {
		a = frag.TableIn(schemaName, table)
	} else {
		a = frag.Table(name)
	}
	if alias != "" {
		a = a.As(alias)
	}
	return a, nil
}

// SelectWhere wraps a predicate in SELECT columns FROM from WHERE where.
// The statement is assembled with squirrel and rebound to the dialect's
// placeholders. Columns are "name" or "alias.name"; none selects *. A nil
// where selects every row.
func (e *Engine) SelectWhere(from *frag.Alias, columns []string, where frag.Fragment) (*frag.Result, error) {
	e.init()
	table, err := e.identText(frag.Source(from))
	if err != nil {
		e.logFailure("select failed", err)
		return nil, err
	}
	cols := make([]string, 0, len(columns))
	for _, c := range columns {
		col := frag.Col(c)
		if q, name, ok := strings.Cut(c, "."); ok {
			col = frag.Table(q).Col(name)
		}
		text, err := e.identText(col)
		if err != nil {
			e.logFailure("select failed", err, "column", c)
			return nil, err
		}
		cols = append(cols, text)
	}
	if len(cols) == 0 {
		cols = append(cols, "*")
	}

	stmt := sq.Select(cols...).From(table)
	if where != nil {
		stmt = stmt.Where(e.compiler.Sqlizer(where))
	}
	return e.Compile(frag.Squirrel{S: stmt})
}

// identText compiles a parameterless fragment and escapes its question
// marks so squirrel passes them through.
func (e *Engine) identText(f frag.Fragment) (string, error) {
	res, err := e.compiler.Compile(f)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(res.SQL, "?", "??"), nil
}
