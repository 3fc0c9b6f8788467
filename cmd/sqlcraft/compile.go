package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/atlekbai/sqlcraft/internal/capture"
	"github.com/atlekbai/sqlcraft/internal/dialect"
	"github.com/atlekbai/sqlcraft/internal/engine"
	"github.com/atlekbai/sqlcraft/internal/frag"
)

type compileFlags struct {
	dialect string
	params  []string
	tables  []string
	binds   []string
	output  string
	from    string
	columns []string
}

func newCompileCmd(a *app) *cobra.Command {
	f := &compileFlags{}
	cmd := &cobra.Command{
		Use:   "compile <expr>",
		Short: "Compile a Go expression to SQL",
		Example: `  # Typed row parameter resolved through the catalog
  sqlcraft compile --catalog hr.yaml --param p=Person --bind min=10 'p.Salary > min'

  # Untyped table alias, SQL Server output
  sqlcraft compile -d sqlserver --table e=events 'len(e.kind) > 3'

  # Bind a list (values are parsed as YAML)
  sqlcraft compile --table t=tasks --bind 'ids=[1, 2, 3]' 'sql.In(t.id, ids)'

  # Wrap the predicate in a full SELECT statement
  sqlcraft compile --catalog hr.yaml --param p=Person --from 'Person p' --select p.name 'p.Salary > 10'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			decls, err := f.decls()
			if err != nil {
				return configError("parsing flags", err)
			}
			e, err := a.engine(f.dialect)
			if err != nil {
				return err
			}
			var res *frag.Result
			if f.from == "" {
				res, err = e.CompileCapture(args[0], decls...)
			} else {
				res, err = selectWhere(e, f.from, f.columns, args[0], decls)
			}
			if err != nil {
				return compileError("compiling expression", err)
			}
			var named map[string]any
			if e.Dialect().Placeholder == dialect.PlaceholderNamed {
				named = res.NamedArgs()
			}
			return writeResult(cmd.OutOrStdout(), f.output, res, named)
		},
	}
	cmd.Flags().StringVarP(&f.dialect, "dialect", "d", "", "target dialect (default from config)")
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "typed row parameter name=Object (repeatable)")
	cmd.Flags().StringArrayVarP(&f.tables, "table", "t", nil, "untyped row parameter name=table (repeatable)")
	cmd.Flags().StringArrayVarP(&f.binds, "bind", "b", nil, "bound local name=value, value parsed as YAML (repeatable)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "text", "output format: text, json or yaml")
	cmd.Flags().StringVar(&f.from, "from", "", `wrap the predicate in SELECT ... FROM this source, "name [alias]"`)
	cmd.Flags().StringSliceVar(&f.columns, "select", nil, "columns of the SELECT, name or alias.name (default *)")
	return cmd
}

func selectWhere(e *engine.Engine, from string, columns []string, expr string, decls []capture.Decl) (*frag.Result, error) {
	src, err := e.Source(from)
	if err != nil {
		return nil, err
	}
	where, err := e.Capture(expr, decls...)
	if err != nil {
		return nil, err
	}
	return e.SelectWhere(src, columns, where)
}

func (f *compileFlags) decls() ([]capture.Decl, error) {
	var decls []capture.Decl
	for _, s := range f.params {
		name, object, err := splitAssignment(s)
		if err != nil {
			return nil, fmt.Errorf("--param: %w", err)
		}
		decls = append(decls, capture.Param(name, object))
	}
	for _, s := range f.tables {
		name, table, err := splitAssignment(s)
		if err != nil {
			return nil, fmt.Errorf("--table: %w", err)
		}
		decls = append(decls, capture.ParamTable(name, table))
	}
	for _, s := range f.binds {
		name, raw, err := splitAssignment(s)
		if err != nil {
			return nil, fmt.Errorf("--bind: %w", err)
		}
		v, err := parseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("--bind %s: %w", name, err)
		}
		decls = append(decls, capture.Bind(name, v))
	}
	return decls, nil
}

func splitAssignment(s string) (string, string, error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("expected name=value, got %q", s)
	}
	return name, value, nil
}

// parseValue reads a YAML scalar or sequence. Whole numbers become int64;
// anything that does not parse is taken as a string.
func parseValue(raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw, nil
	}
	return narrow(v)
}

func narrow(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x), nil
		}
		return x, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			n, err := narrow(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		return nil, fmt.Errorf("maps cannot be bound")
	}
	return v, nil
}

type paramOut struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type resultOut struct {
	SQL    string     `json:"sql"`
	Params []paramOut `json:"params"`
	// NamedArgs keys the values by parameter name without its prefix, as
	// pgx.NamedArgs expects. Only set for named placeholder dialects.
	NamedArgs map[string]any `json:"named_args,omitempty"`
}

func writeResult(w io.Writer, format string, res *frag.Result, named map[string]any) error {
	out := resultOut{SQL: res.SQL, Params: []paramOut{}, NamedArgs: named}
	for _, p := range res.Params.List() {
		out.Params = append(out.Params, paramOut{Name: p.Name, Value: p.Value})
	}

	switch format {
	case "text", "":
		fmt.Fprintln(w, out.SQL)
		for _, p := range out.Params {
			fmt.Fprintf(w, "  %s = %v\n", p.Name, p.Value)
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		data, err := yaml.Marshal(out)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return configError(fmt.Sprintf("unknown output format %q", format), nil)
}
