package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/atlekbai/sqlcraft/internal/dialect"
	"github.com/atlekbai/sqlcraft/internal/engine"
	"github.com/atlekbai/sqlcraft/internal/schema"
)

type person struct {
	ID     int
	Name   string
	Salary float64
}

func newTestService(t *testing.T) *CompileService {
	t.Helper()
	cat := schema.NewCatalog()
	_, err := cat.RegisterStruct(person{}, "hr", "people")
	require.NoError(t, err)

	engines := map[string]*engine.Engine{}
	for _, name := range []string{"postgres", "sqlserver"} {
		opts, err := dialect.Lookup(name)
		require.NoError(t, err)
		engines[name] = engine.New(engine.WithDialect(opts), engine.WithCatalog(cat))
	}
	return NewCompileService(engines, "postgres", nil)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestCompile(t *testing.T) {
	s := newTestService(t)
	req := connect.NewRequest(mustStruct(t, map[string]any{
		"expr":   "p.Salary >= min && p.Name != name",
		"params": map[string]any{"p": "person"},
		"binds":  map[string]any{"min": 1000, "name": "bob"},
	}))
	req.Header().Set(RequestIDHeader, "req-1")

	resp, err := s.Compile(context.Background(), req)
	require.NoError(t, err)

	fields := resp.Msg.GetFields()
	assert.Equal(t, `"p"."salary" >= @p0 AND "p"."name" <> @p1`, fields["sql"].GetStringValue())
	assert.Equal(t, "postgres", fields["dialect"].GetStringValue())
	assert.Equal(t, "req-1", fields["request_id"].GetStringValue())
	assert.Equal(t, "req-1", resp.Header().Get(RequestIDHeader))

	params := fields["params"].GetListValue().GetValues()
	require.Len(t, params, 2)
	first := params[0].GetStructValue().GetFields()
	assert.Equal(t, "@p0", first["name"].GetStringValue())
	assert.Equal(t, float64(1000), first["value"].GetNumberValue())
}

func TestCompileDialectAndTables(t *testing.T) {
	s := newTestService(t)
	resp, err := s.Compile(context.Background(), connect.NewRequest(mustStruct(t, map[string]any{
		"dialect": "sqlserver",
		"expr":    "len(e.kind) > 3",
		"tables":  map[string]any{"e": "events"},
	})))
	require.NoError(t, err)
	assert.Equal(t, `LEN([e].[kind]) > @p0`, resp.Msg.GetFields()["sql"].GetStringValue())
	assert.NotEmpty(t, resp.Header().Get(RequestIDHeader), "a request id is generated")
}

func TestCompileSelect(t *testing.T) {
	s := newTestService(t)
	resp, err := s.Compile(context.Background(), connect.NewRequest(mustStruct(t, map[string]any{
		"dialect": "sqlserver",
		"expr":    "p.Salary >= min",
		"params":  map[string]any{"p": "person"},
		"binds":   map[string]any{"min": 10},
		"from":    "person p",
		"select":  []any{"p.id", "p.name"},
	})))
	require.NoError(t, err)

	fields := resp.Msg.GetFields()
	assert.Equal(t, `SELECT [p].[id], [p].[name] FROM [hr].[people] AS [p] WHERE [p].[salary] >= @p0`, fields["sql"].GetStringValue())
	params := fields["params"].GetListValue().GetValues()
	require.Len(t, params, 1)
	assert.Equal(t, "@p0", params[0].GetStructValue().GetFields()["name"].GetStringValue())
}

func TestCompileErrors(t *testing.T) {
	s := newTestService(t)
	tests := []struct {
		name string
		req  map[string]any
		code connect.Code
	}{
		{"missing expr", map[string]any{}, connect.CodeInvalidArgument},
		{"unknown dialect", map[string]any{"expr": "1 == 1", "dialect": "db2"}, connect.CodeInvalidArgument},
		{"parse error", map[string]any{"expr": "p.Salary >"}, connect.CodeInvalidArgument},
		{
			"unknown member",
			map[string]any{"expr": "p.Bonus > 1", "params": map[string]any{"p": "person"}},
			connect.CodeFailedPrecondition,
		},
		{"bad param", map[string]any{"expr": "p.x", "params": map[string]any{"p": 1}}, connect.CodeInvalidArgument},
		{"select without from", map[string]any{"expr": "1 == 1", "select": []any{"a"}}, connect.CodeInvalidArgument},
		{"bad source", map[string]any{"expr": "t.a == 1", "tables": map[string]any{"t": "t"}, "from": "a b c"}, connect.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Compile(context.Background(), connect.NewRequest(mustStruct(t, tt.req)))
			require.Error(t, err)
			assert.Equal(t, tt.code, connect.CodeOf(err))
		})
	}
}

func TestCompileBatch(t *testing.T) {
	s := newTestService(t)
	resp, err := s.CompileBatch(context.Background(), connect.NewRequest(mustStruct(t, map[string]any{
		"items": []any{
			map[string]any{"expr": "p.ID == 1", "params": map[string]any{"p": "person"}},
			map[string]any{"expr": "p.ID in ids", "tables": map[string]any{"p": "t"}, "binds": map[string]any{"ids": 1}},
		},
	})))
	require.Error(t, err, "one bad item fails the batch")
	assert.Nil(t, resp)

	resp, err = s.CompileBatch(context.Background(), connect.NewRequest(mustStruct(t, map[string]any{
		"items": []any{
			map[string]any{"expr": "p.ID == 1", "params": map[string]any{"p": "person"}},
			map[string]any{"expr": "sql.In(t.id, ids)", "tables": map[string]any{"t": "t"}, "binds": map[string]any{"ids": []any{1, 2}}},
		},
	})))
	require.NoError(t, err)

	results := resp.Msg.GetFields()["results"].GetListValue().GetValues()
	require.Len(t, results, 2)
	assert.Equal(t, `"p"."id" = @p0`, results[0].GetStructValue().GetFields()["sql"].GetStringValue())
	assert.Equal(t, `"t"."id" IN (@p0, @p1)`, results[1].GetStructValue().GetFields()["sql"].GetStringValue())
}

func TestCompileBatchRequiresItems(t *testing.T) {
	s := newTestService(t)
	_, err := s.CompileBatch(context.Background(), connect.NewRequest(mustStruct(t, map[string]any{})))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestBindValue(t *testing.T) {
	assert.Equal(t, int64(3), bindValue(float64(3)))
	assert.Equal(t, 2.5, bindValue(2.5))
	assert.Equal(t, []any{int64(1), "x"}, bindValue([]any{float64(1), "x"}))
	assert.Nil(t, bindValue(nil))
}

func TestHandlerRoundTrip(t *testing.T) {
	s := newTestService(t)
	path, handler := s.RegisterHandler()
	assert.Equal(t, "/sqlcraft.v1.CompileService/", path)

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+DialectsProcedure)
	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&structpb.Struct{}))
	require.NoError(t, err)

	fields := resp.Msg.GetFields()
	assert.Equal(t, "postgres", fields["default"].GetStringValue())
	names := fields["dialects"].GetListValue().GetValues()
	require.Len(t, names, 2)
	assert.Equal(t, "postgres", names[0].GetStringValue())
	assert.Equal(t, "sqlserver", names[1].GetStringValue())
}
