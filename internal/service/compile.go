package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sort"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/atlekbai/sqlcraft/internal/capture"
	"github.com/atlekbai/sqlcraft/internal/engine"
	"github.com/atlekbai/sqlcraft/internal/frag"
	"github.com/atlekbai/sqlcraft/internal/sqlerr"
)

const (
	// ServiceName is the fully qualified Connect service name.
	ServiceName = "sqlcraft.v1.CompileService"

	CompileProcedure      = "/" + ServiceName + "/Compile"
	CompileBatchProcedure = "/" + ServiceName + "/CompileBatch"
	DialectsProcedure     = "/" + ServiceName + "/Dialects"

	// RequestIDHeader carries the caller's request id; one is generated when absent.
	RequestIDHeader = "X-Request-Id"
)

// CompileService captures Go expressions and compiles them for a dialect.
// Messages are google.protobuf.Struct values:
//
//	request:  {"dialect": "postgres", "expr": "p.Salary > min",
//	           "params": {"p": "Person"}, "tables": {"t": "events"}, "binds": {"min": 10},
//	           "from": "Person p", "select": ["p.name"]}
//	response: {"request_id": "...", "dialect": "postgres", "sql": "...",
//	           "params": [{"name": "@p0", "value": 10}]}
type CompileService struct {
	engines        map[string]*engine.Engine
	defaultDialect string
	log            *slog.Logger
}

// NewCompileService serves one engine per dialect name. Requests without a
// dialect use defaultDialect.
func NewCompileService(engines map[string]*engine.Engine, defaultDialect string, log *slog.Logger) *CompileService {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &CompileService{engines: engines, defaultDialect: defaultDialect, log: log}
}

func (s *CompileService) RegisterHandler(interceptors ...connect.Interceptor) (string, http.Handler) {
	opts := []connect.HandlerOption{connect.WithInterceptors(interceptors...)}
	mux := http.NewServeMux()
	mux.Handle(CompileProcedure, connect.NewUnaryHandler(CompileProcedure, s.Compile, opts...))
	mux.Handle(CompileBatchProcedure, connect.NewUnaryHandler(CompileBatchProcedure, s.CompileBatch, opts...))
	mux.Handle(DialectsProcedure, connect.NewUnaryHandler(DialectsProcedure, s.Dialects, opts...))
	return "/" + ServiceName + "/", mux
}

// compileRequest is the decoded form of one request struct.
type compileRequest struct {
	dialect string
	expr    string
	decls   []capture.Decl
	// from, when set, wraps expr in a SELECT of columns.
	from    string
	columns []string
}

func (s *CompileService) Compile(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	id := requestID(req.Header())
	cr, err := decodeRequest(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	e, err := s.engine(cr.dialect)
	if err != nil {
		return nil, err
	}

	res, err := compile(e, cr)
	if err != nil {
		s.log.InfoContext(ctx, "compile rejected", "request_id", id, "error", err)
		return nil, toConnectError(err)
	}

	out := resultFields(res)
	out["request_id"] = id
	out["dialect"] = e.Dialect().Name
	msg, err := structpb.NewStruct(out)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	resp := connect.NewResponse(msg)
	resp.Header().Set(RequestIDHeader, id)
	return resp, nil
}

// CompileBatch compiles {"dialect": ..., "items": [request, ...]}. Every item
// is captured first; the fragments are then compiled concurrently.
func (s *CompileService) CompileBatch(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	id := requestID(req.Header())
	fields := req.Msg.GetFields()
	e, err := s.engine(fields["dialect"].GetStringValue())
	if err != nil {
		return nil, err
	}

	items := fields["items"].GetListValue().GetValues()
	if len(items) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("items is required"))
	}

	fs := make([]frag.Fragment, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cr, err := decodeRequest(item.GetStructValue())
			if err != nil {
				return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("item %d: %w", i, err))
			}
			f, err := e.Capture(cr.expr, cr.decls...)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			fs[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, toConnectError(err)
	}

	results, err := e.CompileBatch(ctx, fs)
	if err != nil {
		return nil, toConnectError(err)
	}

	list := make([]any, len(results))
	for i, res := range results {
		list[i] = resultFields(res)
	}
	msg, err := structpb.NewStruct(map[string]any{
		"request_id": id,
		"dialect":    e.Dialect().Name,
		"results":    list,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	s.log.DebugContext(ctx, "batch compiled", "request_id", id, "size", len(results))
	resp := connect.NewResponse(msg)
	resp.Header().Set(RequestIDHeader, id)
	return resp, nil
}

// Dialects lists the served dialects and the default one.
func (s *CompileService) Dialects(_ context.Context, _ *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	names := make([]any, 0, len(s.engines))
	for _, n := range s.Names() {
		names = append(names, n)
	}
	msg, err := structpb.NewStruct(map[string]any{
		"dialects": names,
		"default":  s.defaultDialect,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// Names returns the served dialect names in sorted order.
func (s *CompileService) Names() []string {
	names := make([]string, 0, len(s.engines))
	for n := range s.engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *CompileService) engine(name string) (*engine.Engine, error) {
	if name == "" {
		name = s.defaultDialect
	}
	e, ok := s.engines[name]
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown dialect %q", name))
	}
	return e, nil
}

func decodeRequest(msg *structpb.Struct) (*compileRequest, error) {
	fields := msg.GetFields()
	cr := &compileRequest{
		dialect: fields["dialect"].GetStringValue(),
		expr:    fields["expr"].GetStringValue(),
		from:    fields["from"].GetStringValue(),
	}
	if cr.expr == "" {
		return nil, errors.New("expr is required")
	}
	for _, v := range fields["select"].GetListValue().GetValues() {
		col := v.GetStringValue()
		if col == "" {
			return nil, errors.New("select: column names must be non-empty strings")
		}
		cr.columns = append(cr.columns, col)
	}
	if len(cr.columns) > 0 && cr.from == "" {
		return nil, errors.New("select requires from")
	}

	for name, v := range fields["params"].GetStructValue().GetFields() {
		object := v.GetStringValue()
		if object == "" {
			return nil, fmt.Errorf("param %q: object name must be a string", name)
		}
		cr.decls = append(cr.decls, capture.Param(name, object))
	}
	for name, v := range fields["tables"].GetStructValue().GetFields() {
		table := v.GetStringValue()
		if table == "" {
			return nil, fmt.Errorf("table %q: table name must be a string", name)
		}
		cr.decls = append(cr.decls, capture.ParamTable(name, table))
	}
	if binds := fields["binds"].GetStructValue(); binds != nil {
		values := make(map[string]any, len(binds.GetFields()))
		for name, v := range binds.GetFields() {
			values[name] = bindValue(v.AsInterface())
		}
		cr.decls = append(cr.decls, capture.Binds(values))
	}
	return cr, nil
}

func compile(e *engine.Engine, cr *compileRequest) (*frag.Result, error) {
	if cr.from == "" {
		return e.CompileCapture(cr.expr, cr.decls...)
	}
	src, err := e.Source(cr.from)
	if err != nil {
		return nil, err
	}
	where, err := e.Capture(cr.expr, cr.decls...)
	if err != nil {
		return nil, err
	}
	return e.SelectWhere(src, cr.columns, where)
}

// bindValue narrows JSON numbers: whole numbers bind as int64.
func bindValue(v any) any {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = bindValue(item)
		}
		return out
	}
	return v
}

func resultFields(res *frag.Result) map[string]any {
	params := make([]any, 0, res.Params.Len())
	for _, p := range res.Params.List() {
		value, err := structpb.NewValue(p.Value)
		if err != nil {
			value = structpb.NewStringValue(fmt.Sprint(p.Value))
		}
		params = append(params, map[string]any{"name": p.Name, "value": value.AsInterface()})
	}
	return map[string]any{"sql": res.SQL, "params": params}
}

func requestID(h http.Header) string {
	if id := h.Get(RequestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

// toConnectError maps error kinds to Connect codes.
func toConnectError(err error) error {
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}
	switch sqlerr.KindOf(err) {
	case sqlerr.InvalidExpression, sqlerr.Structural:
		return connect.NewError(connect.CodeInvalidArgument, err)
	case sqlerr.Configuration:
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case sqlerr.Capability:
		return connect.NewError(connect.CodeUnimplemented, err)
	}
	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}
