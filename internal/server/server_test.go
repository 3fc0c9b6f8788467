package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

const echoProcedure = "/test.v1.EchoService/Echo"

type echoService struct{}

func (echoService) RegisterHandler(interceptors ...connect.Interceptor) (string, http.Handler) {
	h := connect.NewUnaryHandler(echoProcedure,
		func(_ context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
			if req.Msg.GetFields()["fail"].GetBoolValue() {
				return nil, connect.NewError(connect.CodeFailedPrecondition, errors.New("asked to fail"))
			}
			return connect.NewResponse(req.Msg), nil
		},
		connect.WithInterceptors(interceptors...),
	)
	return "/test.v1.EchoService/", h
}

func newTestServer(t *testing.T, log *slog.Logger) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	paths := Mount(mux, []ConnectService{echoService{}}, LoggingInterceptor(log))
	assert.Equal(t, []string{"/test.v1.EchoService/"}, paths)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestMountAndIntercept(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	srv := newTestServer(t, log)
	client := connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+echoProcedure)

	msg, err := structpb.NewStruct(map[string]any{"expr": "a == 1"})
	require.NoError(t, err)
	resp, err := client.CallUnary(context.Background(), connect.NewRequest(msg))
	require.NoError(t, err)
	assert.Equal(t, "a == 1", resp.Msg.GetFields()["expr"].GetStringValue())
	assert.Contains(t, buf.String(), "rpc ok")
	assert.Contains(t, buf.String(), echoProcedure)

	buf.Reset()
	msg, err = structpb.NewStruct(map[string]any{"fail": true})
	require.NoError(t, err)
	_, err = client.CallUnary(context.Background(), connect.NewRequest(msg))
	require.Error(t, err)
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
	assert.Contains(t, buf.String(), "rpc failed")
	assert.Contains(t, buf.String(), "code=failed_precondition")
}
