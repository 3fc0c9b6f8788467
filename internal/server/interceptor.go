package server

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// LoggingInterceptor logs each unary call with its procedure, outcome code and
// duration. Failed calls are logged at Warn.
func LoggingInterceptor(log *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"procedure", req.Spec().Procedure,
				"duration", time.Since(start),
			}
			if err != nil {
				log.WarnContext(ctx, "rpc failed", append(attrs, "code", connect.CodeOf(err).String(), "error", err)...)
				return resp, err
			}
			log.DebugContext(ctx, "rpc ok", attrs...)
			return resp, nil
		}
	}
}
