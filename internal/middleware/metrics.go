package middleware

import (
	"context"

	"connectrpc.com/connect"
)

// RPCRecorder counts finished RPCs.
type RPCRecorder interface {
	RecordRPC(procedure, code string)
}

// MetricsInterceptor reports every RPC with its result code to rec.
func MetricsInterceptor(rec RPCRecorder) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			resp, err := next(ctx, req)

			code := "ok"
			if err != nil {
				code = connect.CodeOf(err).String()
			}
			rec.RecordRPC(req.Spec().Procedure, code)

			return resp, err
		}
	}
}
