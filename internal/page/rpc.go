package page

import (
	"context"

	"google.golang.org/grpc"
)

// RPCInterceptor is the replaceable unary call entry point of the page.
type RPCInterceptor interface {
	Intercept(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error
}

type passthroughRPC struct{}

func (passthroughRPC) Intercept(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	return invoker(ctx, method, req, reply, cc, opts...)
}

// UnaryClientInterceptor routes every unary call of a connection through
// the current RPC slot value.
func (p *Page) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return p.RPC.Load().Intercept(ctx, method, req, reply, cc, invoker, opts...)
	}
}

// DialOption installs the page RPC slot on a client connection.
func (p *Page) DialOption() grpc.DialOption {
	return grpc.WithChainUnaryInterceptor(p.UnaryClientInterceptor())
}
