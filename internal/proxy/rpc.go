package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"pageprobe-agent/internal/body"
	"pageprobe-agent/internal/page"
	"pageprobe-agent/internal/stack"
)

// RPC instruments unary gRPC calls routed through the page RPC slot.
type RPC struct {
	slot  *page.Slot[page.RPCInterceptor]
	bus   Emitter
	guard guard
}

func NewRPC(slot *page.Slot[page.RPCInterceptor], bus Emitter, logger *slog.Logger) *RPC {
	return &RPC{slot: slot, bus: bus, guard: newGuard("rpc", logger)}
}

func (p *RPC) Name() string { return "rpc" }

func (p *RPC) IsSupported() bool { return p.slot != nil }

func (p *RPC) Init() error {
	return p.guard.install(func() error {
		_, err := InstallOnce[page.RPCInterceptor](p.slot, func(orig page.RPCInterceptor) page.RPCInterceptor {
			return &rpcInterceptor{orig: orig, bus: p.bus}
		})
		return err
	})
}

type rpcInterceptor struct {
	orig page.RPCInterceptor
	bus  Emitter
}

func (r *rpcInterceptor) Unwrap() any { return r.orig }

func (r *rpcInterceptor) Intercept(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	if !validRPCMethod(method) {
		return r.orig.Intercept(ctx, method, req, reply, cc, invoker, opts...)
	}
	id := uuid.NewString()
	url := rpcURL(cc, method)
	header := http.Header{}
	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		header = mdHeader(md)
	}
	r.bus.Publish(RPCTopics.RequestSent, RequestSent{
		ID:          id,
		Transport:   TransportRPC,
		Method:      http.MethodPost,
		URL:         url,
		Header:      header,
		ContentType: "application/json",
		Body:        snapshot(req),
		Stack:       stack.Capture(0),
	})

	var respHeader metadata.MD
	err := r.orig.Intercept(ctx, method, req, reply, cc, invoker, append(opts[:len(opts):len(opts)], grpc.Header(&respHeader))...)
	switch {
	case err != nil && (status.Code(err) == codes.Canceled || errors.Is(ctx.Err(), context.Canceled)):
		r.bus.Publish(RPCTopics.Abort, TransportFailed{ID: id, URL: url, Err: err})
	case err != nil:
		r.bus.Publish(RPCTopics.Error, TransportFailed{ID: id, URL: url, Err: err})
	default:
		r.bus.Publish(RPCTopics.ResponseReceived, ResponseReceived{
			ID:            id,
			URL:           url,
			Status:        http.StatusOK,
			StatusText:    http.StatusText(http.StatusOK),
			Header:        mdHeader(respHeader),
			ContentLength: messageSize(reply),
		})
	}
	return err
}

// validRPCMethod accepts full method names of the form /service/method.
func validRPCMethod(method string) bool {
	if !strings.HasPrefix(method, "/") {
		return false
	}
	svc, m, ok := strings.Cut(method[1:], "/")
	return ok && svc != "" && m != "" && !strings.Contains(m, "/")
}

func rpcURL(cc *grpc.ClientConn, method string) string {
	if cc == nil {
		return method
	}
	return strings.TrimSuffix(cc.Target(), "/") + method
}

func mdHeader(md metadata.MD) http.Header {
	h := make(http.Header, len(md))
	for k, v := range md {
		h[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}
	return h
}

// snapshot encodes msg now so later mutation by the caller does not leak
// into the captured body.
func snapshot(msg any) body.Source {
	var (
		raw []byte
		err error
	)
	if m, ok := msg.(proto.Message); ok {
		raw, err = protojson.Marshal(m)
	} else {
		raw, err = json.Marshal(msg)
	}
	return func() (io.ReadCloser, error) {
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(raw)), nil
	}
}

func messageSize(msg any) int64 {
	if m, ok := msg.(proto.Message); ok {
		return int64(proto.Size(m))
	}
	return -1
}
