package proxy_test

import (
	"context"
	"io"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"pageprobe-agent/internal/page"
	"pageprobe-agent/internal/proxy"
)

type echoRequest struct {
	Text string `json:"text"`
}

func newRPCSlot(t *testing.T) (*page.Slot[page.RPCInterceptor], *recorder) {
	t.Helper()
	pg, _ := newFakePage(t)
	rec := &recorder{}
	if err := proxy.NewRPC(pg.RPC, rec, nil).Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return pg.RPC, rec
}

func invokerReturning(err error, calls *int) grpc.UnaryInvoker {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		*calls++
		for _, o := range opts {
			if h, ok := o.(grpc.HeaderCallOption); ok {
				*h.HeaderAddr = metadata.Pairs("x-served-by", "echo")
			}
		}
		if r, ok := reply.(*wrapperspb.StringValue); ok && err == nil {
			r.Value = "pong"
		}
		return err
	}
}

func TestRPCPublishesRequestAndResponse(t *testing.T) {
	t.Parallel()
	slot, rec := newRPCSlot(t)
	calls := 0
	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer t")
	req := &echoRequest{Text: "ping"}
	reply := &wrapperspb.StringValue{}

	err := slot.Load().Intercept(ctx, "/echo.Echo/Say", req, reply, nil, invokerReturning(nil, &calls))
	if err != nil || calls != 1 || reply.Value != "pong" {
		t.Fatalf("Intercept() = %v, calls %d, reply %q", err, calls, reply.Value)
	}
	req.Text = "mutated"

	sent := rec.on(proxy.RPCTopics.RequestSent)[0].(proxy.RequestSent)
	recv := rec.on(proxy.RPCTopics.ResponseReceived)[0].(proxy.ResponseReceived)
	if sent.ID != recv.ID || sent.Transport != proxy.TransportRPC || sent.URL != "/echo.Echo/Say" {
		t.Errorf("RequestSent = %+v", sent)
	}
	if sent.Header.Get("Authorization") != "Bearer t" {
		t.Errorf("request header = %v", sent.Header)
	}
	rc, err := sent.Body()
	if err != nil {
		t.Fatalf("Body() error = %v", err)
	}
	raw, _ := io.ReadAll(rc)
	if string(raw) != `{"text":"ping"}` {
		t.Errorf("request snapshot = %s, want the body at call time", raw)
	}
	if recv.Status != 200 || recv.StatusText != "OK" || recv.Header.Get("X-Served-By") != "echo" {
		t.Errorf("ResponseReceived = %+v", recv)
	}
	if want := int64(proto.Size(reply)); recv.ContentLength != want {
		t.Errorf("ContentLength = %d, want %d", recv.ContentLength, want)
	}
}

func TestRPCTerminalStates(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		err   error
		topic string
	}{
		{"canceled", status.Error(codes.Canceled, "client went away"), proxy.RPCTopics.Abort},
		{"unavailable", status.Error(codes.Unavailable, "no backend"), proxy.RPCTopics.Error},
	}
	for _, tt := range tests {
		slot, rec := newRPCSlot(t)
		calls := 0
		err := slot.Load().Intercept(context.Background(), "/echo.Echo/Say", &echoRequest{}, &wrapperspb.StringValue{}, nil, invokerReturning(tt.err, &calls))
		if status.Code(err) != status.Code(tt.err) {
			t.Errorf("%s: Intercept() error = %v, want the native error", tt.name, err)
		}
		topics := rec.topics()
		if len(topics) != 2 || topics[1] != tt.topic {
			t.Errorf("%s: topics = %v, want request-sent then %s", tt.name, topics, tt.topic)
		}
	}
}

func TestRPCMalformedMethodPassesThrough(t *testing.T) {
	t.Parallel()
	slot, rec := newRPCSlot(t)
	for _, method := range []string{"", "Say", "/echo.Echo", "/echo.Echo/Say/extra"} {
		calls := 0
		_ = slot.Load().Intercept(context.Background(), method, &echoRequest{}, &wrapperspb.StringValue{}, nil, invokerReturning(nil, &calls))
		if calls != 1 {
			t.Errorf("method %q: invoker calls = %d, want 1", method, calls)
		}
	}
	if got := rec.topics(); len(got) != 0 {
		t.Errorf("malformed methods published %v", got)
	}
}
