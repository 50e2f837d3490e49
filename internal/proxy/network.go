package proxy

import (
	"net/http"

	"pageprobe-agent/internal/body"
	"pageprobe-agent/internal/stack"
)

// Transport names reported in network events.
const (
	TransportFetch = "fetch"
	TransportRPC   = "rpc"
)

// RequestSent is published before the native transport sees the request.
// Body opens an independent copy of the request body, or is nil.
type RequestSent struct {
	ID          string
	Transport   string
	Method      string
	URL         string
	Header      http.Header
	ContentType string
	Body        body.Source
	Stack       stack.Trace
}

// ResponseReceived is published once the native transport returns a
// response. Status is the HTTP status, or 200 for a successful RPC.
type ResponseReceived struct {
	ID            string
	URL           string
	Status        int
	StatusText    string
	Header        http.Header
	ContentLength int64
}

// TransportFailed is the payload of both the error and the abort topic.
type TransportFailed struct {
	ID  string
	URL string
	Err error
}
