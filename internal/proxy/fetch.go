package proxy

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/http/httpguts"

	"pageprobe-agent/internal/body"
	"pageprobe-agent/internal/stack"
)

// Fetch instruments an *http.Client by wrapping its Transport.
type Fetch struct {
	client *http.Client
	bus    Emitter
	guard  guard
}

func NewFetch(client *http.Client, bus Emitter, logger *slog.Logger) *Fetch {
	return &Fetch{client: client, bus: bus, guard: newGuard("fetch", logger)}
}

func (p *Fetch) Name() string { return "fetch" }

func (p *Fetch) IsSupported() bool { return p.client != nil }

func (p *Fetch) Init() error {
	return p.guard.install(func() error {
		_, err := InstallOnce[http.RoundTripper](&transportTarget{client: p.client}, func(orig http.RoundTripper) http.RoundTripper {
			if orig == nil {
				orig = http.DefaultTransport
			}
			return &fetchTransport{orig: orig, bus: p.bus}
		})
		return err
	})
}

type transportTarget struct {
	mu     sync.Mutex
	client *http.Client
}

func (t *transportTarget) Load() http.RoundTripper {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Transport
}

func (t *transportTarget) Store(rt http.RoundTripper) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.client.Transport = rt
}

type fetchTransport struct {
	orig http.RoundTripper
	bus  Emitter
}

func (t *fetchTransport) Unwrap() any { return t.orig }

func (t *fetchTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !wellFormed(req) {
		return t.orig.RoundTrip(req)
	}
	id := uuid.NewString()
	url := req.URL.String()
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	t.bus.Publish(FetchTopics.RequestSent, RequestSent{
		ID:          id,
		Transport:   TransportFetch,
		Method:      method,
		URL:         url,
		Header:      req.Header.Clone(),
		ContentType: req.Header.Get("Content-Type"),
		Body:        requestBody(req),
		Stack:       stack.Capture(0),
	})

	resp, err := t.orig.RoundTrip(req)
	switch {
	case err != nil && aborted(req.Context(), err):
		t.bus.Publish(FetchTopics.Abort, TransportFailed{ID: id, URL: url, Err: err})
	case err != nil:
		t.bus.Publish(FetchTopics.Error, TransportFailed{ID: id, URL: url, Err: err})
	default:
		t.bus.Publish(FetchTopics.ResponseReceived, ResponseReceived{
			ID:            id,
			URL:           url,
			Status:        resp.StatusCode,
			StatusText:    http.StatusText(resp.StatusCode),
			Header:        resp.Header.Clone(),
			ContentLength: resp.ContentLength,
		})
	}
	return resp, err
}

// wellFormed reports whether the native transport would attempt to send
// req. Requests it rejects up front pass through unobserved.
func wellFormed(req *http.Request) bool {
	if req == nil || req.URL == nil || req.Header == nil {
		return false
	}
	if req.Method != "" && !httpguts.ValidHeaderFieldName(req.Method) {
		return false
	}
	switch req.URL.Scheme {
	case "http", "https":
	default:
		return false
	}
	if req.URL.Host == "" {
		return false
	}
	for k, vv := range req.Header {
		if !httpguts.ValidHeaderFieldName(k) {
			return false
		}
		for _, v := range vv {
			if !httpguts.ValidHeaderFieldValue(v) {
				return false
			}
		}
	}
	return true
}

func requestBody(req *http.Request) body.Source {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	return req.GetBody
}

func aborted(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled)
}
