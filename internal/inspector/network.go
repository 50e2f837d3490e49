package inspector

import (
	"net/url"
	"sync"

	"pageprobe-agent/internal/body"
	"pageprobe-agent/internal/bus"
	"pageprobe-agent/internal/clock"
	"pageprobe-agent/internal/model"
	"pageprobe-agent/internal/normalize"
	"pageprobe-agent/internal/proxy"
)

const (
	timingSourceResource = "resource"
	timingSourceProxy    = "proxy"
)

type NetworkOptions struct {
	// Transport names the instrumented transport in messages.
	Transport string
	Topics    proxy.NetworkTopics
	// BaseURL resolves relative request URLs.
	BaseURL *url.URL
	// Matcher pairs responses with resource timing entries. Without one
	// responses carry the proxy offsets.
	Matcher      *Matcher
	MaxBodyBytes int
}

type pendingRequest struct {
	messageID string
	rawURL    string
	url       string
	start     float64
}

// Network correlates the request, response, error and abort events of one
// transport style.
type Network struct {
	base
	opts NetworkOptions

	mu      sync.Mutex
	pending map[string]pendingRequest
}

func NewNetwork(opts Options, n NetworkOptions) *Network {
	if n.MaxBodyBytes <= 0 {
		n.MaxBodyBytes = body.DefaultMaxLength
	}
	return &Network{
		base:    newBase("network:"+n.Transport, opts),
		opts:    n,
		pending: make(map[string]pendingRequest),
	}
}

func (n *Network) Name() string { return "network:" + n.opts.Transport }

func (n *Network) Init(pub Publisher) {
	n.pub = pub
	listen(&n.base, n.opts.Topics.RequestSent, n.onRequest)
	listen(&n.base, n.opts.Topics.ResponseReceived, n.onResponse)
	listen(&n.base, n.opts.Topics.Error, func(f proxy.TransportFailed, ev bus.Event) {
		n.onFailure(f, ev, model.TypeHTTPError)
	})
	listen(&n.base, n.opts.Topics.Abort, func(f proxy.TransportFailed, ev bus.Event) {
		n.onFailure(f, ev, model.TypeHTTPAbort)
	})
}

// Pending reports how many requests await a terminal event.
func (n *Network) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

func (n *Network) onRequest(sent proxy.RequestSent, ev bus.Event) {
	payload := &model.RequestPayload{
		ID:        sent.ID,
		Transport: n.opts.Transport,
		Method:    sent.Method,
		URL:       normalize.ResolveURL(n.opts.BaseURL, sent.URL),
		Headers:   normalize.Headers(sent.Header),
		StartTime: ev.Offset,
		TimeStamp: normalize.FormatDate(ev.TimeStamp),
	}
	m := n.pub.CreateMessage([]string{model.TypeHTTPRequest, model.TypeBeginCorrelation}, payload)

	n.mu.Lock()
	n.pending[sent.ID] = pendingRequest{messageID: m.ID, rawURL: sent.URL, url: payload.URL, start: ev.Offset}
	n.mu.Unlock()

	body.Capture(n.clock, sent.Body, sent.ContentType, n.opts.MaxBodyBytes, func(c body.Content) {
		payload.Body = &c
		if frames := sent.Stack.Frames(1); len(frames) > 0 {
			payload.Stack = frames
			m.AddTypes(model.TypeCallStack)
		}
		n.publish(m)
	})
}

func (n *Network) onResponse(recv proxy.ResponseReceived, ev bus.Event) {
	req, ok := n.take(recv.ID)
	if !ok {
		return
	}
	payload := &model.ResponsePayload{
		ID:            recv.ID,
		RequestID:     req.messageID,
		Transport:     n.opts.Transport,
		URL:           req.url,
		Status:        recv.Status,
		StatusText:    recv.StatusText,
		Headers:       normalize.Headers(recv.Header),
		ContentLength: recv.ContentLength,
		Timing: model.ResponseTiming{
			Source:      timingSourceProxy,
			StartTime:   req.start,
			ResponseEnd: ev.Offset,
			Duration:    ev.Offset - req.start,
		},
	}
	m := n.pub.CreateMessage([]string{model.TypeHTTPResponse, model.TypeEndCorrelation}, payload)

	if n.opts.Matcher == nil {
		clock.Defer(n.clock, func() { n.publish(m) })
		return
	}
	n.opts.Matcher.Find(req.rawURL, req.start, ev.Offset, func(match Match) {
		if match.Found {
			e := match.Entry
			payload.Timing = model.ResponseTiming{
				Source:        timingSourceResource,
				StartTime:     e.StartTime,
				ResponseStart: e.ResponseStart,
				ResponseEnd:   e.ResponseEnd,
				Duration:      e.Duration,
			}
		}
		n.publish(m)
	})
}

func (n *Network) onFailure(f proxy.TransportFailed, ev bus.Event, kind string) {
	req, ok := n.take(f.ID)
	if !ok {
		return
	}
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	m := n.pub.CreateMessage([]string{kind, model.TypeEndCorrelation}, &model.FailurePayload{
		ID:        f.ID,
		RequestID: req.messageID,
		Transport: n.opts.Transport,
		URL:       req.url,
		Message:   msg,
		Offset:    ev.Offset,
	})
	n.publish(m)
}

// take evicts the pending entry of id. A miss means the proxy and the
// inspector disagree about the request lifecycle.
func (n *Network) take(id string) (pendingRequest, bool) {
	n.mu.Lock()
	req, ok := n.pending[id]
	delete(n.pending, id)
	n.mu.Unlock()
	if !ok {
		n.logger.Error("terminal event without a pending request", "id", id)
	}
	return req, ok
}
