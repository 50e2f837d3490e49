package page

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
)

// ResourceTransport is the page's native transport: it performs the round
// trip with the base transport and buffers a resource timing entry once the
// response body is consumed or closed, the way a browser fills its
// PerformanceResourceTiming buffer.
type ResourceTransport struct {
	Base http.RoundTripper
	Perf *Performance
}

func (t *ResourceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if req == nil || req.URL == nil || t.Perf == nil {
		return base.RoundTrip(req)
	}

	rec := newResourceRecorder(t.Perf, req.URL.String())
	traced := req.WithContext(httptrace.WithClientTrace(req.Context(), rec.clientTrace()))
	resp, err := base.RoundTrip(traced)
	if err != nil {
		rec.finish(0)
		return resp, err
	}
	if resp.Body == nil {
		rec.finish(0)
		return resp, nil
	}
	resp.Body = &timedBody{ReadCloser: resp.Body, rec: rec}
	return resp, nil
}

type resourceRecorder struct {
	perf *Performance
	once sync.Once

	mu    sync.Mutex
	entry Entry
}

func newResourceRecorder(perf *Performance, name string) *resourceRecorder {
	start := perf.Now()
	return &resourceRecorder{
		perf: perf,
		entry: Entry{
			Name:              name,
			EntryType:         EntryResource,
			InitiatorType:     "fetch",
			StartTime:         start,
			FetchStart:        start,
			DomainLookupStart: start,
			DomainLookupEnd:   start,
			ConnectStart:      start,
			ConnectEnd:        start,
			RequestStart:      start,
		},
	}
}

func (r *resourceRecorder) stamp(set func(e *Entry, now float64)) {
	now := r.perf.Now()
	r.mu.Lock()
	set(&r.entry, now)
	r.mu.Unlock()
}

func (r *resourceRecorder) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) {
			r.stamp(func(e *Entry, now float64) { e.DomainLookupStart = now })
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			r.stamp(func(e *Entry, now float64) { e.DomainLookupEnd = now })
		},
		ConnectStart: func(string, string) {
			r.stamp(func(e *Entry, now float64) { e.ConnectStart = now })
		},
		ConnectDone: func(string, string, error) {
			r.stamp(func(e *Entry, now float64) { e.ConnectEnd = now })
		},
		TLSHandshakeStart: func() {
			r.stamp(func(e *Entry, now float64) { e.SecureConnectionStart = now })
		},
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			r.stamp(func(e *Entry, now float64) { e.ConnectEnd = now })
		},
		GotConn: func(httptrace.GotConnInfo) {
			r.stamp(func(e *Entry, now float64) { e.RequestStart = now })
		},
		GotFirstResponseByte: func() {
			r.stamp(func(e *Entry, now float64) { e.ResponseStart = now })
		},
	}
}

func (r *resourceRecorder) finish(size int64) {
	r.once.Do(func() {
		now := r.perf.Now()
		r.mu.Lock()
		e := r.entry
		r.mu.Unlock()
		if e.ResponseStart == 0 {
			e.ResponseStart = now
		}
		e.ResponseEnd = now
		e.Duration = now - e.StartTime
		e.TransferSize = size
		e.EncodedBodySize = size
		e.DecodedBodySize = size
		r.perf.AddEntry(e)
	})
}

type timedBody struct {
	io.ReadCloser
	rec *resourceRecorder

	mu   sync.Mutex
	read int64
}

func (b *timedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.mu.Lock()
	b.read += int64(n)
	total := b.read
	b.mu.Unlock()
	if err == io.EOF {
		b.rec.finish(total)
	}
	return n, err
}

func (b *timedBody) Close() error {
	err := b.ReadCloser.Close()
	b.mu.Lock()
	total := b.read
	b.mu.Unlock()
	b.rec.finish(total)
	return err
}
