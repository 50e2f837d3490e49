// Package page models the host page the agent instruments: its console, its
// performance timeline, its HTTP client and RPC entry point, its load event
// and the configuration it carries.
package page

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"pageprobe-agent/internal/clock"
)

type Options struct {
	URL       string
	Clock     clock.Clock
	Console   *slog.Logger
	Transport http.RoundTripper
	Document  *Document
}

type Page struct {
	URL         *url.URL
	Document    *Document
	Console     *Console
	Performance *Performance
	HTTP        *http.Client
	RPC         *Slot[RPCInterceptor]
	// NavigationReporter runs one turn after the load event.
	NavigationReporter *Slot[Reporter]

	clock  clock.Clock
	native http.RoundTripper

	mu      sync.Mutex
	loaded  bool
	onLoad  []func()
	painted map[string]bool
}

func New(opts Options) (*Page, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse page url %q: %w", opts.URL, err)
	}
	c := opts.Clock
	if c == nil {
		c = clock.Real{}
	}
	doc := opts.Document
	if doc == nil {
		doc = &Document{}
	}

	perf := NewPerformance(c, c.Now())
	native := &ResourceTransport{Base: opts.Transport, Perf: perf}
	p := &Page{
		URL:                u,
		Document:           doc,
		Console:            NewConsole(opts.Console, c),
		Performance:        perf,
		HTTP:               &http.Client{Transport: native},
		RPC:                NewSlot[RPCInterceptor](passthroughRPC{}),
		NavigationReporter: NewSlot[Reporter](idleReporter{}),
		clock:              c,
		native:             native,
		painted:            make(map[string]bool),
	}
	_ = perf.RecordTiming("fetchStart")
	return p, nil
}

func (p *Page) Clock() clock.Clock {
	return p.clock
}

// NativeTransport is the page transport before any instrumentation. It
// still records resource timing entries.
func (p *Page) NativeTransport() http.RoundTripper {
	return p.native
}

// OnLoad registers fn for the load event. Registrations made after the page
// has loaded run on a later turn.
func (p *Page) OnLoad(fn func()) {
	p.mu.Lock()
	if p.loaded {
		p.mu.Unlock()
		clock.Defer(p.clock, fn)
		return
	}
	p.onLoad = append(p.onLoad, fn)
	p.mu.Unlock()
}

func (p *Page) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

// Load fires the load event once, stamping the document lifecycle fields
// that the host has not recorded itself. The navigation reporter runs on the
// next turn.
func (p *Page) Load() {
	p.mu.Lock()
	if p.loaded {
		p.mu.Unlock()
		return
	}
	p.loaded = true
	handlers := p.onLoad
	p.onLoad = nil
	p.mu.Unlock()

	for _, f := range []string{"responseEnd", "domLoading", "domInteractive", "domContentLoadedEventStart", "domContentLoadedEventEnd", "domComplete"} {
		p.recordIfMissing(f)
	}
	_ = p.Performance.RecordTiming("loadEventStart")
	for _, h := range handlers {
		h()
	}
	_ = p.Performance.RecordTiming("loadEventEnd")
	clock.Defer(p.clock, func() { p.NavigationReporter.Load().Report() })
}

// Paint buffers the first-paint entry, and the first-contentful-paint entry
// when contentful is set. Each is recorded at most once.
func (p *Page) Paint(contentful bool) {
	names := []string{FirstPaint}
	if contentful {
		names = append(names, FirstContentfulPaint)
	}
	now := p.Performance.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range names {
		if p.painted[n] {
			continue
		}
		p.painted[n] = true
		p.Performance.AddEntry(Entry{Name: n, EntryType: EntryPaint, StartTime: now})
	}
}

func (p *Page) recordIfMissing(field string) {
	if _, ok := p.Performance.TimingPoint(field); ok {
		return
	}
	_ = p.Performance.RecordTiming(field)
}
