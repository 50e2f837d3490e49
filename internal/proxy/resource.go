package proxy

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"pageprobe-agent/internal/page"
)

const DefaultPollInterval = time.Second

type ResourceOptions struct {
	Interval time.Duration
	// ExcludePrefix drops entries for agent egress from the timeline.
	ExcludePrefix string
	Logger        *slog.Logger
}

// Resource publishes new resource timing entries from its own polling loop.
type Resource struct {
	perf     *page.Performance
	bus      Emitter
	guard    guard
	interval time.Duration
	exclude  string

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewResource(perf *page.Performance, bus Emitter, opts ResourceOptions) *Resource {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	return &Resource{
		perf:     perf,
		bus:      bus,
		guard:    newGuard("resource", opts.Logger),
		interval: opts.Interval,
		exclude:  opts.ExcludePrefix,
		seen:     make(map[string]struct{}),
	}
}

func (p *Resource) Name() string { return "resource" }

func (p *Resource) IsSupported() bool { return p.perf != nil }

// Init attaches the poller to the performance timeline. Entries are only
// reported by Poll or Run.
func (p *Resource) Init() error {
	return p.guard.install(func() error {
		_, err := InstallOnce[page.Reporter](p.perf.ResourceReporter, func(orig page.Reporter) page.Reporter {
			return reporter{orig: orig, report: func() { p.Poll() }}
		})
		return err
	})
}

// Poll publishes the entries not reported yet and returns how many there
// were.
func (p *Resource) Poll() int {
	entries := p.perf.Entries(page.EntryResource)
	fresh := make([]page.Entry, 0, len(entries))
	p.mu.Lock()
	for _, e := range entries {
		if p.exclude != "" && strings.HasPrefix(e.Name, p.exclude) {
			continue
		}
		id := strconv.FormatFloat(e.StartTime, 'f', -1, 64) + e.Name
		if _, ok := p.seen[id]; ok {
			continue
		}
		p.seen[id] = struct{}{}
		fresh = append(fresh, e)
	}
	p.mu.Unlock()

	if len(fresh) > 0 {
		p.bus.Publish(TopicResourceTiming, fresh)
	}
	return len(fresh)
}

// Run drives the reporter attached to the timeline every interval until ctx
// is done.
func (p *Resource) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	report := p.perf.ResourceReporter
	report.Load().Report()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			report.Load().Report()
		}
	}
}
