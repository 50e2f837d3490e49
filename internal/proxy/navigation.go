package proxy

import (
	"log/slog"
	"sync"

	"pageprobe-agent/internal/clock"
	"pageprobe-agent/internal/page"
)

// NavigationTiming carries the navigation timing record with FirstPaint
// resolved.
type NavigationTiming struct {
	Timing page.Timing
}

// Navigation reports navigation timing once, after the page load handlers
// have finished.
type Navigation struct {
	page  *page.Page
	bus   Emitter
	guard guard
	once  sync.Once
}

func NewNavigation(pg *page.Page, bus Emitter, logger *slog.Logger) *Navigation {
	return &Navigation{page: pg, bus: bus, guard: newGuard("navigation", logger)}
}

func (p *Navigation) Name() string { return "navigation" }

func (p *Navigation) IsSupported() bool { return p.page != nil && p.page.Performance != nil }

// Init attaches the reporter to the page. A page that has already loaded is
// reported on the next turn.
func (p *Navigation) Init() error {
	return p.guard.install(func() error {
		_, err := InstallOnce[page.Reporter](p.page.NavigationReporter, func(orig page.Reporter) page.Reporter {
			return reporter{orig: orig, report: p.report}
		})
		if err != nil {
			return err
		}
		if p.page.Loaded() {
			clock.Defer(p.page.Clock(), p.report)
		}
		return nil
	})
}

func (p *Navigation) report() {
	p.once.Do(p.publish)
}

func (p *Navigation) publish() {
	perf := p.page.Performance
	t := perf.Timing()
	if t.FirstPaint == 0 {
		t.FirstPaint = firstPaint(perf)
	}
	p.bus.Publish(TopicNavigationTiming, NavigationTiming{Timing: t})
}

func firstPaint(perf *page.Performance) float64 {
	for _, name := range []string{page.FirstPaint, page.FirstContentfulPaint} {
		if e, ok := perf.EntryByName(name, page.EntryPaint); ok {
			return e.StartTime
		}
	}
	return 0
}
