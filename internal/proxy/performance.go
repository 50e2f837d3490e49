package proxy

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"pageprobe-agent/internal/page"
	"pageprobe-agent/internal/stack"
)

// MarkEvent is published for each successful mark, and once for every
// navigation timing point first referenced by a measure (Synthetic).
type MarkEvent struct {
	ID        string
	Name      string
	StartTime float64
	Synthetic bool
	Stack     stack.Trace
}

// MarkRef names the mark a measure endpoint resolved to. A zero ref means
// the endpoint was omitted.
type MarkRef struct {
	Name string
	ID   string
}

type MeasureEvent struct {
	ID        string
	Name      string
	Start     MarkRef
	End       MarkRef
	StartTime float64
	Duration  float64
}

// Performance instruments the mark/measure API of the page timeline.
type Performance struct {
	perf  *page.Performance
	bus   Emitter
	guard guard

	mu        sync.Mutex
	marks     map[string]string
	synthetic map[string]string
}

func NewPerformance(perf *page.Performance, bus Emitter, logger *slog.Logger) *Performance {
	return &Performance{
		perf:      perf,
		bus:       bus,
		guard:     newGuard("performance", logger),
		marks:     make(map[string]string),
		synthetic: make(map[string]string),
	}
}

func (p *Performance) Name() string { return "performance" }

func (p *Performance) IsSupported() bool { return p.perf != nil && p.perf.API != nil }

func (p *Performance) Init() error {
	return p.guard.install(func() error {
		_, err := InstallOnce[page.TimingAPI](p.perf.API, func(orig page.TimingAPI) page.TimingAPI {
			return &timingAPI{orig: orig, p: p}
		})
		return err
	})
}

// resolve maps a measure endpoint to its latest mark id, synthesizing a mark
// for a navigation timing point the first time one is referenced.
func (p *Performance) resolve(name string) MarkRef {
	if name == "" {
		return MarkRef{}
	}
	p.mu.Lock()
	if id, ok := p.marks[name]; ok {
		p.mu.Unlock()
		return MarkRef{Name: name, ID: id}
	}
	if id, ok := p.synthetic[name]; ok {
		p.mu.Unlock()
		return MarkRef{Name: name, ID: id}
	}
	point, ok := p.perf.TimingPoint(name)
	if !ok {
		p.mu.Unlock()
		return MarkRef{Name: name}
	}
	id := uuid.NewString()
	p.synthetic[name] = id
	p.mu.Unlock()

	p.bus.Publish(TopicMark, MarkEvent{ID: id, Name: name, StartTime: point, Synthetic: true})
	return MarkRef{Name: name, ID: id}
}

type timingAPI struct {
	orig page.TimingAPI
	p    *Performance
}

func (t *timingAPI) Unwrap() any { return t.orig }

func (t *timingAPI) Mark(name string) (page.Entry, error) {
	trace := stack.Capture(0)
	e, err := t.orig.Mark(name)
	if err != nil {
		return e, err
	}
	id := uuid.NewString()
	t.p.mu.Lock()
	t.p.marks[name] = id
	t.p.mu.Unlock()
	t.p.bus.Publish(TopicMark, MarkEvent{ID: id, Name: name, StartTime: e.StartTime, Stack: trace})
	return e, nil
}

func (t *timingAPI) Measure(name, startMark, endMark string) (page.Entry, error) {
	e, err := t.orig.Measure(name, startMark, endMark)
	if err != nil {
		return e, err
	}
	start := t.p.resolve(startMark)
	end := t.p.resolve(endMark)
	t.p.bus.Publish(TopicMeasure, MeasureEvent{
		ID:        uuid.NewString(),
		Name:      name,
		Start:     start,
		End:       end,
		StartTime: e.StartTime,
		Duration:  e.Duration,
	})
	return e, nil
}
