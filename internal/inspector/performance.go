package inspector

import (
	"sync"

	"pageprobe-agent/internal/bus"
	"pageprobe-agent/internal/clock"
	"pageprobe-agent/internal/model"
	"pageprobe-agent/internal/proxy"
)

// Performance publishes user timing marks and measures. Measures reference
// the message ids of their marks.
type Performance struct {
	base

	mu       sync.Mutex
	messages map[string]string
}

func NewPerformance(opts Options) *Performance {
	return &Performance{base: newBase("performance", opts), messages: make(map[string]string)}
}

func (p *Performance) Name() string { return "performance" }

func (p *Performance) Init(pub Publisher) {
	p.pub = pub
	listen(&p.base, proxy.TopicMark, p.onMark)
	listen(&p.base, proxy.TopicMeasure, p.onMeasure)
}

func (p *Performance) onMark(mark proxy.MarkEvent, _ bus.Event) {
	payload := &model.MarkPayload{Name: mark.Name, StartTime: mark.StartTime, Synthetic: mark.Synthetic}
	m := p.pub.CreateMessage([]string{model.TypeUserTimingMark}, payload)
	p.mu.Lock()
	p.messages[mark.ID] = m.ID
	p.mu.Unlock()

	if mark.Synthetic || mark.Stack.Empty() {
		p.publish(m)
		return
	}
	clock.Defer(p.clock, func() {
		if frames := mark.Stack.Frames(1); len(frames) > 0 {
			payload.Stack = frames
			m.AddTypes(model.TypeCallStack)
		}
		p.publish(m)
	})
}

func (p *Performance) onMeasure(measure proxy.MeasureEvent, _ bus.Event) {
	p.mu.Lock()
	start := p.messages[measure.Start.ID]
	end := p.messages[measure.End.ID]
	p.mu.Unlock()

	p.publish(p.pub.CreateMessage([]string{model.TypeUserTimingMeasure}, &model.MeasurePayload{
		Name:      measure.Name,
		StartTime: measure.StartTime,
		Duration:  measure.Duration,
		StartMark: start,
		EndMark:   end,
	}))
}
