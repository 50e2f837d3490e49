package page

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"pageprobe-agent/internal/clock"
)

const (
	EntryMark     = "mark"
	EntryMeasure  = "measure"
	EntryResource = "resource"
	EntryPaint    = "paint"

	FirstPaint           = "first-paint"
	FirstContentfulPaint = "first-contentful-paint"
)

var (
	ErrUnknownMark  = errors.New("page: unknown mark")
	ErrReservedName = errors.New("page: mark name is a reserved timing attribute")
)

// Entry mirrors a PerformanceEntry; the resource fields are only set for
// entries of type "resource". All times are offsets in milliseconds.
type Entry struct {
	Name          string  `json:"name"`
	EntryType     string  `json:"entryType"`
	StartTime     float64 `json:"startTime"`
	Duration      float64 `json:"duration"`
	InitiatorType string  `json:"initiatorType,omitempty"`

	FetchStart            float64 `json:"fetchStart,omitempty"`
	DomainLookupStart     float64 `json:"domainLookupStart,omitempty"`
	DomainLookupEnd       float64 `json:"domainLookupEnd,omitempty"`
	ConnectStart          float64 `json:"connectStart,omitempty"`
	ConnectEnd            float64 `json:"connectEnd,omitempty"`
	SecureConnectionStart float64 `json:"secureConnectionStart,omitempty"`
	RequestStart          float64 `json:"requestStart,omitempty"`
	ResponseStart         float64 `json:"responseStart,omitempty"`
	ResponseEnd           float64 `json:"responseEnd,omitempty"`
	TransferSize          int64   `json:"transferSize,omitempty"`
	EncodedBodySize       int64   `json:"encodedBodySize,omitempty"`
	DecodedBodySize       int64   `json:"decodedBodySize,omitempty"`
}

// TimingAPI is the replaceable mark/measure entry point.
type TimingAPI interface {
	Mark(name string) (Entry, error)
	Measure(name, startMark, endMark string) (Entry, error)
}

// Performance is the page timeline: origin, navigation timing, user timing
// and the entry buffer.
type Performance struct {
	API *Slot[TimingAPI]
	// ResourceReporter is driven by whoever polls the entry buffer.
	ResourceReporter *Slot[Reporter]

	clock  clock.Clock
	origin time.Time

	mu      sync.RWMutex
	points  map[string]float64
	entries []Entry
}

func NewPerformance(c clock.Clock, origin time.Time) *Performance {
	p := &Performance{
		clock:  c,
		origin: origin,
		points: map[string]float64{"navigationStart": 0},
	}
	p.API = NewSlot[TimingAPI](nativeTiming{perf: p})
	p.ResourceReporter = NewSlot[Reporter](idleReporter{})
	return p
}

// Now returns the milliseconds elapsed since navigation start.
func (p *Performance) Now() float64 {
	return Millis(p.clock.Now().Sub(p.origin))
}

func (p *Performance) Mark(name string) (Entry, error) {
	return p.API.Load().Mark(name)
}

func (p *Performance) Measure(name, startMark, endMark string) (Entry, error) {
	return p.API.Load().Measure(name, startMark, endMark)
}

// RecordTiming stamps a navigation timing field with the current offset.
func (p *Performance) RecordTiming(field string) error {
	if !IsTimingField(field) {
		return fmt.Errorf("record timing %q: unknown field", field)
	}
	now := p.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.points[field] = now
	return nil
}

func (p *Performance) Timing() Timing {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return timingFromPoints(p.points)
}

// TimingPoint reports the offset of a recorded navigation timing field.
func (p *Performance) TimingPoint(field string) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.points[field]
	return v, ok
}

func (p *Performance) AddEntry(e Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, e)
}

// Entries returns a copy of the buffered entries of one type, or all entries
// for an empty type, in insertion order.
func (p *Performance) Entries(entryType string) []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Entry, 0, len(p.entries))
	for _, e := range p.entries {
		if entryType == "" || e.EntryType == entryType {
			out = append(out, e)
		}
	}
	return out
}

// EntryByName returns the most recent entry with the given name and type.
func (p *Performance) EntryByName(name, entryType string) (Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for i := len(p.entries) - 1; i >= 0; i-- {
		e := p.entries[i]
		if e.Name == name && e.EntryType == entryType {
			return e, true
		}
	}
	return Entry{}, false
}

// Millis converts a duration to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

type nativeTiming struct {
	perf *Performance
}

func (n nativeTiming) Mark(name string) (Entry, error) {
	if IsTimingField(name) {
		return Entry{}, fmt.Errorf("mark %q: %w", name, ErrReservedName)
	}
	e := Entry{Name: name, EntryType: EntryMark, StartTime: n.perf.Now()}
	n.perf.AddEntry(e)
	return e, nil
}

func (n nativeTiming) Measure(name, startMark, endMark string) (Entry, error) {
	start := 0.0
	if startMark != "" {
		v, err := n.resolve(startMark)
		if err != nil {
			return Entry{}, err
		}
		start = v
	}
	end := n.perf.Now()
	if endMark != "" {
		v, err := n.resolve(endMark)
		if err != nil {
			return Entry{}, err
		}
		end = v
	}
	e := Entry{Name: name, EntryType: EntryMeasure, StartTime: start, Duration: end - start}
	n.perf.AddEntry(e)
	return e, nil
}

// resolve applies the platform rule: the most recent mark with the name
// wins, then a recorded navigation timing field.
func (n nativeTiming) resolve(name string) (float64, error) {
	if e, ok := n.perf.EntryByName(name, EntryMark); ok {
		return e.StartTime, nil
	}
	if v, ok := n.perf.TimingPoint(name); ok {
		return v, nil
	}
	return 0, fmt.Errorf("measure endpoint %q: %w", name, ErrUnknownMark)
}
