package inspector

import (
	"strconv"
	"sync"
	"time"

	"pageprobe-agent/internal/clock"
	"pageprobe-agent/internal/page"
)

// Backoff is a doubling retry schedule bounded by a total wait.
type Backoff struct {
	Initial    time.Duration
	Multiplier float64
	MaxTotal   time.Duration
}

var DefaultBackoff = Backoff{Initial: time.Millisecond, Multiplier: 2, MaxTotal: 500 * time.Millisecond}

// Delays lists the waits before each attempt. The last delay is clipped so
// the total is exactly MaxTotal.
func (b Backoff) Delays() []time.Duration {
	if b.Initial <= 0 || b.MaxTotal <= 0 {
		return nil
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	var (
		out   []time.Duration
		total time.Duration
	)
	for d := b.Initial; total < b.MaxTotal; d = time.Duration(float64(d) * mult) {
		if total+d > b.MaxTotal {
			d = b.MaxTotal - total
		}
		out = append(out, d)
		total += d
	}
	return out
}

// EntrySource is the resource timing buffer.
type EntrySource interface {
	Entries(entryType string) []page.Entry
}

type Match struct {
	Entry page.Entry
	Found bool
}

// matchSlack admits entries stamped just before the proxy saw the request.
const matchSlack = 1.0

// Matcher pairs an observed request with the resource timing entry the
// native transport buffered for it.
type Matcher struct {
	entries EntrySource
	clock   clock.Clock
	backoff Backoff

	mu      sync.Mutex
	claimed map[string]struct{}
}

func NewMatcher(entries EntrySource, c clock.Clock, b Backoff) *Matcher {
	if c == nil {
		c = clock.Real{}
	}
	return &Matcher{entries: entries, clock: c, backoff: b, claimed: make(map[string]struct{})}
}

// Find looks for the first unclaimed resource entry named url that started
// within [start, end] of the request. Attempts follow the backoff schedule;
// done runs exactly once, with Found false when the schedule runs out.
func (m *Matcher) Find(url string, start, end float64, done func(Match)) {
	delays := m.backoff.Delays()
	var attempt func(i int)
	attempt = func(i int) {
		if e, ok := m.claim(url, start, end); ok {
			done(Match{Entry: e, Found: true})
			return
		}
		if i >= len(delays) {
			done(Match{})
			return
		}
		m.clock.AfterFunc(delays[i], func() { attempt(i + 1) })
	}
	if len(delays) == 0 {
		clock.Defer(m.clock, func() { attempt(0) })
		return
	}
	m.clock.AfterFunc(delays[0], func() { attempt(1) })
}

func (m *Matcher) claim(url string, start, end float64) (page.Entry, bool) {
	var (
		best  page.Entry
		found bool
	)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries.Entries(page.EntryResource) {
		if e.Name != url || e.StartTime < start-matchSlack || e.StartTime > end {
			continue
		}
		if _, ok := m.claimed[entryKey(e)]; ok {
			continue
		}
		if !found || e.StartTime < best.StartTime {
			best, found = e, true
		}
	}
	if found {
		m.claimed[entryKey(best)] = struct{}{}
	}
	return best, found
}

func entryKey(e page.Entry) string {
	return strconv.FormatFloat(e.StartTime, 'f', -1, 64) + e.Name
}
