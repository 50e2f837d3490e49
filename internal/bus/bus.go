// Package bus is the named-topic publish/subscribe hub between proxies and
// inspectors. Dispatch is synchronous on the publishing goroutine.
package bus

import (
	"sync"
	"time"

	"pageprobe-agent/internal/clock"
)

// OffsetSource yields the current timeline offset in milliseconds relative
// to the page navigation start.
type OffsetSource interface {
	Now() float64
}

// Event is what a listener receives for every Publish call.
type Event struct {
	Data      any
	TimeStamp time.Time
	Offset    float64
}

type Listener func(Event)

// Subscription names one registration. Registering the same listener twice
// yields two subscriptions, each removable on its own.
type Subscription struct {
	Topic string
	id    uint64
}

type registration struct {
	id uint64
	fn Listener
}

type Bus struct {
	clock   clock.Clock
	offsets OffsetSource

	mu        sync.RWMutex
	nextID    uint64
	listeners map[string][]registration
}

func New(offsets OffsetSource, c clock.Clock) *Bus {
	if c == nil {
		c = clock.Real{}
	}
	return &Bus{
		clock:     c,
		offsets:   offsets,
		listeners: make(map[string][]registration),
	}
}

// Publish invokes every listener of topic in registration order and reports
// whether there was at least one. Listener panics are not recovered.
func (b *Bus) Publish(topic string, data any) bool {
	b.mu.RLock()
	regs := b.listeners[topic]
	snapshot := make([]registration, len(regs))
	copy(snapshot, regs)
	b.mu.RUnlock()

	if len(snapshot) == 0 {
		return false
	}
	ev := Event{Data: data, TimeStamp: b.clock.Now()}
	if b.offsets != nil {
		ev.Offset = b.offsets.Now()
	}
	for _, r := range snapshot {
		r.fn(ev)
	}
	return true
}

func (b *Bus) On(topic string, l Listener) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.listeners[topic] = append(b.listeners[topic], registration{id: b.nextID, fn: l})
	return Subscription{Topic: topic, id: b.nextID}
}

// RemoveListener drops the registration named by sub. It returns false when
// the registration is already gone.
func (b *Bus) RemoveListener(sub Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	regs := b.listeners[sub.Topic]
	for i, r := range regs {
		if r.id != sub.id {
			continue
		}
		kept := make([]registration, 0, len(regs)-1)
		kept = append(kept, regs[:i]...)
		kept = append(kept, regs[i+1:]...)
		if len(kept) == 0 {
			delete(b.listeners, sub.Topic)
		} else {
			b.listeners[sub.Topic] = kept
		}
		return true
	}
	return false
}

// RemoveAll clears the given topics, or every topic when none is given.
func (b *Bus) RemoveAll(topics ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(topics) == 0 {
		b.listeners = make(map[string][]registration)
		return
	}
	for _, t := range topics {
		delete(b.listeners, t)
	}
}

func (b *Bus) ListenerCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[topic])
}
