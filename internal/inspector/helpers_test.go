package inspector

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"pageprobe-agent/internal/bus"
	"pageprobe-agent/internal/clock"
	"pageprobe-agent/internal/model"
	"pageprobe-agent/internal/page"
)

type fakePublisher struct {
	mu        sync.Mutex
	ordinal   int64
	created   []*model.Message
	published []*model.Message
}

func (f *fakePublisher) CreateMessage(types []string, payload any) *model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ordinal++
	m := &model.Message{
		ID:      fmt.Sprintf("m%d", f.ordinal),
		Ordinal: f.ordinal,
		Types:   append([]string(nil), types...),
		Payload: payload,
	}
	f.created = append(f.created, m)
	return m
}

func (f *fakePublisher) PublishMessage(m *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, m)
	return nil
}

func (f *fakePublisher) messages() []*model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.Message(nil), f.published...)
}

func (f *fakePublisher) ofType(t string) []*model.Message {
	var out []*model.Message
	for _, m := range f.messages() {
		if m.HasType(t) {
			out = append(out, m)
		}
	}
	return out
}

// harness is a page on a fake clock with a bus whose offsets come from the
// page timeline.
type harness struct {
	page  *page.Page
	clock *clock.Fake
	bus   *bus.Bus
	pub   *fakePublisher
	logs  *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fc := clock.NewFake(time.Unix(1700000000, 0))
	pg, err := page.New(page.Options{URL: "https://app.example.com/shop/", Clock: fc})
	if err != nil {
		t.Fatalf("page.New() error = %v", err)
	}
	return &harness{
		page:  pg,
		clock: fc,
		bus:   bus.New(pg.Performance, fc),
		pub:   &fakePublisher{},
		logs:  &bytes.Buffer{},
	}
}

func (h *harness) options() Options {
	return Options{
		Bus:    h.bus,
		Clock:  h.clock,
		Logger: slog.New(slog.NewTextHandler(h.logs, nil)),
	}
}
