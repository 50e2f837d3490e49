package proxy_test

import (
	"sync"
	"testing"
	"time"

	"pageprobe-agent/internal/clock"
	"pageprobe-agent/internal/page"
)

type published struct {
	topic string
	data  any
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(topic string, data any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{topic: topic, data: data})
	return true
}

func (r *recorder) all() []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]published(nil), r.events...)
}

func (r *recorder) topics() []string {
	var out []string
	for _, e := range r.all() {
		out = append(out, e.topic)
	}
	return out
}

func (r *recorder) on(topic string) []any {
	var out []any
	for _, e := range r.all() {
		if e.topic == topic {
			out = append(out, e.data)
		}
	}
	return out
}

func newPage(t *testing.T, c clock.Clock) *page.Page {
	t.Helper()
	pg, err := page.New(page.Options{URL: "https://app.example.com/", Clock: c})
	if err != nil {
		t.Fatalf("page.New() error = %v", err)
	}
	return pg
}

func newFakePage(t *testing.T) (*page.Page, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(time.Unix(1700000000, 0))
	return newPage(t, fc), fc
}
